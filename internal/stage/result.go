package stage

import (
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Outcome is the coarse result of one stage run.
type Outcome string

const (
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeNoOp      Outcome = "no-op"
	OutcomeFailed    Outcome = "failed"
)

// Result captures what a stage run produced.
type Result struct {
	Stage    string        `json:"stage"`
	Outcome  Outcome       `json:"outcome"`
	ExitCode int           `json:"exit_code"`
	Outputs  []string      `json:"outputs,omitempty"`
	Message  string        `json:"message,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Success reports whether the outcome counts as a successful stage.
func (r Result) Success() bool {
	return r.Outcome != OutcomeFailed
}

// NoOp builds the result for a stage that found nothing to do.
func NoOp(name, reason string) Result {
	return Result{Stage: name, Outcome: OutcomeNoOp, Message: reason}
}

// Summary renders the one-line message stored in the scheduler log.
func (r Result) Summary() string {
	label := Label(r.Stage)
	msg := strings.TrimSpace(r.Message)
	switch r.Outcome {
	case OutcomeNoOp:
		if msg == "" {
			msg = "no pending input"
		}
		return fmt.Sprintf("%s skipped: %s", label, msg)
	case OutcomeFailed:
		if msg == "" {
			return fmt.Sprintf("%s failed (exit %d)", label, r.ExitCode)
		}
		return fmt.Sprintf("%s failed (exit %d): %s", label, r.ExitCode, msg)
	default:
		detail := fmt.Sprintf("exit %d", r.ExitCode)
		if n := len(r.Outputs); n > 0 {
			detail += fmt.Sprintf(", %d output(s)", n)
		}
		if msg != "" {
			return fmt.Sprintf("%s succeeded (%s): %s", label, detail, msg)
		}
		return fmt.Sprintf("%s succeeded (%s)", label, detail)
	}
}

// Label converts a stage name like "post-process" into "Post Process". A
// cases.Caser carries state between calls, so each call builds its own.
func Label(name string) string {
	name = strings.TrimSpace(strings.NewReplacer("-", " ", "_", " ").Replace(name))
	if name == "" {
		return "Stage"
	}
	return cases.Title(language.Und).String(name)
}
