package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"diarist/internal/api"
	"diarist/internal/deps"
	"diarist/internal/preflight"
	"diarist/internal/stage"
)

type statusKind int

const (
	statusInfo statusKind = iota
	statusOK
	statusWarn
	statusError
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiBlue   = "\x1b[34m"
)

const (
	statusLabelWidth = 22
	statusIndent     = "  "
)

func renderStatusLine(label string, kind statusKind, message string, colorize bool) string {
	statusText := fmt.Sprintf("[%s]", statusKindLabel(kind))
	if message != "" {
		statusText += " " + message
	}
	base := fmt.Sprintf("%s%-*s %s", statusIndent, statusLabelWidth, label+":", statusText)
	if colorize {
		if color := statusKindColor(kind); color != "" {
			return color + base + ansiReset
		}
	}
	return base
}

func statusKindLabel(kind statusKind) string {
	switch kind {
	case statusOK:
		return "OK"
	case statusWarn:
		return "WARN"
	case statusError:
		return "ERROR"
	default:
		return "INFO"
	}
}

func statusKindColor(kind statusKind) string {
	switch kind {
	case statusOK:
		return ansiGreen
	case statusWarn:
		return ansiYellow
	case statusError:
		return ansiRed
	case statusInfo:
		return ansiBlue
	default:
		return ""
	}
}

func renderSectionHeader(title string, colorize bool) []string {
	line := fmt.Sprintf("== %s ==", strings.TrimSpace(title))
	rule := strings.Repeat("-", len(line))
	if colorize {
		line = ansiBlue + line + ansiReset
		rule = ansiBlue + rule + ansiReset
	}
	return []string{line, rule}
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// statusLines renders the reconciled status block.
func statusLines(resp api.StatusResponse, now time.Time, colorize bool) []string {
	lines := renderSectionHeader("Scheduler", colorize)
	sched := resp.Scheduler
	if sched.Running {
		lines = append(lines, renderStatusLine("Scheduler", statusOK, fmt.Sprintf("Running (pid %d)", sched.PID), colorize))
	} else {
		lines = append(lines, renderStatusLine("Scheduler", statusWarn, "Stopped", colorize))
	}
	lines = append(lines, renderStatusLine("Schedule", statusInfo, describeSchedule(resp.Schedule), colorize))
	if v := describeTime(sched.LastStarted, now); v != "" {
		lines = append(lines, renderStatusLine("Last started", statusInfo, v, colorize))
	}
	if v := describeTime(sched.LastStopped, now); v != "" {
		lines = append(lines, renderStatusLine("Last stopped", statusInfo, v, colorize))
	}
	if v := describeTime(sched.LastCycleAt, now); v != "" {
		lines = append(lines, renderStatusLine("Last cycle", statusInfo, v, colorize))
	}
	if v := describeTime(sched.NextCycleAt, now); v != "" && sched.Running {
		lines = append(lines, renderStatusLine("Next cycle", statusInfo, v, colorize))
	}
	if resp.DiaryDate != "" {
		lines = append(lines, renderStatusLine("Diary date", statusInfo, resp.DiaryDate, colorize))
	}
	return lines
}

func describeSchedule(s api.Schedule) string {
	if s.RunsPerDay == 0 {
		return "run once"
	}
	every := time.Duration(s.IntervalSeconds) * time.Second
	return fmt.Sprintf("%d run(s) per day, every %s", s.RunsPerDay, every)
}

func describeTime(value string, now time.Time) string {
	t, ok := api.ParseTime(value)
	if !ok {
		return ""
	}
	local := t.Local().Format("2006-01-02 15:04:05")
	delta := now.Sub(t).Round(time.Second)
	switch {
	case delta > 0:
		return fmt.Sprintf("%s (%s ago)", local, delta)
	case delta < 0:
		return fmt.Sprintf("%s (in %s)", local, -delta)
	default:
		return local
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := renderSectionHeader("Dependencies", colorize)
	var missing []string
	for _, dep := range statuses {
		if dep.Available {
			message := "Ready"
			if dep.Command != "" {
				message = fmt.Sprintf("Ready (command: %s)", dep.Command)
			}
			lines = append(lines, renderStatusLine(dep.Name, statusOK, message, colorize))
			continue
		}
		detail := strings.TrimSpace(dep.Detail)
		if detail == "" {
			detail = "not available"
		}
		kind := statusError
		if dep.Optional {
			kind = statusWarn
		}
		lines = append(lines, renderStatusLine(dep.Name, kind, detail, colorize))
		if !dep.Optional {
			missing = append(missing, dep.Name)
		}
	}
	if len(missing) > 0 {
		lines = append(lines, renderStatusLine("Missing", statusWarn, strings.Join(missing, ", ")+" (stages that need them will fail)", colorize))
	}
	return lines
}

func readinessLines(results []preflight.Result, colorize bool) []string {
	lines := renderSectionHeader("Readiness", colorize)
	for _, r := range results {
		kind := statusOK
		if !r.Passed {
			kind = statusError
		}
		lines = append(lines, renderStatusLine(r.Name, kind, r.Detail, colorize))
	}
	return lines
}

// dirReport is one row of the file statistics section.
type dirReport struct {
	stage.DirCount
	err error
}

// transcriptFile describes the combined transcription file.
type transcriptFile struct {
	path     string
	exists   bool
	size     int64
	modified time.Time
}

func fileLines(dirs []dirReport, combined transcriptFile, colorize bool) []string {
	lines := renderSectionHeader("Files", colorize)
	for _, d := range dirs {
		switch {
		case d.err != nil:
			lines = append(lines, renderStatusLine(d.Name, statusError, d.err.Error(), colorize))
		case !d.Exists:
			lines = append(lines, renderStatusLine(d.Name, statusWarn, "Not found ("+d.Dir+")", colorize))
		case d.Files == 0:
			lines = append(lines, renderStatusLine(d.Name, statusInfo, "0 files", colorize))
		default:
			msg := fmt.Sprintf("%d file(s), newest %s", d.Files, d.Newest.Local().Format("2006-01-02 15:04:05"))
			lines = append(lines, renderStatusLine(d.Name, statusInfo, msg, colorize))
		}
	}
	if !combined.exists {
		return append(lines, renderStatusLine("Transcription file", statusWarn, "Not found ("+combined.path+")", colorize))
	}
	msg := fmt.Sprintf("%.2f KB, modified %s", float64(combined.size)/1024, combined.modified.Local().Format("2006-01-02 15:04:05"))
	return append(lines, renderStatusLine("Transcription file", statusInfo, msg, colorize))
}
