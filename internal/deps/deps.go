package deps

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
	"golang.org/x/sys/unix"

	"diarist/internal/config"
)

// Requirement defines an external program diarist invokes.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// Requirements lists the programs the configured pipeline needs. Stage
// commands are checked by their first word; unconfigured stages are skipped.
func Requirements(cfg *config.Config) []Requirement {
	if cfg == nil {
		return nil
	}
	reqs := []Requirement{
		{Name: "FFprobe", Command: cfg.Transcription.FFprobeBinary, Description: "Measures recording duration for chunking"},
		{Name: "FFmpeg", Command: cfg.Transcription.FFmpegBinary, Description: "Cuts long recordings into segments", Optional: !cfg.Transcription.ChunkAudio},
	}
	if strings.TrimSpace(cfg.Stages.Transcribe.Command) == "" && cfg.Transcription.Variant == config.VariantLocalModel {
		reqs = append(reqs, Requirement{
			Name:        "Whisper",
			Command:     programOf(cfg.Transcription.LocalCommand),
			Description: "Local speech-to-text model",
		})
	}
	for _, st := range []struct {
		name  string
		stage config.Stage
	}{
		{"download", cfg.Stages.Download},
		{"transcribe", cfg.Stages.Transcribe},
		{"process", cfg.Stages.Process},
	} {
		if strings.TrimSpace(st.stage.Command) == "" {
			continue
		}
		reqs = append(reqs, Requirement{
			Name:        st.name + " stage",
			Command:     programOf(st.stage.Command),
			Description: "Configured " + st.name + " command",
		})
	}
	return reqs
}

// CheckBinaries resolves each requirement on PATH and confirms the result is
// executable by the current user.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, len(requirements))
	for i, req := range requirements {
		cmd := strings.TrimSpace(req.Command)
		results[i] = Status{
			Name:        req.Name,
			Command:     cmd,
			Description: strings.TrimSpace(req.Description),
			Optional:    req.Optional,
		}
		results[i].Available, results[i].Detail = locate(cmd)
	}
	return results
}

func locate(cmd string) (bool, string) {
	if cmd == "" {
		return false, "command not configured"
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		return false, fmt.Sprintf("binary %q not found", cmd)
	}
	if err := unix.Access(resolved, unix.X_OK); err != nil {
		return false, fmt.Sprintf("binary %q is not executable: %v", resolved, err)
	}
	return true, ""
}

// Missing returns the required dependencies that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

func programOf(command string) string {
	words, err := shellquote.Split(command)
	if err != nil || len(words) == 0 {
		return strings.TrimSpace(command)
	}
	return words[0]
}
