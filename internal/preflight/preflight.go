package preflight

import (
	"context"

	"diarist/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Options selects the optional checks.
type Options struct {
	// Network enables the provider reachability probe.
	Network bool
	// Prober overrides the provider probe (tests).
	Prober *Prober
}

// RunAll executes the applicable checks for cfg. Directory and credential
// checks never touch the network.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Downloads directory", cfg.Paths.DownloadsDir),
		CheckDirectoryAccess("Transcripts directory", cfg.Paths.TranscriptsDir),
		CheckDirectoryAccess("Processed directory", cfg.Paths.ProcessedDir),
		CheckDirectoryAccess("Diary directory", cfg.Paths.DiaryDir),
	}

	if cfg.Stages.Transcribe.Command != "" || !isHosted(cfg.Transcription.Variant) {
		return results
	}

	credential, apiKey := CheckCredentials(cfg.Transcription)
	results = append(results, credential)
	if opts.Network && credential.Passed {
		prober := opts.Prober
		if prober == nil {
			prober = NewProber(nil)
		}
		results = append(results, prober.Check(ctx, cfg.Transcription, apiKey))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

func isHosted(variant string) bool {
	switch config.CanonicalVariant(variant) {
	case config.VariantHostedBasic, config.VariantHostedExtended:
		return true
	default:
		return false
	}
}
