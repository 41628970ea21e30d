package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"diarist/internal/api"
	"diarist/internal/config"
	"diarist/internal/deps"
	"diarist/internal/preflight"
	"diarist/internal/stage"
	"diarist/internal/store"
	"diarist/internal/supervisor"
)

func newSchedulerCommands(ctx *commandContext) []*cobra.Command {
	startCmd := &cobra.Command{
		Use:   "start",
		Short: "Start the scheduler process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSupervisor(func(sup *supervisor.Supervisor) error {
				return runStart(cmd.Context(), cmd.OutOrStdout(), sup, ctx.actor())
			})
		},
	}

	stopCmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the scheduler process",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withSupervisor(func(sup *supervisor.Supervisor) error {
				return runStop(cmd.Context(), cmd.OutOrStdout(), sup, ctx.actor())
			})
		},
	}

	var watch bool
	var jsonOut bool
	var probe bool
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show reconciled scheduler status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return ctx.withSupervisor(func(sup *supervisor.Supervisor) error {
				if !watch {
					return printStatus(cmd, cfg, sup, jsonOut, probe)
				}
				return watchStatus(cmd, cfg, sup, jsonOut)
			})
		},
	}
	statusCmd.Flags().BoolVarP(&watch, "watch", "w", false, "Refresh until interrupted")
	statusCmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	statusCmd.Flags().BoolVar(&probe, "probe", false, "Also check that the hosted provider is reachable")

	return []*cobra.Command{startCmd, stopCmd, statusCmd}
}

// starter and stopper are the supervisor operations the commands use.
type starter interface {
	Start(ctx context.Context, actor string) (supervisor.StartAck, error)
}

type stopper interface {
	Stop(ctx context.Context, actor string) (supervisor.StopAck, error)
}

func runStart(ctx context.Context, out io.Writer, sup starter, actor string) error {
	ack, err := sup.Start(ctx, actor)
	var running *supervisor.AlreadyRunningError
	if errors.As(err, &running) {
		fmt.Fprintf(out, "Scheduler already running (pid %d)\n", running.PID)
		return nil
	}
	if err != nil {
		return err
	}
	if ack.Completed {
		fmt.Fprintf(out, "Scheduler ran its single cycle and exited (pid %d)\n", ack.PID)
		return nil
	}
	fmt.Fprintf(out, "Scheduler started (pid %d)\n", ack.PID)
	return nil
}

func runStop(ctx context.Context, out io.Writer, sup stopper, actor string) error {
	ack, err := sup.Stop(ctx, actor)
	if errors.Is(err, supervisor.ErrNotRunning) {
		fmt.Fprintln(out, "Scheduler is not running")
		return nil
	}
	if err != nil {
		return err
	}
	switch ack.Outcome {
	case supervisor.StopForced:
		fmt.Fprintf(out, "Scheduler did not exit in time; killed (pid %s)\n", pidList(ack.PIDs))
	case supervisor.StopAlreadyStopped:
		fmt.Fprintln(out, "Scheduler had already exited")
	default:
		fmt.Fprintf(out, "Scheduler stopped (pid %s)\n", pidList(ack.PIDs))
	}
	return nil
}

func buildStatus(ctx context.Context, cfg *config.Config, sup *supervisor.Supervisor) (api.StatusResponse, error) {
	snap, err := sup.Status(ctx)
	if err != nil {
		return api.StatusResponse{}, err
	}
	resp := api.StatusResponse{
		Scheduler: api.FromSnapshot(snap),
		Schedule:  api.FromRunsPerDay(cfg.Scheduler.RunsPerDay),
	}
	if date, err := readDiaryDate(ctx, cfg); err == nil {
		resp.DiaryDate = date
	}
	return resp, nil
}

func readDiaryDate(ctx context.Context, cfg *config.Config) (string, error) {
	st, err := store.Open(cfg)
	if err != nil {
		return "", err
	}
	defer st.Close()
	return st.DiaryDate(ctx)
}

func printStatus(cmd *cobra.Command, cfg *config.Config, sup *supervisor.Supervisor, jsonOut, probe bool) error {
	resp, err := buildStatus(cmd.Context(), cfg, sup)
	if err != nil {
		return err
	}
	if jsonOut {
		return writeJSON(cmd, resp)
	}
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)
	lines := statusLines(resp, time.Now(), colorize)
	lines = append(lines, "")
	lines = append(lines, dependencyLines(deps.CheckBinaries(deps.Requirements(cfg)), colorize)...)
	lines = append(lines, "")
	lines = append(lines, readinessLines(preflight.RunAll(cmd.Context(), cfg, preflight.Options{Network: probe}), colorize)...)
	lines = append(lines, "")
	dirs, combined := collectFileStats(afero.NewOsFs(), cfg)
	lines = append(lines, fileLines(dirs, combined, colorize)...)
	fmt.Fprintln(out, strings.Join(lines, "\n"))
	return nil
}

func watchStatus(cmd *cobra.Command, cfg *config.Config, sup *supervisor.Supervisor, jsonOut bool) error {
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ticker := time.NewTicker(cfg.StatusPollInterval())
	defer ticker.Stop()
	for {
		if err := printStatus(cmd, cfg, sup, jsonOut, false); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if !jsonOut {
				fmt.Fprintln(cmd.OutOrStdout())
			}
		}
	}
}

// collectFileStats counts pending downloads, processed audio, transcripts and
// diary partitions, and stats the combined transcription file.
func collectFileStats(fs afero.Fs, cfg *config.Config) ([]dirReport, transcriptFile) {
	audio := stage.ExtensionFilter{Allow: cfg.Pipeline.AudioExtensions, Deny: cfg.Pipeline.IgnoreExtensions}
	var diary stage.ExtensionFilter
	if ext := filepath.Ext(cfg.Diary.EntriesFileFormat); ext != "" {
		diary.Allow = []string{strings.ToLower(ext)}
	}
	targets := []struct {
		name   string
		dir    string
		filter stage.ExtensionFilter
	}{
		{"Downloads", cfg.Paths.DownloadsDir, audio},
		{"Processed audio", cfg.Paths.ProcessedDir, audio},
		{"Transcripts", cfg.Paths.TranscriptsDir, stage.ExtensionFilter{Allow: []string{".txt"}}},
		{"Diary partitions", cfg.Paths.DiaryDir, diary},
	}
	dirs := make([]dirReport, 0, len(targets))
	for _, t := range targets {
		count, err := stage.CountFiles(fs, t.name, t.dir, t.filter)
		dirs = append(dirs, dirReport{DirCount: count, err: err})
	}

	combined := transcriptFile{path: cfg.TranscriptionFilePath()}
	if info, err := fs.Stat(combined.path); err == nil && info.Mode().IsRegular() {
		combined.exists = true
		combined.size = info.Size()
		combined.modified = info.ModTime()
	}
	return dirs, combined
}

func pidList(pids []int) string {
	parts := make([]string, 0, len(pids))
	for _, pid := range pids {
		parts = append(parts, fmt.Sprint(pid))
	}
	return strings.Join(parts, ", ")
}
