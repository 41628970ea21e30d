package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"diarist/internal/api"
	"diarist/internal/logs"
	"diarist/internal/store"
)

const (
	defaultLogLimit  = 10
	schedulerLogFile = "scheduler.log"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var limit int
	var jsonOut bool
	var process bool
	var follow bool

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show recent scheduler log entries (newest first)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit <= 0 {
				return errors.WithHint(errors.Newf("invalid --limit %d", limit), "pass a positive number of entries")
			}
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if process || follow {
				return tailProcessLog(cmd, filepath.Join(cfg.LogDir(), schedulerLogFile), limit, follow)
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			entries, err := st.RecentLogs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if jsonOut {
				return writeJSON(cmd, api.LogsResponse{Entries: api.FromLogEntries(entries)})
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "No log entries")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Time", "Actor", "Action", "Stage", "OK", "Message"},
				logRows(entries),
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultLogLimit, "Number of entries to show")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")
	cmd.Flags().BoolVar(&process, "process", false, "Show the scheduler process log instead of the activity log")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep printing process log lines as they are written")
	return cmd
}

func tailProcessLog(cmd *cobra.Command, path string, limit int, follow bool) error {
	out := cmd.OutOrStdout()
	tailer := logs.NewTailer(nil)
	lines, offset, err := tailer.Last(path, limit)
	if err != nil {
		return err
	}
	for _, line := range lines {
		fmt.Fprintln(out, line)
	}
	if !follow {
		if len(lines) == 0 {
			fmt.Fprintf(out, "No process log at %s\n", path)
		}
		return nil
	}
	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	return tailer.Follow(ctx, path, offset, func(line string) {
		fmt.Fprintln(out, line)
	})
}

func logRows(entries []store.LogEntry) [][]string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Timestamp.Local().Format(time.DateTime),
			e.Actor,
			string(e.Action),
			e.Stage,
			yesNo(e.Success),
			e.Message,
		})
	}
	return rows
}
