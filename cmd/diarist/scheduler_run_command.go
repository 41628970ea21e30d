package main

import (
	"github.com/spf13/cobra"

	"diarist/internal/schedulerrun"
	"diarist/internal/supervisor"
)

// newSchedulerRunCommand is the process the supervisor spawns. Its name is
// the marker discovery looks for in the process table.
func newSchedulerRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:    supervisor.SchedulerSubcommand,
		Short:  "Run the scheduler loop in the foreground",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			return schedulerrun.Run(cmd.Context(), cfg, schedulerrun.Options{
				ConfigPath: ctx.schedulerConfigPath(),
			})
		},
	}
}
