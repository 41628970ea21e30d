package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"diarist/internal/diary"
	"diarist/internal/store"
)

func newSetDateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-date YYMMDD",
		Short: "Override the active diary date",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			mgr := diary.NewManager(cfg, st, ctx.fileLogger("control.log"))
			path, err := mgr.SetDate(cmd.Context(), args[0], time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Diary date set to %s\n", args[0])
			fmt.Fprintf(out, "Entries file: %s\n", path)
			return nil
		},
	}
}
