package main

import (
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"diarist/internal/controlapi"
	"diarist/internal/logging"
	"diarist/internal/store"
	"diarist/internal/supervisor"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP control API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := logging.NewFromConfig(cfg, "control.log")
			if err != nil {
				return err
			}
			sup, err := supervisor.Open(cfg, ctx.schedulerConfigPath(), logger)
			if err != nil {
				return err
			}
			defer sup.Close()
			st, err := store.Open(cfg)
			if err != nil {
				return err
			}
			defer st.Close()

			configPath, err := ctx.editableConfigPath()
			if err != nil {
				return err
			}
			srv, err := controlapi.New(controlapi.Options{
				Config:     cfg,
				ConfigPath: configPath,
				Controller: sup,
				Diary:      st,
				Logger:     logger,
			})
			if err != nil {
				return err
			}

			addr := strings.TrimSpace(listen)
			if addr == "" {
				addr = cfg.Control.Listen
			}
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return srv.Serve(signalCtx, addr)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Override control.listen")
	return cmd
}
