package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"diarist/internal/config"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand(ctx))
	configCmd.AddCommand(newConfigSetRunsCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				if flag := cmd.Flag("config"); flag != nil {
					target = strings.TrimSpace(flag.Value.String())
				}
			}
			var err error
			if target == "" {
				target, err = config.DefaultConfigPath()
				if err != nil {
					return errors.Wrap(err, "determine default config path")
				}
			} else if target, err = config.ExpandPath(target); err != nil {
				return errors.Wrap(err, "resolve config path")
			}

			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return errors.Wrapf(err, "create config directory %q", filepath.Dir(target))
			}
			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return errors.WithHint(errors.Newf("config file already exists at %s", target), "use --overwrite to replace it")
				} else if !os.IsNotExist(err) {
					return errors.Wrap(err, "check config path")
				}
			}

			if err := config.CreateSample(target); err != nil {
				return errors.Wrap(err, "create sample config")
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Set the stage commands and transcription credentials before running `diarist start`.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := ctx.ensureConfig(); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", ctx.configPath)
			if !ctx.configExists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigSetRunsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-runs N",
		Short: "Set scheduler.runs_per_day (0 runs a single cycle)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := strconv.Atoi(strings.TrimSpace(args[0]))
			if err != nil {
				return errors.WithHint(errors.Newf("invalid runs per day %q", args[0]), "pass a whole number >= 0")
			}
			path, err := ctx.editableConfigPath()
			if err != nil {
				return err
			}
			if err := config.SetRunsPerDay(path, runs); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Set runs_per_day = %d in %s\n", runs, path)
			fmt.Fprintln(out, "Restart required: a running scheduler keeps its current schedule until `diarist stop` and `diarist start`.")
			return nil
		},
	}
}
