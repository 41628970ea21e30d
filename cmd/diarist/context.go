package main

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"diarist/internal/config"
	"diarist/internal/logging"
	"diarist/internal/supervisor"
)

type commandContext struct {
	configFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, exists, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
		c.configExists = exists
	})
	return c.config, c.configErr
}

// schedulerConfigPath is the path handed to a spawned scheduler. It is empty
// when defaults are in use so the child resolves the same search order.
func (c *commandContext) schedulerConfigPath() string {
	if _, err := c.ensureConfig(); err != nil || !c.configExists {
		return ""
	}
	return c.configPath
}

// editableConfigPath is where config edits are written; the resolved path
// is used even when the file does not exist yet.
func (c *commandContext) editableConfigPath() (string, error) {
	if _, err := c.ensureConfig(); err != nil {
		return "", err
	}
	if c.configPath != "" {
		return c.configPath, nil
	}
	return config.DefaultConfigPath()
}

// fileLogger writes to name inside the log directory only, keeping the
// terminal free for command output.
func (c *commandContext) fileLogger(name string) *slog.Logger {
	cfg, err := c.ensureConfig()
	if err != nil {
		return logging.NewNop()
	}
	logger, err := logging.New(logging.Options{
		Level:       cfg.Logging.Level,
		Format:      "json",
		OutputPaths: []string{filepath.Join(cfg.LogDir(), name)},
		Rotation: logging.Rotation{
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			MaxAgeDays: cfg.Logging.MaxAgeDays,
			Compress:   cfg.Logging.Compress,
		},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
}

func (c *commandContext) withSupervisor(fn func(*supervisor.Supervisor) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	sup, err := supervisor.Open(cfg, c.schedulerConfigPath(), c.fileLogger("control.log"))
	if err != nil {
		return err
	}
	defer sup.Close()
	return fn(sup)
}

func (c *commandContext) actor() string {
	cfg, err := c.ensureConfig()
	if err != nil || strings.TrimSpace(cfg.Control.DefaultActor) == "" {
		return "operator"
	}
	return cfg.Control.DefaultActor
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
