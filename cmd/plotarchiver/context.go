package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"plotarchiver/internal/config"
	"plotarchiver/internal/logging"
)

type commandFlags struct {
	config           string
	stagingDir       string
	destinationsFile string
	workers          int
}

type commandContext struct {
	flags *commandFlags

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(flags *commandFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		var opts []config.Option
		if c.flags != nil {
			path = strings.TrimSpace(c.flags.config)
			opts = append(opts,
				config.WithStagingDir(c.flags.stagingDir),
				config.WithDestinationsFile(c.flags.destinationsFile),
				config.WithWorkers(c.flags.workers),
			)
		}
		cfg, _, _, err := config.Load(path, opts...)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.flags == nil {
		return ""
	}
	return strings.TrimSpace(c.flags.config)
}

// inspectionLogger reports list-file and probe problems on stderr for the
// one-shot commands; informational records are suppressed.
func inspectionLogger(cfg *config.Config) *slog.Logger {
	format := "console"
	if cfg != nil && cfg.Logging.Format != "" {
		format = cfg.Logging.Format
	}
	logger, err := logging.New(logging.Options{
		Level:       "warn",
		Format:      format,
		OutputPaths: []string{"stderr"},
	})
	if err != nil {
		return logging.NewNop()
	}
	return logger
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
