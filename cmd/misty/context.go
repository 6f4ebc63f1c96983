package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"misty/internal/config"
	"misty/internal/linedb"
	"misty/internal/logging"
	"misty/internal/services"
	"misty/internal/services/trident"
	"misty/internal/spectrum"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	loggerErr  error
}

func newCommandContext(configFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "load", "", err)
			return
		}
		if c.logLevelFlag != nil {
			if level := strings.ToLower(strings.TrimSpace(*c.logLevelFlag)); level != "" {
				cfg.Logging.Level = level
				if err := cfg.Validate(); err != nil {
					c.configErr = services.Wrap(services.ErrConfiguration, "config", "--log-level", "", err)
					return
				}
			}
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = services.Wrap(services.ErrConfiguration, "config", "ensure directories", "", err)
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, err := logging.NewFromConfig(cfg)
		if err != nil {
			c.loggerErr = services.Wrap(services.ErrConfiguration, "logging", "init", "", err)
			return
		}
		c.logger = logger
	})
	return c.logger, c.loggerErr
}

// lineDatabase returns the configured line list, falling back to the
// bundled one.
func (c *commandContext) lineDatabase() (*linedb.Database, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if cfg.Lines.Database == "" {
		return linedb.Default()
	}
	db, err := linedb.LoadFile(cfg.Lines.Database)
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "lines", "load database", cfg.Lines.Database, err)
	}
	return db, nil
}

func (c *commandContext) generator() (*spectrum.Generator, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	db, err := c.lineDatabase()
	if err != nil {
		return nil, err
	}
	synth, err := trident.New(cfg.SynthesisBinary(), cfg.Synthesis.TimeoutSeconds, trident.WithLogger(logger))
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "synthesis", "init", "", err)
	}
	gen, err := spectrum.NewGenerator(db, synth,
		spectrum.WithLogger(logger),
		spectrum.WithSite(cfg.Parameters.SimCode, cfg.Parameters.Computer),
	)
	if err != nil {
		return nil, fmt.Errorf("create generator: %w", err)
	}
	return gen, nil
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
