package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeOutput(); err != nil {
		return err
	}
	if err := c.normalizeLines(); err != nil {
		return err
	}
	c.normalizeParameters()
	c.normalizeSynthesis()
	return c.normalizeLogging()
}

func (c *Config) normalizeOutput() error {
	c.Output.Author = strings.TrimSpace(c.Output.Author)
	if strings.TrimSpace(c.Output.Filename) == "" {
		c.Output.Filename = defaultOutputFilename
	}
	var err error
	if c.Output.Filename, err = expandPath(strings.TrimSpace(c.Output.Filename)); err != nil {
		return fmt.Errorf("output.filename: %w", err)
	}
	return nil
}

func (c *Config) normalizeParameters() {
	c.Parameters.SimCode = strings.TrimSpace(c.Parameters.SimCode)
	if c.Parameters.SimCode == "" {
		c.Parameters.SimCode = defaultSimCode
	}
	c.Parameters.Computer = strings.TrimSpace(c.Parameters.Computer)
	if c.Parameters.Computer == "" {
		c.Parameters.Computer = defaultComputer
	}
}

func (c *Config) normalizeLines() error {
	if path := strings.TrimSpace(c.Lines.Database); path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return fmt.Errorf("lines.database: %w", err)
		}
		c.Lines.Database = expanded
	}
	terms := make([]string, 0, len(c.Lines.Default))
	for _, term := range c.Lines.Default {
		if term = strings.Join(strings.Fields(term), " "); term != "" {
			terms = append(terms, term)
		}
	}
	if len(terms) == 0 {
		terms = []string{"all"}
	}
	c.Lines.Default = terms
	return nil
}

func (c *Config) normalizeSynthesis() {
	c.Synthesis.Binary = strings.TrimSpace(c.Synthesis.Binary)
	if c.Synthesis.Binary == "" {
		c.Synthesis.Binary = defaultSynthesisBinary
	}
}

func (c *Config) normalizeLogging() error {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if dir := strings.TrimSpace(c.Logging.Dir); dir != "" {
		expanded, err := expandPath(dir)
		if err != nil {
			return fmt.Errorf("logging.dir: %w", err)
		}
		c.Logging.Dir = expanded
	}
	return nil
}
