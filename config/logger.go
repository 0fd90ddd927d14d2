package config

import (
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

func (c *Config) CreateLogger(debug bool) (*zap.Logger, error) {
	var cfg zap.Config
	if debug {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if c.LogFile != "" {
		cfg.OutputPaths = []string{c.LogFile}
		cfg.ErrorOutputPaths = []string{c.LogFile}
	}

	logger, err := cfg.Build()
	return logger, errors.Wrap(err, "create logger")
}
