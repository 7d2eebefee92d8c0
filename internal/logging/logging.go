package logging

import (
	"fmt"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config selects the logger flavour.
type Config struct {
	Level    string `yaml:"level"`
	Encoding string `yaml:"encoding"` // console | json | "" (auto)
	Debug    bool   `yaml:"debug"`
}

// New builds a sugared logger. An empty encoding picks console output when
// stderr is a terminal and json otherwise.
func New(cfg Config) (*zap.SugaredLogger, error) {
	var zc zap.Config
	if cfg.Debug {
		zc = zap.NewDevelopmentConfig()
	} else {
		zc = zap.NewProductionConfig()
	}

	if cfg.Level != "" {
		lvl, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
		if err != nil {
			return nil, fmt.Errorf("logging level %q: %w", cfg.Level, err)
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
	}

	zc.Encoding = resolveEncoding(cfg.Encoding, isatty.IsTerminal(os.Stderr.Fd()))
	if zc.Encoding == "console" {
		zc.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}

	logger, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	return logger.Sugar(), nil
}

func resolveEncoding(enc string, tty bool) string {
	switch strings.ToLower(enc) {
	case "console":
		return "console"
	case "json":
		return "json"
	}
	if tty {
		return "console"
	}
	return "json"
}
