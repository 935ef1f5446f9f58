package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/Rrens/flight-support/internal/config"
	rotatelogs "github.com/lestrrat-go/file-rotatelogs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Setup configures the global zerolog logger. Console output is used unless
// the format is json; when a file is configured output is also written to a
// daily rotated file. The returned closer releases the file.
func Setup(cfg config.LoggingConfig) (io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix

	var out io.Writer = os.Stderr
	if cfg.Format != "json" {
		out = zerolog.ConsoleWriter{Out: os.Stderr}
	}

	var closer io.Closer = nopCloser{}
	if cfg.File != "" {
		opts := []rotatelogs.Option{rotatelogs.WithLinkName(cfg.File)}
		if cfg.MaxAge > 0 {
			opts = append(opts, rotatelogs.WithMaxAge(cfg.MaxAge))
		}
		if cfg.RotationTime > 0 {
			opts = append(opts, rotatelogs.WithRotationTime(cfg.RotationTime))
		}

		rl, err := rotatelogs.New(cfg.File+".%Y%m%d", opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
		out = zerolog.MultiLevelWriter(out, rl)
		closer = rl
	}

	log.Logger = zerolog.New(out).With().Timestamp().Logger()

	return closer, nil
}
