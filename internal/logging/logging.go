package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"trivia-rewards/internal/config"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	writerMu sync.RWMutex
	writer   io.Writer = os.Stdout
)

// Init configures the global zerolog logger. When cfg.File is set, output is teed to a
// size-capped file next to stdout.
func Init(cfg config.LogConfig) {
	level := zerolog.InfoLevel
	if v := strings.TrimSpace(cfg.Level); v != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(v)); err == nil {
			level = parsed
		}
	}

	var out io.Writer = os.Stdout
	if cfg.File != "" {
		if fw, err := newSizeLimitedWriter(cfg.File, cfg.MaxMB); err == nil {
			out = io.MultiWriter(os.Stdout, fw)
		} else {
			log.Warn().Err(err).Str("path", cfg.File).Msg("log file unavailable; stdout only")
		}
	}
	setWriter(out)

	var output io.Writer = out
	if cfg.Pretty {
		output = zerolog.ConsoleWriter{Out: out}
	}

	zerolog.SetGlobalLevel(level)
	ctx := zerolog.New(output).With().Timestamp()
	if cfg.Service != "" {
		ctx = ctx.Str("service", cfg.Service)
	}
	logger := ctx.Logger()
	if cfg.SampleEvery > 1 {
		logger = logger.Sample(&zerolog.BasicSampler{N: uint32(cfg.SampleEvery)})
	}
	log.Logger = logger
}

// Writer returns the raw destination chosen by Init, for loggers that are not zerolog.
func Writer() io.Writer {
	writerMu.RLock()
	defer writerMu.RUnlock()
	return writer
}

func setWriter(w io.Writer) {
	writerMu.Lock()
	defer writerMu.Unlock()
	writer = w
}
