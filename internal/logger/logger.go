package logger

import (
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// New creates a logger writing to w.
//   - level:  disabled, trace, debug, info, warn, error...
//   - format: empty (autodetect color support), color, json, text
func New(w io.Writer, level, format string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	if format != "json" {
		console := zerolog.ConsoleWriter{Out: w, TimeFormat: "15:04:05.000"}

		switch format {
		case "text":
			console.NoColor = true
		case "color":
			console.NoColor = false
		default:
			f, ok := w.(*os.File)
			console.NoColor = !ok || !isatty.IsTerminal(f.Fd())
		}

		w = console
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	if err != nil {
		logger.Warn().Err(err).Str("level", level).Msg("Unknown log level, using info")
	}
	return logger
}

// Init sets up the global logger on stderr and returns it
func Init(level, format string) zerolog.Logger {
	log.Logger = New(os.Stderr, level, format)
	return log.Logger
}
