package logger

import (
	"io"
	"log/slog"
	"os"

	"github.com/nikkitan/dcpcore/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

func getSLogLevel() slog.Level {
	switch config.Config.LogLevel {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds the default slog.Logger from the loaded configuration.
// When log-file is set, output goes to a size-rotated file instead of stderr.
func New() *slog.Logger {
	var out io.Writer = os.Stderr
	if config.Config.LogFile != "" {
		out = &lumberjack.Logger{
			Filename:   config.Config.LogFile,
			MaxSize:    64, // megabytes
			MaxBackups: 4,
		}
	}
	h := slog.NewTextHandler(out, &slog.HandlerOptions{Level: getSLogLevel()})
	return slog.New(h)
}
