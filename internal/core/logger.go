// AngelaMos | 2026
// logger.go

package core

import (
	"io"
	"log/slog"

	"github.com/carterperez-dev/bibliotech/internal/config"
)

// NewLogger builds the process logger. Unknown levels fall back to info
// and any format other than "text" writes JSON.
func NewLogger(cfg config.LogConfig, w io.Writer, addSource bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level, AddSource: addSource}
	if cfg.Format == "text" {
		return slog.New(slog.NewTextHandler(w, opts))
	}
	return slog.New(slog.NewJSONHandler(w, opts))
}
