// Package logging sets up the secure shell's log sink: a rotating
// file at Config.LogFile, rolling at Config.LogRotateSize rounded up
// to a whole MiB (lumberjack sizes files in megabytes, so a threshold
// below or between whole MiB is not honoured exactly) and retaining 3
// generations, with the line format
// "[YYYY-MM-DD HH:MM:SS.mmm] [LEVEL] message".
//
// The original secure_shell.cpp uses spdlog's rotating_logger_mt with
// pattern "[%Y-%m-%d %H:%M:%S.%e] [%l] %v". No example repo in the
// pack ships a rotating sink (bureau-foundation-bureau's
// cli.NewCommandLogger picks a slog.Handler but writes straight to
// stderr with no rotation), so this pairs log/slog with
// gopkg.in/natefinch/lumberjack.v2 as the rotating io.Writer.
package logging

import (
	"context"
	"fmt"
	"log/slog"

	"gopkg.in/natefinch/lumberjack.v2"
)

// New opens a rotating file logger. The caller is responsible for the
// returned io.Closer-like lifecycle: lumberjack.Logger rotates on
// write, so there is nothing to flush explicitly on clean shutdown.
func New(path string, rotateSizeBytes, retainCount int) (*slog.Logger, *lumberjack.Logger, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("log path must not be empty")
	}

	sink := &lumberjack.Logger{
		Filename: path,
		MaxSize:  maxSizeMB(rotateSizeBytes),
		MaxBackups: retainCount,
		Compress:   false,
	}

	handler := &lineHandler{w: sink, level: slog.LevelInfo}
	return slog.New(handler), sink, nil
}

// maxSizeMB converts a byte threshold to the megabyte granularity
// lumberjack.Logger.MaxSize expects, rounding up so a configured
// LogRotateSize of e.g. 1048576 (1 MiB) rotates at roughly that size
// rather than being truncated to zero.
func maxSizeMB(bytes int) int {
	const mib = 1024 * 1024
	mb := (bytes + mib - 1) / mib
	if mb < 1 {
		mb = 1
	}
	return mb
}

// lineHandler is a minimal slog.Handler emitting exactly
// "[YYYY-MM-DD HH:MM:SS.mmm] [LEVEL] message" per record, matching
// the original's spdlog pattern. It ignores structured attributes
// beyond formatting them inline, since the secure shell's log
// consumers expect this fixed line shape, not JSON.
type lineHandler struct {
	w     *lumberjack.Logger
	level slog.Level
	attrs []slog.Attr
}

func (h *lineHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *lineHandler) Handle(_ context.Context, r slog.Record) error {
	msg := r.Message
	r.Attrs(func(a slog.Attr) bool {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
		return true
	})
	for _, a := range h.attrs {
		msg += fmt.Sprintf(" %s=%v", a.Key, a.Value)
	}

	line := fmt.Sprintf("[%s] [%s] %s\n",
		r.Time.Format("2006-01-02 15:04:05.000"),
		levelName(r.Level),
		msg)

	_, err := h.w.Write([]byte(line))
	return err
}

func (h *lineHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &lineHandler{w: h.w, level: h.level}
	next.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return next
}

func (h *lineHandler) WithGroup(_ string) slog.Handler {
	return h
}

func levelName(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "ERROR"
	case l >= slog.LevelWarn:
		return "WARN"
	case l >= slog.LevelInfo:
		return "INFO"
	default:
		return "DEBUG"
	}
}
