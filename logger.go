package main

import (
	"io"
	"log/slog"
)

// NewLogger writes JSON records at or above level to w, tagged with the app
// name so they can be picked out of a shared terminal or journal.
func NewLogger(w io.Writer, level slog.Leveler) *slog.Logger {
	h := slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("app", "frontcam")
}
