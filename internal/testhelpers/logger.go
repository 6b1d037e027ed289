// Package testhelpers contains test scaffolding shared across packages.
package testhelpers

import (
	"io"
	"log/slog"

	"github.com/myrjola/liftscore/internal/logging"
)

// NewLogger creates a debug level logger writing to logSink such as [NewWriter].
func NewLogger(logSink io.Writer) *slog.Logger {
	return logging.NewLogger(logSink, slog.LevelDebug)
}
