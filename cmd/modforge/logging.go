// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"

	"github.com/charmbracelet/log"
)

type (
	loggerContextKey  struct{}
	verboseContextKey struct{}
)

// newLogger builds the CLI logger. Verbose output forces debug level.
func newLogger(w io.Writer, level log.Level, verbose bool) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Prefix:          "modforge",
	})
	if verbose {
		level = log.DebugLevel
	}
	l.SetLevel(level)
	return l
}

func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerContextKey{}, l)
}

// loggerFromContext returns the invocation logger, or a discarding one.
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerContextKey{}).(*log.Logger); ok {
		return l
	}
	return log.New(io.Discard)
}

func withVerbose(ctx context.Context, verbose bool) context.Context {
	return context.WithValue(ctx, verboseContextKey{}, verbose)
}

func verboseFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(verboseContextKey{}).(bool)
	return v
}
