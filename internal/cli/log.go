// Package cli implements the classpath command-line interface.
//
// The commands resolve Maven coordinates or a project descriptor into a
// classpath, print and browse dependency trees, export them as graphs,
// inspect descriptors, manage the metadata cache and settings, and serve a
// local repository over HTTP. The CLI is built with cobra; output is styled
// with lipgloss and diagnostics go through charmbracelet/log.
//
// # Commands
//
//   - resolve: print the classpath of coordinates or a pom.xml
//   - tree: print the dependency tree, or browse it with -i
//   - latest: print the newest version matching a coordinate
//   - pom: show identity, dependencies and repositories of a pom.xml
//   - graph: export the dependency graph as DOT or SVG
//   - cache: locate or clear the metadata cache
//   - config: show or initialize the settings file
//   - serve: serve the local repository, with Prometheus metrics
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. Loggers are
// passed through context.Context.
package cli

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// newLogger creates a logger writing to w at level, with "15:04:05.00"
// timestamps.
func newLogger(w io.Writer, level log.Level) *log.Logger {
	return log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      "15:04:05.00",
		Level:           level,
	})
}

// progress measures one phase of a command, such as a resolution, and logs
// its outcome with the elapsed time.
type progress struct {
	logger *log.Logger
	phase  string
	start  time.Time
}

func newProgress(l *log.Logger, phase string) *progress {
	return &progress{logger: l, phase: phase, start: time.Now()}
}

func (p *progress) elapsed() time.Duration {
	return time.Since(p.start).Round(time.Millisecond)
}

// done logs a completed phase at info level.
func (p *progress) done(msg string, keyvals ...any) {
	p.logger.Info(msg, append(keyvals, "elapsed", p.elapsed())...)
}

// fail logs a failed phase at debug level; the error itself is reported by
// the command.
func (p *progress) fail(err error) {
	p.logger.Debug(p.phase+" failed", "err", err, "elapsed", p.elapsed())
}

type ctxKey int

const loggerKey ctxKey = 0

// withLogger attaches l to ctx.
func withLogger(ctx context.Context, l *log.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// loggerFromContext returns the logger attached to ctx, or log.Default().
func loggerFromContext(ctx context.Context) *log.Logger {
	if l, ok := ctx.Value(loggerKey).(*log.Logger); ok {
		return l
	}
	return log.Default()
}
