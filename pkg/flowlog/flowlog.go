// Package flowlog supplies the concrete injected Logger capability the
// core packages depend on only through flowtypes.Logger (spec §1: "the
// logger is an injected capability with level methods and nesting").
// It wraps github.com/charmbracelet/log, the leveled/nestable logger
// used for this exact role elsewhere in the example pack.
package flowlog

import (
	"io"
	"os"

	"github.com/charmbracelet/log"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

// charmLogger adapts *log.Logger to flowtypes.Logger. kv pairs are
// passed straight through to charmbracelet/log's structured fields.
type charmLogger struct {
	l *log.Logger
}

// New builds a Logger writing leveled, timestamped output to w.
func New(w io.Writer, level log.Level) flowtypes.Logger {
	l := log.NewWithOptions(w, log.Options{
		Level:           level,
		ReportTimestamp: true,
	})
	return &charmLogger{l: l}
}

// Default builds a Logger writing to stderr at info level, the engine's
// out-of-the-box choice for cmd/floweng and pkg/api.
func Default() flowtypes.Logger {
	return New(os.Stderr, log.InfoLevel)
}

func (c *charmLogger) Debug(msg string, kv ...interface{}) { c.l.Debug(msg, kv...) }
func (c *charmLogger) Info(msg string, kv ...interface{})  { c.l.Info(msg, kv...) }
func (c *charmLogger) Warn(msg string, kv ...interface{})  { c.l.Warn(msg, kv...) }
func (c *charmLogger) Error(msg string, kv ...interface{}) { c.l.Error(msg, kv...) }

// With returns a nested logger: every message it logs is prefixed with
// kv, the "nesting" half of the spec's injected-capability requirement.
// The flow executor uses this to scope a logger to one run (flow name,
// run ID).
func (c *charmLogger) With(kv ...interface{}) flowtypes.Logger {
	return &charmLogger{l: c.l.With(kv...)}
}

// Nop is a Logger that discards everything, used by tests and by any
// caller that does not want the engine's log output.
var Nop flowtypes.Logger = &charmLogger{l: log.NewWithOptions(io.Discard, log.Options{})}
