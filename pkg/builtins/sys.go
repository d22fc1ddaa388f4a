package builtins

import (
	"context"
	"fmt"
	"os"
	"time"

	charmlog "github.com/charmbracelet/log"

	"github.com/flowlayer/engine/pkg/flowtypes"
)

func (r *Registry) registerSys() {
	r.Register("sys.get_env", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		name, err := stringArg(params, "name")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("sys.get_env: %w", err)
		}
		val, ok := os.LookupEnv(name)
		if !ok {
			if def, ok := arg(params, "default"); ok {
				return def, nil
			}
			return flowtypes.Null, fmt.Errorf("sys.get_env: environment variable %q not set", name)
		}
		return flowtypes.String(val), nil
	})

	r.Register("sys.now", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		return flowtypes.Number(float64(time.Now().UnixMilli())), nil
	})

	r.Register("sys.sleep", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		ms := numArg(params, "ms", 0)
		select {
		case <-time.After(time.Duration(ms) * time.Millisecond):
			return flowtypes.Null, nil
		case <-ctx.Done():
			return flowtypes.Null, ctx.Err()
		}
	})

	// sysLogger writes to stderr independently of a run's own injected
	// flowtypes.Logger, since a request step's dispatch call has no
	// direct line to the executor's scoped logger -- this is a
	// standalone diagnostic sink, not the flow's structured run log.
	sysLogger := charmlog.NewWithOptions(os.Stderr, charmlog.Options{Prefix: "sys.log"})
	r.Register("sys.log", func(ctx context.Context, params flowtypes.Value) (flowtypes.Value, error) {
		text, err := stringArg(params, "text")
		if err != nil {
			return flowtypes.Null, fmt.Errorf("sys.log: %w", err)
		}
		severity := optStringArg(params, "severity", "INFO")
		switch severity {
		case "DEBUG":
			sysLogger.Debug(text)
		case "WARNING":
			sysLogger.Warn(text)
		case "ERROR", "CRITICAL":
			sysLogger.Error(text)
		default:
			sysLogger.Info(text)
		}
		return flowtypes.Null, nil
	})
}
