// Command floweng is the engine's CLI: run a flow document to
// completion, validate one without executing it, or serve the REST API
// (pkg/api) over HTTP. Grounded on the teacher's cobra-based
// cmd/gcw-emulator entrypoint, rewired from its GCP-emulator flag set
// (project/location/workflows-dir/grpc-port) onto this engine's own
// run/validate/serve surface.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/flowlayer/engine/pkg/api"
	"github.com/flowlayer/engine/pkg/builtins"
	"github.com/flowlayer/engine/pkg/depgraph"
	"github.com/flowlayer/engine/pkg/events"
	"github.com/flowlayer/engine/pkg/executor"
	"github.com/flowlayer/engine/pkg/flowdoc"
	"github.com/flowlayer/engine/pkg/flowlog"
	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/store"
)

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func decodeFlowFile(path, format string) (*flowtypes.Flow, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if format == "" {
		if strings.HasSuffix(path, ".json") {
			format = "json"
		} else {
			format = "yaml"
		}
	}
	if format == "json" {
		return flowdoc.DecodeJSON(data)
	}
	return flowdoc.DecodeYAML(data)
}

func newRunCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "run <flow-file>",
		Short: "Execute a flow document to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := decodeFlowFile(args[0], format)
			if err != nil {
				return err
			}
			if err := flowtypes.ValidateFlow(flow); err != nil {
				return fmt.Errorf("invalid flow: %w", err)
			}

			logger := flowlog.Default()
			registry := builtins.NewRegistry()
			exec := executor.New(flow, executor.Options{
				Dispatch:               registry.Dispatch,
				Logger:                 logger,
				EmitDependencyResolved: true,
			})

			ch := exec.Events()
			done := make(chan struct{})
			go func() {
				defer close(done)
				for ev := range ch {
					printEvent(cmd, ev)
				}
			}()

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runErr := exec.Execute(ctx)
			<-done
			if runErr != nil {
				return fmt.Errorf("run failed: %w", runErr)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", `document format: "yaml" or "json" (default: inferred from extension)`)
	return cmd
}

func printEvent(cmd *cobra.Command, ev events.Event) {
	switch ev.Type {
	case events.FlowStart:
		fmt.Fprintf(cmd.OutOrStdout(), "FLOW_START %s\n", ev.FlowName)
	case events.FlowComplete:
		fmt.Fprintf(cmd.OutOrStdout(), "FLOW_COMPLETE %s status=%s duration=%s\n", ev.FlowName, ev.Status, ev.Duration)
	case events.StepStart:
		fmt.Fprintf(cmd.OutOrStdout(), "  STEP_START %s (%s)\n", ev.StepName, ev.StepKind)
	case events.StepComplete:
		result, _ := json.Marshal(ev.Result.ToGo())
		fmt.Fprintf(cmd.OutOrStdout(), "  STEP_COMPLETE %s -> %s\n", ev.StepName, result)
	case events.StepError:
		fmt.Fprintf(cmd.OutOrStdout(), "  STEP_ERROR %s: %v\n", ev.StepName, ev.Err)
	case events.StepSkip:
		fmt.Fprintf(cmd.OutOrStdout(), "  STEP_SKIP %s: %s\n", ev.StepName, ev.Reason)
	case events.StepProgress:
		fmt.Fprintf(cmd.OutOrStdout(), "  STEP_PROGRESS %s %d/%d (%.0f%%)\n", ev.StepName, ev.Iteration, ev.Total, ev.Percent)
	case events.DependencyResolved:
		fmt.Fprintf(cmd.OutOrStdout(), "DEPENDENCY_RESOLVED %v\n", ev.Order)
	}
}

func newValidateCmd() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "validate <flow-file>",
		Short: "Validate a flow document and print its resolved execution order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			flow, err := decodeFlowFile(args[0], format)
			if err != nil {
				return err
			}
			if err := flowtypes.ValidateFlow(flow); err != nil {
				return fmt.Errorf("invalid flow: %w", err)
			}
			plan, err := depgraph.Plan(flow)
			if err != nil {
				return fmt.Errorf("dependency error: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid, %d step(s)\n", flow.Name, len(flow.Steps))
			for i, step := range plan {
				fmt.Fprintf(cmd.OutOrStdout(), "  %d. %s (%s)\n", i+1, step.Name, step.Kind())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", `document format: "yaml" or "json" (default: inferred from extension)`)
	return cmd
}

func newServeCmd() *cobra.Command {
	var host string
	var port string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the engine's REST API",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := flowlog.Default()
			s := store.New()
			srv := api.New(s, logger)

			addr := fmt.Sprintf("%s:%s", host, port)
			errCh := make(chan error, 1)
			go func() { errCh <- srv.Listen(addr) }()

			logger.Info("serving", "addr", addr)

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			logger.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			done := make(chan struct{})
			go func() { _ = srv.Shutdown(); close(done) }()
			select {
			case <-done:
			case <-shutdownCtx.Done():
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", envOrDefault("FLOWENG_HOST", "0.0.0.0"), "address to bind")
	cmd.Flags().StringVar(&port, "port", envOrDefault("FLOWENG_PORT", "8080"), "port to bind")
	return cmd
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "floweng",
		Short: "A declarative flow execution engine",
	}
	rootCmd.AddCommand(newRunCmd(), newValidateCmd(), newServeCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
