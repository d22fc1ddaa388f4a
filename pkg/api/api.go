// Package api implements the engine's REST surface: submit a flow
// document, start a run, stream its event bus over SSE, and
// cancel/pause/resume an in-flight run. Grounded on the teacher's fiber
// server (route table shape, fiber.Map error envelopes) rewired from
// the GCP Workflows/Executions resource model onto flows and runs.
package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/flowlayer/engine/pkg/builtins"
	"github.com/flowlayer/engine/pkg/events"
	"github.com/flowlayer/engine/pkg/executor"
	"github.com/flowlayer/engine/pkg/flowdoc"
	"github.com/flowlayer/engine/pkg/flowtypes"
	"github.com/flowlayer/engine/pkg/store"
)

// Server is the engine's HTTP API.
type Server struct {
	app      *fiber.App
	store    *store.Store
	registry *builtins.Registry
	logger   flowtypes.Logger

	mu           sync.Mutex
	broadcasters map[string]*eventBroadcaster // run name -> live SSE fan-out
}

// New builds a Server backed by s, dispatching request steps to the
// default builtins.Registry.
func New(s *store.Store, logger flowtypes.Logger) *Server {
	srv := &Server{
		store:        s,
		registry:     builtins.NewRegistry(),
		logger:       logger,
		broadcasters: make(map[string]*eventBroadcaster),
	}

	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          0, // SSE connections are long-lived
	})

	app.Post("/v1/flows", srv.createFlow)
	app.Get("/v1/flows", srv.listFlows)
	app.Get("/v1/flows/:flow", srv.getFlow)
	app.Delete("/v1/flows/:flow", srv.deleteFlow)

	app.Post("/v1/flows/:flow/runs", srv.startRun)
	app.Get("/v1/flows/:flow/runs", srv.listRuns)
	app.Get("/v1/flows/:flow/runs/:run", srv.getRun)
	app.Get("/v1/flows/:flow/runs/:run/events", srv.streamRunEvents)
	app.Post("/v1/flows/:flow/runs/:run\\:cancel", srv.cancelRun)
	app.Post("/v1/flows/:flow/runs/:run\\:pause", srv.pauseRun)
	app.Post("/v1/flows/:flow/runs/:run\\:resume", srv.resumeRun)

	srv.app = app
	return srv
}

// Listen starts the HTTP server on addr.
func (s *Server) Listen(addr string) error { return s.app.Listen(addr) }

// Shutdown gracefully stops the server.
func (s *Server) Shutdown() error { return s.app.Shutdown() }

// App exposes the underlying fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

func errorJSON(code int, status, msg string) fiber.Map {
	return fiber.Map{"error": fiber.Map{"code": code, "message": msg, "status": status}}
}

func (s *Server) createFlow(c *fiber.Ctx) error {
	name := c.Query("name")
	if name == "" {
		return c.Status(400).JSON(errorJSON(400, "INVALID_ARGUMENT", "name query parameter is required"))
	}

	body := c.Body()
	var (
		flow *flowtypes.Flow
		err  error
	)
	if c.Query("format") == "json" {
		flow, err = flowdoc.DecodeJSON(body)
	} else {
		flow, err = flowdoc.DecodeYAML(body)
	}
	if err != nil {
		return c.Status(400).JSON(errorJSON(400, "INVALID_ARGUMENT", fmt.Sprintf("invalid flow document: %v", err)))
	}
	if err := flowtypes.ValidateFlow(flow); err != nil {
		return c.Status(400).JSON(errorJSON(400, "INVALID_ARGUMENT", err.Error()))
	}

	rec := s.store.PutFlow(name, flow, body, flow.Description)
	return c.Status(200).JSON(flowToJSON(rec))
}

func (s *Server) getFlow(c *fiber.Ctx) error {
	rec, err := s.store.GetFlow(c.Params("flow"))
	if err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}
	return c.JSON(flowToJSON(rec))
}

func (s *Server) listFlows(c *fiber.Ctx) error {
	recs := s.store.ListFlows()
	items := make([]fiber.Map, len(recs))
	for i, rec := range recs {
		items[i] = flowToJSON(rec)
	}
	return c.JSON(fiber.Map{"flows": items})
}

func (s *Server) deleteFlow(c *fiber.Ctx) error {
	if err := s.store.DeleteFlow(c.Params("flow")); err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}
	return c.JSON(fiber.Map{"name": c.Params("flow"), "done": true})
}

type startRunRequest struct {
	Metadata map[string]interface{} `json:"metadata"`
}

func (s *Server) startRun(c *fiber.Ctx) error {
	flowName := c.Params("flow")
	rec, err := s.store.GetFlow(flowName)
	if err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}

	var req startRunRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(errorJSON(400, "INVALID_ARGUMENT", fmt.Sprintf("invalid request body: %v", err)))
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	exec := executor.New(rec.Flow, executor.Options{
		Dispatch:               s.registry.Dispatch,
		Logger:                 s.logger,
		EmitDependencyResolved: true,
		Metadata:               req.Metadata,
	})

	runRec := s.store.NewRun(flowName, exec, cancel)

	broadcaster := newEventBroadcaster()
	s.mu.Lock()
	s.broadcasters[runRec.Name] = broadcaster
	s.mu.Unlock()

	go s.runFlow(runCtx, runRec, exec, broadcaster)

	return c.Status(200).JSON(runToJSON(runRec))
}

// runFlow drains the run's event bus into broadcaster so streamRunEvents
// can fan it out to any number of SSE clients, and records the terminal
// outcome in the store once Execute returns.
func (s *Server) runFlow(ctx context.Context, rec *store.RunRecord, exec *executor.Executor, broadcaster *eventBroadcaster) {
	ch := exec.Events()

	var lastResult flowtypes.Value
	status := events.StatusComplete
	done := make(chan struct{})
	go func() {
		defer close(done)
		for ev := range ch {
			switch ev.Type {
			case events.StepComplete:
				lastResult = ev.Result
			case events.FlowComplete:
				status = ev.Status
			}
			broadcaster.publish(ev)
		}
	}()

	runErr := exec.Execute(ctx)
	<-done
	broadcaster.close()

	s.mu.Lock()
	delete(s.broadcasters, rec.Name)
	s.mu.Unlock()

	if runErr != nil && status == events.StatusComplete {
		status = events.StatusError
	}
	_ = s.store.FinishRun(rec.Name, status, lastResult, runErr)
}

// streamRunEvents serves the run's event bus as Server-Sent Events,
// letting multiple clients watch one run concurrently (spec SPEC_FULL.md
// §4: "SSE streaming over REST"). If the run has already finished, no
// broadcaster remains and the handler replies 404 -- the REST resource
// for a finished run's final state is GET .../runs/:run, not the stream.
func (s *Server) streamRunEvents(c *fiber.Ctx) error {
	name := fmt.Sprintf("%s/runs/%s", c.Params("flow"), c.Params("run"))
	s.mu.Lock()
	broadcaster, ok := s.broadcasters[name]
	s.mu.Unlock()
	if !ok {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", fmt.Sprintf("run %q has no active event stream", name)))
	}

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")

	sub := broadcaster.subscribe()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer broadcaster.unsubscribe(sub)
		for ev := range sub {
			payload, err := json.Marshal(eventToJSON(ev))
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload)
			if err := w.Flush(); err != nil {
				return
			}
		}
	})
	return nil
}

func eventToJSON(ev events.Event) fiber.Map {
	m := fiber.Map{"type": string(ev.Type), "timestamp": ev.Timestamp.UTC().Format(time.RFC3339Nano)}
	if ev.FlowName != "" {
		m["flowName"] = ev.FlowName
	}
	if ev.Status != "" {
		m["status"] = string(ev.Status)
	}
	if ev.Duration > 0 {
		m["durationMs"] = ev.Duration.Milliseconds()
	}
	if ev.Err != nil {
		m["error"] = ev.Err.Error()
	}
	if ev.Reason != "" {
		m["reason"] = ev.Reason
	}
	if ev.Order != nil {
		m["order"] = ev.Order
	}
	if ev.StepName != "" {
		m["stepName"] = ev.StepName
	}
	if ev.StepKind != "" {
		m["stepKind"] = ev.StepKind
	}
	if ev.Type == events.StepComplete {
		m["result"] = ev.Result.ToGo()
	}
	if ev.Type == events.StepProgress {
		m["iteration"] = ev.Iteration
		m["total"] = ev.Total
		m["percent"] = ev.Percent
	}
	return m
}

func (s *Server) getRun(c *fiber.Ctx) error {
	rec, err := s.findRun(c)
	if err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}
	return c.JSON(runToJSON(rec))
}

func (s *Server) listRuns(c *fiber.Ctx) error {
	recs := s.store.ListRuns(c.Params("flow"))
	items := make([]fiber.Map, len(recs))
	for i, rec := range recs {
		items[i] = runToJSON(rec)
	}
	return c.JSON(fiber.Map{"runs": items})
}

func (s *Server) cancelRun(c *fiber.Ctx) error {
	rec, err := s.findRun(c)
	if err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}
	if err := s.store.CancelRun(rec.Name); err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}
	return c.JSON(fiber.Map{"name": rec.Name, "done": false})
}

func (s *Server) pauseRun(c *fiber.Ctx) error {
	rec, err := s.findRun(c)
	if err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}
	rec.Executor.Pause()
	return c.JSON(fiber.Map{"name": rec.Name})
}

func (s *Server) resumeRun(c *fiber.Ctx) error {
	rec, err := s.findRun(c)
	if err != nil {
		return c.Status(404).JSON(errorJSON(404, "NOT_FOUND", err.Error()))
	}
	rec.Executor.Resume()
	return c.JSON(fiber.Map{"name": rec.Name})
}

func (s *Server) findRun(c *fiber.Ctx) (*store.RunRecord, error) {
	name := fmt.Sprintf("%s/runs/%s", c.Params("flow"), c.Params("run"))
	return s.store.GetRun(name)
}

func flowToJSON(rec *store.FlowRecord) fiber.Map {
	return fiber.Map{
		"name":        rec.Name,
		"description": rec.Description,
		"revision":    rec.Revision,
		"createTime":  rec.CreateTime.UTC().Format(time.RFC3339),
		"updateTime":  rec.UpdateTime.UTC().Format(time.RFC3339),
	}
}

func runToJSON(rec *store.RunRecord) fiber.Map {
	m := fiber.Map{
		"name":      rec.Name,
		"flow":      rec.FlowName,
		"state":     rec.State,
		"startTime": rec.StartTime.UTC().Format(time.RFC3339),
	}
	if !rec.EndTime.IsZero() {
		m["endTime"] = rec.EndTime.UTC().Format(time.RFC3339)
	}
	if rec.Err != nil {
		m["error"] = rec.Err.Error()
	} else if !rec.Result.IsNull() {
		m["result"] = rec.Result.ToGo()
	}
	return m
}
