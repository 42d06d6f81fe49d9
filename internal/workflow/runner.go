// Package workflow wraps pipeline actions in durable runs: a run row, an
// ordered event trail, and metrics. Each workflow tries the orchestrator
// first and degrades to the local implementation; both paths are normal
// outcomes, not exceptions.
package workflow

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/grantline/proposal-cli/internal/model"
	"github.com/grantline/proposal-cli/internal/resilience"
	"github.com/grantline/proposal-cli/internal/store"
	"github.com/grantline/proposal-cli/pkg/agents"
)

// ErrRunActive is returned when a project already has a non-terminal run.
// The new request is rejected before any state is touched.
var ErrRunActive = eris.New("workflow: a run is already active for this project")

// Via says which execution path produced the result.
type Via string

const (
	ViaOrchestrator Via = "orchestrator"
	ViaFallback     Via = "fallback"
)

// Action is the local implementation of a workflow.
type Action func(ctx context.Context) (json.RawMessage, error)

// Outcome is the result of one executed workflow.
type Outcome struct {
	Run    *model.WorkflowRun `json:"run"`
	Via    Via                `json:"via"`
	Result json.RawMessage    `json:"result,omitempty"`
}

// Runner executes workflows. A nil orchestrator client means every run takes
// the fallback path. A circuit breaker guards the orchestrator so a flapping
// service stops costing a timeout per run.
type Runner struct {
	st      store.Store
	agents  agents.Client
	breaker *resilience.CircuitBreaker
}

// New creates a Runner.
func New(st store.Store, agentsClient agents.Client) *Runner {
	cfg := resilience.DefaultCircuitBreakerConfig()
	cfg.OnStateChange = func(from, to resilience.CircuitState) {
		zap.L().Warn("orchestrator circuit state changed",
			zap.String("from", from.String()),
			zap.String("to", to.String()),
		)
	}
	return &Runner{st: st, agents: agentsClient, breaker: resilience.NewCircuitBreaker(cfg)}
}

// Execute runs one workflow for a project. At most one non-terminal run may
// exist per project: a second request is rejected with ErrRunActive and no
// run row is created. The orchestrator is tried first when configured; its
// failure is recorded as an event and the local fallback runs instead.
func (r *Runner) Execute(ctx context.Context, projectID, workflowID string, input json.RawMessage, fallback Action) (*Outcome, error) {
	active, err := r.st.ActiveRun(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if active != nil {
		return nil, eris.Wrapf(ErrRunActive, "run %s", active.ID)
	}

	run, err := r.st.CreateRun(ctx, projectID, workflowID, input)
	if err != nil {
		return nil, err
	}
	start := time.Now()

	via := ViaFallback
	var result json.RawMessage

	if r.agents != nil {
		res, toolErr := resilience.ExecuteVal(ctx, r.breaker, func(ctx context.Context) (*agents.ToolResult, error) {
			return r.agents.RunTool(ctx, agents.ToolRequest{
				Tool:      workflowID,
				ProjectID: projectID,
				Input:     input,
			})
		})
		if toolErr == nil {
			via = ViaOrchestrator
			result = res.Output
			r.event(ctx, run.ID, model.EventToolResult, map[string]any{"tool": workflowID})
		} else {
			r.event(ctx, run.ID, model.EventToolError, map[string]any{
				"tool":  workflowID,
				"error": toolErr.Error(),
			})
			zap.L().Warn("workflow: orchestrator failed, taking fallback",
				zap.String("run_id", run.ID),
				zap.String("workflow", workflowID),
				zap.Error(toolErr),
			)
		}
	}

	if via == ViaFallback {
		r.event(ctx, run.ID, model.EventToolFallback, map[string]any{"tool": workflowID})
		result, err = fallback(ctx)
		if err != nil {
			r.event(ctx, run.ID, model.EventMetricFailed, nil)
			r.metricDuration(ctx, run.ID, start)
			if cErr := r.st.CompleteRun(ctx, run.ID, model.RunStatusFailed, nil, err.Error()); cErr != nil {
				zap.L().Error("workflow: complete run failed", zap.String("run_id", run.ID), zap.Error(cErr))
			}
			return nil, eris.Wrapf(err, "workflow %s", workflowID)
		}
	}

	r.metricDuration(ctx, run.ID, start)
	r.event(ctx, run.ID, model.EventMetricCompleted, nil)

	status := model.RunStatusSucceeded
	if via == ViaFallback {
		status = model.RunStatusSucceededFallback
	}
	if err := r.st.CompleteRun(ctx, run.ID, status, result, ""); err != nil {
		return nil, err
	}

	done, err := r.st.GetRun(ctx, run.ID)
	if err != nil {
		return nil, err
	}
	zap.L().Info("workflow completed",
		zap.String("run_id", run.ID),
		zap.String("workflow", workflowID),
		zap.String("status", string(status)),
		zap.String("via", string(via)),
	)
	return &Outcome{Run: done, Via: via, Result: result}, nil
}

func (r *Runner) event(ctx context.Context, runID string, typ model.RunEventType, payload map[string]any) {
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	if _, err := r.st.AppendRunEvent(ctx, runID, typ, raw); err != nil {
		zap.L().Error("workflow: append event failed",
			zap.String("run_id", runID),
			zap.String("type", string(typ)),
			zap.Error(err),
		)
	}
}

func (r *Runner) metricDuration(ctx context.Context, runID string, start time.Time) {
	r.event(ctx, runID, model.EventMetricDuration, map[string]any{
		"ms": time.Since(start).Milliseconds(),
	})
}
