package events

import (
	"context"
	"errors"
	"fmt"

	"github.com/rotisserie/eris"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"
	"go.uber.org/zap"

	"github.com/sightline-ai/sightline/internal/store"
)

// Starter is the slice of the Temporal client the router needs.
type Starter interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow any, args ...any) (client.WorkflowRun, error)
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg any) error
}

// LoopStatusStore is the slice of the store the stop path needs.
type LoopStatusStore interface {
	SetLoopStatus(ctx context.Context, brandID string, status store.LoopStatus) error
}

// Router maps events onto workflow starts. A start accepted by the engine is
// the durable publish; an already-running workflow with the same ID counts as
// delivered.
type Router struct {
	temporal  Starter
	statuses  LoopStatusStore
	taskQueue string
}

// NewRouter creates a Router publishing to the given task queue. statuses may
// be nil; stop events then rely on the loop's own status write.
func NewRouter(temporal Starter, taskQueue string, statuses LoopStatusStore) *Router {
	return &Router{temporal: temporal, statuses: statuses, taskQueue: taskQueue}
}

// Publish routes one event. The workflow ID is deterministic per brand and
// stage, so duplicate publishes of an in-flight trigger coalesce instead of
// fanning out.
func (r *Router) Publish(ctx context.Context, ev Event) error {
	switch e := ev.(type) {
	case CompetitorDiscover:
		return r.start(ctx, fmt.Sprintf("discover-%s", e.BrandID), WorkflowDiscover, e)
	case QueryGenerate:
		return r.start(ctx, fmt.Sprintf("query-generate-%s", e.BrandID), WorkflowQueryGenerate, e)
	case ScanRun:
		return r.start(ctx, fmt.Sprintf("scan-%s", e.BrandID), WorkflowScan, e)
	case MemoGenerate:
		return r.start(ctx, fmt.Sprintf("memo-%s", e.BrandID), WorkflowMemoGenerate, e)
	case CitationLoopRun:
		return r.start(ctx, LoopWorkflowID(e.BrandID), WorkflowCitationLoop, e)
	case CitationAnalyze:
		return r.start(ctx, fmt.Sprintf("citation-analyze-%s", e.ScanResultID), WorkflowCitationAnalyze, e)
	case CitationLoopStop:
		return r.stopLoop(ctx, e)
	default:
		return eris.Errorf("events: unroutable event type %T", ev)
	}
}

// LoopWorkflowID is the deterministic workflow ID of a brand's citation loop.
// One loop per brand at a time falls out of workflow ID uniqueness.
func LoopWorkflowID(brandID string) string {
	return fmt.Sprintf("citation-loop-%s", brandID)
}

func (r *Router) start(ctx context.Context, workflowID, workflowName string, arg Event) error {
	opts := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: r.taskQueue,
	}
	_, err := r.temporal.ExecuteWorkflow(ctx, opts, workflowName, arg)
	if err != nil {
		var already *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &already) {
			zap.L().Info("events: trigger coalesced with running workflow",
				zap.String("event", arg.EventName()),
				zap.String("workflow_id", workflowID),
			)
			return nil
		}
		return eris.Wrapf(err, "events: publish %s", arg.EventName())
	}

	zap.L().Debug("events: published",
		zap.String("event", arg.EventName()),
		zap.String("workflow_id", workflowID),
	)
	return nil
}

func (r *Router) stopLoop(ctx context.Context, e CitationLoopStop) error {
	err := r.temporal.SignalWorkflow(ctx, LoopWorkflowID(e.BrandID), "", SignalStopLoop, e)
	if err != nil {
		var notFound *serviceerror.NotFound
		if errors.As(err, &notFound) {
			zap.L().Info("events: stop signal with no running loop",
				zap.String("brand_id", e.BrandID),
			)
			return nil
		}
		return eris.Wrapf(err, "events: signal stop loop %s", e.BrandID)
	}

	// The loop only writes its own status between cycles, which can lag a
	// full scan activity. Flip it here too so a concurrent status read sees
	// the stop right away; the loop's final write converges to the same
	// value.
	if r.statuses != nil {
		if err := r.statuses.SetLoopStatus(ctx, e.BrandID, store.LoopStatusStopped); err != nil {
			zap.L().Warn("events: loop status flip failed",
				zap.String("brand_id", e.BrandID),
				zap.Error(err),
			)
		}
	}
	return nil
}
