// Package workflows orchestrates the pipeline stages as durable workflows.
// Stages run as activities, so every completed step is memoized by the
// engine; a worker crash resumes the run instead of repeating paid AI calls.
package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/sightline-ai/sightline/internal/discover"
	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/gaps"
	"github.com/sightline-ai/sightline/internal/memo"
	"github.com/sightline-ai/sightline/internal/scan"
	"github.com/sightline-ai/sightline/internal/store"
)

const (
	defaultMaxCycles = 3
	cyclePause       = 30 * time.Second
)

// Register wires every workflow and activity onto a worker.
func Register(w worker.Worker, a *Activities) {
	w.RegisterWorkflowWithOptions(DiscoverWorkflow, workflow.RegisterOptions{Name: events.WorkflowDiscover})
	w.RegisterWorkflowWithOptions(QueryGenerateWorkflow, workflow.RegisterOptions{Name: events.WorkflowQueryGenerate})
	w.RegisterWorkflowWithOptions(ScanWorkflow, workflow.RegisterOptions{Name: events.WorkflowScan})
	w.RegisterWorkflowWithOptions(MemoGenerateWorkflow, workflow.RegisterOptions{Name: events.WorkflowMemoGenerate})
	w.RegisterWorkflowWithOptions(CitationAnalyzeWorkflow, workflow.RegisterOptions{Name: events.WorkflowCitationAnalyze})
	w.RegisterWorkflowWithOptions(CitationLoopWorkflow, workflow.RegisterOptions{Name: events.WorkflowCitationLoop})

	w.RegisterActivity(a.Discover)
	w.RegisterActivity(a.GenerateQueries)
	w.RegisterActivity(a.Scan)
	w.RegisterActivity(a.AnalyzeCitations)
	w.RegisterActivity(a.GenerateMemo)
	w.RegisterActivity(a.SetLoopStatus)
	w.RegisterActivity(a.EmitLoopSummary)
}

func stageOptions(ctx workflow.Context, timeout time.Duration) workflow.Context {
	return workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    2 * time.Minute,
			MaximumAttempts:    3,
		},
	})
}

// DiscoverWorkflow runs entity discovery for one brand.
func DiscoverWorkflow(ctx workflow.Context, in events.CompetitorDiscover) (*discover.Result, error) {
	ctx = stageOptions(ctx, 5*time.Minute)

	var a *Activities
	var res discover.Result
	if err := workflow.ExecuteActivity(ctx, a.Discover, in).Get(ctx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// QueryGenerateWorkflow generates queries for one brand.
func QueryGenerateWorkflow(ctx workflow.Context, in events.QueryGenerate) (*discover.QueryGenResult, error) {
	ctx = stageOptions(ctx, 5*time.Minute)

	var a *Activities
	var res discover.QueryGenResult
	if err := workflow.ExecuteActivity(ctx, a.GenerateQueries, in).Get(ctx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// ScanWorkflow scans every active query for one brand, then fans out one
// analysis per competitor win. A failed analysis loses that win only.
func ScanWorkflow(ctx workflow.Context, in events.ScanRun) (*scan.Summary, error) {
	ctx = stageOptions(ctx, 30*time.Minute)
	logger := workflow.GetLogger(ctx)

	var a *Activities
	var summary scan.Summary
	if err := workflow.ExecuteActivity(ctx, a.Scan, ScanInput{BrandID: in.BrandID}).Get(ctx, &summary); err != nil {
		return nil, err
	}

	for _, id := range summary.WinIDs {
		var res gaps.AnalysisResult
		err := workflow.ExecuteActivity(ctx, a.AnalyzeCitations, AnalyzeInput{
			BrandID:      in.BrandID,
			ScanResultID: id,
		}).Get(ctx, &res)
		if err != nil {
			logger.Warn("analysis failed for scan result", "scan_result_id", id, "error", err)
		}
	}
	return &summary, nil
}

// CitationAnalyzeWorkflow analyzes one scan result.
func CitationAnalyzeWorkflow(ctx workflow.Context, in events.CitationAnalyze) (*gaps.AnalysisResult, error) {
	ctx = stageOptions(ctx, 10*time.Minute)

	var a *Activities
	var res gaps.AnalysisResult
	if err := workflow.ExecuteActivity(ctx, a.AnalyzeCitations, AnalyzeInput{
		BrandID:      in.BrandID,
		ScanResultID: in.ScanResultID,
	}).Get(ctx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// MemoGenerateWorkflow composes a visibility memo.
func MemoGenerateWorkflow(ctx workflow.Context, in events.MemoGenerate) (*memo.Result, error) {
	ctx = stageOptions(ctx, 5*time.Minute)

	var a *Activities
	var res memo.Result
	if err := workflow.ExecuteActivity(ctx, a.GenerateMemo, in).Get(ctx, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CitationLoopWorkflow runs the bounded discover-scan-analyze loop. The
// workflow ID is deterministic per brand, so the engine enforces one loop per
// brand. A stop signal winds the loop down between cycles; the loop always
// posts its batch summary, with reduced counts on partial success.
func CitationLoopWorkflow(ctx workflow.Context, in events.CitationLoopRun) (*LoopSummaryInput, error) {
	ctx = stageOptions(ctx, 30*time.Minute)
	logger := workflow.GetLogger(ctx)

	maxCycles := in.MaxCycles
	if maxCycles <= 0 {
		maxCycles = defaultMaxCycles
	}

	var a *Activities
	summary := LoopSummaryInput{BrandID: in.BrandID}

	statusCtx := stageOptions(ctx, time.Minute)
	if err := workflow.ExecuteActivity(statusCtx, a.SetLoopStatus, LoopStatusInput{
		BrandID: in.BrandID,
		Status:  store.LoopStatusRunning,
	}).Get(ctx, nil); err != nil {
		return nil, err
	}

	stopCh := workflow.GetSignalChannel(ctx, events.SignalStopLoop)
	stopped := false

	for cycle := 0; cycle < maxCycles && !stopped; cycle++ {
		var stop events.CitationLoopStop
		if stopCh.ReceiveAsync(&stop) {
			stopped = true
			break
		}

		var scanSummary scan.Summary
		err := workflow.ExecuteActivity(ctx, a.Scan, ScanInput{
			BrandID:    in.BrandID,
			LoopCapped: true,
		}).Get(ctx, &scanSummary)
		if err != nil {
			logger.Warn("loop cycle scan failed", "cycle", cycle, "error", err)
			break
		}
		summary.Cycles++
		summary.ResultsRecorded += scanSummary.Recorded

		for _, id := range scanSummary.WinIDs {
			var res gaps.AnalysisResult
			err := workflow.ExecuteActivity(ctx, a.AnalyzeCitations, AnalyzeInput{
				BrandID:      in.BrandID,
				ScanResultID: id,
				LoopCapped:   true,
			}).Get(ctx, &res)
			if err != nil {
				logger.Warn("loop cycle analysis failed", "scan_result_id", id, "error", err)
				continue
			}
			summary.GapsCreated += res.GapsCreated
		}

		if cycle < maxCycles-1 {
			// Pause between cycles, interruptible by the stop signal.
			timer := workflow.NewTimer(ctx, cyclePause)
			selector := workflow.NewSelector(ctx)
			selector.AddReceive(stopCh, func(c workflow.ReceiveChannel, _ bool) {
				c.Receive(ctx, &stop)
				stopped = true
			})
			selector.AddFuture(timer, func(workflow.Future) {})
			selector.Select(ctx)
		}
	}
	summary.Stopped = stopped

	if err := workflow.ExecuteActivity(statusCtx, a.EmitLoopSummary, summary).Get(ctx, nil); err != nil {
		logger.Warn("loop summary emission failed", "error", err)
	}

	endStatus := store.LoopStatusIdle
	if stopped {
		endStatus = store.LoopStatusStopped
	}
	if err := workflow.ExecuteActivity(statusCtx, a.SetLoopStatus, LoopStatusInput{
		BrandID: in.BrandID,
		Status:  endStatus,
	}).Get(ctx, nil); err != nil {
		logger.Warn("loop status update failed", "error", err)
	}

	return &summary, nil
}
