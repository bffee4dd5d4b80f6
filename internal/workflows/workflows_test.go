package workflows

import (
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/testsuite"
	"go.temporal.io/sdk/workflow"

	"github.com/sightline-ai/sightline/internal/discover"
	"github.com/sightline-ai/sightline/internal/events"
	"github.com/sightline-ai/sightline/internal/gaps"
	"github.com/sightline-ai/sightline/internal/scan"
	"github.com/sightline-ai/sightline/internal/store"
)

func newTestEnv(t *testing.T) *testsuite.TestWorkflowEnvironment {
	t.Helper()
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflowWithOptions(DiscoverWorkflow, workflow.RegisterOptions{Name: events.WorkflowDiscover})
	env.RegisterWorkflowWithOptions(QueryGenerateWorkflow, workflow.RegisterOptions{Name: events.WorkflowQueryGenerate})
	env.RegisterWorkflowWithOptions(ScanWorkflow, workflow.RegisterOptions{Name: events.WorkflowScan})
	env.RegisterWorkflowWithOptions(CitationAnalyzeWorkflow, workflow.RegisterOptions{Name: events.WorkflowCitationAnalyze})
	env.RegisterWorkflowWithOptions(CitationLoopWorkflow, workflow.RegisterOptions{Name: events.WorkflowCitationLoop})
	return env
}

func TestDiscoverWorkflow(t *testing.T) {
	env := newTestEnv(t)
	var a *Activities

	env.OnActivity(a.Discover, mock.Anything, events.CompetitorDiscover{BrandID: "b1"}).
		Return(&discover.Result{BrandID: "b1", Persisted: 3, Filtered: 1}, nil)

	env.ExecuteWorkflow(DiscoverWorkflow, events.CompetitorDiscover{BrandID: "b1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var res discover.Result
	require.NoError(t, env.GetWorkflowResult(&res))
	assert.Equal(t, 3, res.Persisted)
	env.AssertExpectations(t)
}

func TestScanWorkflow_FansOutAnalysesPerWin(t *testing.T) {
	env := newTestEnv(t)
	var a *Activities

	env.OnActivity(a.Scan, mock.Anything, ScanInput{BrandID: "b1"}).
		Return(&scan.Summary{Recorded: 4, Wins: 2, WinIDs: []string{"sr1", "sr2"}}, nil)
	env.OnActivity(a.AnalyzeCitations, mock.Anything, AnalyzeInput{BrandID: "b1", ScanResultID: "sr1"}).
		Return(&gaps.AnalysisResult{GapsCreated: 1}, nil)
	// One failed analysis loses that win only.
	env.OnActivity(a.AnalyzeCitations, mock.Anything, AnalyzeInput{BrandID: "b1", ScanResultID: "sr2"}).
		Return(nil, eris.New("model unavailable"))

	env.ExecuteWorkflow(ScanWorkflow, events.ScanRun{BrandID: "b1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary scan.Summary
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Equal(t, 4, summary.Recorded)
	env.AssertExpectations(t)
}

func TestCitationAnalyzeWorkflow(t *testing.T) {
	env := newTestEnv(t)
	var a *Activities

	env.OnActivity(a.AnalyzeCitations, mock.Anything, AnalyzeInput{BrandID: "b1", ScanResultID: "sr1"}).
		Return(&gaps.AnalysisResult{ScanResultID: "sr1", Wins: 1, GapsCreated: 1}, nil)

	env.ExecuteWorkflow(CitationAnalyzeWorkflow, events.CitationAnalyze{BrandID: "b1", ScanResultID: "sr1"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestCitationLoopWorkflow_RunsBoundedCycles(t *testing.T) {
	env := newTestEnv(t)
	var a *Activities

	env.OnActivity(a.SetLoopStatus, mock.Anything, LoopStatusInput{BrandID: "b1", Status: store.LoopStatusRunning}).
		Return(nil).Once()
	env.OnActivity(a.Scan, mock.Anything, ScanInput{BrandID: "b1", LoopCapped: true}).
		Return(&scan.Summary{Recorded: 2, Wins: 1, WinIDs: []string{"sr1"}}, nil).Twice()
	env.OnActivity(a.AnalyzeCitations, mock.Anything, AnalyzeInput{BrandID: "b1", ScanResultID: "sr1", LoopCapped: true}).
		Return(&gaps.AnalysisResult{GapsCreated: 1}, nil).Twice()
	env.OnActivity(a.EmitLoopSummary, mock.Anything, LoopSummaryInput{
		BrandID:         "b1",
		Cycles:          2,
		ResultsRecorded: 4,
		GapsCreated:     2,
	}).Return(nil).Once()
	env.OnActivity(a.SetLoopStatus, mock.Anything, LoopStatusInput{BrandID: "b1", Status: store.LoopStatusIdle}).
		Return(nil).Once()

	env.ExecuteWorkflow(CitationLoopWorkflow, events.CitationLoopRun{BrandID: "b1", MaxCycles: 2})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary LoopSummaryInput
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Equal(t, 2, summary.Cycles)
	assert.False(t, summary.Stopped)
	env.AssertExpectations(t)
}

func TestCitationLoopWorkflow_StopSignalEndsBetweenCycles(t *testing.T) {
	env := newTestEnv(t)
	var a *Activities

	env.OnActivity(a.SetLoopStatus, mock.Anything, LoopStatusInput{BrandID: "b1", Status: store.LoopStatusRunning}).
		Return(nil).Once()
	env.OnActivity(a.Scan, mock.Anything, ScanInput{BrandID: "b1", LoopCapped: true}).
		Return(&scan.Summary{Recorded: 2}, nil).Once()
	env.OnActivity(a.EmitLoopSummary, mock.Anything, LoopSummaryInput{
		BrandID:         "b1",
		Cycles:          1,
		ResultsRecorded: 2,
		Stopped:         true,
	}).Return(nil).Once()
	env.OnActivity(a.SetLoopStatus, mock.Anything, LoopStatusInput{BrandID: "b1", Status: store.LoopStatusStopped}).
		Return(nil).Once()

	// Arrives during the pause after the first cycle.
	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(events.SignalStopLoop, events.CitationLoopStop{BrandID: "b1"})
	}, 5*time.Second)

	env.ExecuteWorkflow(CitationLoopWorkflow, events.CitationLoopRun{BrandID: "b1", MaxCycles: 3})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary LoopSummaryInput
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Equal(t, 1, summary.Cycles)
	assert.True(t, summary.Stopped)
	env.AssertExpectations(t)
}

func TestCitationLoopWorkflow_ScanFailureIsPartialSuccess(t *testing.T) {
	env := newTestEnv(t)
	var a *Activities

	env.OnActivity(a.SetLoopStatus, mock.Anything, LoopStatusInput{BrandID: "b1", Status: store.LoopStatusRunning}).
		Return(nil).Once()
	env.OnActivity(a.Scan, mock.Anything, ScanInput{BrandID: "b1", LoopCapped: true}).
		Return(nil, eris.New("provider outage"))
	env.OnActivity(a.EmitLoopSummary, mock.Anything, LoopSummaryInput{BrandID: "b1"}).
		Return(nil).Once()
	env.OnActivity(a.SetLoopStatus, mock.Anything, LoopStatusInput{BrandID: "b1", Status: store.LoopStatusIdle}).
		Return(nil).Once()

	env.ExecuteWorkflow(CitationLoopWorkflow, events.CitationLoopRun{BrandID: "b1", MaxCycles: 3})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var summary LoopSummaryInput
	require.NoError(t, env.GetWorkflowResult(&summary))
	assert.Equal(t, 0, summary.Cycles)
	assert.False(t, summary.Stopped)
	env.AssertExpectations(t)
}
