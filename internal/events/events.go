// Package events defines the trigger vocabulary of the pipeline and the
// router that turns an event into a durable workflow start. Publishing is
// fire-and-forget from the caller's point of view; durability comes from the
// workflow engine accepting the start, not from the caller waiting.
package events

// Event names. Each name maps to exactly one workflow.
const (
	NameCompetitorDiscover = "competitor/discover"
	NameQueryGenerate      = "query/generate"
	NameScanRun            = "scan/run"
	NameMemoGenerate       = "memo/generate"
	NameCitationLoopRun    = "citation-loop/run"
	NameCitationAnalyze    = "citation/analyze"
	NameCitationLoopStop   = "citation-loop/stop"
)

// Workflow registration names. The worker registers under these names and the
// router starts by them, so the two sides never need to share function values.
const (
	WorkflowDiscover        = "DiscoverWorkflow"
	WorkflowQueryGenerate   = "QueryGenerateWorkflow"
	WorkflowScan            = "ScanWorkflow"
	WorkflowMemoGenerate    = "MemoGenerateWorkflow"
	WorkflowCitationLoop    = "CitationLoopWorkflow"
	WorkflowCitationAnalyze = "CitationAnalyzeWorkflow"
)

// SignalStopLoop is the signal name a running citation loop listens on.
const SignalStopLoop = "stop-loop"

// Event is a typed trigger payload. The name is the routing key.
type Event interface {
	EventName() string
}

// CompetitorDiscover requests entity discovery for a brand.
type CompetitorDiscover struct {
	BrandID string `json:"brand_id"`
}

func (CompetitorDiscover) EventName() string { return NameCompetitorDiscover }

// QueryGenerate requests query generation for a brand.
type QueryGenerate struct {
	BrandID string `json:"brand_id"`
}

func (QueryGenerate) EventName() string { return NameQueryGenerate }

// ScanRun requests one scan pass over a brand's active queries.
type ScanRun struct {
	BrandID string `json:"brand_id"`
}

func (ScanRun) EventName() string { return NameScanRun }

// MemoGenerate requests a visibility memo for a brand, optionally scoped to
// one query.
type MemoGenerate struct {
	BrandID  string `json:"brand_id"`
	QueryID  string `json:"query_id,omitempty"`
	MemoType string `json:"memo_type,omitempty"`
}

func (MemoGenerate) EventName() string { return NameMemoGenerate }

// CitationLoopRun starts the bounded discover-scan-analyze loop for a brand.
// Zero MaxCycles means the configured default.
type CitationLoopRun struct {
	BrandID   string `json:"brand_id"`
	MaxCycles int    `json:"max_cycles,omitempty"`
}

func (CitationLoopRun) EventName() string { return NameCitationLoopRun }

// CitationAnalyze requests the secondary analysis call for one scan result.
type CitationAnalyze struct {
	BrandID      string `json:"brand_id"`
	ScanResultID string `json:"scan_result_id"`
}

func (CitationAnalyze) EventName() string { return NameCitationAnalyze }

// CitationLoopStop signals a brand's running loop to wind down.
type CitationLoopStop struct {
	BrandID string `json:"brand_id"`
}

func (CitationLoopStop) EventName() string { return NameCitationLoopStop }
