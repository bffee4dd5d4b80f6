package model

import (
	"encoding/json"
	"time"
)

// FeedWorkflow identifies which pipeline surface produced a feed event.
type FeedWorkflow string

const (
	WorkflowCoreDiscovery       FeedWorkflow = "core_discovery"
	WorkflowNetworkExpansion    FeedWorkflow = "network_expansion"
	WorkflowCompetitiveResponse FeedWorkflow = "competitive_response"
	WorkflowVerification        FeedWorkflow = "verification"
	WorkflowGreenspace          FeedWorkflow = "greenspace"
	WorkflowSystem              FeedWorkflow = "system"
)

// AllFeedWorkflows returns all defined feed workflows.
func AllFeedWorkflows() []FeedWorkflow {
	return []FeedWorkflow{
		WorkflowCoreDiscovery,
		WorkflowNetworkExpansion,
		WorkflowCompetitiveResponse,
		WorkflowVerification,
		WorkflowGreenspace,
		WorkflowSystem,
	}
}

// Severity ranks how urgent a feed event is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// FeedAction names a user-invocable action offered on a feed event.
type FeedAction string

const (
	ActionCreateContent    FeedAction = "create_content"
	ActionEnableCompetitor FeedAction = "enable_competitor"
	ActionExcludeQuery     FeedAction = "exclude_query"
	ActionRescan           FeedAction = "rescan"
	ActionDismissGap       FeedAction = "dismiss_gap"
)

// FeedEvent is a user-facing, stateful notification row produced by any
// pipeline stage. Read/dismiss/pin state is mutated only by tenant action;
// ActionTaken is set exactly once and is terminal.
type FeedEvent struct {
	ID              string          `json:"id"`
	TenantID        string          `json:"tenant_id"`
	BrandID         string          `json:"brand_id"`
	Workflow        FeedWorkflow    `json:"workflow"`
	Severity        Severity        `json:"severity"`
	Title           string          `json:"title"`
	Data            json.RawMessage `json:"data,omitempty"`
	ActionAvailable []FeedAction    `json:"action_available,omitempty"`
	ActionTaken     *FeedAction     `json:"action_taken,omitempty"`
	Read            bool            `json:"read"`
	Dismissed       bool            `json:"dismissed"`
	Pinned          bool            `json:"pinned"`
	CreatedAt       time.Time       `json:"created_at"`
}

// Offers reports whether the event offers the given action.
func (e FeedEvent) Offers(a FeedAction) bool {
	for _, avail := range e.ActionAvailable {
		if avail == a {
			return true
		}
	}
	return false
}
