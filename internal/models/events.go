package models

import "time"

// Event types
const (
	EventTypeRefreshRequested   = "REFRESH_REQUESTED"
	EventTypeReconcileCompleted = "RECONCILE_COMPLETED"
	EventTypeRefreshFailed      = "REFRESH_FAILED"
)

// RefreshScopeAll requests a refresh of every source.
const RefreshScopeAll = "all"

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// RefreshRequestedEvent asks the background worker to re-fetch and
// reconcile one source, or every source when Scope is "all".
type RefreshRequestedEvent struct {
	BaseEvent
	Scope       string `json:"scope"`
	RequestedBy string `json:"requested_by,omitempty"`
}

// ReconcileCompletedEvent published after a source's exception table
// has been merged with a fresh active set.
type ReconcileCompletedEvent struct {
	BaseEvent
	Source    Source    `json:"source"`
	BatchSize int       `json:"batch_size"`
	Inserted  int       `json:"inserted"`
	Updated   int       `json:"updated"`
	Resolved  int       `json:"resolved"`
	SyncedAt  time.Time `json:"synced_at"`
}

// RefreshFailedEvent published when a source's refresh cycle aborts.
// The next scheduled run is the retry; nothing consumes this beyond
// monitoring.
type RefreshFailedEvent struct {
	BaseEvent
	Source Source `json:"source"`
	Reason string `json:"reason"`
}
