package events

import "time"

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventHierarchyBuilt    EventType = "hierarchy_built"
	EventHierarchyFiltered EventType = "hierarchy_filtered"
	EventHierarchyRejected EventType = "hierarchy_rejected"
)

// Event represents a domain event emitted by services.
type Event struct {
	ID         string      `json:"id"`
	Type       EventType   `json:"type"`
	SnapshotID string      `json:"snapshot_id,omitempty"`
	Checksum   string      `json:"checksum"`
	Timestamp  time.Time   `json:"timestamp"`
	Payload    interface{} `json:"payload"`
}

// HierarchyBuiltPayload payload.
type HierarchyBuiltPayload struct {
	RootName  string `json:"root_name"`
	TeamCount int    `json:"team_count"`
}

// HierarchyFilteredPayload payload.
type HierarchyFilteredPayload struct {
	RootName   string `json:"root_name"`
	Team       string `json:"team"`
	PrunedSize int    `json:"pruned_size"`
}

// HierarchyRejectedPayload payload.
type HierarchyRejectedPayload struct {
	Reason     string              `json:"reason"`
	Violations map[string][]string `json:"violations,omitempty"`
}
