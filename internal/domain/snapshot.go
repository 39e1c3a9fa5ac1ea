package domain

import "time"

// HierarchySnapshot is a stored upload that can be re-rendered later.
type HierarchySnapshot struct {
	ID        string
	Checksum  string
	RootName  string
	TeamCount int
	CreatedAt time.Time
}
