package domain

import (
	"errors"
	"fmt"
	"sort"
)

var (
	// ErrInvalidHierarchy marks a structural failure while assembling a tree.
	ErrInvalidHierarchy = errors.New("invalid hierarchy")
	// ErrTeamNotFound is returned when a filter target is absent from the tree.
	ErrTeamNotFound = errors.New("team not found")
	// ErrSnapshotNotFound is returned when a stored hierarchy does not exist.
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// Validation categories.
const (
	CategoryHierarchy   = "hierarchy"
	CategoryParentTeam  = "parent_team"
	CategoryManagerName = "manager_name"
	CategoryTeam        = "team"
	CategoryFile        = "file"
)

// ValidationError collects every business rule violation, grouped by category.
type ValidationError struct {
	Errors map[string][]string
}

// NewValidationError returns an empty error ready for Add.
func NewValidationError() *ValidationError {
	return &ValidationError{Errors: make(map[string][]string)}
}

// Add appends a message under category.
func (e *ValidationError) Add(category, message string) {
	e.Errors[category] = append(e.Errors[category], message)
}

// Empty reports whether no violation was recorded.
func (e *ValidationError) Empty() bool {
	return len(e.Errors) == 0
}

// Categories returns the recorded categories sorted by name.
func (e *ValidationError) Categories() []string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *ValidationError) Error() string {
	count := 0
	for _, msgs := range e.Errors {
		count += len(msgs)
	}
	return fmt.Sprintf("validation failed: %d violation(s) in %v", count, e.Categories())
}

// FileError builds a single-message validation error for upload problems.
func FileError(message string) *ValidationError {
	e := NewValidationError()
	e.Add(CategoryFile, message)
	return e
}

// CSVHeaderError reports a source file missing a mandatory column.
type CSVHeaderError struct {
	Header string
}

func (e *CSVHeaderError) Error() string {
	return fmt.Sprintf("Missing required header %q", e.Header)
}
