// Package tasktypes defines the value types shared by every layer of the
// task-navigation core: tasks, dependencies, context slices, the status
// enum, and the persistent/temporary identifier scheme.
package tasktypes

import "time"

// Status is a closed set of task lifecycle states. Blocked is tracked as
// its own state rather than derived solely on read, alongside the more
// familiar pending/in-progress/done/cancelled/archived states.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusBlocked    Status = "blocked"
	StatusDone       Status = "done"
	StatusCancelled  Status = "cancelled"
	StatusArchived   Status = "archived"
)

// ValidStatuses enumerates the closed status set, for validation.
var ValidStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusBlocked:    true,
	StatusDone:       true,
	StatusCancelled:  true,
	StatusArchived:   true,
}

// IsValid reports whether s is one of the closed set of status values.
func (s Status) IsValid() bool {
	return ValidStatuses[s]
}

// PriorityBucket is the derived, user-facing display bucket for a
// priority score. The score remains canonical; the bucket is a computed
// view, never stored.
type PriorityBucket string

const (
	PriorityLow    PriorityBucket = "low"
	PriorityMedium PriorityBucket = "medium"
	PriorityHigh   PriorityBucket = "high"
)

// BucketForScore derives the display bucket for a priority score.
func BucketForScore(score float64) PriorityBucket {
	switch {
	case score < 20:
		return PriorityLow
	case score > 70:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// RootParentID is the canonical representation of "no parent": a root
// task. The project root is modeled as the absence of a parent rather
// than a synthetic task row, so every lookup and tree build treats an
// empty ParentID uniformly as a root.
const RootParentID = ""

// DefaultPriorityScore is assigned to a task when none is supplied.
const DefaultPriorityScore = 50.0

const (
	// MaxTitleLen and MinTitleLen bound Task.Title.
	MaxTitleLen = 200
	MinTitleLen = 1
	// MaxDescriptionLen bounds Task.Description.
	MaxDescriptionLen = 2000
)

// Task is the atomic unit of work.
type Task struct {
	ID             string
	ParentID       string // RootParentID for a root task
	Title          string
	Description    string
	Status         Status
	PriorityScore  float64
	PRD            string // opaque, stored and returned unchanged
	ContextDigest  string // opaque, stored and returned unchanged
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsRoot reports whether t has no parent.
func (t *Task) IsRoot() bool {
	return t.ParentID == RootParentID
}

// Dependency is a directed "must-finish-before" edge: DependentID cannot
// start until DependencyID is Done.
type Dependency struct {
	DependentID  string
	DependencyID string
	CreatedAt    time.Time
}

// ContextSlice is an opaque annotation attached to a task; the core
// treats it as a read-through child record deleted with its task.
type ContextSlice struct {
	ID             string
	Title          string
	Description    string
	ContextType    string // defaults to "general"
	TaskID         string
	ContextDigest  string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DefaultContextType is the default value of ContextSlice.ContextType.
const DefaultContextType = "general"
