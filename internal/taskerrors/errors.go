// Package taskerrors implements the typed error taxonomy shared across
// the task-navigation engine. Each kind wraps a package-level sentinel
// so callers can test with errors.Is/errors.As without importing the
// concrete struct.
package taskerrors

import (
	"errors"
	"fmt"
	"time"
)

// Sentinels, one per error kind. Prefer errors.Is/errors.As over
// comparing a returned error to these directly.
var (
	ErrNotFound           = errors.New("not found")
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrBlocked            = errors.New("task is blocked")
	ErrGraphInvariant     = errors.New("dependency graph invariant violated")
	ErrConflict           = errors.New("optimistic concurrency conflict")
	ErrLockBusy           = errors.New("store lock busy")
	ErrCorrupt            = errors.New("corrupt state")
	ErrFatal              = errors.New("fatal store error")
)

// NotFoundError reports a missing task or dependency endpoint.
type NotFoundError struct {
	Kind string // "task" | "dependency"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// NotFound constructs a NotFoundError of the given kind ("task" or
// "dependency") for id.
func NotFound(kind, id string) error {
	return &NotFoundError{Kind: kind, ID: id}
}

// IllegalTransitionError reports a status-transition state machine
// violation.
type IllegalTransitionError struct {
	From, To string
	Reason   string
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal transition %s -> %s: %s", e.From, e.To, e.Reason)
}

func (e *IllegalTransitionError) Unwrap() error { return ErrIllegalTransition }

// IllegalTransition constructs an IllegalTransitionError.
func IllegalTransition(from, to, reason string) error {
	return &IllegalTransitionError{From: from, To: to, Reason: reason}
}

// BlockedError reports that starting a task was refused because it is
// blocked by incomplete dependencies.
type BlockedError struct {
	TaskID   string
	Blockers []string
}

func (e *BlockedError) Error() string {
	return fmt.Sprintf("task %s is blocked by: %v", e.TaskID, e.Blockers)
}

func (e *BlockedError) Unwrap() error { return ErrBlocked }

// Blocked constructs a BlockedError.
func Blocked(taskID string, blockers []string) error {
	return &BlockedError{TaskID: taskID, Blockers: blockers}
}

// GraphInvariantReason enumerates the ways a dependency-graph mutation can
// violate an invariant.
type GraphInvariantReason string

const (
	ReasonSelfDependency  GraphInvariantReason = "self_dep"
	ReasonCycle           GraphInvariantReason = "cycle"
	ReasonUnknownEndpoint GraphInvariantReason = "unknown_endpoint"
)

// GraphInvariantError reports a dependency-graph invariant violation.
type GraphInvariantError struct {
	Reason  GraphInvariantReason
	Detail  string
	Witness []string // for Reason == ReasonCycle, a witness cycle of task ids
}

func (e *GraphInvariantError) Error() string {
	if len(e.Witness) > 0 {
		return fmt.Sprintf("graph invariant violated (%s): %s; witness cycle: %v", e.Reason, e.Detail, e.Witness)
	}
	return fmt.Sprintf("graph invariant violated (%s): %s", e.Reason, e.Detail)
}

func (e *GraphInvariantError) Unwrap() error { return ErrGraphInvariant }

// SelfDependency constructs a GraphInvariantError for a self-loop.
func SelfDependency(taskID string) error {
	return &GraphInvariantError{Reason: ReasonSelfDependency, Detail: fmt.Sprintf("task %s cannot depend on itself", taskID)}
}

// Cycle constructs a GraphInvariantError with a witness cycle.
func Cycle(witness []string) error {
	return &GraphInvariantError{Reason: ReasonCycle, Detail: "adding this dependency would create a cycle", Witness: witness}
}

// UnknownEndpoint constructs a GraphInvariantError for a missing edge endpoint.
func UnknownEndpoint(id string) error {
	return &GraphInvariantError{Reason: ReasonUnknownEndpoint, Detail: fmt.Sprintf("unknown task id: %s", id)}
}

// ConflictError reports an optimistic-concurrency base-version mismatch.
type ConflictError struct {
	BaseVersion   int64
	LatestVersion int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict: base_version=%d, latest_version=%d", e.BaseVersion, e.LatestVersion)
}

func (e *ConflictError) Unwrap() error { return ErrConflict }

// Conflict constructs a ConflictError.
func Conflict(base, latest int64) error {
	return &ConflictError{BaseVersion: base, LatestVersion: latest}
}

// LockHolder mirrors lockfile.Holder without importing it, so this
// package stays a leaf dependency.
type LockHolder struct {
	PID         int
	Host        string
	ProcessKind string
	AcquiredAt  time.Time
}

// LockBusyError reports that the cooperative file lock could not be
// acquired within budget.
type LockBusyError struct {
	Holder LockHolder
}

func (e *LockBusyError) Error() string {
	if e.Holder.ProcessKind == "" {
		return "database is currently in use by another process"
	}
	return fmt.Sprintf("database is currently in use by %s", e.Holder.ProcessKind)
}

func (e *LockBusyError) Unwrap() error { return ErrLockBusy }

// LockBusy constructs a LockBusyError.
func LockBusy(holder LockHolder) error {
	return &LockBusyError{Holder: holder}
}

// CorruptError reports a detected invariant violation in stored data that
// requires repair rather than rejection: a bad timestamp, an unparseable
// lock file, or a malformed tree.
type CorruptError struct {
	What string
}

func (e *CorruptError) Error() string {
	return fmt.Sprintf("corrupt: %s", e.What)
}

func (e *CorruptError) Unwrap() error { return ErrCorrupt }

// Corrupt constructs a CorruptError.
func Corrupt(what string) error {
	return &CorruptError{What: what}
}

// FatalError wraps an unrecoverable underlying error, typically store
// I/O, that callers should surface and abort on rather than retry.
type FatalError struct {
	Underlying error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("fatal: %v", e.Underlying)
}

func (e *FatalError) Unwrap() error { return errors.Join(ErrFatal, e.Underlying) }

// Fatal constructs a FatalError.
func Fatal(underlying error) error {
	return &FatalError{Underlying: underlying}
}
