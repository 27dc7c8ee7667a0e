// Package store defines the persistent-store contract the task-navigation
// core depends on: durable CRUD for tasks, dependencies, and context
// slices, plus the transactional scope mutations run inside. Concrete
// implementations live in subpackages (memory, sqlite); this package
// owns only the interface and the errors/filter types callers share.
package store

import (
	"context"
	"time"

	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

// Filter narrows list_tasks; a nil/empty field is unconstrained. IDs, if
// non-empty, restricts the result to that id set regardless of the other
// fields.
type Filter struct {
	Status   *tasktypes.Status
	ParentID *string
	IDs      []string
}

// ContextSlice mirrors tasktypes.ContextSlice for store-layer CRUD; kept
// as a distinct alias point so store implementations can evolve the
// persisted shape independently of the in-core value type.
type ContextSlice = tasktypes.ContextSlice

// Store is the durable backing the core requires. Implementations must
// make update_task/delete_task/add_dependency/remove_dependency visible
// to subsequent reads on the same Store only after they return
// successfully, and must make Transaction all-or-nothing.
type Store interface {
	GetTask(ctx context.Context, id string) (tasktypes.Task, error)
	ListTasks(ctx context.Context, filter Filter) ([]tasktypes.Task, error)
	ListSubtasks(ctx context.Context, parentID string) ([]tasktypes.Task, error)

	// AddTask assigns a fresh persistent id and timestamps, ignoring any
	// id already set on task.
	AddTask(ctx context.Context, task tasktypes.Task) (tasktypes.Task, error)
	// AddTaskWithID inserts task under its own (already-persistent) id;
	// used by the reconciler when replaying a plan that references a
	// persistent id not yet present in this store.
	AddTaskWithID(ctx context.Context, task tasktypes.Task) (tasktypes.Task, error)
	UpdateTask(ctx context.Context, id string, update tasktree.Update) (tasktypes.Task, error)
	// DeleteTask removes the task row and cascades dependency edges
	// touching it. It does not recurse into children; callers needing
	// cascade-to-descendants do so explicitly, one DeleteTask per node.
	DeleteTask(ctx context.Context, id string) error

	AddDependency(ctx context.Context, dependentID, dependencyID string) (tasktypes.Dependency, error)
	// RemoveDependency reports whether a row was actually removed.
	RemoveDependency(ctx context.Context, dependentID, dependencyID string) (bool, error)
	ListDependencies(ctx context.Context, id string) ([]string, error)
	ListDependents(ctx context.Context, id string) ([]string, error)

	// Version returns the current optimistic-concurrency counter. It
	// increases by at least one per committed Transaction that mutates
	// state.
	Version(ctx context.Context) (int64, error)

	// Transaction runs fn atomically. Returning ErrRollback or any other
	// error reverts every mutation fn performed via tx; a nil return
	// commits.
	Transaction(ctx context.Context, fn func(tx Store) error) error

	// Lock acquires the cooperative cross-process write lock, releasing
	// it when the returned func is called. Read-only callers need not
	// acquire it.
	Lock(ctx context.Context, processKind string) (release func() error, err error)
}

// ErrRollback, returned from a Transaction closure, aborts the
// transaction without being treated as a store failure.
var ErrRollback = rollbackSentinel{}

type rollbackSentinel struct{}

func (rollbackSentinel) Error() string { return "store: explicit rollback" }

// Now returns the current time; a seam so stores can be tested with a
// fixed clock.
var Now = time.Now
