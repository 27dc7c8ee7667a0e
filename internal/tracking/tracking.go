// Package tracking implements the tracking tree (C5): a task tree that
// accumulates a timestamped log of pending mutations from a single
// client process, consolidates them, and emits a reconciliation plan
// for the Reconciler to apply against the store. Nothing here performs
// I/O; a Tree is exclusively owned by the process that built it until
// it is submitted and cleared.
package tracking

import (
	"fmt"
	"sort"
	"time"

	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

// OpKind tags a pending-operation log entry.
type OpKind string

const (
	OpTaskUpdate  OpKind = "task_update"
	OpChildAdd    OpKind = "child_add"
	OpChildRemove OpKind = "child_remove"
)

// Op is one entry in a tree's pending-operation log.
type Op struct {
	Kind OpKind
	TS   time.Time

	// OpTaskUpdate
	TaskID string
	Update tasktree.Update

	// OpChildAdd / OpChildRemove
	ParentID string
	Subtree  []tasktypes.Task // OpChildAdd: the new subtree, root first
	ChildID  string           // OpChildRemove: the subtree root being removed
}

// DepOpKind tags a pending dependency-operation log entry.
type DepOpKind string

const (
	DepOpAdd    DepOpKind = "dep_add"
	DepOpRemove DepOpKind = "dep_remove"
)

// DepOp is a pending change to the dependency graph, queued alongside
// but independent of the task operation log.
type DepOp struct {
	Kind         DepOpKind
	TS           time.Time
	DependentID  string
	DependencyID string
}

// Tree is a tasktree.Tree plus its pending-operation log and the
// dependency-op channel that travels alongside it.
type Tree struct {
	id          string
	tree        *tasktree.Tree
	baseVersion int64

	ops    []Op
	depOps []DepOp
	clock  int64 // monotonic tie-break for ops recorded in the same instant
}

// New builds a tracking Tree from a snapshot of persisted tasks and the
// version counter it was read at.
func New(id string, tasks []tasktypes.Task, baseVersion int64) (*Tree, error) {
	built, err := tasktree.Build(tasks)
	if err != nil {
		return nil, fmt.Errorf("tracking: build snapshot: %w", err)
	}
	return &Tree{id: id, tree: built, baseVersion: baseVersion}, nil
}

// ID returns the tracking tree's identifier.
func (t *Tree) ID() string { return t.id }

// BaseVersion returns the store version counter this tree was built
// from, or last cleared against.
func (t *Tree) BaseVersion() int64 { return t.baseVersion }

// Snapshot exposes the current (locally mutated) tree for read
// queries.
func (t *Tree) Snapshot() *tasktree.Tree { return t.tree }

// HasPendingChanges reports whether any operation is queued.
func (t *Tree) HasPendingChanges() bool {
	return len(t.ops) > 0 || len(t.depOps) > 0
}

// nextTS returns a strictly increasing timestamp for the next queued
// op, so ops recorded within the same wall-clock tick still sort
// deterministically in consolidation.
func (t *Tree) nextTS() time.Time {
	t.clock++
	return time.Unix(0, t.clock)
}

// UpdateTask mutates task id in the local tree and queues a
// task_update op.
func (t *Tree) UpdateTask(id string, update tasktree.Update) error {
	if update.IsEmpty() {
		return nil
	}
	next, err := t.tree.WithTask(id, update)
	if err != nil {
		return err
	}
	t.tree = next
	t.ops = append(t.ops, Op{Kind: OpTaskUpdate, TS: t.nextTS(), TaskID: id, Update: update})
	return nil
}

// AddChild attaches subtree beneath parentID in the local tree and
// queues a child_add op. parentID == tasktypes.RootParentID attaches a
// new root.
func (t *Tree) AddChild(parentID string, subtree []tasktypes.Task) error {
	next, err := t.tree.AddChild(parentID, subtree)
	if err != nil {
		return err
	}
	t.tree = next
	t.ops = append(t.ops, Op{Kind: OpChildAdd, TS: t.nextTS(), ParentID: parentID, Subtree: subtree})
	return nil
}

// RemoveChild detaches id's subtree in the local tree and queues a
// child_remove op.
func (t *Tree) RemoveChild(id string) error {
	parent, hasParent := t.tree.Parent(id)
	parentID := tasktypes.RootParentID
	if hasParent {
		parentID = parent.ID
	}
	next, err := t.tree.RemoveChild(id)
	if err != nil {
		return err
	}
	t.tree = next
	t.ops = append(t.ops, Op{Kind: OpChildRemove, TS: t.nextTS(), ParentID: parentID, ChildID: id})
	return nil
}

// AddDependency queues a dep_add op. The dependency graph itself is not
// tracked locally; callers validate against a depgraph.Graph snapshot
// before queuing.
func (t *Tree) AddDependency(dependentID, dependencyID string) {
	t.depOps = append(t.depOps, DepOp{Kind: DepOpAdd, TS: t.nextTS(), DependentID: dependentID, DependencyID: dependencyID})
}

// RemoveDependency queues a dep_remove op.
func (t *Tree) RemoveDependency(dependentID, dependencyID string) {
	t.depOps = append(t.depOps, DepOp{Kind: DepOpRemove, TS: t.nextTS(), DependentID: dependentID, DependencyID: dependencyID})
}

// Plan is the consolidated, ordered set of operations submitted to the
// Reconciler, together with the base version it was built against.
type Plan struct {
	TreeID      string
	BaseVersion int64
	Ops         []Op
	DepOps      []DepOp
}

// BuildPlan consolidates the pending log per the rules in
// consolidate and returns the resulting Plan. It does not clear the
// log; callers clear on successful reconciliation via Clear.
func (t *Tree) BuildPlan() Plan {
	return Plan{
		TreeID:      t.id,
		BaseVersion: t.baseVersion,
		Ops:         consolidate(t.ops),
		DepOps:      append([]DepOp(nil), t.depOps...),
	}
}

// Clear empties the pending log and advances the base version. The
// Reconciler does not call it; the tree's owner calls it after a
// successful commit, passing the Result's NewVersion.
func (t *Tree) Clear(newBaseVersion int64) {
	t.ops = nil
	t.depOps = nil
	t.baseVersion = newBaseVersion
}

// consolidate applies the rules of §4.5: task_update ops on the same
// target merge last-writer-wins; a task_update targeting a task
// introduced earlier in the same log by child_add merges into that
// add's subtree root instead of surfacing separately; a child_remove
// of a subtree added earlier in the same log cancels both ops.
func consolidate(ops []Op) []Op {
	sorted := make([]Op, len(ops))
	copy(sorted, ops)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].TS.Before(sorted[j].TS) })

	addedBy := make(map[string]int) // task id -> index into result of its child_add
	removed := make(map[int]bool)

	var result []Op
	indexOf := make(map[string]int)

	for _, op := range sorted {
		switch op.Kind {
		case OpChildAdd:
			result = append(result, op)
			idx := len(result) - 1
			for _, task := range op.Subtree {
				addedBy[task.ID] = idx
			}

		case OpChildRemove:
			if addIdx, ok := addedBy[op.ChildID]; ok && !removed[addIdx] {
				// A remove of a subtree added earlier in this same log
				// cancels both ops entirely.
				removed[addIdx] = true
				continue
			}
			result = append(result, op)

		case OpTaskUpdate:
			if addIdx, ok := addedBy[op.TaskID]; ok && !removed[addIdx] {
				mergeIntoSubtree(&result[addIdx], op.TaskID, op.Update)
				continue
			}
			if prevIdx, ok := indexOf[op.TaskID]; ok && result[prevIdx].Kind == OpTaskUpdate {
				merged := result[prevIdx].Update.Merge(op.Update)
				result[prevIdx].Update = merged
				result[prevIdx].TS = op.TS
				continue
			}
			result = append(result, op)
			indexOf[op.TaskID] = len(result) - 1
		}
	}

	out := result[:0]
	for i, op := range result {
		if removed[i] {
			continue
		}
		if op.Kind == OpTaskUpdate && op.Update.IsEmpty() {
			continue
		}
		out = append(out, op)
	}
	return out
}

func mergeIntoSubtree(add *Op, taskID string, update tasktree.Update) {
	for i, task := range add.Subtree {
		if task.ID != taskID {
			continue
		}
		add.Subtree[i] = applyToTask(task, update)
		return
	}
}

func applyToTask(task tasktypes.Task, u tasktree.Update) tasktypes.Task {
	if u.ParentID != nil {
		task.ParentID = *u.ParentID
	}
	if u.Title != nil {
		task.Title = *u.Title
	}
	if u.Description != nil {
		task.Description = *u.Description
	}
	if u.Status != nil {
		task.Status = *u.Status
	}
	if u.PriorityScore != nil {
		task.PriorityScore = *u.PriorityScore
	}
	if u.PRD != nil {
		task.PRD = *u.PRD
	}
	if u.ContextDigest != nil {
		task.ContextDigest = *u.ContextDigest
	}
	return task
}
