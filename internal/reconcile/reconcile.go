// Package reconcile implements the Reconciler (C6): applies a
// consolidated reconciliation plan against the store inside a single
// transaction, resolving temporary ids to persistent ones, enforcing
// the graph and status-transition invariants, and returning the
// post-state tree plus the id map. Never half-applies a plan: any
// failure aborts the whole batch via the store's rollback.
package reconcile

import (
	"context"
	"fmt"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/taskerrors"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
	"github.com/marktoda/astrotask/internal/tracking"
)

// Reconciler applies reconciliation plans; it carries no state of its
// own and is safe for concurrent use across distinct stores.
type Reconciler struct{}

// New returns a ready Reconciler.
func New() *Reconciler { return &Reconciler{} }

// Result is the outcome of a successfully committed reconciliation.
type Result struct {
	Tree       *tasktree.Tree
	IDMap      map[string]string
	NewVersion int64
}

// Run performs the version check, runs Apply inside s.Transaction, and
// on success rebuilds the fresh Task Tree from the committed state.
// The caller (Task Service) is responsible for holding the store's
// cooperative lock for the duration of this call.
func (r *Reconciler) Run(ctx context.Context, s store.Store, plan tracking.Plan) (*Result, error) {
	latest, err := s.Version(ctx)
	if err != nil {
		return nil, taskerrors.Fatal(fmt.Errorf("reconcile: read version: %w", err))
	}
	if latest != plan.BaseVersion {
		return nil, taskerrors.Conflict(plan.BaseVersion, latest)
	}

	var idMap map[string]string
	txErr := s.Transaction(ctx, func(tx store.Store) error {
		var applyErr error
		idMap, applyErr = r.Apply(ctx, tx, plan)
		return applyErr
	})
	if txErr != nil {
		return nil, txErr
	}

	tasks, err := s.ListTasks(ctx, store.Filter{})
	if err != nil {
		return nil, taskerrors.Fatal(fmt.Errorf("reconcile: list post-commit tasks: %w", err))
	}
	tree, err := tasktree.Build(tasks)
	if err != nil {
		return nil, taskerrors.Corrupt(fmt.Sprintf("post-commit tree invalid: %v", err))
	}

	newVersion, err := s.Version(ctx)
	if err != nil {
		return nil, taskerrors.Fatal(fmt.Errorf("reconcile: read post-commit version: %w", err))
	}

	return &Result{Tree: tree, IDMap: idMap, NewVersion: newVersion}, nil
}

// Apply runs the task and dependency operations of plan against tx in
// order, returning the temp-id -> persistent-id map. Intended to be
// called from inside a store.Store.Transaction closure; any returned
// error aborts (and, per the store contract, rolls back) the whole
// plan.
func (r *Reconciler) Apply(ctx context.Context, tx store.Store, plan tracking.Plan) (map[string]string, error) {
	idMap := make(map[string]string)

	for _, op := range plan.Ops {
		var err error
		switch op.Kind {
		case tracking.OpChildAdd:
			err = applyChildAdd(ctx, tx, op, idMap)
		case tracking.OpTaskUpdate:
			err = applyTaskUpdate(ctx, tx, op, idMap)
		case tracking.OpChildRemove:
			err = applyChildRemove(ctx, tx, op, idMap)
		default:
			err = fmt.Errorf("reconcile: unknown op kind %q", op.Kind)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, depOp := range plan.DepOps {
		if err := applyDepOp(ctx, tx, depOp, idMap); err != nil {
			return nil, err
		}
	}

	return idMap, nil
}

func resolve(id string, idMap map[string]string) (string, error) {
	if mapped, ok := idMap[id]; ok {
		return mapped, nil
	}
	if tasktypes.IsTemporaryID(id) {
		return "", fmt.Errorf("reconcile: temporary id %q has no mapping in this plan", id)
	}
	return id, nil
}

// applyChildAdd inserts op.Subtree depth-first (root first, per the
// Tracking Tree's flat-list convention), resolving each entry's parent
// through idMap and recording its own id mapping as it goes.
func applyChildAdd(ctx context.Context, tx store.Store, op tracking.Op, idMap map[string]string) error {
	resolvedParent, err := resolve(op.ParentID, idMap)
	if err != nil {
		return err
	}
	if op.ParentID == tasktypes.RootParentID {
		resolvedParent = tasktypes.RootParentID
	}

	present := make(map[string]bool, len(op.Subtree))
	for _, task := range op.Subtree {
		present[task.ID] = true
	}

	for _, task := range op.Subtree {
		parentID := resolvedParent
		if task.ParentID != tasktypes.RootParentID && present[task.ParentID] {
			mapped, err := resolve(task.ParentID, idMap)
			if err != nil {
				return err
			}
			parentID = mapped
		}
		task.ParentID = parentID

		var created tasktypes.Task
		var addErr error
		if tasktypes.IsTemporaryID(task.ID) {
			origID := task.ID
			task.ID = ""
			created, addErr = tx.AddTask(ctx, task)
			if addErr == nil {
				idMap[origID] = created.ID
			}
		} else {
			created, addErr = tx.AddTaskWithID(ctx, task)
			if addErr == nil {
				idMap[task.ID] = created.ID
			}
		}
		if addErr != nil {
			return fmt.Errorf("reconcile: child_add %s: %w", task.ID, addErr)
		}
	}
	return nil
}

func applyTaskUpdate(ctx context.Context, tx store.Store, op tracking.Op, idMap map[string]string) error {
	targetID, err := resolve(op.TaskID, idMap)
	if err != nil {
		return err
	}

	if op.Update.Status != nil {
		current, err := tx.GetTask(ctx, targetID)
		if err != nil {
			return err
		}
		if current.Status != *op.Update.Status && !tasktypes.IsTransitionAllowed(current.Status, *op.Update.Status) {
			return taskerrors.IllegalTransition(string(current.Status), string(*op.Update.Status), "not an edge of the status state machine")
		}
	}

	_, err = tx.UpdateTask(ctx, targetID, op.Update)
	return err
}

// applyChildRemove deletes op.ChildID's subtree leaves-first: the
// store's DeleteTask does not recurse, so each descendant is deleted
// individually starting from the deepest.
func applyChildRemove(ctx context.Context, tx store.Store, op tracking.Op, idMap map[string]string) error {
	targetID, err := resolve(op.ChildID, idMap)
	if err != nil {
		return err
	}
	return deleteSubtree(ctx, tx, targetID)
}

// DeleteSubtree removes id and its entire descendant subtree leaves
// first, cascading incident dependency edges via the store's per-task
// DeleteTask. Exported for the Task Service's delete_subtree operation,
// which needs the same leaves-first cascade outside of a reconciliation
// plan.
func DeleteSubtree(ctx context.Context, tx store.Store, id string) error {
	return deleteSubtree(ctx, tx, id)
}

func deleteSubtree(ctx context.Context, tx store.Store, id string) error {
	children, err := tx.ListSubtasks(ctx, id)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := deleteSubtree(ctx, tx, child.ID); err != nil {
			return err
		}
	}
	return tx.DeleteTask(ctx, id)
}

func applyDepOp(ctx context.Context, tx store.Store, op tracking.DepOp, idMap map[string]string) error {
	dependentID, err := resolve(op.DependentID, idMap)
	if err != nil {
		return err
	}
	dependencyID, err := resolve(op.DependencyID, idMap)
	if err != nil {
		return err
	}

	switch op.Kind {
	case tracking.DepOpRemove:
		_, err := tx.RemoveDependency(ctx, dependentID, dependencyID)
		return err

	case tracking.DepOpAdd:
		if dependentID == dependencyID {
			return taskerrors.SelfDependency(dependentID)
		}
		if _, err := tx.GetTask(ctx, dependentID); err != nil {
			return err
		}
		if _, err := tx.GetTask(ctx, dependencyID); err != nil {
			return err
		}
		wouldCycle, err := reachableInStore(ctx, tx, dependencyID, dependentID)
		if err != nil {
			return err
		}
		if wouldCycle {
			// path runs dependencyID -> ... -> dependentID; prefixing
			// dependentID closes the loop the new edge would create:
			// dependentID -> dependencyID -> ... -> dependentID.
			path, _ := shortestPathInStore(ctx, tx, dependencyID, dependentID)
			return taskerrors.Cycle(append([]string{dependentID}, path...))
		}
		_, err = tx.AddDependency(ctx, dependentID, dependencyID)
		return err

	default:
		return fmt.Errorf("reconcile: unknown dependency op kind %q", op.Kind)
	}
}

// reachableInStore reports whether to is reachable from "from" by
// following dependency edges forward (deps(x) = what x depends on),
// queried live against tx rather than a prebuilt depgraph.Graph, since
// the post-task-ops snapshot only exists inside this transaction.
func reachableInStore(ctx context.Context, tx store.Store, from, to string) (bool, error) {
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			return true, nil
		}
		deps, err := tx.ListDependencies(ctx, id)
		if err != nil {
			return false, err
		}
		for _, dep := range deps {
			if !visited[dep] {
				visited[dep] = true
				queue = append(queue, dep)
			}
		}
	}
	return false, nil
}

// shortestPathInStore mirrors reachableInStore but reconstructs the
// path, for use as a cycle witness in error messages.
func shortestPathInStore(ctx context.Context, tx store.Store, from, to string) ([]string, error) {
	prev := map[string]string{}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		if id == to {
			var path []string
			for cur := to; ; cur = prev[cur] {
				path = append([]string{cur}, path...)
				if cur == from {
					break
				}
			}
			return path, nil
		}
		deps, err := tx.ListDependencies(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, dep := range deps {
			if !visited[dep] {
				visited[dep] = true
				prev[dep] = id
				queue = append(queue, dep)
			}
		}
	}
	return nil, nil
}
