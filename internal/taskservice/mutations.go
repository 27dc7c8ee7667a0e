package taskservice

import (
	"context"
	"fmt"

	"github.com/marktoda/astrotask/internal/depgraph"
	"github.com/marktoda/astrotask/internal/reconcile"
	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/taskerrors"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
	"github.com/marktoda/astrotask/internal/tracking"
)

// maxReasonableDepth is the threshold beyond which GetTaskTree-adjacent
// mutations surface a "deep nesting" warning; it never rejects anything.
const maxReasonableDepth = 10

// MoveSubtree reparents id under newParentID (tasktypes.RootParentID to
// make it a root), rejecting moves under id's own descendant. A move to
// the task's current parent is a no-op and does not bump updated_at.
func (s *Service) MoveSubtree(ctx context.Context, id, newParentID string) ([]string, error) {
	var warnings []string
	err := s.withLock(ctx, func() error {
		tree, err := s.buildTree(ctx)
		if err != nil {
			return err
		}
		task, ok := tree.Task(id)
		if !ok {
			return fmt.Errorf("taskservice: %w", notFound("task", id))
		}
		if task.ParentID == newParentID {
			return nil // no-op move: no transaction, no updated_at bump
		}
		if newParentID != tasktypes.RootParentID {
			if _, ok := tree.Task(newParentID); !ok {
				return fmt.Errorf("taskservice: %w", notFound("task", newParentID))
			}
			if tree.IsDescendantOf(newParentID, id) {
				return fmt.Errorf("taskservice: cannot move %s under its own descendant %s", id, newParentID)
			}
		}

		return s.store.Transaction(ctx, func(tx store.Store) error {
			target := newParentID
			update := tasktree.Update{ParentID: &target}
			if _, err := tx.UpdateTask(ctx, id, update); err != nil {
				return err
			}
			if moved, buildErr := tasktree.Build(mustFlattenWithMove(tree, id, newParentID)); buildErr == nil {
				warnings = warningsForSubtree(moved, id)
			}
			return nil
		})
	})
	return warnings, err
}

// mustFlattenWithMove returns tree's tasks with id reparented, for
// computing post-move warnings without a second store round-trip.
func mustFlattenWithMove(tree *tasktree.Tree, id, newParentID string) []tasktypes.Task {
	var tasks []tasktypes.Task
	for _, rootID := range tree.Roots() {
		tree.WalkPreOrder(rootID, func(task tasktypes.Task) bool {
			if task.ID == id {
				task.ParentID = newParentID
			}
			tasks = append(tasks, task)
			return true
		})
	}
	return tasks
}

// DeleteSubtree removes id. With cascade it removes every descendant
// leaves-first then id itself; without cascade it rejects if id has any
// child.
func (s *Service) DeleteSubtree(ctx context.Context, id string, cascade bool) error {
	return s.withLock(ctx, func() error {
		tree, err := s.buildTree(ctx)
		if err != nil {
			return err
		}
		if _, ok := tree.Task(id); !ok {
			return fmt.Errorf("taskservice: %w", notFound("task", id))
		}
		if !cascade && len(tree.Children(id)) > 0 {
			return fmt.Errorf("taskservice: %s has children; pass cascade=true to delete them", id)
		}
		return s.store.Transaction(ctx, func(tx store.Store) error {
			return reconcile.DeleteSubtree(ctx, tx, id)
		})
	})
}

// UpdateTreeStatus sets status on root and every descendant atomically,
// returning the number of tasks updated.
func (s *Service) UpdateTreeStatus(ctx context.Context, root string, status tasktypes.Status) (int, error) {
	count := 0
	err := s.withLock(ctx, func() error {
		tree, err := s.buildTree(ctx)
		if err != nil {
			return err
		}
		if _, ok := tree.Task(root); !ok {
			return fmt.Errorf("taskservice: %w", notFound("task", root))
		}
		var targets []string
		tree.WalkPreOrder(root, func(task tasktypes.Task) bool {
			targets = append(targets, task.ID)
			return true
		})
		return s.store.Transaction(ctx, func(tx store.Store) error {
			for _, id := range targets {
				st := status
				if _, err := tx.UpdateTask(ctx, id, tasktree.Update{Status: &st}); err != nil {
					return err
				}
				count++
			}
			return nil
		})
	})
	return count, err
}

// StatusUpdateOptions controls UpdateTaskStatus.
type StatusUpdateOptions struct {
	// Force bypasses both the state-machine check and the blocked-start
	// refusal.
	Force bool
}

// UpdateTaskStatus performs a dependency-aware status transition:
// verifies the state machine allows it, refuses to start a blocked task
// unless forced, applies the change, and cascades the reactive
// blocked/pending recomputation to id's dependents.
func (s *Service) UpdateTaskStatus(ctx context.Context, id string, newStatus tasktypes.Status, opts StatusUpdateOptions) (tasktypes.Task, []string, error) {
	var updated tasktypes.Task
	var warnings []string

	err := s.withLock(ctx, func() error {
		current, err := s.store.GetTask(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != newStatus && !opts.Force && !tasktypes.IsTransitionAllowed(current.Status, newStatus) {
			return taskerrors.IllegalTransition(string(current.Status), string(newStatus), "not an edge of the status state machine")
		}

		graph, err := s.buildGraph(ctx)
		if err != nil {
			return err
		}
		if newStatus == tasktypes.StatusInProgress && !opts.Force && graph.IsBlocked(id) {
			return taskerrors.Blocked(id, graph.BlockedBy(id))
		}

		return s.store.Transaction(ctx, func(tx store.Store) error {
			task, err := tx.UpdateTask(ctx, id, tasktree.Update{Status: &newStatus})
			if err != nil {
				return err
			}
			updated = task
			if err := cascadeBlockedRecompute(ctx, tx, graph, id, newStatus); err != nil {
				return err
			}
			if tree, buildErr := s.buildTreeTx(ctx, tx); buildErr == nil {
				warnings = warningsForSubtree(tree, id)
			}
			return nil
		})
	})
	return updated, warnings, err
}

func (s *Service) buildTreeTx(ctx context.Context, tx store.Store) (*tasktree.Tree, error) {
	tasks, err := tx.ListTasks(ctx, store.Filter{})
	if err != nil {
		return nil, err
	}
	return tasktree.Build(tasks)
}

// cascadeBlockedRecompute applies the service's only self-initiated
// transition: a pending dependent becomes blocked if it now has an
// incomplete dependency, and a blocked dependent becomes pending once
// its last blocker clears. graph is a snapshot taken before changedID's
// update was applied, so changedID's own status there is stale; newStatus
// overrides it when checking each dependent's blockers. Idempotent:
// running it again on unchanged state performs no further writes.
func cascadeBlockedRecompute(ctx context.Context, tx store.Store, graph *depgraph.Graph, changedID string, newStatus tasktypes.Status) error {
	isBlocked := func(id string) bool {
		for _, dep := range graph.Deps(id) {
			status := graph.Status(dep)
			if dep == changedID {
				status = newStatus
			}
			if status != tasktypes.StatusDone {
				return true
			}
		}
		return false
	}

	for _, dependent := range graph.Dependents(changedID) {
		status := graph.Status(dependent)
		blocked := isBlocked(dependent)
		var next tasktypes.Status
		switch {
		case status == tasktypes.StatusPending && blocked:
			next = tasktypes.StatusBlocked
		case status == tasktypes.StatusBlocked && !blocked:
			next = tasktypes.StatusPending
		default:
			continue
		}
		if _, err := tx.UpdateTask(ctx, dependent, tasktree.Update{Status: &next}); err != nil {
			return err
		}
	}
	return nil
}

// warningsForSubtree scans id and its descendants for non-rejecting
// advisory conditions: deep nesting, and a child whose parent is done
// but which is itself still incomplete.
func warningsForSubtree(tree *tasktree.Tree, id string) []string {
	var warnings []string
	tree.WalkPreOrder(id, func(task tasktypes.Task) bool {
		if tree.Depth(task.ID) > maxReasonableDepth {
			warnings = append(warnings, fmt.Sprintf("deep nesting: %s is %d levels deep", task.ID, tree.Depth(task.ID)))
		}
		if parent, ok := tree.Parent(task.ID); ok && parent.Status == tasktypes.StatusDone {
			switch task.Status {
			case tasktypes.StatusDone, tasktypes.StatusCancelled, tasktypes.StatusArchived:
			default:
				warnings = append(warnings, fmt.Sprintf("status inconsistency: parent of %s is done but it is %s", task.ID, task.Status))
			}
		}
		return true
	})
	return warnings
}

// ApplyReconciliationPlan is the single entry point from a Tracking
// Tree (C5) into the Reconciler (C6), holding the store's cooperative
// lock for the duration of the reconciliation.
func (s *Service) ApplyReconciliationPlan(ctx context.Context, plan tracking.Plan) (*reconcile.Result, error) {
	var result *reconcile.Result
	err := s.withLock(ctx, func() error {
		var err error
		result, err = s.reconciler.Run(ctx, s.store, plan)
		return err
	})
	return result, err
}

// ValidateDependency reports whether adding dependentID -> dependencyID
// would be accepted, without mutating anything.
type ValidateDependencyResult struct {
	Valid    bool
	Errors   []string
	Warnings []string
	Cycles   [][]string
}

// ValidateDependency checks the proposed edge against the current
// dependency graph: self-dependency, unknown endpoints, and
// would-create-cycle.
func (s *Service) ValidateDependency(ctx context.Context, dependentID, dependencyID string) (ValidateDependencyResult, error) {
	graph, err := s.buildGraph(ctx)
	if err != nil {
		return ValidateDependencyResult{}, err
	}

	result := ValidateDependencyResult{Valid: true}
	if dependentID == dependencyID {
		result.Valid = false
		result.Errors = append(result.Errors, "a task cannot depend on itself")
	}
	if _, err := s.store.GetTask(ctx, dependentID); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("unknown task id: %s", dependentID))
	}
	if _, err := s.store.GetTask(ctx, dependencyID); err != nil {
		result.Valid = false
		result.Errors = append(result.Errors, fmt.Sprintf("unknown task id: %s", dependencyID))
	}
	if result.Valid && graph.WouldCreateCycle(dependentID, dependencyID) {
		result.Valid = false
		witness := graph.ShortestPath(dependencyID, dependentID)
		cycle := append([]string{dependentID}, witness...)
		result.Cycles = append(result.Cycles, cycle)
		result.Errors = append(result.Errors, "adding this dependency would create a cycle")
	}
	return result, nil
}
