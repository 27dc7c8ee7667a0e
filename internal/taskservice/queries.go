package taskservice

import (
	"context"
	"fmt"
	"sort"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

// GetTaskTree returns the whole task tree, or the subtree rooted at
// root when non-empty (the returned tree's root task is rebased to
// tasktypes.RootParentID regardless of its real parent, so it builds
// standalone).
func (s *Service) GetTaskTree(ctx context.Context, root string) (*tasktree.Tree, error) {
	full, err := s.buildTree(ctx)
	if err != nil {
		return nil, err
	}
	if root == tasktypes.RootParentID {
		return full, nil
	}
	if _, ok := full.Task(root); !ok {
		return nil, fmt.Errorf("taskservice: %w", notFound("task", root))
	}

	var subtreeTasks []tasktypes.Task
	full.WalkPreOrder(root, func(task tasktypes.Task) bool {
		subtreeTasks = append(subtreeTasks, task)
		return true
	})
	subtreeTasks[0].ParentID = tasktypes.RootParentID
	return tasktree.Build(subtreeTasks)
}

// GetTaskAncestors returns id's ancestors, closest first, root last.
func (s *Service) GetTaskAncestors(ctx context.Context, id string) ([]tasktypes.Task, error) {
	tree, err := s.buildTree(ctx)
	if err != nil {
		return nil, err
	}
	path := tree.Path(id)
	if len(path) == 0 {
		return nil, fmt.Errorf("taskservice: %w", notFound("task", id))
	}
	var ancestors []tasktypes.Task
	for i := len(path) - 2; i >= 0; i-- {
		task, _ := tree.Task(path[i])
		ancestors = append(ancestors, task)
	}
	return ancestors, nil
}

// GetTaskDescendants returns id's descendants in pre-order, excluding id.
func (s *Service) GetTaskDescendants(ctx context.Context, id string) ([]tasktypes.Task, error) {
	tree, err := s.buildTree(ctx)
	if err != nil {
		return nil, err
	}
	if _, ok := tree.Task(id); !ok {
		return nil, fmt.Errorf("taskservice: %w", notFound("task", id))
	}
	var descendants []tasktypes.Task
	tree.WalkPreOrder(id, func(task tasktypes.Task) bool {
		if task.ID != id {
			descendants = append(descendants, task)
		}
		return true
	})
	return descendants, nil
}

// GetTaskDepth returns the number of ancestors of id.
func (s *Service) GetTaskDepth(ctx context.Context, id string) (int, error) {
	tree, err := s.buildTree(ctx)
	if err != nil {
		return 0, err
	}
	if _, ok := tree.Task(id); !ok {
		return 0, fmt.Errorf("taskservice: %w", notFound("task", id))
	}
	return tree.Depth(id), nil
}

// AvailableFilter narrows GetAvailableTasks beyond "pending and
// unblocked", which always applies.
type AvailableFilter struct {
	ParentID    *string
	MinPriority *float64
	MaxPriority *float64
}

// GetAvailableTasks returns pending, unblocked tasks matching filter.
func (s *Service) GetAvailableTasks(ctx context.Context, filter AvailableFilter) ([]tasktypes.Task, error) {
	graph, err := s.buildGraph(ctx)
	if err != nil {
		return nil, err
	}
	pending := tasktypes.StatusPending
	tasks, err := s.store.ListTasks(ctx, store.Filter{Status: &pending, ParentID: filter.ParentID})
	if err != nil {
		return nil, fmt.Errorf("taskservice: list tasks: %w", err)
	}
	byID := make(map[string]tasktypes.Task, len(tasks))
	for _, t := range tasks {
		byID[t.ID] = t
	}

	var out []tasktypes.Task
	for _, id := range graph.ExecutableTasks() {
		task, ok := byID[id]
		if !ok {
			continue
		}
		if filter.MinPriority != nil && task.PriorityScore < *filter.MinPriority {
			continue
		}
		if filter.MaxPriority != nil && task.PriorityScore > *filter.MaxPriority {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetNextTask returns the available task with the highest priority
// score, tie-broken by earliest created_at then id.
func (s *Service) GetNextTask(ctx context.Context) (*tasktypes.Task, error) {
	available, err := s.GetAvailableTasks(ctx, AvailableFilter{})
	if err != nil {
		return nil, err
	}
	if len(available) == 0 {
		return nil, nil
	}
	best := available[0]
	for _, task := range available[1:] {
		switch {
		case task.PriorityScore > best.PriorityScore:
			best = task
		case task.PriorityScore == best.PriorityScore && task.CreatedAt.Before(best.CreatedAt):
			best = task
		case task.PriorityScore == best.PriorityScore && task.CreatedAt.Equal(best.CreatedAt) && task.ID < best.ID:
			best = task
		}
	}
	return &best, nil
}

// GetTopologicalOrder computes a deterministic topological order over
// ids (the whole graph if ids is empty).
func (s *Service) GetTopologicalOrder(ctx context.Context, ids []string) (ordered, unresolvable []string, err error) {
	graph, err := s.buildGraph(ctx)
	if err != nil {
		return nil, nil, err
	}
	tasks, err := s.store.ListTasks(ctx, store.Filter{IDs: ids})
	if err != nil {
		return nil, nil, fmt.Errorf("taskservice: list tasks: %w", err)
	}
	priority := make(map[string]float64, len(tasks))
	for _, t := range tasks {
		priority[t.ID] = t.PriorityScore
	}
	ordered, unresolvable = graph.TopologicalOrder(ids, priority)
	return ordered, unresolvable, nil
}
