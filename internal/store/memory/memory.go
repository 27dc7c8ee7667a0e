// Package memory implements an in-process, mutex-guarded store.Store,
// the reference implementation used by the reconciler and task-service
// test suites and by any caller that doesn't need cross-process
// durability.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

// Store is a goroutine-safe, in-memory store.Store.
type Store struct {
	mu        sync.Mutex
	writeLock sync.Mutex
	tasks     map[string]tasktypes.Task
	// deps[dependent] is the set of ids dependent depends on.
	deps    map[string]map[string]bool
	version int64
	nextID  int64
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		tasks: make(map[string]tasktypes.Task),
		deps:  make(map[string]map[string]bool),
	}
}

func (s *Store) GetTask(_ context.Context, id string) (tasktypes.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return tasktypes.Task{}, store.NotFoundTask(id)
	}
	return task, nil
}

func (s *Store) ListTasks(_ context.Context, filter store.Filter) ([]tasktypes.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var allow map[string]bool
	if len(filter.IDs) > 0 {
		allow = make(map[string]bool, len(filter.IDs))
		for _, id := range filter.IDs {
			allow[id] = true
		}
	}

	var out []tasktypes.Task
	for _, task := range s.tasks {
		if allow != nil && !allow[task.ID] {
			continue
		}
		if filter.Status != nil && task.Status != *filter.Status {
			continue
		}
		if filter.ParentID != nil && task.ParentID != *filter.ParentID {
			continue
		}
		out = append(out, task)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ListSubtasks(_ context.Context, parentID string) ([]tasktypes.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []tasktypes.Task
	for _, task := range s.tasks {
		if task.ParentID == parentID {
			out = append(out, task)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) AddTask(ctx context.Context, task tasktypes.Task) (tasktypes.Task, error) {
	s.mu.Lock()
	s.nextID++
	task.ID = "t-" + strconv.FormatInt(s.nextID, 10)
	s.mu.Unlock()
	return s.AddTaskWithID(ctx, task)
}

func (s *Store) AddTaskWithID(_ context.Context, task tasktypes.Task) (tasktypes.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if task.ID == "" {
		return tasktypes.Task{}, fmt.Errorf("memory: AddTaskWithID requires a non-empty id")
	}
	now := store.Now()
	task.CreatedAt = now
	task.UpdatedAt = now
	s.tasks[task.ID] = task
	s.bumpVersionLocked()
	return task, nil
}

func (s *Store) UpdateTask(_ context.Context, id string, update tasktree.Update) (tasktypes.Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return tasktypes.Task{}, store.NotFoundTask(id)
	}
	task = applyUpdate(task, update)
	task.UpdatedAt = store.Now()
	s.tasks[id] = task
	s.bumpVersionLocked()
	return task, nil
}

func applyUpdate(task tasktypes.Task, u tasktree.Update) tasktypes.Task {
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

func (s *Store) DeleteTask(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return store.NotFoundTask(id)
	}
	delete(s.tasks, id)
	delete(s.deps, id)
	for dependent, deps := range s.deps {
		delete(deps, id)
		if len(deps) == 0 {
			delete(s.deps, dependent)
		}
	}
	s.bumpVersionLocked()
	return nil
}

func (s *Store) AddDependency(_ context.Context, dependentID, dependencyID string) (tasktypes.Dependency, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[dependentID]; !ok {
		return tasktypes.Dependency{}, store.NotFoundTask(dependentID)
	}
	if _, ok := s.tasks[dependencyID]; !ok {
		return tasktypes.Dependency{}, store.NotFoundTask(dependencyID)
	}
	if s.deps[dependentID][dependencyID] {
		return tasktypes.Dependency{}, fmt.Errorf("memory: dependency %s->%s already exists", dependentID, dependencyID)
	}
	if s.deps[dependentID] == nil {
		s.deps[dependentID] = make(map[string]bool)
	}
	s.deps[dependentID][dependencyID] = true
	s.bumpVersionLocked()
	return tasktypes.Dependency{DependentID: dependentID, DependencyID: dependencyID, CreatedAt: store.Now()}, nil
}

func (s *Store) RemoveDependency(_ context.Context, dependentID, dependencyID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.deps[dependentID][dependencyID] {
		return false, nil
	}
	delete(s.deps[dependentID], dependencyID)
	if len(s.deps[dependentID]) == 0 {
		delete(s.deps, dependentID)
	}
	s.bumpVersionLocked()
	return true, nil
}

func (s *Store) ListDependencies(_ context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.deps[id]))
	for dep := range s.deps[id] {
		out = append(out, dep)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) ListDependents(_ context.Context, id string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for dependent, deps := range s.deps {
		if deps[id] {
			out = append(out, dependent)
		}
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) Version(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version, nil
}

func (s *Store) bumpVersionLocked() {
	s.version++
}

// Transaction snapshots state before running fn so a returned error
// (including store.ErrRollback) rolls every mutation back. It does not
// itself acquire the cooperative writer lock — callers that need
// cross-process exclusivity call Lock first, as the Task Service does.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	s.mu.Lock()
	snapshotTasks := cloneTasks(s.tasks)
	snapshotDeps := cloneDeps(s.deps)
	snapshotVersion := s.version
	s.mu.Unlock()

	if err := fn(s); err != nil {
		s.mu.Lock()
		s.tasks = snapshotTasks
		s.deps = snapshotDeps
		s.version = snapshotVersion
		s.mu.Unlock()
		if err == store.ErrRollback {
			return nil
		}
		return err
	}
	return nil
}

// Lock acquires the in-process writer mutex; memory.Store has no
// cross-process presence, so there is no lock file to coordinate.
func (s *Store) Lock(_ context.Context, _ string) (func() error, error) {
	s.writeLock.Lock()
	return func() error {
		s.writeLock.Unlock()
		return nil
	}, nil
}

func cloneTasks(in map[string]tasktypes.Task) map[string]tasktypes.Task {
	out := make(map[string]tasktypes.Task, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func cloneDeps(in map[string]map[string]bool) map[string]map[string]bool {
	out := make(map[string]map[string]bool, len(in))
	for k, v := range in {
		inner := make(map[string]bool, len(v))
		for kk, vv := range v {
			inner[kk] = vv
		}
		out[k] = inner
	}
	return out
}
