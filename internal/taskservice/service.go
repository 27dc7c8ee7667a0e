// Package taskservice implements the Task Service (C7): the
// orchestration layer composing the store, dependency graph, task
// tree, and reconciler into the operations callers actually invoke —
// hierarchical queries, dependency-aware status transitions,
// available/next-task selection, subtree move/delete, and the
// reconciliation entry point. It is the only layer in this module that
// logs above debug, following a daemon-construction pattern of an
// injected *slog.Logger rather than a package global.
package taskservice

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/marktoda/astrotask/internal/depgraph"
	"github.com/marktoda/astrotask/internal/lockfile"
	"github.com/marktoda/astrotask/internal/reconcile"
	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

// processKind identifies this service's lock holder entries.
const processKind = "task-service"

// LockAdmin is implemented by store.Store implementations that have a
// cross-process lock file to administer (sqlite.Store does; memory.Store
// does not).
type LockAdmin interface {
	LockStatus() (*lockfile.Holder, error)
	ForceUnlock() error
}

// Service orchestrates C2-C6 for higher-level task-navigation
// operations.
type Service struct {
	store      store.Store
	log        *slog.Logger
	reconciler *reconcile.Reconciler
}

// Option configures a Service.
type Option func(*Service)

// WithLogger overrides the default (slog.Default()) logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.log = logger }
}

// New builds a Service over s.
func New(s store.Store, opts ...Option) *Service {
	svc := &Service{store: s, log: slog.Default(), reconciler: reconcile.New()}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

func (s *Service) buildTree(ctx context.Context) (*tasktree.Tree, error) {
	tasks, err := s.store.ListTasks(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("taskservice: list tasks: %w", err)
	}
	tree, err := tasktree.Build(tasks)
	if err != nil {
		return nil, fmt.Errorf("taskservice: build tree: %w", err)
	}
	return tree, nil
}

// buildGraph assembles a depgraph.Graph snapshot by walking every
// task's outbound dependency edges. The store contract exposes edges
// per-task rather than in bulk, so this is O(V) store calls; callers on
// a hot path should build one graph and reuse it across several
// queries rather than calling this per-query.
func (s *Service) buildGraph(ctx context.Context) (*depgraph.Graph, error) {
	tasks, err := s.store.ListTasks(ctx, store.Filter{})
	if err != nil {
		return nil, fmt.Errorf("taskservice: list tasks: %w", err)
	}
	statuses := make(map[string]tasktypes.Status, len(tasks))
	for _, t := range tasks {
		statuses[t.ID] = t.Status
	}
	var edges []tasktypes.Dependency
	for _, t := range tasks {
		deps, err := s.store.ListDependencies(ctx, t.ID)
		if err != nil {
			return nil, fmt.Errorf("taskservice: list dependencies of %s: %w", t.ID, err)
		}
		for _, dep := range deps {
			edges = append(edges, tasktypes.Dependency{DependentID: t.ID, DependencyID: dep})
		}
	}
	return depgraph.New(edges, statuses), nil
}

// withLock acquires the store's cooperative write lock, runs fn, and
// releases it regardless of outcome. Per the concurrency model, the
// lock must never be released before the transaction's outcome is
// finalized, so release happens only after fn returns.
func (s *Service) withLock(ctx context.Context, fn func() error) error {
	release, err := s.store.Lock(ctx, processKind)
	if err != nil {
		s.log.Warn("lock acquisition failed", "error", err)
		return err
	}
	defer func() {
		if releaseErr := release(); releaseErr != nil {
			s.log.Warn("lock release failed", "error", releaseErr)
		}
	}()
	return fn()
}

// LockStatus reports the current holder of the store's lock file, if
// the backing store supports lock administration.
func (s *Service) LockStatus() (*lockfile.Holder, error) {
	admin, ok := s.store.(LockAdmin)
	if !ok {
		return nil, fmt.Errorf("taskservice: store does not support lock administration")
	}
	return admin.LockStatus()
}

// ForceUnlock removes the store's lock file unconditionally, for manual
// recovery from a wedged holder.
func (s *Service) ForceUnlock() error {
	admin, ok := s.store.(LockAdmin)
	if !ok {
		return fmt.Errorf("taskservice: store does not support lock administration")
	}
	s.log.Warn("force unlock requested")
	return admin.ForceUnlock()
}
