package memory

import (
	"context"
	"testing"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddGetTask(t *testing.T) {
	ctx := context.Background()
	s := New()

	created, err := s.AddTask(ctx, tasktypes.Task{Title: "first", Status: tasktypes.StatusPending})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	_, err = s.GetTask(ctx, "missing")
	assert.Error(t, err)
}

func TestDependencyCycleOfCRUD(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.AddTask(ctx, tasktypes.Task{Title: "a", Status: tasktypes.StatusPending})
	b, _ := s.AddTask(ctx, tasktypes.Task{Title: "b", Status: tasktypes.StatusPending})

	_, err := s.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	deps, err := s.ListDependencies(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, deps)

	dependents, err := s.ListDependents(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, dependents)

	removed, err := s.RemoveDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	removedAgain, err := s.RemoveDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, removedAgain)
}

func TestDeleteTaskCascadesDependencies(t *testing.T) {
	ctx := context.Background()
	s := New()
	a, _ := s.AddTask(ctx, tasktypes.Task{Title: "a", Status: tasktypes.StatusPending})
	b, _ := s.AddTask(ctx, tasktypes.Task{Title: "b", Status: tasktypes.StatusPending})
	_, _ = s.AddDependency(ctx, a.ID, b.ID)

	require.NoError(t, s.DeleteTask(ctx, b.ID))

	deps, err := s.ListDependencies(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	before, err := s.Version(ctx)
	require.NoError(t, err)

	err = s.Transaction(ctx, func(tx store.Store) error {
		_, addErr := tx.AddTask(ctx, tasktypes.Task{Title: "doomed", Status: tasktypes.StatusPending})
		require.NoError(t, addErr)
		return store.ErrRollback
	})
	require.NoError(t, err)

	after, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	tasks, err := s.ListTasks(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Empty(t, tasks)
}
