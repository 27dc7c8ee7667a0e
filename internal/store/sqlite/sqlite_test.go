package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marktoda/astrotask/internal/lockfile"
	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	s, err := Open(dbPath, lockfile.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAddGetTask(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	created, err := s.AddTask(ctx, tasktypes.Task{Title: "first", Status: tasktypes.StatusPending})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, tasktypes.IsTemporaryID(created.ID))

	got, err := s.GetTask(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", got.Title)

	_, err = s.GetTask(ctx, "missing")
	assert.Error(t, err)
}

func TestDependencyCRUD(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, err := s.AddTask(ctx, tasktypes.Task{Title: "a", Status: tasktypes.StatusPending})
	require.NoError(t, err)
	b, err := s.AddTask(ctx, tasktypes.Task{Title: "b", Status: tasktypes.StatusPending})
	require.NoError(t, err)

	_, err = s.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	deps, err := s.ListDependencies(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, deps)

	dependents, err := s.ListDependents(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, dependents)

	_, err = s.AddDependency(ctx, a.ID, b.ID)
	assert.Error(t, err, "duplicate dependency should violate the unique constraint")

	removed, err := s.RemoveDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.True(t, removed)
}

func TestDependencySelfReferenceRejected(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, err := s.AddTask(ctx, tasktypes.Task{Title: "a", Status: tasktypes.StatusPending})
	require.NoError(t, err)

	_, err = s.AddDependency(ctx, a.ID, a.ID)
	assert.Error(t, err)
}

func TestDeleteTaskCascadesDependencies(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, _ := s.AddTask(ctx, tasktypes.Task{Title: "a", Status: tasktypes.StatusPending})
	b, _ := s.AddTask(ctx, tasktypes.Task{Title: "b", Status: tasktypes.StatusPending})
	_, err := s.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)

	require.NoError(t, s.DeleteTask(ctx, b.ID))

	deps, err := s.ListDependencies(ctx, a.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestUpdateTaskPartialFields(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	a, err := s.AddTask(ctx, tasktypes.Task{Title: "a", Status: tasktypes.StatusPending})
	require.NoError(t, err)

	newTitle := "renamed"
	updated, err := s.UpdateTask(ctx, a.ID, tasktree.Update{Title: &newTitle})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Title)
	assert.Equal(t, tasktypes.StatusPending, updated.Status)
}

func TestTransactionCommitsAndBumpsVersion(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
	before, err := s.Version(ctx)
	require.NoError(t, err)

	err = s.Transaction(ctx, func(tx store.Store) error {
		_, addErr := tx.AddTask(ctx, tasktypes.Task{Title: "committed", Status: tasktypes.StatusPending})
		return addErr
	})
	require.NoError(t, err)

	after, err := s.Version(ctx)
	require.NoError(t, err)
	assert.Greater(t, after, before)

	tasks, err := s.ListTasks(ctx, store.Filter{})
	require.NoError(t, err)
	assert.Len(t, tasks, 1)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)
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

func TestAddTaskMintsSemanticIDAndDisambiguatesCollisions(t *testing.T) {
	ctx := context.Background()
	s := openTestStore(t)

	first, err := s.AddTask(ctx, tasktypes.Task{Title: "Write the release notes", Status: tasktypes.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, "t-write_release_notes", first.ID)

	second, err := s.AddTask(ctx, tasktypes.Task{Title: "Write the release notes", Status: tasktypes.StatusPending})
	require.NoError(t, err)
	assert.Equal(t, "t-write_release_notes_2", second.ID)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestLockExcludesConcurrentAcquire(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	s, err := Open(dbPath, lockfile.Options{RetryBudget: 50 * time.Millisecond})
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	release, err := s.Lock(ctx, "test")
	require.NoError(t, err)

	_, err = s.Lock(ctx, "test")
	assert.Error(t, err, "a second lock attempt while the first is held should fail")

	require.NoError(t, release())
}
