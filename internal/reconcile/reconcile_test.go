package reconcile

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/store/memory"
	"github.com/marktoda/astrotask/internal/taskerrors"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
	"github.com/marktoda/astrotask/internal/tracking"
)

func newTrackingTree(t *testing.T, s store.Store) *tracking.Tree {
	t.Helper()
	ctx := context.Background()
	version, err := s.Version(ctx)
	require.NoError(t, err)
	tasks, err := s.ListTasks(ctx, store.Filter{})
	require.NoError(t, err)
	tr, err := tracking.New("tree-1", tasks, version)
	require.NoError(t, err)
	return tr
}

func TestTempIDParentChildFlush(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tr := newTrackingTree(t, s)

	require.NoError(t, tr.AddChild(tasktypes.RootParentID, []tasktypes.Task{
		{ID: "tmp-p", Title: "P", Status: tasktypes.StatusPending, PriorityScore: 50},
	}))
	require.NoError(t, tr.AddChild("tmp-p", []tasktypes.Task{
		{ID: "tmp-c", Title: "C", Status: tasktypes.StatusPending, PriorityScore: 50},
	}))

	plan := tr.BuildPlan()
	result, err := New().Run(ctx, s, plan)
	require.NoError(t, err)
	require.Len(t, result.IDMap, 2)

	pID := result.IDMap["tmp-p"]
	cID := result.IDMap["tmp-c"]
	require.NotEmpty(t, pID)
	require.NotEmpty(t, cID)

	child, ok := result.Tree.Task(cID)
	require.True(t, ok)
	assert.Equal(t, pID, child.ParentID)

	tr.Clear(result.NewVersion)
	assert.False(t, tr.HasPendingChanges())
}

func TestCyclePreventionRejectsBatch(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	a, _ := s.AddTask(ctx, tasktypes.Task{Title: "A", Status: tasktypes.StatusPending})
	b, _ := s.AddTask(ctx, tasktypes.Task{Title: "B", Status: tasktypes.StatusPending})
	c, _ := s.AddTask(ctx, tasktypes.Task{Title: "C", Status: tasktypes.StatusPending})
	_, err := s.AddDependency(ctx, a.ID, b.ID)
	require.NoError(t, err)
	_, err = s.AddDependency(ctx, b.ID, c.ID)
	require.NoError(t, err)

	tr := newTrackingTree(t, s)
	tr.AddDependency(c.ID, a.ID)

	_, err = New().Run(ctx, s, tr.BuildPlan())
	require.Error(t, err)
	var graphErr *taskerrors.GraphInvariantError
	require.ErrorAs(t, err, &graphErr)
	assert.Equal(t, taskerrors.ReasonCycle, graphErr.Reason)

	deps, err := s.ListDependencies(ctx, c.ID)
	require.NoError(t, err)
	assert.Empty(t, deps)
}

func TestOptimisticConflictOnOverlappingBase(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	task, err := s.AddTask(ctx, tasktypes.Task{Title: "shared", Status: tasktypes.StatusPending})
	require.NoError(t, err)

	tree1 := newTrackingTree(t, s)
	tree2 := newTrackingTree(t, s)

	title1 := "from tree1"
	require.NoError(t, tree1.UpdateTask(task.ID, tasktree.Update{Title: &title1}))
	result1, err := New().Run(ctx, s, tree1.BuildPlan())
	require.NoError(t, err)
	tree1.Clear(result1.NewVersion)

	desc2 := "from tree2"
	require.NoError(t, tree2.UpdateTask(task.ID, tasktree.Update{Description: &desc2}))
	_, err = New().Run(ctx, s, tree2.BuildPlan())
	require.Error(t, err)
	var conflictErr *taskerrors.ConflictError
	require.ErrorAs(t, err, &conflictErr)
	assert.True(t, tree2.HasPendingChanges(), "a failed reconciliation must preserve the tracking log for retry")
}

func TestCascadeDeleteRemovesSubtreeAndEdges(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	p, _ := s.AddTask(ctx, tasktypes.Task{Title: "P", Status: tasktypes.StatusPending})
	child1, _ := s.AddTask(ctx, tasktypes.Task{Title: "child1", Status: tasktypes.StatusPending, ParentID: p.ID})
	external, _ := s.AddTask(ctx, tasktypes.Task{Title: "external", Status: tasktypes.StatusPending})
	_, err := s.AddDependency(ctx, child1.ID, external.ID)
	require.NoError(t, err)

	tr := newTrackingTree(t, s)
	require.NoError(t, tr.RemoveChild(p.ID))

	result, err := New().Run(ctx, s, tr.BuildPlan())
	require.NoError(t, err)

	_, ok := result.Tree.Task(p.ID)
	assert.False(t, ok)
	_, ok = result.Tree.Task(child1.ID)
	assert.False(t, ok)
	_, ok = result.Tree.Task(external.ID)
	assert.True(t, ok)

	dependents, err := s.ListDependents(ctx, external.ID)
	require.NoError(t, err)
	assert.Empty(t, dependents)
}

func TestTaskUpdateRejectsIllegalTransition(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	task, err := s.AddTask(ctx, tasktypes.Task{Title: "A", Status: tasktypes.StatusPending})
	require.NoError(t, err)

	tr := newTrackingTree(t, s)
	done := tasktypes.StatusDone
	require.NoError(t, tr.UpdateTask(task.ID, tasktree.Update{Status: &done}))

	_, err = New().Run(ctx, s, tr.BuildPlan())
	require.Error(t, err)
	var illegalErr *taskerrors.IllegalTransitionError
	assert.True(t, errors.As(err, &illegalErr))
}

func TestTaskUpdateOnUnmappedTempIDFails(t *testing.T) {
	ctx := context.Background()
	s := memory.New()
	tr := newTrackingTree(t, s)

	plan := tr.BuildPlan()
	plan.Ops = append(plan.Ops, tracking.Op{
		Kind:   tracking.OpTaskUpdate,
		TaskID: tasktypes.NewTemporaryID(),
		Update: tasktree.Update{Title: strPtr("x")},
	})

	_, err := New().Run(ctx, s, plan)
	assert.Error(t, err)
}

func strPtr(s string) *string { return &s }
