package tasktree

import (
	"testing"

	"github.com/marktoda/astrotask/internal/tasktypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func task(id, parent string, status tasktypes.Status) tasktypes.Task {
	return tasktypes.Task{ID: id, ParentID: parent, Title: id, Status: status, PriorityScore: 50}
}

func sampleTasks() []tasktypes.Task {
	return []tasktypes.Task{
		task("p", "", tasktypes.StatusPending),
		task("c1", "p", tasktypes.StatusPending),
		task("c2", "p", tasktypes.StatusPending),
		task("g1", "c1", tasktypes.StatusPending),
	}
}

func TestBuildRejectsUnknownParent(t *testing.T) {
	_, err := Build([]tasktypes.Task{task("a", "missing", tasktypes.StatusPending)})
	assert.Error(t, err)
}

func TestBuildRejectsDuplicateID(t *testing.T) {
	_, err := Build([]tasktypes.Task{task("a", "", tasktypes.StatusPending), task("a", "", tasktypes.StatusPending)})
	assert.Error(t, err)
}

func TestBuildRejectsParentCycle(t *testing.T) {
	tasks := []tasktypes.Task{
		{ID: "a", ParentID: "b"},
		{ID: "b", ParentID: "a"},
	}
	_, err := Build(tasks)
	assert.Error(t, err)
}

func TestNavigation(t *testing.T) {
	tr, err := Build(sampleTasks())
	require.NoError(t, err)

	assert.Equal(t, []string{"p"}, tr.Roots())
	assert.Equal(t, []string{"c1", "c2"}, tr.Children("p"))
	assert.Equal(t, []string{"c2"}, tr.Siblings("c1"))

	root, ok := tr.Root("g1")
	require.True(t, ok)
	assert.Equal(t, "p", root.ID)

	assert.Equal(t, []string{"p", "c1", "g1"}, tr.Path("g1"))
	assert.Equal(t, 2, tr.Depth("g1"))
	assert.Equal(t, 0, tr.Depth("p"))
	assert.Equal(t, 3, tr.DescendantCount("p"))

	assert.True(t, tr.IsAncestorOf("p", "g1"))
	assert.False(t, tr.IsAncestorOf("c2", "g1"))
	assert.True(t, tr.IsDescendantOf("g1", "p"))
	assert.True(t, tr.IsSiblingOf("c1", "c2"))
	assert.False(t, tr.IsSiblingOf("c1", "g1"))
}

func TestEffectiveStatus(t *testing.T) {
	tasks := sampleTasks()
	tasks[0].Status = tasktypes.StatusDone // p is done
	tr, err := Build(tasks)
	require.NoError(t, err)

	assert.Equal(t, tasktypes.StatusDone, tr.EffectiveStatus("g1"))
	assert.Equal(t, tasktypes.StatusDone, tr.EffectiveStatus("p"))
}

func TestWalkPreOrderEarlyTermination(t *testing.T) {
	tr, err := Build(sampleTasks())
	require.NoError(t, err)

	var visited []string
	tr.WalkPreOrder("p", func(tk tasktypes.Task) bool {
		visited = append(visited, tk.ID)
		return tk.ID != "c1"
	})
	assert.Equal(t, []string{"p", "c1"}, visited)
}

func TestFilter(t *testing.T) {
	tr, err := Build(sampleTasks())
	require.NoError(t, err)

	matches := tr.Filter(func(tk tasktypes.Task) bool { return tk.ID != "p" })
	assert.Len(t, matches, 3)
}

func TestWithTask(t *testing.T) {
	tr, err := Build(sampleTasks())
	require.NoError(t, err)

	title := "renamed"
	next, err := tr.WithTask("c1", Update{Title: &title})
	require.NoError(t, err)

	updated, ok := next.Task("c1")
	require.True(t, ok)
	assert.Equal(t, "renamed", updated.Title)

	original, ok := tr.Task("c1")
	require.True(t, ok)
	assert.Equal(t, "c1", original.Title, "original tree must be unaffected")
}

func TestAddAndRemoveChild(t *testing.T) {
	tr, err := Build(sampleTasks())
	require.NoError(t, err)

	next, err := tr.AddChild("c2", []tasktypes.Task{task("new", "", tasktypes.StatusPending)})
	require.NoError(t, err)
	assert.Equal(t, []string{"new"}, next.Children("c2"))

	after, err := next.RemoveChild("c1")
	require.NoError(t, err)
	_, ok := after.Task("c1")
	assert.False(t, ok)
	_, ok = after.Task("g1")
	assert.False(t, ok, "descendants of removed node must also be gone")
}

func TestUpdateDescendants(t *testing.T) {
	tr, err := Build(sampleTasks())
	require.NoError(t, err)

	status := tasktypes.StatusCancelled
	next, err := tr.UpdateDescendants("p", nil, Update{Status: &status})
	require.NoError(t, err)

	for _, id := range []string{"p", "c1", "c2", "g1"} {
		tk, _ := next.Task(id)
		assert.Equal(t, tasktypes.StatusCancelled, tk.Status)
	}
}

func TestBatch(t *testing.T) {
	tr, err := Build(sampleTasks())
	require.NoError(t, err)

	title := "batched"
	status := tasktypes.StatusDone
	next, err := tr.Batch([]Op{
		{Kind: OpUpdateTask, TaskID: "c1", Update: Update{Title: &title}},
		{Kind: OpBulkStatusUpdate, RootID: "p", Status: status},
	})
	require.NoError(t, err)

	c1, _ := next.Task("c1")
	assert.Equal(t, "batched", c1.Title)
	assert.Equal(t, tasktypes.StatusDone, c1.Status)
}
