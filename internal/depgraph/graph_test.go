package depgraph

import (
	"testing"

	"github.com/marktoda/astrotask/internal/tasktypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edge(dependent, dependency string) tasktypes.Dependency {
	return tasktypes.Dependency{DependentID: dependent, DependencyID: dependency}
}

func statuses(pairs ...interface{}) map[string]tasktypes.Status {
	m := make(map[string]tasktypes.Status)
	for i := 0; i < len(pairs); i += 2 {
		m[pairs[i].(string)] = pairs[i+1].(tasktypes.Status)
	}
	return m
}

func TestGraphBlocking(t *testing.T) {
	g := New(
		[]tasktypes.Dependency{edge("b", "a"), edge("c", "a"), edge("c", "b")},
		statuses("a", tasktypes.StatusPending, "b", tasktypes.StatusPending, "c", tasktypes.StatusPending),
	)

	assert.False(t, g.IsBlocked("a"))
	assert.True(t, g.IsBlocked("b"))
	assert.True(t, g.IsBlocked("c"))
	assert.Equal(t, []string{"a"}, g.BlockedBy("b"))
	assert.ElementsMatch(t, []string{"a", "b"}, g.BlockedBy("c"))

	assert.Equal(t, []string{"a"}, g.ExecutableTasks())

	g2 := New(
		[]tasktypes.Dependency{edge("b", "a")},
		statuses("a", tasktypes.StatusDone, "b", tasktypes.StatusPending),
	)
	assert.False(t, g2.IsBlocked("b"))
	assert.Equal(t, []string{"b"}, g2.ExecutableTasks())
}

func TestFindCyclesOnAcyclicGraph(t *testing.T) {
	g := New([]tasktypes.Dependency{edge("b", "a"), edge("c", "b")}, nil)
	assert.Empty(t, g.FindCycles())
}

func TestFindCyclesDetectsLoop(t *testing.T) {
	g := New([]tasktypes.Dependency{edge("a", "b"), edge("b", "c"), edge("c", "a")}, nil)
	cycles := g.FindCycles()
	require.NotEmpty(t, cycles)
	assert.Equal(t, cycles[0][0], cycles[0][len(cycles[0])-1])
}

func TestWouldCreateCycle(t *testing.T) {
	g := New([]tasktypes.Dependency{edge("b", "a"), edge("c", "b")}, nil)

	// c already (transitively) depends on a, so a depending on c would close a loop.
	assert.True(t, g.WouldCreateCycle("a", "c"))
	// a depending on a new, unrelated task is fine.
	assert.False(t, g.WouldCreateCycle("a", "d"))
	// self-dependency is always a cycle.
	assert.True(t, g.WouldCreateCycle("a", "a"))
}

func TestTopologicalOrderDeterministicTieBreak(t *testing.T) {
	g := New(
		[]tasktypes.Dependency{edge("b", "a"), edge("c", "a")},
		statuses("a", tasktypes.StatusPending, "b", tasktypes.StatusPending, "c", tasktypes.StatusPending),
	)
	priority := map[string]float64{"a": 10, "b": 50, "c": 50}

	ordered, unresolvable := g.TopologicalOrder(nil, priority)
	require.Empty(t, unresolvable)
	require.Len(t, ordered, 3)
	assert.Equal(t, "a", ordered[0])
	// b and c tie on priority; "b" sorts before "c" alphabetically.
	assert.Equal(t, []string{"b", "c"}, ordered[1:])
}

func TestTopologicalOrderReportsUnresolvableOnCycle(t *testing.T) {
	g := New([]tasktypes.Dependency{edge("a", "b"), edge("b", "a")}, nil)
	ordered, unresolvable := g.TopologicalOrder(nil, nil)
	assert.Empty(t, ordered)
	assert.ElementsMatch(t, []string{"a", "b"}, unresolvable)
}

func TestTopologicalOrderSubsetRespectsTransitiveDepThroughExcludedNode(t *testing.T) {
	// c depends on b depends on a; requesting a subset of {a, c} that
	// excludes b must still order a before c, since b's exclusion from
	// the subset doesn't erase the a -> b -> c dependency chain.
	g := New(
		[]tasktypes.Dependency{edge("c", "b"), edge("b", "a")},
		statuses("a", tasktypes.StatusPending, "b", tasktypes.StatusPending, "c", tasktypes.StatusPending),
	)

	ordered, unresolvable := g.TopologicalOrder([]string{"a", "c"}, nil)
	require.Empty(t, unresolvable)
	assert.Equal(t, []string{"a", "c"}, ordered)
}

func TestShortestPath(t *testing.T) {
	g := New([]tasktypes.Dependency{edge("c", "b"), edge("b", "a"), edge("c", "a")}, nil)
	assert.Equal(t, []string{"c", "a"}, g.ShortestPath("c", "a"))
	assert.Nil(t, g.ShortestPath("a", "c"))
	assert.Equal(t, []string{"a"}, g.ShortestPath("a", "a"))
}

func TestDepth(t *testing.T) {
	g := New([]tasktypes.Dependency{edge("c", "b"), edge("b", "a")}, nil)
	assert.Equal(t, 0, g.Depth("a"))
	assert.Equal(t, 1, g.Depth("b"))
	assert.Equal(t, 2, g.Depth("c"))

	cyclic := New([]tasktypes.Dependency{edge("x", "y"), edge("y", "x")}, nil)
	assert.NotPanics(t, func() { cyclic.Depth("x") })
}
