// Package depgraph implements the dependency graph: a pure, immutable,
// in-memory directed graph over task ids, built fresh from a snapshot of
// {edges, task statuses}. Nothing in this package performs I/O or logs
// above debug; callers rebuild a Graph whenever the underlying edge set
// changes.
//
// Edge direction: an edge (dependent -> dependency) means "dependent
// cannot start until dependency is done". Deps(id) follows edges forward
// (id's prerequisites); Dependents(id) follows them backward (tasks
// waiting on id).
package depgraph

import (
	"sort"

	"github.com/marktoda/astrotask/internal/tasktypes"
)

// Graph is an immutable snapshot of the dependency DAG (or, before
// validation, a dependency digraph that may contain cycles).
type Graph struct {
	// forward[d] is the set of ids d depends on.
	forward map[string]map[string]bool
	// backward[d] is the set of ids that depend on d.
	backward map[string]map[string]bool
	statuses map[string]tasktypes.Status
	// ids is every id mentioned by an edge or the statuses map, kept in
	// insertion order for deterministic iteration where no other
	// tie-break is specified.
	ids []string
}

// New builds a Graph from a flat edge list and a status snapshot. Edges
// referencing ids absent from statuses are still represented (IsBlocked
// and similar treat an id with no known status as not-done, i.e.
// blocking); validating edge endpoints against the store is the
// caller's job.
func New(edges []tasktypes.Dependency, statuses map[string]tasktypes.Status) *Graph {
	g := &Graph{
		forward:  make(map[string]map[string]bool),
		backward: make(map[string]map[string]bool),
		statuses: make(map[string]tasktypes.Status, len(statuses)),
	}
	seen := make(map[string]bool)
	addID := func(id string) {
		if !seen[id] {
			seen[id] = true
			g.ids = append(g.ids, id)
		}
	}
	for id, st := range statuses {
		g.statuses[id] = st
		addID(id)
	}
	for _, e := range edges {
		addID(e.DependentID)
		addID(e.DependencyID)
		if g.forward[e.DependentID] == nil {
			g.forward[e.DependentID] = make(map[string]bool)
		}
		g.forward[e.DependentID][e.DependencyID] = true
		if g.backward[e.DependencyID] == nil {
			g.backward[e.DependencyID] = make(map[string]bool)
		}
		g.backward[e.DependencyID][e.DependentID] = true
	}
	return g
}

// Deps returns the ids that id directly depends on (its prerequisites).
func (g *Graph) Deps(id string) []string {
	return sortedKeys(g.forward[id])
}

// Dependents returns the ids that directly depend on id.
func (g *Graph) Dependents(id string) []string {
	return sortedKeys(g.backward[id])
}

// Status returns the known status of id, or "" if unknown to this snapshot.
func (g *Graph) Status(id string) tasktypes.Status {
	return g.statuses[id]
}

// IDs returns every id this graph knows about, in a stable order.
func (g *Graph) IDs() []string {
	out := make([]string, len(g.ids))
	copy(out, g.ids)
	sort.Strings(out)
	return out
}

// IsBlocked reports whether id has any dependency whose status is not done.
func (g *Graph) IsBlocked(id string) bool {
	for dep := range g.forward[id] {
		if g.statuses[dep] != tasktypes.StatusDone {
			return true
		}
	}
	return false
}

// BlockedBy returns the specific incomplete dependencies of id.
func (g *Graph) BlockedBy(id string) []string {
	var blockers []string
	for dep := range g.forward[id] {
		if g.statuses[dep] != tasktypes.StatusDone {
			blockers = append(blockers, dep)
		}
	}
	sort.Strings(blockers)
	return blockers
}

// ExecutableTasks returns the ids with status pending and no incomplete
// dependency.
func (g *Graph) ExecutableTasks() []string {
	var out []string
	for _, id := range g.ids {
		if g.statuses[id] == tasktypes.StatusPending && !g.IsBlocked(id) {
			out = append(out, id)
		}
	}
	sort.Strings(out)
	return out
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
