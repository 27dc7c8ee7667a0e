package depgraph

import "sort"

// TopologicalOrder computes a deterministic topological order over ids
// (or the whole graph, if ids is empty) using Kahn's algorithm. Ties
// among simultaneously-ready nodes are broken by descending priority
// score, then ascending id, so the order is reproducible across runs
// given the same inputs. priority looks up the tie-break score for an
// id; ids missing from it sort as the lowest priority.
//
// A requested subset is restricted to the induced subgraph, but a
// dependency edge routed through a node outside the subset is not
// dropped: nearestSubsetDeps walks past excluded nodes to find the
// closest in-subset ancestor on each path, so transitive dependencies
// are respected even when the node carrying them isn't in ids.
//
// Returns the ordered ids plus any ids that could not be placed because
// they participate in a cycle (within the requested subset); a fully
// acyclic subset yields an empty unresolvable slice.
func (g *Graph) TopologicalOrder(ids []string, priority map[string]float64) (ordered, unresolvable []string) {
	subset := ids
	if len(subset) == 0 {
		subset = g.ids
	}
	inSubset := make(map[string]bool, len(subset))
	for _, id := range subset {
		inSubset[id] = true
	}

	// effectiveDependents[d] holds every subset id whose nearest
	// in-subset dependency (direct, or transitive through excluded
	// nodes) is d.
	indegree := make(map[string]int, len(subset))
	effectiveDependents := make(map[string][]string, len(subset))
	memo := make(map[string][]string, len(subset))

	for _, id := range subset {
		deps := g.nearestSubsetDeps(id, inSubset, memo)
		indegree[id] = len(deps)
		for _, dep := range deps {
			effectiveDependents[dep] = append(effectiveDependents[dep], id)
		}
	}

	ready := make([]string, 0, len(subset))
	for _, id := range subset {
		if indegree[id] == 0 {
			ready = append(ready, id)
		}
	}

	less := func(a, b string) bool {
		pa, pb := priority[a], priority[b]
		if pa != pb {
			return pa > pb
		}
		return a < b
	}

	for len(ready) > 0 {
		sort.Slice(ready, func(i, j int) bool { return less(ready[i], ready[j]) })
		next := ready[0]
		ready = ready[1:]
		ordered = append(ordered, next)

		for _, dependent := range effectiveDependents[next] {
			indegree[dependent]--
			if indegree[dependent] == 0 {
				ready = append(ready, dependent)
			}
		}
	}

	if len(ordered) < len(subset) {
		placed := make(map[string]bool, len(ordered))
		for _, id := range ordered {
			placed[id] = true
		}
		for _, id := range subset {
			if !placed[id] {
				unresolvable = append(unresolvable, id)
			}
		}
		sort.Strings(unresolvable)
	}
	return ordered, unresolvable
}

// nearestSubsetDeps returns the distinct in-subset ids reachable from id
// by following forward ("depends on") edges, skipping over any node not
// in the subset to find the closest in-subset ancestor on each path.
// Results are memoized per id since the same node is often the nearest
// ancestor on many paths in a single call to TopologicalOrder.
func (g *Graph) nearestSubsetDeps(id string, inSubset map[string]bool, memo map[string][]string) []string {
	if cached, ok := memo[id]; ok {
		return cached
	}
	visited := map[string]bool{id: true}
	var result []string

	var walk func(node string)
	walk = func(node string) {
		for _, dep := range g.Deps(node) {
			if visited[dep] {
				continue
			}
			visited[dep] = true
			if inSubset[dep] {
				result = append(result, dep)
				continue
			}
			walk(dep)
		}
	}
	walk(id)

	memo[id] = result
	return result
}
