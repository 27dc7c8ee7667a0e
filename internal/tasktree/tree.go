// Package tasktree implements the immutable rooted forest of tasks
// formed by parent links: navigation, traversal, predicate queries,
// effective-status computation, and pure (copy-on-write) transforms.
// Nothing in this package performs I/O; a Tree is a snapshot owned by
// its caller for the duration of a query or transform chain.
package tasktree

import (
	"fmt"
	"sort"

	"github.com/marktoda/astrotask/internal/tasktypes"
)

// Tree is an immutable rooted forest built from a flat list of tasks.
type Tree struct {
	tasks    map[string]tasktypes.Task
	children map[string][]string // parent id -> child ids, insertion order
	roots    []string
}

// Build constructs a Tree from a flat task list, validating the parent
// pointers form a forest: no duplicate ids, no parent referencing an
// unknown task, and no cycle through parent_id.
func Build(tasks []tasktypes.Task) (*Tree, error) {
	t := &Tree{
		tasks:    make(map[string]tasktypes.Task, len(tasks)),
		children: make(map[string][]string),
	}

	for _, task := range tasks {
		if _, dup := t.tasks[task.ID]; dup {
			return nil, fmt.Errorf("tasktree: duplicate task id %q", task.ID)
		}
		t.tasks[task.ID] = task
	}

	for _, task := range tasks {
		if task.IsRoot() {
			t.roots = append(t.roots, task.ID)
			continue
		}
		if _, ok := t.tasks[task.ParentID]; !ok {
			return nil, fmt.Errorf("tasktree: task %q has unknown parent %q", task.ID, task.ParentID)
		}
		t.children[task.ParentID] = append(t.children[task.ParentID], task.ID)
	}

	if err := t.checkAcyclic(); err != nil {
		return nil, err
	}

	sort.Strings(t.roots)
	for id := range t.children {
		sort.Strings(t.children[id])
	}
	return t, nil
}

func (t *Tree) checkAcyclic() error {
	state := make(map[string]int, len(t.tasks)) // 0=unvisited, 1=in-progress, 2=done
	var visit func(id string) error
	visit = func(id string) error {
		switch state[id] {
		case 2:
			return nil
		case 1:
			return fmt.Errorf("tasktree: cycle through parent_id involving %q", id)
		}
		state[id] = 1
		task := t.tasks[id]
		if !task.IsRoot() {
			if err := visit(task.ParentID); err != nil {
				return err
			}
		}
		state[id] = 2
		return nil
	}
	for id := range t.tasks {
		if err := visit(id); err != nil {
			return err
		}
	}
	return nil
}

// Task returns the task with id, if present.
func (t *Tree) Task(id string) (tasktypes.Task, bool) {
	task, ok := t.tasks[id]
	return task, ok
}

// Roots returns the ids of every task with no parent, in stable order.
func (t *Tree) Roots() []string {
	out := make([]string, len(t.roots))
	copy(out, t.roots)
	return out
}

// Parent returns the parent task of id, and false if id is a root or unknown.
func (t *Tree) Parent(id string) (tasktypes.Task, bool) {
	task, ok := t.tasks[id]
	if !ok || task.IsRoot() {
		return tasktypes.Task{}, false
	}
	return t.Task(task.ParentID)
}

// Children returns the direct children of id, in stable order.
func (t *Tree) Children(id string) []string {
	kids := t.children[id]
	out := make([]string, len(kids))
	copy(out, kids)
	return out
}

// Siblings returns the other children of id's parent (root tasks are
// siblings of the other roots).
func (t *Tree) Siblings(id string) []string {
	task, ok := t.tasks[id]
	if !ok {
		return nil
	}
	var pool []string
	if task.IsRoot() {
		pool = t.roots
	} else {
		pool = t.children[task.ParentID]
	}
	var out []string
	for _, sib := range pool {
		if sib != id {
			out = append(out, sib)
		}
	}
	return out
}

// Root returns the root ancestor of id (id itself if it is already a root).
func (t *Tree) Root(id string) (tasktypes.Task, bool) {
	task, ok := t.tasks[id]
	if !ok {
		return tasktypes.Task{}, false
	}
	for !task.IsRoot() {
		task = t.tasks[task.ParentID]
	}
	return task, true
}

// Path returns the chain of ids from the root to id, inclusive.
func (t *Tree) Path(id string) []string {
	task, ok := t.tasks[id]
	if !ok {
		return nil
	}
	var reversed []string
	for {
		reversed = append(reversed, task.ID)
		if task.IsRoot() {
			break
		}
		task = t.tasks[task.ParentID]
	}
	path := make([]string, len(reversed))
	for i, id := range reversed {
		path[len(reversed)-1-i] = id
	}
	return path
}

// Depth returns the number of ancestors of id (0 for a root).
func (t *Tree) Depth(id string) int {
	return len(t.Path(id)) - 1
}

// DescendantCount returns the number of strict descendants of id.
func (t *Tree) DescendantCount(id string) int {
	count := 0
	t.WalkPreOrder(id, func(descendant tasktypes.Task) bool {
		if descendant.ID != id {
			count++
		}
		return true
	})
	return count
}

// IsAncestorOf reports whether a is a strict ancestor of b.
func (t *Tree) IsAncestorOf(a, b string) bool {
	task, ok := t.tasks[b]
	if !ok {
		return false
	}
	for !task.IsRoot() {
		if task.ParentID == a {
			return true
		}
		task = t.tasks[task.ParentID]
	}
	return false
}

// IsDescendantOf reports whether a is a strict descendant of b.
func (t *Tree) IsDescendantOf(a, b string) bool {
	return t.IsAncestorOf(b, a)
}

// IsSiblingOf reports whether a and b share a parent (or are both roots)
// and are distinct.
func (t *Tree) IsSiblingOf(a, b string) bool {
	if a == b {
		return false
	}
	ta, ok := t.tasks[a]
	if !ok {
		return false
	}
	tb, ok := t.tasks[b]
	if !ok {
		return false
	}
	return ta.ParentID == tb.ParentID
}

// EffectiveStatus returns id's status as overridden by its ancestor
// chain: if any (strict) ancestor has status done, cancelled, or
// archived, the effective status is the highest-priority such status
// among them (done > cancelled > archived), regardless of how far up the
// chain it sits; otherwise id's own status. The raw, stored status is
// never modified by this computation.
func (t *Tree) EffectiveStatus(id string) tasktypes.Status {
	path := t.Path(id)
	sawCancelled, sawArchived := false, false
	for _, ancestorID := range path {
		if ancestorID == id {
			continue
		}
		switch t.tasks[ancestorID].Status {
		case tasktypes.StatusDone:
			return tasktypes.StatusDone
		case tasktypes.StatusCancelled:
			sawCancelled = true
		case tasktypes.StatusArchived:
			sawArchived = true
		}
	}
	if sawCancelled {
		return tasktypes.StatusCancelled
	}
	if sawArchived {
		return tasktypes.StatusArchived
	}
	return t.tasks[id].Status
}
