package tasktree

import "github.com/marktoda/astrotask/internal/tasktypes"

// Visitor is called for each task during a traversal. Returning false
// stops the traversal early.
type Visitor func(task tasktypes.Task) bool

// WalkPreOrder visits id and its descendants depth-first, parent before
// children, children in stable order. If id is unknown, nothing is
// visited.
func (t *Tree) WalkPreOrder(id string, visit Visitor) {
	task, ok := t.tasks[id]
	if !ok {
		return
	}
	t.walkPreOrder(task, visit)
}

func (t *Tree) walkPreOrder(task tasktypes.Task, visit Visitor) bool {
	if !visit(task) {
		return false
	}
	for _, childID := range t.children[task.ID] {
		if !t.walkPreOrder(t.tasks[childID], visit) {
			return false
		}
	}
	return true
}

// WalkBFS visits id and its descendants breadth-first.
func (t *Tree) WalkBFS(id string, visit Visitor) {
	task, ok := t.tasks[id]
	if !ok {
		return
	}
	queue := []tasktypes.Task{task}
	for len(queue) > 0 {
		next := queue[0]
		queue = queue[1:]
		if !visit(next) {
			return
		}
		for _, childID := range t.children[next.ID] {
			queue = append(queue, t.tasks[childID])
		}
	}
}

// Find returns the first task (pre-order over all roots) matching
// predicate, and false if none matches.
func (t *Tree) Find(predicate func(tasktypes.Task) bool) (tasktypes.Task, bool) {
	var found tasktypes.Task
	ok := false
	for _, rootID := range t.roots {
		t.WalkPreOrder(rootID, func(task tasktypes.Task) bool {
			if predicate(task) {
				found = task
				ok = true
				return false
			}
			return true
		})
		if ok {
			break
		}
	}
	return found, ok
}

// Filter returns every task matching predicate, in pre-order over all roots.
func (t *Tree) Filter(predicate func(tasktypes.Task) bool) []tasktypes.Task {
	var out []tasktypes.Task
	for _, rootID := range t.roots {
		t.WalkPreOrder(rootID, func(task tasktypes.Task) bool {
			if predicate(task) {
				out = append(out, task)
			}
			return true
		})
	}
	return out
}
