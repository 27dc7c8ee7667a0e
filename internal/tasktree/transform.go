package tasktree

import (
	"fmt"

	"github.com/marktoda/astrotask/internal/tasktypes"
)

// Update is a partial set of field changes, one pointer per optional
// field; a nil field is left unchanged.
type Update struct {
	ParentID      *string
	Title         *string
	Description   *string
	Status        *tasktypes.Status
	PriorityScore *float64
	PRD           *string
	ContextDigest *string
}

// IsEmpty reports whether the update changes no field.
func (u Update) IsEmpty() bool {
	return u.ParentID == nil && u.Title == nil && u.Description == nil &&
		u.Status == nil && u.PriorityScore == nil && u.PRD == nil && u.ContextDigest == nil
}

// Merge returns a new Update with later's non-nil fields overriding u's,
// the last-writer-wins rule used to consolidate repeated updates to the
// same task.
func (u Update) Merge(later Update) Update {
	merged := u
	if later.ParentID != nil {
		merged.ParentID = later.ParentID
	}
	if later.Title != nil {
		merged.Title = later.Title
	}
	if later.Description != nil {
		merged.Description = later.Description
	}
	if later.Status != nil {
		merged.Status = later.Status
	}
	if later.PriorityScore != nil {
		merged.PriorityScore = later.PriorityScore
	}
	if later.PRD != nil {
		merged.PRD = later.PRD
	}
	if later.ContextDigest != nil {
		merged.ContextDigest = later.ContextDigest
	}
	return merged
}

func apply(task tasktypes.Task, u Update) tasktypes.Task {
	if u.ParentID != nil {
		task.ParentID = *u.ParentID
	}
	if u.Title != nil {
		task.Title = *u.Title
	}
	if u.Description != nil {
		task.Description = *u.Description
	}
	if u.Status != nil {
		task.Status = *u.Status
	}
	if u.PriorityScore != nil {
		task.PriorityScore = *u.PriorityScore
	}
	if u.PRD != nil {
		task.PRD = *u.PRD
	}
	if u.ContextDigest != nil {
		task.ContextDigest = *u.ContextDigest
	}
	return task
}

// flatten returns every task in the tree as a flat slice.
func (t *Tree) flatten() []tasktypes.Task {
	out := make([]tasktypes.Task, 0, len(t.tasks))
	for _, task := range t.tasks {
		out = append(out, task)
	}
	return out
}

// WithTask returns a new Tree with id's fields changed per u. Returns t
// unchanged if u is empty, and an error if id is unknown.
func (t *Tree) WithTask(id string, u Update) (*Tree, error) {
	if u.IsEmpty() {
		return t, nil
	}
	if _, ok := t.tasks[id]; !ok {
		return nil, fmt.Errorf("tasktree: unknown task %q", id)
	}
	tasks := t.flatten()
	for i, task := range tasks {
		if task.ID == id {
			tasks[i] = apply(task, u)
			break
		}
	}
	return Build(tasks)
}

// AddChild returns a new Tree with subtree attached beneath parentID.
// subtree is a flat list of new tasks; every entry whose ParentID is empty
// or names an id outside subtree itself is reparented under parentID.
// parentID == tasktypes.RootParentID attaches the subtree as a new root.
func (t *Tree) AddChild(parentID string, subtree []tasktypes.Task) (*Tree, error) {
	if parentID != tasktypes.RootParentID {
		if _, ok := t.tasks[parentID]; !ok {
			return nil, fmt.Errorf("tasktree: unknown parent %q", parentID)
		}
	}
	if len(subtree) == 0 {
		return t, nil
	}

	existingIDs := make(map[string]bool, len(subtree))
	for _, task := range subtree {
		existingIDs[task.ID] = true
	}

	tasks := t.flatten()
	for _, task := range subtree {
		if task.ParentID == "" || !existingIDs[task.ParentID] {
			task.ParentID = parentID
		}
		tasks = append(tasks, task)
	}
	return Build(tasks)
}

// RemoveChild returns a new Tree with id and its entire descendant
// subtree removed.
func (t *Tree) RemoveChild(id string) (*Tree, error) {
	if _, ok := t.tasks[id]; !ok {
		return nil, fmt.Errorf("tasktree: unknown task %q", id)
	}
	remove := make(map[string]bool)
	t.WalkPreOrder(id, func(task tasktypes.Task) bool {
		remove[task.ID] = true
		return true
	})

	tasks := make([]tasktypes.Task, 0, len(t.tasks)-len(remove))
	for _, task := range t.tasks {
		if !remove[task.ID] {
			tasks = append(tasks, task)
		}
	}
	return Build(tasks)
}

// UpdateDescendants returns a new Tree with u applied to every
// descendant of id (inclusive) matching predicate. A nil predicate
// matches every descendant.
func (t *Tree) UpdateDescendants(id string, predicate func(tasktypes.Task) bool, u Update) (*Tree, error) {
	if _, ok := t.tasks[id]; !ok {
		return nil, fmt.Errorf("tasktree: unknown task %q", id)
	}
	if u.IsEmpty() {
		return t, nil
	}
	if predicate == nil {
		predicate = func(tasktypes.Task) bool { return true }
	}

	match := make(map[string]bool)
	t.WalkPreOrder(id, func(task tasktypes.Task) bool {
		if predicate(task) {
			match[task.ID] = true
		}
		return true
	})

	tasks := t.flatten()
	for i, task := range tasks {
		if match[task.ID] {
			tasks[i] = apply(task, u)
		}
	}
	return Build(tasks)
}

// OpKind tags a Batch operation.
type OpKind string

const (
	OpUpdateTask       OpKind = "update_task"
	OpBulkStatusUpdate OpKind = "bulk_status_update"
)

// Op is one entry in a Batch: either a single-task update_task, or a
// bulk_status_update applying a status to a root and every descendant.
type Op struct {
	Kind   OpKind
	TaskID string          // OpUpdateTask target
	Update Update          // OpUpdateTask payload
	RootID string          // OpBulkStatusUpdate target root
	Status tasktypes.Status // OpBulkStatusUpdate payload
}

// Batch applies ops in order, each against the result of the previous,
// returning the final Tree.
func (t *Tree) Batch(ops []Op) (*Tree, error) {
	current := t
	for i, op := range ops {
		var next *Tree
		var err error
		switch op.Kind {
		case OpUpdateTask:
			next, err = current.WithTask(op.TaskID, op.Update)
		case OpBulkStatusUpdate:
			status := op.Status
			next, err = current.UpdateDescendants(op.RootID, nil, Update{Status: &status})
		default:
			return nil, fmt.Errorf("tasktree: unknown batch op kind %q at index %d", op.Kind, i)
		}
		if err != nil {
			return nil, fmt.Errorf("tasktree: batch op %d (%s): %w", i, op.Kind, err)
		}
		current = next
	}
	return current, nil
}
