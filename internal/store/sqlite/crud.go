package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marktoda/astrotask/internal/idgen"
	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

// semanticIDs mints human-readable persistent task ids from titles; its
// collision check queries the live tasks table rather than an in-memory
// id list, so it composes directly with the store's own persistence.
var semanticIDs = idgen.NewSemanticIDGenerator()

func taskExists(ctx context.Context, q querier, id string) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, "SELECT 1 FROM tasks WHERE id = ?", id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// mintTaskID derives a "t-<slug>" id from title, disambiguating against
// existing rows. If the slug generator exhausts its own numeric-suffix
// budget (a title colliding 99+ times), it falls back to a short
// content hash id instead of looping forever.
func mintTaskID(ctx context.Context, q querier, title string) (string, error) {
	id := semanticIDs.GenerateSemanticIDWithCallback("t", title, func(candidate string) bool {
		exists, _ := taskExists(ctx, q, candidate)
		return exists
	})
	exists, err := taskExists(ctx, q, id)
	if err != nil {
		return "", err
	}
	if exists {
		id = idgen.GenerateHashID("t", title, "", "", time.Now(), 6, 0)
	}
	return id, nil
}

const taskColumns = "id, parent_id, title, description, status, priority_score, prd, context_digest, created_at, updated_at"

func scanTask(row interface{ Scan(...any) error }) (tasktypes.Task, error) {
	var t tasktypes.Task
	var parentID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &parentID, &t.Title, &t.Description, &t.Status,
		&t.PriorityScore, &t.PRD, &t.ContextDigest, &createdAt, &updatedAt); err != nil {
		return tasktypes.Task{}, err
	}
	t.ParentID = parentID.String // NULL parent_id reads back as RootParentID
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedAt)
	return t, nil
}

func getTask(ctx context.Context, q querier, id string) (tasktypes.Task, error) {
	row := q.QueryRowContext(ctx, "SELECT "+taskColumns+" FROM tasks WHERE id = ?", id)
	task, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return tasktypes.Task{}, store.NotFoundTask(id)
	}
	if err != nil {
		return tasktypes.Task{}, fmt.Errorf("sqlite: get task %s: %w", id, err)
	}
	return task, nil
}

func listTasks(ctx context.Context, q querier, filter store.Filter) ([]tasktypes.Task, error) {
	query := "SELECT " + taskColumns + " FROM tasks"
	var where []string
	var args []any

	if filter.Status != nil {
		where = append(where, "status = ?")
		args = append(args, string(*filter.Status))
	}
	if filter.ParentID != nil {
		if *filter.ParentID == tasktypes.RootParentID {
			where = append(where, "parent_id IS NULL")
		} else {
			where = append(where, "parent_id = ?")
			args = append(args, *filter.ParentID)
		}
	}
	if len(filter.IDs) > 0 {
		placeholders := make([]string, len(filter.IDs))
		for i, id := range filter.IDs {
			placeholders[i] = "?"
			args = append(args, id)
		}
		where = append(where, "id IN ("+strings.Join(placeholders, ", ")+")")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id"

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list tasks: %w", err)
	}
	defer rows.Close()

	var out []tasktypes.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan task: %w", err)
		}
		out = append(out, task)
	}
	return out, rows.Err()
}

func addTask(ctx context.Context, q querier, task tasktypes.Task, mintID bool) (tasktypes.Task, error) {
	if mintID {
		if task.ID == "" {
			id, err := mintTaskID(ctx, q, task.Title)
			if err != nil {
				return tasktypes.Task{}, fmt.Errorf("sqlite: mint task id: %w", err)
			}
			task.ID = id
		}
	} else if task.ID == "" {
		return tasktypes.Task{}, fmt.Errorf("sqlite: AddTaskWithID requires a non-empty id")
	}
	if task.Status == "" {
		task.Status = tasktypes.StatusPending
	}
	if task.PriorityScore == 0 {
		task.PriorityScore = tasktypes.DefaultPriorityScore
	}

	now := store.Now()
	task.CreatedAt = now
	task.UpdatedAt = now

	_, err := q.ExecContext(ctx, `
		INSERT INTO tasks (id, parent_id, title, description, status, priority_score, prd, context_digest, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		task.ID, nullIfEmpty(task.ParentID), task.Title, task.Description, string(task.Status),
		task.PriorityScore, task.PRD, task.ContextDigest,
		task.CreatedAt.Format(time.RFC3339Nano), task.UpdatedAt.Format(time.RFC3339Nano))
	if err != nil {
		return tasktypes.Task{}, fmt.Errorf("sqlite: add task: %w", translateConstraintErr(err))
	}
	return task, nil
}

func updateTask(ctx context.Context, q querier, id string, update tasktree.Update) (tasktypes.Task, error) {
	task, err := getTask(ctx, q, id)
	if err != nil {
		return tasktypes.Task{}, err
	}

	set := []string{}
	var args []any
	if update.ParentID != nil {
		set = append(set, "parent_id = ?")
		args = append(args, nullIfEmpty(*update.ParentID))
		task.ParentID = *update.ParentID
	}
	if update.Title != nil {
		set = append(set, "title = ?")
		args = append(args, *update.Title)
		task.Title = *update.Title
	}
	if update.Description != nil {
		set = append(set, "description = ?")
		args = append(args, *update.Description)
		task.Description = *update.Description
	}
	if update.Status != nil {
		set = append(set, "status = ?")
		args = append(args, string(*update.Status))
		task.Status = *update.Status
	}
	if update.PriorityScore != nil {
		set = append(set, "priority_score = ?")
		args = append(args, *update.PriorityScore)
		task.PriorityScore = *update.PriorityScore
	}
	if update.PRD != nil {
		set = append(set, "prd = ?")
		args = append(args, *update.PRD)
		task.PRD = *update.PRD
	}
	if update.ContextDigest != nil {
		set = append(set, "context_digest = ?")
		args = append(args, *update.ContextDigest)
		task.ContextDigest = *update.ContextDigest
	}
	if len(set) == 0 {
		return task, nil
	}

	task.UpdatedAt = store.Now()
	set = append(set, "updated_at = ?")
	args = append(args, task.UpdatedAt.Format(time.RFC3339Nano))
	args = append(args, id)

	_, err = q.ExecContext(ctx, "UPDATE tasks SET "+strings.Join(set, ", ")+" WHERE id = ?", args...)
	if err != nil {
		return tasktypes.Task{}, fmt.Errorf("sqlite: update task %s: %w", id, translateConstraintErr(err))
	}
	return task, nil
}

func deleteTask(ctx context.Context, q querier, id string) error {
	res, err := q.ExecContext(ctx, "DELETE FROM tasks WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("sqlite: delete task %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: delete task %s: %w", id, err)
	}
	if n == 0 {
		return store.NotFoundTask(id)
	}
	return nil
}

func addDependency(ctx context.Context, q querier, dependentID, dependencyID string) (tasktypes.Dependency, error) {
	if _, err := getTask(ctx, q, dependentID); err != nil {
		return tasktypes.Dependency{}, err
	}
	if _, err := getTask(ctx, q, dependencyID); err != nil {
		return tasktypes.Dependency{}, err
	}

	now := store.Now()
	_, err := q.ExecContext(ctx, `
		INSERT INTO task_dependencies (dependent_task_id, dependency_task_id, created_at)
		VALUES (?, ?, ?)`, dependentID, dependencyID, now.Format(time.RFC3339Nano))
	if err != nil {
		return tasktypes.Dependency{}, fmt.Errorf("sqlite: add dependency %s->%s: %w", dependentID, dependencyID, translateConstraintErr(err))
	}
	return tasktypes.Dependency{DependentID: dependentID, DependencyID: dependencyID, CreatedAt: now}, nil
}

func removeDependency(ctx context.Context, q querier, dependentID, dependencyID string) (bool, error) {
	res, err := q.ExecContext(ctx, `
		DELETE FROM task_dependencies WHERE dependent_task_id = ? AND dependency_task_id = ?`,
		dependentID, dependencyID)
	if err != nil {
		return false, fmt.Errorf("sqlite: remove dependency %s->%s: %w", dependentID, dependencyID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("sqlite: remove dependency %s->%s: %w", dependentID, dependencyID, err)
	}
	return n > 0, nil
}

func listEdges(ctx context.Context, q querier, query, id string) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list edges: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var edge string
		if err := rows.Scan(&edge); err != nil {
			return nil, fmt.Errorf("sqlite: scan edge: %w", err)
		}
		out = append(out, edge)
	}
	return out, rows.Err()
}

func getVersion(ctx context.Context, q querier) (int64, error) {
	var raw string
	err := q.QueryRowContext(ctx, "SELECT value FROM schema_meta WHERE key = 'version'").Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sqlite: get version: %w", err)
	}
	var version int64
	if _, err := fmt.Sscanf(raw, "%d", &version); err != nil {
		return 0, fmt.Errorf("sqlite: parse version %q: %w", raw, err)
	}
	return version, nil
}

// bumpVersion advances schema_meta's version counter; called once per
// committed Transaction so readers can detect concurrent writers between
// a tree fetch and a reconciliation attempt.
func bumpVersion(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		UPDATE schema_meta SET value = CAST(CAST(value AS INTEGER) + 1 AS TEXT) WHERE key = 'version'`)
	if err != nil {
		return fmt.Errorf("sqlite: bump version: %w", err)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == tasktypes.RootParentID {
		return nil
	}
	return s
}

// translateConstraintErr turns a SQLite CHECK/UNIQUE/FOREIGN KEY
// violation into a message that names the violated invariant rather
// than the driver's raw SQLite error text.
func translateConstraintErr(err error) error {
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed: task_dependencies"):
		return fmt.Errorf("dependency already exists: %w", err)
	case strings.Contains(msg, "CHECK constraint failed"):
		return fmt.Errorf("a task cannot depend on itself: %w", err)
	case strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return fmt.Errorf("referenced task does not exist: %w", err)
	case strings.Contains(msg, "UNIQUE constraint failed: tasks.id"):
		return fmt.Errorf("task id already exists: %w", err)
	default:
		return err
	}
}
