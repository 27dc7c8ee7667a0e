// Package sqlite implements store.Store on top of a single SQLite file
// via the pure-Go modernc.org/sqlite driver (no cgo), paired with the
// cooperative file lock from internal/lockfile for cross-process
// writer exclusion.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/marktoda/astrotask/internal/lockfile"
	"github.com/marktoda/astrotask/internal/store"
	"github.com/marktoda/astrotask/internal/tasktree"
	"github.com/marktoda/astrotask/internal/tasktypes"
)

// Store is a store.Store backed by a SQLite database file.
type Store struct {
	db       *sql.DB
	dbPath   string
	lockOpts lockfile.Options
}

// Open creates (if needed) and opens the database at dbPath, applying
// the schema, and returns a ready Store. lockOpts configures the
// cooperative lock Lock acquires; the zero value uses its defaults.
func Open(dbPath string, lockOpts lockfile.Options) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open %s: %w", dbPath, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: serialize access within this process

	// SQLite leaves foreign keys off by default; the schema's ON DELETE
	// CASCADE on task_dependencies only fires with them on.
	if _, err := db.Exec(`PRAGMA foreign_keys = ON`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: enable foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: apply schema: %w", err)
	}
	if _, err := db.Exec(`INSERT OR IGNORE INTO schema_meta(key, value) VALUES ('version', '0')`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite: seed version: %w", err)
	}

	return &Store{db: db, dbPath: dbPath, lockOpts: lockOpts}, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// LockStatus reports the current holder of this database's lock file,
// or nil if unlocked, for administrative tooling.
func (s *Store) LockStatus() (*lockfile.Holder, error) {
	return lockfile.Status(s.dbPath)
}

// ForceUnlock removes this database's lock file unconditionally, for
// manual recovery from a wedged holder.
func (s *Store) ForceUnlock() error {
	return lockfile.ForceUnlock(s.dbPath)
}

// querier is satisfied by both *sql.DB and *sql.Tx, letting the CRUD
// helpers below run against either an ambient connection or an
// in-flight transaction.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) GetTask(ctx context.Context, id string) (tasktypes.Task, error) {
	return getTask(ctx, s.db, id)
}

func (s *Store) ListTasks(ctx context.Context, filter store.Filter) ([]tasktypes.Task, error) {
	return listTasks(ctx, s.db, filter)
}

func (s *Store) ListSubtasks(ctx context.Context, parentID string) ([]tasktypes.Task, error) {
	return listTasks(ctx, s.db, store.Filter{ParentID: &parentID})
}

func (s *Store) AddTask(ctx context.Context, task tasktypes.Task) (tasktypes.Task, error) {
	return addTask(ctx, s.db, task, true)
}

func (s *Store) AddTaskWithID(ctx context.Context, task tasktypes.Task) (tasktypes.Task, error) {
	return addTask(ctx, s.db, task, false)
}

func (s *Store) UpdateTask(ctx context.Context, id string, update tasktree.Update) (tasktypes.Task, error) {
	return updateTask(ctx, s.db, id, update)
}

func (s *Store) DeleteTask(ctx context.Context, id string) error {
	return deleteTask(ctx, s.db, id)
}

func (s *Store) AddDependency(ctx context.Context, dependentID, dependencyID string) (tasktypes.Dependency, error) {
	return addDependency(ctx, s.db, dependentID, dependencyID)
}

func (s *Store) RemoveDependency(ctx context.Context, dependentID, dependencyID string) (bool, error) {
	return removeDependency(ctx, s.db, dependentID, dependencyID)
}

func (s *Store) ListDependencies(ctx context.Context, id string) ([]string, error) {
	return listEdges(ctx, s.db, "SELECT dependency_task_id FROM task_dependencies WHERE dependent_task_id = ?", id)
}

func (s *Store) ListDependents(ctx context.Context, id string) ([]string, error) {
	return listEdges(ctx, s.db, "SELECT dependent_task_id FROM task_dependencies WHERE dependency_task_id = ?", id)
}

func (s *Store) Version(ctx context.Context) (int64, error) {
	return getVersion(ctx, s.db)
}

// Transaction runs fn against a dedicated *sql.Tx, committing on a nil
// return and rolling back (including on store.ErrRollback) otherwise.
func (s *Store) Transaction(ctx context.Context, fn func(tx store.Store) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin transaction: %w", err)
	}

	txs := &txStore{tx: tx}
	if err := fn(txs); err != nil {
		_ = tx.Rollback()
		if err == store.ErrRollback {
			return nil
		}
		return err
	}
	if err := bumpVersion(ctx, tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit: %w", err)
	}
	return nil
}

// Lock acquires the cooperative cross-process file lock for this
// database, returning a release func that must be called to unlock.
func (s *Store) Lock(_ context.Context, processKind string) (func() error, error) {
	lk, err := lockfile.Acquire(s.dbPath, processKind, s.lockOpts)
	if err != nil {
		return nil, err
	}
	return lk.Release, nil
}

// txStore implements store.Store against an in-flight *sql.Tx so the
// same CRUD helpers serve both the ambient-connection and
// within-transaction paths.
type txStore struct {
	tx *sql.Tx
}

func (t *txStore) GetTask(ctx context.Context, id string) (tasktypes.Task, error) {
	return getTask(ctx, t.tx, id)
}
func (t *txStore) ListTasks(ctx context.Context, filter store.Filter) ([]tasktypes.Task, error) {
	return listTasks(ctx, t.tx, filter)
}
func (t *txStore) ListSubtasks(ctx context.Context, parentID string) ([]tasktypes.Task, error) {
	return listTasks(ctx, t.tx, store.Filter{ParentID: &parentID})
}
func (t *txStore) AddTask(ctx context.Context, task tasktypes.Task) (tasktypes.Task, error) {
	return addTask(ctx, t.tx, task, true)
}
func (t *txStore) AddTaskWithID(ctx context.Context, task tasktypes.Task) (tasktypes.Task, error) {
	return addTask(ctx, t.tx, task, false)
}
func (t *txStore) UpdateTask(ctx context.Context, id string, update tasktree.Update) (tasktypes.Task, error) {
	return updateTask(ctx, t.tx, id, update)
}
func (t *txStore) DeleteTask(ctx context.Context, id string) error {
	return deleteTask(ctx, t.tx, id)
}
func (t *txStore) AddDependency(ctx context.Context, dependentID, dependencyID string) (tasktypes.Dependency, error) {
	return addDependency(ctx, t.tx, dependentID, dependencyID)
}
func (t *txStore) RemoveDependency(ctx context.Context, dependentID, dependencyID string) (bool, error) {
	return removeDependency(ctx, t.tx, dependentID, dependencyID)
}
func (t *txStore) ListDependencies(ctx context.Context, id string) ([]string, error) {
	return listEdges(ctx, t.tx, "SELECT dependency_task_id FROM task_dependencies WHERE dependent_task_id = ?", id)
}
func (t *txStore) ListDependents(ctx context.Context, id string) ([]string, error) {
	return listEdges(ctx, t.tx, "SELECT dependent_task_id FROM task_dependencies WHERE dependency_task_id = ?", id)
}
func (t *txStore) Version(ctx context.Context) (int64, error) {
	return getVersion(ctx, t.tx)
}
func (t *txStore) Transaction(_ context.Context, _ func(tx store.Store) error) error {
	return fmt.Errorf("sqlite: nested transactions are not supported")
}
func (t *txStore) Lock(_ context.Context, _ string) (func() error, error) {
	return nil, fmt.Errorf("sqlite: lock must be acquired outside the transaction")
}
