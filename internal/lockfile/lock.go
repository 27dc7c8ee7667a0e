// Package lockfile implements the cooperative, file-backed advisory lock
// that serializes writers to the task store across processes.
//
// The lock itself is an OS-level flock on a well-known lock file next to
// the database (see lock_unix.go / lock_windows.go); a small JSON record
// written into that file identifies the current holder so contending
// processes and administration tooling can produce a useful message.
// Staleness is detected by timestamp *and*, where possible, PID liveness
// (process_unix.go / process_windows.go) — liveness checks are inherently
// racy across hosts, so neither signal is trusted alone.
package lockfile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrLockBusy is returned when a non-blocking lock cannot be acquired
// because another process holds a conflicting lock.
var ErrLockBusy = errors.New("lock busy: held by another process")

// Holder identifies the process currently holding (or last known to hold)
// a lock file.
type Holder struct {
	PID         int       `json:"pid"`
	Host        string    `json:"host"`
	ProcessKind string    `json:"process_kind"`
	AcquiredAt  time.Time `json:"acquired_at"`
}

// Options configures lock acquisition.
type Options struct {
	// StaleAfter is how old an acquired_at timestamp must be, with no
	// corroborating live PID on the same host, before the lock is
	// considered abandoned and eligible for reclaim. Zero uses
	// DefaultStaleAfter.
	StaleAfter time.Duration
	// RetryBudget bounds the total time Acquire spends retrying before
	// giving up with ErrLockBusy. Zero uses DefaultRetryBudget.
	RetryBudget time.Duration
}

const (
	// DefaultStaleAfter is the default staleness threshold.
	DefaultStaleAfter = 30 * time.Second
	// DefaultRetryBudget is the default total acquisition retry budget.
	DefaultRetryBudget = 2 * time.Second

	minRetryDelay = 20 * time.Millisecond
	maxRetryDelay = 250 * time.Millisecond
)

// Lock represents a held exclusive lock on the store's lock file.
type Lock struct {
	file   *os.File
	path   string
	holder Holder
}

// Path derives the lock file path from the database path.
func Path(dbPath string) string {
	return dbPath + ".lock"
}

// Acquire acquires the cooperative lock for dbPath, identifying the
// caller as processKind (e.g. "cli", "tui", "ide-server"). It retries
// with exponential-ish backoff up to opts.RetryBudget, reclaiming the
// lock file if its recorded holder looks stale. Returns ErrLockBusy,
// wrapping the last known Holder, if the budget is exhausted.
func Acquire(dbPath, processKind string, opts Options) (*Lock, error) {
	staleAfter := opts.StaleAfter
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	budget := opts.RetryBudget
	if budget <= 0 {
		budget = DefaultRetryBudget
	}

	path := Path(dbPath)
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("lockfile: create lock dir: %w", err)
	}

	deadline := time.Now().Add(budget)
	delay := minRetryDelay
	var lastHolder *Holder

	for {
		lock, busyHolder, err := tryAcquire(path, processKind, staleAfter)
		if err == nil {
			return lock, nil
		}
		if !errors.Is(err, ErrLockBusy) {
			return nil, err
		}
		lastHolder = busyHolder

		if time.Now().After(deadline) {
			if lastHolder != nil {
				return nil, fmt.Errorf("%w: held by %+v", ErrLockBusy, *lastHolder)
			}
			return nil, ErrLockBusy
		}

		time.Sleep(delay)
		delay *= 2
		if delay > maxRetryDelay {
			delay = maxRetryDelay
		}
	}
}

// tryAcquire makes one attempt to acquire the lock. On failure it returns
// ErrLockBusy along with the holder recorded in the file, if any could be
// parsed (a missing or corrupt file is treated as "no holder", and the
// attempt proceeds to acquire the flock rather than failing).
func tryAcquire(path, processKind string, staleAfter time.Duration) (*Lock, *Holder, error) {
	// #nosec G304 - path is derived from the caller-controlled database path
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("lockfile: open: %w", err)
	}

	if err := FlockExclusiveNonBlock(f); err != nil {
		if !errors.Is(err, ErrLockBusy) {
			_ = f.Close()
			return nil, nil, fmt.Errorf("lockfile: flock: %w", err)
		}
		holder, readErr := readHolder(f)
		_ = f.Close()
		if readErr != nil || holder == nil {
			return nil, nil, ErrLockBusy
		}
		if isStale(*holder, staleAfter) {
			if reclaimErr := reclaim(path, *holder); reclaimErr == nil {
				return tryAcquire(path, processKind, staleAfter)
			}
		}
		return nil, holder, ErrLockBusy
	}

	holder := Holder{
		PID:         os.Getpid(),
		Host:        hostname(),
		ProcessKind: processKind,
		AcquiredAt:  time.Now().UTC(),
	}
	if err := writeHolder(f, holder); err != nil {
		_ = FlockUnlock(f)
		_ = f.Close()
		return nil, nil, err
	}

	return &Lock{file: f, path: path, holder: holder}, nil, nil
}

// isStale reports whether a recorded holder should be treated as
// abandoned: its timestamp predates staleAfter, and — where liveness can
// be checked at all (same host) — its PID is no longer running. A holder
// on a different host is judged on timestamp alone, since PID liveness
// cannot be observed remotely — correctness never gates on liveness
// detection by itself.
func isStale(h Holder, staleAfter time.Duration) bool {
	if time.Since(h.AcquiredAt) < staleAfter {
		return false
	}
	if h.Host != "" && h.Host == hostname() {
		return !isProcessRunning(h.PID)
	}
	return true
}

// reclaim removes a lock file believed to be held by a stale holder. It
// re-verifies the on-disk content still matches before removing, as a
// best-effort guard against a race with the original holder releasing
// (or a new holder acquiring) concurrently.
func reclaim(path string, expected Holder) error {
	// #nosec G304 - path is derived from the caller-controlled database path
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	current, err := readHolder(f)
	_ = f.Close()
	if err != nil || current == nil {
		return os.Remove(path)
	}
	if current.PID != expected.PID || !current.AcquiredAt.Equal(expected.AcquiredAt) {
		return fmt.Errorf("lockfile: holder changed during reclaim")
	}
	return os.Remove(path)
}

// Release releases the lock and removes the lock file. Safe to call on a
// nil Lock or to call more than once.
func (l *Lock) Release() error {
	if l == nil || l.file == nil {
		return nil
	}
	_ = os.Remove(l.path) // best effort: lock content no longer meaningful once released
	err := FlockUnlock(l.file)
	closeErr := l.file.Close()
	l.file = nil
	if err != nil {
		return err
	}
	return closeErr
}

// Holder returns the identity this lock was acquired under.
func (l *Lock) Holder() Holder {
	if l == nil {
		return Holder{}
	}
	return l.holder
}

// Status reports the current holder of dbPath's lock, or nil if unlocked.
// A corrupt or missing lock file is reported as unlocked.
func Status(dbPath string) (*Holder, error) {
	path := Path(dbPath)
	// #nosec G304 - path is derived from the caller-controlled database path
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("lockfile: status: %w", err)
	}
	defer f.Close()

	holder, err := readHolder(f)
	if err != nil {
		return nil, nil // corrupt content is equivalent to "no holder"
	}
	return holder, nil
}

// ForceUnlock removes dbPath's lock file unconditionally, for manual
// recovery from a wedged holder.
func ForceUnlock(dbPath string) error {
	err := os.Remove(Path(dbPath))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("lockfile: force unlock: %w", err)
	}
	return nil
}

func readHolder(f *os.File) (*Holder, error) {
	if _, err := f.Seek(0, 0); err != nil {
		return nil, err
	}
	var h Holder
	if err := json.NewDecoder(f).Decode(&h); err != nil {
		return nil, err
	}
	if h.PID == 0 && h.Host == "" {
		return nil, fmt.Errorf("lockfile: empty holder record")
	}
	return &h, nil
}

func writeHolder(f *os.File, h Holder) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(h); err != nil {
		return err
	}
	return f.Sync()
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil {
		return ""
	}
	return h
}
