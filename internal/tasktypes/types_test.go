package tasktypes

import (
	"strings"
	"testing"
	"time"
)

func TestValidateTask(t *testing.T) {
	base := func() *Task {
		return &Task{
			ID:            "t-1",
			Title:         "Valid task",
			Status:        StatusPending,
			PriorityScore: 50,
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Task)
		wantErr bool
	}{
		{"valid", func(*Task) {}, false},
		{"missing title", func(tk *Task) { tk.Title = "" }, true},
		{"title at max", func(tk *Task) { tk.Title = strings.Repeat("a", MaxTitleLen) }, false},
		{"title over max", func(tk *Task) { tk.Title = strings.Repeat("a", MaxTitleLen+1) }, true},
		{"description at max", func(tk *Task) { tk.Description = strings.Repeat("a", MaxDescriptionLen) }, false},
		{"description over max", func(tk *Task) { tk.Description = strings.Repeat("a", MaxDescriptionLen+1) }, true},
		{"priority at 0", func(tk *Task) { tk.PriorityScore = 0 }, false},
		{"priority at 100", func(tk *Task) { tk.PriorityScore = 100 }, false},
		{"priority below 0", func(tk *Task) { tk.PriorityScore = -0.01 }, true},
		{"priority above 100", func(tk *Task) { tk.PriorityScore = 100.01 }, true},
		{"invalid status", func(tk *Task) { tk.Status = Status("nope") }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := base()
			tt.mutate(task)
			err := ValidateTask(task)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateTask() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestValidateDependencyPair(t *testing.T) {
	if err := ValidateDependencyPair("a", "a"); err == nil {
		t.Fatal("expected self-dependency error")
	}
	if err := ValidateDependencyPair("a", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBucketForScore(t *testing.T) {
	tests := []struct {
		score float64
		want  PriorityBucket
	}{
		{0, PriorityLow},
		{19.99, PriorityLow},
		{20, PriorityMedium},
		{70, PriorityMedium},
		{70.01, PriorityHigh},
		{100, PriorityHigh},
	}
	for _, tt := range tests {
		if got := BucketForScore(tt.score); got != tt.want {
			t.Errorf("BucketForScore(%v) = %v, want %v", tt.score, got, tt.want)
		}
	}
}

func TestIsTemporaryID(t *testing.T) {
	id := NewTemporaryID()
	if !IsTemporaryID(id) {
		t.Fatalf("NewTemporaryID() = %q, want temporary", id)
	}
	if IsTemporaryID("task-abc123") {
		t.Fatal("persistent-looking id reported as temporary")
	}
}

func TestIsTransitionAllowed(t *testing.T) {
	tests := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusInProgress, true},
		{StatusPending, StatusDone, false}, // must go through in-progress
		{StatusPending, StatusBlocked, true},
		{StatusPending, StatusCancelled, true},
		{StatusInProgress, StatusDone, true},
		{StatusBlocked, StatusInProgress, true},
		{StatusDone, StatusArchived, true},
		{StatusDone, StatusPending, false},
		{StatusCancelled, StatusArchived, true},
		{StatusArchived, StatusPending, false},
	}
	for _, tt := range tests {
		if got := IsTransitionAllowed(tt.from, tt.to); got != tt.want {
			t.Errorf("IsTransitionAllowed(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestRepairTimestamp(t *testing.T) {
	now := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)

	tooOld := time.Date(2019, 12, 31, 0, 0, 0, 0, time.UTC)
	if got := RepairTimestamp(tooOld, now); !got.Equal(now) {
		t.Errorf("RepairTimestamp(tooOld) = %v, want %v", got, now)
	}

	tooFuture := now.Add(48 * time.Hour)
	if got := RepairTimestamp(tooFuture, now); !got.Equal(now) {
		t.Errorf("RepairTimestamp(tooFuture) = %v, want %v", got, now)
	}

	sane := now.Add(-time.Hour)
	if got := RepairTimestamp(sane, now); !got.Equal(sane) {
		t.Errorf("RepairTimestamp(sane) = %v, want unchanged %v", got, sane)
	}
}
