package tasktypes

import "time"

// earliestSaneYear and the future-skew tolerance bound what the core
// considers a plausible timestamp. A timestamp before the year 2020 or
// more than a day in the future is treated as corrupt and repaired to a
// sane value.
const earliestSaneYear = 2020

var futureSkewTolerance = 24 * time.Hour

// IsTimestampCorrupt reports whether t falls outside the plausible range.
func IsTimestampCorrupt(t time.Time, now time.Time) bool {
	if t.Year() < earliestSaneYear {
		return true
	}
	return t.After(now.Add(futureSkewTolerance))
}

// RepairTimestamp returns t unchanged if plausible, or now if corrupt.
func RepairTimestamp(t time.Time, now time.Time) time.Time {
	if IsTimestampCorrupt(t, now) {
		return now
	}
	return t
}

// RepairTask repairs CreatedAt/UpdatedAt on t in place and returns whether
// either field was corrected.
func RepairTask(t *Task, now time.Time) bool {
	repaired := false
	if IsTimestampCorrupt(t.CreatedAt, now) {
		t.CreatedAt = now
		repaired = true
	}
	if IsTimestampCorrupt(t.UpdatedAt, now) {
		t.UpdatedAt = now
		repaired = true
	}
	return repaired
}
