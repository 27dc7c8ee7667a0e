package tasktypes

// statusTransitions encodes the allowed edges of the status state machine.
// pending -> done is deliberately absent: a task must pass through
// in-progress.
var statusTransitions = map[Status]map[Status]bool{
	StatusPending: {
		StatusInProgress: true,
		StatusBlocked:    true,
		StatusCancelled:  true,
	},
	StatusInProgress: {
		StatusDone:      true,
		StatusBlocked:   true,
		StatusCancelled: true,
	},
	StatusBlocked: {
		StatusInProgress: true,
		StatusCancelled:  true,
	},
	StatusDone: {
		StatusArchived: true,
	},
	StatusCancelled: {
		StatusArchived: true,
	},
	StatusArchived: {},
}

// IsTransitionAllowed reports whether from -> to is an edge of the status
// state machine. A no-op transition (from == to) is never "allowed" here;
// callers that want to permit no-ops check that separately.
func IsTransitionAllowed(from, to Status) bool {
	edges, ok := statusTransitions[from]
	if !ok {
		return false
	}
	return edges[to]
}

// MigrateLegacyStatus translates a row written under an older five-value
// status enum (pending, in-progress, done, cancelled, archived — lacking
// blocked) into the current enum. The legacy enum's values are already
// valid members of the current enum, so migration is the identity map;
// this function exists as the named seam a data migration calls, rather
// than callers special-casing "old data" inline.
func MigrateLegacyStatus(legacy Status) Status {
	return legacy
}
