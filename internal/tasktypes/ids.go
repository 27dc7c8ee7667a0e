package tasktypes

import "github.com/google/uuid"

// TempIDPrefix tags a client-minted identifier as temporary: valid only
// until reconciliation maps it to a persistent id.
const TempIDPrefix = "tmp-"

// NewTemporaryID mints a fresh client-side temporary id, namespaced apart
// from any persistent id the store could ever assign.
func NewTemporaryID() string {
	return TempIDPrefix + uuid.NewString()
}

// IsTemporaryID reports whether id belongs to the temporary namespace.
func IsTemporaryID(id string) bool {
	return len(id) >= len(TempIDPrefix) && id[:len(TempIDPrefix)] == TempIDPrefix
}
