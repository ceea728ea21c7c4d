package note

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// EmptyFingerprint identifies an empty collection.
const EmptyFingerprint = "empty"

// Fingerprint returns a stable digest of the collection. Order matters,
// so callers fingerprint collections that are already sorted.
func Fingerprint(notes []Note) string {
	if len(notes) == 0 {
		return EmptyFingerprint
	}
	raw := make([]RawNote, 0, len(notes))
	for _, n := range notes {
		raw = append(raw, n.Raw())
	}
	// RawNote only holds strings, numbers and slices of them.
	payload, _ := json.Marshal(raw)
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
