package note

import "github.com/google/uuid"

// NewID returns a random id in the form "<prefix>-<uuid>".
func NewID(prefix string) string {
	if prefix == "" {
		return uuid.NewString()
	}
	return prefix + "-" + uuid.NewString()
}
