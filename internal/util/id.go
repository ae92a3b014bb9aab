package util

import "github.com/google/uuid"

// NewID returns a new random UUID string used for message and tool-use
// correlation ids.
func NewID() string {
	return uuid.NewString()
}
