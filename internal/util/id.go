package util

import "github.com/google/uuid"

// NewID returns a new globally unique identifier. Used for tool call ids and
// checkpoint record ids.
func NewID() string { return uuid.NewString() }
