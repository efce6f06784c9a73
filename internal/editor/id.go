package editor

import "github.com/google/uuid"

// generateID returns a temporary id for an entity created in this session.
// Stores may replace it on save.
func generateID() string {
	return uuid.New().String()
}
