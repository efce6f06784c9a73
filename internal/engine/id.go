package engine

import (
	"crypto/rand"
	"fmt"
)

// generateRunID creates a short random hex ID that tags the log lines of
// one play run.
func generateRunID() string {
	b := make([]byte, 4)
	if _, err := rand.Read(b); err != nil {
		return "run"
	}
	return fmt.Sprintf("%x", b)
}
