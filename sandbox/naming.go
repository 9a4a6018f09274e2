package sandbox

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"
)

const (
	containerNamePrefix = "judgebox-"
	maxNameAttempts     = 16
)

// generateName returns a random container name not present in existing.
func generateName(existing []string) (string, error) {
	for range maxNameAttempts {
		name := containerNamePrefix + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
		if !slices.Contains(existing, name) {
			return name, nil
		}
	}
	return "", fmt.Errorf("failed to generate a unique container name after %d attempts", maxNameAttempts)
}

// splitLines splits command output into trimmed, non-empty lines.
func splitLines(out []byte) []string {
	var lines []string
	for _, line := range strings.Split(string(out), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
