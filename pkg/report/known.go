package report

import (
	"errors"
	"fmt"
	"os"
)

const defaultKnownIssues = "# Found Issues\n\n(None recorded yet.)"

// KnownIssues returns the contents of the prior findings document, read
// once at startup and embedded into every session's opening prompt. A
// missing document yields a placeholder, not an error.
func KnownIssues(path string) (string, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return defaultKnownIssues, nil
	}
	if err != nil {
		return "", fmt.Errorf("read known issues: %w", err)
	}
	return string(data), nil
}
