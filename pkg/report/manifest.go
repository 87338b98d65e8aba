package report

import (
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Manifest records the parameters of one fuzzing run.
type Manifest struct {
	StartedAt       time.Time `toml:"started_at"`
	Model           string    `toml:"model"`
	ReasoningEffort string    `toml:"reasoning_effort"`
	Workers         int       `toml:"workers"`
	Compiler        string    `toml:"compiler"`
}

// WriteManifest persists the manifest as TOML, replacing any previous run's
// manifest at the same path.
func WriteManifest(path string, m Manifest) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

func ReadManifest(path string) (Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Manifest{}, fmt.Errorf("read manifest: %w", err)
	}
	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("decode manifest: %w", err)
	}
	return m, nil
}
