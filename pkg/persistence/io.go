package persistence

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// SaveRecord writes the record to <dir>/<run_prefix>.yaml, creating the
// directory as needed.
func SaveRecord(dir string, record *Record) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(record)
	if err != nil {
		return err
	}
	if err = os.WriteFile(filepath.Join(dir, record.RunPrefix+".yaml"), data, 0o640); err != nil {
		return err
	}
	return nil
}

func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var record Record
	if err = yaml.Unmarshal(data, &record); err != nil {
		return nil, err
	}

	return &record, nil
}
