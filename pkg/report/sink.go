// Package report persists confirmed findings, the known-issues seed, and
// run metadata.
package report

import (
	"fmt"
	"os"
	"sync"
)

// Sink appends confirmed issue reports to a shared markdown file. Appends
// are serialized so concurrent sessions never interleave their records.
// Deduplication of near-identical findings happens offline, not here.
type Sink struct {
	mu   sync.Mutex
	path string
}

func NewSink(path string) *Sink {
	return &Sink{path: path}
}

// Append writes one self-delimited report block to the store.
func (s *Sink) Append(body string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open report store: %w", err)
	}
	if _, err := f.WriteString(body); err != nil {
		f.Close()
		return fmt.Errorf("append report: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close report store: %w", err)
	}
	return nil
}
