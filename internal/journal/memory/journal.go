// Package memory keeps journaled invocations in-memory for tests and development.
package memory

import (
	"context"
	"sync"

	"github.com/nodeinsights/enrichment-worker/internal/enricher"
)

// Journal collects invocation records in-memory.
type Journal struct {
	mu   sync.RWMutex
	recs []enricher.InvocationRecord
}

// NewJournal creates an empty in-memory journal.
func NewJournal() *Journal {
	return &Journal{}
}

// RecordInvocation appends the record.
func (j *Journal) RecordInvocation(_ context.Context, rec enricher.InvocationRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	j.recs = append(j.recs, rec)
	return nil
}

// Records returns a copy of everything journaled so far.
func (j *Journal) Records() []enricher.InvocationRecord {
	j.mu.RLock()
	defer j.mu.RUnlock()

	return append([]enricher.InvocationRecord(nil), j.recs...)
}
