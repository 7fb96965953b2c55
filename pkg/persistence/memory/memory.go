package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence"
)

// MemoryJournal is an in-memory implementation of IRunJournal.
//
// All data is stored in memory and will be lost when the process exits.
// Thread-safe using sync.RWMutex for concurrent access.
// Deep copies records to prevent external mutation.
type MemoryJournal struct {
	mu sync.RWMutex

	// runID -> RunRecord
	runs map[string]*persistence.RunRecord

	closed bool
}

// NewMemoryJournal creates a new in-memory run journal.
func NewMemoryJournal() *MemoryJournal {
	return &MemoryJournal{
		runs: make(map[string]*persistence.RunRecord),
	}
}

// SaveRun persists a run record.
func (m *MemoryJournal) SaveRun(record *persistence.RunRecord) error {
	if err := persistence.ValidateRecord(record); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}

	m.runs[record.RunID] = persistence.CopyRunRecord(record)
	return nil
}

// LoadRun retrieves a run record by ID.
func (m *MemoryJournal) LoadRun(runID string) (*persistence.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	record, exists := m.runs[runID]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return persistence.CopyRunRecord(record), nil
}

// ListRuns returns the most recent runs, newest first.
func (m *MemoryJournal) ListRuns(limit int) ([]*persistence.RunRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	result := make([]*persistence.RunRecord, 0, len(m.runs))
	for _, record := range m.runs {
		result = append(result, persistence.CopyRunRecord(record))
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartedAt != result[j].StartedAt {
			return result[i].StartedAt > result[j].StartedAt
		}
		return result[i].RunID > result[j].RunID
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// DeleteRun removes a run record.
func (m *MemoryJournal) DeleteRun(runID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}

	delete(m.runs, runID)
	return nil
}

// Close marks the journal as closed.
func (m *MemoryJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	m.runs = make(map[string]*persistence.RunRecord)
	return nil
}

// HealthCheck reports whether the journal is open.
func (m *MemoryJournal) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return fmt.Errorf("journal is closed")
	}
	return nil
}
