package persistence

// IRunJournal records the outcome of every synchronization run so operators can review what was
// submitted to the sequencer and what failed. All implementations must be thread-safe.
type IRunJournal interface {
	// SaveRun persists a run record keyed by its run ID.
	// Overwrites any existing record with the same ID.
	SaveRun(record *RunRecord) error

	// LoadRun retrieves a run record by ID.
	// Returns nil if the run doesn't exist, error only on storage failure.
	LoadRun(runID string) (*RunRecord, error)

	// ListRuns returns the most recent runs, newest first.
	// A limit of zero or less returns every run.
	ListRuns(limit int) ([]*RunRecord, error)

	// DeleteRun removes a run record.
	// Idempotent - returns nil if the run doesn't exist.
	DeleteRun(runID string) error

	// Close cleanly shuts down the journal.
	// Idempotent - safe to call multiple times.
	// After Close(), all other operations return errors.
	Close() error

	// HealthCheck verifies the journal is operational.
	// Called at startup to fail fast on a misconfigured backend.
	HealthCheck() error
}
