package persistence

import (
	"encoding/json"
	"fmt"
)

// MarshalRunRecord serializes a RunRecord to JSON bytes.
func MarshalRunRecord(record *RunRecord) ([]byte, error) {
	if record == nil {
		return nil, fmt.Errorf("cannot marshal nil RunRecord")
	}

	data, err := json.Marshal(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RunRecord to JSON: %w", err)
	}

	return data, nil
}

// UnmarshalRunRecord deserializes a RunRecord from JSON bytes.
func UnmarshalRunRecord(data []byte) (*RunRecord, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var record RunRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to RunRecord: %w", err)
	}

	return &record, nil
}

// CopyRunRecord returns a deep copy of record
func CopyRunRecord(record *RunRecord) *RunRecord {
	if record == nil {
		return nil
	}
	out := *record
	if record.Outcomes != nil {
		out.Outcomes = make([]*OutcomeRecord, len(record.Outcomes))
		for i, outcome := range record.Outcomes {
			if outcome == nil {
				continue
			}
			copied := *outcome
			out.Outcomes[i] = &copied
		}
	}
	return &out
}

// ValidateRecord rejects records that cannot be keyed
func ValidateRecord(record *RunRecord) error {
	if record == nil {
		return fmt.Errorf("cannot save nil RunRecord")
	}
	if record.RunID == "" {
		return fmt.Errorf("run record has no run ID")
	}
	return nil
}
