package types

import (
	"encoding/json"
	"fmt"
)

// Snapshot typed-data domain. Every canonical payload carries exactly this domain.
const (
	SnapshotDomainName    = "snapshot"
	SnapshotDomainVersion = "0.1.4"
)

// Domain is the EIP-712 domain of a typed-data document
type Domain struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// SnapshotDomain returns the fixed Snapshot domain
func SnapshotDomain() Domain {
	return Domain{
		Name:    SnapshotDomainName,
		Version: SnapshotDomainVersion,
	}
}

// TypedField is a single (name, type) entry of an EIP-712 struct definition
type TypedField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// TypeSchema maps a struct name to its ordered field list
type TypeSchema map[string][]TypedField

// CanonicalTypedPayload is the typed-data document submitted to the Snapshot sequencer.
// Message holds the category struct with its numeric fields already coerced.
type CanonicalTypedPayload struct {
	PrimaryType string      `json:"-"`
	Types       TypeSchema  `json:"types"`
	Domain      Domain      `json:"domain"`
	Message     interface{} `json:"message"`
}

// MessageMap returns the message as a generic JSON object, the shape EIP-712 encoders expect
func (p *CanonicalTypedPayload) MessageMap() (map[string]interface{}, error) {
	if p == nil || p.Message == nil {
		return nil, fmt.Errorf("payload has no message")
	}
	raw, err := json.Marshal(p.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	var out map[string]interface{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}
	return out, nil
}

// SubmissionPayload is the body POSTed to the sequencer
type SubmissionPayload struct {
	Address string                 `json:"address"`
	Sig     string                 `json:"sig"`
	Data    *CanonicalTypedPayload `json:"data"`
}

// SyncOutcome is the result of processing one filtered message
type SyncOutcome struct {
	Message *RawStoredMessage `json:"message"`
	Failed  bool              `json:"failed"`
	Error   error             `json:"-"`
	Result  json.RawMessage   `json:"result,omitempty"`
}

// ErrorString returns the outcome error text, or "" for successful outcomes
func (o *SyncOutcome) ErrorString() string {
	if o == nil || o.Error == nil {
		return ""
	}
	return o.Error.Error()
}

// MarshalJSON includes the error text, which the error interface does not serialize on its own
func (o *SyncOutcome) MarshalJSON() ([]byte, error) {
	type alias SyncOutcome
	return json.Marshal(&struct {
		*alias
		Error string `json:"error,omitempty"`
	}{
		alias: (*alias)(o),
		Error: o.ErrorString(),
	})
}

// SyncCounts records how many messages survived each pipeline stage
type SyncCounts struct {
	Found       int `json:"found"`
	FullySigned int `json:"fullySigned"`
	NonExpired  int `json:"nonExpired"`
	Submitted   int `json:"submitted"`
	Failed      int `json:"failed"`
}

// SyncReport is the full result of one synchronization run
type SyncReport struct {
	RunID       string         `json:"runId"`
	Target      string         `json:"target"`
	SafeAddress string         `json:"safeAddress"`
	StartedAt   int64          `json:"startedAt"`
	FinishedAt  int64          `json:"finishedAt"`
	DryRun      bool           `json:"dryRun"`
	Counts      SyncCounts     `json:"counts"`
	Outcomes    []*SyncOutcome `json:"outcomes"`
}
