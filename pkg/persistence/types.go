package persistence

import (
	"encoding/json"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// RunRecord is the journaled summary of one synchronization run
type RunRecord struct {
	RunID       string `json:"runId"`
	Target      string `json:"target"`
	SafeAddress string `json:"safeAddress"`

	// StartedAt and FinishedAt are Unix timestamps in milliseconds
	StartedAt  int64 `json:"startedAt"`
	FinishedAt int64 `json:"finishedAt"`

	DryRun   bool             `json:"dryRun"`
	Counts   types.SyncCounts `json:"counts"`
	Outcomes []*OutcomeRecord `json:"outcomes"`
}

// OutcomeRecord is the journaled result of one message
type OutcomeRecord struct {
	MessageHash string `json:"messageHash"`
	PrimaryType string `json:"primaryType,omitempty"`
	Failed      bool   `json:"failed"`
	Error       string `json:"error,omitempty"`

	// ReceiptID is the id returned by the sequencer for accepted submissions
	ReceiptID string `json:"receiptId,omitempty"`
}

// NewRunRecord summarizes a sync report for the journal
func NewRunRecord(report *types.SyncReport) *RunRecord {
	if report == nil {
		return nil
	}
	record := &RunRecord{
		RunID:       report.RunID,
		Target:      report.Target,
		SafeAddress: report.SafeAddress,
		StartedAt:   report.StartedAt,
		FinishedAt:  report.FinishedAt,
		DryRun:      report.DryRun,
		Counts:      report.Counts,
		Outcomes:    make([]*OutcomeRecord, 0, len(report.Outcomes)),
	}
	for _, outcome := range report.Outcomes {
		record.Outcomes = append(record.Outcomes, NewOutcomeRecord(outcome))
	}
	return record
}

// NewOutcomeRecord summarizes one message outcome
func NewOutcomeRecord(outcome *types.SyncOutcome) *OutcomeRecord {
	record := &OutcomeRecord{
		Failed: outcome.Failed,
		Error:  outcome.ErrorString(),
	}
	if msg := outcome.Message; msg != nil {
		record.MessageHash = msg.MessageHash
		if msg.Message.Typed != nil {
			record.PrimaryType = msg.Message.Typed.PrimaryType
		}
	}
	if len(outcome.Result) > 0 {
		var receipt struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(outcome.Result, &receipt); err == nil {
			record.ReceiptID = receipt.ID
		}
	}
	return record
}
