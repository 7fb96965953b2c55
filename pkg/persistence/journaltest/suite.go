// Package journaltest holds the behaviour every IRunJournal backend must share.
package journaltest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence"
	"github.com/morpho-labs/snapshot-safe-sync/pkg/types"
)

// Factory opens a fresh, empty journal for one sub-test
type Factory func(t *testing.T) persistence.IRunJournal

// NewRecord builds a run record started at startedAt (ms)
func NewRecord(runID string, startedAt int64) *persistence.RunRecord {
	return &persistence.RunRecord{
		RunID:       runID,
		Target:      "morpho.eth",
		SafeAddress: "0x9D03bb2092270648d7480049d0E58d2FcF0E5123",
		StartedAt:   startedAt,
		FinishedAt:  startedAt + 1500,
		Counts: types.SyncCounts{
			Found:       3,
			FullySigned: 2,
			NonExpired:  2,
			Submitted:   1,
			Failed:      1,
		},
		Outcomes: []*persistence.OutcomeRecord{
			{MessageHash: "0x01", PrimaryType: "Proposal", ReceiptID: "0xabc"},
			{MessageHash: "0x02", PrimaryType: "Vote", Failed: true, Error: "invalid signature"},
		},
	}
}

// Run exercises a journal backend
func Run(t *testing.T, open Factory) {
	t.Run("SaveAndLoad", func(t *testing.T) {
		j := open(t)
		record := NewRecord("run-1", 1700000000000)

		require.NoError(t, j.SaveRun(record))

		loaded, err := j.LoadRun("run-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, record, loaded)
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		j := open(t)

		loaded, err := j.LoadRun("missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveOverwrites", func(t *testing.T) {
		j := open(t)
		record := NewRecord("run-1", 1700000000000)
		require.NoError(t, j.SaveRun(record))

		record.Counts.Submitted = 2
		record.StartedAt = 1700000005000
		require.NoError(t, j.SaveRun(record))

		loaded, err := j.LoadRun("run-1")
		require.NoError(t, err)
		assert.Equal(t, 2, loaded.Counts.Submitted)

		runs, err := j.ListRuns(0)
		require.NoError(t, err)
		assert.Len(t, runs, 1)
	})

	t.Run("SaveRejectsInvalid", func(t *testing.T) {
		j := open(t)

		assert.Error(t, j.SaveRun(nil))
		assert.Error(t, j.SaveRun(&persistence.RunRecord{}))
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		j := open(t)
		require.NoError(t, j.SaveRun(NewRecord("run-b", 1700000002000)))
		require.NoError(t, j.SaveRun(NewRecord("run-a", 1700000001000)))
		require.NoError(t, j.SaveRun(NewRecord("run-c", 1700000003000)))

		runs, err := j.ListRuns(0)
		require.NoError(t, err)
		require.Len(t, runs, 3)
		assert.Equal(t, "run-c", runs[0].RunID)
		assert.Equal(t, "run-b", runs[1].RunID)
		assert.Equal(t, "run-a", runs[2].RunID)

		runs, err = j.ListRuns(2)
		require.NoError(t, err)
		require.Len(t, runs, 2)
		assert.Equal(t, "run-c", runs[0].RunID)
	})

	t.Run("ListEmpty", func(t *testing.T) {
		j := open(t)

		runs, err := j.ListRuns(10)
		require.NoError(t, err)
		assert.NotNil(t, runs)
		assert.Empty(t, runs)
	})

	t.Run("Delete", func(t *testing.T) {
		j := open(t)
		require.NoError(t, j.SaveRun(NewRecord("run-1", 1700000000000)))

		require.NoError(t, j.DeleteRun("run-1"))
		require.NoError(t, j.DeleteRun("run-1"))

		loaded, err := j.LoadRun("run-1")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		runs, err := j.ListRuns(0)
		require.NoError(t, err)
		assert.Empty(t, runs)
	})

	t.Run("NoExternalMutation", func(t *testing.T) {
		j := open(t)
		record := NewRecord("run-1", 1700000000000)
		require.NoError(t, j.SaveRun(record))

		record.Outcomes[0].Error = "mutated"

		loaded, err := j.LoadRun("run-1")
		require.NoError(t, err)
		assert.Empty(t, loaded.Outcomes[0].Error)

		loaded.Outcomes[1].Error = "mutated"
		again, err := j.LoadRun("run-1")
		require.NoError(t, err)
		assert.Equal(t, "invalid signature", again.Outcomes[1].Error)
	})

	t.Run("ConcurrentSaves", func(t *testing.T) {
		j := open(t)

		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				assert.NoError(t, j.SaveRun(NewRecord(fmt.Sprintf("run-%d", i), int64(1700000000000+i))))
			}(i)
		}
		wg.Wait()

		runs, err := j.ListRuns(0)
		require.NoError(t, err)
		assert.Len(t, runs, 10)
	})

	t.Run("ClosedJournal", func(t *testing.T) {
		j := open(t)
		require.NoError(t, j.HealthCheck())
		require.NoError(t, j.Close())
		require.NoError(t, j.Close())

		assert.Error(t, j.SaveRun(NewRecord("run-1", 1)))
		_, err := j.LoadRun("run-1")
		assert.Error(t, err)
		_, err = j.ListRuns(0)
		assert.Error(t, err)
		assert.Error(t, j.DeleteRun("run-1"))
		assert.Error(t, j.HealthCheck())
	})
}
