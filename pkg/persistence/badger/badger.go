package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence"
)

// Key prefixes for namespacing
const (
	keyPrefixRun         = "run:"
	keyPrefixRunIndex    = "runidx:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerJournal is a disk-backed run journal using Badger.
type BadgerJournal struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerJournal opens a Badger-backed journal at dataPath with SyncWrites enabled.
// A background goroutine is started for garbage collection.
func NewBadgerJournal(dataPath string, logger *zap.Logger) (*BadgerJournal, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bj := &BadgerJournal{
		db:     db,
		logger: logger,
	}

	if err := bj.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bj.gcCancel = cancel
	bj.gcWg.Add(1)
	go bj.runGC(ctx)

	logger.Sugar().Infow("Badger journal initialized", "path", absPath)

	return bj, nil
}

// initSchema initializes or validates the schema version
func (b *BadgerJournal) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}

		return nil
	})
}

// runGC runs periodic value log garbage collection in the background
func (b *BadgerJournal) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func runKey(runID string) []byte {
	return []byte(keyPrefixRun + runID)
}

// indexKey orders runs by start time: prefix || big-endian startedAt || runID
func indexKey(startedAt int64, runID string) []byte {
	key := make([]byte, 0, len(keyPrefixRunIndex)+8+len(runID))
	key = append(key, keyPrefixRunIndex...)
	key = binary.BigEndian.AppendUint64(key, uint64(startedAt))
	return append(key, runID...)
}

// SaveRun persists a run record and its start time index entry
func (b *BadgerJournal) SaveRun(record *persistence.RunRecord) error {
	if err := persistence.ValidateRecord(record); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("journal is closed")
	}

	data, err := persistence.MarshalRunRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RunRecord: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		previous, err := loadRun(txn, record.RunID)
		if err != nil {
			return err
		}
		if previous != nil && previous.StartedAt != record.StartedAt {
			if err := txn.Delete(indexKey(previous.StartedAt, previous.RunID)); err != nil {
				return err
			}
		}
		if err := txn.Set(runKey(record.RunID), data); err != nil {
			return err
		}
		return txn.Set(indexKey(record.StartedAt, record.RunID), []byte(record.RunID))
	})
}

func loadRun(txn *badgerdb.Txn, runID string) (*persistence.RunRecord, error) {
	item, err := txn.Get(runKey(runID))
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var data []byte
	err = item.Value(func(val []byte) error {
		data = append([]byte{}, val...)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read value: %w", err)
	}
	return persistence.UnmarshalRunRecord(data)
}

// LoadRun retrieves a run record by ID
func (b *BadgerJournal) LoadRun(runID string) (*persistence.RunRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	var record *persistence.RunRecord
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		record, err = loadRun(txn, runID)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load RunRecord: %w", err)
	}
	return record, nil
}

// ListRuns walks the start time index backwards, newest first
func (b *BadgerJournal) ListRuns(limit int) ([]*persistence.RunRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	var records []*persistence.RunRecord

	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(keyPrefixRunIndex)
		opts.Reverse = true

		it := txn.NewIterator(opts)
		defer it.Close()

		seek := append([]byte(keyPrefixRunIndex), 0xff)
		for it.Seek(seek); it.Valid(); it.Next() {
			if limit > 0 && len(records) >= limit {
				break
			}

			var runID string
			err := it.Item().Value(func(val []byte) error {
				runID = string(val)
				return nil
			})
			if err != nil {
				return fmt.Errorf("failed to read value: %w", err)
			}

			record, err := loadRun(txn, runID)
			if err != nil {
				b.logger.Sugar().Warnw("Failed to load RunRecord, skipping", "run_id", runID, "error", err)
				continue
			}
			if record == nil {
				continue
			}
			records = append(records, record)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list RunRecords: %w", err)
	}

	if records == nil {
		records = []*persistence.RunRecord{}
	}
	return records, nil
}

// DeleteRun removes a run record and its index entry
func (b *BadgerJournal) DeleteRun(runID string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("journal is closed")
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		record, err := loadRun(txn, runID)
		if err != nil {
			return err
		}
		if record == nil {
			return nil
		}
		if err := txn.Delete(indexKey(record.StartedAt, record.RunID)); err != nil {
			return err
		}
		return txn.Delete(runKey(runID))
	})
}

// Close stops garbage collection and closes the database
func (b *BadgerJournal) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger journal closed")
	return nil
}

// HealthCheck verifies the database is readable
func (b *BadgerJournal) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return fmt.Errorf("journal is closed")
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
