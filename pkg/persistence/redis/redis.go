package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/morpho-labs/snapshot-safe-sync/pkg/persistence"
)

// Key layout in Redis
const (
	keyPrefixRun         = "snapshot-safe-sync:run:"
	keySchemaVersion     = "snapshot-safe-sync:metadata:schema_version"
	currentSchemaVersion = "v1"

	// Sorted set of run IDs scored by start time, used for listing
	keyRunIndex = "snapshot-safe-sync:runs:index"
)

// RedisJournal is a run journal stored in Redis, suited to runs scheduled on ephemeral hosts.
type RedisJournal struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	timeout   time.Duration
	mu        sync.RWMutex
	closed    bool
}

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, for sharing a database between deployments
	KeyPrefix string
	// Timeout bounds every Redis command; defaults to 5s
	Timeout time.Duration
}

// NewRedisJournal connects to Redis and initializes the schema version
func NewRedisJournal(cfg *RedisConfig, logger *zap.Logger) (*RedisJournal, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rj := &RedisJournal{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
		timeout:   timeout,
	}

	if err := rj.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis journal initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rj, nil
}

func (r *RedisJournal) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisJournal) runKey(runID string) string {
	return r.prefixKey(keyPrefixRun + runID)
}

func (r *RedisJournal) context() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), r.timeout)
}

// initSchema initializes or validates the schema version
func (r *RedisJournal) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// SaveRun stores the record and indexes it by start time in one transaction
func (r *RedisJournal) SaveRun(record *persistence.RunRecord) error {
	if err := persistence.ValidateRecord(record); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("journal is closed")
	}

	data, err := persistence.MarshalRunRecord(record)
	if err != nil {
		return fmt.Errorf("failed to marshal RunRecord: %w", err)
	}

	ctx, cancel := r.context()
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, r.runKey(record.RunID), data, 0)
	pipe.ZAdd(ctx, r.prefixKey(keyRunIndex), redis.Z{Score: float64(record.StartedAt), Member: record.RunID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save RunRecord: %w", err)
	}
	return nil
}

// LoadRun retrieves a run record by ID
func (r *RedisJournal) LoadRun(runID string) (*persistence.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	ctx, cancel := r.context()
	defer cancel()

	data, err := r.client.Get(ctx, r.runKey(runID)).Bytes()
	if err == redis.Nil {
		return nil, nil // Not found is not an error
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load RunRecord: %w", err)
	}

	record, err := persistence.UnmarshalRunRecord(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RunRecord: %w", err)
	}
	return record, nil
}

// ListRuns returns the newest runs from the start time index
func (r *RedisJournal) ListRuns(limit int) ([]*persistence.RunRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, fmt.Errorf("journal is closed")
	}

	ctx, cancel := r.context()
	defer cancel()

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	indexKey := r.prefixKey(keyRunIndex)
	runIDs, err := r.client.ZRevRange(ctx, indexKey, 0, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list run IDs: %w", err)
	}
	if len(runIDs) == 0 {
		return []*persistence.RunRecord{}, nil
	}

	keys := make([]string, len(runIDs))
	for i, runID := range runIDs {
		keys[i] = r.runKey(runID)
	}
	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RunRecords: %w", err)
	}

	records := make([]*persistence.RunRecord, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Indexed but missing, drop the stale index entry
			r.client.ZRem(ctx, indexKey, runIDs[i])
			continue
		}
		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for RunRecord", "key", keys[i])
			continue
		}
		record, err := persistence.UnmarshalRunRecord([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal RunRecord, skipping", "key", keys[i], "error", err)
			continue
		}
		records = append(records, record)
	}
	return records, nil
}

// DeleteRun removes a run record and its index entry
func (r *RedisJournal) DeleteRun(runID string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("journal is closed")
	}

	ctx, cancel := r.context()
	defer cancel()

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, r.runKey(runID))
	pipe.ZRem(ctx, r.prefixKey(keyRunIndex), runID)
	_, err := pipe.Exec(ctx)
	return err
}

// Close closes the Redis client
func (r *RedisJournal) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis journal closed")
	return nil
}

// HealthCheck pings Redis and checks the schema version is present
func (r *RedisJournal) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return fmt.Errorf("journal is closed")
	}

	ctx, cancel := r.context()
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
