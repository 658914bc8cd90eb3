package anchoring

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"trustcore/internal/config"
	"trustcore/internal/constants"
	"trustcore/internal/logger"
	"trustcore/internal/merkle"
	"trustcore/pkg/metrics"
)

// CacheEntry locates a log inside a built tree. Entries are immutable once stored.
type CacheEntry struct {
	LeafHash merkle.Hash
	BatchID  string
	Tree     *merkle.Tree
}

// ProofCache memoizes log -> tree lookups. It is never the source of truth: a miss or a
// lost entry is always recoverable from the audit log and batch tables.
type ProofCache interface {
	Get(ctx context.Context, logID string) (*CacheEntry, bool)
	// PutBatch stores every log of one batch. leaves maps log id to leaf hash.
	PutBatch(ctx context.Context, batchID string, tree *merkle.Tree, leaves map[string]merkle.Hash)
}

type LRUProofCache struct {
	lru *expirable.LRU[string, *CacheEntry]
}

func NewLRUProofCache(size int, ttl time.Duration) *LRUProofCache {
	if size <= 0 {
		size = constants.DefaultProofCacheSize
	}
	return &LRUProofCache{lru: expirable.NewLRU[string, *CacheEntry](size, nil, ttl)}
}

func (c *LRUProofCache) Get(_ context.Context, logID string) (*CacheEntry, bool) {
	entry, ok := c.lru.Get(logID)
	metrics.IncProofCacheLookup("lru", ok)
	return entry, ok
}

func (c *LRUProofCache) PutBatch(_ context.Context, batchID string, tree *merkle.Tree, leaves map[string]merkle.Hash) {
	for logID, leaf := range leaves {
		c.lru.Add(logID, &CacheEntry{LeafHash: leaf, BatchID: batchID, Tree: tree})
	}
}

func (c *LRUProofCache) Len() int {
	return c.lru.Len()
}

type redisLogEntry struct {
	Hash    merkle.Hash `json:"hash"`
	BatchID string      `json:"batchId"`
}

// RedisProofCache shares trees between replicas. Each batch stores its sorted leaves once
// and every log stores a pointer to its batch; trees are rebuilt on read.
type RedisProofCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewRedisProofCache(client *redis.Client, ttl time.Duration, log logger.Logger) *RedisProofCache {
	return &RedisProofCache{client: client, ttl: ttl, logger: log}
}

func logKey(logID string) string {
	return constants.CacheKeyPrefixProof + "log:" + logID
}

func batchKey(batchID string) string {
	return constants.CacheKeyPrefixProof + "batch:" + batchID
}

func (c *RedisProofCache) Get(ctx context.Context, logID string) (*CacheEntry, bool) {
	entry, err := c.get(ctx, logID)
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnwCtx(ctx, "Proof cache read failed", "log_id", logID, "error", err)
		}
		metrics.IncProofCacheLookup("redis", false)
		return nil, false
	}
	metrics.IncProofCacheLookup("redis", true)
	return entry, true
}

func (c *RedisProofCache) get(ctx context.Context, logID string) (*CacheEntry, error) {
	raw, err := c.client.Get(ctx, logKey(logID)).Bytes()
	if err != nil {
		return nil, err
	}
	var pointer redisLogEntry
	if err := json.Unmarshal(raw, &pointer); err != nil {
		return nil, fmt.Errorf("invalid cached log entry: %w", err)
	}

	raw, err = c.client.Get(ctx, batchKey(pointer.BatchID)).Bytes()
	if err != nil {
		return nil, err
	}
	var leaves []merkle.Hash
	if err := json.Unmarshal(raw, &leaves); err != nil {
		return nil, fmt.Errorf("invalid cached batch leaves: %w", err)
	}

	return &CacheEntry{
		LeafHash: pointer.Hash,
		BatchID:  pointer.BatchID,
		Tree:     merkle.BuildTree(leaves),
	}, nil
}

func (c *RedisProofCache) PutBatch(ctx context.Context, batchID string, tree *merkle.Tree, leaves map[string]merkle.Hash) {
	leafJSON, err := json.Marshal(tree.Leaves)
	if err != nil {
		return
	}

	pipe := c.client.Pipeline()
	pipe.Set(ctx, batchKey(batchID), leafJSON, c.ttl)
	for logID, leaf := range leaves {
		data, err := json.Marshal(redisLogEntry{Hash: leaf, BatchID: batchID})
		if err != nil {
			continue
		}
		pipe.Set(ctx, logKey(logID), data, c.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.WarnwCtx(ctx, "Proof cache write failed", "batch_id", batchID, "error", err)
	}
}

// TieredProofCache reads the local tier first and back-fills it from the shared tier.
type TieredProofCache struct {
	local  ProofCache
	shared ProofCache
}

func NewTieredProofCache(local, shared ProofCache) *TieredProofCache {
	return &TieredProofCache{local: local, shared: shared}
}

func (c *TieredProofCache) Get(ctx context.Context, logID string) (*CacheEntry, bool) {
	if entry, ok := c.local.Get(ctx, logID); ok {
		return entry, true
	}
	entry, ok := c.shared.Get(ctx, logID)
	if !ok {
		return nil, false
	}
	c.local.PutBatch(ctx, entry.BatchID, entry.Tree, map[string]merkle.Hash{logID: entry.LeafHash})
	return entry, true
}

func (c *TieredProofCache) PutBatch(ctx context.Context, batchID string, tree *merkle.Tree, leaves map[string]merkle.Hash) {
	c.local.PutBatch(ctx, batchID, tree, leaves)
	c.shared.PutBatch(ctx, batchID, tree, leaves)
}

// NewProofCache builds the cache selected by cfg. client may be nil for the lru type.
func NewProofCache(cfg config.CacheConfig, client *redis.Client, log logger.Logger) (ProofCache, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = constants.DefaultProofCacheTTL
	}

	switch cfg.Type {
	case "", constants.CacheTypeLRU:
		return NewLRUProofCache(cfg.Size, ttl), nil
	case constants.CacheTypeRedis:
		if client == nil {
			return nil, fmt.Errorf("proof cache type %q requires redis", cfg.Type)
		}
		return NewRedisProofCache(client, ttl, log), nil
	case constants.CacheTypeTiered:
		if client == nil {
			return nil, fmt.Errorf("proof cache type %q requires redis", cfg.Type)
		}
		return NewTieredProofCache(NewLRUProofCache(cfg.Size, ttl), NewRedisProofCache(client, ttl, log)), nil
	default:
		return nil, fmt.Errorf("unsupported proof cache type %q", cfg.Type)
	}
}
