//go:build integration

package anchoring

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustcore/internal/audit"
	"trustcore/internal/blockchain"
	"trustcore/internal/logger"
	"trustcore/internal/merkle"
	"trustcore/internal/testinfra"
	"trustcore/pkg/errors"
)

func TestPostgresBatchRepository_Integration(t *testing.T) {
	ctx := context.Background()
	repo := NewBatchRepository(testinfra.Postgres(t))

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	root := merkle.Keccak256([]byte("root"))

	batch := &Batch{BatchRootHash: root, Count: 3, PeriodStart: start, PeriodEnd: end, Status: blockchain.StatusPending}
	require.NoError(t, repo.CreateBatch(ctx, batch))
	require.NotEmpty(t, batch.ID)

	t.Run("same window conflicts", func(t *testing.T) {
		dup := &Batch{BatchRootHash: root, Count: 1, PeriodStart: start, PeriodEnd: end, Status: blockchain.StatusPending}
		assert.True(t, errors.IsConflict(repo.CreateBatch(ctx, dup)))
	})

	t.Run("containing and overlapping", func(t *testing.T) {
		found, err := repo.FindBatchContaining(ctx, start.Add(59*time.Minute))
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, batch.ID, found.ID)
		assert.Equal(t, root, found.BatchRootHash)

		found, err = repo.FindBatchContaining(ctx, end)
		require.NoError(t, err)
		assert.Nil(t, found, "end is exclusive")

		overlapping, err := repo.FindOverlapping(ctx, end, end.Add(time.Hour))
		require.NoError(t, err)
		assert.Empty(t, overlapping, "adjacent windows do not overlap")

		overlapping, err = repo.FindOverlapping(ctx, start.Add(30*time.Minute), end.Add(time.Hour))
		require.NoError(t, err)
		assert.Len(t, overlapping, 1)
	})

	t.Run("anchored batches are immutable", func(t *testing.T) {
		require.NoError(t, repo.UpdateBatch(ctx, batch.ID, BatchUpdate{Status: blockchain.StatusFailed, LastError: "rpc down"}))

		got, err := repo.GetBatch(ctx, batch.ID)
		require.NoError(t, err)
		assert.Equal(t, blockchain.StatusFailed, got.Status)
		assert.Equal(t, "rpc down", got.LastError)

		require.NoError(t, repo.UpdateBatch(ctx, batch.ID, BatchUpdate{Status: blockchain.StatusAnchored, AnchoredTxHash: "0xabc"}))
		err = repo.UpdateBatch(ctx, batch.ID, BatchUpdate{Status: blockchain.StatusFailed})
		assert.True(t, errors.IsConflict(err))

		got, err = repo.FindByRoot(ctx, root)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "0xabc", got.AnchoredTxHash)
		assert.Empty(t, got.LastError)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := repo.GetBatch(ctx, "nope")
		assert.True(t, errors.IsNotFound(err))

		got, err := repo.FindByRoot(ctx, merkle.EmptyRoot)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

func TestRedisProofCache_Integration(t *testing.T) {
	ctx := context.Background()
	cache := NewRedisProofCache(testinfra.Redis(t), time.Hour, logger.NopLogger())

	tree, leaves := cachedBatch("a", "b", "c")
	cache.PutBatch(ctx, "batch-1", tree, leaves)

	entry, ok := cache.Get(ctx, "b")
	require.True(t, ok)
	assert.Equal(t, "batch-1", entry.BatchID)
	assert.Equal(t, leaves["b"], entry.LeafHash)
	assert.Equal(t, tree.Root, entry.Tree.Root, "tree is rebuilt from the stored leaves")

	_, ok = cache.Get(ctx, "unknown")
	assert.False(t, ok)
}

func TestRedisWindowLock_Integration(t *testing.T) {
	ctx := context.Background()
	client := testinfra.Redis(t)
	first := NewRedisWindowLock(client, time.Minute, logger.NopLogger())
	second := NewRedisWindowLock(client, time.Minute, logger.NopLogger())

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	release, ok, err := first.Acquire(ctx, start, end)
	require.NoError(t, err)
	require.True(t, ok)

	_, ok, err = second.Acquire(ctx, start, end)
	require.NoError(t, err)
	assert.False(t, ok, "window is held")

	otherRelease, ok, err := second.Acquire(ctx, end, end.Add(time.Hour))
	require.NoError(t, err)
	assert.True(t, ok, "next window is independent")
	otherRelease()

	release()

	release, ok, err = second.Acquire(ctx, start, end)
	require.NoError(t, err)
	assert.True(t, ok)
	release()
}

func TestService_Integration(t *testing.T) {
	ctx := context.Background()
	db := testinfra.Postgres(t)
	auditRepo := audit.NewRepository(db)
	recorder := audit.NewRecorder(auditRepo)

	start := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)
	for i, id := range []string{"log-a", "log-b", "log-c"} {
		require.NoError(t, auditRepo.Append(ctx, &audit.Entry{
			ID: id, EntityType: "rule", EntityID: "r1", Action: "rule.executed", Actor: "system",
			Meta:      map[string]interface{}{"seq": float64(i)},
			CreatedAt: start.Add(time.Duration(i+1) * time.Minute),
		}))
	}

	chain := &fakeChain{txHash: "0xfeed"}
	batches := NewBatchRepository(db)
	service := NewService(recorder, batches, NewLRUProofCache(10, time.Hour), logger.NopLogger(),
		WithBlockchain(chain),
		WithClock(func() time.Time { return fixedNow }),
	)

	batch, err := service.BuildAndAnchorBatch(ctx, start, end)
	require.NoError(t, err)
	assert.Equal(t, blockchain.StatusAnchored, batch.Status)
	assert.Equal(t, 3, batch.Count)

	// a fresh cache forces the proof to be rebuilt from the stored logs
	cold := NewService(recorder, batches, NewLRUProofCache(10, time.Hour), logger.NopLogger(),
		WithClock(func() time.Time { return fixedNow }))

	proof, err := cold.ProofForLog(ctx, "log-b")
	require.NoError(t, err)
	assert.Equal(t, batch.ID, proof.BatchID)
	assert.Equal(t, "0xfeed", proof.AnchoredTxHash)
	assert.Equal(t, batch.BatchRootHash, proof.Proof.Root)

	result, err := cold.VerifyProof(ctx, proof.Proof)
	require.NoError(t, err)
	assert.True(t, result.Valid)
	require.NotNil(t, result.Batch)
	assert.Equal(t, batch.ID, result.Batch.ID)

	_, err = service.BuildAndAnchorBatch(ctx, start.Add(30*time.Minute), end.Add(30*time.Minute))
	assert.True(t, errors.IsConflict(err))
}
