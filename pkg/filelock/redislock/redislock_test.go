package redislock_test

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcsb/depfile/pkg/filelock"
	"github.com/rcsb/depfile/pkg/filelock/redislock"
)

func testClient(t *testing.T) *redis.Client {
	t.Helper()
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("no redis server reachable on 127.0.0.1:6379")
	}
	return client
}

func TestExclusiveLockBlocksExclusive(t *testing.T) {
	client := testClient(t)
	target := "/data/archive/D_1/model/D_1_model_P1.cif"
	opts := filelock.Options{Timeout: time.Second}

	l1, err := redislock.New(client, target, filelock.Exclusive, opts)
	require.NoError(t, err)
	h1, err := l1.Acquire(context.Background())
	require.NoError(t, err)

	l2, err := redislock.New(client, target, filelock.Exclusive, opts)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l2.Acquire(ctx)
	assert.Error(t, err)

	require.NoError(t, h1.Release())
}

func TestSharedLocksCoexist(t *testing.T) {
	client := testClient(t)
	target := "/data/archive/D_2/model/D_2_model_P1.cif"
	opts := filelock.Options{Timeout: time.Second}

	l1, err := redislock.New(client, target, filelock.Shared, opts)
	require.NoError(t, err)
	h1, err := l1.Acquire(context.Background())
	require.NoError(t, err)
	defer h1.Release()

	l2, err := redislock.New(client, target, filelock.Shared, opts)
	require.NoError(t, err)
	h2, err := l2.Acquire(context.Background())
	require.NoError(t, err)
	defer h2.Release()
}

func TestSecondTraversalWaitConfirmsOwnership(t *testing.T) {
	client := testClient(t)
	target := "/data/archive/D_3/model/D_3_model_P1.cif"
	opts := filelock.Options{
		Timeout:             time.Second,
		UseSecondTraversal:  true,
		SecondTraversalWait: 10 * time.Millisecond,
	}

	l1, err := redislock.New(client, target, filelock.Exclusive, opts)
	require.NoError(t, err)
	h1, err := l1.Acquire(context.Background())
	require.NoError(t, err)
	require.NoError(t, h1.Release())
}

func TestCleanupSparesFreshRecordButReclaimsStale(t *testing.T) {
	client := testClient(t)
	opts := filelock.Options{Timeout: time.Second}

	freshTarget := "/data/archive/D_4/model/D_4_model_P1.cif"
	staleTarget := "/data/archive/D_5/model/D_5_model_P1.cif"

	freshLocker, err := redislock.New(client, freshTarget, filelock.Exclusive, opts)
	require.NoError(t, err)
	freshHandle, err := freshLocker.Acquire(context.Background())
	require.NoError(t, err)
	defer freshHandle.Release()

	staleLocker, err := redislock.New(client, staleTarget, filelock.Exclusive, opts)
	require.NoError(t, err)
	_, err = staleLocker.Acquire(context.Background())
	require.NoError(t, err)

	// Backdate the stale record's start field directly so Cleanup sees it
	// as older than the sweep timeout without waiting in real time, and
	// attribute it to a different host so Cleanup's same-host liveness
	// check (which would otherwise try to SIGSTOP this very test process,
	// since its real pid is still recorded) never kicks in.
	staleKey := "D_5~D_5_model_P1.cif"
	old := time.Now().Add(-2 * time.Hour).Unix()
	require.NoError(t, client.HSet(context.Background(), staleKey, "start", old, "hostname", "some-other-host").Err())

	require.NoError(t, redislock.Cleanup(context.Background(), client, true, time.Hour, zerolog.Nop()))

	freshKey := "D_4~D_4_model_P1.cif"
	exists, err := client.Exists(context.Background(), freshKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), exists, "fresh record should survive an age-gated cleanup")

	exists, err = client.Exists(context.Background(), staleKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), exists, "stale record should be reclaimed")
}
