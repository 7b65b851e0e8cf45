package ternary_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rcsb/depfile/pkg/filelock"
	"github.com/rcsb/depfile/pkg/filelock/ternary"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExclusiveThenExclusiveWaitsAndTimesOut(t *testing.T) {
	lockDir := t.TempDir()
	target := filepath.Join(lockDir, "..", "archive", "D_1", "D_1_model_P1.cif")
	opts := filelock.Options{Timeout: time.Second, SecondTraversalWait: 10 * time.Millisecond, UseSecondTraversal: true}

	l1, err := ternary.New(lockDir, target, filelock.Exclusive, opts)
	require.NoError(t, err)
	h1, err := l1.Acquire(context.Background())
	require.NoError(t, err)
	defer h1.Release()

	l2, err := ternary.New(lockDir, target, filelock.Exclusive, opts)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err = l2.Acquire(ctx)
	assert.Error(t, err)
}

func TestSharedLocksCoexist(t *testing.T) {
	lockDir := t.TempDir()
	target := filepath.Join(lockDir, "..", "archive", "D_1", "D_1_model_P1.cif")
	opts := filelock.Options{Timeout: time.Second, SecondTraversalWait: 10 * time.Millisecond, UseSecondTraversal: true}

	l1, err := ternary.New(lockDir, target, filelock.Shared, opts)
	require.NoError(t, err)
	h1, err := l1.Acquire(context.Background())
	require.NoError(t, err)
	defer h1.Release()

	l2, err := ternary.New(lockDir, target, filelock.Shared, opts)
	require.NoError(t, err)
	h2, err := l2.Acquire(context.Background())
	require.NoError(t, err)
	defer h2.Release()
}
