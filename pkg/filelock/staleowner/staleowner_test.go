package staleowner_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcsb/depfile/pkg/filelock/staleowner"
)

func writeLockFile(t *testing.T, dir, name string, age time.Duration) string {
	t.Helper()
	path := filepath.Join(dir, name)
	contents := "999999999\nsomeotherhost\n1700000000.0000\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	then := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, then, then))
	return path
}

func TestSweepRemovesExpiredLock(t *testing.T) {
	dir := t.TempDir()
	path := writeLockFile(t, dir, "archive~D_1_model_P1.cif~w~abc", time.Hour)

	sweeper := staleowner.New(dir, nil, false, time.Minute, zerolog.Nop())
	require.NoError(t, sweeper.Sweep(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepSparesUnexpiredLock(t *testing.T) {
	dir := t.TempDir()
	path := writeLockFile(t, dir, "archive~D_1_model_P1.cif~w~abc", 0)

	sweeper := staleowner.New(dir, nil, true, time.Hour, zerolog.Nop())
	require.NoError(t, sweeper.Sweep(context.Background()))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}
