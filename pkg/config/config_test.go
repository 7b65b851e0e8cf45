package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
SERVER_HOST_AND_PORT: "http://localhost:8000"
SURPLUS_PROCESSORS: 1
REPOSITORY_DIR_PATH: /data/repository
SESSION_DIR_PATH: /data/sessions
SHARED_LOCK_PATH: /data/locks
KV_FILE_PATH: /data/kv.sqlite
LOCK_TRANSACTIONS: true
LOCK_TYPE: soft
LOCK_TIMEOUT: 60
KV_MODE: sqlite
REDIS_HOST: localhost
KV_MAP_TABLE_NAME: map
KV_SESSION_TABLE_NAME: session
KV_LOCK_TABLE_NAME: lock
KV_MAX_SECONDS: 3600
CHUNK_SIZE: 33554432
COMPRESSION_TYPE: gzip
HASH_TYPE: MD5
DEFAULT_FILE_PERMISSIONS: 420
JWT_SUBJECT: depUser
JWT_SECRET: supersecret
JWT_ALGORITHM: HS256
JWT_DURATION: 3600
BYPASS_AUTHORIZATION: false
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yml")
	require.NoError(t, os.WriteFile(p, []byte(contents), 0o644))
	return p
}

func TestLoadAndValidateValid(t *testing.T) {
	p := writeConfig(t, validYAML)
	c, err := config.Load(p)
	require.NoError(t, err)
	assert.NoError(t, c.Validate())
	assert.Equal(t, "soft", c.LockType)
	assert.Equal(t, int64(33554432), c.ChunkSize)
}

func TestValidateRejectsMismatchedRedisModes(t *testing.T) {
	p := writeConfig(t, strings.Replace(validYAML, "LOCK_TYPE: soft", "LOCK_TYPE: redis", 1))
	c, err := config.Load(p)
	require.NoError(t, err)
	assert.Error(t, c.Validate())
}

func TestValidateRejectsBadCompressionType(t *testing.T) {
	p := writeConfig(t, strings.Replace(validYAML, "COMPRESSION_TYPE: gzip", "COMPRESSION_TYPE: rar", 1))
	c, err := config.Load(p)
	require.NoError(t, err)
	assert.Error(t, c.Validate())
}
