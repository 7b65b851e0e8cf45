package upload_test

import (
	"archive/zip"
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/filelock"
	"github.com/rcsb/depfile/pkg/filelock/soft"
	"github.com/rcsb/depfile/pkg/integrity"
	"github.com/rcsb/depfile/pkg/kv"
	"github.com/rcsb/depfile/pkg/kv/sqlitekv"
	"github.com/rcsb/depfile/pkg/upload"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		RepositoryDirPath:      filepath.Join(root, "repository"),
		SessionDirPath:         filepath.Join(root, "sessions"),
		SharedLockPath:         filepath.Join(root, "locks"),
		KVFilePath:             filepath.Join(root, "kv.sqlite"),
		KVSessionTableName:     "session",
		KVMapTableName:         "map",
		DefaultFilePermissions: 0o755,
		LockTimeout:            5,
	}
}

func testStore(t *testing.T, cfg *config.Config) kv.Store {
	t.Helper()
	store, err := sqlitekv.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func softLockFactory(cfg *config.Config) upload.LockFactory {
	return func(targetPath string, mode filelock.Mode, isDir bool) (filelock.Lock, error) {
		return soft.New(cfg.SharedLockPath, targetPath, mode, filelock.Options{IsDir: isDir})
	}
}

func TestUploadSingleChunk(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_1", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)
	assert.Equal(t, 0, params.ChunkIndex)

	contents := []byte("hello deposition file")
	digest, err := integrity.DigestReader(bytes.NewReader(contents), integrity.SHA256)
	require.NoError(t, err)

	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          bytes.NewReader(contents),
		ChunkSize:      int64(len(contents)),
		ChunkIndex:     0,
		ExpectedChunks: 1,
		UploadID:       params.UploadID,
		HashType:       integrity.SHA256,
		HashDigest:     digest,
		FilePath:       params.FilePath,
		AllowOverwrite: false,
		Resumable:      false,
	})
	require.NoError(t, err)

	finalPath := filepath.Join(cfg.RepositoryDirPath, params.FilePath)
	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, contents, data)
}

func TestUploadRejectsOverwriteWithoutFlag(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_1", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)
	finalPath := filepath.Join(cfg.RepositoryDirPath, params.FilePath)
	require.NoError(t, os.MkdirAll(filepath.Dir(finalPath), 0o755))
	require.NoError(t, os.WriteFile(finalPath, []byte("existing"), 0o644))

	contents := []byte("new content")
	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          strings.NewReader(string(contents)),
		ChunkSize:      int64(len(contents)),
		ChunkIndex:     0,
		ExpectedChunks: 1,
		UploadID:       params.UploadID,
		FileSize:       int64(len(contents)),
		FilePath:       params.FilePath,
		AllowOverwrite: false,
	})
	assert.Error(t, err)
}

func TestUploadRejectsHashMismatch(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_2", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)

	contents := []byte("some bytes")
	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          bytes.NewReader(contents),
		ChunkSize:      int64(len(contents)),
		ChunkIndex:     0,
		ExpectedChunks: 1,
		UploadID:       params.UploadID,
		HashType:       integrity.SHA256,
		HashDigest:     "not-the-right-digest",
		FilePath:       params.FilePath,
	})
	assert.Error(t, err)
}

func gzipBytes(t *testing.T, contents []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write(contents)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	return buf.Bytes()
}

func TestUploadExtractsGzippedChunk(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_3", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)

	contents := []byte("uncompressed chunk contents")
	compressed := gzipBytes(t, contents)

	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          bytes.NewReader(compressed),
		ChunkSize:      int64(len(compressed)),
		ChunkIndex:     0,
		ExpectedChunks: 1,
		UploadID:       params.UploadID,
		FileSize:       int64(len(contents)),
		FilePath:       params.FilePath,
		ExtractChunk:   true,
	})
	require.NoError(t, err)

	finalPath := filepath.Join(cfg.RepositoryDirPath, params.FilePath)
	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, contents, data)
}

func TestUploadDecompressesGzipAfterFinalize(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_4", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)

	contents := []byte("file contents that arrived compressed")
	compressed := gzipBytes(t, contents)

	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          bytes.NewReader(compressed),
		ChunkSize:      int64(len(compressed)),
		ChunkIndex:     0,
		ExpectedChunks: 1,
		UploadID:       params.UploadID,
		FileSize:       int64(len(compressed)),
		FilePath:       params.FilePath,
		Decompress:     true,
		FileExtension:  "gzip",
	})
	require.NoError(t, err)

	finalPath := filepath.Join(cfg.RepositoryDirPath, params.FilePath)
	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, contents, data)
}

func TestUploadDecompressesZipAfterFinalize(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_5", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)

	contents := []byte("file contents zipped up")
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	entry, err := zw.Create("entry")
	require.NoError(t, err)
	_, err = entry.Write(contents)
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	compressed := buf.Bytes()

	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          bytes.NewReader(compressed),
		ChunkSize:      int64(len(compressed)),
		ChunkIndex:     0,
		ExpectedChunks: 1,
		UploadID:       params.UploadID,
		FileSize:       int64(len(compressed)),
		FilePath:       params.FilePath,
		Decompress:     true,
		FileExtension:  "zip",
	})
	require.NoError(t, err)

	finalPath := filepath.Join(cfg.RepositoryDirPath, params.FilePath)
	data, err := os.ReadFile(finalPath)
	require.NoError(t, err)
	assert.Equal(t, contents, data)
}

func TestUploadRejectsDoubleFileExtension(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_6", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)

	contents := []byte("irrelevant contents")
	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          bytes.NewReader(contents),
		ChunkSize:      int64(len(contents)),
		ChunkIndex:     0,
		ExpectedChunks: 1,
		UploadID:       params.UploadID,
		FileSize:       int64(len(contents)),
		FilePath:       params.FilePath,
		Decompress:     true,
		FileExtension:  "tar.gz",
	})
	assert.Error(t, err)

	finalPath := filepath.Join(cfg.RepositoryDirPath, params.FilePath)
	_, statErr := os.Stat(finalPath)
	assert.True(t, os.IsNotExist(statErr), "partially renamed file must not remain at the target path")
}

func TestUploadRejectsEmptyChunk(t *testing.T) {
	cfg := testConfig(t)
	store := testStore(t, cfg)
	ctx := context.Background()
	engine := upload.NewEngine(cfg, softLockFactory(cfg), zerolog.Nop())

	params, err := engine.GetUploadParameters(ctx, store, "archive", "D_7", "model", "", 1, "pdbx", "next", false, false)
	require.NoError(t, err)

	err = engine.UploadChunk(ctx, store, upload.ChunkRequest{
		Chunk:          bytes.NewReader(nil),
		ChunkSize:      0,
		ChunkIndex:     0,
		ExpectedChunks: 2,
		UploadID:       params.UploadID,
		FilePath:       params.FilePath,
	})
	assert.Error(t, err)
}
