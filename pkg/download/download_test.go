package download_test

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/download"
	"github.com/rcsb/depfile/pkg/integrity"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{RepositoryDirPath: t.TempDir()}
}

func writeTestFile(t *testing.T, cfg *config.Config, contents []byte) {
	t.Helper()
	dir := filepath.Join(cfg.RepositoryDirPath, "archive", "D_1")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "D_1_model_P1.cif.V1"), contents, 0o644))
}

func TestResolveWholeFileWithHash(t *testing.T) {
	cfg := testConfig(t)
	writeTestFile(t, cfg, []byte("deposition contents"))

	engine := download.NewEngine(cfg)
	result, err := engine.Resolve("archive", "D_1", "model", "", 1, "pdbx", "1", integrity.SHA256)
	require.NoError(t, err)
	assert.Equal(t, int64(len("deposition contents")), result.Size)
	assert.NotEmpty(t, result.HashDigest)
}

func TestResolveMissingFile(t *testing.T) {
	cfg := testConfig(t)
	engine := download.NewEngine(cfg)
	_, err := engine.Resolve("archive", "D_1", "model", "", 1, "pdbx", "1", "")
	assert.Error(t, err)
}

func TestOpenChunk(t *testing.T) {
	cfg := testConfig(t)
	writeTestFile(t, cfg, []byte("0123456789"))
	filePath := filepath.Join(cfg.RepositoryDirPath, "archive", "D_1", "D_1_model_P1.cif.V1")

	r, err := download.OpenChunk(filePath, 4, 1)
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "4567", string(data))
}

func TestGetMimeType(t *testing.T) {
	assert.Equal(t, "chemical/x-mmcif", download.GetMimeType("cif"))
	assert.Equal(t, "application/pdf", download.GetMimeType("pdf"))
	assert.Equal(t, "text/plain", download.GetMimeType("unknown-format"))
}
