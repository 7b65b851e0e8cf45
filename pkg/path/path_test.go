package path_test

import (
	"os"
	"testing"

	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/path"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	return &config.Config{
		RepositoryDirPath: root,
		SessionDirPath:    root + "/sessions",
		SharedLockPath:    root + "/locks",
	}
}

func TestBaseFileName(t *testing.T) {
	r := path.NewResolver(testConfig(t))
	name, err := r.BaseFileName("D_1000000001", "model", "", 1, "pdbx")
	require.NoError(t, err)
	assert.Equal(t, "D_1000000001_model_P1.cif", name)
}

func TestBaseFileNameWithMilestone(t *testing.T) {
	r := path.NewResolver(testConfig(t))
	name, err := r.BaseFileName("D_1000000001", "model", "deposit", 1, "pdbx")
	require.NoError(t, err)
	assert.Equal(t, "D_1000000001_model-deposit_P1.cif", name)
}

func TestBaseFileNameUnknownContentType(t *testing.T) {
	r := path.NewResolver(testConfig(t))
	_, err := r.BaseFileName("D_1", "bogus", "", 1, "pdbx")
	assert.Error(t, err)
}

func TestVersionedPathNextWithNoExistingVersions(t *testing.T) {
	cfg := testConfig(t)
	r := path.NewResolver(cfg)
	repoPath, err := r.RepositoryDirPath("archive")
	require.NoError(t, err)
	depDir := repoPath + "/D_1000000001"
	require.NoError(t, os.MkdirAll(depDir, 0o755))

	p, err := r.VersionedPath("archive", "D_1000000001", "model", "", 1, "pdbx", "next")
	require.NoError(t, err)
	assert.Equal(t, depDir+"/D_1000000001_model_P1.cif.V1", p)
}

func TestVersionedPathLiteralZeroIsInvalid(t *testing.T) {
	r := path.NewResolver(testConfig(t))
	_, err := r.VersionedPath("archive", "D_1", "model", "", 1, "pdbx", "0")
	assert.Error(t, err)
}

func TestVersionedPathLatestAndPrevious(t *testing.T) {
	cfg := testConfig(t)
	r := path.NewResolver(cfg)
	repoPath, err := r.RepositoryDirPath("archive")
	require.NoError(t, err)
	depDir := repoPath + "/D_2"
	require.NoError(t, os.MkdirAll(depDir, 0o755))
	for _, v := range []string{"1", "2", "3"} {
		f, ferr := os.Create(depDir + "/D_2_model_P1.cif.V" + v)
		require.NoError(t, ferr)
		f.Close()
	}

	latest, err := r.VersionedPath("archive", "D_2", "model", "", 1, "pdbx", "latest")
	require.NoError(t, err)
	assert.Equal(t, depDir+"/D_2_model_P1.cif.V3", latest)

	prev, err := r.VersionedPath("archive", "D_2", "model", "", 1, "pdbx", "previous")
	require.NoError(t, err)
	assert.Equal(t, depDir+"/D_2_model_P1.cif.V2", prev)
}

func TestRepositoryDirPathUnknown(t *testing.T) {
	r := path.NewResolver(testConfig(t))
	_, err := r.RepositoryDirPath("bogus")
	assert.Error(t, err)
}
