package depositfile_test

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcsb/depfile/internal/http/services/depositfile"
	"github.com/rcsb/depfile/pkg/config"
	"github.com/rcsb/depfile/pkg/kv/sqlitekv"
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
		LockType:               "soft",
		LockTimeout:            5,
		KVMode:                 "sqlite",
		JWTSubject:             "depuiuser",
		JWTSecret:              "testsecret",
		JWTAlgorithm:           "HS256",
		JWTDuration:            3600,
	}
}

func newTestService(t *testing.T, cfg *config.Config) *depositfile.Service {
	t.Helper()
	store, err := sqlitekv.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	svc, err := depositfile.New(cfg, store, nil, zerolog.Nop())
	require.NoError(t, err)
	return svc
}

func downloadQuery() string {
	return "repositoryType=archive&depId=D_1&contentType=model&partNumber=1&contentFormat=pdbx&version=next"
}

// Every route but /download sits behind the bearer-auth middleware, per
// spec.md §4.8 — including the token endpoint itself, so minting the
// very first token is only possible with BYPASS_AUTHORIZATION set.
func TestHealthRouteRequiresAuth(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	req := httptest.NewRequest(http.MethodGet, "/admin/health", nil)
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestDownloadRouteBypassesAuth(t *testing.T) {
	svc := newTestService(t, testConfig(t))
	req := httptest.NewRequest(http.MethodGet, "/download?"+downloadQuery(), nil)
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, req)

	assert.NotEqual(t, http.StatusUnauthorized, w.Code)
}

func TestTokenThenUploadRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	cfg.BypassAuthorization = true
	svc := newTestService(t, cfg)

	token := mintTestToken(t, svc)

	paramsBody, err := json.Marshal(map[string]any{
		"repositoryType": "archive",
		"depId":          "D_1",
		"contentType":    "model",
		"partNumber":     1,
		"contentFormat":  "pdbx",
		"version":        "next",
	})
	require.NoError(t, err)
	paramsReq := httptest.NewRequest(http.MethodPost, "/upload-parameters", bytes.NewReader(paramsBody))
	paramsReq.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, paramsReq)
	require.Equal(t, http.StatusOK, w.Code)

	var params map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &params))
	filePath, _ := params["filePath"].(string)
	require.NotEmpty(t, filePath)

	contents := []byte("a round-tripped deposition file")
	var multipartBody bytes.Buffer
	mw := multipart.NewWriter(&multipartBody)
	part, err := mw.CreateFormFile("chunk", "chunk0")
	require.NoError(t, err)
	_, err = part.Write(contents)
	require.NoError(t, err)
	for k, v := range map[string]string{
		"chunkSize":      "31",
		"chunkIndex":     "0",
		"expectedChunks": "1",
		"fileSize":       "31",
		"filePath":       filePath,
	} {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	uploadReq := httptest.NewRequest(http.MethodPost, "/upload", &multipartBody)
	uploadReq.Header.Set("Content-Type", mw.FormDataContentType())
	uploadReq.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, uploadReq)
	require.Equal(t, http.StatusOK, w.Code)

	downloadReq := httptest.NewRequest(http.MethodGet, "/download?repositoryType=archive&depId=D_1&contentType=model&partNumber=1&contentFormat=pdbx&version=latest", nil)
	w = httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, downloadReq)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, contents, w.Body.Bytes())
}

func TestExistsRouteReportsMissingFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.BypassAuthorization = true
	svc := newTestService(t, cfg)

	req := httptest.NewRequest(http.MethodGet, "/exists?"+downloadQuery(), nil)
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var resp map[string]bool
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp["exists"])
}

func mintTestToken(t *testing.T, svc *depositfile.Service) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/token", bytes.NewReader(nil))
	w := httptest.NewRecorder()
	svc.Handler().ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp["token"]
}
