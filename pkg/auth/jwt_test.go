package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rcsb/depfile/pkg/auth"
	"github.com/rcsb/depfile/pkg/config"
)

func testConfig() *config.Config {
	return &config.Config{
		JWTSecret:    "test-secret",
		JWTAlgorithm: "HS256",
		JWTSubject:   "depositionFileApi",
		JWTDuration:  60,
	}
}

func TestCreateAndDecodeToken(t *testing.T) {
	mgr, err := auth.NewManager(testConfig())
	require.NoError(t, err)

	token, err := mgr.CreateToken(map[string]any{"user": "alice"}, "depositionFileApi", 0)
	require.NoError(t, err)

	claims, err := mgr.DecodeToken(token)
	require.NoError(t, err)
	assert.Equal(t, "alice", claims["user"])
}

func TestDecodeTokenRejectsWrongSubject(t *testing.T) {
	mgr, err := auth.NewManager(testConfig())
	require.NoError(t, err)

	token, err := mgr.CreateToken(nil, "someone-else", 0)
	require.NoError(t, err)

	_, err = mgr.DecodeToken(token)
	assert.Error(t, err)
}

func TestDecodeTokenRejectsExpired(t *testing.T) {
	mgr, err := auth.NewManager(testConfig())
	require.NoError(t, err)

	token, err := mgr.CreateToken(nil, "depositionFileApi", -time.Minute)
	require.NoError(t, err)

	_, err = mgr.DecodeToken(token)
	assert.Error(t, err)
}

func TestValidateBearerHeaderRejectsMissingPrefix(t *testing.T) {
	mgr, err := auth.NewManager(testConfig())
	require.NoError(t, err)
	assert.Error(t, mgr.ValidateBearerHeader("not-a-bearer-token"))
}

func TestNewManagerRejectsNonHMACAlgorithm(t *testing.T) {
	cfg := testConfig()
	cfg.JWTAlgorithm = "RS256"
	_, err := auth.NewManager(cfg)
	assert.Error(t, err)
}
