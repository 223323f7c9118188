package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
	t.Helper()
	for k, v := range map[string]string{
		"APP_ENV":                "test",
		"APP_PORT":               "8080",
		"DB_USER":                "gate",
		"DB_HOST":                "localhost",
		"DB_PORT":                "3306",
		"DB_NAME":                "gate",
		"JWT_SECRET":             "jwt-secret",
		"ACCESS_TOKEN_TTL_MIN":   "15",
		"REFRESH_TOKEN_TTL_DAYS": "7",
		"BCRYPT_COST":            "4",
		"SIGNER_SECRET":          "signer-secret",
		"CUSTODY_AGE_RECIPIENT":  "age1example",
	} {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)
	t.Setenv("PLATFORM_PRIVATE_KEY", "")
	t.Setenv("METADATA_BASE_URL", "https://meta.example/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 4, cfg.BcryptCost)
	assert.Equal(t, "signer-secret", cfg.SignerSecret)
	assert.False(t, cfg.Chain.Live())
	assert.Equal(t, 2*time.Minute, cfg.Chain.ConfirmTimeout)
	assert.Equal(t, "https://meta.example", cfg.Chain.MetadataBaseURL)
	assert.Equal(t, int64(3940), cfg.Chain.ChainID)
}

func TestLoad_LiveWhenPlatformKeySet(t *testing.T) {
	setRequired(t)
	t.Setenv("PLATFORM_PRIVATE_KEY", "deadbeef")
	t.Setenv("MINT_CONFIRM_TIMEOUT", "45s")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.Chain.Live())
	assert.Equal(t, 45*time.Second, cfg.Chain.ConfirmTimeout)
}

func TestLoad_ReportsAllMissing(t *testing.T) {
	setRequired(t)
	t.Setenv("SIGNER_SECRET", "")
	t.Setenv("JWT_SECRET", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SIGNER_SECRET")
	assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_InvalidInt(t *testing.T) {
	setRequired(t)
	t.Setenv("BCRYPT_COST", "twelve")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BCRYPT_COST")
}

func TestLoadRateLimitConfig_Clamps(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "2s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()
	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 10*time.Second, cfg.TTL)
}
