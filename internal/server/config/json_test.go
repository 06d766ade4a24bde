package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempJSON(t *testing.T, dir, name string, data map[string]any) string {
	t.Helper()
	if dir == "" {
		dir = t.TempDir()
	}
	if name == "" {
		name = "cfg.json"
	}
	path := filepath.Join(dir, name)
	b, err := json.Marshal(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, b, 0o600))
	return path
}

func Test_parseJson_SourcesAndPrecedence(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	dir := t.TempDir()
	pathFlag := writeTempJSON(t, dir, "flag.json", map[string]any{
		"endpoint_addr_http":                     "www.example:8000",
		"database_dsn":                           "memory://",
		"access_token_secret":                    "a",
		"refresh_token_secret":                   "r",
		"access_token_validity_duration":         "1m",
		"refresh_token_validity_duration":        "3h",
		"password_reset_token_validity_duration": "30m",
		"email_verify_token_validity_duration":   "48h",
		"bcrypt_cost":                            10,
		"secure_cookies":                         true,
		"notifier":                               "ses",
		"kafka_brokers":                          []string{"b1:9092"},
		"ses_region":                             "eu-west-1",
		"ses_base_endpoint":                      "http://localstack:4566",
	})

	t.Run("loads from json", func(t *testing.T) {
		os.Args = []string{"testbin", "-config", pathFlag}

		cfg := &Config{}
		parseJson(cfg)

		assert.Equal(t, "www.example:8000", cfg.EndpointAddrHTTP)
		assert.Equal(t, "memory://", cfg.DatabaseDSN)
		assert.Equal(t, "a", cfg.AccessTokenSecret)
		assert.Equal(t, "r", cfg.RefreshTokenSecret)
		assert.Equal(t, 1*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 3*time.Hour, cfg.RefreshTokenValidityDuration)
		assert.Equal(t, 30*time.Minute, cfg.PasswordResetTokenValidityDuration)
		assert.Equal(t, 48*time.Hour, cfg.EmailVerifyTokenValidityDuration)
		assert.Equal(t, 10, cfg.BcryptCost)
		assert.True(t, cfg.SecureCookies)
		assert.Equal(t, NotifierSES, cfg.Notifier)
		assert.Equal(t, []string{"b1:9092"}, cfg.KafkaBrokers)
		assert.Equal(t, "eu-west-1", cfg.SESRegion)
		assert.Equal(t, "http://localstack:4566", cfg.SESBaseEndpoint)
	})

	t.Run("no config flag leaves values untouched", func(t *testing.T) {
		os.Args = []string{"testbin"}

		cfg := &Config{
			EndpointAddrHTTP:            "defaults:1234",
			DatabaseDSN:                 "vault.db",
			AccessTokenValidityDuration: 2 * time.Minute,
			BcryptCost:                  11,
		}
		parseJson(cfg)

		assert.Equal(t, "defaults:1234", cfg.EndpointAddrHTTP)
		assert.Equal(t, "vault.db", cfg.DatabaseDSN)
		assert.Equal(t, 2*time.Minute, cfg.AccessTokenValidityDuration)
		assert.Equal(t, 11, cfg.BcryptCost)
	})

	t.Run("missing file panics", func(t *testing.T) {
		os.Args = []string{"testbin", "-c", filepath.Join(dir, "nope.json")}

		require.Panics(t, func() { parseJson(&Config{}) })
	})

	t.Run("invalid JSON panics", func(t *testing.T) {
		bad := filepath.Join(dir, "bad.json")
		require.NoError(t, os.WriteFile(bad, []byte(`{ this is not valid json`), 0o600))

		os.Args = []string{"testbin", "-config", bad}

		cfg := &Config{}
		require.Panics(t, func() { parseJson(cfg) })
	})
}
