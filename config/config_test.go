package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *ServerConfig {
	return &ServerConfig{
		StoreBackend:         BackendMemory,
		AuditBackend:         AuditLog,
		UserIDSecret:         "secret",
		MessagingGatewayURL:  "http://sms:8080",
		ChatGatewayURL:       "http://chat:8080",
		LobbyPod:             "lobby",
		RegionSelectionLimit: 2,
	}
}

// chdir moves into dir for the duration of the test so no config.yaml
// from the working tree is picked up.
func chdir(t *testing.T, dir string) {
	t.Helper()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
}

func TestLoadConfig_Defaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, BackendMemory, cfg.StoreBackend)
	assert.Equal(t, AuditLog, cfg.AuditBackend)
	assert.Equal(t, "lobby", cfg.LobbyPod)
	assert.Equal(t, "agree", cfg.DisclaimerToken)
	assert.Equal(t, 24*time.Hour, cfg.WelcomeBackAfter)
	assert.Equal(t, time.Hour, cfg.DedupTTL)
	assert.Equal(t, 2, cfg.RegionSelectionLimit)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("STORE_BACKEND", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("WELCOME_BACK_AFTER", "36h")
	t.Setenv("REGION_SELECTION_LIMIT", "3")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, BackendRedis, cfg.StoreBackend)
	assert.Equal(t, "redis:6379", cfg.RedisAddr)
	assert.Equal(t, 36*time.Hour, cfg.WelcomeBackAfter)
	assert.Equal(t, 3, cfg.RegionSelectionLimit)
}

func TestLoadConfig_File(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(
		"LOBBY_POD: front-desk\nDEMO_NUMBERS: \"+15550009\"\n"), 0o600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "front-desk", cfg.LobbyPod)
	assert.Equal(t, []string{"+15550009"}, ParseList(cfg.DemoNumbers))
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	tests := []struct {
		name   string
		mutate func(c *ServerConfig)
		want   string
	}{
		{"unknown backend", func(c *ServerConfig) { c.StoreBackend = "etcd" }, "STORE_BACKEND"},
		{"redis without addr", func(c *ServerConfig) { c.StoreBackend = BackendRedis }, "REDIS_ADDR"},
		{"mongo audit without uri", func(c *ServerConfig) { c.AuditBackend = AuditMongo }, "MONGO_URI"},
		{"missing secret", func(c *ServerConfig) { c.UserIDSecret = "" }, "USER_ID_SECRET"},
		{"long secret", func(c *ServerConfig) { c.UserIDSecret = string(make([]byte, 65)) }, "at most 64"},
		{"missing gateway", func(c *ServerConfig) { c.ChatGatewayURL = "" }, "CHAT_GATEWAY_URL"},
		{"bad pairs", func(c *ServerConfig) { c.PushNumberRegions = "+15550002" }, "PUSH_NUMBER_REGIONS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(c)
			err := c.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParsePairs(t *testing.T) {
	got, err := ParsePairs(" +15550002=North Carolina, +15550003= ,")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"+15550002": "North Carolina", "+15550003": ""}, got)

	_, err = ParsePairs("=Ohio")
	assert.Error(t, err)
}
