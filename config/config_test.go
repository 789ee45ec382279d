package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":3002", cfg.ListenAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "filesystem", cfg.Storage.Type)
	assert.Equal(t, "./data", cfg.Storage.LocalPath)
	assert.Equal(t, 2*time.Second, cfg.Chat.ReplyDelay)
	assert.Equal(t, 20, cfg.Chat.PageSize)
	assert.Equal(t, 50, cfg.Chat.HistoryBatch)
	assert.Equal(t, 168*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("LISTEN_ADDR", ":8080")
	t.Setenv("STORAGE_TYPE", " SQLite ")
	t.Setenv("DATA_SOURCE_NAME", "/tmp/x.db")
	t.Setenv("REPLY_DELAY", "500ms")
	t.Setenv("PAGE_SIZE", "5")
	t.Setenv("JWT_SECRET", "s3cret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.ListenAddr)
	assert.Equal(t, "sqlite", cfg.Storage.Type)
	assert.Equal(t, "/tmp/x.db", cfg.Storage.DataSourceName)
	assert.Equal(t, 500*time.Millisecond, cfg.Chat.ReplyDelay)
	assert.Equal(t, 5, cfg.Chat.PageSize)
	assert.Equal(t, "s3cret", cfg.Auth.JWTSecret)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		return Config{
			LogLevel: "info",
			Storage:  StorageConfig{Type: "memory"},
			Chat:     ChatConfig{ReplyDelay: time.Second, PageSize: 20, HistoryBatch: 50},
		}
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid", func(c *Config) {}, false},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, true},
		{"unknown storage", func(c *Config) { c.Storage.Type = "tape" }, true},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = "s3" }, true},
		{"s3 with bucket", func(c *Config) { c.Storage.Type = "s3"; c.Storage.S3Bucket = "b" }, false},
		{"valkey", func(c *Config) { c.Storage.Type = "valkey" }, false},
		{"empty storage", func(c *Config) { c.Storage.Type = "  " }, false},
		{"negative delay", func(c *Config) { c.Chat.ReplyDelay = -time.Second }, true},
		{"zero page size", func(c *Config) { c.Chat.PageSize = 0 }, true},
		{"negative history", func(c *Config) { c.Chat.HistoryBatch = -1 }, true},
		{"no history", func(c *Config) { c.Chat.HistoryBatch = 0 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoad_EmptyStorageTypeUsesDefault(t *testing.T) {
	t.Setenv("STORAGE_TYPE", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultStorageType, cfg.Storage.Type)
}
