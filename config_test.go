package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr string
	}{
		{name: "defaults", modify: func(c *Config) {}},
		{name: "cert without key", modify: func(c *Config) { c.tlsCert = "cert.pem" }, wantErr: "--tls-key"},
		{name: "port too high", modify: func(c *Config) { c.port = 70000 }, wantErr: "invalid port"},
		{name: "zero upload", modify: func(c *Config) { c.maxUpload = 0 }, wantErr: "upload limit"},
		{name: "nested bucket", modify: func(c *Config) { c.bucket = "a/b" }, wantErr: "bucket"},
		{name: "empty db", modify: func(c *Config) { c.db = "" }, wantErr: "--db"},
		{name: "redis without instance", modify: func(c *Config) {
			c.redisAddr = "localhost:6379"
			c.instance = ""
		}, wantErr: "--instance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.db = "bingo.db"
			tt.modify(cfg)

			err := cfg.validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigScheme(t *testing.T) {
	cfg := testConfig()
	assert.Equal(t, "http", cfg.scheme())

	cfg.tlsCert, cfg.tlsKey = "cert.pem", "key.pem"
	assert.Equal(t, "https", cfg.scheme())
}

func TestNewCmdReadsEnvironment(t *testing.T) {
	t.Setenv("BINGO_PORT", "9090")
	t.Setenv("BINGO_MAX_UPLOAD", "2048")
	t.Setenv("BINGO_BUCKET", "wedding")

	cfg := &Config{}
	cmd := newCmd(cfg)
	require.NoError(t, cmd.ParseFlags(nil))

	assert.Equal(t, 9090, cfg.port)
	assert.EqualValues(t, 2048, cfg.maxUpload)
	assert.Equal(t, "wedding", cfg.bucket)
	assert.Equal(t, "data/bingo.db", cfg.db)
	assert.NoError(t, cfg.validate())
}
