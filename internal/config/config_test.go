package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	v := New()
	v.Set("token.secret", "thisismysecret")

	cfg, err := Load(v, "")
	require.NoError(t, err)

	assert.Equal(t, "4000", cfg.Server.Port)
	assert.Equal(t, 240*time.Second, cfg.Server.ResponseTimeout)
	assert.Equal(t, 36000*time.Second, cfg.Token.TTL)
	assert.Equal(t, "example.com", cfg.Crypto.Domain)
	assert.Equal(t, "User1", cfg.Crypto.DefaultUser)
	assert.Equal(t, "filesystem", cfg.Wallet.Backend)
	assert.Equal(t, "./artifacts", cfg.Network.GoPath)
	assert.Equal(t, int64(40_000_000), cfg.Metadata.MaxPixels)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("GATEWAY_TOKEN_SECRET", "from-env")
	t.Setenv("GATEWAY_WALLET_BACKEND", "leveldb")

	cfg, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, "from-env", cfg.Token.Secret)
	assert.Equal(t, "leveldb", cfg.Wallet.Backend)
}

func TestLoadFromFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "gateway.yaml")
	content := `
token:
  secret: file-secret
  ttl: 1h
network:
  profile: /etc/gateway/network-config.yaml
`
	require.NoError(t, os.WriteFile(file, []byte(content), 0600))

	cfg, err := Load(New(), file)
	require.NoError(t, err)

	assert.Equal(t, "file-secret", cfg.Token.Secret)
	assert.Equal(t, time.Hour, cfg.Token.TTL)
	assert.Equal(t, "/etc/gateway/network-config.yaml", cfg.Network.Profile)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(v map[string]any)
		wantErr bool
	}{
		{"valid", func(map[string]any) {}, false},
		{"missing secret", func(m map[string]any) { m["token.secret"] = "" }, true},
		{"zero ttl", func(m map[string]any) { m["token.ttl"] = 0 }, true},
		{"unknown backend", func(m map[string]any) { m["wallet.backend"] = "hsm" }, true},
		{"sqlite backend", func(m map[string]any) { m["wallet.backend"] = "sqlite" }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			overrides := map[string]any{"token.secret": "s3cret"}
			tt.mutate(overrides)

			v := New()
			for k, val := range overrides {
				v.Set(k, val)
			}

			_, err := Load(v, "")
			if (err != nil) != tt.wantErr {
				t.Errorf("Load() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
