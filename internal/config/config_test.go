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
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, ":3000", cfg.Server.Address)
	assert.Equal(t, 30*time.Second, cfg.Server.ShutdownTimeout)
	assert.Nil(t, cfg.Proxy.TargetURL, "proxy branch is disabled without a target")
	assert.False(t, cfg.IdentityEnabled())
	assert.Equal(t, "sb-auth-token", cfg.Identity.CookieName)
	assert.Equal(t, "rest", cfg.Store.Driver)
	assert.Equal(t, "th", cfg.Locale.Default)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("FITTRACK_PROXY_TARGET_URL", "https://api.example.com/gateway/")
	t.Setenv("FITTRACK_IDENTITY_URL", "https://project.example.co/")
	t.Setenv("FITTRACK_IDENTITY_ANON_KEY", "anon")
	t.Setenv("FITTRACK_IDENTITY_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)

	require.NotNil(t, cfg.Proxy.TargetURL)
	assert.Equal(t, "/gateway/", cfg.Proxy.TargetURL.Path)
	assert.Equal(t, "https://project.example.co", cfg.Identity.URL)
	assert.True(t, cfg.IdentityEnabled())
	assert.Equal(t, 3*time.Second, cfg.Identity.Timeout)
}

func TestLoadAllowedOrigins(t *testing.T) {
	tests := []struct {
		name string
		env  string
		want []string
	}{
		{"comma separated", "https://a.example,https://b.example", []string{"https://a.example", "https://b.example"}},
		{"space separated", "https://a.example https://b.example", []string{"https://a.example", "https://b.example"}},
		{"mixed with blanks", " https://a.example, ,https://b.example ", []string{"https://a.example", "https://b.example"}},
		{"single", "https://a.example", []string{"https://a.example"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FITTRACK_CORS_ALLOWED_ORIGINS", tt.env)
			cfg, err := Load("")
			require.NoError(t, err)
			assert.Equal(t, tt.want, cfg.CORS.AllowedOrigins)
		})
	}
}

func TestLoadAllowedOriginsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fittrack.yaml")
	body := "CORS_ALLOWED_ORIGINS:\n  - https://a.example\n  - https://b.example\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORS.AllowedOrigins)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fittrack.yaml")
	require.NoError(t, os.WriteFile(path, []byte("SERVER_ADDR: \":8080\"\nLOCALE_DEFAULT: en\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, "en", cfg.Locale.Default)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"relative proxy target", map[string]string{"FITTRACK_PROXY_TARGET_URL": "/relative"}},
		{"bad duration", map[string]string{"FITTRACK_SHUTDOWN_TIMEOUT": "soon"}},
		{"unknown driver", map[string]string{"FITTRACK_STORE_DRIVER": "mongo"}},
		{"postgres without dsn", map[string]string{"FITTRACK_STORE_DRIVER": "postgres"}},
		{"tls without cert", map[string]string{"FITTRACK_TLS_ENABLED": "true"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load("")
			assert.Error(t, err)
		})
	}
}
