package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-for-development-only-0000"

func freePort(t *testing.T) int {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return port
}

func writeConfig(t *testing.T, port int) string {
	t.Helper()
	dir := t.TempDir()
	content := fmt.Sprintf(`
database:
  path: %q
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: %d
logging:
  level: error
  format: text
security:
  jwt:
    secret: %q
  admin:
    username: hadmin
    password: admin-password
images:
  backend: filesystem
  dir: %q
`, filepath.Join(dir, "area.db"), port, testJWTSecret, filepath.Join(dir, "images"))

	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("AREACORE_CONFIG", "")
	assert.Equal(t, defaultConfigPath, getConfigPath())

	t.Setenv("AREACORE_CONFIG", "/etc/areacore.yaml")
	assert.Equal(t, "/etc/areacore.yaml", getConfigPath())
}

func TestLoadConfig(t *testing.T) {
	t.Run("explicit file missing", func(t *testing.T) {
		_, err := loadConfig("/nonexistent/config.yaml")
		assert.Error(t, err)
	})

	t.Run("default file missing falls back", func(t *testing.T) {
		t.Setenv("AREACORE_JWT_SECRET", testJWTSecret)
		cfg, err := loadConfig(defaultConfigPath)
		require.NoError(t, err)
		assert.Equal(t, testJWTSecret, cfg.Security.JWT.Secret)
	})

	t.Run("default without secret is invalid", func(t *testing.T) {
		t.Setenv("AREACORE_JWT_SECRET", "")
		_, err := loadConfig(defaultConfigPath)
		assert.Error(t, err)
	})
}

func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("AREACORE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	assert.Error(t, run(ctx))
}

func TestRun_ServesUntilCancelled(t *testing.T) {
	port := freePort(t)
	t.Setenv("AREACORE_CONFIG", writeConfig(t, port))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	url := fmt.Sprintf("http://127.0.0.1:%d/api/v1/health", port)
	require.Eventually(t, func() bool {
		resp, err := http.Get(url) //nolint:noctx // test request
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 10*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
