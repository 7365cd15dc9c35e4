package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  host: localhost
  name: faceworker
  user: fw
  password: secret
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 5432, cfg.Database.Port)
	assert.Equal(t, 20, cfg.Database.MaxConns)
	assert.Equal(t, 0.3, cfg.Vision.DetectionThreshold)
	assert.Equal(t, "face_embeddings", cfg.Digest.DefaultCollection)
	assert.Equal(t, 4, cfg.Digest.Threads)
	assert.Equal(t, 0.5, cfg.Digest.Confidence)
	assert.Equal(t, 2, cfg.Digest.MaxRetries)
	assert.Equal(t, 1000, cfg.Digest.ThumbnailMaxPx)
	assert.Equal(t, 0.8, cfg.Cluster.Confidence)
	assert.Equal(t, 100, cfg.Cluster.PageSize)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestLoadExplicitValues(t *testing.T) {
	path := writeConfig(t, `
server:
  port: 9999
digest:
  threads: 8
  confidence: 0.7
cluster:
  confidence: 0.95
logging:
  level: debug
  format: text
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 8, cfg.Digest.Threads)
	assert.Equal(t, 0.7, cfg.Digest.Confidence)
	assert.Equal(t, 0.95, cfg.Cluster.Confidence)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestLoadEnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  host: filehost
  user: fileuser
`)

	t.Setenv("FW_DB_HOST", "envhost")
	t.Setenv("FW_SERVER_PORT", "7070")
	t.Setenv("FW_DIGEST_THREADS", "16")
	t.Setenv("FW_DEFAULT_COLLECTION", "env_faces")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "envhost", cfg.Database.Host)
	assert.Equal(t, "fileuser", cfg.Database.User)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Digest.Threads)
	assert.Equal(t, "env_faces", cfg.Digest.DefaultCollection)
}

func TestDSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5433, Name: "faces", User: "u", Password: "p"}
	assert.Equal(t, "postgres://u:p@db:5433/faces?sslmode=disable", d.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/does/not/exist.yaml")
	assert.Error(t, err)
}
