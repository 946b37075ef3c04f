package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ritual.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestDefaultsAreValid(t *testing.T) {
	cfg, err := LoadWithEnv("", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, DriverFile, cfg.Storage.Driver)
	assert.Equal(t, filepath.Join(os.TempDir(), "db.json"), cfg.Storage.Path)
	assert.False(t, cfg.Storage.RecoverEmpty)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "127.0.0.1:8080", cfg.HTTP.Addr)
}

func TestYAMLOverridesDefaults(t *testing.T) {
	path := writeYAML(t, `
storage:
  driver: badger
  badger:
    path: /var/lib/ritual
    gc_interval: 30s
log:
  level: debug
`)
	cfg, err := LoadWithEnv(path, map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, DriverBadger, cfg.Storage.Driver)
	assert.Equal(t, "/var/lib/ritual", cfg.Storage.Badger.Path)
	assert.Equal(t, 30*time.Second, cfg.Storage.Badger.GCInterval)
	assert.Equal(t, 0.5, cfg.Storage.Badger.GCDiscardRatio, "unset keys keep defaults")
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeYAML(t, `
storage:
  driver: sqlite
  sqlite:
    path: from-yaml.db
`)
	cfg, err := LoadWithEnv(path, map[string]string{
		"RITUAL_STORAGE_SQLITE_PATH":   "from-env.db",
		"RITUAL_STORAGE_RECOVER_EMPTY": "true",
		"RITUAL_HTTP_ADDR":             ":9090",
	})
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "from-env.db", cfg.Storage.SQLite.Path)
	assert.True(t, cfg.Storage.RecoverEmpty)
	assert.Equal(t, ":9090", cfg.HTTP.Addr)
}

func TestBlobS3FromEnv(t *testing.T) {
	cfg, err := LoadWithEnv("", map[string]string{
		"RITUAL_STORAGE_DRIVER":                "blob",
		"RITUAL_STORAGE_BLOB_DRIVER":           "s3",
		"RITUAL_STORAGE_BLOB_S3_BUCKET":        "habits",
		"RITUAL_STORAGE_BLOB_S3_ENDPOINT":      "http://localhost:9000",
		"RITUAL_STORAGE_BLOB_S3_PATH_STYLE":    "true",
		"RITUAL_STORAGE_BLOB_S3_ACCESS_KEY_ID": "minio",
	})
	require.NoError(t, err)
	assert.Equal(t, "habits", cfg.Storage.Blob.S3.Bucket)
	assert.True(t, cfg.Storage.Blob.S3.PathStyle)
	assert.Equal(t, "minio", cfg.Storage.Blob.S3.AccessKeyID)
	assert.Equal(t, "ritual/state.json", cfg.Storage.Blob.Key)
}

func TestValidationFailures(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		environ map[string]string
	}{
		{name: "unknown driver", environ: map[string]string{"RITUAL_STORAGE_DRIVER": "mongo"}},
		{name: "unknown blob driver", environ: map[string]string{"RITUAL_STORAGE_BLOB_DRIVER": "gcs"}},
		{name: "s3 without bucket", environ: map[string]string{"RITUAL_STORAGE_DRIVER": "blob", "RITUAL_STORAGE_BLOB_DRIVER": "s3"}},
		{name: "postgres without dsn", yaml: "storage:\n  driver: postgres\n  postgres:\n    dsn: \"\"\n"},
		{name: "badger without path", yaml: "storage:\n  driver: badger\n  badger:\n    path: \"\"\n"},
		{name: "empty file path", yaml: "storage:\n  path: \"\"\n"},
		{name: "bad log level", environ: map[string]string{"RITUAL_LOG_LEVEL": "trace"}},
		{name: "bad discard ratio", environ: map[string]string{"RITUAL_STORAGE_BADGER_GC_DISCARD_RATIO": "1.5"}},
		{name: "bad endpoint", environ: map[string]string{"RITUAL_STORAGE_BLOB_S3_ENDPOINT": "not a url"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := ""
			if tc.yaml != "" {
				path = writeYAML(t, tc.yaml)
			}
			environ := tc.environ
			if environ == nil {
				environ = map[string]string{}
			}
			_, err := LoadWithEnv(path, environ)
			require.Error(t, err)
			assert.Contains(t, err.Error(), "invalid config")
		})
	}
}

func TestBadgerInMemoryNeedsNoPath(t *testing.T) {
	path := writeYAML(t, "storage:\n  driver: badger\n  badger:\n    path: \"\"\n    in_memory: true\n")
	cfg, err := LoadWithEnv(path, map[string]string{})
	require.NoError(t, err)
	assert.True(t, cfg.Storage.Badger.InMemory)
}

func TestMalformedInputs(t *testing.T) {
	_, err := LoadWithEnv(filepath.Join(t.TempDir(), "missing.yaml"), map[string]string{})
	require.Error(t, err)

	path := writeYAML(t, "storage:\n  unknown_key: 1\n")
	_, err = LoadWithEnv(path, map[string]string{})
	require.Error(t, err)

	_, err = LoadWithEnv("", map[string]string{"RITUAL_STORAGE_RECOVER_EMPTY": "maybe"})
	require.Error(t, err)
}

func TestEmptyYAMLKeepsDefaults(t *testing.T) {
	cfg, err := LoadWithEnv(writeYAML(t, ""), map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
