package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "shelfscan-bot/0.1", cfg.Crawler.UserAgent)
	require.Equal(t, 10, cfg.Crawler.MaxScrollAttempts)
	require.Equal(t, 10, cfg.Crawler.MaxImagesPerItem)
	require.Equal(t, 2, cfg.OCR.Workers)
	require.Equal(t, 4.0, cfg.Crawler.FetchRPS)
	require.Equal(t, "memory", cfg.Storage.Provider)
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	body := []byte(`
server:
  port: 9090
crawler:
  user_agent: test-bot/1.0
  request_delay_ms: 50
storage:
  provider: local
  local_dir: /tmp/shelfscan
`)
	require.NoError(t, os.WriteFile(path, body, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "test-bot/1.0", cfg.Crawler.UserAgent)
	require.Equal(t, "local", cfg.Storage.Provider)

	jc := cfg.JobConfig()
	require.Equal(t, 50*time.Millisecond, jc.RequestDelay)
	require.Equal(t, 30*time.Second, jc.NavTimeout)
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	bad := cfg
	bad.Crawler.UserAgent = ""
	require.Error(t, bad.Validate())

	bad = cfg
	bad.OCR.Workers = 0
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Storage.Provider = "gcs"
	bad.Storage.GCSBucket = ""
	require.Error(t, bad.Validate())

	bad = cfg
	bad.Storage.Provider = "s3"
	require.Error(t, bad.Validate())
}
