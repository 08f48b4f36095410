package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadWithFileOverrides(t *testing.T) {
	path := writeConfig(t, `
site:
  base_url: https://news.example
  user_agent: test-bot
  cities_csv: testdata/cities.csv
  hints_csv: testdata/hints.csv
http:
  timeout_seconds: 20
crawl:
  page_delay_ms: 250
  start: "2024-03-01"
  end: "2024-03-02"
db:
  dsn: postgres://crawler@db/faits
  table: faits_divers_test
  batch_size: 50
server:
  enabled: true
  port: 9090
archive:
  backend: local
  local_dir: /tmp/pages
pubsub:
  project_id: proj
  topic_name: batches
logging:
  development: false
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://news.example", cfg.Site.BaseURL)
	require.Equal(t, "test-bot", cfg.Site.UserAgent)
	require.Equal(t, 20*time.Second, cfg.Timeout())
	require.Equal(t, 250*time.Millisecond, cfg.PageDelay())
	require.Equal(t, "2024-03-01", cfg.Crawl.Start)
	require.Equal(t, "postgres://crawler@db/faits", cfg.DB.DSN)
	require.Equal(t, "faits_divers_test", cfg.DB.Table)
	require.Equal(t, 50, cfg.DB.BatchSize)
	require.True(t, cfg.Server.Enabled)
	require.Equal(t, 9090, cfg.Server.Port)
	require.Equal(t, "local", cfg.Archive.Backend)
	require.Equal(t, "batches", cfg.PubSub.TopicName)
	require.False(t, cfg.Logging.Development)
}

func TestLoadDefaults(t *testing.T) {
	path := writeConfig(t, `
db:
  dsn: postgres://crawler@db/faits
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://www.fdesouche.com", cfg.Site.BaseURL)
	require.Equal(t, 10*time.Second, cfg.Timeout())
	require.Equal(t, 500*time.Millisecond, cfg.PageDelay())
	require.Equal(t, "faits_divers", cfg.DB.Table)
	require.Equal(t, 1000, cfg.DB.BatchSize)
	require.False(t, cfg.Server.Enabled)
	require.Equal(t, "off", cfg.Archive.Backend)
	require.True(t, cfg.Logging.Development)
}

func TestLoadRequiresDSN(t *testing.T) {
	path := writeConfig(t, `
site:
  base_url: https://news.example
`)

	_, err := Load(path)
	require.Error(t, err)
	require.Contains(t, err.Error(), "db.dsn")
}

func TestLoadDSNFromEnv(t *testing.T) {
	t.Setenv("FDC_DB_DSN", "postgres://env@db/faits")

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, "postgres://env@db/faits", cfg.DB.DSN)
}

func TestValidateArchiveBackends(t *testing.T) {
	t.Parallel()

	base := Config{
		Site:  SiteConfig{BaseURL: "https://news.example"},
		HTTP:  HTTPConfig{TimeoutSeconds: 10},
		DB:    DBConfig{DSN: "postgres://x", BatchSize: 1000},
		Crawl: CrawlConfig{},
	}

	cfg := base
	cfg.Archive = ArchiveConfig{Backend: "local"}
	require.Error(t, cfg.Validate(), "local backend needs a directory")

	cfg.Archive = ArchiveConfig{Backend: "gcs"}
	require.Error(t, cfg.Validate(), "gcs backend needs a bucket")

	cfg.Archive = ArchiveConfig{Backend: "tape"}
	require.Error(t, cfg.Validate())

	cfg.Archive = ArchiveConfig{Backend: "memory"}
	require.NoError(t, cfg.Validate())
}

func TestValidateDateBounds(t *testing.T) {
	t.Parallel()

	cfg := Config{
		Site:  SiteConfig{BaseURL: "https://news.example"},
		HTTP:  HTTPConfig{TimeoutSeconds: 10},
		DB:    DBConfig{DSN: "postgres://x", BatchSize: 1000},
		Crawl: CrawlConfig{Start: "01/03/2024"},
	}
	cfg.Archive.Backend = "off"
	require.Error(t, cfg.Validate())

	cfg.Crawl.Start = "2024-03-01"
	require.NoError(t, cfg.Validate())
}
