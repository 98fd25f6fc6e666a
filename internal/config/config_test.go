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
	t.Setenv("DATA_DIR", "/tmp/catalog")
	t.Setenv("DELAY_BASE", "")
	t.Setenv("BACKUP_DIR", "")

	cfg := Load()

	assert.Equal(t, "/tmp/catalog", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/catalog", "backups"), cfg.BackupDir)
	assert.Equal(t, 2*time.Second, cfg.DelayBase)
}

func TestGetenvDuration(t *testing.T) {
	t.Setenv("X_DUR", "1500")
	assert.Equal(t, 1500*time.Millisecond, getenvDuration("X_DUR", time.Second))

	t.Setenv("X_DUR", "3s")
	assert.Equal(t, 3*time.Second, getenvDuration("X_DUR", time.Second))

	t.Setenv("X_DUR", "soon")
	assert.Equal(t, time.Second, getenvDuration("X_DUR", time.Second))
}

func TestRequireRedis(t *testing.T) {
	assert.Error(t, Config{}.RequireRedis())
	assert.NoError(t, Config{RedisAddr: "127.0.0.1:6379"}.RequireRedis())
}

func TestDefaultCatalog(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	oils, ok := c.Category("single-oils")
	require.True(t, ok)
	assert.True(t, oils.Rendered())

	acc, ok := c.Category("accessories")
	require.True(t, ok)
	assert.False(t, acc.Rendered())

	assert.Equal(t, "https://www.doterra.com/TW/zh_TW/pl/single-oils?page=2&sort=name-asc", c.ListingURL(oils, 2))
}

func TestCatalogFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
base_url: https://shop.example.com/
categories:
  - id: wellness
    path: pl/wellness
`), 0o644))

	c, err := LoadCatalog(path)
	require.NoError(t, err)
	assert.Equal(t, "/p/", c.DetailPattern)

	w, _ := c.Category("wellness")
	assert.Equal(t, "https://shop.example.com/pl/wellness?page=0", c.ListingURL(w, 0))
}

func TestCatalogRejectsDuplicates(t *testing.T) {
	_, err := ParseCatalog([]byte(`
base_url: https://shop.example.com
categories:
  - {id: wellness, path: /a}
  - {id: wellness, path: /b}
`))
	assert.ErrorContains(t, err, "duplicate category")
}
