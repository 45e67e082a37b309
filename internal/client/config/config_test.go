package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	var c Config
	c.LoadDefaults()

	assert.Equal(t, "lotkeeper.db", c.LocalStorePath)
	assert.Equal(t, "photos", c.S3Bucket)
	assert.Equal(t, 3*time.Second, c.OnlineCheckInterval)
	assert.Equal(t, 5*time.Minute, c.SyncInterval)
	assert.Equal(t, 4, c.Workers)
	assert.False(t, c.Demo)
}

func TestLoadConfig_UsesDefaultsBeforeParsing(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })
	os.Args = []string{"lotkeeper"}

	cfg := LoadConfig()

	require.NotNil(t, cfg, "LoadConfig must not return nil")
	assert.Equal(t, "lotkeeper.db", cfg.LocalStorePath)
	assert.Equal(t, 5*time.Minute, cfg.SyncInterval)
}

func TestLoadConfig_FlagsOverrideJSON(t *testing.T) {
	origArgs := os.Args
	t.Cleanup(func() { os.Args = origArgs })

	path := writeTempJSON(t, "", "", map[string]any{
		"local_store_path": "from-json.db",
		"company_id":       "c-json",
	})
	os.Args = []string{"lotkeeper", "-c", path, "-company", "c-flag", "-demo"}

	cfg := LoadConfig()

	assert.Equal(t, "from-json.db", cfg.LocalStorePath)
	assert.Equal(t, "c-flag", cfg.CompanyID)
	assert.True(t, cfg.Demo)
}
