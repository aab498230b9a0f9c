package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"index-coordinator/internal/errs"
)

func TestCoordinatorConfigDurations(t *testing.T) {
	c := CoordinatorConfig{UpdatePeriodSeconds: 60, MaxConcurrentWorkers: 2, WaitQuickMillis: 500, WaitSlowMillis: 5000}
	assert.Equal(t, time.Minute, c.UpdatePeriod())
	assert.Equal(t, 500*time.Millisecond, c.WaitQuick())
	assert.Equal(t, 5*time.Second, c.WaitSlow())
	assert.NoError(t, c.Validate())
}

func TestCoordinatorConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  CoordinatorConfig
	}{
		{"zero period", CoordinatorConfig{0, 2, 1, 2}},
		{"zero workers", CoordinatorConfig{60, 0, 1, 2}},
		{"negative workers", CoordinatorConfig{60, -1, 1, 2}},
		{"zero wait", CoordinatorConfig{60, 2, 0, 2}},
		{"quick above slow", CoordinatorConfig{60, 2, 10, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, tt.cfg.Validate(), errs.ErrInvalidConfig)
		})
	}
	assert.NoError(t, DefaultConfigCoordinator.Validate())
}

func TestConfigSourceValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     ConfigSource
		wantErr bool
	}{
		{"sync off ignores interval", ConfigSource{SyncProjects: false, SyncIntervalSeconds: 0}, false},
		{"sync on zero interval", ConfigSource{SyncProjects: true, SyncIntervalSeconds: 0}, true},
		{"sync on negative interval", ConfigSource{SyncProjects: true, SyncIntervalSeconds: -5}, true},
		{"sync on positive interval", ConfigSource{SyncProjects: true, SyncIntervalSeconds: 300}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, errs.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
	assert.NoError(t, DefaultClientConfig.Source.Validate())
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()

	t.Run("json", func(t *testing.T) {
		path := filepath.Join(dir, "config.json")
		content := `{"coordinator":{"updatePeriodSeconds":120,"maxConcurrentWorkers":4,"waitQuickMillis":100,"waitSlowMillis":1000},
			"source":{"baseUrl":"http://jira.local"}}`
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, 120, cfg.Coordinator.UpdatePeriodSeconds)
		assert.Equal(t, 4, cfg.Coordinator.MaxConcurrentWorkers)
		assert.Equal(t, "http://jira.local", cfg.Source.BaseURL)
		// untouched sections keep defaults
		assert.Equal(t, DefaultConfigServer, cfg.Server)
	})

	t.Run("toml", func(t *testing.T) {
		path := filepath.Join(dir, "config.toml")
		content := "[coordinator]\nupdatePeriodSeconds = 30\nmaxConcurrentWorkers = 3\nwaitQuickMillis = 200\nwaitSlowMillis = 2000\n"
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))

		cfg, err := LoadConfigFile(path)
		require.NoError(t, err)
		assert.Equal(t, 30, cfg.Coordinator.UpdatePeriodSeconds)
		assert.Equal(t, 3, cfg.Coordinator.MaxConcurrentWorkers)
		assert.Equal(t, DefaultConfigSource.PageSize, cfg.Source.PageSize)
		assert.Equal(t, PropertyBackendSQLite, cfg.Storage.PropertyBackend)
	})

	t.Run("unsupported extension", func(t *testing.T) {
		path := filepath.Join(dir, "config.ini")
		require.NoError(t, os.WriteFile(path, []byte("x=1"), 0644))
		_, err := LoadConfigFile(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfigFile(filepath.Join(dir, "nope.json"))
		assert.Error(t, err)
	})
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Setenv("COORDINATOR_UPDATE_PERIOD_SECONDS", "90")
	t.Setenv("COORDINATOR_MAX_WORKERS", "not-a-number")
	t.Setenv("SOURCE_TOKEN", "secret")
	t.Setenv("PROPERTY_BACKEND", "LevelDB")

	cfg := ApplyEnvOverrides(DefaultClientConfig)
	assert.Equal(t, 90, cfg.Coordinator.UpdatePeriodSeconds)
	assert.Equal(t, DefaultConfigCoordinator.MaxConcurrentWorkers, cfg.Coordinator.MaxConcurrentWorkers)
	assert.Equal(t, "secret", cfg.Source.Token)
	assert.Equal(t, DefaultConfigSource.BaseURL, cfg.Source.BaseURL)
	assert.Equal(t, PropertyBackendLevelDB, cfg.Storage.PropertyBackend)
}

func TestGetSetClientConfig(t *testing.T) {
	original := GetClientConfig()
	defer SetClientConfig(original)

	cfg := DefaultClientConfig
	cfg.Pprof.Enabled = true
	SetClientConfig(cfg)
	assert.True(t, GetClientConfig().Pprof.Enabled)
}
