// config.go - Client configuration management

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"

	"index-coordinator/internal/errs"
)

// CoordinatorConfig drives staleness detection and worker dispatch.
type CoordinatorConfig struct {
	UpdatePeriodSeconds  int `json:"updatePeriodSeconds" toml:"updatePeriodSeconds"`
	MaxConcurrentWorkers int `json:"maxConcurrentWorkers" toml:"maxConcurrentWorkers"`
	WaitQuickMillis      int `json:"waitQuickMillis" toml:"waitQuickMillis"`
	WaitSlowMillis       int `json:"waitSlowMillis" toml:"waitSlowMillis"`
}

func (c CoordinatorConfig) UpdatePeriod() time.Duration {
	return time.Duration(c.UpdatePeriodSeconds) * time.Second
}

func (c CoordinatorConfig) WaitQuick() time.Duration {
	return time.Duration(c.WaitQuickMillis) * time.Millisecond
}

func (c CoordinatorConfig) WaitSlow() time.Duration {
	return time.Duration(c.WaitSlowMillis) * time.Millisecond
}

// Validate rejects values the coordinator cannot run with.
func (c CoordinatorConfig) Validate() error {
	if c.UpdatePeriodSeconds <= 0 {
		return fmt.Errorf("%w: updatePeriodSeconds must be positive, got %d", errs.ErrInvalidConfig, c.UpdatePeriodSeconds)
	}
	if c.MaxConcurrentWorkers <= 0 {
		return fmt.Errorf("%w: maxConcurrentWorkers must be positive, got %d", errs.ErrInvalidConfig, c.MaxConcurrentWorkers)
	}
	if c.WaitQuickMillis <= 0 || c.WaitSlowMillis <= 0 {
		return fmt.Errorf("%w: wait intervals must be positive", errs.ErrInvalidConfig)
	}
	if c.WaitQuickMillis > c.WaitSlowMillis {
		return fmt.Errorf("%w: waitQuickMillis %d exceeds waitSlowMillis %d", errs.ErrInvalidConfig,
			c.WaitQuickMillis, c.WaitSlowMillis)
	}
	return nil
}

// ConfigSource describes the remote system project records are fetched from.
type ConfigSource struct {
	BaseURL           string  `json:"baseUrl" toml:"baseUrl"`
	Token             string  `json:"token" toml:"token"`
	PageSize          int     `json:"pageSize" toml:"pageSize"`
	TimeoutSeconds    int     `json:"timeoutSeconds" toml:"timeoutSeconds"`
	RequestsPerSecond float64 `json:"requestsPerSecond" toml:"requestsPerSecond"`
	// SyncProjects registers projects discovered on the remote system
	SyncProjects        bool `json:"syncProjects" toml:"syncProjects"`
	SyncIntervalSeconds int  `json:"syncIntervalSeconds" toml:"syncIntervalSeconds"`
}

// Validate rejects a sync schedule that cannot drive a ticker.
func (c ConfigSource) Validate() error {
	if c.SyncProjects && c.SyncIntervalSeconds <= 0 {
		return fmt.Errorf("%w: syncIntervalSeconds must be positive when syncProjects is on, got %d",
			errs.ErrInvalidConfig, c.SyncIntervalSeconds)
	}
	return nil
}

func (c ConfigSource) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// ConfigServer admin HTTP server settings
type ConfigServer struct {
	Address            string `json:"address" toml:"address"`
	RateLimitPerSecond int    `json:"rateLimitPerSecond" toml:"rateLimitPerSecond"`
}

// ConfigStorage selects where per-project timestamps are persisted
type ConfigStorage struct {
	// PropertyBackend is "sqlite" or "leveldb"
	PropertyBackend string `json:"propertyBackend" toml:"propertyBackend"`
}

const (
	PropertyBackendSQLite  = "sqlite"
	PropertyBackendLevelDB = "leveldb"
)

type ConfigMetrics struct {
	Enabled bool `json:"enabled" toml:"enabled"`
}

// Pprof configuration
type ConfigPprof struct {
	Enabled bool   `json:"enabled" toml:"enabled"`
	Address string `json:"address" toml:"address"`
}

// Client configuration file structure
type ClientConfig struct {
	Coordinator CoordinatorConfig `json:"coordinator" toml:"coordinator"`
	Source      ConfigSource      `json:"source" toml:"source"`
	Server      ConfigServer      `json:"server" toml:"server"`
	Storage     ConfigStorage     `json:"storage" toml:"storage"`
	Metrics     ConfigMetrics     `json:"metrics" toml:"metrics"`
	Pprof       ConfigPprof       `json:"pprof" toml:"pprof"`
}

var DefaultConfigCoordinator = CoordinatorConfig{
	UpdatePeriodSeconds:  5 * 60, // refresh each project at most every 5 minutes
	MaxConcurrentWorkers: 2,
	WaitQuickMillis:      1000,
	WaitSlowMillis:       30 * 1000,
}

var DefaultConfigSource = ConfigSource{
	BaseURL:             "http://localhost:8080",
	PageSize:            50,
	TimeoutSeconds:      60,
	RequestsPerSecond:   10,
	SyncProjects:        false,
	SyncIntervalSeconds: 10 * 60,
}

var DefaultConfigServer = ConfigServer{
	Address:            "localhost:11390",
	RateLimitPerSecond: 100,
}

var DefaultConfigStorage = ConfigStorage{
	PropertyBackend: PropertyBackendSQLite,
}

var DefaultConfigMetrics = ConfigMetrics{
	Enabled: true,
}

// Default pprof configuration
var DefaultConfigPprof = ConfigPprof{
	Enabled: false,
	Address: "localhost:6060",
}

// Default client configuration
var DefaultClientConfig = ClientConfig{
	Coordinator: DefaultConfigCoordinator,
	Source:      DefaultConfigSource,
	Server:      DefaultConfigServer,
	Storage:     DefaultConfigStorage,
	Metrics:     DefaultConfigMetrics,
	Pprof:       DefaultConfigPprof,
}

var (
	clientConfig = DefaultClientConfig
	configMutex  sync.RWMutex
)

// GetClientConfig returns the current client configuration
func GetClientConfig() ClientConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return clientConfig
}

// SetClientConfig replaces the client configuration
func SetClientConfig(config ClientConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	clientConfig = config
}

// AppInfo holds application metadata
type AppInfo struct {
	AppName  string `json:"appName"`
	Version  string `json:"version"`
	OSName   string `json:"osName"`
	ArchName string `json:"archName"`
}

var appInfo AppInfo

func GetAppInfo() AppInfo {
	return appInfo
}

func SetAppInfo(info AppInfo) {
	appInfo = info
}

// LoadConfigFile reads a JSON or TOML config file on top of the defaults.
// The format is chosen by file extension.
func LoadConfigFile(path string) (ClientConfig, error) {
	cfg := DefaultClientConfig

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse toml config %s: %w", path, err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse json config %s: %w", path, err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config file extension: %s", filepath.Ext(path))
	}

	return cfg, nil
}

// ApplyEnvOverrides overrides selected settings from the environment.
func ApplyEnvOverrides(cfg ClientConfig) ClientConfig {
	if env, ok := os.LookupEnv("COORDINATOR_UPDATE_PERIOD_SECONDS"); ok {
		if val, err := strconv.Atoi(env); err == nil && val > 0 {
			cfg.Coordinator.UpdatePeriodSeconds = val
		}
	}
	if env, ok := os.LookupEnv("COORDINATOR_MAX_WORKERS"); ok {
		if val, err := strconv.Atoi(env); err == nil && val > 0 {
			cfg.Coordinator.MaxConcurrentWorkers = val
		}
	}
	if env, ok := os.LookupEnv("SOURCE_BASE_URL"); ok && env != "" {
		cfg.Source.BaseURL = env
	}
	if env, ok := os.LookupEnv("SOURCE_TOKEN"); ok && env != "" {
		cfg.Source.Token = env
	}
	if env, ok := os.LookupEnv("PROPERTY_BACKEND"); ok && env != "" {
		cfg.Storage.PropertyBackend = strings.ToLower(env)
	}
	return cfg
}
