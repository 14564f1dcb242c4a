package config

import (
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	ServerPort string

	// Provider API configuration (social-automation gateway)
	ProviderBaseURL    string
	ProviderAPIKey     string
	ProviderTimeout    time.Duration
	ProviderTimeoutStr string

	// Dispatch configuration
	DispatchSchedule string
	StatsSchedule    string
	RecoverySchedule string

	// Engagement policy
	DelayFloorMinutes   int
	DelayCeilingMinutes int
	MaxTargetCount      int
	DefaultDailyActions int
	MaxDailyActions     int

	// Submission limits
	SubmissionsPerWindow int
	SubmissionWindow     time.Duration
	SubmissionWindowStr  string

	// Retry policy for transient provider failures
	MaxAttempts     int
	RetryBackoff    time.Duration
	RetryBackoffStr string

	// Executor tuning
	WorkerPoolSize       int
	MaxConcurrentActions int
	StaleClaimAge        time.Duration
	StaleClaimAgeStr     string

	// Database configuration
	DatabaseURL string

	// Redis configuration (optional; enables shared rate-limit counters)
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// HTTP client tuning
	HTTPClientTimeout    time.Duration
	HTTPClientTimeoutStr string
	MaxIdleConns         int
	MaxConnsPerHost      int

	// Logging configuration
	LogDirectory  string
	LogOutputFile string
	LogErrorFile  string

	// Bootstrap pods loaded from config
	BootstrapPods []PodBootstrap
}

// PodBootstrap defines a pod and its members loaded from config
type PodBootstrap struct {
	PodID   string            `yaml:"pod_id"`
	Name    string            `yaml:"name"`
	Members []MemberBootstrap `yaml:"members"`
}

// MemberBootstrap defines a pod member with a linked provider account
type MemberBootstrap struct {
	UserID            string `yaml:"user_id"`
	ProviderAccountID string `yaml:"provider_account_id"`
	Timezone          string `yaml:"timezone"`
	MaxDailyActions   int    `yaml:"max_daily_actions"`
	WorkingHoursStart *int   `yaml:"working_hours_start"`
	WorkingHoursEnd   *int   `yaml:"working_hours_end"`
}

// configFile represents the YAML structure
type configFile struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Provider struct {
		BaseURL string `yaml:"base_url"`
		APIKey  string `yaml:"api_key"`
		Timeout string `yaml:"timeout"`
	} `yaml:"provider"`
	Dispatch struct {
		Schedule         string `yaml:"schedule"`
		StatsSchedule    string `yaml:"stats_schedule"`
		RecoverySchedule string `yaml:"recovery_schedule"`
	} `yaml:"dispatch"`
	Engagement struct {
		DelayFloorMinutes   int `yaml:"delay_floor_minutes"`
		DelayCeilingMinutes int `yaml:"delay_ceiling_minutes"`
		MaxTargetCount      int `yaml:"max_target_count"`
		DefaultDailyActions int `yaml:"default_daily_actions"`
		MaxDailyActions     int `yaml:"max_daily_actions"`
	} `yaml:"engagement"`
	Submission struct {
		PerWindow int    `yaml:"per_window"`
		Window    string `yaml:"window"`
	} `yaml:"submission"`
	Retry struct {
		MaxAttempts int    `yaml:"max_attempts"`
		Backoff     string `yaml:"backoff"`
	} `yaml:"retry"`
	Executor struct {
		WorkerPoolSize       int    `yaml:"worker_pool_size"`
		MaxConcurrentActions int    `yaml:"max_concurrent_actions"`
		StaleClaimAge        string `yaml:"stale_claim_age"`
	} `yaml:"executor"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	HTTP struct {
		ClientTimeout   string `yaml:"client_timeout"`
		MaxIdleConns    int    `yaml:"max_idle_conns"`
		MaxConnsPerHost int    `yaml:"max_conns_per_host"`
	} `yaml:"http"`
	Logging struct {
		Directory  string `yaml:"dir"`
		OutputFile string `yaml:"output_file"`
		ErrorFile  string `yaml:"error_file"`
	} `yaml:"logging"`
	Pods []PodBootstrap `yaml:"pods"`
}

// Manager handles configuration loading
type Manager struct {
	mu         sync.RWMutex
	config     *Config
	configPath string
}

// NewManager creates a new configuration manager
func NewManager(configPath string) *Manager {
	if configPath == "" {
		configPath = "config.yaml"
	}
	return &Manager{
		configPath: configPath,
	}
}

// Load reads configuration from the YAML file
func (m *Manager) Load() (*Config, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := &Config{}
			applyDefaults(cfg)
			m.config = cfg
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(data, &cfgFile); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	cfg := &Config{
		ServerPort:           cfgFile.Server.Port,
		ProviderBaseURL:      cfgFile.Provider.BaseURL,
		ProviderAPIKey:       cfgFile.Provider.APIKey,
		ProviderTimeoutStr:   cfgFile.Provider.Timeout,
		DispatchSchedule:     cfgFile.Dispatch.Schedule,
		StatsSchedule:        cfgFile.Dispatch.StatsSchedule,
		RecoverySchedule:     cfgFile.Dispatch.RecoverySchedule,
		DelayFloorMinutes:    cfgFile.Engagement.DelayFloorMinutes,
		DelayCeilingMinutes:  cfgFile.Engagement.DelayCeilingMinutes,
		MaxTargetCount:       cfgFile.Engagement.MaxTargetCount,
		DefaultDailyActions:  cfgFile.Engagement.DefaultDailyActions,
		MaxDailyActions:      cfgFile.Engagement.MaxDailyActions,
		SubmissionsPerWindow: cfgFile.Submission.PerWindow,
		SubmissionWindowStr:  cfgFile.Submission.Window,
		MaxAttempts:          cfgFile.Retry.MaxAttempts,
		RetryBackoffStr:      cfgFile.Retry.Backoff,
		WorkerPoolSize:       cfgFile.Executor.WorkerPoolSize,
		MaxConcurrentActions: cfgFile.Executor.MaxConcurrentActions,
		StaleClaimAgeStr:     cfgFile.Executor.StaleClaimAge,
		DatabaseURL:          cfgFile.Database.URL,
		RedisAddr:            cfgFile.Redis.Addr,
		RedisPassword:        cfgFile.Redis.Password,
		RedisDB:              cfgFile.Redis.DB,
		HTTPClientTimeoutStr: cfgFile.HTTP.ClientTimeout,
		MaxIdleConns:         cfgFile.HTTP.MaxIdleConns,
		MaxConnsPerHost:      cfgFile.HTTP.MaxConnsPerHost,
		LogDirectory:         cfgFile.Logging.Directory,
		LogOutputFile:        cfgFile.Logging.OutputFile,
		LogErrorFile:         cfgFile.Logging.ErrorFile,
		BootstrapPods:        cfgFile.Pods,
	}

	applyDefaults(cfg)

	m.config = cfg
	return cfg, nil
}

// Get returns the current configuration (thread-safe)
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

func applyDefaults(cfg *Config) {
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.ProviderBaseURL == "" {
		cfg.ProviderBaseURL = "https://api.unipile.com/v1"
	}
	if cfg.DispatchSchedule == "" {
		cfg.DispatchSchedule = "*/5 * * * * *"
	}
	if cfg.StatsSchedule == "" {
		cfg.StatsSchedule = "0 */30 * * * *"
	}
	if cfg.RecoverySchedule == "" {
		cfg.RecoverySchedule = "0 */5 * * * *"
	}
	if cfg.DelayFloorMinutes <= 0 {
		cfg.DelayFloorMinutes = 1
	}
	if cfg.DelayCeilingMinutes <= 0 || cfg.DelayCeilingMinutes > 90 {
		cfg.DelayCeilingMinutes = 90
	}
	if cfg.MaxTargetCount <= 0 {
		cfg.MaxTargetCount = 50
	}
	if cfg.DefaultDailyActions <= 0 {
		cfg.DefaultDailyActions = 10
	}
	if cfg.MaxDailyActions <= 0 || cfg.MaxDailyActions > 25 {
		cfg.MaxDailyActions = 25
	}
	if cfg.SubmissionsPerWindow <= 0 {
		cfg.SubmissionsPerWindow = 2
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "sqlite3:./data.db"
	}
	if cfg.LogDirectory == "" {
		cfg.LogDirectory = "./logs"
	}
	if cfg.LogOutputFile == "" {
		cfg.LogOutputFile = "app.log"
	}
	if cfg.LogErrorFile == "" {
		cfg.LogErrorFile = "app.error.log"
	}

	cfg.ProviderTimeout = parseDurationOr(cfg.ProviderTimeoutStr, 30*time.Second)
	cfg.SubmissionWindow = parseDurationOr(cfg.SubmissionWindowStr, 24*time.Hour)
	cfg.RetryBackoff = parseDurationOr(cfg.RetryBackoffStr, 30*time.Second)
	cfg.StaleClaimAge = parseDurationOr(cfg.StaleClaimAgeStr, 10*time.Minute)
	cfg.HTTPClientTimeout = parseDurationOr(cfg.HTTPClientTimeoutStr, 30*time.Second)

	if cfg.WorkerPoolSize == 0 {
		cfg.WorkerPoolSize = runtime.NumCPU() * 4
		if cfg.WorkerPoolSize < 10 {
			cfg.WorkerPoolSize = 10
		}
		if cfg.WorkerPoolSize > 100 {
			cfg.WorkerPoolSize = 100
		}
	}
	if cfg.MaxConcurrentActions == 0 {
		cfg.MaxConcurrentActions = 8
	}
	if cfg.MaxIdleConns == 0 {
		cfg.MaxIdleConns = 200
	}
	if cfg.MaxConnsPerHost == 0 {
		cfg.MaxConnsPerHost = 50
	}
}

func parseDurationOr(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// Global config manager instance
var globalManager *Manager

// Load loads configuration from the default YAML file
func Load() (*Config, error) {
	if globalManager == nil {
		configPath := "config.yaml"
		if _, err := os.Stat("config/config.yaml"); err == nil {
			configPath = "config/config.yaml"
		}
		globalManager = NewManager(configPath)
	}
	return globalManager.Load()
}
