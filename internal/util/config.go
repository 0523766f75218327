// Package util provides configuration and logging for gridpulse.
package util

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/user/gridpulse/internal/model"
)

// OutstationConfig describes one RTU: identity, dial target and the physical
// parameter envelope its simulator walks within.
type OutstationConfig struct {
	ID      int    `mapstructure:"id"`
	Name    string `mapstructure:"name"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	Address int    `mapstructure:"address"`

	MinVoltage     float64 `mapstructure:"min_voltage"`
	MaxVoltage     float64 `mapstructure:"max_voltage"`
	MinCurrent     float64 `mapstructure:"min_current"`
	MaxCurrent     float64 `mapstructure:"max_current"`
	MinFrequency   float64 `mapstructure:"min_frequency"`
	MaxFrequency   float64 `mapstructure:"max_frequency"`
	MinTemperature float64 `mapstructure:"min_temperature"`
	MaxTemperature float64 `mapstructure:"max_temperature"`

	RatedCapacityKVA float64 `mapstructure:"rated_capacity_kva"`
}

// Identity returns the immutable outstation identity for this entry.
func (o OutstationConfig) Identity() model.Outstation {
	return model.Outstation{
		ID:      o.ID,
		Name:    o.Name,
		Host:    o.Host,
		Port:    o.Port,
		Address: o.Address,
	}
}

// Config holds all application configuration.
type Config struct {
	DataDir  string `mapstructure:"data_dir"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	MasterID int `mapstructure:"master_id"`
	APIPort  int `mapstructure:"api_port"`

	// Poll engine
	PollInterval     time.Duration `mapstructure:"poll_interval"`
	ConnectTimeout   time.Duration `mapstructure:"connect_timeout"`
	PollTimeout      time.Duration `mapstructure:"poll_timeout"`
	FailureThreshold int           `mapstructure:"failure_threshold"`

	// Measurement store
	HistoryCapacity int     `mapstructure:"history_capacity"`
	PowerFactor     float64 `mapstructure:"power_factor"`

	// Outstation simulator
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	WalkSigmaPct    float64       `mapstructure:"walk_sigma_pct"`

	// Persistence collaborator
	RecordFile string `mapstructure:"record_file"`

	// Data logger
	MasterURL   string        `mapstructure:"master_url"`
	LogInterval time.Duration `mapstructure:"log_interval"`

	Outstations []OutstationConfig `mapstructure:"outstations"`
}

// DefaultConfig returns configuration with sensible defaults matching a
// two-substation testbed.
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".gridpulse")

	return &Config{
		DataDir:  dataDir,
		LogLevel: "info",
		LogFile:  filepath.Join(dataDir, "gridpulse.log"),

		MasterID: 1,
		APIPort:  8080,

		PollInterval:     5 * time.Second,
		ConnectTimeout:   2 * time.Second,
		PollTimeout:      2 * time.Second,
		FailureThreshold: 3,

		HistoryCapacity: 1000,
		PowerFactor:     0.95,

		RefreshInterval: time.Second,
		WalkSigmaPct:    0.5,

		RecordFile: filepath.Join(dataDir, "measurements.jsonl"),

		MasterURL:   "http://localhost:8080",
		LogInterval: 5 * time.Second,

		Outstations: []OutstationConfig{
			defaultOutstation(1, "Substation_1", 20000, 10),
			defaultOutstation(2, "Substation_2", 20001, 11),
		},
	}
}

func defaultOutstation(id int, name string, port, address int) OutstationConfig {
	return OutstationConfig{
		ID:      id,
		Name:    name,
		Host:    "localhost",
		Port:    port,
		Address: address,

		MinVoltage:     380,
		MaxVoltage:     420,
		MinCurrent:     100,
		MaxCurrent:     800,
		MinFrequency:   59.8,
		MaxFrequency:   60.2,
		MinTemperature: 20,
		MaxTemperature: 85,

		RatedCapacityKVA: 500,
	}
}

// LoadConfig loads configuration from file and environment. Configuration is
// read once at startup; the rest of the system treats it as immutable.
// An empty path searches the data dir and the working directory.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data dir: %w", err)
	}

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(cfg.DataDir)
		viper.AddConfigPath(".")
	}
	viper.SetEnvPrefix("gridpulse")
	viper.AutomaticEnv()

	viper.SetDefault("data_dir", cfg.DataDir)
	viper.SetDefault("log_level", cfg.LogLevel)
	viper.SetDefault("master_id", cfg.MasterID)
	viper.SetDefault("api_port", cfg.APIPort)
	viper.SetDefault("poll_interval", cfg.PollInterval)
	viper.SetDefault("connect_timeout", cfg.ConnectTimeout)
	viper.SetDefault("poll_timeout", cfg.PollTimeout)
	viper.SetDefault("failure_threshold", cfg.FailureThreshold)
	viper.SetDefault("history_capacity", cfg.HistoryCapacity)
	viper.SetDefault("power_factor", cfg.PowerFactor)
	viper.SetDefault("refresh_interval", cfg.RefreshInterval)
	viper.SetDefault("walk_sigma_pct", cfg.WalkSigmaPct)
	viper.SetDefault("master_url", cfg.MasterURL)
	viper.SetDefault("log_interval", cfg.LogInterval)

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot run with. Configuration
// errors are the only fatal condition in the system, and only at startup.
func (c *Config) Validate() error {
	if len(c.Outstations) == 0 {
		return fmt.Errorf("no outstations configured")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive")
	}
	if c.ConnectTimeout >= c.PollInterval || c.PollTimeout >= c.PollInterval {
		return fmt.Errorf("connect/poll timeouts must be shorter than poll_interval")
	}
	if c.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}
	if c.HistoryCapacity <= 0 {
		return fmt.Errorf("history_capacity must be positive")
	}
	if c.PowerFactor <= 0 || c.PowerFactor > 1 {
		return fmt.Errorf("power_factor must be in (0, 1]")
	}

	seen := make(map[int]string, len(c.Outstations))
	for _, o := range c.Outstations {
		if prev, dup := seen[o.ID]; dup {
			return fmt.Errorf("duplicate outstation id %d (%s and %s)", o.ID, prev, o.Name)
		}
		seen[o.ID] = o.Name

		if o.Name == "" {
			return fmt.Errorf("outstation %d has no name", o.ID)
		}
		if err := checkRange("voltage", o.MinVoltage, o.MaxVoltage); err != nil {
			return fmt.Errorf("outstation %d: %w", o.ID, err)
		}
		if err := checkRange("current", o.MinCurrent, o.MaxCurrent); err != nil {
			return fmt.Errorf("outstation %d: %w", o.ID, err)
		}
		if err := checkRange("frequency", o.MinFrequency, o.MaxFrequency); err != nil {
			return fmt.Errorf("outstation %d: %w", o.ID, err)
		}
		if err := checkRange("temperature", o.MinTemperature, o.MaxTemperature); err != nil {
			return fmt.Errorf("outstation %d: %w", o.ID, err)
		}
	}

	return nil
}

func checkRange(name string, min, max float64) error {
	if min >= max {
		return fmt.Errorf("%s range [%g, %g] is empty", name, min, max)
	}
	return nil
}

// FindOutstation returns the config entry for an outstation id.
func (c *Config) FindOutstation(id int) (OutstationConfig, bool) {
	for _, o := range c.Outstations {
		if o.ID == id {
			return o, true
		}
	}
	return OutstationConfig{}, false
}

// EnsureDir ensures a directory exists.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0755)
}
