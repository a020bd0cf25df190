package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/kriterionquant/chainscope/internal/analytics"
)

type Config struct {
	Analytics AnalyticsConfig `mapstructure:"analytics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type AnalyticsConfig struct {
	ContractMultiplier float64 `mapstructure:"contract_multiplier"`
	RelevanceBand      float64 `mapstructure:"relevance_band"`
	SurfaceGridSize    int     `mapstructure:"surface_grid_size"`
	IDWPower           float64 `mapstructure:"idw_power"`
	MinIV              float64 `mapstructure:"min_iv"`
	MaxIV              float64 `mapstructure:"max_iv"`
	SurfaceWorkers     int     `mapstructure:"surface_workers"`
}

type LoggingConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	Level     string `mapstructure:"level"`
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	defaults := analytics.DefaultParams()
	v.SetDefault("analytics.contract_multiplier", defaults.ContractMultiplier)
	v.SetDefault("analytics.relevance_band", defaults.RelevanceBand)
	v.SetDefault("analytics.surface_grid_size", defaults.SurfaceGridSize)
	v.SetDefault("analytics.idw_power", defaults.IDWPower)
	v.SetDefault("analytics.min_iv", defaults.MinIV)
	v.SetDefault("analytics.max_iv", defaults.MaxIV)
	v.SetDefault("analytics.surface_workers", defaults.SurfaceWorkers)
	v.SetDefault("logging.enabled", false)
	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.level", "info")

	// Environment variable support
	v.SetEnvPrefix("CHAINSCOPE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("default")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	a := c.Analytics
	if a.ContractMultiplier <= 0 {
		return fmt.Errorf("contract_multiplier must be positive")
	}
	if a.RelevanceBand < 0 || a.RelevanceBand >= 1 {
		return fmt.Errorf("relevance_band must be in [0, 1)")
	}
	if a.SurfaceGridSize < 2 {
		return fmt.Errorf("surface_grid_size must be >= 2")
	}
	if a.IDWPower <= 0 {
		return fmt.Errorf("idw_power must be positive")
	}
	if a.MinIV < 0 || a.MaxIV <= a.MinIV {
		return fmt.Errorf("invalid IV window [%v, %v]", a.MinIV, a.MaxIV)
	}
	if a.SurfaceWorkers < 0 {
		return fmt.Errorf("surface_workers must be >= 0")
	}
	return nil
}

// Params maps the configuration onto the analytics engine parameters.
func (c *Config) Params() analytics.Params {
	return analytics.Params{
		ContractMultiplier: c.Analytics.ContractMultiplier,
		RelevanceBand:      c.Analytics.RelevanceBand,
		SurfaceGridSize:    c.Analytics.SurfaceGridSize,
		IDWPower:           c.Analytics.IDWPower,
		MinIV:              c.Analytics.MinIV,
		MaxIV:              c.Analytics.MaxIV,
		SurfaceWorkers:     c.Analytics.SurfaceWorkers,
	}
}
