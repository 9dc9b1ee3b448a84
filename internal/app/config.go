package app

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hydroplant/master-controller/internal/controller"
	"github.com/hydroplant/master-controller/internal/platform/envutil"
)

// Config is the process-wide configuration: broker and database
// endpoints plus the scheduler knobs. Environment variables are the
// source of truth; a YAML file named by HYDROPLANT_CONFIG overlays them.
type Config struct {
	LogMode string `yaml:"log_mode"`

	BrokerHost string `yaml:"broker_host"`
	BrokerPort int    `yaml:"broker_port"`

	DatabaseHost string `yaml:"database_host"`
	DatabasePort int    `yaml:"database_port"`

	AutonomyTick  time.Duration `yaml:"autonomy_tick"`
	IntervalCheck time.Duration `yaml:"interval_check"`
	DayStart      int           `yaml:"day_start"`
	DayEnd        int           `yaml:"day_end"`

	RestorePolicy string `yaml:"restore_policy"`
}

func LoadConfig() (Config, error) {
	cfg := Config{
		LogMode:       envutil.Str("LOG_MODE", "development"),
		BrokerHost:    envutil.Str("BROKER_HOST", "localhost"),
		BrokerPort:    envutil.Int("BROKER_PORT", 1883),
		DatabaseHost:  envutil.Str("DATABASE_HOST", "localhost"),
		DatabasePort:  envutil.Int("DATABASE_PORT", 27017),
		AutonomyTick:  envutil.Duration("AUTONOMY_TICK", time.Second),
		IntervalCheck: envutil.Duration("AUTONOMY_INTERVAL_CHECK", time.Minute),
		DayStart:      envutil.Int("AUTONOMY_DAY_START", 7),
		DayEnd:        envutil.Int("AUTONOMY_DAY_END", 21),
		RestorePolicy: envutil.Str("STATE_RESTORE_POLICY", string(controller.RestoreZero)),
	}

	if path := os.Getenv("HYDROPLANT_CONFIG"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file: %w", err)
		}
	}

	switch controller.RestorePolicy(cfg.RestorePolicy) {
	case controller.RestoreOff, controller.RestoreZero, controller.RestoreLast:
	default:
		return cfg, fmt.Errorf("invalid restore policy %q", cfg.RestorePolicy)
	}
	return cfg, nil
}
