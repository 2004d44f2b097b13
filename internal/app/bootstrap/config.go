package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ServiceID string

	HTTPPort int
	GRPCPort int

	DatabaseURL      string
	DatabaseMaxConns int
	RedisURL         string
	JWTSecret        string

	PackageGRPCURL string
	UserGRPCURL    string

	BinaryRate          float64
	DefaultCappingLimit float64
	ReferralLevelRates  []float64
	DailyROIRate        float64
	MaxTreeDepth        int

	IdempotencyTTL       time.Duration
	EventDedupTTL        time.Duration
	ConsumerPollInterval time.Duration
	BatchLockTTL         time.Duration

	EnableDomainEventConsumption bool
	EnableSettledEmission        bool
}

type configFile struct {
	Service struct {
		ID       string `yaml:"id"`
		HTTPPort int    `yaml:"http_port"`
		GRPCPort int    `yaml:"grpc_port"`
	} `yaml:"service"`
	Dependencies struct {
		DatabaseURL      string `yaml:"database_url"`
		DatabaseMaxConns int    `yaml:"database_max_conns"`
		RedisURL         string `yaml:"redis_url"`
		PackageGRPCURL   string `yaml:"package_grpc_url"`
		UserGRPCURL      string `yaml:"user_grpc_url"`
	} `yaml:"dependencies"`
	Bonus struct {
		BinaryRate          float64   `yaml:"binary_rate"`
		DefaultCappingLimit float64   `yaml:"default_capping_limit"`
		ReferralLevelRates  []float64 `yaml:"referral_level_rates"`
		DailyROIRate        float64   `yaml:"daily_roi_rate"`
		MaxTreeDepth        int       `yaml:"max_tree_depth"`
	} `yaml:"bonus"`
	FeatureFlags struct {
		EnableDomainEventConsumption *bool `yaml:"enable_domain_event_consumption"`
		EnableSettledEmission        *bool `yaml:"enable_settled_emission"`
	} `yaml:"feature_flags"`
}

func LoadConfig(path string) (Config, error) {
	cfg := Config{
		ServiceID:                    "Binary-Bonus-Engine",
		HTTPPort:                     8080,
		GRPCPort:                     9090,
		DatabaseMaxConns:             10,
		BinaryRate:                   0.10,
		DefaultCappingLimit:          1000,
		ReferralLevelRates:           []float64{0.05, 0.02, 0.01},
		DailyROIRate:                 0.005,
		MaxTreeDepth:                 1024,
		IdempotencyTTL:               7 * 24 * time.Hour,
		EventDedupTTL:                7 * 24 * time.Hour,
		ConsumerPollInterval:         2 * time.Second,
		BatchLockTTL:                 15 * time.Minute,
		EnableDomainEventConsumption: true,
		EnableSettledEmission:        true,
	}

	raw, err := os.ReadFile(path)
	if err == nil {
		var f configFile
		if unmarshalErr := yaml.Unmarshal(raw, &f); unmarshalErr != nil {
			return Config{}, fmt.Errorf("parse config file: %w", unmarshalErr)
		}
		if f.Service.ID != "" {
			cfg.ServiceID = f.Service.ID
		}
		if f.Service.HTTPPort > 0 {
			cfg.HTTPPort = f.Service.HTTPPort
		}
		if f.Service.GRPCPort > 0 {
			cfg.GRPCPort = f.Service.GRPCPort
		}
		cfg.DatabaseURL = f.Dependencies.DatabaseURL
		if f.Dependencies.DatabaseMaxConns > 0 {
			cfg.DatabaseMaxConns = f.Dependencies.DatabaseMaxConns
		}
		cfg.RedisURL = f.Dependencies.RedisURL
		cfg.PackageGRPCURL = f.Dependencies.PackageGRPCURL
		cfg.UserGRPCURL = f.Dependencies.UserGRPCURL
		if f.Bonus.BinaryRate > 0 {
			cfg.BinaryRate = f.Bonus.BinaryRate
		}
		if f.Bonus.DefaultCappingLimit > 0 {
			cfg.DefaultCappingLimit = f.Bonus.DefaultCappingLimit
		}
		if len(f.Bonus.ReferralLevelRates) > 0 {
			cfg.ReferralLevelRates = f.Bonus.ReferralLevelRates
		}
		if f.Bonus.DailyROIRate > 0 {
			cfg.DailyROIRate = f.Bonus.DailyROIRate
		}
		if f.Bonus.MaxTreeDepth > 0 {
			cfg.MaxTreeDepth = f.Bonus.MaxTreeDepth
		}
		if f.FeatureFlags.EnableDomainEventConsumption != nil {
			cfg.EnableDomainEventConsumption = *f.FeatureFlags.EnableDomainEventConsumption
		}
		if f.FeatureFlags.EnableSettledEmission != nil {
			cfg.EnableSettledEmission = *f.FeatureFlags.EnableSettledEmission
		}
	}

	cfg.DatabaseURL = envOrDefault("DATABASE_URL", cfg.DatabaseURL)
	cfg.DatabaseMaxConns = envInt("DATABASE_MAX_CONNS", cfg.DatabaseMaxConns)
	cfg.RedisURL = envOrDefault("REDIS_URL", cfg.RedisURL)
	cfg.JWTSecret = envOrDefault("JWT_SECRET", cfg.JWTSecret)
	cfg.PackageGRPCURL = envOrDefault("PACKAGE_GRPC_URL", cfg.PackageGRPCURL)
	cfg.UserGRPCURL = envOrDefault("USER_GRPC_URL", cfg.UserGRPCURL)
	cfg.HTTPPort = envInt("HTTP_PORT", cfg.HTTPPort)
	cfg.GRPCPort = envInt("GRPC_PORT", cfg.GRPCPort)
	cfg.IdempotencyTTL = time.Duration(envInt("IDEMPOTENCY_TTL_HOURS", int(cfg.IdempotencyTTL.Hours()))) * time.Hour
	cfg.EventDedupTTL = time.Duration(envInt("EVENT_DEDUP_TTL_HOURS", int(cfg.EventDedupTTL.Hours()))) * time.Hour
	cfg.ConsumerPollInterval = time.Duration(envInt("CONSUMER_POLL_SECONDS", int(cfg.ConsumerPollInterval.Seconds()))) * time.Second
	cfg.BatchLockTTL = time.Duration(envInt("BATCH_LOCK_TTL_MINUTES", int(cfg.BatchLockTTL.Minutes()))) * time.Minute
	cfg.EnableDomainEventConsumption = envBool("ENABLE_DOMAIN_EVENT_CONSUMPTION", cfg.EnableDomainEventConsumption)
	cfg.EnableSettledEmission = envBool("ENABLE_SETTLED_EMISSION", cfg.EnableSettledEmission)

	return cfg, nil
}

func envOrDefault(name, fallback string) string {
	if value := os.Getenv(name); value != "" {
		return value
	}
	return fallback
}

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func envBool(name string, fallback bool) bool {
	raw := strings.TrimSpace(strings.ToLower(os.Getenv(name)))
	if raw == "" {
		return fallback
	}
	switch raw {
	case "1", "true", "t", "yes", "y", "on":
		return true
	case "0", "false", "f", "no", "n", "off":
		return false
	default:
		return fallback
	}
}
