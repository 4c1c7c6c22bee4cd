// Copyright (c) 2023-2026 VoiceGateway Authors
//
// Licensed under GPL-2.0 with VoiceGateway Additional Terms.
// See LICENSE.md for usage terms.

// Package config loads the gateway's process configuration from an env
// file overlaid with environment variables, following the same
// viper-plus-validator shape the teacher uses for its services.
package config

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// AppConfig is the top-level process configuration.
type AppConfig struct {
	Name     string `mapstructure:"service_name" validate:"required"`
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"required"`
	LogLevel string `mapstructure:"log_level" validate:"required"`
	LogPath  string `mapstructure:"log_path"`

	RedisAddr     string `mapstructure:"redis_addr" validate:"required"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`

	PostgresDSN string `mapstructure:"postgres_dsn"`
	SQLitePath  string `mapstructure:"sqlite_path"`

	JWTSecret string `mapstructure:"jwt_secret" validate:"required"`

	MQTTBrokerURL string `mapstructure:"mqtt_broker_url"`
	MQTTUsername  string `mapstructure:"mqtt_username"`
	MQTTSigningKey string `mapstructure:"mqtt_signing_key"`

	// FrameDurationMs is the negotiated default Opus frame duration (§4.1).
	FrameDurationMs int `mapstructure:"frame_duration_ms" validate:"required"`

	// SessionIdleTimeoutSec is the timeout-monitor ceiling (§4.2, default 180s).
	SessionIdleTimeoutSec int `mapstructure:"session_idle_timeout_sec" validate:"required"`

	// ActivationTTLHours is the activation-record TTL (§3, default 24h).
	ActivationTTLHours int `mapstructure:"activation_ttl_hours" validate:"required"`
}

// Load reads configuration from ENV_PATH (if set) plus process environment
// variables, applies defaults, and validates the result.
func Load() (*AppConfig, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("__"))
	v.AddConfigPath(".")
	v.SetConfigName(".env")
	v.SetConfigType("env")

	if path := os.Getenv("ENV_PATH"); path != "" {
		v.SetConfigFile(path)
	}

	setDefaults(v)
	v.AutomaticEnv()
	_ = v.ReadInConfig() // absence of a .env file is not fatal; env vars still apply

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVICE_NAME", "voicegateway")
	v.SetDefault("HOST", "0.0.0.0")
	v.SetDefault("PORT", 8080)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_PATH", "")

	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("SQLITE_PATH", "voicegateway.db")

	v.SetDefault("JWT_SECRET", "dev-secret-change-me")

	v.SetDefault("FRAME_DURATION_MS", 60)
	v.SetDefault("SESSION_IDLE_TIMEOUT_SEC", 180)
	v.SetDefault("ACTIVATION_TTL_HOURS", 24)
}
