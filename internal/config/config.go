/**
 * @description
 * This package handles the configuration management for the service. It uses the
 * Viper library to read configuration from environment variables, providing a
 * centralized and straightforward way to manage application settings.
 *
 * @dependencies
 * - github.com/spf13/viper: A popular library for Go application configuration.
 */

package config

import (
	"log"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the settlement-service.
// These values are loaded from environment variables. Monetary values are in
// paise.
type Config struct {
	ServerPort             string `mapstructure:"SERVER_PORT"`
	DatabaseURL            string `mapstructure:"DATABASE_URL"`
	RedisURL               string `mapstructure:"REDIS_URL"`
	RedisDedupePrefix      string `mapstructure:"REDIS_DEDUPE_PREFIX"`
	RedisDedupeTTLHours    int    `mapstructure:"REDIS_DEDUPE_TTL_HOURS"`
	RabbitMQURL            string `mapstructure:"RABBITMQ_URL"`
	GatewayEventQueue      string `mapstructure:"GATEWAY_EVENT_QUEUE"`
	GatewayAPIBaseURL      string `mapstructure:"GATEWAY_API_BASE_URL"`
	GatewayAPIKey          string `mapstructure:"GATEWAY_API_KEY"`
	ClerkJWKSURL           string `mapstructure:"CLERK_JWKS_URL"`
	InternalAPIKey         string `mapstructure:"INTERNAL_API_KEY"`
	SettlementRetryCount   int    `mapstructure:"SETTLEMENT_RETRY_COUNT"`
	AutoSettleMinimumPaise int64  `mapstructure:"AUTO_SETTLE_MINIMUM_PAISE"`
}

// LoadConfig reads configuration from environment variables from the given path.
// It uses Viper to automatically bind environment variables to the Config struct.
func LoadConfig(path string) (config Config, err error) {
	// Tell viper the path to look for the optional .env file.
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	// Enable automatic binding of environment variables.
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Set default values
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("GATEWAY_EVENT_QUEUE", "settlement_service.gateway_events")
	viper.SetDefault("REDIS_DEDUPE_PREFIX", "payverge:event_dedupe")
	viper.SetDefault("REDIS_DEDUPE_TTL_HOURS", 24)
	viper.SetDefault("SETTLEMENT_RETRY_COUNT", 3)
	viper.SetDefault("AUTO_SETTLE_MINIMUM_PAISE", 10000)

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("REDIS_URL", "REDIS_URL", "SETTLEMENT_REDIS_URL")
	_ = viper.BindEnv("REDIS_DEDUPE_PREFIX")
	_ = viper.BindEnv("REDIS_DEDUPE_TTL_HOURS")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("GATEWAY_EVENT_QUEUE")
	_ = viper.BindEnv("GATEWAY_API_BASE_URL")
	_ = viper.BindEnv("GATEWAY_API_KEY")
	_ = viper.BindEnv("CLERK_JWKS_URL")
	_ = viper.BindEnv("INTERNAL_API_KEY", "INTERNAL_API_KEY", "SETTLEMENT_SERVICE_INTERNAL_API_KEY")
	_ = viper.BindEnv("SETTLEMENT_RETRY_COUNT")
	_ = viper.BindEnv("AUTO_SETTLE_MINIMUM_PAISE")

	// Attempt to read the config file. It's okay if it doesn't exist.
	if err = viper.ReadInConfig(); err != nil {
		// If the config file is not found, we can ignore the error.
		// For other errors, we should return them.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	// Unmarshal the configuration into the Config struct.
	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	if strings.TrimSpace(config.InternalAPIKey) == "" {
		config.InternalAPIKey = strings.TrimSpace(os.Getenv("SETTLEMENT_SERVICE_INTERNAL_API_KEY"))
	}
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisDedupePrefix = strings.TrimSpace(config.RedisDedupePrefix)
	if config.RedisDedupePrefix == "" {
		config.RedisDedupePrefix = "payverge:event_dedupe"
	}

	if config.RedisDedupeTTLHours <= 0 {
		config.RedisDedupeTTLHours = 24
	}
	if config.SettlementRetryCount <= 0 {
		config.SettlementRetryCount = 3
	}
	if config.AutoSettleMinimumPaise < 0 {
		log.Printf("level=warn component=config msg=\"negative auto-settle minimum configured; coercing to zero\" minimum_paise=%d", config.AutoSettleMinimumPaise)
		config.AutoSettleMinimumPaise = 0
	}

	return
}
