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
	"time"

	"github.com/spf13/viper"
)

// Config holds all the configuration variables for the ledger service.
// These values are loaded from environment variables.
type Config struct {
	ServerPort                string        `mapstructure:"SERVER_PORT"`
	DatabaseURL               string        `mapstructure:"DATABASE_URL"`
	Currencies                string        `mapstructure:"CURRENCIES"`
	PageSizeDefault           int           `mapstructure:"PAGE_SIZE_DEFAULT"`
	PageSizeMax               int           `mapstructure:"PAGE_SIZE_MAX"`
	RabbitMQURL               string        `mapstructure:"RABBITMQ_URL"`
	RedisURL                  string        `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string        `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	PaymentRateLimitPerMinute int           `mapstructure:"PAYMENT_RATE_LIMIT_PER_MINUTE"`
	SweeperSchedule           string        `mapstructure:"SWEEPER_SCHEDULE"`
	SweeperUnconfirmedTTL     time.Duration `mapstructure:"SWEEPER_UNCONFIRMED_TTL"`
	CORSAllowedOrigins        string        `mapstructure:"CORS_ALLOWED_ORIGINS"`
}

// CurrencyCodes returns the configured currency allowlist as a slice.
func (c Config) CurrencyCodes() []string {
	return splitList(c.Currencies)
}

// CORSOrigins returns the allowed CORS origins as a slice.
func (c Config) CORSOrigins() []string {
	return splitList(c.CORSAllowedOrigins)
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
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
	viper.SetDefault("CURRENCIES", "USD,EUR,GBP,PHP")
	viper.SetDefault("PAGE_SIZE_DEFAULT", 100)
	viper.SetDefault("PAGE_SIZE_MAX", 1000)
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ledger:rate_limit")
	viper.SetDefault("PAYMENT_RATE_LIMIT_PER_MINUTE", 0)
	viper.SetDefault("SWEEPER_SCHEDULE", "@hourly")
	viper.SetDefault("SWEEPER_UNCONFIRMED_TTL", "0")
	viper.SetDefault("CORS_ALLOWED_ORIGINS", "https://*,http://*")

	// Bind environment variables explicitly to ensure they appear in Unmarshal
	_ = viper.BindEnv("SERVER_PORT")
	_ = viper.BindEnv("PORT")
	_ = viper.BindEnv("DATABASE_URL")
	_ = viper.BindEnv("CURRENCIES")
	_ = viper.BindEnv("PAGE_SIZE_DEFAULT")
	_ = viper.BindEnv("PAGE_SIZE_MAX")
	_ = viper.BindEnv("RABBITMQ_URL")
	_ = viper.BindEnv("REDIS_URL")
	_ = viper.BindEnv("REDIS_RATE_LIMIT_PREFIX")
	_ = viper.BindEnv("PAYMENT_RATE_LIMIT_PER_MINUTE")
	_ = viper.BindEnv("SWEEPER_SCHEDULE")
	_ = viper.BindEnv("SWEEPER_UNCONFIRMED_TTL")
	_ = viper.BindEnv("CORS_ALLOWED_ORIGINS")

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
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.RedisRateLimitPrefix = strings.TrimSpace(config.RedisRateLimitPrefix)
	if config.RedisRateLimitPrefix == "" {
		config.RedisRateLimitPrefix = "ledger:rate_limit"
	}

	if config.PageSizeDefault <= 0 {
		config.PageSizeDefault = 100
	}
	if config.PageSizeMax <= 0 {
		config.PageSizeMax = 1000
	}
	if config.PageSizeDefault > config.PageSizeMax {
		log.Printf("level=warn component=config msg=\"PAGE_SIZE_DEFAULT exceeds PAGE_SIZE_MAX; capping\" default=%d max=%d", config.PageSizeDefault, config.PageSizeMax)
		config.PageSizeDefault = config.PageSizeMax
	}

	if config.PaymentRateLimitPerMinute < 0 {
		log.Printf("level=warn component=config msg=\"negative payment rate limit configured; disabling\" per_minute=%d", config.PaymentRateLimitPerMinute)
		config.PaymentRateLimitPerMinute = 0
	}

	if config.SweeperUnconfirmedTTL < 0 {
		log.Printf("level=warn component=config msg=\"negative sweeper TTL configured; disabling sweeper\" ttl=%s", config.SweeperUnconfirmedTTL)
		config.SweeperUnconfirmedTTL = 0
	}
	if strings.TrimSpace(config.SweeperSchedule) == "" {
		config.SweeperSchedule = "@hourly"
	}

	return
}
