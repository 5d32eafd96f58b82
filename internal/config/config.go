package config

import (
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server   ServerConfig
	MongoDB  MongoDBConfig
	JWT      JWTConfig
	Draws    DrawsConfig
	LogLevel string
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port         string
	AllowedHosts []string
}

// MongoDBConfig holds MongoDB-specific configuration
type MongoDBConfig struct {
	URI      string
	Database string
}

// JWTConfig holds JWT-specific configuration
type JWTConfig struct {
	Secret    string
	ExpiresIn int
}

// DrawsConfig holds draw-engine configuration. The gap grace window and
// freeze lead are defaults; individual draws can override both.
type DrawsConfig struct {
	Timezone              string
	DefaultGapGraceWindow time.Duration
	DefaultFreezeLead     time.Duration
	DisplayCacheTTL       time.Duration
	SweepSchedule         string
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	// Set defaults
	setDefaults()

	// Read configuration
	if err := viper.ReadInConfig(); err != nil {
		// It's okay if config file is not found, we'll use environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	// Unmarshal configuration
	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// setDefaults sets default values for configuration
func setDefaults() {
	viper.SetDefault("Server.Port", "4000")
	viper.SetDefault("Server.AllowedHosts", []string{"localhost:3000"})
	viper.SetDefault("MongoDB.URI", "mongodb://localhost:27017")
	viper.SetDefault("MongoDB.Database", "draw-engine")
	viper.SetDefault("JWT.ExpiresIn", 24*60*60) // 24 hours
	viper.SetDefault("Draws.Timezone", "Australia/Sydney")
	viper.SetDefault("Draws.DefaultGapGraceWindow", 4*time.Hour)
	viper.SetDefault("Draws.DefaultFreezeLead", 30*time.Minute)
	viper.SetDefault("Draws.DisplayCacheTTL", 5*time.Second)
	viper.SetDefault("Draws.SweepSchedule", "* * * * *") // every minute
	viper.SetDefault("LogLevel", "info")
}
