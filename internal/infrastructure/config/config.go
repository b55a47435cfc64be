// Package config loads FlowScript's process configuration from
// environment variables, grounded on the teacher's
// internal/infrastructure/config/config.go (Load() returning a
// *Config, getEnv fallback helper).
package config

import (
	"os"
	"strconv"
	"time"
)

// Config represents the application configuration.
type Config struct {
	Port        string
	LogLevel    string
	DatabaseDSN string

	// NodeExecutionTimeout holds NODE_EXECUTION_TIMEOUT_MS. Nothing in
	// this module applies it: node Execute calls run under the
	// execution's own context only.
	NodeExecutionTimeout time.Duration

	// JWTSecret signs/verifies internal/transport/streamws session
	// tokens; empty disables JWT auth in favor of streamws.NoAuth.
	JWTSecret string

	// OpenAIAPIKey is the fallback key for the llmSummarize built-in node.
	OpenAIAPIKey string
}

// Load creates a new Config instance by reading environment variables.
func Load() *Config {
	timeoutMs, _ := strconv.Atoi(getEnv("NODE_EXECUTION_TIMEOUT_MS", "30000"))
	return &Config{
		Port:                 getEnv("PORT", "8080"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		DatabaseDSN:          getEnv("DATABASE_DSN", ""),
		NodeExecutionTimeout: time.Duration(timeoutMs) * time.Millisecond,
		JWTSecret:            getEnv("JWT_SECRET", ""),
		OpenAIAPIKey:         getEnv("OPENAI_API_KEY", ""),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

// GetPortInt returns the port as an integer.
func (c *Config) GetPortInt() int {
	p, _ := strconv.Atoi(c.Port)
	return p
}
