package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment variable prefix for all Thunder settings
const envPrefix = "THUNDER_"

// EngineConfig contains configurable ping engine settings
type EngineConfig struct {
	// Echo payload size in bytes
	PayloadSize int

	// Per-read deadline inside the reply poll loop; bounds how far a
	// round can overshoot its timeout
	PollGranularity time.Duration

	// Echo transmissions per second within a round (0 = unlimited)
	SendRate int

	// Use raw ICMP sockets by default (requires root or CAP_NET_RAW)
	Privileged bool
}

// MonitorConfig contains round scheduling defaults (overridable via CLI)
type MonitorConfig struct {
	DefaultCount    int
	DefaultInterval time.Duration
	DefaultTimeout  time.Duration
}

// OutputConfig contains output writer settings
type OutputConfig struct {
	// Buffer size for the JSONL writer
	BufferSize int

	// Default output format: "jsonl", "parquet" or "summary"
	DefaultFormat string
}

// DefaultEngineConfig returns default engine configuration
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		PayloadSize:     getEnvInt("PAYLOAD_SIZE", 56),                            // Classic ping payload
		PollGranularity: getEnvDuration("POLL_GRANULARITY", 100*time.Millisecond), // Socket read deadline
		SendRate:        getEnvInt("SEND_RATE", 0),                                // Unlimited
		Privileged:      getEnvBool("PRIVILEGED", false),                          // Datagram ICMP sockets
	}
}

// DefaultMonitorConfig returns default monitoring configuration
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		DefaultCount:    getEnvInt("DEFAULT_COUNT", 4),                    // 4 rounds then exit
		DefaultInterval: getEnvDuration("DEFAULT_INTERVAL", time.Second),  // One round per second
		DefaultTimeout:  getEnvDuration("DEFAULT_TIMEOUT", 2*time.Second), // Per-round reply deadline
	}
}

// DefaultOutputConfig returns default output configuration
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		BufferSize:    getEnvInt("OUTPUT_BUFFER_SIZE", 64*1024), // 64KB
		DefaultFormat: getEnvString("OUTPUT_FORMAT", "summary"), // ping(8)-style report
	}
}

// getEnvInt retrieves an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	if val := os.Getenv(envPrefix + key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable with a default value
// Accepts values like "200ms", "5s", "1m"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if val := os.Getenv(envPrefix + key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultValue
}

// getEnvBool retrieves a boolean environment variable with a default value
// Accepts: "true", "false", "1", "0", "yes", "no" (case-insensitive)
func getEnvBool(key string, defaultValue bool) bool {
	if val := os.Getenv(envPrefix + key); val != "" {
		val = strings.ToLower(strings.TrimSpace(val))
		switch val {
		case "true", "1", "yes", "on":
			return true
		case "false", "0", "no", "off":
			return false
		}
	}
	return defaultValue
}

// getEnvString retrieves a string environment variable with a default value
func getEnvString(key string, defaultValue string) string {
	if val := os.Getenv(envPrefix + key); val != "" {
		return val
	}
	return defaultValue
}

// Global configuration instances (initialized once at startup)
var (
	Engine  = DefaultEngineConfig()
	Monitor = DefaultMonitorConfig()
	Output  = DefaultOutputConfig()
)

// Init initializes all configuration from environment variables
// Call this at application startup
func Init() {
	Engine = DefaultEngineConfig()
	Monitor = DefaultMonitorConfig()
	Output = DefaultOutputConfig()
}
