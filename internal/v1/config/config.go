package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
)

// Config holds validated environment configuration for the rooms service.
type Config struct {
	// Required variables (ReplicaID falls back to the host name when unset)
	AuthServiceURL string
	ReplicaID      string
	Port           string

	// Optional variables with defaults
	GoEnv    string
	LogLevel string

	RedisAddr     string
	RedisPassword string
	RedisEnabled  bool

	RoomTTLSeconds     int
	DefaultKingPower   int
	DefaultCastlePower int
	ColorsCount        int
	RoomKeyAlphabet    string

	AllowedOrigins string

	OtelEnabled       bool
	OtelCollectorAddr string
	OtelServiceName   string

	// Rate limits
	RateLimitApiGlobal string
	RateLimitApiRooms  string
	RateLimitWsIp      string
	RateLimitWsUser    string
}

const defaultRoomKeyAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// ValidateEnv validates all required environment variables and returns a Config object.
// Returns an error accumulating every violation found, not just the first.
func ValidateEnv() (*Config, error) {
	cfg := &Config{}
	var errors []string

	cfg.AuthServiceURL = os.Getenv("AUTH_SERVICE_URL")
	if cfg.AuthServiceURL == "" {
		errors = append(errors, "AUTH_SERVICE_URL is required")
	}

	cfg.ReplicaID = os.Getenv("REPLICA_ID")
	if cfg.ReplicaID == "" {
		if host, err := os.Hostname(); err == nil && host != "" {
			cfg.ReplicaID = host
		} else {
			errors = append(errors, "REPLICA_ID is required and host name could not be determined")
		}
	}

	cfg.Port = os.Getenv("PORT")
	if cfg.Port == "" {
		errors = append(errors, "PORT is required")
	} else {
		port, err := strconv.Atoi(cfg.Port)
		if err != nil || port < 1 || port > 65535 {
			errors = append(errors, fmt.Sprintf("PORT must be a valid port number between 1 and 65535 (got '%s')", cfg.Port))
		}
	}

	cfg.RedisEnabled = os.Getenv("REDIS_ENABLED") != "false"
	if cfg.RedisEnabled {
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			cfg.RedisAddr = "localhost:6379"
			slog.Warn("REDIS_ADDR not set, using default", "addr", cfg.RedisAddr)
		} else if !isValidHostPort(cfg.RedisAddr) {
			errors = append(errors, fmt.Sprintf("REDIS_ADDR must be in format 'host:port' (got '%s')", cfg.RedisAddr))
		}
		cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	}

	cfg.GoEnv = getEnvOrDefault("GO_ENV", "production")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.AllowedOrigins = os.Getenv("ALLOWED_ORIGINS")

	cfg.RoomTTLSeconds = getEnvIntOrDefault("ROOM_TTL", 86400, &errors)
	cfg.DefaultKingPower = getEnvIntOrDefault("DEFAULT_KING_POWER", 12, &errors)
	cfg.DefaultCastlePower = getEnvIntOrDefault("DEFAULT_CASTLE_POWER", 12, &errors)
	cfg.ColorsCount = getEnvIntOrDefault("COLORS_COUNT", 6, &errors)
	cfg.RoomKeyAlphabet = getEnvOrDefault("ROOM_KEY_ALPHABET", defaultRoomKeyAlphabet)
	distinctChars := make(map[byte]struct{}, len(cfg.RoomKeyAlphabet))
	for i := 0; i < len(cfg.RoomKeyAlphabet); i++ {
		distinctChars[cfg.RoomKeyAlphabet[i]] = struct{}{}
	}
	if len(distinctChars) < 2 {
		errors = append(errors, "ROOM_KEY_ALPHABET must contain at least 2 distinct characters")
	}

	cfg.OtelEnabled = os.Getenv("OTEL_ENABLED") == "true"
	cfg.OtelCollectorAddr = getEnvOrDefault("OTEL_COLLECTOR_ADDR", "localhost:4317")
	cfg.OtelServiceName = getEnvOrDefault("OTEL_SERVICE_NAME", "kingdoms-rooms")

	cfg.RateLimitApiGlobal = getEnvOrDefault("RATE_LIMIT_API_GLOBAL", "1000-M")
	cfg.RateLimitApiRooms = getEnvOrDefault("RATE_LIMIT_API_ROOMS", "100-M")
	cfg.RateLimitWsIp = getEnvOrDefault("RATE_LIMIT_WS_IP", "100-M")
	cfg.RateLimitWsUser = getEnvOrDefault("RATE_LIMIT_WS_USER", "10-M")

	if len(errors) > 0 {
		return nil, fmt.Errorf("environment validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	logValidatedConfig(cfg)
	return cfg, nil
}

func isValidHostPort(addr string) bool {
	parts := strings.Split(addr, ":")
	if len(parts) != 2 {
		return false
	}
	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return false
	}
	return parts[0] != ""
}

func logValidatedConfig(cfg *Config) {
	slog.Info("environment configuration validated")
	slog.Info("configuration",
		"auth_service_url", cfg.AuthServiceURL,
		"replica_id", cfg.ReplicaID,
		"port", cfg.Port,
		"redis_enabled", cfg.RedisEnabled,
		"redis_addr", cfg.RedisAddr,
		"go_env", cfg.GoEnv,
		"log_level", cfg.LogLevel,
		"room_ttl", cfg.RoomTTLSeconds,
		"default_king_power", cfg.DefaultKingPower,
		"default_castle_power", cfg.DefaultCastlePower,
		"colors_count", cfg.ColorsCount,
		"rate_limit_api_global", cfg.RateLimitApiGlobal,
		"otel_enabled", cfg.OtelEnabled,
	)
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int, errors *[]string) int {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*errors = append(*errors, fmt.Sprintf("%s must be an integer (got '%s')", key, raw))
		return defaultValue
	}
	return v
}

// redactToken redacts a bearer token, showing only a short prefix.
func redactToken(token string) string {
	if len(token) <= 8 {
		return "***"
	}
	return token[:8] + "***"
}
