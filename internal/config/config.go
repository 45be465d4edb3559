package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Port                  string
	AllowedOrigins        []string
	FrontendURL           string
	DatabaseURL           string
	DBMaxOpenConns        int
	DBMaxIdleConns        int
	DBConnMaxLifetimeMin  int
	JWTSecret             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int
	PresenceDebounce      time.Duration
	HandshakeTimeout      time.Duration
	OAuthConfig           OAuthConfig
}

var AppConfig *Config

func LoadConfig() *Config {
	port := GetEnv("PORT", "8080")

	// Frontend & CORS
	frontendURL := GetEnv("FRONTEND_URL", "http://localhost:5173")
	allowedOriginsStr := GetEnv("ALLOWED_ORIGINS", "")

	// Build allowed origins list (Frontend URL + Localhost + CSV values)
	allowedOrigins := []string{
		frontendURL,
		"http://localhost:5173", // Local development
	}
	if allowedOriginsStr != "" {
		extras := strings.Split(allowedOriginsStr, ",")
		for _, origin := range extras {
			trimmed := strings.TrimSpace(origin)
			if trimmed != "" {
				allowedOrigins = append(allowedOrigins, trimmed)
			}
		}
	}

	// Database Config
	dbURL := GetEnv("DATABASE_URL", GetEnv("DATABASE_URI", ""))
	dbMaxOpenConns := GetEnvAsInt("DB_MAX_OPEN_CONNS", 25)
	dbMaxIdleConns := GetEnvAsInt("DB_MAX_IDLE_CONNS", 25)
	dbConnMaxLifetimeMin := GetEnvAsInt("DB_CONN_MAX_LIFETIME_MINUTES", 5)

	// Security
	jwtSecret := GetEnv("JWT_SECRET", "your-secret-key-change-this-in-production")
	accessTTLMin := GetEnvAsInt("ACCESS_TOKEN_TTL_MINUTES", 15)
	refreshTTLDays := GetEnvAsInt("REFRESH_TOKEN_TTL_DAYS", 30)

	// Presence: how long a user with zero connections stays visibly online
	// before the offline transition fires. Absorbs page reloads.
	debounceSec := GetEnvAsInt("PRESENCE_DEBOUNCE_SECONDS", 5)

	// Sockets that never complete the auth handshake are closed after this window.
	handshakeSec := GetEnvAsInt("WS_HANDSHAKE_TIMEOUT_SECONDS", 10)

	oauthConfig := LoadOAuthConfig()

	AppConfig = &Config{
		Port:                  port,
		AllowedOrigins:        allowedOrigins,
		FrontendURL:           frontendURL,
		DatabaseURL:           dbURL,
		DBMaxOpenConns:        dbMaxOpenConns,
		DBMaxIdleConns:        dbMaxIdleConns,
		DBConnMaxLifetimeMin:  dbConnMaxLifetimeMin,
		JWTSecret:             jwtSecret,
		AccessTokenTTLMinutes: accessTTLMin,
		RefreshTokenTTLDays:   refreshTTLDays,
		PresenceDebounce:      time.Duration(debounceSec) * time.Second,
		HandshakeTimeout:      time.Duration(handshakeSec) * time.Second,
		OAuthConfig:           *oauthConfig,
	}

	return AppConfig
}

func GetEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func GetEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		log.Printf("Invalid integer value for %s: %s, using default: %d", key, valueStr, defaultValue)
		return defaultValue
	}
	return value
}
