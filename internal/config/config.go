// Package config loads process configuration from environment variables,
// with an optional .env file for local development.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the scorekeeper server
type Config struct {
	Server    ServerConfig
	WebSocket WebSocketConfig
	Redis     RedisConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Lobby     LobbyConfig
	Game      GameConfig

	// RoomRepoType selects the live room store: memory | redis
	RoomRepoType string
	// StoreRepoType selects the durable user/archive store: memory | postgres
	StoreRepoType string
}

type ServerConfig struct {
	Port      string
	LogLevel  string
	LogFormat string // json, console
}

type WebSocketConfig struct {
	PingInterval   time.Duration
	WriteWait      time.Duration
	PongWait       time.Duration
	MaxMessageSize int64
}

type RedisConfig struct {
	Host string
	Port string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type AuthConfig struct {
	JWTSecret     string
	TokenDuration time.Duration
}

type LobbyConfig struct {
	BroadcastInterval time.Duration
}

// GameConfig holds table defaults applied when a client omits settings.
type GameConfig struct {
	DefaultMaxFan      int
	DefaultPricePerFan float64
}

// Load loads all configuration. A .env file is honored when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Server: ServerConfig{
			Port:      getEnv("SERVER_PORT", "8080"),
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
		WebSocket: WebSocketConfig{
			PingInterval:   getEnvDur("WS_PING_INTERVAL", 54*time.Second),
			WriteWait:      getEnvDur("WS_WRITE_WAIT", 10*time.Second),
			PongWait:       getEnvDur("WS_PONG_WAIT", 60*time.Second),
			MaxMessageSize: int64(getEnvInt("WS_MAX_MESSAGE_SIZE", 4096)),
		},
		Redis: RedisConfig{
			Host: getEnv("REDIS_HOST", "localhost"),
			Port: getEnv("REDIS_PORT", "6379"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "mahjong_user"),
			Password: getEnv("DB_PASSWORD", "mahjong_pass"),
			Name:     getEnv("DB_NAME", "mahjong_db"),
		},
		Auth: AuthConfig{
			JWTSecret:     getEnv("JWT_SECRET", "dev-secret-key"),
			TokenDuration: getEnvDur("JWT_DURATION", 30*24*time.Hour),
		},
		Lobby: LobbyConfig{
			BroadcastInterval: getEnvDur("LOBBY_BROADCAST_INTERVAL", 5*time.Second),
		},
		Game: GameConfig{
			DefaultMaxFan:      getEnvInt("GAME_DEFAULT_MAX_FAN", 0),
			DefaultPricePerFan: getEnvFloat("GAME_DEFAULT_PRICE_PER_FAN", 1),
		},
		RoomRepoType:  getEnv("ROOM_REPO_TYPE", "memory"),
		StoreRepoType: getEnv("STORE_REPO_TYPE", "memory"),
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, ok := os.LookupEnv(key); ok {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDur(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
