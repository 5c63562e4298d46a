package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"dot-pattern-editor/internal/editor"
	"dot-pattern-editor/internal/infra/setup"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	ServerPort        string
	AppEnv            string // development / production
	LogLevel          string
	JWTSecret         string
	JWTExpiryHours    int
	Redis             setup.RedisConfig // Addr 为空时不启用限流和后台导出
	KeyPrefix         string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	MaxGridSize       int
	ExportDir         string
	ExportRetention   time.Duration
	SessionIdle       time.Duration // 无客户端连接的会话超过该时长后被回收
	CORSAllowedOrigin string
	MazeSeed          uint64 // 0 表示每个会话使用随机种子
}

// LoadConfig 从环境变量加载配置
func LoadConfig() (*Config, error) {
	// 优先加载 .env 文件 (如果存在)
	_ = godotenv.Load()

	cfg := &Config{
		ServerPort: os.Getenv("SERVER_PORT"),
		AppEnv:     os.Getenv("APP_ENV"),
		LogLevel:   os.Getenv("LOG_LEVEL"),
		JWTSecret:  os.Getenv("JWT_SECRET"),
		Redis: setup.RedisConfig{
			Addr:     os.Getenv("REDIS_ADDR"),
			Password: os.Getenv("REDIS_PASSWORD"),
		},
		KeyPrefix:         os.Getenv("REDIS_KEY_PREFIX"),
		ExportDir:         os.Getenv("EXPORT_DIR"),
		CORSAllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGIN"),
		// --- 设置默认值 ---
		JWTExpiryHours:  envInt("JWT_EXPIRY_HOURS", 24),
		RateLimitMax:    envInt("RATE_LIMIT_MAX", 100),
		RateLimitWindow: envDuration("RATE_LIMIT_WINDOW", time.Second),
		MaxGridSize:     envInt("MAX_GRID_SIZE", editor.DefaultMaxSize),
		ExportRetention: envDuration("EXPORT_RETENTION", 24*time.Hour),
		SessionIdle:     envDuration("SESSION_IDLE_TIMEOUT", 30*time.Minute),
	}
	cfg.Redis.DB = envInt("REDIS_DB", 0)

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "dp:"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = "http://localhost:3000"
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if cfg.MaxGridSize < 1 {
		return nil, fmt.Errorf("MAX_GRID_SIZE must be positive, got %d", cfg.MaxGridSize)
	}
	if raw := os.Getenv("MAZE_SEED"); raw != "" {
		seed, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid MAZE_SEED %q: %w", raw, err)
		}
		cfg.MazeSeed = seed
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func envInt(key string, def int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		logrus.Warnf("Invalid %s '%s', using default %d", key, raw, def)
		return def
	}
	return v
}

func envDuration(key string, def time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil || v <= 0 {
		logrus.Warnf("Invalid %s '%s', using default %s", key, raw, def)
		return def
	}
	return v
}
