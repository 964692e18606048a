// Package config loads environment configuration and opens the shared
// infrastructure connections (MySQL, Redis).
package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/mediocregopher/radix/v3"
	"github.com/rs/zerolog/log"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

type Config struct {
	Port    string
	BaseURL string

	DBDSN     string
	RedisAddr string

	JWTSecret string

	MidtransServerKey  string
	MidtransProduction bool

	// Path to the Firebase service account JSON. Empty disables push
	// notifications.
	FirebaseCredentials string
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("config: .env file not found, using process environment")
	}

	cfg := Config{
		Port:                getEnv("PORT", "8080"),
		BaseURL:             getEnv("BASE_URL", "http://localhost:8080"),
		DBDSN:               os.Getenv("DB_DSN"),
		RedisAddr:           getEnv("REDIS_ADDR", "localhost:6379"),
		JWTSecret:           os.Getenv("JWT_SECRET"),
		MidtransServerKey:   os.Getenv("MIDTRANS_SERVER_KEY"),
		FirebaseCredentials: os.Getenv("FIREBASE_CREDENTIALS"),
	}
	cfg.MidtransProduction, _ = strconv.ParseBool(os.Getenv("MIDTRANS_PRODUCTION"))
	return cfg
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ConnectDB opens the MySQL connection via gorm.
func ConnectDB(cfg Config) (*gorm.DB, error) {
	if cfg.DBDSN == "" {
		return nil, fmt.Errorf("config: DB_DSN is required")
	}
	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// Maps driver duplicate-key errors to gorm.ErrDuplicatedKey so
		// the store can tell conflicts from outages.
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("config: connect mysql: %w", err)
	}
	log.Info().Msg("config: mysql connected")
	return db, nil
}

// ConnectRedis opens the pooled Redis client used by the cache mirror.
// A connection failure is not fatal to the caller: the storefront runs
// without the fallback cache, it just loses the degraded read path.
func ConnectRedis(cfg Config) (radix.Client, error) {
	pool, err := radix.NewPool("tcp", cfg.RedisAddr, 10)
	if err != nil {
		return nil, fmt.Errorf("config: connect redis: %w", err)
	}
	log.Info().Str("addr", cfg.RedisAddr).Msg("config: redis connected")
	return pool, nil
}
