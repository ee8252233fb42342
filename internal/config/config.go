package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	Port                  string
	AllowedOrigin         string
	DatabaseURL           string
	RedisAddr             string
	RedisPassword         string
	RedisDB               int
	StandID               string
	ReportTTLSeconds      int
	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	LowStockThreshold     int
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("REPORT_TTL_SECONDS", "15"))
	if err != nil || ttl < 1 {
		ttl = 15
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}
	lowStock, err := strconv.Atoi(getEnv("LOW_STOCK_THRESHOLD", "5"))
	if err != nil || lowStock < 0 {
		lowStock = 5
	}

	cfg := Config{
		Port:                  getEnv("PORT", "8080"),
		AllowedOrigin:         getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		RedisDB:               redisDB,
		StandID:               getEnv("STAND_ID", "main-stand"),
		ReportTTLSeconds:      ttl,
		AuthSecret:            strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes: tokenTTL,
		ManagerPIN:            strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		LowStockThreshold:     lowStock,
	}

	return cfg
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
