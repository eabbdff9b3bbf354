// Package config はアプリケーション設定の読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// AI Gateway
	OpenAIAPIKey      string
	AIModel           string
	AITimeout         time.Duration
	AIMaxOutputTokens int

	// Budget Limiter（日次ソフト上限。Ledgerが確定的な上限であり、こちらは第二の防壁）
	BudgetUserDailyTokens   int64
	BudgetGlobalDailyTokens int64
	BudgetDisabled          bool

	// Entitlement
	FreeJobSlotCeiling     int
	SubscriptionExtendDays int

	// Rate Limit（1アカウントあたりのターン流量）
	RateLimitTurnsPerMinute int

	// Session
	SessionRetentionDays int

	// Server
	ServerPort        string
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// カレントディレクトリに.envがあればロードする（ローカル開発用。なければ無視）。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	// .envはあれば読む。本番環境では存在しないのが正常。
	_ = godotenv.Load()

	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	if cfg.OpenAIAPIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	cfg.AIModel = getEnvString("AI_MODEL", "gpt-4o-mini")
	cfg.AITimeout = getEnvDuration("AI_TIMEOUT", 15*time.Second)
	cfg.AIMaxOutputTokens = getEnvInt("AI_MAX_OUTPUT_TOKENS", 512)
	cfg.BudgetUserDailyTokens = getEnvInt64("BUDGET_USER_DAILY_TOKENS", 20000)
	cfg.BudgetGlobalDailyTokens = getEnvInt64("BUDGET_GLOBAL_DAILY_TOKENS", 2000000)
	cfg.BudgetDisabled = getEnvBool("BUDGET_DISABLED", false)
	cfg.FreeJobSlotCeiling = getEnvInt("FREE_JOB_SLOT_CEILING", 2)
	cfg.SubscriptionExtendDays = getEnvInt("SUBSCRIPTION_EXTEND_DAYS", 30)
	cfg.RateLimitTurnsPerMinute = getEnvInt("RATE_LIMIT_TURNS", 30)
	cfg.SessionRetentionDays = getEnvInt("SESSION_RETENTION_DAYS", 90)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	return cfg, nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvInt64(key string, defaultVal int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return defaultVal
	}
	return i
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}
