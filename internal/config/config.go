package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	AppEnv        string
	HTTPAddr      string
	RedisAddr     string
	RedisPassword string
	DataDir       string
	BackupDir     string
	CatalogFile   string

	SupabaseURL        string
	SupabaseServiceKey string
	SupabaseBucket     string

	WebhookURL    string
	WebhookSecret string

	// Inter-item delay: DelayBase + rand(DelayJitter), grown by DelayMultiplier per retry up to DelayMax
	DelayBase       time.Duration
	DelayJitter     time.Duration
	DelayMultiplier float64
	DelayMax        time.Duration
	NavRetries      int

	NavTimeout   time.Duration
	SettleDelay  time.Duration
	NavPerMinute int
	Headless     bool

	// desktop or mobile header profile
	BrowserStrategy string

	PageCacheTTL   time.Duration
	TaskMaxRetries int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getenvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

// getenvDuration accepts Go durations ("1500ms", "2s") or a bare number of milliseconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	return def
}

// Load reads .env (if present) and the process environment.
func Load() Config {
	_ = godotenv.Load()

	dataDir := getenv("DATA_DIR", "./data")
	cfg := Config{
		AppEnv:        getenv("APP_ENV", "development"),
		HTTPAddr:      getenv("HTTP_ADDR", ":8081"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		DataDir:       dataDir,
		BackupDir:     getenv("BACKUP_DIR", filepath.Join(dataDir, "backups")),
		CatalogFile:   os.Getenv("CATALOG_FILE"),

		SupabaseURL:        os.Getenv("SUPABASE_URL"),
		SupabaseServiceKey: os.Getenv("SUPABASE_SERVICE_ROLE_KEY"),
		SupabaseBucket:     getenv("SUPABASE_STORAGE_BUCKET", "catalog"),

		WebhookURL:    os.Getenv("WEBHOOK_URL"),
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),

		DelayBase:       getenvDuration("DELAY_BASE", 2*time.Second),
		DelayJitter:     getenvDuration("DELAY_JITTER", 2*time.Second),
		DelayMultiplier: getenvFloat("DELAY_MULTIPLIER", 2),
		DelayMax:        getenvDuration("DELAY_MAX", 30*time.Second),
		NavRetries:      getenvInt("NAV_RETRIES", 2),

		NavTimeout:   getenvDuration("NAV_TIMEOUT", 20*time.Second),
		SettleDelay:  getenvDuration("SETTLE_DELAY", 3*time.Second),
		NavPerMinute: getenvInt("NAV_PER_MINUTE", 20),
		Headless:     getenvBool("HEADLESS", true),

		BrowserStrategy: getenv("BROWSER_STRATEGY", "desktop"),

		PageCacheTTL:   getenvDuration("PAGE_CACHE_TTL", 6*time.Hour),
		TaskMaxRetries: getenvInt("TASK_MAX_RETRIES", 0),
	}
	return cfg
}

// RequireRedis is used by commands that cannot run without a queue.
func (c Config) RequireRedis() error {
	if c.RedisAddr == "" {
		return fmt.Errorf("REDIS_ADDR is required")
	}
	return nil
}
