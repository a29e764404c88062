package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrSnakeDoc/uptimer/internal/logger"
)

// Store backends.
const (
	StoreFile   = "file"
	StoreRedis  = "redis"
	StoreSQLite = "sqlite"
)

// Mail transports.
const (
	MailLog     = "log"
	MailMailgun = "mailgun"
	MailSES     = "ses"
)

type Config struct {
	// Paths
	DataDir     string   // holds the state documents when UPTIME_STORE=file
	TargetsFile string   // monitors.json or a .yaml/.yml target list
	LogFile     string   // append-only monitor log; empty = console only
	ExtraLogs   []string // other logs retention rotates (e.g. cron.log)

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)
	Timezone  string // calendar day for retention/summary and mail timestamps

	// State
	Store           string        // file | redis | sqlite
	SQLitePath      string        // ex: /var/lib/uptimer/state.db
	FileLockTimeout time.Duration // max wait for a document lock

	// Redis
	RedisAddr           string        // ex: "localhost:6379"
	RedisUser           string        // optional
	RedisPassword       string        // optional
	RedisDB             int           // Redis DB number
	RedisPrefix         string        // key namespace
	RedisDT             time.Duration // Redis dial timeout (ex: 5s)
	RedisRT             time.Duration // Redis read timeout (ex: 3s)
	RedisWT             time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait        time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout    time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize       int           // Redis connection pool size
	RedisConnectTimeout time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval  time.Duration // Initial wait between retries (ex: 2s, grows exponentially)

	// Probing
	ProbeTimeout time.Duration
	MaxRedirects int
	UserAgent    string
	Workers      int

	// Mail
	MailTransport  string // log | mailgun | ses
	FromEmail      string
	FromName       string
	MailgunAPIKey  string
	MailgunDomain  string
	MailgunAPIBase string // optional, e.g. the EU endpoint
	MailTimeout    time.Duration
	SESRegion      string

	// Retention
	LogMaxSize     int64
	LogRetention   time.Duration
	AlertRetention time.Duration
	TempMaxAge     time.Duration

	// Status API
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	CheckInterval   time.Duration // > 0 runs cycles inside the API process
	AllowedCIDRS    []string      // optional, restrict access to specific IP (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy      bool          // true => trust X-Forwarded-For headers
}

// Load reads the environment. A .env file in the working directory is
// applied first; variables already set in the environment win.
func Load() *Config {
	_ = godotenv.Load()

	dataDir := getenv("UPTIME_DATA_DIR", "./data")

	cfg := &Config{
		DataDir:     dataDir,
		TargetsFile: getenv("UPTIME_TARGETS_FILE", filepath.Join(dataDir, "monitors.json")),
		LogFile:     getenv("UPTIME_LOG_FILE", filepath.Join(dataDir, "monitor.log")),
		ExtraLogs:   splitAndTrim(getenv("UPTIME_EXTRA_LOGS", "")),

		LogLevel:  getenv("UPTIME_LOG_LEVEL", "info"),
		PrettyLog: mustBool("UPTIME_PRETTY_LOG", logger.DefaultPretty()),
		Timezone:  getenv("UPTIME_TIMEZONE", "Europe/Tallinn"),

		Store:           strings.ToLower(getenv("UPTIME_STORE", StoreFile)),
		SQLitePath:      getenv("UPTIME_SQLITE_PATH", filepath.Join(dataDir, "uptimer.db")),
		FileLockTimeout: mustDuration("UPTIME_FILE_LOCK_TIMEOUT", 10*time.Second),

		RedisAddr:           getenv("UPTIME_REDIS_ADDR", ""),
		RedisUser:           getenv("UPTIME_REDIS_USERNAME", ""),
		RedisPassword:       getenv("UPTIME_REDIS_PASSWORD", ""),
		RedisDB:             getenvInt("UPTIME_REDIS_DB", 0),
		RedisPrefix:         getenv("UPTIME_REDIS_PREFIX", "uptimer:state:"),
		RedisDT:             mustDuration("UPTIME_REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:             mustDuration("UPTIME_REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:             mustDuration("UPTIME_REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:        mustDuration("UPTIME_REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:    mustDuration("UPTIME_REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:       getenvInt("UPTIME_REDIS_POOL_SIZE", 10),
		RedisConnectTimeout: mustDuration("UPTIME_REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:  mustDuration("UPTIME_REDIS_RETRY_INTERVAL", 2*time.Second),

		ProbeTimeout: mustDuration("UPTIME_PROBE_TIMEOUT", 10*time.Second),
		MaxRedirects: getenvInt("UPTIME_MAX_REDIRECTS", 5),
		UserAgent:    getenv("UPTIME_USER_AGENT", "Uptime Monitor/1.0"),
		Workers:      getenvInt("UPTIME_WORKERS", 8),

		MailTransport:  strings.ToLower(getenv("UPTIME_MAIL_TRANSPORT", MailLog)),
		FromEmail:      getenv("UPTIME_FROM_EMAIL", getenv("FROM_EMAIL", "")),
		FromName:       getenv("FROM_NAME", "Uptime Monitor"),
		MailgunAPIKey:  getenv("MAILGUN_API_KEY", ""),
		MailgunDomain:  getenv("MAILGUN_DOMAIN", ""),
		MailgunAPIBase: getenv("MAILGUN_API_BASE", ""),
		MailTimeout:    mustDuration("UPTIME_MAIL_TIMEOUT", 10*time.Second),
		SESRegion:      getenv("UPTIME_SES_REGION", ""),

		LogMaxSize:     getenvInt64("UPTIME_LOG_MAX_SIZE", 10*1024*1024),
		LogRetention:   mustDuration("UPTIME_LOG_RETENTION", 30*24*time.Hour),
		AlertRetention: mustDuration("UPTIME_ALERT_RETENTION", 90*24*time.Hour),
		TempMaxAge:     mustDuration("UPTIME_TEMP_MAX_AGE", 24*time.Hour),

		ListenPort:      getenv("UPTIME_API_LISTEN", ":8080"),
		ShutdownTimeout: mustDuration("UPTIME_SHUTDOWN_TIMEOUT", 5*time.Second),
		CheckInterval:   mustDuration("UPTIME_CHECK_INTERVAL", 0),
		AllowedCIDRS:    parseAllowedIPs(getenv("UPTIME_API_ALLOWED_CIDRS", "")),
		TrustProxy:      mustBool("UPTIME_TRUST_PROXY", false),
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = redact(cfg.RedisPassword)
		cfgCopy.MailgunAPIKey = redact(cfg.MailgunAPIKey)
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

// Validate checks backend and transport choices and the settings each one
// requires.
func (c *Config) Validate() error {
	if c.TargetsFile == "" {
		return fmt.Errorf("UPTIME_TARGETS_FILE is empty")
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid UPTIME_TIMEZONE %q: %w", c.Timezone, err)
	}

	switch c.Store {
	case StoreFile:
		if c.DataDir == "" {
			return fmt.Errorf("UPTIME_DATA_DIR is required when UPTIME_STORE=file")
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("UPTIME_REDIS_ADDR is required when UPTIME_STORE=redis")
		}
	case StoreSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("UPTIME_SQLITE_PATH is required when UPTIME_STORE=sqlite")
		}
	default:
		return fmt.Errorf("unknown UPTIME_STORE %q (want file, redis or sqlite)", c.Store)
	}

	switch c.MailTransport {
	case MailLog:
	case MailMailgun:
		if c.MailgunAPIKey == "" || c.MailgunDomain == "" {
			return fmt.Errorf("MAILGUN_API_KEY and MAILGUN_DOMAIN are required when UPTIME_MAIL_TRANSPORT=mailgun")
		}
	case MailSES:
		if c.SESRegion == "" {
			return fmt.Errorf("UPTIME_SES_REGION is required when UPTIME_MAIL_TRANSPORT=ses")
		}
	default:
		return fmt.Errorf("unknown UPTIME_MAIL_TRANSPORT %q (want log, mailgun or ses)", c.MailTransport)
	}
	if c.MailTransport != MailLog && c.FromEmail == "" {
		return fmt.Errorf("UPTIME_FROM_EMAIL is required when UPTIME_MAIL_TRANSPORT=%s", c.MailTransport)
	}

	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("UPTIME_PROBE_TIMEOUT must be > 0, got %v", c.ProbeTimeout)
	}
	if c.MaxRedirects < 0 {
		return fmt.Errorf("UPTIME_MAX_REDIRECTS must be >= 0, got %d", c.MaxRedirects)
	}
	if c.CheckInterval < 0 {
		return fmt.Errorf("UPTIME_CHECK_INTERVAL must be >= 0, got %v", c.CheckInterval)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("UPTIME_WORKERS must be > 0, got %d", c.Workers)
	}
	return nil
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func redact(s string) string {
	if s == "" {
		return ""
	}
	return "***REDACTED***"
}

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
