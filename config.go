package main

import (
	"crypto/tls"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"join-api/api"
	"join-api/live"
)

const (
	driverTables = "tables"
	driverSQLite = "sqlite"
)

type config struct {
	Driver        string
	ConnStr       string
	TasksTable    string
	ContactsTable string
	UsersTable    string
	StatusQueue   string
	SQLitePath    string

	RedisConn      string
	CacheTTL       time.Duration
	DeduperTTL     time.Duration
	ChangesChannel string

	AuthSecret   string
	AuthIssuer   string
	AuthAudience string
	AuthJWKSURL  string
	SessionTTL   time.Duration

	Status api.StatusSyncConfig

	WebRoot       string
	SecureCookies bool
	ListenAddr    string
}

func loadConfig() config {
	if dbg, err := strconv.ParseBool(os.Getenv("DEBUG")); err == nil && dbg {
		log.SetLevel(log.DebugLevel)
	}

	cfg := config{
		Driver:         strings.ToLower(envOr("STORAGE_DRIVER", driverTables)),
		ConnStr:        os.Getenv("STORAGE_CONNECTION_STRING"),
		TasksTable:     os.Getenv("TASKS_TABLE"),
		ContactsTable:  os.Getenv("CONTACTS_TABLE"),
		UsersTable:     os.Getenv("USERS_TABLE"),
		StatusQueue:    os.Getenv("STATUS_QUEUE"),
		SQLitePath:     envOr("SQLITE_PATH", "join.db"),
		RedisConn:      os.Getenv("REDIS_CONNECTION_STRING"),
		CacheTTL:       envDuration("CACHE_TTL", 30*time.Second),
		DeduperTTL:     envDuration("DEDUPER_TTL", 24*time.Hour),
		ChangesChannel: envOr("CHANGES_CHANNEL", live.DefaultChannel),
		AuthSecret:     os.Getenv("AUTH_SECRET"),
		AuthIssuer:     os.Getenv("AUTH_ISSUER"),
		AuthAudience:   os.Getenv("AUTH_AUDIENCE"),
		AuthJWKSURL:    os.Getenv("AUTH_JWKS_URL"),
		SessionTTL:     envDuration("SESSION_TTL", 12*time.Hour),
		Status: api.StatusSyncConfig{
			Workers:        envInt("STATUS_WORKERS", runtime.NumCPU()),
			Buffer:         envInt("STATUS_BUFFER", 64),
			Timeout:        envDuration("STATUS_TIMEOUT", 10*time.Second),
			HandoffTimeout: envDuration("STATUS_HANDOFF_TIMEOUT", 50*time.Millisecond),
		},
		WebRoot:    os.Getenv("WEB_ROOT"),
		ListenAddr: ":" + envOr("PORT", "8080"),
	}
	if v := os.Getenv("SECURE_COOKIES"); v != "" {
		secure, err := strconv.ParseBool(v)
		if err != nil {
			log.Fatalf("invalid SECURE_COOKIES: %v", err)
		}
		cfg.SecureCookies = secure
	}

	switch cfg.Driver {
	case driverTables:
		if cfg.ConnStr == "" || cfg.TasksTable == "" || cfg.ContactsTable == "" || cfg.UsersTable == "" {
			log.Fatal("missing storage config")
		}
	case driverSQLite:
	default:
		log.Fatalf("invalid STORAGE_DRIVER %q", cfg.Driver)
	}
	if cfg.StatusQueue != "" && cfg.ConnStr == "" {
		log.Fatal("STATUS_QUEUE requires STORAGE_CONNECTION_STRING")
	}
	if cfg.AuthSecret == "" {
		log.Fatal("missing AUTH_SECRET")
	}
	return cfg
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return n
}

func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Fatalf("invalid %s: %q", key, v)
	}
	return d
}

// redisOptions accepts a redis:// URL or the Azure style
// "host:port,password=...,ssl=true".
func redisOptions(conn string) *redis.Options {
	opts, err := redis.ParseURL(conn)
	if err == nil {
		return opts
	}
	parts := strings.Split(conn, ",")
	opts = &redis.Options{Addr: parts[0]}
	for _, p := range parts[1:] {
		kv := strings.SplitN(p, "=", 2)
		if len(kv) != 2 {
			continue
		}
		switch strings.ToLower(strings.TrimSpace(kv[0])) {
		case "password":
			opts.Password = kv[1]
		case "ssl":
			if strings.EqualFold(kv[1], "true") {
				opts.TLSConfig = &tls.Config{}
			}
		}
	}
	return opts
}
