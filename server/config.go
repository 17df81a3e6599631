package main

import (
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

func getenv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return def
}

type Config struct {
	Addr        string
	DatabaseURL string
	LogLevel    slog.Level

	SessionCookieName string
	SessionTTL        time.Duration
	CookieSecure      bool
	CookieSameSite    http.SameSite

	UploadDir      string
	MaxUploadBytes int64
	AdminEmails    []string

	Brain BrainConfig
}

type BrainConfig struct {
	APIURL       string
	APIKey       string
	Model        string
	HistoryLimit int
	Timeout      time.Duration
}

func (c BrainConfig) Enabled() bool { return c.APIKey != "" }

// LoadConfig reads the environment; malformed values fall back to defaults.
func LoadConfig() Config {
	return Config{
		Addr:              getenv("ADDR", ":8080"),
		DatabaseURL:       getenv("DATABASE_URL", "postgres://postgres:postgres@db:5432/taskflow?sslmode=disable"),
		LogLevel:          parseLevel(getenv("LOG_LEVEL", "info")),
		SessionCookieName: getenv("SESSION_COOKIE_NAME", "taskflow_sess"),
		SessionTTL:        durationEnv("SESSION_TTL", 14*24*time.Hour),
		CookieSecure:      getenv("COOKIE_SECURE", "false") == "true",
		CookieSameSite:    parseSameSite(getenv("COOKIE_SAMESITE", "lax")),
		UploadDir:         getenv("UPLOAD_DIR", "uploads"),
		MaxUploadBytes:    int64(intEnv("MAX_UPLOAD_BYTES", 32<<20)),
		AdminEmails:       splitList(getenv("ADMIN_EMAILS", "")),
		Brain: BrainConfig{
			APIURL:       strings.TrimRight(getenv("BRAIN_API_URL", "https://api.openai.com/v1"), "/"),
			APIKey:       getenv("BRAIN_API_KEY", ""),
			Model:        getenv("BRAIN_MODEL", "gpt-4o-mini"),
			HistoryLimit: intEnv("BRAIN_HISTORY_LIMIT", 20),
			Timeout:      durationEnv("BRAIN_TIMEOUT", 60*time.Second),
		},
	}
}

func (c Config) IsAdminEmail(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, e := range c.AdminEmails {
		if e == email {
			return true
		}
	}
	return false
}

func durationEnv(key string, def time.Duration) time.Duration {
	if v := getenv(key, ""); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func intEnv(key string, def int) int {
	if v := getenv(key, ""); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		p = strings.ToLower(strings.TrimSpace(p))
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseSameSite(s string) http.SameSite {
	switch strings.ToLower(s) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	default:
		return http.SameSiteLaxMode
	}
}
