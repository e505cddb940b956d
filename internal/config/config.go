package config

import (
	"log/slog"
	"os"
	"time"
)

// Config is the explicit configuration object the engine and clients are
// built from. Credential presence independently gates each source: a source
// with no credentials is soft-skipped (zeroed contribution), never a failure.
type Config struct {
	MetaAccessToken string
	MetaAdAccountID string

	VTurbAPIKey string
	VTurbURL    string

	UTMifyToken string
	UTMifyURL   string

	KiwifySecret string
	SyncToken    string

	DBPath      string
	Port        string
	HTTPTimeout time.Duration
	LogLevel    slog.Level
	Timezone    *time.Location
}

func (c Config) MetaEnabled() bool   { return c.MetaAccessToken != "" && c.MetaAdAccountID != "" }
func (c Config) VTurbEnabled() bool  { return c.VTurbAPIKey != "" }
func (c Config) UTMifyEnabled() bool { return c.UTMifyToken != "" }

func FromEnv() Config {
	to := 15 * time.Second
	if v := os.Getenv("HTTP_TIMEOUT_SECONDS"); v != "" {
		if d, err := time.ParseDuration(v + "s"); err == nil {
			to = d
		}
	}
	lvl := slog.LevelInfo
	if os.Getenv("LOG_LEVEL") == "debug" {
		lvl = slog.LevelDebug
	}
	tz := time.UTC
	if v := os.Getenv("TIMEZONE"); v != "" {
		if loc, err := time.LoadLocation(v); err == nil {
			tz = loc
		}
	}
	return Config{
		MetaAccessToken: os.Getenv("META_ACCESS_TOKEN"),
		MetaAdAccountID: os.Getenv("META_AD_ACCOUNT_ID"),
		VTurbAPIKey:     os.Getenv("VTURB_API_KEY"),
		VTurbURL:        envOr("VTURB_API_URL", "https://analytics.vturb.net"),
		UTMifyToken:     os.Getenv("UTMIFY_API_TOKEN"),
		UTMifyURL:       envOr("UTMIFY_API_URL", "https://api.utmify.com.br/api-credentials"),
		KiwifySecret:    os.Getenv("KIWIFY_SECRET"),
		SyncToken:       os.Getenv("SYNC_TOKEN"),
		DBPath:          envOr("DB_PATH", "dashdesenrolado.db"),
		Port:            envOr("PORT", "8080"),
		HTTPTimeout:     to,
		LogLevel:        lvl,
		Timezone:        tz,
	}
}

func envOr(k, def string) string {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	return v
}
