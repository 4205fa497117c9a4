package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/zodic/zodic/pkg/logger"
)

type LogConfig struct {
	Level      string `yaml:"level" json:"level"`
	File       string `yaml:"file" json:"file"` // optional
	MaxSize    int    `yaml:"max_size" json:"max_size"`
	MaxBackups int    `yaml:"max_backups" json:"max_backups"`
	MaxAge     int    `yaml:"max_age" json:"max_age"`
	Compress   bool   `yaml:"compress" json:"compress"`
}

// LoggerConfig converts to logger.Config; quiet suppresses console output.
func (l LogConfig) LoggerConfig(quiet bool) logger.Config {
	return logger.Config{
		Level:      l.Level,
		OutputFile: l.File,
		MaxSize:    l.MaxSize,
		MaxBackups: l.MaxBackups,
		MaxAge:     l.MaxAge,
		Compress:   l.Compress,
		Quiet:      quiet,
	}
}

// APIConfig configures cmd/api.
type APIConfig struct {
	Listen         string   `yaml:"listen" json:"listen"`
	DBPath         string   `yaml:"db_path" json:"db_path"`
	SessionDir     string   `yaml:"session_dir" json:"session_dir"`
	SessionKey     string   `yaml:"session_key" json:"session_key"` // 32 bytes hex/base64; empty means unencrypted
	IdentityURL    string   `yaml:"identity_url" json:"identity_url"`
	CORSOrigins    []string `yaml:"cors_origins" json:"cors_origins"`
	AdminEmails    []string `yaml:"admin_emails" json:"admin_emails"`
	CookieInsecure bool     `yaml:"cookie_insecure" json:"cookie_insecure"` // plain-http local runs only
	AuthRateLimit  int      `yaml:"auth_rate_limit" json:"auth_rate_limit"` // per client per minute on POST /api/auth/session
}

// WebConfig configures cmd/web and cmd/market-watch.
type WebConfig struct {
	Listen             string        `yaml:"listen" json:"listen"`
	BackendURL         string        `yaml:"backend_url" json:"backend_url"`
	PublicURL          string        `yaml:"public_url" json:"public_url"` // return address for the identity service
	AuthURL            string        `yaml:"auth_url" json:"auth_url"`
	CookieName         string        `yaml:"cookie_name" json:"cookie_name"`
	CookieSecure       bool          `yaml:"cookie_secure" json:"cookie_secure"`
	MarketCacheTTL     time.Duration `yaml:"market_cache_ttl" json:"market_cache_ttl"`
	LiveMarketInterval time.Duration `yaml:"live_market_interval" json:"live_market_interval"`
	BackendRetries     int           `yaml:"backend_retries" json:"backend_retries"`
	RequestTimeout     time.Duration `yaml:"request_timeout" json:"request_timeout"`
}

type Config struct {
	Log           LogConfig `yaml:"log" json:"log"`
	API           APIConfig `yaml:"api" json:"api"`
	Web           WebConfig `yaml:"web" json:"web"`
	MetricsListen string    `yaml:"metrics_listen" json:"metrics_listen"` // empty disables the debug server
}

// Default returns a config with every default applied.
func Default() *Config {
	c := &Config{}
	c.ApplyDefaults()
	return c
}

// ApplyDefaults fills zero fields.
func (c *Config) ApplyDefaults() {
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.MaxSize <= 0 {
		c.Log.MaxSize = 100
	}
	if c.Log.MaxBackups <= 0 {
		c.Log.MaxBackups = 3
	}
	if c.Log.MaxAge <= 0 {
		c.Log.MaxAge = 7
	}

	if c.API.Listen == "" {
		c.API.Listen = ":8001"
	}
	if c.API.DBPath == "" {
		c.API.DBPath = "data/zodic.db"
	}
	if c.API.SessionDir == "" {
		c.API.SessionDir = "data/sessions"
	}
	if c.API.IdentityURL == "" {
		c.API.IdentityURL = "https://demobackend.emergentagent.com"
	}
	if len(c.API.CORSOrigins) == 0 {
		c.API.CORSOrigins = []string{"*"}
	}
	if c.API.AuthRateLimit <= 0 {
		c.API.AuthRateLimit = 30
	}

	if c.Web.Listen == "" {
		c.Web.Listen = ":3000"
	}
	if c.Web.BackendURL == "" {
		c.Web.BackendURL = "http://localhost:8001"
	}
	if c.Web.PublicURL == "" {
		c.Web.PublicURL = "http://localhost:3000"
	}
	if c.Web.AuthURL == "" {
		c.Web.AuthURL = "https://auth.emergentagent.com"
	}
	if c.Web.CookieName == "" {
		c.Web.CookieName = "zodic_session"
	}
	if c.Web.MarketCacheTTL <= 0 {
		c.Web.MarketCacheTTL = 15 * time.Second
	}
	if c.Web.LiveMarketInterval <= 0 {
		c.Web.LiveMarketInterval = 5 * time.Second
	}
	if c.Web.BackendRetries < 0 {
		c.Web.BackendRetries = 0
	}
	if c.Web.RequestTimeout <= 0 {
		c.Web.RequestTimeout = 10 * time.Second
	}
}

func (c *Config) Validate() error {
	for name, raw := range map[string]string{
		"web.backend_url":  c.Web.BackendURL,
		"web.public_url":   c.Web.PublicURL,
		"web.auth_url":     c.Web.AuthURL,
		"api.identity_url": c.API.IdentityURL,
	} {
		u, err := url.Parse(raw)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("%s must be an absolute URL, got %q", name, raw)
		}
	}
	if strings.TrimSpace(c.Web.CookieName) == "" {
		return fmt.Errorf("web.cookie_name is required")
	}
	if c.Web.CookieName == "session_token" {
		// same-host deployments would overwrite each other
		return fmt.Errorf("web.cookie_name must differ from the backend cookie session_token")
	}
	return nil
}

// Load layers defaults < file < ZODIC_* environment.
func Load(filePath string) (*Config, error) {
	c := &Config{}
	if filePath != "" {
		if err := loadConfigFile(filePath, c); err != nil {
			return nil, fmt.Errorf("load config %s: %w", filePath, err)
		}
	}
	applyEnv(c)
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func loadConfigFile(filePath string, out *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(filePath)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse yaml: %w", err)
		}
	case ".json":
		if err := unmarshalJSON(data, out); err != nil {
			return fmt.Errorf("parse json: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q (want .yaml, .yml or .json)", ext)
	}
	return nil
}

// unmarshalJSON decodes JSON through the YAML decoder so durations such as
// "15s" parse the same way in both formats.
func unmarshalJSON(data []byte, out *Config) error {
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	b, err := yaml.Marshal(doc)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, out)
}

func applyEnv(c *Config) {
	setString(&c.Log.Level, "ZODIC_LOG_LEVEL")
	setString(&c.Log.File, "ZODIC_LOG_FILE")

	setString(&c.API.Listen, "ZODIC_API_LISTEN")
	setString(&c.API.DBPath, "ZODIC_API_DB")
	setString(&c.API.SessionDir, "ZODIC_API_SESSION_DIR")
	setString(&c.API.SessionKey, "ZODIC_API_SESSION_KEY")
	setString(&c.API.IdentityURL, "ZODIC_IDENTITY_URL")
	setList(&c.API.CORSOrigins, "CORS_ORIGINS")
	setList(&c.API.AdminEmails, "ZODIC_ADMIN_EMAILS")
	setBool(&c.API.CookieInsecure, "ZODIC_API_COOKIE_INSECURE")
	setInt(&c.API.AuthRateLimit, "ZODIC_API_AUTH_RATE_LIMIT")

	setString(&c.Web.Listen, "ZODIC_WEB_LISTEN")
	setString(&c.Web.BackendURL, "ZODIC_BACKEND_URL")
	setString(&c.Web.PublicURL, "ZODIC_PUBLIC_URL")
	setString(&c.Web.AuthURL, "ZODIC_AUTH_URL")
	setString(&c.Web.CookieName, "ZODIC_WEB_COOKIE")
	setBool(&c.Web.CookieSecure, "ZODIC_WEB_COOKIE_SECURE")
	setDuration(&c.Web.MarketCacheTTL, "ZODIC_MARKET_CACHE_TTL")
	setDuration(&c.Web.LiveMarketInterval, "ZODIC_LIVE_MARKET_INTERVAL")
	setInt(&c.Web.BackendRetries, "ZODIC_BACKEND_RETRIES")
	setDuration(&c.Web.RequestTimeout, "ZODIC_WEB_REQUEST_TIMEOUT")

	setString(&c.MetricsListen, "ZODIC_METRICS_LISTEN")
}

func getEnv(key string) (string, bool) {
	v := strings.TrimSpace(os.Getenv(key))
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := getEnv(key); ok {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	v, ok := getEnv(key)
	if !ok {
		return
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	*dst = out
}

func setBool(dst *bool, key string) {
	if v, ok := getEnv(key); ok {
		*dst = v == "true" || v == "1"
	}
}

func setInt(dst *int, key string) {
	if v, ok := getEnv(key); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v, ok := getEnv(key); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
