package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dErrors "mcpauth/pkg/domain-errors"
)

const (
	DefaultCookieName      = "mcp-approved-clients"
	DefaultUpstreamScope   = "read:user"
	DefaultUpstreamTimeout = 10 * time.Second
	DefaultAccessTokenTTL  = time.Hour
	DefaultGrantTTL        = 10 * time.Minute

	DefaultRegisterPerMinute = 10
	DefaultTokenPerMinute    = 60
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr      string `yaml:"addr"`
	PublicURL string `yaml:"public_url"`
	LogLevel  string `yaml:"log_level"`

	// TrustProxy takes the client IP from X-Forwarded-For/X-Real-IP. Enable
	// only behind a proxy that overwrites those headers.
	TrustProxy bool `yaml:"trust_proxy"`

	Upstream  Upstream    `yaml:"upstream"`
	Cookie    Cookie      `yaml:"cookie"`
	Dialog    Dialog      `yaml:"dialog"`
	JWT       JWT         `yaml:"jwt"`
	Redis     RedisConfig `yaml:"redis"`
	Postgres  Postgres    `yaml:"postgres"`
	Kafka     Kafka       `yaml:"kafka"`
	RateLimit RateLimit   `yaml:"rate_limit"`

	GrantTTL time.Duration `yaml:"grant_ttl"`
}

// Upstream is the identity provider the broker delegates authentication to.
type Upstream struct {
	ClientID     string        `yaml:"client_id"`
	ClientSecret string        `yaml:"-"`
	AuthorizeURL string        `yaml:"authorize_url"`
	TokenURL     string        `yaml:"token_url"`
	APIBaseURL   string        `yaml:"api_base_url"`
	Scope        string        `yaml:"scope"`
	Timeout      time.Duration `yaml:"timeout"`
}

// Cookie configures the signed consent cache cookie.
type Cookie struct {
	Secret string `yaml:"-"`
	Name   string `yaml:"name"`
	Domain string `yaml:"domain"`
}

// Dialog is the server metadata shown on the approval page.
type Dialog struct {
	ServerName  string `yaml:"server_name"`
	LogoURL     string `yaml:"logo_url"`
	Description string `yaml:"description"`
}

// JWT configures downstream access tokens.
type JWT struct {
	SigningKey     string        `yaml:"-"`
	Issuer         string        `yaml:"issuer"`
	AccessTokenTTL time.Duration `yaml:"access_token_ttl"`
}

// RedisConfig is optional; an empty URL selects in-memory stores.
type RedisConfig struct {
	URL          string        `yaml:"url"`
	PoolSize     int           `yaml:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// Postgres is optional; when set the client registry is persisted there.
type Postgres struct {
	DSN string `yaml:"dsn"`
}

// Kafka is optional; when brokers are set audit events are produced there.
type Kafka struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// RateLimit bounds unauthenticated provider endpoints per client IP. Counters
// live in Redis when it is configured.
type RateLimit struct {
	Disabled          bool `yaml:"disabled"`
	RegisterPerMinute int  `yaml:"register_per_minute"`
	TokenPerMinute    int  `yaml:"token_per_minute"`
}

// FromEnv builds a Server config from environment variables so main stays lean.
// Secrets are only ever read from the environment.
func FromEnv() Server {
	return Server{
		Addr:       getEnv("MCPAUTH_ADDR", ":8788"),
		PublicURL:  strings.TrimSuffix(os.Getenv("MCPAUTH_PUBLIC_URL"), "/"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		TrustProxy: os.Getenv("TRUST_PROXY") == "true",
		Upstream: Upstream{
			ClientID:     os.Getenv("GITHUB_CLIENT_ID"),
			ClientSecret: os.Getenv("GITHUB_CLIENT_SECRET"),
			AuthorizeURL: getEnv("UPSTREAM_AUTHORIZE_URL", "https://github.com/login/oauth/authorize"),
			TokenURL:     getEnv("UPSTREAM_TOKEN_URL", "https://github.com/login/oauth/access_token"),
			APIBaseURL:   os.Getenv("UPSTREAM_API_BASE_URL"),
			Scope:        getEnv("UPSTREAM_SCOPE", DefaultUpstreamScope),
			Timeout:      getDuration("UPSTREAM_TIMEOUT", DefaultUpstreamTimeout),
		},
		Cookie: Cookie{
			Secret: os.Getenv("COOKIE_ENCRYPTION_KEY"),
			Name:   getEnv("COOKIE_NAME", DefaultCookieName),
			Domain: os.Getenv("COOKIE_DOMAIN"),
		},
		Dialog: Dialog{
			ServerName:  getEnv("SERVER_NAME", "MCP Server"),
			LogoURL:     os.Getenv("SERVER_LOGO_URL"),
			Description: os.Getenv("SERVER_DESCRIPTION"),
		},
		JWT: JWT{
			SigningKey:     os.Getenv("JWT_SIGNING_KEY"),
			Issuer:         getEnv("JWT_ISSUER", "mcpauth"),
			AccessTokenTTL: getDuration("ACCESS_TOKEN_TTL", DefaultAccessTokenTTL),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Postgres: Postgres{
			DSN: os.Getenv("DATABASE_URL"),
		},
		Kafka: Kafka{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   getEnv("KAFKA_AUDIT_TOPIC", "mcpauth.audit"),
		},
		RateLimit: RateLimit{
			Disabled:          os.Getenv("RATE_LIMIT_DISABLED") == "true",
			RegisterPerMinute: getInt("RATE_LIMIT_REGISTER_PER_MINUTE", DefaultRegisterPerMinute),
			TokenPerMinute:    getInt("RATE_LIMIT_TOKEN_PER_MINUTE", DefaultTokenPerMinute),
		},
		GrantTTL: getDuration("GRANT_TTL", DefaultGrantTTL),
	}
}

// LoadFile overlays non-secret settings from a YAML file onto cfg.
// A missing path is not an error.
func LoadFile(path string, cfg *Server) error {
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.PublicURL = strings.TrimSuffix(cfg.PublicURL, "/")
	return nil
}

// Validate rejects configurations the broker must not start with. The cookie
// signing key has no default on purpose.
func (s Server) Validate() error {
	var missing []string
	if s.Cookie.Secret == "" {
		missing = append(missing, "COOKIE_ENCRYPTION_KEY")
	}
	if s.Upstream.ClientID == "" {
		missing = append(missing, "GITHUB_CLIENT_ID")
	}
	if s.Upstream.ClientSecret == "" {
		missing = append(missing, "GITHUB_CLIENT_SECRET")
	}
	if s.JWT.SigningKey == "" {
		missing = append(missing, "JWT_SIGNING_KEY")
	}
	if len(missing) > 0 {
		return dErrors.New(dErrors.CodeConfiguration, "missing required settings: "+strings.Join(missing, ", "))
	}
	if s.Cookie.Name == "" {
		return dErrors.New(dErrors.CodeConfiguration, "cookie name cannot be empty")
	}
	if s.Upstream.AuthorizeURL == "" || s.Upstream.TokenURL == "" {
		return dErrors.New(dErrors.CodeConfiguration, "upstream authorize and token URLs are required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
