package config

import (
	"fmt"
	"net"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Env       string   `env:"ENV" envDefault:"development"`
	BindAddr  string   `env:"BIND_ADDR" envDefault:":8080"`
	LogLevel  string   `env:"LOG_LEVEL" envDefault:"warn"`
	LogFormat string   `env:"LOG_FORMAT" envDefault:"text"`
	DebugMode bool     `env:"DEBUG_MODE" envDefault:"false"`
	Origins   []string `env:"CORS_ORIGINS" envDefault:"http://localhost:3000" envSeparator:","`
	Postgres  Postgres
	KeepAlive KeepAlive
}

type Postgres struct {
	Url        string `env:"DATABASE_URL,required,notEmpty"`
	SSLMode    string `env:"DB_SSL_MODE" envDefault:"verify-full"`
	CACertPath string `env:"CA_CERT_PATH" envDefault:"/etc/secrets/ca.pem"`
}

type KeepAlive struct {
	Enabled  bool          `env:"KEEPALIVE_ENABLED" envDefault:"true"`
	Url      string        `env:"KEEPALIVE_URL"`
	Interval time.Duration `env:"KEEPALIVE_INTERVAL" envDefault:"10m"`
	Timeout  time.Duration `env:"KEEPALIVE_TIMEOUT" envDefault:"30s"`
}

// Importer is the configuration of the out of band seeding tool.
type Importer struct {
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	Feed      string `env:"OPDS_FEED,required,notEmpty"`
	MaxPages  int    `env:"OPDS_MAX_PAGES" envDefault:"0"`
	Postgres  Postgres
}

func LoadImporter() (*Importer, error) {
	cfg := &Importer{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing importer config: %w", err)
	}

	return cfg, nil
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}

	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.KeepAlive.Url == "" {
		cfg.KeepAlive.Url = selfUrl(cfg.BindAddr) + "/health"
	}

	if cfg.KeepAlive.Enabled && cfg.KeepAlive.Interval <= 0 {
		return nil, fmt.Errorf("KEEPALIVE_INTERVAL must be positive, got %s", cfg.KeepAlive.Interval)
	}

	return cfg, nil
}

// selfUrl turns a listen address like ":8080" or "0.0.0.0:8080" into a URL reaching this process.
func selfUrl(bindAddr string) string {
	host, port, err := net.SplitHostPort(bindAddr)
	if err != nil {
		return "http://" + bindAddr
	}

	if ip := net.ParseIP(host); host == "" || (ip != nil && ip.IsUnspecified()) {
		host = "127.0.0.1"
	}

	return "http://" + net.JoinHostPort(host, port)
}
