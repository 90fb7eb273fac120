package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

type Configuration struct {
	ListenAddr    string
	SessionSecret string
	Upstream      UpstreamSettings
	Cache         struct {
		// ListTTL is the staleness window for the phone/group list caches.
		// Mutations invalidate explicitly; this only bounds passive reads.
		ListTTL time.Duration
	}
	Telemetry struct {
		PollInterval time.Duration
		Retention    time.Duration
	}
	Database struct {
		User     string
		Password string
		Host     string
		DB       string
	}
}

type UpstreamSettings struct {
	// BaseURL is the fleet REST API root.
	BaseURL string
	// FeedURL is the websocket endpoint of the status broker.
	FeedURL string
	// ChannelPrefix scopes the status channel; the signed-in principal's id
	// is appended after '#'.
	ChannelPrefix string
}

// DatabaseURL assembles the Postgres connection string.
func (c *Configuration) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s/%s?sslmode=disable",
		url.QueryEscape(c.Database.User), url.QueryEscape(c.Database.Password),
		c.Database.Host, c.Database.DB)
}

// Load reads the configuration file and environment overrides.
func Load(path string) (Configuration, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("FLEET")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("listenaddr", ":8080")
	v.SetDefault("cache.listttl", "30s")
	v.SetDefault("telemetry.pollinterval", "1m")
	v.SetDefault("telemetry.retention", "720h")
	v.SetDefault("upstream.channelprefix", "phones")

	if err := v.ReadInConfig(); err != nil {
		return Configuration{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Configuration
	err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
	)))
	if err != nil {
		return Configuration{}, fmt.Errorf("parsing config: %w", err)
	}

	if cfg.Upstream.BaseURL == "" {
		return Configuration{}, fmt.Errorf("config: upstream.baseurl is required")
	}
	if cfg.Upstream.FeedURL == "" {
		return Configuration{}, fmt.Errorf("config: upstream.feedurl is required")
	}
	if cfg.SessionSecret == "" {
		return Configuration{}, fmt.Errorf("config: sessionsecret is required (generate one with genkey)")
	}
	return cfg, nil
}
