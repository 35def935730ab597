package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode           string        `mapstructure:"mode"`
	Port           int           `mapstructure:"port"`
	StaticPath     string        `mapstructure:"static_path"`
	LogLevel       string        `mapstructure:"log_level"`
	ReadLimit      int64         `mapstructure:"read_limit"`
	PingPeriod     time.Duration `mapstructure:"ping_period"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	AuthTimeout    time.Duration `mapstructure:"auth_timeout"`
	CleanupTimeout time.Duration `mapstructure:"cleanup_timeout"`

	Presence  PresenceConfig  `mapstructure:"presence"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Postgres  PostgresConfig  `mapstructure:"postgres"`
	NATS      NATSConfig      `mapstructure:"nats"`
}

type PresenceConfig struct {
	TTL       time.Duration `mapstructure:"ttl"`
	ScanCount int64         `mapstructure:"scan_count"`
}

type AuthConfig struct {
	Secret        string `mapstructure:"secret"`
	CheckSessions bool   `mapstructure:"check_sessions"`
}

type RateLimitConfig struct {
	Events   int           `mapstructure:"events"`
	Interval time.Duration `mapstructure:"interval"`
}

// RedisConfig: empty Addr keeps presence, the registry and call sessions in memory.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	LockTTL  time.Duration `mapstructure:"lock_ttl"`
}

// PostgresConfig: empty DSN keeps messages in memory.
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// NATSConfig: empty URL keeps room fan-out inside the process.
type NATSConfig struct {
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("auth_timeout", "10s")
	v.SetDefault("cleanup_timeout", "10s")
	v.SetDefault("presence.ttl", "60s")
	v.SetDefault("presence.scan_count", 1000)
	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.check_sessions", false)
	v.SetDefault("rate_limit.events", 20)
	v.SetDefault("rate_limit.interval", "10s")
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.lock_ttl", "10s")
	v.SetDefault("postgres.dsn", "")
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.subject", "coachline.rooms")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default) and applies
// COACHLINE_* environment overrides. A missing file is not an error.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.SetEnvPrefix("COACHLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log.Info().Str("module", "config").Str("mode", cfg.Mode).Int("port", cfg.Port).
		Bool("redis", cfg.Redis.Addr != "").Bool("postgres", cfg.Postgres.DSN != "").Bool("nats", cfg.NATS.URL != "").
		Msg("config ready")
	return &cfg, nil
}

func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	if c.PingPeriod <= 0 {
		return fmt.Errorf("ping_period must be positive")
	}
	if c.Presence.TTL <= 0 {
		return fmt.Errorf("presence.ttl must be positive")
	}
	// Fan-out across processes needs the call sessions those processes share.
	if c.NATS.URL != "" && c.Redis.Addr == "" {
		return fmt.Errorf("nats.url requires redis.addr")
	}
	if c.Auth.CheckSessions && c.Postgres.DSN == "" {
		return fmt.Errorf("auth.check_sessions requires postgres.dsn")
	}
	return nil
}
