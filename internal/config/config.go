package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const EnvPrefix = "CAST"

type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	MongoURI  string `mapstructure:"mongo_uri"`
	MongoDB   string `mapstructure:"mongo_db"`
	RemoteURL string `mapstructure:"remote_url"`
}

type SessionConfig struct {
	RecencyWindow time.Duration `mapstructure:"recency_window"`
	// Allow limits which viewers a broadcaster answers. Empty allows all.
	Allow []string `mapstructure:"allow"`
}

type ScreenConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
	// RemoteWidth and RemoteHeight are the viewer's screen; zero means
	// gestures arrive in local coordinates.
	RemoteWidth  int `mapstructure:"remote_width"`
	RemoteHeight int `mapstructure:"remote_height"`
}

type ParticipantConfig struct {
	ID       string `mapstructure:"id"`
	Name     string `mapstructure:"name"`
	MemberID int    `mapstructure:"member_id"`
}

type IngestConfig struct {
	Addr string `mapstructure:"addr"`
	// Sink is where a viewer forwards received video RTP.
	Sink string `mapstructure:"sink"`
}

type RateConfig struct {
	Limit    int           `mapstructure:"limit"`
	Interval time.Duration `mapstructure:"interval"`
}

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`
	LogLevel   string        `mapstructure:"log_level"`
	ICEServers []string      `mapstructure:"ice_servers"`

	Store       StoreConfig       `mapstructure:"store"`
	Session     SessionConfig     `mapstructure:"session"`
	Screen      ScreenConfig      `mapstructure:"screen"`
	Participant ParticipantConfig `mapstructure:"participant"`
	Ingest      IngestConfig      `mapstructure:"ingest"`
	Rate        RateConfig        `mapstructure:"rate"`
}

// New returns a viper instance with defaults and CAST_* env overrides
// (CAST_STORE_DRIVER for store.driver). Callers may bind flags to it
// before calling Load.
func New() *viper.Viper {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("ice_servers", []string{"stun:stun.l.google.com:19302"})

	v.SetDefault("store.driver", "memory")
	v.SetDefault("store.mongo_uri", "mongodb://localhost:27017/?replicaSet=rs0")
	v.SetDefault("store.mongo_db", "cast")
	v.SetDefault("store.remote_url", "ws://localhost:8080/api/ws/store")

	v.SetDefault("session.recency_window", "10s")
	v.SetDefault("screen.width", 1080)
	v.SetDefault("screen.height", 1920)
	v.SetDefault("screen.remote_width", 0)
	v.SetDefault("screen.remote_height", 0)
	v.SetDefault("session.allow", []string{})

	v.SetDefault("participant.id", "")
	v.SetDefault("participant.name", "")
	v.SetDefault("participant.member_id", 0)

	v.SetDefault("ingest.addr", "127.0.0.1:5004")
	v.SetDefault("ingest.sink", "")

	v.SetDefault("rate.limit", 20)
	v.SetDefault("rate.interval", "1s")
	return v
}

// Load reads config/config.<CONFIG_ENV>.yaml with defaults.
func Load() (*Config, error) {
	return LoadFrom(New())
}

func LoadFrom(v *viper.Viper) (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	if err := v.ReadInConfig(); err != nil {
		fmt.Printf("⚠️ Config file not found (%s), using defaults\n", fileName)
	} else {
		fmt.Printf("✅ Loaded config: %s\n", fileName)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	fmt.Printf("🧩 Mode: %s | Port: %d | Store: %s\n", cfg.Mode, cfg.Port, cfg.Store.Driver)
	return &cfg, nil
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case "memory", "mongo", "remote":
	default:
		return fmt.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Session.RecencyWindow < 0 {
		return fmt.Errorf("config: negative session.recency_window")
	}
	if c.Screen.Width <= 0 || c.Screen.Height <= 0 {
		return fmt.Errorf("config: screen size must be positive")
	}
	return nil
}
