package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/wfunc/tetris/engine"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Game     GameConfig     `mapstructure:"game"`
	Timer    TimerConfig    `mapstructure:"timer"`
	Session  SessionConfig  `mapstructure:"session"`
	Database DatabaseConfig `mapstructure:"database"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	RPCAddress     string `mapstructure:"rpc_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
	StaticDir      string `mapstructure:"static_dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// GameConfig tunes gravity and room behaviour.
type GameConfig struct {
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MinInterval     time.Duration `mapstructure:"min_interval"`
	IntervalStep    time.Duration `mapstructure:"interval_step"`
	StartDelay      time.Duration `mapstructure:"start_delay"`
	Seed            uint64        `mapstructure:"seed"`
	MaxSpectators   int           `mapstructure:"max_spectators"`
}

// Engine converts the gravity settings for engine.New.
func (g GameConfig) Engine() engine.Config {
	return engine.Config{
		InitialInterval: g.InitialInterval,
		MinInterval:     g.MinInterval,
		IntervalStep:    g.IntervalStep,
	}
}

type TimerConfig struct {
	Resolution time.Duration `mapstructure:"resolution"`
}

type SessionConfig struct {
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	IdleTimeout       time.Duration `mapstructure:"idle_timeout"`
}

type DatabaseConfig struct {
	Driver   string         `mapstructure:"driver"`
	Postgres PostgresConfig `mapstructure:"postgres"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
}

func setDefaults(v *viper.Viper) {
	defaults := engine.DefaultConfig()

	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.rpc_address", ":8081")
	v.SetDefault("server.metrics_address", ":9090")
	v.SetDefault("server.static_dir", "public")
	v.SetDefault("log.level", "info")
	v.SetDefault("game.initial_interval", defaults.InitialInterval)
	v.SetDefault("game.min_interval", defaults.MinInterval)
	v.SetDefault("game.interval_step", defaults.IntervalStep)
	v.SetDefault("game.start_delay", 3*time.Second)
	v.SetDefault("game.seed", 0)
	v.SetDefault("game.max_spectators", 8)
	v.SetDefault("timer.resolution", 10*time.Millisecond)
	v.SetDefault("session.heartbeat_interval", 15*time.Second)
	v.SetDefault("session.idle_timeout", 2*time.Minute)
	v.SetDefault("database.driver", "memory")
	v.SetDefault("database.postgres.host", "localhost")
	v.SetDefault("database.postgres.port", 5432)
	v.SetDefault("database.postgres.dbname", "tetris")
}

// LoadConfig reads config.yaml from path. A missing file leaves the defaults
// in place; environment variables such as SERVER_HTTP_ADDRESS override both.
func LoadConfig(path string) (config *Config, err error) {
	v := viper.New()
	setDefaults(v)

	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err = v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	err = v.Unmarshal(&config)
	return
}
