package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

const (
	configFilePathENV = "CONFIG_FILE"
	envPrefix         = "DASH"
	defaultConfigFile = "dashboard.yaml"
	defaultConfigDir  = "configs"
)

// Config ...
type Config struct {
	LogLevel string `mapstructure:"log_level"`

	Backend struct {
		BaseURL string `mapstructure:"base_url"` // REST, например http://localhost:5000/api
		PushURL string `mapstructure:"push_url"` // ws://localhost:5000/ws
	} `mapstructure:"backend"`

	Poll struct {
		Interval time.Duration `mapstructure:"interval"` // период опроса, по умолчанию 60s
		Timeout  time.Duration `mapstructure:"timeout"`  // таймаут одного запроса, 10s
		// Через сколько интервалов без сигналов поток считается Unknown.
		StaleFactor float64 `mapstructure:"stale_factor"`
		// После скольких подряд неудачных циклов поднимаем алерт.
		EscalateAfter int `mapstructure:"escalate_after"`
	} `mapstructure:"poll"`

	Push struct {
		PingInterval time.Duration `mapstructure:"ping_interval"`
		MaxBackoff   time.Duration `mapstructure:"max_backoff"`
	} `mapstructure:"push"`

	Service struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"service"`

	Telegram struct {
		Token  string `mapstructure:"token"`
		ChatID int64  `mapstructure:"chat_id"`
	} `mapstructure:"telegram"`

	DB string `mapstructure:"db_dsn"` // пусто — журнал в noop

	Jaeger struct {
		Host string `mapstructure:"host"`
		Port int    `mapstructure:"port"`
	} `mapstructure:"jaeger"`
}

// StaleAfter — сколько можно молчать, прежде чем StreamStatus станет Unknown.
func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.Poll.StaleFactor * float64(c.Poll.Interval))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log_level", "info")
	v.SetDefault("backend.base_url", "http://localhost:5000/api")
	v.SetDefault("backend.push_url", "ws://localhost:5000/ws")
	v.SetDefault("poll.interval", "60s")
	v.SetDefault("poll.timeout", "10s")
	v.SetDefault("poll.stale_factor", 2.0)
	v.SetDefault("poll.escalate_after", 3)
	v.SetDefault("push.ping_interval", "20s")
	v.SetDefault("push.max_backoff", "10s")
	v.SetDefault("service.addr", ":8080")
	v.SetDefault("telegram.token", "")
	v.SetDefault("telegram.chat_id", 0)
	v.SetDefault("db_dsn", "")
	v.SetDefault("jaeger.host", "")
	v.SetDefault("jaeger.port", 6831)
}

// NewConfig читает configs/<CONFIG_FILE> (если есть) и env с префиксом DASH_.
func NewConfig() (*Config, error) {
	_ = godotenv.Load()

	configFileName := os.Getenv(configFilePathENV)
	if configFileName == "" {
		configFileName = filepath.Join(defaultConfigDir, defaultConfigFile)
	}
	return Load(configFileName)
}

// Load — то же самое, но с явным путём. Отсутствующий файл не ошибка: живём на дефолтах и env.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); statErr == nil {
				return nil, errors.Wrap(err, "read config file")
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Poll.Interval <= 0 {
		return errors.New("poll.interval must be > 0")
	}
	if c.Poll.Timeout <= 0 {
		return errors.New("poll.timeout must be > 0")
	}
	if c.Poll.StaleFactor <= 0 {
		return errors.New("poll.stale_factor must be > 0")
	}
	if c.Poll.EscalateAfter < 1 {
		return errors.New("poll.escalate_after must be >= 1")
	}
	if c.Backend.BaseURL == "" {
		return errors.New("backend.base_url is required")
	}
	return nil
}
