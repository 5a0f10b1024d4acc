package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Bot        BotConfig        `mapstructure:"bot"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Storage    StorageConfig    `mapstructure:"storage"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Dispatch   DispatchConfig   `mapstructure:"dispatch"`
	Context    ContextConfig    `mapstructure:"context"`
	Session    SessionConfig    `mapstructure:"session"`
	Markets    MarketsConfig    `mapstructure:"markets"`
	Logging    LoggingConfig    `mapstructure:"logging"`
	Monitoring MonitoringConfig `mapstructure:"monitoring"`
	I18n       I18nConfig       `mapstructure:"i18n"`
}

type BotConfig struct {
	Token         string  `mapstructure:"token"`
	UpdateTimeout int     `mapstructure:"update_timeout"`
	AdminIDs      []int64 `mapstructure:"admin_ids"`
	FooterText    string  `mapstructure:"footer_text"`
}

type ProvidersConfig struct {
	Default    string         `mapstructure:"default"`
	Safety     string         `mapstructure:"safety"`
	OpenRouter EndpointConfig `mapstructure:"openrouter"`
	Gemini     EndpointConfig `mapstructure:"gemini"`
	Claude     EndpointConfig `mapstructure:"claude"`
	Mistral    EndpointConfig `mapstructure:"mistral"`
	DeepSeek   EndpointConfig `mapstructure:"deepseek"`
}

type EndpointConfig struct {
	BaseURL   string        `mapstructure:"base_url"`
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int           `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	DataDir     string `mapstructure:"data_dir"`
	TrainingDir string `mapstructure:"training_dir"`
}

type CacheConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Backend string        `mapstructure:"backend"`
	TTL     time.Duration `mapstructure:"ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DispatchConfig struct {
	QueueSize         int           `mapstructure:"queue_size"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	RequestDelay      time.Duration `mapstructure:"request_delay"`
}

type ContextConfig struct {
	MaxMessages      int `mapstructure:"max_messages"`
	ArchiveThreshold int `mapstructure:"archive_threshold"`
}

type SessionConfig struct {
	Timeout         time.Duration `mapstructure:"timeout"`
	SweepInterval   time.Duration `mapstructure:"sweep_interval"`
	SaveInterval    time.Duration `mapstructure:"save_interval"`
	StatsInterval   time.Duration `mapstructure:"stats_interval"`
	RollupInterval  time.Duration `mapstructure:"rollup_interval"`
	ActiveUserAfter time.Duration `mapstructure:"active_user_after"`
}

type MarketsConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type LoggingConfig struct {
	Level  string     `mapstructure:"level"`
	Format string     `mapstructure:"format"`
	Output string     `mapstructure:"output"`
	File   FileConfig `mapstructure:"file"`
}

type FileConfig struct {
	Path       string `mapstructure:"path"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
}

type MonitoringConfig struct {
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

type I18nConfig struct {
	DefaultLanguage string   `mapstructure:"default_language"`
	Languages       []string `mapstructure:"languages"`
	Directory       string   `mapstructure:"directory"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	viper.BindEnv("bot.token", "BOT_TOKEN")
	viper.BindEnv("providers.openrouter.api_key", "OPENROUTER_API_KEY")
	viper.BindEnv("providers.gemini.api_key", "GEMINI_API_KEY")
	viper.BindEnv("providers.claude.api_key", "CLAUDE_API_KEY")
	viper.BindEnv("providers.mistral.api_key", "MISTRAL_API_KEY")
	viper.BindEnv("providers.deepseek.api_key", "DEEPSEEK_API_KEY")
	viper.BindEnv("cache.redis.addr", "REDIS_ADDR")
	viper.BindEnv("cache.redis.password", "REDIS_PASSWORD")

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Context.MaxMessages == 0 {
		cfg.Context.MaxMessages = 10
	}
	if cfg.Context.ArchiveThreshold == 0 {
		cfg.Context.ArchiveThreshold = 50
	}
	if cfg.Dispatch.QueueSize == 0 {
		cfg.Dispatch.QueueSize = 256
	}
	if cfg.Dispatch.RequestsPerMinute == 0 {
		cfg.Dispatch.RequestsPerMinute = 50
	}
	if cfg.Dispatch.RequestDelay == 0 {
		cfg.Dispatch.RequestDelay = time.Second
	}
	if cfg.Session.Timeout == 0 {
		cfg.Session.Timeout = time.Hour
	}
	if cfg.Session.SweepInterval == 0 {
		cfg.Session.SweepInterval = time.Hour
	}
	if cfg.Session.SaveInterval == 0 {
		cfg.Session.SaveInterval = 30 * time.Minute
	}
	if cfg.Session.StatsInterval == 0 {
		cfg.Session.StatsInterval = time.Hour
	}
	if cfg.Session.RollupInterval == 0 {
		cfg.Session.RollupInterval = 24 * time.Hour
	}
	if cfg.Session.ActiveUserAfter == 0 {
		cfg.Session.ActiveUserAfter = 24 * time.Hour
	}
	if cfg.Storage.DataDir == "" {
		cfg.Storage.DataDir = "user_data"
	}
	if cfg.Storage.TrainingDir == "" {
		cfg.Storage.TrainingDir = "training_data"
	}
	if cfg.Providers.Default == "" {
		cfg.Providers.Default = "gpt-3.5-turbo"
	}
	if cfg.Providers.Safety == "" {
		cfg.Providers.Safety = "gemini-1.5-flash"
	}
}

func validateConfig(cfg *Config) error {
	if cfg.Bot.Token == "" {
		return fmt.Errorf("bot token is required")
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		return fmt.Errorf("at least one admin id is required")
	}
	if cfg.Cache.Enabled && cfg.Cache.Backend != "memory" && cfg.Cache.Backend != "redis" {
		return fmt.Errorf("unsupported cache backend: %s", cfg.Cache.Backend)
	}
	return nil
}
