package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Temporal  TemporalConfig  `yaml:"temporal" mapstructure:"temporal"`
	Scan      ScanConfig      `yaml:"scan" mapstructure:"scan"`
	Loop      LoopConfig      `yaml:"loop" mapstructure:"loop"`
	Feed      FeedConfig      `yaml:"feed" mapstructure:"feed"`
	Redis     RedisConfig     `yaml:"redis" mapstructure:"redis"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key            string   `yaml:"key" mapstructure:"key"`
	AnswerModels   []string `yaml:"answer_models" mapstructure:"answer_models"`
	AnalysisModel  string   `yaml:"analysis_model" mapstructure:"analysis_model"`
	DiscoveryModel string   `yaml:"discovery_model" mapstructure:"discovery_model"`
	TimeoutSecs    int      `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// TemporalConfig configures the durable workflow backend.
type TemporalConfig struct {
	Address   string `yaml:"address" mapstructure:"address"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
	TaskQueue string `yaml:"task_queue" mapstructure:"task_queue"`
}

// ScanConfig configures the scan stage.
type ScanConfig struct {
	CallsPerSecond float64 `yaml:"calls_per_second" mapstructure:"calls_per_second"`
	MaxParallel    int     `yaml:"max_parallel" mapstructure:"max_parallel"`
}

// LoopConfig bounds one citation-loop cycle. The 5x5 defaults are tunable,
// not architectural.
type LoopConfig struct {
	MaxCompetitors int `yaml:"max_competitors" mapstructure:"max_competitors"`
	MaxQueries     int `yaml:"max_queries" mapstructure:"max_queries"`
	MaxCycles      int `yaml:"max_cycles" mapstructure:"max_cycles"`
}

// FeedConfig configures the feed API.
type FeedConfig struct {
	MaxPageSize     int `yaml:"max_page_size" mapstructure:"max_page_size"`
	DefaultPageSize int `yaml:"default_page_size" mapstructure:"default_page_size"`
}

// RedisConfig configures the shared rate-limit counter store.
type RedisConfig struct {
	Addr              string `yaml:"addr" mapstructure:"addr"`
	Password          string `yaml:"password" mapstructure:"password"`
	DB                int    `yaml:"db" mapstructure:"db"`
	RequestsPerWindow int    `yaml:"requests_per_window" mapstructure:"requests_per_window"`
	WindowSecs        int    `yaml:"window_secs" mapstructure:"window_secs"`
}

// ServerConfig configures the feed HTTP server.
type ServerConfig struct {
	Port           int      `yaml:"port" mapstructure:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" mapstructure:"allowed_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SIGHTLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("anthropic.answer_models", []string{"claude-haiku-4-5-20251001", "claude-sonnet-4-5-20250929"})
	v.SetDefault("anthropic.analysis_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.discovery_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("anthropic.timeout_secs", 60)
	v.SetDefault("temporal.address", "localhost:7233")
	v.SetDefault("temporal.namespace", "sightline")
	v.SetDefault("temporal.task_queue", "sightline-pipeline")
	v.SetDefault("scan.calls_per_second", 0.5)
	v.SetDefault("scan.max_parallel", 2)
	v.SetDefault("loop.max_competitors", 5)
	v.SetDefault("loop.max_queries", 5)
	v.SetDefault("loop.max_cycles", 3)
	v.SetDefault("feed.max_page_size", 50)
	v.SetDefault("feed.default_page_size", 20)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.requests_per_window", 120)
	v.SetDefault("redis.window_secs", 60)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
