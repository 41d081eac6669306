package config

import (
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Pipelines  PipelinesConfig  `yaml:"pipelines" mapstructure:"pipelines"`
	Serper     SerperConfig     `yaml:"serper" mapstructure:"serper"`
	LinkedIn   LinkedInConfig   `yaml:"linkedin" mapstructure:"linkedin"`
	GitHub     GitHubConfig     `yaml:"github" mapstructure:"github"`
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Documents  DocumentsConfig  `yaml:"documents" mapstructure:"documents"`
	Resume     ResumeConfig     `yaml:"resume" mapstructure:"resume"`
	Profile    ProfileConfig    `yaml:"profile" mapstructure:"profile"`
	Kafka      KafkaConfig      `yaml:"kafka" mapstructure:"kafka"`
	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL    string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns       int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns       int32  `yaml:"min_conns" mapstructure:"min_conns"`
	ClaimLeaseSecs int    `yaml:"claim_lease_secs" mapstructure:"claim_lease_secs"`
}

// ClaimLease returns the claim lease as a duration.
func (s StoreConfig) ClaimLease() time.Duration {
	return time.Duration(s.ClaimLeaseSecs) * time.Second
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// ServerConfig configures the monitoring HTTP server.
type ServerConfig struct {
	Port             int      `yaml:"port" mapstructure:"port"`
	StopTimeoutSecs  int      `yaml:"stop_timeout_secs" mapstructure:"stop_timeout_secs"`
	StreamIntervalMs int      `yaml:"stream_interval_ms" mapstructure:"stream_interval_ms"`
	CORSOrigins      []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// StageConfig tunes one pipeline runtime.
type StageConfig struct {
	Enabled             bool `yaml:"enabled" mapstructure:"enabled"`
	BatchSize           int  `yaml:"batch_size" mapstructure:"batch_size"`
	ProcessIntervalSecs int  `yaml:"process_interval_secs" mapstructure:"process_interval_secs"`
	IdleBackoffSecs     int  `yaml:"idle_backoff_secs" mapstructure:"idle_backoff_secs"`
}

// PipelinesConfig holds per-stage runtime settings.
type PipelinesConfig struct {
	TextExtraction   StageConfig `yaml:"text_extraction" mapstructure:"text_extraction"`
	GoogleScraping   StageConfig `yaml:"google_scraping" mapstructure:"google_scraping"`
	LinkedInScraping StageConfig `yaml:"linkedin_scraping" mapstructure:"linkedin_scraping"`
	GitHubScraping   StageConfig `yaml:"github_scraping" mapstructure:"github_scraping"`
	ProfileCreation  StageConfig `yaml:"profile_creation" mapstructure:"profile_creation"`
}

// SerperConfig holds Serper (Google search) API settings.
type SerperConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	MaxResults    int    `yaml:"max_results" mapstructure:"max_results"`
	SearchDelayMs int    `yaml:"search_delay_ms" mapstructure:"search_delay_ms"`
}

// LinkedInConfig holds RapidAPI LinkedIn Data API settings.
type LinkedInConfig struct {
	RapidAPIKey string `yaml:"rapidapi_key" mapstructure:"rapidapi_key"`
	BaseURL     string `yaml:"base_url" mapstructure:"base_url"`
	Host        string `yaml:"host" mapstructure:"host"`
}

// GitHubConfig holds GitHub REST API settings.
type GitHubConfig struct {
	Token    string `yaml:"token" mapstructure:"token"`
	BaseURL  string `yaml:"base_url" mapstructure:"base_url"`
	MaxRepos int    `yaml:"max_repos" mapstructure:"max_repos"`
}

// LLMConfig selects and configures the résumé structuring model.
type LLMConfig struct {
	Provider       string `yaml:"provider" mapstructure:"provider"`
	AnthropicKey   string `yaml:"anthropic_key" mapstructure:"anthropic_key"`
	AnthropicModel string `yaml:"anthropic_model" mapstructure:"anthropic_model"`
	GeminiKey      string `yaml:"gemini_key" mapstructure:"gemini_key"`
	GeminiModel    string `yaml:"gemini_model" mapstructure:"gemini_model"`
	MaxTokens      int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// DocumentsConfig selects where résumé files are read from.
type DocumentsConfig struct {
	Backend string   `yaml:"backend" mapstructure:"backend"`
	Dir     string   `yaml:"dir" mapstructure:"dir"`
	S3      S3Config `yaml:"s3" mapstructure:"s3"`
}

// S3Config configures an S3-compatible bucket.
type S3Config struct {
	Endpoint  string `yaml:"endpoint" mapstructure:"endpoint"`
	AccessKey string `yaml:"access_key" mapstructure:"access_key"`
	SecretKey string `yaml:"secret_key" mapstructure:"secret_key"`
	Bucket    string `yaml:"bucket" mapstructure:"bucket"`
	Region    string `yaml:"region" mapstructure:"region"`
	UseSSL    bool   `yaml:"use_ssl" mapstructure:"use_ssl"`
}

// ResumeConfig configures résumé text extraction.
type ResumeConfig struct {
	PdfToTextPath string `yaml:"pdftotext_path" mapstructure:"pdftotext_path"`
	MaxChars      int    `yaml:"max_chars" mapstructure:"max_chars"`
}

// ProfileConfig holds profile scoring weights.
type ProfileConfig struct {
	TechnicalWeight  float64 `yaml:"technical_weight" mapstructure:"technical_weight"`
	ExperienceWeight float64 `yaml:"experience_weight" mapstructure:"experience_weight"`
	GitHubWeight     float64 `yaml:"github_weight" mapstructure:"github_weight"`
	MinPassingScore  float64 `yaml:"min_passing_score" mapstructure:"min_passing_score"`
}

// KafkaConfig configures the transition event publisher. Empty brokers disables it.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers" mapstructure:"brokers"`
	Topic   string   `yaml:"topic" mapstructure:"topic"`
}

// MonitoringConfig configures pipeline error alerting.
type MonitoringConfig struct {
	WebhookURL        string `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs int    `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
}

// RetryConfig configures outbound API retries.
type RetryConfig struct {
	MaxAttempts      int `yaml:"max_attempts" mapstructure:"max_attempts"`
	InitialBackoffMs int `yaml:"initial_backoff_ms" mapstructure:"initial_backoff_ms"`
	MaxBackoffMs     int `yaml:"max_backoff_ms" mapstructure:"max_backoff_ms"`
}

var stageKeys = []string{"text_extraction", "google_scraping", "linkedin_scraping", "github_scraping", "profile_creation"}

// Load reads configuration from .env, file and environment.
func Load() (*Config, error) {
	// .env is optional; variables already set win.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("PROFILER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Secrets have empty defaults so AutomaticEnv can bind them on Unmarshal.
	for _, k := range []string{
		"store.database_url", "serper.key", "linkedin.rapidapi_key", "github.token",
		"llm.anthropic_key", "llm.gemini_key", "monitoring.webhook_url",
		"documents.s3.endpoint", "documents.s3.access_key", "documents.s3.secret_key", "documents.s3.bucket",
	} {
		v.SetDefault(k, "")
	}

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("store.claim_lease_secs", 900)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.stop_timeout_secs", 30)
	v.SetDefault("server.stream_interval_ms", 2000)
	v.SetDefault("server.cors_origins", []string{"*"})
	for _, k := range stageKeys {
		v.SetDefault("pipelines."+k+".enabled", true)
		v.SetDefault("pipelines."+k+".batch_size", 10)
		v.SetDefault("pipelines."+k+".process_interval_secs", 300)
		v.SetDefault("pipelines."+k+".idle_backoff_secs", 60)
	}
	v.SetDefault("pipelines.text_extraction.process_interval_secs", 60)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.max_results", 10)
	v.SetDefault("serper.search_delay_ms", 1000)
	v.SetDefault("linkedin.base_url", "https://linkedin-data-api.p.rapidapi.com")
	v.SetDefault("linkedin.host", "linkedin-data-api.p.rapidapi.com")
	v.SetDefault("github.base_url", "https://api.github.com")
	v.SetDefault("github.max_repos", 100)
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.anthropic_model", "claude-haiku-4-5-20251001")
	v.SetDefault("llm.gemini_model", "gemini-2.5-flash")
	v.SetDefault("llm.max_tokens", 4096)
	v.SetDefault("documents.backend", "local")
	v.SetDefault("documents.dir", "./resumes")
	v.SetDefault("documents.s3.use_ssl", true)
	v.SetDefault("documents.s3.region", "us-east-1")
	v.SetDefault("resume.pdftotext_path", "pdftotext")
	v.SetDefault("resume.max_chars", 20000)
	v.SetDefault("profile.technical_weight", 0.4)
	v.SetDefault("profile.experience_weight", 0.35)
	v.SetDefault("profile.github_weight", 0.25)
	v.SetDefault("profile.min_passing_score", 70.0)
	v.SetDefault("kafka.topic", "candidate-transitions")
	v.SetDefault("monitoring.check_interval_secs", 30)
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.initial_backoff_ms", 500)
	v.SetDefault("retry.max_backoff_ms", 10000)

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

// Validate checks that the keys required to run the enrichment stages are set.
func (c *Config) Validate() error {
	var missing []string
	if c.Store.DatabaseURL == "" {
		missing = append(missing, "store.database_url")
	}
	if c.Pipelines.TextExtraction.Enabled {
		switch c.LLM.Provider {
		case "anthropic":
			if c.LLM.AnthropicKey == "" {
				missing = append(missing, "llm.anthropic_key")
			}
		case "gemini":
			if c.LLM.GeminiKey == "" {
				missing = append(missing, "llm.gemini_key")
			}
		default:
			return eris.Errorf("config: unknown llm provider %q", c.LLM.Provider)
		}
	}
	if c.Pipelines.GoogleScraping.Enabled && c.Serper.Key == "" {
		missing = append(missing, "serper.key")
	}
	if c.Pipelines.LinkedInScraping.Enabled && c.LinkedIn.RapidAPIKey == "" {
		missing = append(missing, "linkedin.rapidapi_key")
	}
	if c.Documents.Backend == "s3" && c.Documents.S3.Bucket == "" {
		missing = append(missing, "documents.s3.bucket")
	}
	if len(missing) > 0 {
		return eris.Errorf("config: missing required keys: %s", strings.Join(missing, ", "))
	}
	return nil
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
