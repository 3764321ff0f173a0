package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredentials is returned when an external service key is not configured.
var ErrMissingCredentials = errors.New("missing credentials")

// EnvFiles are loaded in order before configuration is read. Values already
// present in the process environment are never overridden.
var EnvFiles = []string{".env.local", ".env"}

// Config is the full pipeline configuration.
type Config struct {
	Paths    PathsConfig    `mapstructure:"paths"`
	Search   SearchConfig   `mapstructure:"search"`
	Collect  CollectConfig  `mapstructure:"collect"`
	VLM      VLMConfig      `mapstructure:"vlm"`
	Classify ClassifyConfig `mapstructure:"classify"`
	Publish  PublishConfig  `mapstructure:"publish"`
	Log      LogConfig      `mapstructure:"log"`
}

// PathsConfig locates the store files and asset directories.
type PathsConfig struct {
	ImagesDir       string `mapstructure:"images_dir"`
	Manifest        string `mapstructure:"manifest"`
	Analysis        string `mapstructure:"analysis"`
	Published       string `mapstructure:"published"`
	PublishedMeta   string `mapstructure:"published_meta"`
	PublicAssets    string `mapstructure:"public_assets"`
	PublicURLPrefix string `mapstructure:"public_url_prefix"`
}

// SearchConfig configures the keyword image search provider.
type SearchConfig struct {
	Provider string        `mapstructure:"provider"`
	APIKey   string        `mapstructure:"api_key"`
	BaseURL  string        `mapstructure:"base_url"`
	Engine   string        `mapstructure:"engine"`
	Results  int           `mapstructure:"results"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// CollectConfig configures keyword and URL intake.
type CollectConfig struct {
	Keywords        []string      `mapstructure:"keywords"`
	KeywordsFile    string        `mapstructure:"keywords_file"`
	MinBytes        int           `mapstructure:"min_bytes"`
	MaxBytes        int           `mapstructure:"max_bytes"`
	DownloadTimeout time.Duration `mapstructure:"download_timeout"`
	DownloadLimit   int           `mapstructure:"download_limit"`
	KeywordInterval time.Duration `mapstructure:"keyword_interval"`
	URLInterval     time.Duration `mapstructure:"url_interval"`
	FilenamePrefix  string        `mapstructure:"filename_prefix"`
	UserAgent       string        `mapstructure:"user_agent"`
}

// VLMConfig configures the vision model used by analyze.
type VLMConfig struct {
	Provider    string        `mapstructure:"provider"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	BaseURL     string        `mapstructure:"base_url"`
	Temperature float64       `mapstructure:"temperature"`
	MaxTokens   int           `mapstructure:"max_tokens"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// ClassifyConfig configures call pacing and the aspect pre-filter.
type ClassifyConfig struct {
	Interval  time.Duration `mapstructure:"interval"`
	MinAspect float64       `mapstructure:"min_aspect"`
	MaxAspect float64       `mapstructure:"max_aspect"`
}

// PublishConfig configures dataset building.
type PublishConfig struct {
	FilenamePrefix string       `mapstructure:"filename_prefix"`
	Placeholders   bool         `mapstructure:"placeholders"`
	Mirror         MirrorConfig `mapstructure:"mirror"`
}

// MirrorConfig configures the optional S3-compatible copy of published assets.
type MirrorConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// LogConfig overrides the LOG_* environment defaults.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// LoadEnvFiles loads the local env override files, ignoring missing ones.
func LoadEnvFiles() {
	for _, f := range EnvFiles {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Load(f)
		}
	}
}

// Load reads configuration from defaults, an optional YAML file and the environment.
func Load(configPath string) (*Config, error) {
	LoadEnvFiles()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.BindEnv("search.api_key", "SERPAPI_KEY")
	v.BindEnv("vlm.provider", "VLM_PROVIDER")
	v.BindEnv("vlm.model", "VLM_MODEL")
	v.BindEnv("vlm.base_url", "VLM_BASE_URL")
	v.BindEnv("publish.mirror.endpoint", "S3_ENDPOINT")
	v.BindEnv("publish.mirror.access_key", "S3_ACCESS_KEY")
	v.BindEnv("publish.mirror.secret_key", "S3_SECRET_KEY")
	v.BindEnv("publish.mirror.bucket", "S3_BUCKET")
	v.BindEnv("publish.mirror.region", "S3_REGION")
	v.BindEnv("publish.mirror.public_url", "S3_PUBLIC_URL")
	v.BindEnv("log.level", "LOG_LEVEL")
	v.BindEnv("log.format", "LOG_FORMAT")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.VLM.Provider = strings.ToLower(strings.TrimSpace(cfg.VLM.Provider))
	cfg.Search.Provider = strings.ToLower(strings.TrimSpace(cfg.Search.Provider))
	cfg.Publish.Mirror.Type = strings.ToLower(strings.TrimSpace(cfg.Publish.Mirror.Type))

	if cfg.VLM.APIKey == "" {
		cfg.VLM.APIKey = vlmKeyFromEnv(cfg.VLM.Provider)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("paths.images_dir", "./raw/images")
	v.SetDefault("paths.manifest", "./raw/manifest.json")
	v.SetDefault("paths.analysis", "./raw/analyzed.json")
	v.SetDefault("paths.published", "./data/memes.json")
	v.SetDefault("paths.published_meta", "./raw/memes_with_meta.json")
	v.SetDefault("paths.public_assets", "./public/memes")
	v.SetDefault("paths.public_url_prefix", "/memes")

	v.SetDefault("search.provider", "serpapi")
	v.SetDefault("search.base_url", "https://serpapi.com")
	v.SetDefault("search.engine", "google_images")
	v.SetDefault("search.results", 20)
	v.SetDefault("search.timeout", 30*time.Second)

	v.SetDefault("collect.keywords", []string{})
	v.SetDefault("collect.keywords_file", "./scripts/keywords.json")
	v.SetDefault("collect.min_bytes", 5000)
	v.SetDefault("collect.max_bytes", 10*1024*1024)
	v.SetDefault("collect.download_timeout", 15*time.Second)
	v.SetDefault("collect.download_limit", 64*1024*1024)
	v.SetDefault("collect.keyword_interval", 2*time.Second)
	v.SetDefault("collect.url_interval", 500*time.Millisecond)
	v.SetDefault("collect.filename_prefix", "mudo")
	v.SetDefault("collect.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36")

	v.SetDefault("vlm.provider", "gemini")
	v.SetDefault("vlm.model", "gemini-2.5-flash")
	v.SetDefault("vlm.base_url", "")
	v.SetDefault("vlm.temperature", 0.3)
	v.SetDefault("vlm.max_tokens", 1024)
	v.SetDefault("vlm.timeout", 60*time.Second)

	v.SetDefault("classify.interval", 1500*time.Millisecond)
	v.SetDefault("classify.min_aspect", 1.0/3.0)
	v.SetDefault("classify.max_aspect", 3.0)

	v.SetDefault("publish.filename_prefix", "meme")
	v.SetDefault("publish.placeholders", false)
	v.SetDefault("publish.mirror.enabled", false)
	v.SetDefault("publish.mirror.use_ssl", true)
	v.SetDefault("publish.mirror.key_prefix", "memes")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
}

// vlmKeyFromEnv picks the provider-specific key variable.
func vlmKeyFromEnv(provider string) string {
	switch provider {
	case "openai":
		return os.Getenv("OPENAI_API_KEY")
	default:
		return os.Getenv("GEMINI_API_KEY")
	}
}

// RequireSearchKey fails when the image search provider has no API key.
func (c *Config) RequireSearchKey() error {
	if strings.TrimSpace(c.Search.APIKey) == "" {
		return fmt.Errorf("%w: SERPAPI_KEY is required for keyword search", ErrMissingCredentials)
	}
	return nil
}

// RequireVLMKey fails when the vision model has no usable API key.
func (c *Config) RequireVLMKey() error {
	key := strings.TrimSpace(c.VLM.APIKey)
	if key == "" || key == "your_api_key_here" {
		name := "GEMINI_API_KEY"
		if c.VLM.Provider == "openai" {
			name = "OPENAI_API_KEY"
		}
		return fmt.Errorf("%w: %s is required (set it in .env.local)", ErrMissingCredentials, name)
	}
	return nil
}

// RequireMirror fails when mirroring is enabled without bucket credentials.
func (c *Config) RequireMirror() error {
	m := c.Publish.Mirror
	if !m.Enabled {
		return nil
	}
	if m.Bucket == "" || m.AccessKey == "" || m.SecretKey == "" {
		return fmt.Errorf("%w: S3_BUCKET, S3_ACCESS_KEY and S3_SECRET_KEY are required when publish.mirror is enabled", ErrMissingCredentials)
	}
	return nil
}

// keywordsFile is the on-disk keyword list format.
type keywordsFile struct {
	Searches []string `json:"searches"`
}

// LoadKeywords returns the configured keywords. Inline keywords win over the
// keywords file; a missing file is an error since keyword mode needs a list.
func (c *Config) LoadKeywords() ([]string, error) {
	if len(c.Collect.Keywords) > 0 {
		return c.Collect.Keywords, nil
	}
	if c.Collect.KeywordsFile == "" {
		return nil, fmt.Errorf("no keywords configured")
	}

	data, err := os.ReadFile(c.Collect.KeywordsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read keywords file: %w", err)
	}
	var kf keywordsFile
	if err := json.Unmarshal(data, &kf); err != nil {
		return nil, fmt.Errorf("failed to parse keywords file %s: %w", c.Collect.KeywordsFile, err)
	}

	keywords := make([]string, 0, len(kf.Searches))
	for _, k := range kf.Searches {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	if len(keywords) == 0 {
		return nil, fmt.Errorf("keywords file %s has no searches", c.Collect.KeywordsFile)
	}
	return keywords, nil
}
