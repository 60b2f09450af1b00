package config

import (
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const envPrefix = "PHYLAX"

type Config struct {
	App           AppConfig           `mapstructure:"app"`
	API           APIConfig           `mapstructure:"api"`
	Verification  VerificationConfig  `mapstructure:"verification"`
	Drafts        DraftsConfig        `mapstructure:"drafts"`
	Downloads     DownloadsConfig     `mapstructure:"downloads"`
	Notifications NotificationsConfig `mapstructure:"notifications"`
}

type AppConfig struct {
	Name     string `mapstructure:"name"`
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`
	// MetricsFile is a node_exporter textfile the CLI writes on exit.
	MetricsFile string `mapstructure:"metrics_file"`
}

type APIConfig struct {
	BaseURL         string        `mapstructure:"base_url"`
	Token           string        `mapstructure:"token"`
	Timeout         time.Duration `mapstructure:"timeout"`
	CapabilitiesTTL time.Duration `mapstructure:"capabilities_ttl"`
}

type VerificationConfig struct {
	PollInterval time.Duration `mapstructure:"poll_interval"`
	SuccessDelay time.Duration `mapstructure:"success_delay"`
	StatusTTL    time.Duration `mapstructure:"status_ttl"`
}

type DraftsConfig struct {
	Path string `mapstructure:"path"`
}

type DownloadsConfig struct {
	Path          string `mapstructure:"path"`
	RetentionDays int    `mapstructure:"retention_days"`
	Decompress    bool   `mapstructure:"decompress"`

	// Direct S3 access, bypassing presigned URLs.
	DirectS3  bool   `mapstructure:"direct_s3"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Endpoint  string `mapstructure:"endpoint"`
}

type NotificationsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
}

type TelegramConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	BotToken string `mapstructure:"bot_token"`
	ChatID   string `mapstructure:"chat_id"`
}

var envFiles = []string{".env", ".env.local"}

// Load reads the YAML config at path. When path is empty the usual locations
// are searched and a missing file is not an error, so the whole configuration
// may come from PHYLAX_* variables.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	for _, f := range envFiles {
		_ = godotenv.Load(f)
	}

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		for _, f := range envFiles {
			_ = godotenv.Load(filepath.Join(filepath.Dir(path), f))
		}
	} else {
		v.SetConfigName("phylax")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.phylax")
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "phylax")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_file", "")
	v.SetDefault("app.metrics_file", "")

	v.SetDefault("api.base_url", "")
	v.SetDefault("api.token", "")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("api.capabilities_ttl", time.Minute)

	v.SetDefault("verification.poll_interval", 2500*time.Millisecond)
	v.SetDefault("verification.success_delay", 1500*time.Millisecond)
	v.SetDefault("verification.status_ttl", 3*time.Second)

	v.SetDefault("drafts.path", "phylax-drafts.db")

	v.SetDefault("downloads.path", "./downloads")
	v.SetDefault("downloads.retention_days", 7)
	v.SetDefault("downloads.decompress", false)
	v.SetDefault("downloads.direct_s3", false)
	v.SetDefault("downloads.region", "us-east-1")
	v.SetDefault("downloads.access_key", "")
	v.SetDefault("downloads.secret_key", "")
	v.SetDefault("downloads.endpoint", "")

	v.SetDefault("notifications.telegram.enabled", false)
	v.SetDefault("notifications.telegram.bot_token", "")
	v.SetDefault("notifications.telegram.chat_id", "")
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("api.base_url must be an http(s) URL")
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api.timeout must be positive")
	}

	if c.Verification.PollInterval <= 0 {
		return fmt.Errorf("verification.poll_interval must be positive")
	}
	if c.Verification.SuccessDelay < 0 {
		return fmt.Errorf("verification.success_delay must not be negative")
	}

	if c.Drafts.Path == "" {
		return fmt.Errorf("drafts.path is required")
	}
	if c.Downloads.Path == "" {
		return fmt.Errorf("downloads.path is required")
	}
	if c.Downloads.RetentionDays < 0 {
		return fmt.Errorf("downloads.retention_days must not be negative")
	}
	if c.Downloads.DirectS3 && c.Downloads.Region == "" {
		return fmt.Errorf("downloads.region is required when direct_s3 is enabled")
	}

	tg := c.Notifications.Telegram
	if tg.Enabled && (tg.BotToken == "" || tg.ChatID == "") {
		return fmt.Errorf("notifications.telegram: bot_token and chat_id are required when enabled")
	}

	return nil
}
