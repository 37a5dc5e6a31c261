package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	botTokenPrefix = "xoxb-"
	appTokenPrefix = "xapp-"
)

var (
	ErrInvalidBotToken = errors.New("SLACK_BOT_TOKEN must start with 'xoxb-'. Please check your Bot User OAuth Token")
	ErrInvalidAppToken = errors.New("SLACK_APP_TOKEN must start with 'xapp-'. Please check your App-Level Token")
)

type Config struct {
	Env              string            `mapstructure:"env"`
	LogLevel         string            `mapstructure:"log_level"`
	LogType          string            `mapstructure:"log_type"`
	ServiceName      string            `mapstructure:"service_name"`
	Version          string            `mapstructure:"version"`
	MaxContentLength int               `mapstructure:"max_content_length"`
	MinContentLength int               `mapstructure:"min_content_length"`
	RequestTimeout   int               `mapstructure:"request_timeout"` // in seconds
	ShutdownTimeout  time.Duration     `mapstructure:"shutdown_timeout"`
	DealflowChannels []string          `mapstructure:"dealflow_channels"`
	SlackSettings    *SlackConfig      `mapstructure:"slack"`
	ScraperSettings  *ScraperConfig    `mapstructure:"scraper"`
	Vocabulary       *VocabularyConfig `mapstructure:"vocabulary"`
}

type SlackConfig struct {
	BotToken string `mapstructure:"bot_token"`
	AppToken string `mapstructure:"app_token"`
	Debug    bool   `mapstructure:"debug"`
}

type ScraperConfig struct {
	UserAgent      string        `mapstructure:"user_agent"`
	HeadingTimeout time.Duration `mapstructure:"heading_timeout"`
	SettleDelay    time.Duration `mapstructure:"settle_delay"`
	TitleTimeout   time.Duration `mapstructure:"title_timeout"`
	ExecPath       string        `mapstructure:"exec_path"`
}

type VocabularyConfig struct {
	ExcludedTerms []string `mapstructure:"excluded_terms"`
	MemberNames   []string `mapstructure:"member_names"`
}

// MissingEnvError lists required variables that are not set.
type MissingEnvError struct {
	Names []string
}

func (e *MissingEnvError) Error() string {
	return "missing environment variables: " + strings.Join(e.Names, ", ")
}

func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.RequestTimeout) * time.Second
}

func (c *Config) IsDealflowChannel(name string) bool {
	for _, ch := range c.DealflowChannels {
		if strings.EqualFold(strings.TrimPrefix(ch, "#"), name) {
			return true
		}
	}
	return false
}

// MustLoad loads the configuration and terminates the process if it is missing or malformed.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		var missing *MissingEnvError
		if errors.As(err, &missing) {
			fmt.Fprintf(os.Stderr, "Error: Missing environment variables: %s\n", strings.Join(missing.Names, ", "))
			fmt.Fprintln(os.Stderr, "Set them in your .env file. See .env.example")
			os.Exit(1)
		}
		slog.Error("invalid configuration.", slog.String("err", err.Error()))
		os.Exit(1)
	}

	return cfg
}

// Load reads .env files (if present), an optional config.yaml and the environment.
// Environment variables win over the file: SLACK_BOT_TOKEN maps to slack.bot_token.
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil && len(envFiles) > 0 {
		return nil, fmt.Errorf("can't load env file: %w", err)
	}

	v := viper.New()
	v.AddConfigPath(path.Join("."))
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)
	for _, key := range []string{"slack.bot_token", "slack.app_token"} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("can't initialize config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshalling viper config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "local")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_type", "text")
	v.SetDefault("service_name", "granola-scraper-bot")
	v.SetDefault("version", "dev")
	v.SetDefault("max_content_length", 4000)
	v.SetDefault("min_content_length", 20)
	v.SetDefault("request_timeout", 60)
	v.SetDefault("shutdown_timeout", 2*time.Minute)
	v.SetDefault("slack.debug", false)
	v.SetDefault("dealflow_channels", []string{"dealflow", "granola-scraper-test"})
	v.SetDefault("scraper.user_agent", "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) "+
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("scraper.heading_timeout", 30*time.Second)
	v.SetDefault("scraper.settle_delay", 5*time.Second)
	v.SetDefault("scraper.title_timeout", 5*time.Second)
	v.SetDefault("scraper.exec_path", "")
	v.SetDefault("vocabulary.excluded_terms",
		[]string{"impression", "christian", "maor", "quinn", "erica", "saket", "ventures"})
	v.SetDefault("vocabulary.member_names", []string{"christian", "maor", "quinn", "erica", "saket"})
}

func (c *Config) validate() error {
	var missing []string
	if c.SlackSettings == nil || c.SlackSettings.BotToken == "" {
		missing = append(missing, "SLACK_BOT_TOKEN")
	}
	if c.SlackSettings == nil || c.SlackSettings.AppToken == "" {
		missing = append(missing, "SLACK_APP_TOKEN")
	}
	if len(missing) > 0 {
		return &MissingEnvError{Names: missing}
	}

	if !strings.HasPrefix(c.SlackSettings.BotToken, botTokenPrefix) {
		return ErrInvalidBotToken
	}
	if !strings.HasPrefix(c.SlackSettings.AppToken, appTokenPrefix) {
		return ErrInvalidAppToken
	}
	if c.MaxContentLength <= 0 {
		return fmt.Errorf("MAX_CONTENT_LENGTH must be positive, got %d", c.MaxContentLength)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT must be positive, got %d", c.RequestTimeout)
	}

	return nil
}
