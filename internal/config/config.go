package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvPrefix = "FORUMGRAPH"
	fileName  = "forumgraph"

	DefaultRateLimitSeconds = 3.0
	DefaultOutputDir        = "./output"
	DefaultDatabasePath     = "forumgraph.db"
	DefaultWorkers          = 1
	DefaultRequestTimeout   = 15 * time.Second
	DefaultMaxRetries       = 3
	DefaultUserRefresh      = 24 * time.Hour
	DefaultSchedule         = "0 */6 * * *"
	DefaultDigestPrompt     = "Summarize this forum thread in a few sentences. Name the members who drive the discussion and who replies to whom."
)

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

type DaemonConfig struct {
	Schedule string `mapstructure:"schedule" yaml:"schedule" validate:"required"`
}

type AIConfig struct {
	BaseURL string `mapstructure:"base_url" yaml:"base_url" validate:"omitempty,url"`
	Model   string `mapstructure:"model" yaml:"model"`
	Prompt  string `mapstructure:"prompt" yaml:"prompt"`
}

// Config carries every crawl setting. Zero limits mean unlimited.
type Config struct {
	ForumURL            string  `mapstructure:"forum_url" yaml:"forum_url" validate:"omitempty,url"`
	RateLimitSeconds    float64 `mapstructure:"rate_limit_seconds" yaml:"rate_limit_seconds" validate:"gte=0"`
	OutputDir           string  `mapstructure:"output_dir" yaml:"output_dir" validate:"required"`
	EnableImplicitReply bool    `mapstructure:"enable_implicit_reply" yaml:"enable_implicit_reply"`
	DatabasePath        string  `mapstructure:"database_path" yaml:"database_path" validate:"required"`

	MaxForumPages    int           `mapstructure:"max_forum_pages" yaml:"max_forum_pages" validate:"gte=0"`
	ThreadLimit      int           `mapstructure:"thread_limit" yaml:"thread_limit" validate:"gte=0"`
	ThreadPageLimit  int           `mapstructure:"thread_page_limit" yaml:"thread_page_limit" validate:"gte=0"`
	Workers          int           `mapstructure:"workers" yaml:"workers" validate:"min=1,max=8"`
	UserAgent        string        `mapstructure:"user_agent" yaml:"user_agent,omitempty"`
	RequestTimeout   time.Duration `mapstructure:"request_timeout" yaml:"request_timeout" validate:"gt=0"`
	MaxRetries       int           `mapstructure:"max_retries" yaml:"max_retries" validate:"min=1,max=10"`
	UseFeed          bool          `mapstructure:"use_feed" yaml:"use_feed"`
	UserRefreshAfter time.Duration `mapstructure:"user_refresh_after" yaml:"user_refresh_after" validate:"gte=0"`

	Log    LogConfig    `mapstructure:"log" yaml:"log"`
	Daemon DaemonConfig `mapstructure:"daemon" yaml:"daemon"`
	AI     AIConfig     `mapstructure:"ai" yaml:"ai"`
}

// RateLimit is the minimum spacing between two requests.
func (c Config) RateLimit() time.Duration {
	return time.Duration(c.RateLimitSeconds * float64(time.Second))
}

// RequireForum fails when no forum_url is configured.
func (c Config) RequireForum() error {
	if strings.TrimSpace(c.ForumURL) == "" {
		return errors.New("forum_url is not set (config file, FORUMGRAPH_FORUM_URL or --forum-url)")
	}
	return nil
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		RateLimitSeconds: DefaultRateLimitSeconds,
		OutputDir:        DefaultOutputDir,
		DatabasePath:     DefaultDatabasePath,
		Workers:          DefaultWorkers,
		RequestTimeout:   DefaultRequestTimeout,
		MaxRetries:       DefaultMaxRetries,
		UserRefreshAfter: DefaultUserRefresh,
		Log:              LogConfig{Level: "info", Format: "text"},
		Daemon:           DaemonConfig{Schedule: DefaultSchedule},
		AI:               AIConfig{Prompt: DefaultDigestPrompt},
	}
}

type LoadFunc func() (Config, error)

// FileLoader returns a loader bound to path; an empty path searches the
// working directory and the user config directory.
func FileLoader(path string) LoadFunc {
	return func() (Config, error) {
		return Load(path)
	}
}

// Load reads configuration from, in increasing priority: defaults, the YAML
// config file, a .env file and FORUMGRAPH_* environment variables.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	if path != "" {
		path = expandPath(path)
		if _, err := os.Stat(path); err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(fileName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if dir, err := configDir(); err == nil {
			v.AddConfigPath(dir)
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.DatabasePath = expandPath(cfg.DatabasePath)
	cfg.OutputDir = expandPath(cfg.OutputDir)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field ranges.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q (got %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("forum_url", d.ForumURL)
	v.SetDefault("rate_limit_seconds", d.RateLimitSeconds)
	v.SetDefault("output_dir", d.OutputDir)
	v.SetDefault("enable_implicit_reply", d.EnableImplicitReply)
	v.SetDefault("database_path", d.DatabasePath)

	v.SetDefault("max_forum_pages", d.MaxForumPages)
	v.SetDefault("thread_limit", d.ThreadLimit)
	v.SetDefault("thread_page_limit", d.ThreadPageLimit)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("max_retries", d.MaxRetries)
	v.SetDefault("use_feed", d.UseFeed)
	v.SetDefault("user_refresh_after", d.UserRefreshAfter)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
	v.SetDefault("daemon.schedule", d.Daemon.Schedule)
	v.SetDefault("ai.base_url", d.AI.BaseURL)
	v.SetDefault("ai.model", d.AI.Model)
	v.SetDefault("ai.prompt", d.AI.Prompt)
}

func configDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "forumgraph"), nil
}

// DefaultConfigPath is where `config init` writes when no path is given.
func DefaultConfigPath() (string, error) {
	dir, err := configDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName+".yaml"), nil
}

// expandPath expands leading ~ and environment variables in a filesystem path.
func expandPath(p string) string {
	if p == "" {
		return p
	}
	p = os.ExpandEnv(p)
	if strings.HasPrefix(p, "~") {
		if home, err := os.UserHomeDir(); err == nil {
			if p == "~" {
				p = home
			} else if strings.HasPrefix(p, "~/") {
				p = filepath.Join(home, p[2:])
			}
		}
	}
	return p
}
