package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"mfGuruBot/internal/logger"
)

const (
	EnvPrefix         = "MFGURU"
	EnvConfigPath     = "MFGURU_CONFIG"
	DefaultConfigPath = "configs/config.yaml"
)

type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	DB       DBConfig       `mapstructure:"db"`
	OpenAI   OpenAIConfig   `mapstructure:"openai"`
	MFAPI    MFAPIConfig    `mapstructure:"mfapi"`
	Advisor  AdvisorConfig  `mapstructure:"advisor"`
	Schedule ScheduleConfig `mapstructure:"schedule"`
	Log      logger.Config  `mapstructure:"log"`
}

// TelegramConfig selects webhook mode when WebhookURL is set, long polling otherwise.
type TelegramConfig struct {
	Token      string `mapstructure:"token"`
	WebhookURL string `mapstructure:"webhook_url"`
	Debug      bool   `mapstructure:"debug"`
}

type HTTPConfig struct {
	Port string `mapstructure:"port"`
}

type DBConfig struct {
	Path string `mapstructure:"path"`
}

// OpenAIConfig leaves explanations on the fixed fallback bullets when APIKey is empty.
type OpenAIConfig struct {
	APIKey    string        `mapstructure:"api_key"`
	Model     string        `mapstructure:"model"`
	MaxTokens int64         `mapstructure:"max_tokens"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type MFAPIConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
	RatePerSec  float64       `mapstructure:"rate_per_sec"`
	MaxTries    int           `mapstructure:"max_tries"`
	InitialWait time.Duration `mapstructure:"initial_wait"`
}

type AdvisorConfig struct {
	Codes        []string      `mapstructure:"codes"`
	TopN         int           `mapstructure:"top_n"`
	Workers      int           `mapstructure:"workers"`
	NAVCacheTTL  time.Duration `mapstructure:"nav_cache_ttl"`
	FallbackPath string        `mapstructure:"fallback_path"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

type ScheduleConfig struct {
	RefreshSchemes string        `mapstructure:"refresh_schemes"`
	PurgeNAV       string        `mapstructure:"purge_nav"`
	PruneSessions  string        `mapstructure:"prune_sessions"`
	SessionIdle    time.Duration `mapstructure:"session_idle"`
}

// DefaultCodes are the Direct-plan schemes screened when no list is configured.
var DefaultCodes = []string{"120503", "118998", "112277", "147592", "120262", "139608", "118829", "148604"}

func defaults() map[string]any {
	return map[string]any{
		"telegram.token":           "",
		"telegram.webhook_url":     "",
		"telegram.debug":           false,
		"http.port":                "9095",
		"db.path":                  "data/mfguru.db",
		"openai.api_key":           "",
		"openai.model":             "gpt-4o-mini",
		"openai.max_tokens":        300,
		"openai.timeout":           "30s",
		"mfapi.base_url":           "https://api.mfapi.in",
		"mfapi.timeout":            "15s",
		"mfapi.rate_per_sec":       4.0,
		"mfapi.max_tries":          4,
		"mfapi.initial_wait":       "500ms",
		"advisor.codes":            DefaultCodes,
		"advisor.top_n":            5,
		"advisor.workers":          4,
		"advisor.nav_cache_ttl":    "6h",
		"advisor.fallback_path":    "configs/fallback_funds.yaml",
		"advisor.timeout":          "90s",
		"schedule.refresh_schemes": "0 0 */6 * * *",
		"schedule.purge_nav":       "0 15 * * * *",
		"schedule.prune_sessions":  "0 30 3 * * *",
		"schedule.session_idle":    "168h",
		"log.level":                "info",
		"log.file":                 "",
		"log.max_size_mb":          50,
		"log.max_backups":          3,
		"log.max_age_days":         14,
		"log.compress":             true,
	}
}

// Load reads the YAML file at path (if it exists), applies defaults and
// MFGURU_* environment overrides, then validates.
func Load(path string) (*Config, error) {
	v := viper.New()
	for key, value := range defaults() {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("stat config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.Advisor.Codes = cleanCodes(cfg.Advisor.Codes)
	return &cfg, cfg.Validate()
}

// PathFromEnv returns the config path named by MFGURU_CONFIG or the default.
func PathFromEnv() string {
	if p := strings.TrimSpace(os.Getenv(EnvConfigPath)); p != "" {
		return p
	}
	return DefaultConfigPath
}

// UsesWebhook reports whether updates arrive over HTTP rather than long polling.
func (c *Config) UsesWebhook() bool { return c.Telegram.WebhookURL != "" }

func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return errors.New("missing telegram.token (MFGURU_TELEGRAM_TOKEN)")
	}
	if c.Telegram.WebhookURL != "" {
		u, err := url.Parse(c.Telegram.WebhookURL)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return errors.New("telegram.webhook_url must be an https URL")
		}
	}
	if c.HTTP.Port == "" {
		return errors.New("missing http.port")
	}
	if c.DB.Path == "" {
		return errors.New("missing db.path")
	}
	if u, err := url.Parse(c.MFAPI.BaseURL); err != nil || !strings.HasPrefix(u.Scheme, "http") {
		return errors.New("invalid mfapi.base_url")
	}
	if c.MFAPI.RatePerSec <= 0 {
		return errors.New("invalid mfapi.rate_per_sec")
	}
	if c.MFAPI.MaxTries < 1 {
		return errors.New("invalid mfapi.max_tries")
	}
	if len(c.Advisor.Codes) == 0 {
		return errors.New("advisor.codes is empty")
	}
	if c.Advisor.TopN < 1 {
		return errors.New("invalid advisor.top_n")
	}
	if c.Advisor.Workers < 1 {
		return errors.New("invalid advisor.workers")
	}
	if c.Advisor.NAVCacheTTL < 0 {
		return errors.New("invalid advisor.nav_cache_ttl")
	}
	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"schedule.refresh_schemes": c.Schedule.RefreshSchemes,
		"schedule.purge_nav":       c.Schedule.PurgeNAV,
		"schedule.prune_sessions":  c.Schedule.PruneSessions,
	} {
		if spec == "" {
			continue
		}
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

func cleanCodes(codes []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(codes))
	for _, raw := range codes {
		for _, c := range strings.Split(raw, ",") {
			c = strings.TrimSpace(c)
			if c == "" {
				continue
			}
			if _, ok := seen[c]; ok {
				continue
			}
			seen[c] = struct{}{}
			out = append(out, c)
		}
	}
	return out
}
