package bootstrap

import (
	"fmt"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"live_analysis/internal/domain"
	"live_analysis/internal/errors"
)

type Config struct {
	ServerPort  string `mapstructure:"SERVER_PORT" validate:"required"`
	RedisUrl    string `mapstructure:"REDIS_URL"`
	MongoUri    string `mapstructure:"MONGO_URI"`
	MongoDB     string `mapstructure:"MONGO_DB" validate:"required"`
	IsLocalCors bool   `mapstructure:"LOCAL_CORS"`

	EnginePath      string `mapstructure:"ENGINE_PATH" validate:"required"`
	EngineModel     string `mapstructure:"ENGINE_MODEL"`
	EngineConfig    string `mapstructure:"ENGINE_CONFIG"`
	EngineExtraArgs string `mapstructure:"ENGINE_EXTRA_ARGS"`
	EngineReportsAs string `mapstructure:"ENGINE_REPORTS_AS" validate:"oneof=black current"`

	MaxVisits               int     `mapstructure:"MAX_VISITS" validate:"gte=0"`
	MaxTime                 float64 `mapstructure:"MAX_TIME" validate:"gte=0"`
	ReportDuringSearchEvery float64 `mapstructure:"REPORT_DURING_SEARCH_EVERY" validate:"gte=0"`
	IncludeOwnership        bool    `mapstructure:"INCLUDE_OWNERSHIP"`
	IncludePolicy           bool    `mapstructure:"INCLUDE_POLICY"`
	AdvancedParams          string  `mapstructure:"ADVANCED_PARAMS"`
	MaxCandidates           int     `mapstructure:"MAX_CANDIDATES" validate:"gte=0"`
	DisplayPerspective      string  `mapstructure:"DISPLAY_PERSPECTIVE" validate:"oneof=black current"`

	DebounceMs        int    `mapstructure:"DEBOUNCE_MS" validate:"gte=0"`
	PollTimeoutMs     int    `mapstructure:"POLL_TIMEOUT_MS" validate:"gt=0"`
	StopGraceMs       int    `mapstructure:"STOP_GRACE_MS" validate:"gt=0"`
	QueryPrefix       string `mapstructure:"QUERY_PREFIX" validate:"required"`
	TerminateOnCancel bool   `mapstructure:"TERMINATE_ON_CANCEL"`
	HistoryTTLHours   int    `mapstructure:"HISTORY_TTL_HOURS" validate:"gte=0"`
}

var validate = validator.New()

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_PORT", "8080")
	v.SetDefault("MONGO_DB", "live_analysis")
	v.SetDefault("ENGINE_PATH", "katago")
	v.SetDefault("ENGINE_REPORTS_AS", "black")
	v.SetDefault("MAX_VISITS", 1000)
	v.SetDefault("REPORT_DURING_SEARCH_EVERY", 0.5)
	v.SetDefault("INCLUDE_OWNERSHIP", true)
	v.SetDefault("INCLUDE_POLICY", true)
	v.SetDefault("MAX_CANDIDATES", 20)
	v.SetDefault("DISPLAY_PERSPECTIVE", "current")
	v.SetDefault("DEBOUNCE_MS", 500)
	v.SetDefault("POLL_TIMEOUT_MS", 1000)
	v.SetDefault("STOP_GRACE_MS", 3000)
	v.SetDefault("QUERY_PREFIX", "qd")
	v.SetDefault("TERMINATE_ON_CANCEL", true)
	v.SetDefault("HISTORY_TTL_HOURS", 24*30)
}

// Setup reads the config file, falling back to defaults and the environment for missing keys.
func Setup(cfgPath string) (*Config, error) {
	return load(viper.New(), cfgPath)
}

func load(v *viper.Viper, cfgPath string) (*Config, error) {
	setDefaults(v)
	v.AutomaticEnv()
	v.SetConfigFile(cfgPath)

	err := v.ReadInConfig()
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err = v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", errors.ErrConfigValidation, err)
	}
	if _, err := ParseAdvancedParams(c.AdvancedParams); err != nil {
		return err
	}
	return nil
}

func (c *Config) Profile() domain.EngineProfile {
	return domain.EngineProfile{
		Name:      "default",
		Path:      c.EnginePath,
		Model:     c.EngineModel,
		Config:    c.EngineConfig,
		ExtraArgs: c.EngineExtraArgs,
	}
}

// Settings converts the analysis keys. Zero budgets mean "no limit" and are left unset.
func (c *Config) Settings() domain.AnalysisSettings {
	s := domain.AnalysisSettings{
		IncludeOwnership: c.IncludeOwnership,
		IncludePolicy:    c.IncludePolicy,
		MaxCandidates:    c.MaxCandidates,
		Perspective:      domain.PerspectiveCurrent,
	}
	if c.MaxVisits > 0 {
		v := c.MaxVisits
		s.MaxVisits = &v
	}
	if c.MaxTime > 0 {
		v := c.MaxTime
		s.MaxTime = &v
	}
	if c.ReportDuringSearchEvery > 0 {
		v := c.ReportDuringSearchEvery
		s.ReportDuringSearchEvery = &v
	}
	if p, ok := domain.ParsePerspective(c.DisplayPerspective); ok {
		s.Perspective = p
	}
	s.AdvancedParams, _ = ParseAdvancedParams(c.AdvancedParams)
	return s
}

func (c *Config) ReportedAs() domain.Perspective {
	if p, ok := domain.ParsePerspective(c.EngineReportsAs); ok {
		return p
	}
	return domain.PerspectiveBlack
}

func (c *Config) DebounceDelay() time.Duration {
	return time.Duration(c.DebounceMs) * time.Millisecond
}

func (c *Config) PollTimeout() time.Duration {
	return time.Duration(c.PollTimeoutMs) * time.Millisecond
}

func (c *Config) StopGrace() time.Duration {
	return time.Duration(c.StopGraceMs) * time.Millisecond
}

func (c *Config) HistoryTTL() time.Duration {
	return time.Duration(c.HistoryTTLHours) * time.Hour
}

// ParseAdvancedParams parses "key=value;key=value". Empty segments are skipped.
func ParseAdvancedParams(raw string) (map[string]string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	params := make(map[string]string)
	for _, part := range strings.Split(raw, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, value, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: advanced param %q is not key=value", errors.ErrConfigValidation, part)
		}
		params[key] = strings.TrimSpace(value)
	}
	return params, nil
}

// Watch re-reads cfgPath on every change and passes the new config to onChange.
// Invalid edits are reported to onError and the previous config stays in effect.
func Watch(cfgPath string, onChange func(*Config), onError func(error)) {
	v := viper.New()
	if _, err := load(v, cfgPath); err != nil {
		onError(err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := load(viper.New(), cfgPath)
		if err != nil {
			onError(fmt.Errorf("reload %s: %w", e.Name, err))
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
