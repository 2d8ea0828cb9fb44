// Package config loads the application configuration from defaults, an
// optional config file, CHATCORE_* environment variables and bound flags,
// in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/inspirepan/chatcore/providers"
)

// EnvPrefix prefixes every environment override, e.g. CHATCORE_PROVIDER_MODEL.
const EnvPrefix = "CHATCORE"

// Config is the merged application configuration.
type Config struct {
	Server    Server    `mapstructure:"server" yaml:"server"`
	Provider  Provider  `mapstructure:"provider" yaml:"provider"`
	Chat      Chat      `mapstructure:"chat" yaml:"chat"`
	Tools     Tools     `mapstructure:"tools" yaml:"tools"`
	Store     Store     `mapstructure:"store" yaml:"store"`
	Log       Log       `mapstructure:"log" yaml:"log"`
	Telemetry Telemetry `mapstructure:"telemetry" yaml:"telemetry"`

	// File is the config file that was read, if any.
	File string `mapstructure:"-" yaml:"-"`
}

type Server struct {
	Addr        string        `mapstructure:"addr" yaml:"addr"`
	CORSOrigin  string        `mapstructure:"corsOrigin" yaml:"corsOrigin"`
	MaxBody     int64         `mapstructure:"maxBody" yaml:"maxBody"`
	ReadTimeout time.Duration `mapstructure:"readTimeout" yaml:"readTimeout"`
}

type Provider struct {
	Name            string  `mapstructure:"name" yaml:"name"`
	Model           string  `mapstructure:"model" yaml:"model"`
	APIKey          string  `mapstructure:"apiKey" yaml:"-"`
	BaseURL         string  `mapstructure:"baseURL" yaml:"baseURL,omitempty"`
	DebugPath       string  `mapstructure:"debugPath" yaml:"debugPath,omitempty"`
	Temperature     float64 `mapstructure:"temperature" yaml:"temperature,omitempty"`
	MaxOutputTokens int     `mapstructure:"maxOutputTokens" yaml:"maxOutputTokens,omitempty"`
	ThinkingBudget  int     `mapstructure:"thinkingBudget" yaml:"thinkingBudget,omitempty"`
}

type Chat struct {
	TurnTimeout  time.Duration `mapstructure:"turnTimeout" yaml:"turnTimeout"`
	ToolTimeout  time.Duration `mapstructure:"toolTimeout" yaml:"toolTimeout"`
	MaxSteps     int           `mapstructure:"maxSteps" yaml:"maxSteps"`
	SystemPrompt string        `mapstructure:"systemPrompt" yaml:"systemPrompt,omitempty"`
}

type Tools struct {
	// RequireInstall restricts mentions to tools the user installed.
	RequireInstall bool `mapstructure:"requireInstall" yaml:"requireInstall"`
	// WeatherRPS throttles Open-Meteo requests; zero disables throttling.
	WeatherRPS float64 `mapstructure:"weatherRPS" yaml:"weatherRPS"`
}

type Store struct {
	Path string `mapstructure:"path" yaml:"path"`
}

type Log struct {
	// Format is "terminal" or "json".
	Format string `mapstructure:"format" yaml:"format"`
	Debug  bool   `mapstructure:"debug" yaml:"debug"`
}

type Telemetry struct {
	OTLPEndpoint string `mapstructure:"otlpEndpoint" yaml:"otlpEndpoint,omitempty"`
}

// SetDefaults registers every default on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.corsOrigin", "*")
	v.SetDefault("server.maxBody", int64(10<<20))
	v.SetDefault("server.readTimeout", 30*time.Second)
	v.SetDefault("provider.name", providers.Google)
	v.SetDefault("provider.model", "gemini-2.5-flash")
	v.SetDefault("provider.apiKey", "")
	v.SetDefault("provider.baseURL", "")
	v.SetDefault("provider.debugPath", "")
	v.SetDefault("provider.temperature", 0.0)
	v.SetDefault("provider.maxOutputTokens", 0)
	v.SetDefault("provider.thinkingBudget", 0)
	v.SetDefault("chat.turnTimeout", 60*time.Second)
	v.SetDefault("chat.toolTimeout", 30*time.Second)
	v.SetDefault("chat.maxSteps", 5)
	v.SetDefault("chat.systemPrompt", "")
	v.SetDefault("tools.requireInstall", false)
	v.SetDefault("tools.weatherRPS", 5.0)
	v.SetDefault("store.path", "chatcore.db")
	v.SetDefault("log.format", "terminal")
	v.SetDefault("log.debug", false)
	v.SetDefault("telemetry.otlpEndpoint", "")
}

// New returns a viper instance with defaults and environment overrides
// configured. file, when non-empty, is read by Load.
func New(file string) *viper.Viper {
	v := viper.New()
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("chatcore")
		v.AddConfigPath(".")
	}
	return v
}

// Load reads the config file, tolerating its absence, and materializes
// the merged configuration.
func Load(v *viper.Viper) (Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("config: read: %w", err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: unmarshal: %w", err)
	}
	cfg.File = v.ConfigFileUsed()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings no component can run with.
func (c Config) Validate() error {
	var errs []error
	if c.Provider.Model == "" {
		errs = append(errs, errors.New("provider.model is required"))
	}
	if c.Chat.MaxSteps <= 0 {
		errs = append(errs, fmt.Errorf("chat.maxSteps must be positive, got %d", c.Chat.MaxSteps))
	}
	if c.Chat.TurnTimeout < 0 || c.Chat.ToolTimeout < 0 {
		errs = append(errs, errors.New("chat timeouts must not be negative"))
	}
	switch c.Log.Format {
	case "terminal", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format must be terminal or json, got %q", c.Log.Format))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: invalid: %w", err)
	}
	return nil
}

// ProviderOptions converts the provider section for providers.New. Zero
// temperature and token limits leave the provider defaults in place.
func (c Config) ProviderOptions() providers.Options {
	o := providers.Options{
		APIKey:         c.Provider.APIKey,
		BaseURL:        c.Provider.BaseURL,
		DebugPath:      c.Provider.DebugPath,
		ThinkingBudget: c.Provider.ThinkingBudget,
	}
	if c.Provider.Temperature != 0 {
		t := c.Provider.Temperature
		o.Temperature = &t
	}
	if c.Provider.MaxOutputTokens > 0 {
		n := c.Provider.MaxOutputTokens
		o.MaxOutputTokens = &n
	}
	return o
}
