package config

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

const (
	// ProjectConfigFile is the name of the project-level config file
	ProjectConfigFile = "localflow.yaml"
	// UserConfigDir is the directory for user-level config
	UserConfigDir = ".config/localflow"
	// UserConfigFile is the name of the user-level config file
	UserConfigFile = "config.yaml"
	// EnvPrefix prefixes every environment override
	EnvPrefix = "LOCALFLOW"
)

// envKeys maps override keys to the extra, unprefixed variables also honored.
var envKeys = map[string][]string{
	"gemini_api_key":  {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openai_api_key":  {"OPENAI_API_KEY"},
	"openai_base_url": nil,
	"redis_addr":      nil,
	"redis_password":  nil,
	"nats_url":        {"NATS_URL"},
	"http_addr":       nil,
	"session_id":      nil,
	"session_store":   nil,
	"session_dir":     nil,
	"default_context": nil,
}

// Loader handles configuration loading with layered precedence
type Loader struct {
	logger *slog.Logger
	env    *viper.Viper
}

// NewLoader creates a new configuration loader
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	env := viper.New()
	env.SetEnvPrefix(EnvPrefix)
	env.AutomaticEnv()
	for key, extra := range envKeys {
		names := append([]string{EnvPrefix + "_" + strings.ToUpper(key)}, extra...)
		_ = env.BindEnv(append([]string{key}, names...)...)
	}
	return &Loader{logger: logger, env: env}
}

// Load loads configuration with layered precedence:
// 1. Default config
// 2. User config (~/.config/localflow/config.yaml)
// 3. Project config (localflow.yaml in current or parent directories)
// 4. Explicit config file, when path is non-empty
// 5. Environment variables (LOCALFLOW_*)
func (l *Loader) Load(path string) (*Config, error) {
	config := DefaultConfig()

	userConfigPath := l.userConfigPath()
	if userConfig, err := LoadFromFile(userConfigPath); err == nil {
		l.logger.Debug("Loaded user config", slog.String("path", userConfigPath))
		config.Merge(userConfig)
	} else if !errors.Is(err, fs.ErrNotExist) {
		l.logger.Warn("Failed to load user config", slog.String("path", userConfigPath), slog.String("error", err.Error()))
	}

	projectConfigPath := l.findProjectConfig()
	if projectConfigPath != "" {
		if projectConfig, err := LoadFromFile(projectConfigPath); err == nil {
			l.logger.Debug("Loaded project config", slog.String("path", projectConfigPath))
			config.Merge(projectConfig)
		} else {
			l.logger.Warn("Failed to load project config", slog.String("path", projectConfigPath), slog.String("error", err.Error()))
		}
	} else {
		l.logger.Debug("No project config found")
	}

	if path != "" {
		explicit, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("Loaded config file", slog.String("path", path))
		config.Merge(explicit)
	}

	l.applyEnv(config)

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

// applyEnv overlays environment variables onto config.
func (l *Loader) applyEnv(config *Config) {
	set := func(key string, dst *string) {
		if v := strings.TrimSpace(l.env.GetString(key)); v != "" {
			*dst = v
			l.logger.Debug("Config overridden from environment", slog.String("key", key))
		}
	}
	set("gemini_api_key", &config.Providers.Gemini.APIKey)
	set("openai_api_key", &config.Providers.OpenAI.APIKey)
	set("openai_base_url", &config.Providers.OpenAI.BaseURL)
	set("redis_addr", &config.Session.Redis.Addr)
	set("redis_password", &config.Session.Redis.Password)
	set("nats_url", &config.Events.NATSURL)
	set("http_addr", &config.HTTP.Addr)
	set("session_id", &config.Session.ID)
	set("session_store", &config.Session.Store)
	set("session_dir", &config.Session.Dir)
	set("default_context", &config.Session.DefaultContext)
}

// EnsureUserConfig creates the user config file with defaults if it doesn't exist
func (l *Loader) EnsureUserConfig() (string, error) {
	userConfigPath := l.userConfigPath()

	if _, err := os.Stat(userConfigPath); err == nil {
		return userConfigPath, nil
	}

	config := DefaultConfig()
	config.Models = config.Registry().ToConfig()
	if err := config.SaveToFile(userConfigPath); err != nil {
		return "", err
	}

	l.logger.Info("Created default user config", slog.String("path", userConfigPath))
	return userConfigPath, nil
}

// userConfigPath returns the path to the user config file
func (l *Loader) userConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, UserConfigDir, UserConfigFile)
}

// findProjectConfig searches for localflow.yaml in current and parent directories
func (l *Loader) findProjectConfig() string {
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}

	dir := cwd
	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return ""
}
