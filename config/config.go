package config

import (
	"strings"
	"time"

	logger "github.com/Bparsons0904/goLogger"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	GeneralVersion          string `mapstructure:"GENERAL_VERSION"`
	Environment             string `mapstructure:"ENVIRONMENT"`
	ServerPort              int    `mapstructure:"SERVER_PORT"`
	APIBaseURL              string `mapstructure:"API_BASE_URL"`
	ChatAPIKey              string `mapstructure:"CHAT_API_KEY"`
	ChatBaseURL             string `mapstructure:"CHAT_BASE_URL"`
	HTTPTimeoutSeconds      int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	DatabaseCacheAddress    string `mapstructure:"DB_CACHE_ADDRESS"`
	DatabaseCachePort       int    `mapstructure:"DB_CACHE_PORT"`
	NotificationPollSeconds int    `mapstructure:"NOTIFICATION_POLL_SECONDS"`
	UnreadPollSeconds       int    `mapstructure:"UNREAD_POLL_SECONDS"`
	FetchCooldownMS         int    `mapstructure:"FETCH_COOLDOWN_MS"`
	ToastedSetCapacity      int    `mapstructure:"TOASTED_SET_CAPACITY"`
	ToastedSetTTLHours      int    `mapstructure:"TOASTED_SET_TTL_HOURS"`
	FinishRequiresInProcess bool   `mapstructure:"FINISH_REQUIRES_IN_PROCESS"`
	CorsAllowOrigins        string `mapstructure:"CORS_ALLOW_ORIGINS"`
}

var ConfigInstance Config

var envVars = []string{
	"GENERAL_VERSION", "ENVIRONMENT", "SERVER_PORT",
	"API_BASE_URL", "CHAT_API_KEY", "CHAT_BASE_URL", "HTTP_TIMEOUT_SECONDS",
	"DB_CACHE_ADDRESS", "DB_CACHE_PORT",
	"NOTIFICATION_POLL_SECONDS", "UNREAD_POLL_SECONDS", "FETCH_COOLDOWN_MS",
	"TOASTED_SET_CAPACITY", "TOASTED_SET_TTL_HOURS",
	"FINISH_REQUIRES_IN_PROCESS", "CORS_ALLOW_ORIGINS",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENVIRONMENT", "production")
	v.SetDefault("SERVER_PORT", 8380)
	v.SetDefault("CHAT_BASE_URL", "https://chat.stream-io-api.com")
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 10)
	v.SetDefault("NOTIFICATION_POLL_SECONDS", 30)
	v.SetDefault("UNREAD_POLL_SECONDS", 30)
	v.SetDefault("FETCH_COOLDOWN_MS", 1000)
	v.SetDefault("TOASTED_SET_CAPACITY", 500)
	v.SetDefault("TOASTED_SET_TTL_HOURS", 720)
	v.SetDefault("FINISH_REQUIRES_IN_PROCESS", false)
	v.SetDefault("CORS_ALLOW_ORIGINS", "http://localhost:3000")
}

// Flags declares the command-line overrides understood by New. Flag names are the
// lower-case, dash-separated form of the environment keys.
func Flags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("agent", pflag.ContinueOnError)
	flags.Int("server-port", 0, "port of the local gateway")
	flags.String("api-base-url", "", "base URL of the marketplace REST API")
	flags.String("chat-api-key", "", "chat provider API key")
	flags.String("db-cache-address", "", "valkey host; empty keeps state in memory")
	flags.Int("db-cache-port", 0, "valkey port")
	flags.Bool("finish-requires-in-process", false, "only allow finishing in-process requests")
	return flags
}

func New(flags *pflag.FlagSet) (Config, error) {
	log := logger.New("config").Function("New")
	log.Info("Initializing config")

	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	for _, env := range envVars {
		if err := v.BindEnv(env); err != nil {
			log.Warn("Failed to bind environment variable", "env", env, "error", err)
		}
	}

	if !v.IsSet("API_BASE_URL") {
		log.Info("Environment variables not found, attempting to load from files")

		v.SetConfigFile(".env")
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			log.Warn("Could not find .env file", "error", err)
		} else {
			log.Info("Loaded .env file")
		}

		v.SetConfigFile(".env.local")
		if err := v.MergeInConfig(); err != nil {
			log.Debug("No .env.local file found", "error", err)
		} else {
			log.Info("Loaded .env.local overrides")
		}
	}

	if flags != nil {
		bindFlags(v, flags, log)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, log.Err("Fatal error: could not unmarshal config", err)
	}

	if err := validateConfig(config, log); err != nil {
		return Config{}, err
	}

	log.Info(
		"Successfully initialized config",
		"environment", config.Environment,
		"apiBaseURL", config.APIBaseURL,
		"cacheEnabled", config.CacheEnabled(),
	)
	return ConfigInstance, nil
}

// bindFlags binds only the flags that were set explicitly so unset flags do not
// shadow environment values with their zero defaults.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, log logger.Logger) {
	flags.Visit(func(f *pflag.Flag) {
		key := strings.ToUpper(strings.ReplaceAll(f.Name, "-", "_"))
		if err := v.BindPFlag(key, f); err != nil {
			log.Warn("Failed to bind flag", "flag", f.Name, "error", err)
		}
	})
}

func GetConfig() Config {
	return ConfigInstance
}

func (c Config) CacheEnabled() bool {
	return c.DatabaseCacheAddress != "" && c.DatabaseCachePort > 0
}

func (c Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

func (c Config) NotificationPollInterval() time.Duration {
	return time.Duration(c.NotificationPollSeconds) * time.Second
}

func (c Config) UnreadPollInterval() time.Duration {
	return time.Duration(c.UnreadPollSeconds) * time.Second
}

func (c Config) FetchCooldown() time.Duration {
	return time.Duration(c.FetchCooldownMS) * time.Millisecond
}

func (c Config) ToastedSetTTL() time.Duration {
	return time.Duration(c.ToastedSetTTLHours) * time.Hour
}

func validateConfig(config Config, log logger.Logger) error {
	if config.ServerPort <= 0 {
		return log.Error(
			"Fatal error: invalid server port",
			"port", config.ServerPort,
		)
	}

	if config.APIBaseURL == "" {
		return log.ErrMsg("Fatal error: API_BASE_URL is required")
	}

	if config.NotificationPollSeconds <= 0 || config.UnreadPollSeconds <= 0 {
		return log.Error(
			"Fatal error: poll intervals must be positive",
			"notificationPollSeconds", config.NotificationPollSeconds,
			"unreadPollSeconds", config.UnreadPollSeconds,
		)
	}

	if config.FetchCooldownMS < 0 {
		return log.Error("Fatal error: negative fetch cooldown", "fetchCooldownMS", config.FetchCooldownMS)
	}

	if config.ToastedSetCapacity <= 0 {
		return log.Error(
			"Fatal error: toasted set capacity must be positive",
			"capacity", config.ToastedSetCapacity,
		)
	}

	ConfigInstance = config
	return nil
}
