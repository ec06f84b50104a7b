package config

import (
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// readSecret reads a secret from a file path specified by an env var with
// _FILE suffix. If FOO is already set directly, the file is skipped.
func readSecret(envKey string) {
	if os.Getenv(envKey) != "" {
		return
	}
	filePath := os.Getenv(envKey + "_FILE")
	if filePath == "" {
		return
	}
	data, err := os.ReadFile(filePath)
	if err != nil {
		return
	}
	os.Setenv(envKey, strings.TrimSpace(string(data)))
}

type Config struct {
	Server    ServerConfig
	Replicate ReplicateConfig
	Poll      PollConfig
	History   HistoryConfig
	Output    OutputConfig
}

type ServerConfig struct {
	Host     string
	Port     string
	LogLevel string
	Language string
}

type ReplicateConfig struct {
	BaseURL string
	// APIToken is the environment fallback; the stored settings file and
	// per-request overrides take precedence.
	APIToken string
}

type PollConfig struct {
	InitialInterval time.Duration
	MaxInterval     time.Duration
	Multiplier      float64
	Timeout         time.Duration
	AbortTimeout    time.Duration
}

type HistoryConfig struct {
	Path      string
	Retention time.Duration
}

type OutputConfig struct {
	// Dir is used when a job's target path is not writable or not set;
	// empty means "beside the source image".
	Dir string
}

func Load() (*Config, error) {
	readSecret("REPLICATE_API_TOKEN")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")

	viper.AutomaticEnv()

	_ = viper.BindEnv("server.host", "SERVER_HOST")
	_ = viper.BindEnv("server.port", "SERVER_PORT")
	_ = viper.BindEnv("server.log_level", "LOG_LEVEL")
	_ = viper.BindEnv("server.language", "UI_LANGUAGE")
	_ = viper.BindEnv("replicate.base_url", "REPLICATE_BASE_URL")
	_ = viper.BindEnv("replicate.api_token", "REPLICATE_API_TOKEN")
	_ = viper.BindEnv("poll.initial_interval", "POLL_INITIAL_INTERVAL")
	_ = viper.BindEnv("poll.max_interval", "POLL_MAX_INTERVAL")
	_ = viper.BindEnv("poll.multiplier", "POLL_MULTIPLIER")
	_ = viper.BindEnv("poll.timeout", "JOB_TIMEOUT")
	_ = viper.BindEnv("poll.abort_timeout", "ABORT_TIMEOUT")
	_ = viper.BindEnv("history.path", "HISTORY_PATH")
	_ = viper.BindEnv("history.retention", "HISTORY_RETENTION")
	_ = viper.BindEnv("output.dir", "OUTPUT_DIR")

	// Defaults. The daemon serves the local dialog shim only, so it binds
	// loopback unless told otherwise.
	viper.SetDefault("server.host", "127.0.0.1")
	viper.SetDefault("server.port", "8517")
	viper.SetDefault("server.log_level", "info")
	viper.SetDefault("server.language", "en")

	viper.SetDefault("replicate.base_url", "https://api.replicate.com")

	viper.SetDefault("poll.initial_interval", "1s")
	viper.SetDefault("poll.max_interval", "10s")
	viper.SetDefault("poll.multiplier", 2.0)
	viper.SetDefault("poll.timeout", "3m")
	viper.SetDefault("poll.abort_timeout", "5s")

	viper.SetDefault("history.path", "")
	viper.SetDefault("history.retention", "720h") // 30 days

	viper.SetDefault("output.dir", "")

	// Config file is optional
	_ = viper.ReadInConfig()

	cfg := &Config{
		Server: ServerConfig{
			Host:     viper.GetString("server.host"),
			Port:     viper.GetString("server.port"),
			LogLevel: viper.GetString("server.log_level"),
			Language: viper.GetString("server.language"),
		},
		Replicate: ReplicateConfig{
			BaseURL:  viper.GetString("replicate.base_url"),
			APIToken: viper.GetString("replicate.api_token"),
		},
		Poll: PollConfig{
			InitialInterval: viper.GetDuration("poll.initial_interval"),
			MaxInterval:     viper.GetDuration("poll.max_interval"),
			Multiplier:      viper.GetFloat64("poll.multiplier"),
			Timeout:         viper.GetDuration("poll.timeout"),
			AbortTimeout:    viper.GetDuration("poll.abort_timeout"),
		},
		History: HistoryConfig{
			Path:      viper.GetString("history.path"),
			Retention: viper.GetDuration("history.retention"),
		},
		Output: OutputConfig{
			Dir: viper.GetString("output.dir"),
		},
	}

	return cfg, nil
}
