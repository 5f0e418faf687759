package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jeremywohl/flatten"
	"github.com/mcuadros/go-defaults"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/catalystcommunity/wsprobe/internal/chatserver"
	"github.com/catalystcommunity/wsprobe/pkg/statsd"
)

const (
	DefaultFileName = "wsprobe.yaml"
	envPrefix       = "WSPROBE"
)

type Config struct {
	Endpoint        string        `yaml:"endpoint" mapstructure:"endpoint" default:"ws://localhost:8083/ws/chat"`
	Message         string        `yaml:"message" mapstructure:"message" default:"Hello, how are you?"`
	Timestamp       string        `yaml:"timestamp" mapstructure:"timestamp" default:""`
	Timeout         time.Duration `yaml:"timeout" mapstructure:"timeout" default:"10s"`
	DialTimeout     time.Duration `yaml:"dial_timeout" mapstructure:"dial_timeout" default:"5s"`
	MaxMessageBytes int64         `yaml:"max_message_bytes" mapstructure:"max_message_bytes" default:"1048576"`
	Output          string        `yaml:"output" mapstructure:"output" default:"text"`

	// Log
	LogLevel string `yaml:"log_level" mapstructure:"log_level" default:"info"`

	// StatsD
	StatsD statsd.Config `yaml:"statsd" mapstructure:"statsd"`

	// Server
	Server ServerConfig `yaml:"server" mapstructure:"server"`
}

type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" default:":8083"`
	Path string `yaml:"path" mapstructure:"path" default:"/ws/chat"`

	chatserver.Config `yaml:",inline" mapstructure:",squash"`
}

// Default returns a Config populated from struct defaults only.
func Default() Config {
	var cfg Config
	defaults.SetDefaults(&cfg)
	return cfg
}

// Load reads configuration from file, or from ./wsprobe.yaml when file is
// empty, then from WSPROBE_* environment variables. A missing default file is
// not an error; a missing explicit file is.
func Load(file string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.SetConfigName(strings.TrimSuffix(DefaultFileName, ".yaml"))
		v.AddConfigPath("./")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &notFound) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
	}

	if err := bindEnvVars(v); err != nil {
		return cfg, err
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("unable to unmarshal config to struct: %w", err)
	}

	return cfg, nil
}

// bindEnvVars registers every config key with viper so that environment
// variables are seen by Unmarshal even when no file sets the key.
func bindEnvVars(v *viper.Viper) error {
	keys, err := flattenedKeys(Config{})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := v.BindEnv(key); err != nil {
			return err
		}
	}
	return nil
}

func flattenedKeys(cfg Config) ([]string, error) {
	var structMap map[string]interface{}
	if err := mapstructure.Decode(cfg, &structMap); err != nil {
		return nil, err
	}

	flat, err := flatten.Flatten(structMap, "", flatten.DotStyle)
	if err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	return keys, nil
}
