// Package config provides configuration management for search-clone using Viper.
package config

import (
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/percona/search-clone/errors"
)

// Option names. They are the flag names and, upper-cased with the
// SEARCH_CLONE_ prefix, the environment variable names.
const (
	FieldSourceEndpoint = "source-endpoint"
	FieldSourceKey      = "source-key"
	FieldSourceIndex    = "source-index"
	FieldTargetEndpoint = "target-endpoint"
	FieldTargetKey      = "target-key"
)

const (
	// DefaultKeyField is the ordering key used when --key-field is not set.
	DefaultKeyField = "ObjectID"
	// MaxPageSize is both the largest query page and the largest upload batch
	// the search service accepts.
	MaxPageSize = 1000
	// DefaultAPIVersion is the search service REST API version.
	DefaultAPIVersion = "2024-07-01"

	envPrefix = "SEARCH_CLONE"
)

// Config holds all search-clone configuration.
type Config struct {
	SourceEndpoint string `mapstructure:"source-endpoint" validate:"omitempty,http_url"`
	SourceKey      string `mapstructure:"source-key"`
	SourceIndex    string `mapstructure:"source-index" validate:"omitempty,indexname"`
	TargetEndpoint string `mapstructure:"target-endpoint" validate:"omitempty,http_url"`
	TargetKey      string `mapstructure:"target-key"`

	Clone CloneConfig `mapstructure:",squash"`

	Search SearchConfig `mapstructure:",squash"`

	Log LogConfig `mapstructure:",squash"`

	// MetricsFile is a node exporter textfile written when the run ends.
	MetricsFile string `mapstructure:"metrics-file"`
}

// CloneConfig holds clone operation configuration.
type CloneConfig struct {
	// KeyField is the document field used as the pagination cursor.
	KeyField string `mapstructure:"key-field" validate:"required,fieldname"`
	// PageSize is the number of documents per query and per upload.
	PageSize int `mapstructure:"page-size" validate:"gte=1,lte=1000"`
	// Timeout bounds the whole run. Zero means no deadline.
	Timeout time.Duration `mapstructure:"timeout" validate:"gte=0"`
}

// SearchConfig holds search service client configuration.
type SearchConfig struct {
	APIVersion string `mapstructure:"api-version" validate:"required"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level   string `mapstructure:"log-level"`
	JSON    bool   `mapstructure:"log-json"`
	NoColor bool   `mapstructure:"log-no-color"`
}

// TargetIndex returns the index name used on the target. The tool never
// renames an index, so it is always the source index name.
func (c *Config) TargetIndex() string {
	return c.SourceIndex
}

// Value returns the value of one of the Field* options.
func (c *Config) Value(field string) string {
	switch field {
	case FieldSourceEndpoint:
		return c.SourceEndpoint
	case FieldSourceKey:
		return c.SourceKey
	case FieldSourceIndex:
		return c.SourceIndex
	case FieldTargetEndpoint:
		return c.TargetEndpoint
	case FieldTargetKey:
		return c.TargetKey
	}

	return ""
}

// Require returns a [ConfigurationError] for the first of fields that is
// empty or blank.
func (c *Config) Require(fields ...string) error {
	for _, field := range fields {
		if strings.TrimSpace(c.Value(field)) == "" {
			return &ConfigurationError{Field: field}
		}
	}

	return nil
}

// ConfigurationError reports a required option that is not set.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return "required option --" + e.Field + " is not set"
}

// Load binds the command flags and the environment and returns the Config.
// Values are not validated; see [Validate].
func Load(cmd *cobra.Command) (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if cmd.PersistentFlags() != nil {
		_ = v.BindPFlags(cmd.PersistentFlags())
	}

	if cmd.Flags() != nil {
		_ = v.BindPFlags(cmd.Flags())
	}

	bindEnvVars(v)

	if file := v.GetString("config"); file != "" {
		v.SetConfigFile(file)

		err := v.ReadInConfig()
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %q", file)
		}
	}

	var cfg Config

	err := v.Unmarshal(&cfg, viper.DecodeHook(
		mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	))
	if err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}

	cfg.SourceEndpoint = strings.TrimSpace(cfg.SourceEndpoint)
	cfg.TargetEndpoint = strings.TrimSpace(cfg.TargetEndpoint)

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("key-field", DefaultKeyField)
	v.SetDefault("page-size", MaxPageSize)
	v.SetDefault("api-version", DefaultAPIVersion)
	v.SetDefault("log-level", "info")
}

func bindEnvVars(v *viper.Viper) {
	for _, key := range []string{
		FieldSourceEndpoint,
		FieldSourceKey,
		FieldSourceIndex,
		FieldTargetEndpoint,
		FieldTargetKey,
		"key-field",
		"page-size",
		"timeout",
		"api-version",
		"metrics-file",
		"log-level",
		"log-json",
		"log-no-color",
	} {
		_ = v.BindEnv(key, envPrefix+"_"+strings.ToUpper(strings.ReplaceAll(key, "-", "_")))
	}

	_ = v.BindEnv("config", envPrefix+"_CONFIG")
}
