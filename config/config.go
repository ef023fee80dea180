// Package config loads TaskManager settings from defaults, an optional YAML file and
// TASKMGR_ environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	taskmanager "github.com/Swind/go-task-manager"
	"github.com/Swind/go-task-manager/core"
	"github.com/Swind/go-task-manager/logging"
)

// EnvPrefix is prepended to every environment variable, e.g. TASKMGR_WORKERS.
const EnvPrefix = "TASKMGR"

// Evaluator names.
const (
	EvaluatorWeighted = "weighted"
	EvaluatorStrict   = "strict"
)

// Config holds the settings of one TaskManager and its observability surface.
type Config struct {
	Name string `mapstructure:"name" validate:"required"`

	// Workers is the pool size; -1 derives it from GOMAXPROCS and ReservedThreads.
	Workers         int `mapstructure:"workers" validate:"gte=-1,ne=0"`
	ReservedThreads int `mapstructure:"reserved_threads" validate:"gte=0"`

	Evaluator   string `mapstructure:"evaluator" validate:"oneof=weighted strict"`
	HighQuota   int    `mapstructure:"high_quota" validate:"gte=0"`
	NormalQuota int    `mapstructure:"normal_quota" validate:"gte=0"`

	LogLevel   string `mapstructure:"log_level" validate:"oneof=debug info warn error"`
	LogBackend string `mapstructure:"log_backend" validate:"oneof=std slog logrus zap none"`

	MetricsAddr      string `mapstructure:"metrics_addr" validate:"omitempty,hostname_port"`
	MetricsNamespace string `mapstructure:"metrics_namespace" validate:"required"`

	HistorySize int `mapstructure:"history_size" validate:"gt=0"`
}

var defaults = map[string]any{
	"name":              "taskmanager",
	"workers":           taskmanager.AutoWorkers,
	"reserved_threads":  taskmanager.DefaultReservedThreads,
	"evaluator":         EvaluatorWeighted,
	"high_quota":        core.DefaultHighQuota,
	"normal_quota":      core.DefaultNormalQuota,
	"log_level":         "info",
	"log_backend":       logging.BackendStd,
	"metrics_addr":      "",
	"metrics_namespace": "taskmanager",
	"history_size":      100,
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	cfg, err := decode(newViper())
	if err != nil {
		panic(fmt.Sprintf("config: invalid defaults: %v", err))
	}
	return cfg
}

// Load reads path (if not empty) and the environment. Environment variables take
// precedence over the file.
func Load(path string) (*Config, error) {
	v := newViper()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	for key := range defaults {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("config: bind %s: %w", key, err)
		}
	}

	return decode(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s fails %q: %w", verrs[0].Field(), verrs[0].Tag(), err)
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// NewEvaluator builds the configured evaluator.
func (c *Config) NewEvaluator() core.TaskEvaluator {
	if c.Evaluator == EvaluatorStrict {
		return core.StrictEvaluator{}
	}
	return core.NewWeightedEvaluator(c.HighQuota, c.NormalQuota)
}

// NewLogger builds the configured logger.
func (c *Config) NewLogger() (core.Logger, error) {
	return logging.New(c.LogBackend, c.LogLevel)
}

// Options converts the configuration to TaskManager options. Metrics are not included;
// the caller owns the registry.
func (c *Config) Options() ([]taskmanager.Option, error) {
	logger, err := c.NewLogger()
	if err != nil {
		return nil, err
	}
	return []taskmanager.Option{
		taskmanager.WithName(c.Name),
		taskmanager.WithReservedThreads(c.ReservedThreads),
		taskmanager.WithEvaluator(c.NewEvaluator()),
		taskmanager.WithLogger(logger),
		taskmanager.WithHistorySize(c.HistorySize),
	}, nil
}
