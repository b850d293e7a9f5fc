package config

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type Config struct {
	ServiceName string    `mapstructure:"service_name" validate:"required"`
	Env         string    `mapstructure:"env"`
	Temporal    Temporal  `mapstructure:"temporal"`
	Services    Services  `mapstructure:"services"`
	HTTP        HTTP      `mapstructure:"http"`
	Metrics     Metrics   `mapstructure:"metrics"`
	Log         Log       `mapstructure:"log"`
	Telemetry   Telemetry `mapstructure:"telemetry"`
	Shipping    Shipping  `mapstructure:"shipping"`
}

type Temporal struct {
	HostPort  string `mapstructure:"host_port" validate:"required,hostname_port"`
	Namespace string `mapstructure:"namespace" validate:"required"`
	TaskQueue string `mapstructure:"task_queue" validate:"required"`
}

type Services struct {
	BaseURL string `mapstructure:"base_url" validate:"required,url"`
}

type HTTP struct {
	Port           string        `mapstructure:"port" validate:"required,numeric"`
	RequestTimeout time.Duration `mapstructure:"request_timeout" validate:"gt=0"`
}

type Metrics struct {
	Port string `mapstructure:"port" validate:"required,numeric"`
}

type Log struct {
	Level       string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Development bool   `mapstructure:"development"`
}

type Telemetry struct {
	// OTLPEndpoint is host:port of an OTLP HTTP collector; empty disables tracing
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
}

type Shipping struct {
	PulseInterval time.Duration `mapstructure:"pulse_interval" validate:"gt=0"`
	Pulses        int           `mapstructure:"pulses" validate:"min=1"`
}

// Load reads configuration from defaults, an optional config file and
// FULFILLMENT_* environment variables, in increasing precedence.
// A nested key like temporal.host_port maps to FULFILLMENT_TEMPORAL_HOST_PORT.
func Load(configFile string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("FULFILLMENT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "error reading config file %s", configFile)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "error unmarshaling config")
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("service_name", "order-fulfillment")
	v.SetDefault("env", "local")

	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "order-fulfillment-task-queue")

	v.SetDefault("services.base_url", "http://localhost:3001")

	v.SetDefault("http.port", "3000")
	// GET /order/{id}/result blocks until the order is terminal
	v.SetDefault("http.request_timeout", 5*time.Minute)
	v.SetDefault("metrics.port", "9090")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.development", false)

	v.SetDefault("telemetry.otlp_endpoint", "")

	v.SetDefault("shipping.pulse_interval", 4*time.Second)
	v.SetDefault("shipping.pulses", 5)
}
