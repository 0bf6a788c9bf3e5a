package config

import (
	"errors"
	"fmt"
	"path"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Map       MapConfig       `mapstructure:"map"`
	Layers    LayersConfig    `mapstructure:"layers"`
	Realtime  RealtimeConfig  `mapstructure:"realtime"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeout  int `mapstructure:"read_timeout" validate:"gt=0"`
	WriteTimeout int `mapstructure:"write_timeout" validate:"gt=0"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host" validate:"required"`
	Port     int    `mapstructure:"port" validate:"min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required"`
	SSLMode  string `mapstructure:"sslmode" validate:"oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns int32  `mapstructure:"max_conns" validate:"gte=0"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url" validate:"required"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr" validate:"required"`
}

type TelemetryConfig struct {
	ServiceName string  `mapstructure:"service_name"`
	TempoAddr   string  `mapstructure:"tempo_addr"`
	Enabled     bool    `mapstructure:"enabled"`
	SampleRatio float64 `mapstructure:"sample_ratio" validate:"gte=0,lte=1"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=json text"`
}

type MapConfig struct {
	// RouteType is the selector served at /value, e.g. COMMUTER_RAIL.
	RouteType string `mapstructure:"route_type" validate:"required"`
	Timezone  string `mapstructure:"timezone" validate:"required"`
	// StaticDir holds <ROUTE_TYPE>/{stops,shapes,park}.json.
	StaticDir string `mapstructure:"static_dir" validate:"required"`
	// AssetsDir is served under /static; empty disables it.
	AssetsDir string `mapstructure:"assets_dir"`
}

// LayerConfig is the source and poll interval of one layer. An empty URL
// means the layer's file under map.static_dir.
type LayerConfig struct {
	URL      string        `mapstructure:"url"`
	Interval time.Duration `mapstructure:"interval" validate:"gt=0"`
}

type LayersConfig struct {
	Vehicles LayerConfig `mapstructure:"vehicles"`
	Stops    LayerConfig `mapstructure:"stops"`
	Shapes   LayerConfig `mapstructure:"shapes"`
	Parking  LayerConfig `mapstructure:"parking"`
	// FetchTimeout bounds one feature collection fetch.
	FetchTimeout time.Duration `mapstructure:"fetch_timeout" validate:"gt=0"`
}

// Layer returns the configuration of a layer.
func (l LayersConfig) Layer(kind domain.LayerKind) LayerConfig {
	switch kind {
	case domain.LayerVehicles:
		return l.Vehicles
	case domain.LayerStops:
		return l.Stops
	case domain.LayerShapes:
		return l.Shapes
	case domain.LayerParking:
		return l.Parking
	}
	return LayerConfig{}
}

type RealtimeConfig struct {
	TripUpdatesURL      string        `mapstructure:"trip_updates_url" validate:"omitempty,url"`
	VehiclePositionsURL string        `mapstructure:"vehicle_positions_url" validate:"omitempty,url"`
	AlertsURL           string        `mapstructure:"alerts_url" validate:"omitempty,url"`
	Interval            time.Duration `mapstructure:"interval" validate:"gt=0"`
	Timeout             time.Duration `mapstructure:"timeout" validate:"gt=0"`
	MaxConcurrency      int           `mapstructure:"max_concurrency" validate:"min=1"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port" validate:"required"`
	Namespace string `mapstructure:"namespace" validate:"required"`
	TaskQueue string `mapstructure:"task_queue" validate:"required"`
	Cron      string `mapstructure:"cron"`
	OutputDir string `mapstructure:"output_dir"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	// A local .env is a convenience for development; it never overrides
	// variables already set.
	_ = godotenv.Load()

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "transit")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "livemap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 20)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("telemetry.sample_ratio", 1.0)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("map.route_type", "COMMUTER_RAIL")
	v.SetDefault("map.timezone", "America/New_York")
	v.SetDefault("map.static_dir", "./static/geojsons")
	v.SetDefault("map.assets_dir", "./static")
	v.SetDefault("layers.vehicles.url", "http://localhost:8080/v1/feeds/vehicles")
	v.SetDefault("layers.vehicles.interval", 15*time.Second)
	v.SetDefault("layers.stops.interval", time.Hour)
	v.SetDefault("layers.shapes.interval", time.Hour)
	v.SetDefault("layers.parking.interval", time.Hour)
	v.SetDefault("layers.fetch_timeout", 10*time.Second)
	v.SetDefault("realtime.trip_updates_url", "https://cdn.mbta.com/realtime/TripUpdates.pb")
	v.SetDefault("realtime.vehicle_positions_url", "https://cdn.mbta.com/realtime/VehiclePositions.pb")
	v.SetDefault("realtime.alerts_url", "https://cdn.mbta.com/realtime/Alerts.pb")
	v.SetDefault("realtime.interval", 15*time.Second)
	v.SetDefault("realtime.timeout", 10*time.Second)
	v.SetDefault("realtime.max_concurrency", 3)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "livemap-export")
	v.SetDefault("temporal.cron", "0 4 * * *")
	v.SetDefault("temporal.output_dir", "")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: LIVEMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("LIVEMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

var validate = newValidator()

// newValidator reports fields by their config keys.
func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

// Validate checks that required configuration fields are present and sane.
// Every problem is reported at once.
func (c *Config) Validate() error {
	var errs []string

	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("validate config: %w", err)
		}
		for _, fe := range verrs {
			errs = append(errs, describe(fe))
		}
	}

	if _, err := domain.ParseRouteType(c.Map.RouteType); err != nil {
		errs = append(errs, fmt.Sprintf("map.route_type: %v", err))
	}
	if c.Telemetry.Enabled && c.Telemetry.TempoAddr == "" {
		errs = append(errs, "telemetry.tempo_addr is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// describe turns a validator error into a message keyed by the dotted
// config key, e.g. "server.port must be <= 65535, got 70000".
func describe(fe validator.FieldError) string {
	key := fe.Namespace()
	if i := strings.IndexByte(key, '.'); i >= 0 {
		key = key[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return key + " is required"
	case "min", "gte":
		return fmt.Sprintf("%s must be >= %s, got %v", key, fe.Param(), fe.Value())
	case "max", "lte":
		return fmt.Sprintf("%s must be <= %s, got %v", key, fe.Param(), fe.Value())
	case "gt":
		return key + " must be positive"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %v", key, fe.Param(), fe.Value())
	case "url":
		return fmt.Sprintf("%s must be a URL, got %v", key, fe.Value())
	}
	return fmt.Sprintf("%s failed %s", key, fe.Tag())
}

// LayerURL returns the source of a layer: the configured URL, or the
// layer's exported file under map.static_dir.
func (c *Config) LayerURL(kind domain.LayerKind, file string) string {
	if u := c.Layers.Layer(kind).URL; u != "" {
		return u
	}
	return path.Join(c.Map.StaticDir, strings.ToUpper(c.Map.RouteType), file)
}

// ExportDir is where the exporter writes collections: temporal.output_dir,
// or map.static_dir so the refreshers pick the files up.
func (c *Config) ExportDir() string {
	if c.Temporal.OutputDir != "" {
		return c.Temporal.OutputDir
	}
	return c.Map.StaticDir
}
