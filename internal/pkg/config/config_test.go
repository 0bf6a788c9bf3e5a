package config

import (
	"strings"
	"testing"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("livemap-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server.port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Map.RouteType != "COMMUTER_RAIL" {
		t.Errorf("map.route_type = %q", cfg.Map.RouteType)
	}
	if cfg.Layers.Vehicles.Interval != 15*time.Second {
		t.Errorf("layers.vehicles.interval = %v, want 15s", cfg.Layers.Vehicles.Interval)
	}
	if cfg.Layers.Stops.Interval != time.Hour {
		t.Errorf("layers.stops.interval = %v, want 1h", cfg.Layers.Stops.Interval)
	}
	if cfg.Telemetry.ServiceName != "livemap-test" {
		t.Errorf("telemetry.service_name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("LIVEMAP_SERVER_PORT", "9090")
	t.Setenv("LIVEMAP_MAP_ROUTE_TYPE", "SUBWAY")
	t.Setenv("LIVEMAP_LAYERS_VEHICLES_INTERVAL", "5s")

	cfg, err := Load("livemap-test")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("server.port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Map.RouteType != "SUBWAY" {
		t.Errorf("map.route_type = %q, want SUBWAY", cfg.Map.RouteType)
	}
	if cfg.Layers.Vehicles.Interval != 5*time.Second {
		t.Errorf("layers.vehicles.interval = %v, want 5s", cfg.Layers.Vehicles.Interval)
	}
}

func TestLoad_InvalidRouteType(t *testing.T) {
	t.Setenv("LIVEMAP_MAP_ROUTE_TYPE", "HOVERCRAFT")

	_, err := Load("livemap-test")
	if err == nil {
		t.Fatal("expected error for unknown route type")
	}
	if !strings.Contains(err.Error(), "map.route_type") {
		t.Errorf("error %q does not name map.route_type", err)
	}
}

func validConfig() Config {
	return Config{
		Server:    ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database:  DatabaseConfig{Host: "localhost", Port: 5432, User: "transit", DBName: "livemap", SSLMode: "disable"},
		NATS:      NATSConfig{URL: "nats://localhost:4222"},
		Valkey:    ValkeyConfig{Addr: "localhost:6379"},
		Telemetry: TelemetryConfig{Enabled: true, TempoAddr: "tempo:4317", SampleRatio: 1},
		Logging:   LoggingConfig{Level: "info", Format: "json"},
		Map:       MapConfig{RouteType: "COMMUTER_RAIL", Timezone: "America/New_York", StaticDir: "static/geojsons"},
		Layers: LayersConfig{
			Vehicles:     LayerConfig{URL: "http://localhost:8080/v1/feeds/vehicles", Interval: 15 * time.Second},
			Stops:        LayerConfig{Interval: time.Hour},
			Shapes:       LayerConfig{Interval: time.Hour},
			Parking:      LayerConfig{Interval: time.Hour},
			FetchTimeout: 10 * time.Second,
		},
		Realtime: RealtimeConfig{Interval: 15 * time.Second, Timeout: 10 * time.Second, MaxConcurrency: 3},
		Temporal: TemporalConfig{HostPort: "localhost:7233", Namespace: "default", TaskQueue: "livemap-export"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr []string
	}{
		{name: "valid", mutate: func(c *Config) {}},
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: []string{"server.port must be <= 65535"},
		},
		{
			name:    "missing database host",
			mutate:  func(c *Config) { c.Database.Host = "" },
			wantErr: []string{"database.host is required"},
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: []string{"logging.format must be one of"},
		},
		{
			name:    "zero layer interval",
			mutate:  func(c *Config) { c.Layers.Stops.Interval = 0 },
			wantErr: []string{"layers.stops.interval must be positive"},
		},
		{
			name:    "bad realtime url",
			mutate:  func(c *Config) { c.Realtime.AlertsURL = "not a url" },
			wantErr: []string{"realtime.alerts_url must be a URL"},
		},
		{
			name:    "tracing without endpoint",
			mutate:  func(c *Config) { c.Telemetry.TempoAddr = "" },
			wantErr: []string{"telemetry.tempo_addr is required"},
		},
		{
			name: "every problem reported",
			mutate: func(c *Config) {
				c.NATS.URL = ""
				c.Valkey.Addr = ""
				c.Map.RouteType = "ZEPPELIN"
			},
			wantErr: []string{"nats.url is required", "valkey.addr is required", "map.route_type"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			for _, want := range tt.wantErr {
				if !strings.Contains(err.Error(), want) {
					t.Errorf("error %q missing %q", err, want)
				}
			}
		})
	}
}

func TestLayerURL(t *testing.T) {
	cfg := validConfig()
	cfg.Map.RouteType = "commuter_rail"

	if got := cfg.LayerURL(domain.LayerVehicles, ""); got != "http://localhost:8080/v1/feeds/vehicles" {
		t.Errorf("vehicles url = %q", got)
	}
	if got := cfg.LayerURL(domain.LayerStops, "stops.json"); got != "static/geojsons/COMMUTER_RAIL/stops.json" {
		t.Errorf("stops url = %q", got)
	}

	cfg.Layers.Parking.URL = "https://example.com/park.json"
	if got := cfg.LayerURL(domain.LayerParking, "park.json"); got != "https://example.com/park.json" {
		t.Errorf("parking url = %q", got)
	}
}

func TestExportDir(t *testing.T) {
	cfg := validConfig()
	cfg.Map.StaticDir = "./static/geojsons"
	if got := cfg.ExportDir(); got != "./static/geojsons" {
		t.Errorf("expected static dir fallback, got %q", got)
	}
	cfg.Temporal.OutputDir = "/srv/export"
	if got := cfg.ExportDir(); got != "/srv/export" {
		t.Errorf("expected output dir, got %q", got)
	}
}
