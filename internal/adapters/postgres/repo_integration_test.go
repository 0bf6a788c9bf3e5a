//go:build integration
// +build integration

package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/samirrijal/livemap/internal/adapters/postgres"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/pkg/config"
	"github.com/samirrijal/livemap/migrations"
)

// setupTestDB connects to the test database, applies the schema and seeds
// one commuter rail trip calling at a station with two platforms.
func setupTestDB(t *testing.T) *postgres.DB {
	cfg, err := config.Load("livemap-test")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := postgres.New(ctx, cfg.Database.DSN(), postgres.Options{ConnectTimeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(db.Close)

	if _, err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	seed := []string{
		`DELETE FROM routes WHERE route_id LIKE 'test-%'`,
		`DELETE FROM stops WHERE stop_id LIKE 'test-%'`,
		`DELETE FROM shapes WHERE shape_id LIKE 'test-%'`,
		`DELETE FROM calendar WHERE service_id LIKE 'test-%'`,
		`DELETE FROM calendar_dates WHERE service_id LIKE 'test-%'`,
		`INSERT INTO calendar (service_id, monday, tuesday, wednesday, thursday, friday, start_date, end_date)
			VALUES ('test-weekday', TRUE, TRUE, TRUE, TRUE, TRUE, '2024-01-01', '2024-12-31')`,
		`INSERT INTO calendar_dates (service_id, date, exception_type)
			VALUES ('test-weekday', '2024-01-16', 2)`,
		`INSERT INTO routes (route_id, route_short_name, route_long_name, route_color, route_type)
			VALUES ('test-CR-Worcester', '', 'Framingham/Worcester Line', '80276C', 2)`,
		`INSERT INTO stops (stop_id, stop_name, stop_lat, stop_lon, location_type, wheelchair_boarding)
			VALUES ('test-place-sstat', 'South Station', 42.3523, -71.0552, 1, 1)`,
		`INSERT INTO stops (stop_id, stop_name, stop_lat, stop_lon, zone_id, platform_name, parent_station)
			VALUES ('test-NEC-2287-01', 'South Station', 42.3523, -71.0552, 'CR-zone-1A', 'Commuter Rail - Track 1', 'test-place-sstat'),
			       ('test-NEC-2287-02', 'South Station', 42.3523, -71.0552, 'CR-zone-1A', 'Commuter Rail - Track 2', 'test-place-sstat')`,
		`INSERT INTO trips (trip_id, route_id, service_id, shape_id, trip_short_name, trip_headsign, bikes_allowed)
			VALUES ('test-trip-507', 'test-CR-Worcester', 'test-weekday', 'test-shape-1', '507', 'Worcester', TRUE),
			       ('test-trip-509', 'test-CR-Worcester', 'test-weekday', 'test-shape-1', '509', 'Worcester', FALSE)`,
		`INSERT INTO stop_times (trip_id, stop_sequence, stop_id, departure_secs, stop_headsign, flag_stop)
			VALUES ('test-trip-507', 1, 'test-NEC-2287-01', 32400, 'Framingham', FALSE),
			       ('test-trip-509', 1, 'test-NEC-2287-02', 25200, NULL, TRUE)`,
		`INSERT INTO shapes (shape_id, shape_pt_sequence, shape_pt_lat, shape_pt_lon)
			VALUES ('test-shape-1', 2, 42.35, -71.07), ('test-shape-1', 1, 42.3523, -71.0552)`,
	}
	for _, q := range seed {
		if _, err := db.Pool.Exec(ctx, q); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}
	return db
}

func TestStaticRepo_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	repo := postgres.NewStaticRepo(db)
	ctx := context.Background()

	created := int64(1705300000)
	err := postgres.NewAlertRepo(db).ReplaceAll(ctx, []domain.Alert{
		{AlertID: "test-a1", StopID: "test-NEC-2287-01", Header: "Track change", Timestamp: &created},
		{AlertID: "test-a1", StopID: "test-place-sstat", Header: "Track change", Timestamp: &created},
		{AlertID: "test-a2", TripID: "test-trip-507", Header: "Delayed"},
	})
	if err != nil {
		t.Fatalf("replace alerts: %v", err)
	}

	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatal(err)
	}
	// Monday 08:00: trip 509 (07:00) already left, trip 507 (09:00) has not.
	monday := time.Date(2024, 1, 15, 8, 0, 0, 0, loc)
	stops, err := repo.StopsByRouteType(ctx, domain.RouteTypeCommuterRail, monday)
	if err != nil {
		t.Fatalf("stops: %v", err)
	}
	var station *domain.Stop
	for i := range stops {
		if stops[i].StopID == "test-place-sstat" {
			station = &stops[i]
		}
	}
	if station == nil {
		t.Fatal("expected the parent station")
	}
	if !station.Wheelchair {
		t.Error("expected wheelchair accessible")
	}
	if len(station.Platforms) != 2 || station.Platforms[0] != "Track 1" {
		t.Errorf("expected cleaned platforms, got %v", station.Platforms)
	}
	if len(station.Routes) != 1 || station.Routes[0].LongName != "Framingham/Worcester Line" {
		t.Errorf("unexpected routes %+v", station.Routes)
	}
	if len(station.Schedule) != 1 {
		t.Fatalf("expected one remaining departure, got %+v", station.Schedule)
	}
	if st := station.Schedule[0]; st.TripName != "507" || st.Headsign != "Framingham" || st.DepartureSecs != 32400 || st.Platform != "Track 1" || st.RouteName != "Framingham/Worcester Line" {
		t.Errorf("unexpected departure %+v", st)
	}
	if len(station.Alerts) != 1 || station.Alerts[0].AlertID != "test-a1" || station.Alerts[0].StopID != "test-place-sstat" {
		t.Errorf("expected one deduplicated stop alert, got %+v", station.Alerts)
	}

	// The service is removed on Tuesday the 16th.
	stops, err = repo.StopsByRouteType(ctx, domain.RouteTypeCommuterRail, time.Date(2024, 1, 16, 6, 0, 0, 0, loc))
	if err != nil {
		t.Fatalf("stops: %v", err)
	}
	for _, s := range stops {
		if s.StopID == "test-place-sstat" && len(s.Schedule) != 0 {
			t.Errorf("expected no departures on a removed service day, got %+v", s.Schedule)
		}
	}

	shapes, err := repo.ShapesByRouteType(ctx, domain.RouteTypeCommuterRail)
	if err != nil {
		t.Fatalf("shapes: %v", err)
	}
	for _, s := range shapes {
		if s.ShapeID != "test-shape-1" {
			continue
		}
		if len(s.Points) != 2 || s.Points[0].Lat != 42.3523 {
			t.Errorf("expected points in sequence order, got %v", s.Points)
		}
		return
	}
	t.Error("expected test-shape-1")
}

func TestRealtimeRepos_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	db := setupTestDB(t)
	ctx := context.Background()
	dep := time.Now().Add(10 * time.Minute).Unix()
	delay := 120

	preds := postgres.NewPredictionRepo(db)
	err := preds.ReplaceAll(ctx, []domain.Prediction{
		{TripID: "test-trip-509", StopID: "test-NEC-2287-02", StopSequence: 1, DepartureTime: &dep, Delay: &delay},
	})
	if err != nil {
		t.Fatalf("replace predictions: %v", err)
	}

	got, err := preds.ListByTrip(ctx, "test-trip-509", true)
	if err != nil {
		t.Fatalf("list predictions: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 prediction, got %d", len(got))
	}
	if got[0].StopName != "South Station" || got[0].StopTime == nil || !got[0].StopTime.FlagStop {
		t.Errorf("expected a joined flag stop, got %+v", got[0])
	}

	vehicles := postgres.NewVehicleRepo(db)
	err = vehicles.ReplaceAll(ctx, []domain.VehiclePosition{
		{VehicleID: "test-1710", TripID: "test-trip-509", RouteID: "test-CR-Worcester", StopID: "test-NEC-2287-02",
			Location: domain.GeoPoint{Lat: 42.35, Lon: -71.06}, Time: time.Now()},
		{VehicleID: "test-1710", TripID: "test-trip-509", RouteID: "test-CR-Worcester", StopID: "test-NEC-2287-02",
			Location: domain.GeoPoint{Lat: 42.36, Lon: -71.06}, Time: time.Now()},
	})
	if err != nil {
		t.Fatalf("replace vehicles: %v", err)
	}

	vps, err := vehicles.ListByRouteType(ctx, domain.RouteTypeCommuterRail)
	if err != nil {
		t.Fatalf("list vehicles: %v", err)
	}
	if len(vps) != 1 {
		t.Fatalf("expected the duplicate collapsed, got %d", len(vps))
	}
	vp := vps[0]
	if vp.Location.Lat != 42.36 || vp.TripShortName != "509" || vp.PlatformName != "Commuter Rail - Track 2" {
		t.Errorf("unexpected vehicle %+v", vp)
	}
	if vp.DepartureTime == nil || *vp.DepartureTime != dep {
		t.Errorf("expected the stop prediction joined, got %v", vp.DepartureTime)
	}

	alerts := postgres.NewAlertRepo(db)
	ts := time.Now().Unix()
	if err := alerts.ReplaceAll(ctx, []domain.Alert{{AlertID: "1", TripID: "test-trip-509", Header: "Delayed", Timestamp: &ts}}); err != nil {
		t.Fatalf("replace alerts: %v", err)
	}
	as, err := alerts.ListByTrip(ctx, "test-trip-509")
	if err != nil || len(as) != 1 || as[0].Header != "Delayed" {
		t.Errorf("unexpected alerts %+v, %v", as, err)
	}
}
