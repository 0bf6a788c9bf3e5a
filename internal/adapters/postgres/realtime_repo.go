package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// replaceTable swaps the contents of a realtime table in one transaction,
// so readers see either the old or the new poll.
func (db *DB) replaceTable(ctx context.Context, table string, columns []string, n int, row func(i int) ([]any, error)) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "DELETE FROM "+pgx.Identifier{table}.Sanitize()); err != nil {
		return fmt.Errorf("clear %s: %w", table, err)
	}
	if n > 0 {
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{table}, columns, pgx.CopyFromSlice(n, row)); err != nil {
			return fmt.Errorf("copy %s: %w", table, err)
		}
	}
	return tx.Commit(ctx)
}

// PredictionRepo implements ports.PredictionRepository.
type PredictionRepo struct {
	db *DB
}

func NewPredictionRepo(db *DB) *PredictionRepo {
	return &PredictionRepo{db: db}
}

func (r *PredictionRepo) ListByTrip(ctx context.Context, tripID string, includeStopTime bool) ([]domain.Prediction, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT p.trip_id, p.stop_id, COALESCE(s.stop_name, p.stop_id), p.stop_sequence,
			p.arrival_time, p.departure_time, p.delay,
			st.flag_stop, st.early_departure
		FROM predictions p
		LEFT JOIN stops s ON s.stop_id = p.stop_id
		LEFT JOIN stop_times st ON st.trip_id = p.trip_id AND st.stop_id = p.stop_id
		WHERE p.trip_id = $1
		ORDER BY p.stop_sequence
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	preds := []domain.Prediction{}
	for rows.Next() {
		var p domain.Prediction
		var flagStop, earlyDeparture *bool
		if err := rows.Scan(
			&p.TripID, &p.StopID, &p.StopName, &p.StopSequence,
			&p.ArrivalTime, &p.DepartureTime, &p.Delay,
			&flagStop, &earlyDeparture,
		); err != nil {
			return nil, err
		}
		if includeStopTime && flagStop != nil {
			p.StopTime = &domain.PredictionStopTime{
				FlagStop:       *flagStop,
				EarlyDeparture: earlyDeparture != nil && *earlyDeparture,
			}
		}
		preds = append(preds, p)
	}
	return preds, rows.Err()
}

func (r *PredictionRepo) ReplaceAll(ctx context.Context, preds []domain.Prediction) error {
	return r.db.replaceTable(ctx, "predictions",
		[]string{"trip_id", "stop_id", "stop_sequence", "arrival_time", "departure_time", "delay"},
		len(preds), func(i int) ([]any, error) {
			p := preds[i]
			return []any{p.TripID, p.StopID, p.StopSequence, p.ArrivalTime, p.DepartureTime, p.Delay}, nil
		})
}

// AlertRepo implements ports.AlertRepository.
type AlertRepo struct {
	db *DB
}

func NewAlertRepo(db *DB) *AlertRepo {
	return &AlertRepo{db: db}
}

func (r *AlertRepo) ListByTrip(ctx context.Context, tripID string) ([]domain.Alert, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT alert_id, trip_id, header, COALESCE(description, ''), created_at, updated_at
		FROM alerts
		WHERE trip_id = $1
	`, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	alerts := []domain.Alert{}
	for rows.Next() {
		var a domain.Alert
		if err := rows.Scan(&a.AlertID, &a.TripID, &a.Header, &a.Description, &a.Timestamp, &a.Updated); err != nil {
			return nil, err
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

func (r *AlertRepo) ReplaceAll(ctx context.Context, alerts []domain.Alert) error {
	return r.db.replaceTable(ctx, "alerts",
		[]string{"alert_id", "trip_id", "stop_id", "header", "description", "created_at", "updated_at"},
		len(alerts), func(i int) ([]any, error) {
			a := alerts[i]
			return []any{a.AlertID, a.TripID, a.StopID, a.Header, nilIfEmpty(a.Description), a.Timestamp, a.Updated}, nil
		})
}

// VehicleRepo implements ports.VehicleRepository.
type VehicleRepo struct {
	db *DB
}

func NewVehicleRepo(db *DB) *VehicleRepo {
	return &VehicleRepo{db: db}
}

func (r *VehicleRepo) ListByRouteType(ctx context.Context, routeType int) ([]domain.VehiclePosition, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT v.vehicle_id, COALESCE(v.label, ''), COALESCE(v.trip_id, ''), COALESCE(t.trip_short_name, ''),
			v.route_id, r.route_type, COALESCE(r.route_long_name, r.route_short_name, ''),
			COALESCE(r.route_url, ''), COALESCE(r.route_color, ''),
			v.direction_id, COALESCE(t.trip_headsign, ''), COALESCE(t.bikes_allowed, FALSE),
			v.lat, v.lon, v.bearing, v.speed,
			COALESCE(v.current_status, ''), COALESCE(v.stop_id, ''),
			COALESCE(s.stop_name, ''), COALESCE(s.platform_name, ''),
			COALESCE(v.occupancy_status, ''), v.occupancy_percentage, v.updated_at,
			p.arrival_time, p.departure_time, p.delay
		FROM vehicles v
		JOIN routes r ON r.route_id = v.route_id
		LEFT JOIN trips t ON t.trip_id = v.trip_id
		LEFT JOIN stops s ON s.stop_id = v.stop_id
		LEFT JOIN LATERAL (
			SELECT arrival_time, departure_time, delay
			FROM predictions
			WHERE trip_id = v.trip_id AND stop_id = v.stop_id
			ORDER BY stop_sequence
			LIMIT 1
		) p ON TRUE
		WHERE r.route_type = $1
		ORDER BY v.vehicle_id
	`, routeType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	vps := []domain.VehiclePosition{}
	for rows.Next() {
		var vp domain.VehiclePosition
		if err := rows.Scan(
			&vp.VehicleID, &vp.Label, &vp.TripID, &vp.TripShortName,
			&vp.RouteID, &vp.RouteType, &vp.RouteName,
			&vp.RouteURL, &vp.RouteColor,
			&vp.DirectionID, &vp.Headsign, &vp.BikesAllowed,
			&vp.Location.Lat, &vp.Location.Lon, &vp.Bearing, &vp.Speed,
			&vp.CurrentStatus, &vp.StopID,
			&vp.StopName, &vp.PlatformName,
			&vp.OccupancyStatus, &vp.OccupancyPercentage, &vp.Time,
			&vp.ArrivalTime, &vp.DepartureTime, &vp.Delay,
		); err != nil {
			return nil, err
		}
		vps = append(vps, vp)
	}
	return vps, rows.Err()
}

func (r *VehicleRepo) ReplaceAll(ctx context.Context, vps []domain.VehiclePosition) error {
	// Feeds occasionally repeat a vehicle; the primary key keeps the last one.
	seen := make(map[string]int, len(vps))
	unique := make([]domain.VehiclePosition, 0, len(vps))
	for _, vp := range vps {
		if i, ok := seen[vp.VehicleID]; ok {
			unique[i] = vp
			continue
		}
		seen[vp.VehicleID] = len(unique)
		unique = append(unique, vp)
	}

	return r.db.replaceTable(ctx, "vehicles",
		[]string{"vehicle_id", "label", "trip_id", "route_id", "direction_id", "lat", "lon", "bearing",
			"speed", "current_status", "stop_id", "occupancy_status", "occupancy_percentage", "updated_at"},
		len(unique), func(i int) ([]any, error) {
			vp := unique[i]
			return []any{
				vp.VehicleID, nilIfEmpty(vp.Label), nilIfEmpty(vp.TripID), nilIfEmpty(vp.RouteID), vp.DirectionID,
				vp.Location.Lat, vp.Location.Lon, vp.Bearing, vp.Speed,
				nilIfEmpty(vp.CurrentStatus), nilIfEmpty(vp.StopID), nilIfEmpty(vp.OccupancyStatus),
				vp.OccupancyPercentage, vp.Time,
			}, nil
		})
}

func nilIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
