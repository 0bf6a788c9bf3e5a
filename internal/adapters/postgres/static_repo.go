package postgres

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// StaticRepo implements ports.StaticRepository over the GTFS schedule tables.
type StaticRepo struct {
	db *DB
}

func NewStaticRepo(db *DB) *StaticRepo {
	return &StaticRepo{db: db}
}

// StopsByRouteType returns the parent stations served by routes of the
// given type, with the zones and platforms of their child stops. Schedules
// hold the departures of at's service day later than at's time of day.
func (r *StaticRepo) StopsByRouteType(ctx context.Context, routeType int, at time.Time) ([]domain.Stop, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT p.stop_id, p.stop_name, COALESCE(p.stop_desc, ''), COALESCE(p.stop_url, ''),
			COALESCE(p.stop_address, ''), p.stop_lat, p.stop_lon, p.wheelchair_boarding = 1,
			array_agg(DISTINCT c.zone_id) FILTER (WHERE c.zone_id IS NOT NULL),
			array_agg(DISTINCT c.platform_name) FILTER (WHERE c.platform_name IS NOT NULL)
		FROM stops c
		JOIN stops p ON p.stop_id = COALESCE(c.parent_station, c.stop_id)
		WHERE EXISTS (
			SELECT 1 FROM stop_times st
			JOIN trips t ON t.trip_id = st.trip_id
			JOIN routes r ON r.route_id = t.route_id
			WHERE st.stop_id = c.stop_id AND r.route_type = $1
		)
		GROUP BY p.stop_id
		ORDER BY p.stop_id
	`, routeType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stops []domain.Stop
	index := map[string]int{}
	for rows.Next() {
		s := domain.Stop{RouteType: routeType}
		var platforms []string
		if err := rows.Scan(
			&s.StopID, &s.Name, &s.Description, &s.URL,
			&s.Address, &s.Location.Lat, &s.Location.Lon, &s.Wheelchair,
			&s.Zones, &platforms,
		); err != nil {
			return nil, err
		}
		s.Platforms = cleanPlatforms(platforms)
		index[s.StopID] = len(stops)
		stops = append(stops, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(stops) == 0 {
		return []domain.Stop{}, nil
	}

	ids := make([]string, 0, len(stops))
	for _, s := range stops {
		ids = append(ids, s.StopID)
	}

	// Every route calling at a station, whatever its type, is linked from
	// the popup.
	routeRows, err := r.db.Pool.Query(ctx, `
		SELECT DISTINCT COALESCE(c.parent_station, c.stop_id), r.route_id,
			COALESCE(r.route_short_name, ''), COALESCE(r.route_long_name, ''),
			COALESCE(r.route_url, ''), COALESCE(r.route_color, ''), r.route_type
		FROM stops c
		JOIN stop_times st ON st.stop_id = c.stop_id
		JOIN trips t ON t.trip_id = st.trip_id
		JOIN routes r ON r.route_id = t.route_id
		WHERE COALESCE(c.parent_station, c.stop_id) = ANY($1)
		ORDER BY 1, r.route_id
	`, ids)
	if err != nil {
		return nil, err
	}
	defer routeRows.Close()

	for routeRows.Next() {
		var stopID string
		var route domain.Route
		if err := routeRows.Scan(
			&stopID, &route.RouteID,
			&route.ShortName, &route.LongName,
			&route.URL, &route.Color, &route.RouteType,
		); err != nil {
			return nil, err
		}
		if i, ok := index[stopID]; ok {
			stops[i].Routes = append(stops[i].Routes, route)
		}
	}
	if err := routeRows.Err(); err != nil {
		return nil, err
	}

	if err := r.loadSchedules(ctx, stops, index, ids, at); err != nil {
		return nil, fmt.Errorf("stop schedules: %w", err)
	}
	if err := r.loadStopAlerts(ctx, stops, index, ids); err != nil {
		return nil, fmt.Errorf("stop alerts: %w", err)
	}
	return stops, nil
}

func (r *StaticRepo) loadSchedules(ctx context.Context, stops []domain.Stop, index map[string]int, ids []string, at time.Time) error {
	y, m, d := at.Date()
	midnight := time.Date(y, m, d, 0, 0, 0, 0, at.Location())
	secs := int(at.Sub(midnight) / time.Second)

	rows, err := r.db.Pool.Query(ctx, `
		WITH active AS (
			SELECT service_id FROM calendar
			WHERE $2::date BETWEEN start_date AND end_date
				AND CASE EXTRACT(ISODOW FROM $2::date)
					WHEN 1 THEN monday WHEN 2 THEN tuesday WHEN 3 THEN wednesday
					WHEN 4 THEN thursday WHEN 5 THEN friday WHEN 6 THEN saturday
					ELSE sunday END
			UNION
			SELECT service_id FROM calendar_dates WHERE date = $2::date AND exception_type = 1
			EXCEPT
			SELECT service_id FROM calendar_dates WHERE date = $2::date AND exception_type = 2
		)
		SELECT COALESCE(c.parent_station, c.stop_id), t.trip_id,
			COALESCE(NULLIF(r.route_short_name, ''), r.route_long_name, r.route_id), COALESCE(r.route_color, ''),
			COALESCE(NULLIF(t.trip_short_name, ''), t.trip_id),
			COALESCE(NULLIF(st.stop_headsign, ''), t.trip_headsign, ''),
			st.departure_secs, COALESCE(c.platform_name, '')
		FROM stop_times st
		JOIN stops c ON c.stop_id = st.stop_id
		JOIN trips t ON t.trip_id = st.trip_id
		JOIN active a ON a.service_id = t.service_id
		JOIN routes r ON r.route_id = t.route_id
		WHERE COALESCE(c.parent_station, c.stop_id) = ANY($1)
			AND st.departure_secs > $3
		ORDER BY 1, st.departure_secs, t.trip_id
	`, ids, time.Date(y, m, d, 0, 0, 0, 0, time.UTC), secs)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var stopID, platform string
		var st domain.ScheduledStopTime
		if err := rows.Scan(
			&stopID, &st.TripID, &st.RouteName, &st.RouteColor,
			&st.TripName, &st.Headsign, &st.DepartureSecs, &platform,
		); err != nil {
			return err
		}
		st.Platform = platformLabel(platform)
		if i, ok := index[stopID]; ok {
			stops[i].Schedule = append(stops[i].Schedule, st)
		}
	}
	return rows.Err()
}

// loadStopAlerts attaches the alerts informing a station or any of its
// platforms, once per alert, newest first.
func (r *StaticRepo) loadStopAlerts(ctx context.Context, stops []domain.Stop, index map[string]int, ids []string) error {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT station, alert_id, header, description, created_at, updated_at
		FROM (
			SELECT DISTINCT ON (COALESCE(c.parent_station, c.stop_id), a.alert_id)
				COALESCE(c.parent_station, c.stop_id) AS station, a.alert_id, a.header,
				COALESCE(a.description, '') AS description, a.created_at, a.updated_at
			FROM alerts a
			JOIN stops c ON c.stop_id = a.stop_id
			WHERE a.stop_id <> '' AND COALESCE(c.parent_station, c.stop_id) = ANY($1)
			ORDER BY COALESCE(c.parent_station, c.stop_id), a.alert_id
		) sa
		ORDER BY station, created_at DESC NULLS LAST, alert_id
	`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var stopID string
		var a domain.Alert
		if err := rows.Scan(&stopID, &a.AlertID, &a.Header, &a.Description, &a.Timestamp, &a.Updated); err != nil {
			return err
		}
		a.StopID = stopID
		if i, ok := index[stopID]; ok {
			stops[i].Alerts = append(stops[i].Alerts, a)
		}
	}
	return rows.Err()
}

func platformLabel(p string) string {
	return strings.TrimSpace(strings.TrimPrefix(p, "Commuter Rail - "))
}

func cleanPlatforms(platforms []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, p := range platforms {
		p = platformLabel(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// ShapesByRouteType returns every shape used by trips of the route type,
// each attributed to one of its routes.
func (r *StaticRepo) ShapesByRouteType(ctx context.Context, routeType int) ([]domain.Shape, error) {
	rows, err := r.db.Pool.Query(ctx, `
		WITH shape_routes AS (
			SELECT DISTINCT ON (t.shape_id) t.shape_id, r.route_id,
				COALESCE(r.route_short_name, '') AS short_name, COALESCE(r.route_long_name, '') AS long_name,
				COALESCE(r.route_url, '') AS url, COALESCE(r.route_color, '') AS color, r.route_type
			FROM trips t
			JOIN routes r ON r.route_id = t.route_id
			WHERE r.route_type = $1 AND t.shape_id IS NOT NULL
			ORDER BY t.shape_id, r.route_id
		)
		SELECT sr.shape_id, sr.route_id, sr.short_name, sr.long_name, sr.url, sr.color, sr.route_type,
			s.shape_pt_lat, s.shape_pt_lon
		FROM shape_routes sr
		JOIN shapes s ON s.shape_id = sr.shape_id
		ORDER BY sr.shape_id, s.shape_pt_sequence
	`, routeType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	shapes := []domain.Shape{}
	for rows.Next() {
		var shapeID string
		var route domain.Route
		var pt domain.GeoPoint
		if err := rows.Scan(
			&shapeID, &route.RouteID, &route.ShortName, &route.LongName, &route.URL, &route.Color, &route.RouteType,
			&pt.Lat, &pt.Lon,
		); err != nil {
			return nil, err
		}
		if n := len(shapes); n == 0 || shapes[n-1].ShapeID != shapeID {
			shapes = append(shapes, domain.Shape{ShapeID: shapeID, Route: route})
		}
		last := &shapes[len(shapes)-1]
		last.Points = append(last.Points, pt)
	}
	return shapes, rows.Err()
}

// FacilitiesByRouteType returns the parking areas attached to stations of
// the route type.
func (r *StaticRepo) FacilitiesByRouteType(ctx context.Context, routeType int) ([]domain.Facility, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT f.facility_id, COALESCE(f.facility_long_name, f.facility_id), COALESCE(f.stop_id, ''),
			f.facility_lat, f.facility_lon, fp.property_id, fp.value
		FROM facilities f
		LEFT JOIN facility_properties fp ON fp.facility_id = f.facility_id
		WHERE f.facility_type = 'parking-area'
			AND f.facility_lat IS NOT NULL AND f.facility_lon IS NOT NULL
			AND EXISTS (
				SELECT 1 FROM stops c
				JOIN stop_times st ON st.stop_id = c.stop_id
				JOIN trips t ON t.trip_id = st.trip_id
				JOIN routes r ON r.route_id = t.route_id
				WHERE f.stop_id = COALESCE(c.parent_station, c.stop_id) AND r.route_type = $1
			)
		ORDER BY f.facility_id, fp.property_id, fp.value
	`, routeType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	facilities := []domain.Facility{}
	for rows.Next() {
		var f domain.Facility
		var key, value *string
		if err := rows.Scan(&f.FacilityID, &f.Name, &f.StopID, &f.Location.Lat, &f.Location.Lon, &key, &value); err != nil {
			return nil, err
		}
		if n := len(facilities); n == 0 || facilities[n-1].FacilityID != f.FacilityID {
			f.Properties = map[string]string{}
			facilities = append(facilities, f)
		}
		if key != nil && value != nil {
			props := facilities[len(facilities)-1].Properties
			// Multi-valued properties such as payment-form-accepted are joined.
			if prev, ok := props[*key]; ok {
				props[*key] = prev + ", " + *value
			} else {
				props[*key] = *value
			}
		}
	}
	return facilities, rows.Err()
}
