package usecases

import (
	"context"
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

const metersPerSecondToMPH = 2.2369362920544

// VehicleFeedService builds the vehicle feature collection from the
// positions stored by the realtime poller.
type VehicleFeedService struct {
	vehicles  ports.VehicleRepository
	routeType int
}

// NewVehicleFeedService creates a new VehicleFeedService.
func NewVehicleFeedService(vehicles ports.VehicleRepository, routeType int) *VehicleFeedService {
	return &VehicleFeedService{vehicles: vehicles, routeType: routeType}
}

// Features returns one feature per vehicle of the configured route type.
func (s *VehicleFeedService) Features(ctx context.Context) ([]domain.Feature, error) {
	vps, err := s.vehicles.ListByRouteType(ctx, s.routeType)
	if err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	features := make([]domain.Feature, 0, len(vps))
	for _, vp := range vps {
		features = append(features, VehicleFeature(vp))
	}
	return features, nil
}

// VehicleFeature converts a stored position into a feature whose property
// bag matches what the vehicle renderer reads.
func VehicleFeature(vp domain.VehiclePosition) domain.Feature {
	displayName := vp.Label
	if displayName == "" {
		displayName = vp.TripShortName
	}

	props := map[string]any{
		"vehicle_id":      vp.VehicleID,
		"trip_id":         vp.TripID,
		"trip_short_name": vp.TripShortName,
		"route_id":        vp.RouteID,
		"route_color":     vp.RouteColor,
		"display_name":    displayName,
		"headsign":        vp.Headsign,
		"bearing":         vp.Bearing,
		"bikes_allowed":   vp.BikesAllowed,
		"current_status":  vp.CurrentStatus,
		"timestamp":       vp.Time.Unix(),
		"route": map[string]any{
			"route_name": vp.RouteName,
			"route_url":  vp.RouteURL,
			"route_type": vp.RouteType,
		},
		"next_stop": map[string]any{
			"stop_name":      vp.StopName,
			"platform_name":  vp.PlatformName,
			"arrival_time":   vp.ArrivalTime,
			"departure_time": vp.DepartureTime,
			"delay":          vp.Delay,
		},
	}
	if vp.DirectionID != nil {
		props["direction_id"] = *vp.DirectionID
	}
	if vp.Speed != nil {
		props["speed_mph"] = *vp.Speed * metersPerSecondToMPH
	}
	if vp.OccupancyStatus != "" {
		props["occupancy_status"] = vp.OccupancyStatus
		if vp.OccupancyPercentage != nil {
			props["occupancy_percentage"] = *vp.OccupancyPercentage
		}
	}
	// A joined prediction means the stop is on the trip's schedule.
	if vp.ArrivalTime != nil || vp.DepartureTime != nil {
		props["stop_time"] = map[string]any{"stop_name": vp.StopName}
	}

	return domain.Feature{
		ID:         vp.VehicleID,
		Geometry:   orb.Point{vp.Location.Lon, vp.Location.Lat},
		Properties: props,
	}
}
