package ports

import (
	"context"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// PredictionRepository reads and replaces realtime predictions.
type PredictionRepository interface {
	ListByTrip(ctx context.Context, tripID string, includeStopTime bool) ([]domain.Prediction, error)
	ReplaceAll(ctx context.Context, predictions []domain.Prediction) error
}

// AlertRepository reads and replaces service alerts.
type AlertRepository interface {
	ListByTrip(ctx context.Context, tripID string) ([]domain.Alert, error)
	ReplaceAll(ctx context.Context, alerts []domain.Alert) error
}

// VehicleRepository reads and replaces the latest vehicle positions.
type VehicleRepository interface {
	ListByRouteType(ctx context.Context, routeType int) ([]domain.VehiclePosition, error)
	ReplaceAll(ctx context.Context, vehicles []domain.VehiclePosition) error
}

// StaticRepository provides the schedule data behind the static layers.
type StaticRepository interface {
	// StopsByRouteType loads stations with the departures remaining after
	// at on its service day and their current alerts.
	StopsByRouteType(ctx context.Context, routeType int, at time.Time) ([]domain.Stop, error)
	ShapesByRouteType(ctx context.Context, routeType int) ([]domain.Shape, error)
	FacilitiesByRouteType(ctx context.Context, routeType int) ([]domain.Facility, error)
}
