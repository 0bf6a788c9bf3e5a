package usecases

import (
	"context"
	"fmt"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// RealtimeService stores decoded GTFS-RT polls.
type RealtimeService struct {
	predictions ports.PredictionRepository
	vehicles    ports.VehicleRepository
	alerts      ports.AlertRepository
	publisher   ports.EventPublisher
}

// NewRealtimeService creates a new RealtimeService. publisher may be nil.
func NewRealtimeService(
	predictions ports.PredictionRepository,
	vehicles ports.VehicleRepository,
	alerts ports.AlertRepository,
	publisher ports.EventPublisher,
) *RealtimeService {
	return &RealtimeService{predictions: predictions, vehicles: vehicles, alerts: alerts, publisher: publisher}
}

// Store replaces every table whose feed was fetched and announces the
// refresh. Tables of feeds missing from the snapshot keep their rows.
func (s *RealtimeService) Store(ctx context.Context, snap domain.RealtimeSnapshot) (map[string]int, error) {
	summary := make(map[string]int, 3)

	if snap.Predictions != nil {
		if err := s.predictions.ReplaceAll(ctx, snap.Predictions); err != nil {
			return summary, fmt.Errorf("replace predictions: %w", err)
		}
		summary["predictions"] = len(snap.Predictions)
	}
	if snap.Vehicles != nil {
		if err := s.vehicles.ReplaceAll(ctx, snap.Vehicles); err != nil {
			return summary, fmt.Errorf("replace vehicles: %w", err)
		}
		summary["vehicles"] = len(snap.Vehicles)
	}
	if snap.Alerts != nil {
		if err := s.alerts.ReplaceAll(ctx, snap.Alerts); err != nil {
			return summary, fmt.Errorf("replace alerts: %w", err)
		}
		summary["alerts"] = len(snap.Alerts)
	}

	// Delivery is best effort; the map polls the tables anyway.
	if s.publisher != nil && len(summary) > 0 {
		_ = s.publisher.PublishRealtimeRefreshed(ctx, summary)
	}

	return summary, nil
}
