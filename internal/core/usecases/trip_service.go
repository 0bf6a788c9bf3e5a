package usecases

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// tripCacheTTL matches the vehicle refresh interval; predictions are never
// older than one poll.
const tripCacheTTL = 15

// TripService serves the prediction and alert details of a vehicle's trip.
type TripService struct {
	predictions ports.PredictionRepository
	alerts      ports.AlertRepository
	cache       ports.CacheService
	now         func() time.Time
}

// NewTripService creates a new TripService. cache may be nil.
func NewTripService(predictions ports.PredictionRepository, alerts ports.AlertRepository, cache ports.CacheService) *TripService {
	return &TripService{predictions: predictions, alerts: alerts, cache: cache, now: time.Now}
}

// WithClock replaces the clock used to drop past predictions.
func (s *TripService) WithClock(now func() time.Time) *TripService {
	s.now = now
	return s
}

// Predictions returns every prediction of a trip ordered by estimated time.
// Rows without a time sort last.
func (s *TripService) Predictions(ctx context.Context, tripID string, includeStopTime bool) ([]domain.Prediction, error) {
	if tripID == "" {
		return nil, fmt.Errorf("trip_id must not be empty")
	}

	cacheKey := fmt.Sprintf("predictions:%s:%t", tripID, includeStopTime)
	var preds []domain.Prediction
	if s.cached(ctx, "predictions", cacheKey, &preds) {
		return preds, nil
	}

	preds, err := s.predictions.ListByTrip(ctx, tripID, includeStopTime)
	if err != nil {
		return nil, fmt.Errorf("list predictions: %w", err)
	}
	SortPredictions(preds)

	s.store(ctx, cacheKey, preds)
	return preds, nil
}

// UpcomingPredictions returns the predictions shown in a trip table: rows
// with an estimated time that is not in the past.
func (s *TripService) UpcomingPredictions(ctx context.Context, tripID string) ([]domain.Prediction, error) {
	preds, err := s.Predictions(ctx, tripID, true)
	if err != nil {
		return nil, err
	}
	now := s.now().Unix()
	out := preds[:0:0]
	for _, p := range preds {
		t, ok := p.EstimatedTime()
		if !ok || t < now {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Alerts returns the alerts of a trip, newest first.
func (s *TripService) Alerts(ctx context.Context, tripID string) ([]domain.Alert, error) {
	if tripID == "" {
		return nil, fmt.Errorf("trip_id must not be empty")
	}

	cacheKey := "alerts:" + tripID
	var alerts []domain.Alert
	if s.cached(ctx, "alerts", cacheKey, &alerts) {
		return alerts, nil
	}

	alerts, err := s.alerts.ListByTrip(ctx, tripID)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	SortAlerts(alerts)

	s.store(ctx, cacheKey, alerts)
	return alerts, nil
}

func (s *TripService) cached(ctx context.Context, op, key string, v any) bool {
	if s.cache == nil {
		return false
	}
	data, err := s.cache.Get(ctx, key)
	if err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		metrics.CacheMisses.WithLabelValues(op).Inc()
		return false
	}
	metrics.CacheHits.WithLabelValues(op).Inc()
	return true
}

func (s *TripService) store(ctx context.Context, key string, v any) {
	if s.cache == nil {
		return
	}
	if data, err := json.Marshal(v); err == nil {
		_ = s.cache.Set(ctx, key, data, tripCacheTTL)
	}
}

// SortPredictions orders predictions by departure time, falling back to
// arrival time. Predictions without either go last in stop order.
func SortPredictions(preds []domain.Prediction) {
	sort.SliceStable(preds, func(i, j int) bool {
		ti, oki := preds[i].EstimatedTime()
		tj, okj := preds[j].EstimatedTime()
		switch {
		case oki && okj:
			return ti < tj
		case oki != okj:
			return oki
		default:
			return preds[i].StopSequence < preds[j].StopSequence
		}
	})
}

// SortAlerts orders alerts newest first; alerts without a timestamp go last.
func SortAlerts(alerts []domain.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		ti, tj := alerts[i].Timestamp, alerts[j].Timestamp
		switch {
		case ti != nil && tj != nil:
			return *ti > *tj
		default:
			return ti != nil && tj == nil
		}
	})
}
