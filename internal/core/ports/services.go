package ports

import (
	"context"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// FeatureSource fetches a GeoJSON feature collection.
type FeatureSource interface {
	Fetch(ctx context.Context, url string) ([]domain.Feature, error)
}

// MarkerRenderer derives the display form of a feature for one layer.
type MarkerRenderer interface {
	Render(f domain.Feature) (domain.MarkerSpec, error)
}

// MarkerDispatcher receives the events produced by one refresh cycle.
type MarkerDispatcher interface {
	Dispatch(ctx context.Context, layer domain.LayerKind, events []domain.MarkerEvent) error
}

// SnapshotSink receives the full marker state of a layer after every
// successful refresh.
type SnapshotSink interface {
	PublishSnapshot(layer domain.LayerKind, specs []domain.MarkerSpec)
}

// EventPublisher publishes service events to a message broker.
type EventPublisher interface {
	PublishMarkerEvent(ctx context.Context, event *domain.MarkerEvent) error
	PublishRealtimeRefreshed(ctx context.Context, summary map[string]int) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// StaticPopupRenderer renders the popups baked into exported static layers.
type StaticPopupRenderer interface {
	StopPopup(stop domain.Stop) (string, error)
	ShapePopup(shape domain.Shape) (string, error)
	FacilityPopup(facility domain.Facility) (string, error)
}
