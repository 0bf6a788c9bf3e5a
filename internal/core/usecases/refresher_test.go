package usecases_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/paulmach/orb"

	"github.com/samirrijal/livemap/internal/adapters/render"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

// --- Mocks ---

type mockSource struct {
	mu      sync.Mutex
	fetchFn func(ctx context.Context, url string) ([]domain.Feature, error)
	calls   int
}

func (m *mockSource) Fetch(ctx context.Context, url string) ([]domain.Feature, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.fetchFn != nil {
		return m.fetchFn(ctx, url)
	}
	return nil, nil
}

func (m *mockSource) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockRenderer struct {
	renderFn func(f domain.Feature) (domain.MarkerSpec, error)
}

func (m *mockRenderer) Render(f domain.Feature) (domain.MarkerSpec, error) {
	if m.renderFn != nil {
		return m.renderFn(f)
	}
	return domain.MarkerSpec{Popup: f.String("name")}, nil
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []domain.MarkerEvent
	err    error
}

func (m *mockDispatcher) Dispatch(ctx context.Context, layer domain.LayerKind, events []domain.MarkerEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, events...)
	return m.err
}

type mockSink struct {
	snapshots [][]domain.MarkerSpec
}

func (m *mockSink) PublishSnapshot(layer domain.LayerKind, specs []domain.MarkerSpec) {
	m.snapshots = append(m.snapshots, specs)
}

func feature(id string, lon, lat float64) domain.Feature {
	return domain.Feature{
		ID:         id,
		Geometry:   orb.Point{lon, lat},
		Properties: map[string]any{"name": "stop " + id},
	}
}

// --- Tests ---

func TestRefresher_RefreshAppliesCollection(t *testing.T) {
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.Feature, error) {
		if url != "file://stops.json" {
			t.Errorf("unexpected url %s", url)
		}
		return []domain.Feature{feature("1", -71.06, 42.36), feature("2", -71.05, 42.35)}, nil
	}}
	dispatcher := &mockDispatcher{}
	sink := &mockSink{}

	r := usecases.NewRefresher(usecases.RefresherConfig{
		Layer:    domain.LayerStops,
		URL:      "file://stops.json",
		Interval: time.Hour,
	}, source, &mockRenderer{}, dispatcher, sink)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	snap := r.Snapshot()
	if len(snap) != 2 || snap[0].ID != "1" || snap[0].Popup != "stop 1" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}
	if snap[0].Geometry == nil {
		t.Error("expected geometry to be copied from the feature")
	}
	if len(dispatcher.events) != 2 {
		t.Errorf("expected 2 dispatched events, got %d", len(dispatcher.events))
	}
	if len(sink.snapshots) != 1 || len(sink.snapshots[0]) != 2 {
		t.Errorf("expected one snapshot with 2 specs, got %v", sink.snapshots)
	}

	st := r.Status()
	if st.Refreshes != 1 || st.Failures != 0 || st.Markers != 2 || st.LastRefresh == nil {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRefresher_FetchFailureKeepsMarkers(t *testing.T) {
	fail := false
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.Feature, error) {
		if fail {
			return nil, errors.New("connection refused")
		}
		return []domain.Feature{feature("1", -71.06, 42.36)}, nil
	}}
	dispatcher := &mockDispatcher{}
	r := usecases.NewRefresher(usecases.RefresherConfig{Layer: domain.LayerVehicles, Interval: time.Second},
		source, &mockRenderer{}, dispatcher)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fail = true
	if err := r.Refresh(context.Background()); err == nil {
		t.Fatal("expected fetch error")
	}

	if len(r.Snapshot()) != 1 {
		t.Errorf("expected previous marker to stay, got %d markers", len(r.Snapshot()))
	}
	if len(dispatcher.events) != 1 {
		t.Errorf("failed refresh must not dispatch, got %d events", len(dispatcher.events))
	}
	st := r.Status()
	if st.Failures != 1 || st.LastError == "" {
		t.Errorf("expected failure recorded, got %+v", st)
	}
	if st.Refreshes != 2 || st.Successes != 1 {
		t.Errorf("expected 2 cycles and 1 success, got %+v", st)
	}
}

func TestRefresher_AlwaysFailingCountsNoSuccess(t *testing.T) {
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.Feature, error) {
		return nil, errors.New("connection refused")
	}}
	r := usecases.NewRefresher(usecases.RefresherConfig{Layer: domain.LayerShapes, Interval: time.Second},
		source, &mockRenderer{}, nil)

	for i := 0; i < 3; i++ {
		if err := r.Refresh(context.Background()); err == nil {
			t.Fatal("expected fetch error")
		}
	}
	st := r.Status()
	if st.Refreshes != 3 || st.Failures != 3 || st.Successes != 0 {
		t.Errorf("unexpected counters %+v", st)
	}
	if st.Markers != 0 || st.LastRefresh == nil {
		t.Errorf("unexpected status %+v", st)
	}
}

func TestRefresher_MistypedVehicleKeepsMarker(t *testing.T) {
	for name, props := range map[string]map[string]any{
		"bikes_allowed": {"bikes_allowed": 1.0},
		"direction_id":  {"direction_id": "1"},
		"bearing":       {"bearing": "90"},
		"route_color":   {"route_color": 80276.0},
	} {
		t.Run(name, func(t *testing.T) {
			props["vehicle_id"] = "v1"
			source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.Feature, error) {
				return []domain.Feature{{ID: "v1", Geometry: orb.Point{-71.06, 42.36}, Properties: props}}, nil
			}}
			r := usecases.NewRefresher(usecases.RefresherConfig{Layer: domain.LayerVehicles, Bounds: usecases.MapBounds},
				source, render.NewVehicleRenderer(), nil)

			if err := r.Refresh(context.Background()); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			snap := r.Snapshot()
			if len(snap) != 1 || snap[0].ID != "v1" {
				t.Fatalf("expected v1 displayed, got %+v", snap)
			}
			if r.Status().Placeholder {
				t.Error("placeholder shown for a non-empty collection")
			}
		})
	}
}

func TestRefresher_SkipsBadFeatures(t *testing.T) {
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.Feature, error) {
		return []domain.Feature{
			feature("", -71.06, 42.36),   // no id
			feature("far", -122.4, 37.7), // outside bounds
			feature("bad", -71.06, 42.36),
			feature("ok", -71.06, 42.36),
		}, nil
	}}
	renderer := &mockRenderer{renderFn: func(f domain.Feature) (domain.MarkerSpec, error) {
		if f.ID == "bad" {
			return domain.MarkerSpec{}, errors.New("broken properties")
		}
		return domain.MarkerSpec{Popup: f.ID}, nil
	}}
	r := usecases.NewRefresher(usecases.RefresherConfig{
		Layer:  domain.LayerStops,
		Bounds: usecases.MapBounds,
	}, source, renderer, nil)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	snap := r.Snapshot()
	if len(snap) != 1 || snap[0].ID != "ok" {
		t.Errorf("expected only ok marker, got %+v", snap)
	}
}

func TestRefresher_EmptyCollectionShowsPlaceholder(t *testing.T) {
	var features []domain.Feature
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.Feature, error) {
		return features, nil
	}}
	dispatcher := &mockDispatcher{}
	r := usecases.NewRefresher(usecases.RefresherConfig{Layer: domain.LayerParking}, source, &mockRenderer{}, dispatcher)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !r.Markers().Placeholder() || len(r.Snapshot()) != 0 {
		t.Error("expected placeholder and no markers")
	}
	if len(dispatcher.events) != 1 || dispatcher.events[0].Kind != domain.MarkerPlaceholder {
		t.Errorf("expected placeholder event, got %+v", dispatcher.events)
	}
}

func TestRefresher_DispatchErrorDoesNotFailRefresh(t *testing.T) {
	source := &mockSource{fetchFn: func(ctx context.Context, url string) ([]domain.Feature, error) {
		return []domain.Feature{feature("1", -71.06, 42.36)}, nil
	}}
	dispatcher := &mockDispatcher{err: errors.New("nats down")}
	r := usecases.NewRefresher(usecases.RefresherConfig{Layer: domain.LayerStops}, source, &mockRenderer{}, dispatcher)

	if err := r.Refresh(context.Background()); err != nil {
		t.Fatalf("dispatch errors must not fail the refresh: %v", err)
	}
	if len(r.Snapshot()) != 1 {
		t.Error("expected marker to be applied")
	}
}

func TestRefresher_RunRefreshesImmediately(t *testing.T) {
	source := &mockSource{}
	r := usecases.NewRefresher(usecases.RefresherConfig{Layer: domain.LayerShapes, Interval: 10 * time.Millisecond},
		source, &mockRenderer{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		r.Run(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for source.Calls() < 3 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 3 fetches, got %d", source.Calls())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
