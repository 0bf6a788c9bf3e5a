package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

var tracer = otel.Tracer("github.com/samirrijal/livemap/internal/core/usecases")

// RefresherConfig describes one polled layer.
type RefresherConfig struct {
	Layer    domain.LayerKind
	URL      string
	Interval time.Duration
	// Bounds drops point features outside the map. Zero means no filter.
	Bounds domain.Bounds
}

// RefresherStatus is a point-in-time view of a refresher.
type RefresherStatus struct {
	Layer       domain.LayerKind `json:"layer"`
	URL         string           `json:"url"`
	Interval    string           `json:"interval"`
	Markers     int              `json:"markers"`
	Placeholder bool             `json:"placeholder"`
	Refreshes   int64            `json:"refreshes"`
	Successes   int64            `json:"successes"`
	Failures    int64            `json:"failures"`
	LastRefresh *time.Time       `json:"last_refresh,omitempty"`
	LastError   string           `json:"last_error,omitempty"`
}

// Refresher polls a feature collection and keeps a MarkerSet in sync with it.
type Refresher struct {
	cfg        RefresherConfig
	source     ports.FeatureSource
	renderer   ports.MarkerRenderer
	dispatcher ports.MarkerDispatcher
	sinks      []ports.SnapshotSink
	markers    *MarkerSet
	logger     *slog.Logger

	// cycle serialises Refresh so a manual refresh never races the ticker.
	cycle sync.Mutex

	mu          sync.Mutex
	refreshes   int64
	successes   int64
	failures    int64
	lastRefresh time.Time
	lastErr     error
}

// NewRefresher creates a Refresher. dispatcher may be nil.
func NewRefresher(
	cfg RefresherConfig,
	source ports.FeatureSource,
	renderer ports.MarkerRenderer,
	dispatcher ports.MarkerDispatcher,
	sinks ...ports.SnapshotSink,
) *Refresher {
	return &Refresher{
		cfg:        cfg,
		source:     source,
		renderer:   renderer,
		dispatcher: dispatcher,
		sinks:      sinks,
		markers:    NewMarkerSet(cfg.Layer),
		logger:     slog.Default().With("layer", string(cfg.Layer)),
	}
}

// Layer returns the layer this refresher maintains.
func (r *Refresher) Layer() domain.LayerKind { return r.cfg.Layer }

// Markers returns the shared marker view.
func (r *Refresher) Markers() *MarkerSet { return r.markers }

// Snapshot returns the current markers sorted by id.
func (r *Refresher) Snapshot() []domain.Marker { return r.markers.Markers() }

// AddSink registers another snapshot consumer. Call before Run.
func (r *Refresher) AddSink(sink ports.SnapshotSink) {
	r.sinks = append(r.sinks, sink)
}

// Run refreshes immediately and then on every tick until ctx is done.
func (r *Refresher) Run(ctx context.Context) {
	r.logger.Info("refresher started", "url", r.cfg.URL, "interval", r.cfg.Interval)

	r.refreshLogged(ctx)

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("refresher stopped")
			return
		case <-ticker.C:
			r.refreshLogged(ctx)
		}
	}
}

func (r *Refresher) refreshLogged(ctx context.Context) {
	if err := r.Refresh(ctx); err != nil {
		r.logger.Warn("refresh failed", "error", err)
	}
}

// Refresh runs one fetch, render, diff and dispatch cycle. On a fetch
// failure the displayed markers are left untouched.
func (r *Refresher) Refresh(ctx context.Context) error {
	r.cycle.Lock()
	defer r.cycle.Unlock()

	layer := string(r.cfg.Layer)
	ctx, span := tracer.Start(ctx, "refresher.refresh", trace.WithAttributes(
		attribute.String("livemap.layer", layer),
		attribute.String("livemap.url", r.cfg.URL),
	))
	defer span.End()

	start := time.Now()
	features, err := r.source.Fetch(ctx, r.cfg.URL)
	metrics.RefreshDuration.WithLabelValues(layer).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.RefreshErrors.WithLabelValues(layer).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		r.record(err)
		return fmt.Errorf("fetch %s: %w", layer, err)
	}

	specs := r.render(features)
	events := r.markers.Apply(specs)

	metrics.Markers.WithLabelValues(layer).Set(float64(r.markers.Len()))
	for _, ev := range events {
		metrics.MarkerEvents.WithLabelValues(layer, string(ev.Kind)).Inc()
	}
	span.SetAttributes(
		attribute.Int("livemap.features", len(features)),
		attribute.Int("livemap.markers", len(specs)),
		attribute.Int("livemap.events", len(events)),
	)

	for _, sink := range r.sinks {
		sink.PublishSnapshot(r.cfg.Layer, specs)
	}

	if r.dispatcher != nil && len(events) > 0 {
		if err := r.dispatcher.Dispatch(ctx, r.cfg.Layer, events); err != nil {
			r.logger.Warn("dispatch marker events", "error", err, "events", len(events))
		}
	}

	r.record(nil)
	r.logger.Debug("refreshed", "features", len(features), "markers", len(specs), "events", len(events))
	return nil
}

func (r *Refresher) render(features []domain.Feature) []domain.MarkerSpec {
	layer := string(r.cfg.Layer)
	specs := make([]domain.MarkerSpec, 0, len(features))
	for _, f := range features {
		if f.ID == "" {
			metrics.FeaturesSkipped.WithLabelValues(layer, "missing_id").Inc()
			r.logger.Debug("skipping feature without id")
			continue
		}
		if !r.cfg.Bounds.IsZero() {
			if p, ok := f.Point(); ok && !r.cfg.Bounds.Contains(p) {
				metrics.FeaturesSkipped.WithLabelValues(layer, "out_of_bounds").Inc()
				continue
			}
		}
		spec, err := r.renderer.Render(f)
		if err != nil {
			metrics.FeaturesSkipped.WithLabelValues(layer, "render_error").Inc()
			r.logger.Warn("render feature", "id", f.ID, "error", err)
			continue
		}
		spec.ID = f.ID
		spec.Layer = r.cfg.Layer
		if spec.Geometry == nil {
			spec.Geometry = f.Geometry
		}
		specs = append(specs, spec)
	}
	return specs
}

func (r *Refresher) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshes++
	if err != nil {
		r.failures++
	} else {
		r.successes++
	}
	r.lastRefresh = time.Now()
	r.lastErr = err
}

// Status reports counters and the outcome of the last cycle.
func (r *Refresher) Status() RefresherStatus {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := RefresherStatus{
		Layer:       r.cfg.Layer,
		URL:         r.cfg.URL,
		Interval:    r.cfg.Interval.String(),
		Markers:     r.markers.Len(),
		Placeholder: r.markers.Placeholder(),
		Refreshes:   r.refreshes,
		Successes:   r.successes,
		Failures:    r.failures,
	}
	if !r.lastRefresh.IsZero() {
		t := r.lastRefresh
		st.LastRefresh = &t
	}
	if r.lastErr != nil {
		st.LastError = r.lastErr.Error()
	}
	return st
}
