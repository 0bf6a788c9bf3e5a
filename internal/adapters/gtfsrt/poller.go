package gtfsrt

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"github.com/sourcegraph/conc/pool"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/pkg/geospatial"
	"github.com/samirrijal/livemap/internal/pkg/metrics"
)

// Feeds are the GTFS-RT URLs to poll. An empty URL skips that feed.
type Feeds struct {
	TripUpdates      string
	VehiclePositions string
	Alerts           string
}

// SnapshotStore persists one decoded poll.
type SnapshotStore interface {
	Store(ctx context.Context, snap domain.RealtimeSnapshot) (map[string]int, error)
}

// Poller fetches the feeds concurrently and stores every poll.
type Poller struct {
	client         *Client
	feeds          Feeds
	store          SnapshotStore
	tracker        *geospatial.MotionTracker
	maxConcurrency int
}

// NewPoller creates a Poller.
func NewPoller(client *Client, feeds Feeds, store SnapshotStore, maxConcurrency int) *Poller {
	return &Poller{
		client:         client,
		feeds:          feeds,
		store:          store,
		tracker:        geospatial.NewMotionTracker(),
		maxConcurrency: max(maxConcurrency, 1),
	}
}

// Poll fetches every configured feed once and stores what was decoded. A
// failed feed leaves its table untouched; the error is returned after the
// other feeds are stored.
func (p *Poller) Poll(ctx context.Context) (map[string]int, error) {
	var snap domain.RealtimeSnapshot

	fp := pool.New().WithContext(ctx).WithMaxGoroutines(p.maxConcurrency)
	if p.feeds.TripUpdates != "" {
		fp.Go(func(ctx context.Context) error {
			feed, err := p.fetch(ctx, "trip_updates", p.feeds.TripUpdates)
			if err != nil {
				return err
			}
			snap.Predictions = Predictions(feed)
			return nil
		})
	}
	if p.feeds.VehiclePositions != "" {
		fp.Go(func(ctx context.Context) error {
			feed, err := p.fetch(ctx, "vehicle_positions", p.feeds.VehiclePositions)
			if err != nil {
				return err
			}
			snap.Vehicles = Vehicles(feed)
			return nil
		})
	}
	if p.feeds.Alerts != "" {
		fp.Go(func(ctx context.Context) error {
			feed, err := p.fetch(ctx, "alerts", p.feeds.Alerts)
			if err != nil {
				return err
			}
			snap.Alerts = Alerts(feed)
			return nil
		})
	}
	fetchErr := fp.Wait()

	if snap.Vehicles != nil {
		p.tracker.Fill(snap.Vehicles)
	}

	counts, err := p.store.Store(ctx, snap)
	if err != nil {
		return counts, fmt.Errorf("store: %w", err)
	}
	for name, n := range counts {
		metrics.FeedEntities.WithLabelValues(name).Set(float64(n))
	}
	return counts, fetchErr
}

func (p *Poller) fetch(ctx context.Context, name, url string) (*gtfs.FeedMessage, error) {
	start := time.Now()
	feed, err := p.client.Fetch(ctx, url)
	metrics.FeedPollDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.FeedPollErrors.WithLabelValues(name).Inc()
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return feed, nil
}

// Run polls immediately and then on every tick until ctx is done.
func (p *Poller) Run(ctx context.Context, interval time.Duration) {
	slog.Info("realtime poller started", "interval", interval)

	p.pollLogged(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("realtime poller stopped")
			return
		case <-ticker.C:
			p.pollLogged(ctx)
		}
	}
}

func (p *Poller) pollLogged(ctx context.Context) {
	counts, err := p.Poll(ctx)
	if err != nil {
		slog.Warn("realtime poll failed", "error", err, "stored", counts)
		return
	}
	slog.Debug("realtime poll stored", "counts", counts)
}
