// Package dispatch combines marker event consumers.
package dispatch

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
)

// Multi fans events out to every dispatcher and joins their errors.
type Multi []ports.MarkerDispatcher

// Dispatch implements ports.MarkerDispatcher.
func (m Multi) Dispatch(ctx context.Context, layer domain.LayerKind, events []domain.MarkerEvent) error {
	var errs []error
	for _, d := range m {
		if d == nil {
			continue
		}
		if err := d.Dispatch(ctx, layer, events); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Log writes a summary of every dispatched batch at debug level.
type Log struct {
	Logger *slog.Logger
}

// Dispatch implements ports.MarkerDispatcher.
func (l Log) Dispatch(ctx context.Context, layer domain.LayerKind, events []domain.MarkerEvent) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	counts := make(map[domain.MarkerEventKind]int)
	for _, ev := range events {
		counts[ev.Kind]++
	}
	logger.DebugContext(ctx, "marker events",
		"layer", string(layer),
		"added", counts[domain.MarkerAdded],
		"updated", counts[domain.MarkerUpdated],
		"removed", counts[domain.MarkerRemoved],
		"placeholder", counts[domain.MarkerPlaceholder] > 0,
	)
	return nil
}
