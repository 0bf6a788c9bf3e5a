package workflows

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	natsadapter "github.com/samirrijal/livemap/internal/adapters/nats"
	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/usecases"
)

// ExportNotifier announces finished exports so running API instances can
// reload their static layers.
type ExportNotifier interface {
	PublishStaticExported(ctx context.Context, ev natsadapter.StaticExported) error
}

// ExportActivities holds the activity implementations for the static export workflow.
type ExportActivities struct {
	Export    *usecases.ExportService
	OutputDir string
	Notifier  ExportNotifier
}

// ExportLayerInput selects one collection to rebuild.
type ExportLayerInput struct {
	RouteType string
	Layer     domain.LayerKind
}

// LayerExport describes one written collection.
type LayerExport struct {
	Layer    domain.LayerKind
	Path     string
	Features int
}

// ExportLayer rebuilds one static collection from the schedule tables and
// replaces <OutputDir>/<ROUTE_TYPE>/<file>.
func (a *ExportActivities) ExportLayer(ctx context.Context, in ExportLayerInput) (LayerExport, error) {
	out, err := a.export(ctx, in)
	if err != nil {
		return out, err
	}
	activity.GetLogger(ctx).Info("static layer exported", "layer", out.Layer, "path", out.Path, "features", out.Features)
	return out, nil
}

// NotifyExported publishes the export summary. Without a notifier it
// only logs.
func (a *ExportActivities) NotifyExported(ctx context.Context, result StaticExportResult) error {
	if a.Notifier == nil {
		activity.GetLogger(ctx).Info("static export finished (no notifier)", "route_type", result.RouteType)
		return nil
	}
	return a.Notifier.PublishStaticExported(ctx, summary(result))
}

// ExportNow runs a full export in-process, without Temporal.
func ExportNow(ctx context.Context, a *ExportActivities, routeType string) (StaticExportResult, error) {
	res := StaticExportResult{RouteType: strings.ToUpper(routeType)}
	for _, layer := range domain.Layers {
		if usecases.StaticFile(layer) == "" {
			continue
		}
		out, err := a.export(ctx, ExportLayerInput{RouteType: routeType, Layer: layer})
		if err != nil {
			return res, err
		}
		slog.InfoContext(ctx, "static layer exported", "layer", out.Layer, "path", out.Path, "features", out.Features)
		res.Layers = append(res.Layers, out)
	}
	if a.Notifier != nil {
		if err := a.Notifier.PublishStaticExported(ctx, summary(res)); err != nil {
			return res, fmt.Errorf("announce export: %w", err)
		}
	}
	return res, nil
}

func (a *ExportActivities) export(ctx context.Context, in ExportLayerInput) (LayerExport, error) {
	routeType, err := domain.ParseRouteType(in.RouteType)
	if err != nil {
		return LayerExport{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidRouteType", err)
	}
	file := usecases.StaticFile(in.Layer)
	if file == "" {
		err := fmt.Errorf("%w: %s has no static collection", domain.ErrUnknownLayer, in.Layer)
		return LayerExport{}, temporal.NewNonRetryableApplicationError(err.Error(), "InvalidLayer", err)
	}

	fc, err := a.Export.Collection(ctx, in.Layer, routeType)
	if err != nil {
		return LayerExport{}, fmt.Errorf("build %s: %w", in.Layer, err)
	}
	data, err := fc.MarshalJSON()
	if err != nil {
		return LayerExport{}, fmt.Errorf("encode %s: %w", in.Layer, err)
	}

	path := filepath.Join(a.OutputDir, strings.ToUpper(in.RouteType), file)
	if err := writeFileAtomic(path, data); err != nil {
		return LayerExport{}, err
	}
	return LayerExport{Layer: in.Layer, Path: path, Features: len(fc.Features)}, nil
}

func summary(result StaticExportResult) natsadapter.StaticExported {
	features := make(map[string]int, len(result.Layers))
	for _, l := range result.Layers {
		features[string(l.Layer)] = l.Features
	}
	return natsadapter.StaticExported{RouteType: result.RouteType, Features: features}
}

// writeFileAtomic replaces path so a refresher polling the file never
// reads a partial collection.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
