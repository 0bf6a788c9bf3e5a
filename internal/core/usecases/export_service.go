package usecases

import (
	"context"
	"fmt"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/core/ports"
	"github.com/samirrijal/livemap/internal/pkg/transitfmt"
)

// ExportService builds the static stop, shape and parking collections
// served under /static/geojsons.
type ExportService struct {
	static ports.StaticRepository
	popups ports.StaticPopupRenderer
	now    func() time.Time
}

// NewExportService creates a new ExportService.
func NewExportService(static ports.StaticRepository, popups ports.StaticPopupRenderer) *ExportService {
	return &ExportService{static: static, popups: popups, now: time.Now}
}

// WithClock replaces the clock that picks the schedule day of stop popups.
func (s *ExportService) WithClock(now func() time.Time) *ExportService {
	s.now = now
	return s
}

// Collection builds the collection of one static layer.
func (s *ExportService) Collection(ctx context.Context, layer domain.LayerKind, routeType int) (*geojson.FeatureCollection, error) {
	switch layer {
	case domain.LayerStops:
		return s.stops(ctx, routeType)
	case domain.LayerShapes:
		return s.shapes(ctx, routeType)
	case domain.LayerParking:
		return s.parking(ctx, routeType)
	}
	return nil, fmt.Errorf("%w: %s is not a static layer", domain.ErrUnknownLayer, layer)
}

func (s *ExportService) stops(ctx context.Context, routeType int) (*geojson.FeatureCollection, error) {
	stops, err := s.static.StopsByRouteType(ctx, routeType, s.now().In(transitfmt.Location()))
	if err != nil {
		return nil, fmt.Errorf("list stops: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	for _, stop := range stops {
		popup, err := s.popups.StopPopup(stop)
		if err != nil {
			return nil, fmt.Errorf("render stop %s: %w", stop.StopID, err)
		}
		f := geojson.NewFeature(orb.Point{stop.Location.Lon, stop.Location.Lat})
		f.ID = stop.StopID
		f.Properties["name"] = stop.Name
		f.Properties["stop_id"] = stop.StopID
		f.Properties["wheelchair_boarding"] = stop.Wheelchair
		f.Properties["popupContent"] = popup
		fc.Append(f)
	}
	return fc, nil
}

func (s *ExportService) shapes(ctx context.Context, routeType int) (*geojson.FeatureCollection, error) {
	shapes, err := s.static.ShapesByRouteType(ctx, routeType)
	if err != nil {
		return nil, fmt.Errorf("list shapes: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	for _, shape := range shapes {
		if len(shape.Points) < 2 {
			continue
		}
		line := make(orb.LineString, 0, len(shape.Points))
		for _, p := range shape.Points {
			line = append(line, orb.Point{p.Lon, p.Lat})
		}
		popup, err := s.popups.ShapePopup(shape)
		if err != nil {
			return nil, fmt.Errorf("render shape %s: %w", shape.ShapeID, err)
		}
		f := geojson.NewFeature(line)
		f.ID = shape.ShapeID
		f.Properties["name"] = shape.Route.DisplayName()
		f.Properties["route_id"] = shape.Route.RouteID
		f.Properties["color"] = "#" + shape.Route.Color
		f.Properties["opacity"] = 1.0
		f.Properties["popupContent"] = popup
		fc.Append(f)
	}
	return fc, nil
}

func (s *ExportService) parking(ctx context.Context, routeType int) (*geojson.FeatureCollection, error) {
	facilities, err := s.static.FacilitiesByRouteType(ctx, routeType)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	fc := geojson.NewFeatureCollection()
	for _, fac := range facilities {
		popup, err := s.popups.FacilityPopup(fac)
		if err != nil {
			return nil, fmt.Errorf("render facility %s: %w", fac.FacilityID, err)
		}
		f := geojson.NewFeature(orb.Point{fac.Location.Lon, fac.Location.Lat})
		f.ID = fac.FacilityID
		f.Properties["name"] = fac.Name
		f.Properties["stop_id"] = fac.StopID
		f.Properties["popupContent"] = popup
		fc.Append(f)
	}
	return fc, nil
}
