package render

import (
	"fmt"

	"github.com/paulmach/orb"

	"github.com/samirrijal/livemap/internal/core/domain"
)

const (
	stopIconURL    = "/static/mbta.png"
	parkingIconURL = "/static/parking.png"
	staticIconSize = 15
	shapeWeight    = 1.3
)

// StaticRenderer renders the stop, shape and parking layers. Their popups
// are baked into the exported collections as popupContent.
type StaticRenderer struct {
	layer domain.LayerKind
}

// NewStaticRenderer creates a renderer for one static layer.
func NewStaticRenderer(layer domain.LayerKind) (*StaticRenderer, error) {
	switch layer {
	case domain.LayerStops, domain.LayerShapes, domain.LayerParking:
		return &StaticRenderer{layer: layer}, nil
	}
	return nil, fmt.Errorf("%w: %s has no static renderer", domain.ErrUnknownLayer, layer)
}

// Render implements ports.MarkerRenderer.
func (r *StaticRenderer) Render(f domain.Feature) (domain.MarkerSpec, error) {
	tooltip := featureName(f)

	popup := f.String("popupContent")
	if popup == "" {
		var err error
		if popup, err = execute("feature_popup", tooltip); err != nil {
			return domain.MarkerSpec{}, fmt.Errorf("popup %s: %w", f.ID, err)
		}
	}

	spec := domain.MarkerSpec{
		ID:         f.ID,
		Layer:      r.layer,
		Geometry:   f.Geometry,
		Popup:      popup,
		Tooltip:    tooltip,
		SearchName: tooltip,
	}

	switch r.layer {
	case domain.LayerStops:
		spec.Icon = &domain.Icon{URL: stopIconURL, Size: [2]int{staticIconSize, staticIconSize}}
		spec.ZIndexOffset = -100
	case domain.LayerParking:
		spec.Icon = &domain.Icon{URL: parkingIconURL, Size: [2]int{staticIconSize, staticIconSize}}
		spec.ZIndexOffset = -150
	case domain.LayerShapes:
		if _, ok := f.Geometry.(orb.Point); ok {
			return domain.MarkerSpec{}, fmt.Errorf("shape %s has point geometry", f.ID)
		}
		opacity, ok := f.Float("opacity")
		if !ok {
			opacity = 1
		}
		spec.Style = &domain.PathStyle{
			Color:   f.String("color"),
			Opacity: opacity,
			Weight:  shapeWeight,
		}
	}
	return spec, nil
}

func featureName(f domain.Feature) string {
	if name := f.String("name"); name != "" {
		return name
	}
	if name := f.String("stop_name"); name != "" {
		return name
	}
	return f.ID
}
