package usecases

import (
	"fmt"
	"strings"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/pkg/transitfmt"
)

// Map area served by the page. Features outside it are never shown.
var (
	MapBounds = domain.Bounds{MinLat: 40, MinLon: -74, MaxLat: 44, MaxLon: -69}
	MapCenter = domain.GeoPoint{Lat: 42.3519, Lon: -71.0552}
)

const cartoAttribution = `&copy; <a href="https://www.openstreetmap.org/copyright">OpenStreetMap</a> contributors &copy; <a href="https://carto.com/attributions">CARTO</a>`

// BaseMap is a selectable tile layer.
type BaseMap struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Attribution string `json:"attribution"`
	Subdomains  string `json:"subdomains"`
	MaxZoom     int    `json:"max_zoom"`
	Default     bool   `json:"default"`
}

// Overlay is one toggleable marker layer.
type Overlay struct {
	Name    string           `json:"name"`
	Layer   domain.LayerKind `json:"layer"`
	Source  string           `json:"source"`
	Visible bool             `json:"visible"`
	// MinZoom hides the overlay below this zoom level; 0 means always shown.
	MinZoom int `json:"min_zoom,omitempty"`
	// DisableClusteringAtZoom is set for clustered overlays only.
	DisableClusteringAtZoom int `json:"disable_clustering_at_zoom,omitempty"`
}

// MapConfig is everything the browser needs to set up the map.
type MapConfig struct {
	RouteType  string          `json:"route_type"`
	Title      string          `json:"title"`
	Bounds     domain.Bounds   `json:"bounds"`
	Center     domain.GeoPoint `json:"center"`
	Zoom       int             `json:"zoom"`
	MinZoom    int             `json:"min_zoom"`
	MaxZoom    int             `json:"max_zoom"`
	SearchZoom int             `json:"search_zoom"`
	BaseMaps   []BaseMap       `json:"base_maps"`
	Overlays   []Overlay       `json:"overlays"`
}

// MapService derives the map configuration from the route type selector.
type MapService struct {
	routeType   string
	routeTypeID int
}

// NewMapService validates the route type selector, e.g. COMMUTER_RAIL.
func NewMapService(routeType string) (*MapService, error) {
	id, err := domain.ParseRouteType(routeType)
	if err != nil {
		return nil, err
	}
	return &MapService{routeType: strings.ToUpper(routeType), routeTypeID: id}, nil
}

// RouteType returns the selector served at /value.
func (s *MapService) RouteType() string { return s.routeType }

// RouteTypeID returns the GTFS route_type number.
func (s *MapService) RouteTypeID() int { return s.routeTypeID }

func (s *MapService) commuterRail() bool {
	return s.routeTypeID == domain.RouteTypeCommuterRail
}

// StaticPath returns the path of a static layer's collection, e.g.
// /static/geojsons/COMMUTER_RAIL/stops.json.
func (s *MapService) StaticPath(layer domain.LayerKind) string {
	return fmt.Sprintf("/static/geojsons/%s/%s", s.routeType, StaticFile(layer))
}

// StaticFile names the exported collection file of a layer.
func StaticFile(layer domain.LayerKind) string {
	switch layer {
	case domain.LayerStops:
		return "stops.json"
	case domain.LayerShapes:
		return "shapes.json"
	case domain.LayerParking:
		return "park.json"
	}
	return ""
}

// Config returns the map configuration.
func (s *MapService) Config() MapConfig {
	zoom, clusterZoom := 13, 12
	if s.commuterRail() {
		zoom, clusterZoom = 9, 10
	}

	return MapConfig{
		RouteType:  s.routeType,
		Title:      "MBTA " + transitfmt.TitleCase(s.routeType) + " Realtime Map",
		Bounds:     MapBounds,
		Center:     MapCenter,
		Zoom:       zoom,
		MinZoom:    9,
		MaxZoom:    20,
		SearchZoom: 16,
		BaseMaps: []BaseMap{
			{
				Name:        "Light",
				URL:         "https://{s}.basemaps.cartocdn.com/light_all/{z}/{x}/{y}{r}.png",
				Attribution: cartoAttribution,
				Subdomains:  "abcd",
				MaxZoom:     20,
				Default:     true,
			},
			{
				Name:        "Dark",
				URL:         "https://{s}.basemaps.cartocdn.com/dark_all/{z}/{x}/{y}{r}.png",
				Attribution: cartoAttribution,
				Subdomains:  "abcd",
				MaxZoom:     20,
			},
		},
		Overlays: []Overlay{
			{Name: "Vehicles", Layer: domain.LayerVehicles, Source: "/vehicles", Visible: true, DisableClusteringAtZoom: clusterZoom},
			{Name: "Stops", Layer: domain.LayerStops, Source: s.StaticPath(domain.LayerStops), Visible: true},
			{Name: "Shapes", Layer: domain.LayerShapes, Source: s.StaticPath(domain.LayerShapes), Visible: true},
			{Name: "Parking Lots", Layer: domain.LayerParking, Source: s.StaticPath(domain.LayerParking), MinZoom: 16},
		},
	}
}
