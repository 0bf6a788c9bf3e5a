package domain

import (
	"encoding/json"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Icon is either inline HTML (a div icon) or an image URL.
type Icon struct {
	HTML string `json:"html,omitempty"`
	URL  string `json:"url,omitempty"`
	Size [2]int `json:"size"`
}

// PathStyle styles line geometries such as route shapes.
type PathStyle struct {
	Color   string  `json:"color"`
	Opacity float64 `json:"opacity"`
	Weight  float64 `json:"weight"`
}

// MarkerSpec is the display-ready form of one feature.
type MarkerSpec struct {
	ID           string       `json:"id"`
	Layer        LayerKind    `json:"layer"`
	Geometry     orb.Geometry `json:"-"`
	Icon         *Icon        `json:"icon,omitempty"`
	Popup        string       `json:"popup"`
	Tooltip      string       `json:"tooltip,omitempty"`
	SearchName   string       `json:"search_name,omitempty"`
	ZIndexOffset int          `json:"z_index_offset"`
	Style        *PathStyle   `json:"style,omitempty"`
	// TripID links vehicle markers to their prediction and alert tables.
	TripID string `json:"trip_id,omitempty"`
}

type specJSON MarkerSpec

// MarshalJSON writes the geometry as a GeoJSON geometry object.
func (m MarkerSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		specJSON
		Geometry *geojson.Geometry `json:"geometry,omitempty"`
	}{specJSON(m), geometryJSON(m.Geometry)})
}

// Marker is a displayed MarkerSpec together with its popup state.
type Marker struct {
	MarkerSpec
	PopupOpen bool `json:"popup_open"`
}

func (m Marker) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		specJSON
		Geometry  *geojson.Geometry `json:"geometry,omitempty"`
		PopupOpen bool              `json:"popup_open"`
	}{specJSON(m.MarkerSpec), geometryJSON(m.Geometry), m.PopupOpen})
}

func geometryJSON(g orb.Geometry) *geojson.Geometry {
	if g == nil {
		return nil
	}
	return geojson.NewGeometry(g)
}

// MarkerEventKind enumerates the changes a refresh can produce.
type MarkerEventKind string

const (
	MarkerAdded              MarkerEventKind = "added"
	MarkerUpdated            MarkerEventKind = "updated"
	MarkerRemoved            MarkerEventKind = "removed"
	MarkerPlaceholder        MarkerEventKind = "placeholder"
	MarkerPlaceholderCleared MarkerEventKind = "placeholder_cleared"
)

// PlaceholderText is shown by a layer whose last collection was empty.
const PlaceholderText = "no data"

// MarkerEvent describes one change to a layer's displayed markers.
type MarkerEvent struct {
	Kind   MarkerEventKind `json:"kind"`
	Layer  LayerKind       `json:"layer"`
	ID     string          `json:"id,omitempty"`
	Marker *Marker         `json:"marker,omitempty"`
	// Reopen is set on updates of markers whose popup was open.
	Reopen bool   `json:"reopen,omitempty"`
	Text   string `json:"text,omitempty"`
}
