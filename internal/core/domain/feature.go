package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
)

// LayerKind names one of the map overlays.
type LayerKind string

const (
	LayerVehicles LayerKind = "vehicles"
	LayerStops    LayerKind = "stops"
	LayerShapes   LayerKind = "shapes"
	LayerParking  LayerKind = "parking"
)

// Layers lists every overlay in display order.
var Layers = []LayerKind{LayerVehicles, LayerStops, LayerShapes, LayerParking}

// ParseLayer validates a layer name coming from a request.
func ParseLayer(s string) (LayerKind, error) {
	for _, l := range Layers {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownLayer, s)
}

// Feature is one entity of a GeoJSON feature collection.
type Feature struct {
	ID         string         `json:"id"`
	Geometry   orb.Geometry   `json:"-"`
	Properties map[string]any `json:"properties"`
}

// Point returns the feature position when its geometry is a point.
func (f Feature) Point() (GeoPoint, bool) {
	p, ok := f.Geometry.(orb.Point)
	if !ok {
		return GeoPoint{}, false
	}
	return GeoPoint{Lat: p.Lat(), Lon: p.Lon()}, true
}

// String returns a property as display text, or "" when absent.
func (f Feature) String(key string) string {
	v, ok := f.Properties[key]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(t)
	}
}

// Float returns a numeric property.
func (f Feature) Float(key string) (float64, bool) {
	switch t := f.Properties[key].(type) {
	case float64:
		return t, true
	case int:
		return float64(t), true
	case string:
		v, err := strconv.ParseFloat(t, 64)
		return v, err == nil
	}
	return 0, false
}

// Decode copies the property bag into a typed struct.
func (f Feature) Decode(v any) error {
	data, err := json.Marshal(f.Properties)
	if err != nil {
		return fmt.Errorf("marshal properties: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode properties of %s: %w", f.ID, err)
	}
	return nil
}

// looseValue decodes a single JSON value keeping numbers verbatim. It
// returns nil for null or malformed input.
func looseValue(b []byte) any {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil
	}
	return v
}

// FlexString accepts JSON strings, numbers and booleans. Feeds are
// inconsistent about ids such as route_type or trip_short_name. Any other
// value decodes to the empty string.
type FlexString string

func (s *FlexString) UnmarshalJSON(b []byte) error {
	switch v := looseValue(b).(type) {
	case string:
		*s = FlexString(v)
	case json.Number:
		*s = FlexString(v.String())
	case bool:
		*s = FlexString(strconv.FormatBool(v))
	default:
		*s = ""
	}
	return nil
}

// FlexFloat accepts JSON numbers, numeric strings and booleans. Values that
// do not convert decode to zero.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(b []byte) error {
	*f = 0
	var n float64
	switch v := looseValue(b).(type) {
	case json.Number:
		n, _ = v.Float64()
	case string:
		n, _ = strconv.ParseFloat(strings.TrimSpace(v), 64)
	case bool:
		if v {
			n = 1
		}
	}
	if !math.IsNaN(n) && !math.IsInf(n, 0) {
		*f = FlexFloat(n)
	}
	return nil
}

// Float64 returns the value as a *float64, nil when f is nil.
func (f *FlexFloat) Float64() *float64 {
	if f == nil {
		return nil
	}
	v := float64(*f)
	return &v
}

// FlexBool accepts JSON booleans, numbers and strings. GTFS flags such as
// bikes_allowed use 1 for yes, so only 1, "1", "true" and "yes" are true.
type FlexBool bool

func (f *FlexBool) UnmarshalJSON(b []byte) error {
	switch v := looseValue(b).(type) {
	case bool:
		*f = FlexBool(v)
	case json.Number:
		n, err := v.Float64()
		*f = FlexBool(err == nil && n == 1)
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "true", "yes":
			*f = true
		default:
			*f = false
		}
	default:
		*f = false
	}
	return nil
}

// objectOrZero decodes b into v only when b is a JSON object, so a nested
// property of the wrong shape leaves v at its zero value.
func objectOrZero(b []byte, v any) error {
	if t := bytes.TrimSpace(b); len(t) == 0 || t[0] != '{' {
		return nil
	}
	return json.Unmarshal(b, v)
}

// VehicleRoute is the route object embedded in a vehicle feature.
type VehicleRoute struct {
	RouteName FlexString `json:"route_name"`
	RouteURL  FlexString `json:"route_url"`
	RouteType FlexString `json:"route_type"`
}

func (r *VehicleRoute) UnmarshalJSON(b []byte) error {
	type plain VehicleRoute
	return objectOrZero(b, (*plain)(r))
}

// VehicleStopTime is the scheduled stop the vehicle is serving.
type VehicleStopTime struct {
	StopName FlexString `json:"stop_name"`
}

func (st *VehicleStopTime) UnmarshalJSON(b []byte) error {
	type plain VehicleStopTime
	return objectOrZero(b, (*plain)(st))
}

// VehicleNextStop is the predicted next stop of a vehicle.
type VehicleNextStop struct {
	StopName      FlexString `json:"stop_name"`
	PlatformName  FlexString `json:"platform_name"`
	ArrivalTime   *FlexFloat `json:"arrival_time"`
	DepartureTime *FlexFloat `json:"departure_time"`
	Delay         *FlexFloat `json:"delay"` // seconds
}

func (ns *VehicleNextStop) UnmarshalJSON(b []byte) error {
	type plain VehicleNextStop
	return objectOrZero(b, (*plain)(ns))
}

// VehicleProperties is the typed view of a vehicle feature's property bag.
// Every field is optional and a mistyped value decodes to its zero value.
type VehicleProperties struct {
	VehicleID           FlexString       `json:"vehicle_id"`
	TripID              FlexString       `json:"trip_id"`
	TripShortName       FlexString       `json:"trip_short_name"`
	RouteID             FlexString       `json:"route_id"`
	RouteColor          FlexString       `json:"route_color"`
	DisplayName         FlexString       `json:"display_name"`
	Headsign            FlexString       `json:"headsign"`
	DirectionID         *FlexFloat       `json:"direction_id"`
	Bearing             FlexFloat        `json:"bearing"`
	BikesAllowed        FlexBool         `json:"bikes_allowed"`
	CurrentStatus       FlexString       `json:"current_status"`
	Route               *VehicleRoute    `json:"route"`
	StopTime            *VehicleStopTime `json:"stop_time"`
	NextStop            *VehicleNextStop `json:"next_stop"`
	OccupancyStatus     *FlexString      `json:"occupancy_status"`
	OccupancyPercentage *FlexFloat       `json:"occupancy_percentage"`
	SpeedMPH            *FlexFloat       `json:"speed_mph"`
	Timestamp           FlexFloat        `json:"timestamp"` // unix seconds
}
