package domain

import "time"

// PredictionStopTime carries the schedule flags shown next to a prediction.
type PredictionStopTime struct {
	FlagStop       bool `json:"flag_stop"`
	EarlyDeparture bool `json:"early_departure"`
}

// Prediction is a realtime arrival/departure estimate for one stop of a trip.
// Times are unix seconds; nil means unknown.
type Prediction struct {
	TripID        string              `json:"trip_id"`
	StopID        string              `json:"stop_id"`
	StopName      string              `json:"stop_name"`
	StopSequence  int                 `json:"stop_sequence"`
	ArrivalTime   *int64              `json:"arrival_time"`
	DepartureTime *int64              `json:"departure_time"`
	Delay         *int                `json:"delay"` // seconds
	StopTime      *PredictionStopTime `json:"stop_time,omitempty"`
}

// EstimatedTime returns the departure time, falling back to the arrival time.
func (p Prediction) EstimatedTime() (int64, bool) {
	if p.DepartureTime != nil && *p.DepartureTime != 0 {
		return *p.DepartureTime, true
	}
	if p.ArrivalTime != nil && *p.ArrivalTime != 0 {
		return *p.ArrivalTime, true
	}
	return 0, false
}

// Alert is a service alert affecting a trip or a stop. Exactly one of
// TripID and StopID is set.
type Alert struct {
	AlertID     string `json:"alert_id"`
	TripID      string `json:"trip_id,omitempty"`
	StopID      string `json:"stop_id,omitempty"`
	Header      string `json:"header"`
	Description string `json:"description,omitempty"`
	Timestamp   *int64 `json:"timestamp"`         // unix seconds, start of the active period
	Updated     *int64 `json:"updated,omitempty"` // unix seconds, feed timestamp
}

// VehiclePosition is a realtime vehicle row as stored by the GTFS-RT poller.
type VehiclePosition struct {
	VehicleID           string    `json:"vehicle_id"`
	Label               string    `json:"label,omitempty"`
	TripID              string    `json:"trip_id,omitempty"`
	TripShortName       string    `json:"trip_short_name,omitempty"`
	RouteID             string    `json:"route_id,omitempty"`
	RouteType           int       `json:"route_type"`
	RouteName           string    `json:"route_name,omitempty"`
	RouteURL            string    `json:"route_url,omitempty"`
	RouteColor          string    `json:"route_color,omitempty"`
	DirectionID         *int      `json:"direction_id,omitempty"`
	Headsign            string    `json:"headsign,omitempty"`
	BikesAllowed        bool      `json:"bikes_allowed"`
	Location            GeoPoint  `json:"location"`
	Bearing             float64   `json:"bearing"`
	Speed               *float64  `json:"speed,omitempty"` // m/s
	CurrentStatus       string    `json:"current_status,omitempty"`
	StopID              string    `json:"stop_id,omitempty"`
	StopName            string    `json:"stop_name,omitempty"`
	OccupancyStatus     string    `json:"occupancy_status,omitempty"`
	OccupancyPercentage *int      `json:"occupancy_percentage,omitempty"`
	Time                time.Time `json:"time"`

	// Prediction for the next stop, joined from the predictions table.
	PlatformName  string `json:"platform_name,omitempty"`
	ArrivalTime   *int64 `json:"arrival_time,omitempty"`
	DepartureTime *int64 `json:"departure_time,omitempty"`
	Delay         *int   `json:"delay,omitempty"`
}

// RealtimeSnapshot is one decoded poll of the GTFS-Realtime feeds. A nil
// slice means that feed was not fetched and its table is left as is.
type RealtimeSnapshot struct {
	Predictions []Prediction
	Vehicles    []VehiclePosition
	Alerts      []Alert
}

// Stop is a station or platform used by the static exporter.
type Stop struct {
	StopID      string   `json:"stop_id"`
	Name        string   `json:"stop_name"`
	Description string   `json:"stop_desc,omitempty"`
	URL         string   `json:"stop_url,omitempty"`
	Address     string   `json:"stop_address,omitempty"`
	Location    GeoPoint `json:"location"`
	Wheelchair  bool     `json:"wheelchair_boarding"`
	Zones       []string `json:"zones,omitempty"`
	Platforms   []string `json:"platforms,omitempty"`
	Routes      []Route  `json:"routes,omitempty"`
	RouteType   int      `json:"route_type"`

	// Remaining departures of the service day, earliest first.
	Schedule []ScheduledStopTime `json:"schedule,omitempty"`
	// Alerts informing the station or one of its platforms.
	Alerts []Alert `json:"alerts,omitempty"`
}

// ScheduledStopTime is one scheduled departure from a station.
type ScheduledStopTime struct {
	TripID        string `json:"trip_id"`
	RouteName     string `json:"route_name"`
	RouteColor    string `json:"route_color,omitempty"`
	TripName      string `json:"trip_name"`
	Headsign      string `json:"headsign"`
	DepartureSecs int    `json:"departure_secs"` // seconds after midnight of the service day
	Platform      string `json:"platform,omitempty"`
}

// Route is the subset of a GTFS route the popups need.
type Route struct {
	RouteID   string `json:"route_id"`
	ShortName string `json:"route_short_name,omitempty"`
	LongName  string `json:"route_long_name,omitempty"`
	URL       string `json:"route_url,omitempty"`
	Color     string `json:"route_color,omitempty"`
	RouteType int    `json:"route_type"`
}

// DisplayName prefers the short name.
func (r Route) DisplayName() string {
	if r.ShortName != "" {
		return r.ShortName
	}
	return r.LongName
}

// Shape is a route polyline.
type Shape struct {
	ShapeID string     `json:"shape_id"`
	Route   Route      `json:"route"`
	Points  []GeoPoint `json:"points"`
}

// Facility is a parking lot or garage.
type Facility struct {
	FacilityID string            `json:"facility_id"`
	Name       string            `json:"name"`
	StopID     string            `json:"stop_id,omitempty"`
	Location   GeoPoint          `json:"location"`
	Properties map[string]string `json:"properties,omitempty"`
}
