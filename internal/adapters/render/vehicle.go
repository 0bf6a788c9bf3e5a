package render

import (
	"fmt"
	"html/template"
	"strconv"
	"strings"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/pkg/transitfmt"
)

// CSS filters that tint the vehicle icon to a route colour.
var hexCSSFilters = map[string]string{
	"FFC72C": "filter: invert(66%) sepia(78%) saturate(450%) hue-rotate(351deg) brightness(108%) contrast(105%);",
	"7C878E": "filter: invert(57%) sepia(2%) saturate(1547%) hue-rotate(160deg) brightness(91%) contrast(103%);",
	"003DA5": "filter: invert(13%) sepia(61%) saturate(5083%) hue-rotate(215deg) brightness(96%) contrast(101%);",
	"008EAA": "filter: invert(40%) sepia(82%) saturate(2802%) hue-rotate(163deg) brightness(88%) contrast(101%);",
	"80276C": "filter: invert(20%) sepia(29%) saturate(3661%) hue-rotate(283deg) brightness(92%) contrast(93%);",
	"006595": "filter: invert(21%) sepia(75%) saturate(2498%) hue-rotate(180deg) brightness(96%) contrast(101%);",
	"00843D": "filter: invert(31%) sepia(99%) saturate(684%) hue-rotate(108deg) brightness(96%) contrast(101%);",
	"DA291C": "filter: invert(23%) sepia(54%) saturate(7251%) hue-rotate(355deg) brightness(90%) contrast(88%);",
	"ED8B00": "filter: invert(46%) sepia(89%) saturate(615%) hue-rotate(1deg) brightness(103%) contrast(104%);",
	"ffffff": "filter: invert(100%) sepia(93%) saturate(19%) hue-rotate(314deg) brightness(105%) contrast(104%);",
}

const (
	vehicleZIndex   = 100
	vehicleIconSize = 10
	schedulesURL    = "https://mbta.com/schedules/"
)

type textLine struct {
	Class string
	Text  string
}

type vehiclePopup struct {
	HeaderURL     string
	RouteColor    string
	TripShortName string
	Direction     string
	BikesAllowed  bool
	TripID        string
	Status        string
	Delay         *textLine
	Occupancy     *textLine
	Speed         string
	Footer        string
	Timestamp     string
}

type vehicleIcon struct {
	Style template.CSS
	Label string
}

// VehicleRenderer renders realtime vehicle features.
type VehicleRenderer struct{}

// NewVehicleRenderer creates a VehicleRenderer.
func NewVehicleRenderer() *VehicleRenderer { return &VehicleRenderer{} }

// Render implements ports.MarkerRenderer.
func (r *VehicleRenderer) Render(f domain.Feature) (domain.MarkerSpec, error) {
	var p domain.VehicleProperties
	if err := f.Decode(&p); err != nil {
		return domain.MarkerSpec{}, err
	}

	popup, err := execute("vehicle_popup", vehiclePopupData(p))
	if err != nil {
		return domain.MarkerSpec{}, fmt.Errorf("vehicle popup %s: %w", f.ID, err)
	}
	icon, err := execute("vehicle_icon", vehicleIcon{
		Style: template.CSS(fmt.Sprintf("%s transform: rotate(%sdeg);",
			hexCSSFilters[string(p.RouteColor)], strconv.FormatFloat(float64(p.Bearing), 'f', -1, 64))),
		Label: string(p.DisplayName),
	})
	if err != nil {
		return domain.MarkerSpec{}, fmt.Errorf("vehicle icon %s: %w", f.ID, err)
	}

	return domain.MarkerSpec{
		ID:           f.ID,
		Layer:        domain.LayerVehicles,
		Geometry:     f.Geometry,
		Icon:         &domain.Icon{HTML: icon, Size: [2]int{vehicleIconSize, vehicleIconSize}},
		Popup:        popup,
		Tooltip:      f.ID,
		SearchName:   fmt.Sprintf("%s @ %s", p.TripShortName, routeName(p)),
		ZIndexOffset: vehicleZIndex,
		TripID:       string(p.TripID),
	}, nil
}

func vehiclePopupData(p domain.VehicleProperties) vehiclePopup {
	d := vehiclePopup{
		HeaderURL:     schedulesURL + string(p.RouteID),
		RouteColor:    string(p.RouteColor),
		TripShortName: string(p.TripShortName),
		BikesAllowed:  bool(p.BikesAllowed),
		TripID:        string(p.TripID),
		Speed:         transitfmt.Speed(p.SpeedMPH.Float64()),
		Timestamp:     transitfmt.FormatFull(int64(p.Timestamp)),
	}
	if p.Route != nil {
		d.HeaderURL = string(p.Route.RouteURL)
	}

	switch p.TripShortName {
	case "552":
		d.Direction = "heart to hub"
	case "549":
		d.Direction = "hub to heart"
	default:
		d.Direction = transitfmt.Direction(p.DirectionID.Float64()) + " to " + string(p.Headsign)
	}

	status := transitfmt.AlmostTitleCase(string(p.CurrentStatus))
	stopped := p.CurrentStatus == "STOPPED_AT"
	switch {
	case p.StopTime != nil:
		d.Status = status + " " + string(p.StopTime.StopName)
		if !stopped {
			var clock string
			if ns := p.NextStop; ns != nil {
				if t := firstTime(ns.ArrivalTime, ns.DepartureTime); t != 0 {
					clock = transitfmt.FormatClock(t)
				}
			}
			d.Status += " - " + clock
		}
		if p.NextStop != nil && p.NextStop.Delay != nil {
			d.Delay = delayLine(int(*p.NextStop.Delay))
		}
	case p.NextStop != nil:
		d.Status = status + " " + string(p.NextStop.StopName)
		if !stopped {
			d.Status += " - " + transitfmt.FormatClock(int64(p.Timestamp))
		}
	}

	if p.OccupancyStatus != nil {
		line := &textLine{Text: "null% occupancy"}
		if p.OccupancyPercentage != nil {
			line.Class = transitfmt.OccupancyClass(float64(*p.OccupancyPercentage))
			line.Text = strconv.FormatFloat(float64(*p.OccupancyPercentage), 'f', -1, 64) + "% occupancy"
		}
		d.Occupancy = line
	}

	d.Footer = strings.TrimSpace(fmt.Sprintf("%s @ %s %s", p.VehicleID, routeName(p), platformName(p)))

	return d
}

func routeName(p domain.VehicleProperties) string {
	if p.Route == nil || p.Route.RouteName == "" {
		return "unknown"
	}
	return string(p.Route.RouteName)
}

func platformName(p domain.VehicleProperties) string {
	if p.Route == nil || p.Route.RouteType != "2" || p.NextStop == nil || p.NextStop.PlatformName == "" {
		return ""
	}
	return transitfmt.PlatformName(string(p.NextStop.PlatformName))
}

func delayLine(delay int) *textLine {
	text := transitfmt.DelayText(delay)
	class := transitfmt.DelayClass(delay)
	switch {
	case class != transitfmt.OnTime:
		return &textLine{Class: class, Text: text}
	case transitfmt.DelayMinutes(delay) == 0:
		return &textLine{Text: text}
	default:
		return &textLine{Class: transitfmt.OnTime, Text: text}
	}
}

func firstTime(times ...*domain.FlexFloat) int64 {
	for _, t := range times {
		if t != nil && *t != 0 {
			return int64(*t)
		}
	}
	return 0
}
