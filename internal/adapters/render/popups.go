package render

import (
	"sort"

	"github.com/samirrijal/livemap/internal/core/domain"
	"github.com/samirrijal/livemap/internal/pkg/transitfmt"
)

// DefaultStopColor is used for stops without a coloured route.
const DefaultStopColor = "008EAA"

type routeLink struct {
	Name  string
	URL   string
	Color string
}

type stopAlertRow struct {
	ID          string
	Header      string
	Description string
	Created     string
	Updated     string
}

type scheduleRow struct {
	Route      string
	RouteColor string
	Trip       string
	Headsign   string
	Scheduled  string
	Platform   string
}

type stopPopup struct {
	Name        string
	URL         string
	Color       string
	Description string
	Alerts      []stopAlertRow
	Schedule    []scheduleRow
	Wheelchair  bool
	Routes      []routeLink
	Zones       []string
	Address     string
	Platforms   []string
}

type keyValue struct {
	Key   string
	Value string
}

type facilityPopup struct {
	Name       string
	Properties []keyValue
}

// StaticPopups renders the popups baked into exported static collections.
type StaticPopups struct{}

// StopPopup implements ports.StaticPopupRenderer.
func (StaticPopups) StopPopup(stop domain.Stop) (string, error) {
	routes := append([]domain.Route(nil), stop.Routes...)
	sort.SliceStable(routes, func(i, j int) bool { return routes[i].RouteType < routes[j].RouteType })

	data := stopPopup{
		Name:        stop.Name,
		URL:         stop.URL,
		Color:       DefaultStopColor,
		Description: stop.Description,
		Wheelchair:  stop.Wheelchair,
		Zones:       stop.Zones,
		Address:     stop.Address,
		Platforms:   stop.Platforms,
	}
	for _, r := range routes {
		if r.Color != "" && data.Color == DefaultStopColor {
			data.Color = r.Color
		}
		color := r.Color
		if color == "" {
			color = "ffffff"
		}
		data.Routes = append(data.Routes, routeLink{Name: r.DisplayName(), URL: r.URL, Color: color})
	}

	seen := map[string]bool{}
	for _, a := range stop.Alerts {
		if seen[a.AlertID] {
			continue
		}
		seen[a.AlertID] = true
		data.Alerts = append(data.Alerts, stopAlertRow{
			ID:          a.AlertID,
			Header:      a.Header,
			Description: a.Description,
			Created:     formatOptional(a.Timestamp),
			Updated:     formatOptional(a.Updated),
		})
	}

	schedule := append([]domain.ScheduledStopTime(nil), stop.Schedule...)
	sort.SliceStable(schedule, func(i, j int) bool { return schedule[i].DepartureSecs < schedule[j].DepartureSecs })
	for _, st := range schedule {
		color := st.RouteColor
		if color == "" {
			color = "ffffff"
		}
		data.Schedule = append(data.Schedule, scheduleRow{
			Route:      st.RouteName,
			RouteColor: color,
			Trip:       st.TripName,
			Headsign:   st.Headsign,
			Scheduled:  transitfmt.FormatServiceTime(st.DepartureSecs),
			Platform:   st.Platform,
		})
	}
	return execute("stop_popup", data)
}

func formatOptional(unix *int64) string {
	if unix == nil {
		return ""
	}
	return transitfmt.FormatFull(*unix)
}

// ShapePopup implements ports.StaticPopupRenderer.
func (StaticPopups) ShapePopup(shape domain.Shape) (string, error) {
	return execute("shape_popup", routeLink{
		Name:  shape.Route.DisplayName(),
		URL:   shape.Route.URL,
		Color: shape.Route.Color,
	})
}

// FacilityPopup implements ports.StaticPopupRenderer.
func (StaticPopups) FacilityPopup(f domain.Facility) (string, error) {
	data := facilityPopup{Name: f.Name}
	for k, v := range f.Properties {
		data.Properties = append(data.Properties, keyValue{Key: k, Value: v})
	}
	sort.Slice(data.Properties, func(i, j int) bool { return data.Properties[i].Key < data.Properties[j].Key })
	return execute("facility_popup", data)
}
