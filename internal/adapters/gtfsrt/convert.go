package gtfsrt

import (
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// Predictions flattens every trip update into one row per stop.
func Predictions(feed *gtfs.FeedMessage) []domain.Prediction {
	preds := []domain.Prediction{}
	for _, entity := range feed.GetEntity() {
		tu := entity.GetTripUpdate()
		if tu == nil {
			continue
		}
		tripID := tu.GetTrip().GetTripId()
		if tripID == "" {
			continue
		}
		for _, stu := range tu.GetStopTimeUpdate() {
			if stu.GetScheduleRelationship() == gtfs.TripUpdate_StopTimeUpdate_SKIPPED {
				continue
			}
			p := domain.Prediction{
				TripID:       tripID,
				StopID:       stu.GetStopId(),
				StopSequence: int(stu.GetStopSequence()),
				ArrivalTime:  eventTime(stu.GetArrival()),
			}
			p.DepartureTime = eventTime(stu.GetDeparture())
			if d := eventDelay(stu.GetDeparture()); d != nil {
				p.Delay = d
			} else {
				p.Delay = eventDelay(stu.GetArrival())
			}
			if p.Delay == nil && tu.Delay != nil {
				d := int(tu.GetDelay())
				p.Delay = &d
			}
			preds = append(preds, p)
		}
	}
	return preds
}

func eventTime(ev *gtfs.TripUpdate_StopTimeEvent) *int64 {
	if ev == nil || ev.Time == nil {
		return nil
	}
	t := ev.GetTime()
	return &t
}

func eventDelay(ev *gtfs.TripUpdate_StopTimeEvent) *int {
	if ev == nil || ev.Delay == nil {
		return nil
	}
	d := int(ev.GetDelay())
	return &d
}

// Vehicles converts vehicle position entities. Entities without a position
// are dropped.
func Vehicles(feed *gtfs.FeedMessage) []domain.VehiclePosition {
	vps := []domain.VehiclePosition{}
	for _, entity := range feed.GetEntity() {
		v := entity.GetVehicle()
		if v == nil || v.GetPosition() == nil {
			continue
		}
		pos := v.GetPosition()

		vp := domain.VehiclePosition{
			VehicleID:     v.GetVehicle().GetId(),
			Label:         v.GetVehicle().GetLabel(),
			TripID:        v.GetTrip().GetTripId(),
			RouteID:       v.GetTrip().GetRouteId(),
			Location:      domain.GeoPoint{Lat: float64(pos.GetLatitude()), Lon: float64(pos.GetLongitude())},
			Bearing:       float64(pos.GetBearing()),
			CurrentStatus: v.GetCurrentStatus().String(),
			StopID:        v.GetStopId(),
		}
		if vp.VehicleID == "" {
			vp.VehicleID = entity.GetId()
		}
		if v.GetTrip() != nil && v.GetTrip().DirectionId != nil {
			dir := int(v.GetTrip().GetDirectionId())
			vp.DirectionID = &dir
		}
		if pos.Speed != nil {
			speed := float64(pos.GetSpeed())
			vp.Speed = &speed
		}
		if v.OccupancyStatus != nil {
			vp.OccupancyStatus = v.GetOccupancyStatus().String()
		}
		if v.OccupancyPercentage != nil {
			pct := int(v.GetOccupancyPercentage())
			vp.OccupancyPercentage = &pct
		}
		ts := v.GetTimestamp()
		if ts == 0 {
			ts = feed.GetHeader().GetTimestamp()
		}
		vp.Time = time.Unix(int64(ts), 0).UTC()

		vps = append(vps, vp)
	}
	return vps
}

// Alerts converts alert entities into one row per affected trip and one
// per affected stop. Alerts that name neither are dropped.
func Alerts(feed *gtfs.FeedMessage) []domain.Alert {
	alerts := []domain.Alert{}
	var updated *int64
	if ts := feed.GetHeader().GetTimestamp(); ts != 0 {
		v := int64(ts)
		updated = &v
	}
	for _, entity := range feed.GetEntity() {
		a := entity.GetAlert()
		if a == nil {
			continue
		}
		base := domain.Alert{
			AlertID:     entity.GetId(),
			Header:      text(a.GetHeaderText()),
			Description: text(a.GetDescriptionText()),
			Timestamp:   alertTimestamp(a, feed.GetHeader().GetTimestamp()),
			Updated:     updated,
		}
		seenTrips := map[string]bool{}
		seenStops := map[string]bool{}
		for _, sel := range a.GetInformedEntity() {
			if tripID := sel.GetTrip().GetTripId(); tripID != "" && !seenTrips[tripID] {
				seenTrips[tripID] = true
				row := base
				row.TripID = tripID
				alerts = append(alerts, row)
			}
			if stopID := sel.GetStopId(); stopID != "" && !seenStops[stopID] {
				seenStops[stopID] = true
				row := base
				row.StopID = stopID
				alerts = append(alerts, row)
			}
		}
	}
	return alerts
}

func alertTimestamp(a *gtfs.Alert, fallback uint64) *int64 {
	var ts uint64
	for _, period := range a.GetActivePeriod() {
		if start := period.GetStart(); start > ts {
			ts = start
		}
	}
	if ts == 0 {
		ts = fallback
	}
	if ts == 0 {
		return nil
	}
	v := int64(ts)
	return &v
}

// text picks the English translation, falling back to the first one.
func text(ts *gtfs.TranslatedString) string {
	translations := ts.GetTranslation()
	for _, tr := range translations {
		if lang := tr.GetLanguage(); lang == "" || lang == "en" {
			return tr.GetText()
		}
	}
	if len(translations) > 0 {
		return translations[0].GetText()
	}
	return ""
}
