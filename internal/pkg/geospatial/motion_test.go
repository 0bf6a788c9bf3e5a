package geospatial

import (
	"math"
	"testing"
	"time"

	"github.com/samirrijal/livemap/internal/core/domain"
)

var (
	southStation = domain.GeoPoint{Lat: 42.3519, Lon: -71.0552}
	backBay      = domain.GeoPoint{Lat: 42.3473, Lon: -71.0755}
)

func TestDistance(t *testing.T) {
	d := Distance(southStation, backBay)
	// Roughly 1.75 km apart.
	if d < 1600 || d > 1900 {
		t.Errorf("Distance = %.0f m, want ~1750", d)
	}
	if Distance(southStation, southStation) != 0 {
		t.Error("distance to self should be 0")
	}
}

func TestBearing(t *testing.T) {
	north := domain.GeoPoint{Lat: 43, Lon: -71}
	if b := Bearing(domain.GeoPoint{Lat: 42, Lon: -71}, north); math.Abs(b) > 0.5 {
		t.Errorf("bearing north = %.2f, want 0", b)
	}
	west := domain.GeoPoint{Lat: 42, Lon: -72}
	if b := Bearing(domain.GeoPoint{Lat: 42, Lon: -71}, west); b < 265 || b > 275 {
		t.Errorf("bearing west = %.2f, want ~270", b)
	}
}

func TestMotionTracker_Fill(t *testing.T) {
	tr := NewMotionTracker()
	t0 := time.Unix(1700000000, 0)

	first := []domain.VehiclePosition{{VehicleID: "1710", Location: southStation, Time: t0}}
	tr.Fill(first)
	if first[0].Speed != nil {
		t.Error("first fix has no previous position, speed must stay nil")
	}

	second := []domain.VehiclePosition{{VehicleID: "1710", Location: backBay, Time: t0.Add(100 * time.Second)}}
	tr.Fill(second)
	if second[0].Speed == nil {
		t.Fatal("speed not derived")
	}
	want := Distance(southStation, backBay) / 100
	if math.Abs(*second[0].Speed-want) > 1e-9 {
		t.Errorf("speed = %f, want %f", *second[0].Speed, want)
	}
	if second[0].Bearing < 180 || second[0].Bearing > 360 {
		t.Errorf("bearing = %.1f, want westward", second[0].Bearing)
	}
}

func TestMotionTracker_KeepsReportedValues(t *testing.T) {
	tr := NewMotionTracker()
	t0 := time.Unix(1700000000, 0)
	tr.Fill([]domain.VehiclePosition{{VehicleID: "1710", Location: southStation, Time: t0}})

	speed := 12.5
	vps := []domain.VehiclePosition{{VehicleID: "1710", Location: backBay, Time: t0.Add(time.Minute), Speed: &speed, Bearing: 90}}
	tr.Fill(vps)
	if *vps[0].Speed != 12.5 || vps[0].Bearing != 90 {
		t.Errorf("reported values overwritten: speed=%v bearing=%v", *vps[0].Speed, vps[0].Bearing)
	}
}

func TestMotionTracker_StationaryKeepsBearing(t *testing.T) {
	tr := NewMotionTracker()
	t0 := time.Unix(1700000000, 0)
	tr.Fill([]domain.VehiclePosition{{VehicleID: "1710", Location: southStation, Time: t0, Bearing: 45}})

	vps := []domain.VehiclePosition{{VehicleID: "1710", Location: southStation, Time: t0.Add(time.Minute)}}
	tr.Fill(vps)
	if vps[0].Bearing != 45 {
		t.Errorf("bearing = %v, want previous 45", vps[0].Bearing)
	}
	if vps[0].Speed == nil || *vps[0].Speed != 0 {
		t.Errorf("speed = %v, want 0", vps[0].Speed)
	}
}

func TestMotionTracker_ForgetsMissingVehicles(t *testing.T) {
	tr := NewMotionTracker()
	t0 := time.Unix(1700000000, 0)
	tr.Fill([]domain.VehiclePosition{{VehicleID: "1710", Location: southStation, Time: t0}})
	tr.Fill(nil)

	vps := []domain.VehiclePosition{{VehicleID: "1710", Location: backBay, Time: t0.Add(time.Minute)}}
	tr.Fill(vps)
	if vps[0].Speed != nil {
		t.Error("vehicle should have been forgotten after an empty poll")
	}
}
