package geospatial

import (
	"sync"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"

	"github.com/samirrijal/livemap/internal/core/domain"
)

// minMove is the distance in meters below which a vehicle counts as
// stationary; GPS jitter would otherwise produce a random bearing.
const minMove = 5.0

// Distance returns the great-circle distance in meters between two points.
func Distance(a, b domain.GeoPoint) float64 {
	return geo.DistanceHaversine(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
}

// Bearing returns the initial bearing in degrees [0, 360) from a to b.
func Bearing(a, b domain.GeoPoint) float64 {
	deg := geo.Bearing(orb.Point{a.Lon, a.Lat}, orb.Point{b.Lon, b.Lat})
	if deg < 0 {
		deg += 360
	}
	return deg
}

type fix struct {
	at  domain.GeoPoint
	ts  time.Time
	dir float64
}

// MotionTracker fills in speed and bearing for feeds that omit them, from
// the previous position of the same vehicle.
type MotionTracker struct {
	mu   sync.Mutex
	last map[string]fix
}

func NewMotionTracker() *MotionTracker {
	return &MotionTracker{last: make(map[string]fix)}
}

// Fill sets Speed (m/s) when it is nil and Bearing when it is zero. Vehicles
// absent from vps are forgotten.
func (t *MotionTracker) Fill(vps []domain.VehiclePosition) {
	t.mu.Lock()
	defer t.mu.Unlock()

	next := make(map[string]fix, len(vps))
	for i := range vps {
		vp := &vps[i]
		cur := fix{at: vp.Location, ts: vp.Time, dir: vp.Bearing}

		if prev, ok := t.last[vp.VehicleID]; ok {
			dist := Distance(prev.at, cur.at)
			dt := cur.ts.Sub(prev.ts).Seconds()
			if vp.Speed == nil && dt > 0 {
				speed := dist / dt
				vp.Speed = &speed
			}
			if vp.Bearing == 0 {
				if dist >= minMove {
					vp.Bearing = Bearing(prev.at, cur.at)
				} else {
					vp.Bearing = prev.dir
				}
				cur.dir = vp.Bearing
			}
		}
		next[vp.VehicleID] = cur
	}
	t.last = next
}
