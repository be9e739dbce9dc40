// Package source feeds the coordinator with telemetry. The simulated
// drive source stands in for a real vehicle feed during demos and
// end-to-end tests: it moves configured vehicles along their heading
// and upserts location states at a fixed interval.
package source

import (
	"context"
	"log/slog"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/cardata-bridge/cdb/internal/config"
	"github.com/cardata-bridge/cdb/internal/coordinator"
	"github.com/cardata-bridge/cdb/internal/tracker"
)

const kmPerDegreeLat = 111.32

// SimSource drives simulated vehicles.
type SimSource struct {
	coordinator *coordinator.Coordinator
	interval    time.Duration

	mu       sync.Mutex
	vehicles []simState
	noFix    map[string]bool
}

type simState struct {
	cfg config.SimVehicle
	lat float64
	lon float64
}

// NewSim creates a simulated source for the configured vehicles.
func NewSim(c *coordinator.Coordinator, cfg config.SourceConfig) *SimSource {
	s := &SimSource{
		coordinator: c,
		interval:    cfg.Interval(),
		noFix:       make(map[string]bool),
	}
	for _, v := range cfg.Vehicles {
		s.vehicles = append(s.vehicles, simState{cfg: v, lat: v.Lat, lon: v.Lon})
	}
	return s
}

// SetNoFix forces or clears a no-fix window for one vehicle.
func (s *SimSource) SetNoFix(vin string, noFix bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.noFix[vin] = noFix
}

// Run ticks until the context is cancelled. The first tick fires
// immediately so trackers have data at startup.
func (s *SimSource) Run(ctx context.Context) {
	slog.Info("simulated source started",
		slog.Int("vehicles", len(s.vehicles)),
		slog.Duration("interval", s.interval))

	t := time.NewTimer(0)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulated source stopped")
			return
		case <-t.C:
			s.Tick()
			t.Reset(s.interval)
		}
	}
}

// Tick advances every vehicle one interval and publishes its states.
func (s *SimSource) Tick() {
	s.mu.Lock()
	defer s.mu.Unlock()

	dt := s.interval.Hours()
	for i := range s.vehicles {
		v := &s.vehicles[i]

		distKm := v.cfg.SpeedKph * dt
		headingRad := v.cfg.HeadingDeg * math.Pi / 180
		v.lat += distKm * math.Cos(headingRad) / kmPerDegreeLat
		v.lon += distKm * math.Sin(headingRad) / (kmPerDegreeLat * math.Cos(v.lat*math.Pi/180))

		now := time.Now().UTC()
		s.coordinator.Upsert(v.cfg.VIN, tracker.LatitudeDescriptor, coordinator.State{
			Value: formatCoord(v.lat), Unit: "deg", Timestamp: now,
		})
		s.coordinator.Upsert(v.cfg.VIN, tracker.LongitudeDescriptor, coordinator.State{
			Value: formatCoord(v.lon), Unit: "deg", Timestamp: now,
		})
		s.coordinator.Upsert(v.cfg.VIN, tracker.HeadingDescriptor, coordinator.State{
			Value: strconv.FormatFloat(v.cfg.HeadingDeg, 'f', 1, 64), Unit: "deg", Timestamp: now,
		})
		s.coordinator.Upsert(v.cfg.VIN, tracker.AccuracyDescriptor, coordinator.State{
			Value: "4", Unit: "m", Timestamp: now,
		})

		fix := "3D_FIX"
		if s.noFix[v.cfg.VIN] {
			fix = "NO_FIX"
		}
		s.coordinator.Upsert(v.cfg.VIN, tracker.GpsFixDescriptor, coordinator.State{
			Value: fix, Timestamp: now,
		})
	}
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}
