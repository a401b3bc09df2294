package telemetry

import (
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"energy-trading-dashboard/internal/domain/entity"
	"energy-trading-dashboard/internal/domain/service"
	"energy-trading-dashboard/internal/infrastructure/config"
)

const (
	hoursPerDay = 24

	maxProduction  = 10.0
	maxConsumption = 8.0
	minPrice       = 0.1
	priceSpread    = 0.5
)

// Feed generates simulated hourly telemetry. The values are illustrative only.
type Feed struct {
	mu  sync.Mutex
	rng *rand.Rand
}

var _ service.TelemetryFeed = (*Feed)(nil)

// NewFeed creates a feed. A zero seed draws from the clock.
func NewFeed(cfg config.TelemetryConfig) *Feed {
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Feed{rng: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Generate returns 24 points labelled 0:00 through 23:00
func (f *Feed) Generate() []entity.TelemetryPoint {
	f.mu.Lock()
	defer f.mu.Unlock()

	points := make([]entity.TelemetryPoint, 0, hoursPerDay)
	for hour := 0; hour < hoursPerDay; hour++ {
		points = append(points, entity.TelemetryPoint{
			Time:        fmt.Sprintf("%d:00", hour),
			Production:  f.rng.Float64() * maxProduction,
			Consumption: f.rng.Float64() * maxConsumption,
			Price:       minPrice + f.rng.Float64()*priceSpread,
		})
	}
	return points
}
