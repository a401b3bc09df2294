package service

import "energy-trading-dashboard/internal/domain/entity"

// TelemetryFeed produces illustrative production/consumption data
type TelemetryFeed interface {
	// Generate returns one point per hour of the day
	Generate() []entity.TelemetryPoint
}
