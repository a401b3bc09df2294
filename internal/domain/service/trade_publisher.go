package service

import (
	"context"

	"energy-trading-dashboard/internal/domain/entity"
)

// TradeEventPublisher announces confirmed marketplace actions to other systems
type TradeEventPublisher interface {
	Publish(ctx context.Context, event *entity.TradeEvent) error
}
