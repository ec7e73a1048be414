package service

import (
	"context"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
)

// NoopPublisher is used when no redis signal bus is configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishTrade(ctx context.Context, t model.Trade, reason string) error {
	return nil
}

var _ port.SignalPublisher = NoopPublisher{}
