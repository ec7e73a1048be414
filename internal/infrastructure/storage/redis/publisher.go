package redis

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/redis/go-redis/v9"

	"stockbot/internal/application/port"
	"stockbot/internal/domain/model"
)

// Publisher pushes executed-trade signals to a stream for durable consumers
// and to a pub/sub channel for live dashboards.
type Publisher struct {
	rdb          *redis.Client
	signalStream string
	signalChan   string
}

func NewPublisher(rdb *redis.Client, prefix, signalStream, signalChan string) *Publisher {
	if strings.TrimSpace(signalStream) == "" {
		signalStream = prefix + ":signals"
	}
	if strings.TrimSpace(signalChan) == "" {
		signalChan = prefix + ":signals:pub"
	}
	return &Publisher{
		rdb:          rdb,
		signalStream: signalStream,
		signalChan:   signalChan,
	}
}

func (p *Publisher) PublishTrade(ctx context.Context, t model.Trade, reason string) error {
	payload, err := json.Marshal(t)
	if err != nil {
		return err
	}

	// 1) Stream: XADD <stream> * ticker side qty price reason payload
	_, err = p.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: p.signalStream,
		Values: map[string]any{
			"ticker":  t.Ticker,
			"side":    t.Side,
			"qty":     t.Qty,
			"price":   t.Price,
			"reason":  reason,
			"payload": string(payload),
		},
	}).Result()
	if err != nil {
		return err
	}

	// 2) PubSub: PUBLISH <channel> json
	msg, err := json.Marshal(map[string]any{
		"reason": reason,
		"trade":  t,
	})
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.signalChan, string(msg)).Err()
}

var _ port.SignalPublisher = (*Publisher)(nil)
