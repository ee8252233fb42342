// Package notify broadcasts change events so POS terminals know to
// re-fetch. Events are fire-and-forget: a lost notification only delays a
// refresh, it never loses data.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	redis "github.com/redis/go-redis/v9"
)

const Channel = "pos:changes"

const (
	TableProducts     = "products"
	TableSales        = "sales"
	TableCashRegister = "cash_register"
)

type Event struct {
	Table string `json:"table"`
	Op    string `json:"op"`
	ID    string `json:"id,omitempty"`
	At    string `json:"at"`
}

type Notifier interface {
	Publish(ctx context.Context, table string, op string, id string)
}

type NoopNotifier struct{}

func (NoopNotifier) Publish(_ context.Context, _ string, _ string, _ string) {}

type RedisNotifier struct {
	client *redis.Client
}

func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

func (n *RedisNotifier) Publish(ctx context.Context, table string, op string, id string) {
	event := Event{
		Table: table,
		Op:    op,
		ID:    id,
		At:    time.Now().UTC().Format(time.RFC3339),
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return
	}
	if err := n.client.Publish(ctx, Channel, payload).Err(); err != nil {
		log.Printf("[notify] publish %s/%s failed: %v", table, op, err)
	}
}
