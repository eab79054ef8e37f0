package notification

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const (
	// KindTransactionCompleted indicates a ledger transaction settled successfully.
	KindTransactionCompleted = "transaction.completed"
	// KindTransactionFailed indicates a ledger transaction settled unsuccessfully.
	KindTransactionFailed = "transaction.failed"
)

// Message describes a notification payload. Delivery is fire-and-forget and
// never required for ledger correctness.
type Message struct {
	Kind          string `json:"kind"`
	Destination   string `json:"destination"`
	TransactionID string `json:"transaction_id,omitempty"`
	Body          string `json:"body"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier is a stub implementation that writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier stub.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		"kind", message.Kind,
		"destination", message.Destination,
		"transaction_id", message.TransactionID,
		"body", message.Body)
	return nil
}

// RedisNotifier publishes notifications on a Redis pub/sub channel so other
// services (push, email) can consume them.
type RedisNotifier struct {
	client  *redis.Client
	channel string
	logger  *slog.Logger
}

// NewRedisNotifier constructs a Redis pub/sub notifier.
func NewRedisNotifier(client *redis.Client, channel string, logger *slog.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, channel: channel, logger: logger}
}

// Send publishes the message as JSON. Errors are logged, not propagated.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return err
	}
	if err := n.client.Publish(ctx, n.channel, payload).Err(); err != nil {
		if n.logger != nil {
			n.logger.Warn("notification publish failed", "kind", message.Kind, "error", err)
		}
	}
	return nil
}
