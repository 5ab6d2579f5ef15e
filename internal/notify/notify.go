// Package notify delivers approval and status notifications to members.
// Delivery is best-effort: callers log failures and carry on.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// DefaultStream is the Redis stream notifications are appended to.
const DefaultStream = "triplog:notifications"

// Kind says who a notification is addressed to.
type Kind string

const (
	KindApprover Kind = "approver"
	KindDriver   Kind = "driver"
)

// RedisNotifier appends every notification to a Redis stream, where the
// delivery workers (push, e-mail) pick them up.
type RedisNotifier struct {
	client *redis.Client
	stream string
	maxLen int64
	now    func() time.Time
}

// NewRedisNotifier constructs a RedisNotifier writing to stream, or to
// DefaultStream when stream is empty. The stream is trimmed to roughly
// 10k entries.
func NewRedisNotifier(client *redis.Client, stream string) *RedisNotifier {
	if stream == "" {
		stream = DefaultStream
	}
	return &RedisNotifier{client: client, stream: stream, maxLen: 10_000, now: time.Now}
}

// NotifyApprover tells an approving officer that a trip or stop awaits them.
func (n *RedisNotifier) NotifyApprover(ctx context.Context, officerID, tripID uuid.UUID, message string) error {
	return n.publish(ctx, KindApprover, officerID, tripID, message)
}

// NotifyDriver tells a driver about a decision on their trip.
func (n *RedisNotifier) NotifyDriver(ctx context.Context, driverID, tripID uuid.UUID, message string) error {
	return n.publish(ctx, KindDriver, driverID, tripID, message)
}

func (n *RedisNotifier) publish(ctx context.Context, kind Kind, to, tripID uuid.UUID, message string) error {
	err := n.client.XAdd(ctx, &redis.XAddArgs{
		Stream: n.stream,
		MaxLen: n.maxLen,
		Approx: true,
		Values: map[string]any{
			"kind":       string(kind),
			"recipient":  to.String(),
			"trip_id":    tripID.String(),
			"message":    message,
			"created_at": n.now().UTC().Format(time.RFC3339),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("notify.RedisNotifier.%s: %w", kind, err)
	}
	return nil
}

// LogNotifier writes notifications to the structured log. It is used when no
// Redis URL is configured, typically in development.
type LogNotifier struct {
	logger *slog.Logger
}

// NewLogNotifier constructs a LogNotifier. A nil logger means slog.Default().
func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyApprover(ctx context.Context, officerID, tripID uuid.UUID, message string) error {
	n.logger.InfoContext(ctx, "notification", "kind", KindApprover, "recipient", officerID, "trip_id", tripID, "message", message)
	return nil
}

func (n *LogNotifier) NotifyDriver(ctx context.Context, driverID, tripID uuid.UUID, message string) error {
	n.logger.InfoContext(ctx, "notification", "kind", KindDriver, "recipient", driverID, "trip_id", tripID, "message", message)
	return nil
}
