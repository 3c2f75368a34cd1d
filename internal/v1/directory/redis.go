// Package directory is the shared cross-replica state for rooms: the room
// blob store, the replica-ownership index, and the public lobby index,
// all backed by Redis. Every call is wrapped in a circuit breaker so a
// degraded Redis does not wedge every room's connect path, mirroring the
// breaker-wrapped-client pattern the teacher used for its own Redis bus.
package directory

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
)

var tracer = otel.Tracer("kingdoms-rooms/directory")

// Client wraps a *redis.Client with a circuit breaker, shared by every
// repository in this package.
type Client struct {
	rdb     *redis.Client
	breaker *gobreaker.CircuitBreaker
}

// NewClient constructs a breaker-wrapped Redis client. The breaker trips
// after 5 consecutive failures and probes again after 10 seconds, the
// same thresholds the teacher used for its pub/sub bus.
func NewClient(rdb *redis.Client) *Client {
	settings := gobreaker.Settings{
		Name:        "directory-redis",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn(context.Background(), "directory circuit breaker state change",
				zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	}
	return &Client{rdb: rdb, breaker: gobreaker.NewCircuitBreaker(settings)}
}

// Ping satisfies health.Pinger.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.execute(ctx, "ping", func() (any, error) {
		return c.rdb.Ping(ctx).Result()
	})
	return err
}

func (c *Client) execute(ctx context.Context, op string, fn func() (any, error)) (any, error) {
	_, span := tracer.Start(ctx, "directory."+op, trace.WithAttributes(attribute.String("db.operation", op)))
	defer span.End()

	result, err := c.breaker.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerFailures.WithLabelValues("directory-redis").Inc()
		}
		metrics.DirectoryOperationsTotal.WithLabelValues(op, "error").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, wrapStoreError(err)
	}
	metrics.DirectoryOperationsTotal.WithLabelValues(op, "ok").Inc()
	return result, nil
}

func measureOp(op string) func() {
	start := time.Now()
	return func() {
		metrics.DirectoryOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

func notFoundOrErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrRoomNotFound
	}
	return err
}
