package room

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/serafinovsky/kingdoms-rooms/internal/v1/logging"
	"github.com/serafinovsky/kingdoms-rooms/internal/v1/metrics"
)

// tickInterval is the target wall-clock duration of one turn.
const tickInterval = 700 * time.Millisecond

var tracer = otel.Tracer("kingdoms-rooms/room")

// TickLoop drives a ClassicStrategy at a fixed cadence once started,
// grounded on original_source's GameLoop.
type TickLoop struct {
	strategy *ClassicStrategy
	roomKey  string

	mu          sync.Mutex
	currentTurn int

	startOnce sync.Once
	stopOnce  sync.Once
	startCh   chan struct{}
	stopCh    chan struct{}
	doneCh    chan struct{}
}

// NewTickLoop builds a TickLoop and launches its driving goroutine; the
// loop blocks until Start is called.
func NewTickLoop(strategy *ClassicStrategy, roomKey string) *TickLoop {
	l := &TickLoop{
		strategy: strategy,
		roomKey:  roomKey,
		startCh:  make(chan struct{}),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Start releases the loop to begin running turns.
func (l *TickLoop) Start() { l.startOnce.Do(func() { close(l.startCh) }) }

// Stop requests the loop to exit at its next suspension point.
func (l *TickLoop) Stop() { l.stopOnce.Do(func() { close(l.stopCh) }) }

// Wait blocks until the loop has exited or ctx is done. Exiting because
// the loop finished naturally is not an error.
func (l *TickLoop) Wait(ctx context.Context) error {
	select {
	case <-l.doneCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// CurrentTurn returns the most recently started turn number.
func (l *TickLoop) CurrentTurn() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.currentTurn
}

func (l *TickLoop) setTurn(turn int) {
	l.mu.Lock()
	l.currentTurn = turn
	l.mu.Unlock()
}

func (l *TickLoop) run() {
	defer close(l.doneCh)

	select {
	case <-l.startCh:
	case <-l.stopCh:
		return
	}

	turn := 0
	for !l.strategy.IsGameDone() {
		select {
		case <-l.stopCh:
			l.strategy.FinishGame()
			return
		default:
		}

		turn++
		l.setTurn(turn)

		start := time.Now()
		ctx, span := tracer.Start(context.Background(), "room.tick",
			trace.WithAttributes(attribute.String("room_id", l.roomKey), attribute.Int("turn", turn)))
		l.strategy.InitTurn(turn)
		err := l.strategy.MakeTurn()
		if err != nil {
			span.RecordError(err)
		}
		span.End()
		if err != nil {
			logging.Error(ctx, "fatal invariant violation, ending game",
				zap.String("room_id", l.roomKey), zap.Error(err))
			l.strategy.FinishGame()
			return
		}
		metrics.TicksTotal.WithLabelValues(l.roomKey).Inc()
		metrics.TickDuration.WithLabelValues(l.roomKey).Observe(time.Since(start).Seconds())
		l.strategy.FinishTurn()

		elapsed := time.Since(start)
		sleepFor := tickInterval - elapsed
		if sleepFor < 0 {
			sleepFor = 0
		}
		select {
		case <-time.After(sleepFor):
		case <-l.stopCh:
			l.strategy.FinishGame()
			return
		}
	}

	l.strategy.FinishGame()
}
