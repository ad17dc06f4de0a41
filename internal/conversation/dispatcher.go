// Package conversation runs the per-chat state machines of the three role
// front ends and turns chat events into ticket operations.
package conversation

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/internal/metrics"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

const (
	inboxSize   = 32
	idleTimeout = 5 * time.Minute
)

// Engine is a role's conversation state machine. Handle is never called
// concurrently for the same chat.
type Engine interface {
	Role() protocol.Role
	Handle(ctx context.Context, ev connector.Event) error
}

// Dispatcher serializes events per chat and runs different chats
// concurrently. Each chat gets an inbox goroutine that exits when idle.
type Dispatcher struct {
	engine Engine
	logger *slog.Logger
	idle   time.Duration

	mu      sync.Mutex
	inboxes map[int64]chan connector.Event
	wg      sync.WaitGroup
}

// NewDispatcher creates a dispatcher for one role engine.
func NewDispatcher(engine Engine, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		engine:  engine,
		logger:  logger.With("component", "dispatcher", "role", engine.Role()),
		idle:    idleTimeout,
		inboxes: make(map[int64]chan connector.Event),
	}
}

// Handle queues ev on its chat's inbox. It matches connector.Handler and
// returns once the event is queued, not processed.
func (d *Dispatcher) Handle(ctx context.Context, ev connector.Event) error {
	d.mu.Lock()
	inbox, ok := d.inboxes[ev.ChatID]
	if !ok {
		inbox = make(chan connector.Event, inboxSize)
		d.inboxes[ev.ChatID] = inbox
		d.wg.Add(1)
		go d.work(ctx, ev.ChatID, inbox)
	}
	// A worker only retires with an empty inbox under mu, so a send that
	// lands here is always consumed.
	select {
	case inbox <- ev:
		d.mu.Unlock()
		return nil
	default:
	}
	d.mu.Unlock()

	// Full inbox: the worker is busy and will not retire before draining it.
	select {
	case inbox <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Wait blocks until every chat worker has exited.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Active returns the number of chats with a live worker.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.inboxes)
}

func (d *Dispatcher) work(ctx context.Context, chatID int64, inbox chan connector.Event) {
	defer d.wg.Done()
	timer := time.NewTimer(d.idle)
	defer timer.Stop()

	for {
		select {
		case ev := <-inbox:
			d.process(ctx, ev)
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(d.idle)

		case <-timer.C:
			d.mu.Lock()
			if len(inbox) > 0 {
				d.mu.Unlock()
				timer.Reset(d.idle)
				continue
			}
			delete(d.inboxes, chatID)
			d.mu.Unlock()
			return

		case <-ctx.Done():
			d.mu.Lock()
			delete(d.inboxes, chatID)
			d.mu.Unlock()
			return
		}
	}
}

// process runs one event. A failing or panicking event never takes the
// worker down.
func (d *Dispatcher) process(ctx context.Context, ev connector.Event) {
	role := string(d.engine.Role())
	logger := d.logger.With("event_id", uuid.NewString(), "chat_id", ev.ChatID, "kind", ev.Kind)
	metrics.EventsTotal.WithLabelValues(role, string(ev.Kind)).Inc()

	start := time.Now()
	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
				logger.Error("event handler panicked", "panic", r, "stack", string(debug.Stack()))
			}
		}()
		return d.engine.Handle(WithLogger(ctx, logger), ev)
	}()
	if err != nil {
		metrics.EventFailuresTotal.WithLabelValues(role).Inc()
		logger.Error("event failed", "error", err, "duration", time.Since(start))
		return
	}
	logger.Debug("event handled", "duration", time.Since(start))
}

type loggerKey struct{}

// WithLogger attaches an event-scoped logger to ctx.
func WithLogger(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, l)
}

func loggerFrom(ctx context.Context, fallback *slog.Logger) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return fallback
}
