package ticket

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/fieldops-io/fieldops/internal/metrics"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// Engine applies ticket lifecycle operations on top of a Store.
// It assigns timestamps and resulting statuses to log entries; it does not
// enforce a transition table beyond the caller-supplied guard.
type Engine struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine creates a lifecycle engine.
func NewEngine(store Store, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		store:  store,
		logger: logger.With("component", "ticket-engine"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// NewTicket holds the fields a DA supplies when reporting an issue.
type NewTicket struct {
	OrderID     string
	Description string
	IssueReason string
	IssueType   string
	Client      string
	ImageURL    string
	ReporterID  int64
}

// Validate reports the first missing required field.
func (n NewTicket) Validate() error {
	switch {
	case strings.TrimSpace(n.OrderID) == "":
		return fmt.Errorf("%w: order id is required", protocol.ErrInvalidInput)
	case strings.TrimSpace(n.Description) == "":
		return fmt.Errorf("%w: description is required", protocol.ErrInvalidInput)
	case n.IssueReason == "" || n.IssueType == "":
		return fmt.Errorf("%w: issue reason and type are required", protocol.ErrInvalidInput)
	case n.ReporterID == 0:
		return fmt.Errorf("%w: reporter is required", protocol.ErrInvalidInput)
	}
	return nil
}

// Create inserts a ticket in Opened with a single ticket_created entry.
func (e *Engine) Create(ctx context.Context, n NewTicket) (int64, error) {
	if err := n.Validate(); err != nil {
		return 0, err
	}
	now := e.now()
	t := &protocol.Ticket{
		OrderID:     strings.TrimSpace(n.OrderID),
		Description: n.Description,
		IssueReason: n.IssueReason,
		IssueType:   n.IssueType,
		Client:      strings.TrimSpace(n.Client),
		ImageURL:    n.ImageURL,
		Status:      protocol.StatusOpened,
		ReporterID:  n.ReporterID,
		Log: []protocol.LogEntry{{
			Action:    protocol.ActionTicketCreated,
			ActorID:   n.ReporterID,
			Status:    protocol.StatusOpened,
			Timestamp: now,
		}},
		CreatedAt: now,
	}
	id, err := e.store.Insert(ctx, t)
	if err != nil {
		return 0, fmt.Errorf("ticket engine: create: %w", err)
	}
	metrics.TicketsCreatedTotal.Inc()
	e.logger.Info("ticket created", "ticket_id", id, "order_id", t.OrderID, "client", t.Client, "reporter", n.ReporterID)
	return id, nil
}

// Step is one status change within an Apply call.
type Step struct {
	Status protocol.TicketStatus
	Entry  protocol.LogEntry
}

// Transition appends entry and moves the ticket to status. A Closed
// ticket is never reopened: the write fails with protocol.ErrAlreadyFinalized.
// It returns the ticket as persisted after the write.
func (e *Engine) Transition(ctx context.Context, id int64, status protocol.TicketStatus, entry protocol.LogEntry) (*protocol.Ticket, error) {
	return e.Apply(ctx, id, protocol.TerminalStatuses, Step{Status: status, Entry: entry})
}

// ClientTransition is Apply guarded by the Client-terminal statuses.
func (e *Engine) ClientTransition(ctx context.Context, id int64, steps ...Step) (*protocol.Ticket, error) {
	return e.Apply(ctx, id, protocol.ClientFinalStatuses, steps...)
}

// Apply commits steps in order as one atomic write. When the ticket is
// currently in one of the guard statuses nothing is written and the error
// wraps protocol.ErrAlreadyFinalized.
func (e *Engine) Apply(ctx context.Context, id int64, guard []protocol.TicketStatus, steps ...Step) (*protocol.Ticket, error) {
	if len(steps) == 0 {
		return nil, fmt.Errorf("ticket engine: apply: %w: no steps", protocol.ErrInvalidInput)
	}
	now := e.now()
	entries := make([]protocol.LogEntry, len(steps))
	for i, s := range steps {
		if s.Status == "" || s.Entry.Action == "" {
			return nil, fmt.Errorf("ticket engine: apply: %w: step %d needs status and action", protocol.ErrInvalidInput, i)
		}
		entry := s.Entry
		entry.Status = s.Status
		entry.Timestamp = now
		entries[i] = entry
	}

	if err := e.store.Append(ctx, id, guard, entries...); err != nil {
		return nil, fmt.Errorf("ticket engine: transition %d: %w", id, err)
	}
	for _, s := range steps {
		metrics.TransitionsTotal.WithLabelValues(string(s.Status)).Inc()
		e.logger.Info("ticket transitioned", "ticket_id", id, "status", s.Status, "action", s.Entry.Action, "by", s.Entry.ActorID)
	}
	return e.Get(ctx, id)
}

// Get returns a ticket with its log.
func (e *Engine) Get(ctx context.Context, id int64) (*protocol.Ticket, error) {
	t, err := e.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ticket engine: get: %w", err)
	}
	return t, nil
}

// ListOpen returns every ticket that is not Closed.
func (e *Engine) ListOpen(ctx context.Context) ([]*protocol.Ticket, error) {
	return e.list(ctx, Filter{Statuses: protocol.OpenStatuses()})
}

// ListByReporter returns tickets created by a DA, optionally only those
// created at or after since.
func (e *Engine) ListByReporter(ctx context.Context, reporterID int64, since time.Time) ([]*protocol.Ticket, error) {
	return e.list(ctx, Filter{ReporterID: reporterID, CreatedSince: since})
}

// ListAwaitingClient returns tickets waiting on the given client.
// An empty client matches nothing.
func (e *Engine) ListAwaitingClient(ctx context.Context, client string) ([]*protocol.Ticket, error) {
	client = strings.TrimSpace(client)
	if client == "" {
		return nil, nil
	}
	return e.list(ctx, Filter{
		Statuses: []protocol.TicketStatus{protocol.StatusAwaitingClientResponse},
		Client:   client,
	})
}

// SearchByOrder returns tickets whose order id contains text.
func (e *Engine) SearchByOrder(ctx context.Context, text string) ([]*protocol.Ticket, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("ticket engine: search: %w: empty query", protocol.ErrInvalidInput)
	}
	return e.list(ctx, Filter{OrderQuery: text})
}

// List exposes arbitrary filtered queries for the admin surface.
func (e *Engine) List(ctx context.Context, f Filter) ([]*protocol.Ticket, error) {
	return e.list(ctx, f)
}

func (e *Engine) list(ctx context.Context, f Filter) ([]*protocol.Ticket, error) {
	tickets, err := e.store.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("ticket engine: list: %w", err)
	}
	return tickets, nil
}
