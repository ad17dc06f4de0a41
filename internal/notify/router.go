// Package notify delivers role-targeted ticket messages and client reminders.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/internal/metrics"
	"github.com/fieldops-io/fieldops/internal/render"
	"github.com/fieldops-io/fieldops/internal/scheduler"
	"github.com/fieldops-io/fieldops/internal/ticket"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// Reminder delays offered to clients.
const (
	ReminderShort = 10 * time.Minute
	ReminderLong  = 15 * time.Minute
)

// deliveryTimeout bounds each background delivery.
const deliveryTimeout = 30 * time.Second

// Subscriptions resolves recipients.
type Subscriptions interface {
	GetSubscription(ctx context.Context, userID int64, role protocol.Role) (*protocol.Subscription, error)
	ListSubscriptions(ctx context.Context, filter ticket.SubscriptionFilter) ([]protocol.Subscription, error)
}

// Transitioner commits ticket transitions. Transition must refuse
// tickets in protocol.TerminalStatuses.
type Transitioner interface {
	Transition(ctx context.Context, id int64, status protocol.TicketStatus, entry protocol.LogEntry) (*protocol.Ticket, error)
}

// Scheduler runs delayed work off the request path.
type Scheduler interface {
	After(delay time.Duration, name string, task scheduler.Task) scheduler.Handle
}

// Mirror receives a copy of supervisor alerts (e.g. a Slack channel).
type Mirror interface {
	Post(ctx context.Context, text string) error
}

// Report summarizes one fan-out. Err joins every per-recipient failure.
type Report struct {
	Role       protocol.Role
	TicketID   int64
	Recipients int
	Delivered  int
	Err        error
}

// Failed returns how many recipients did not get the message.
func (r Report) Failed() int { return r.Recipients - r.Delivered }

// Router delivers notifications. It holds no per-ticket state.
type Router struct {
	subs       Subscriptions
	tickets    Transitioner
	messengers map[protocol.Role]connector.Messenger
	sched      Scheduler
	mirror     Mirror
	logger     *slog.Logger
}

// New creates a router. messengers maps each role to the bot that reaches it.
func New(subs Subscriptions, tickets Transitioner, messengers map[protocol.Role]connector.Messenger, sched Scheduler, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		subs:       subs,
		tickets:    tickets,
		messengers: messengers,
		sched:      sched,
		logger:     logger.With("component", "notify"),
	}
}

// SetMirror enables copying supervisor alerts to m.
func (r *Router) SetMirror(m Mirror) {
	r.mirror = m
}

// NotifySupervisors announces a new ticket to every supervisor.
func (r *Router) NotifySupervisors(ctx context.Context, t *protocol.Ticket) Report {
	return r.toSupervisors(ctx, t, render.NewTicketAlert(t))
}

// NotifySupervisorsUpdate tells supervisors a DA acted on a ticket.
func (r *Router) NotifySupervisorsUpdate(ctx context.Context, t *protocol.Ticket) Report {
	return r.toSupervisors(ctx, t, render.StatusAlert(t))
}

// NotifySupervisorsClientResponse tells supervisors a client solved or ignored a ticket.
func (r *Router) NotifySupervisorsClientResponse(ctx context.Context, t *protocol.Ticket, ignored bool) Report {
	return r.toSupervisors(ctx, t, render.ClientResponseAlert(t, ignored))
}

func (r *Router) toSupervisors(ctx context.Context, t *protocol.Ticket, text string) Report {
	subs, err := r.subs.ListSubscriptions(ctx, ticket.SubscriptionFilter{Role: protocol.RoleSupervisor})
	if err != nil {
		return r.lookupFailed(protocol.RoleSupervisor, t.ID, err)
	}

	if r.mirror != nil {
		if err := r.mirror.Post(ctx, text); err != nil {
			r.logger.Warn("mirror post failed", "ticket_id", t.ID, "error", err)
		}
	}

	msg := connector.OutboundMessage{
		Text:     text,
		PhotoURL: t.ImageURL,
		Buttons:  [][]connector.Button{connector.Row("عرض التفاصيل", protocol.TicketCallback(protocol.CallbackView, t.ID))},
	}
	return r.fanOut(ctx, protocol.RoleSupervisor, t.ID, subs, msg)
}

// NotifyClient reaches every client subscription whose client matches the ticket.
func (r *Router) NotifyClient(ctx context.Context, t *protocol.Ticket) Report {
	if t.Client == "" {
		r.logger.Warn("ticket has no client, nobody to notify", "ticket_id", t.ID)
		return Report{Role: protocol.RoleClient, TicketID: t.ID}
	}
	subs, err := r.subs.ListSubscriptions(ctx, ticket.SubscriptionFilter{Role: protocol.RoleClient, Client: t.Client})
	if err != nil {
		return r.lookupFailed(protocol.RoleClient, t.ID, err)
	}
	msg := connector.OutboundMessage{
		Text:     render.ClientAlert(t),
		PhotoURL: t.ImageURL,
		Buttons:  [][]connector.Button{connector.Row("عرض التفاصيل", protocol.TicketCallback(protocol.CallbackClientView, t.ID))},
	}
	return r.fanOut(ctx, protocol.RoleClient, t.ID, subs, msg)
}

// NotifyDA reaches the DA who reported the ticket.
func (r *Router) NotifyDA(ctx context.Context, t *protocol.Ticket) Report {
	sub, err := r.subs.GetSubscription(ctx, t.ReporterID, protocol.RoleDA)
	if errors.Is(err, protocol.ErrNotFound) {
		r.logger.Warn("reporter has no DA subscription", "ticket_id", t.ID, "reporter", t.ReporterID)
		return Report{Role: protocol.RoleDA, TicketID: t.ID}
	}
	if err != nil {
		return r.lookupFailed(protocol.RoleDA, t.ID, err)
	}
	msg := connector.OutboundMessage{
		Text:     render.ReporterUpdate(t),
		PhotoURL: t.ImageURL,
		Buttons:  [][]connector.Button{connector.Row("عرض التفاصيل", protocol.TicketCallback(protocol.CallbackDAView, t.ID))},
	}
	return r.fanOut(ctx, protocol.RoleDA, t.ID, []protocol.Subscription{*sub}, msg)
}

// SendToClient moves a ticket to AwaitingClientResponse and notifies its
// client subscribers. A Closed ticket is left alone and the error wraps
// protocol.ErrAlreadyFinalized. The transition error is returned; delivery
// problems are only reported.
func (r *Router) SendToClient(ctx context.Context, ticketID, actorID int64) (*protocol.Ticket, Report, error) {
	t, err := r.tickets.Transition(ctx, ticketID, protocol.StatusAwaitingClientResponse, protocol.LogEntry{
		Action:  protocol.ActionSentToClient,
		ActorID: actorID,
	})
	if err != nil {
		return nil, Report{Role: protocol.RoleClient, TicketID: ticketID}, fmt.Errorf("notify: send to client: %w", err)
	}
	return t, r.NotifyClient(ctx, t), nil
}

// ScheduleReminder arms a one-shot reminder to a client chat. It returns
// immediately; a stale reminder for a ticket that moved on is still sent.
func (r *Router) ScheduleReminder(chatID, ticketID int64, delay time.Duration) scheduler.Handle {
	name := fmt.Sprintf("reminder:%d:%d", ticketID, chatID)
	metrics.RemindersTotal.WithLabelValues("scheduled").Inc()
	r.logger.Info("reminder scheduled", "ticket_id", ticketID, "chat_id", chatID, "delay", delay)

	return r.sched.After(delay, name, func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, deliveryTimeout)
		defer cancel()

		msg := connector.OutboundMessage{
			ChatID:  chatID,
			Text:    render.Reminder(ticketID),
			Buttons: [][]connector.Button{connector.Row("عرض التفاصيل", protocol.TicketCallback(protocol.CallbackClientView, ticketID))},
		}
		if err := r.send(ctx, protocol.RoleClient, msg); err != nil {
			metrics.RemindersTotal.WithLabelValues("failed").Inc()
			r.logger.Warn("reminder failed", "ticket_id", ticketID, "chat_id", chatID, "error", err)
			return
		}
		metrics.RemindersTotal.WithLabelValues("sent").Inc()
		r.logger.Info("reminder sent", "ticket_id", ticketID, "chat_id", chatID)
	})
}

// fanOut sends msg to every subscription. One failure never stops the rest.
func (r *Router) fanOut(ctx context.Context, role protocol.Role, ticketID int64, subs []protocol.Subscription, msg connector.OutboundMessage) Report {
	rep := Report{Role: role, TicketID: ticketID, Recipients: len(subs)}
	var errs []error
	for _, sub := range subs {
		m := msg
		m.ChatID = sub.ChatID
		if err := r.send(ctx, role, m); err != nil {
			errs = append(errs, fmt.Errorf("chat %d: %w", sub.ChatID, err))
			continue
		}
		rep.Delivered++
	}
	rep.Err = errors.Join(errs...)

	if rep.Err != nil {
		r.logger.Warn("notification partially failed",
			"role", role, "ticket_id", ticketID,
			"recipients", rep.Recipients, "delivered", rep.Delivered, "error", rep.Err)
	} else {
		r.logger.Info("notification delivered",
			"role", role, "ticket_id", ticketID, "recipients", rep.Recipients)
	}
	return rep
}

func (r *Router) send(ctx context.Context, role protocol.Role, msg connector.OutboundMessage) error {
	m, ok := r.messengers[role]
	if !ok {
		metrics.NotificationsTotal.WithLabelValues(string(role), "failed").Inc()
		return fmt.Errorf("notify: no messenger for role %s", role)
	}
	if _, err := m.Send(ctx, msg); err != nil {
		metrics.NotificationsTotal.WithLabelValues(string(role), "failed").Inc()
		return err
	}
	metrics.NotificationsTotal.WithLabelValues(string(role), "sent").Inc()
	return nil
}

func (r *Router) lookupFailed(role protocol.Role, ticketID int64, err error) Report {
	err = fmt.Errorf("notify: resolve %s recipients: %w", role, err)
	r.logger.Error("recipient lookup failed", "role", role, "ticket_id", ticketID, "error", err)
	return Report{Role: role, TicketID: ticketID, Err: err}
}

