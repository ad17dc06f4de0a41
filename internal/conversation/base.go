package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/internal/notify"
	"github.com/fieldops-io/fieldops/internal/scheduler"
	"github.com/fieldops-io/fieldops/internal/ticket"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// Tickets is the lifecycle engine surface the conversations use.
type Tickets interface {
	Create(ctx context.Context, n ticket.NewTicket) (int64, error)
	Get(ctx context.Context, id int64) (*protocol.Ticket, error)
	Transition(ctx context.Context, id int64, status protocol.TicketStatus, entry protocol.LogEntry) (*protocol.Ticket, error)
	ClientTransition(ctx context.Context, id int64, steps ...ticket.Step) (*protocol.Ticket, error)
	ListOpen(ctx context.Context) ([]*protocol.Ticket, error)
	ListByReporter(ctx context.Context, reporterID int64, since time.Time) ([]*protocol.Ticket, error)
	ListAwaitingClient(ctx context.Context, client string) ([]*protocol.Ticket, error)
	SearchByOrder(ctx context.Context, text string) ([]*protocol.Ticket, error)
}

// Subscriptions stores role registrations.
type Subscriptions interface {
	SaveSubscription(ctx context.Context, s protocol.Subscription) error
	GetSubscription(ctx context.Context, userID int64, role protocol.Role) (*protocol.Subscription, error)
}

// Notifier is the notification router surface the conversations use.
type Notifier interface {
	NotifySupervisors(ctx context.Context, t *protocol.Ticket) notify.Report
	NotifySupervisorsUpdate(ctx context.Context, t *protocol.Ticket) notify.Report
	NotifySupervisorsClientResponse(ctx context.Context, t *protocol.Ticket, ignored bool) notify.Report
	NotifyDA(ctx context.Context, t *protocol.Ticket) notify.Report
	SendToClient(ctx context.Context, ticketID, actorID int64) (*protocol.Ticket, notify.Report, error)
	ScheduleReminder(chatID, ticketID int64, delay time.Duration) scheduler.Handle
}

var _ Notifier = (*notify.Router)(nil)

// Deps are the collaborators shared by every role engine.
type Deps struct {
	Tickets       Tickets
	Subscriptions Subscriptions
	Notifier      Notifier
	Messenger     connector.Messenger // the role's own bot
	Logger        *slog.Logger
}

// stateTable holds per-chat conversation state for one role.
type stateTable[S any] struct {
	mu sync.Mutex
	m  map[int64]*S
}

func newStateTable[S any]() *stateTable[S] {
	return &stateTable[S]{m: make(map[int64]*S)}
}

// get returns the chat's state, creating it on first contact.
func (t *stateTable[S]) get(chatID int64) *S {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.m[chatID]
	if !ok {
		s = new(S)
		t.m[chatID] = s
	}
	return s
}

func (t *stateTable[S]) reset(chatID int64) *S {
	t.mu.Lock()
	defer t.mu.Unlock()
	s := new(S)
	t.m[chatID] = s
	return s
}

func (t *stateTable[S]) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}

// base carries the helpers every role engine shares.
type base struct {
	role    protocol.Role
	tickets Tickets
	subs    Subscriptions
	notify  Notifier
	out     connector.Messenger
	logger  *slog.Logger
}

func newBase(role protocol.Role, d Deps) base {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return base{
		role:    role,
		tickets: d.Tickets,
		subs:    d.Subscriptions,
		notify:  d.Notifier,
		out:     d.Messenger,
		logger:  logger.With("component", "conversation", "role", role),
	}
}

// Role returns the engine's role.
func (b *base) Role() protocol.Role { return b.role }

func (b *base) log(ctx context.Context) *slog.Logger {
	return loggerFrom(ctx, b.logger)
}

func (b *base) send(ctx context.Context, chatID int64, text string, buttons ...[]connector.Button) error {
	_, err := b.out.Send(ctx, connector.OutboundMessage{ChatID: chatID, Text: text, Buttons: buttons})
	return err
}

// ask sends a prompt that forces a reply.
func (b *base) ask(ctx context.Context, chatID int64, text string) error {
	_, err := b.out.Send(ctx, connector.OutboundMessage{ChatID: chatID, Text: text, ForceReply: true})
	return err
}

// respond edits the message a callback came from, or sends a new one.
func (b *base) respond(ctx context.Context, ev connector.Event, text string, buttons ...[]connector.Button) error {
	if ev.Kind == connector.EventCallback && ev.MessageID != 0 {
		err := b.out.Edit(ctx, connector.EditMessage{
			ChatID:    ev.ChatID,
			MessageID: ev.MessageID,
			HasPhoto:  ev.MessageHasPhoto,
			Text:      text,
			Buttons:   buttons,
		})
		if err == nil {
			return nil
		}
		b.log(ctx).Debug("edit failed, sending instead", "error", err)
	}
	return b.send(ctx, ev.ChatID, text, buttons...)
}

// showTicket sends a ticket view, with its photo when one is attached.
func (b *base) showTicket(ctx context.Context, chatID int64, t *protocol.Ticket, text string, buttons ...[]connector.Button) error {
	_, err := b.out.Send(ctx, connector.OutboundMessage{
		ChatID:   chatID,
		Text:     text,
		PhotoURL: t.ImageURL,
		Buttons:  buttons,
	})
	return err
}

func (b *base) unknownAction(ctx context.Context, ev connector.Event) error {
	b.log(ctx).Warn("unknown action", "data", ev.Data, "text", ev.Text)
	return b.send(ctx, ev.ChatID, txtUnknownAction)
}

// fail reports err to the chat. Taxonomy errors become corrective prompts
// and count as handled; anything else is returned for logging.
func (b *base) fail(ctx context.Context, chatID int64, err error) error {
	var text string
	switch {
	case errors.Is(err, protocol.ErrNotFound):
		text = txtNotFound
	case errors.Is(err, protocol.ErrAlreadyFinalized):
		text = txtFinalized
	case errors.Is(err, protocol.ErrInvalidInput):
		text = txtInvalidInput
	default:
		if sendErr := b.send(ctx, chatID, txtError); sendErr != nil {
			return errors.Join(err, sendErr)
		}
		return err
	}
	b.log(ctx).Info("request rejected", "error", err)
	return b.send(ctx, chatID, text)
}

// subscription returns the sender's registration for this role, or nil.
func (b *base) subscription(ctx context.Context, userID int64) (*protocol.Subscription, error) {
	sub, err := b.subs.GetSubscription(ctx, userID, b.role)
	if errors.Is(err, protocol.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// register writes the sender's subscription for this role.
func (b *base) register(ctx context.Context, ev connector.Event, phone, client string) error {
	sub := protocol.Subscription{
		UserID:    ev.User.ID,
		Role:      b.role,
		Phone:     phone,
		Client:    client,
		Username:  ev.User.Username,
		FirstName: ev.User.FirstName,
		LastName:  ev.User.LastName,
		ChatID:    ev.ChatID,
	}
	if err := b.subs.SaveSubscription(ctx, sub); err != nil {
		return fmt.Errorf("conversation: register: %w", err)
	}
	b.log(ctx).Info("subscription saved", "user_id", ev.User.ID, "client", client)
	return nil
}

// normalizePhone accepts 6 to 15 digits with an optional leading "+".
// Spaces and dashes are ignored.
func normalizePhone(s string) (string, error) {
	s = strings.NewReplacer(" ", "", "-", "").Replace(strings.TrimSpace(s))
	digits := strings.TrimPrefix(s, "+")
	if len(digits) < 6 || len(digits) > 15 {
		return "", fmt.Errorf("%w: phone must have 6 to 15 digits", protocol.ErrInvalidInput)
	}
	for _, r := range digits {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("%w: phone must be numeric", protocol.ErrInvalidInput)
		}
	}
	return s, nil
}

// decode parses the callback token of ev, answering unknown ones.
func (b *base) decode(ctx context.Context, ev connector.Event) (Command, bool, error) {
	cmd, err := ParseCommand(ev.Data)
	if err != nil {
		return Command{}, false, b.unknownAction(ctx, ev)
	}
	return cmd, true, nil
}

func displayName(ev connector.Event) string {
	if ev.User.FirstName != "" {
		return ev.User.FirstName
	}
	return ev.User.Username
}
