package conversation

import (
	"context"
	"errors"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/internal/notify"
	"github.com/fieldops-io/fieldops/internal/orders"
	"github.com/fieldops-io/fieldops/internal/scheduler"
	"github.com/fieldops-io/fieldops/internal/ticket"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// Fixed actors.
const (
	daUser, daChat   = 100, 1100
	supUser, supChat = 200, 1200
	cliUser, cliChat = 300, 1300
)

// recordingMessenger captures everything a bot sends or edits.
type recordingMessenger struct {
	mu    sync.Mutex
	sent  []connector.OutboundMessage
	edits []connector.EditMessage
	texts []string // sends and edits in order
}

func (m *recordingMessenger) Send(_ context.Context, msg connector.OutboundMessage) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, msg)
	m.texts = append(m.texts, msg.Text)
	return len(m.sent), nil
}

func (m *recordingMessenger) Edit(_ context.Context, msg connector.EditMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, msg)
	m.texts = append(m.texts, msg.Text)
	return nil
}

// saw reports whether any message so far contains s.
func (m *recordingMessenger) saw(s string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.texts {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

func (m *recordingMessenger) last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.texts) == 0 {
		return ""
	}
	return m.texts[len(m.texts)-1]
}

func (m *recordingMessenger) sentTo(chatID int64) []connector.OutboundMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []connector.OutboundMessage
	for _, s := range m.sent {
		if s.ChatID == chatID {
			out = append(out, s)
		}
	}
	return out
}

func (m *recordingMessenger) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent, m.edits, m.texts = nil, nil, nil
}

// hasButton reports whether any sent keyboard carries data.
func (m *recordingMessenger) hasButton(data string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sent {
		for _, row := range s.Buttons {
			for _, b := range row {
				if b.Data == data {
					return true
				}
			}
		}
	}
	return false
}

type manualScheduler struct {
	mu     sync.Mutex
	delays []time.Duration
	tasks  []scheduler.Task
}

func (s *manualScheduler) After(delay time.Duration, name string, task scheduler.Task) scheduler.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delays = append(s.delays, delay)
	s.tasks = append(s.tasks, task)
	return scheduler.Handle{Name: name}
}

type fakeOrders struct {
	list   []orders.Order
	err    error
	phones []string
}

func (f *fakeOrders) Orders(_ context.Context, phone string) ([]orders.Order, error) {
	f.phones = append(f.phones, phone)
	return f.list, f.err
}

type fakeImages struct {
	url     string
	err     error
	sources []string
}

func (f *fakeImages) Store(_ context.Context, src string) (string, error) {
	f.sources = append(f.sources, src)
	return f.url, f.err
}

type fakeFiles struct{}

func (fakeFiles) FileURL(_ context.Context, fileID string) (string, error) {
	return "https://files.example.com/" + fileID, nil
}

type harness struct {
	t       *testing.T
	store   *ticket.SQLiteStore
	tickets *ticket.Engine
	sched   *manualScheduler
	orders  *fakeOrders
	images  *fakeImages

	daOut, supOut, cliOut *recordingMessenger

	da  *DAEngine
	sup *SupervisorEngine
	cli *ClientEngine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store, err := ticket.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	h := &harness{
		t:       t,
		store:   store,
		tickets: ticket.NewEngine(store, nil),
		sched:   &manualScheduler{},
		orders:  &fakeOrders{},
		images:  &fakeImages{url: "https://cdn.example.com/issues/a.jpg"},
		daOut:   &recordingMessenger{},
		supOut:  &recordingMessenger{},
		cliOut:  &recordingMessenger{},
	}
	router := notify.New(store, h.tickets, map[protocol.Role]connector.Messenger{
		protocol.RoleDA:         h.daOut,
		protocol.RoleSupervisor: h.supOut,
		protocol.RoleClient:     h.cliOut,
	}, h.sched, nil)

	deps := func(out connector.Messenger) Deps {
		return Deps{Tickets: h.tickets, Subscriptions: store, Notifier: router, Messenger: out}
	}
	h.da = NewDAEngine(deps(h.daOut), DAConfig{
		Orders:         h.orders,
		Images:         h.images,
		Files:          fakeFiles{},
		QueryTodayOnly: true,
	})
	h.sup = NewSupervisorEngine(deps(h.supOut))
	h.cli = NewClientEngine(deps(h.cliOut))
	return h
}

func (h *harness) subscribe(role protocol.Role, userID, chatID int64, client string) {
	h.t.Helper()
	err := h.store.SaveSubscription(context.Background(), protocol.Subscription{
		UserID: userID, Role: role, Phone: "0100000000", Client: client, ChatID: chatID,
	})
	if err != nil {
		h.t.Fatalf("subscribe: %v", err)
	}
}

// subscribeAll registers one actor per role, the client under Acme.
func (h *harness) subscribeAll() {
	h.subscribe(protocol.RoleDA, daUser, daChat, "")
	h.subscribe(protocol.RoleSupervisor, supUser, supChat, "")
	h.subscribe(protocol.RoleClient, cliUser, cliChat, "Acme")
}

func (h *harness) createTicket(client string) *protocol.Ticket {
	h.t.Helper()
	ctx := context.Background()
	id, err := h.tickets.Create(ctx, ticket.NewTicket{
		OrderID: "12345", Description: "carton damaged", IssueReason: "المخزن",
		IssueType: "تالف", Client: client, ReporterID: daUser,
	})
	if err != nil {
		h.t.Fatalf("create: %v", err)
	}
	return h.get(id)
}

func (h *harness) get(id int64) *protocol.Ticket {
	h.t.Helper()
	tk, err := h.tickets.Get(context.Background(), id)
	if err != nil {
		h.t.Fatalf("get %d: %v", id, err)
	}
	return tk
}

func (h *harness) transition(id int64, status protocol.TicketStatus, action, msg string) {
	h.t.Helper()
	_, err := h.tickets.Transition(context.Background(), id, status, protocol.LogEntry{Action: action, ActorID: supUser, Message: msg})
	if err != nil {
		h.t.Fatalf("transition: %v", err)
	}
}

func handle(t *testing.T, e Engine, ev connector.Event) {
	t.Helper()
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("handle %+v: %v", ev, err)
	}
}

func user(id int64) connector.User {
	return connector.User{ID: id, Username: "u" + itoa(id), FirstName: "Name"}
}

func startCmd(chat, uid int64) connector.Event {
	return connector.Event{Kind: connector.EventCommand, ChatID: chat, User: user(uid), Text: "start"}
}

func textEv(chat, uid int64, text string) connector.Event {
	return connector.Event{Kind: connector.EventText, ChatID: chat, User: user(uid), Text: text}
}

func press(chat, uid int64, data string) connector.Event {
	return connector.Event{Kind: connector.EventCallback, ChatID: chat, User: user(uid), Data: data}
}

func photoEv(chat, uid int64, fileID string) connector.Event {
	return connector.Event{Kind: connector.EventPhoto, ChatID: chat, User: user(uid), PhotoFileID: fileID}
}

func itoa(n int64) string { return strconv.FormatInt(n, 10) }

var errBoom = errors.New("boom")

func ticketBy(reporter int64) ticket.NewTicket {
	return ticket.NewTicket{
		OrderID: "999", Description: "other", IssueReason: "التسليم",
		IssueType: "وصول متاخر", Client: "Acme", ReporterID: reporter,
	}
}
