package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/internal/notify"
	"github.com/fieldops-io/fieldops/internal/render"
	"github.com/fieldops-io/fieldops/internal/ticket"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// ClientStep is a Client conversation step.
type ClientStep int

const (
	CliStart ClientStep = iota
	CliAwaitingPhone
	CliAwaitingClientName
	CliMainMenu
	CliListAwaiting
	CliAwaitingSolveText
)

var cliStepNames = [...]string{
	"start", "awaiting_phone", "awaiting_client_name", "main_menu",
	"list_awaiting", "awaiting_solve_text",
}

func (s ClientStep) String() string {
	if int(s) < len(cliStepNames) {
		return cliStepNames[s]
	}
	return fmt.Sprintf("client_step(%d)", int(s))
}

type cliState struct {
	step     ClientStep
	phone    string
	ticketID int64
}

// ClientEngine is the front end for the affected client's staff.
type ClientEngine struct {
	base
	states *stateTable[cliState]
}

var _ Engine = (*ClientEngine)(nil)

// NewClientEngine creates the Client engine.
func NewClientEngine(d Deps) *ClientEngine {
	return &ClientEngine{
		base:   newBase(protocol.RoleClient, d),
		states: newStateTable[cliState](),
	}
}

// Step reports the current step of a chat.
func (e *ClientEngine) Step(chatID int64) ClientStep { return e.states.get(chatID).step }

// Handle processes one event for the chat.
func (e *ClientEngine) Handle(ctx context.Context, ev connector.Event) error {
	st := e.states.get(ev.ChatID)
	e.log(ctx).Debug("client event", "step", st.step)

	switch ev.Kind {
	case connector.EventCommand:
		return e.start(ctx, ev)
	case connector.EventCallback:
		return e.callback(ctx, ev, st)
	default:
		return e.text(ctx, ev, st)
	}
}

func (e *ClientEngine) start(ctx context.Context, ev connector.Event) error {
	st := e.states.reset(ev.ChatID)
	sub, err := e.subscription(ctx, ev.User.ID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	switch {
	case sub == nil:
		st.step = CliAwaitingPhone
		return e.send(ctx, ev.ChatID, txtCliPhone)
	case sub.Client == "":
		st.step = CliAwaitingClientName
		st.phone = sub.Phone
		return e.send(ctx, ev.ChatID, txtCliNamePrompt)
	}
	if err := e.send(ctx, ev.ChatID, fmt.Sprintf(txtGreeting, displayName(ev))); err != nil {
		return err
	}
	return e.mainMenu(ctx, ev.ChatID, st)
}

func (e *ClientEngine) mainMenu(ctx context.Context, chatID int64, st *cliState) error {
	*st = cliState{step: CliMainMenu}
	return e.send(ctx, chatID, txtChooseOption, connector.Row(txtCliShowTickets, tok(CmdShowTickets)))
}

func (e *ClientEngine) text(ctx context.Context, ev connector.Event, st *cliState) error {
	text := strings.TrimSpace(ev.Text)
	switch st.step {
	case CliStart:
		return e.start(ctx, ev)

	case CliAwaitingPhone:
		phone, err := normalizePhone(text)
		if err != nil {
			return e.send(ctx, ev.ChatID, txtBadPhone)
		}
		if err := e.register(ctx, ev, phone, ""); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		st.phone = phone
		st.step = CliAwaitingClientName
		return e.send(ctx, ev.ChatID, txtCliPhoneOK)

	case CliAwaitingClientName:
		if text == "" {
			return e.send(ctx, ev.ChatID, txtCliNamePrompt)
		}
		if err := e.register(ctx, ev, st.phone, text); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		if err := e.send(ctx, ev.ChatID, txtCliSubscribed); err != nil {
			return err
		}
		return e.mainMenu(ctx, ev.ChatID, st)

	case CliAwaitingSolveText:
		if text == "" {
			return e.ask(ctx, ev.ChatID, txtCliSolvePrompt)
		}
		return e.solve(ctx, ev, st, text)

	default:
		return e.mainMenu(ctx, ev.ChatID, st)
	}
}

func (e *ClientEngine) callback(ctx context.Context, ev connector.Event, st *cliState) error {
	cmd, ok, err := e.decode(ctx, ev)
	if !ok {
		return err
	}

	switch cmd.Kind {
	case CmdShowTickets:
		return e.listAwaiting(ctx, ev, st)

	case CmdClientView:
		t, err := e.ownTicket(ctx, ev, cmd.TicketID)
		if err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		var rows [][]connector.Button
		if !protocol.IsClientFinal(t.Status) {
			rows = e.reminderRows(t.ID)
		}
		return e.showTicket(ctx, ev.ChatID, t, render.ClientDetails(t, false), rows...)

	case CmdNotifyPref:
		return e.notifyPref(ctx, ev, cmd)

	case CmdSolve:
		t, err := e.ownTicket(ctx, ev, cmd.TicketID)
		if err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		if protocol.IsClientFinal(t.Status) {
			return e.send(ctx, ev.ChatID, txtFinalized)
		}
		*st = cliState{step: CliAwaitingSolveText, ticketID: t.ID}
		return e.ask(ctx, ev.ChatID, txtCliSolvePrompt)

	case CmdIgnore:
		return e.ignore(ctx, ev, st, cmd.TicketID)

	default:
		return e.unknownAction(ctx, ev)
	}
}

// clientName returns the sender's registered client, empty when none.
func (e *ClientEngine) clientName(ctx context.Context, userID int64) (string, error) {
	sub, err := e.subscription(ctx, userID)
	if err != nil || sub == nil {
		return "", err
	}
	return sub.Client, nil
}

// ownTicket loads a ticket of the sender's client. Other clients' tickets
// look missing.
func (e *ClientEngine) ownTicket(ctx context.Context, ev connector.Event, id int64) (*protocol.Ticket, error) {
	client, err := e.clientName(ctx, ev.User.ID)
	if err != nil {
		return nil, err
	}
	t, err := e.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if client == "" || t.Client != client {
		return nil, fmt.Errorf("conversation: ticket %d of another client: %w", id, protocol.ErrNotFound)
	}
	return t, nil
}

func (e *ClientEngine) listAwaiting(ctx context.Context, ev connector.Event, st *cliState) error {
	client, err := e.clientName(ctx, ev.User.ID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	list, err := e.tickets.ListAwaitingClient(ctx, client)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	st.step = CliListAwaiting
	if len(list) == 0 {
		return e.respond(ctx, ev, txtCliNoTickets)
	}
	for _, t := range list {
		if err := e.showTicket(ctx, ev.ChatID, t, render.ClientDetails(t, false), e.reminderRows(t.ID)...); err != nil {
			return err
		}
	}
	return nil
}

func (e *ClientEngine) reminderRows(id int64) [][]connector.Button {
	pref := func(p string) string { return Command{Kind: CmdNotifyPref, TicketID: id, Arg: p}.Token() }
	return [][]connector.Button{
		{
			{Text: txtCliNow, Data: pref(PrefNow)},
			{Text: txtCliIn15, Data: pref(PrefLong)},
			{Text: txtCliIn10, Data: pref(PrefShort)},
		},
		{
			{Text: txtCliSolve, Data: ticketTok(CmdSolve, id)},
			{Text: txtCliIgnore, Data: ticketTok(CmdIgnore, id)},
		},
	}
}

// notifyPref answers a reminder choice. "now" shows the full ticket; a
// deferral arms a reminder and keeps the summary with every choice.
func (e *ClientEngine) notifyPref(ctx context.Context, ev connector.Event, cmd Command) error {
	t, err := e.ownTicket(ctx, ev, cmd.TicketID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if protocol.IsClientFinal(t.Status) {
		return e.send(ctx, ev.ChatID, txtFinalized)
	}

	if cmd.Arg == PrefNow {
		actions := [][]connector.Button{{
			{Text: txtCliSolve, Data: ticketTok(CmdSolve, t.ID)},
			{Text: txtCliIgnore, Data: ticketTok(CmdIgnore, t.ID)},
		}}
		return e.showTicket(ctx, ev.ChatID, t, render.ClientDetails(t, true), actions...)
	}

	delay := notify.ReminderLong
	if cmd.Arg == PrefShort {
		delay = notify.ReminderShort
	}
	e.notify.ScheduleReminder(ev.ChatID, t.ID, delay)
	if err := e.showTicket(ctx, ev.ChatID, t, render.ClientDetails(t, false), e.reminderRows(t.ID)...); err != nil {
		return err
	}
	return e.send(ctx, ev.ChatID, fmt.Sprintf(txtCliReminderSet, int(delay.Minutes())))
}

func (e *ClientEngine) solve(ctx context.Context, ev connector.Event, st *cliState, text string) error {
	id := st.ticketID
	t, err := e.ownTicket(ctx, ev, id)
	if err == nil {
		t, err = e.tickets.ClientTransition(ctx, id, ticket.Step{
			Status: protocol.StatusClientResponded,
			Entry:  protocol.LogEntry{Action: protocol.ActionClientSolution, ActorID: ev.User.ID, Message: text},
		})
	}
	if err != nil {
		if sendErr := e.fail(ctx, ev.ChatID, err); sendErr != nil {
			return sendErr
		}
		return e.mainMenu(ctx, ev.ChatID, st)
	}
	e.notify.NotifySupervisorsClientResponse(ctx, t, false)
	if err := e.send(ctx, ev.ChatID, txtCliSolved); err != nil {
		return err
	}
	return e.mainMenu(ctx, ev.ChatID, st)
}

func (e *ClientEngine) ignore(ctx context.Context, ev connector.Event, st *cliState, id int64) error {
	if _, err := e.ownTicket(ctx, ev, id); err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	t, err := e.tickets.ClientTransition(ctx, id,
		ticket.Step{
			Status: protocol.StatusClientIgnored,
			Entry:  protocol.LogEntry{Action: protocol.ActionClientIgnored, ActorID: ev.User.ID},
		},
		ticket.Step{
			Status: protocol.StatusClientResponded,
			Entry:  protocol.LogEntry{Action: protocol.ActionClientFinalResponse, ActorID: ev.User.ID, Message: txtCliIgnoredValue},
		},
	)
	if errors.Is(err, protocol.ErrAlreadyFinalized) {
		return e.respond(ctx, ev, txtFinalized)
	}
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	st.step = CliMainMenu
	e.notify.NotifySupervisorsClientResponse(ctx, t, true)
	return e.respond(ctx, ev, txtCliIgnored)
}
