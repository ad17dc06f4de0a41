package conversation

import (
	"context"
	"fmt"
	"strings"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/internal/render"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// SupervisorStep is a Supervisor conversation step.
type SupervisorStep int

const (
	SupStart SupervisorStep = iota
	SupAwaitingPhone
	SupMainMenu
	SupShowAll
	SupSearchTickets
	SupTicketDetail
	SupAwaitingResponse
	SupConfirmSendClient
	SupConfirmForwardToDA
)

var supStepNames = [...]string{
	"start", "awaiting_phone", "main_menu", "show_all", "search_tickets",
	"ticket_detail", "awaiting_response", "confirm_send_client", "confirm_forward_to_da",
}

func (s SupervisorStep) String() string {
	if int(s) < len(supStepNames) {
		return supStepNames[s]
	}
	return fmt.Sprintf("supervisor_step(%d)", int(s))
}

type supState struct {
	step     SupervisorStep
	ticketID int64
	pending  CommandKind // CmdSolve or CmdMoreInfo while awaiting a response
}

// SupervisorEngine is the triage front end.
type SupervisorEngine struct {
	base
	states *stateTable[supState]
}

var _ Engine = (*SupervisorEngine)(nil)

// NewSupervisorEngine creates the Supervisor engine.
func NewSupervisorEngine(d Deps) *SupervisorEngine {
	return &SupervisorEngine{
		base:   newBase(protocol.RoleSupervisor, d),
		states: newStateTable[supState](),
	}
}

// Step reports the current step of a chat.
func (e *SupervisorEngine) Step(chatID int64) SupervisorStep { return e.states.get(chatID).step }

// Handle processes one event for the chat.
func (e *SupervisorEngine) Handle(ctx context.Context, ev connector.Event) error {
	st := e.states.get(ev.ChatID)
	e.log(ctx).Debug("supervisor event", "step", st.step)

	switch ev.Kind {
	case connector.EventCommand:
		return e.start(ctx, ev)
	case connector.EventCallback:
		return e.callback(ctx, ev, st)
	default:
		return e.text(ctx, ev, st)
	}
}

func (e *SupervisorEngine) start(ctx context.Context, ev connector.Event) error {
	st := e.states.reset(ev.ChatID)
	sub, err := e.subscription(ctx, ev.User.ID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if sub == nil {
		st.step = SupAwaitingPhone
		return e.send(ctx, ev.ChatID, txtSupPhone)
	}
	if err := e.send(ctx, ev.ChatID, fmt.Sprintf(txtGreeting, displayName(ev))); err != nil {
		return err
	}
	return e.mainMenu(ctx, ev.ChatID, st)
}

func (e *SupervisorEngine) mainMenu(ctx context.Context, chatID int64, st *supState) error {
	*st = supState{step: SupMainMenu}
	return e.send(ctx, chatID, txtChooseOption,
		connector.Row(txtSupShowAll, tok(CmdShowAll)),
		connector.Row(txtSupSearch, tok(CmdQueryIssues)),
	)
}

func (e *SupervisorEngine) text(ctx context.Context, ev connector.Event, st *supState) error {
	text := strings.TrimSpace(ev.Text)
	switch st.step {
	case SupStart:
		return e.start(ctx, ev)

	case SupAwaitingPhone:
		phone, err := normalizePhone(text)
		if err != nil {
			return e.send(ctx, ev.ChatID, txtBadPhone)
		}
		if err := e.register(ctx, ev, phone, ""); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		if err := e.send(ctx, ev.ChatID, txtSupSubscribed); err != nil {
			return err
		}
		return e.mainMenu(ctx, ev.ChatID, st)

	case SupSearchTickets:
		if text == "" {
			return e.send(ctx, ev.ChatID, txtSupOrderPrompt)
		}
		list, err := e.tickets.SearchByOrder(ctx, text)
		if err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		if err := e.list(ctx, ev.ChatID, list, txtSupNoMatch); err != nil {
			return err
		}
		return e.mainMenu(ctx, ev.ChatID, st)

	case SupAwaitingResponse:
		if text == "" {
			return e.ask(ctx, ev.ChatID, e.responsePrompt(st.pending))
		}
		return e.respondToDA(ctx, ev, st, text)

	default:
		return e.mainMenu(ctx, ev.ChatID, st)
	}
}

func (e *SupervisorEngine) callback(ctx context.Context, ev connector.Event, st *supState) error {
	cmd, ok, err := e.decode(ctx, ev)
	if !ok {
		return err
	}

	switch cmd.Kind {
	case CmdShowAll:
		list, err := e.tickets.ListOpen(ctx)
		if err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		st.step = SupShowAll
		return e.list(ctx, ev.ChatID, list, txtSupNoOpen)

	case CmdQueryIssues:
		st.step = SupSearchTickets
		return e.respond(ctx, ev, txtSupOrderPrompt)

	case CmdView:
		return e.view(ctx, ev, st, cmd.TicketID)

	case CmdSolve, CmdMoreInfo:
		if _, err := e.actionable(ctx, cmd.TicketID); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		*st = supState{step: SupAwaitingResponse, ticketID: cmd.TicketID, pending: cmd.Kind}
		return e.ask(ctx, ev.ChatID, e.responsePrompt(cmd.Kind))

	case CmdSendClient:
		if _, err := e.actionable(ctx, cmd.TicketID); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		*st = supState{step: SupConfirmSendClient, ticketID: cmd.TicketID}
		return e.respond(ctx, ev, txtSupConfirmClient, e.confirmRow(CmdConfirmSendClient, CmdCancelSendClient, cmd.TicketID))

	case CmdConfirmSendClient:
		if st.step != SupConfirmSendClient || st.ticketID != cmd.TicketID {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		return e.sendToClient(ctx, ev, st)

	case CmdCancelSendClient:
		st.step = SupMainMenu
		return e.respond(ctx, ev, txtSupCancelClient)

	case CmdForwardToDA:
		t, err := e.tickets.Get(ctx, cmd.TicketID)
		if err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		if t.Status != protocol.StatusClientResponded {
			return e.send(ctx, ev.ChatID, txtWrongStatus)
		}
		*st = supState{step: SupConfirmForwardToDA, ticketID: cmd.TicketID}
		return e.respond(ctx, ev, txtSupConfirmForward, e.confirmRow(CmdConfirmForwardToDA, CmdCancelForwardToDA, cmd.TicketID))

	case CmdConfirmForwardToDA:
		if st.step != SupConfirmForwardToDA || st.ticketID != cmd.TicketID {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		return e.forwardToDA(ctx, ev, st)

	case CmdCancelForwardToDA:
		st.step = SupMainMenu
		return e.respond(ctx, ev, txtSupCancelForward)

	case CmdClose:
		return e.closeTicket(ctx, ev, st, cmd.TicketID)

	default:
		return e.unknownAction(ctx, ev)
	}
}

// list sends every ticket as its own message with a view button.
func (e *SupervisorEngine) list(ctx context.Context, chatID int64, list []*protocol.Ticket, empty string) error {
	if len(list) == 0 {
		return e.send(ctx, chatID, empty)
	}
	for _, t := range list {
		if err := e.showTicket(ctx, chatID, t, render.Card(t),
			connector.Row(txtDetailsButton, ticketTok(CmdView, t.ID))); err != nil {
			return err
		}
	}
	return nil
}

func (e *SupervisorEngine) view(ctx context.Context, ev connector.Event, st *supState, id int64) error {
	t, err := e.tickets.Get(ctx, id)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	*st = supState{step: SupTicketDetail, ticketID: id}
	return e.respond(ctx, ev, render.Detail(t), e.actions(t)...)
}

// actionable loads a ticket a supervisor may still act on.
func (e *SupervisorEngine) actionable(ctx context.Context, id int64) (*protocol.Ticket, error) {
	t, err := e.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if protocol.IsTerminal(t.Status) {
		return nil, fmt.Errorf("conversation: ticket %d is %q: %w", id, t.Status, protocol.ErrAlreadyFinalized)
	}
	return t, nil
}

// actions are the buttons a ticket view offers for its status. A Closed
// ticket is read-only.
func (e *SupervisorEngine) actions(t *protocol.Ticket) [][]connector.Button {
	if protocol.IsTerminal(t.Status) {
		return nil
	}
	var rows [][]connector.Button
	if t.Status == protocol.StatusClientResponded {
		rows = append(rows, connector.Row(txtSupForward, ticketTok(CmdForwardToDA, t.ID)))
	}
	rows = append(rows,
		connector.Row(txtSupSolve, ticketTok(CmdSolve, t.ID)),
		connector.Row(txtSupMoreInfo, ticketTok(CmdMoreInfo, t.ID)),
		connector.Row(txtSupSendClient, ticketTok(CmdSendClient, t.ID)),
	)
	if t.Status == protocol.StatusAwaitingSupervisorApproval {
		rows = append(rows, connector.Row(txtSupClose, ticketTok(CmdClose, t.ID)))
	}
	return rows
}

func (e *SupervisorEngine) confirmRow(yes, no CommandKind, id int64) []connector.Button {
	return []connector.Button{
		{Text: txtYes, Data: ticketTok(yes, id)},
		{Text: txtNo, Data: ticketTok(no, id)},
	}
}

func (e *SupervisorEngine) responsePrompt(kind CommandKind) string {
	if kind == CmdMoreInfo {
		return txtSupInfoPrompt
	}
	return txtSupSolvePrompt
}

func (e *SupervisorEngine) respondToDA(ctx context.Context, ev connector.Event, st *supState, text string) error {
	status, action, done := protocol.StatusPendingDAAction, protocol.ActionSupervisorSolution, txtSupSolutionSent
	if st.pending == CmdMoreInfo {
		status, action, done = protocol.StatusPendingDAResponse, protocol.ActionRequestMoreInfo, txtSupRequestSent
	}
	t, err := e.tickets.Transition(ctx, st.ticketID, status, protocol.LogEntry{
		Action:  action,
		ActorID: ev.User.ID,
		Message: text,
	})
	if err != nil {
		st.step = SupMainMenu
		return e.fail(ctx, ev.ChatID, err)
	}
	e.notify.NotifyDA(ctx, t)
	if err := e.send(ctx, ev.ChatID, done); err != nil {
		return err
	}
	return e.mainMenu(ctx, ev.ChatID, st)
}

func (e *SupervisorEngine) sendToClient(ctx context.Context, ev connector.Event, st *supState) error {
	t, rep, err := e.notify.SendToClient(ctx, st.ticketID, ev.User.ID)
	st.step = SupMainMenu
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if rep.Recipients == 0 {
		return e.respond(ctx, ev, fmt.Sprintf(txtSupNoClientSub, t.Client))
	}
	return e.respond(ctx, ev, txtSupSentClient)
}

func (e *SupervisorEngine) forwardToDA(ctx context.Context, ev connector.Event, st *supState) error {
	id := st.ticketID
	st.step = SupMainMenu
	t, err := e.tickets.Get(ctx, id)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	solution := txtSupNoSolution
	if entry, ok := t.LastEntry(protocol.ActionClientSolution); ok && entry.Message != "" {
		solution = entry.Message
	}
	t, err = e.tickets.Transition(ctx, id, protocol.StatusPendingDAAction, protocol.LogEntry{
		Action:  protocol.ActionSupervisorForward,
		ActorID: ev.User.ID,
		Message: solution,
	})
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	e.notify.NotifyDA(ctx, t)
	return e.respond(ctx, ev, txtSupForwarded)
}

func (e *SupervisorEngine) closeTicket(ctx context.Context, ev connector.Event, st *supState, id int64) error {
	t, err := e.tickets.Get(ctx, id)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if t.Status != protocol.StatusAwaitingSupervisorApproval {
		return e.send(ctx, ev.ChatID, txtWrongStatus)
	}
	t, err = e.tickets.Transition(ctx, id, protocol.StatusClosed, protocol.LogEntry{
		Action:  protocol.ActionSupervisorClosed,
		ActorID: ev.User.ID,
	})
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	st.step = SupMainMenu
	e.notify.NotifyDA(ctx, t)
	return e.respond(ctx, ev, txtSupClosed)
}
