package conversation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/internal/imagehost"
	"github.com/fieldops-io/fieldops/internal/orders"
	"github.com/fieldops-io/fieldops/internal/render"
	"github.com/fieldops-io/fieldops/internal/ticket"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// maxOrderButtons caps the order keyboard.
const maxOrderButtons = 30

// DAStep is a DA conversation step.
type DAStep int

const (
	DAStart DAStep = iota
	DAAwaitingPhone
	DAMainMenu
	DAAwaitingOrderSelection
	DAAwaitingManualOrder
	DAAwaitingDescription
	DAAwaitingReason
	DAAwaitingType
	DAAwaitingAttachDecision
	DAAwaitingImage
	DASummaryPrompt
	DAEditMenu
	DAAwaitingEditValue
	DAAwaitingInfoText
)

var daStepNames = [...]string{
	"start", "awaiting_phone", "main_menu", "awaiting_order_selection",
	"awaiting_manual_order", "awaiting_description", "awaiting_reason",
	"awaiting_type", "awaiting_attach_decision", "awaiting_image",
	"summary_prompt", "edit_menu", "awaiting_edit_value", "awaiting_info_text",
}

func (s DAStep) String() string {
	if int(s) < len(daStepNames) {
		return daStepNames[s]
	}
	return fmt.Sprintf("da_step(%d)", int(s))
}

// Editable draft fields.
const (
	fieldDescription = "description"
	fieldReason      = "issue_reason"
	fieldType        = "issue_type"
	fieldClient      = "client"
	fieldImage       = "image"
)

var fieldLabels = map[string]string{
	fieldDescription: "الوصف",
	fieldReason:      "سبب المشكلة",
	fieldType:        "نوع المشكلة",
	fieldClient:      "العميل",
	fieldImage:       "الصورة",
}

type daState struct {
	step       DAStep
	orders     []orders.Order
	draft      render.Draft
	reasonCode string
	editing    bool // back to the summary after each change
	editField  string
	activeID   int64
}

// FileResolver turns a transport file reference into a download URL.
type FileResolver interface {
	FileURL(ctx context.Context, fileID string) (string, error)
}

// DAConfig configures the DA engine.
type DAConfig struct {
	Orders         orders.Source
	Images         imagehost.Host // nil disables photo attachments
	Files          FileResolver
	QueryTodayOnly bool
	OrderTimeout   time.Duration
	Location       *time.Location // calendar day for "today"; defaults to UTC
}

// DAEngine is the delivery agent front end: registration, ticket
// composition, own-ticket queries, and follow-ups on supervisor requests.
type DAEngine struct {
	base
	cfg    DAConfig
	states *stateTable[daState]
	now    func() time.Time
}

var _ Engine = (*DAEngine)(nil)

// NewDAEngine creates the DA engine.
func NewDAEngine(d Deps, cfg DAConfig) *DAEngine {
	if cfg.OrderTimeout <= 0 {
		cfg.OrderTimeout = 15 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	return &DAEngine{
		base:   newBase(protocol.RoleDA, d),
		cfg:    cfg,
		states: newStateTable[daState](),
		now:    time.Now,
	}
}

// Step reports the current step of a chat.
func (e *DAEngine) Step(chatID int64) DAStep { return e.states.get(chatID).step }

// Handle processes one event for the chat.
func (e *DAEngine) Handle(ctx context.Context, ev connector.Event) error {
	st := e.states.get(ev.ChatID)
	e.log(ctx).Debug("da event", "step", st.step)

	switch ev.Kind {
	case connector.EventCommand:
		return e.start(ctx, ev)
	case connector.EventCallback:
		return e.callback(ctx, ev, st)
	case connector.EventPhoto:
		if st.step == DAAwaitingImage {
			return e.photo(ctx, ev, st)
		}
		return e.text(ctx, ev, st)
	default:
		return e.text(ctx, ev, st)
	}
}

func (e *DAEngine) start(ctx context.Context, ev connector.Event) error {
	st := e.states.reset(ev.ChatID)
	sub, err := e.subscription(ctx, ev.User.ID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if sub == nil {
		st.step = DAAwaitingPhone
		return e.send(ctx, ev.ChatID, txtDAPhone)
	}
	if err := e.send(ctx, ev.ChatID, fmt.Sprintf(txtGreeting, displayName(ev))); err != nil {
		return err
	}
	return e.mainMenu(ctx, ev.ChatID, st)
}

func (e *DAEngine) mainMenu(ctx context.Context, chatID int64, st *daState) error {
	st.step = DAMainMenu
	return e.send(ctx, chatID, txtChooseOption,
		connector.Row(txtDAAddIssue, tok(CmdAddIssue)),
		connector.Row(txtDAQueryIssue, tok(CmdQueryIssues)),
	)
}

func (e *DAEngine) text(ctx context.Context, ev connector.Event, st *daState) error {
	text := strings.TrimSpace(ev.Text)
	switch st.step {
	case DAStart:
		return e.start(ctx, ev)

	case DAAwaitingPhone:
		phone, err := normalizePhone(text)
		if err != nil {
			return e.send(ctx, ev.ChatID, txtBadPhone)
		}
		if err := e.register(ctx, ev, phone, ""); err != nil {
			return e.fail(ctx, ev.ChatID, err)
		}
		if err := e.send(ctx, ev.ChatID, txtDASubscribed); err != nil {
			return err
		}
		return e.mainMenu(ctx, ev.ChatID, st)

	case DAAwaitingManualOrder:
		o, err := orders.ParseManual(text)
		if err != nil {
			return e.send(ctx, ev.ChatID, txtDABadManual)
		}
		return e.orderChosen(ctx, ev, st, o)

	case DAAwaitingDescription:
		if text == "" {
			return e.send(ctx, ev.ChatID, txtEmptyText)
		}
		st.draft.Description = text
		if st.editing {
			return e.summary(ctx, ev.ChatID, st)
		}
		return e.askReason(ctx, ev, st)

	case DAAwaitingEditValue:
		if text == "" {
			return e.send(ctx, ev.ChatID, txtEmptyText)
		}
		switch st.editField {
		case fieldDescription:
			st.draft.Description = text
		case fieldClient:
			st.draft.Client = text
		}
		if err := e.send(ctx, ev.ChatID, fmt.Sprintf(txtDAUpdated, fieldLabels[st.editField])); err != nil {
			return err
		}
		st.editField = ""
		return e.summary(ctx, ev.ChatID, st)

	case DAAwaitingImage:
		return e.send(ctx, ev.ChatID, txtDANotAnImage)

	case DAAwaitingInfoText:
		if text == "" {
			return e.ask(ctx, ev.ChatID, txtDAInfoPrompt)
		}
		return e.provideInfo(ctx, ev, st, text)

	default:
		return e.mainMenu(ctx, ev.ChatID, st)
	}
}

func (e *DAEngine) callback(ctx context.Context, ev connector.Event, st *daState) error {
	cmd, ok, err := e.decode(ctx, ev)
	if !ok {
		return err
	}

	switch cmd.Kind {
	case CmdAddIssue:
		return e.addIssue(ctx, ev)
	case CmdQueryIssues:
		return e.query(ctx, ev, st)

	case CmdSelectOrder:
		if st.step != DAAwaitingOrderSelection || cmd.Index >= len(st.orders) {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		return e.orderChosen(ctx, ev, st, st.orders[cmd.Index])

	case CmdManualOrder:
		if st.step != DAAwaitingOrderSelection {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		st.step = DAAwaitingManualOrder
		return e.respond(ctx, ev, txtDAManualPrompt)

	case CmdSetReason:
		if st.step != DAAwaitingReason {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		reason, found := ReasonByCode(cmd.Arg)
		if !found {
			return e.send(ctx, ev.ChatID, txtDABadReason)
		}
		if st.reasonCode != reason.Code {
			st.draft.IssueType = ""
		}
		st.reasonCode = reason.Code
		st.draft.IssueReason = reason.Label
		return e.askType(ctx, ev, st, reason)

	case CmdSetType:
		if st.step != DAAwaitingType {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		reason, found := ReasonByCode(cmd.Arg)
		if !found || reason.Code != st.reasonCode {
			return e.send(ctx, ev.ChatID, txtDABadType)
		}
		typ, found := reason.TypeAt(cmd.Index)
		if !found {
			return e.send(ctx, ev.ChatID, txtDABadType)
		}
		st.draft.IssueType = typ
		if err := e.respond(ctx, ev, fmt.Sprintf(txtDATypeChosen, typ)); err != nil {
			return err
		}
		if st.editing || e.cfg.Images == nil {
			return e.summary(ctx, ev.ChatID, st)
		}
		st.step = DAAwaitingAttachDecision
		return e.send(ctx, ev.ChatID, txtDAAttachPrompt,
			[]connector.Button{{Text: txtYes, Data: tok(CmdAttachYes)}, {Text: txtNo, Data: tok(CmdAttachNo)}})

	case CmdAttachYes:
		if st.step != DAAwaitingAttachDecision {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		st.step = DAAwaitingImage
		return e.respond(ctx, ev, txtDASendImage)

	case CmdAttachNo:
		if st.step != DAAwaitingAttachDecision {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		return e.summary(ctx, ev.ChatID, st)

	case CmdEditYes:
		if st.step != DASummaryPrompt {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		return e.editMenu(ctx, ev, st)

	case CmdEditNo:
		if st.step != DASummaryPrompt && st.step != DAEditMenu {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		return e.submit(ctx, ev, st)

	case CmdEditField:
		if st.step != DAEditMenu {
			return e.send(ctx, ev.ChatID, txtStale)
		}
		return e.editField(ctx, ev, st, cmd.Arg)

	case CmdDAView:
		return e.view(ctx, ev, cmd.TicketID)
	case CmdDAInfo:
		return e.requestInfo(ctx, ev, st, cmd.TicketID)
	case CmdDADone:
		return e.markDone(ctx, ev, cmd.TicketID)

	default:
		return e.unknownAction(ctx, ev)
	}
}

func (e *DAEngine) addIssue(ctx context.Context, ev connector.Event) error {
	st := e.states.reset(ev.ChatID)
	sub, err := e.subscription(ctx, ev.User.ID)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if sub == nil || sub.Phone == "" {
		if err := e.send(ctx, ev.ChatID, txtDANoSubscription); err != nil {
			return err
		}
		st.step = DAAwaitingPhone
		return e.send(ctx, ev.ChatID, txtDAPhone)
	}

	fetchCtx, cancel := context.WithTimeout(ctx, e.cfg.OrderTimeout)
	list, err := e.cfg.Orders.Orders(fetchCtx, sub.Phone)
	cancel()

	st.step = DAAwaitingManualOrder
	if err != nil {
		e.log(ctx).Warn("order fetch failed, manual entry", "error", err)
		return e.respond(ctx, ev, txtDAOrdersFailed)
	}
	if len(list) == 0 {
		return e.respond(ctx, ev, txtDANoOrders)
	}

	if len(list) > maxOrderButtons {
		list = list[:maxOrderButtons]
	}
	st.orders = list
	st.step = DAAwaitingOrderSelection
	rows := make([][]connector.Button, 0, len(list)+1)
	for i, o := range list {
		rows = append(rows, connector.Row(
			fmt.Sprintf(txtDAOrderButton, o.ID, o.Client),
			Command{Kind: CmdSelectOrder, Index: i}.Token(),
		))
	}
	rows = append(rows, connector.Row(txtDAManualButton, tok(CmdManualOrder)))
	return e.respond(ctx, ev, txtDAChooseOrder, rows...)
}

func (e *DAEngine) orderChosen(ctx context.Context, ev connector.Event, st *daState, o orders.Order) error {
	st.draft.OrderID = o.ID
	st.draft.Client = o.Client
	st.orders = nil
	st.step = DAAwaitingDescription
	return e.respond(ctx, ev, fmt.Sprintf(txtDAOrderChosen, o.ID, o.Client))
}

func (e *DAEngine) askReason(ctx context.Context, ev connector.Event, st *daState) error {
	st.step = DAAwaitingReason
	rows := make([][]connector.Button, 0, len(Reasons))
	for _, r := range Reasons {
		rows = append(rows, connector.Row(r.Label, Command{Kind: CmdSetReason, Arg: r.Code}.Token()))
	}
	return e.respond(ctx, ev, txtDAChooseReason, rows...)
}

func (e *DAEngine) askType(ctx context.Context, ev connector.Event, st *daState, r Reason) error {
	st.step = DAAwaitingType
	rows := make([][]connector.Button, 0, len(r.Types))
	for i, t := range r.Types {
		rows = append(rows, connector.Row(t, Command{Kind: CmdSetType, Arg: r.Code, Index: i}.Token()))
	}
	return e.respond(ctx, ev, txtDAChooseType, rows...)
}

func (e *DAEngine) summary(ctx context.Context, chatID int64, st *daState) error {
	st.step = DASummaryPrompt
	st.editing = true
	_, err := e.out.Send(ctx, connector.OutboundMessage{
		ChatID:   chatID,
		Text:     render.DraftSummary(st.draft),
		PhotoURL: st.draft.ImageURL,
		Buttons: [][]connector.Button{{
			{Text: txtYes, Data: tok(CmdEditYes)},
			{Text: txtNo, Data: tok(CmdEditNo)},
		}},
	})
	return err
}

func (e *DAEngine) editMenu(ctx context.Context, ev connector.Event, st *daState) error {
	st.step = DAEditMenu
	fields := []string{fieldDescription, fieldReason, fieldType, fieldClient}
	if e.cfg.Images != nil {
		fields = append(fields, fieldImage)
	}
	rows := make([][]connector.Button, 0, len(fields)+1)
	for _, f := range fields {
		rows = append(rows, connector.Row("تعديل "+fieldLabels[f], Command{Kind: CmdEditField, Arg: f}.Token()))
	}
	rows = append(rows, connector.Row("لا تعديل", tok(CmdEditNo)))
	return e.respond(ctx, ev, txtDAEditMenu, rows...)
}

func (e *DAEngine) editField(ctx context.Context, ev connector.Event, st *daState, field string) error {
	switch field {
	case fieldDescription, fieldClient:
		st.editField = field
		st.step = DAAwaitingEditValue
		return e.ask(ctx, ev.ChatID, fmt.Sprintf(txtDANewValue, fieldLabels[field]))
	case fieldReason:
		return e.askReason(ctx, ev, st)
	case fieldType:
		reason, ok := ReasonByCode(st.reasonCode)
		if !ok {
			return e.send(ctx, ev.ChatID, txtDAReasonFirst)
		}
		return e.askType(ctx, ev, st, reason)
	case fieldImage:
		if e.cfg.Images == nil {
			return e.unknownAction(ctx, ev)
		}
		st.step = DAAwaitingImage
		return e.respond(ctx, ev, txtDASendImage)
	default:
		return e.unknownAction(ctx, ev)
	}
}

func (e *DAEngine) photo(ctx context.Context, ev connector.Event, st *daState) error {
	if ev.PhotoFileID == "" || e.cfg.Files == nil {
		return e.send(ctx, ev.ChatID, txtDANotAnImage)
	}
	src, err := e.cfg.Files.FileURL(ctx, ev.PhotoFileID)
	if err == nil {
		var url string
		url, err = e.cfg.Images.Store(ctx, src)
		if err == nil {
			st.draft.ImageURL = url
			return e.summary(ctx, ev.ChatID, st)
		}
	}
	e.log(ctx).Warn("image upload failed", "error", err)
	return e.send(ctx, ev.ChatID, txtDAUploadFailed)
}

func (e *DAEngine) submit(ctx context.Context, ev connector.Event, st *daState) error {
	id, err := e.tickets.Create(ctx, ticket.NewTicket{
		OrderID:     st.draft.OrderID,
		Description: st.draft.Description,
		IssueReason: st.draft.IssueReason,
		IssueType:   st.draft.IssueType,
		Client:      st.draft.Client,
		ImageURL:    st.draft.ImageURL,
		ReporterID:  ev.User.ID,
	})
	if errors.Is(err, protocol.ErrInvalidInput) {
		if sendErr := e.send(ctx, ev.ChatID, txtDAIncomplete); sendErr != nil {
			return sendErr
		}
		return e.editMenu(ctx, ev, st)
	}
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}

	t, err := e.tickets.Get(ctx, id)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	e.log(ctx).Info("ticket submitted", "ticket_id", id)
	if err := e.respond(ctx, ev, fmt.Sprintf(txtDACreated, id, protocol.DisplayLabel(t.Status))); err != nil {
		return err
	}
	e.notify.NotifySupervisors(ctx, t)
	return e.mainMenu(ctx, ev.ChatID, e.states.reset(ev.ChatID))
}

func (e *DAEngine) query(ctx context.Context, ev connector.Event, st *daState) error {
	var since time.Time
	empty := txtDANoTickets
	if e.cfg.QueryTodayOnly {
		now := e.now().In(e.cfg.Location)
		since = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, e.cfg.Location)
		empty = txtDANoTicketsToday
	}
	list, err := e.tickets.ListByReporter(ctx, ev.User.ID, since)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	// Looking up tickets abandons any draft in progress.
	*st = daState{step: DAMainMenu}
	if len(list) == 0 {
		return e.respond(ctx, ev, empty)
	}
	for _, t := range list {
		if err := e.send(ctx, ev.ChatID, render.ReporterCard(t),
			connector.Row(txtDetailsButton, ticketTok(CmdDAView, t.ID))); err != nil {
			return err
		}
	}
	return nil
}

// ownTicket loads a ticket reported by the sender. Tickets of other
// reporters look missing.
func (e *DAEngine) ownTicket(ctx context.Context, ev connector.Event, id int64) (*protocol.Ticket, error) {
	t, err := e.tickets.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.ReporterID != ev.User.ID {
		return nil, fmt.Errorf("conversation: ticket %d of another reporter: %w", id, protocol.ErrNotFound)
	}
	return t, nil
}

func (e *DAEngine) view(ctx context.Context, ev connector.Event, id int64) error {
	t, err := e.ownTicket(ctx, ev, id)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	var rows [][]connector.Button
	switch t.Status {
	case protocol.StatusPendingDAResponse:
		rows = append(rows, connector.Row(txtDASendInfo, ticketTok(CmdDAInfo, t.ID)))
	case protocol.StatusPendingDAAction:
		rows = append(rows, connector.Row(txtDAMarkDone, ticketTok(CmdDADone, t.ID)))
	}
	return e.showTicket(ctx, ev.ChatID, t, render.Detail(t), rows...)
}

func (e *DAEngine) requestInfo(ctx context.Context, ev connector.Event, st *daState, id int64) error {
	t, err := e.ownTicket(ctx, ev, id)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if t.Status != protocol.StatusPendingDAResponse {
		return e.send(ctx, ev.ChatID, txtWrongStatus)
	}
	st.step = DAAwaitingInfoText
	st.activeID = id
	return e.ask(ctx, ev.ChatID, txtDAInfoPrompt)
}

func (e *DAEngine) provideInfo(ctx context.Context, ev connector.Event, st *daState, text string) error {
	id := st.activeID
	t, err := e.tickets.Transition(ctx, id, protocol.StatusAdditionalInfoProvided, protocol.LogEntry{
		Action:  protocol.ActionAdditionalInfo,
		ActorID: ev.User.ID,
		Message: text,
	})
	st.activeID = 0
	if err != nil {
		st.step = DAMainMenu
		return e.fail(ctx, ev.ChatID, err)
	}
	if err := e.send(ctx, ev.ChatID, txtDAInfoSent); err != nil {
		return err
	}
	e.notify.NotifySupervisorsUpdate(ctx, t)
	return e.mainMenu(ctx, ev.ChatID, st)
}

func (e *DAEngine) markDone(ctx context.Context, ev connector.Event, id int64) error {
	t, err := e.ownTicket(ctx, ev, id)
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if t.Status != protocol.StatusPendingDAAction {
		return e.send(ctx, ev.ChatID, txtWrongStatus)
	}
	t, err = e.tickets.Transition(ctx, id, protocol.StatusAwaitingSupervisorApproval, protocol.LogEntry{
		Action:  protocol.ActionDAActionDone,
		ActorID: ev.User.ID,
	})
	if err != nil {
		return e.fail(ctx, ev.ChatID, err)
	}
	if err := e.respond(ctx, ev, txtDADoneSent); err != nil {
		return err
	}
	e.notify.NotifySupervisorsUpdate(ctx, t)
	return nil
}
