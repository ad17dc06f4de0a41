package conversation

import (
	"fmt"
	"strconv"

	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// CommandKind is the closed set of button actions across all roles.
type CommandKind int

const (
	CmdUnknown CommandKind = iota

	// DA
	CmdAddIssue
	CmdQueryIssues // Supervisor search too
	CmdSelectOrder
	CmdManualOrder
	CmdSetReason
	CmdSetType
	CmdAttachYes
	CmdAttachNo
	CmdEditYes
	CmdEditNo
	CmdEditField
	CmdDAView
	CmdDAInfo
	CmdDADone

	// Supervisor
	CmdShowAll
	CmdView
	CmdSolve // also the Client's solve
	CmdMoreInfo
	CmdSendClient
	CmdConfirmSendClient
	CmdCancelSendClient
	CmdForwardToDA
	CmdConfirmForwardToDA
	CmdCancelForwardToDA
	CmdClose

	// Client
	CmdShowTickets
	CmdClientView
	CmdNotifyPref
	CmdIgnore
)

// Command is a decoded callback token.
type Command struct {
	Kind     CommandKind
	TicketID int64
	Arg      string // order index, reason code, edit field, or reminder preference
	Index    int    // issue type index, order index
}

type tokenSpec struct {
	name string
	kind CommandKind
	args int // number of "|" separated arguments
}

var specs = []tokenSpec{
	{protocol.CallbackAddIssue, CmdAddIssue, 0},
	{protocol.CallbackQueryIssues, CmdQueryIssues, 0},
	{protocol.CallbackSelectOrder, CmdSelectOrder, 1},
	{protocol.CallbackManualOrder, CmdManualOrder, 0},
	{protocol.CallbackSetReason, CmdSetReason, 1},
	{protocol.CallbackSetType, CmdSetType, 2},
	{protocol.CallbackAttachYes, CmdAttachYes, 0},
	{protocol.CallbackAttachNo, CmdAttachNo, 0},
	{protocol.CallbackEditYes, CmdEditYes, 0},
	{protocol.CallbackEditNo, CmdEditNo, 0},
	{protocol.CallbackEditField, CmdEditField, 1},
	{protocol.CallbackDAView, CmdDAView, 1},
	{protocol.CallbackDAInfo, CmdDAInfo, 1},
	{protocol.CallbackDADone, CmdDADone, 1},

	{protocol.CallbackShowAll, CmdShowAll, 0},
	{protocol.CallbackView, CmdView, 1},
	{protocol.CallbackSolve, CmdSolve, 1},
	{protocol.CallbackMoreInfo, CmdMoreInfo, 1},
	{protocol.CallbackSendClient, CmdSendClient, 1},
	{protocol.CallbackConfirmClient, CmdConfirmSendClient, 1},
	{protocol.CallbackCancelClient, CmdCancelSendClient, 1},
	{protocol.CallbackForwardToDA, CmdForwardToDA, 1},
	{protocol.CallbackConfirmForward, CmdConfirmForwardToDA, 1},
	{protocol.CallbackCancelForward, CmdCancelForwardToDA, 1},
	{protocol.CallbackClose, CmdClose, 1},

	{protocol.CallbackShowTickets, CmdShowTickets, 0},
	{protocol.CallbackClientView, CmdClientView, 1},
	{protocol.CallbackNotifyPref, CmdNotifyPref, 2},
	{protocol.CallbackIgnore, CmdIgnore, 1},
}

var specByName = func() map[string]tokenSpec {
	m := make(map[string]tokenSpec, len(specs))
	for _, s := range specs {
		m[s.name] = s
	}
	return m
}()

var nameByKind = func() map[CommandKind]string {
	m := make(map[CommandKind]string, len(specs))
	for _, s := range specs {
		m[s.kind] = s.name
	}
	return m
}()

// String returns the token name of the kind.
func (k CommandKind) String() string {
	if n, ok := nameByKind[k]; ok {
		return n
	}
	return "unknown"
}

// ticketCommands carry a ticket ID as their first argument.
func (k CommandKind) takesTicket() bool {
	switch k {
	case CmdDAView, CmdDAInfo, CmdDADone, CmdView, CmdSolve, CmdMoreInfo,
		CmdSendClient, CmdConfirmSendClient, CmdCancelSendClient,
		CmdForwardToDA, CmdConfirmForwardToDA, CmdCancelForwardToDA,
		CmdClose, CmdClientView, CmdNotifyPref, CmdIgnore:
		return true
	}
	return false
}

// ParseCommand decodes an "action|arg…" token. Anything malformed or
// unknown yields CmdUnknown and an error wrapping protocol.ErrInvalidInput.
func ParseCommand(data string) (Command, error) {
	action, args := protocol.SplitCallback(data)
	spec, ok := specByName[action]
	if !ok {
		return Command{}, fmt.Errorf("%w: unknown action %q", protocol.ErrInvalidInput, action)
	}
	if len(args) != spec.args {
		return Command{}, fmt.Errorf("%w: %s takes %d arguments, got %d", protocol.ErrInvalidInput, spec.name, spec.args, len(args))
	}

	cmd := Command{Kind: spec.kind}
	if spec.kind.takesTicket() {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil || id <= 0 {
			return Command{}, fmt.Errorf("%w: bad ticket id %q", protocol.ErrInvalidInput, args[0])
		}
		cmd.TicketID = id
		args = args[1:]
	}

	switch spec.kind {
	case CmdSelectOrder:
		idx, err := strconv.Atoi(args[0])
		if err != nil || idx < 0 {
			return Command{}, fmt.Errorf("%w: bad order index %q", protocol.ErrInvalidInput, args[0])
		}
		cmd.Index = idx
	case CmdSetType:
		idx, err := strconv.Atoi(args[1])
		if err != nil || idx < 0 {
			return Command{}, fmt.Errorf("%w: bad type index %q", protocol.ErrInvalidInput, args[1])
		}
		cmd.Arg, cmd.Index = args[0], idx
	case CmdNotifyPref:
		switch args[0] {
		case PrefNow, PrefLong, PrefShort:
		default:
			return Command{}, fmt.Errorf("%w: bad reminder preference %q", protocol.ErrInvalidInput, args[0])
		}
		cmd.Arg = args[0]
	default:
		if len(args) == 1 {
			cmd.Arg = args[0]
		}
	}
	return cmd, nil
}

// Token encodes a command back into callback data.
func (c Command) Token() string {
	var args []string
	if c.Kind.takesTicket() {
		args = append(args, strconv.FormatInt(c.TicketID, 10))
	}
	switch c.Kind {
	case CmdSelectOrder:
		args = append(args, strconv.Itoa(c.Index))
	case CmdSetType:
		args = append(args, c.Arg, strconv.Itoa(c.Index))
	case CmdSetReason, CmdEditField, CmdNotifyPref:
		args = append(args, c.Arg)
	}
	return protocol.CallbackToken(c.Kind.String(), args...)
}

// Reminder preferences offered to clients.
const (
	PrefNow   = "now"
	PrefLong  = "15"
	PrefShort = "10"
)

func tok(kind CommandKind) string { return Command{Kind: kind}.Token() }

func ticketTok(kind CommandKind, id int64) string {
	return Command{Kind: kind, TicketID: id}.Token()
}
