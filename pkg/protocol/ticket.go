package protocol

import "time"

// TicketStatus represents the lifecycle state of a ticket.
// Values are persisted verbatim, so they must never be renamed.
type TicketStatus string

const (
	StatusOpened                     TicketStatus = "Opened"
	StatusPendingDAAction            TicketStatus = "Pending DA Action"
	StatusAwaitingClientResponse     TicketStatus = "Awaiting Client Response"
	StatusClientResponded            TicketStatus = "Client Responded"
	StatusClientIgnored              TicketStatus = "Client Ignored"
	StatusPendingDAResponse          TicketStatus = "Pending DA Response"
	StatusAdditionalInfoProvided     TicketStatus = "Additional Info Provided"
	StatusAwaitingSupervisorApproval TicketStatus = "Awaiting Supervisor Approval"
	StatusClosed                     TicketStatus = "Closed"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []TicketStatus{
	StatusOpened,
	StatusPendingDAAction,
	StatusAwaitingClientResponse,
	StatusClientResponded,
	StatusClientIgnored,
	StatusPendingDAResponse,
	StatusAdditionalInfoProvided,
	StatusAwaitingSupervisorApproval,
	StatusClosed,
}

// ClientFinalStatuses block any further edit by the Client role.
var ClientFinalStatuses = []TicketStatus{
	StatusClientResponded,
	StatusClientIgnored,
	StatusClosed,
}

// OpenStatuses is every status a supervisor still has to look at.
func OpenStatuses() []TicketStatus {
	out := make([]TicketStatus, 0, len(AllStatuses)-1)
	for _, s := range AllStatuses {
		if s != StatusClosed {
			out = append(out, s)
		}
	}
	return out
}

// TerminalStatuses block any further edit by every role.
var TerminalStatuses = []TicketStatus{StatusClosed}

// IsTerminal reports whether no role may act on a ticket in status s.
func IsTerminal(s TicketStatus) bool {
	for _, f := range TerminalStatuses {
		if s == f {
			return true
		}
	}
	return false
}

// IsClientFinal reports whether the Client role may no longer act on a ticket in status s.
func IsClientFinal(s TicketStatus) bool {
	for _, f := range ClientFinalStatuses {
		if s == f {
			return true
		}
	}
	return false
}

// Log actions written by the workflow.
const (
	ActionTicketCreated       = "ticket_created"
	ActionSupervisorSolution  = "supervisor_solution"
	ActionRequestMoreInfo     = "request_more_info"
	ActionSupervisorForward   = "supervisor_forward"
	ActionSentToClient        = "sent_to_client"
	ActionClientIgnored       = "client_ignored"
	ActionClientFinalResponse = "client_final_response"
	ActionClientSolution      = "client_solution"
	ActionAdditionalInfo      = "additional_info"
	ActionDAActionDone        = "da_action_done"
	ActionSupervisorClosed    = "supervisor_closed"
)

// LogEntry is one append-only record of a ticket transition.
type LogEntry struct {
	Action    string       `json:"action"`
	ActorID   int64        `json:"by,omitempty"`
	Message   string       `json:"message,omitempty"`
	Status    TicketStatus `json:"status,omitempty"`
	Timestamp time.Time    `json:"timestamp"`
}

// Ticket is a single field issue reported by a delivery agent.
type Ticket struct {
	ID          int64        `json:"ticket_id"`
	OrderID     string       `json:"order_id"`
	Description string       `json:"issue_description"`
	IssueReason string       `json:"issue_reason"`
	IssueType   string       `json:"issue_type"`
	Client      string       `json:"client"`
	ImageURL    string       `json:"image_url,omitempty"`
	Status      TicketStatus `json:"status"`
	ReporterID  int64        `json:"da_id"`
	Log         []LogEntry   `json:"logs"`
	CreatedAt   time.Time    `json:"created_at"`
}

// HasImage reports whether an image is attached.
func (t *Ticket) HasImage() bool { return t.ImageURL != "" }

// LastEntry returns the most recent log entry with the given action.
func (t *Ticket) LastEntry(action string) (LogEntry, bool) {
	for i := len(t.Log) - 1; i >= 0; i-- {
		if t.Log[i].Action == action {
			return t.Log[i], true
		}
	}
	return LogEntry{}, false
}

// Replay derives the status a log leads to, starting from Opened.
// Entries without a status leave the current one untouched.
func Replay(log []LogEntry) TicketStatus {
	status := StatusOpened
	for _, e := range log {
		if e.Status != "" {
			status = e.Status
		}
	}
	return status
}
