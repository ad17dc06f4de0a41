package protocol

import (
	"strconv"
	"strings"
)

// Callback actions carried by inline buttons. Button data is the action
// followed by "|" separated arguments and must fit in 64 bytes.
const (
	CallbackAddIssue       = "menu_add_issue"
	CallbackQueryIssues    = "menu_query_issue"
	CallbackSelectOrder    = "select_order"
	CallbackManualOrder    = "manual_order"
	CallbackSetReason      = "set_issue_reason"
	CallbackSetType        = "set_issue_type"
	CallbackAttachYes      = "attach_yes"
	CallbackAttachNo       = "attach_no"
	CallbackEditYes        = "edit_ticket_yes"
	CallbackEditNo         = "edit_ticket_no"
	CallbackEditField      = "edit_field"
	CallbackDAView         = "da_view"
	CallbackDAInfo         = "da_info"
	CallbackDADone         = "da_done"
	CallbackShowAll        = "menu_show_all"
	CallbackView           = "view"
	CallbackSolve          = "solve"
	CallbackMoreInfo       = "moreinfo"
	CallbackSendClient     = "sendclient"
	CallbackConfirmClient  = "confirm_sendclient"
	CallbackCancelClient   = "cancel_sendclient"
	CallbackForwardToDA    = "sendto_da"
	CallbackConfirmForward = "confirm_sendto_da"
	CallbackCancelForward  = "cancel_sendto_da"
	CallbackClose          = "close"
	CallbackShowTickets    = "menu_show_tickets"
	CallbackClientView     = "client_view"
	CallbackNotifyPref     = "notify_pref"
	CallbackIgnore         = "ignore"
)

// CallbackSeparator splits a callback action from its arguments.
const CallbackSeparator = "|"

// CallbackToken encodes an action and its arguments as button data.
func CallbackToken(action string, args ...string) string {
	return strings.Join(append([]string{action}, args...), CallbackSeparator)
}

// TicketCallback encodes an action whose only argument is a ticket ID.
func TicketCallback(action string, id int64) string {
	return CallbackToken(action, strconv.FormatInt(id, 10))
}

// SplitCallback returns the action and arguments of button data.
func SplitCallback(data string) (string, []string) {
	parts := strings.Split(strings.TrimSpace(data), CallbackSeparator)
	return parts[0], parts[1:]
}
