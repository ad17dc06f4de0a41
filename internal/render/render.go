// Package render builds the chat texts that describe tickets.
// Labels use **bold** markup, which each transport converts.
package render

import (
	"fmt"
	"strings"

	"github.com/fieldops-io/fieldops/pkg/protocol"
)

const timeLayout = "2006-01-02 15:04"

// NoImage is shown in summaries when no photo is attached.
const NoImage = "لا توجد"

// actionLabels name log actions in the ticket history.
var actionLabels = map[string]string{
	protocol.ActionTicketCreated:       "إنشاء التذكرة",
	protocol.ActionSupervisorSolution:  "حل من المشرف",
	protocol.ActionRequestMoreInfo:     "طلب معلومات إضافية",
	protocol.ActionSupervisorForward:   "تحويل حل العميل إلى الوكيل",
	protocol.ActionSentToClient:        "إرسال إلى العميل",
	protocol.ActionClientIgnored:       "تجاهل العميل",
	protocol.ActionClientFinalResponse: "رد العميل النهائي",
	protocol.ActionClientSolution:      "حل من العميل",
	protocol.ActionAdditionalInfo:      "معلومات إضافية من الوكيل",
	protocol.ActionDAActionDone:        "تنفيذ الإجراء من الوكيل",
	protocol.ActionSupervisorClosed:    "إغلاق التذكرة",
}

// ActionLabel names a log action, falling back to the raw action.
func ActionLabel(action string) string {
	if l, ok := actionLabels[action]; ok {
		return l
	}
	return action
}

// Card is the short form used in ticket lists.
func Card(t *protocol.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**تذكرة #%d**\n", t.ID)
	fmt.Fprintf(&b, "**رقم الطلب:** %s\n", t.OrderID)
	fmt.Fprintf(&b, "**العميل:** %s\n", t.Client)
	fmt.Fprintf(&b, "**الوصف:** %s\n", t.Description)
	fmt.Fprintf(&b, "**الحالة:** %s", protocol.DisplayLabel(t.Status))
	return b.String()
}

// ReporterCard is the form a DA sees when querying their own tickets.
func ReporterCard(t *protocol.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**تذكرة #%d**\n", t.ID)
	fmt.Fprintf(&b, "**رقم الطلب:** %s\n", t.OrderID)
	fmt.Fprintf(&b, "**الوصف:** %s\n", t.Description)
	fmt.Fprintf(&b, "**سبب المشكلة:** %s\n", t.IssueReason)
	fmt.Fprintf(&b, "**نوع المشكلة:** %s\n", t.IssueType)
	fmt.Fprintf(&b, "**الحالة:** %s", protocol.DisplayLabel(t.Status))
	if t.Status == protocol.StatusClosed {
		b.WriteString("\nالحل: تم الحل.")
	}
	return b.String()
}

// Detail is the full ticket view including its history.
func Detail(t *protocol.Ticket) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**تفاصيل التذكرة #%d**\n", t.ID)
	fmt.Fprintf(&b, "**رقم الطلب:** %s\n", t.OrderID)
	fmt.Fprintf(&b, "**العميل:** %s\n", t.Client)
	fmt.Fprintf(&b, "**الوصف:** %s\n", t.Description)
	fmt.Fprintf(&b, "**سبب المشكلة:** %s\n", t.IssueReason)
	fmt.Fprintf(&b, "**نوع المشكلة:** %s\n", t.IssueType)
	fmt.Fprintf(&b, "**الحالة:** %s\n\n", protocol.DisplayLabel(t.Status))
	b.WriteString("**السجلات:**\n")
	b.WriteString(History(t.Log))
	return b.String()
}

// History renders one line per log entry, oldest first.
func History(log []protocol.LogEntry) string {
	if len(log) == 0 {
		return "لا توجد سجلات إضافية."
	}
	lines := make([]string, 0, len(log))
	for _, e := range log {
		line := e.Timestamp.UTC().Format(timeLayout) + ": " + ActionLabel(e.Action)
		if e.Message != "" {
			line += " - " + e.Message
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

// ClientDetails is what a client sees for a ticket awaiting their response.
// full selects the heading used after choosing "now".
func ClientDetails(t *protocol.Ticket, full bool) string {
	heading := "تفاصيل التذكرة:"
	if full {
		heading = "تفاصيل التذكرة الكاملة:"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** #%d\n", heading, t.ID)
	fmt.Fprintf(&b, "رقم الطلب: %s\n", t.OrderID)
	fmt.Fprintf(&b, "الوصف: %s\n", t.Description)
	if full {
		fmt.Fprintf(&b, "سبب المشكلة: %s\n", t.IssueReason)
		fmt.Fprintf(&b, "نوع المشكلة: %s\n", t.IssueType)
	}
	fmt.Fprintf(&b, "الحالة: %s", protocol.DisplayLabel(t.Status))
	return b.String()
}

// Draft describes an unsubmitted ticket.
type Draft struct {
	OrderID     string
	Description string
	IssueReason string
	IssueType   string
	Client      string
	ImageURL    string
}

// DraftSummary renders a draft for review before submission.
func DraftSummary(d Draft) string {
	image := d.ImageURL
	if image == "" {
		image = NoImage
	}
	var b strings.Builder
	b.WriteString("**ملخص التذكرة المدخلة:**\n")
	fmt.Fprintf(&b, "رقم الطلب: %s\n", d.OrderID)
	fmt.Fprintf(&b, "الوصف: %s\n", d.Description)
	fmt.Fprintf(&b, "سبب المشكلة: %s\n", d.IssueReason)
	fmt.Fprintf(&b, "نوع المشكلة: %s\n", d.IssueType)
	fmt.Fprintf(&b, "العميل: %s\n", d.Client)
	fmt.Fprintf(&b, "الصورة: %s\n", image)
	b.WriteString("هل تريد تعديل التذكرة قبل الإرسال؟")
	return b.String()
}

// NewTicketAlert notifies supervisors of a new ticket.
func NewTicketAlert(t *protocol.Ticket) string {
	return fmt.Sprintf("**تم إنشاء بلاغ جديد.**\nرقم التذكرة: %d\nرقم الأوردر: %s\nالعميل: %s\nالوصف: %s",
		t.ID, t.OrderID, t.Client, t.Description)
}

// StatusAlert notifies supervisors of a DA update on a ticket.
func StatusAlert(t *protocol.Ticket) string {
	msg := fmt.Sprintf("**تحديث على التذكرة #%d**\nرقم الأوردر: %s\nالحالة: %s",
		t.ID, t.OrderID, protocol.DisplayLabel(t.Status))
	if n := len(t.Log); n > 0 && t.Log[n-1].Message != "" {
		msg += "\nالرسالة: " + t.Log[n-1].Message
	}
	return msg
}

// ClientResponseAlert notifies supervisors that a client answered.
func ClientResponseAlert(t *protocol.Ticket, ignored bool) string {
	if ignored {
		return fmt.Sprintf("**قام العميل %s بتجاهل التذكرة #%d.**\nرقم الأوردر: %s", t.Client, t.ID, t.OrderID)
	}
	solution := ""
	if e, ok := t.LastEntry(protocol.ActionClientSolution); ok {
		solution = e.Message
	}
	return fmt.Sprintf("**رد العميل %s على التذكرة #%d.**\nرقم الأوردر: %s\nالحل: %s", t.Client, t.ID, t.OrderID, solution)
}

// ClientAlert notifies a client that a ticket concerns their order.
func ClientAlert(t *protocol.Ticket) string {
	return fmt.Sprintf("تم رفع بلاغ يتعلق بطلب %s.\nالوصف: %s\nالنوع: %s", t.OrderID, t.Description, t.IssueType)
}

// ReporterUpdate notifies the DA who reported a ticket.
func ReporterUpdate(t *protocol.Ticket) string {
	msg := fmt.Sprintf("تم تحديث بلاغك رقم %d.\nالوصف: %s\nالحالة: %s",
		t.ID, t.Description, protocol.DisplayLabel(t.Status))
	if n := len(t.Log); n > 0 && t.Log[n-1].Message != "" {
		msg += "\nالرسالة: " + t.Log[n-1].Message
	}
	return msg
}

// Reminder nudges a client about an unanswered ticket.
func Reminder(ticketID int64) string {
	return fmt.Sprintf("تذكير: لم تقم بالرد على التذكرة #%d بعد.", ticketID)
}
