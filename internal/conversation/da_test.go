package conversation

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/fieldops-io/fieldops/internal/orders"
	"github.com/fieldops-io/fieldops/internal/render"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// composeUntilSummary walks a subscribed DA through order, description,
// reason, and type.
func composeUntilSummary(t *testing.T, h *harness) {
	t.Helper()
	h.orders.list = []orders.Order{{ID: "12345", Client: "Acme"}, {ID: "555", Client: "Globex"}}
	handle(t, h.da, press(daChat, daUser, "menu_add_issue"))
	if h.da.Step(daChat) != DAAwaitingOrderSelection {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, press(daChat, daUser, "select_order|0"))
	handle(t, h.da, textEv(daChat, daUser, "carton damaged"))
	if h.da.Step(daChat) != DAAwaitingReason {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, press(daChat, daUser, "set_issue_reason|stor"))
	handle(t, h.da, press(daChat, daUser, "set_issue_type|stor|0"))
	if h.da.Step(daChat) != DAAwaitingAttachDecision {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, press(daChat, daUser, "attach_no"))
	if h.da.Step(daChat) != DASummaryPrompt {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
}

func TestDA_RegisterAndCreateTicket(t *testing.T) {
	h := newHarness(t)
	h.subscribe(protocol.RoleSupervisor, supUser, supChat, "")

	handle(t, h.da, startCmd(daChat, daUser))
	if h.da.Step(daChat) != DAAwaitingPhone || h.daOut.last() != txtDAPhone {
		t.Fatalf("step = %v, last = %q", h.da.Step(daChat), h.daOut.last())
	}
	handle(t, h.da, textEv(daChat, daUser, "0100000000"))
	if !h.daOut.saw(txtDASubscribed) || h.da.Step(daChat) != DAMainMenu {
		t.Fatalf("registration failed: step = %v", h.da.Step(daChat))
	}
	sub, err := h.store.GetSubscription(context.Background(), daUser, protocol.RoleDA)
	if err != nil || sub.Phone != "0100000000" || sub.ChatID != daChat {
		t.Fatalf("subscription = %+v, %v", sub, err)
	}

	composeUntilSummary(t, h)
	if len(h.orders.phones) != 1 || h.orders.phones[0] != "0100000000" {
		t.Errorf("orders fetched for %v", h.orders.phones)
	}
	if !h.daOut.saw("الصورة: " + "لا توجد") {
		t.Error("summary not shown")
	}

	handle(t, h.da, press(daChat, daUser, "edit_ticket_no"))
	if !h.daOut.saw("تم إنشاء التذكرة برقم 1.") {
		t.Errorf("no confirmation, last = %q", h.daOut.last())
	}
	if h.da.Step(daChat) != DAMainMenu {
		t.Errorf("step = %v", h.da.Step(daChat))
	}

	tk := h.get(1)
	if tk.Status != protocol.StatusOpened || tk.Client != "Acme" || len(tk.Log) != 1 {
		t.Errorf("ticket = %+v", tk)
	}
	if tk.OrderID != "12345" || tk.IssueReason != "المخزن" || tk.IssueType != "تالف" || tk.ImageURL != "" {
		t.Errorf("fields = %+v", tk)
	}
	if tk.ReporterID != daUser {
		t.Errorf("reporter = %d", tk.ReporterID)
	}
	if got := h.supOut.sentTo(supChat); len(got) != 1 || !strings.Contains(got[0].Text, "12345") {
		t.Errorf("supervisor alerts = %+v", got)
	}
}

func TestDA_EmptyOrdersFallsBackToManual(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()

	handle(t, h.da, press(daChat, daUser, "menu_add_issue"))
	if h.da.Step(daChat) != DAAwaitingManualOrder || h.daOut.last() != txtDANoOrders {
		t.Fatalf("step = %v, last = %q", h.da.Step(daChat), h.daOut.last())
	}

	handle(t, h.da, textEv(daChat, daUser, "no comma here"))
	if h.da.Step(daChat) != DAAwaitingManualOrder || h.daOut.last() != txtDABadManual {
		t.Fatalf("bad entry accepted: step = %v", h.da.Step(daChat))
	}

	handle(t, h.da, textEv(daChat, daUser, "777،Globex"))
	if h.da.Step(daChat) != DAAwaitingDescription {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	if !strings.Contains(h.daOut.last(), "777") || !strings.Contains(h.daOut.last(), "Globex") {
		t.Errorf("last = %q", h.daOut.last())
	}
}

func TestDA_OrderFetchFailureFallsBackToManual(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	h.orders.err = errBoom

	handle(t, h.da, press(daChat, daUser, "menu_add_issue"))
	if h.da.Step(daChat) != DAAwaitingManualOrder || h.daOut.last() != txtDAOrdersFailed {
		t.Errorf("step = %v, last = %q", h.da.Step(daChat), h.daOut.last())
	}
}

func TestDA_AddIssueWithoutSubscription(t *testing.T) {
	h := newHarness(t)
	handle(t, h.da, press(daChat, daUser, "menu_add_issue"))
	if !h.daOut.saw(txtDANoSubscription) || h.da.Step(daChat) != DAAwaitingPhone {
		t.Errorf("step = %v", h.da.Step(daChat))
	}
	if len(h.orders.phones) != 0 {
		t.Error("orders fetched without a phone")
	}
}

func TestDA_BadPhone(t *testing.T) {
	h := newHarness(t)
	handle(t, h.da, startCmd(daChat, daUser))
	handle(t, h.da, textEv(daChat, daUser, "call me"))
	if h.da.Step(daChat) != DAAwaitingPhone || h.daOut.last() != txtBadPhone {
		t.Errorf("step = %v, last = %q", h.da.Step(daChat), h.daOut.last())
	}
	if _, err := h.store.GetSubscription(context.Background(), daUser, protocol.RoleDA); err == nil {
		t.Error("subscription saved for an invalid phone")
	}
}

func TestDA_UnknownActionKeepsStep(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	composeUntilSummary(t, h)

	handle(t, h.da, press(daChat, daUser, "escalate|1"))
	if h.daOut.last() != txtUnknownAction {
		t.Errorf("last = %q", h.daOut.last())
	}
	if h.da.Step(daChat) != DASummaryPrompt {
		t.Errorf("step = %v", h.da.Step(daChat))
	}
}

func TestDA_StaleButton(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	handle(t, h.da, startCmd(daChat, daUser))

	handle(t, h.da, press(daChat, daUser, "set_issue_type|stor|0"))
	if h.daOut.last() != txtStale || h.da.Step(daChat) != DAMainMenu {
		t.Errorf("step = %v, last = %q", h.da.Step(daChat), h.daOut.last())
	}
}

func TestDA_TypeMustMatchReason(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	h.orders.list = []orders.Order{{ID: "1", Client: "Acme"}}
	handle(t, h.da, press(daChat, daUser, "menu_add_issue"))
	handle(t, h.da, press(daChat, daUser, "select_order|0"))
	handle(t, h.da, textEv(daChat, daUser, "late"))
	handle(t, h.da, press(daChat, daUser, "set_issue_reason|del"))

	handle(t, h.da, press(daChat, daUser, "set_issue_type|stor|0"))
	if h.daOut.last() != txtDABadType || h.da.Step(daChat) != DAAwaitingType {
		t.Fatalf("mismatched type accepted: %q", h.daOut.last())
	}
	handle(t, h.da, press(daChat, daUser, "set_issue_type|del|9"))
	if h.daOut.last() != txtDABadType {
		t.Fatalf("out of range type accepted: %q", h.daOut.last())
	}
	handle(t, h.da, press(daChat, daUser, "set_issue_type|del|0"))
	if h.da.Step(daChat) != DAAwaitingAttachDecision {
		t.Errorf("step = %v", h.da.Step(daChat))
	}
}

func TestDA_AttachImage(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	h.orders.list = []orders.Order{{ID: "12345", Client: "Acme"}}
	handle(t, h.da, press(daChat, daUser, "menu_add_issue"))
	handle(t, h.da, press(daChat, daUser, "select_order|0"))
	handle(t, h.da, textEv(daChat, daUser, "carton damaged"))
	handle(t, h.da, press(daChat, daUser, "set_issue_reason|stor"))
	handle(t, h.da, press(daChat, daUser, "set_issue_type|stor|1"))
	handle(t, h.da, press(daChat, daUser, "attach_yes"))
	if h.da.Step(daChat) != DAAwaitingImage {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}

	handle(t, h.da, textEv(daChat, daUser, "here it is"))
	if h.daOut.last() != txtDANotAnImage || h.da.Step(daChat) != DAAwaitingImage {
		t.Fatalf("text accepted as image")
	}

	h.images.err = errBoom
	handle(t, h.da, photoEv(daChat, daUser, "file-1"))
	if h.daOut.last() != txtDAUploadFailed || h.da.Step(daChat) != DAAwaitingImage {
		t.Fatalf("upload failure must ask to resend, step = %v", h.da.Step(daChat))
	}

	h.images.err = nil
	handle(t, h.da, photoEv(daChat, daUser, "file-2"))
	if h.da.Step(daChat) != DASummaryPrompt {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	if got := h.images.sources; len(got) != 2 || got[1] != "https://files.example.com/file-2" {
		t.Errorf("sources = %v", got)
	}
	summary := h.daOut.sent[len(h.daOut.sent)-1]
	if summary.PhotoURL != h.images.url {
		t.Errorf("summary photo = %q", summary.PhotoURL)
	}

	handle(t, h.da, press(daChat, daUser, "edit_ticket_no"))
	if tk := h.get(1); tk.ImageURL != h.images.url || tk.IssueType != "منتهي الصلاحية" {
		t.Errorf("ticket = %+v", tk)
	}
	if h.supOut.sentTo(supChat)[0].PhotoURL != h.images.url {
		t.Error("supervisor alert must carry the image")
	}
}

func TestDA_EditBeforeSubmit(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	composeUntilSummary(t, h)

	handle(t, h.da, press(daChat, daUser, "edit_ticket_yes"))
	if h.da.Step(daChat) != DAEditMenu {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, press(daChat, daUser, "edit_field|description"))
	if h.da.Step(daChat) != DAAwaitingEditValue {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, textEv(daChat, daUser, "two cartons crushed"))
	if !h.daOut.saw("تم تحديث الوصف بنجاح.") || h.da.Step(daChat) != DASummaryPrompt {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}

	// Changing the reason requires picking a new type, then returns to the summary.
	handle(t, h.da, press(daChat, daUser, "edit_ticket_yes"))
	handle(t, h.da, press(daChat, daUser, "edit_field|issue_reason"))
	handle(t, h.da, press(daChat, daUser, "set_issue_reason|cli"))
	if h.da.Step(daChat) != DAAwaitingType {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, press(daChat, daUser, "set_issue_type|cli|0"))
	if h.da.Step(daChat) != DASummaryPrompt {
		t.Fatalf("edit must skip the attach prompt, step = %v", h.da.Step(daChat))
	}

	handle(t, h.da, press(daChat, daUser, "edit_ticket_yes"))
	handle(t, h.da, press(daChat, daUser, "edit_field|image"))
	if h.da.Step(daChat) != DAAwaitingImage {
		t.Fatalf("image edit must re-enter upload, step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, photoEv(daChat, daUser, "file-3"))

	handle(t, h.da, press(daChat, daUser, "edit_ticket_no"))
	tk := h.get(1)
	if tk.Description != "two cartons crushed" || tk.IssueReason != "العميل" || tk.IssueType != "رفض الاستلام" {
		t.Errorf("ticket = %+v", tk)
	}
	if tk.ImageURL == "" {
		t.Error("edited image lost")
	}
}

func TestDA_QueryOwnTicketsToday(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	own := h.createTicket("Acme")
	h.tickets.Create(context.Background(), ticketBy(999))

	handle(t, h.da, press(daChat, daUser, "menu_query_issue"))
	got := h.daOut.sentTo(daChat)
	if len(got) != 1 {
		t.Fatalf("listed %d tickets", len(got))
	}
	if got[0].Buttons[0][0].Data != "da_view|"+itoa(own.ID) {
		t.Errorf("buttons = %+v", got[0].Buttons)
	}

	h.daOut.reset()
	h.da.now = func() time.Time { return time.Now().Add(48 * time.Hour) }
	handle(t, h.da, press(daChat, daUser, "menu_query_issue"))
	if h.daOut.last() != txtDANoTicketsToday {
		t.Errorf("last = %q", h.daOut.last())
	}
}

func TestDA_QueryAbandonsDraft(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	composeUntilSummary(t, h)

	handle(t, h.da, press(daChat, daUser, "menu_query_issue"))
	if h.da.Step(daChat) != DAMainMenu {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	if st := h.da.states.get(daChat); st.draft != (render.Draft{}) || st.orders != nil {
		t.Errorf("draft kept after query: %+v", st.draft)
	}

	handle(t, h.da, press(daChat, daUser, "edit_ticket_no"))
	if h.daOut.last() != txtStale || len(h.supOut.sent) != 0 {
		t.Errorf("abandoned draft was submitted, last = %q", h.daOut.last())
	}
}

func TestDA_ProvideRequestedInfo(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")

	handle(t, h.da, press(daChat, daUser, "da_info|"+itoa(tk.ID)))
	if h.daOut.last() != txtWrongStatus {
		t.Fatalf("info accepted while Opened: %q", h.daOut.last())
	}

	h.transition(tk.ID, protocol.StatusPendingDAResponse, protocol.ActionRequestMoreInfo, "which carton?")
	handle(t, h.da, press(daChat, daUser, "da_view|"+itoa(tk.ID)))
	if !h.daOut.hasButton("da_info|" + itoa(tk.ID)) {
		t.Fatal("view must offer the info button")
	}

	handle(t, h.da, press(daChat, daUser, "da_info|"+itoa(tk.ID)))
	if h.da.Step(daChat) != DAAwaitingInfoText {
		t.Fatalf("step = %v", h.da.Step(daChat))
	}
	handle(t, h.da, textEv(daChat, daUser, "the blue one"))

	got := h.get(tk.ID)
	last := got.Log[len(got.Log)-1]
	if got.Status != protocol.StatusAdditionalInfoProvided || last.Action != protocol.ActionAdditionalInfo || last.Message != "the blue one" {
		t.Errorf("ticket = %+v", got)
	}
	if len(h.supOut.sentTo(supChat)) != 1 {
		t.Error("supervisors not notified")
	}
	if h.da.Step(daChat) != DAMainMenu {
		t.Errorf("step = %v", h.da.Step(daChat))
	}
}

func TestDA_MarkActionDone(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")
	h.transition(tk.ID, protocol.StatusPendingDAAction, protocol.ActionSupervisorSolution, "swap the carton")

	handle(t, h.da, press(daChat, daUser, "da_done|"+itoa(tk.ID)))
	if got := h.get(tk.ID); got.Status != protocol.StatusAwaitingSupervisorApproval {
		t.Errorf("status = %q", got.Status)
	}
	if h.daOut.last() != txtDADoneSent || len(h.supOut.sentTo(supChat)) != 1 {
		t.Errorf("last = %q", h.daOut.last())
	}
}

func TestDA_ForeignTicketLooksMissing(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	id, _ := h.tickets.Create(context.Background(), ticketBy(999))

	handle(t, h.da, press(daChat, daUser, "da_view|"+itoa(id)))
	if h.daOut.last() != txtNotFound {
		t.Errorf("last = %q", h.daOut.last())
	}
}
