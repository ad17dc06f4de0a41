package conversation

import (
	"strings"
	"testing"

	"github.com/fieldops-io/fieldops/internal/connector"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

func TestSupervisor_Register(t *testing.T) {
	h := newHarness(t)
	handle(t, h.sup, startCmd(supChat, supUser))
	if h.sup.Step(supChat) != SupAwaitingPhone {
		t.Fatalf("step = %v", h.sup.Step(supChat))
	}
	handle(t, h.sup, textEv(supChat, supUser, "+201000000000"))
	if !h.supOut.saw(txtSupSubscribed) || h.sup.Step(supChat) != SupMainMenu {
		t.Fatalf("step = %v", h.sup.Step(supChat))
	}
	if !h.supOut.hasButton("menu_show_all") || !h.supOut.hasButton("menu_query_issue") {
		t.Error("main menu missing")
	}
}

func TestSupervisor_SolveNotifiesDA(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")

	handle(t, h.sup, press(supChat, supUser, "solve|"+itoa(tk.ID)))
	if h.sup.Step(supChat) != SupAwaitingResponse {
		t.Fatalf("step = %v", h.sup.Step(supChat))
	}
	if prompt := h.supOut.sent[len(h.supOut.sent)-1]; prompt.Text != txtSupSolvePrompt || !prompt.ForceReply {
		t.Errorf("prompt = %+v", prompt)
	}
	handle(t, h.sup, textEv(supChat, supUser, "رد بالمخزون"))

	got := h.get(tk.ID)
	if got.Status != protocol.StatusPendingDAAction || len(got.Log) != 2 {
		t.Fatalf("ticket = %+v", got)
	}
	if last := got.Log[1]; last.Action != protocol.ActionSupervisorSolution || last.Message != "رد بالمخزون" || last.ActorID != supUser {
		t.Errorf("entry = %+v", last)
	}
	if protocol.Replay(got.Log) != got.Status {
		t.Error("log does not replay to status")
	}
	da := h.daOut.sentTo(daChat)
	if len(da) != 1 || !strings.Contains(da[0].Text, "رد بالمخزون") {
		t.Errorf("DA messages = %+v", da)
	}
	if !h.supOut.saw(txtSupSolutionSent) || h.sup.Step(supChat) != SupMainMenu {
		t.Errorf("step = %v", h.sup.Step(supChat))
	}
}

func TestSupervisor_MoreInfo(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")

	handle(t, h.sup, press(supChat, supUser, "moreinfo|"+itoa(tk.ID)))
	handle(t, h.sup, textEv(supChat, supUser, "which carton?"))

	got := h.get(tk.ID)
	if got.Status != protocol.StatusPendingDAResponse || got.Log[1].Action != protocol.ActionRequestMoreInfo {
		t.Errorf("ticket = %+v", got)
	}
	if !h.supOut.saw(txtSupRequestSent) || len(h.daOut.sentTo(daChat)) != 1 {
		t.Error("DA not notified")
	}
}

func TestSupervisor_SolveMissingTicket(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	handle(t, h.sup, press(supChat, supUser, "solve|404"))
	if h.supOut.last() != txtNotFound || h.sup.Step(supChat) == SupAwaitingResponse {
		t.Errorf("step = %v, last = %q", h.sup.Step(supChat), h.supOut.last())
	}
}

func TestSupervisor_ShowAllSendsEachTicket(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	a := h.createTicket("Acme")
	b := h.createTicket("Globex")
	closed := h.createTicket("Acme")
	h.transition(closed.ID, protocol.StatusClosed, protocol.ActionSupervisorClosed, "")

	handle(t, h.sup, press(supChat, supUser, "menu_show_all"))
	got := h.supOut.sentTo(supChat)
	if len(got) != 2 {
		t.Fatalf("sent %d messages", len(got))
	}
	if got[0].Buttons[0][0].Data != "view|"+itoa(a.ID) || got[1].Buttons[0][0].Data != "view|"+itoa(b.ID) {
		t.Errorf("buttons = %+v / %+v", got[0].Buttons, got[1].Buttons)
	}
}

func TestSupervisor_ShowAllEmpty(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	handle(t, h.sup, press(supChat, supUser, "menu_show_all"))
	if h.supOut.last() != txtSupNoOpen {
		t.Errorf("last = %q", h.supOut.last())
	}
}

func TestSupervisor_Search(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	h.createTicket("Acme")

	handle(t, h.sup, press(supChat, supUser, "menu_query_issue"))
	if h.sup.Step(supChat) != SupSearchTickets {
		t.Fatalf("step = %v", h.sup.Step(supChat))
	}
	handle(t, h.sup, textEv(supChat, supUser, "234"))
	if !h.supOut.hasButton("view|1") {
		t.Error("matching ticket not listed")
	}

	handle(t, h.sup, press(supChat, supUser, "menu_query_issue"))
	handle(t, h.sup, textEv(supChat, supUser, "999"))
	if !h.supOut.saw(txtSupNoMatch) {
		t.Error("no-match message missing")
	}
}

func TestSupervisor_ViewGatesActions(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")
	view := press(supChat, supUser, "view|"+itoa(tk.ID))
	view.MessageID = 77
	view.MessageHasPhoto = true

	handle(t, h.sup, view)
	edit := h.supOut.edits[len(h.supOut.edits)-1]
	if edit.MessageID != 77 || !edit.HasPhoto || !strings.Contains(edit.Text, "السجلات") {
		t.Fatalf("edit = %+v", edit)
	}
	if hasData(edit.Buttons, "sendto_da|1") || hasData(edit.Buttons, "close|1") {
		t.Errorf("Opened ticket offers gated actions: %+v", edit.Buttons)
	}
	for _, want := range []string{"solve|1", "moreinfo|1", "sendclient|1"} {
		if !hasData(edit.Buttons, want) {
			t.Errorf("missing %s", want)
		}
	}

	h.transition(tk.ID, protocol.StatusClientResponded, protocol.ActionClientSolution, "ok")
	handle(t, h.sup, view)
	if edit := h.supOut.edits[len(h.supOut.edits)-1]; !hasData(edit.Buttons, "sendto_da|1") {
		t.Error("ClientResponded must offer forwarding")
	}

	h.transition(tk.ID, protocol.StatusAwaitingSupervisorApproval, protocol.ActionDAActionDone, "")
	handle(t, h.sup, view)
	if edit := h.supOut.edits[len(h.supOut.edits)-1]; !hasData(edit.Buttons, "close|1") {
		t.Error("AwaitingSupervisorApproval must offer close")
	}
}

func TestSupervisor_SendToClientRequiresConfirmation(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")

	handle(t, h.sup, press(supChat, supUser, "confirm_sendclient|"+itoa(tk.ID)))
	if h.supOut.last() != txtStale || h.get(tk.ID).Status != protocol.StatusOpened {
		t.Fatal("unconfirmed send went through")
	}

	handle(t, h.sup, press(supChat, supUser, "sendclient|"+itoa(tk.ID)))
	if h.sup.Step(supChat) != SupConfirmSendClient || h.get(tk.ID).Status != protocol.StatusOpened {
		t.Fatalf("step = %v", h.sup.Step(supChat))
	}
	if len(h.cliOut.sent) != 0 {
		t.Fatal("client notified before confirmation")
	}

	handle(t, h.sup, press(supChat, supUser, "confirm_sendclient|"+itoa(tk.ID)))
	got := h.get(tk.ID)
	if got.Status != protocol.StatusAwaitingClientResponse || got.Log[1].Action != protocol.ActionSentToClient {
		t.Errorf("ticket = %+v", got)
	}
	if len(h.cliOut.sentTo(cliChat)) != 1 {
		t.Error("client not notified")
	}
	if h.supOut.last() != txtSupSentClient {
		t.Errorf("last = %q", h.supOut.last())
	}
}

func TestSupervisor_ClosedTicketStaysClosed(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")
	id := itoa(tk.ID)

	// A confirmation armed before the ticket closed must not reopen it.
	handle(t, h.sup, press(supChat, supUser, "sendclient|"+id))
	h.transition(tk.ID, protocol.StatusClosed, protocol.ActionSupervisorClosed, "")
	handle(t, h.sup, press(supChat, supUser, "confirm_sendclient|"+id))
	if h.supOut.last() != txtFinalized {
		t.Errorf("last = %q", h.supOut.last())
	}

	for _, data := range []string{"sendclient|" + id, "solve|" + id, "moreinfo|" + id} {
		handle(t, h.sup, press(supChat, supUser, data))
		if h.supOut.last() != txtFinalized || h.sup.Step(supChat) != SupMainMenu {
			t.Errorf("%s: step = %v, last = %q", data, h.sup.Step(supChat), h.supOut.last())
		}
	}

	handle(t, h.sup, press(supChat, supUser, "view|"+id))
	sent := h.supOut.sentTo(supChat)
	if detail := sent[len(sent)-1]; len(detail.Buttons) != 0 {
		t.Errorf("closed ticket offers actions: %+v", detail.Buttons)
	}

	got := h.get(tk.ID)
	if got.Status != protocol.StatusClosed || len(got.Log) != 2 {
		t.Errorf("status=%q log=%d", got.Status, len(got.Log))
	}
	if len(h.cliOut.sent) != 0 {
		t.Error("client notified about a closed ticket")
	}
}

func TestSupervisor_SendToClientCancel(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")

	handle(t, h.sup, press(supChat, supUser, "sendclient|"+itoa(tk.ID)))
	handle(t, h.sup, press(supChat, supUser, "cancel_sendclient|"+itoa(tk.ID)))
	if h.supOut.last() != txtSupCancelClient || h.get(tk.ID).Status != protocol.StatusOpened {
		t.Error("cancel changed the ticket")
	}
	handle(t, h.sup, press(supChat, supUser, "confirm_sendclient|"+itoa(tk.ID)))
	if h.supOut.last() != txtStale {
		t.Error("confirmation after cancel accepted")
	}
}

func TestSupervisor_SendToClientWithoutSubscribers(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Globex")

	handle(t, h.sup, press(supChat, supUser, "sendclient|"+itoa(tk.ID)))
	handle(t, h.sup, press(supChat, supUser, "confirm_sendclient|"+itoa(tk.ID)))
	if !strings.Contains(h.supOut.last(), "Globex") {
		t.Errorf("last = %q", h.supOut.last())
	}
	if h.get(tk.ID).Status != protocol.StatusAwaitingClientResponse {
		t.Error("status must still change")
	}
}

func TestSupervisor_ForwardUsesLatestClientSolution(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")
	h.transition(tk.ID, protocol.StatusClientResponded, protocol.ActionClientSolution, "first answer")
	h.transition(tk.ID, protocol.StatusClientResponded, protocol.ActionClientSolution, "second answer")

	handle(t, h.sup, press(supChat, supUser, "sendto_da|"+itoa(tk.ID)))
	if h.sup.Step(supChat) != SupConfirmForwardToDA || h.supOut.last() != txtSupConfirmForward {
		t.Fatalf("step = %v", h.sup.Step(supChat))
	}
	handle(t, h.sup, press(supChat, supUser, "confirm_sendto_da|"+itoa(tk.ID)))

	got := h.get(tk.ID)
	last := got.Log[len(got.Log)-1]
	if got.Status != protocol.StatusPendingDAAction || last.Action != protocol.ActionSupervisorForward || last.Message != "second answer" {
		t.Errorf("ticket = %+v", got)
	}
	if da := h.daOut.sentTo(daChat); len(da) != 1 || !strings.Contains(da[0].Text, "second answer") {
		t.Errorf("DA messages = %+v", da)
	}
}

func TestSupervisor_ForwardWithoutClientSolution(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")
	h.transition(tk.ID, protocol.StatusClientResponded, protocol.ActionClientFinalResponse, "")

	handle(t, h.sup, press(supChat, supUser, "sendto_da|"+itoa(tk.ID)))
	handle(t, h.sup, press(supChat, supUser, "confirm_sendto_da|"+itoa(tk.ID)))
	got := h.get(tk.ID)
	if msg := got.Log[len(got.Log)-1].Message; msg != txtSupNoSolution {
		t.Errorf("message = %q", msg)
	}
}

func TestSupervisor_ForwardRequiresClientResponse(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")

	handle(t, h.sup, press(supChat, supUser, "sendto_da|"+itoa(tk.ID)))
	if h.supOut.last() != txtWrongStatus || h.sup.Step(supChat) == SupConfirmForwardToDA {
		t.Errorf("last = %q", h.supOut.last())
	}
}

func TestSupervisor_Close(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	tk := h.createTicket("Acme")

	handle(t, h.sup, press(supChat, supUser, "close|"+itoa(tk.ID)))
	if h.supOut.last() != txtWrongStatus || h.get(tk.ID).Status != protocol.StatusOpened {
		t.Fatal("closed a ticket that was not awaiting approval")
	}

	h.transition(tk.ID, protocol.StatusAwaitingSupervisorApproval, protocol.ActionDAActionDone, "")
	handle(t, h.sup, press(supChat, supUser, "close|"+itoa(tk.ID)))
	got := h.get(tk.ID)
	if got.Status != protocol.StatusClosed || got.Log[len(got.Log)-1].Action != protocol.ActionSupervisorClosed {
		t.Errorf("ticket = %+v", got)
	}
	if len(h.daOut.sentTo(daChat)) != 1 {
		t.Error("DA not notified")
	}
}

func TestSupervisor_UnknownAction(t *testing.T) {
	h := newHarness(t)
	h.subscribeAll()
	handle(t, h.sup, startCmd(supChat, supUser))
	handle(t, h.sup, press(supChat, supUser, "set_issue_reason"))
	if h.supOut.last() != txtUnknownAction || h.sup.Step(supChat) != SupMainMenu {
		t.Errorf("step = %v, last = %q", h.sup.Step(supChat), h.supOut.last())
	}
	// A DA-only action decodes but is not a Supervisor action.
	handle(t, h.sup, press(supChat, supUser, "attach_yes"))
	if h.supOut.last() != txtUnknownAction || h.sup.Step(supChat) != SupMainMenu {
		t.Errorf("step = %v, last = %q", h.sup.Step(supChat), h.supOut.last())
	}
}

func hasData(rows [][]connector.Button, data string) bool {
	for _, row := range rows {
		for _, b := range row {
			if b.Data == data {
				return true
			}
		}
	}
	return false
}
