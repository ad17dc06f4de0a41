package conversation

import (
	"errors"
	"testing"

	"github.com/fieldops-io/fieldops/pkg/protocol"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		data string
		want Command
	}{
		{"menu_add_issue", Command{Kind: CmdAddIssue}},
		{"select_order|3", Command{Kind: CmdSelectOrder, Index: 3}},
		{"set_issue_reason|supp", Command{Kind: CmdSetReason, Arg: "supp"}},
		{"set_issue_type|cli|4", Command{Kind: CmdSetType, Arg: "cli", Index: 4}},
		{"edit_field|image", Command{Kind: CmdEditField, Arg: "image"}},
		{"view|42", Command{Kind: CmdView, TicketID: 42}},
		{"confirm_sendclient|7", Command{Kind: CmdConfirmSendClient, TicketID: 7}},
		{"notify_pref|9|15", Command{Kind: CmdNotifyPref, TicketID: 9, Arg: PrefLong}},
		{"ignore|1", Command{Kind: CmdIgnore, TicketID: 1}},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, err := ParseCommand(tt.data)
			if err != nil {
				t.Fatalf("ParseCommand: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
			if tok := got.Token(); tok != tt.data {
				t.Errorf("Token() = %q", tok)
			}
		})
	}
}

func TestParseCommand_Invalid(t *testing.T) {
	for _, data := range []string{
		"",
		"escalate|1",
		"view",
		"view|1|2",
		"view|abc",
		"view|-3",
		"select_order|x",
		"set_issue_type|stor",
		"notify_pref|1|30",
		"menu_add_issue|1",
	} {
		cmd, err := ParseCommand(data)
		if !errors.Is(err, protocol.ErrInvalidInput) {
			t.Errorf("%q: expected ErrInvalidInput, got %v", data, err)
		}
		if cmd.Kind != CmdUnknown {
			t.Errorf("%q: kind = %v", data, cmd.Kind)
		}
	}
}

func TestParseCommand_SharedTicketTokens(t *testing.T) {
	for action, want := range map[string]CommandKind{
		protocol.CallbackView:       CmdView,
		protocol.CallbackDAView:     CmdDAView,
		protocol.CallbackClientView: CmdClientView,
	} {
		cmd, err := ParseCommand(protocol.TicketCallback(action, 5))
		if err != nil || cmd.Kind != want || cmd.TicketID != 5 {
			t.Errorf("%s: got %+v, %v", action, cmd, err)
		}
	}
}

func TestTokens_FitCallbackLimit(t *testing.T) {
	for _, r := range Reasons {
		for i := range r.Types {
			tok := Command{Kind: CmdSetType, Arg: r.Code, Index: i}.Token()
			if len(tok) > 64 {
				t.Errorf("%q is %d bytes", tok, len(tok))
			}
		}
	}
	long := Command{Kind: CmdConfirmForwardToDA, TicketID: 1<<53 - 1}.Token()
	if len(long) > 64 {
		t.Errorf("%q is %d bytes", long, len(long))
	}
}

func TestSpecs_Unique(t *testing.T) {
	seen := map[CommandKind]bool{}
	for _, s := range specs {
		if seen[s.kind] {
			t.Errorf("kind %v registered twice", s.kind)
		}
		seen[s.kind] = true
	}
}

func TestReasons(t *testing.T) {
	if len(Reasons) != 4 {
		t.Fatalf("reasons = %d", len(Reasons))
	}
	r, ok := ReasonByCode("stor")
	if !ok || r.Label != "المخزن" {
		t.Fatalf("stor = %+v", r)
	}
	if typ, ok := r.TypeAt(0); !ok || typ != "تالف" {
		t.Errorf("TypeAt(0) = %q", typ)
	}
	if _, ok := r.TypeAt(len(r.Types)); ok {
		t.Error("out of range index accepted")
	}
}

func TestNormalizePhone(t *testing.T) {
	valid := map[string]string{
		"0100000000":       "0100000000",
		"+20 100 000 0000": "+201000000000",
		"010-000-0000":     "0100000000",
	}
	for in, want := range valid {
		got, err := normalizePhone(in)
		if err != nil || got != want {
			t.Errorf("normalizePhone(%q) = %q, %v", in, got, err)
		}
	}
	for _, in := range []string{"", "12345", "1234567890123456", "01000abc00", "++0100000000"} {
		if _, err := normalizePhone(in); !errors.Is(err, protocol.ErrInvalidInput) {
			t.Errorf("normalizePhone(%q) accepted", in)
		}
	}
}
