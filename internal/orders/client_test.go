package orders

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fieldops-io/fieldops/pkg/protocol"
)

func jsonServer(t *testing.T, status int, body string, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestOrders(t *testing.T) {
	var phone, date string
	srv := jsonServer(t, http.StatusOK,
		`{"data":[{"order_id":12345,"client_name":"Acme"},{"order_id":"A-7","client_name":" Globex "},{"order_id":"","client_name":"x"}]}`,
		func(r *http.Request) {
			phone = r.URL.Query().Get("agent_phone")
			date = r.URL.Query().Get("order_date")
		})

	c := New(Config{BaseURL: srv.URL, ReferenceDate: "2024-11-05"}, nil)
	got, err := c.Orders(context.Background(), "0100000000")
	if err != nil {
		t.Fatalf("Orders: %v", err)
	}
	if phone != "0100000000" || date != "2024-11-05" {
		t.Errorf("query agent_phone=%q order_date=%q", phone, date)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 orders, got %+v", got)
	}
	if got[0] != (Order{ID: "12345", Client: "Acme"}) || got[1] != (Order{ID: "A-7", Client: "Globex"}) {
		t.Errorf("orders = %+v", got)
	}
}

func TestOrders_Empty(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"data":null}`, nil)
	got, err := New(Config{BaseURL: srv.URL}, nil).Orders(context.Background(), "1")
	if err != nil || len(got) != 0 {
		t.Errorf("got %v, %v", got, err)
	}
}

func TestOrders_ServerError(t *testing.T) {
	srv := jsonServer(t, http.StatusBadGateway, `{"message":"down"}`, nil)
	_, err := New(Config{BaseURL: srv.URL}, nil).Orders(context.Background(), "1")
	if !errors.Is(err, protocol.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestOrders_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(300 * time.Millisecond)
	}))
	defer srv.Close()

	c := New(Config{BaseURL: srv.URL, Timeout: 50 * time.Millisecond}, nil)
	_, err := c.Orders(context.Background(), "1")
	if !errors.Is(err, protocol.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestOrders_BadJSON(t *testing.T) {
	srv := jsonServer(t, http.StatusOK, `{"data":[{"order_id":{}}]}`, nil)
	_, err := New(Config{BaseURL: srv.URL}, nil).Orders(context.Background(), "1")
	if !errors.Is(err, protocol.ErrUpstreamUnavailable) {
		t.Errorf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestParseManual(t *testing.T) {
	cases := []struct {
		in      string
		want    Order
		wantErr bool
	}{
		{in: "12345,Acme", want: Order{ID: "12345", Client: "Acme"}},
		{in: " 12345 ، شركة النور ", want: Order{ID: "12345", Client: "شركة النور"}},
		{in: "12345", wantErr: true},
		{in: ",Acme", wantErr: true},
		{in: "12345,", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseManual(tc.in)
		if tc.wantErr {
			if !errors.Is(err, protocol.ErrInvalidInput) {
				t.Errorf("ParseManual(%q) err = %v", tc.in, err)
			}
			continue
		}
		if err != nil || got != tc.want {
			t.Errorf("ParseManual(%q) = %+v, %v", tc.in, got, err)
		}
	}
}
