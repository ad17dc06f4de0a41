// Package api serves a read-only admin view of tickets, subscriptions and
// recent logs, plus the Prometheus scrape endpoint.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fieldops-io/fieldops/internal/logbuf"
	"github.com/fieldops-io/fieldops/internal/metrics"
	"github.com/fieldops-io/fieldops/internal/ticket"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// Tickets is the read side of the ticket engine.
type Tickets interface {
	List(ctx context.Context, f ticket.Filter) ([]*protocol.Ticket, error)
	Get(ctx context.Context, id int64) (*protocol.Ticket, error)
}

// Subscriptions lists identity bindings.
type Subscriptions interface {
	ListSubscriptions(ctx context.Context, f ticket.SubscriptionFilter) ([]protocol.Subscription, error)
}

// LogQuerier reads captured log entries.
type LogQuerier interface {
	Query(f logbuf.Filter) []logbuf.Entry
}

// Config holds API server configuration.
type Config struct {
	Host string
	Port int
	Key  string // Bearer token, empty disables auth
}

// Server is the fieldops admin API.
type Server struct {
	tickets Tickets
	subs    Subscriptions
	logs    LogQuerier
	cfg     Config
	logger  *slog.Logger
	srv     *http.Server
}

// NewServer creates an API server. logs may be nil.
func NewServer(tickets Tickets, subs Subscriptions, logs LogQuerier, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		tickets: tickets,
		subs:    subs,
		logs:    logs,
		cfg:     cfg,
		logger:  logger.With("component", "api"),
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/tickets", s.requireAuth(s.handleListTickets))
	mux.HandleFunc("GET /api/tickets/{id}", s.requireAuth(s.handleGetTicket))
	mux.HandleFunc("GET /api/subscriptions", s.requireAuth(s.handleListSubscriptions))
	mux.HandleFunc("GET /api/logs", s.requireAuth(s.handleGetLogs))
	mux.Handle("GET /metrics", metrics.Handler())

	s.srv = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:           s.corsMiddleware(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Start listens until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.srv.Shutdown(shutCtx)
	}()

	s.logger.Info("api server starting", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("api: listen: %w", err)
	}
	return nil
}

// Handler returns the root handler, for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.Key == "" {
			next(w, r)
			return
		}
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token != s.cfg.Key {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var f ticket.Filter
	for _, raw := range q["status"] {
		st, ok := parseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", raw))
			return
		}
		f.Statuses = append(f.Statuses, st)
	}
	if q.Get("open") == "true" {
		f.Statuses = append(f.Statuses, protocol.OpenStatuses()...)
	}
	f.Client = q.Get("client")
	f.OrderQuery = q.Get("order")
	if v := q.Get("reporter"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "reporter must be a user id")
			return
		}
		f.ReporterID = n
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be RFC3339")
			return
		}
		f.CreatedSince = ts
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}

	tickets, err := s.tickets.List(r.Context(), f)
	if err != nil {
		s.logger.Error("list tickets", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if tickets == nil {
		tickets = []*protocol.Ticket{}
	}
	writeJSON(w, http.StatusOK, tickets)
}

func (s *Server) handleGetTicket(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid ticket id")
		return
	}
	t, err := s.tickets.Get(r.Context(), id)
	switch {
	case errors.Is(err, protocol.ErrNotFound):
		writeError(w, http.StatusNotFound, "ticket not found")
	case err != nil:
		s.logger.Error("get ticket", "ticket_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, t)
	}
}

func (s *Server) handleListSubscriptions(w http.ResponseWriter, r *http.Request) {
	var f ticket.SubscriptionFilter
	if v := r.URL.Query().Get("role"); v != "" {
		role, err := protocol.ParseRole(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		f.Role = role
	}
	f.Client = r.URL.Query().Get("client")

	subs, err := s.subs.ListSubscriptions(r.Context(), f)
	if err != nil {
		s.logger.Error("list subscriptions", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if subs == nil {
		subs = []protocol.Subscription{}
	}
	writeJSON(w, http.StatusOK, subs)
}

// handleGetLogs filters by since (unix ms), level, limit, ticket_id and role.
func (s *Server) handleGetLogs(w http.ResponseWriter, r *http.Request) {
	if s.logs == nil {
		writeJSON(w, http.StatusOK, []logbuf.Entry{})
		return
	}
	q := r.URL.Query()

	f := logbuf.Filter{MinLevel: slog.LevelDebug, Limit: 200}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			f.Limit = n
		}
	}
	if v := q.Get("level"); v != "" {
		f.MinLevel = logbuf.ParseLevel(v)
	}
	if v := q.Get("since"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.Since = time.UnixMilli(ms)
		}
	}
	for _, key := range []string{"ticket_id", "role", "chat_id"} {
		if v := q.Get(key); v != "" {
			if f.Attrs == nil {
				f.Attrs = make(map[string]string)
			}
			f.Attrs[key] = v
		}
	}

	entries := s.logs.Query(f)
	if entries == nil {
		entries = []logbuf.Entry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func parseStatus(s string) (protocol.TicketStatus, bool) {
	for _, st := range protocol.AllStatuses {
		if strings.EqualFold(string(st), s) {
			return st, true
		}
	}
	return "", false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
