// Package orders fetches a delivery agent's orders from the dispatch API.
package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/fieldops-io/fieldops/internal/metrics"
	"github.com/fieldops-io/fieldops/pkg/protocol"
)

const upstreamName = "orders"

// Order is one delivery assigned to an agent.
type Order struct {
	ID     string
	Client string
}

// Source lists the orders assigned to an agent phone.
type Source interface {
	Orders(ctx context.Context, agentPhone string) ([]Order, error)
}

// Config configures the dispatch API client.
type Config struct {
	BaseURL       string
	ReferenceDate string // sent verbatim as order_date
	Timeout       time.Duration
}

// Client implements Source over HTTP.
type Client struct {
	http          *resty.Client
	referenceDate string
	logger        *slog.Logger
}

var _ Source = (*Client)(nil)

// New creates a dispatch API client.
func New(cfg Config, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		http: resty.New().
			SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
			SetHeader("User-Agent", "fieldops/1.0").
			SetTimeout(timeout),
		referenceDate: cfg.ReferenceDate,
		logger:        logger.With("component", "orders"),
	}
}

type ordersResponse struct {
	Data []struct {
		OrderID    orderID `json:"order_id"`
		ClientName string  `json:"client_name"`
	} `json:"data"`
}

// orderID accepts both numeric and string order ids.
type orderID string

func (o *orderID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*o = orderID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("order_id: %w", err)
	}
	*o = orderID(n.String())
	return nil
}

// Orders returns the agent's orders for the configured reference date.
// Any transport, status, or decoding failure wraps protocol.ErrUpstreamUnavailable.
func (c *Client) Orders(ctx context.Context, agentPhone string) ([]Order, error) {
	start := time.Now()
	defer func() {
		metrics.UpstreamDuration.WithLabelValues(upstreamName).Observe(time.Since(start).Seconds())
	}()

	var result ordersResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("agent_phone", agentPhone).
		SetQueryParam("order_date", c.referenceDate).
		SetResult(&result).
		Get("")
	if err != nil {
		return nil, c.fail(fmt.Errorf("orders: fetch: %w: %v", protocol.ErrUpstreamUnavailable, err))
	}
	if resp.IsError() {
		return nil, c.fail(fmt.Errorf("orders: fetch: %w: status %d", protocol.ErrUpstreamUnavailable, resp.StatusCode()))
	}

	orders := make([]Order, 0, len(result.Data))
	for _, d := range result.Data {
		id := strings.TrimSpace(string(d.OrderID))
		if id == "" {
			continue
		}
		orders = append(orders, Order{ID: id, Client: strings.TrimSpace(d.ClientName)})
	}
	c.logger.Debug("orders fetched", "count", len(orders), "duration", time.Since(start))
	return orders, nil
}

func (c *Client) fail(err error) error {
	metrics.UpstreamFailuresTotal.WithLabelValues(upstreamName).Inc()
	c.logger.Warn("order source unavailable", "error", err)
	return err
}

// ParseManual parses a manual "order_id,client" entry. The Arabic comma
// is accepted as the separator too.
func ParseManual(text string) (Order, error) {
	id, client, ok := strings.Cut(strings.ReplaceAll(text, "،", ","), ",")
	id, client = strings.TrimSpace(id), strings.TrimSpace(client)
	if !ok || id == "" || client == "" {
		return Order{}, fmt.Errorf("%w: expected order_id,client", protocol.ErrInvalidInput)
	}
	return Order{ID: id, Client: client}, nil
}
