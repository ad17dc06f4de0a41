package ticket

import (
	"context"
	"time"

	"github.com/fieldops-io/fieldops/pkg/protocol"
)

// Store is the persistence interface for tickets and their logs.
type Store interface {
	// Insert creates a ticket and returns its store-assigned ID.
	Insert(ctx context.Context, t *protocol.Ticket) (int64, error)
	// Get retrieves a ticket by ID, including its log.
	Get(ctx context.Context, id int64) (*protocol.Ticket, error)
	// List returns tickets matching the filter, oldest first.
	List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error)
	// Count returns the number of tickets matching the filter.
	Count(ctx context.Context, filter Filter) (int, error)
	// Append adds entries to a ticket's log and sets its status to the
	// status of the last entry, in one atomic write. When guard is not
	// empty and the ticket currently holds one of those statuses, nothing
	// is written and the error wraps protocol.ErrAlreadyFinalized.
	Append(ctx context.Context, id int64, guard []protocol.TicketStatus, entries ...protocol.LogEntry) error
}

// SubscriptionStore persists identity-to-chat bindings.
type SubscriptionStore interface {
	// SaveSubscription inserts or overwrites the row for (UserID, Role).
	SaveSubscription(ctx context.Context, sub protocol.Subscription) error
	GetSubscription(ctx context.Context, userID int64, role protocol.Role) (*protocol.Subscription, error)
	ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]protocol.Subscription, error)
}

// Filter constrains ticket list queries.
type Filter struct {
	Statuses     []protocol.TicketStatus // any of
	ReporterID   int64                   // 0 = any
	Client       string                  // exact match, "" = any
	OrderQuery   string                  // substring of order_id
	CreatedSince time.Time               // zero = any
	Limit        int                     // 0 = no limit
}

// SubscriptionFilter constrains subscription list queries.
type SubscriptionFilter struct {
	Role   protocol.Role // "" = any
	Client string        // exact match, "" = any
}
