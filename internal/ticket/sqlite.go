package ticket

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	migrate "github.com/rubenv/sql-migrate"
	_ "modernc.org/sqlite"

	"github.com/fieldops-io/fieldops/pkg/protocol"
)

//go:embed migrations/*.sql
var migrations embed.FS

// legacyTimeLayout is what SQLite's CURRENT_TIMESTAMP produces.
const legacyTimeLayout = "2006-01-02 15:04:05"

const ticketColumns = `ticket_id, order_id, issue_description, issue_reason, issue_type, client,
	image_url, status, da_id, logs, COALESCE(CAST(created_at AS TEXT), '')`

const subscriptionColumns = `user_id, role, COALESCE(phone, ''), COALESCE(client, ''),
	COALESCE(username, ''), COALESCE(first_name, ''), COALESCE(last_name, ''), chat_id`

// SQLiteStore implements Store and SubscriptionStore using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database and applies pending migrations.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if _, err := Migrate(db); err != nil {
		db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db}, nil
}

// Open opens the database without migrating it.
func Open(path string) (*sql.DB, error) {
	// busy_timeout is per connection, so it has to ride on the DSN.
	dsn := "file:" + path + "?_pragma=busy_timeout(10000)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}

	// Enable WAL mode for better concurrent reads
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("ticket store: wal: %w", err)
	}
	return db, nil
}

// Migrate applies every pending embedded migration and returns how many ran.
func Migrate(db *sql.DB) (int, error) {
	n, err := migrate.Exec(db, "sqlite3", migrationSource(), migrate.Up)
	if err != nil {
		return n, fmt.Errorf("ticket store: migrate: %w", err)
	}
	return n, nil
}

// MigrateDown rolls back at most max migrations.
func MigrateDown(db *sql.DB, max int) (int, error) {
	n, err := migrate.ExecMax(db, "sqlite3", migrationSource(), migrate.Down, max)
	if err != nil {
		return n, fmt.Errorf("ticket store: migrate down: %w", err)
	}
	return n, nil
}

func migrationSource() migrate.MigrationSource {
	return &migrate.EmbedFileSystemMigrationSource{
		FileSystem: migrations,
		Root:       "migrations",
	}
}

func (s *SQLiteStore) Insert(ctx context.Context, t *protocol.Ticket) (int64, error) {
	logs, err := json.Marshal(t.Log)
	if err != nil {
		return 0, fmt.Errorf("ticket store: insert: encode log: %w", err)
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (order_id, issue_description, issue_reason, issue_type, client, image_url, status, da_id, logs, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.OrderID, t.Description, t.IssueReason, t.IssueType, t.Client, t.ImageURL,
		string(t.Status), t.ReporterID, string(logs), formatTime(t.CreatedAt))
	if err != nil {
		return 0, fmt.Errorf("ticket store: insert: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("ticket store: insert: last id: %w", err)
	}
	return id, nil
}

func (s *SQLiteStore) Get(ctx context.Context, id int64) (*protocol.Ticket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_id = ?`, id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %d: %w", id, protocol.ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error) {
	where, args := filter.where()
	query := `SELECT ` + ticketColumns + ` FROM tickets WHERE ` + where + ` ORDER BY ticket_id`
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	var tickets []*protocol.Ticket
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) Count(ctx context.Context, filter Filter) (int, error) {
	where, args := filter.where()
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM tickets WHERE `+where, args...).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("ticket store: count: %w", err)
	}
	return count, nil
}

func (s *SQLiteStore) Append(ctx context.Context, id int64, guard []protocol.TicketStatus, entries ...protocol.LogEntry) error {
	if len(entries) == 0 {
		return fmt.Errorf("ticket store: append: %w: no log entries", protocol.ErrInvalidInput)
	}

	// A single UPDATE keeps the log append and the status change atomic
	// with respect to any other writer on the same row.
	var b strings.Builder
	args := []any{string(entries[len(entries)-1].Status)}
	b.WriteString(`UPDATE tickets SET status = ?, logs = json_insert(COALESCE(NULLIF(logs, ''), '[]')`)
	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("ticket store: append: encode entry: %w", err)
		}
		b.WriteString(`, '$[#]', json(?)`)
		args = append(args, string(data))
	}
	b.WriteString(`) WHERE ticket_id = ?`)
	args = append(args, id)
	if len(guard) > 0 {
		b.WriteString(` AND status NOT IN (` + placeholders(len(guard)) + `)`)
		for _, g := range guard {
			args = append(args, string(g))
		}
	}

	res, err := s.db.ExecContext(ctx, b.String(), args...)
	if err != nil {
		return fmt.Errorf("ticket store: append: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM tickets WHERE ticket_id = ?`, id).Scan(&status)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("ticket %d: %w", id, protocol.ErrNotFound)
	case err != nil:
		return fmt.Errorf("ticket store: append: %w", err)
	default:
		return fmt.Errorf("ticket %d is %q: %w", id, status, protocol.ErrAlreadyFinalized)
	}
}

func (s *SQLiteStore) SaveSubscription(ctx context.Context, sub protocol.Subscription) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO subscriptions (user_id, role, bot, phone, client, username, first_name, last_name, chat_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, bot) DO UPDATE SET
			role=excluded.role, phone=excluded.phone, client=excluded.client, username=excluded.username,
			first_name=excluded.first_name, last_name=excluded.last_name, chat_id=excluded.chat_id
	`, sub.UserID, string(sub.Role), string(sub.Role), sub.Phone, sub.Client,
		sub.Username, sub.FirstName, sub.LastName, sub.ChatID)
	if err != nil {
		return fmt.Errorf("ticket store: save subscription: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetSubscription(ctx context.Context, userID int64, role protocol.Role) (*protocol.Subscription, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+subscriptionColumns+` FROM subscriptions WHERE user_id = ? AND bot = ?`,
		userID, string(role))
	sub, err := scanSubscription(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("subscription %d/%s: %w", userID, role, protocol.ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: get subscription: %w", err)
	}
	return sub, nil
}

func (s *SQLiteStore) ListSubscriptions(ctx context.Context, filter SubscriptionFilter) ([]protocol.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE 1=1`
	var args []any
	if filter.Role != "" {
		query += " AND role = ?"
		args = append(args, string(filter.Role))
	}
	if filter.Client != "" {
		query += " AND client = ?"
		args = append(args, filter.Client)
	}
	query += " ORDER BY role, user_id"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []protocol.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list subscriptions scan: %w", err)
		}
		subs = append(subs, *sub)
	}
	return subs, rows.Err()
}

// DB returns the underlying database connection (for testing or direct access).
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers ---

func (f Filter) where() (string, []any) {
	clauses := []string{"1=1"}
	var args []any

	if len(f.Statuses) > 0 {
		clauses = append(clauses, "status IN ("+placeholders(len(f.Statuses))+")")
		for _, st := range f.Statuses {
			args = append(args, string(st))
		}
	}
	if f.ReporterID != 0 {
		clauses = append(clauses, "da_id = ?")
		args = append(args, f.ReporterID)
	}
	if f.Client != "" {
		clauses = append(clauses, "client = ?")
		args = append(args, f.Client)
	}
	if f.OrderQuery != "" {
		clauses = append(clauses, `order_id LIKE ? ESCAPE '\'`)
		args = append(args, "%"+escapeLike(f.OrderQuery)+"%")
	}
	if !f.CreatedSince.IsZero() {
		clauses = append(clauses, "created_at >= ?")
		args = append(args, formatTime(f.CreatedSince))
	}
	return strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// formatTime renders UTC in the legacy CURRENT_TIMESTAMP layout so rows
// written by either path compare correctly as text.
func formatTime(t time.Time) string {
	return t.UTC().Format(legacyTimeLayout)
}

func parseTime(s string) time.Time {
	if t, err := time.Parse(legacyTimeLayout, s); err == nil {
		return t
	}
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(s scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var status, logsJSON, createdAt string

	err := s.Scan(&t.ID, &t.OrderID, &t.Description, &t.IssueReason, &t.IssueType, &t.Client,
		&t.ImageURL, &status, &t.ReporterID, &logsJSON, &createdAt)
	if err != nil {
		return nil, err
	}

	t.Status = protocol.TicketStatus(status)
	t.CreatedAt = parseTime(createdAt)
	if logsJSON != "" {
		if err := json.Unmarshal([]byte(logsJSON), &t.Log); err != nil {
			return nil, fmt.Errorf("decode log of ticket %d: %w", t.ID, err)
		}
	}
	if t.Log == nil {
		t.Log = []protocol.LogEntry{}
	}
	return &t, nil
}

func scanSubscription(s scannable) (*protocol.Subscription, error) {
	var sub protocol.Subscription
	var role string
	err := s.Scan(&sub.UserID, &role, &sub.Phone, &sub.Client, &sub.Username, &sub.FirstName, &sub.LastName, &sub.ChatID)
	if err != nil {
		return nil, err
	}
	sub.Role = protocol.Role(role)
	return &sub, nil
}
