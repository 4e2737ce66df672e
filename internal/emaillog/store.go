package emaillog

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Store persists email logs, events and counters in PostgreSQL.
// Counter updates are atomic SQL increments, so concurrent webhook and
// tracking hits never lose updates.
type Store struct{ db *sql.DB }

// NewStore creates a Postgres-backed email log store.
func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// RecordAttempt logs an outbound send and bumps the lifetime sent
// counter in one transaction. It returns the new log ID; callers thread
// it through tracking injection and failure reporting.
func (s *Store) RecordAttempt(ctx context.Context, l *EmailLog) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin record attempt: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE email_stats SET total_sent = total_sent + 1, updated_at = NOW()
	`); err != nil {
		return 0, fmt.Errorf("bump sent counter: %w", err)
	}

	var id int64
	err = tx.QueryRowContext(ctx, `
		INSERT INTO email_logs (recipients, subject, body, headers, attachments, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
		RETURNING id
	`, l.Recipients, l.Subject, l.Body, l.Headers, l.Attachments, StatusSent).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert email log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit record attempt: %w", err)
	}
	l.ID = id
	l.Status = StatusSent
	return id, nil
}

// RecordFailure marks the log entry failed with the transport error and
// bumps the lifetime failure counter.
func (s *Store) RecordFailure(ctx context.Context, id int64, message string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record failure: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		UPDATE email_stats SET failed = failed + 1, updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("bump failed counter: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE email_logs SET status = $1, error = $2, updated_at = NOW() WHERE id = $3
	`, StatusFailed, message, id)
	if err != nil {
		return fmt.Errorf("mark log failed: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record failure: %w", err)
	}
	return nil
}

// RecordOpen appends an open event and atomically bumps the log's open
// counter. Repeat opens accumulate; dedup is a reporting concern.
func (s *Store) RecordOpen(ctx context.Context, id int64) error {
	return s.recordEvent(ctx, id, EventOpen, "", "opens")
}

// RecordClick appends a click event carrying the destination URL and
// atomically bumps the log's click counter.
func (s *Store) RecordClick(ctx context.Context, id int64, url string) error {
	return s.recordEvent(ctx, id, EventClick, url, "clicks")
}

func (s *Store) recordEvent(ctx context.Context, id int64, eventType, detail, counter string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record %s: %w", eventType, err)
	}
	defer tx.Rollback()

	// counter is one of the fixed column names above, never user input
	res, err := tx.ExecContext(ctx, fmt.Sprintf(`
		UPDATE email_logs SET %s = %s + 1, updated_at = NOW() WHERE id = $1
	`, counter, counter), id)
	if err != nil {
		return fmt.Errorf("bump %s counter: %w", eventType, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO email_events (log_id, event_type, detail, created_at)
		VALUES ($1, $2, $3, NOW())
	`, id, eventType, detail); err != nil {
		return fmt.Errorf("insert %s event: %w", eventType, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record %s: %w", eventType, err)
	}
	return nil
}

// RecordBounce marks the log entry bounced and appends a bounce event
// with the provider's reason. The reason lives on the event; the log's
// error column is reserved for transport failures.
func (s *Store) RecordBounce(ctx context.Context, id int64, reason string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin record bounce: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE email_logs SET status = $1, updated_at = NOW() WHERE id = $2
	`, StatusBounced, id)
	if err != nil {
		return fmt.Errorf("mark log bounced: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO email_events (log_id, event_type, detail, created_at)
		VALUES ($1, $2, $3, NOW())
	`, id, EventBounce, reason); err != nil {
		return fmt.Errorf("insert bounce event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit record bounce: %w", err)
	}
	return nil
}

// FindLatestLogByRecipient returns the newest log entry whose recipient
// list contains the given address. Bounce webhooks only carry the
// address, so the newest matching send is the one that bounced.
func (s *Store) FindLatestLogByRecipient(ctx context.Context, email string) (*EmailLog, error) {
	l := &EmailLog{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, recipients, subject, status, COALESCE(error,''), opens, clicks, created_at, updated_at
		FROM email_logs
		WHERE recipients LIKE '%' || $1 || '%'
		ORDER BY id DESC
		LIMIT 1
	`, email).Scan(
		&l.ID, &l.Recipients, &l.Subject, &l.Status, &l.Error,
		&l.Opens, &l.Clicks, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find log by recipient: %w", err)
	}
	return l, nil
}

// GetLog returns a single log entry including its body and headers.
func (s *Store) GetLog(ctx context.Context, id int64) (*EmailLog, error) {
	l := &EmailLog{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, recipients, subject, body, headers, attachments, status, COALESCE(error,''),
		       opens, clicks, created_at, updated_at
		FROM email_logs
		WHERE id = $1
	`, id).Scan(
		&l.ID, &l.Recipients, &l.Subject, &l.Body, &l.Headers, &l.Attachments, &l.Status, &l.Error,
		&l.Opens, &l.Clicks, &l.CreatedAt, &l.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get log: %w", err)
	}
	return l, nil
}

// ListEvents returns a log entry's events, newest first.
func (s *Store) ListEvents(ctx context.Context, logID int64) ([]EmailEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, log_id, event_type, COALESCE(detail,''), created_at
		FROM email_events
		WHERE log_id = $1
		ORDER BY id DESC
	`, logID)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var out []EmailEvent
	for rows.Next() {
		var e EmailEvent
		if err := rows.Scan(&e.ID, &e.LogID, &e.Type, &e.Detail, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// GetStats returns the lifetime counters with the derived success
// count.
func (s *Store) GetStats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT total_sent, failed FROM email_stats
	`).Scan(&st.TotalSent, &st.Failed)
	if err != nil {
		return Stats{}, fmt.Errorf("get stats: %w", err)
	}
	st.Successful = st.TotalSent - st.Failed
	return st, nil
}

// QueryLogs returns a filtered, paginated page of log entries, newest
// first, with the total matching count for the pager.
func (s *Store) QueryLogs(ctx context.Context, f LogFilter) (LogPage, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}

	where := " WHERE 1=1"
	args := []interface{}{}
	idx := 1

	if f.Search != "" {
		where += fmt.Sprintf(" AND (recipients ILIKE $%d OR subject ILIKE $%d OR body ILIKE $%d)", idx, idx, idx)
		args = append(args, "%"+f.Search+"%")
		idx++
	}
	if f.Status != "" {
		where += fmt.Sprintf(" AND status = $%d", idx)
		args = append(args, f.Status)
		idx++
	}
	if !f.From.IsZero() {
		where += fmt.Sprintf(" AND created_at >= $%d", idx)
		args = append(args, startOfDay(f.From))
		idx++
	}
	if !f.To.IsZero() {
		where += fmt.Sprintf(" AND created_at <= $%d", idx)
		args = append(args, endOfDay(f.To))
		idx++
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM email_logs"+where, args...).Scan(&total); err != nil {
		return LogPage{}, fmt.Errorf("count logs: %w", err)
	}

	q := `SELECT id, recipients, subject, status, COALESCE(error,''), opens, clicks, created_at, updated_at
		FROM email_logs` + where +
		fmt.Sprintf(" ORDER BY id DESC LIMIT $%d OFFSET $%d", idx, idx+1)
	args = append(args, limit, f.Offset)

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return LogPage{}, fmt.Errorf("query logs: %w", err)
	}
	defer rows.Close()

	page := LogPage{Total: total}
	for rows.Next() {
		var l EmailLog
		if err := rows.Scan(
			&l.ID, &l.Recipients, &l.Subject, &l.Status, &l.Error,
			&l.Opens, &l.Clicks, &l.CreatedAt, &l.UpdatedAt,
		); err != nil {
			return LogPage{}, fmt.Errorf("scan log: %w", err)
		}
		page.Logs = append(page.Logs, l)
	}
	return page, rows.Err()
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, 0, t.Location())
}
