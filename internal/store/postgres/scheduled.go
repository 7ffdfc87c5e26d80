package postgres

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailcraft/mailcraft/pkg/schedule"
)

// ScheduledStore implements schedule.Store and schedule.Exister on
// PostgreSQL.
type ScheduledStore struct {
	pool *pgxpool.Pool
}

// NewScheduledStore creates a store over the pool.
func NewScheduledStore(pool *pgxpool.Pool) *ScheduledStore {
	return &ScheduledStore{pool: pool}
}

const scheduledColumns = `id, uuid, status, scheduled_at, sent_at, expires_at,
	frequency, frequency_options, conditions, mailer,
	from_address, reply_to, to_addresses, cc_addresses, bcc_addresses,
	subject, template_name, view_ref, view_data, html_body,
	placeholders, headers, attachments,
	last_error, retry_attempts, parent_id, occurrence_number,
	created_at, updated_at`

func scanScheduled(row pgx.Row) (*schedule.Email, error) {
	var rec schedule.Email
	err := row.Scan(
		&rec.ID, &rec.UUID, &rec.Status, &rec.ScheduledAt, &rec.SentAt, &rec.ExpiresAt,
		&rec.Frequency, &rec.FrequencyOptions, &rec.Conditions, &rec.Mailer,
		&rec.From, &rec.ReplyTo, &rec.To, &rec.CC, &rec.BCC,
		&rec.Subject, &rec.TemplateName, &rec.ViewRef, &rec.ViewData, &rec.HTMLBody,
		&rec.Placeholders, &rec.Headers, &rec.Attachments,
		&rec.LastError, &rec.RetryAttempts, &rec.ParentID, &rec.OccurrenceNumber,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *ScheduledStore) Create(ctx context.Context, rec *schedule.Email) error {
	const query = `
		INSERT INTO scheduled_emails (
			uuid, status, scheduled_at, sent_at, expires_at,
			frequency, frequency_options, conditions, mailer,
			from_address, reply_to, to_addresses, cc_addresses, bcc_addresses,
			subject, template_name, view_ref, view_data, html_body,
			placeholders, headers, attachments,
			last_error, retry_attempts, parent_id, occurrence_number
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13,
			$14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26
		)
		RETURNING id, created_at, updated_at`

	return s.pool.QueryRow(ctx, query,
		rec.UUID, rec.Status, rec.ScheduledAt, rec.SentAt, rec.ExpiresAt,
		rec.Frequency, rec.FrequencyOptions, emptyConditions(rec.Conditions), rec.Mailer,
		rec.From, rec.ReplyTo, emptyAddresses(rec.To), emptyAddresses(rec.CC), emptyAddresses(rec.BCC),
		rec.Subject, rec.TemplateName, rec.ViewRef, rec.ViewData, rec.HTMLBody,
		emptyMap(rec.Placeholders), emptyMap(rec.Headers), emptyDescriptors(rec.Attachments),
		rec.LastError, rec.RetryAttempts, rec.ParentID, rec.OccurrenceNumber,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt)
}

func (s *ScheduledStore) Update(ctx context.Context, rec *schedule.Email) error {
	const query = `
		UPDATE scheduled_emails SET
			status = $2, scheduled_at = $3, sent_at = $4, expires_at = $5,
			last_error = $6, retry_attempts = $7, updated_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		rec.ID, rec.Status, rec.ScheduledAt, rec.SentAt, rec.ExpiresAt,
		rec.LastError, rec.RetryAttempts,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return schedule.ErrNotFound
	}
	return nil
}

func (s *ScheduledStore) FindByUUID(ctx context.Context, id string) (*schedule.Email, error) {
	query := fmt.Sprintf(`SELECT %s FROM scheduled_emails WHERE uuid = $1`, scheduledColumns)

	rec, err := scanScheduled(s.pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, schedule.ErrNotFound
	}
	return rec, err
}

// ClaimDue flips due pending records to processing in one statement, so
// concurrent batch passes never pick up the same record. SKIP LOCKED lets
// parallel workers claim disjoint sets instead of queueing on each other.
func (s *ScheduledStore) ClaimDue(ctx context.Context, now time.Time, limit int) ([]*schedule.Email, error) {
	query := fmt.Sprintf(`
		UPDATE scheduled_emails SET status = 'processing', updated_at = now()
		WHERE id IN (
			SELECT id FROM scheduled_emails
			WHERE status = 'pending' AND scheduled_at <= $1
			ORDER BY scheduled_at
			LIMIT $2
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, scheduledColumns)

	recs, err := s.queryScheduled(ctx, query, now, limit)
	if err != nil {
		return nil, err
	}

	// RETURNING yields rows in update order, which is unspecified.
	slices.SortFunc(recs, func(a, b *schedule.Email) int {
		return a.ScheduledAt.Compare(b.ScheduledAt)
	})
	return recs, nil
}

func (s *ScheduledStore) FindDueRetryable(ctx context.Context, maxAttempts, limit int) ([]*schedule.Email, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_emails
		WHERE status = 'failed' AND retry_attempts < $1
		ORDER BY scheduled_at
		LIMIT $2`, scheduledColumns)

	return s.queryScheduled(ctx, query, maxAttempts, limit)
}

// CountChain walks up to the lineage root and counts the root plus every
// descendant.
func (s *ScheduledStore) CountChain(ctx context.Context, id int64) (int, error) {
	const query = `
		WITH RECURSIVE up AS (
			SELECT id, parent_id FROM scheduled_emails WHERE id = $1
			UNION ALL
			SELECT s.id, s.parent_id FROM scheduled_emails s JOIN up ON up.parent_id = s.id
		), chain AS (
			SELECT id FROM up WHERE parent_id IS NULL
			UNION ALL
			SELECT s.id FROM scheduled_emails s JOIN chain ON s.parent_id = chain.id
		)
		SELECT count(*) FROM chain`

	var count int
	if err := s.pool.QueryRow(ctx, query, id).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (s *ScheduledStore) FindSentWithoutChild(ctx context.Context, since time.Time, limit int) ([]*schedule.Email, error) {
	query := fmt.Sprintf(`
		SELECT %s FROM scheduled_emails s
		WHERE s.status = 'sent' AND s.frequency <> '' AND s.sent_at >= $1
		  AND NOT EXISTS (SELECT 1 FROM scheduled_emails c WHERE c.parent_id = s.id)
		ORDER BY s.sent_at
		LIMIT $2`, scheduledColumns)

	return s.queryScheduled(ctx, query, since, limit)
}

func (s *ScheduledStore) CancelExpired(ctx context.Context, now time.Time) (int64, error) {
	const query = `
		UPDATE scheduled_emails
		SET status = 'cancelled', updated_at = now()
		WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at < $1`

	tag, err := s.pool.Exec(ctx, query, now)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (s *ScheduledStore) FailExhausted(ctx context.Context, maxAttempts int) (int64, error) {
	const query = `
		UPDATE scheduled_emails
		SET status = 'failed', updated_at = now()
		WHERE status = 'pending' AND retry_attempts >= $1`

	tag, err := s.pool.Exec(ctx, query, maxAttempts)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Exists answers database conditions with a dynamically assembled existence
// query. Table and column names go through identifier validation since they
// cannot be bound as parameters.
func (s *ScheduledStore) Exists(ctx context.Context, table string, where map[string]any) (bool, error) {
	if !validIdentifier(table) {
		return false, fmt.Errorf("%w: %q", ErrUnsafeIdentifier, table)
	}

	var (
		clauses []string
		args    []any
	)
	cols := slices.Sorted(maps.Keys(where))
	for _, col := range cols {
		if !validIdentifier(col) {
			return false, fmt.Errorf("%w: %q", ErrUnsafeIdentifier, col)
		}
		args = append(args, where[col])
		clauses = append(clauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s", table)
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += ")"

	var exists bool
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func (s *ScheduledStore) queryScheduled(ctx context.Context, query string, args ...any) ([]*schedule.Email, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []*schedule.Email
	for rows.Next() {
		rec, err := scanScheduled(rows)
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func validIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}
