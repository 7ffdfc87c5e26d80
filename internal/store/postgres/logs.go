package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailcraft/mailcraft"
	"github.com/mailcraft/mailcraft/pkg/tracking"
)

// LogStore implements mailcraft.LogStore and tracking.LinkStore on
// PostgreSQL. Logs and their tracked links share a store since every link
// operation resolves through the log row.
type LogStore struct {
	pool *pgxpool.Pool
}

// NewLogStore creates a store over the pool.
func NewLogStore(pool *pgxpool.Pool) *LogStore {
	return &LogStore{pool: pool}
}

func (s *LogStore) CreateLog(ctx context.Context, log *mailcraft.Log) error {
	const query = `
		INSERT INTO email_logs (
			uuid, status, mailer, from_address, reply_to,
			to_addresses, cc_addresses, bcc_addresses,
			subject, html_body, text_body, headers, placeholders, attachments,
			error, scheduled_email_id, ab_variant_id
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
		)
		RETURNING id, created_at, updated_at`

	return s.pool.QueryRow(ctx, query,
		log.UUID, log.Status, log.Mailer, log.From, log.ReplyTo,
		emptyAddresses(log.To), emptyAddresses(log.CC), emptyAddresses(log.BCC),
		log.Subject, log.HTMLBody, log.TextBody,
		emptyMap(log.Headers), emptyMap(log.Placeholders), emptyDescriptors(log.Attachments),
		log.Error, log.ScheduledEmailID, log.ABVariantID,
	).Scan(&log.ID, &log.CreatedAt, &log.UpdatedAt)
}

func (s *LogStore) UpdateLogStatus(ctx context.Context, logUUID string, status mailcraft.LogStatus, errMsg string) error {
	const query = `
		UPDATE email_logs SET status = $2, error = $3, updated_at = now()
		WHERE uuid = $1`

	tag, err := s.pool.Exec(ctx, query, logUUID, status, errMsg)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return mailcraft.ErrLogNotFound
	}
	return nil
}

func (s *LogStore) FindLogByUUID(ctx context.Context, logUUID string) (*mailcraft.Log, error) {
	const query = `
		SELECT id, uuid, status, mailer, from_address, reply_to,
			to_addresses, cc_addresses, bcc_addresses,
			subject, html_body, text_body, headers, placeholders, attachments,
			error, opened_at, scheduled_email_id, ab_variant_id, created_at, updated_at
		FROM email_logs WHERE uuid = $1`

	var log mailcraft.Log
	err := s.pool.QueryRow(ctx, query, logUUID).Scan(
		&log.ID, &log.UUID, &log.Status, &log.Mailer, &log.From, &log.ReplyTo,
		&log.To, &log.CC, &log.BCC,
		&log.Subject, &log.HTMLBody, &log.TextBody,
		&log.Headers, &log.Placeholders, &log.Attachments,
		&log.Error, &log.OpenedAt, &log.ScheduledEmailID, &log.ABVariantID, &log.CreatedAt, &log.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, mailcraft.ErrLogNotFound
	}
	if err != nil {
		return nil, err
	}
	return &log, nil
}

func (s *LogStore) ResolveLogID(ctx context.Context, logUUID string) (int64, error) {
	var id int64
	err := s.pool.QueryRow(ctx, `SELECT id FROM email_logs WHERE uuid = $1`, logUUID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, tracking.ErrLogNotFound
	}
	return id, err
}

func (s *LogStore) CreateLink(ctx context.Context, link tracking.Link) error {
	const query = `
		INSERT INTO email_links (log_id, token, original_url)
		VALUES ($1, $2, $3)`

	_, err := s.pool.Exec(ctx, query, link.LogID, link.Token, link.OriginalURL)
	return err
}

func (s *LogStore) FindLinkByToken(ctx context.Context, logUUID, token string) (*tracking.Link, error) {
	const query = `
		SELECT l.id, l.log_id, l.token, l.original_url, l.click_count, l.clicked_at, l.created_at
		FROM email_links l
		JOIN email_logs g ON g.id = l.log_id
		WHERE g.uuid = $1 AND l.token = $2`

	var link tracking.Link
	err := s.pool.QueryRow(ctx, query, logUUID, token).Scan(
		&link.ID, &link.LogID, &link.Token, &link.OriginalURL, &link.ClickCount, &link.ClickedAt, &link.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, tracking.ErrLinkNotFound
	}
	if err != nil {
		return nil, err
	}
	return &link, nil
}

// IncrementClick bumps the link's counter and click time. When the log behind
// the link belongs to an A/B variant, the variant's click counter moves too.
func (s *LogStore) IncrementClick(ctx context.Context, linkID int64) error {
	const query = `
		UPDATE email_links SET click_count = click_count + 1, clicked_at = now()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, linkID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return tracking.ErrLinkNotFound
	}

	const variantQuery = `
		UPDATE email_ab_variants v SET click_count = v.click_count + 1
		FROM email_links l
		JOIN email_logs g ON g.id = l.log_id
		WHERE l.id = $1 AND v.id = g.ab_variant_id`

	_, err = s.pool.Exec(ctx, variantQuery, linkID)
	return err
}

// MarkOpened records the first open; later loads of the pixel keep the
// original open time. The first open also feeds the A/B variant's open
// counter when the log belongs to one.
func (s *LogStore) MarkOpened(ctx context.Context, logUUID string) error {
	const query = `
		UPDATE email_logs SET opened_at = now(), updated_at = now()
		WHERE uuid = $1 AND opened_at IS NULL
		RETURNING ab_variant_id`

	var variantID *int64
	err := s.pool.QueryRow(ctx, query, logUUID).Scan(&variantID)
	if errors.Is(err, pgx.ErrNoRows) {
		// Already opened, or the UUID is unknown.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM email_logs WHERE uuid = $1)`, logUUID,
		).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return tracking.ErrLogNotFound
		}
		return nil
	}
	if err != nil {
		return err
	}

	if variantID == nil {
		return nil
	}
	_, err = s.pool.Exec(ctx,
		`UPDATE email_ab_variants SET open_count = open_count + 1 WHERE id = $1`, *variantID)
	return err
}
