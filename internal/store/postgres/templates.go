package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailcraft/mailcraft/pkg/template"
)

// TemplateStore implements template.Source on PostgreSQL and carries the
// management operations for publishing template versions.
type TemplateStore struct {
	pool *pgxpool.Pool
}

// NewTemplateStore creates a store over the pool.
func NewTemplateStore(pool *pgxpool.Pool) *TemplateStore {
	return &TemplateStore{pool: pool}
}

// FindActive returns the active version of the named template.
func (s *TemplateStore) FindActive(ctx context.Context, name string) (*template.Version, error) {
	const query = `
		SELECT t.name, v.version, v.subject, v.html_body, v.text_body, v.placeholders,
			v.from_email, v.from_name, v.to_email, v.cc_email, v.bcc_email,
			v.reply_to_email, v.reply_to_name
		FROM email_templates t
		JOIN email_template_versions v ON v.template_id = t.id AND v.is_active
		WHERE t.name = $1`

	var v template.Version
	err := s.pool.QueryRow(ctx, query, name).Scan(
		&v.TemplateName, &v.Version, &v.Subject, &v.HTMLBody, &v.TextBody, &v.Placeholders,
		&v.FromEmail, &v.FromName, &v.ToEmail, &v.CCEmail, &v.BCCEmail,
		&v.ReplyToEmail, &v.ReplyToName,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		// Distinguish a missing template from one with no active version.
		var exists bool
		if err := s.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM email_templates WHERE name = $1)`, name,
		).Scan(&exists); err != nil {
			return nil, err
		}
		if !exists {
			return nil, template.ErrTemplateNotFound
		}
		return nil, template.ErrNoActiveVersion
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CreateTemplate registers a template name. Creating an existing name is a
// no-op.
func (s *TemplateStore) CreateTemplate(ctx context.Context, name, description string) error {
	const query = `
		INSERT INTO email_templates (name, description)
		VALUES ($1, $2)
		ON CONFLICT (name) DO NOTHING`

	_, err := s.pool.Exec(ctx, query, name, description)
	return err
}

// AddVersion appends a new version of the named template, numbered one past
// the current highest. When activate is set, the new version atomically
// replaces the previously active one.
func (s *TemplateStore) AddVersion(ctx context.Context, name string, v *template.Version, activate bool) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var templateID int64
		err := tx.QueryRow(ctx, `SELECT id FROM email_templates WHERE name = $1 FOR UPDATE`, name).Scan(&templateID)
		if errors.Is(err, pgx.ErrNoRows) {
			return template.ErrTemplateNotFound
		}
		if err != nil {
			return err
		}

		if activate {
			if _, err := tx.Exec(ctx,
				`UPDATE email_template_versions SET is_active = FALSE WHERE template_id = $1 AND is_active`,
				templateID,
			); err != nil {
				return err
			}
		}

		const insert = `
			INSERT INTO email_template_versions (
				template_id, version, subject, html_body, text_body, placeholders,
				from_email, from_name, to_email, cc_email, bcc_email,
				reply_to_email, reply_to_name, is_active
			)
			SELECT $1, COALESCE(MAX(version), 0) + 1, $2, $3, $4, $5,
				$6, $7, $8, $9, $10, $11, $12, $13
			FROM email_template_versions WHERE template_id = $1
			RETURNING version`

		err = tx.QueryRow(ctx, insert,
			templateID, v.Subject, v.HTMLBody, v.TextBody, emptyMap(v.Placeholders),
			v.FromEmail, v.FromName, v.ToEmail, v.CCEmail, v.BCCEmail,
			v.ReplyToEmail, v.ReplyToName, activate,
		).Scan(&v.Version)
		if err != nil {
			return err
		}
		v.TemplateName = name
		return nil
	})
}

// ActivateVersion makes the given version the active one for the template.
func (s *TemplateStore) ActivateVersion(ctx context.Context, name string, version int) error {
	return WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var templateID int64
		err := tx.QueryRow(ctx, `SELECT id FROM email_templates WHERE name = $1 FOR UPDATE`, name).Scan(&templateID)
		if errors.Is(err, pgx.ErrNoRows) {
			return template.ErrTemplateNotFound
		}
		if err != nil {
			return err
		}

		if _, err := tx.Exec(ctx,
			`UPDATE email_template_versions SET is_active = FALSE WHERE template_id = $1 AND is_active`,
			templateID,
		); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE email_template_versions SET is_active = TRUE WHERE template_id = $1 AND version = $2`,
			templateID, version,
		)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return template.ErrNoActiveVersion
		}
		return nil
	})
}

// ListTemplates returns all template names, sorted.
func (s *TemplateStore) ListTemplates(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT name FROM email_templates ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
