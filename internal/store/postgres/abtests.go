package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mailcraft/mailcraft/pkg/abtest"
)

// ABTestStore implements abtest.Store on PostgreSQL.
type ABTestStore struct {
	pool *pgxpool.Pool
}

// NewABTestStore creates a store over the pool.
func NewABTestStore(pool *pgxpool.Pool) *ABTestStore {
	return &ABTestStore{pool: pool}
}

func (s *ABTestStore) CreateTest(ctx context.Context, test *abtest.Test) error {
	const query = `
		INSERT INTO email_ab_tests (name, metric)
		VALUES ($1, $2)
		RETURNING id, created_at`

	return s.pool.QueryRow(ctx, query, test.Name, test.Metric).Scan(&test.ID, &test.CreatedAt)
}

func (s *ABTestStore) AddVariant(ctx context.Context, variant *abtest.Variant) error {
	const query = `
		INSERT INTO email_ab_variants (test_id, name, subject, html_body)
		VALUES ($1, $2, $3, $4)
		RETURNING id`

	return s.pool.QueryRow(ctx, query,
		variant.TestID, variant.Name, variant.Subject, variant.HTMLBody,
	).Scan(&variant.ID)
}

func (s *ABTestStore) FindTest(ctx context.Context, id int64) (*abtest.Test, []abtest.Variant, error) {
	var test abtest.Test
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, metric, winner_id, created_at FROM email_ab_tests WHERE id = $1`, id,
	).Scan(&test.ID, &test.Name, &test.Metric, &test.WinnerID, &test.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, abtest.ErrTestNotFound
	}
	if err != nil {
		return nil, nil, err
	}

	rows, err := s.pool.Query(ctx, `
		SELECT id, test_id, name, subject, html_body, sent_count, open_count, click_count
		FROM email_ab_variants WHERE test_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	var variants []abtest.Variant
	for rows.Next() {
		var v abtest.Variant
		if err := rows.Scan(
			&v.ID, &v.TestID, &v.Name, &v.Subject, &v.HTMLBody,
			&v.SentCount, &v.OpenCount, &v.ClickCount,
		); err != nil {
			return nil, nil, err
		}
		variants = append(variants, v)
	}
	return &test, variants, rows.Err()
}

func (s *ABTestStore) ListUnresolved(ctx context.Context, limit int) ([]abtest.Test, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, metric, winner_id, created_at
		FROM email_ab_tests WHERE winner_id IS NULL
		ORDER BY id LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tests []abtest.Test
	for rows.Next() {
		var t abtest.Test
		if err := rows.Scan(&t.ID, &t.Name, &t.Metric, &t.WinnerID, &t.CreatedAt); err != nil {
			return nil, err
		}
		tests = append(tests, t)
	}
	return tests, rows.Err()
}

func (s *ABTestStore) IncrementSent(ctx context.Context, variantID int64) error {
	return s.increment(ctx, "sent_count", variantID)
}

func (s *ABTestStore) IncrementOpen(ctx context.Context, variantID int64) error {
	return s.increment(ctx, "open_count", variantID)
}

func (s *ABTestStore) IncrementClick(ctx context.Context, variantID int64) error {
	return s.increment(ctx, "click_count", variantID)
}

func (s *ABTestStore) increment(ctx context.Context, column string, variantID int64) error {
	query := fmt.Sprintf(`UPDATE email_ab_variants SET %s = %s + 1 WHERE id = $1`, column, column)

	tag, err := s.pool.Exec(ctx, query, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return abtest.ErrVariantNotFound
	}
	return nil
}

func (s *ABTestStore) SetWinner(ctx context.Context, testID, variantID int64) error {
	const query = `UPDATE email_ab_tests SET winner_id = $2 WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, testID, variantID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return abtest.ErrTestNotFound
	}
	return nil
}
