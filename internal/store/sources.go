package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Source is the scrape bookkeeping row for one provider.
type Source struct {
	ID            string     `json:"id"`
	Name          string     `json:"name"`
	LastScrapedAt *time.Time `json:"last_scraped_at,omitempty"`
	Active        bool       `json:"active"`
	CreatedAt     time.Time  `json:"created_at"`
}

func (s *Store) ListSources(ctx context.Context) ([]Source, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT id, name, last_scraped_at, active, created_at
FROM sources
ORDER BY created_at, id
`)
	if err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}
	defer rows.Close()

	sources := []Source{}
	for rows.Next() {
		src, err := scanSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, src)
	}
	return sources, rows.Err()
}

// UpsertDefaultSources creates missing rows and leaves existing ones, and
// their checkpoints, untouched.
func (s *Store) UpsertDefaultSources(ctx context.Context, defaults []Source) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, src := range defaults {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO sources (id, name, active)
VALUES ($1, $2, $3)
ON CONFLICT (id) DO NOTHING
`, src.ID, src.Name, src.Active); err != nil {
			return fmt.Errorf("seed source %s: %w", src.ID, err)
		}
	}
	return tx.Commit()
}

// MarkSourceScraped moves the checkpoint forward to at. An older timestamp
// is ignored, so the checkpoint never goes backwards.
func (s *Store) MarkSourceScraped(ctx context.Context, id string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `
UPDATE sources
SET last_scraped_at = $2
WHERE id = $1
  AND (last_scraped_at IS NULL OR last_scraped_at < $2)
`, id, at)
	if err != nil {
		return fmt.Errorf("mark source %s scraped: %w", id, err)
	}
	return nil
}

func (s *Store) SetSourceActive(ctx context.Context, id string, active bool) (Source, error) {
	row := s.db.QueryRowContext(ctx, `
UPDATE sources
SET active = $2
WHERE id = $1
RETURNING id, name, last_scraped_at, active, created_at
`, id, active)
	src, err := scanSource(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, ErrNotFound
	}
	return src, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSource(r rowScanner) (Source, error) {
	var (
		src         Source
		lastScraped sql.NullTime
	)
	if err := r.Scan(&src.ID, &src.Name, &lastScraped, &src.Active, &src.CreatedAt); err != nil {
		return Source{}, err
	}
	src.LastScrapedAt = nullTimePtr(lastScraped)
	return src, nil
}
