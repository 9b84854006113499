package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/baxromumarov/job-aggregator/internal/scraper"
)

// Posting is a persisted scraper.Posting.
type Posting struct {
	ID int64 `json:"id"`
	scraper.Posting
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type PostingFilter struct {
	Source   scraper.Source
	Kind     scraper.Kind
	WorkMode scraper.WorkMode
	Limit    int
	Offset   int
}

const postingColumns = `id, source, external_id, title, company, location, description, url,
    posted_at, salary_min, salary_max, currency, kind, work_mode, created_at, updated_at`

// UpsertPosting writes p keyed by (source, external_id). Later copies replace
// the stored fields. The returned flag is true when a new row was created.
func (s *Store) UpsertPosting(ctx context.Context, p scraper.Posting) (bool, error) {
	var inserted bool
	err := s.db.QueryRowContext(ctx, `
INSERT INTO postings (source, external_id, title, company, location, description, url,
    posted_at, salary_min, salary_max, currency, kind, work_mode)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (source, external_id) DO UPDATE SET
    title = EXCLUDED.title,
    company = EXCLUDED.company,
    location = EXCLUDED.location,
    description = EXCLUDED.description,
    url = EXCLUDED.url,
    posted_at = COALESCE(EXCLUDED.posted_at, postings.posted_at),
    salary_min = EXCLUDED.salary_min,
    salary_max = EXCLUDED.salary_max,
    currency = EXCLUDED.currency,
    kind = EXCLUDED.kind,
    work_mode = EXCLUDED.work_mode,
    updated_at = NOW()
RETURNING (xmax = 0) AS inserted
`,
		string(p.Source), p.ExternalID, p.Title, p.Company, p.Location, p.Description, p.URL,
		p.PostedAt, p.SalaryMin, p.SalaryMax, p.Currency, string(p.Kind), string(p.WorkMode),
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert posting %s/%s: %w", p.Source, p.ExternalID, err)
	}
	return inserted, nil
}

// DeletePostingsPostedBefore removes postings dated before cutoff. Undated
// postings age by their insert time.
func (s *Store) DeletePostingsPostedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
DELETE FROM postings
WHERE COALESCE(posted_at, created_at) < $1
`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) ListPostings(ctx context.Context, f PostingFilter) ([]Posting, error) {
	limit := clampLimit(f.Limit, 20, 200)
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Source != "" {
		add("source = $%d", string(f.Source))
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.WorkMode != "" {
		add("work_mode = $%d", string(f.WorkMode))
	}

	query := "SELECT " + postingColumns + "\nFROM postings\n"
	if len(where) > 0 {
		query += "WHERE " + strings.Join(where, " AND ") + "\n"
	}
	args = append(args, limit, offset)
	query += fmt.Sprintf("ORDER BY COALESCE(posted_at, created_at) DESC, id DESC\nLIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list postings: %w", err)
	}
	defer rows.Close()

	postings := []Posting{}
	for rows.Next() {
		p, err := scanPosting(rows)
		if err != nil {
			return nil, err
		}
		postings = append(postings, p)
	}
	return postings, rows.Err()
}

func (s *Store) GetPosting(ctx context.Context, id int64) (Posting, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+postingColumns+"\nFROM postings\nWHERE id = $1", id)
	p, err := scanPosting(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Posting{}, ErrNotFound
	}
	return p, err
}

func scanPosting(r rowScanner) (Posting, error) {
	var (
		p         Posting
		source    string
		kind      string
		workMode  string
		postedAt  sql.NullTime
		salaryMin sql.NullFloat64
		salaryMax sql.NullFloat64
	)
	if err := r.Scan(
		&p.ID,
		&source,
		&p.ExternalID,
		&p.Title,
		&p.Company,
		&p.Location,
		&p.Description,
		&p.URL,
		&postedAt,
		&salaryMin,
		&salaryMax,
		&p.Currency,
		&kind,
		&workMode,
		&p.CreatedAt,
		&p.UpdatedAt,
	); err != nil {
		return Posting{}, err
	}
	p.Source = scraper.Source(source)
	p.Kind = scraper.Kind(kind)
	p.WorkMode = scraper.WorkMode(workMode)
	p.PostedAt = nullTimePtr(postedAt)
	p.SalaryMin = nullFloatPtr(salaryMin)
	p.SalaryMax = nullFloatPtr(salaryMax)
	return p, nil
}
