package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"
)

type Profile struct {
	UserID    string    `json:"user_id"`
	FullName  string    `json:"full_name"`
	Headline  string    `json:"headline"`
	Skills    []string  `json:"skills"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Application records that a user applied to a posting. Title, company and
// URL are copied so the record outlives the posting's retention.
type Application struct {
	ID        int64     `json:"id"`
	UserID    string    `json:"user_id"`
	PostingID *int64    `json:"posting_id,omitempty"`
	Title     string    `json:"title"`
	Company   string    `json:"company"`
	URL       string    `json:"url"`
	Status    string    `json:"status"`
	AppliedAt time.Time `json:"applied_at"`
}

func (s *Store) GetProfile(ctx context.Context, userID string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
SELECT user_id, full_name, headline, skills, updated_at
FROM profiles
WHERE user_id = $1
`, userID).Scan(&p.UserID, &p.FullName, &p.Headline, pq.Array(&p.Skills), &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Profile{}, ErrNotFound
	}
	if err != nil {
		return Profile{}, fmt.Errorf("get profile: %w", err)
	}
	if p.Skills == nil {
		p.Skills = []string{}
	}
	return p, nil
}

func (s *Store) SaveProfile(ctx context.Context, p Profile) (Profile, error) {
	if p.Skills == nil {
		p.Skills = []string{}
	}
	err := s.db.QueryRowContext(ctx, `
INSERT INTO profiles (user_id, full_name, headline, skills, updated_at)
VALUES ($1, $2, $3, $4, NOW())
ON CONFLICT (user_id) DO UPDATE SET
    full_name = EXCLUDED.full_name,
    headline = EXCLUDED.headline,
    skills = EXCLUDED.skills,
    updated_at = NOW()
RETURNING updated_at
`, p.UserID, p.FullName, p.Headline, pq.Array(p.Skills)).Scan(&p.UpdatedAt)
	if err != nil {
		return Profile{}, fmt.Errorf("save profile: %w", err)
	}
	return p, nil
}

// MarkApplied is idempotent: applying twice returns the original record.
func (s *Store) MarkApplied(ctx context.Context, userID string, postingID int64) (Application, error) {
	row := s.db.QueryRowContext(ctx, `
INSERT INTO applications (user_id, posting_id, title, company, url)
SELECT $1, p.id, p.title, p.company, p.url
FROM postings p
WHERE p.id = $2
ON CONFLICT (user_id, posting_id) DO UPDATE SET user_id = EXCLUDED.user_id
RETURNING id, user_id, posting_id, title, company, url, status, applied_at
`, userID, postingID)
	a, err := scanApplication(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Application{}, ErrNotFound
	}
	if err != nil {
		return Application{}, fmt.Errorf("mark applied: %w", err)
	}
	return a, nil
}

func (s *Store) ListApplications(ctx context.Context, userID string, limit, offset int) ([]Application, error) {
	limit = clampLimit(limit, 20, 200)
	if offset < 0 {
		offset = 0
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, user_id, posting_id, title, company, url, status, applied_at
FROM applications
WHERE user_id = $1
ORDER BY applied_at DESC, id DESC
LIMIT $2 OFFSET $3
`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	apps := []Application{}
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

func scanApplication(r rowScanner) (Application, error) {
	var (
		a         Application
		postingID sql.NullInt64
	)
	if err := r.Scan(&a.ID, &a.UserID, &postingID, &a.Title, &a.Company, &a.URL, &a.Status, &a.AppliedAt); err != nil {
		return Application{}, err
	}
	if postingID.Valid {
		id := postingID.Int64
		a.PostingID = &id
	}
	return a, nil
}
