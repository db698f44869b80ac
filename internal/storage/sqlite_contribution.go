package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func (s *SQLiteStore) CreateContribution(ctx context.Context, contribution Contribution) error {
	if contribution.CreatedAt.IsZero() {
		contribution.CreatedAt = time.Now()
	}

	content, err := json.Marshal(contribution.Content)
	if err != nil {
		return fmt.Errorf("marshal contribution content: %w", err)
	}

	sourceIDs := contribution.SourceContributionIDs
	if sourceIDs == nil {
		sourceIDs = []string{}
	}
	sources, err := json.Marshal(sourceIDs)
	if err != nil {
		return err
	}

	query := "INSERT INTO contributions (id, forge_id, author_id, type, content, source_ids, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err = s.db.ExecContext(ctx, query,
		contribution.ID, contribution.ForgeID, contribution.AuthorID, contribution.Type,
		string(content), string(sources),
		contribution.CreatedAt.UTC().Format("2006-01-02 15:04:05.999"))
	return err
}

func (s *SQLiteStore) GetContribution(ctx context.Context, contributionID string) (*Contribution, error) {
	query := "SELECT id, forge_id, author_id, type, content, source_ids, created_at FROM contributions WHERE id = ?"
	contribution, err := scanContribution(s.db.QueryRowContext(ctx, query, contributionID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("contribution %s: %w", contributionID, ErrNotFound)
		}
		return nil, err
	}
	return contribution, nil
}

func (s *SQLiteStore) GetForgeContributions(ctx context.Context, forgeID string) ([]Contribution, error) {
	// rowid tie-break keeps same-timestamp rows in insertion order
	query := "SELECT id, forge_id, author_id, type, content, source_ids, created_at FROM contributions WHERE forge_id = ? ORDER BY created_at ASC, rowid ASC"
	rows, err := s.db.QueryContext(ctx, query, forgeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectContributions(rows)
}

func (s *SQLiteStore) GetLatestContributions(ctx context.Context, forgeID string, limit int) ([]Contribution, error) {
	query := "SELECT id, forge_id, author_id, type, content, source_ids, created_at FROM contributions WHERE forge_id = ? ORDER BY created_at DESC, rowid DESC LIMIT ?"
	rows, err := s.db.QueryContext(ctx, query, forgeID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contributions, err := collectContributions(rows)
	if err != nil {
		return nil, err
	}

	// Reverse needed because we fetched DESC
	for i, j := 0, len(contributions)-1; i < j; i, j = i+1, j-1 {
		contributions[i], contributions[j] = contributions[j], contributions[i]
	}

	return contributions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanContribution(row rowScanner) (*Contribution, error) {
	var c Contribution
	var content, sources string
	if err := row.Scan(&c.ID, &c.ForgeID, &c.AuthorID, &c.Type, &content, &sources, &c.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(content), &c.Content); err != nil {
		return nil, fmt.Errorf("unmarshal contribution %s content: %w", c.ID, err)
	}
	if err := json.Unmarshal([]byte(sources), &c.SourceContributionIDs); err != nil {
		return nil, fmt.Errorf("unmarshal contribution %s sources: %w", c.ID, err)
	}
	return &c, nil
}

func collectContributions(rows *sql.Rows) ([]Contribution, error) {
	var contributions []Contribution
	for rows.Next() {
		c, err := scanContribution(rows)
		if err != nil {
			return nil, err
		}
		contributions = append(contributions, *c)
	}
	return contributions, rows.Err()
}
