package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

func (s *SQLiteStore) CreateForge(ctx context.Context, forge Forge) error {
	if forge.CreatedAt.IsZero() {
		forge.CreatedAt = time.Now()
	}
	if forge.Status == "" {
		forge.Status = ForgeStatusActive
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := "INSERT INTO forges (id, goal, status, last_synthesis_id, created_at) VALUES (?, ?, ?, ?, ?)"
	if _, err := tx.ExecContext(ctx, query, forge.ID, forge.Goal, forge.Status, forge.LastSynthesisID,
		forge.CreatedAt.UTC().Format("2006-01-02 15:04:05.999")); err != nil {
		return err
	}

	for i, member := range forge.Members {
		role := member.Role
		if role == "" {
			role = MemberRoleMember
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO forge_members (forge_id, user_id, role, position) VALUES (?, ?, ?, ?)",
			forge.ID, member.UserID, role, i); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetForge(ctx context.Context, forgeID string) (*Forge, error) {
	var forge Forge
	query := "SELECT id, goal, status, last_synthesis_id, created_at FROM forges WHERE id = ?"
	err := s.db.QueryRowContext(ctx, query, forgeID).Scan(
		&forge.ID, &forge.Goal, &forge.Status, &forge.LastSynthesisID, &forge.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("forge %s: %w", forgeID, ErrNotFound)
		}
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT user_id, role FROM forge_members WHERE forge_id = ? ORDER BY position ASC", forgeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var member ForgeMember
		if err := rows.Scan(&member.UserID, &member.Role); err != nil {
			return nil, err
		}
		forge.Members = append(forge.Members, member)
	}

	return &forge, rows.Err()
}

func (s *SQLiteStore) GetForgeGoal(ctx context.Context, forgeID string) (string, error) {
	var goal string
	err := s.db.QueryRowContext(ctx, "SELECT goal FROM forges WHERE id = ?", forgeID).Scan(&goal)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", fmt.Errorf("forge %s: %w", forgeID, ErrNotFound)
		}
		return "", err
	}
	return goal, nil
}

func (s *SQLiteStore) UpdateForgeLastSynthesis(ctx context.Context, forgeID, synthesisID string) error {
	result, err := s.db.ExecContext(ctx,
		"UPDATE forges SET last_synthesis_id = ? WHERE id = ?", synthesisID, forgeID)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("forge %s: %w", forgeID, ErrNotFound)
	}
	return nil
}
