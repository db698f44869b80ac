package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func (s *SQLiteStore) CreatePrompt(ctx context.Context, prompt AIPrompt) error {
	if prompt.CreatedAt.IsZero() {
		prompt.CreatedAt = time.Now()
	}
	if prompt.Status == "" {
		prompt.Status = PromptStatusActive
	}

	parameters, err := json.Marshal(prompt.Parameters)
	if err != nil {
		return fmt.Errorf("marshal prompt parameters: %w", err)
	}

	expectedVars := prompt.ExpectedVars
	if expectedVars == nil {
		expectedVars = []string{}
	}
	vars, err := json.Marshal(expectedVars)
	if err != nil {
		return err
	}

	query := `INSERT INTO ai_prompts (id, name, version, status, description, parameters, expected_vars, template, assertiveness_level, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query,
		prompt.ID, prompt.Name, prompt.Version, prompt.Status, prompt.Description,
		string(parameters), string(vars), prompt.Template, prompt.AssertivenessLevel,
		prompt.CreatedAt.UTC().Format("2006-01-02 15:04:05.999"))
	return err
}

func (s *SQLiteStore) GetActivePrompt(ctx context.Context, name string) (*AIPrompt, error) {
	query := `SELECT id, name, version, status, description, parameters, expected_vars, template, assertiveness_level, created_at
		FROM ai_prompts WHERE name = ? AND status = ? ORDER BY version DESC LIMIT 1`
	prompt, err := scanPrompt(s.db.QueryRowContext(ctx, query, name, PromptStatusActive))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("active prompt %q: %w", name, ErrNotFound)
		}
		return nil, err
	}
	return prompt, nil
}

func (s *SQLiteStore) GetPromptByNameAndVersion(ctx context.Context, name string, version *int) (*AIPrompt, error) {
	if version == nil {
		return s.GetActivePrompt(ctx, name)
	}

	query := `SELECT id, name, version, status, description, parameters, expected_vars, template, assertiveness_level, created_at
		FROM ai_prompts WHERE name = ? AND version = ?`
	prompt, err := scanPrompt(s.db.QueryRowContext(ctx, query, name, *version))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("prompt %q version %d: %w", name, *version, ErrNotFound)
		}
		return nil, err
	}
	return prompt, nil
}

func (s *SQLiteStore) ListActivePrompts(ctx context.Context) ([]AIPrompt, error) {
	// One row per name: the highest active version
	query := `SELECT id, name, version, status, description, parameters, expected_vars, template, assertiveness_level, created_at
		FROM ai_prompts p
		WHERE status = ? AND version = (
			SELECT MAX(version) FROM ai_prompts WHERE name = p.name AND status = ?
		)
		ORDER BY name ASC`
	rows, err := s.db.QueryContext(ctx, query, PromptStatusActive, PromptStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var prompts []AIPrompt
	for rows.Next() {
		prompt, err := scanPrompt(rows)
		if err != nil {
			return nil, err
		}
		prompts = append(prompts, *prompt)
	}
	return prompts, rows.Err()
}

func (s *SQLiteStore) DeleteAllPrompts(ctx context.Context) error {
	s.logger.Info("deleting all prompts")
	_, err := s.db.ExecContext(ctx, "DELETE FROM ai_prompts")
	return err
}

func scanPrompt(row rowScanner) (*AIPrompt, error) {
	var p AIPrompt
	var parameters, expectedVars string
	if err := row.Scan(&p.ID, &p.Name, &p.Version, &p.Status, &p.Description,
		&parameters, &expectedVars, &p.Template, &p.AssertivenessLevel, &p.CreatedAt); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(parameters), &p.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal prompt %s parameters: %w", p.ID, err)
	}
	if err := json.Unmarshal([]byte(expectedVars), &p.ExpectedVars); err != nil {
		return nil, fmt.Errorf("unmarshal prompt %s expected_vars: %w", p.ID, err)
	}
	return &p, nil
}
