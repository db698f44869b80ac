package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

func initialStateDocument() *StateDocument {
	return &StateDocument{
		Goal: "Create MVP scope for new product idea",
		Roles: []StateRole{
			{ID: "1", Name: "Konrad", Title: "Product Lead"},
			{ID: "2", Name: "Eike", Title: "General Consultant"},
		},
		Contributions: []StateContribution{},
		Syntheses:     []StateSynthesis{},
		RoleChats:     []RoleChat{},
	}
}

// GetState loads the legacy state document for a forge, creating and
// persisting an initial document if none exists yet.
func (s *SQLiteStore) GetState(ctx context.Context, forgeID string) (*StateDocument, error) {
	var raw string
	err := s.db.QueryRowContext(ctx,
		"SELECT document FROM forge_state WHERE forge_id = ?", forgeID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		doc := initialStateDocument()
		if err := s.PutState(ctx, forgeID, doc); err != nil {
			return nil, err
		}
		return doc, nil
	}
	if err != nil {
		return nil, err
	}

	var doc StateDocument
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("unmarshal state document for forge %s: %w", forgeID, err)
	}
	return &doc, nil
}

// PutState replaces the whole document. There is no version check here:
// concurrent writers race and the last write wins.
func (s *SQLiteStore) PutState(ctx context.Context, forgeID string, doc *StateDocument) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal state document for forge %s: %w", forgeID, err)
	}

	query := `INSERT INTO forge_state (forge_id, document, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(forge_id) DO UPDATE SET document = excluded.document, updated_at = excluded.updated_at`
	_, err = s.db.ExecContext(ctx, query, forgeID, string(raw),
		time.Now().UTC().Format("2006-01-02 15:04:05.999"))
	return err
}
