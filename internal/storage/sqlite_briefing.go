package storage

import "context"

func (s *SQLiteStore) AddBriefings(ctx context.Context, synthesisID string, briefings []Briefing) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := "INSERT OR REPLACE INTO briefings (synthesis_id, role_id, briefing) VALUES (?, ?, ?)"
	for _, briefing := range briefings {
		if _, err := tx.ExecContext(ctx, query, synthesisID, briefing.RoleID, briefing.Briefing); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetBriefings(ctx context.Context, synthesisID string) ([]Briefing, error) {
	query := "SELECT synthesis_id, role_id, briefing FROM briefings WHERE synthesis_id = ? ORDER BY rowid ASC"
	rows, err := s.db.QueryContext(ctx, query, synthesisID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var briefings []Briefing
	for rows.Next() {
		var b Briefing
		if err := rows.Scan(&b.SynthesisID, &b.RoleID, &b.Briefing); err != nil {
			return nil, err
		}
		briefings = append(briefings, b)
	}
	return briefings, rows.Err()
}
