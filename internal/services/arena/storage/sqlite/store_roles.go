package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

// PutRoles replaces the role table of a game in one transaction.
func (s *Store) PutRoles(ctx context.Context, gameID string, roles []storage.RoleRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return fmt.Errorf("game id is required")
	}
	for _, role := range roles {
		if strings.TrimSpace(role.Name) == "" {
			return fmt.Errorf("role name is required")
		}
		if role.SlotCount <= 0 {
			return fmt.Errorf("role %q slot count must be greater than zero", role.Name)
		}
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roles transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM roles WHERE game_id = ?`, gameID); err != nil {
		return fmt.Errorf("clear roles: %w", err)
	}
	for position, role := range roles {
		_, err := tx.ExecContext(ctx, `
INSERT INTO roles (id, game_id, name, slot_count, position)
VALUES (?, ?, ?, ?, ?)
`,
			strings.TrimSpace(role.ID),
			gameID,
			strings.TrimSpace(role.Name),
			role.SlotCount,
			position,
		)
		if err != nil {
			return fmt.Errorf("insert role %q: %w", role.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit roles: %w", err)
	}
	return nil
}

// ListRoles lists the role table of a game in position order.
func (s *Store) ListRoles(ctx context.Context, gameID string) ([]storage.RoleRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	gameID = strings.TrimSpace(gameID)
	if gameID == "" {
		return nil, fmt.Errorf("game id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, game_id, name, slot_count, position
FROM roles
WHERE game_id = ?
ORDER BY position ASC
`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list roles: %w", err)
	}
	defer rows.Close()

	var records []storage.RoleRow
	for rows.Next() {
		var record storage.RoleRow
		if err := rows.Scan(&record.ID, &record.GameID, &record.Name, &record.SlotCount, &record.Position); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roles: %w", err)
	}
	return records, nil
}

var _ storage.RoleStore = (*Store)(nil)
