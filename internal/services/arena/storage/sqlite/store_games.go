package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

// CreateGame persists one game definition.
func (s *Store) CreateGame(ctx context.Context, game storage.Game) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	game.ID = strings.TrimSpace(game.ID)
	game.Name = strings.TrimSpace(game.Name)
	game.Mode = strings.TrimSpace(game.Mode)
	if game.ID == "" {
		return fmt.Errorf("game id is required")
	}
	if game.Name == "" {
		return fmt.Errorf("game name is required")
	}
	if game.Mode == "" {
		return fmt.Errorf("game mode is required")
	}
	if game.CreatedAt.IsZero() {
		game.CreatedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO games (id, name, mode, rules_text, created_at)
VALUES (?, ?, ?, ?, ?)
`,
		game.ID,
		game.Name,
		game.Mode,
		game.RulesText,
		game.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("create game: %w", err)
	}
	return nil
}

// GetGame loads one game by id.
func (s *Store) GetGame(ctx context.Context, id string) (storage.Game, error) {
	if err := ctx.Err(); err != nil {
		return storage.Game{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Game{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Game{}, fmt.Errorf("game id is required")
	}

	var game storage.Game
	var createdAt int64
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, name, mode, rules_text, created_at
FROM games
WHERE id = ?
`, id).Scan(&game.ID, &game.Name, &game.Mode, &game.RulesText, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Game{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Game{}, fmt.Errorf("get game: %w", err)
	}
	game.CreatedAt = time.UnixMilli(createdAt).UTC()
	return game, nil
}

var _ storage.GameStore = (*Store)(nil)
