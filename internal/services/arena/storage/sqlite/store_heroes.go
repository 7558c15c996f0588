package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

// PutHero inserts or updates one hero definition.
func (s *Store) PutHero(ctx context.Context, hero storage.Hero) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	hero.ID = strings.TrimSpace(hero.ID)
	hero.GameID = strings.TrimSpace(hero.GameID)
	hero.Name = strings.TrimSpace(hero.Name)
	if hero.ID == "" {
		return fmt.Errorf("hero id is required")
	}
	if hero.GameID == "" {
		return fmt.Errorf("game id is required")
	}
	if hero.Name == "" {
		return fmt.Errorf("hero name is required")
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO heroes (id, game_id, name)
VALUES (?, ?, ?)
ON CONFLICT(id) DO UPDATE SET name = excluded.name
`, hero.ID, hero.GameID, hero.Name)
	if err != nil {
		return fmt.Errorf("put hero: %w", err)
	}
	return nil
}

// GetHero loads one hero by id.
func (s *Store) GetHero(ctx context.Context, id string) (storage.Hero, error) {
	if err := ctx.Err(); err != nil {
		return storage.Hero{}, err
	}
	if err := s.ready(); err != nil {
		return storage.Hero{}, err
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return storage.Hero{}, fmt.Errorf("hero id is required")
	}

	var hero storage.Hero
	err := s.sqlDB.QueryRowContext(ctx, `
SELECT id, game_id, name FROM heroes WHERE id = ?
`, id).Scan(&hero.ID, &hero.GameID, &hero.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.Hero{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.Hero{}, fmt.Errorf("get hero: %w", err)
	}
	return hero, nil
}

// ListHeroes lists the heroes of a game by name.
func (s *Store) ListHeroes(ctx context.Context, gameID string) ([]storage.Hero, error) {
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
SELECT id, game_id, name
FROM heroes
WHERE game_id = ?
ORDER BY name ASC, id ASC
`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list heroes: %w", err)
	}
	defer rows.Close()

	var records []storage.Hero
	for rows.Next() {
		var record storage.Hero
		if err := rows.Scan(&record.ID, &record.GameID, &record.Name); err != nil {
			return nil, fmt.Errorf("scan hero: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate heroes: %w", err)
	}
	return records, nil
}

var _ storage.HeroStore = (*Store)(nil)
