package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

// Enqueue persists one queue entry. Each owner holds at most one entry
// per game.
func (s *Store) Enqueue(ctx context.Context, entry storage.QueueEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	entry.ID = strings.TrimSpace(entry.ID)
	entry.GameID = strings.TrimSpace(entry.GameID)
	entry.OwnerID = strings.TrimSpace(entry.OwnerID)
	entry.HeroID = strings.TrimSpace(entry.HeroID)
	entry.Role = strings.TrimSpace(entry.Role)
	if entry.ID == "" {
		return fmt.Errorf("queue entry id is required")
	}
	if entry.GameID == "" {
		return fmt.Errorf("game id is required")
	}
	if entry.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if entry.HeroID == "" {
		return fmt.Errorf("hero id is required")
	}
	if entry.Role == "" {
		return fmt.Errorf("role is required")
	}
	if entry.JoinedAt.IsZero() {
		entry.JoinedAt = time.Now().UTC()
	}

	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO queue_entries (id, game_id, owner_id, hero_id, role, score, joined_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
`,
		entry.ID,
		entry.GameID,
		entry.OwnerID,
		entry.HeroID,
		entry.Role,
		entry.Score,
		entry.JoinedAt.UTC().UnixMilli(),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("enqueue: %w", err)
	}
	return nil
}

// ListQueue lists a game's queue entries oldest-first.
func (s *Store) ListQueue(ctx context.Context, gameID string) ([]storage.QueueEntry, error) {
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
SELECT id, game_id, owner_id, hero_id, role, score, joined_at
FROM queue_entries
WHERE game_id = ?
ORDER BY joined_at ASC, id ASC
`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list queue: %w", err)
	}
	defer rows.Close()

	var records []storage.QueueEntry
	for rows.Next() {
		var record storage.QueueEntry
		var joinedAt int64
		if err := rows.Scan(
			&record.ID,
			&record.GameID,
			&record.OwnerID,
			&record.HeroID,
			&record.Role,
			&record.Score,
			&joinedAt,
		); err != nil {
			return nil, fmt.Errorf("scan queue entry: %w", err)
		}
		record.JoinedAt = time.UnixMilli(joinedAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate queue: %w", err)
	}
	return records, nil
}

// RemoveQueueEntries deletes the given queue entries after assembly.
func (s *Store) RemoveQueueEntries(ctx context.Context, gameID string, ids []string) error {
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
	if len(ids) == 0 {
		return nil
	}

	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(ids)+1)
	args = append(args, gameID)
	for _, id := range ids {
		args = append(args, strings.TrimSpace(id))
	}

	query := fmt.Sprintf(`DELETE FROM queue_entries WHERE game_id = ? AND id IN (%s)`, placeholders)
	if _, err := s.sqlDB.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("remove queue entries: %w", err)
	}
	return nil
}

var _ storage.QueueStore = (*Store)(nil)
