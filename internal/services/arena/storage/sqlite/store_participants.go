package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

// GetParticipant loads one participant standing.
func (s *Store) GetParticipant(ctx context.Context, gameID, ownerID string) (storage.ParticipantRecord, error) {
	if err := ctx.Err(); err != nil {
		return storage.ParticipantRecord{}, err
	}
	if err := s.ready(); err != nil {
		return storage.ParticipantRecord{}, err
	}
	gameID = strings.TrimSpace(gameID)
	ownerID = strings.TrimSpace(ownerID)
	if gameID == "" {
		return storage.ParticipantRecord{}, fmt.Errorf("game id is required")
	}
	if ownerID == "" {
		return storage.ParticipantRecord{}, fmt.Errorf("owner id is required")
	}

	row := s.sqlDB.QueryRowContext(ctx, `
SELECT game_id, owner_id, hero_id, hero_ids, rating, score, battles, wins, status, updated_at
FROM participants
WHERE game_id = ? AND owner_id = ?
`, gameID, ownerID)
	record, err := scanParticipant(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return storage.ParticipantRecord{}, storage.ErrNotFound
	}
	if err != nil {
		return storage.ParticipantRecord{}, fmt.Errorf("get participant: %w", err)
	}
	return record, nil
}

// InsertParticipant creates one participant standing. Rating and score
// persist verbatim; callers wanting defaults pass storage.DefaultRating
// and storage.DefaultScore, so a zero standing stays representable.
func (s *Store) InsertParticipant(ctx context.Context, record storage.ParticipantRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}

	record.GameID = strings.TrimSpace(record.GameID)
	record.OwnerID = strings.TrimSpace(record.OwnerID)
	if record.GameID == "" {
		return fmt.Errorf("game id is required")
	}
	if record.OwnerID == "" {
		return fmt.Errorf("owner id is required")
	}
	if strings.TrimSpace(record.Status) == "" {
		record.Status = "alive"
	}

	heroIDs, err := encodeIDList(record.HeroIDs)
	if err != nil {
		return err
	}
	_, err = s.sqlDB.ExecContext(ctx, `
INSERT INTO participants (game_id, owner_id, hero_id, hero_ids, rating, score, battles, wins, status, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		record.GameID,
		record.OwnerID,
		strings.TrimSpace(record.HeroID),
		heroIDs,
		record.Rating,
		record.Score,
		record.Battles,
		record.Wins,
		record.Status,
		millisOrNil(record.UpdatedAt),
	)
	if err != nil {
		if isConstraintError(err) {
			return storage.ErrAlreadyExists
		}
		return fmt.Errorf("insert participant: %w", err)
	}
	return nil
}

// UpdateParticipantGuarded writes record only if the stored updated_at
// still equals expectedUpdatedAt. A false return with nil error means the
// guard missed and the caller should re-read and retry.
func (s *Store) UpdateParticipantGuarded(ctx context.Context, record storage.ParticipantRecord, expectedUpdatedAt *time.Time) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := s.ready(); err != nil {
		return false, err
	}

	record.GameID = strings.TrimSpace(record.GameID)
	record.OwnerID = strings.TrimSpace(record.OwnerID)
	if record.GameID == "" {
		return false, fmt.Errorf("game id is required")
	}
	if record.OwnerID == "" {
		return false, fmt.Errorf("owner id is required")
	}
	if record.UpdatedAt == nil {
		return false, fmt.Errorf("updated at is required on guarded updates")
	}

	heroIDs, err := encodeIDList(record.HeroIDs)
	if err != nil {
		return false, err
	}

	query := `
UPDATE participants
SET hero_id = ?, hero_ids = ?, rating = ?, score = ?, battles = ?, wins = ?, status = ?, updated_at = ?
WHERE game_id = ? AND owner_id = ? AND updated_at `
	args := []any{
		strings.TrimSpace(record.HeroID),
		heroIDs,
		record.Rating,
		record.Score,
		record.Battles,
		record.Wins,
		record.Status,
		record.UpdatedAt.UTC().UnixMilli(),
		record.GameID,
		record.OwnerID,
	}
	if expectedUpdatedAt == nil {
		query += "IS NULL"
	} else {
		query += "= ?"
		args = append(args, expectedUpdatedAt.UTC().UnixMilli())
	}

	result, err := s.sqlDB.ExecContext(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("update participant: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update participant rows affected: %w", err)
	}
	return affected == 1, nil
}

// ListParticipants lists a game's participants by owner id.
func (s *Store) ListParticipants(ctx context.Context, gameID string) ([]storage.ParticipantRecord, error) {
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
SELECT game_id, owner_id, hero_id, hero_ids, rating, score, battles, wins, status, updated_at
FROM participants
WHERE game_id = ?
ORDER BY owner_id ASC
`, gameID)
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var records []storage.ParticipantRecord
	for rows.Next() {
		record, err := scanParticipant(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scan participant: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participants: %w", err)
	}
	return records, nil
}

func scanParticipant(scan func(...any) error) (storage.ParticipantRecord, error) {
	var record storage.ParticipantRecord
	var heroIDs string
	var updatedAt sql.NullInt64
	if err := scan(
		&record.GameID,
		&record.OwnerID,
		&record.HeroID,
		&heroIDs,
		&record.Rating,
		&record.Score,
		&record.Battles,
		&record.Wins,
		&record.Status,
		&updatedAt,
	); err != nil {
		return storage.ParticipantRecord{}, err
	}
	decoded, err := decodeIDList(heroIDs)
	if err != nil {
		return storage.ParticipantRecord{}, fmt.Errorf("decode hero ids: %w", err)
	}
	record.HeroIDs = decoded
	if updatedAt.Valid {
		at := time.UnixMilli(updatedAt.Int64).UTC()
		record.UpdatedAt = &at
	}
	return record, nil
}

func encodeIDList(ids []string) (string, error) {
	if ids == nil {
		ids = []string{}
	}
	encoded, err := json.Marshal(ids)
	if err != nil {
		return "", fmt.Errorf("encode id list: %w", err)
	}
	return string(encoded), nil
}

func decodeIDList(encoded string) ([]string, error) {
	if encoded == "" {
		return nil, nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
		return nil, fmt.Errorf("decode id list: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}
	return ids, nil
}

func millisOrNil(at *time.Time) any {
	if at == nil {
		return nil
	}
	return at.UTC().UnixMilli()
}

var _ storage.ParticipantStore = (*Store)(nil)
