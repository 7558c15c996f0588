package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

// InsertBattle persists one battle outcome and returns its id.
func (s *Store) InsertBattle(ctx context.Context, battle storage.Battle) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := s.ready(); err != nil {
		return 0, err
	}

	battle.GameID = strings.TrimSpace(battle.GameID)
	battle.SessionID = strings.TrimSpace(battle.SessionID)
	battle.AttackerID = strings.TrimSpace(battle.AttackerID)
	battle.Result = strings.TrimSpace(battle.Result)
	if battle.GameID == "" {
		return 0, fmt.Errorf("game id is required")
	}
	if battle.AttackerID == "" {
		return 0, fmt.Errorf("attacker id is required")
	}
	if battle.Result == "" {
		return 0, fmt.Errorf("result is required")
	}
	if battle.CreatedAt.IsZero() {
		battle.CreatedAt = time.Now().UTC()
	}

	attackerHeroes, err := encodeIDList(battle.AttackerHeroIDs)
	if err != nil {
		return 0, err
	}
	defenderOwners, err := encodeIDList(battle.DefenderOwnerIDs)
	if err != nil {
		return 0, err
	}
	defenderHeroes, err := encodeIDList(battle.DefenderHeroIDs)
	if err != nil {
		return 0, err
	}

	result, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO battles (game_id, session_id, attacker_id, attacker_hero_ids, defender_owner_ids, defender_hero_ids, result, delta, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
`,
		battle.GameID,
		battle.SessionID,
		battle.AttackerID,
		attackerHeroes,
		defenderOwners,
		defenderHeroes,
		battle.Result,
		battle.Delta,
		battle.CreatedAt.UTC().UnixMilli(),
	)
	if err != nil {
		return 0, fmt.Errorf("insert battle: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("insert battle id: %w", err)
	}
	return id, nil
}

// InsertTurnLogs persists battle turn logs in one transaction.
func (s *Store) InsertTurnLogs(ctx context.Context, logs []storage.TurnLog) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.ready(); err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin turn logs transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, entry := range logs {
		if entry.BattleID == 0 {
			return fmt.Errorf("battle id is required")
		}
		_, err := tx.ExecContext(ctx, `
INSERT INTO turn_logs (battle_id, turn_no, prompt, response)
VALUES (?, ?, ?, ?)
`, entry.BattleID, entry.TurnNo, entry.Prompt, entry.Response)
		if err != nil {
			if isConstraintError(err) {
				return storage.ErrAlreadyExists
			}
			return fmt.Errorf("insert turn log %d: %w", entry.TurnNo, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit turn logs: %w", err)
	}
	return nil
}

// ListBattles lists newest-first battles of a game.
func (s *Store) ListBattles(ctx context.Context, gameID string, limit int) ([]storage.Battle, error) {
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
	if limit <= 0 {
		return nil, fmt.Errorf("limit must be greater than zero")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT id, game_id, session_id, attacker_id, attacker_hero_ids, defender_owner_ids, defender_hero_ids, result, delta, created_at
FROM battles
WHERE game_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?
`, gameID, limit)
	if err != nil {
		return nil, fmt.Errorf("list battles: %w", err)
	}
	defer rows.Close()

	records := make([]storage.Battle, 0, limit)
	for rows.Next() {
		var record storage.Battle
		var attackerHeroes, defenderOwners, defenderHeroes string
		var createdAt int64
		if err := rows.Scan(
			&record.ID,
			&record.GameID,
			&record.SessionID,
			&record.AttackerID,
			&attackerHeroes,
			&defenderOwners,
			&defenderHeroes,
			&record.Result,
			&record.Delta,
			&createdAt,
		); err != nil {
			return nil, fmt.Errorf("scan battle: %w", err)
		}
		if record.AttackerHeroIDs, err = decodeIDList(attackerHeroes); err != nil {
			return nil, fmt.Errorf("decode attacker hero ids: %w", err)
		}
		if record.DefenderOwnerIDs, err = decodeIDList(defenderOwners); err != nil {
			return nil, fmt.Errorf("decode defender owner ids: %w", err)
		}
		if record.DefenderHeroIDs, err = decodeIDList(defenderHeroes); err != nil {
			return nil, fmt.Errorf("decode defender hero ids: %w", err)
		}
		record.CreatedAt = time.UnixMilli(createdAt).UTC()
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate battles: %w", err)
	}
	return records, nil
}

// ListTurnLogs lists a battle's turn logs in turn order.
func (s *Store) ListTurnLogs(ctx context.Context, battleID int64) ([]storage.TurnLog, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.ready(); err != nil {
		return nil, err
	}
	if battleID == 0 {
		return nil, fmt.Errorf("battle id is required")
	}

	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT battle_id, turn_no, prompt, response
FROM turn_logs
WHERE battle_id = ?
ORDER BY turn_no ASC
`, battleID)
	if err != nil {
		return nil, fmt.Errorf("list turn logs: %w", err)
	}
	defer rows.Close()

	var records []storage.TurnLog
	for rows.Next() {
		var record storage.TurnLog
		if err := rows.Scan(&record.BattleID, &record.TurnNo, &record.Prompt, &record.Response); err != nil {
			return nil, fmt.Errorf("scan turn log: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate turn logs: %w", err)
	}
	return records, nil
}

var _ storage.BattleStore = (*Store)(nil)
