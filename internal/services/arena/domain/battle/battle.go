// Package battle records resolved battle outcomes and applies their
// participant standing changes under optimistic concurrency.
package battle

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	arenaerrors "github.com/louisbranch/skirmish.space/internal/platform/errors"
	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

// defaultAttempts bounds the guarded-update retry loop.
const defaultAttempts = 4

// retryBackoff spaces out guarded-update retries.
const retryBackoff = 25 * time.Millisecond

// TurnExchange is one prompt/response pair of a finished battle.
type TurnExchange struct {
	TurnNo   int
	Prompt   string
	Response string
}

// Outcome describes a finished battle to record.
type Outcome struct {
	GameID      string
	SessionID   string
	AttackerID  string
	DefenderIDs []string
	Result      string
	Delta       float64
	// HeroIDs lists the heroes each owner fielded, keyed by owner id.
	HeroIDs map[string][]string
	// Statuses carries each owner's post-battle status, keyed by owner id.
	// Owners without an entry keep their stored status.
	Statuses  map[string]string
	Exchanges []TurnExchange
	// FinalPrompt and FinalResponse seed a synthetic single-turn log when
	// no exchanges were captured.
	FinalPrompt   string
	FinalResponse string
}

// Recorder persists battles and applies standing deltas.
type Recorder struct {
	battles      storage.BattleStore
	participants storage.ParticipantStore
	now          func() time.Time
	sleep        func(time.Duration)
	attempts     int
}

// NewRecorder builds a battle recorder over the given stores.
func NewRecorder(battles storage.BattleStore, participants storage.ParticipantStore) *Recorder {
	return &Recorder{
		battles:      battles,
		participants: participants,
		now:          func() time.Time { return time.Now().UTC() },
		sleep:        time.Sleep,
		attempts:     defaultAttempts,
	}
}

// RecordBattle persists the battle row and turn logs, then applies the
// rating delta to the attacker and each defender. The attacker gains
// Delta; each defender loses it.
func (r *Recorder) RecordBattle(ctx context.Context, outcome Outcome) (int64, error) {
	if r == nil || r.battles == nil || r.participants == nil {
		return 0, fmt.Errorf("recorder is not configured")
	}
	outcome.GameID = strings.TrimSpace(outcome.GameID)
	outcome.AttackerID = strings.TrimSpace(outcome.AttackerID)
	outcome.Result = strings.TrimSpace(outcome.Result)
	if outcome.GameID == "" {
		return 0, arenaerrors.New(arenaerrors.CodeBattleEmptyGameID, "game id is required")
	}
	if outcome.AttackerID == "" {
		return 0, arenaerrors.New(arenaerrors.CodeBattleEmptyAttacker, "attacker id is required")
	}
	if outcome.Result == "" {
		return 0, arenaerrors.New(arenaerrors.CodeBattleInvalidResult, "result is required")
	}

	defenders := make([]string, 0, len(outcome.DefenderIDs))
	for _, defenderID := range outcome.DefenderIDs {
		defenderID = strings.TrimSpace(defenderID)
		if defenderID == "" || defenderID == outcome.AttackerID {
			continue
		}
		defenders = append(defenders, defenderID)
	}
	var defenderHeroes []string
	for _, defenderID := range defenders {
		defenderHeroes = unionHeroIDs(defenderHeroes, outcome.HeroIDs[defenderID])
	}

	battleID, err := r.battles.InsertBattle(ctx, storage.Battle{
		GameID:           outcome.GameID,
		SessionID:        outcome.SessionID,
		AttackerID:       outcome.AttackerID,
		AttackerHeroIDs:  unionHeroIDs(nil, outcome.HeroIDs[outcome.AttackerID]),
		DefenderOwnerIDs: defenders,
		DefenderHeroIDs:  defenderHeroes,
		Result:           outcome.Result,
		Delta:            outcome.Delta,
		CreatedAt:        r.now(),
	})
	if err != nil {
		return 0, fmt.Errorf("insert battle: %w", err)
	}

	if err := r.battles.InsertTurnLogs(ctx, normalizeExchanges(battleID, outcome)); err != nil {
		return 0, fmt.Errorf("insert turn logs: %w", err)
	}

	won := strings.EqualFold(outcome.Result, "win")
	if err := r.ApplyParticipantOutcome(ctx, outcome.GameID, outcome.AttackerID, outcome.HeroIDs[outcome.AttackerID], outcome.Delta, outcome.Statuses[outcome.AttackerID], won); err != nil {
		return 0, fmt.Errorf("apply attacker outcome: %w", err)
	}
	for _, defenderID := range defenders {
		if err := r.ApplyParticipantOutcome(ctx, outcome.GameID, defenderID, outcome.HeroIDs[defenderID], -outcome.Delta, outcome.Statuses[defenderID], false); err != nil {
			return 0, fmt.Errorf("apply defender outcome: %w", err)
		}
	}
	return battleID, nil
}

// ApplyParticipantOutcome applies one standing change with a bounded
// read-modify-write retry loop. Missing participants are created with
// default standing before the change applies. Fielded hero ids are
// unioned into the participant record; a non-blank status replaces the
// stored one.
func (r *Recorder) ApplyParticipantOutcome(ctx context.Context, gameID, ownerID string, heroIDs []string, delta float64, status string, won bool) error {
	if r == nil || r.participants == nil {
		return fmt.Errorf("recorder is not configured")
	}
	status = strings.TrimSpace(status)
	attempts := r.attempts
	if attempts <= 0 {
		attempts = defaultAttempts
	}

	for attempt := 0; attempt < attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if attempt > 0 && r.sleep != nil {
			r.sleep(retryBackoff)
		}

		record, err := r.participants.GetParticipant(ctx, gameID, ownerID)
		if errors.Is(err, storage.ErrNotFound) {
			insertErr := r.participants.InsertParticipant(ctx, storage.ParticipantRecord{
				GameID:  gameID,
				OwnerID: ownerID,
				Rating:  storage.DefaultRating,
				Score:   storage.DefaultScore,
			})
			if insertErr != nil && !errors.Is(insertErr, storage.ErrAlreadyExists) {
				return fmt.Errorf("insert participant: %w", insertErr)
			}
			record, err = r.participants.GetParticipant(ctx, gameID, ownerID)
		}
		if err != nil {
			return fmt.Errorf("read participant: %w", err)
		}

		expected := record.UpdatedAt
		record.Rating += delta
		record.Score += delta
		record.Battles++
		if won {
			record.Wins++
		}
		record.HeroIDs = unionHeroIDs(record.HeroIDs, heroIDs)
		if status != "" {
			record.Status = status
		}
		record.UpdatedAt = r.stampAfter(expected)

		landed, err := r.participants.UpdateParticipantGuarded(ctx, record, expected)
		if err != nil {
			return fmt.Errorf("update participant: %w", err)
		}
		if landed {
			return nil
		}
	}
	return arenaerrors.WithMetadata(arenaerrors.CodeParticipantConflict,
		"participant update lost every retry", map[string]string{"owner_id": ownerID})
}

// unionHeroIDs merges new hero ids into the existing set, preserving
// first-seen order and skipping blanks.
func unionHeroIDs(existing, incoming []string) []string {
	if len(incoming) == 0 {
		return existing
	}
	seen := make(map[string]bool, len(existing)+len(incoming))
	merged := make([]string, 0, len(existing)+len(incoming))
	for _, id := range existing {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, id)
	}
	for _, id := range incoming {
		id = strings.TrimSpace(id)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		merged = append(merged, id)
	}
	return merged
}

// stampAfter produces a write stamp strictly after the guard value so a
// same-millisecond rewrite cannot alias the previous guard.
func (r *Recorder) stampAfter(expected *time.Time) *time.Time {
	stamp := r.now().UTC().Truncate(time.Millisecond)
	if expected != nil && !stamp.After(*expected) {
		stamp = expected.Add(time.Millisecond)
	}
	return &stamp
}

// normalizeExchanges dedupes captured exchanges by turn number and orders
// them. Colliding turn numbers shift up until free. With no exchanges, a
// single synthetic log is built from the final prompt/response, so every
// battle carries at least one turn log.
func normalizeExchanges(battleID int64, outcome Outcome) []storage.TurnLog {
	if len(outcome.Exchanges) == 0 {
		return []storage.TurnLog{{
			BattleID: battleID,
			TurnNo:   1,
			Prompt:   outcome.FinalPrompt,
			Response: outcome.FinalResponse,
		}}
	}

	taken := make(map[int]bool, len(outcome.Exchanges))
	logs := make([]storage.TurnLog, 0, len(outcome.Exchanges))
	for _, exchange := range outcome.Exchanges {
		turnNo := exchange.TurnNo
		if turnNo < 1 {
			turnNo = 1
		}
		for taken[turnNo] {
			turnNo++
		}
		taken[turnNo] = true
		logs = append(logs, storage.TurnLog{
			BattleID: battleID,
			TurnNo:   turnNo,
			Prompt:   exchange.Prompt,
			Response: exchange.Response,
		})
	}
	sort.Slice(logs, func(i, j int) bool { return logs[i].TurnNo < logs[j].TurnNo })
	return logs
}
