// Package storage defines the durable records and store contracts backing
// the arena service.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// ErrAlreadyExists indicates a uniqueness constraint rejected the write.
var ErrAlreadyExists = errors.New("record already exists")

// Default standing for a participant entering their first battle. Stores
// persist rating and score verbatim; callers opt into these defaults.
const (
	DefaultRating = 1000.0
	DefaultScore  = 1000.0
)

// Game is one configured battle game.
type Game struct {
	ID        string
	Name      string
	Mode      string
	RulesText string
	CreatedAt time.Time
}

// RoleRow is one roster role of a game, ordered by Position.
type RoleRow struct {
	ID        string
	GameID    string
	Name      string
	SlotCount int
	Position  int
}

// Hero is one playable hero definition.
type Hero struct {
	ID     string
	GameID string
	Name   string
}

// QueueEntry is one owner waiting for assembly into a roster.
type QueueEntry struct {
	ID       string
	GameID   string
	OwnerID  string
	HeroID   string
	Role     string
	Score    float64
	JoinedAt time.Time
}

// ParticipantRecord is one owner's durable standing within a game.
//
// UpdatedAt is the optimistic concurrency guard: nil until the first
// guarded update, then bumped on every successful write.
type ParticipantRecord struct {
	GameID    string
	OwnerID   string
	HeroID    string
	HeroIDs   []string
	Rating    float64
	Score     float64
	Battles   int
	Wins      int
	Status    string
	UpdatedAt *time.Time
}

// Battle is one recorded battle outcome. The row is immutable, so the
// opposing owners and every fielded hero are captured at record time.
type Battle struct {
	ID               int64
	GameID           string
	SessionID        string
	AttackerID       string
	AttackerHeroIDs  []string
	DefenderOwnerIDs []string
	DefenderHeroIDs  []string
	Result           string
	Delta            float64
	CreatedAt        time.Time
}

// TurnLog is one prompt/response exchange of a battle, keyed by turn
// number within the battle.
type TurnLog struct {
	BattleID int64
	TurnNo   int
	Prompt   string
	Response string
}

// GameStore persists game definitions.
type GameStore interface {
	CreateGame(ctx context.Context, game Game) error
	GetGame(ctx context.Context, id string) (Game, error)
}

// RoleStore persists the position-ordered role table of a game.
type RoleStore interface {
	PutRoles(ctx context.Context, gameID string, roles []RoleRow) error
	ListRoles(ctx context.Context, gameID string) ([]RoleRow, error)
}

// HeroStore persists hero definitions.
type HeroStore interface {
	PutHero(ctx context.Context, hero Hero) error
	GetHero(ctx context.Context, id string) (Hero, error)
	ListHeroes(ctx context.Context, gameID string) ([]Hero, error)
}

// QueueStore persists the matchmaking queue.
type QueueStore interface {
	Enqueue(ctx context.Context, entry QueueEntry) error
	ListQueue(ctx context.Context, gameID string) ([]QueueEntry, error)
	RemoveQueueEntries(ctx context.Context, gameID string, ids []string) error
}

// ParticipantStore persists per-owner standings with an optimistic
// concurrency guard on updates.
type ParticipantStore interface {
	GetParticipant(ctx context.Context, gameID, ownerID string) (ParticipantRecord, error)
	InsertParticipant(ctx context.Context, record ParticipantRecord) error
	// UpdateParticipantGuarded writes record only if the row's updated_at
	// still equals expectedUpdatedAt. It reports whether the write landed.
	UpdateParticipantGuarded(ctx context.Context, record ParticipantRecord, expectedUpdatedAt *time.Time) (bool, error)
	ListParticipants(ctx context.Context, gameID string) ([]ParticipantRecord, error)
}

// BattleStore persists battle outcomes and their turn logs.
type BattleStore interface {
	InsertBattle(ctx context.Context, battle Battle) (int64, error)
	InsertTurnLogs(ctx context.Context, logs []TurnLog) error
	ListBattles(ctx context.Context, gameID string, limit int) ([]Battle, error)
	ListTurnLogs(ctx context.Context, battleID int64) ([]TurnLog, error)
}
