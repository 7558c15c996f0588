package battle

import (
	"context"
	"errors"
	"testing"
	"time"

	arenaerrors "github.com/louisbranch/skirmish.space/internal/platform/errors"
	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

type fakeBattleStore struct {
	nextID  int64
	battles []storage.Battle
	logs    []storage.TurnLog
}

func (s *fakeBattleStore) InsertBattle(ctx context.Context, battle storage.Battle) (int64, error) {
	s.nextID++
	battle.ID = s.nextID
	s.battles = append(s.battles, battle)
	return battle.ID, nil
}

func (s *fakeBattleStore) InsertTurnLogs(ctx context.Context, logs []storage.TurnLog) error {
	for _, entry := range logs {
		for _, existing := range s.logs {
			if existing.BattleID == entry.BattleID && existing.TurnNo == entry.TurnNo {
				return storage.ErrAlreadyExists
			}
		}
		s.logs = append(s.logs, entry)
	}
	return nil
}

func (s *fakeBattleStore) ListBattles(ctx context.Context, gameID string, limit int) ([]storage.Battle, error) {
	return s.battles, nil
}

func (s *fakeBattleStore) ListTurnLogs(ctx context.Context, battleID int64) ([]storage.TurnLog, error) {
	return s.logs, nil
}

type fakeParticipantStore struct {
	records map[string]storage.ParticipantRecord
	// missGuards forces the first N guarded updates per owner to miss, as
	// if a concurrent writer won the race in between.
	missGuards map[string]int
	updates    int
}

func newFakeParticipantStore() *fakeParticipantStore {
	return &fakeParticipantStore{
		records:    make(map[string]storage.ParticipantRecord),
		missGuards: make(map[string]int),
	}
}

func key(gameID, ownerID string) string { return gameID + "/" + ownerID }

func (s *fakeParticipantStore) GetParticipant(ctx context.Context, gameID, ownerID string) (storage.ParticipantRecord, error) {
	record, ok := s.records[key(gameID, ownerID)]
	if !ok {
		return storage.ParticipantRecord{}, storage.ErrNotFound
	}
	return record, nil
}

func (s *fakeParticipantStore) InsertParticipant(ctx context.Context, record storage.ParticipantRecord) error {
	k := key(record.GameID, record.OwnerID)
	if _, ok := s.records[k]; ok {
		return storage.ErrAlreadyExists
	}
	s.records[k] = record
	return nil
}

func (s *fakeParticipantStore) UpdateParticipantGuarded(ctx context.Context, record storage.ParticipantRecord, expectedUpdatedAt *time.Time) (bool, error) {
	s.updates++
	k := key(record.GameID, record.OwnerID)
	if s.missGuards[k] > 0 {
		s.missGuards[k]--
		return false, nil
	}
	current, ok := s.records[k]
	if !ok {
		return false, nil
	}
	switch {
	case expectedUpdatedAt == nil && current.UpdatedAt != nil:
		return false, nil
	case expectedUpdatedAt != nil && (current.UpdatedAt == nil || !current.UpdatedAt.Equal(*expectedUpdatedAt)):
		return false, nil
	}
	s.records[k] = record
	return true, nil
}

func (s *fakeParticipantStore) ListParticipants(ctx context.Context, gameID string) ([]storage.ParticipantRecord, error) {
	var records []storage.ParticipantRecord
	for _, record := range s.records {
		records = append(records, record)
	}
	return records, nil
}

func testRecorder(battles *fakeBattleStore, participants *fakeParticipantStore) *Recorder {
	recorder := NewRecorder(battles, participants)
	base := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	tick := 0
	recorder.now = func() time.Time {
		tick++
		return base.Add(time.Duration(tick) * time.Second)
	}
	recorder.sleep = func(time.Duration) {}
	return recorder
}

func TestRecordBattleAppliesDeltas(t *testing.T) {
	battles := &fakeBattleStore{}
	participants := newFakeParticipantStore()
	recorder := testRecorder(battles, participants)

	id, err := recorder.RecordBattle(context.Background(), Outcome{
		GameID:      "g1",
		SessionID:   "s1",
		AttackerID:  "o1",
		DefenderIDs: []string{"o2", "o3"},
		Result:      "win",
		Delta:       25,
		Exchanges: []TurnExchange{
			{TurnNo: 1, Prompt: "Attack!", Response: "Blocked.\ncontinue"},
			{TurnNo: 2, Prompt: "Again!", Response: "Victory.\nwin"},
		},
	})
	if err != nil {
		t.Fatalf("record battle: %v", err)
	}
	if id != 1 {
		t.Fatalf("battle id = %d, want 1", id)
	}
	if len(battles.logs) != 2 {
		t.Fatalf("logs len = %d, want 2", len(battles.logs))
	}

	attacker := participants.records[key("g1", "o1")]
	if attacker.Rating != 1025 || attacker.Battles != 1 || attacker.Wins != 1 {
		t.Fatalf("attacker = %+v, want rating 1025, battles 1, wins 1", attacker)
	}
	for _, owner := range []string{"o2", "o3"} {
		defender := participants.records[key("g1", owner)]
		if defender.Rating != 975 || defender.Battles != 1 || defender.Wins != 0 {
			t.Fatalf("defender %s = %+v, want rating 975, battles 1", owner, defender)
		}
	}
}

func TestRecordBattlePersistsOpponentsAndHeroes(t *testing.T) {
	battles := &fakeBattleStore{}
	recorder := testRecorder(battles, newFakeParticipantStore())

	_, err := recorder.RecordBattle(context.Background(), Outcome{
		GameID:      "g1",
		AttackerID:  "o1",
		DefenderIDs: []string{"o2", "o3", "o1", " "},
		Result:      "win",
		Delta:       16,
		HeroIDs: map[string][]string{
			"o1": {"h1"},
			"o2": {"h2"},
			"o3": {"h3", "h2"},
		},
	})
	if err != nil {
		t.Fatalf("record battle: %v", err)
	}

	row := battles.battles[0]
	if len(row.AttackerHeroIDs) != 1 || row.AttackerHeroIDs[0] != "h1" {
		t.Fatalf("attacker hero ids = %v, want [h1]", row.AttackerHeroIDs)
	}
	if len(row.DefenderOwnerIDs) != 2 || row.DefenderOwnerIDs[0] != "o2" || row.DefenderOwnerIDs[1] != "o3" {
		t.Fatalf("defender owner ids = %v, want [o2 o3]", row.DefenderOwnerIDs)
	}
	if len(row.DefenderHeroIDs) != 2 || row.DefenderHeroIDs[0] != "h2" || row.DefenderHeroIDs[1] != "h3" {
		t.Fatalf("defender hero ids = %v, want deduped [h2 h3]", row.DefenderHeroIDs)
	}
}

func TestRecordBattleUpdatesStatuses(t *testing.T) {
	battles := &fakeBattleStore{}
	participants := newFakeParticipantStore()
	participants.records[key("g1", "o2")] = storage.ParticipantRecord{
		GameID: "g1", OwnerID: "o2", Rating: 1000, Score: 1000, Status: "alive",
	}
	recorder := testRecorder(battles, participants)

	_, err := recorder.RecordBattle(context.Background(), Outcome{
		GameID:      "g1",
		AttackerID:  "o1",
		DefenderIDs: []string{"o2"},
		Result:      "win",
		Delta:       10,
		Statuses:    map[string]string{"o2": "defeated"},
	})
	if err != nil {
		t.Fatalf("record battle: %v", err)
	}

	if got := participants.records[key("g1", "o2")]; got.Status != "defeated" {
		t.Fatalf("defender status = %q, want defeated", got.Status)
	}
	// No status supplied for the attacker, so the stored value stays.
	if got := participants.records[key("g1", "o1")]; got.Status != "" {
		t.Fatalf("attacker status = %q, want unchanged", got.Status)
	}
}

func TestRecordBattleSyntheticLog(t *testing.T) {
	battles := &fakeBattleStore{}
	recorder := testRecorder(battles, newFakeParticipantStore())

	_, err := recorder.RecordBattle(context.Background(), Outcome{
		GameID:        "g1",
		AttackerID:    "o1",
		Result:        "draw",
		FinalPrompt:   "Last stand",
		FinalResponse: "Stalemate.\ndraw",
	})
	if err != nil {
		t.Fatalf("record battle: %v", err)
	}
	if len(battles.logs) != 1 || battles.logs[0].TurnNo != 1 {
		t.Fatalf("logs = %+v, want single synthetic turn 1", battles.logs)
	}
	if battles.logs[0].Prompt != "Last stand" {
		t.Fatalf("prompt = %q", battles.logs[0].Prompt)
	}
}

func TestRecordBattleAlwaysLogsOneTurn(t *testing.T) {
	battles := &fakeBattleStore{}
	recorder := testRecorder(battles, newFakeParticipantStore())

	_, err := recorder.RecordBattle(context.Background(), Outcome{
		GameID:     "g1",
		AttackerID: "o1",
		Result:     "lose",
	})
	if err != nil {
		t.Fatalf("record battle: %v", err)
	}
	if len(battles.logs) != 1 || battles.logs[0].TurnNo != 1 {
		t.Fatalf("logs = %+v, want one synthetic turn even without exchanges", battles.logs)
	}
}

func TestRecordBattleDedupesTurnNumbers(t *testing.T) {
	battles := &fakeBattleStore{}
	recorder := testRecorder(battles, newFakeParticipantStore())

	_, err := recorder.RecordBattle(context.Background(), Outcome{
		GameID:     "g1",
		AttackerID: "o1",
		Result:     "win",
		Exchanges: []TurnExchange{
			{TurnNo: 1, Prompt: "a", Response: "a"},
			{TurnNo: 1, Prompt: "b", Response: "b"},
			{TurnNo: 0, Prompt: "c", Response: "c"},
		},
	})
	if err != nil {
		t.Fatalf("record battle: %v", err)
	}
	if len(battles.logs) != 3 {
		t.Fatalf("logs len = %d, want 3", len(battles.logs))
	}
	seen := map[int]bool{}
	for _, entry := range battles.logs {
		if seen[entry.TurnNo] {
			t.Fatalf("duplicate turn number %d", entry.TurnNo)
		}
		seen[entry.TurnNo] = true
	}
	for i := 1; i < len(battles.logs); i++ {
		if battles.logs[i].TurnNo <= battles.logs[i-1].TurnNo {
			t.Fatalf("logs not ordered: %+v", battles.logs)
		}
	}
}

func TestRecordBattleValidation(t *testing.T) {
	recorder := testRecorder(&fakeBattleStore{}, newFakeParticipantStore())
	ctx := context.Background()

	if _, err := recorder.RecordBattle(ctx, Outcome{AttackerID: "o1", Result: "win"}); err == nil {
		t.Fatal("expected error for missing game id")
	}
	if _, err := recorder.RecordBattle(ctx, Outcome{GameID: "g1", Result: "win"}); err == nil {
		t.Fatal("expected error for missing attacker")
	}
	if _, err := recorder.RecordBattle(ctx, Outcome{GameID: "g1", AttackerID: "o1"}); err == nil {
		t.Fatal("expected error for missing result")
	}
}

func TestApplyParticipantOutcomeRetriesGuardMisses(t *testing.T) {
	participants := newFakeParticipantStore()
	participants.records[key("g1", "o1")] = storage.ParticipantRecord{
		GameID: "g1", OwnerID: "o1", Rating: 1000, Score: 1000,
	}
	participants.missGuards[key("g1", "o1")] = 2
	recorder := testRecorder(&fakeBattleStore{}, participants)

	if err := recorder.ApplyParticipantOutcome(context.Background(), "g1", "o1", nil, 25, "", true); err != nil {
		t.Fatalf("apply outcome: %v", err)
	}
	if participants.updates != 3 {
		t.Fatalf("guarded updates = %d, want 3 (two misses then a hit)", participants.updates)
	}
	got := participants.records[key("g1", "o1")]
	if got.Rating != 1025 || got.Wins != 1 {
		t.Fatalf("record = %+v, want single applied delta", got)
	}
}

func TestApplyParticipantOutcomeExhaustsRetries(t *testing.T) {
	participants := newFakeParticipantStore()
	participants.records[key("g1", "o1")] = storage.ParticipantRecord{GameID: "g1", OwnerID: "o1"}
	participants.missGuards[key("g1", "o1")] = 10
	recorder := testRecorder(&fakeBattleStore{}, participants)

	err := recorder.ApplyParticipantOutcome(context.Background(), "g1", "o1", nil, 25, "", false)
	if err == nil {
		t.Fatal("expected conflict error after exhausted retries")
	}
	var domainErr *arenaerrors.Error
	if !errors.As(err, &domainErr) || domainErr.Code != arenaerrors.CodeParticipantConflict {
		t.Fatalf("err = %v, want %s", err, arenaerrors.CodeParticipantConflict)
	}
	if participants.updates != 4 {
		t.Fatalf("guarded updates = %d, want bounded at 4", participants.updates)
	}
}

func TestApplyParticipantOutcomeCreatesMissing(t *testing.T) {
	participants := newFakeParticipantStore()
	recorder := testRecorder(&fakeBattleStore{}, participants)

	if err := recorder.ApplyParticipantOutcome(context.Background(), "g1", "ghost", nil, -10, "", false); err != nil {
		t.Fatalf("apply outcome: %v", err)
	}
	got := participants.records[key("g1", "ghost")]
	if got.Rating != 990 || got.Score != 990 || got.Battles != 1 {
		t.Fatalf("record = %+v, want defaults plus delta", got)
	}
}

func TestApplyParticipantOutcomeUnionsHeroIDs(t *testing.T) {
	participants := newFakeParticipantStore()
	participants.records[key("g1", "o1")] = storage.ParticipantRecord{
		GameID: "g1", OwnerID: "o1", Rating: 1000, Score: 1000,
		HeroIDs: []string{"h1"},
	}
	recorder := testRecorder(&fakeBattleStore{}, participants)

	if err := recorder.ApplyParticipantOutcome(context.Background(), "g1", "o1", []string{"h2", "h1", " "}, 5, "", true); err != nil {
		t.Fatalf("apply outcome: %v", err)
	}
	got := participants.records[key("g1", "o1")]
	if len(got.HeroIDs) != 2 || got.HeroIDs[0] != "h1" || got.HeroIDs[1] != "h2" {
		t.Fatalf("hero ids = %v, want [h1 h2]", got.HeroIDs)
	}
}

func TestStampAfterMonotonic(t *testing.T) {
	recorder := NewRecorder(&fakeBattleStore{}, newFakeParticipantStore())
	frozen := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	recorder.now = func() time.Time { return frozen }

	first := recorder.stampAfter(nil)
	if !first.Equal(frozen) {
		t.Fatalf("stamp = %v, want clock value", first)
	}
	// A guard at the clock value forces a strictly later stamp.
	second := recorder.stampAfter(first)
	if !second.After(*first) {
		t.Fatalf("stamp %v not after guard %v", second, first)
	}
}
