package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "arena.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}

func seedGame(t *testing.T, store *Store, id string) {
	t.Helper()
	err := store.CreateGame(context.Background(), storage.Game{
		ID:        id,
		Name:      "Proving Grounds",
		Mode:      "ranked",
		RulesText: "fight with honor",
	})
	if err != nil {
		t.Fatalf("create game: %v", err)
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestCloseNilSafe(t *testing.T) {
	var store *Store
	if err := store.Close(); err != nil {
		t.Fatalf("close nil store: %v", err)
	}
}

func TestGameRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")

	got, err := store.GetGame(context.Background(), "g1")
	if err != nil {
		t.Fatalf("get game: %v", err)
	}
	if got.Name != "Proving Grounds" || got.Mode != "ranked" {
		t.Fatalf("game = %+v, want seeded fields", got)
	}
	if got.RulesText != "fight with honor" {
		t.Fatalf("rules text = %q", got.RulesText)
	}

	if err := store.CreateGame(context.Background(), storage.Game{ID: "g1", Name: "x", Mode: "casual"}); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate game err = %v, want %v", err, storage.ErrAlreadyExists)
	}
	if _, err := store.GetGame(context.Background(), "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing game err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestRolesReplaceAndOrder(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()

	roles := []storage.RoleRow{
		{ID: "r1", Name: "tank", SlotCount: 2},
		{ID: "r2", Name: "healer", SlotCount: 1},
	}
	if err := store.PutRoles(ctx, "g1", roles); err != nil {
		t.Fatalf("put roles: %v", err)
	}

	got, err := store.ListRoles(ctx, "g1")
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(got) != 2 || got[0].Name != "tank" || got[1].Position != 1 {
		t.Fatalf("roles = %+v, want tank then healer in position order", got)
	}

	// A second put replaces the table wholesale.
	if err := store.PutRoles(ctx, "g1", []storage.RoleRow{{ID: "r3", Name: "striker", SlotCount: 3}}); err != nil {
		t.Fatalf("replace roles: %v", err)
	}
	got, err = store.ListRoles(ctx, "g1")
	if err != nil {
		t.Fatalf("list roles: %v", err)
	}
	if len(got) != 1 || got[0].Name != "striker" {
		t.Fatalf("roles = %+v, want single striker row", got)
	}

	if err := store.PutRoles(ctx, "g1", []storage.RoleRow{{ID: "r4", Name: "bard", SlotCount: 0}}); err == nil {
		t.Fatal("expected error for zero slot count")
	}
}

func TestHeroUpsert(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()

	if err := store.PutHero(ctx, storage.Hero{ID: "h1", GameID: "g1", Name: "Vanguard"}); err != nil {
		t.Fatalf("put hero: %v", err)
	}
	if err := store.PutHero(ctx, storage.Hero{ID: "h1", GameID: "g1", Name: "Vanguard Prime"}); err != nil {
		t.Fatalf("upsert hero: %v", err)
	}

	got, err := store.GetHero(ctx, "h1")
	if err != nil {
		t.Fatalf("get hero: %v", err)
	}
	if got.Name != "Vanguard Prime" {
		t.Fatalf("hero name = %q, want upserted name", got.Name)
	}

	listed, err := store.ListHeroes(ctx, "g1")
	if err != nil {
		t.Fatalf("list heroes: %v", err)
	}
	if len(listed) != 1 {
		t.Fatalf("heroes len = %d, want 1", len(listed))
	}
	if _, err := store.GetHero(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing hero err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestQueueLifecycle(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)

	entries := []storage.QueueEntry{
		{ID: "q2", GameID: "g1", OwnerID: "o2", HeroID: "h2", Role: "tank", Score: 1010, JoinedAt: base.Add(time.Minute)},
		{ID: "q1", GameID: "g1", OwnerID: "o1", HeroID: "h1", Role: "tank", Score: 1000, JoinedAt: base},
	}
	for _, entry := range entries {
		if err := store.Enqueue(ctx, entry); err != nil {
			t.Fatalf("enqueue %s: %v", entry.ID, err)
		}
	}

	// One entry per owner per game.
	err := store.Enqueue(ctx, storage.QueueEntry{ID: "q3", GameID: "g1", OwnerID: "o1", HeroID: "h9", Role: "healer"})
	if !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate owner err = %v, want %v", err, storage.ErrAlreadyExists)
	}

	got, err := store.ListQueue(ctx, "g1")
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(got) != 2 || got[0].ID != "q1" {
		t.Fatalf("queue = %+v, want oldest-first q1", got)
	}

	if err := store.RemoveQueueEntries(ctx, "g1", []string{"q1"}); err != nil {
		t.Fatalf("remove queue entries: %v", err)
	}
	got, err = store.ListQueue(ctx, "g1")
	if err != nil {
		t.Fatalf("list queue: %v", err)
	}
	if len(got) != 1 || got[0].ID != "q2" {
		t.Fatalf("queue = %+v, want only q2", got)
	}
}

func TestParticipantDefaultsAndRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()

	record := storage.ParticipantRecord{
		GameID:  "g1",
		OwnerID: "o1",
		HeroID:  "h1",
		HeroIDs: []string{"h1", "h2"},
		Rating:  storage.DefaultRating,
		Score:   storage.DefaultScore,
	}
	if err := store.InsertParticipant(ctx, record); err != nil {
		t.Fatalf("insert participant: %v", err)
	}

	got, err := store.GetParticipant(ctx, "g1", "o1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if got.Rating != 1000 || got.Score != 1000 {
		t.Fatalf("rating/score = %v/%v, want 1000/1000 defaults", got.Rating, got.Score)
	}
	if got.Status != "alive" {
		t.Fatalf("status = %q, want alive default", got.Status)
	}
	if got.UpdatedAt != nil {
		t.Fatalf("updated at = %v, want nil before first guarded update", got.UpdatedAt)
	}
	if len(got.HeroIDs) != 2 || got.HeroIDs[0] != "h1" {
		t.Fatalf("hero ids = %v, want h1,h2", got.HeroIDs)
	}

	if err := store.InsertParticipant(ctx, record); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate participant err = %v, want %v", err, storage.ErrAlreadyExists)
	}
	if _, err := store.GetParticipant(ctx, "g1", "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("missing participant err = %v, want %v", err, storage.ErrNotFound)
	}
}

func TestParticipantZeroStandingRoundTrip(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()

	if err := store.InsertParticipant(ctx, storage.ParticipantRecord{GameID: "g1", OwnerID: "o1"}); err != nil {
		t.Fatalf("insert participant: %v", err)
	}
	got, err := store.GetParticipant(ctx, "g1", "o1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if got.Rating != 0 || got.Score != 0 {
		t.Fatalf("rating/score = %v/%v, want zero standing stored verbatim", got.Rating, got.Score)
	}
}

func TestParticipantGuardedUpdate(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()

	if err := store.InsertParticipant(ctx, storage.ParticipantRecord{GameID: "g1", OwnerID: "o1"}); err != nil {
		t.Fatalf("insert participant: %v", err)
	}

	first, err := store.GetParticipant(ctx, "g1", "o1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}

	stamp := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	first.Battles = 1
	first.Rating = 1010
	first.UpdatedAt = &stamp
	landed, err := store.UpdateParticipantGuarded(ctx, first, nil)
	if err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	if !landed {
		t.Fatal("expected first guarded update to land on NULL guard")
	}

	// A stale guard (still NULL) must miss now.
	first.Battles = 99
	landed, err = store.UpdateParticipantGuarded(ctx, first, nil)
	if err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	if landed {
		t.Fatal("stale NULL guard should miss")
	}

	// Updating against the current stamp lands.
	next := stamp.Add(time.Second)
	first.Battles = 2
	first.UpdatedAt = &next
	landed, err = store.UpdateParticipantGuarded(ctx, first, &stamp)
	if err != nil {
		t.Fatalf("guarded update: %v", err)
	}
	if !landed {
		t.Fatal("matching guard should land")
	}

	got, err := store.GetParticipant(ctx, "g1", "o1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if got.Battles != 2 || got.Rating != 1010 {
		t.Fatalf("participant = %+v, want battles 2 rating 1010", got)
	}
	if got.UpdatedAt == nil || !got.UpdatedAt.Equal(next) {
		t.Fatalf("updated at = %v, want %v", got.UpdatedAt, next)
	}
}

func TestParticipantGuardedUpdateConcurrentRetry(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()

	seed := storage.ParticipantRecord{
		GameID:  "g1",
		OwnerID: "o1",
		Rating:  storage.DefaultRating,
		Score:   storage.DefaultScore,
	}
	if err := store.InsertParticipant(ctx, seed); err != nil {
		t.Fatalf("insert participant: %v", err)
	}

	// Two writers race read-modify-write cycles; the guard forces the loser
	// to re-read, so both deltas survive.
	apply := func(delta float64) error {
		for attempt := 0; attempt < 20; attempt++ {
			record, err := store.GetParticipant(ctx, "g1", "o1")
			if err != nil {
				return err
			}
			expected := record.UpdatedAt
			stamp := time.Now().UTC()
			if expected != nil && !stamp.After(*expected) {
				stamp = expected.Add(time.Millisecond)
			}
			record.Rating += delta
			record.Battles++
			record.UpdatedAt = &stamp
			landed, err := store.UpdateParticipantGuarded(ctx, record, expected)
			if err != nil {
				return err
			}
			if landed {
				return nil
			}
		}
		return errors.New("guard never landed")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, delta := range []float64{25, -10} {
		wg.Add(1)
		go func(delta float64) {
			defer wg.Done()
			errs <- apply(delta)
		}(delta)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent apply: %v", err)
		}
	}

	got, err := store.GetParticipant(ctx, "g1", "o1")
	if err != nil {
		t.Fatalf("get participant: %v", err)
	}
	if got.Battles != 2 {
		t.Fatalf("battles = %d, want both writes to survive", got.Battles)
	}
	if got.Rating != 1000+25-10 {
		t.Fatalf("rating = %v, want 1015", got.Rating)
	}
}

func TestBattleAndTurnLogs(t *testing.T) {
	store := openTestStore(t)
	seedGame(t, store, "g1")
	ctx := context.Background()

	id, err := store.InsertBattle(ctx, storage.Battle{
		GameID:           "g1",
		SessionID:        "s1",
		AttackerID:       "o1",
		AttackerHeroIDs:  []string{"h1"},
		DefenderOwnerIDs: []string{"o2", "o3"},
		DefenderHeroIDs:  []string{"h2", "h3"},
		Result:           "win",
		Delta:            25,
	})
	if err != nil {
		t.Fatalf("insert battle: %v", err)
	}
	if id == 0 {
		t.Fatal("expected generated battle id")
	}

	logs := []storage.TurnLog{
		{BattleID: id, TurnNo: 1, Prompt: "Attack!", Response: "Blocked.\ncontinue"},
		{BattleID: id, TurnNo: 2, Prompt: "Finish it!", Response: "Victory.\nwin"},
	}
	if err := store.InsertTurnLogs(ctx, logs); err != nil {
		t.Fatalf("insert turn logs: %v", err)
	}
	if err := store.InsertTurnLogs(ctx, logs[:1]); !errors.Is(err, storage.ErrAlreadyExists) {
		t.Fatalf("duplicate turn log err = %v, want %v", err, storage.ErrAlreadyExists)
	}

	battles, err := store.ListBattles(ctx, "g1", 10)
	if err != nil {
		t.Fatalf("list battles: %v", err)
	}
	if len(battles) != 1 || battles[0].Result != "win" {
		t.Fatalf("battles = %+v, want single win", battles)
	}
	if got := battles[0]; len(got.AttackerHeroIDs) != 1 || got.AttackerHeroIDs[0] != "h1" {
		t.Fatalf("attacker hero ids = %v, want [h1]", got.AttackerHeroIDs)
	}
	if got := battles[0]; len(got.DefenderOwnerIDs) != 2 || got.DefenderOwnerIDs[1] != "o3" {
		t.Fatalf("defender owner ids = %v, want [o2 o3]", got.DefenderOwnerIDs)
	}
	if got := battles[0]; len(got.DefenderHeroIDs) != 2 || got.DefenderHeroIDs[0] != "h2" {
		t.Fatalf("defender hero ids = %v, want [h2 h3]", got.DefenderHeroIDs)
	}

	gotLogs, err := store.ListTurnLogs(ctx, id)
	if err != nil {
		t.Fatalf("list turn logs: %v", err)
	}
	if len(gotLogs) != 2 || gotLogs[0].TurnNo != 1 || gotLogs[1].Response != "Victory.\nwin" {
		t.Fatalf("turn logs = %+v, want two ordered logs", gotLogs)
	}
}
