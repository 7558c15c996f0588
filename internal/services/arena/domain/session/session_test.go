package session

import "testing"

func TestStoreLifecycle(t *testing.T) {
	store := NewStore()
	store.Put(&Session{ID: "s1"})
	store.Put(&Session{ID: "s2"})

	if store.Len() != 2 {
		t.Fatalf("len = %d, want 2", store.Len())
	}
	got, ok := store.Get("s1")
	if !ok || got.ID != "s1" {
		t.Fatalf("get s1 = %+v ok=%v", got, ok)
	}
	if !store.Delete("s1") {
		t.Fatal("expected delete of existing session")
	}
	if store.Delete("s1") {
		t.Fatal("expected second delete to report missing")
	}
	if _, ok := store.Get("s1"); ok {
		t.Fatal("deleted session still present")
	}
}

func TestStoreNilSafe(t *testing.T) {
	var store *Store
	store.Put(&Session{ID: "s1"})
	if _, ok := store.Get("s1"); ok {
		t.Fatal("nil store returned a session")
	}
	if store.Delete("s1") {
		t.Fatal("nil store reported a delete")
	}
	if store.Len() != 0 {
		t.Fatal("nil store reported sessions")
	}
}

func TestParseRules(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Config
	}{
		{
			name: "directives among narrative",
			text: "Fight with honor.\nend_condition: finale\nbrawl: on\nNo healing potions.",
			want: Config{EndConditionVariable: "finale", BrawlEnabled: true},
		},
		{
			name: "equals separator",
			text: "brawl_enabled=true\nend_condition_variable=last_stand",
			want: Config{EndConditionVariable: "last_stand", BrawlEnabled: true},
		},
		{
			name: "brawl off",
			text: "end_condition: finale\nbrawl: off",
			want: Config{EndConditionVariable: "finale"},
		},
		{
			name: "plain narrative only",
			text: "The arena is a circle of sand.\nTwo enter, one leaves.",
			want: Config{},
		},
		{
			name: "empty text",
			text: "",
			want: Config{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ParseRules(tt.text); got != tt.want {
				t.Fatalf("ParseRules(%q) = %+v, want %+v", tt.text, got, tt.want)
			}
		})
	}
}
