// Package session drives the turn-by-turn battle state machine.
//
// Session state is process-local and keyed by session id. The store does
// not lock; callers serialize access per session id.
package session

import (
	"strings"
	"time"

	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/graph"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/outcome"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/roster"
)

// State is the session lifecycle state.
type State string

const (
	StateCreated  State = "created"
	StateActive   State = "active"
	StateFinished State = "finished"
)

// HistoryEntry is one stored conversation entry. Idx increases strictly
// with append order within a session.
//
// Stored roles use the session vocabulary (system, player, assistant);
// remapping to the transport vocabulary happens at invoke time. Assistant
// entries carry the outcome parsed from their content.
type HistoryEntry struct {
	Idx       int
	Role      string
	Content   string
	Outcome   *outcome.Outcome
	CreatedAt time.Time
}

const (
	historyRoleSystem    = "system"
	historyRolePlayer    = "player"
	historyRoleAssistant = "assistant"
)

// Config is the per-session rule configuration parsed from a game's rules
// text.
type Config struct {
	EndConditionVariable string
	BrawlEnabled         bool
}

// Session is one live battle session.
type Session struct {
	ID       string
	GameID   string
	GameName string
	Mode     string
	Slots    roster.Roster
	State    State
	History  []HistoryEntry
	Config   Config

	Turn          int
	WinCount      int
	StatusMessage string

	// Graph is optional; without one the narrative flows free-form.
	Graph       *graph.Graph
	CurrentNode string
	Visited     map[string]bool
	GlobalVars  map[string]bool
	LocalVars   map[string]bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store holds live sessions keyed by id. It performs no locking of its
// own; callers serialize per-session access.
type Store struct {
	sessions map[string]*Session
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Session)}
}

// Put stores a session under its id.
func (s *Store) Put(session *Session) {
	if s == nil || session == nil {
		return
	}
	s.sessions[session.ID] = session
}

// Get returns the session for id.
func (s *Store) Get(id string) (*Session, bool) {
	if s == nil {
		return nil, false
	}
	session, ok := s.sessions[id]
	return session, ok
}

// Delete removes the session for id and reports whether it existed.
func (s *Store) Delete(id string) bool {
	if s == nil {
		return false
	}
	if _, ok := s.sessions[id]; !ok {
		return false
	}
	delete(s.sessions, id)
	return true
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	if s == nil {
		return 0
	}
	return len(s.sessions)
}

// ParseRules extracts the session configuration from free-form rules text.
//
// Directive lines use "key: value" or "key=value"; recognized keys are
// end_condition and brawl. Everything else is narrative and ignored.
func ParseRules(text string) Config {
	var cfg Config
	for _, line := range strings.Split(text, "\n") {
		key, value, ok := splitDirective(line)
		if !ok {
			continue
		}
		switch key {
		case "end_condition", "end_condition_variable":
			cfg.EndConditionVariable = value
		case "brawl", "brawl_enabled":
			switch strings.ToLower(value) {
			case "on", "true", "yes", "enabled", "1":
				cfg.BrawlEnabled = true
			}
		}
	}
	return cfg
}

func splitDirective(line string) (key, value string, ok bool) {
	line = strings.TrimSpace(line)
	for _, sep := range []string{":", "="} {
		if idx := strings.Index(line, sep); idx > 0 {
			key = strings.ToLower(strings.TrimSpace(line[:idx]))
			value = strings.TrimSpace(line[idx+len(sep):])
			if key != "" && value != "" && !strings.ContainsAny(key, " \t") {
				return key, value, true
			}
			return "", "", false
		}
	}
	return "", "", false
}
