// Package roster assembles role-slot assignments for a battle session.
//
// The matching primitive that groups queue entries into role assignments is an
// external collaborator; this package owns the post-processing: mapping
// role-slots to global slot indices, resolving members to heroes and slots,
// and normalizing the result into a canonical roster.
package roster

import (
	"sort"
	"strings"
	"time"
)

// MatchMode selects the matching discipline for assembly.
type MatchMode string

const (
	// ModeRanked groups queue entries preferring tighter score windows.
	ModeRanked MatchMode = "ranked"
	// ModeCasual groups queue entries without score constraints.
	ModeCasual MatchMode = "casual"
)

// Match sources recorded on slot assignments.
const (
	// SourceQueue marks a seat filled from the live queue.
	SourceQueue = "queue"
	// SourcePlaceholder marks a synthetic stand-in occupant.
	SourcePlaceholder = "async_standin_placeholder"
	// SourcePool marks a real backup candidate drawn from the participant pool.
	SourcePool = "participant_pool"
)

// Role defines how many seats a role contributes to a session.
// Role ordering is stable and defines global slot-index offsets.
type Role struct {
	ID        string
	Name      string
	SlotCount int
}

// QueueEntry represents a player waiting to be matched.
type QueueEntry struct {
	ID       string
	OwnerID  string
	HeroID   string
	Role     string
	Score    float64
	JoinedAt time.Time
}

// SlotAssignment is one seat in a roster. SlotIndex is the unique invariant
// key; OwnerID is unique across non-empty entries.
type SlotAssignment struct {
	SlotIndex   int
	SlotID      string
	Role        string
	OwnerID     string
	HeroID      string
	HeroName    string
	Ready       bool
	Standin     bool
	MatchSource string
	Score       *float64
	Rating      *float64
	Battles     *int
	WinRate     *float64
	Status      string
}

// Roster is an ordered list of slot assignments.
type Roster []SlotAssignment

// Member is one matched player inside an assignment.
type Member struct {
	OwnerID string
	HeroID  string
	Score   float64
}

// Assignment is one role group produced by the matching primitive.
type Assignment struct {
	Role      string
	Members   []Member
	RoleSlots int
}

// MatchResult is the matching primitive's answer for one queue snapshot.
type MatchResult struct {
	Ready       bool
	Assignments []Assignment
}

// MatchRequest is the matching primitive's input.
type MatchRequest struct {
	Roles []Role
	Queue []QueueEntry
}

// Matcher is the external matching primitive consumed by Assemble.
type Matcher interface {
	MatchRanked(req MatchRequest) (MatchResult, error)
	MatchCasual(req MatchRequest) (MatchResult, error)
}

// Offsets returns the global slot-index offset of each role, computed as the
// cumulative sum of prior roles' slot counts in table order.
func Offsets(roles []Role) map[string]int {
	offsets := make(map[string]int, len(roles))
	next := 0
	for _, role := range roles {
		offsets[role.Name] = next
		if role.SlotCount > 0 {
			next += role.SlotCount
		}
	}
	return offsets
}

// Capacity returns the total seat count of the role table.
func Capacity(roles []Role) int {
	total := 0
	for _, role := range roles {
		if role.SlotCount > 0 {
			total += role.SlotCount
		}
	}
	return total
}

// Normalize canonicalizes raw assignments into a roster.
//
// Entries without a resolvable owner or hero id are dropped; duplicates are
// removed by owner (first occurrence wins) and by slot (SlotID when present,
// slot index otherwise); the result is stably sorted by (SlotIndex, OwnerID).
func Normalize(assignments []SlotAssignment) Roster {
	seenOwner := make(map[string]bool, len(assignments))
	seenSlotID := make(map[string]bool, len(assignments))
	seenSlotIndex := make(map[int]bool, len(assignments))

	normalized := make(Roster, 0, len(assignments))
	for _, entry := range assignments {
		entry.OwnerID = strings.TrimSpace(entry.OwnerID)
		entry.HeroID = strings.TrimSpace(entry.HeroID)
		entry.SlotID = strings.TrimSpace(entry.SlotID)
		if entry.OwnerID == "" || entry.HeroID == "" {
			continue
		}
		if seenOwner[entry.OwnerID] {
			continue
		}
		if entry.SlotID != "" {
			if seenSlotID[entry.SlotID] {
				continue
			}
		} else if seenSlotIndex[entry.SlotIndex] {
			continue
		}
		seenOwner[entry.OwnerID] = true
		if entry.SlotID != "" {
			seenSlotID[entry.SlotID] = true
		}
		seenSlotIndex[entry.SlotIndex] = true
		normalized = append(normalized, entry)
	}

	sort.SliceStable(normalized, func(i, j int) bool {
		if normalized[i].SlotIndex != normalized[j].SlotIndex {
			return normalized[i].SlotIndex < normalized[j].SlotIndex
		}
		return normalized[i].OwnerID < normalized[j].OwnerID
	})
	return normalized
}

// Validate reports whether the roster satisfies its invariants: unique,
// non-negative, ascending slot indices; unique owner ids; size within the
// role table's capacity.
func Validate(r Roster, roles []Role) bool {
	if len(r) > Capacity(roles) {
		return false
	}
	owners := make(map[string]bool, len(r))
	lastIndex := -1
	for _, entry := range r {
		if entry.SlotIndex < 0 || entry.SlotIndex <= lastIndex {
			return false
		}
		lastIndex = entry.SlotIndex
		if entry.OwnerID != "" {
			if owners[entry.OwnerID] {
				return false
			}
			owners[entry.OwnerID] = true
		}
	}
	return true
}
