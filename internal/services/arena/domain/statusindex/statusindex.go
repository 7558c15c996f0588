// Package statusindex aggregates per-role alive/defeated counters for a battle roster.
package statusindex

import (
	"errors"
	"strings"
)

// Who selects which participants a counting query covers.
type Who string

const (
	// WhoSame counts participants sharing the caller's role.
	WhoSame Who = "same"
	// WhoOther counts participants outside the caller's role.
	WhoOther Who = "other"
	// WhoRole counts participants of an explicit role.
	WhoRole Who = "role"
	// WhoAll counts every participant.
	WhoAll Who = "all"
)

// Status is the normalized liveness bucket of a participant.
type Status string

const (
	// StatusAlive marks a participant still standing.
	StatusAlive Status = "alive"
	// StatusDefeated marks a participant knocked out of the battle.
	StatusDefeated Status = "defeated"
)

var (
	// ErrMissingMyRole indicates a same/other query without a caller role reference.
	ErrMissingMyRole = errors.New("my role is required for same/other queries")
	// ErrMissingRole indicates a who=role query without an explicit role.
	ErrMissingRole = errors.New("role is required for role queries")
	// ErrUnknownWho indicates an unsupported who selector.
	ErrUnknownWho = errors.New("unknown who selector")
)

// Entry is one participant status observation.
type Entry struct {
	Role   string
	Status string
}

// Query parameterizes a counting request against the index.
type Query struct {
	Who    Who
	Role   string // required only when Who == WhoRole
	Status Status
}

type bucket struct {
	alive    int
	defeated int
}

// Index holds per-role alive/defeated counters plus grand totals.
type Index struct {
	byRole map[string]bucket
	total  bucket
}

// New classifies entries into alive/defeated buckets keyed by role.
//
// The statuses defeated, lost and eliminated all normalize to defeated;
// anything else counts as alive.
func New(entries []Entry) *Index {
	ix := &Index{byRole: make(map[string]bucket, 4)}
	for _, entry := range entries {
		role := strings.TrimSpace(entry.Role)
		b := ix.byRole[role]
		if Classify(entry.Status) == StatusDefeated {
			b.defeated++
			ix.total.defeated++
		} else {
			b.alive++
			ix.total.alive++
		}
		ix.byRole[role] = b
	}
	return ix
}

// Classify maps a raw status string to its liveness bucket.
func Classify(status string) Status {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "defeated", "lost", "eliminated":
		return StatusDefeated
	}
	return StatusAlive
}

// Count answers a counting query. Same/other queries compute complement
// counts by subtracting the caller's own bucket from the grand total.
func (ix *Index) Count(q Query, myRole string) (int, error) {
	myRole = strings.TrimSpace(myRole)
	switch q.Who {
	case WhoAll:
		return ix.pick(ix.total, q.Status), nil
	case WhoRole:
		role := strings.TrimSpace(q.Role)
		if role == "" {
			return 0, ErrMissingRole
		}
		return ix.pick(ix.byRole[role], q.Status), nil
	case WhoSame:
		if myRole == "" {
			return 0, ErrMissingMyRole
		}
		return ix.pick(ix.byRole[myRole], q.Status), nil
	case WhoOther:
		if myRole == "" {
			return 0, ErrMissingMyRole
		}
		return ix.pick(ix.total, q.Status) - ix.pick(ix.byRole[myRole], q.Status), nil
	}
	return 0, ErrUnknownWho
}

func (ix *Index) pick(b bucket, status Status) int {
	if status == StatusDefeated {
		return b.defeated
	}
	return b.alive
}
