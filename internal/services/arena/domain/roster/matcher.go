package roster

import (
	"fmt"
	"sort"
)

// defaultWindows is the ascending score-window ladder ranked matching
// expands through.
var defaultWindows = []float64{25, 50, 80, 120, 160, 220, 300, 380}

// WindowMatcher is an in-process matching primitive. Ranked matching
// prefers the tightest score window that yields a full role group,
// expanding progressively; casual matching fills in join order.
//
// The matcher returns partial assignments for roles it cannot fill; the
// stand-in selector covers the remaining seats.
type WindowMatcher struct {
	Windows []float64
}

// NewWindowMatcher builds a matcher with the default window ladder.
func NewWindowMatcher() *WindowMatcher {
	return &WindowMatcher{Windows: defaultWindows}
}

// MatchRanked groups queue entries per role preferring tighter score
// windows.
func (m *WindowMatcher) MatchRanked(req MatchRequest) (MatchResult, error) {
	if len(req.Roles) == 0 {
		return MatchResult{}, fmt.Errorf("at least one role is required")
	}
	windows := m.Windows
	if len(windows) == 0 {
		windows = defaultWindows
	}

	byRole := groupByRole(req.Queue)
	result := MatchResult{}
	for _, role := range req.Roles {
		entries := byRole[role.Name]
		if len(entries) == 0 {
			continue
		}
		sort.SliceStable(entries, func(i, j int) bool { return entries[i].Score < entries[j].Score })

		members := rankedGroup(entries, role.SlotCount, windows)
		if len(members) == 0 {
			// No window fits a full group; seat whoever joined earliest and
			// let stand-ins cover the rest.
			members = casualGroup(entries, role.SlotCount)
		}
		result.Assignments = append(result.Assignments, Assignment{
			Role:      role.Name,
			Members:   members,
			RoleSlots: role.SlotCount,
		})
	}
	result.Ready = len(result.Assignments) > 0
	return result, nil
}

// MatchCasual groups queue entries per role in join order.
func (m *WindowMatcher) MatchCasual(req MatchRequest) (MatchResult, error) {
	if len(req.Roles) == 0 {
		return MatchResult{}, fmt.Errorf("at least one role is required")
	}

	byRole := groupByRole(req.Queue)
	result := MatchResult{}
	for _, role := range req.Roles {
		entries := byRole[role.Name]
		if len(entries) == 0 {
			continue
		}
		result.Assignments = append(result.Assignments, Assignment{
			Role:      role.Name,
			Members:   casualGroup(entries, role.SlotCount),
			RoleSlots: role.SlotCount,
		})
	}
	result.Ready = len(result.Assignments) > 0
	return result, nil
}

func groupByRole(queue []QueueEntry) map[string][]QueueEntry {
	byRole := make(map[string][]QueueEntry)
	for _, entry := range queue {
		byRole[entry.Role] = append(byRole[entry.Role], entry)
	}
	return byRole
}

// rankedGroup returns the first full consecutive run of score-sorted
// entries whose spread fits the tightest possible window, or nil when no
// window fits.
func rankedGroup(sorted []QueueEntry, slotCount int, windows []float64) []Member {
	if slotCount <= 0 || len(sorted) < slotCount {
		return nil
	}
	for _, window := range windows {
		for start := 0; start+slotCount <= len(sorted); start++ {
			run := sorted[start : start+slotCount]
			if run[len(run)-1].Score-run[0].Score <= window {
				return toMembers(run)
			}
		}
	}
	return nil
}

func casualGroup(entries []QueueEntry, slotCount int) []Member {
	ordered := make([]QueueEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].JoinedAt.Before(ordered[j].JoinedAt) })
	if slotCount > 0 && len(ordered) > slotCount {
		ordered = ordered[:slotCount]
	}
	return toMembers(ordered)
}

func toMembers(entries []QueueEntry) []Member {
	members := make([]Member, 0, len(entries))
	for _, entry := range entries {
		members = append(members, Member{
			OwnerID: entry.OwnerID,
			HeroID:  entry.HeroID,
			Score:   entry.Score,
		})
	}
	return members
}
