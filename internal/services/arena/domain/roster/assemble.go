package roster

import (
	"fmt"
)

// AssembleResult is the assembler's answer for one queue snapshot.
type AssembleResult struct {
	Ready       bool
	Assignments Roster
}

// HeroResolver maps a hero id to its display name. A nil resolver leaves
// hero names empty for a later enrichment pass.
type HeroResolver func(heroID string) string

// Assemble consults the matching primitive and flattens its role-grouped
// assignments into a normalized roster with global slot indices.
func Assemble(roles []Role, queue []QueueEntry, mode MatchMode, matcher Matcher, heroName HeroResolver) (AssembleResult, error) {
	if matcher == nil {
		return AssembleResult{}, fmt.Errorf("matcher is required")
	}
	if len(roles) == 0 {
		return AssembleResult{}, fmt.Errorf("role table is empty")
	}

	req := MatchRequest{Roles: roles, Queue: queue}
	var (
		result MatchResult
		err    error
	)
	if mode == ModeCasual {
		result, err = matcher.MatchCasual(req)
	} else {
		result, err = matcher.MatchRanked(req)
	}
	if err != nil {
		return AssembleResult{}, fmt.Errorf("match participants: %w", err)
	}
	if !result.Ready {
		return AssembleResult{Ready: false}, nil
	}

	offsets := Offsets(roles)
	cursor := make(map[string]int, len(roles))

	flattened := make([]SlotAssignment, 0, Capacity(roles))
	for _, assignment := range result.Assignments {
		offset, known := offsets[assignment.Role]
		if !known {
			continue
		}
		for _, member := range assignment.Members {
			index := offset + cursor[assignment.Role]
			cursor[assignment.Role]++
			score := member.Score
			entry := SlotAssignment{
				SlotIndex:   index,
				Role:        assignment.Role,
				OwnerID:     member.OwnerID,
				HeroID:      member.HeroID,
				Ready:       true,
				MatchSource: SourceQueue,
				Score:       &score,
				Status:      "alive",
			}
			if heroName != nil {
				entry.HeroName = heroName(member.HeroID)
			}
			flattened = append(flattened, entry)
		}
	}

	return AssembleResult{Ready: true, Assignments: Normalize(flattened)}, nil
}
