// Package condition evaluates guard predicates on narrative bridge transitions.
//
// Conditions form a closed tagged union: every supported kind has an explicit
// evaluation arm, and unrecognized kinds deliberately evaluate to true so that
// content authored against a newer vocabulary never deadlocks an older engine.
package condition

import (
	"regexp"
	"strings"

	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/statusindex"
)

// Kind discriminates the condition union.
type Kind string

const (
	// KindTurnGTE holds when the current turn is at least Value.
	KindTurnGTE Kind = "turn_gte"
	// KindTurnLTE holds when the current turn is at most Value.
	KindTurnLTE Kind = "turn_lte"
	// KindPrevAIContains matches a substring in recent AI output.
	KindPrevAIContains Kind = "prev_ai_contains"
	// KindPrevPromptContains matches a substring in recent prompts.
	KindPrevPromptContains Kind = "prev_prompt_contains"
	// KindPrevAIRegex matches recent AI output against a pattern.
	KindPrevAIRegex Kind = "prev_ai_regex"
	// KindVisitedSlot holds when a narrative node has been visited.
	KindVisitedSlot Kind = "visited_slot"
	// KindVarOn matches triggered variable names against the active pool.
	KindVarOn Kind = "var_on"
	// KindCount compares a status-index count against Value.
	KindCount Kind = "count"
)

// Scope selects which variable pool a var_on condition inspects.
type Scope string

const (
	// ScopeGlobal inspects session-wide variables.
	ScopeGlobal Scope = "global"
	// ScopeLocal inspects node-local variables.
	ScopeLocal Scope = "local"
	// ScopeBoth inspects both pools.
	ScopeBoth Scope = "both"
)

// Match selects how many names of a var_on list must be active.
type Match string

const (
	// MatchAny holds when at least one name is active.
	MatchAny Match = "any"
	// MatchAll holds only when every name is active.
	MatchAll Match = "all"
)

// Comparator is the comparison operator for count conditions.
//
// Only eq/lte/gte exist; stricter operators were never part of the
// condition vocabulary and are intentionally not inferred.
type Comparator string

const (
	// CmpEq holds when the count equals Value.
	CmpEq Comparator = "eq"
	// CmpLTE holds when the count is at most Value.
	CmpLTE Comparator = "lte"
	// CmpGTE holds when the count is at least Value.
	CmpGTE Comparator = "gte"
)

// Condition is one guard predicate on a bridge.
//
// Kind selects the variant; the remaining fields are interpreted per kind and
// ignored otherwise.
type Condition struct {
	Kind Kind

	// Value is the turn threshold for turn_* and the target for count.
	Value int

	// Text is the substring for *_contains and the pattern for prev_ai_regex.
	Text string

	// Window bounds *_contains and regex matches to the trailing N lines of
	// history (1, 2 or 5 in authored content); zero or negative means the
	// full history.
	Window int

	// Slot is the node identifier for visited_slot.
	Slot string

	// Names, Match and Scope parameterize var_on.
	Names []string
	Match Match
	Scope Scope

	// Who, Role, Status and Cmp parameterize count.
	Who    statusindex.Who
	Role   string
	Status statusindex.Status
	Cmp    Comparator
}

// Context carries the turn state a condition is evaluated against.
type Context struct {
	Turn int

	// AILines and PromptLines hold history text, oldest first.
	AILines     []string
	PromptLines []string

	// Visited is the set of narrative nodes seen so far.
	Visited map[string]bool

	// GlobalVars and LocalVars are the active variable pools.
	GlobalVars map[string]bool
	LocalVars  map[string]bool

	// Status and MyRole feed count conditions.
	Status *statusindex.Index
	MyRole string
}

// Evaluate interprets one condition against the context.
//
// Malformed narrative data (bad regex, missing status index) evaluates to
// false rather than surfacing an error; unknown kinds evaluate to true.
func Evaluate(c Condition, ctx Context) bool {
	switch c.Kind {
	case KindTurnGTE:
		return ctx.Turn >= c.Value
	case KindTurnLTE:
		return ctx.Turn <= c.Value
	case KindPrevAIContains:
		return containsFold(window(ctx.AILines, c.Window), c.Text)
	case KindPrevPromptContains:
		return containsFold(window(ctx.PromptLines, c.Window), c.Text)
	case KindPrevAIRegex:
		re, err := regexp.Compile(c.Text)
		if err != nil {
			return false
		}
		return re.MatchString(window(ctx.AILines, c.Window))
	case KindVisitedSlot:
		return ctx.Visited[c.Slot]
	case KindVarOn:
		return varOn(c, ctx)
	case KindCount:
		return count(c, ctx)
	}
	// Unknown kinds fail open so content can introduce new vocabulary
	// without stranding sessions on older engines.
	return true
}

// All reports whether every condition holds; an empty list holds trivially.
func All(conditions []Condition, ctx Context) bool {
	for _, c := range conditions {
		if !Evaluate(c, ctx) {
			return false
		}
	}
	return true
}

func window(lines []string, n int) string {
	if n > 0 && n < len(lines) {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

func containsFold(haystack, needle string) bool {
	if needle == "" {
		return false
	}
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}

func varOn(c Condition, ctx Context) bool {
	if len(c.Names) == 0 {
		return false
	}
	active := func(name string) bool {
		switch c.Scope {
		case ScopeGlobal:
			return ctx.GlobalVars[name]
		case ScopeLocal:
			return ctx.LocalVars[name]
		}
		return ctx.GlobalVars[name] || ctx.LocalVars[name]
	}
	if c.Match == MatchAll {
		for _, name := range c.Names {
			if !active(name) {
				return false
			}
		}
		return true
	}
	for _, name := range c.Names {
		if active(name) {
			return true
		}
	}
	return false
}

func count(c Condition, ctx Context) bool {
	if ctx.Status == nil {
		return false
	}
	got, err := ctx.Status.Count(statusindex.Query{Who: c.Who, Role: c.Role, Status: c.Status}, ctx.MyRole)
	if err != nil {
		return false
	}
	switch c.Cmp {
	case CmpLTE:
		return got <= c.Value
	case CmpGTE:
		return got >= c.Value
	}
	return got == c.Value
}
