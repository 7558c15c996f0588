// Package outcome extracts structured battle results from free-form AI responses.
package outcome

import "strings"

// Action is the structured result of one AI turn.
type Action string

const (
	// ActionWin marks a turn the acting side won.
	ActionWin Action = "win"
	// ActionLose marks a turn the acting side lost.
	ActionLose Action = "lose"
	// ActionDraw marks a stalemate turn.
	ActionDraw Action = "draw"
	// ActionContinue marks a turn with no terminal result.
	ActionContinue Action = "continue"
)

// Outcome is the parsed result of one AI response.
type Outcome struct {
	Action    Action
	Variables []string
}

// Parse extracts an outcome from raw AI text by positional convention:
// the last non-blank line is the result token, the second-to-last is a
// whitespace-separated list of triggered variable names, and everything
// above is free narrative.
//
// Parse never fails. Text without a recognizable trailing token degrades
// to a continue outcome with no variables, since narrative output is
// untrusted free-form data.
func Parse(text string) Outcome {
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return Outcome{Action: ActionContinue, Variables: []string{}}
	}

	action, ok := parseAction(lines[len(lines)-1])
	if !ok {
		return Outcome{Action: ActionContinue, Variables: []string{}}
	}

	variables := []string{}
	if len(lines) >= 2 {
		variables = strings.Fields(lines[len(lines)-2])
	}
	return Outcome{Action: action, Variables: variables}
}

// Narrative returns the free-text portion of a response, with the trailing
// token lines removed when a result token is present.
func Narrative(text string) string {
	lines := nonBlankLines(text)
	if len(lines) == 0 {
		return ""
	}
	if _, ok := parseAction(lines[len(lines)-1]); !ok {
		return strings.Join(lines, "\n")
	}
	end := len(lines) - 1
	if end > 0 {
		end--
	}
	return strings.Join(lines[:end], "\n")
}

func parseAction(line string) (Action, bool) {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "win":
		return ActionWin, true
	case "lose":
		return ActionLose, true
	case "draw":
		return ActionDraw, true
	}
	return ActionContinue, false
}

func nonBlankLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, strings.TrimSpace(line))
		}
	}
	return lines
}
