package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	arenaerrors "github.com/louisbranch/skirmish.space/internal/platform/errors"
	"github.com/louisbranch/skirmish.space/internal/platform/id"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/condition"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/graph"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/outcome"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/roster"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/standin"
	"github.com/louisbranch/skirmish.space/internal/services/arena/domain/statusindex"
	"github.com/louisbranch/skirmish.space/internal/services/arena/storage"
	"github.com/louisbranch/skirmish.space/internal/services/arena/transport"
)

// Rand is the injected entropy source for stand-in draws and graph
// transitions.
type Rand interface {
	Float64() float64
}

// Deps wires the controller's collaborators.
type Deps struct {
	Store        *Store
	Games        storage.GameStore
	Roles        storage.RoleStore
	Heroes       storage.HeroStore
	Queue        storage.QueueStore
	Participants storage.ParticipantStore
	Invoker      transport.Invoker
	Matcher      roster.Matcher
	Rand         Rand
}

// Controller creates, advances, and resets battle sessions.
type Controller struct {
	deps  Deps
	now   func() time.Time
	newID func() (string, error)
}

// NewController builds a session controller.
func NewController(deps Deps) (*Controller, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("session store is required")
	}
	if deps.Games == nil || deps.Roles == nil || deps.Heroes == nil {
		return nil, fmt.Errorf("game, role, and hero stores are required")
	}
	if deps.Queue == nil || deps.Participants == nil {
		return nil, fmt.Errorf("queue and participant stores are required")
	}
	if deps.Invoker == nil {
		return nil, fmt.Errorf("transport invoker is required")
	}
	if deps.Matcher == nil {
		return nil, fmt.Errorf("matcher is required")
	}
	if deps.Rand == nil {
		return nil, fmt.Errorf("random source is required")
	}
	return &Controller{
		deps:  deps,
		now:   func() time.Time { return time.Now().UTC() },
		newID: id.NewID,
	}, nil
}

// CreateInput describes a session to create. Node and bridge rows are
// optional; without them the narrative flows free-form.
type CreateInput struct {
	GameID     string
	Mode       string
	NodeRows   []graph.NodeRow
	BridgeRows []graph.BridgeRow
}

// Create assembles a roster from the queue, backfills unfilled seats with
// stand-ins, and starts an active session.
func (c *Controller) Create(ctx context.Context, input CreateInput) (*Session, error) {
	gameID := strings.TrimSpace(input.GameID)
	if gameID == "" {
		return nil, arenaerrors.New(arenaerrors.CodeSessionEmptyGameID, "game id is required")
	}

	game, err := c.deps.Games.GetGame(ctx, gameID)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, arenaerrors.WithMetadata(arenaerrors.CodeGameNotFound, "game not found",
			map[string]string{"game_id": gameID})
	}
	if err != nil {
		return nil, fmt.Errorf("load game: %w", err)
	}

	roleRows, err := c.deps.Roles.ListRoles(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	if len(roleRows) == 0 {
		return nil, arenaerrors.New(arenaerrors.CodeRoleTableEmpty, "game has no role table")
	}
	roles := make([]roster.Role, 0, len(roleRows))
	for _, row := range roleRows {
		roles = append(roles, roster.Role{ID: row.ID, Name: row.Name, SlotCount: row.SlotCount})
	}

	heroes, err := c.deps.Heroes.ListHeroes(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load heroes: %w", err)
	}
	heroNames := make(map[string]string, len(heroes))
	for _, hero := range heroes {
		heroNames[hero.ID] = hero.Name
	}

	queueRows, err := c.deps.Queue.ListQueue(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load queue: %w", err)
	}
	queue := make([]roster.QueueEntry, 0, len(queueRows))
	queueIDByOwner := make(map[string]string, len(queueRows))
	for _, row := range queueRows {
		queue = append(queue, roster.QueueEntry{
			ID:       row.ID,
			OwnerID:  row.OwnerID,
			HeroID:   row.HeroID,
			Role:     row.Role,
			Score:    row.Score,
			JoinedAt: row.JoinedAt,
		})
		queueIDByOwner[row.OwnerID] = row.ID
	}

	mode := strings.TrimSpace(input.Mode)
	if mode == "" {
		mode = game.Mode
	}
	matchMode := roster.ModeCasual
	if mode == string(roster.ModeRanked) {
		matchMode = roster.ModeRanked
	}

	resolver := func(heroID string) string { return heroNames[heroID] }
	assembled, err := roster.Assemble(roles, queue, matchMode, c.deps.Matcher, resolver)
	if err != nil {
		return nil, fmt.Errorf("assemble roster: %w", err)
	}
	slots := assembled.Assignments

	filled, err := c.backfill(ctx, gameID, roles, slots, heroNames)
	if err != nil {
		return nil, err
	}
	slots = roster.Normalize(filled)
	if !roster.Validate(slots, roles) {
		return nil, arenaerrors.New(arenaerrors.CodeRosterCapacityExceeds, "assembled roster violates role capacity")
	}

	// Queue entries that made it into the roster are consumed.
	var consumed []string
	for _, slot := range slots {
		if slot.MatchSource != roster.SourceQueue {
			continue
		}
		if entryID, ok := queueIDByOwner[slot.OwnerID]; ok {
			consumed = append(consumed, entryID)
		}
	}
	if len(consumed) > 0 {
		if err := c.deps.Queue.RemoveQueueEntries(ctx, gameID, consumed); err != nil {
			return nil, fmt.Errorf("consume queue entries: %w", err)
		}
	}

	sessionID, err := c.newID()
	if err != nil {
		return nil, fmt.Errorf("generate session id: %w", err)
	}

	session := &Session{
		ID:         sessionID,
		GameID:     gameID,
		GameName:   game.Name,
		Mode:       mode,
		Slots:      slots,
		State:      StateActive,
		Config:     ParseRules(game.RulesText),
		Visited:    make(map[string]bool),
		GlobalVars: make(map[string]bool),
		LocalVars:  make(map[string]bool),
		CreatedAt:  c.now(),
	}
	session.UpdatedAt = session.CreatedAt
	session.History = append(session.History, HistoryEntry{
		Idx:       0,
		Role:      historyRoleSystem,
		Content:   systemPrompt(session, game.RulesText),
		CreatedAt: session.CreatedAt,
	})

	if len(input.NodeRows) > 0 {
		compiled, err := graph.Compile(input.NodeRows, input.BridgeRows)
		if err != nil {
			return nil, fmt.Errorf("compile narrative graph: %w", err)
		}
		session.Graph = compiled
		session.CurrentNode = compiled.Start()
	}

	c.deps.Store.Put(session)
	return session, nil
}

// backfill fills every seat the queue could not with a pool candidate, or
// a placeholder when the pool runs dry.
func (c *Controller) backfill(ctx context.Context, gameID string, roles []roster.Role, slots []roster.SlotAssignment, heroNames map[string]string) ([]roster.SlotAssignment, error) {
	capacity := roster.Capacity(roles)
	if len(slots) >= capacity {
		return slots, nil
	}

	pool, err := c.deps.Participants.ListParticipants(ctx, gameID)
	if err != nil {
		return nil, fmt.Errorf("load participant pool: %w", err)
	}
	candidates := make([]standin.Candidate, 0, len(pool))
	for _, record := range pool {
		record := record
		heroID := record.HeroID
		if heroID == "" && len(record.HeroIDs) > 0 {
			heroID = record.HeroIDs[0]
		}
		candidates = append(candidates, standin.Candidate{
			OwnerID:  record.OwnerID,
			HeroID:   heroID,
			HeroName: heroNames[heroID],
			Score:    &record.Score,
			Rating:   &record.Rating,
			Battles:  record.Battles,
			Status:   record.Status,
		})
	}

	excluded := make(map[string]bool, len(slots))
	taken := make(map[int]bool, len(slots))
	for _, slot := range slots {
		excluded[slot.OwnerID] = true
		taken[slot.SlotIndex] = true
	}

	offsets := roster.Offsets(roles)
	for _, role := range roles {
		base := offsets[role.Name]
		for i := 0; i < role.SlotCount; i++ {
			index := base + i
			if taken[index] {
				continue
			}
			seat := standin.Seat{SlotIndex: index, Role: role.Name}
			if reference := roleReference(slots, role.Name); reference != nil {
				seat.Score = reference
			}
			candidate, err := standin.PickCandidate(seat, candidates, excluded, c.deps.Rand)
			if errors.Is(err, standin.ErrPoolExhausted) {
				slots = append(slots, standin.Placeholder(seat))
				taken[index] = true
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("pick stand-in: %w", err)
			}
			slots = append(slots, standin.Assignment(seat, candidate))
			excluded[candidate.OwnerID] = true
			taken[index] = true
		}
	}
	return slots, nil
}

// roleReference picks a score reference for an empty seat from an already
// filled seat of the same role, so stand-ins land near their teammates.
func roleReference(slots []roster.SlotAssignment, role string) *float64 {
	for _, slot := range slots {
		if slot.Role == role && slot.Score != nil {
			return slot.Score
		}
	}
	return nil
}

// TurnResult reports the effect of one advanced turn.
type TurnResult struct {
	Action        outcome.Action
	Variables     []string
	Response      string
	State         State
	Turn          int
	WinCount      int
	StatusMessage string
}

// AdvanceTurn sends the player input through the AI transport, parses the
// outcome, and applies the state transition.
func (c *Controller) AdvanceTurn(ctx context.Context, sessionID, input string) (TurnResult, error) {
	session, ok := c.deps.Store.Get(sessionID)
	if !ok {
		return TurnResult{}, arenaerrors.WithMetadata(arenaerrors.CodeSessionNotFound, "session not found",
			map[string]string{"session_id": sessionID})
	}
	if session.State == StateFinished {
		return TurnResult{}, arenaerrors.New(arenaerrors.CodeSessionFinished, "session is finished")
	}

	messages := c.buildMessages(session, input)
	response, err := c.deps.Invoker.Invoke(ctx, messages)
	if err != nil {
		return TurnResult{}, fmt.Errorf("invoke transport: %w", err)
	}

	parsed := outcome.Parse(response)
	at := c.now()
	session.History = append(session.History,
		HistoryEntry{Idx: len(session.History), Role: historyRolePlayer, Content: input, CreatedAt: at},
		HistoryEntry{Idx: len(session.History) + 1, Role: historyRoleAssistant, Content: response, Outcome: &parsed, CreatedAt: at},
	)
	session.Turn++
	for _, name := range parsed.Variables {
		session.GlobalVars[name] = true
	}

	c.applyTransition(session, parsed)
	if session.State == StateActive {
		c.stepGraph(session)
	}
	session.UpdatedAt = c.now()

	return TurnResult{
		Action:        parsed.Action,
		Variables:     parsed.Variables,
		Response:      response,
		State:         session.State,
		Turn:          session.Turn,
		WinCount:      session.WinCount,
		StatusMessage: session.StatusMessage,
	}, nil
}

func (c *Controller) applyTransition(session *Session, parsed outcome.Outcome) {
	switch parsed.Action {
	case outcome.ActionWin:
		session.WinCount++
		if session.Config.BrawlEnabled && !triggered(parsed.Variables, session.Config.EndConditionVariable) {
			session.StatusMessage = brawlContinueMessage(session.WinCount)
			return
		}
		session.State = StateFinished
		session.StatusMessage = victoryMessage(session.WinCount)
	case outcome.ActionLose:
		session.State = StateFinished
		session.StatusMessage = defeatMessage(session.Config.BrawlEnabled, session.WinCount)
	case outcome.ActionDraw:
		session.State = StateFinished
		session.StatusMessage = drawMessage(session.Config.BrawlEnabled, session.WinCount)
	}
}

func triggered(variables []string, name string) bool {
	if strings.TrimSpace(name) == "" {
		return false
	}
	for _, variable := range variables {
		if variable == name {
			return true
		}
	}
	return false
}

// stepGraph marks the current node visited and follows the first firing
// bridge, if any.
func (c *Controller) stepGraph(session *Session) {
	if session.Graph == nil || session.CurrentNode == "" {
		return
	}
	session.Visited[session.CurrentNode] = true

	node, _ := session.Graph.Node(session.CurrentNode)
	ctx := condition.Context{
		Turn:        session.Turn,
		AILines:     historyLines(session.History, historyRoleAssistant),
		PromptLines: historyLines(session.History, historyRolePlayer),
		Visited:     session.Visited,
		GlobalVars:  session.GlobalVars,
		LocalVars:   session.LocalVars,
		Status:      slotStatusIndex(session.Slots),
		MyRole:      node.Role,
	}
	if bridge, ok := session.Graph.Next(session.CurrentNode, ctx, c.deps.Rand); ok {
		session.CurrentNode = bridge.To
	}
}

func historyLines(history []HistoryEntry, role string) []string {
	var lines []string
	for _, entry := range history {
		if entry.Role != role {
			continue
		}
		lines = append(lines, strings.Split(entry.Content, "\n")...)
	}
	return lines
}

func slotStatusIndex(slots roster.Roster) *statusindex.Index {
	entries := make([]statusindex.Entry, 0, len(slots))
	for _, slot := range slots {
		entries = append(entries, statusindex.Entry{Role: slot.Role, Status: slot.Status})
	}
	return statusindex.New(entries)
}

// buildMessages assembles the transport conversation: the system prompt,
// prior non-system history role-remapped, then the new input.
func (c *Controller) buildMessages(session *Session, input string) []transport.Message {
	messages := []transport.Message{{Role: transport.RoleSystem, Content: c.currentSystemPrompt(session)}}
	for _, entry := range session.History {
		switch entry.Role {
		case historyRolePlayer:
			messages = append(messages, transport.Message{Role: transport.RoleUser, Content: entry.Content})
		case historyRoleAssistant:
			messages = append(messages, transport.Message{Role: transport.RoleAssistant, Content: entry.Content})
		}
	}
	return append(messages, transport.Message{Role: transport.RoleUser, Content: input})
}

func (c *Controller) currentSystemPrompt(session *Session) string {
	if len(session.History) > 0 && session.History[0].Role == historyRoleSystem {
		prompt := session.History[0].Content
		if session.Graph != nil {
			if node, ok := session.Graph.Node(session.CurrentNode); ok && strings.TrimSpace(node.Template) != "" {
				prompt += "\n\n" + node.Template
			}
		}
		return prompt
	}
	return systemPrompt(session, "")
}

func systemPrompt(session *Session, rules string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "You narrate battles for %s in %s mode.", session.GameName, session.Mode)
	b.WriteString(" End each reply with a line of triggered variable names followed by a line holding win, lose, draw, or continue.")
	if strings.TrimSpace(rules) != "" {
		b.WriteString("\n\nRules:\n")
		b.WriteString(strings.TrimSpace(rules))
	}
	return b.String()
}

// Reset hard-deletes the session's in-memory state.
func (c *Controller) Reset(sessionID string) error {
	if !c.deps.Store.Delete(sessionID) {
		return arenaerrors.WithMetadata(arenaerrors.CodeSessionNotFound, "session not found",
			map[string]string{"session_id": sessionID})
	}
	return nil
}

// Snapshot is a presentation-layer view of one session.
type Snapshot struct {
	SessionID string
	GameID    string
	GameName  string
	Mode      string
	Slots     roster.Roster
	State     State
	History   []HistoryEntry
	Config    Config
	Turn      int
	WinCount  int
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot returns a copy of the session safe to hand to a presentation
// layer.
func (c *Controller) Snapshot(sessionID string) (Snapshot, error) {
	session, ok := c.deps.Store.Get(sessionID)
	if !ok {
		return Snapshot{}, arenaerrors.WithMetadata(arenaerrors.CodeSessionNotFound, "session not found",
			map[string]string{"session_id": sessionID})
	}
	slots := make(roster.Roster, len(session.Slots))
	copy(slots, session.Slots)
	history := make([]HistoryEntry, len(session.History))
	copy(history, session.History)
	return Snapshot{
		SessionID: session.ID,
		GameID:    session.GameID,
		GameName:  session.GameName,
		Mode:      session.Mode,
		Slots:     slots,
		State:     session.State,
		History:   history,
		Config:    session.Config,
		Turn:      session.Turn,
		WinCount:  session.WinCount,
		CreatedAt: session.CreatedAt,
		UpdatedAt: session.UpdatedAt,
	}, nil
}
