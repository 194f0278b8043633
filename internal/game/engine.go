// Package game implements the authoritative session state machine: phase
// transitions, guard validation, timers, and broadcast triggers. All state
// lives in process memory and is lost on restart.
package game

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/campusplay/dicearena/internal/catalog"
	"github.com/campusplay/dicearena/internal/venue"
)

// Config holds the engine's tunables. Defaults mirror the game's original
// pacing: 3s dice animation, 5s results window, 30s disconnect grace.
type Config struct {
	AdminPassword  string
	MaxPlayers     int
	RollDelay      time.Duration
	ResultsDelay   time.Duration
	GraceWindow    time.Duration
	ScorePerAnswer int
}

// DefaultConfig returns the standard pacing and limits.
func DefaultConfig() Config {
	return Config{
		AdminPassword:  "admin123",
		MaxPlayers:     50,
		RollDelay:      3 * time.Second,
		ResultsDelay:   5 * time.Second,
		GraceWindow:    30 * time.Second,
		ScorePerAnswer: 10,
	}
}

// Engine drives every session. A single goroutine consumes the command
// channel, so handlers run to completion in arrival order and the session
// store needs no locking.
type Engine struct {
	cfg    Config
	deck   *catalog.Catalog
	venues *venue.Registry
	store  *SessionStore
	timers *timerSet
	clock  clockwork.Clock
	sink   Sink

	cmds chan command

	// playerVenue maps a bound player identity to its session's venue.
	// Only the event loop touches it.
	playerVenue map[string]string
}

// New creates an engine. Pass clockwork.NewRealClock() in production; tests
// inject a fake clock to drive timer transitions deterministically. SetSink
// must be called before Run.
func New(cfg Config, deck *catalog.Catalog, venues *venue.Registry, clock clockwork.Clock) *Engine {
	return &Engine{
		cfg:         cfg,
		deck:        deck,
		venues:      venues,
		store:       NewSessionStore(),
		timers:      newTimerSet(clock),
		clock:       clock,
		cmds:        make(chan command, 256),
		playerVenue: make(map[string]string),
	}
}

// SetSink wires the connection gateway in. The engine and gateway reference
// each other, so one of the two has to be attached after construction.
func (e *Engine) SetSink(sink Sink) {
	e.sink = sink
}

// Run processes commands until the context is cancelled. It must be running
// before any action is posted.
func (e *Engine) Run(ctx context.Context) {
	log.Info().Msg("game engine started")
	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("game engine shutting down")
			return
		case cmd := <-e.cmds:
			e.dispatch(cmd)
		}
	}
}

func (e *Engine) post(cmd command) {
	e.cmds <- cmd
}

// Join binds a connection to a player identity, creating or reviving a
// roster entry. Synchronous so the gateway can bind before any fan-out it
// must not miss.
func (e *Engine) Join(req JoinRequest) JoinResult {
	reply := make(chan JoinResult, 1)
	e.post(joinCmd{req: req, reply: reply})
	return <-reply
}

// RollDice asks to reveal scenario targetNumber. Admin-only.
func (e *Engine) RollDice(playerID string, targetNumber int) {
	e.post(rollCmd{playerID: playerID, targetNumber: targetNumber})
}

// SubmitAnswer records a participant's answer for the active scenario.
func (e *Engine) SubmitAnswer(playerID string, answer AnswerSubmission) {
	e.post(submitCmd{playerID: playerID, answer: answer})
}

// EliminatePlayer marks a participant out of the game. Admin-only.
func (e *Engine) EliminatePlayer(playerID, targetID string) {
	e.post(eliminateCmd{playerID: playerID, targetID: targetID})
}

// EndQuestion forces the question phase to close early. Admin-only.
func (e *Engine) EndQuestion(playerID string) {
	e.post(endQuestionCmd{playerID: playerID})
}

// ResetGame clears the caller's session back to a fresh waiting state.
func (e *Engine) ResetGame(playerID string) {
	e.post(resetCmd{playerID: playerID})
}

// RequestAvailableScenarios unicasts the unused scenario ids to the admin.
func (e *Engine) RequestAvailableScenarios(playerID string) {
	e.post(scenariosCmd{playerID: playerID})
}

// Disconnect flips the player's liveness off and starts the grace window.
func (e *Engine) Disconnect(playerID string) {
	e.post(disconnectCmd{playerID: playerID})
}

// Snapshot returns the current session view for a venue, or an empty shape
// if nobody has joined it yet.
func (e *Engine) Snapshot(venueID string) Snapshot {
	reply := make(chan Snapshot, 1)
	e.post(snapshotCmd{venueID: venueID, reply: reply})
	return <-reply
}

// PlayerKnown reports whether the identity is still bound to a session. A
// reset or purge invalidates bindings, and the gateway uses this to let a
// stranded connection join fresh instead of holding its stale identity.
func (e *Engine) PlayerKnown(playerID string) bool {
	reply := make(chan bool, 1)
	e.post(playerKnownCmd{playerID: playerID, reply: reply})
	return <-reply
}

func (e *Engine) dispatch(cmd command) {
	switch c := cmd.(type) {
	case joinCmd:
		e.handleJoin(c)
	case rollCmd:
		e.handleRoll(c)
	case submitCmd:
		e.handleSubmit(c)
	case eliminateCmd:
		e.handleEliminate(c)
	case endQuestionCmd:
		e.handleEndQuestion(c)
	case resetCmd:
		e.handleReset(c)
	case scenariosCmd:
		e.handleScenarios(c)
	case disconnectCmd:
		e.handleDisconnect(c)
	case rollDoneCmd:
		e.handleRollDone(c)
	case questionExpiredCmd:
		e.handleQuestionExpired(c)
	case resultsDoneCmd:
		e.handleResultsDone(c)
	case purgeCmd:
		e.handlePurge(c)
	case snapshotCmd:
		e.handleSnapshot(c)
	case playerKnownCmd:
		_, ok := e.playerVenue[c.playerID]
		c.reply <- ok
	}
}

// sessionFor resolves the acting player's session. Every handler goes
// through the binding; there is no global session to fall back to.
func (e *Engine) sessionFor(playerID string) (*Session, *Player) {
	venueID, ok := e.playerVenue[playerID]
	if !ok {
		return nil, nil
	}
	s, ok := e.store.get(venueID)
	if !ok {
		return nil, nil
	}
	return s, s.Players[playerID]
}

func (e *Engine) sendErr(playerID string, err *Error) {
	e.sink.Unicast(playerID, Envelope{Event: EventError, Data: ErrorPayload{Message: err.Message}})
}

func (e *Engine) broadcast(s *Session) {
	e.sink.Broadcast(s.VenueID, Envelope{Event: EventGameState, Data: s.snapshot()})
}

func (e *Engine) toAdmin(s *Session, env Envelope) {
	if s.AdminID != "" {
		e.sink.Unicast(s.AdminID, env)
	}
}

func (e *Engine) handleJoin(c joinCmd) {
	req := c.req

	fail := func(err *Error) {
		c.reply <- JoinResult{Err: err}
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		fail(validationErr("Name is required"))
		return
	}

	venueID := req.VenueID
	if venueID == "" {
		venueID = e.venues.DefaultID()
	}
	if !e.venues.Exists(venueID) {
		fail(notFoundErr("Venue not found"))
		return
	}

	if req.IsAdmin && req.AdminPassword != e.cfg.AdminPassword {
		fail(authorizationErr("Invalid admin password"))
		return
	}

	s := e.store.getOrCreate(venueID)

	// A disconnected roster entry with the same name is a reconnect:
	// rebind instead of creating a fresh player.
	var existing *Player
	for _, p := range s.playersInOrder() {
		if !p.Connected && p.Name == name && p.IsAdmin == req.IsAdmin {
			existing = p
			break
		}
	}

	if req.IsAdmin && s.AdminID != "" && (existing == nil || s.AdminID != existing.ID) {
		fail(authorizationErr("Admin already exists"))
		return
	}

	if existing != nil {
		existing.Connected = true
		if req.TeamName != "" {
			existing.TeamName = req.TeamName
		}
		if req.IsAdmin {
			s.AdminID = existing.ID
		}
		if s.AdminID != "" && s.Phase == PhaseLobby {
			s.Phase = PhaseWaiting
		}
		e.playerVenue[existing.ID] = venueID
		log.Info().
			Str("player_id", existing.ID).
			Str("name", name).
			Str("venue_id", venueID).
			Msg("player reconnected")

		c.reply <- JoinResult{PlayerID: existing.ID, IsAdmin: existing.IsAdmin, VenueID: venueID, Snapshot: s.snapshot()}
		e.broadcast(s)
		return
	}

	if !req.IsAdmin && len(s.Players) >= e.cfg.MaxPlayers {
		fail(capacityErr("Game is full"))
		return
	}

	id := uuid.NewString()

	// Admins do not take a venue seat; capacity accounts participants.
	if !req.IsAdmin {
		if err := e.venues.Join(venueID, id); err != nil {
			switch err {
			case venue.ErrFull:
				fail(capacityErr("Venue is full"))
			default:
				fail(notFoundErr("Venue not found"))
			}
			return
		}
	}

	p := &Player{
		ID:        id,
		Name:      name,
		TeamName:  req.TeamName,
		VenueID:   venueID,
		IsAdmin:   req.IsAdmin,
		Connected: true,
		Answers:   []Answer{},
	}
	s.addPlayer(p)
	e.playerVenue[id] = venueID

	if req.IsAdmin {
		s.AdminID = id
	}
	if s.AdminID != "" && s.Phase == PhaseLobby {
		s.Phase = PhaseWaiting
	}

	role := "player"
	if req.IsAdmin {
		role = "admin"
	}
	log.Info().
		Str("player_id", id).
		Str("name", name).
		Str("role", role).
		Str("venue_id", venueID).
		Msg("player joined")

	c.reply <- JoinResult{PlayerID: id, IsAdmin: req.IsAdmin, VenueID: venueID, Snapshot: s.snapshot()}
	e.broadcast(s)
}

func (e *Engine) handleRoll(c rollCmd) {
	s, p := e.sessionFor(c.playerID)
	if s == nil || p == nil {
		e.sendErr(c.playerID, notFoundErr("Player not found"))
		return
	}
	if p.ID != s.AdminID {
		e.sendErr(c.playerID, authorizationErr("Only admin can roll dice"))
		return
	}
	if s.Phase != PhaseWaiting {
		e.sendErr(c.playerID, phaseErr("Cannot roll dice now"))
		return
	}
	if c.targetNumber < 1 || c.targetNumber > e.deck.Size() {
		e.sendErr(c.playerID, validationErr("Invalid dice number"))
		return
	}
	if s.Used[c.targetNumber] {
		e.sendErr(c.playerID, validationErr("Scenario already used"))
		return
	}

	s.Phase = PhaseRolling
	s.IsRolling = true
	e.broadcast(s)

	log.Info().
		Str("venue_id", s.VenueID).
		Int("scenario_id", c.targetNumber).
		Msg("dice roll started")

	gen := s.generation
	venueID := s.VenueID
	target := c.targetNumber
	e.timers.schedule(timerKey{venueID: venueID, kind: timerRollAnimation}, e.cfg.RollDelay, func() {
		e.post(rollDoneCmd{venueID: venueID, scenarioID: target, generation: gen})
	})
}

func (e *Engine) handleRollDone(c rollDoneCmd) {
	s, ok := e.store.get(c.venueID)
	if !ok || s.generation != c.generation || s.Phase != PhaseRolling {
		log.Debug().Str("venue_id", c.venueID).Msg("stale roll timer ignored")
		return
	}

	sc, ok := e.deck.Get(c.scenarioID)
	if !ok {
		log.Error().Int("scenario_id", c.scenarioID).Msg("rolled scenario missing from deck")
		s.Phase = PhaseWaiting
		s.IsRolling = false
		e.broadcast(s)
		return
	}

	s.DiceFace = c.scenarioID
	s.CurrentScenario = c.scenarioID
	s.Used[c.scenarioID] = true
	s.IsRolling = false
	s.Phase = PhaseQuestion
	s.QuestionStart = e.clock.Now()
	e.broadcast(s)

	log.Info().
		Str("venue_id", s.VenueID).
		Int("scenario_id", c.scenarioID).
		Dur("time_limit", sc.TimeLimit()).
		Msg("question started")

	gen := s.generation
	venueID := s.VenueID
	e.timers.schedule(timerKey{venueID: venueID, kind: timerQuestion}, sc.TimeLimit(), func() {
		e.post(questionExpiredCmd{venueID: venueID, generation: gen})
	})
}

func (e *Engine) handleSubmit(c submitCmd) {
	s, p := e.sessionFor(c.playerID)
	if s == nil || p == nil {
		e.sendErr(c.playerID, notFoundErr("Player not found"))
		return
	}
	if p.Eliminated {
		e.sendErr(c.playerID, validationErr("Player not found or eliminated"))
		return
	}
	if s.Phase != PhaseQuestion || s.CurrentScenario == 0 {
		e.sendErr(c.playerID, phaseErr("No active question"))
		return
	}
	if c.answer.ScenarioID != s.CurrentScenario {
		e.sendErr(c.playerID, validationErr("Invalid scenario ID"))
		return
	}
	if p.hasAnswered(c.answer.ScenarioID) {
		e.sendErr(c.playerID, duplicateErr("Answer already submitted"))
		return
	}
	if n := utf8.RuneCountInString(c.answer.Justification); n < 1 || n > 60 {
		e.sendErr(c.playerID, validationErr("Justification must be 1-60 characters"))
		return
	}

	sc, _ := e.deck.Get(c.answer.ScenarioID)
	switch sc.Kind {
	case catalog.KindMultipleChoice:
		if c.answer.SelectedOption == "" {
			e.sendErr(c.playerID, validationErr("An option must be selected"))
			return
		}
		if !sc.HasOption(c.answer.SelectedOption) {
			e.sendErr(c.playerID, validationErr("Selected option is not one of the choices"))
			return
		}
	case catalog.KindShortAnswer:
		// Some clients send the key regardless; there is nothing to
		// select, so drop it.
		c.answer.SelectedOption = ""
	}

	p.Answers = append(p.Answers, Answer{
		ScenarioID:     c.answer.ScenarioID,
		SelectedOption: c.answer.SelectedOption,
		Justification:  c.answer.Justification,
		SubmittedAt:    e.clock.Now().UnixMilli(),
	})
	p.Score += e.cfg.ScorePerAnswer

	e.sink.Unicast(p.ID, Envelope{Event: EventAnswerSubmitted})
	e.toAdmin(s, Envelope{Event: EventPlayerAnswered, Data: PlayerAnsweredPayload{
		PlayerID:   p.ID,
		PlayerName: p.Name,
		Answer:     c.answer,
	}})

	log.Info().
		Str("venue_id", s.VenueID).
		Str("player_id", p.ID).
		Int("scenario_id", c.answer.ScenarioID).
		Msg("answer submitted")
}

func (e *Engine) handleEliminate(c eliminateCmd) {
	s, p := e.sessionFor(c.playerID)
	if s == nil || p == nil {
		e.sendErr(c.playerID, notFoundErr("Player not found"))
		return
	}
	if p.ID != s.AdminID {
		e.sendErr(c.playerID, authorizationErr("Only admin can eliminate players"))
		return
	}
	target, ok := s.Players[c.targetID]
	if !ok {
		e.sendErr(c.playerID, notFoundErr("Player not found"))
		return
	}
	if target.IsAdmin {
		e.sendErr(c.playerID, validationErr("Cannot eliminate the admin"))
		return
	}

	target.Eliminated = true
	e.sink.Unicast(target.ID, Envelope{Event: EventEliminated})
	e.broadcast(s)

	log.Info().
		Str("venue_id", s.VenueID).
		Str("player_id", target.ID).
		Str("name", target.Name).
		Msg("player eliminated")
}

func (e *Engine) handleEndQuestion(c endQuestionCmd) {
	s, p := e.sessionFor(c.playerID)
	if s == nil || p == nil {
		e.sendErr(c.playerID, notFoundErr("Player not found"))
		return
	}
	if p.ID != s.AdminID {
		e.sendErr(c.playerID, authorizationErr("Only admin can end questions"))
		return
	}
	if s.Phase != PhaseQuestion {
		e.sendErr(c.playerID, phaseErr("No active question"))
		return
	}
	e.endQuestion(s)
}

func (e *Engine) handleQuestionExpired(c questionExpiredCmd) {
	s, ok := e.store.get(c.venueID)
	if !ok || s.generation != c.generation || s.Phase != PhaseQuestion {
		log.Debug().Str("venue_id", c.venueID).Msg("stale question timer ignored")
		return
	}
	e.endQuestion(s)
}

// endQuestion closes the question phase: cancels the countdown, inserts a
// sentinel answer for every connected, non-eliminated player who did not
// submit, and opens the results window.
func (e *Engine) endQuestion(s *Session) {
	e.timers.cancel(timerKey{venueID: s.VenueID, kind: timerQuestion})

	if s.CurrentScenario != 0 {
		now := e.clock.Now().UnixMilli()
		for _, p := range s.playersInOrder() {
			if p.Eliminated || !p.Connected || p.hasAnswered(s.CurrentScenario) {
				continue
			}
			p.Answers = append(p.Answers, Answer{
				ScenarioID:    s.CurrentScenario,
				Justification: SentinelJustification,
				SubmittedAt:   now,
			})
		}
	}

	s.Phase = PhaseResults
	e.broadcast(s)

	log.Info().
		Str("venue_id", s.VenueID).
		Int("scenario_id", s.CurrentScenario).
		Msg("question ended")

	gen := s.generation
	venueID := s.VenueID
	e.timers.schedule(timerKey{venueID: venueID, kind: timerResults}, e.cfg.ResultsDelay, func() {
		e.post(resultsDoneCmd{venueID: venueID, generation: gen})
	})
}

func (e *Engine) handleResultsDone(c resultsDoneCmd) {
	s, ok := e.store.get(c.venueID)
	if !ok || s.generation != c.generation || s.Phase != PhaseResults {
		log.Debug().Str("venue_id", c.venueID).Msg("stale results timer ignored")
		return
	}

	if len(s.Used) >= e.deck.Size() {
		s.Phase = PhaseFinished
		log.Info().Str("venue_id", s.VenueID).Msg("deck exhausted, game finished")
	} else {
		s.Phase = PhaseWaiting
	}
	e.broadcast(s)
}

func (e *Engine) handleReset(c resetCmd) {
	s, p := e.sessionFor(c.playerID)
	if s == nil || p == nil {
		e.sendErr(c.playerID, notFoundErr("Player not found"))
		return
	}
	if p.ID != s.AdminID {
		e.sendErr(c.playerID, authorizationErr("Only admin can reset game"))
		return
	}

	e.timers.cancelVenue(s.VenueID)

	for _, roster := range s.playersInOrder() {
		if roster.ID == s.AdminID {
			continue
		}
		e.venues.Leave(s.VenueID, roster.ID)
		delete(e.playerVenue, roster.ID)
	}

	fresh := e.store.reset(s.VenueID)
	e.broadcast(fresh)

	log.Info().Str("venue_id", s.VenueID).Msg("game reset by admin")
}

func (e *Engine) handleScenarios(c scenariosCmd) {
	s, p := e.sessionFor(c.playerID)
	if s == nil || p == nil {
		e.sendErr(c.playerID, notFoundErr("Player not found"))
		return
	}
	if p.ID != s.AdminID {
		e.sendErr(c.playerID, authorizationErr("Only admin can request scenarios"))
		return
	}

	available := make([]int, 0, e.deck.Size())
	for _, id := range e.deck.IDs() {
		if !s.Used[id] {
			available = append(available, id)
		}
	}
	e.sink.Unicast(p.ID, Envelope{Event: EventAvailableScenarios, Data: available})
}

func (e *Engine) handleDisconnect(c disconnectCmd) {
	s, p := e.sessionFor(c.playerID)
	if s == nil || p == nil {
		return
	}

	p.Connected = false
	p.disconnectedAt = e.clock.Now()
	if s.AdminID == p.ID {
		s.AdminID = ""
	}
	e.broadcast(s)

	log.Info().
		Str("venue_id", s.VenueID).
		Str("player_id", p.ID).
		Str("name", p.Name).
		Msg("player disconnected")

	venueID := s.VenueID
	playerID := p.ID
	e.clock.AfterFunc(e.cfg.GraceWindow, func() {
		e.post(purgeCmd{venueID: venueID, playerID: playerID})
	})
}

// handlePurge removes a player whose grace window elapsed without a
// reconnect. Liveness is re-checked at fire time, so a rebound player is
// left alone.
func (e *Engine) handlePurge(c purgeCmd) {
	s, ok := e.store.get(c.venueID)
	if !ok {
		return
	}
	p, ok := s.Players[c.playerID]
	if !ok || p.Connected {
		return
	}
	if e.clock.Now().Sub(p.disconnectedAt) < e.cfg.GraceWindow {
		return
	}

	s.removePlayer(p.ID)
	if !p.IsAdmin {
		e.venues.Leave(s.VenueID, p.ID)
	}
	delete(e.playerVenue, p.ID)
	e.broadcast(s)

	log.Info().
		Str("venue_id", s.VenueID).
		Str("player_id", p.ID).
		Str("name", p.Name).
		Msg("player purged after grace window")
}

func (e *Engine) handleSnapshot(c snapshotCmd) {
	if s, ok := e.store.get(c.venueID); ok {
		c.reply <- s.snapshot()
		return
	}
	c.reply <- emptySnapshot(c.venueID)
}
