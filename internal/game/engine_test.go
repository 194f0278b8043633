package game

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/campusplay/dicearena/internal/catalog"
	"github.com/campusplay/dicearena/internal/venue"
)

// captureSink records every fan-out the engine performs.
type captureSink struct {
	mu         sync.Mutex
	broadcasts []capturedBroadcast
	unicasts   map[string][]Envelope
}

type capturedBroadcast struct {
	venueID string
	env     Envelope
}

func newCaptureSink() *captureSink {
	return &captureSink{unicasts: make(map[string][]Envelope)}
}

func (s *captureSink) Broadcast(venueID string, env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.broadcasts = append(s.broadcasts, capturedBroadcast{venueID: venueID, env: env})
}

func (s *captureSink) Unicast(playerID string, env Envelope) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.unicasts[playerID] = append(s.unicasts[playerID], env)
}

func (s *captureSink) broadcastCount(venueID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.broadcasts {
		if b.venueID == venueID {
			n++
		}
	}
	return n
}

func (s *captureSink) lastError(playerID string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.unicasts[playerID]) - 1; i >= 0; i-- {
		env := s.unicasts[playerID][i]
		if env.Event == EventError {
			return env.Data.(ErrorPayload).Message, true
		}
	}
	return "", false
}

func (s *captureSink) countEvent(playerID, event string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, env := range s.unicasts[playerID] {
		if env.Event == event {
			n++
		}
	}
	return n
}

func (s *captureSink) lastPayload(playerID, event string) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.unicasts[playerID]) - 1; i >= 0; i-- {
		env := s.unicasts[playerID][i]
		if env.Event == event {
			return env.Data, true
		}
	}
	return nil, false
}

func newTestEngine(t *testing.T, cfg Config) (*Engine, *captureSink, *clockwork.FakeClock) {
	t.Helper()

	deck, err := catalog.Load()
	if err != nil {
		t.Fatalf("load deck: %v", err)
	}
	venues, err := venue.NewRegistry()
	if err != nil {
		t.Fatalf("load venues: %v", err)
	}

	clock := clockwork.NewFakeClock()
	sink := newCaptureSink()
	e := New(cfg, deck, venues, clock)
	e.SetSink(sink)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go e.Run(ctx)

	return e, sink, clock
}

func joinAdmin(t *testing.T, e *Engine, venueID string) string {
	t.Helper()
	res := e.Join(JoinRequest{Name: "Quizmaster", IsAdmin: true, AdminPassword: "admin123", VenueID: venueID})
	if res.Err != nil {
		t.Fatalf("admin join: %v", res.Err)
	}
	return res.PlayerID
}

func joinPlayer(t *testing.T, e *Engine, name, venueID string) string {
	t.Helper()
	res := e.Join(JoinRequest{Name: name, VenueID: venueID})
	if res.Err != nil {
		t.Fatalf("join %s: %v", name, res.Err)
	}
	return res.PlayerID
}

// waitForPhase polls until the venue's session reaches the phase. Timer
// goroutines post back into the engine loop asynchronously, so a short
// real-time poll is needed even with a fake clock.
func waitForPhase(t *testing.T, e *Engine, venueID string, want Phase) Snapshot {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap := e.Snapshot(venueID)
		if snap.Phase == want {
			return snap
		}
		if time.Now().After(deadline) {
			t.Fatalf("venue %s: phase = %s, want %s", venueID, snap.Phase, want)
		}
		time.Sleep(pollInterval)
	}
}

const pollInterval = time.Millisecond

// rollToQuestion drives a full reveal: roll, fence on the synchronous
// snapshot so the animation timer is armed, then advance past it.
func rollToQuestion(t *testing.T, e *Engine, clock *clockwork.FakeClock, adminID, venueID string, n int) Snapshot {
	t.Helper()
	e.RollDice(adminID, n)
	e.Snapshot(venueID)
	clock.Advance(3 * time.Second)
	return waitForPhase(t, e, venueID, PhaseQuestion)
}

func TestJoinAssignsIdentityAndPhase(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())

	res := e.Join(JoinRequest{Name: "Ana", VenueID: "main-hall", TeamName: "Bulls"})
	if res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res.PlayerID == "" || res.IsAdmin {
		t.Fatalf("unexpected join result %+v", res)
	}
	if res.Snapshot.Phase != PhaseLobby {
		t.Errorf("phase before admin = %s, want lobby", res.Snapshot.Phase)
	}
	if p := res.Snapshot.Players[res.PlayerID]; p.TeamName != "Bulls" {
		t.Errorf("team name = %q, want Bulls", p.TeamName)
	}

	adminID := joinAdmin(t, e, "main-hall")
	snap := e.Snapshot("main-hall")
	if snap.Phase != PhaseWaiting {
		t.Errorf("phase after admin joined = %s, want waiting", snap.Phase)
	}
	if snap.AdminID != adminID {
		t.Errorf("adminId = %q, want %q", snap.AdminID, adminID)
	}
}

func TestJoinValidation(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())

	if res := e.Join(JoinRequest{Name: "  "}); res.Err == nil || res.Err.Kind != ErrValidation {
		t.Errorf("blank name: err = %v, want validation", res.Err)
	}
	if res := e.Join(JoinRequest{Name: "Ana", VenueID: "moon-base"}); res.Err == nil || res.Err.Kind != ErrNotFound {
		t.Errorf("unknown venue: err = %v, want not found", res.Err)
	}
	if res := e.Join(JoinRequest{Name: "Eve", IsAdmin: true, AdminPassword: "wrong"}); res.Err == nil || res.Err.Kind != ErrAuthorization {
		t.Errorf("bad password: err = %v, want authorization", res.Err)
	}

	joinAdmin(t, e, "main-hall")
	res := e.Join(JoinRequest{Name: "Imposter", IsAdmin: true, AdminPassword: "admin123", VenueID: "main-hall"})
	if res.Err == nil || res.Err.Kind != ErrAuthorization {
		t.Errorf("second admin: err = %v, want authorization", res.Err)
	}
}

func TestJoinDefaultsToFirstVenue(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())

	res := e.Join(JoinRequest{Name: "Ana"})
	if res.Err != nil {
		t.Fatalf("join: %v", res.Err)
	}
	if res.VenueID != "main-hall" {
		t.Errorf("venue = %q, want main-hall", res.VenueID)
	}
}

func TestSessionCapacity(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxPlayers = 2
	e, _, _ := newTestEngine(t, cfg)

	joinPlayer(t, e, "P1", "main-hall")
	joinPlayer(t, e, "P2", "main-hall")

	res := e.Join(JoinRequest{Name: "P3", VenueID: "main-hall"})
	if res.Err == nil || res.Err.Kind != ErrCapacity {
		t.Fatalf("over capacity: err = %v, want capacity", res.Err)
	}
	if res.Err.Message != "Game is full" {
		t.Errorf("message = %q", res.Err.Message)
	}
}

func TestRollQuestionResultsCycle(t *testing.T) {
	e, sink, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")
	p2 := joinPlayer(t, e, "Bo", "main-hall")

	e.RollDice(adminID, 5)
	snap := e.Snapshot("main-hall")
	if snap.Phase != PhaseRolling || !snap.IsRolling {
		t.Fatalf("after roll: phase %s rolling %v", snap.Phase, snap.IsRolling)
	}
	if snap.CurrentScenario != nil {
		t.Fatal("scenario revealed before animation finished")
	}

	clock.Advance(3 * time.Second)
	snap = waitForPhase(t, e, "main-hall", PhaseQuestion)
	if snap.CurrentScenario == nil || *snap.CurrentScenario != 5 {
		t.Fatalf("currentScenario = %v, want 5", snap.CurrentScenario)
	}
	if snap.DiceResult == nil || *snap.DiceResult != 5 {
		t.Fatalf("diceResult = %v, want 5", snap.DiceResult)
	}
	if snap.QuestionStartTime == nil {
		t.Fatal("questionStartTime not set")
	}
	if len(snap.UsedScenarios) != 1 || snap.UsedScenarios[0] != 5 {
		t.Fatalf("usedScenarios = %v, want [5]", snap.UsedScenarios)
	}

	// Ana answers; Bo stays silent.
	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 5, SelectedOption: "A. Bain – Prestige, network, stability", Justification: "ok"})
	snap = e.Snapshot("main-hall")
	if snap.Players[p1].Score != 10 {
		t.Errorf("score = %d, want 10", snap.Players[p1].Score)
	}
	if got := sink.countEvent(p1, EventAnswerSubmitted); got != 1 {
		t.Errorf("answerSubmitted count = %d, want 1", got)
	}
	if got := sink.countEvent(adminID, EventPlayerAnswered); got != 1 {
		t.Errorf("playerAnswered count = %d, want 1", got)
	}

	// Question countdown expires.
	clock.Advance(60 * time.Second)
	snap = waitForPhase(t, e, "main-hall", PhaseResults)

	if n := len(snap.Players[p1].Answers); n != 1 {
		t.Errorf("Ana answers = %d, want 1", n)
	}
	boAnswers := snap.Players[p2].Answers
	if len(boAnswers) != 1 || boAnswers[0].Justification != SentinelJustification {
		t.Errorf("Bo answers = %+v, want one sentinel", boAnswers)
	}
	if snap.Players[p2].Score != 0 {
		t.Errorf("Bo scored %d from a sentinel", snap.Players[p2].Score)
	}

	// Results window elapses.
	clock.Advance(5 * time.Second)
	waitForPhase(t, e, "main-hall", PhaseWaiting)
}

func TestRollRejections(t *testing.T) {
	e, sink, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	before := sink.broadcastCount("main-hall")
	e.RollDice(p1, 5)
	e.Snapshot("main-hall")
	if msg, ok := sink.lastError(p1); !ok || msg != "Only admin can roll dice" {
		t.Errorf("non-admin roll error = %q, %v", msg, ok)
	}
	if got := sink.broadcastCount("main-hall"); got != before {
		t.Errorf("rejected roll broadcast: %d -> %d", before, got)
	}
	if snap := e.Snapshot("main-hall"); snap.Phase != PhaseWaiting {
		t.Errorf("phase changed on rejected roll: %s", snap.Phase)
	}

	e.RollDice(adminID, 0)
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(adminID); msg != "Invalid dice number" {
		t.Errorf("roll 0 error = %q", msg)
	}
	e.RollDice(adminID, 26)
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(adminID); msg != "Invalid dice number" {
		t.Errorf("roll 26 error = %q", msg)
	}

	// Use scenario 7, then try it again.
	rollToQuestion(t, e, clock, adminID, "main-hall", 7)

	e.RollDice(adminID, 7)
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(adminID); msg != "Cannot roll dice now" {
		t.Errorf("roll during question error = %q", msg)
	}

	e.EndQuestion(adminID)
	waitForPhase(t, e, "main-hall", PhaseResults)
	clock.Advance(5 * time.Second)
	waitForPhase(t, e, "main-hall", PhaseWaiting)

	e.RollDice(adminID, 7)
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(adminID); msg != "Scenario already used" {
		t.Errorf("reused scenario error = %q", msg)
	}
}

func TestSubmitGuards(t *testing.T) {
	e, sink, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	// Outside the question phase.
	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 5, Justification: "early"})
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(p1); msg != "No active question" {
		t.Errorf("submit in waiting error = %q", msg)
	}
	if snap := e.Snapshot("main-hall"); len(snap.Players[p1].Answers) != 0 {
		t.Error("answer appended outside question phase")
	}

	// Scenario 8 is a short-answer question.
	rollToQuestion(t, e, clock, adminID, "main-hall", 8)

	cases := []struct {
		name   string
		answer AnswerSubmission
		errMsg string
	}{
		{"wrong scenario", AnswerSubmission{ScenarioID: 9, Justification: "ok"}, "Invalid scenario ID"},
		{"empty justification", AnswerSubmission{ScenarioID: 8, Justification: ""}, "Justification must be 1-60 characters"},
		{"too long", AnswerSubmission{ScenarioID: 8, Justification: strings.Repeat("x", 61)}, "Justification must be 1-60 characters"},
	}
	for _, tc := range cases {
		e.SubmitAnswer(p1, tc.answer)
		e.Snapshot("main-hall")
		if msg, _ := sink.lastError(p1); msg != tc.errMsg {
			t.Errorf("%s: error = %q, want %q", tc.name, msg, tc.errMsg)
		}
	}
	if snap := e.Snapshot("main-hall"); len(snap.Players[p1].Answers) != 0 {
		t.Fatal("rejected submissions appended answers")
	}

	// A 60-rune justification is the boundary and must pass.
	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 8, Justification: strings.Repeat("y", 60)})
	snap := e.Snapshot("main-hall")
	if len(snap.Players[p1].Answers) != 1 {
		t.Fatal("boundary justification rejected")
	}

	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 8, Justification: "again"})
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(p1); msg != "Answer already submitted" {
		t.Errorf("duplicate error = %q", msg)
	}
	if snap := e.Snapshot("main-hall"); len(snap.Players[p1].Answers) != 1 {
		t.Error("duplicate submission appended an answer")
	}
}

func TestSubmitShortAnswerDropsStrayOption(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	rollToQuestion(t, e, clock, adminID, "main-hall", 8)

	// Clients that always send the option key must not be rejected on a
	// short-answer scenario; the field just is not stored.
	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 8, SelectedOption: "A", Justification: "ok"})
	snap := e.Snapshot("main-hall")
	answers := snap.Players[p1].Answers
	if len(answers) != 1 {
		t.Fatalf("answers = %d, want 1", len(answers))
	}
	if answers[0].SelectedOption != "" {
		t.Errorf("stray option stored: %q", answers[0].SelectedOption)
	}
	if snap.Players[p1].Score != 10 {
		t.Errorf("score = %d, want 10", snap.Players[p1].Score)
	}
}

func TestSubmitMCQRequiresListedOption(t *testing.T) {
	e, sink, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	rollToQuestion(t, e, clock, adminID, "main-hall", 6)

	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 6, Justification: "ok"})
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(p1); msg != "An option must be selected" {
		t.Errorf("missing option error = %q", msg)
	}

	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 6, SelectedOption: "Z. Nope", Justification: "ok"})
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(p1); msg != "Selected option is not one of the choices" {
		t.Errorf("unlisted option error = %q", msg)
	}

	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 6, SelectedOption: "A. Reddit", Justification: "chaotic"})
	snap := e.Snapshot("main-hall")
	if len(snap.Players[p1].Answers) != 1 {
		t.Fatal("valid mcq answer rejected")
	}
}

func TestEliminate(t *testing.T) {
	e, sink, _ := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	e.EliminatePlayer(p1, adminID)
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(p1); msg != "Only admin can eliminate players" {
		t.Errorf("non-admin eliminate error = %q", msg)
	}

	e.EliminatePlayer(adminID, adminID)
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(adminID); msg != "Cannot eliminate the admin" {
		t.Errorf("eliminate admin error = %q", msg)
	}

	e.EliminatePlayer(adminID, "ghost")
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(adminID); msg != "Player not found" {
		t.Errorf("eliminate ghost error = %q", msg)
	}

	e.EliminatePlayer(adminID, p1)
	snap := e.Snapshot("main-hall")
	if !snap.Players[p1].Eliminated {
		t.Fatal("target not eliminated")
	}
	if got := sink.countEvent(p1, EventEliminated); got != 1 {
		t.Errorf("eliminated notifications = %d, want 1", got)
	}
}

func TestEliminatedPlayerGetsNoSentinel(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")
	e.EliminatePlayer(adminID, p1)

	rollToQuestion(t, e, clock, adminID, "main-hall", 3)
	clock.Advance(60 * time.Second)
	snap := waitForPhase(t, e, "main-hall", PhaseResults)

	if n := len(snap.Players[p1].Answers); n != 0 {
		t.Errorf("eliminated player gained %d answers", n)
	}
}

func TestAdminEndQuestionCancelsCountdown(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	rollToQuestion(t, e, clock, adminID, "main-hall", 2)

	e.EndQuestion(adminID)
	snap := waitForPhase(t, e, "main-hall", PhaseResults)
	if len(snap.Players[p1].Answers) != 1 {
		t.Fatalf("sentinel missing after forced end")
	}

	// The superseded countdown must not fire again: advancing past both
	// the old question deadline and the results window leaves exactly one
	// sentinel and ends in waiting.
	clock.Advance(60 * time.Second)
	snap = waitForPhase(t, e, "main-hall", PhaseWaiting)
	if n := len(snap.Players[p1].Answers); n != 1 {
		t.Errorf("stale countdown re-fired, answers = %d", n)
	}
}

func TestResetClearsEverythingButAdmin(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")
	joinPlayer(t, e, "Bo", "main-hall")

	rollToQuestion(t, e, clock, adminID, "main-hall", 5)

	e.ResetGame(p1)
	e.Snapshot("main-hall")

	e.ResetGame(adminID)
	snap := e.Snapshot("main-hall")
	if snap.Phase != PhaseWaiting {
		t.Errorf("phase after reset = %s, want waiting", snap.Phase)
	}
	if len(snap.UsedScenarios) != 0 {
		t.Errorf("usedScenarios after reset = %v", snap.UsedScenarios)
	}
	if snap.CurrentScenario != nil || snap.DiceResult != nil {
		t.Error("scenario survived reset")
	}
	if len(snap.Players) != 1 {
		t.Errorf("roster after reset = %d entries, want admin only", len(snap.Players))
	}
	if _, ok := snap.Players[adminID]; !ok {
		t.Error("admin missing after reset")
	}
	if e.PlayerKnown(p1) {
		t.Error("evicted player still bound to the session")
	}
	if !e.PlayerKnown(adminID) {
		t.Error("admin binding lost on reset")
	}

	// All timers were cancelled: nothing fires later.
	clock.Advance(2 * time.Minute)
	time.Sleep(20 * pollInterval)
	if snap := e.Snapshot("main-hall"); snap.Phase != PhaseWaiting {
		t.Errorf("stale timer fired after reset, phase = %s", snap.Phase)
	}

	// Scenario 5 is available again after reset.
	snap = rollToQuestion(t, e, clock, adminID, "main-hall", 5)
	if snap.CurrentScenario == nil || *snap.CurrentScenario != 5 {
		t.Error("scenario 5 not reusable after reset")
	}
}

func TestDisconnectGraceAndPurge(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	e.Disconnect(p1)
	snap := e.Snapshot("main-hall")
	if snap.Players[p1].Connected {
		t.Fatal("liveness not flipped on disconnect")
	}
	if _, ok := snap.Players[p1]; !ok {
		t.Fatal("player evicted immediately on disconnect")
	}

	clock.Advance(30 * time.Second)
	deadline := time.Now().Add(2 * time.Second)
	for {
		snap = e.Snapshot("main-hall")
		if _, ok := snap.Players[p1]; !ok {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("player not purged after grace window")
		}
		time.Sleep(pollInterval)
	}
}

func TestReconnectWithinGraceKeepsIdentity(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	rollToQuestion(t, e, clock, adminID, "main-hall", 4)
	e.SubmitAnswer(p1, AnswerSubmission{ScenarioID: 4, SelectedOption: "A. TikTok toothpaste mix challenge went wrong", Justification: "viral"})
	e.Snapshot("main-hall")

	e.Disconnect(p1)
	e.Snapshot("main-hall")
	clock.Advance(10 * time.Second)

	res := e.Join(JoinRequest{Name: "Ana", VenueID: "main-hall"})
	if res.Err != nil {
		t.Fatalf("rejoin: %v", res.Err)
	}
	if res.PlayerID != p1 {
		t.Fatalf("rejoin assigned new identity %s, want %s", res.PlayerID, p1)
	}

	snap := e.Snapshot("main-hall")
	if !snap.Players[p1].Connected {
		t.Error("liveness not restored")
	}
	if snap.Players[p1].Score != 10 {
		t.Errorf("score lost on reconnect: %d", snap.Players[p1].Score)
	}
	if len(snap.Players[p1].Answers) != 1 {
		t.Errorf("answers lost on reconnect: %d", len(snap.Players[p1].Answers))
	}

	// The original grace deadline passing must not purge the rebound player.
	clock.Advance(30 * time.Second)
	time.Sleep(20 * pollInterval)
	if _, ok := e.Snapshot("main-hall").Players[p1]; !ok {
		t.Fatal("rebound player purged by stale grace timer")
	}
}

func TestAdminDisconnectClearsAdminAndAllowsReclaim(t *testing.T) {
	e, _, _ := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	e.Disconnect(adminID)
	snap := e.Snapshot("main-hall")
	if snap.AdminID != "" {
		t.Fatalf("adminId = %q after admin disconnect, want empty", snap.AdminID)
	}

	res := e.Join(JoinRequest{Name: "Quizmaster", IsAdmin: true, AdminPassword: "admin123", VenueID: "main-hall"})
	if res.Err != nil {
		t.Fatalf("admin rejoin: %v", res.Err)
	}
	if res.PlayerID != adminID {
		t.Errorf("admin rejoin got new identity")
	}
	if snap := e.Snapshot("main-hall"); snap.AdminID != adminID {
		t.Errorf("admin role not restored")
	}
}

func TestVenueIsolation(t *testing.T) {
	e, sink, clock := newTestEngine(t, DefaultConfig())

	adminA := joinAdmin(t, e, "main-hall")
	joinPlayer(t, e, "Ana", "main-hall")
	adminB := joinAdmin(t, e, "auditorium")
	joinPlayer(t, e, "Bo", "auditorium")

	before := sink.broadcastCount("auditorium")
	rollToQuestion(t, e, clock, adminA, "main-hall", 5)

	if snap := e.Snapshot("auditorium"); snap.Phase != PhaseWaiting {
		t.Errorf("auditorium phase changed by main-hall roll: %s", snap.Phase)
	}
	if got := sink.broadcastCount("auditorium"); got != before {
		t.Errorf("main-hall mutation broadcast to auditorium")
	}

	// The same scenario id is independently available per venue.
	snap := rollToQuestion(t, e, clock, adminB, "auditorium", 5)
	if snap.CurrentScenario == nil || *snap.CurrentScenario != 5 {
		t.Error("scenario 5 blocked across venues")
	}
}

func TestAvailableScenarios(t *testing.T) {
	e, sink, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")
	p1 := joinPlayer(t, e, "Ana", "main-hall")

	e.RequestAvailableScenarios(p1)
	e.Snapshot("main-hall")
	if msg, _ := sink.lastError(p1); msg != "Only admin can request scenarios" {
		t.Errorf("non-admin scenarios error = %q", msg)
	}

	e.RequestAvailableScenarios(adminID)
	e.Snapshot("main-hall")
	payload, ok := sink.lastPayload(adminID, EventAvailableScenarios)
	if !ok {
		t.Fatal("no availableScenarios sent")
	}
	if got := len(payload.([]int)); got != 25 {
		t.Fatalf("available = %d, want 25", got)
	}

	rollToQuestion(t, e, clock, adminID, "main-hall", 12)

	e.RequestAvailableScenarios(adminID)
	e.Snapshot("main-hall")
	payload, _ = sink.lastPayload(adminID, EventAvailableScenarios)
	ids := payload.([]int)
	if len(ids) != 24 {
		t.Fatalf("available after one roll = %d, want 24", len(ids))
	}
	for _, id := range ids {
		if id == 12 {
			t.Fatal("used scenario still listed as available")
		}
	}
}

func TestDeckExhaustionFinishesGame(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")

	for n := 1; n <= 25; n++ {
		rollToQuestion(t, e, clock, adminID, "main-hall", n)
		e.EndQuestion(adminID)
		waitForPhase(t, e, "main-hall", PhaseResults)
		clock.Advance(5 * time.Second)
		if n < 25 {
			waitForPhase(t, e, "main-hall", PhaseWaiting)
		}
	}

	snap := waitForPhase(t, e, "main-hall", PhaseFinished)
	if len(snap.UsedScenarios) != 25 {
		t.Errorf("used = %d, want 25", len(snap.UsedScenarios))
	}

	// Reset brings the session back to a playable state.
	e.ResetGame(adminID)
	if snap := e.Snapshot("main-hall"); snap.Phase != PhaseWaiting || len(snap.UsedScenarios) != 0 {
		t.Errorf("reset after finish: phase %s used %v", snap.Phase, snap.UsedScenarios)
	}
}

func TestUsedScenariosMonotonicAcrossCycles(t *testing.T) {
	e, _, clock := newTestEngine(t, DefaultConfig())

	adminID := joinAdmin(t, e, "main-hall")

	seen := 0
	for _, n := range []int{3, 1, 17} {
		snap := rollToQuestion(t, e, clock, adminID, "main-hall", n)
		seen++
		if len(snap.UsedScenarios) != seen {
			t.Fatalf("used = %v after %d rolls", snap.UsedScenarios, seen)
		}
		e.EndQuestion(adminID)
		waitForPhase(t, e, "main-hall", PhaseResults)
		clock.Advance(5 * time.Second)
		waitForPhase(t, e, "main-hall", PhaseWaiting)
	}
}
