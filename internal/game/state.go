package game

import (
	"sort"
	"time"
)

// Phase is a session's stage in the roll→question→results cycle.
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhaseWaiting  Phase = "waiting"
	PhaseRolling  Phase = "rolling"
	PhaseQuestion Phase = "question"
	PhaseResults  Phase = "results"
	PhaseFinished Phase = "finished"
)

// SentinelJustification is auto-inserted for players who did not answer
// before the question timer expired.
const SentinelJustification = "[Time expired - no answer]"

// Answer is one submission. At most one per (player, scenario); duplicates
// are rejected, never overwritten.
type Answer struct {
	ScenarioID     int    `json:"scenarioId"`
	SelectedOption string `json:"selectedOption,omitempty"`
	Justification  string `json:"justification"`
	SubmittedAt    int64  `json:"submittedAt"`
}

// Player is a roster entry. The eliminated flag is monotonic; only a full
// game reset removes a player once joined, or the grace-window purge after
// a disconnect.
type Player struct {
	ID             string
	Name           string
	TeamName       string
	VenueID        string
	IsAdmin        bool
	Connected      bool
	Answers        []Answer
	Score          int
	Eliminated     bool
	disconnectedAt time.Time
}

func (p *Player) hasAnswered(scenarioID int) bool {
	for _, a := range p.Answers {
		if a.ScenarioID == scenarioID {
			return true
		}
	}
	return false
}

// Session is the authoritative mutable game record for one venue. It is
// owned by the engine's event loop and never touched from elsewhere.
type Session struct {
	VenueID         string
	Phase           Phase
	CurrentScenario int // 0 = none
	DiceFace        int // cosmetic, independent of CurrentScenario; 0 = none
	IsRolling       bool
	QuestionStart   time.Time
	Used            map[int]bool
	Players         map[string]*Player
	AdminID         string

	// order preserves join order for snapshots and sentinel insertion.
	order []string

	// generation invalidates timers armed against an earlier life of this
	// session. Bumped on reset.
	generation uint64
}

func newSession(venueID string) *Session {
	return &Session{
		VenueID: venueID,
		Phase:   PhaseLobby,
		Used:    make(map[int]bool),
		Players: make(map[string]*Player),
	}
}

func (s *Session) addPlayer(p *Player) {
	s.Players[p.ID] = p
	s.order = append(s.order, p.ID)
}

func (s *Session) removePlayer(id string) {
	delete(s.Players, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Session) playersInOrder() []*Player {
	out := make([]*Player, 0, len(s.order))
	for _, id := range s.order {
		if p, ok := s.Players[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

func (s *Session) usedIDs() []int {
	out := make([]int, 0, len(s.Used))
	for id := range s.Used {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// PlayerSnapshot is the wire view of a roster entry.
type PlayerSnapshot struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	TeamName   string   `json:"teamName,omitempty"`
	VenueID    string   `json:"venueId,omitempty"`
	IsAdmin    bool     `json:"isAdmin"`
	Connected  bool     `json:"connected"`
	Answers    []Answer `json:"answers"`
	Score      int      `json:"score"`
	Eliminated bool     `json:"eliminated"`
}

// Snapshot is the full session view broadcast after every mutation. It is a
// deep copy, safe to marshal outside the event loop.
type Snapshot struct {
	ID                string                    `json:"id"`
	VenueID           string                    `json:"venueId"`
	Phase             Phase                     `json:"phase"`
	CurrentScenario   *int                      `json:"currentScenario"`
	DiceResult        *int                      `json:"diceResult"`
	IsRolling         bool                      `json:"isRolling"`
	QuestionStartTime *int64                    `json:"questionStartTime"`
	UsedScenarios     []int                     `json:"usedScenarios"`
	Players           map[string]PlayerSnapshot `json:"players"`
	AdminID           string                    `json:"adminId,omitempty"`
}

func (s *Session) snapshot() Snapshot {
	snap := Snapshot{
		ID:      "game-" + s.VenueID,
		VenueID: s.VenueID,
		Phase:   s.Phase,

		IsRolling:     s.IsRolling,
		UsedScenarios: make([]int, 0, len(s.Used)),
		Players:       make(map[string]PlayerSnapshot, len(s.Players)),
		AdminID:       s.AdminID,
	}
	if s.CurrentScenario != 0 {
		id := s.CurrentScenario
		snap.CurrentScenario = &id
	}
	if s.DiceFace != 0 {
		face := s.DiceFace
		snap.DiceResult = &face
	}
	if !s.QuestionStart.IsZero() {
		ms := s.QuestionStart.UnixMilli()
		snap.QuestionStartTime = &ms
	}
	for _, id := range s.order {
		p, ok := s.Players[id]
		if !ok {
			continue
		}
		answers := make([]Answer, len(p.Answers))
		copy(answers, p.Answers)
		snap.Players[id] = PlayerSnapshot{
			ID:         p.ID,
			Name:       p.Name,
			TeamName:   p.TeamName,
			VenueID:    p.VenueID,
			IsAdmin:    p.IsAdmin,
			Connected:  p.Connected,
			Answers:    answers,
			Score:      p.Score,
			Eliminated: p.Eliminated,
		}
	}
	snap.UsedScenarios = append(snap.UsedScenarios, s.usedIDs()...)
	return snap
}

// emptySnapshot is what the read-only API serves before anyone has joined a
// venue, so page loads see a coherent shape.
func emptySnapshot(venueID string) Snapshot {
	return Snapshot{
		ID:            "game-" + venueID,
		VenueID:       venueID,
		Phase:         PhaseLobby,
		UsedScenarios: []int{},
		Players:       map[string]PlayerSnapshot{},
	}
}
