package game

// JoinRequest is the decoded joinGame action.
type JoinRequest struct {
	Name          string `json:"name"`
	IsAdmin       bool   `json:"isAdmin,omitempty"`
	AdminPassword string `json:"adminPassword,omitempty"`
	TeamName      string `json:"teamName,omitempty"`
	VenueID       string `json:"venueId,omitempty"`
}

// AnswerSubmission is the decoded submitAnswer action.
type AnswerSubmission struct {
	ScenarioID     int    `json:"scenarioId"`
	SelectedOption string `json:"selectedOption,omitempty"`
	Justification  string `json:"justification"`
}

// JoinResult is returned to the gateway so it can bind the connection to
// the assigned (or rebound) player identity.
type JoinResult struct {
	PlayerID string
	IsAdmin  bool
	VenueID  string
	Snapshot Snapshot
	Err      *Error
}

// command is the closed union of everything the engine's event loop
// processes. Player actions, timer callbacks, and lifecycle notices all
// arrive as commands; each runs to completion before the next.
type command interface {
	isCommand()
}

type joinCmd struct {
	req   JoinRequest
	reply chan JoinResult
}

type rollCmd struct {
	playerID     string
	targetNumber int
}

type submitCmd struct {
	playerID string
	answer   AnswerSubmission
}

type eliminateCmd struct {
	playerID string // caller
	targetID string
}

type endQuestionCmd struct {
	playerID string
}

type resetCmd struct {
	playerID string
}

type scenariosCmd struct {
	playerID string
}

type disconnectCmd struct {
	playerID string
}

// rollDoneCmd fires after the dice animation delay.
type rollDoneCmd struct {
	venueID    string
	scenarioID int
	generation uint64
}

// questionExpiredCmd fires when the question countdown elapses.
type questionExpiredCmd struct {
	venueID    string
	generation uint64
}

// resultsDoneCmd fires when the results display window elapses.
type resultsDoneCmd struct {
	venueID    string
	generation uint64
}

// purgeCmd fires after the disconnect grace window.
type purgeCmd struct {
	venueID  string
	playerID string
}

type snapshotCmd struct {
	venueID string
	reply   chan Snapshot
}

type playerKnownCmd struct {
	playerID string
	reply    chan bool
}

func (joinCmd) isCommand()            {}
func (rollCmd) isCommand()            {}
func (submitCmd) isCommand()          {}
func (eliminateCmd) isCommand()       {}
func (endQuestionCmd) isCommand()     {}
func (resetCmd) isCommand()           {}
func (scenariosCmd) isCommand()       {}
func (disconnectCmd) isCommand()      {}
func (rollDoneCmd) isCommand()        {}
func (questionExpiredCmd) isCommand() {}
func (resultsDoneCmd) isCommand()     {}
func (purgeCmd) isCommand()           {}
func (snapshotCmd) isCommand()        {}
func (playerKnownCmd) isCommand()     {}
