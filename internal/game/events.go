package game

// Event names on the outbound wire. gameState fans out to every live
// connection of a venue; everything else is unicast.
const (
	EventGameState          = "gameState"
	EventPlayerJoined       = "playerJoined"
	EventAvailableScenarios = "availableScenarios"
	EventPlayerAnswered     = "playerAnswered"
	EventAnswerSubmitted    = "answerSubmitted"
	EventEliminated         = "eliminated"
	EventError              = "error"
)

// Envelope is the outbound wire frame.
type Envelope struct {
	Event string `json:"event"`
	Data  any    `json:"data,omitempty"`
}

// Sink is what the engine needs from the connection gateway. Broadcast
// reaches every live connection bound to the venue's roster; Unicast
// reaches every live connection bound to one player.
type Sink interface {
	Broadcast(venueID string, env Envelope)
	Unicast(playerID string, env Envelope)
}

// PlayerJoinedPayload is the private acknowledgment sent to a joining
// connection with its assigned identity and role.
type PlayerJoinedPayload struct {
	PlayerID string `json:"playerId"`
	IsAdmin  bool   `json:"isAdmin"`
	VenueID  string `json:"venueId,omitempty"`
}

// PlayerAnsweredPayload goes to the session admin when a participant
// submits.
type PlayerAnsweredPayload struct {
	PlayerID   string           `json:"playerId"`
	PlayerName string           `json:"playerName"`
	Answer     AnswerSubmission `json:"answer"`
}

// ErrorPayload carries a rejected action's message back to its caller.
type ErrorPayload struct {
	Message string `json:"message"`
}
