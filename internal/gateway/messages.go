package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/campusplay/dicearena/internal/game"
)

// Inbound action names.
const (
	actionJoinGame              = "joinGame"
	actionRollDice              = "rollDice"
	actionSubmitAnswer          = "submitAnswer"
	actionEliminatePlayer       = "eliminatePlayer"
	actionEndQuestion           = "endQuestion"
	actionResetGame             = "resetGame"
	actionGetAvailableScenarios = "getAvailableScenarios"
)

// frame is the inbound wire shape. Data is decoded per action into exactly
// one of the payload types below; anything else is rejected at the boundary
// before it can reach the engine.
type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type rollDicePayload struct {
	TargetNumber int `json:"targetNumber"`
}

type eliminatePayload struct {
	PlayerID string `json:"playerId"`
}

// inboundAction is the closed union handed to the dispatch loop.
type inboundAction struct {
	name      string
	join      game.JoinRequest
	roll      rollDicePayload
	submit    game.AnswerSubmission
	eliminate eliminatePayload
}

// decodeAction validates the frame shape. Semantic guards (role, phase,
// ranges) stay with the engine; this only rejects payloads the engine
// could not type.
func decodeAction(raw []byte) (inboundAction, error) {
	var f frame
	if err := json.Unmarshal(raw, &f); err != nil {
		return inboundAction{}, fmt.Errorf("malformed message")
	}

	act := inboundAction{name: f.Event}
	switch f.Event {
	case actionJoinGame:
		if err := json.Unmarshal(f.Data, &act.join); err != nil {
			return inboundAction{}, fmt.Errorf("malformed joinGame payload")
		}
	case actionRollDice:
		if err := json.Unmarshal(f.Data, &act.roll); err != nil {
			return inboundAction{}, fmt.Errorf("malformed rollDice payload")
		}
	case actionSubmitAnswer:
		if err := json.Unmarshal(f.Data, &act.submit); err != nil {
			return inboundAction{}, fmt.Errorf("malformed submitAnswer payload")
		}
	case actionEliminatePlayer:
		if err := json.Unmarshal(f.Data, &act.eliminate); err != nil {
			return inboundAction{}, fmt.Errorf("malformed eliminatePlayer payload")
		}
		if act.eliminate.PlayerID == "" {
			return inboundAction{}, fmt.Errorf("eliminatePlayer needs a playerId")
		}
	case actionEndQuestion, actionResetGame, actionGetAvailableScenarios:
		// No payload.
	default:
		return inboundAction{}, fmt.Errorf("unknown action %q", f.Event)
	}
	return act, nil
}
