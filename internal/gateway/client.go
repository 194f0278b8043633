package gateway

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/campusplay/dicearena/internal/game"
)

// Client is one live websocket connection. playerID stays empty until a
// successful joinGame binds it.
type Client struct {
	id       string
	playerID string
	conn     *websocket.Conn
	send     chan []byte
	gateway  *Gateway

	closeOnce sync.Once
	done      chan struct{}
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		close(c.done)
		if c.conn != nil {
			_ = c.conn.Close()
		}
	})
}

// trySend queues outbound bytes without blocking. A connection that cannot
// keep up is dropped.
func (c *Client) trySend(data []byte) {
	select {
	case c.send <- data:
	case <-c.done:
	default:
		log.Warn().
			Str("connection_id", c.id).
			Str("player_id", c.playerID).
			Msg("send buffer full, dropping connection")
		c.close()
	}
}

// sendEnvelope marshals and queues an envelope for this connection only.
func (c *Client) sendEnvelope(env game.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", env.Event).Msg("marshal envelope")
		return
	}
	c.trySend(data)
}

func (c *Client) sendError(msg string) {
	c.sendEnvelope(game.Envelope{Event: game.EventError, Data: game.ErrorPayload{Message: msg}})
}

// readPump decodes inbound frames and routes them to the engine. It owns
// the connection teardown: when it returns, the player's liveness is
// flipped if this was their last connection.
func (c *Client) readPump() {
	cfg := c.gateway.cfg
	defer func() {
		wasLast := c.gateway.unbind(c)
		c.close()
		if wasLast && c.playerID != "" {
			c.gateway.engine.Disconnect(c.playerID)
		}
		log.Info().Str("connection_id", c.id).Str("player_id", c.playerID).Msg("websocket connection closed")
	}()

	c.conn.SetReadLimit(cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure, websocket.CloseNormalClosure) {
				log.Error().Err(err).Str("connection_id", c.id).Msg("unexpected websocket close")
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(cfg.ReadTimeout))

		act, err := decodeAction(raw)
		if err != nil {
			c.sendError(err.Error())
			continue
		}
		c.handleAction(act)
	}
}

func (c *Client) handleAction(act inboundAction) {
	if act.name == actionJoinGame {
		c.handleJoin(act.join)
		return
	}

	if c.playerID == "" {
		c.sendError("Join the game first")
		return
	}

	engine := c.gateway.engine
	switch act.name {
	case actionRollDice:
		engine.RollDice(c.playerID, act.roll.TargetNumber)
	case actionSubmitAnswer:
		engine.SubmitAnswer(c.playerID, act.submit)
	case actionEliminatePlayer:
		engine.EliminatePlayer(c.playerID, act.eliminate.PlayerID)
	case actionEndQuestion:
		engine.EndQuestion(c.playerID)
	case actionResetGame:
		engine.ResetGame(c.playerID)
	case actionGetAvailableScenarios:
		engine.RequestAvailableScenarios(c.playerID)
	}
}

// handleJoin binds the connection before any fan-out it must not miss: the
// join ack and the first snapshot go out from here, after the bind, so a
// broadcast racing the join cannot leave this client behind.
func (c *Client) handleJoin(req game.JoinRequest) {
	if c.playerID != "" {
		// An admin reset evicts participants from the session without
		// closing their sockets. When the engine no longer knows the
		// bound identity, release it and let the join proceed fresh.
		if c.gateway.engine.PlayerKnown(c.playerID) {
			c.sendError("Already joined")
			return
		}
		c.gateway.unbind(c)
		c.playerID = ""
	}

	res := c.gateway.engine.Join(req)
	if res.Err != nil {
		c.sendError(res.Err.Message)
		return
	}

	c.gateway.bind(c, res.PlayerID, res.VenueID)

	c.sendEnvelope(game.Envelope{Event: game.EventPlayerJoined, Data: game.PlayerJoinedPayload{
		PlayerID: res.PlayerID,
		IsAdmin:  res.IsAdmin,
		VenueID:  res.VenueID,
	}})
	c.sendEnvelope(game.Envelope{Event: game.EventGameState, Data: res.Snapshot})
}

// writePump drains the send queue and keeps the connection alive with
// pings.
func (c *Client) writePump() {
	cfg := c.gateway.cfg
	ticker := time.NewTicker(cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()

	for {
		select {
		case data := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}
