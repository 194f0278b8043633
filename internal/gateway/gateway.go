// Package gateway maps websocket connections to player identities, routes
// inbound actions to the game engine, and fans session snapshots back out.
package gateway

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/campusplay/dicearena/internal/game"
)

// Engine is what the gateway needs from the game engine.
type Engine interface {
	Join(req game.JoinRequest) game.JoinResult
	RollDice(playerID string, targetNumber int)
	SubmitAnswer(playerID string, answer game.AnswerSubmission)
	EliminatePlayer(playerID, targetID string)
	EndQuestion(playerID string)
	ResetGame(playerID string)
	RequestAvailableScenarios(playerID string)
	Disconnect(playerID string)
	PlayerKnown(playerID string) bool
}

// ConnConfig holds per-connection transport settings.
type ConnConfig struct {
	WriteTimeout    time.Duration
	ReadTimeout     time.Duration
	PingInterval    time.Duration
	MaxMessageSize  int64
	ReadBufferSize  int
	WriteBufferSize int
	CheckOrigin     func(r *http.Request) bool
}

// DefaultConnConfig returns the standard transport settings. The ping
// interval must stay below the read timeout.
func DefaultConnConfig() ConnConfig {
	return ConnConfig{
		WriteTimeout:    10 * time.Second,
		ReadTimeout:     60 * time.Second,
		PingInterval:    30 * time.Second,
		MaxMessageSize:  4096,
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true
		},
	}
}

// Gateway implements game.Sink and owns every live connection.
type Gateway struct {
	engine   Engine
	cfg      ConnConfig
	upgrader websocket.Upgrader

	mu          sync.RWMutex
	byPlayer    map[string]map[*Client]bool
	playerVenue map[string]string
}

// New creates a gateway routing actions into engine.
func New(engine Engine, cfg ConnConfig) *Gateway {
	return &Gateway{
		engine: engine,
		cfg:    cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin:     cfg.CheckOrigin,
		},
		byPlayer:    make(map[string]map[*Client]bool),
		playerVenue: make(map[string]string),
	}
}

// ServeWS upgrades an HTTP request and runs the connection until it drops.
func (g *Gateway) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("websocket upgrade failed")
		return
	}

	c := &Client{
		id:      uuid.NewString(),
		conn:    conn,
		send:    make(chan []byte, 64),
		gateway: g,
		done:    make(chan struct{}),
	}

	log.Info().Str("connection_id", c.id).Msg("websocket connection established")

	go c.writePump()
	c.readPump()
}

// bind associates a connection with its player identity after a successful
// join.
func (g *Gateway) bind(c *Client, playerID, venueID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	c.playerID = playerID
	if g.byPlayer[playerID] == nil {
		g.byPlayer[playerID] = make(map[*Client]bool)
	}
	g.byPlayer[playerID][c] = true
	g.playerVenue[playerID] = venueID
}

// unbind removes a dropped connection. Returns true if it was the player's
// last live connection, which is what flips liveness in the engine.
func (g *Gateway) unbind(c *Client) (last bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if c.playerID == "" {
		return false
	}
	conns := g.byPlayer[c.playerID]
	delete(conns, c)
	if len(conns) == 0 {
		delete(g.byPlayer, c.playerID)
		delete(g.playerVenue, c.playerID)
		return true
	}
	return false
}

// Broadcast sends an envelope to every live connection whose player belongs
// to the venue. Slow connections are dropped rather than allowed to stall
// the fan-out.
func (g *Gateway) Broadcast(venueID string, env game.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", env.Event).Msg("marshal broadcast envelope")
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	sent := 0
	for playerID, conns := range g.byPlayer {
		if g.playerVenue[playerID] != venueID {
			continue
		}
		for c := range conns {
			c.trySend(data)
			sent++
		}
	}

	log.Debug().
		Str("venue_id", venueID).
		Str("event", env.Event).
		Int("connections", sent).
		Msg("event broadcast")
}

// Unicast sends an envelope to every live connection of one player.
func (g *Gateway) Unicast(playerID string, env game.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		log.Error().Err(err).Str("event", env.Event).Msg("marshal unicast envelope")
		return
	}

	g.mu.RLock()
	defer g.mu.RUnlock()

	for c := range g.byPlayer[playerID] {
		c.trySend(data)
	}
}
