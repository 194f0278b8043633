package game

// SessionStore holds the single source of truth per venue. It is only ever
// touched from the engine's event loop, which is what makes every handler a
// transaction; there is deliberately no lock here.
type SessionStore struct {
	sessions map[string]*Session
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{sessions: make(map[string]*Session)}
}

func (st *SessionStore) get(venueID string) (*Session, bool) {
	s, ok := st.sessions[venueID]
	return s, ok
}

func (st *SessionStore) getOrCreate(venueID string) *Session {
	if s, ok := st.sessions[venueID]; ok {
		return s
	}
	s := newSession(venueID)
	st.sessions[venueID] = s
	return s
}

// reset clears a session back to a fresh waiting state, keeping only the
// admin roster entry (if any). The generation bump invalidates any timer
// still in flight for the old life of the session.
func (st *SessionStore) reset(venueID string) *Session {
	old, ok := st.sessions[venueID]
	if !ok {
		return nil
	}

	fresh := newSession(venueID)
	fresh.Phase = PhaseWaiting
	fresh.generation = old.generation + 1

	if old.AdminID != "" {
		if admin, ok := old.Players[old.AdminID]; ok {
			fresh.AdminID = old.AdminID
			fresh.addPlayer(admin)
		}
	}

	st.sessions[venueID] = fresh
	return fresh
}
