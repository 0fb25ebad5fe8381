package session

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Refresher flags the local cache file stale so the next connection
// re-downloads the canonical blob.
type Refresher interface {
	MarkStale()
}

// State tracks one live session. Reconciled flips to true after the session's
// first data access has attempted a refresh; it never flips back.
type State struct {
	SessionID  string    `json:"session_id"`
	Subject    string    `json:"subject"`
	Reconciled bool      `json:"reconciled"`
	StartedAt  time.Time `json:"started_at"`
}

// Gate guarantees that each session forces exactly one refresh of the local
// cache file before its first data access. All state is per session; two
// sessions never share a reconciliation flag.
type Gate struct {
	refresher Refresher
	logger    *slog.Logger

	mu     sync.Mutex
	states map[string]*State
}

// NewGate builds a gate over the given refresher.
func NewGate(refresher Refresher, logger *slog.Logger) *Gate {
	return &Gate{
		refresher: refresher,
		logger:    logger.With(slog.String("component", "session")),
		states:    map[string]*State{},
	}
}

// Begin registers a session at login time.
func (g *Gate) Begin(sessionID, subject string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.states[sessionID]; ok {
		return
	}
	g.states[sessionID] = &State{
		SessionID: sessionID,
		Subject:   subject,
		StartedAt: time.Now(),
	}
}

// EnsureFresh flags the local file stale the first time a session touches
// data, so the request's own connection re-downloads the canonical blob. The
// session is marked reconciled up front; a failed download degrades to the
// local file rather than wedging every request into retrying.
func (g *Gate) EnsureFresh(_ context.Context, sessionID, subject string) {
	g.mu.Lock()
	state, ok := g.states[sessionID]
	if !ok {
		// Token minted before a process restart; adopt the session.
		state = &State{SessionID: sessionID, Subject: subject, StartedAt: time.Now()}
		g.states[sessionID] = state
	}
	if state.Reconciled {
		g.mu.Unlock()
		return
	}
	state.Reconciled = true
	g.mu.Unlock()

	g.logger.Info("first data access for session, refreshing local cache", slog.String("session_id", sessionID))
	g.refresher.MarkStale()
}

// End forgets the session. A later request with the same token would be
// adopted as a new session and reconcile again.
func (g *Gate) End(sessionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.states, sessionID)
}

// Lookup returns a copy of the session state, if present.
func (g *Gate) Lookup(sessionID string) (State, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	state, ok := g.states[sessionID]
	if !ok {
		return State{}, false
	}
	return *state, true
}

// Active returns the number of live sessions.
func (g *Gate) Active() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.states)
}
