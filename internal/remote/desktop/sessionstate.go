package desktop

import (
	"sync"
	"sync/atomic"
	"time"
)

// refreshDebounce is the minimum interval between honored client-side
// refresh requests (§4.5). The Rust original used a 3s debounce; this port
// follows the spec's literal >= 1s.
const refreshDebounce = time.Second

// SessionState implements §3's SessionState atomics and §4.5's multi-client
// semantics: client-connect/disconnect bookkeeping, initial-frame gating in
// the bridger, and refresh-request debouncing.
type SessionState struct {
	activeClients                  atomic.Int32
	clientsAwaitingInitialKeyframe  atomic.Int32
	forceKeyframeRequested          atomic.Bool
	cursorVisible                   atomic.Bool
	resolutionChangeInProgress      atomic.Bool
	fullRefreshRequested            atomic.Bool

	mu                 sync.Mutex
	lastRefreshRequest time.Time

	clientsMu sync.Mutex
	clients   map[string]*clientConnState
}

type clientConnState struct {
	connectedAt time.Time
	ready       bool
}

func NewSessionState() *SessionState {
	return &SessionState{clients: make(map[string]*clientConnState)}
}

// ClientConnectResult carries the client-init packet sequence the caller
// must send, in order, per §4.5 step 3.
type ClientConnectResult struct {
	SendResolution    bool
	SendDisplayInfo   bool
	SendDisplayList   bool
	SendKeystate      bool
	SendMouseCursor   bool
	SendRefresh       bool
	SendTouchInitFail bool
	CursorVisible     bool
}

// OnClientConnect handles the binary client-connect message (§4.5 step 1-3):
// bumps active_clients and clients_awaiting_initial_keyframe, starts the
// initial-connection phase, forces a keyframe, requests a full refresh, and
// enables cursor visibility iff this is the sole client.
func (s *SessionState) OnClientConnect(clientID string) ClientConnectResult {
	s.clientsMu.Lock()
	s.clients[clientID] = &clientConnState{connectedAt: time.Now()}
	soleClient := len(s.clients) == 1
	s.clientsMu.Unlock()

	s.activeClients.Add(1)
	s.clientsAwaitingInitialKeyframe.Add(1)
	s.forceKeyframeRequested.Store(true)
	s.fullRefreshRequested.Store(true)

	if soleClient {
		s.cursorVisible.Store(true)
	}

	return ClientConnectResult{
		SendResolution:    true,
		SendDisplayInfo:   true,
		SendDisplayList:   true,
		SendKeystate:      true,
		SendMouseCursor:   true,
		SendRefresh:       true,
		SendTouchInitFail: true,
		CursorVisible:     s.cursorVisible.Load(),
	}
}

// OnClientAck records that a client has acknowledged the init sequence
// (binary [0,14,0,4]), per §4.5 step 4.
func (s *SessionState) OnClientAck(clientID string) {
	s.clientsMu.Lock()
	defer s.clientsMu.Unlock()
	if c, ok := s.clients[clientID]; ok {
		c.ready = true
	}
}

// OnClientDisconnect handles the binary client-disconnect message (§4.5):
// decrements active_clients; at 0, clears the initial-phase and refresh
// flags and disables cursor visibility; at exactly 1 remaining, re-enables
// cursor visibility by default.
func (s *SessionState) OnClientDisconnect(clientID string) {
	s.clientsMu.Lock()
	delete(s.clients, clientID)
	remaining := len(s.clients)
	s.clientsMu.Unlock()

	if s.activeClients.Add(-1) < 0 {
		s.activeClients.Store(0)
	}

	switch remaining {
	case 0:
		s.clientsAwaitingInitialKeyframe.Store(0)
		s.forceKeyframeRequested.Store(false)
		s.fullRefreshRequested.Store(false)
		s.cursorVisible.Store(false)
	case 1:
		s.cursorVisible.Store(true)
	}
}

// ActiveClients returns the current connected-client count.
func (s *SessionState) ActiveClients() int {
	return int(s.activeClients.Load())
}

// RequestRefresh applies the §4.5 refresh debounce: a client-side refresh
// request only takes effect if at least refreshDebounce has passed since
// the last one, and is suppressed entirely during a resolution change.
func (s *SessionState) RequestRefresh() bool {
	if s.resolutionChangeInProgress.Load() {
		return false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if !s.lastRefreshRequest.IsZero() && now.Sub(s.lastRefreshRequest) < refreshDebounce {
		return false
	}
	s.lastRefreshRequest = now
	s.fullRefreshRequested.Store(true)
	return true
}

// SetResolutionChangeInProgress toggles the flag that suppresses refresh
// requests while a resolution change is underway.
func (s *SessionState) SetResolutionChangeInProgress(inProgress bool) {
	s.resolutionChangeInProgress.Store(inProgress)
}

// ConsumeForceKeyframe reports and clears whether a keyframe has been
// requested since the last call.
func (s *SessionState) ConsumeForceKeyframe() bool {
	return s.forceKeyframeRequested.Swap(false)
}

// ConsumeFullRefresh reports and clears whether a full refresh has been
// requested since the last call.
func (s *SessionState) ConsumeFullRefresh() bool {
	return s.fullRefreshRequested.Swap(false)
}

// FilterFrame implements the bridger's initial-frame gating (§4.5): while
// clients_awaiting_initial_keyframe > 0, non-keyframes are dropped and the
// capture thread is signaled to force one; the first keyframe observed is
// forwarded and the counter is decremented. Returns whether the frame
// should be forwarded to connected clients.
func (s *SessionState) FilterFrame(isKeyframe bool) bool {
	awaiting := s.clientsAwaitingInitialKeyframe.Load()
	if awaiting <= 0 {
		return true
	}
	if !isKeyframe {
		s.forceKeyframeRequested.Store(true)
		return false
	}
	if s.clientsAwaitingInitialKeyframe.Add(-1) < 0 {
		s.clientsAwaitingInitialKeyframe.Store(0)
	}
	return true
}

// CursorVisible reports whether cursor-position streaming is currently
// enabled.
func (s *SessionState) CursorVisible() bool {
	return s.cursorVisible.Load()
}
