package desktop

import "testing"

func TestSessionState_ConnectFirstClientEnablesCursor(t *testing.T) {
	s := NewSessionState()
	res := s.OnClientConnect("a")
	if !res.CursorVisible {
		t.Fatalf("expected cursor visible for sole client")
	}
	if s.ActiveClients() != 1 {
		t.Fatalf("expected 1 active client, got %d", s.ActiveClients())
	}
	if !s.ConsumeForceKeyframe() {
		t.Fatalf("expected force-keyframe to be requested on connect")
	}
}

func TestSessionState_SecondClientDoesNotForceCursorOn(t *testing.T) {
	s := NewSessionState()
	s.OnClientConnect("a")
	s.cursorVisible.Store(false)
	res := s.OnClientConnect("b")
	if res.CursorVisible {
		t.Fatalf("second connect should not force cursor visible on its own")
	}
	if s.ActiveClients() != 2 {
		t.Fatalf("expected 2 active clients, got %d", s.ActiveClients())
	}
}

func TestSessionState_DisconnectToZeroClearsFlags(t *testing.T) {
	s := NewSessionState()
	s.OnClientConnect("a")
	s.OnClientDisconnect("a")
	if s.ActiveClients() != 0 {
		t.Fatalf("expected 0 active clients, got %d", s.ActiveClients())
	}
	if s.CursorVisible() {
		t.Fatalf("expected cursor disabled once all clients disconnect")
	}
	if s.ConsumeForceKeyframe() {
		t.Fatalf("expected force-keyframe flag cleared on last disconnect")
	}
}

func TestSessionState_DisconnectToOneReenablesCursor(t *testing.T) {
	s := NewSessionState()
	s.OnClientConnect("a")
	s.OnClientConnect("b")
	s.cursorVisible.Store(false)
	s.OnClientDisconnect("b")
	if !s.CursorVisible() {
		t.Fatalf("expected cursor re-enabled when dropping to 1 client")
	}
}

func TestSessionState_RefreshDebounced(t *testing.T) {
	s := NewSessionState()
	if !s.RequestRefresh() {
		t.Fatalf("expected first refresh request to succeed")
	}
	if s.RequestRefresh() {
		t.Fatalf("expected immediate second request to be debounced")
	}
}

func TestSessionState_RefreshSuppressedDuringResolutionChange(t *testing.T) {
	s := NewSessionState()
	s.SetResolutionChangeInProgress(true)
	if s.RequestRefresh() {
		t.Fatalf("expected refresh to be suppressed during resolution change")
	}
}

func TestSessionState_FilterFrameDropsNonKeyframeDuringGating(t *testing.T) {
	s := NewSessionState()
	s.OnClientConnect("a")
	if s.FilterFrame(false) {
		t.Fatalf("expected non-keyframe to be dropped while awaiting initial keyframe")
	}
	if !s.ConsumeForceKeyframe() {
		t.Fatalf("expected force-keyframe to be re-requested after a dropped non-keyframe")
	}
}

func TestSessionState_FilterFrameForwardsFirstKeyframeAndDecrements(t *testing.T) {
	s := NewSessionState()
	s.OnClientConnect("a")
	if !s.FilterFrame(true) {
		t.Fatalf("expected keyframe to be forwarded")
	}
	if !s.FilterFrame(false) {
		t.Fatalf("expected subsequent non-keyframe to pass once gating clears")
	}
}

func TestSessionState_ClientAckMarksReady(t *testing.T) {
	s := NewSessionState()
	s.OnClientConnect("a")
	s.OnClientAck("a")
	s.clientsMu.Lock()
	ready := s.clients["a"].ready
	s.clientsMu.Unlock()
	if !ready {
		t.Fatalf("expected client marked ready after ack")
	}
}
