package desktop

import (
	"errors"
	"testing"
	"time"
)

// stubBackend satisfies Backend for testing the fallback state machine.
type stubBackend struct {
	width, height int
	isGDI         bool
	setGDIErr     error
	closed        bool

	frames []stubFrameResult
	calls  int
}

type stubFrameResult struct {
	status FrameStatus
	err    error
}

func (s *stubBackend) Width() int  { return s.width }
func (s *stubBackend) Height() int { return s.height }
func (s *stubBackend) IsGDI() bool { return s.isGDI }

func (s *stubBackend) Frame(time.Duration) (*CapturedFrame, FrameStatus, error) {
	var result stubFrameResult
	if s.calls < len(s.frames) {
		result = s.frames[s.calls]
	} else {
		result = s.frames[len(s.frames)-1]
	}
	s.calls++
	if result.status == FrameValid && result.err == nil {
		return &CapturedFrame{Width: s.width, Height: s.height}, FrameValid, nil
	}
	return nil, result.status, result.err
}

func (s *stubBackend) SetGDI() error {
	if s.setGDIErr != nil {
		return s.setGDIErr
	}
	s.isGDI = true
	return nil
}

func (s *stubBackend) Close() error {
	s.closed = true
	return nil
}

var errStubCapture = errors.New("stub: capture failed")

// newTestFallback builds a FallbackCapturer around a fresh stubBackend
// without running the real 2s/100-retry initialization protocol. Its
// factory hands out the rebuilt backends in order, then initial again.
func newTestFallback(initial *stubBackend, rebuilt ...*stubBackend) *FallbackCapturer {
	queue := append([]*stubBackend{}, rebuilt...)
	factory := func(CaptureConfig) (Backend, error) {
		if len(queue) == 0 {
			return initial, nil
		}
		next := queue[0]
		queue = queue[1:]
		return next, nil
	}
	fc := &FallbackCapturer{config: CaptureConfig{}, backend: initial, newBackend: factory}
	return fc
}

func TestFallback_SuccessResetsFailTimes(t *testing.T) {
	backend := &stubBackend{frames: []stubFrameResult{{status: FrameValid}}}
	fc := newTestFallback(backend)
	fc.failTimes = 3

	_, status, err := fc.Frame(100 * time.Millisecond)
	if err != nil || status != FrameValid {
		t.Fatalf("expected valid frame, got status=%v err=%v", status, err)
	}
	if fc.failTimes != 0 {
		t.Fatalf("expected failTimes reset to 0, got %d", fc.failTimes)
	}
}

func TestFallback_WouldBlockDoesNotCountAsFailure(t *testing.T) {
	backend := &stubBackend{frames: []stubFrameResult{{status: FrameWouldBlock}}}
	fc := newTestFallback(backend)
	fc.failTimes = 2

	_, status, err := fc.Frame(100 * time.Millisecond)
	if err != nil || status != FrameWouldBlock {
		t.Fatalf("expected would-block pass-through, got status=%v err=%v", status, err)
	}
	if fc.failTimes != 2 {
		t.Fatalf("expected failTimes unchanged at 2, got %d", fc.failTimes)
	}
}

// TestFallback_SixConsecutiveErrorsTriggerRebuild exercises the spec's
// testable scenario: 6 consecutive non-would-block errors, and on the 7th
// call the backend has been rebuilt in GDI mode.
func TestFallback_SixConsecutiveErrorsTriggerRebuild(t *testing.T) {
	failing := &stubBackend{frames: []stubFrameResult{{status: FrameInvalid, err: errStubCapture}}}
	rebuiltBackend := &stubBackend{frames: []stubFrameResult{{status: FrameValid}}}
	fc := newTestFallback(failing, rebuiltBackend)

	for i := 0; i < 6; i++ {
		_, status, err := fc.Frame(100 * time.Millisecond)
		if err == nil || status == FrameValid {
			t.Fatalf("call %d: expected error, got status=%v err=%v", i+1, status, err)
		}
	}
	if !failing.closed {
		t.Fatalf("expected original backend to be closed after exceeding threshold")
	}
	if fc.backend != rebuiltBackend {
		t.Fatalf("expected backend to be swapped to the rebuilt instance")
	}
	if !fc.IsGDI() {
		t.Fatalf("expected rebuilt backend to report GDI mode")
	}
	if fc.failTimes != 0 {
		t.Fatalf("expected failTimes reset after rebuild, got %d", fc.failTimes)
	}

	// 7th call now succeeds against the rebuilt backend.
	_, status, err := fc.Frame(100 * time.Millisecond)
	if err != nil || status != FrameValid {
		t.Fatalf("expected valid frame from rebuilt backend, got status=%v err=%v", status, err)
	}
}

func TestFallback_GDIBackendNeverCountsFailures(t *testing.T) {
	backend := &stubBackend{isGDI: true, frames: []stubFrameResult{{status: FrameInvalid, err: errStubCapture}}}
	fc := newTestFallback(backend)

	for i := 0; i < 20; i++ {
		fc.Frame(100 * time.Millisecond)
	}
	if fc.failTimes != 0 {
		t.Fatalf("GDI backend should never accumulate fail count, got %d", fc.failTimes)
	}
	if backend.closed {
		t.Fatalf("GDI backend should never be rebuilt")
	}
}

func TestFallback_WidthHeightProxyCurrentBackend(t *testing.T) {
	backend := &stubBackend{width: 1920, height: 1080, frames: []stubFrameResult{{status: FrameValid}}}
	fc := newTestFallback(backend)

	if fc.Width() != 1920 || fc.Height() != 1080 {
		t.Fatalf("expected 1920x1080, got %dx%d", fc.Width(), fc.Height())
	}
}

func TestFallback_CloseClosesCurrentBackend(t *testing.T) {
	backend := &stubBackend{frames: []stubFrameResult{{status: FrameValid}}}
	fc := newTestFallback(backend)

	if err := fc.Close(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !backend.closed {
		t.Fatalf("expected Close to close the underlying backend")
	}
}
