package desktop

import (
	"time"

	"github.com/northwind-rmm/agent/internal/logging"
)

var fallbackLog = logging.L("desktop.capture.fallback")

// maxDXGIFailTimes is the dxgi_failed_times threshold from §4.1: once
// exceeded, the backend is torn down and rebuilt in GDI mode.
const maxDXGIFailTimes = 5

// FallbackCapturer wraps a Backend with the §4.1 fallback state machine:
// a failure counter that, once it exceeds maxDXGIFailTimes, rebuilds the
// capturer and forces GDI mode. It also runs the initialization protocol
// (2s settle sleep, up to 100 retries at 100ms with 50ms spacing).
type FallbackCapturer struct {
	config     CaptureConfig
	backend    Backend
	failTimes  int
	newBackend func(CaptureConfig) (Backend, error)
}

// NewFallbackCapturer builds a backend for config and runs the
// initialization protocol before returning.
func NewFallbackCapturer(config CaptureConfig) (*FallbackCapturer, error) {
	return newFallbackCapturerWithFactory(config, NewBackend)
}

func newFallbackCapturerWithFactory(config CaptureConfig, factory func(CaptureConfig) (Backend, error)) (*FallbackCapturer, error) {
	backend, err := factory(config)
	if err != nil {
		return nil, err
	}
	fc := &FallbackCapturer{config: config, backend: backend, newBackend: factory}
	fc.initialize()
	return fc, nil
}

// initialize implements §4.1's initialization protocol: sleep 2000ms to let
// the compositor settle, then attempt up to 100 calls to frame(100ms) with a
// 50ms sleep between attempts, stopping on the first valid frame. Failure to
// get a frame here is not fatal — the capture loop itself retries forever.
func (fc *FallbackCapturer) initialize() {
	time.Sleep(2000 * time.Millisecond)
	for attempt := 0; attempt < 100; attempt++ {
		_, status, err := fc.backend.Frame(100 * time.Millisecond)
		if err == nil && status == FrameValid {
			return
		}
		if attempt%10 == 0 {
			fallbackLog.Debug("waiting for first valid frame", "attempt", attempt)
		}
		time.Sleep(50 * time.Millisecond)
	}
	fallbackLog.Warn("no valid frame during initialization window, continuing anyway")
}

// Width/Height proxy to the current backend.
func (fc *FallbackCapturer) Width() int  { return fc.backend.Width() }
func (fc *FallbackCapturer) Height() int { return fc.backend.Height() }
func (fc *FallbackCapturer) IsGDI() bool { return fc.backend.IsGDI() }

// Frame captures one frame, applying the §4.1 fallback state machine:
// dxgi_failed_times resets to 0 on success, increments on any
// non-would-block error while not already in GDI mode, and once it exceeds
// the threshold the backend is rebuilt in GDI mode and the counter resets.
func (fc *FallbackCapturer) Frame(timeout time.Duration) (*CapturedFrame, FrameStatus, error) {
	frame, status, err := fc.backend.Frame(timeout)
	switch {
	case err == nil && status != FrameWouldBlock:
		fc.failTimes = 0
		return frame, status, nil
	case status == FrameWouldBlock:
		return frame, status, err
	case err != nil:
		if !fc.backend.IsGDI() {
			fc.failTimes++
			if fc.failTimes > maxDXGIFailTimes {
				fallbackLog.Warn("capture backend exceeded failure threshold, rebuilding in GDI mode",
					"fail_times", fc.failTimes)
				fc.rebuild()
			}
		}
		return nil, status, err
	default:
		return frame, status, err
	}
}

// rebuild tears down the current backend, re-acquires the primary display,
// builds a fresh capturer, and forces it into GDI mode.
func (fc *FallbackCapturer) rebuild() {
	_ = fc.backend.Close()
	next, err := fc.newBackend(fc.config)
	if err != nil {
		fallbackLog.Error("failed to rebuild capture backend", "error", err)
		return
	}
	if err := next.SetGDI(); err != nil {
		fallbackLog.Warn("failed to force GDI mode on rebuilt backend", "error", err)
	}
	fc.backend = next
	fc.failTimes = 0
}

// Close releases the underlying backend.
func (fc *FallbackCapturer) Close() error {
	return fc.backend.Close()
}
