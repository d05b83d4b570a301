package desktop

import (
	"errors"
	"time"
)

// FrameStatus classifies the outcome of a single Backend.Frame call, per the
// capture backend contract (§4.1): a valid pixel buffer, an invalid/empty
// buffer (treated as no-frame), or a would-block signal.
type FrameStatus int

const (
	FrameValid FrameStatus = iota
	FrameInvalid
	FrameWouldBlock
)

// CapturedFrame is the pixel buffer handed back by a Backend. Stride may
// exceed Width*4; frame preparation (frameprep.go) is responsible for
// repacking it into the encoder's exact layout.
type CapturedFrame struct {
	Pix    []byte
	Stride int
	Width  int
	Height int
}

// ErrWouldBlock is the error a ScreenCapturer's Capture method may return to
// indicate no frame is available yet; Frame maps it to FrameWouldBlock. None
// of the platform capturers in this tree return it: the DXGI and GDI
// capturers report "no frame yet" as a nil image, which Frame classifies as
// FrameInvalid.
var ErrWouldBlock = errors.New("capture: would block")

// gdiForcer is implemented by capturers that can be explicitly downgraded
// into a software/GDI-equivalent capture mode in place, without destroying
// and recreating the whole capturer. Capturers that can't support this
// (cgo DXGI, X11) instead get a fresh capturer built by the fallback state
// machine.
type gdiForcer interface {
	IsGDI() bool
	ForceGDI() error
}

// Backend is the spec's Capture Backend abstraction (§4.1): primary_display,
// new_capturer, and on a capturer width/height/frame(timeout)/is_gdi/set_gdi.
type Backend interface {
	Width() int
	Height() int
	Frame(timeout time.Duration) (*CapturedFrame, FrameStatus, error)
	IsGDI() bool
	SetGDI() error
	Close() error
}

// backendCapturer adapts any ScreenCapturer (the platform-specific
// implementations in capture_linux.go/capture_windows*.go/capture_darwin.go)
// into the Backend contract the capture thread (§4.6) consumes.
type backendCapturer struct {
	inner  ScreenCapturer
	config CaptureConfig
}

// NewBackend constructs the capture backend for the primary display.
func NewBackend(config CaptureConfig) (Backend, error) {
	inner, err := NewScreenCapturer(config)
	if err != nil {
		return nil, err
	}
	return &backendCapturer{inner: inner, config: config}, nil
}

func (b *backendCapturer) Width() int {
	w, _, err := b.inner.GetScreenBounds()
	if err != nil {
		return 0
	}
	return w
}

func (b *backendCapturer) Height() int {
	_, h, err := b.inner.GetScreenBounds()
	if err != nil {
		return 0
	}
	return h
}

// Frame captures one frame. timeout is advisory: the underlying
// ScreenCapturer implementations in this tree are synchronous, so the
// timeout only bounds how long the caller should have waited before giving
// up on an async-acquire backend (DXGI); it's threaded through so a future
// backend with a genuine blocking acquire call has somewhere to plug in.
func (b *backendCapturer) Frame(timeout time.Duration) (*CapturedFrame, FrameStatus, error) {
	img, err := b.inner.Capture()
	if err != nil {
		if errors.Is(err, ErrWouldBlock) {
			return nil, FrameWouldBlock, nil
		}
		return nil, FrameInvalid, err
	}
	if img == nil || len(img.Pix) == 0 || img.Rect.Dx() == 0 || img.Rect.Dy() == 0 {
		return nil, FrameInvalid, nil
	}
	return &CapturedFrame{
		Pix:    img.Pix,
		Stride: img.Stride,
		Width:  img.Rect.Dx(),
		Height: img.Rect.Dy(),
	}, FrameValid, nil
}

func (b *backendCapturer) IsGDI() bool {
	if forcer, ok := b.inner.(gdiForcer); ok {
		return forcer.IsGDI()
	}
	return false
}

// SetGDI implements the §4.1 fallback transition: prefer downgrading the
// existing capturer in place (gdiForcer), otherwise tear down and rebuild.
func (b *backendCapturer) SetGDI() error {
	if forcer, ok := b.inner.(gdiForcer); ok {
		return forcer.ForceGDI()
	}
	_ = b.inner.Close()
	next, err := NewScreenCapturer(b.config)
	if err != nil {
		return err
	}
	b.inner = next
	return nil
}

func (b *backendCapturer) Close() error {
	return b.inner.Close()
}
