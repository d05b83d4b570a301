package desktop

import (
	"runtime"
	"sync/atomic"
	"time"

	"github.com/northwind-rmm/agent/internal/logging"
)

var captureThreadLog = logging.L("desktop.capture.thread")

// FrameData is one encoded frame handed from the capture thread to the
// bridger (§4.6/§4.7).
type FrameData struct {
	Payload   []byte
	Keyframe  bool
	Codec     Codec
	Timestamp int64
}

// CaptureThread is the §4.6 producer: a single dedicated OS thread that
// owns the capture backend and encoder (both inherently synchronous and
// non-reentrant) and feeds a bounded channel the bridger drains.
type CaptureThread struct {
	capturer  *FallbackCapturer
	encoder   *FrameEncoder
	qos       *QoSController
	session   *SessionState
	metrics   *StreamMetrics

	out       chan FrameData
	running   atomic.Bool
	debugForce atomic.Bool

	wouldBlockStreak int

	lastStatsLog time.Time
}

// frameChannelCapacity is the spec's bounded-channel capacity (§4.6/§4.7):
// try_send never blocks the producer, frames are dropped on backpressure.
const frameChannelCapacity = 30

func NewCaptureThread(capturer *FallbackCapturer, encoder *FrameEncoder, qos *QoSController, session *SessionState, metrics *StreamMetrics) *CaptureThread {
	return &CaptureThread{
		capturer: capturer,
		encoder:  encoder,
		qos:      qos,
		session:  session,
		metrics:  metrics,
		out:      make(chan FrameData, frameChannelCapacity),
	}
}

// Out is the bounded channel the bridger (§4.7) reads from.
func (ct *CaptureThread) Out() <-chan FrameData { return ct.out }

// SetDebugForce keeps the capture loop running even with zero active
// clients, for local testing/diagnostics.
func (ct *CaptureThread) SetDebugForce(force bool) { ct.debugForce.Store(force) }

// Stop signals the loop to exit on its next iteration.
func (ct *CaptureThread) Stop() { ct.running.Store(false) }

// Run is the §4.6 pseudo-contract loop. It locks the calling goroutine to
// its OS thread for the duration, matching the spec's "single dedicated OS
// thread owns the encoder and capture-backend" requirement, and must be
// invoked via `go ct.Run()`.
func (ct *CaptureThread) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	ct.running.Store(true)
	ct.lastStatsLog = time.Now()

	var framesThisWindow, dropsThisWindow uint64

	for ct.running.Load() {
		if ct.session.ActiveClients() == 0 && !ct.debugForce.Load() {
			time.Sleep(100 * time.Millisecond)
			continue
		}

		spf := ct.currentSPF()
		iterStart := time.Now()

		if ct.session.ConsumeForceKeyframe() {
			ct.encoder.ForceKeyframe()
		}

		frame, status, err := ct.capturer.Frame(spf)
		switch {
		case status == FrameWouldBlock:
			ct.wouldBlockStreak++
			if ct.wouldBlockStreak > 50 {
				time.Sleep(time.Millisecond)
			}
		case err != nil || status != FrameValid:
			ct.wouldBlockStreak = 0
		default:
			ct.wouldBlockStreak = 0
			ct.captureAndEncode(frame, &framesThisWindow, &dropsThisWindow)
		}

		if time.Since(ct.lastStatsLog) >= 5*time.Second {
			captureThreadLog.Info("capture thread stats",
				"frames", framesThisWindow, "drops", dropsThisWindow,
				"fps", float64(framesThisWindow)/time.Since(ct.lastStatsLog).Seconds())
			framesThisWindow, dropsThisWindow = 0, 0
			ct.lastStatsLog = time.Now()
		}

		elapsed := time.Since(iterStart)
		if remainder := spf - elapsed; remainder > 0 {
			time.Sleep(remainder)
		}
	}
}

func (ct *CaptureThread) currentSPF() time.Duration {
	fps := 16
	if ct.qos != nil {
		if f := ct.qos.CurrentFPS(); f > 0 {
			fps = f
		}
	}
	return time.Second / time.Duration(fps)
}

func (ct *CaptureThread) captureAndEncode(raw *CapturedFrame, framesThisWindow, dropsThisWindow *uint64) {
	if ct.metrics != nil {
		ct.metrics.RecordCapture(0)
	}

	prepared, err := PrepareFrame(raw)
	if err != nil {
		if ct.metrics != nil {
			ct.metrics.RecordSkip()
		}
		return
	}
	defer ReleasePreparedFrame(prepared)

	i420 := bgraToI420(prepared.Pix, prepared.Width, prepared.Height)
	defer putI420Buffer(i420)

	payload, err := ct.encoder.Encode(i420, time.Now().UnixMilli())
	if err != nil || payload == nil {
		return
	}

	keyframe := ct.encoder.WasLastFrameKeyframe()
	if !ct.session.FilterFrame(keyframe) {
		return
	}

	fd := FrameData{Payload: payload, Keyframe: keyframe, Codec: ct.encoder.Codec(), Timestamp: time.Now().UnixMilli()}
	select {
	case ct.out <- fd:
		*framesThisWindow++
		if ct.metrics != nil {
			ct.metrics.RecordEncode(0, len(payload))
		}
	default:
		*dropsThisWindow++
		if ct.metrics != nil {
			ct.metrics.RecordDrop()
		}
	}
}
