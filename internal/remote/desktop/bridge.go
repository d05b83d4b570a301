package desktop

import (
	"sync"
	"time"

	"github.com/northwind-rmm/agent/internal/kvmprotocol"
	"github.com/northwind-rmm/agent/internal/logging"
)

var bridgeLog = logging.L("desktop.bridge")

// FrameWriter is the narrow write surface the bridger needs from the
// transport. The real implementation shares its write-half with the
// file-command handler under writeMu so text and binary packets interleave
// safely (§4.7).
type FrameWriter interface {
	WriteBinary(data []byte) error
}

// sendTimeout is the bridger sender's per-send timeout (§4.7): on timeout
// the frame is dropped, preventing a slow client from stalling producers.
const sendTimeout = 10 * time.Millisecond

// bridgeChannelCapacity mirrors the capture thread's bounded channel (§4.7).
const bridgeChannelCapacity = 30

// Bridger drains a CaptureThread's frame channel, wraps each FrameData in a
// PICTURE packet, and hands it to a dedicated sender goroutine over a second
// bounded channel so a slow write never blocks the drain loop.
type Bridger struct {
	in      <-chan FrameData
	writer  FrameWriter
	writeMu *sync.Mutex

	queue   chan []byte
	running chan struct{}

	dropped uint64
}

// NewBridger builds a bridger reading from in and writing PICTURE frames
// through writer. writeMu is shared with the file-command handler so both
// sides serialize writes to the same underlying socket.
func NewBridger(in <-chan FrameData, writer FrameWriter, writeMu *sync.Mutex) *Bridger {
	return &Bridger{
		in:      in,
		writer:  writer,
		writeMu: writeMu,
		queue:   make(chan []byte, bridgeChannelCapacity),
		running: make(chan struct{}),
	}
}

// Run starts both the drain loop and the sender loop. It blocks until the
// input channel is closed (capture thread shutdown) and the sender loop has
// finished with every queued packet.
func (b *Bridger) Run() {
	go b.senderLoop()
	defer func() { <-b.running }()
	for frame := range b.in {
		codecID := codecToWireID(frame.Codec)
		packet := kvmprotocol.EncodePicture(codecID, frame.Keyframe, frame.Payload)
		select {
		case b.queue <- packet:
		default:
			b.dropped++
			bridgeLog.Warn("bridger queue full, dropping frame", "dropped_total", b.dropped)
		}
	}
	close(b.queue)
}

func (b *Bridger) senderLoop() {
	defer close(b.running)
	for packet := range b.queue {
		done := make(chan error, 1)
		go func(p []byte) {
			b.writeMu.Lock()
			defer b.writeMu.Unlock()
			done <- b.writer.WriteBinary(p)
		}(packet)

		select {
		case err := <-done:
			if err != nil {
				bridgeLog.Warn("bridger write failed", "error", err)
			}
		case <-time.After(sendTimeout):
			b.dropped++
			bridgeLog.Warn("bridger send timed out, dropping frame", "dropped_total", b.dropped)
		}
	}
}

// Dropped returns the count of frames dropped due to backpressure or
// send timeouts.
func (b *Bridger) Dropped() uint64 { return b.dropped }

func codecToWireID(codec Codec) kvmprotocol.CodecID {
	switch codec {
	case CodecVP9:
		return kvmprotocol.CodecIDVP9
	case CodecH264:
		return kvmprotocol.CodecIDH264
	case CodecAV1:
		return kvmprotocol.CodecIDH265 // no AV1 wire id defined; unreachable via the VP8/VP9 cascade
	default:
		return kvmprotocol.CodecIDVP8
	}
}
