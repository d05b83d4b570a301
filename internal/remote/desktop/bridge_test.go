package desktop

import (
	"errors"
	"sync"
	"testing"
	"time"
)

type recordingWriter struct {
	mu    sync.Mutex
	sent  [][]byte
	delay time.Duration
	err   error
}

func (w *recordingWriter) WriteBinary(data []byte) error {
	if w.delay > 0 {
		time.Sleep(w.delay)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	cp := make([]byte, len(data))
	copy(cp, data)
	w.sent = append(w.sent, cp)
	return w.err
}

func (w *recordingWriter) count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.sent)
}

func TestBridger_ForwardsFrameAsPicturePacket(t *testing.T) {
	in := make(chan FrameData, 1)
	writer := &recordingWriter{}
	var mu sync.Mutex
	b := NewBridger(in, writer, &mu)

	in <- FrameData{Payload: []byte{1, 2, 3}, Keyframe: true, Codec: CodecVP8}
	close(in)

	b.Run()

	if writer.count() != 1 {
		t.Fatalf("expected 1 packet written, got %d", writer.count())
	}
	pkt := writer.sent[0]
	if pkt[0] != 0 || pkt[1] != 3 {
		t.Fatalf("expected PICTURE command id 3, got %x %x", pkt[0], pkt[1])
	}
}

func TestBridger_SlowWriteIsDroppedAfterTimeout(t *testing.T) {
	in := make(chan FrameData, 1)
	writer := &recordingWriter{delay: 50 * time.Millisecond}
	var mu sync.Mutex
	b := NewBridger(in, writer, &mu)

	in <- FrameData{Payload: []byte{9}, Codec: CodecVP8}
	close(in)

	start := time.Now()
	b.Run()
	elapsed := time.Since(start)

	if elapsed > 40*time.Millisecond {
		t.Fatalf("expected bridger to return quickly after send timeout, took %v", elapsed)
	}
	if b.Dropped() != 1 {
		t.Fatalf("expected 1 dropped frame, got %d", b.Dropped())
	}
}

func TestBridger_WriteErrorDoesNotPanic(t *testing.T) {
	in := make(chan FrameData, 1)
	writer := &recordingWriter{err: errors.New("write failed")}
	var mu sync.Mutex
	b := NewBridger(in, writer, &mu)

	in <- FrameData{Payload: []byte{1}, Codec: CodecVP8}
	close(in)
	b.Run()
}

func TestCodecToWireID(t *testing.T) {
	cases := map[Codec]byte{
		CodecVP8:  1,
		CodecVP9:  2,
		CodecH264: 3,
	}
	for codec, want := range cases {
		if got := byte(codecToWireID(codec)); got != want {
			t.Fatalf("codec %v: expected wire id %d, got %d", codec, want, got)
		}
	}
}
