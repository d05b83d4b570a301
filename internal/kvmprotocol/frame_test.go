package kvmprotocol

import (
	"bytes"
	"testing"
)

func TestEncodeSimple_HeaderMatchesTotalLength(t *testing.T) {
	buf, err := EncodeSimple(CmdScreen, []byte{0x07, 0x80, 0x04, 0x38})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf) != 8 {
		t.Fatalf("expected 8 bytes, got %d", len(buf))
	}
	frame, consumed, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("expected to consume all %d bytes, got %d", len(buf), consumed)
	}
	if frame.Command != CmdScreen {
		t.Fatalf("expected command %d, got %d", CmdScreen, frame.Command)
	}
	if !bytes.Equal(frame.Payload, []byte{0x07, 0x80, 0x04, 0x38}) {
		t.Fatalf("payload mismatch: %v", frame.Payload)
	}
}

func TestEncodePicture_SmallFrameUsesRealLength(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	buf := EncodePicture(CodecIDVP8, true, data)
	frame, consumed, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("expected full consume, got %d of %d", consumed, len(buf))
	}
	codec, keyframe, payload, err := DecodePicture(frame.Payload)
	if err != nil {
		t.Fatalf("decode picture failed: %v", err)
	}
	if codec != CodecIDVP8 || !keyframe || !bytes.Equal(payload, data) {
		t.Fatalf("mismatch: codec=%v keyframe=%v payload=%v", codec, keyframe, payload)
	}
}

func TestEncodePicture_OversizeUsesOverflowSentinel(t *testing.T) {
	data := make([]byte, 70000)
	for i := range data {
		data[i] = byte(i)
	}
	buf := EncodePicture(CodecIDH264, false, data)

	if buf[2] != 0xFF || buf[3] != 0xFF {
		t.Fatalf("expected overflow sentinel in length field, got %x %x", buf[2], buf[3])
	}

	frame, consumed, err := Decode(buf)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if consumed != len(buf) {
		t.Fatalf("expected consumed=%d, got %d", len(buf), consumed)
	}
	codec, keyframe, payload, err := DecodePicture(frame.Payload)
	if err != nil {
		t.Fatalf("decode picture failed: %v", err)
	}
	if codec != CodecIDH264 || keyframe {
		t.Fatalf("mismatch codec/keyframe: %v %v", codec, keyframe)
	}
	if !bytes.Equal(payload, data) {
		t.Fatalf("payload mismatch after overflow round-trip, len=%d want=%d", len(payload), len(data))
	}
}

func TestDecode_TruncatedBufferIsReported(t *testing.T) {
	buf, _ := EncodeSimple(CmdScreen, []byte{1, 2, 3, 4})
	if _, _, err := Decode(buf[:5]); err != ErrTruncated {
		t.Fatalf("expected ErrTruncated, got %v", err)
	}
}

func TestDecode_ShortFrameIsReported(t *testing.T) {
	if _, _, err := Decode([]byte{0, 1}); err != ErrShortFrame {
		t.Fatalf("expected ErrShortFrame, got %v", err)
	}
}

func TestControlPatterns(t *testing.T) {
	if !IsClientConnect([]byte{0, 0x49, 0, 6, 0, 1}) {
		t.Fatalf("expected client-connect pattern to match")
	}
	if !IsClientDisconnect([]byte{0, 0x4A, 0, 6, 0, 1}) {
		t.Fatalf("expected client-disconnect pattern to match")
	}
	if !IsClientAck([]byte{0, 0x0E, 0, 4}) {
		t.Fatalf("expected client-ack pattern to match")
	}
	if IsClientConnect([]byte{0, 0x4A, 0, 6, 0, 1}) {
		t.Fatalf("disconnect pattern must not match connect")
	}
}

func TestInputType(t *testing.T) {
	typ, ok := InputType([]byte{0x00, 0x02, 0xFF})
	if !ok || typ != InputMouse {
		t.Fatalf("expected mouse input type, got %v ok=%v", typ, ok)
	}
	if _, ok := InputType([]byte{0x00}); ok {
		t.Fatalf("expected short buffer to report no input type")
	}
}
