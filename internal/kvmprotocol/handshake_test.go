package kvmprotocol

import "testing"

type recordingWriter struct {
	frames [][]byte
}

func (r *recordingWriter) WriteBinary(data []byte) error {
	cp := make([]byte, len(data))
	copy(cp, data)
	r.frames = append(r.frames, cp)
	return nil
}

func TestSendClientInit_EmitsSevenFramesInOrder(t *testing.T) {
	w := &recordingWriter{}
	flags := ClientInitFlags{
		SendResolution:    true,
		SendDisplayInfo:   true,
		SendDisplayList:   true,
		SendKeystate:      true,
		SendMouseCursor:   true,
		SendRefresh:       true,
		SendTouchInitFail: true,
		CursorVisible:     true,
	}

	if err := SendClientInit(w, flags); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	wantCommands := []uint16{CmdScreen, CmdDisplayInfo, CmdDisplays, CmdKeystate, CmdMouseCursor, CmdRefresh, CmdInitTouch}
	if len(w.frames) != len(wantCommands) {
		t.Fatalf("expected %d frames, got %d", len(wantCommands), len(w.frames))
	}

	for i, raw := range w.frames {
		frame, _, err := Decode(raw)
		if err != nil {
			t.Fatalf("frame %d: decode failed: %v", i, err)
		}
		if frame.Command != wantCommands[i] {
			t.Fatalf("frame %d: expected command %d, got %d", i, wantCommands[i], frame.Command)
		}
	}

	last := w.frames[len(w.frames)-1]
	lastFrame, _, err := Decode(last)
	if err != nil {
		t.Fatalf("decode last frame: %v", err)
	}
	if len(lastFrame.Payload) != 1 || lastFrame.Payload[0] != 2 {
		t.Fatalf("expected INIT_TOUCH status byte 2, got %v", lastFrame.Payload)
	}
}

func TestSendClientInit_SkipsUnsetFlags(t *testing.T) {
	w := &recordingWriter{}
	flags := ClientInitFlags{SendRefresh: true}

	if err := SendClientInit(w, flags); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.frames) != 1 {
		t.Fatalf("expected exactly 1 frame, got %d", len(w.frames))
	}
	frame, _, err := Decode(w.frames[0])
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if frame.Command != CmdRefresh {
		t.Fatalf("expected CmdRefresh, got %d", frame.Command)
	}
}

func TestSendClientInit_EncodesScreenAndDisplayPayloads(t *testing.T) {
	w := &recordingWriter{}
	flags := ClientInitFlags{
		SendResolution:  true,
		SendDisplayInfo: true,
		SendDisplayList: true,
		ScreenWidth:     1920,
		ScreenHeight:    1080,
		Displays: []DisplayRect{
			{Width: 1920, Height: 1080, X: 0, Y: 0},
			{Width: 1280, Height: 1024, X: 1920, Y: 0},
		},
		SelectedDisplay: 1,
	}

	if err := SendClientInit(w, flags); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(w.frames) != 3 {
		t.Fatalf("expected 3 frames, got %d", len(w.frames))
	}

	screen, _, err := Decode(w.frames[0])
	if err != nil {
		t.Fatalf("decode screen frame: %v", err)
	}
	wantScreen := []byte{0x07, 0x80, 0x04, 0x38}
	if string(screen.Payload) != string(wantScreen) {
		t.Fatalf("screen payload = %v, want %v", screen.Payload, wantScreen)
	}

	info, _, err := Decode(w.frames[1])
	if err != nil {
		t.Fatalf("decode display-info frame: %v", err)
	}
	if len(info.Payload) != 2+2*12 {
		t.Fatalf("display-info payload length = %d, want %d", len(info.Payload), 2+2*12)
	}
	if info.Payload[0] != 0x00 || info.Payload[1] != 0x02 {
		t.Fatalf("display-info count = %v, want 2", info.Payload[0:2])
	}

	list, _, err := Decode(w.frames[2])
	if err != nil {
		t.Fatalf("decode displays frame: %v", err)
	}
	wantList := []byte{0x00, 0x03, 0xFF, 0xFF, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01}
	if string(list.Payload) != string(wantList) {
		t.Fatalf("displays payload = %v, want %v", list.Payload, wantList)
	}
}

func TestSendClientInit_EmptyDisplaysFallBackToStubPayloads(t *testing.T) {
	w := &recordingWriter{}
	flags := ClientInitFlags{SendDisplayInfo: true, SendDisplayList: true}

	if err := SendClientInit(w, flags); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, want := range []byte{0, 0} {
		frame, _, err := Decode(w.frames[i])
		if err != nil {
			t.Fatalf("decode frame %d: %v", i, err)
		}
		if len(frame.Payload) != 1 || frame.Payload[0] != want {
			t.Fatalf("frame %d payload = %v, want [%d]", i, frame.Payload, want)
		}
	}
}
