package kvmprotocol

import "encoding/binary"

// DisplayRect is one monitor's geometry for the §6 DISPLAY_INFO payload.
// Kept independent of desktop.MonitorInfo so this package has no dependency
// on the capture backend — the caller adapts whatever it has into this shape.
type DisplayRect struct {
	Width, Height uint16
	X, Y          int32
}

// ClientInitFlags selects which packets of the §4.5 step-3 client-init
// sequence to send, mirroring desktop.SessionState.OnClientConnect's result,
// plus the real screen/display geometry those packets carry.
type ClientInitFlags struct {
	SendResolution    bool
	SendDisplayInfo   bool
	SendDisplayList   bool
	SendKeystate      bool
	SendMouseCursor   bool
	SendRefresh       bool
	SendTouchInitFail bool
	CursorVisible     bool

	// ScreenWidth/ScreenHeight back the SCREEN packet. Zero values encode
	// as a 4-byte all-zero payload (the pre-wiring stub shape).
	ScreenWidth, ScreenHeight uint16

	// Displays backs both DISPLAY_INFO and DISPLAYS. A nil/empty slice
	// falls back to the single-byte stub payloads used before display
	// enumeration was wired in.
	Displays []DisplayRect

	// SelectedDisplay is the index into Displays the client should treat
	// as active; -1 (or out of range) encodes as 0xFFFF.
	SelectedDisplay int
}

// encodeScreen builds SCREEN's u16 width, u16 height payload.
func encodeScreen(w, h uint16) []byte {
	buf := make([]byte, 4)
	binary.BigEndian.PutUint16(buf[0:2], w)
	binary.BigEndian.PutUint16(buf[2:4], h)
	return buf
}

// encodeDisplayInfo builds DISPLAY_INFO's u16 count, count*(u16 w, u16 h,
// i32 x, i32 y) payload.
func encodeDisplayInfo(displays []DisplayRect) []byte {
	if len(displays) == 0 {
		return []byte{0}
	}
	buf := make([]byte, 2+len(displays)*12)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(displays)))
	off := 2
	for _, d := range displays {
		binary.BigEndian.PutUint16(buf[off:off+2], d.Width)
		binary.BigEndian.PutUint16(buf[off+2:off+4], d.Height)
		binary.BigEndian.PutUint32(buf[off+4:off+8], uint32(d.X))
		binary.BigEndian.PutUint32(buf[off+8:off+12], uint32(d.Y))
		off += 12
	}
	return buf
}

// encodeDisplays builds DISPLAYS' u16 count_plus_one, u16 0xFFFF, count*u16
// ids, u16 selected_or_0xFFFF payload. Per spec.md's literal wire table the
// second u16 is always 0xFFFF regardless of display count (see DESIGN.md's
// Open Question decisions).
func encodeDisplays(displays []DisplayRect, selected int) []byte {
	if len(displays) == 0 {
		return []byte{0}
	}
	buf := make([]byte, 2+2+len(displays)*2+2)
	binary.BigEndian.PutUint16(buf[0:2], uint16(len(displays)+1))
	binary.BigEndian.PutUint16(buf[2:4], 0xFFFF)
	off := 4
	for i := range displays {
		binary.BigEndian.PutUint16(buf[off:off+2], uint16(i))
		off += 2
	}
	sel := uint16(0xFFFF)
	if selected >= 0 && selected < len(displays) {
		sel = uint16(selected)
	}
	binary.BigEndian.PutUint16(buf[off:off+2], sel)
	return buf
}

// ClientInitWriter is the narrow write surface SendClientInit needs.
type ClientInitWriter interface {
	WriteBinary(data []byte) error
}

// SendClientInit emits the client-init packet sequence a newly connected
// client must receive, in the fixed order SCREEN, DISPLAY_INFO, DISPLAYS,
// KEYSTATE, MOUSE_CURSOR, REFRESH, INIT_TOUCH. SCREEN/DISPLAY_INFO/DISPLAYS
// carry the caller's real screen/monitor geometry via flags.ScreenWidth,
// flags.ScreenHeight and flags.Displays, falling back to the stub single-byte
// payloads when the caller leaves Displays empty. INIT_TOUCH's single status
// byte is always 2 (unsupported), since touch-input injection is an
// external-collaborator surface this agent does not implement.
func SendClientInit(w ClientInitWriter, flags ClientInitFlags) error {
	cursorByte := byte(0)
	if flags.CursorVisible {
		cursorByte = 1
	}

	steps := []struct {
		send    bool
		command uint16
		payload []byte
	}{
		{flags.SendResolution, CmdScreen, encodeScreen(flags.ScreenWidth, flags.ScreenHeight)},
		{flags.SendDisplayInfo, CmdDisplayInfo, encodeDisplayInfo(flags.Displays)},
		{flags.SendDisplayList, CmdDisplays, encodeDisplays(flags.Displays, flags.SelectedDisplay)},
		{flags.SendKeystate, CmdKeystate, []byte{0}},
		{flags.SendMouseCursor, CmdMouseCursor, []byte{cursorByte}},
		{flags.SendRefresh, CmdRefresh, nil},
		{flags.SendTouchInitFail, CmdInitTouch, []byte{2}},
	}

	for _, s := range steps {
		if !s.send {
			continue
		}
		frame, err := EncodeSimple(s.command, s.payload)
		if err != nil {
			return err
		}
		if err := w.WriteBinary(frame); err != nil {
			return err
		}
	}
	return nil
}
