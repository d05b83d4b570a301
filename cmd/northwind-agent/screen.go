package main

import (
	"fmt"

	"github.com/northwind-rmm/agent/internal/config"
	"github.com/northwind-rmm/agent/internal/fileagent"
	"github.com/northwind-rmm/agent/internal/kvmconfig"
	"github.com/northwind-rmm/agent/internal/kvmprotocol"
	"github.com/northwind-rmm/agent/internal/kvmsession"
	"github.com/northwind-rmm/agent/internal/logging"
	"github.com/northwind-rmm/agent/internal/remote/desktop"
)

var screenLog = logging.L("main.screen")

const (
	defaultScreenWidth  = 1920
	defaultScreenHeight = 1080
	defaultScreenFPS    = 16
)

// screenSession holds the running screen-capture pipeline components so
// its stop method can tear them down in order.
type screenSession struct {
	capturer *desktop.FallbackCapturer
	encoder  *desktop.FrameEncoder
	thread   *desktop.CaptureThread
	bridger  *desktop.Bridger
	conn     *kvmsession.Session

	width, height int
}

func (s *screenSession) stop() {
	if s == nil {
		return
	}
	s.thread.Stop()
	s.conn.Stop()
	s.encoder.Close()
	s.capturer.Close()
}

// startScreenSession parses the configured relay line and wires the full
// capture -> encode -> QoS -> bridge -> dispatch pipeline (§4) against a
// dedicated kvmsession connection. A blank ScreenConfigLine disables the
// feature entirely — this agent can run as a pure RMM agent.
func startScreenSession(cfg *config.Config) (*screenSession, error) {
	if cfg.ScreenConfigLine == "" {
		return nil, nil
	}

	line, err := kvmconfig.Parse(cfg.ScreenConfigLine)
	if err != nil {
		return nil, fmt.Errorf("screen: invalid config line: %w", err)
	}

	capturer, err := desktop.NewFallbackCapturer(desktop.DefaultConfig())
	if err != nil {
		return nil, fmt.Errorf("screen: capturer init failed: %w", err)
	}

	width, height := capturer.Width(), capturer.Height()
	if width <= 0 || height <= 0 {
		width, height = defaultScreenWidth, defaultScreenHeight
	}

	encoder := desktop.NewFrameEncoder(desktop.CodecVP9, width, height, 1.0, defaultScreenFPS)
	qos := desktop.NewQoSController(encoder, width, height)
	session := desktop.NewSessionState()
	metrics := desktop.NewStreamMetrics()

	thread := desktop.NewCaptureThread(capturer, encoder, qos, session, metrics)
	conn := kvmsession.New(line)
	bridger := desktop.NewBridger(thread.Out(), conn, conn.WriteMutex())

	root := cfg.ScreenFilesRoot
	if root == "" {
		root = "."
	}
	fileHandler := fileagent.NewHandler(root, fileagent.NewInventory())

	dispatcher := kvmprotocol.NewDispatcher(conn,
		func(msg kvmprotocol.RawMessage) error {
			reply, err := fileHandler.HandleMessage(msg.Data)
			if err != nil {
				return err
			}
			return conn.WriteText(reply)
		},
		func(msg kvmprotocol.RawMessage) error {
			return handleScreenControlMessage(session, conn, width, height, msg.Data)
		},
	)

	// Connecting to the relay (and therefore dispatching/bridging) runs in
	// the background so a relay outage never blocks agent startup.
	go func() {
		if err := conn.Connect(); err != nil {
			screenLog.Warn("screen-capture relay connect stopped", "error", err)
			return
		}
		screenLog.Info("screen-capture session connected", "server", line.ServerURL, "tenant", line.Tenant)

		go thread.Run()
		go bridger.Run()
		if err := dispatcher.Run(); err != nil {
			screenLog.Warn("screen dispatcher stopped", "error", err)
		}
	}()

	return &screenSession{
		capturer: capturer,
		encoder:  encoder,
		thread:   thread,
		bridger:  bridger,
		conn:     conn,
		width:    width,
		height:   height,
	}, nil
}

// relayClientID is a placeholder client identity for the control-message
// wiring below: the §6 control byte patterns carry no per-client id of
// their own (viewer identity is multiplexed above this layer by the relay),
// so this single-connection agent tracks exactly one logical viewer slot.
// SessionState itself is client-id-agnostic and fully exercised with
// distinct ids in sessionstate_test.go.
const relayClientID = "relay"

// handleScreenControlMessage recognizes the §6 client-connect/disconnect/ack
// control patterns, replying to a client-connect with the client-init packet
// sequence, and forwards everything else as a no-op; the full input
// discriminator table is an explicit external-collaborator surface (OS
// input injection) not implemented by this agent.
func handleScreenControlMessage(session *desktop.SessionState, conn *kvmsession.Session, width, height int, data []byte) error {
	switch {
	case kvmprotocol.IsClientConnect(data):
		result := session.OnClientConnect(relayClientID)
		displays, selected := listDisplays()
		return kvmprotocol.SendClientInit(conn, kvmprotocol.ClientInitFlags{
			SendResolution:    result.SendResolution,
			SendDisplayInfo:   result.SendDisplayInfo,
			SendDisplayList:   result.SendDisplayList,
			SendKeystate:      result.SendKeystate,
			SendMouseCursor:   result.SendMouseCursor,
			SendRefresh:       result.SendRefresh,
			SendTouchInitFail: result.SendTouchInitFail,
			CursorVisible:     result.CursorVisible,
			ScreenWidth:       uint16(width),
			ScreenHeight:      uint16(height),
			Displays:          displays,
			SelectedDisplay:   selected,
		})
	case kvmprotocol.IsClientDisconnect(data):
		session.OnClientDisconnect(relayClientID)
	case kvmprotocol.IsClientAck(data):
		session.OnClientAck(relayClientID)
	}
	return nil
}

// listDisplays enumerates connected monitors via desktop.ListMonitors and
// adapts them into kvmprotocol's wire-facing DisplayRect shape, since
// kvmprotocol cannot import this package (desktop already imports
// kvmprotocol for bridging). A failed enumeration — no platform backend, or
// a headless host — degrades to an empty list, which SendClientInit encodes
// as the single-byte stub payload.
func listDisplays() ([]kvmprotocol.DisplayRect, int) {
	monitors, err := desktop.ListMonitors()
	if err != nil || len(monitors) == 0 {
		return nil, -1
	}

	displays := make([]kvmprotocol.DisplayRect, len(monitors))
	selected := 0
	for i, m := range monitors {
		displays[i] = kvmprotocol.DisplayRect{
			Width:  uint16(m.Width),
			Height: uint16(m.Height),
			X:      int32(m.X),
			Y:      int32(m.Y),
		}
		if m.IsPrimary {
			selected = i
		}
	}
	return displays, selected
}
