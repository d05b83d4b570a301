package kvmprotocol

import (
	"errors"

	"github.com/northwind-rmm/agent/internal/logging"
)

var dispatchLog = logging.L("kvmprotocol.dispatch")

// MessageType distinguishes how a frame arrived on the wire.
type MessageType int

const (
	MessageBinary MessageType = iota
	MessageText
	MessagePing
	MessageClose
)

// RawMessage is one message read off the transport, before any
// kvmprotocol-level framing is applied.
type RawMessage struct {
	Type MessageType
	Data []byte
}

// Transport is the narrow read/write surface the Dispatcher needs.
type Transport interface {
	ReadMessage() (RawMessage, error)
	WritePong() error
}

// Handler processes one raw message. Returning an error logs and ignores
// it — the dispatcher always still invokes the other handler (§4.8).
type Handler func(msg RawMessage) error

// Dispatcher is the §4.8 protocol dispatcher: a single loop that reads
// frames from the socket and, for binary frames, runs both the file and
// screen handlers; for text frames only the file handler runs. Either
// handler returning an error is logged and ignored — the other still runs.
// Ping frames are answered with Pong; Close terminates the loop.
type Dispatcher struct {
	transport     Transport
	fileHandler   Handler
	screenHandler Handler
}

func NewDispatcher(transport Transport, fileHandler, screenHandler Handler) *Dispatcher {
	return &Dispatcher{transport: transport, fileHandler: fileHandler, screenHandler: screenHandler}
}

// ErrDispatcherClosed is returned by Run when the transport reports a Close
// frame, signaling the caller should reconnect at the outer level.
var ErrDispatcherClosed = errors.New("kvmprotocol: dispatcher closed")

func (d *Dispatcher) Run() error {
	for {
		msg, err := d.transport.ReadMessage()
		if err != nil {
			return err
		}

		switch msg.Type {
		case MessageClose:
			return ErrDispatcherClosed
		case MessagePing:
			if err := d.transport.WritePong(); err != nil {
				dispatchLog.Warn("failed to answer ping", "error", err)
			}
		case MessageText:
			if d.fileHandler != nil {
				if err := d.fileHandler(msg); err != nil {
					dispatchLog.Warn("file handler error", "error", err)
				}
			}
		case MessageBinary:
			if d.fileHandler != nil {
				if err := d.fileHandler(msg); err != nil {
					dispatchLog.Warn("file handler error on binary frame", "error", err)
				}
			}
			if d.screenHandler != nil {
				if err := d.screenHandler(msg); err != nil {
					dispatchLog.Warn("screen handler error on binary frame", "error", err)
				}
			}
		}
	}
}
