// Package kvmsession owns the dedicated WebSocket connection the
// screen-capture/file-agent protocol runs over: dialing (with optional
// HTTP CONNECT proxy support per the configuration line), reconnect with
// backoff, and the single write-mutex shared between the frame bridger and
// the file-command replies so the two never interleave writes on the wire.
package kvmsession

import (
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/northwind-rmm/agent/internal/kvmconfig"
	"github.com/northwind-rmm/agent/internal/kvmprotocol"
	"github.com/northwind-rmm/agent/internal/logging"
)

var log = logging.L("kvmsession")

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	initialBackoff = 1 * time.Second
	maxBackoff     = 30 * time.Second
	backoffFactor  = 2.0
	jitterFactor   = 0.3
	maxMessageSize = 8 * 1024 * 1024
)

// Session is one connection of the screen-capture protocol. It implements
// kvmprotocol.Transport (for the Dispatcher) and desktop.FrameWriter (for
// the Bridger), both guarded by the same writeMu.
type Session struct {
	line kvmconfig.Line

	mu      sync.RWMutex
	conn    *websocket.Conn
	writeMu sync.Mutex

	done chan struct{}
	stop sync.Once
}

func New(line kvmconfig.Line) *Session {
	return &Session{line: line, done: make(chan struct{})}
}

// WriteMutex exposes the shared write lock so a Bridger and a file-command
// handler can coordinate without the Session package importing either.
func (s *Session) WriteMutex() *sync.Mutex { return &s.writeMu }

func (s *Session) dial() error {
	target, err := s.buildURL()
	if err != nil {
		return fmt.Errorf("kvmsession: building dial URL: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	if s.line.UseProxy && s.line.ProxyHost != "" {
		dialer.Proxy = func(*http.Request) (*url.URL, error) {
			return s.proxyURL(), nil
		}
	}

	conn, _, err := dialer.Dial(target, nil)
	if err != nil {
		return fmt.Errorf("kvmsession: dial failed: %w", err)
	}
	conn.SetReadLimit(maxMessageSize)

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	return nil
}

func (s *Session) proxyURL() *url.URL {
	u := &url.URL{Scheme: "http", Host: fmt.Sprintf("%s:%s", s.line.ProxyHost, s.line.ProxyPort)}
	if s.line.ProxyAuth != "" && s.line.ProxyAuth != "-" {
		u.User = url.User(s.line.ProxyAuth)
	}
	return u
}

func (s *Session) buildURL() (string, error) {
	u, err := url.Parse(s.line.ServerURL)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	q := u.Query()
	q.Set("tenant", s.line.Tenant)
	q.Set("uuid", s.line.UUID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Connect dials with reconnect/backoff until it succeeds or Stop is called.
func (s *Session) Connect() error {
	backoff := initialBackoff
	for {
		select {
		case <-s.done:
			return fmt.Errorf("kvmsession: stopped")
		default:
		}

		if err := s.dial(); err == nil {
			return nil
		} else {
			log.Warn("connect failed, retrying", "error", err, "backoff", backoff)
		}

		jitter := time.Duration(float64(backoff) * jitterFactor * (rand.Float64()*2 - 1))
		sleep := backoff + jitter
		if sleep < 0 {
			sleep = backoff
		}
		select {
		case <-s.done:
			return fmt.Errorf("kvmsession: stopped")
		case <-time.After(sleep):
		}

		backoff = time.Duration(float64(backoff) * backoffFactor)
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (s *Session) Stop() {
	s.stop.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.conn != nil {
			s.conn.Close()
			s.conn = nil
		}
		s.mu.Unlock()
	})
}

// ReadMessage implements kvmprotocol.Transport.
func (s *Session) ReadMessage() (kvmprotocol.RawMessage, error) {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return kvmprotocol.RawMessage{}, fmt.Errorf("kvmsession: not connected")
	}

	mt, data, err := conn.ReadMessage()
	if err != nil {
		return kvmprotocol.RawMessage{}, err
	}
	switch mt {
	case websocket.BinaryMessage:
		return kvmprotocol.RawMessage{Type: kvmprotocol.MessageBinary, Data: data}, nil
	case websocket.TextMessage:
		return kvmprotocol.RawMessage{Type: kvmprotocol.MessageText, Data: data}, nil
	case websocket.CloseMessage:
		return kvmprotocol.RawMessage{Type: kvmprotocol.MessageClose}, nil
	default:
		return kvmprotocol.RawMessage{Type: kvmprotocol.MessageText, Data: data}, nil
	}
}

// WritePong implements kvmprotocol.Transport.
func (s *Session) WritePong() error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("kvmsession: not connected")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.PongMessage, nil)
}

// WriteBinary implements desktop.FrameWriter.
func (s *Session) WriteBinary(data []byte) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("kvmsession: not connected")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.BinaryMessage, data)
}

// WriteText sends a JSON file-command reply through the same write mutex.
func (s *Session) WriteText(data []byte) error {
	s.mu.RLock()
	conn := s.conn
	s.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("kvmsession: not connected")
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
