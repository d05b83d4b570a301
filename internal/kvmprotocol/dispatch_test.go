package kvmprotocol

import (
	"errors"
	"testing"
)

type scriptedTransport struct {
	messages []RawMessage
	idx      int
	pongs    int
}

func (s *scriptedTransport) ReadMessage() (RawMessage, error) {
	if s.idx >= len(s.messages) {
		return RawMessage{}, errors.New("no more messages")
	}
	m := s.messages[s.idx]
	s.idx++
	return m, nil
}

func (s *scriptedTransport) WritePong() error {
	s.pongs++
	return nil
}

func TestDispatcher_BinaryInvokesBothHandlers(t *testing.T) {
	transport := &scriptedTransport{messages: []RawMessage{
		{Type: MessageBinary, Data: []byte{1, 2}},
		{Type: MessageClose},
	}}
	var fileCalls, screenCalls int
	d := NewDispatcher(transport,
		func(RawMessage) error { fileCalls++; return nil },
		func(RawMessage) error { screenCalls++; return nil },
	)
	if err := d.Run(); err != ErrDispatcherClosed {
		t.Fatalf("expected ErrDispatcherClosed, got %v", err)
	}
	if fileCalls != 1 || screenCalls != 1 {
		t.Fatalf("expected both handlers invoked once, got file=%d screen=%d", fileCalls, screenCalls)
	}
}

func TestDispatcher_TextOnlyInvokesFileHandler(t *testing.T) {
	transport := &scriptedTransport{messages: []RawMessage{
		{Type: MessageText, Data: []byte(`{"type":"list_remote"}`)},
		{Type: MessageClose},
	}}
	var fileCalls, screenCalls int
	d := NewDispatcher(transport,
		func(RawMessage) error { fileCalls++; return nil },
		func(RawMessage) error { screenCalls++; return nil },
	)
	d.Run()
	if fileCalls != 1 {
		t.Fatalf("expected file handler invoked once, got %d", fileCalls)
	}
	if screenCalls != 0 {
		t.Fatalf("expected screen handler not invoked on text frame, got %d", screenCalls)
	}
}

func TestDispatcher_OneHandlerErrorStillRunsTheOther(t *testing.T) {
	transport := &scriptedTransport{messages: []RawMessage{
		{Type: MessageBinary, Data: []byte{1}},
		{Type: MessageClose},
	}}
	var screenCalls int
	d := NewDispatcher(transport,
		func(RawMessage) error { return errors.New("file handler failed") },
		func(RawMessage) error { screenCalls++; return nil },
	)
	d.Run()
	if screenCalls != 1 {
		t.Fatalf("expected screen handler to still run after file handler error, got %d", screenCalls)
	}
}

func TestDispatcher_PingAnswersWithPong(t *testing.T) {
	transport := &scriptedTransport{messages: []RawMessage{
		{Type: MessagePing},
		{Type: MessageClose},
	}}
	d := NewDispatcher(transport, nil, nil)
	d.Run()
	if transport.pongs != 1 {
		t.Fatalf("expected 1 pong, got %d", transport.pongs)
	}
}
