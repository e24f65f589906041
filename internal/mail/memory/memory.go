// Package memory is an in-process Sender used as the default local backend
// and as the test double: it records every message and rejects addresses
// with no "@".
package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"finpulse/internal/notify"
)

type Message struct {
	Recipient string
	Subject   string
	Body      string
}

type Sender struct {
	mu       sync.Mutex
	messages []Message
	nextID   int
}

// Ensure interface conformance
var _ notify.Sender = (*Sender)(nil)

func New() *Sender {
	return &Sender{}
}

// Send records the message and returns a synthetic provider id. Recipients
// without an "@" are rejected so tests can exercise partial failure.
func (s *Sender) Send(ctx context.Context, recipient, subject, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if !strings.Contains(recipient, "@") {
		return "", fmt.Errorf("invalid recipient address: %q", recipient)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.messages = append(s.messages, Message{Recipient: recipient, Subject: subject, Body: body})
	return fmt.Sprintf("mem-%d", s.nextID), nil
}

// Messages returns a copy of everything sent so far.
func (s *Sender) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}
