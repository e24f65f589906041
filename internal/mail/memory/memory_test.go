package memory

import (
	"context"
	"testing"
)

func TestSender_Send(t *testing.T) {
	s := New()

	id, err := s.Send(context.Background(), "a@example.com", "subject", "body")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id == "" {
		t.Error("expected a provider id")
	}

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].Recipient != "a@example.com" || msgs[0].Subject != "subject" {
		t.Errorf("unexpected message %+v", msgs[0])
	}
}

func TestSender_RejectsBadAddress(t *testing.T) {
	s := New()

	if _, err := s.Send(context.Background(), "nope", "s", "b"); err == nil {
		t.Fatal("expected error for address without @")
	}
	if len(s.Messages()) != 0 {
		t.Error("rejected sends must not be recorded")
	}
}

func TestSender_HonorsCancelledContext(t *testing.T) {
	s := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := s.Send(ctx, "a@example.com", "s", "b"); err == nil {
		t.Fatal("expected context error")
	}
}

func TestSender_MessagesReturnsCopy(t *testing.T) {
	s := New()
	if _, err := s.Send(context.Background(), "a@example.com", "s", "b"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msgs := s.Messages()
	msgs[0].Subject = "mutated"
	if s.Messages()[0].Subject != "s" {
		t.Error("Messages must return a defensive copy")
	}
}
