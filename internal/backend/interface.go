package backend

import (
	"context"

	"finpulse/internal/notify"
)

// CleanupFunc releases resources held by a mail backend.
type CleanupFunc func() error

// Result contains the sender instance and optional cleanup function.
type Result struct {
	Sender  notify.Sender
	Cleanup CleanupFunc
}

// Factory creates mail senders based on configuration.
type Factory interface {
	CreateSender(ctx context.Context, kind Kind) (*Result, error)
}

// Kind represents the outbound mail backend.
type Kind string

const (
	MemoryBackend Kind = "memory"
	GmailBackend  Kind = "gmail"
)

// String implements fmt.Stringer
func (k Kind) String() string {
	return string(k)
}

// IsValid returns true if the backend kind is valid
func (k Kind) IsValid() bool {
	switch k {
	case MemoryBackend, GmailBackend:
		return true
	default:
		return false
	}
}
