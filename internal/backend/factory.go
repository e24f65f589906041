// Package backend selects the outbound mail implementation at startup.
// The memory backend records messages in process and is the default for
// local development; the gmail backend sends real mail through the Gmail
// API using service account credentials from the environment.
package backend

import (
	"context"
	"fmt"
	"log/slog"

	"finpulse/internal/mail/gmail"
	"finpulse/internal/mail/memory"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *slog.Logger
}

// NewFactory creates a new mail backend factory
func NewFactory(logger *slog.Logger) Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &DefaultFactory{
		logger: logger,
	}
}

// CreateSender implements Factory.CreateSender
func (f *DefaultFactory) CreateSender(ctx context.Context, kind Kind) (*Result, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("invalid mail backend: %s", kind)
	}

	switch kind {
	case GmailBackend:
		client, err := gmail.NewFromEnv(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to create gmail sender: %w", err)
		}
		f.logger.Info("Initialized Gmail mail backend")
		return &Result{Sender: client}, nil
	case MemoryBackend:
		f.logger.Info("Initialized memory mail backend")
		return &Result{Sender: memory.New()}, nil
	default:
		return nil, fmt.Errorf("unsupported mail backend: %s", kind)
	}
}
