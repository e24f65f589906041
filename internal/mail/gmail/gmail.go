// Package gmail sends alert email through the Gmail API using Service
// Account credentials.
package gmail

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"

	"google.golang.org/api/gmail/v1"
	goption "google.golang.org/api/option"

	"finpulse/internal/notify"
)

type Client struct {
	svc  *gmail.Service
	from string
}

// Ensure interface conformance
var _ notify.Sender = (*Client)(nil)

// NewFromEnv creates a Gmail sender using environment variables.
// Required: GMAIL_SENDER (the From address).
// Auth: GOOGLE_SERVICE_ACCOUNT_JSON, GOOGLE_SERVICE_ACCOUNT_FILE, or
// GOOGLE_APPLICATION_CREDENTIALS; falls back to Application Default
// Credentials when none is set.
func NewFromEnv(ctx context.Context) (*Client, error) {
	from := strings.TrimSpace(os.Getenv("GMAIL_SENDER"))
	if from == "" {
		return nil, errors.New("missing GMAIL_SENDER")
	}

	svc, err := newGmailService(ctx)
	if err != nil {
		return nil, fmt.Errorf("gmail service: %w", err)
	}

	return &Client{svc: svc, from: from}, nil
}

func newGmailService(ctx context.Context) (*gmail.Service, error) {
	serviceAccountJSON := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_JSON"))
	serviceAccountFile := strings.TrimSpace(os.Getenv("GOOGLE_SERVICE_ACCOUNT_FILE"))
	if serviceAccountJSON == "" && serviceAccountFile == "" {
		serviceAccountFile = strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"))
	}

	var credentialsJSON []byte
	var err error
	switch {
	case serviceAccountJSON != "":
		credentialsJSON = []byte(serviceAccountJSON)
	case serviceAccountFile != "":
		credentialsJSON, err = os.ReadFile(serviceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
	}

	opts := []goption.ClientOption{goption.WithScopes(gmail.GmailSendScope)}
	if credentialsJSON != nil {
		opts = append(opts, goption.WithCredentialsJSON(credentialsJSON))
	}

	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return svc, nil
}

// Send implements notify.Sender. Returns the Gmail message id on success.
func (c *Client) Send(ctx context.Context, recipient, subject, body string) (string, error) {
	raw := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s",
		c.from, recipient, subject, body)

	msg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString([]byte(raw)),
	}

	sent, err := c.svc.Users.Messages.Send("me", msg).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("send mail to %s: %w", recipient, err)
	}
	return sent.Id, nil
}
