// Package ingest turns inbound idea emails into ideas.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const (
	subjectMarker = "CONTENT"
	unreadLabel   = "UNREAD"
)

// ErrNotConfigured is returned when no mail source is wired.
var ErrNotConfigured = errors.New("email ingest is not configured")

// Message is one inbound idea email.
type Message struct {
	ID   string
	From string
	// Body is the first text/plain part, decoded. Empty when there is none.
	Body string
}

// MailSource lists unread idea emails and acknowledges them.
type MailSource interface {
	ListUnread(ctx context.Context) ([]Message, error)
	MarkRead(ctx context.Context, id string) error
}

// Query builds the mailbox search for unread idea emails from senders.
func Query(senders []string) string {
	return fmt.Sprintf("subject:%s is:%s from:(%s)",
		subjectMarker, strings.ToLower(unreadLabel), strings.Join(senders, " OR "))
}
