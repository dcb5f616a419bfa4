package ingest

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/jonesrussell/content-studio/internal/config"
)

const gmailUser = "me"

// Gmail reads idea emails from one mailbox with an offline refresh token.
type Gmail struct {
	svc        *gmail.Service
	query      string
	maxResults int64
}

var _ MailSource = (*Gmail)(nil)

// NewGmail authenticates with the configured OAuth client and refresh token.
func NewGmail(ctx context.Context, cfg config.GmailConfig) (*Gmail, error) {
	oauthCfg := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       []string{gmail.GmailModifyScope},
	}
	ts := oauthCfg.TokenSource(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken})
	return newGmail(ctx, cfg, option.WithTokenSource(ts))
}

func newGmail(ctx context.Context, cfg config.GmailConfig, opts ...option.ClientOption) (*Gmail, error) {
	svc, err := gmail.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gmail service: %w", err)
	}
	return &Gmail{
		svc:        svc,
		query:      Query(cfg.AllowedSenders),
		maxResults: cfg.MaxResults,
	}, nil
}

func (g *Gmail) ListUnread(ctx context.Context) ([]Message, error) {
	list, err := g.svc.Users.Messages.List(gmailUser).
		Q(g.query).
		MaxResults(g.maxResults).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	messages := make([]Message, 0, len(list.Messages))
	for _, ref := range list.Messages {
		msg, getErr := g.svc.Users.Messages.Get(gmailUser, ref.Id).Format("full").Context(ctx).Do()
		if getErr != nil {
			return nil, fmt.Errorf("get message %s: %w", ref.Id, getErr)
		}
		messages = append(messages, Message{
			ID:   msg.Id,
			From: header(msg.Payload, "From"),
			Body: plainText(msg.Payload),
		})
	}
	return messages, nil
}

func (g *Gmail) MarkRead(ctx context.Context, id string) error {
	req := &gmail.ModifyMessageRequest{RemoveLabelIds: []string{unreadLabel}}
	if _, err := g.svc.Users.Messages.Modify(gmailUser, id, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("mark message %s read: %w", id, err)
	}
	return nil
}

func header(part *gmail.MessagePart, name string) string {
	if part == nil {
		return ""
	}
	for _, h := range part.Headers {
		if strings.EqualFold(h.Name, name) {
			return h.Value
		}
	}
	return ""
}

// plainText returns the first text/plain part found depth first.
func plainText(part *gmail.MessagePart) string {
	if part == nil {
		return ""
	}
	if part.MimeType == "text/plain" && part.Body != nil && part.Body.Data != "" {
		return decodeBody(part.Body.Data)
	}
	for _, child := range part.Parts {
		if text := plainText(child); text != "" {
			return text
		}
	}
	return ""
}

// decodeBody accepts base64url, or standard base64, with or without padding.
func decodeBody(data string) string {
	data = strings.TrimRight(data, "=")
	for _, enc := range []*base64.Encoding{base64.RawURLEncoding, base64.RawStdEncoding} {
		if raw, err := enc.DecodeString(data); err == nil {
			return string(raw)
		}
	}
	return ""
}
