package drafting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/jonesrussell/content-studio/internal/config"
	"github.com/jonesrussell/content-studio/internal/domain"
)

const (
	generateSystemPrompt = `You draft content for a single author from one idea. Write exactly %d LinkedIn posts and %d blog posts.

Rules:
- Blog posts: 800-1200 words with a compelling title.
- LinkedIn posts: 75-120 words opening with a strong hook.
- Give every piece a different angle.

Return ONLY a JSON array, for example:
[
  {"type": "linkedin", "content": "..."},
  {"type": "blog", "title": "...", "content": "..."}
]`

	regenerateSystemPrompt = `You are revising a draft. Keep the core message but use a new structure and a different hook.

ORIGINAL IDEA: %s
TYPE: %s

%s`

	regenerateBlogInstruction     = `Return ONLY JSON with "title" and "content" fields.`
	regenerateLinkedInInstruction = `Return only the post text.`
)

var errEmptyCompletion = errors.New("model returned no text")

// Anthropic generates drafts with the Messages API.
type Anthropic struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

var _ Generator = (*Anthropic)(nil)

// NewAnthropic builds a generator. SDK retries are disabled; the caller's
// timeout bounds the single attempt.
func NewAnthropic(cfg config.AnthropicConfig, httpClient *http.Client) *Anthropic {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if httpClient != nil {
		opts = append(opts, option.WithHTTPClient(httpClient))
	}

	return &Anthropic{
		client:    anthropic.NewClient(opts...),
		model:     cfg.Model,
		maxTokens: int64(cfg.MaxTokens),
	}
}

type draftJSON struct {
	Type    string  `json:"type"`
	Title   *string `json:"title"`
	Content string  `json:"content"`
}

func (a *Anthropic) Generate(ctx context.Context, idea string, counts Counts) ([]domain.DraftPiece, error) {
	system := fmt.Sprintf(generateSystemPrompt, counts.LinkedIn, counts.Blog)
	text, err := a.complete(ctx, system, idea)
	if err != nil {
		return nil, err
	}

	var raw []draftJSON
	if err = json.Unmarshal([]byte(stripFences(text)), &raw); err != nil {
		return nil, fmt.Errorf("parse generated drafts: %w", err)
	}

	drafts := make([]domain.DraftPiece, 0, len(raw))
	for i, d := range raw {
		t, parseErr := domain.ParseContentType(d.Type)
		if parseErr != nil {
			return nil, fmt.Errorf("draft %d: unknown type %q", i, d.Type)
		}
		if strings.TrimSpace(d.Content) == "" {
			return nil, fmt.Errorf("draft %d: empty content", i)
		}
		drafts = append(drafts, domain.DraftPiece{Type: t, Title: nonEmpty(d.Title), Content: d.Content})
	}
	return drafts, nil
}

func (a *Anthropic) Regenerate(ctx context.Context, req RegenerateRequest) (*Revision, error) {
	instruction := regenerateLinkedInInstruction
	if req.Type == domain.ContentTypeBlog {
		instruction = regenerateBlogInstruction
	}
	system := fmt.Sprintf(regenerateSystemPrompt, req.Idea, req.Type, instruction)

	text, err := a.complete(ctx, system, "Current version: "+req.Current)
	if err != nil {
		return nil, err
	}

	if req.Type != domain.ContentTypeBlog {
		content := strings.TrimSpace(text)
		return &Revision{Content: content}, nil
	}

	var parsed struct {
		Title   *string `json:"title"`
		Content string  `json:"content"`
	}
	if err = json.Unmarshal([]byte(stripFences(text)), &parsed); err != nil {
		return nil, fmt.Errorf("parse regenerated blog: %w", err)
	}
	if strings.TrimSpace(parsed.Content) == "" {
		return nil, errors.New("regenerated blog has empty content")
	}
	return &Revision{Title: nonEmpty(parsed.Title), Content: parsed.Content}, nil
}

// complete sends one user turn and joins the text blocks of the reply.
func (a *Anthropic) complete(ctx context.Context, system, user string) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic messages: %w", err)
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(sb.String()) == "" {
		return "", errEmptyCompletion
	}
	return sb.String(), nil
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
