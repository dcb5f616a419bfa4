package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	"github.com/jonesrussell/content-studio/infrastructure/circuitbreaker"
	infraerrors "github.com/jonesrussell/content-studio/infrastructure/errors"
	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/infrastructure/retry"
	"github.com/jonesrussell/content-studio/internal/config"
)

const (
	ugcPostsPath          = "/v2/ugcPosts"
	restliProtocolVersion = "2.0.0"

	breakerFailures = 5
	breakerTimeout  = 2 * time.Minute
)

var (
	ErrLinkedInTokenMissing = errors.New("LinkedIn access token missing")
	ErrLinkedInURNMissing   = errors.New("LinkedIn person URN missing")
)

// LinkedIn posts member shares through the UGC Posts API.
type LinkedIn struct {
	cfg     config.LinkedInConfig
	client  *http.Client
	breaker *circuitbreaker.Breaker
	retry   retry.Config
	log     logger.Logger
}

var _ Publisher = (*LinkedIn)(nil)

// NewLinkedIn builds the channel. The breaker stops hammering the API after
// repeated failures; its state changes are logged.
func NewLinkedIn(cfg config.LinkedInConfig, client *http.Client, log logger.Logger) *LinkedIn {
	rc := retry.DefaultConfig()
	rc.IsRetryable = isRetryableLinkedIn

	return &LinkedIn{
		cfg:    cfg,
		client: client,
		breaker: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold: breakerFailures,
			Timeout:          breakerTimeout,
			IsFailure:        isServiceFailure,
			OnStateChange: func(from, to circuitbreaker.State) {
				log.Warn("LinkedIn circuit breaker changed state",
					logger.String("from", from.String()),
					logger.String("to", to.String()),
				)
			},
		}),
		retry: rc,
		log:   log,
	}
}

type ugcPost struct {
	Author          string            `json:"author"`
	LifecycleState  string            `json:"lifecycleState"`
	SpecificContent map[string]share  `json:"specificContent"`
	Visibility      map[string]string `json:"visibility"`
}

type share struct {
	ShareCommentary    shareText `json:"shareCommentary"`
	ShareMediaCategory string    `json:"shareMediaCategory"`
}

type shareText struct {
	Text string `json:"text"`
}

func (l *LinkedIn) Publish(ctx context.Context, item Item) (*Receipt, error) {
	if l.cfg.AccessToken == "" {
		return nil, ErrLinkedInTokenMissing
	}
	if l.cfg.PersonURN == "" {
		return nil, ErrLinkedInURNMissing
	}

	body, err := json.Marshal(ugcPost{
		Author:         "urn:li:person:" + l.cfg.PersonURN,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]share{
			"com.linkedin.ugc.ShareContent": {
				ShareCommentary:    shareText{Text: item.Content},
				ShareMediaCategory: "NONE",
			},
		},
		Visibility: map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	})
	if err != nil {
		return nil, fmt.Errorf("encode LinkedIn post: %w", err)
	}

	var externalID string
	err = l.breaker.Execute(ctx, func(ctx context.Context) error {
		return retry.Do(ctx, l.retry, func(ctx context.Context) error {
			id, postErr := l.post(ctx, body)
			if postErr != nil {
				return postErr
			}
			externalID = id
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	l.log.Info("Published to LinkedIn",
		logger.String("piece_id", item.PieceID.String()),
		logger.String("external_id", externalID),
	)
	return &Receipt{ExternalID: &externalID}, nil
}

func (l *LinkedIn) post(ctx context.Context, body []byte) (string, error) {
	url := strings.TrimRight(l.cfg.APIURL, "/") + ugcPostsPath
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", retry.Permanent(fmt.Errorf("build LinkedIn request: %w", err))
	}
	req.Header.Set("Authorization", "Bearer "+l.cfg.AccessToken)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Restli-Protocol-Version", restliProtocolVersion)

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("LinkedIn request: %w", err)
	}
	defer resp.Body.Close()

	if httpErr := infraerrors.ParseHTTPError(resp); httpErr != nil {
		return "", &APIError{Err: httpErr}
	}

	// The post exists from here on, so nothing below may fail the call.
	if id := resp.Header.Get("X-Restli-Id"); id != "" {
		return id, nil
	}

	var created struct {
		ID string `json:"id"`
	}
	decodeErr := json.NewDecoder(resp.Body).Decode(&created)
	if decodeErr != nil && !errors.Is(decodeErr, io.EOF) {
		l.log.Warn("Unreadable LinkedIn response body", logger.Error(decodeErr))
	}
	return created.ID, nil
}

// APIError is a non-2xx answer from LinkedIn. Its message carries the raw
// response body.
type APIError struct {
	Err error
}

func (e *APIError) Error() string {
	var httpErr *infraerrors.HTTPError
	if errors.As(e.Err, &httpErr) && httpErr.Body != "" {
		return "LinkedIn API error: " + httpErr.Body
	}
	return "LinkedIn API error: " + e.Err.Error()
}

func (e *APIError) Unwrap() error { return e.Err }

// Only throttling and failures to connect are retried. A 5xx or a broken
// response may follow a post LinkedIn already created.
func isRetryableLinkedIn(err error) bool {
	if code, ok := infraerrors.StatusCode(err); ok {
		return code == http.StatusTooManyRequests
	}
	return requestNotSent(err)
}

func requestNotSent(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}

// Client mistakes do not trip the breaker.
func isServiceFailure(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := infraerrors.StatusCode(err); ok {
		return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}
