package domain

import (
	"time"

	"github.com/google/uuid"
)

type IdeaStatus string

const (
	IdeaStatusNew        IdeaStatus = "new"
	IdeaStatusGenerating IdeaStatus = "generating"
	IdeaStatusDrafted    IdeaStatus = "drafted"
)

// Idea seeds draft generation. Ideas are never deleted.
type Idea struct {
	ID        uuid.UUID  `db:"id"         json:"id"`
	Content   string     `db:"content"    json:"content"`
	Source    *string    `db:"source"     json:"source,omitempty"`
	Status    IdeaStatus `db:"status"     json:"status"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}

var ideaTransitions = map[IdeaStatus][]IdeaStatus{
	IdeaStatusNew:        {IdeaStatusGenerating, IdeaStatusDrafted},
	IdeaStatusGenerating: {IdeaStatusDrafted, IdeaStatusNew},
}

// ParseIdeaStatus validates s.
func ParseIdeaStatus(s string) (IdeaStatus, error) {
	switch IdeaStatus(s) {
	case IdeaStatusNew, IdeaStatusGenerating, IdeaStatusDrafted:
		return IdeaStatus(s), nil
	default:
		return "", &ValidationError{Field: "status", Message: "must be new, generating or drafted"}
	}
}

// CanTransition reports whether an idea may move from s to next. Staying in
// the same status is allowed so repeated requests are harmless.
func (s IdeaStatus) CanTransition(next IdeaStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range ideaTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}
