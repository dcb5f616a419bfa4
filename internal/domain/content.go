// Package domain holds the records the studio stores and the errors its
// services return.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// ContentType is a publishing channel. Each type has its own queue.
type ContentType string

const (
	ContentTypeLinkedIn ContentType = "linkedin"
	ContentTypeBlog     ContentType = "blog"
)

// ContentTypes lists every type in a stable order.
var ContentTypes = []ContentType{ContentTypeBlog, ContentTypeLinkedIn}

// ParseContentType validates s.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(s) {
	case ContentTypeLinkedIn, ContentTypeBlog:
		return ContentType(s), nil
	default:
		return "", &ValidationError{Field: "type", Message: "must be linkedin or blog"}
	}
}

// SettingKey is the settings row holding the posting switch for t.
func (t ContentType) SettingKey() string {
	return string(t) + "_posting_enabled"
}

type PieceStatus string

const (
	PieceStatusDraft     PieceStatus = "draft"
	PieceStatusQueued    PieceStatus = "queued"
	PieceStatusPublished PieceStatus = "published"
	PieceStatusFailed    PieceStatus = "failed"
)

// ParsePieceStatus validates s.
func ParsePieceStatus(s string) (PieceStatus, error) {
	switch PieceStatus(s) {
	case PieceStatusDraft, PieceStatusQueued, PieceStatusPublished, PieceStatusFailed:
		return PieceStatus(s), nil
	default:
		return "", &ValidationError{Field: "status", Message: "unknown content status"}
	}
}

// ContentPiece is one drafted unit of output for a channel.
//
// QueuePosition is set exactly when Status is queued, and the queued
// positions of one type are always 1..N.
type ContentPiece struct {
	ID            uuid.UUID   `db:"id"             json:"id"`
	IdeaID        uuid.UUID   `db:"idea_id"        json:"idea_id"`
	Type          ContentType `db:"type"           json:"type"`
	Title         *string     `db:"title"          json:"title,omitempty"`
	Content       string      `db:"content"        json:"content"`
	Status        PieceStatus `db:"status"         json:"status"`
	QueuePosition *int        `db:"queue_position" json:"queue_position,omitempty"`
	ExternalID    *string     `db:"external_id"    json:"external_id,omitempty"`
	ErrorMessage  *string     `db:"error_message"  json:"error_message,omitempty"`
	PublishedAt   *time.Time  `db:"published_at"   json:"published_at,omitempty"`
	CreatedAt     time.Time   `db:"created_at"     json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at"     json:"updated_at"`
}

// Position returns the queue position or 0 when unqueued.
func (p *ContentPiece) Position() int {
	if p.QueuePosition == nil {
		return 0
	}
	return *p.QueuePosition
}

// TitleOrEmpty dereferences Title.
func (p *ContentPiece) TitleOrEmpty() string {
	if p.Title == nil {
		return ""
	}
	return *p.Title
}

// PieceFilter narrows ListPieces. Zero fields match everything.
type PieceFilter struct {
	IdeaID *uuid.UUID
	Status PieceStatus
	Type   ContentType
}

// DraftPiece is one generator output before it is stored.
type DraftPiece struct {
	Type    ContentType `json:"type"`
	Title   *string     `json:"title,omitempty"`
	Content string      `json:"content"`
}

// BlogPost is the artifact written for every successful blog publish.
type BlogPost struct {
	ID          uuid.UUID `db:"id"           json:"id"`
	Title       string    `db:"title"        json:"title"`
	Slug        string    `db:"slug"         json:"slug"`
	Content     string    `db:"content"      json:"content"`
	Excerpt     string    `db:"excerpt"      json:"excerpt"`
	Published   bool      `db:"published"    json:"published"`
	PublishedAt time.Time `db:"published_at" json:"published_at"`
	CreatedAt   time.Time `db:"created_at"   json:"created_at"`
}

// Setting is a flat key/value row.
type Setting struct {
	Key       string    `db:"key"        json:"key"`
	Value     string    `db:"value"      json:"value"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// StatusCount is one row of the per-type, per-status stats.
type StatusCount struct {
	Type   ContentType `db:"type"   json:"type"`
	Status PieceStatus `db:"status" json:"status"`
	Count  int         `db:"count"  json:"count"`
}

// TableCount is one row of the schema report.
type TableCount struct {
	Table string `json:"table"`
	Rows  int64  `json:"rows"`
}
