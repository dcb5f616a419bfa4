package drafting

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/store"
	"github.com/jonesrussell/content-studio/internal/telemetry"
)

const generatorService = "draft generator"

// activeIdeaStatuses is every status the dashboard lists.
var activeIdeaStatuses = []domain.IdeaStatus{
	domain.IdeaStatusNew,
	domain.IdeaStatusGenerating,
	domain.IdeaStatusDrafted,
}

// Service owns ideas and unpublished drafts.
type Service struct {
	store     store.Store
	generator Generator
	limits    Limits
	timeout   time.Duration
	telemetry *telemetry.Provider
	log       logger.Logger
}

// NewService wires a Service. timeout bounds each generator call.
func NewService(
	s store.Store,
	generator Generator,
	limits Limits,
	timeout time.Duration,
	tp *telemetry.Provider,
	log logger.Logger,
) *Service {
	return &Service{
		store:     s,
		generator: generator,
		limits:    limits,
		timeout:   timeout,
		telemetry: tp,
		log:       log,
	}
}

// CreateIdea stores a new idea.
func (s *Service) CreateIdea(ctx context.Context, content string, source *string) (*domain.Idea, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &domain.ValidationError{Field: "content", Message: "is required"}
	}
	if source != nil && strings.TrimSpace(*source) == "" {
		source = nil
	}

	idea := &domain.Idea{Content: content, Source: source, Status: domain.IdeaStatusNew}
	if err := s.store.CreateIdea(ctx, idea); err != nil {
		return nil, domain.Persistence("create idea", err)
	}

	s.log.Info("Idea created", logger.String("idea_id", idea.ID.String()))
	return idea, nil
}

// ListIdeas returns the dashboard's ideas, newest first.
func (s *Service) ListIdeas(ctx context.Context) ([]domain.Idea, error) {
	ideas, err := s.store.ListIdeas(ctx, activeIdeaStatuses)
	if err != nil {
		return nil, domain.Persistence("list ideas", err)
	}
	return ideas, nil
}

// MarkGenerating flags an idea while the operator waits on generation.
func (s *Service) MarkGenerating(ctx context.Context, ideaID uuid.UUID) (*domain.Idea, error) {
	return s.SetIdeaStatus(ctx, ideaID, domain.IdeaStatusGenerating)
}

// SetIdeaStatus applies an allowed status transition.
func (s *Service) SetIdeaStatus(ctx context.Context, ideaID uuid.UUID, status domain.IdeaStatus) (*domain.Idea, error) {
	var updated *domain.Idea
	err := s.store.InTx(ctx, func(tx store.Tx) error {
		idea, err := tx.GetIdea(ctx, ideaID)
		if err != nil {
			return domain.Persistence("get idea", err)
		}
		if !idea.Status.CanTransition(status) {
			return &domain.ValidationError{
				Field:   "status",
				Message: "cannot move idea from " + string(idea.Status) + " to " + string(status),
			}
		}
		if err = tx.UpdateIdeaStatus(ctx, ideaID, status); err != nil {
			return domain.Persistence("update idea status", err)
		}
		idea.Status = status
		updated = idea
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Generate drafts pieces for an idea, stores them and marks the idea drafted.
// Nothing is stored when the generator fails.
func (s *Service) Generate(ctx context.Context, ideaID uuid.UUID, counts Counts) ([]domain.ContentPiece, error) {
	if err := s.limits.Validate(counts); err != nil {
		return nil, err
	}

	idea, err := s.store.GetIdea(ctx, ideaID)
	if err != nil {
		return nil, domain.Persistence("get idea", err)
	}
	if !idea.Status.CanTransition(domain.IdeaStatusDrafted) {
		return nil, &domain.ValidationError{Field: "status", Message: "idea cannot be drafted from " + string(idea.Status)}
	}

	drafts, err := s.callGenerate(ctx, idea.Content, counts)
	if err != nil {
		return nil, err
	}
	drafts = capDrafts(drafts, counts)
	if len(drafts) == 0 {
		return nil, &domain.ExternalServiceError{Service: generatorService, Err: errEmptyCompletion}
	}

	pieces := make([]*domain.ContentPiece, len(drafts))
	for i, d := range drafts {
		pieces[i] = &domain.ContentPiece{
			IdeaID:  ideaID,
			Type:    d.Type,
			Title:   d.Title,
			Content: d.Content,
			Status:  domain.PieceStatusDraft,
		}
	}

	err = s.store.InTx(ctx, func(tx store.Tx) error {
		if createErr := tx.CreatePieces(ctx, pieces); createErr != nil {
			return domain.Persistence("create pieces", createErr)
		}
		return domain.Persistence("update idea status", tx.UpdateIdeaStatus(ctx, ideaID, domain.IdeaStatusDrafted))
	})
	if err != nil {
		return nil, err
	}

	out := make([]domain.ContentPiece, len(pieces))
	perType := make(map[domain.ContentType]int)
	for i, p := range pieces {
		out[i] = *p
		perType[p.Type]++
	}
	for t, n := range perType {
		s.telemetry.RecordDrafted(string(t), n)
	}

	s.log.Info("Drafts generated",
		logger.String("idea_id", ideaID.String()),
		logger.Int("linkedin", perType[domain.ContentTypeLinkedIn]),
		logger.Int("blog", perType[domain.ContentTypeBlog]),
	)
	return out, nil
}

func (s *Service) callGenerate(ctx context.Context, idea string, counts Counts) ([]domain.DraftPiece, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.telemetry.StartSpan(ctx, "drafting.generate",
		attribute.Int("linkedin_count", counts.LinkedIn),
		attribute.Int("blog_count", counts.Blog),
	)
	start := time.Now()
	drafts, err := s.generator.Generate(ctx, idea, counts)
	s.telemetry.RecordGeneration(ctx, "generate", err, time.Since(start))
	telemetry.EndSpan(span, err)

	if err != nil {
		s.log.Error("Draft generation failed", logger.Error(err))
		return nil, &domain.ExternalServiceError{Service: generatorService, Err: err}
	}
	return drafts, nil
}

// capDrafts drops drafts beyond the requested count of their type.
func capDrafts(drafts []domain.DraftPiece, counts Counts) []domain.DraftPiece {
	seen := make(map[domain.ContentType]int)
	kept := drafts[:0:0]
	for _, d := range drafts {
		if seen[d.Type] >= counts.of(d.Type) {
			continue
		}
		seen[d.Type]++
		kept = append(kept, d)
	}
	return kept
}

// Regenerate replaces a draft with a fresh version written from its idea.
func (s *Service) Regenerate(ctx context.Context, pieceID uuid.UUID) (*domain.ContentPiece, error) {
	piece, err := s.store.GetPiece(ctx, pieceID)
	if err != nil {
		return nil, domain.Persistence("get piece", err)
	}
	if piece.Status == domain.PieceStatusPublished {
		return nil, &domain.ValidationError{Field: "status", Message: "published content cannot be regenerated"}
	}
	idea, err := s.store.GetIdea(ctx, piece.IdeaID)
	if err != nil {
		return nil, domain.Persistence("get idea", err)
	}

	rev, err := s.callRegenerate(ctx, RegenerateRequest{Idea: idea.Content, Type: piece.Type, Current: piece.Content})
	if err != nil {
		return nil, err
	}

	if err = s.store.UpdatePieceContent(ctx, pieceID, rev.Content, rev.Title); err != nil {
		return nil, domain.Persistence("update piece content", err)
	}

	s.log.Info("Draft regenerated", logger.String("piece_id", pieceID.String()))
	return s.GetPiece(ctx, pieceID)
}

func (s *Service) callRegenerate(ctx context.Context, req RegenerateRequest) (*Revision, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	ctx, span := s.telemetry.StartSpan(ctx, "drafting.regenerate", attribute.String("type", string(req.Type)))
	start := time.Now()
	rev, err := s.generator.Regenerate(ctx, req)
	if err == nil && strings.TrimSpace(rev.Content) == "" {
		err = errEmptyCompletion
	}
	s.telemetry.RecordGeneration(ctx, "regenerate", err, time.Since(start))
	telemetry.EndSpan(span, err)

	if err != nil {
		s.log.Error("Draft regeneration failed", logger.Error(err))
		return nil, &domain.ExternalServiceError{Service: generatorService, Err: err}
	}
	return rev, nil
}

// GetPiece fetches one piece.
func (s *Service) GetPiece(ctx context.Context, pieceID uuid.UUID) (*domain.ContentPiece, error) {
	piece, err := s.store.GetPiece(ctx, pieceID)
	if err != nil {
		return nil, domain.Persistence("get piece", err)
	}
	return piece, nil
}

// ListPieces filters pieces, newest first.
func (s *Service) ListPieces(ctx context.Context, filter domain.PieceFilter) ([]domain.ContentPiece, error) {
	pieces, err := s.store.ListPieces(ctx, filter)
	if err != nil {
		return nil, domain.Persistence("list pieces", err)
	}
	return pieces, nil
}

// UpdateContent saves an operator edit. Published pieces are frozen.
func (s *Service) UpdateContent(ctx context.Context, pieceID uuid.UUID, content string, title *string) (*domain.ContentPiece, error) {
	if strings.TrimSpace(content) == "" {
		return nil, &domain.ValidationError{Field: "content", Message: "is required"}
	}

	piece, err := s.store.GetPiece(ctx, pieceID)
	if err != nil {
		return nil, domain.Persistence("get piece", err)
	}
	if piece.Status == domain.PieceStatusPublished {
		return nil, &domain.ValidationError{Field: "status", Message: "published content cannot be edited"}
	}

	if err = s.store.UpdatePieceContent(ctx, pieceID, content, title); err != nil {
		return nil, domain.Persistence("update piece content", err)
	}
	return s.GetPiece(ctx, pieceID)
}
