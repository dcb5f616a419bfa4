// Package queue owns the per-type publish queues. Queued positions of one
// type are always exactly 1..N; every mutation runs in one transaction under
// the type's queue lease and is checked for density before it commits.
package queue

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/jonesrussell/content-studio/infrastructure/logger"
	"github.com/jonesrussell/content-studio/internal/domain"
	"github.com/jonesrussell/content-studio/internal/lock"
	"github.com/jonesrussell/content-studio/internal/store"
)

// Manager applies queue operations.
type Manager struct {
	store  store.Store
	locker lock.Locker
	log    logger.Logger
}

// NewManager wires a Manager.
func NewManager(s store.Store, locker lock.Locker, log logger.Logger) *Manager {
	return &Manager{store: s, locker: locker, log: log}
}

// ReorderResult is the queue after a reorder. Unchanged is set when the
// piece was already at the requested position and nothing was written.
type ReorderResult struct {
	Queue     []domain.ContentPiece `json:"queue"`
	Unchanged bool                  `json:"unchanged"`
}

// Insert appends a draft or failed piece to the tail of its type's queue.
func (m *Manager) Insert(ctx context.Context, pieceID uuid.UUID) (*domain.ContentPiece, error) {
	piece, err := m.lookup(ctx, pieceID)
	if err != nil {
		return nil, err
	}

	var inserted *domain.ContentPiece
	err = m.withQueue(ctx, []domain.ContentType{piece.Type}, func(tx store.Tx) error {
		current, getErr := tx.GetPiece(ctx, pieceID)
		if getErr != nil {
			return domain.Persistence("get piece", getErr)
		}
		if checkErr := checkInsertable(current); checkErr != nil {
			return checkErr
		}

		maxPos, maxErr := tx.MaxQueuePosition(ctx, current.Type)
		if maxErr != nil {
			return domain.Persistence("max queue position", maxErr)
		}
		if setErr := tx.SetQueuePosition(ctx, pieceID, maxPos+1); setErr != nil {
			return domain.Persistence("set queue position", setErr)
		}
		if denseErr := VerifyDense(ctx, tx, current.Type); denseErr != nil {
			return denseErr
		}

		inserted, getErr = tx.GetPiece(ctx, pieceID)
		return domain.Persistence("get piece", getErr)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("Queued content piece",
		logger.String("piece_id", pieceID.String()),
		logger.String("type", string(inserted.Type)),
		logger.Int("position", inserted.Position()),
	)
	return inserted, nil
}

// InsertBatch queues every piece in caller order. Positions continue from one
// snapshot of each type's tail, and the batch commits or fails as a whole.
func (m *Manager) InsertBatch(ctx context.Context, pieceIDs []uuid.UUID) ([]domain.ContentPiece, error) {
	if len(pieceIDs) == 0 {
		return nil, &domain.ValidationError{Field: "content_ids", Message: "must not be empty"}
	}

	seen := make(map[uuid.UUID]bool, len(pieceIDs))
	var types []domain.ContentType
	for _, id := range pieceIDs {
		if seen[id] {
			return nil, &domain.ValidationError{Field: "content_ids", Message: "duplicate id " + id.String()}
		}
		seen[id] = true

		piece, err := m.lookup(ctx, id)
		if err != nil {
			return nil, err
		}
		if !slices.Contains(types, piece.Type) {
			types = append(types, piece.Type)
		}
	}

	queued := make([]domain.ContentPiece, 0, len(pieceIDs))
	err := m.withQueue(ctx, types, func(tx store.Tx) error {
		next := make(map[domain.ContentType]int, len(types))
		for _, t := range types {
			maxPos, maxErr := tx.MaxQueuePosition(ctx, t)
			if maxErr != nil {
				return domain.Persistence("max queue position", maxErr)
			}
			next[t] = maxPos + 1
		}

		for _, id := range pieceIDs {
			current, getErr := tx.GetPiece(ctx, id)
			if getErr != nil {
				return domain.Persistence("get piece", getErr)
			}
			if checkErr := checkInsertable(current); checkErr != nil {
				return checkErr
			}
			if setErr := tx.SetQueuePosition(ctx, id, next[current.Type]); setErr != nil {
				return domain.Persistence("set queue position", setErr)
			}
			next[current.Type]++
		}

		for _, t := range types {
			if denseErr := VerifyDense(ctx, tx, t); denseErr != nil {
				return denseErr
			}
		}

		for _, id := range pieceIDs {
			p, getErr := tx.GetPiece(ctx, id)
			if getErr != nil {
				return domain.Persistence("get piece", getErr)
			}
			queued = append(queued, *p)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("Queued content batch", logger.Int("count", len(queued)))
	return queued, nil
}

// Remove takes a piece out of its queue and returns it to draft. Later
// items move up to close the gap.
func (m *Manager) Remove(ctx context.Context, pieceID uuid.UUID) error {
	piece, err := m.lookup(ctx, pieceID)
	if err != nil {
		return err
	}

	err = m.withQueue(ctx, []domain.ContentType{piece.Type}, func(tx store.Tx) error {
		current, getErr := tx.GetPiece(ctx, pieceID)
		if getErr != nil {
			return domain.Persistence("get piece", getErr)
		}
		if current.Status == domain.PieceStatusPublished {
			return &domain.ValidationError{Field: "status", Message: "published content cannot be unqueued"}
		}

		if clearErr := tx.ClearQueuePosition(ctx, pieceID, domain.PieceStatusDraft); clearErr != nil {
			return domain.Persistence("clear queue position", clearErr)
		}
		if current.QueuePosition != nil {
			if gapErr := CloseGap(ctx, tx, current.Type, *current.QueuePosition); gapErr != nil {
				return gapErr
			}
		}
		return VerifyDense(ctx, tx, current.Type)
	})
	if err != nil {
		return err
	}

	m.log.Info("Removed content piece from queue",
		logger.String("piece_id", pieceID.String()),
		logger.String("type", string(piece.Type)),
	)
	return nil
}

// Reorder moves a piece to newPosition within the queue of t. An unqueued
// piece is inserted there. Positions past the tail are clamped to it.
func (m *Manager) Reorder(ctx context.Context, pieceID uuid.UUID, newPosition int, t domain.ContentType) (*ReorderResult, error) {
	if newPosition < 1 {
		return nil, &domain.ValidationError{Field: "new_position", Message: "must be at least 1"}
	}
	if _, err := domain.ParseContentType(string(t)); err != nil {
		return nil, err
	}

	result := &ReorderResult{}
	err := m.withQueue(ctx, []domain.ContentType{t}, func(tx store.Tx) error {
		current, getErr := tx.GetPiece(ctx, pieceID)
		if getErr != nil {
			return domain.Persistence("get piece", getErr)
		}
		if current.Type != t {
			return &domain.NotFoundError{Resource: string(t) + " content piece", ID: pieceID.String()}
		}
		if current.Status == domain.PieceStatusPublished {
			return &domain.ValidationError{Field: "status", Message: "published content cannot be queued"}
		}

		moved, moveErr := move(ctx, tx, current, newPosition)
		if moveErr != nil {
			return moveErr
		}
		result.Unchanged = !moved

		if moved {
			if denseErr := VerifyDense(ctx, tx, t); denseErr != nil {
				return denseErr
			}
		}

		queue, listErr := tx.QueuedPieces(ctx, t)
		if listErr != nil {
			return domain.Persistence("list queue", listErr)
		}
		result.Queue = queue
		return nil
	})
	if err != nil {
		return nil, err
	}

	if !result.Unchanged {
		m.log.Info("Reordered content piece",
			logger.String("piece_id", pieceID.String()),
			logger.String("type", string(t)),
			logger.Int("requested_position", newPosition),
		)
	}
	return result, nil
}

// move shifts the neighbours and places piece. It reports false when the
// piece already sits at the clamped target.
func move(ctx context.Context, tx store.Tx, piece *domain.ContentPiece, newPosition int) (bool, error) {
	n, err := tx.MaxQueuePosition(ctx, piece.Type)
	if err != nil {
		return false, domain.Persistence("max queue position", err)
	}

	if piece.QueuePosition == nil {
		target := min(newPosition, n+1)
		if shiftErr := tx.ShiftQueue(ctx, piece.Type, target, 0, 1); shiftErr != nil {
			return false, domain.Persistence("shift queue", shiftErr)
		}
		if setErr := tx.SetQueuePosition(ctx, piece.ID, target); setErr != nil {
			return false, domain.Persistence("set queue position", setErr)
		}
		return true, nil
	}

	old := *piece.QueuePosition
	target := min(newPosition, n)
	switch {
	case target == old:
		return false, nil
	case target < old:
		err = tx.ShiftQueue(ctx, piece.Type, target, old-1, 1)
	default:
		err = tx.ShiftQueue(ctx, piece.Type, old+1, target, -1)
	}
	if err != nil {
		return false, domain.Persistence("shift queue", err)
	}
	if setErr := tx.SetQueuePosition(ctx, piece.ID, target); setErr != nil {
		return false, domain.Persistence("set queue position", setErr)
	}
	return true, nil
}

// Retry re-queues a failed piece at the tail and clears its error.
func (m *Manager) Retry(ctx context.Context, pieceID uuid.UUID) (*domain.ContentPiece, error) {
	piece, err := m.lookup(ctx, pieceID)
	if err != nil {
		return nil, err
	}
	if piece.Status != domain.PieceStatusFailed {
		return nil, failedNotFound(pieceID)
	}

	var retried *domain.ContentPiece
	err = m.withQueue(ctx, []domain.ContentType{piece.Type}, func(tx store.Tx) error {
		current, getErr := tx.GetPiece(ctx, pieceID)
		if getErr != nil {
			return domain.Persistence("get piece", getErr)
		}
		if current.Status != domain.PieceStatusFailed {
			return failedNotFound(pieceID)
		}

		maxPos, maxErr := tx.MaxQueuePosition(ctx, current.Type)
		if maxErr != nil {
			return domain.Persistence("max queue position", maxErr)
		}
		if setErr := tx.SetQueuePosition(ctx, pieceID, maxPos+1); setErr != nil {
			return domain.Persistence("set queue position", setErr)
		}
		if denseErr := VerifyDense(ctx, tx, current.Type); denseErr != nil {
			return denseErr
		}

		retried, getErr = tx.GetPiece(ctx, pieceID)
		return domain.Persistence("get piece", getErr)
	})
	if err != nil {
		return nil, err
	}

	m.log.Info("Retrying failed content piece",
		logger.String("piece_id", pieceID.String()),
		logger.String("type", string(retried.Type)),
		logger.Int("position", retried.Position()),
	)
	return retried, nil
}

// List returns the queue of t in position order.
func (m *Manager) List(ctx context.Context, t domain.ContentType) ([]domain.ContentPiece, error) {
	pieces, err := m.store.QueuedPieces(ctx, t)
	if err != nil {
		return nil, domain.Persistence("list queue", err)
	}
	return pieces, nil
}

// Snapshot returns every type's queue.
func (m *Manager) Snapshot(ctx context.Context) (map[domain.ContentType][]domain.ContentPiece, error) {
	out := make(map[domain.ContentType][]domain.ContentPiece, len(domain.ContentTypes))
	for _, t := range domain.ContentTypes {
		pieces, err := m.List(ctx, t)
		if err != nil {
			return nil, err
		}
		out[t] = pieces
	}
	return out, nil
}

// CloseGap moves every queued item of t after position up by one. The
// caller must hold the queue lease for t and run inside tx.
func CloseGap(ctx context.Context, tx store.Tx, t domain.ContentType, position int) error {
	if err := tx.ShiftQueue(ctx, t, position+1, 0, -1); err != nil {
		return domain.Persistence("close queue gap", err)
	}
	return nil
}

// VerifyDense returns a ConflictError unless the queued positions of t are
// exactly 1..N.
func VerifyDense(ctx context.Context, tx store.Tx, t domain.ContentType) error {
	pieces, err := tx.QueuedPieces(ctx, t)
	if err != nil {
		return domain.Persistence("list queue", err)
	}
	for i, p := range pieces {
		if p.Position() != i+1 {
			return &domain.ConflictError{
				Message: fmt.Sprintf("%s queue is not dense at position %d", t, i+1),
			}
		}
	}
	return nil
}

func (m *Manager) lookup(ctx context.Context, pieceID uuid.UUID) (*domain.ContentPiece, error) {
	piece, err := m.store.GetPiece(ctx, pieceID)
	if err != nil {
		return nil, domain.Persistence("get piece", err)
	}
	return piece, nil
}

// withQueue holds the queue lease of every type, acquired in sorted order,
// for the duration of one transaction.
func (m *Manager) withQueue(ctx context.Context, types []domain.ContentType, fn func(tx store.Tx) error) error {
	sorted := slices.Clone(types)
	slices.Sort(sorted)

	leases := make([]lock.Lease, 0, len(sorted))
	defer func() {
		for i := len(leases) - 1; i >= 0; i-- {
			if err := leases[i].Release(context.WithoutCancel(ctx)); err != nil {
				m.log.Warn("Failed to release queue lock", logger.Error(err))
			}
		}
	}()

	for _, t := range sorted {
		lease, err := m.locker.Acquire(ctx, lock.QueueKey(string(t)))
		if err != nil {
			return lockErr(t, err)
		}
		leases = append(leases, lease)
	}

	return m.store.InTx(ctx, fn)
}

// lockErr reports a lease that could not be taken in time as a conflict so
// callers can retry.
func lockErr(t domain.ContentType, err error) error {
	if errors.Is(err, lock.ErrNotAcquired) {
		return &domain.ConflictError{Message: fmt.Sprintf("%s queue is busy", t)}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return domain.Persistence("acquire queue lock", err)
}

func checkInsertable(p *domain.ContentPiece) error {
	switch p.Status {
	case domain.PieceStatusQueued:
		return &domain.ConflictError{Message: fmt.Sprintf("content piece %s is already queued", p.ID)}
	case domain.PieceStatusPublished:
		return &domain.ValidationError{Field: "status", Message: "published content cannot be queued"}
	default:
		return nil
	}
}

func failedNotFound(id uuid.UUID) error {
	return &domain.NotFoundError{Resource: "failed piece", ID: id.String()}
}
