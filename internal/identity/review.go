package identity

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/observability"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

// ReviewOutcome is the state after a confirm or reject.
type ReviewOutcome struct {
	Entry    models.QueueEntry
	FaceID   uuid.UUID
	PersonID uuid.UUID
	// RemovedPersonID is the provisional person deleted because the review
	// left it without faces.
	RemovedPersonID *uuid.UUID
}

// ReviewQueue applies human decisions to pending queue entries. An entry is
// reviewed at most once; a second confirm or reject fails with
// ErrAlreadyReviewed and changes nothing.
type ReviewQueue struct {
	store Store
	index vectorindex.Index
	now   func() time.Time
}

func NewReviewQueue(store Store, index vectorindex.Index) *ReviewQueue {
	return &ReviewQueue{store: store, index: index, now: time.Now}
}

func (q *ReviewQueue) ListPending(ctx context.Context, limit, offset int) ([]models.QueueEntry, error) {
	var entries []models.QueueEntry
	err := q.store.InTx(ctx, func(tx Tx) error {
		var err error
		entries, err = tx.ListPending(ctx, limit, offset)
		return err
	})
	return entries, err
}

// Confirm assigns the face to the suggested person.
func (q *ReviewQueue) Confirm(ctx context.Context, entryID uuid.UUID, reviewer string) (*ReviewOutcome, error) {
	out, err := q.review(ctx, entryID, reviewer, models.StatusConfirmed,
		func(ctx context.Context, tx Tx, e *models.QueueEntry) (uuid.UUID, error) {
			p, err := tx.GetPersonForUpdate(ctx, e.SuggestedPersonID)
			if err != nil {
				return uuid.Nil, err
			}
			if p == nil {
				return uuid.Nil, fmt.Errorf("suggested person %s: %w", e.SuggestedPersonID, ErrNotFound)
			}
			return p.ID, nil
		})
	if err != nil {
		return nil, err
	}
	observability.ReviewActions.WithLabelValues("confirm").Inc()
	return out, nil
}

// Reject gives the face a brand-new person distinct from the suggestion.
func (q *ReviewQueue) Reject(ctx context.Context, entryID uuid.UUID, reviewer string) (*ReviewOutcome, error) {
	out, err := q.review(ctx, entryID, reviewer, models.StatusRejected,
		func(ctx context.Context, tx Tx, _ *models.QueueEntry) (uuid.UUID, error) {
			p := &models.Person{}
			if err := tx.CreatePerson(ctx, p); err != nil {
				return uuid.Nil, err
			}
			return p.ID, nil
		})
	if err != nil {
		return nil, err
	}
	observability.ReviewActions.WithLabelValues("reject").Inc()
	return out, nil
}

type pickPerson func(ctx context.Context, tx Tx, e *models.QueueEntry) (uuid.UUID, error)

func (q *ReviewQueue) review(ctx context.Context, entryID uuid.UUID, reviewer string, status models.IdentificationStatus, pick pickPerson) (*ReviewOutcome, error) {
	var out *ReviewOutcome
	err := q.store.InTx(ctx, func(tx Tx) error {
		e, err := tx.GetQueueEntryForUpdate(ctx, entryID)
		if err != nil {
			return err
		}
		if e == nil {
			return fmt.Errorf("queue entry %s: %w", entryID, ErrNotFound)
		}
		if e.Status != models.StatusPending {
			return fmt.Errorf("queue entry %s is %s: %w", entryID, e.Status, ErrAlreadyReviewed)
		}

		face, err := tx.GetFace(ctx, e.FaceID)
		if err != nil {
			return err
		}
		if face == nil {
			return fmt.Errorf("face %s: %w", e.FaceID, ErrNotFound)
		}

		personID, err := pick(ctx, tx, e)
		if err != nil {
			return err
		}
		if err := tx.SetFacePerson(ctx, face.ID, personID); err != nil {
			return err
		}

		at := q.now().UTC()
		if err := tx.MarkReviewed(ctx, e.ID, status, reviewer, at); err != nil {
			return err
		}
		e.Status = status
		e.ReviewedBy = &reviewer
		e.ReviewedAt = &at

		if face.PointID != nil {
			if err := q.index.SetPersonID(ctx, []uuid.UUID{*face.PointID}, personID); err != nil {
				return fmt.Errorf("update vector payload: %w: %w", ErrUnavailable, err)
			}
		}

		out = &ReviewOutcome{Entry: *e, FaceID: face.ID, PersonID: personID}
		if face.PersonID != nil && *face.PersonID != personID {
			removed, err := removeIfOrphan(ctx, tx, *face.PersonID)
			if err != nil {
				return err
			}
			if removed {
				out.RemovedPersonID = face.PersonID
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("queue entry reviewed",
		"entry_id", out.Entry.ID, "status", status, "face_id", out.FaceID, "person_id", out.PersonID, "reviewer", reviewer)
	return out, nil
}

// removeIfOrphan deletes a provisional person once nothing references it.
// Named or confirmed persons are kept even without faces.
func removeIfOrphan(ctx context.Context, tx Tx, personID uuid.UUID) (bool, error) {
	p, err := tx.GetPersonForUpdate(ctx, personID)
	if err != nil || p == nil {
		return false, err
	}
	if p.Confirmed || p.DisplayName != nil {
		return false, nil
	}
	faces, err := tx.CountFaces(ctx, personID)
	if err != nil {
		return false, err
	}
	suggestions, err := tx.CountPendingSuggestions(ctx, personID)
	if err != nil {
		return false, err
	}
	if faces > 0 || suggestions > 0 {
		return false, nil
	}
	if err := tx.DeletePerson(ctx, personID); err != nil {
		return false, err
	}
	return true, nil
}
