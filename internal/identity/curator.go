package identity

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/internal/vectorindex"
)

// PersonDetail is a person with all of its faces.
type PersonDetail struct {
	Person models.Person
	Faces  []models.Face
}

type MergeResult struct {
	TargetID   uuid.UUID
	FacesMoved int64
}

type DeleteResult struct {
	FacesDeleted  int
	PointsDeleted int
	CropsDeleted  int
	PhotosDeleted int
}

// Curator corrects identities after the fact. Relational changes and vector
// point changes happen inside one transaction scope; crop blobs are removed
// after commit.
type Curator struct {
	store Store
	index vectorindex.Index
	blobs BlobStore
}

func NewCurator(store Store, index vectorindex.Index, blobs BlobStore) *Curator {
	return &Curator{store: store, index: index, blobs: blobs}
}

func (c *Curator) ListPersons(ctx context.Context, f models.PersonFilter) ([]models.PersonSummary, error) {
	var persons []models.PersonSummary
	err := c.store.InTx(ctx, func(tx Tx) error {
		var err error
		persons, err = tx.ListPersons(ctx, f)
		return err
	})
	return persons, err
}

func (c *Curator) GetPerson(ctx context.Context, id uuid.UUID) (*PersonDetail, error) {
	var detail *PersonDetail
	err := c.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetPerson(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("person %s: %w", id, ErrNotFound)
		}
		faces, err := tx.ListFacesByPerson(ctx, id)
		if err != nil {
			return err
		}
		detail = &PersonDetail{Person: *p, Faces: faces}
		return nil
	})
	return detail, err
}

func (c *Curator) UpdatePerson(ctx context.Context, id uuid.UUID, displayName *string, confirmed *bool) (*models.Person, error) {
	var person *models.Person
	err := c.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.UpdatePerson(ctx, id, displayName, confirmed)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("person %s: %w", id, ErrNotFound)
		}
		person = p
		return nil
	})
	return person, err
}

// Merge moves every face of source onto target and deletes source. Pending
// suggestions of source are retargeted.
func (c *Curator) Merge(ctx context.Context, source, target uuid.UUID) (*MergeResult, error) {
	if source == target {
		return nil, fmt.Errorf("merge %s into itself: %w", source, ErrInvalidMerge)
	}

	var res *MergeResult
	err := c.store.InTx(ctx, func(tx Tx) error {
		// Lock in id order so concurrent merges of the same pair cannot deadlock.
		first, second := source, target
		if bytes.Compare(first[:], second[:]) > 0 {
			first, second = second, first
		}
		for _, id := range []uuid.UUID{first, second} {
			p, err := tx.GetPersonForUpdate(ctx, id)
			if err != nil {
				return err
			}
			if p == nil {
				return fmt.Errorf("person %s: %w", id, ErrNotFound)
			}
		}

		faces, err := tx.ListFacesByPerson(ctx, source)
		if err != nil {
			return err
		}
		moved, err := tx.ReassignFaces(ctx, source, target)
		if err != nil {
			return err
		}
		if err := tx.RetargetPendingSuggestions(ctx, source, target); err != nil {
			return err
		}
		if err := tx.DeleteSettledSuggestions(ctx, target); err != nil {
			return err
		}
		if err := c.index.SetPersonID(ctx, pointIDs(faces), target); err != nil {
			return fmt.Errorf("update vector payload: %w: %w", ErrUnavailable, err)
		}
		if err := tx.DeletePerson(ctx, source); err != nil {
			return err
		}
		res = &MergeResult{TargetID: target, FacesMoved: moved}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("persons merged", "source", source, "target", target, "faces", res.FacesMoved)
	return res, nil
}

// DeletePerson removes a person with its faces, queue entries, vector points
// and crops.
func (c *Curator) DeletePerson(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	var faces []models.Face
	err := c.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetPersonForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if p == nil {
			return fmt.Errorf("person %s: %w", id, ErrNotFound)
		}
		faces, err = tx.ListFacesByPerson(ctx, id)
		if err != nil {
			return err
		}
		if err := tx.DeleteSuggestionsOf(ctx, id); err != nil {
			return err
		}
		if err := deleteFaceRows(ctx, tx, faces); err != nil {
			return err
		}
		if err := tx.DeletePerson(ctx, id); err != nil {
			return err
		}
		return c.deletePoints(ctx, faces)
	})
	if err != nil {
		return nil, err
	}

	res := c.afterDelete(ctx, faces, nil)
	slog.Info("person deleted", "person_id", id, "faces", res.FacesDeleted)
	return res, nil
}

// DeleteGroup removes a group, its messages and every face found in them.
// Persons left without faces are kept.
func (c *Curator) DeleteGroup(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	var (
		faces  []models.Face
		photos []string
	)
	err := c.store.InTx(ctx, func(tx Tx) error {
		g, err := tx.GetGroup(ctx, id)
		if err != nil {
			return err
		}
		if g == nil {
			return fmt.Errorf("group %s: %w", id, ErrNotFound)
		}
		faces, err = tx.ListFacesByGroup(ctx, id)
		if err != nil {
			return err
		}
		photos, err = tx.ListGroupPhotoPaths(ctx, id)
		if err != nil {
			return err
		}
		if err := deleteFaceRows(ctx, tx, faces); err != nil {
			return err
		}
		if err := tx.DeleteGroup(ctx, id); err != nil {
			return err
		}
		return c.deletePoints(ctx, faces)
	})
	if err != nil {
		return nil, err
	}

	res := c.afterDelete(ctx, faces, photos)
	slog.Info("group deleted", "group_id", id, "faces", res.FacesDeleted, "photos", len(photos))
	return res, nil
}

// DeleteMessage removes one message with its faces, their vector points and
// crops, and the message photo.
func (c *Curator) DeleteMessage(ctx context.Context, id uuid.UUID) (*DeleteResult, error) {
	var (
		faces  []models.Face
		photos []string
	)
	err := c.store.InTx(ctx, func(tx Tx) error {
		m, err := tx.GetMessage(ctx, id)
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("message %s: %w", id, ErrNotFound)
		}
		if m.PhotoPath != nil {
			photos = append(photos, *m.PhotoPath)
		}
		faces, err = tx.ListFacesByMessage(ctx, id)
		if err != nil {
			return err
		}
		if err := deleteFaceRows(ctx, tx, faces); err != nil {
			return err
		}
		if err := tx.DeleteMessage(ctx, id); err != nil {
			return err
		}
		return c.deletePoints(ctx, faces)
	})
	if err != nil {
		return nil, err
	}

	res := c.afterDelete(ctx, faces, photos)
	slog.Info("message deleted", "message_id", id, "faces", res.FacesDeleted)
	return res, nil
}

// deleteFaceRows removes queue entries and rows of faces.
func deleteFaceRows(ctx context.Context, tx Tx, faces []models.Face) error {
	ids := make([]uuid.UUID, 0, len(faces))
	for _, f := range faces {
		ids = append(ids, f.ID)
	}
	if err := tx.DeleteQueueEntriesForFaces(ctx, ids); err != nil {
		return err
	}
	return tx.DeleteFaces(ctx, ids)
}

// deletePoints removes the vector points of faces. Callers run it as the last
// step of a transaction so a relational failure leaves the points intact.
func (c *Curator) deletePoints(ctx context.Context, faces []models.Face) error {
	if err := c.index.Delete(ctx, pointIDs(faces)); err != nil {
		return fmt.Errorf("delete vector points: %w: %w", ErrUnavailable, err)
	}
	return nil
}

// afterDelete removes crops and photos of committed deletions. Failures only
// leak blobs.
func (c *Curator) afterDelete(ctx context.Context, faces []models.Face, photos []string) *DeleteResult {
	res := &DeleteResult{FacesDeleted: len(faces), PointsDeleted: len(pointIDs(faces))}
	var crops []string
	for _, f := range faces {
		if f.CropPath != nil {
			crops = append(crops, *f.CropPath)
		}
	}
	if len(crops)+len(photos) == 0 {
		return res
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
	defer cancel()
	if len(crops) > 0 {
		if err := c.blobs.DeleteObjects(ctx, crops); err != nil {
			slog.Warn("delete face crops", "crops", len(crops), "error", err)
		} else {
			res.CropsDeleted = len(crops)
		}
	}
	if len(photos) > 0 {
		if err := c.blobs.DeleteObjects(ctx, photos); err != nil {
			slog.Warn("delete message photos", "photos", len(photos), "error", err)
		} else {
			res.PhotosDeleted = len(photos)
		}
	}
	return res
}

func pointIDs(faces []models.Face) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(faces))
	for _, f := range faces {
		if f.PointID != nil {
			ids = append(ids, *f.PointID)
		}
	}
	return ids
}
