package identity

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/models"
)

// Store runs fn inside one relational transaction. fn's error rolls the
// transaction back; a nil return commits it.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the relational surface the identity services need. Lookups return
// nil, nil for absent rows.
type Tx interface {
	CreatePerson(ctx context.Context, p *models.Person) error
	GetPerson(ctx context.Context, id uuid.UUID) (*models.Person, error)
	GetPersonForUpdate(ctx context.Context, id uuid.UUID) (*models.Person, error)
	UpdatePerson(ctx context.Context, id uuid.UUID, displayName *string, confirmed *bool) (*models.Person, error)
	DeletePerson(ctx context.Context, id uuid.UUID) error
	ListPersons(ctx context.Context, f models.PersonFilter) ([]models.PersonSummary, error)

	GetMessage(ctx context.Context, id uuid.UUID) (*models.Message, error)
	DeleteMessage(ctx context.Context, id uuid.UUID) error
	GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error)
	// ListGroupPhotoPaths returns the photo blob keys of a group's messages.
	ListGroupPhotoPaths(ctx context.Context, groupID uuid.UUID) ([]string, error)
	// DeleteGroup removes the group and its messages.
	DeleteGroup(ctx context.Context, id uuid.UUID) error

	InsertFace(ctx context.Context, f *models.Face) error
	SetFaceVector(ctx context.Context, faceID, pointID uuid.UUID, cropPath *string) error
	SetFacePerson(ctx context.Context, faceID, personID uuid.UUID) error
	GetFace(ctx context.Context, id uuid.UUID) (*models.Face, error)
	ListFacesByPerson(ctx context.Context, personID uuid.UUID) ([]models.Face, error)
	ListFacesByGroup(ctx context.Context, groupID uuid.UUID) ([]models.Face, error)
	ListFacesByMessage(ctx context.Context, messageID uuid.UUID) ([]models.Face, error)
	// ListFacesAfter pages through all faces in id order.
	ListFacesAfter(ctx context.Context, after uuid.UUID, limit int) ([]models.Face, error)
	CountFaces(ctx context.Context, personID uuid.UUID) (int, error)
	ReassignFaces(ctx context.Context, from, to uuid.UUID) (int64, error)
	DeleteFaces(ctx context.Context, ids []uuid.UUID) error

	CreateQueueEntry(ctx context.Context, e *models.QueueEntry) error
	GetQueueEntryForUpdate(ctx context.Context, id uuid.UUID) (*models.QueueEntry, error)
	MarkReviewed(ctx context.Context, id uuid.UUID, status models.IdentificationStatus, reviewer string, at time.Time) error
	ListPending(ctx context.Context, limit, offset int) ([]models.QueueEntry, error)
	CountPendingSuggestions(ctx context.Context, personID uuid.UUID) (int, error)
	RetargetPendingSuggestions(ctx context.Context, from, to uuid.UUID) error
	// DeleteSettledSuggestions drops pending entries suggesting personID for
	// a face that already belongs to personID.
	DeleteSettledSuggestions(ctx context.Context, personID uuid.UUID) error
	DeleteQueueEntriesForFaces(ctx context.Context, faceIDs []uuid.UUID) error
	DeleteSuggestionsOf(ctx context.Context, personID uuid.UUID) error
}

// BlobStore holds photo and crop bytes.
type BlobStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	DeleteObjects(ctx context.Context, keys []string) error
}
