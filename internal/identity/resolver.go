package identity

import (
	"github.com/google/uuid"

	"github.com/Limmita2/FaseWatch/internal/models"
)

type Action int

const (
	// NewPerson mints a fresh identity for the face.
	NewPerson Action = iota
	// AutoLink assigns the face to the candidate's person.
	AutoLink
	// NewPersonWithReview mints a provisional identity and queues the
	// candidate as a suggestion for a human.
	NewPersonWithReview
)

func (a Action) String() string {
	switch a {
	case AutoLink:
		return "auto_link"
	case NewPersonWithReview:
		return "review"
	default:
		return "new_person"
	}
}

// Kind maps the action to the event kind published after commit.
func (a Action) Kind() models.ResolutionKind {
	switch a {
	case AutoLink:
		return models.ResolutionAutoLinked
	case NewPersonWithReview:
		return models.ResolutionReview
	default:
		return models.ResolutionNewPerson
	}
}

type Decision struct {
	Action Action
	// PersonID is the linked person for AutoLink.
	PersonID uuid.UUID
	// Suggested is the candidate person for NewPersonWithReview.
	Suggested uuid.UUID
	Score     float32
}

// Resolver turns a candidate into a decision. Scores in
// [ReviewFloor, AutoLinkThreshold) go to review; a floor at or above the
// threshold disables the review band.
type Resolver struct {
	AutoLinkThreshold float64
	ReviewFloor       float64
}

func NewResolver(autoLink, reviewFloor float64) Resolver {
	return Resolver{AutoLinkThreshold: autoLink, ReviewFloor: reviewFloor}
}

func (r Resolver) Decide(c *Candidate) Decision {
	if c == nil {
		return Decision{Action: NewPerson}
	}
	score := float64(c.Score)
	switch {
	case score >= r.AutoLinkThreshold:
		return Decision{Action: AutoLink, PersonID: c.PersonID, Score: c.Score}
	case score >= r.ReviewFloor:
		return Decision{Action: NewPersonWithReview, Suggested: c.PersonID, Score: c.Score}
	default:
		return Decision{Action: NewPerson, Score: c.Score}
	}
}
