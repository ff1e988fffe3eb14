package ws

import (
	"github.com/Limmita2/FaseWatch/internal/models"
	"github.com/Limmita2/FaseWatch/pkg/dto"
)

// ResolutionEvent converts a worker resolution event into its WebSocket form.
func ResolutionEvent(ev models.ResolutionEvent) *dto.WSEvent {
	faceID, personID := ev.FaceID, ev.PersonID
	return &dto.WSEvent{
		Type:         dto.EventFaceResolved,
		FaceID:       &faceID,
		PersonID:     &personID,
		MessageID:    ev.MessageID,
		QueueEntryID: ev.QueueEntryID,
		Kind:         string(ev.Kind),
		Score:        ev.Score,
		Timestamp:    dto.FormatTime(ev.Timestamp),
	}
}
