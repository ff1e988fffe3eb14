package storage

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// PhotoKey is the blob key of an original photo:
// photos/{group}/{YYYY-MM}/{message}_{unix}.jpg
func PhotoKey(groupID, messageID uuid.UUID, ts time.Time) string {
	return fmt.Sprintf("photos/%s/%s/%s_%d.jpg", groupID, ts.UTC().Format("2006-01"), messageID, ts.Unix())
}
