package pipeline

import (
	"bytes"
	"time"

	"github.com/google/uuid"
)

// ActivitySnapshot is the read model of one activity used for derivation.
type ActivitySnapshot struct {
	ID            uuid.UUID
	ContactID     uuid.UUID
	Type          ActivityType
	ActivityDate  time.Time
	PipelineStage string
	CreatedAt     time.Time
}

// ContactSnapshot is one contact together with its complete activity set.
type ContactSnapshot struct {
	ContactID  uuid.UUID
	Activities []ActivitySnapshot
}

// CurrentStage returns the contact's current stage.
func (c ContactSnapshot) CurrentStage() string {
	return CurrentStage(c.Activities)
}

// newer reports whether a is more recent than b: later activity_date, then
// later created_at, then the greater ID.
func newer(a, b ActivitySnapshot) bool {
	if !a.ActivityDate.Equal(b.ActivityDate) {
		return a.ActivityDate.After(b.ActivityDate)
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return bytes.Compare(a.ID[:], b.ID[:]) > 0
}

// LatestActivity returns the most recent activity, or false for an empty log.
func LatestActivity(activities []ActivitySnapshot) (ActivitySnapshot, bool) {
	if len(activities) == 0 {
		return ActivitySnapshot{}, false
	}
	latest := activities[0]
	for _, a := range activities[1:] {
		if newer(a, latest) {
			latest = a
		}
	}
	return latest, true
}

// CurrentStage returns the stage recorded on the most recent activity, or
// DefaultStage when there are none. The stored label is returned unchanged.
func CurrentStage(activities []ActivitySnapshot) string {
	latest, ok := LatestActivity(activities)
	if !ok {
		return DefaultStage
	}
	return latest.PipelineStage
}

// ResolveCreationStage decides the stage stored on a new activity. A non-empty
// explicit stage wins verbatim. Otherwise the stage of latest, the most recent
// activity already stored for the contact, is inherited; the new activity's own
// date plays no part. With no prior activity the result is DefaultStage.
func ResolveCreationStage(explicit string, latest *ActivitySnapshot) string {
	if explicit != "" {
		return explicit
	}
	if latest == nil {
		return DefaultStage
	}
	return latest.PipelineStage
}
