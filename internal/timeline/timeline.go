// Package timeline is the append-only audit trail of a case. Append is the
// only write path and the only code that moves Case.Status.
package timeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/pkg/models"
)

// InitialStatus is the status of a case whose timeline is empty.
const InitialStatus = models.StatusDraft

// Append validates entry against the case and appends it.
// Rules:
// - previousStatus must equal the current case status (nil only for the first entry)
// - timestamp must not be earlier than the last entry's timestamp
func Append(cs *models.Case, entry models.TimelineEntry) error {
	if entry.PreviousStatus == nil {
		if len(cs.Timeline) > 0 {
			return models.NewGuardError(models.ReasonStalePreviousStatus,
				"only the first entry may omit previous status")
		}
	} else if *entry.PreviousStatus != cs.Status {
		return models.NewGuardError(models.ReasonStalePreviousStatus,
			"entry starts from %s but case is %s", *entry.PreviousStatus, cs.Status)
	}

	if last := Last(cs); last != nil && entry.Timestamp.Before(last.Timestamp) {
		return models.NewGuardError(models.ReasonNonMonotonicTimestamp,
			"entry at %s precedes last entry at %s",
			entry.Timestamp.Format(time.RFC3339Nano), last.Timestamp.Format(time.RFC3339Nano))
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	entry.CaseID = cs.ID
	entry.Seq = len(cs.Timeline) + 1

	cs.Timeline = append(cs.Timeline, entry)
	cs.Status = entry.NewStatus
	return nil
}

// Last returns the most recent entry, or nil for an empty timeline.
func Last(cs *models.Case) *models.TimelineEntry {
	if len(cs.Timeline) == 0 {
		return nil
	}
	return &cs.Timeline[len(cs.Timeline)-1]
}

// NextTimestamp clamps now so that it never precedes the last entry.
func NextTimestamp(cs *models.Case, now time.Time) time.Time {
	if last := Last(cs); last != nil && now.Before(last.Timestamp) {
		return last.Timestamp
	}
	return now
}

// StatusAt reconstructs the status the case held at ts by scanning the
// timeline in append order. ok is false when ts precedes case creation.
func StatusAt(cs *models.Case, ts time.Time) (status models.CaseStatus, ok bool) {
	if !cs.CreatedAt.IsZero() && ts.Before(cs.CreatedAt) {
		return "", false
	}
	status = InitialStatus
	for _, e := range cs.Timeline {
		if e.Timestamp.After(ts) {
			break
		}
		status = e.NewStatus
	}
	return status, true
}

// Consistent reports whether the case status agrees with its timeline.
func Consistent(cs *models.Case) bool {
	if last := Last(cs); last != nil {
		return cs.Status == last.NewStatus
	}
	return cs.Status == InitialStatus
}

// Reversed returns the entries newest first, for display.
func Reversed(entries []models.TimelineEntry) []models.TimelineEntry {
	out := make([]models.TimelineEntry, len(entries))
	for i, e := range entries {
		out[len(entries)-1-i] = e
	}
	return out
}

// LastEntryInto returns the latest entry that moved the case into status.
func LastEntryInto(cs *models.Case, status models.CaseStatus) *models.TimelineEntry {
	for i := len(cs.Timeline) - 1; i >= 0; i-- {
		if cs.Timeline[i].NewStatus == status {
			return &cs.Timeline[i]
		}
	}
	return nil
}
