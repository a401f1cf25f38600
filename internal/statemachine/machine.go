package statemachine

import (
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/documents"
	"github.com/aldoetobex/caseflow/internal/timeline"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// Request is a caller's attempt to move a case to another status.
type Request struct {
	To    models.CaseStatus
	Actor models.ActorContext
	Notes string
	// DocumentIDs are the documents a lawyer approves or rejects on the
	// review edges. Ignored elsewhere.
	DocumentIDs []uuid.UUID
}

// Evaluate checks, in order, that the edge exists, that the actor may
// trigger it, and that its guard holds. It never mutates cs.
func Evaluate(cs *models.Case, req Request) (Edge, error) {
	edge, ok := Lookup(cs.Status, req.To)
	if !ok {
		return Edge{}, models.InvalidTransition(cs.Status, req.To)
	}
	if !edge.Allows(req.Actor.Role) {
		return Edge{}, models.ForbiddenActor(req.Actor.Role, cs.Status, req.To)
	}
	if edge.Guard != nil {
		if err := edge.Guard(cs, req); err != nil {
			return Edge{}, err
		}
	}
	return edge, nil
}

// Apply validates the request and, on success, appends exactly one timeline
// entry, moves the status, applies the edge's side effects and bumps
// UpdatedAt. On any failure cs is left untouched.
func Apply(cs *models.Case, req Request, now time.Time) (models.TimelineEntry, error) {
	edge, err := Evaluate(cs, req)
	if err != nil {
		return models.TimelineEntry{}, err
	}

	from := cs.Status
	entry := models.TimelineEntry{
		ID:             uuid.New(),
		Timestamp:      timeline.NextTimestamp(cs, now),
		PreviousStatus: &from,
		NewStatus:      req.To,
		Description:    edge.Description,
		Actor:          req.Actor.Role,
		Notes:          req.Notes,
	}
	if req.Actor.ID != uuid.Nil {
		id := req.Actor.ID
		entry.ActorID = &id
	}
	if err := timeline.Append(cs, entry); err != nil {
		return models.TimelineEntry{}, err
	}

	applyEffects(cs, from, req)
	cs.UpdatedAt = entry.Timestamp
	return cs.Timeline[len(cs.Timeline)-1], nil
}

// applyEffects runs the bookkeeping tied to specific edges. It runs after
// the entry is appended and cannot fail.
func applyEffects(cs *models.Case, from models.CaseStatus, req Request) {
	switch {
	case req.To == models.StatusAccepted:
		lawyer := req.Actor.ID
		if cs.ClaimedBy != nil {
			lawyer = *cs.ClaimedBy
		}
		cs.LawyerID = &lawyer

	case req.To == models.StatusRejected:
		cs.ClaimedBy = nil

	case req.To == models.StatusAwaitingDocuments:
		if from == models.StatusAwaitingDocumentReview {
			documents.MarkReviewed(cs, reviewed(cs, req), models.ReviewRejected)
		}
		cs.DocumentsBaseline = len(cs.Documents)

	case req.To == models.StatusInProgress && from == models.StatusAwaitingDocumentReview:
		documents.MarkReviewed(cs, reviewed(cs, req), models.ReviewApproved)
	}
}

// Available returns the edges leaving the current status that actor may
// trigger and whose guard currently holds for tmpl.
func Available(cs *models.Case, tmpl Request) []Edge {
	var out []Edge
	for _, e := range From(cs.Status) {
		if !e.Allows(tmpl.Actor.Role) {
			continue
		}
		req := tmpl
		req.To = e.To
		if _, err := Evaluate(cs, req); err == nil {
			out = append(out, e)
		}
	}
	return out
}
