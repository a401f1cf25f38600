// Package projection derives the client-facing and lawyer-facing views of a
// case. Both are pure functions of the canonical record; nothing here is
// stored or cached.
package projection

import (
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/documents"
	"github.com/aldoetobex/caseflow/internal/statemachine"
	"github.com/aldoetobex/caseflow/internal/timeline"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// View is a role-specific rendering of a case.
type View interface {
	Audience() models.Actor
	CaseID() uuid.UUID
}

// Action is a transition the viewer can request right now.
type Action struct {
	Key               string            `json:"key"`
	Label             string            `json:"label"`
	Target            models.CaseStatus `json:"target"`
	RequiresNotes     bool              `json:"requires_notes,omitempty"`
	RequiresDocuments bool              `json:"requires_documents,omitempty"`
}

type TimelineItem struct {
	ID             uuid.UUID          `json:"id"`
	Timestamp      time.Time          `json:"timestamp"`
	PreviousStatus *models.CaseStatus `json:"previous_status,omitempty"`
	NewStatus      models.CaseStatus  `json:"new_status"`
	Description    string             `json:"description"`
	Actor          models.Actor       `json:"actor"`
	Notes          string             `json:"notes,omitempty"`
}

type DocumentItem struct {
	ID         uuid.UUID             `json:"id"`
	Name       string                `json:"name"`
	MimeType   string                `json:"mime_type"`
	SizeBytes  int64                 `json:"size_bytes"`
	UploadedAt time.Time             `json:"uploaded_at"`
	UploadedBy models.Actor          `json:"uploaded_by"`
	Review     models.DocumentReview `json:"review,omitempty"`
	Removable  bool                  `json:"removable"`
}

// CaseSummary holds the fields both audiences see identically.
type CaseSummary struct {
	ID               uuid.UUID         `json:"id"`
	Title            string            `json:"title"`
	Description      string            `json:"description"`
	ProcessType      string            `json:"process_type"`
	Urgency          string            `json:"urgency"`
	CurrentSituation string            `json:"current_situation"`
	Objectives       string            `json:"objectives"`
	Status           models.CaseStatus `json:"status"`
	StatusLabel      string            `json:"status_label"`
	Version          int               `json:"version"`
	CreatedAt        time.Time         `json:"created_at"`
	UpdatedAt        time.Time         `json:"updated_at"`
}

type ClientView struct {
	CaseSummary
	LawyerAssigned bool           `json:"lawyer_assigned"`
	Editable       bool           `json:"editable"`
	NextStep       string         `json:"next_step"`
	CanUpload      bool           `json:"can_upload"`
	UploadHint     string         `json:"upload_hint,omitempty"`
	Documents      []DocumentItem `json:"documents"`
	Timeline       []TimelineItem `json:"timeline"`
	Actions        []Action       `json:"actions"`
}

func (v ClientView) Audience() models.Actor { return models.ActorClient }
func (v ClientView) CaseID() uuid.UUID      { return v.ID }

type LawyerView struct {
	CaseSummary
	ClientID          uuid.UUID      `json:"client_id"`
	LawyerID          *uuid.UUID     `json:"lawyer_id,omitempty"`
	ClaimedBy         *uuid.UUID     `json:"claimed_by,omitempty"`
	DocumentsRequired bool           `json:"documents_required"`
	DocumentsBaseline int            `json:"documents_baseline"`
	PendingDocuments  int            `json:"pending_documents"`
	NextStep          string         `json:"next_step"`
	CanUpload         bool           `json:"can_upload"`
	Documents         []DocumentItem `json:"documents"`
	Timeline          []TimelineItem `json:"timeline"`
	Actions           []Action       `json:"actions"`
}

func (v LawyerView) Audience() models.Actor { return models.ActorLawyer }
func (v LawyerView) CaseID() uuid.UUID      { return v.ID }

/* ============================== Projections ============================== */

// For picks the projection matching the viewer's role. SYSTEM callers get
// the lawyer view, which is the complete one.
func For(cs *models.Case, role models.Actor) View {
	if role == models.ActorClient {
		return ForClient(cs)
	}
	return ForLawyer(cs)
}

// ForClient hides internal notes of SYSTEM entries and only offers the
// actions a client may take.
func ForClient(cs *models.Case) ClientView {
	v := ClientView{
		CaseSummary:    Summary(cs),
		LawyerAssigned: cs.LawyerID != nil,
		Editable:       cs.Status == models.StatusDraft,
		NextStep:       clientNextStep(cs),
		Documents:      documentItems(cs, models.ActorClient),
		Timeline:       timelineItems(cs, true),
		Actions:        actions(cs, models.ActorClient),
	}
	if err := documents.CanAttach(cs, models.ActorClient); err == nil {
		v.CanUpload = true
	} else {
		v.UploadHint = uploadHint(cs)
	}
	return v
}

// ForLawyer exposes the full timeline and only the actions whose guard
// currently holds.
func ForLawyer(cs *models.Case) LawyerView {
	return LawyerView{
		CaseSummary:       Summary(cs),
		ClientID:          cs.ClientID,
		LawyerID:          copyID(cs.LawyerID),
		ClaimedBy:         copyID(cs.ClaimedBy),
		DocumentsRequired: cs.DocumentsRequired,
		DocumentsBaseline: cs.DocumentsBaseline,
		PendingDocuments:  len(documents.Pending(cs)),
		NextStep:          lawyerNextStep(cs),
		CanUpload:         documents.CanAttach(cs, models.ActorLawyer) == nil,
		Documents:         documentItems(cs, models.ActorLawyer),
		Timeline:          timelineItems(cs, false),
		Actions:           actions(cs, models.ActorLawyer),
	}
}

// Timeline returns the role-filtered timeline, newest first.
func Timeline(cs *models.Case, role models.Actor) []TimelineItem {
	return timelineItems(cs, role == models.ActorClient)
}

// Summary is the part of a case both audiences see identically.
func Summary(cs *models.Case) CaseSummary {
	return CaseSummary{
		ID:               cs.ID,
		Title:            cs.Title,
		Description:      cs.Description,
		ProcessType:      cs.ProcessType,
		Urgency:          cs.Urgency,
		CurrentSituation: cs.CurrentSituation,
		Objectives:       cs.Objectives,
		Status:           cs.Status,
		StatusLabel:      StatusLabel(cs.Status),
		Version:          cs.Version,
		CreatedAt:        cs.CreatedAt,
		UpdatedAt:        cs.UpdatedAt,
	}
}

func timelineItems(cs *models.Case, hideSystemNotes bool) []TimelineItem {
	entries := timeline.Reversed(cs.Timeline)
	out := make([]TimelineItem, 0, len(entries))
	for _, e := range entries {
		item := TimelineItem{
			ID:          e.ID,
			Timestamp:   e.Timestamp,
			NewStatus:   e.NewStatus,
			Description: e.Description,
			Actor:       e.Actor,
			Notes:       e.Notes,
		}
		if e.PreviousStatus != nil {
			p := *e.PreviousStatus
			item.PreviousStatus = &p
		}
		if hideSystemNotes && e.Actor == models.ActorSystem {
			item.Notes = ""
		}
		out = append(out, item)
	}
	return out
}

func documentItems(cs *models.Case, role models.Actor) []DocumentItem {
	out := make([]DocumentItem, 0, len(cs.Documents))
	for _, d := range cs.Documents {
		out = append(out, DocumentItem{
			ID:         d.ID,
			Name:       d.Name,
			MimeType:   d.MimeType,
			SizeBytes:  d.SizeBytes,
			UploadedAt: d.UploadedAt,
			UploadedBy: d.UploadedBy,
			Review:     d.Review,
			Removable:  documents.CanDetach(cs, d, role) == nil,
		})
	}
	return out
}

func actions(cs *models.Case, role models.Actor) []Action {
	tmpl := statemachine.Request{
		Actor: models.ActorContext{Role: role},
		// assume the caller will supply a reason and decide on every pending
		// document; the action is offered when nothing else blocks it
		Notes:       "-",
		DocumentIDs: documents.PendingIDs(cs),
	}
	out := make([]Action, 0)
	for _, e := range statemachine.Available(cs, tmpl) {
		out = append(out, describeAction(e))
	}
	return out
}

func copyID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
