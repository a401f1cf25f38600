package models

import (
	"time"

	"github.com/google/uuid"
)

/* =============================== Enums ================================== */

// Actor identifies who originates a transition or a document operation.
type Actor string

const (
	ActorClient Actor = "CLIENT"
	ActorLawyer Actor = "LAWYER"
	ActorSystem Actor = "SYSTEM"
)

// Valid reports whether a is one of the known actors.
func (a Actor) Valid() bool {
	switch a {
	case ActorClient, ActorLawyer, ActorSystem:
		return true
	}
	return false
}

// CaseStatus is the single source of truth for a case's workflow position.
type CaseStatus string

const (
	StatusDraft                  CaseStatus = "DRAFT"
	StatusPending                CaseStatus = "PENDING"
	StatusInReview               CaseStatus = "IN_REVIEW"
	StatusAccepted               CaseStatus = "ACCEPTED"
	StatusRejected               CaseStatus = "REJECTED"
	StatusAwaitingDocuments      CaseStatus = "AWAITING_DOCUMENTS"
	StatusAwaitingDocumentReview CaseStatus = "AWAITING_DOCUMENT_REVIEW"
	StatusDocumentsSubmitted     CaseStatus = "DOCUMENTS_SUBMITTED"
	StatusInProgress             CaseStatus = "IN_PROGRESS"
	StatusFiled                  CaseStatus = "FILED"
	StatusConcluded              CaseStatus = "CONCLUDED"
	StatusArchived               CaseStatus = "ARCHIVED"
)

// AllStatuses lists every status in lifecycle order.
var AllStatuses = []CaseStatus{
	StatusDraft, StatusPending, StatusInReview, StatusAccepted, StatusRejected,
	StatusAwaitingDocuments, StatusAwaitingDocumentReview, StatusDocumentsSubmitted,
	StatusInProgress, StatusFiled, StatusConcluded, StatusArchived,
}

// Valid reports whether s is a member of the closed status enum.
func (s CaseStatus) Valid() bool {
	for _, v := range AllStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// Terminal statuses have no outgoing transitions.
func (s CaseStatus) Terminal() bool {
	return s == StatusConcluded || s == StatusArchived || s == StatusRejected
}

// DocumentReview is the lawyer's decision on a client-submitted document.
// Lawyer-attached documents are never reviewed and keep ReviewNone.
type DocumentReview string

const (
	ReviewNone     DocumentReview = ""
	ReviewPending  DocumentReview = "PENDING"
	ReviewApproved DocumentReview = "APPROVED"
	ReviewRejected DocumentReview = "REJECTED"
)

/* =============================== Entities =============================== */

// ActorContext is the authenticated caller as supplied by the identity provider.
type ActorContext struct {
	Role Actor     `json:"role"`
	ID   uuid.UUID `json:"id"`
}

// SystemActor is the context used for automated transitions.
func SystemActor() ActorContext { return ActorContext{Role: ActorSystem} }

// Case is the canonical legal-matter record. Client and lawyer views are
// projections of it and are never stored.
type Case struct {
	ID       uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClientID uuid.UUID  `gorm:"type:uuid;not null;index" json:"client_id"`
	LawyerID *uuid.UUID `gorm:"type:uuid;index" json:"lawyer_id,omitempty"`
	// ClaimedBy is the lawyer reviewing the case before acceptance.
	ClaimedBy *uuid.UUID `gorm:"type:uuid;index" json:"claimed_by,omitempty"`

	Title            string `gorm:"not null" json:"title"`
	Description      string `gorm:"type:text" json:"description"`
	ProcessType      string `gorm:"type:varchar(60);index" json:"process_type"`
	Urgency          string `gorm:"type:varchar(20)" json:"urgency"`
	CurrentSituation string `gorm:"type:text" json:"current_situation"`
	Objectives       string `gorm:"type:text" json:"objectives"`

	Status            CaseStatus `gorm:"type:varchar(40);not null;index" json:"status"`
	DocumentsRequired bool       `gorm:"not null" json:"documents_required"`
	// DocumentsBaseline is the document count at the last time the lawyer
	// requested documents.
	DocumentsBaseline int `gorm:"not null" json:"documents_baseline"`
	Version           int `gorm:"not null" json:"version"`

	Documents []Document      `gorm:"foreignKey:CaseID" json:"documents"`
	Timeline  []TimelineEntry `gorm:"foreignKey:CaseID" json:"timeline"`

	CreatedAt time.Time `gorm:"autoCreateTime:false" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime:false" json:"updated_at"`
}

// Clone returns a copy that shares no slices or pointers with c.
func (c *Case) Clone() *Case {
	out := *c
	out.LawyerID = cloneID(c.LawyerID)
	out.ClaimedBy = cloneID(c.ClaimedBy)
	out.Documents = append([]Document(nil), c.Documents...)
	if c.Timeline == nil {
		return &out
	}
	out.Timeline = make([]TimelineEntry, len(c.Timeline))
	for i, e := range c.Timeline {
		out.Timeline[i] = e
		if e.PreviousStatus != nil {
			p := *e.PreviousStatus
			out.Timeline[i].PreviousStatus = &p
		}
		out.Timeline[i].ActorID = cloneID(e.ActorID)
	}
	return &out
}

// DocumentByID returns the index of the document or -1.
func (c *Case) DocumentByID(id uuid.UUID) int {
	for i := range c.Documents {
		if c.Documents[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneID(id *uuid.UUID) *uuid.UUID {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// Document is an attached file reference. Content is an opaque blob key.
type Document struct {
	ID         uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID     uuid.UUID      `gorm:"type:uuid;not null;index" json:"case_id"`
	Position   int            `gorm:"not null" json:"position"`
	Name       string         `gorm:"not null" json:"name"`
	MimeType   string         `gorm:"type:varchar(100);not null" json:"mime_type"`
	SizeBytes  int64          `gorm:"not null" json:"size_bytes"`
	Content    string         `gorm:"not null;uniqueIndex" json:"content"`
	UploadedBy Actor          `gorm:"type:varchar(20);not null" json:"uploaded_by"`
	UploaderID uuid.UUID      `gorm:"type:uuid" json:"uploader_id"`
	Review     DocumentReview `gorm:"type:varchar(20)" json:"review,omitempty"`
	UploadedAt time.Time      `gorm:"autoCreateTime:false" json:"uploaded_at"`
}

// TimelineEntry is one append-only audit record, created only by the state machine.
type TimelineEntry struct {
	ID             uuid.UUID   `gorm:"type:uuid;primaryKey" json:"id"`
	CaseID         uuid.UUID   `gorm:"type:uuid;not null;index" json:"case_id"`
	Seq            int         `gorm:"not null" json:"seq"`
	Timestamp      time.Time   `gorm:"not null" json:"timestamp"`
	PreviousStatus *CaseStatus `gorm:"type:varchar(40)" json:"previous_status,omitempty"`
	NewStatus      CaseStatus  `gorm:"type:varchar(40);not null" json:"new_status"`
	Description    string      `gorm:"not null" json:"description"`
	Actor          Actor       `gorm:"type:varchar(20);not null" json:"actor"`
	ActorID        *uuid.UUID  `gorm:"type:uuid" json:"actor_id,omitempty"`
	Notes          string      `gorm:"type:text" json:"notes,omitempty"`
}

// CaseEvent is emitted to the notification service after every accepted transition.
type CaseEvent struct {
	CaseID         uuid.UUID   `json:"case_id"`
	PreviousStatus *CaseStatus `json:"previous_status,omitempty"`
	NewStatus      CaseStatus  `json:"new_status"`
	Actor          Actor       `json:"actor"`
	Timestamp      time.Time   `json:"timestamp"`
}

// EventFromEntry builds the domain event for an accepted transition.
func EventFromEntry(e TimelineEntry) CaseEvent {
	return CaseEvent{
		CaseID:         e.CaseID,
		PreviousStatus: e.PreviousStatus,
		NewStatus:      e.NewStatus,
		Actor:          e.Actor,
		Timestamp:      e.Timestamp,
	}
}
