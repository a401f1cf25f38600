// Package documents tracks the files attached to a case and decides who may
// add or remove them at each point of the lifecycle.
package documents

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v2"

	"github.com/aldoetobex/caseflow/pkg/models"
)

// ClientMutable are the statuses in which a client may add documents, and in
// which anyone may remove the documents they own.
var ClientMutable = set.From([]models.CaseStatus{
	models.StatusAccepted,
	models.StatusAwaitingDocuments,
	models.StatusAwaitingDocumentReview,
})

/* ============================== Permissions ============================== */

// CanAttach reports whether actor may add a document to the case right now.
func CanAttach(cs *models.Case, actor models.Actor) error {
	switch actor {
	case models.ActorClient:
		if !ClientMutable.Contains(cs.Status) {
			return models.NewGuardError(models.ReasonDocumentsNotMutable,
				"clients cannot add documents while the case is %s", cs.Status)
		}
		return nil
	case models.ActorLawyer:
		if cs.Status.Terminal() {
			return models.NewGuardError(models.ReasonDocumentsNotMutable,
				"case is %s", cs.Status)
		}
		return nil
	default:
		return errors.Wrapf(models.ErrForbidden, "%s cannot attach documents", actor)
	}
}

// CanDetach reports whether actor may remove doc from the case right now.
// The client lock during document review is checked first.
func CanDetach(cs *models.Case, doc models.Document, actor models.Actor) error {
	if actor != models.ActorClient && actor != models.ActorLawyer {
		return errors.Wrapf(models.ErrForbidden, "%s cannot remove documents", actor)
	}
	if cs.Status == models.StatusAwaitingDocumentReview && actor == models.ActorClient {
		return models.NewGuardError(models.ReasonDocumentsLocked,
			"documents are frozen while the lawyer reviews them")
	}
	if !ClientMutable.Contains(cs.Status) {
		return models.NewGuardError(models.ReasonDocumentsNotMutable,
			"documents cannot be removed while the case is %s", cs.Status)
	}
	if doc.UploadedBy != actor {
		return errors.Wrapf(models.ErrForbidden, "document was attached by %s", doc.UploadedBy)
	}
	return nil
}

/* ============================== Mutations ================================ */

// Attach appends doc to the case. It never changes the case status.
func Attach(cs *models.Case, doc models.Document, actor models.ActorContext, now time.Time) (models.Document, error) {
	if err := CanAttach(cs, actor.Role); err != nil {
		return models.Document{}, err
	}
	if strings.TrimSpace(doc.Name) == "" || strings.TrimSpace(doc.MimeType) == "" || strings.TrimSpace(doc.Content) == "" {
		return models.Document{}, errors.Wrap(models.ErrValidation, "document name, mime type and content are required")
	}
	if doc.SizeBytes < 0 {
		return models.Document{}, errors.Wrap(models.ErrValidation, "document size cannot be negative")
	}
	if doc.ID == uuid.Nil {
		doc.ID = uuid.New()
	}
	if cs.DocumentByID(doc.ID) >= 0 {
		return models.Document{}, errors.Wrapf(models.ErrDocumentTaken, "document %s already attached", doc.ID)
	}
	for _, d := range cs.Documents {
		if d.Content == doc.Content {
			return models.Document{}, errors.Wrapf(models.ErrDocumentTaken, "content %q is already attached as %s", doc.Content, d.ID)
		}
	}
	if doc.UploadedAt.IsZero() {
		doc.UploadedAt = now
	}

	doc.CaseID = cs.ID
	doc.UploadedBy = actor.Role
	doc.UploaderID = actor.ID
	doc.Position = nextPosition(cs)
	doc.Review = models.ReviewNone
	if actor.Role == models.ActorClient {
		doc.Review = models.ReviewPending
	}

	cs.Documents = append(cs.Documents, doc)
	return doc, nil
}

// AttachAll attaches every document or none of them.
func AttachAll(cs *models.Case, docs []models.Document, actor models.ActorContext, now time.Time) ([]models.Document, error) {
	if len(docs) == 0 {
		return nil, errors.Wrap(models.ErrValidation, "at least one document is required")
	}
	before := len(cs.Documents)
	out := make([]models.Document, 0, len(docs))
	for _, d := range docs {
		added, err := Attach(cs, d, actor, now)
		if err != nil {
			cs.Documents = cs.Documents[:before]
			return nil, err
		}
		out = append(out, added)
	}
	return out, nil
}

// Detach removes the document and returns it.
func Detach(cs *models.Case, documentID uuid.UUID, actor models.Actor) (models.Document, error) {
	i := cs.DocumentByID(documentID)
	if i < 0 {
		return models.Document{}, models.ErrDocumentNotFound
	}
	doc := cs.Documents[i]
	if err := CanDetach(cs, doc, actor); err != nil {
		return models.Document{}, err
	}
	docs := make([]models.Document, 0, len(cs.Documents)-1)
	docs = append(docs, cs.Documents[:i]...)
	docs = append(docs, cs.Documents[i+1:]...)
	cs.Documents = docs
	// Reviewed documents were all counted into the baseline when the lawyer
	// last requested documents, so it shrinks with them.
	if doc.Review == models.ReviewApproved || doc.Review == models.ReviewRejected {
		if cs.DocumentsBaseline > 0 {
			cs.DocumentsBaseline--
		}
	}
	return doc, nil
}

// MarkReviewed records the lawyer's decision on the given documents.
func MarkReviewed(cs *models.Case, ids []uuid.UUID, decision models.DocumentReview) {
	for _, id := range ids {
		if i := cs.DocumentByID(id); i >= 0 {
			cs.Documents[i].Review = decision
		}
	}
}

/* ================================ Queries ================================ */

// Pending returns client documents that still await a lawyer decision.
func Pending(cs *models.Case) []models.Document {
	var out []models.Document
	for _, d := range cs.Documents {
		if d.Review == models.ReviewPending {
			out = append(out, d)
		}
	}
	return out
}

// PendingIDs is Pending reduced to ids.
func PendingIDs(cs *models.Case) []uuid.UUID {
	pending := Pending(cs)
	ids := make([]uuid.UUID, 0, len(pending))
	for _, d := range pending {
		ids = append(ids, d.ID)
	}
	return ids
}

// AllPending reports whether every id refers to a pending document.
func AllPending(cs *models.Case, ids []uuid.UUID) bool {
	for _, id := range ids {
		i := cs.DocumentByID(id)
		if i < 0 || cs.Documents[i].Review != models.ReviewPending {
			return false
		}
	}
	return true
}

// HasNewSinceRequest reports whether the case holds strictly more documents
// than when the lawyer last requested them, at least one of them a client
// document still awaiting review. Lawyer documents alone never satisfy it.
func HasNewSinceRequest(cs *models.Case) bool {
	return len(cs.Documents) > cs.DocumentsBaseline && len(Pending(cs)) > 0
}

func nextPosition(cs *models.Case) int {
	pos := 0
	for _, d := range cs.Documents {
		if d.Position > pos {
			pos = d.Position
		}
	}
	return pos + 1
}
