package workflow

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/documents"
	"github.com/aldoetobex/caseflow/internal/metrics"
	"github.com/aldoetobex/caseflow/internal/projection"
	"github.com/aldoetobex/caseflow/internal/statemachine"
	"github.com/aldoetobex/caseflow/internal/storage"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// SubmitDocuments attaches documents to a case. Either all of them are
// attached or none. It changes the status only when SubmitForReview is set.
func (s *Service) SubmitDocuments(ctx context.Context, actor models.ActorContext, in SubmitDocumentsInput) (projection.View, []models.Document, error) {
	if len(in.Documents) == 0 {
		return nil, nil, errors.Wrap(models.ErrValidation, "at least one document is required")
	}
	for i, d := range in.Documents {
		if !storage.OwnsKey(in.CaseID, d.Content) {
			return nil, nil, errors.Wrapf(models.ErrValidation,
				"document %d: content must be an object key under %s", i, storage.CasePrefix(in.CaseID))
		}
	}

	var added []models.Document
	var from models.CaseStatus
	cs, err := s.mutate(ctx, in.CaseID, actor, in.ExpectedVersion, Authorize, func(work *models.Case, now time.Time) error {
		docs := make([]models.Document, 0, len(in.Documents))
		for _, d := range in.Documents {
			docs = append(docs, models.Document{
				ID:        d.ID,
				Name:      d.Name,
				MimeType:  d.MimeType,
				SizeBytes: d.SizeBytes,
				Content:   d.Content,
			})
		}
		var err error
		added, err = documents.AttachAll(work, docs, actor, now)
		metrics.DocumentOp("attach", actor.Role, err)
		if err != nil {
			return err
		}

		if in.SubmitForReview {
			from = work.Status
			_, err = statemachine.Apply(work, statemachine.Request{
				To:    models.StatusAwaitingDocumentReview,
				Actor: actor,
			}, now)
		}
		return err
	})

	if in.SubmitForReview && cs != nil && from != "" {
		metrics.Transition(from, models.StatusAwaitingDocumentReview, actor.Role, err)
		s.logTransition(cs, from, models.StatusAwaitingDocumentReview, actor, err)
	}
	if err != nil {
		return view(cs, actor), nil, err
	}
	return view(cs, actor), added, nil
}

// RemoveDocument detaches one document and returns it so the caller can
// delete the blob behind it.
func (s *Service) RemoveDocument(ctx context.Context, actor models.ActorContext, documentID uuid.UUID, expected *int) (projection.View, models.Document, error) {
	caseID, err := s.store.CaseIDForDocument(ctx, documentID)
	if err != nil {
		return nil, models.Document{}, err
	}

	var removed models.Document
	cs, err := s.mutate(ctx, caseID, actor, expected, hideDocument(Authorize), func(work *models.Case, _ time.Time) error {
		var err error
		removed, err = documents.Detach(work, documentID, actor.Role)
		return err
	})
	metrics.DocumentOp("detach", actor.Role, err)
	if err != nil {
		return view(cs, actor), models.Document{}, err
	}
	return view(cs, actor), removed, nil
}

// DocumentForDownload returns a document the caller may read.
func (s *Service) DocumentForDownload(ctx context.Context, actor models.ActorContext, documentID uuid.UUID) (models.Document, error) {
	caseID, err := s.store.CaseIDForDocument(ctx, documentID)
	if err != nil {
		return models.Document{}, err
	}
	cs, err := s.load(ctx, caseID, actor, hideDocument(Authorize))
	if err != nil {
		return models.Document{}, err
	}
	i := cs.DocumentByID(documentID)
	if i < 0 {
		return models.Document{}, models.ErrDocumentNotFound
	}
	return cs.Documents[i], nil
}

// hideDocument reports a tenancy failure as a missing document, so callers
// outside the case cannot learn which document ids exist.
func hideDocument(authz authorizer) authorizer {
	return func(cs *models.Case, actor models.ActorContext) error {
		if err := authz(cs, actor); err != nil {
			if errors.Is(err, models.ErrNotCaseParticipant) {
				return models.ErrDocumentNotFound
			}
			return err
		}
		return nil
	}
}
