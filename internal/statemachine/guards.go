package statemachine

import (
	"strings"

	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/documents"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// Guard evaluates an edge precondition against the current case without
// side effects. It returns a *models.GuardError or nil.
type Guard func(cs *models.Case, req Request) error

// requiredFieldsPresent: title, processType and description must be filled.
func requiredFieldsPresent(cs *models.Case, _ Request) error {
	var missing []string
	if strings.TrimSpace(cs.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(cs.ProcessType) == "" {
		missing = append(missing, "process_type")
	}
	if strings.TrimSpace(cs.Description) == "" {
		missing = append(missing, "description")
	}
	if len(missing) > 0 {
		return models.NewGuardError(models.ReasonMissingRequiredFields, "missing %s", strings.Join(missing, ", "))
	}
	return nil
}

// claimedByLawyer: a lawyer has opened the case from the marketplace.
func claimedByLawyer(cs *models.Case, _ Request) error {
	if cs.ClaimedBy == nil {
		return models.NewGuardError(models.ReasonNotClaimed, "no lawyer has claimed the case")
	}
	return nil
}

func reasonProvided(_ *models.Case, req Request) error {
	if strings.TrimSpace(req.Notes) == "" {
		return models.NewGuardError(models.ReasonReasonRequired, "a reason must be provided in notes")
	}
	return nil
}

// newDocumentsSubmitted: strictly more documents than when they were requested.
func newDocumentsSubmitted(cs *models.Case, _ Request) error {
	if !documents.HasNewSinceRequest(cs) {
		return models.NewGuardError(models.ReasonNoNewDocuments,
			"case holds %d document(s), %d were present when documents were requested",
			len(cs.Documents), cs.DocumentsBaseline)
	}
	return nil
}

// pendingDocumentsApproved: at least one document approved, and every
// approved id refers to a document still pending review. No ids means every
// pending document.
func pendingDocumentsApproved(cs *models.Case, req Request) error {
	ids := reviewed(cs, req)
	if len(ids) == 0 {
		return models.NewGuardError(models.ReasonNoDocumentsApproved, "approve at least one pending document")
	}
	if !documents.AllPending(cs, ids) {
		return models.NewGuardError(models.ReasonDocumentNotPending, "only pending documents can be approved")
	}
	return nil
}

// documentsRejectedWithReason: a reason is mandatory; explicitly listed ids
// must be pending.
func documentsRejectedWithReason(cs *models.Case, req Request) error {
	if err := reasonProvided(cs, req); err != nil {
		return err
	}
	if !documents.AllPending(cs, req.DocumentIDs) {
		return models.NewGuardError(models.ReasonDocumentNotPending, "only pending documents can be rejected")
	}
	return nil
}

func documentsNotRequired(cs *models.Case, _ Request) error {
	if cs.DocumentsRequired {
		return models.NewGuardError(models.ReasonDocumentsRequired,
			"process type %q requires documents", cs.ProcessType)
	}
	return nil
}

// reviewed returns the documents a review decision applies to.
func reviewed(cs *models.Case, req Request) []uuid.UUID {
	if len(req.DocumentIDs) > 0 {
		return req.DocumentIDs
	}
	return documents.PendingIDs(cs)
}
