package projection

import (
	"strings"

	"github.com/aldoetobex/caseflow/internal/statemachine"
	"github.com/aldoetobex/caseflow/pkg/models"
)

var statusLabels = map[models.CaseStatus]string{
	models.StatusDraft:                  "Draft",
	models.StatusPending:                "Waiting for a lawyer",
	models.StatusInReview:               "Under review",
	models.StatusAccepted:               "Accepted",
	models.StatusRejected:               "Rejected",
	models.StatusAwaitingDocuments:      "Awaiting documents",
	models.StatusAwaitingDocumentReview: "Documents under review",
	models.StatusDocumentsSubmitted:     "Documents submitted",
	models.StatusInProgress:             "In progress",
	models.StatusFiled:                  "Filed",
	models.StatusConcluded:              "Concluded",
	models.StatusArchived:               "Archived",
}

// StatusLabel is the display name of a status.
func StatusLabel(s models.CaseStatus) string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

func clientNextStep(cs *models.Case) string {
	switch cs.Status {
	case models.StatusDraft:
		return "Complete the case details and submit it for review."
	case models.StatusPending:
		return "Your case is listed for lawyers. You will be notified when one picks it up."
	case models.StatusInReview:
		return "A lawyer is reviewing your case."
	case models.StatusAccepted:
		return "Your lawyer accepted the case and will tell you what is needed next."
	case models.StatusAwaitingDocuments:
		return "Upload the requested documents, then send them for review."
	case models.StatusAwaitingDocumentReview:
		return "Your lawyer is reviewing the documents you sent."
	case models.StatusInProgress:
		return "Your lawyer is working on the case."
	case models.StatusFiled:
		return "The case has been filed with the court."
	case models.StatusRejected:
		return "The case was not accepted. You can create a new case."
	}
	return "No further action is needed."
}

func lawyerNextStep(cs *models.Case) string {
	switch cs.Status {
	case models.StatusPending:
		return "Claim the case from the marketplace to review it."
	case models.StatusInReview:
		return "Accept the case or reject it with a reason."
	case models.StatusAccepted:
		if cs.DocumentsRequired {
			return "Request the documents needed for this process type."
		}
		return "Start working on the case or request supporting documents."
	case models.StatusAwaitingDocuments:
		return "Waiting for the client to upload documents."
	case models.StatusAwaitingDocumentReview:
		return "Approve or reject the pending documents."
	case models.StatusInProgress:
		return "Mark the case as filed once the petition is protocolled."
	case models.StatusFiled:
		return "Conclude the case when the court rules."
	}
	return ""
}

// uploadHint explains to a client why uploading is unavailable.
func uploadHint(cs *models.Case) string {
	switch {
	case cs.Status == models.StatusDraft || cs.Status == models.StatusPending || cs.Status == models.StatusInReview:
		return "Documents can be uploaded once a lawyer accepts the case."
	case cs.Status.Terminal():
		return "This case is closed. Documents can no longer be changed."
	default:
		return "Your lawyer manages the documents at this stage."
	}
}

var actionLabels = map[models.CaseStatus]string{
	models.StatusPending:                "Submit for review",
	models.StatusInReview:               "Open for review",
	models.StatusAccepted:               "Accept case",
	models.StatusRejected:               "Reject case",
	models.StatusAwaitingDocuments:      "Request documents",
	models.StatusAwaitingDocumentReview: "Send documents for review",
	models.StatusInProgress:             "Start work",
	models.StatusFiled:                  "Mark as filed",
	models.StatusConcluded:              "Conclude case",
	models.StatusArchived:               "Archive case",
}

func describeAction(e statemachine.Edge) Action {
	a := Action{
		Key:    strings.ToLower(string(e.From) + "__" + string(e.To)),
		Label:  actionLabels[e.To],
		Target: e.To,
	}
	switch {
	case e.To == models.StatusRejected:
		a.RequiresNotes = true
	case e.From == models.StatusAwaitingDocumentReview && e.To == models.StatusInProgress:
		a.Label = "Approve documents"
		a.RequiresDocuments = true
	case e.From == models.StatusAwaitingDocumentReview && e.To == models.StatusAwaitingDocuments:
		a.Label = "Reject documents"
		a.RequiresNotes = true
		a.RequiresDocuments = true
	}
	return a
}
