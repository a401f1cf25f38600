// Package statemachine holds the fixed transition table for legal cases and
// the single function that applies a transition to a case.
package statemachine

import (
	"github.com/hashicorp/go-set/v2"

	"github.com/aldoetobex/caseflow/pkg/models"
)

// Edge is one allowed (from, to) move with its actors, guard and the
// description written to the timeline.
type Edge struct {
	From        models.CaseStatus
	To          models.CaseStatus
	Actors      *set.Set[models.Actor]
	Guard       Guard
	Description string
}

// Allows reports whether actor may trigger the edge.
func (e Edge) Allows(actor models.Actor) bool { return e.Actors.Contains(actor) }

func actors(a ...models.Actor) *set.Set[models.Actor] { return set.From(a) }

var (
	clientOrSystem = actors(models.ActorClient, models.ActorSystem)
	lawyerOrSystem = actors(models.ActorLawyer, models.ActorSystem)
	lawyerOnly     = actors(models.ActorLawyer)
	clientOnly     = actors(models.ActorClient)
	systemOnly     = actors(models.ActorSystem)
)

var table = buildTable()

func buildTable() map[models.CaseStatus]map[models.CaseStatus]Edge {
	edges := []Edge{
		{models.StatusDraft, models.StatusPending, clientOrSystem, requiredFieldsPresent, "Case submitted for review"},
		{models.StatusPending, models.StatusInReview, systemOnly, claimedByLawyer, "Case opened for review by a lawyer"},
		{models.StatusInReview, models.StatusAccepted, lawyerOnly, nil, "Case accepted by lawyer"},
		{models.StatusInReview, models.StatusRejected, lawyerOnly, reasonProvided, "Case rejected by lawyer"},
		{models.StatusAccepted, models.StatusAwaitingDocuments, lawyerOnly, nil, "Documents requested from client"},
		{models.StatusAwaitingDocuments, models.StatusAwaitingDocumentReview, clientOnly, newDocumentsSubmitted, "Documents submitted for lawyer review"},
		{models.StatusAwaitingDocumentReview, models.StatusInProgress, lawyerOnly, pendingDocumentsApproved, "Documents approved, case in progress"},
		{models.StatusAwaitingDocumentReview, models.StatusAwaitingDocuments, lawyerOnly, documentsRejectedWithReason, "Documents rejected, resubmission requested"},
		{models.StatusAccepted, models.StatusInProgress, lawyerOnly, documentsNotRequired, "Case in progress, no documents required"},
		{models.StatusInProgress, models.StatusFiled, lawyerOnly, nil, "Case filed"},
		{models.StatusFiled, models.StatusConcluded, lawyerOrSystem, nil, "Case concluded"},
	}
	for _, s := range models.AllStatuses {
		if !s.Terminal() {
			edges = append(edges, Edge{s, models.StatusArchived, lawyerOnly, nil, "Case archived"})
		}
	}

	out := make(map[models.CaseStatus]map[models.CaseStatus]Edge)
	for _, e := range edges {
		if out[e.From] == nil {
			out[e.From] = make(map[models.CaseStatus]Edge)
		}
		out[e.From][e.To] = e
	}
	return out
}

// Lookup returns the edge for (from, to). Self-loops and moves out of a
// terminal status never exist.
func Lookup(from, to models.CaseStatus) (Edge, bool) {
	e, ok := table[from][to]
	return e, ok
}

// From lists the edges leaving status, in lifecycle order of their targets.
func From(status models.CaseStatus) []Edge {
	var out []Edge
	for _, to := range models.AllStatuses {
		if e, ok := table[status][to]; ok {
			out = append(out, e)
		}
	}
	return out
}

// Edges lists every edge of the table.
func Edges() []Edge {
	var out []Edge
	for _, from := range models.AllStatuses {
		out = append(out, From(from)...)
	}
	return out
}
