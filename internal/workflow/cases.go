package workflow

import (
	"context"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/metrics"
	"github.com/aldoetobex/caseflow/internal/projection"
	"github.com/aldoetobex/caseflow/internal/statemachine"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// CreateCase opens a DRAFT case owned by the calling client. With Submit
// set, the case is submitted in the same unit of work and nothing is stored
// if submission fails.
func (s *Service) CreateCase(ctx context.Context, actor models.ActorContext, in CreateCaseInput) (projection.View, error) {
	if actor.Role != models.ActorClient {
		return nil, errors.Wrap(models.ErrForbidden, "only clients create cases")
	}
	intake, err := s.classifier.Classify(ctx, Intake{
		Title:       in.Title,
		Description: in.Description,
		ProcessType: in.ProcessType,
	})
	if err != nil {
		return nil, errors.Wrap(err, "classify intake")
	}
	if intake.Title == "" {
		return nil, errors.Wrap(models.ErrValidation, "title is required")
	}

	now := s.nowFn()
	cs := &models.Case{
		ID:                uuid.New(),
		ClientID:          actor.ID,
		Title:             intake.Title,
		Description:       intake.Description,
		ProcessType:       intake.ProcessType,
		Urgency:           strings.TrimSpace(in.Urgency),
		CurrentSituation:  strings.TrimSpace(in.CurrentSituation),
		Objectives:        strings.TrimSpace(in.Objectives),
		Status:            models.StatusDraft,
		DocumentsRequired: s.policy.DocumentsRequired(intake.ProcessType),
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if in.Submit {
		_, err := statemachine.Apply(cs, statemachine.Request{To: models.StatusPending, Actor: actor}, now)
		metrics.Transition(models.StatusDraft, models.StatusPending, actor.Role, err)
		s.logTransition(cs, models.StatusDraft, models.StatusPending, actor, err)
		if err != nil {
			return nil, err
		}
	}

	if err := s.store.Create(ctx, cs); err != nil {
		return nil, err
	}
	s.publish(ctx, cs.Timeline)
	return projection.For(cs, actor.Role), nil
}

// RequestTransition asks the state machine to move a case. On any failure
// the current case view is returned with the error.
func (s *Service) RequestTransition(ctx context.Context, actor models.ActorContext, in TransitionInput) (projection.View, error) {
	if in.ClaimFor != nil && actor.Role != models.ActorSystem {
		return nil, errors.Wrap(models.ErrForbidden, "only SYSTEM records claims")
	}
	if in.ClaimFor != nil && in.To != models.StatusInReview {
		return nil, errors.Wrapf(models.ErrValidation, "a claim can only accompany a move to %s", models.StatusInReview)
	}

	var from models.CaseStatus
	cs, err := s.mutate(ctx, in.CaseID, actor, in.ExpectedVersion, Authorize, func(work *models.Case, now time.Time) error {
		from = work.Status
		if in.ClaimFor != nil && in.To == models.StatusInReview && work.ClaimedBy == nil {
			id := *in.ClaimFor
			work.ClaimedBy = &id
		}
		_, err := statemachine.Apply(work, statemachine.Request{
			To:          in.To,
			Actor:       actor,
			Notes:       strings.TrimSpace(in.Notes),
			DocumentIDs: in.DocumentIDs,
		}, now)
		return err
	})

	if cs != nil {
		if from == "" {
			from = cs.Status
		}
		metrics.Transition(from, in.To, actor.Role, err)
		s.logTransition(cs, from, in.To, actor, err)
	}
	return view(cs, actor), err
}

// ClaimCase lets a lawyer pick a PENDING case from the marketplace. The
// claim is recorded and the case moves to IN_REVIEW as SYSTEM.
func (s *Service) ClaimCase(ctx context.Context, actor models.ActorContext, caseID uuid.UUID) (projection.View, error) {
	if actor.Role != models.ActorLawyer {
		return nil, errors.Wrap(models.ErrForbidden, "only lawyers claim cases")
	}

	// Drafts are private; any other case can be claimed or reports why not.
	// The view is only returned to the lawyer holding the claim.
	authz := func(cs *models.Case, _ models.ActorContext) error {
		if cs.Status == models.StatusDraft {
			return models.ErrNotCaseParticipant
		}
		return nil
	}

	cs, err := s.mutate(ctx, caseID, actor, nil, authz, func(work *models.Case, now time.Time) error {
		if work.ClaimedBy != nil || work.LawyerID != nil {
			return models.NewGuardError(models.ReasonAlreadyClaimed, "case was already claimed")
		}
		id := actor.ID
		work.ClaimedBy = &id
		_, err := statemachine.Apply(work, statemachine.Request{
			To:    models.StatusInReview,
			Actor: models.SystemActor(),
			Notes: "claimed from marketplace by lawyer " + actor.ID.String(),
		}, now)
		return err
	})

	if cs != nil {
		metrics.Transition(models.StatusPending, models.StatusInReview, models.ActorSystem, err)
		s.logTransition(cs, models.StatusPending, models.StatusInReview, models.SystemActor(), err)
	}
	if cs != nil && Authorize(cs, actor) != nil {
		return nil, err
	}
	return view(cs, actor), err
}

// UpdateDetails edits descriptive fields while the case is still a DRAFT.
// It is not a transition and writes no timeline entry.
func (s *Service) UpdateDetails(ctx context.Context, actor models.ActorContext, in UpdateDetailsInput) (projection.View, error) {
	if actor.Role != models.ActorClient {
		return nil, errors.Wrap(models.ErrForbidden, "only the owning client edits case details")
	}

	cs, err := s.mutate(ctx, in.CaseID, actor, in.ExpectedVersion, Authorize, func(work *models.Case, now time.Time) error {
		if work.Status != models.StatusDraft {
			return models.NewGuardError(models.ReasonCaseNotEditable, "case is %s", work.Status)
		}

		intake := Intake{Title: work.Title, Description: work.Description, ProcessType: work.ProcessType}
		set := func(dst *string, v *string) {
			if v != nil {
				*dst = *v
			}
		}
		set(&intake.Title, in.Title)
		set(&intake.Description, in.Description)
		set(&intake.ProcessType, in.ProcessType)
		intake, err := s.classifier.Classify(ctx, intake)
		if err != nil {
			return errors.Wrap(err, "classify intake")
		}
		if intake.Title == "" {
			return errors.Wrap(models.ErrValidation, "title cannot be empty")
		}

		if intake.ProcessType != work.ProcessType {
			work.DocumentsRequired = s.policy.DocumentsRequired(intake.ProcessType)
		}
		work.Title, work.Description, work.ProcessType = intake.Title, intake.Description, intake.ProcessType
		set(&work.Urgency, trimmed(in.Urgency))
		set(&work.CurrentSituation, trimmed(in.CurrentSituation))
		set(&work.Objectives, trimmed(in.Objectives))
		work.UpdatedAt = now
		return nil
	})
	return view(cs, actor), err
}

func trimmed(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	return &t
}
