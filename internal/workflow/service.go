// Package workflow is the entry point callers use to create cases, request
// transitions and manage documents. It is the only component that persists
// cases, and every mutation runs as one unit of work per case: load,
// validate, mutate a copy, save with a version check.
package workflow

import (
	"context"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/projection"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// authorizer decides whether actor may operate on cs.
type authorizer func(cs *models.Case, actor models.ActorContext) error

// mutation changes work in place. It must not touch the store.
type mutation func(work *models.Case, now time.Time) error

// Authorize is the tenancy rule: SYSTEM may act on any case, a client only
// on its own cases, a lawyer only on the case assigned to them (or claimed
// by them while no lawyer is assigned yet).
func Authorize(cs *models.Case, actor models.ActorContext) error {
	switch actor.Role {
	case models.ActorSystem:
		return nil
	case models.ActorClient:
		if cs.ClientID == actor.ID {
			return nil
		}
	case models.ActorLawyer:
		if cs.LawyerID != nil && *cs.LawyerID == actor.ID {
			return nil
		}
		if cs.LawyerID == nil && cs.ClaimedBy != nil && *cs.ClaimedBy == actor.ID {
			return nil
		}
	}
	return models.ErrNotCaseParticipant
}

// load fetches a case and checks tenancy.
func (s *Service) load(ctx context.Context, caseID uuid.UUID, actor models.ActorContext, authz authorizer) (*models.Case, error) {
	if !actor.Role.Valid() {
		return nil, errors.Wrapf(models.ErrForbidden, "unknown actor %q", actor.Role)
	}
	cs, err := s.store.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	if err := authz(cs, actor); err != nil {
		return nil, err
	}
	return cs, nil
}

// mutate runs fn against caseID as one atomic unit. On failure the returned
// case is the current, unmodified one (nil when it could not be read or the
// caller may not see it). New timeline entries are published after commit.
func (s *Service) mutate(
	ctx context.Context,
	caseID uuid.UUID,
	actor models.ActorContext,
	expected *int,
	authz authorizer,
	fn mutation,
) (*models.Case, error) {
	cs, err := s.load(ctx, caseID, actor, authz)
	if err != nil {
		return nil, err
	}

	observed := cs.Version
	if expected != nil {
		if *expected != cs.Version {
			return cs, errors.Wrapf(models.ErrStaleVersion, "expected version %d, case is at %d", *expected, cs.Version)
		}
		observed = *expected
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.cfg.LockTimeout)
	defer cancel()
	release, err := s.locker.Lock(lockCtx, caseID.String())
	if err != nil {
		return cs, errors.WithSecondaryError(models.ErrCaseBusy, err)
	}
	defer release()

	// Another request may have committed between the first read and the lock.
	fresh, err := s.store.Get(ctx, caseID)
	if err != nil {
		return cs, err
	}
	if fresh.Version != observed {
		return fresh, errors.Wrapf(models.ErrStaleVersion, "case moved from version %d to %d", observed, fresh.Version)
	}
	if err := authz(fresh, actor); err != nil {
		return nil, err
	}

	work := fresh.Clone()
	appended := len(work.Timeline)
	if err := fn(work, s.nowFn()); err != nil {
		return fresh, err
	}

	if err := s.store.Save(ctx, work, fresh.Version); err != nil {
		if errors.Is(err, models.ErrConflict) {
			if current, gerr := s.store.Get(ctx, caseID); gerr == nil {
				return current, err
			}
		}
		return fresh, err
	}
	release()

	s.publish(ctx, work.Timeline[appended:])
	return work, nil
}

// publish emits one event per committed entry. Failures are logged by the
// publisher and never undo the commit.
func (s *Service) publish(ctx context.Context, entries []models.TimelineEntry) {
	for _, e := range entries {
		if err := s.publisher.Publish(ctx, models.EventFromEntry(e)); err != nil {
			s.log.Warn("case event not delivered",
				slog.String("case_id", e.CaseID.String()),
				slog.String("to", string(e.NewStatus)),
				slog.String("error", err.Error()))
		}
	}
}

// view projects cs for actor, or returns nil for a nil case.
func view(cs *models.Case, actor models.ActorContext) projection.View {
	if cs == nil {
		return nil
	}
	return projection.For(cs, actor.Role)
}

func (s *Service) logTransition(cs *models.Case, from, to models.CaseStatus, actor models.ActorContext, err error) {
	attrs := []slog.Attr{
		slog.String("case_id", cs.ID.String()),
		slog.String("from", string(from)),
		slog.String("to", string(to)),
		slog.String("actor", string(actor.Role)),
	}
	if err == nil {
		s.log.Info("transition applied", attrs...)
		return
	}
	attrs = append(attrs, slog.String("code", models.CodeOf(err)), slog.String("error", err.Error()))
	if reason, ok := models.ReasonOf(err); ok {
		attrs = append(attrs, slog.String("reason", string(reason)))
	}
	s.log.Warn("transition rejected", attrs...)
}
