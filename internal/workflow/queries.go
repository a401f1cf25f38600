package workflow

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/projection"
	"github.com/aldoetobex/caseflow/internal/repository"
	"github.com/aldoetobex/caseflow/internal/timeline"
	"github.com/aldoetobex/caseflow/pkg/models"
	"github.com/aldoetobex/caseflow/pkg/sanitize"
	"github.com/aldoetobex/caseflow/pkg/utils"
)

const previewLength = 240

// GetCaseView returns the projection matching the caller's role.
func (s *Service) GetCaseView(ctx context.Context, actor models.ActorContext, caseID uuid.UUID) (projection.View, error) {
	cs, err := s.load(ctx, caseID, actor, Authorize)
	if err != nil {
		return nil, err
	}
	return projection.For(cs, actor.Role), nil
}

// Timeline returns the role-filtered timeline, newest first.
func (s *Service) Timeline(ctx context.Context, actor models.ActorContext, caseID uuid.UUID) ([]projection.TimelineItem, error) {
	cs, err := s.load(ctx, caseID, actor, Authorize)
	if err != nil {
		return nil, err
	}
	return projection.Timeline(cs, actor.Role), nil
}

// StatusAt reconstructs the status a case held at ts.
func (s *Service) StatusAt(ctx context.Context, actor models.ActorContext, caseID uuid.UUID, ts time.Time) (models.CaseStatus, error) {
	cs, err := s.load(ctx, caseID, actor, Authorize)
	if err != nil {
		return "", err
	}
	status, ok := timeline.StatusAt(cs, ts)
	if !ok {
		return "", errors.Wrapf(models.ErrValidation, "case did not exist at %s", ts.Format(time.RFC3339))
	}
	return status, nil
}

// ListCases pages through the caller's cases: a client's own cases, or the
// cases assigned to or claimed by a lawyer.
func (s *Service) ListCases(ctx context.Context, actor models.ActorContext, in ListInput) (CasePage, error) {
	page, size := utils.NormalizePage(in.Page, in.PageSize)
	f := repository.ListFilter{Statuses: in.Statuses, Page: page, PageSize: size}

	switch actor.Role {
	case models.ActorClient:
		id := actor.ID
		f.ClientID = &id
	case models.ActorLawyer:
		id := actor.ID
		f.LawyerID = &id
	case models.ActorSystem:
	default:
		return CasePage{}, errors.Wrapf(models.ErrForbidden, "unknown actor %q", actor.Role)
	}

	list, total, err := s.store.List(ctx, f)
	if err != nil {
		return CasePage{}, err
	}
	items := make([]projection.CaseSummary, 0, len(list))
	for i := range list {
		items = append(items, projection.Summary(&list[i]))
	}
	return CasePage{Page: page, PageSize: size, Total: total, Pages: utils.Pages(total, size), Items: items}, nil
}

// Marketplace lists PENDING, unclaimed cases for lawyers without client
// identity and with contact details redacted from the preview.
func (s *Service) Marketplace(ctx context.Context, actor models.ActorContext, in MarketplaceInput) (MarketPage, error) {
	if actor.Role != models.ActorLawyer {
		return MarketPage{}, errors.Wrap(models.ErrForbidden, "marketplace is for lawyers")
	}
	page, size := utils.NormalizePage(in.Page, in.PageSize)
	list, total, err := s.store.List(ctx, repository.ListFilter{
		Statuses:     []models.CaseStatus{models.StatusPending},
		Unclaimed:    true,
		ProcessType:  in.ProcessType,
		CreatedSince: in.CreatedSince,
		Page:         page,
		PageSize:     size,
	})
	if err != nil {
		return MarketPage{}, err
	}

	items := make([]MarketCaseItem, 0, len(list))
	for _, cs := range list {
		items = append(items, MarketCaseItem{
			ID:          cs.ID,
			Title:       sanitize.RedactPII(cs.Title),
			ProcessType: cs.ProcessType,
			Urgency:     cs.Urgency,
			CreatedAt:   cs.CreatedAt,
			Preview:     sanitize.Summary(sanitize.RedactPII(cs.Description), previewLength),
		})
	}
	return MarketPage{Page: page, PageSize: size, Total: total, Pages: utils.Pages(total, size), Items: items}, nil
}
