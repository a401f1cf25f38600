package workflow

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/repository"
	"github.com/aldoetobex/caseflow/pkg/models"
)

// CaseStore is the durable storage of cases. Save must fail with
// models.ErrConflict when the stored version differs from expected.
type CaseStore interface {
	Create(ctx context.Context, cs *models.Case) error
	Get(ctx context.Context, id uuid.UUID) (*models.Case, error)
	Save(ctx context.Context, cs *models.Case, expected int) error
	List(ctx context.Context, f repository.ListFilter) ([]models.Case, int64, error)
	CaseIDForDocument(ctx context.Context, documentID uuid.UUID) (uuid.UUID, error)
}

// DocumentPolicy decides whether a process type requires documents before
// work can start.
type DocumentPolicy interface {
	DocumentsRequired(processType string) bool
}

// Intake is the free text a client submits when creating a case.
type Intake struct {
	Title       string
	Description string
	ProcessType string
}

// Classifier normalizes intake text, e.g. through an AI service that infers
// the process type. Its output is treated as plain strings.
type Classifier interface {
	Classify(ctx context.Context, in Intake) (Intake, error)
}

// PassthroughClassifier only trims whitespace and lowercases the process type.
type PassthroughClassifier struct{}

func (PassthroughClassifier) Classify(_ context.Context, in Intake) (Intake, error) {
	return Intake{
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		ProcessType: strings.ToLower(strings.TrimSpace(in.ProcessType)),
	}, nil
}

type requireAll struct{}

func (requireAll) DocumentsRequired(string) bool { return true }
