package workflow

import (
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/events"
	"github.com/aldoetobex/caseflow/internal/locks"
	"github.com/aldoetobex/caseflow/internal/logger"
	"github.com/aldoetobex/caseflow/internal/projection"
	"github.com/aldoetobex/caseflow/pkg/models"
)

type Config struct {
	// LockTimeout bounds how long a request waits for the per-case lock.
	LockTimeout time.Duration
}

/* ================================ Inputs ================================= */

type CreateCaseInput struct {
	Title            string
	Description      string
	ProcessType      string
	Urgency          string
	CurrentSituation string
	Objectives       string
	// Submit applies DRAFT -> PENDING in the same unit of work.
	Submit bool
}

type TransitionInput struct {
	CaseID uuid.UUID
	To     models.CaseStatus
	Notes  string
	// DocumentIDs are approved (-> IN_PROGRESS) or rejected
	// (-> AWAITING_DOCUMENTS) on the document review edges. Empty means
	// every pending document.
	DocumentIDs []uuid.UUID
	// ExpectedVersion, when set, must equal the stored version.
	ExpectedVersion *int
	// ClaimFor lets a SYSTEM caller record the claiming lawyer together with
	// PENDING -> IN_REVIEW.
	ClaimFor *uuid.UUID
}

type DocumentInput struct {
	ID        uuid.UUID
	Name      string
	MimeType  string
	SizeBytes int64
	Content   string
}

type SubmitDocumentsInput struct {
	CaseID    uuid.UUID
	Documents []DocumentInput
	// SubmitForReview applies AWAITING_DOCUMENTS -> AWAITING_DOCUMENT_REVIEW
	// after the upload, atomically.
	SubmitForReview bool
	ExpectedVersion *int
}

// UpdateDetailsInput changes descriptive fields of a DRAFT case. Nil fields
// are left as they are.
type UpdateDetailsInput struct {
	CaseID           uuid.UUID
	Title            *string
	Description      *string
	ProcessType      *string
	Urgency          *string
	CurrentSituation *string
	Objectives       *string
	ExpectedVersion  *int
}

type ListInput struct {
	Page     int
	PageSize int
	Statuses []models.CaseStatus
}

type MarketplaceInput struct {
	Page         int
	PageSize     int
	ProcessType  string
	CreatedSince *time.Time
}

/* ================================ Outputs ================================ */

type CasePage struct {
	Page     int                      `json:"page"`
	PageSize int                      `json:"pageSize"`
	Total    int64                    `json:"total"`
	Pages    int                      `json:"pages"`
	Items    []projection.CaseSummary `json:"items"`
}

// MarketCaseItem is an anonymized PENDING case offered to lawyers.
type MarketCaseItem struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	ProcessType string    `json:"process_type"`
	Urgency     string    `json:"urgency"`
	CreatedAt   time.Time `json:"created_at"`
	Preview     string    `json:"preview"`
}

type MarketPage struct {
	Page     int              `json:"page"`
	PageSize int              `json:"pageSize"`
	Total    int64            `json:"total"`
	Pages    int              `json:"pages"`
	Items    []MarketCaseItem `json:"items"`
}

/* ================================ Service ================================ */

type Service struct {
	cfg        Config
	store      CaseStore
	locker     locks.Locker
	publisher  events.Publisher
	classifier Classifier
	policy     DocumentPolicy
	log        logger.AppLogger
	nowFn      func() time.Time
}

type Dependencies struct {
	Config     Config
	Store      CaseStore
	Locker     locks.Locker
	Publisher  events.Publisher
	Classifier Classifier
	Policy     DocumentPolicy
	Logger     logger.AppLogger
	Now        func() time.Time
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = 5 * time.Second
	}
	s := &Service{
		cfg:        cfg,
		store:      deps.Store,
		locker:     deps.Locker,
		publisher:  deps.Publisher,
		classifier: deps.Classifier,
		policy:     deps.Policy,
		log:        deps.Logger,
		nowFn:      deps.Now,
	}
	if s.locker == nil {
		s.locker = locks.NewLocal()
	}
	if s.classifier == nil {
		s.classifier = PassthroughClassifier{}
	}
	if s.policy == nil {
		s.policy = requireAll{}
	}
	if s.log == nil {
		s.log = logger.NewDiscard()
	}
	s.log = s.log.With(slog.String("service", "workflow"))
	if s.publisher == nil {
		s.publisher = events.NewLogPublisher(s.log)
	}
	if s.nowFn == nil {
		s.nowFn = func() time.Time { return time.Now().UTC() }
	}
	return s
}
