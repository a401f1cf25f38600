package cases

import (
	"context"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/aldoetobex/caseflow/internal/auth"
	"github.com/aldoetobex/caseflow/internal/logger"
	"github.com/aldoetobex/caseflow/internal/workflow"
	"github.com/aldoetobex/caseflow/pkg/models"
	"github.com/aldoetobex/caseflow/pkg/validation"
)

// ===== DTOs =====

type CreateCaseRequest struct {
	Title            string `json:"title" validate:"required,max=120"`
	Description      string `json:"description" validate:"max=4000"`
	ProcessType      string `json:"process_type" validate:"max=60"`
	Urgency          string `json:"urgency" validate:"omitempty,oneof=low normal high"`
	CurrentSituation string `json:"current_situation" validate:"max=4000"`
	Objectives       string `json:"objectives" validate:"max=2000"`
	// Submit moves the new case straight to PENDING.
	Submit bool `json:"submit"`
}

type UpdateCaseRequest struct {
	Title            *string `json:"title" validate:"omitempty,min=1,max=120"`
	Description      *string `json:"description" validate:"omitempty,max=4000"`
	ProcessType      *string `json:"process_type" validate:"omitempty,max=60"`
	Urgency          *string `json:"urgency" validate:"omitempty,oneof=low normal high"`
	CurrentSituation *string `json:"current_situation" validate:"omitempty,max=4000"`
	Objectives       *string `json:"objectives" validate:"omitempty,max=2000"`
	ExpectedVersion  *int    `json:"expected_version" validate:"omitempty,gte=1"`
}

type TransitionRequest struct {
	To              string   `json:"to" validate:"required,casestatus"`
	Notes           string   `json:"notes" validate:"max=2000"`
	DocumentIDs     []string `json:"document_ids" validate:"omitempty,max=50,dive,uuid"`
	ExpectedVersion *int     `json:"expected_version" validate:"omitempty,gte=1"`
	// ClaimFor is only honoured for SYSTEM callers.
	ClaimFor string `json:"claim_for" validate:"omitempty,uuid"`
}

type DocumentRequest struct {
	Name      string `json:"name" validate:"required,max=200"`
	MimeType  string `json:"mime_type" validate:"required,doctype"`
	SizeBytes int64  `json:"size_bytes" validate:"gte=0"`
	// Content is the storage key of an object that is already uploaded.
	Content string `json:"content" validate:"required,max=500"`
}

type SubmitDocumentsRequest struct {
	Documents       []DocumentRequest `json:"documents" validate:"required,min=1,max=10,dive"`
	SubmitForReview bool              `json:"submit_for_review"`
	ExpectedVersion *int              `json:"expected_version" validate:"omitempty,gte=1"`
}

type DocumentsResponse struct {
	Case      any               `json:"case"`
	Documents []models.Document `json:"documents"`
}

// BlobStore holds document content. Document.Content is the object key.
type BlobStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) error
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, key string) error
}

type Handler struct {
	svc     *workflow.Service
	blobs   BlobStore
	log     logger.AppLogger
	signTTL time.Duration
}

func NewHandler(svc *workflow.Service, blobs BlobStore, log logger.AppLogger) *Handler {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Handler{
		svc:     svc,
		blobs:   blobs,
		log:     log.With(slog.String("service", "cases-http")),
		signTTL: 60 * time.Second,
	}
}

// Register mounts every case route on r. Static paths come before
// parameterized ones so they are not shadowed by :id.
func (h *Handler) Register(r fiber.Router) {
	r.Get("/marketplace", auth.RequireRole(models.ActorLawyer), h.Marketplace)

	r.Post("/cases", auth.RequireRole(models.ActorClient), h.Create)
	r.Get("/cases", h.List)

	r.Get("/documents/:docID/signed-url", h.SignedDownloadURL)
	r.Delete("/documents/:docID", h.DeleteDocument)

	r.Get("/cases/:id", h.Get)
	r.Patch("/cases/:id", auth.RequireRole(models.ActorClient), h.Update)
	r.Post("/cases/:id/claim", auth.RequireRole(models.ActorLawyer), h.Claim)
	r.Post("/cases/:id/transitions", h.Transition)
	r.Get("/cases/:id/timeline", h.Timeline)
	r.Get("/cases/:id/status-at", h.StatusAt)
	r.Post("/cases/:id/files", h.UploadFiles)
	r.Post("/cases/:id/documents", h.AttachDocuments)
}

func paramUUID(c *fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+name)
	}
	return id, nil
}

func parsePage(c *fiber.Ctx) (page, size int) {
	page, _ = strconv.Atoi(c.Query("page", "1"))
	size, _ = strconv.Atoi(c.Query("pageSize", "10"))
	return
}

// Create Case godoc
// @Summary      Create case
// @Description  Client opens a DRAFT case, optionally submitting it right away
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body  CreateCaseRequest  true  "Case payload"
// @Success      201  {object}  projection.ClientView
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      422  {object}  models.ErrorResponse
// @Router       /cases [post]
func (h *Handler) Create(c *fiber.Ctx) error {
	var in CreateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	v, err := h.svc.CreateCase(c.UserContext(), auth.MustActor(c), workflow.CreateCaseInput{
		Title:            in.Title,
		Description:      in.Description,
		ProcessType:      in.ProcessType,
		Urgency:          in.Urgency,
		CurrentSituation: in.CurrentSituation,
		Objectives:       in.Objectives,
		Submit:           in.Submit,
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(v)
}

// List Cases godoc
// @Summary      List my cases
// @Description  Clients see their own cases, lawyers the cases assigned to or claimed by them
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        page      query int    false "page"
// @Param        pageSize  query int    false "pageSize"
// @Param        status    query string false "comma separated statuses"
// @Success      200  {object}  workflow.CasePage
// @Router       /cases [get]
func (h *Handler) List(c *fiber.Ctx) error {
	page, size := parsePage(c)
	in := workflow.ListInput{Page: page, PageSize: size}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			st := models.CaseStatus(strings.ToUpper(strings.TrimSpace(s)))
			if !st.Valid() {
				return validation.Respond(c, map[string][]string{"status": {"Unknown case status"}})
			}
			in.Statuses = append(in.Statuses, st)
		}
	}

	out, err := h.svc.ListCases(c.UserContext(), auth.MustActor(c), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Marketplace godoc
// @Summary      Marketplace
// @Description  Lawyers browse anonymized PENDING cases nobody has claimed yet
// @Tags         marketplace
// @Security     BearerAuth
// @Produce      json
// @Param        page           query int    false "page"
// @Param        pageSize       query int    false "pageSize"
// @Param        process_type   query string false "process type"
// @Param        created_since  query string false "RFC3339 timestamp"
// @Success      200  {object}  workflow.MarketPage
// @Router       /marketplace [get]
func (h *Handler) Marketplace(c *fiber.Ctx) error {
	page, size := parsePage(c)
	in := workflow.MarketplaceInput{
		Page:        page,
		PageSize:    size,
		ProcessType: strings.ToLower(strings.TrimSpace(c.Query("process_type"))),
	}
	if raw := c.Query("created_since"); raw != "" {
		ts, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			return validation.Respond(c, map[string][]string{"created_since": {"Must be an RFC3339 timestamp"}})
		}
		in.CreatedSince = &ts
	}

	out, err := h.svc.Marketplace(c.UserContext(), auth.MustActor(c), in)
	if err != nil {
		return err
	}
	return c.JSON(out)
}

// Get Case godoc
// @Summary      Case detail
// @Description  Returns the client or lawyer view of the case depending on the caller
// @Tags         cases
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  projection.LawyerView
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /cases/{id} [get]
func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.GetCaseView(c.UserContext(), auth.MustActor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(v)
}

// Update Case godoc
// @Summary      Edit a draft
// @Description  The owning client edits descriptive fields while the case is a DRAFT
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  UpdateCaseRequest  true  "Fields to change"
// @Success      200  {object}  projection.ClientView
// @Failure      422  {object}  models.ErrorResponse
// @Router       /cases/{id} [patch]
func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in UpdateCaseRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	v, err := h.svc.UpdateDetails(c.UserContext(), auth.MustActor(c), workflow.UpdateDetailsInput{
		CaseID:           id,
		Title:            in.Title,
		Description:      in.Description,
		ProcessType:      in.ProcessType,
		Urgency:          in.Urgency,
		CurrentSituation: in.CurrentSituation,
		Objectives:       in.Objectives,
		ExpectedVersion:  in.ExpectedVersion,
	})
	if err != nil {
		return auth.WithCase(err, v)
	}
	return c.JSON(v)
}

// Claim Case godoc
// @Summary      Claim a marketplace case
// @Description  Lawyer claims a PENDING case; it moves to IN_REVIEW
// @Tags         marketplace
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {object}  projection.LawyerView
// @Failure      422  {object}  models.ErrorResponse  "ALREADY_CLAIMED"
// @Router       /cases/{id}/claim [post]
func (h *Handler) Claim(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	v, err := h.svc.ClaimCase(c.UserContext(), auth.MustActor(c), id)
	if err != nil {
		return auth.WithCase(err, v)
	}
	return c.JSON(v)
}

// Transition godoc
// @Summary      Request a status transition
// @Description  Applies one edge of the lifecycle. On failure the current case view is returned in "case".
// @Tags         cases
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string             true  "case id (uuid)"
// @Param        payload  body  TransitionRequest  true  "Target status"
// @Success      200  {object}  projection.LawyerView
// @Failure      403  {object}  models.ErrorResponse
// @Failure      409  {object}  models.ErrorResponse
// @Failure      422  {object}  models.ErrorResponse
// @Router       /cases/{id}/transitions [post]
func (h *Handler) Transition(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in TransitionRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	req := workflow.TransitionInput{
		CaseID:          id,
		To:              models.CaseStatus(in.To),
		Notes:           in.Notes,
		ExpectedVersion: in.ExpectedVersion,
	}
	for _, raw := range in.DocumentIDs {
		req.DocumentIDs = append(req.DocumentIDs, uuid.MustParse(raw))
	}
	if in.ClaimFor != "" {
		lawyer := uuid.MustParse(in.ClaimFor)
		req.ClaimFor = &lawyer
	}

	v, err := h.svc.RequestTransition(c.UserContext(), auth.MustActor(c), req)
	if err != nil {
		return auth.WithCase(err, v)
	}
	return c.JSON(v)
}

// Timeline godoc
// @Summary      Case timeline
// @Description  Newest first; internal SYSTEM notes are hidden from clients
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        id   path string true "case id (uuid)"
// @Success      200  {array}   projection.TimelineItem
// @Router       /cases/{id}/timeline [get]
func (h *Handler) Timeline(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	items, err := h.svc.Timeline(c.UserContext(), auth.MustActor(c), id)
	if err != nil {
		return err
	}
	return c.JSON(items)
}

// Status At godoc
// @Summary      Status at a point in time
// @Description  Reconstructs the status the case held at ts from its timeline
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        id   path  string true "case id (uuid)"
// @Param        ts   query string true "RFC3339 timestamp"
// @Success      200  {object}  map[string]any  "status, at"
// @Failure      400  {object}  models.ErrorResponse
// @Router       /cases/{id}/status-at [get]
func (h *Handler) StatusAt(c *fiber.Ctx) error {
	id, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	ts, err := time.Parse(time.RFC3339, c.Query("ts"))
	if err != nil {
		return validation.Respond(c, map[string][]string{"ts": {"Must be an RFC3339 timestamp"}})
	}
	status, err := h.svc.StatusAt(c.UserContext(), auth.MustActor(c), id, ts)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"status": status, "at": ts.UTC()})
}
