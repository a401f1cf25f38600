package cases

import (
	"context"
	"log/slog"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/aldoetobex/caseflow/internal/auth"
	"github.com/aldoetobex/caseflow/internal/storage"
	"github.com/aldoetobex/caseflow/internal/workflow"
	"github.com/aldoetobex/caseflow/pkg/models"
	"github.com/aldoetobex/caseflow/pkg/validation"
)

const (
	maxFiles          = 10
	maxFileSize       = 10 * 1024 * 1024
	uploadConcurrency = 4
)

type pendingUpload struct {
	header *multipart.FileHeader
	input  workflow.DocumentInput
}

// Upload Case Files godoc
// @Summary      Upload case documents (PDF/PNG/JPEG)
// @Description  Uploads up to 10 files and attaches them to the case in one step: either every file is attached or none.
// @Description  Set submit_for_review=true to also move AWAITING_DOCUMENTS -> AWAITING_DOCUMENT_REVIEW.
// @Tags         documents
// @Security     BearerAuth
// @Accept       multipart/form-data
// @Produce      json
// @Param        id                 path      string   true   "case id (uuid)"
// @Param        files              formData  []file   true   "PDF/PNG/JPEG (max 10)"
// @Param        submit_for_review  formData  bool     false  "submit for lawyer review"
// @Success      201  {object}  DocumentsResponse
// @Failure      400  {object}  models.ErrorResponse
// @Failure      403  {object}  models.ErrorResponse
// @Failure      422  {object}  models.ErrorResponse
// @Router       /cases/{id}/files [post]
func (h *Handler) UploadFiles(c *fiber.Ctx) error {
	caseID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	actor := auth.MustActor(c)
	ctx := c.UserContext()

	// Tenancy is checked before anything is written to storage.
	if _, err := h.svc.GetCaseView(ctx, actor, caseID); err != nil {
		return err
	}

	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "multipart form required; use files[]")
	}
	// Swagger UI usually sends "files" even though we document files[]
	files := form.File["files[]"]
	if len(files) == 0 {
		files = form.File["files"]
	}
	if len(files) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, "files are required (use key: files[])")
	}
	if len(files) > maxFiles {
		return fiber.NewError(fiber.StatusBadRequest, "max 10 files allowed")
	}

	uploads := make([]pendingUpload, 0, len(files))
	errs := map[string][]string{}
	for i, fh := range files {
		field := "files[" + strconv.Itoa(i) + "]"
		if fh.Size <= 0 {
			errs[field] = append(errs[field], "empty file")
			continue
		}
		if fh.Size > maxFileSize {
			errs[field] = append(errs[field], "max 10MB per file")
			continue
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "" || ct == "application/octet-stream" {
			ct = mime.TypeByExtension(strings.ToLower(filepath.Ext(fh.Filename)))
		}
		if !validation.IsDocumentType(ct) {
			errs[field] = append(errs[field], "only PDF, PNG or JPEG are allowed")
			continue
		}

		docID := uuid.New()
		uploads = append(uploads, pendingUpload{
			header: fh,
			input: workflow.DocumentInput{
				ID:        docID,
				Name:      filepath.Base(fh.Filename),
				MimeType:  ct,
				SizeBytes: fh.Size,
				Content:   storage.MakeObjectKey(caseID, docID, fh.Filename),
			},
		})
	}
	if len(errs) > 0 {
		return validation.Respond(c, errs)
	}

	if err := h.uploadAll(ctx, uploads); err != nil {
		return err
	}

	inputs := make([]workflow.DocumentInput, 0, len(uploads))
	for _, u := range uploads {
		inputs = append(inputs, u.input)
	}
	v, added, err := h.svc.SubmitDocuments(ctx, actor, workflow.SubmitDocumentsInput{
		CaseID:          caseID,
		Documents:       inputs,
		SubmitForReview: c.FormValue("submit_for_review") == "true",
	})
	if err != nil {
		h.discard(inputs)
		return auth.WithCase(err, v)
	}
	return c.Status(fiber.StatusCreated).JSON(DocumentsResponse{Case: v, Documents: added})
}

// uploadAll stores every file concurrently. On failure the objects that did
// make it are removed again.
func (h *Handler) uploadAll(ctx context.Context, uploads []pendingUpload) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uploadConcurrency)
	done := make([]bool, len(uploads))

	for i, u := range uploads {
		g.Go(func() error {
			f, err := u.header.Open()
			if err != nil {
				return errors.Wrapf(err, "open %s", u.header.Filename)
			}
			defer f.Close()
			if err := h.blobs.Upload(gctx, u.input.Content, f, u.input.MimeType); err != nil {
				return errors.Wrapf(err, "upload %s", u.header.Filename)
			}
			done[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		var stored []workflow.DocumentInput
		for i, ok := range done {
			if ok {
				stored = append(stored, uploads[i].input)
			}
		}
		h.discard(stored)
		return err
	}
	return nil
}

// discard removes blobs that ended up not attached to any case.
func (h *Handler) discard(docs []workflow.DocumentInput) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, d := range docs {
		if err := h.blobs.Delete(ctx, d.Content); err != nil {
			h.log.Warn("orphaned document blob", slog.String("key", d.Content), slog.String("error", err.Error()))
		}
	}
}

// Attach Documents godoc
// @Summary      Attach already uploaded documents
// @Description  Registers documents whose content was uploaded out of band. All or nothing.
// @Tags         documents
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path  string                  true  "case id (uuid)"
// @Param        payload  body  SubmitDocumentsRequest  true  "Documents"
// @Success      201  {object}  DocumentsResponse
// @Failure      400  {object}  models.ValidationErrorResponse
// @Failure      422  {object}  models.ErrorResponse
// @Router       /cases/{id}/documents [post]
func (h *Handler) AttachDocuments(c *fiber.Ctx) error {
	caseID, err := paramUUID(c, "id")
	if err != nil {
		return err
	}
	var in SubmitDocumentsRequest
	if err := c.BodyParser(&in); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid json")
	}
	if errs, _ := validation.Validate(in); errs != nil {
		return validation.Respond(c, errs)
	}

	docs := make([]workflow.DocumentInput, 0, len(in.Documents))
	for _, d := range in.Documents {
		docs = append(docs, workflow.DocumentInput{
			Name:      d.Name,
			MimeType:  d.MimeType,
			SizeBytes: d.SizeBytes,
			Content:   d.Content,
		})
	}
	v, added, err := h.svc.SubmitDocuments(c.UserContext(), auth.MustActor(c), workflow.SubmitDocumentsInput{
		CaseID:          caseID,
		Documents:       docs,
		SubmitForReview: in.SubmitForReview,
		ExpectedVersion: in.ExpectedVersion,
	})
	if err != nil {
		return auth.WithCase(err, v)
	}
	return c.Status(fiber.StatusCreated).JSON(DocumentsResponse{Case: v, Documents: added})
}

// Delete Document godoc
// @Summary      Remove a document
// @Description  Removes a document attached by the caller's role. Clients cannot remove documents while the lawyer reviews them.
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        docID  path string true "document id (uuid)"
// @Success      200  {object}  projection.ClientView
// @Failure      403  {object}  models.ErrorResponse
// @Failure      422  {object}  models.ErrorResponse  "DOCUMENT_LOCKED"
// @Router       /documents/{docID} [delete]
func (h *Handler) DeleteDocument(c *fiber.Ctx) error {
	docID, err := paramUUID(c, "docID")
	if err != nil {
		return err
	}
	var expected *int
	if raw := c.Query("expected_version"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return validation.Respond(c, map[string][]string{"expected_version": {"Must be a positive integer"}})
		}
		expected = &n
	}

	v, removed, err := h.svc.RemoveDocument(c.UserContext(), auth.MustActor(c), docID, expected)
	if err != nil {
		return auth.WithCase(err, v)
	}
	if err := h.blobs.Delete(c.UserContext(), removed.Content); err != nil {
		// the document is already detached; the blob is only garbage now
		h.log.Warn("document blob not deleted",
			slog.String("document_id", removed.ID.String()),
			slog.String("key", removed.Content),
			slog.String("error", err.Error()))
	}
	return c.JSON(v)
}

// Signed Download URL godoc
// @Summary      Get signed URL
// @Description  Owning client or assigned lawyer obtains a short-lived signed URL
// @Tags         documents
// @Security     BearerAuth
// @Produce      json
// @Param        docID  path string true "document id (uuid)"
// @Success      200  {object}  map[string]any  "url, expires_in, now"
// @Failure      403  {object}  models.ErrorResponse
// @Failure      404  {object}  models.ErrorResponse
// @Router       /documents/{docID}/signed-url [get]
func (h *Handler) SignedDownloadURL(c *fiber.Ctx) error {
	docID, err := paramUUID(c, "docID")
	if err != nil {
		return err
	}
	doc, err := h.svc.DocumentForDownload(c.UserContext(), auth.MustActor(c), docID)
	if err != nil {
		return err
	}

	url, err := h.blobs.SignedURL(c.UserContext(), doc.Content, h.signTTL)
	if errors.Is(err, storage.ErrObjectNotFound) {
		return errors.Wrapf(models.ErrNotFound, "content of document %s", doc.ID)
	}
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"url":        url,
		"expires_in": int(h.signTTL.Seconds()),
		"now":        time.Now().UTC(),
	})
}
