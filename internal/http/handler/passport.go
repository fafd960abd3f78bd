package handler

import (
	"context"
	"database/sql"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"dppapi/internal/docstore"
	"dppapi/internal/model"
	"dppapi/internal/service"
	"dppapi/internal/storage"
)

// presignExpiry bounds how long a generated download link stays valid.
const presignExpiry = 15 * time.Minute

// HealthCheck verifies DB connectivity.
func HealthCheck(db *sql.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()
		if err := db.PingContext(ctx); err != nil {
			return writeError(c, fiber.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "dependency unavailable")
		}
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "healthy"})
	}
}

// LivenessProbe is a simple liveness endpoint.
func LivenessProbe() fiber.Handler {
	return func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	}
}

// createPassportRequest is the body of POST /passports.
type createPassportRequest struct {
	ID   string `json:"id"`
	Kind string `json:"kind"`
}

// CreatePassport registers an owning entity with an empty collection.
func CreatePassport(svc service.PassportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req createPassportRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}
		if req.Kind == "" {
			req.Kind = "product"
		}
		if err := svc.CreatePassport(c.UserContext(), req.ID, req.Kind); err != nil {
			return writeEngineError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"id": req.ID, "kind": req.Kind})
	}
}

// GetPassportStatus returns the derived aggregate compliance status.
func GetPassportStatus(svc service.PassportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		agg, err := svc.GetAggregateStatus(c.UserContext(), c.Params("id"))
		if err != nil {
			return writeEngineError(c, err)
		}
		return c.JSON(fiber.Map{"entity_id": c.Params("id"), "aggregate_status": agg})
	}
}

// ListDocuments lists the entity's documents with optional type/status
// filters and limit/offset pagination.
func ListDocuments(svc service.PassportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit, err := strconv.Atoi(c.Query("limit", "10"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_LIMIT", "invalid limit")
		}
		offset, err := strconv.Atoi(c.Query("offset", "0"))
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_OFFSET", "invalid offset")
		}

		status := model.DocumentStatus(c.Query("status"))
		if status != "" && !model.ValidStatuses[status] {
			return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "invalid status filter")
		}

		res, err := svc.ListDocuments(c.UserContext(), c.Params("id"), service.ListQuery{
			Type:   model.DocumentType(c.Query("type")),
			Status: status,
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			return writeEngineError(c, err)
		}
		return c.JSON(res)
	}
}

// UploadDocument accepts a multipart artifact upload (field name: file),
// streams it to the blob store, and records it on the passport. If recording
// fails the uploaded object is rolled back.
func UploadDocument(svc service.PassportService, store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entityID := c.Params("id")

		docType := model.DocumentType(c.FormValue("type"))
		if docType == "" {
			return writeError(c, fiber.StatusBadRequest, "TYPE_REQUIRED", "document type is required")
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		name := c.FormValue("name")
		if name == "" {
			name = fh.Filename
		}
		validUntil, badDate := parseValidUntil(c.FormValue("valid_until"))
		if badDate {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VALID_UNTIL", "valid_until must be RFC 3339")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		key := artifactKey(entityID, docType, fh.Filename)
		objInfo, err := store.Put(c.UserContext(), key, f, storage.PutObjectOptions{
			Size:        fh.Size,
			ContentType: ct,
			Metadata:    map[string]string{"original-filename": fh.Filename},
		})
		if err != nil {
			return writeError(c, fiber.StatusBadGateway, "STORAGE_ERROR", "artifact upload failed")
		}

		doc, err := svc.AddDocument(c.UserContext(), entityID, service.DocumentDraft{
			Type:       docType,
			Name:       name,
			URL:        objInfo.Key,
			Version:    c.FormValue("version", "1.0"),
			ValidUntil: validUntil,
			FileSize:   objInfo.Size,
		})
		if err != nil {
			// Best effort: the blob is unreachable without a document entry.
			_ = store.Delete(c.UserContext(), key)
			return writeEngineError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(doc)
	}
}

// reviewRequest is the body of POST /passports/:id/documents/review.
type reviewRequest struct {
	DocumentID string `json:"document_id"`
	Type       string `json:"type"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	Reason     string `json:"reason"`
}

// ReviewDocument applies an approve/reject decision to one document.
func ReviewDocument(svc service.PassportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req reviewRequest
		if err := c.BodyParser(&req); err != nil {
			return writeError(c, fiber.StatusBadRequest, "INVALID_BODY", "invalid request body")
		}

		target := model.DocumentStatus(req.Status)
		if target != model.StatusApproved && target != model.StatusRejected {
			return writeError(c, fiber.StatusBadRequest, "INVALID_STATUS", "status must be approved or rejected")
		}

		doc, err := svc.TransitionDocument(c.UserContext(), c.Params("id"), docstore.DocumentRef{
			ID:   req.DocumentID,
			Type: model.DocumentType(req.Type),
			Name: req.Name,
		}, target, req.Reason)
		if err != nil {
			return writeEngineError(c, err)
		}
		return c.JSON(doc)
	}
}

// ReuploadDocument accepts a replacement artifact for an existing document
// and resets it to pending review.
func ReuploadDocument(svc service.PassportService, store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		entityID := c.Params("id")

		ref := docstore.DocumentRef{
			ID:   c.FormValue("document_id"),
			Type: model.DocumentType(c.FormValue("type")),
			Name: c.FormValue("name"),
		}

		fh, err := c.FormFile("file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_REQUIRED", "file is required")
		}
		f, err := fh.Open()
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer f.Close()

		validUntil, badDate := parseValidUntil(c.FormValue("valid_until"))
		if badDate {
			return writeError(c, fiber.StatusBadRequest, "INVALID_VALID_UNTIL", "valid_until must be RFC 3339")
		}

		ct := fh.Header.Get("Content-Type")
		if ct == "" {
			ct = "application/octet-stream"
		}

		docType := ref.Type
		if docType == "" {
			docType = "document"
		}
		key := artifactKey(entityID, docType, fh.Filename)
		if _, err := store.Put(c.UserContext(), key, f, storage.PutObjectOptions{
			Size:        fh.Size,
			ContentType: ct,
			Metadata:    map[string]string{"original-filename": fh.Filename},
		}); err != nil {
			return writeError(c, fiber.StatusBadGateway, "STORAGE_ERROR", "artifact upload failed")
		}

		doc, err := svc.ReuploadDocument(c.UserContext(), entityID, ref, key, c.FormValue("version"), validUntil)
		if err != nil {
			_ = store.Delete(c.UserContext(), key)
			return writeEngineError(c, err)
		}
		return c.JSON(doc)
	}
}

// GetDocument returns one document by id.
func GetDocument(svc service.PassportService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := svc.GetDocument(c.UserContext(), c.Params("id"), docstore.DocumentRef{ID: c.Params("docID")})
		if err != nil {
			return writeEngineError(c, err)
		}
		return c.JSON(doc)
	}
}

// DocumentDownloadURL returns a time-limited download link for the
// document's stored artifact.
func DocumentDownloadURL(svc service.PassportService, store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		doc, err := svc.GetDocument(c.UserContext(), c.Params("id"), docstore.DocumentRef{ID: c.Params("docID")})
		if err != nil {
			return writeEngineError(c, err)
		}
		if doc.URL == "" {
			return writeError(c, fiber.StatusConflict, "ARTIFACT_NOT_PERSISTED", "document has no stored artifact yet")
		}
		url, err := store.PresignGet(c.UserContext(), doc.URL, presignExpiry)
		if err != nil {
			return writeError(c, fiber.StatusBadGateway, "STORAGE_ERROR", "could not presign download url")
		}
		return c.JSON(fiber.Map{"url": url, "expires_in_sec": int(presignExpiry.Seconds())})
	}
}

// artifactKey builds the blob-store key for an uploaded artifact. A UUID
// segment keeps reuploads of the same filename from overwriting each other.
func artifactKey(entityID string, docType model.DocumentType, filename string) string {
	gen := uuid.New().String() + filepath.Ext(filename)
	return filepath.ToSlash(filepath.Join("passports", entityID, string(docType), gen))
}

// parseValidUntil parses an optional RFC 3339 form value. The second return
// reports a malformed value.
func parseValidUntil(v string) (*time.Time, bool) {
	if v == "" {
		return nil, false
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return nil, true
	}
	return &t, false
}
