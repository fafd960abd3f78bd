package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"dppapi/internal/docstore"
	"dppapi/internal/http/middleware"
	"dppapi/internal/record"
	"dppapi/internal/service"
)

// errorPayload defines the standardized error response body.
type errorPayload struct {
	RequestID string        `json:"request_id"`
	Error     errorEnvelope `json:"error"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// requestIDFromCtx extracts request_id previously stored by middleware.RequestID.
func requestIDFromCtx(c *fiber.Ctx) string {
	if v := c.Locals(middleware.RequestIDLocalKey); v != nil {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// writeError writes a standardized JSON error response without leaking internal errors.
func writeError(c *fiber.Ctx, status int, code, message string) error {
	res := errorPayload{
		RequestID: requestIDFromCtx(c),
		Error: errorEnvelope{
			Code:    code,
			Message: message,
		},
	}
	return c.Status(status).JSON(res)
}

// writeEngineError maps engine errors to HTTP responses. Validation errors are
// user-correctable 4xx; a concurrency conflict is 409 and may be retried by
// the caller; a malformed collection is a data-integrity 500.
func writeEngineError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, record.ErrNotFound):
		return writeError(c, fiber.StatusNotFound, "PASSPORT_NOT_FOUND", "passport not found")
	case errors.Is(err, docstore.ErrDocumentNotFound):
		return writeError(c, fiber.StatusNotFound, "DOCUMENT_NOT_FOUND", "document not found")
	case errors.Is(err, record.ErrAlreadyExists):
		return writeError(c, fiber.StatusConflict, "PASSPORT_EXISTS", "passport already exists")
	case errors.Is(err, docstore.ErrAmbiguousReference):
		return writeError(c, fiber.StatusConflict, "AMBIGUOUS_DOCUMENT_REFERENCE", "multiple documents match; supply an explicit document id")
	case errors.Is(err, service.ErrConcurrentModification):
		return writeError(c, fiber.StatusConflict, "CONCURRENT_MODIFICATION", "record was modified concurrently; retry the operation")
	case errors.Is(err, docstore.ErrMissingRejectionReason):
		return writeError(c, fiber.StatusUnprocessableEntity, "MISSING_REJECTION_REASON", "rejection requires a reason")
	case errors.Is(err, docstore.ErrNoOpReupload):
		return writeError(c, fiber.StatusUnprocessableEntity, "NO_OP_REUPLOAD", "reupload must change url or version")
	case errors.Is(err, docstore.ErrDocumentExpired):
		return writeError(c, fiber.StatusUnprocessableEntity, "DOCUMENT_EXPIRED", "document validity has expired; reupload a new version")
	case errors.Is(err, docstore.ErrInvalidTransition):
		return writeError(c, fiber.StatusUnprocessableEntity, "INVALID_TRANSITION", "transition not allowed from the current status")
	case errors.Is(err, docstore.ErrMalformedCollection):
		return writeError(c, fiber.StatusInternalServerError, "MALFORMED_COLLECTION", "stored document collection is corrupt")
	case errors.Is(err, service.ErrEntityIDRequired):
		return writeError(c, fiber.StatusBadRequest, "ENTITY_ID_REQUIRED", "entity id is required")
	case errors.Is(err, service.ErrTypeRequired):
		return writeError(c, fiber.StatusBadRequest, "TYPE_REQUIRED", "document type is required")
	case errors.Is(err, service.ErrNameRequired):
		return writeError(c, fiber.StatusBadRequest, "NAME_REQUIRED", "document name is required")
	case errors.Is(err, service.ErrInvalidKind):
		return writeError(c, fiber.StatusBadRequest, "INVALID_KIND", "kind must be product or company")
	default:
		return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// ErrorHandler returns a Fiber global error handler that standardizes error responses.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "BAD_REQUEST", "bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "NOT_FOUND", "resource not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "METHOD_NOT_ALLOWED", "method not allowed")
		default:
			return writeError(c, status, "INTERNAL_ERROR", "internal server error")
		}
	}
}
