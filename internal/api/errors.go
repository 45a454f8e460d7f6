package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/nerrad567/area-core/internal/area"
	"github.com/nerrad567/area-core/internal/auth"
	"github.com/nerrad567/area-core/internal/entity"
)

// Error is the JSON body of every failed request.
type Error struct {
	Status           int                 `json:"status"`
	Code             string              `json:"code"`
	Message          string              `json:"message"`
	Type             string              `json:"type"`
	ErrorMessages    []string            `json:"errorMessages,omitempty"`
	ValidationErrors []entity.FieldError `json:"validationErrors,omitempty"`
}

// Error codes.
const (
	ErrCodeBadRequest   = "bad_request"
	ErrCodeNotFound     = "not_found"
	ErrCodeUnauthorized = "unauthorised"
	ErrCodeForbidden    = "forbidden"
	ErrCodeConflict     = "conflict"
	ErrCodeInternal     = "internal_error"
	ErrCodeValidation   = "validation_error"
)

// Error types, one per domain error kind.
const (
	TypeUnauthorized       = "unauthorized"
	TypeEntityNotFound     = "entity_not_found"
	TypeValidation         = "validation_error"
	TypeDuplicate          = "duplicate_entity"
	TypeConflict           = "conflict"
	TypeBadRequest         = "bad_request"
	TypeInternal           = "internal_error"
	TypeInvalidCredentials = "invalid_credentials"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, e Error) {
	writeJSON(w, e.Status, e)
}

func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, Error{Status: http.StatusBadRequest, Code: ErrCodeBadRequest, Message: message, Type: TypeBadRequest})
}

func writeUnauthenticated(w http.ResponseWriter, message string) {
	writeError(w, Error{Status: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: message, Type: TypeInvalidCredentials})
}

func writeForbidden(w http.ResponseWriter, message string) {
	writeError(w, Error{Status: http.StatusForbidden, Code: ErrCodeForbidden, Message: message, Type: TypeUnauthorized})
}

func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, Error{Status: http.StatusInternalServerError, Code: ErrCodeInternal, Message: message, Type: TypeInternal})
}

// writeServiceError maps a service error onto the envelope. Anything it does
// not recognise is logged and reported as a 500 without detail.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *entity.ValidationError
	var de *entity.DuplicateError

	switch {
	case errors.As(err, &ve):
		writeError(w, Error{
			Status:           http.StatusUnprocessableEntity,
			Code:             ErrCodeValidation,
			Message:          "validation failed",
			Type:             TypeValidation,
			ValidationErrors: ve.Errors,
		})
	case errors.As(err, &de):
		writeError(w, Error{
			Status:        http.StatusConflict,
			Code:          ErrCodeConflict,
			Message:       de.Error(),
			Type:          TypeDuplicate,
			ErrorMessages: de.Messages,
		})
	case errors.Is(err, entity.ErrConflict):
		writeError(w, Error{Status: http.StatusConflict, Code: ErrCodeConflict, Message: err.Error(), Type: TypeConflict})
	case errors.Is(err, auth.ErrUnauthorized):
		writeForbidden(w, "unauthorized")
	case errors.Is(err, entity.ErrNotFound),
		errors.Is(err, area.ErrImageNotFound),
		errors.Is(err, auth.ErrUserNotFound),
		errors.Is(err, auth.ErrRoleNotFound):
		writeError(w, Error{Status: http.StatusNotFound, Code: ErrCodeNotFound, Message: err.Error(), Type: TypeEntityNotFound})
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrUserInactive),
		errors.Is(err, auth.ErrTokenInvalid):
		writeUnauthenticated(w, err.Error())
	case errors.Is(err, auth.ErrInvalidActivationCode),
		errors.Is(err, auth.ErrUserAlreadyActive),
		errors.Is(err, auth.ErrReservedRole),
		errors.Is(err, area.ErrInvalidViewType):
		writeBadRequest(w, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeInternalError(w, "internal server error")
	}
}
