package handler

import (
	"customer-service/internal/api/handler/dto"
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

func decodeJSON(r *http.Request, v any) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func (h *CustomerHandler) respondJSON(w http.ResponseWriter, r *http.Request, status int, message string, data any) {
	h.writeEnvelope(w, r, dto.BaseResponse{Status: status, Message: message, Data: data})
}

func (h *CustomerHandler) writeEnvelope(w http.ResponseWriter, r *http.Request, resp dto.BaseResponse) {
	body, err := json.Marshal(resp)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to marshal JSON response", slog.Any("error", err))
		http.Error(w, `{"status":500,"message":"Internal server error","data":null}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.Status)
	w.Write(body)
}

func (h *CustomerHandler) respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, field := http.StatusInternalServerError, "An unexpected error occurred.", ""
	var validationError *apperrors.ValidationError

	switch {
	case errors.Is(err, customer.ErrNotFound):
		status, message = http.StatusNotFound, "Customer not found"
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, "Resource not found"
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.Is(err, customer.ErrDocumentNumberRequired):
		status, message, field = http.StatusBadRequest, "Document number is required", "documentNumber"
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, customer.ErrDuplicateDocumentNumber):
		status, message, field = http.StatusConflict, "Customer with this document number already exists", "documentNumber"
	case errors.Is(err, apperrors.ErrAlreadyExists):
		status, message = http.StatusConflict, "Resource already exists"
	default:
		err = apperrors.WrapInternalError(err)
		h.logger.ErrorContext(r.Context(), "Unhandled internal error",
			slog.String("code", apperrors.Code(err)),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}

	h.writeEnvelope(w, r, dto.BaseResponse{Status: status, Message: message, Field: field})
}
