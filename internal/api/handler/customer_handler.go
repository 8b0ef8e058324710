package handler

import (
	"customer-service/internal/api/handler/dto"
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

type CustomerHandler struct {
	service customer.CustomerService
	logger  *slog.Logger
}

func NewCustomerHandler(s customer.CustomerService, l *slog.Logger) *CustomerHandler {
	if s == nil {
		panic("customer service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &CustomerHandler{
		service: s,
		logger:  l.With("component", "CustomerHandler"),
	}
}

func getCustomerIDFromURL(r *http.Request) (string, error) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		return "", fmt.Errorf("%w: customer id not found in URL path", apperrors.ErrInvalidArgument)
	}
	return id, nil
}

func (h *CustomerHandler) logServiceError(r *http.Request, msg string, err error) {
	level := slog.LevelError
	switch {
	case errors.Is(err, customer.ErrNotFound),
		errors.Is(err, customer.ErrDuplicateDocumentNumber),
		errors.Is(err, apperrors.ErrInvalidArgument):
		level = slog.LevelWarn
	}
	h.logger.Log(r.Context(), level, msg, slog.Any("error", err))
}

// CreateCustomer handles POST /api/customers
// @Summary Create a new customer
// @Description Creates a customer record. The document number must not belong to any stored customer, deleted ones included.
// @Tags Customers
// @Accept json
// @Produce json
// @Param request body dto.CreateCustomerRequest true "Customer creation request"
// @Success 201 {object} dto.BaseResponse{data=dto.CustomerResponse} "Customer successfully created"
// @Failure 400 {object} dto.BaseResponse "Invalid request payload"
// @Failure 409 {object} dto.BaseResponse "Document number already registered"
// @Failure 500 {object} dto.BaseResponse "Internal server error"
// @Router /api/customers [post]
func (h *CustomerHandler) CreateCustomer(w http.ResponseWriter, r *http.Request) {
	h.logger.DebugContext(r.Context(), "Received create customer request")

	var req dto.CreateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		h.respondError(w, r, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.logger.WarnContext(r.Context(), "Validation failed", slog.Any("error", err))
		h.respondError(w, r, err)
		return
	}

	created, err := h.service.CreateCustomer(r.Context(), req.ToDomain())
	if err != nil {
		h.logServiceError(r, "Service failed to create customer", err)
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer created successfully", slog.String("customerID", created.ID))
	w.Header().Set("Location", "/api/customers/"+created.ID)
	h.respondJSON(w, r, http.StatusCreated, "Customer successfully created", dto.NewCustomerResponse(created))
}

// ListCustomers handles GET /api/customers
// @Summary List customers
// @Description Lists every stored customer, including soft-deleted ones, ordered by creation time.
// @Tags Customers
// @Produce json
// @Success 200 {object} dto.BaseResponse{data=[]dto.CustomerResponse} "Customers retrieved successfully"
// @Failure 500 {object} dto.BaseResponse "Internal server error"
// @Router /api/customers [get]
func (h *CustomerHandler) ListCustomers(w http.ResponseWriter, r *http.Request) {
	customers, err := customer.Collect(h.service.ListCustomers(r.Context()))
	if err != nil {
		h.logServiceError(r, "Service failed to list customers", err)
		h.respondError(w, r, err)
		return
	}

	h.logger.DebugContext(r.Context(), "Customers listed", slog.Int("count", len(customers)))
	h.respondJSON(w, r, http.StatusOK, "Customers retrieved successfully", dto.NewCustomerListResponse(customers))
}

// GetCustomer handles GET /api/customers/{id}
// @Summary Retrieve customer details
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} dto.BaseResponse{data=dto.CustomerResponse} "Customer details retrieved successfully"
// @Failure 404 {object} dto.BaseResponse "Customer not found"
// @Failure 500 {object} dto.BaseResponse "Internal server error"
// @Router /api/customers/{id} [get]
func (h *CustomerHandler) GetCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	cust, err := h.service.GetCustomer(r.Context(), customerID)
	if err != nil {
		h.logServiceError(r, "Service failed to get customer", err)
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, "Customer details retrieved successfully", dto.NewCustomerResponse(cust))
}

// ListCustomersByType handles GET /api/customers/type/{type}
// @Summary List customers of one category
// @Tags Customers
// @Produce json
// @Param type path string true "Customer type" Enums(PERSONAL, BUSINESS)
// @Success 200 {object} dto.BaseResponse{data=[]dto.CustomerResponse} "Customers retrieved successfully"
// @Failure 400 {object} dto.BaseResponse "Unknown customer type"
// @Failure 500 {object} dto.BaseResponse "Internal server error"
// @Router /api/customers/type/{type} [get]
func (h *CustomerHandler) ListCustomersByType(w http.ResponseWriter, r *http.Request) {
	customerType, err := customer.ParseCustomerType(chi.URLParam(r, "type"))
	if err != nil {
		h.logger.WarnContext(r.Context(), "Invalid customer type in path", slog.Any("error", err))
		h.respondError(w, r, apperrors.NewValidationError("type", "Must be one of: PERSONAL, BUSINESS"))
		return
	}

	customers, err := customer.Collect(h.service.ListCustomersByType(r.Context(), customerType))
	if err != nil {
		h.logServiceError(r, "Service failed to list customers by type", err)
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, "Customers retrieved successfully", dto.NewCustomerListResponse(customers))
}

// UpdateCustomer handles PUT /api/customers/{id}
// @Summary Update a customer
// @Description Replaces the mutable fields (fullName, customerType, email, phone). Identity fields and status are never changed here.
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path string true "Customer ID"
// @Param request body dto.UpdateCustomerRequest true "Customer update request"
// @Success 200 {object} dto.BaseResponse{data=dto.CustomerResponse} "Customer successfully updated"
// @Failure 400 {object} dto.BaseResponse "Invalid request payload"
// @Failure 404 {object} dto.BaseResponse "Customer not found"
// @Failure 500 {object} dto.BaseResponse "Internal server error"
// @Router /api/customers/{id} [put]
func (h *CustomerHandler) UpdateCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req dto.UpdateCustomerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		h.respondError(w, r, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := h.service.UpdateCustomer(r.Context(), customerID, req.ToDomain())
	if err != nil {
		h.logServiceError(r, "Service failed to update customer", err)
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer updated successfully", slog.String("customerID", customerID))
	h.respondJSON(w, r, http.StatusOK, "Customer successfully updated", dto.NewCustomerResponse(updated))
}

// UpdateVipPymStatus handles PUT /api/customers/{id}/vip-pym
// @Summary Set the VIP or PYM flag
// @Description Business customers get the PYM flag, everyone else the VIP flag.
// @Tags Customers
// @Accept json
// @Produce json
// @Param id path string true "Customer ID"
// @Param request body dto.UpdateVipPymRequest true "Flag value"
// @Success 200 {object} dto.BaseResponse{data=dto.CustomerResponse} "Customer VIP/PYM status successfully updated"
// @Failure 400 {object} dto.BaseResponse "Invalid request payload"
// @Failure 404 {object} dto.BaseResponse "Customer not found"
// @Failure 500 {object} dto.BaseResponse "Internal server error"
// @Router /api/customers/{id}/vip-pym [put]
func (h *CustomerHandler) UpdateVipPymStatus(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	var req dto.UpdateVipPymRequest
	if err := decodeJSON(r, &req); err != nil {
		h.respondError(w, r, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		h.respondError(w, r, err)
		return
	}

	updated, err := h.service.UpdateVipPymStatus(r.Context(), customerID, *req.Enabled)
	if err != nil {
		h.logServiceError(r, "Service failed to update VIP/PYM status", err)
		h.respondError(w, r, err)
		return
	}

	h.respondJSON(w, r, http.StatusOK, "Customer VIP/PYM status successfully updated", dto.NewCustomerResponse(updated))
}

// DeleteCustomer handles DELETE /api/customers/{id}
// @Summary Soft delete a customer
// @Description Marks the customer DELETED. The record stays readable.
// @Tags Customers
// @Produce json
// @Param id path string true "Customer ID"
// @Success 200 {object} dto.BaseResponse{data=dto.CustomerResponse} "Customer successfully deleted (soft delete)"
// @Failure 404 {object} dto.BaseResponse "Customer not found"
// @Failure 500 {object} dto.BaseResponse "Internal server error"
// @Router /api/customers/{id} [delete]
func (h *CustomerHandler) DeleteCustomer(w http.ResponseWriter, r *http.Request) {
	customerID, err := getCustomerIDFromURL(r)
	if err != nil {
		h.respondError(w, r, err)
		return
	}

	deleted, err := h.service.DeleteCustomer(r.Context(), customerID)
	if err != nil {
		h.logServiceError(r, "Service failed to delete customer", err)
		h.respondError(w, r, err)
		return
	}

	h.logger.InfoContext(r.Context(), "Customer soft deleted", slog.String("customerID", customerID))
	h.respondJSON(w, r, http.StatusOK, "Customer successfully deleted (soft delete)", dto.NewCustomerResponse(deleted))
}
