package dto

import (
	"customer-service/internal/domain/customer"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// BaseResponse is the envelope every endpoint answers with.
type BaseResponse struct {
	Status  int    `json:"status"`
	Message string `json:"message"`
	Data    any    `json:"data"`
	Field   string `json:"field,omitempty"`
}

type CreateCustomerRequest struct {
	FullName       string `json:"fullName" validate:"required"`
	DocumentNumber string `json:"documentNumber" validate:"required"`
	CustomerType   string `json:"customerType" validate:"required,oneof=PERSONAL BUSINESS"`
	Email          string `json:"email" validate:"omitempty,email"`
	Phone          string `json:"phone"`
	IsVip          bool   `json:"isVip"`
	IsPym          bool   `json:"isPym"`
}

func (r *CreateCustomerRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.DocumentNumber = strings.TrimSpace(r.DocumentNumber)
	r.CustomerType = strings.ToUpper(strings.TrimSpace(r.CustomerType))
	r.Email = strings.TrimSpace(r.Email)
	return validationError(validate.Struct(r))
}

func (r *CreateCustomerRequest) ToDomain() customer.Customer {
	return customer.Customer{
		FullName:       r.FullName,
		DocumentNumber: r.DocumentNumber,
		CustomerType:   customer.CustomerType(r.CustomerType),
		Email:          r.Email,
		Phone:          r.Phone,
		IsVip:          r.IsVip,
		IsPym:          r.IsPym,
	}
}

// UpdateCustomerRequest carries the mutable fields only; identity fields sent
// by a client are rejected as unknown.
type UpdateCustomerRequest struct {
	FullName     string `json:"fullName" validate:"required"`
	CustomerType string `json:"customerType" validate:"required,oneof=PERSONAL BUSINESS"`
	Email        string `json:"email" validate:"omitempty,email"`
	Phone        string `json:"phone"`
}

func (r *UpdateCustomerRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.CustomerType = strings.ToUpper(strings.TrimSpace(r.CustomerType))
	r.Email = strings.TrimSpace(r.Email)
	return validationError(validate.Struct(r))
}

func (r *UpdateCustomerRequest) ToDomain() customer.Customer {
	return customer.Customer{
		FullName:     r.FullName,
		CustomerType: customer.CustomerType(r.CustomerType),
		Email:        r.Email,
		Phone:        r.Phone,
	}
}

type UpdateVipPymRequest struct {
	Enabled *bool `json:"enabled" validate:"required"`
}

func (r *UpdateVipPymRequest) Validate() error {
	return validationError(validate.Struct(r))
}

type CustomerResponse struct {
	ID             string     `json:"id"`
	FullName       string     `json:"fullName"`
	DocumentNumber string     `json:"documentNumber"`
	CustomerType   string     `json:"customerType"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone"`
	CreatedAt      time.Time  `json:"createdAt"`
	ModifiedAt     *time.Time `json:"modifiedAt"`
	Status         string     `json:"status"`
	IsVip          bool       `json:"isVip"`
	IsPym          bool       `json:"isPym"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}

	return CustomerResponse{
		ID:             cust.ID,
		FullName:       cust.FullName,
		DocumentNumber: cust.DocumentNumber,
		CustomerType:   cust.CustomerType.String(),
		Email:          cust.Email,
		Phone:          cust.Phone,
		CreatedAt:      cust.CreatedAt,
		ModifiedAt:     cust.ModifiedAt,
		Status:         cust.Status.String(),
		IsVip:          cust.IsVip,
		IsPym:          cust.IsPym,
	}
}

func NewCustomerListResponse(customers []*customer.Customer) []CustomerResponse {
	resp := make([]CustomerResponse, 0, len(customers))
	for _, c := range customers {
		resp = append(resp, NewCustomerResponse(c))
	}
	return resp
}

func validationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return apperrors.NewValidationError("", err.Error())
	}
	fe := fieldErrs[0]
	return apperrors.NewValidationError(fe.Field(), validationMessage(fe))
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "email":
		return "Invalid email format"
	case "oneof":
		return "Must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	default:
		return "Invalid value"
	}
}
