package customer

import (
	"fmt"
	"strings"
	"time"
)

type CustomerType string

const (
	TypePersonal CustomerType = "PERSONAL"
	TypeBusiness CustomerType = "BUSINESS"
)

// ParseCustomerType accepts either spelling case and rejects anything that is
// not a known category.
func ParseCustomerType(s string) (CustomerType, error) {
	switch CustomerType(strings.ToUpper(strings.TrimSpace(s))) {
	case TypePersonal:
		return TypePersonal, nil
	case TypeBusiness:
		return TypeBusiness, nil
	default:
		return "", fmt.Errorf("unknown customer type %q", s)
	}
}

func (t CustomerType) String() string {
	return string(t)
}

type Status string

const (
	StatusActive  Status = "ACTIVE"
	StatusDeleted Status = "DELETED"
)

func (s Status) String() string {
	return string(s)
}

type Customer struct {
	ID             string       `json:"id"`
	FullName       string       `json:"fullName"`
	DocumentNumber string       `json:"documentNumber"`
	CustomerType   CustomerType `json:"customerType"`
	Email          string       `json:"email"`
	Phone          string       `json:"phone"`
	CreatedAt      time.Time    `json:"createdAt"`
	ModifiedAt     *time.Time   `json:"modifiedAt"`
	Status         Status       `json:"status"`
	IsVip          bool         `json:"isVip"`
	IsPym          bool         `json:"isPym"`
}

// NewCustomer derives the record that create persists: every input field is
// copied, then the lifecycle fields are stamped. The ID is left for storage
// to assign.
func NewCustomer(input Customer, now time.Time) *Customer {
	c := input
	c.ID = ""
	c.CreatedAt = now
	c.ModifiedAt = nil
	c.Status = StatusActive
	return &c
}

// ApplyUpdate returns the record produced by an update. The mutable fields
// come from the patch and the identity fields from c. The VIP/PYM flags are
// not carried over; an updated record starts unflagged.
func (c *Customer) ApplyUpdate(patch Customer, now time.Time) *Customer {
	modified := now
	return &Customer{
		ID:             c.ID,
		FullName:       patch.FullName,
		DocumentNumber: c.DocumentNumber,
		CustomerType:   patch.CustomerType,
		Email:          patch.Email,
		Phone:          patch.Phone,
		CreatedAt:      c.CreatedAt,
		ModifiedAt:     &modified,
		Status:         c.Status,
	}
}

// SetVipPymStatus sets the designation that matches the customer category:
// PYM for business customers, VIP for everyone else.
func (c *Customer) SetVipPymStatus(flag bool) {
	switch c.CustomerType {
	case TypeBusiness:
		c.IsPym = flag
	default:
		c.IsVip = flag
	}
}

func (c *Customer) SoftDelete(now time.Time) {
	c.Status = StatusDeleted
	c.ModifiedAt = &now
}

func (c *Customer) IsDeleted() bool {
	return c.Status == StatusDeleted
}
