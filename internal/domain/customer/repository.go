package customer

import (
	"context"
	"customer-service/internal/pkg/apperrors"
	"fmt"
	"iter"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", apperrors.ErrNotFound)

	ErrDuplicateDocumentNumber = fmt.Errorf("%w: customer with this document number already exists", apperrors.ErrAlreadyExists)

	ErrDocumentNumberRequired = fmt.Errorf("%w: document number cannot be empty", apperrors.ErrInvalidArgument)

	ErrStorageFailure = fmt.Errorf("customer storage failure: %w", apperrors.ErrDatabase)
)

// CustomerRepository is the storage the lifecycle service reads from and
// writes to. Lookups report a missing record with ErrNotFound. The sequence
// methods are lazy: the query runs when the sequence is ranged over, and each
// range starts a fresh query.
type CustomerRepository interface {
	FindByID(ctx context.Context, id string) (*Customer, error)

	FindByDocumentNumber(ctx context.Context, documentNumber string) (*Customer, error)

	FindByType(ctx context.Context, customerType CustomerType) iter.Seq2[*Customer, error]

	FindAll(ctx context.Context) iter.Seq2[*Customer, error]

	// Save inserts the customer when ID is empty, assigning the ID in place,
	// and otherwise overwrites the stored record with the same ID.
	Save(ctx context.Context, customer *Customer) error
}

// Collect drains a customer sequence, stopping at the first error.
func Collect(seq iter.Seq2[*Customer, error]) ([]*Customer, error) {
	customers := make([]*Customer, 0)
	for cust, err := range seq {
		if err != nil {
			return nil, err
		}
		customers = append(customers, cust)
	}
	return customers, nil
}
