package postgres

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"time"

	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/apperrors"

	"github.com/google/uuid"
)

const customerColumns = `id, full_name, document_number, customer_type, email, phone, created_at, modified_at, status, is_vip, is_pym`

const (
	insertCustomerQuery = `
        INSERT INTO customers (` + customerColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	updateCustomerQuery = `
        UPDATE customers
        SET full_name = $1,
            customer_type = $2,
            email = $3,
            phone = $4,
            modified_at = $5,
            status = $6,
            is_vip = $7,
            is_pym = $8
        WHERE id = $9`

	findCustomerByIDQuery             = `SELECT ` + customerColumns + ` FROM customers WHERE id = $1`
	findCustomerByDocumentNumberQuery = `SELECT ` + customerColumns + ` FROM customers WHERE document_number = $1`
	findCustomersByTypeQuery          = `SELECT ` + customerColumns + ` FROM customers WHERE customer_type = $1 ORDER BY created_at ASC, id ASC`
	findAllCustomersQuery             = `SELECT ` + customerColumns + ` FROM customers ORDER BY created_at ASC, id ASC`
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
	newID  func() string
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	if db == nil {
		panic("DBPool cannot be nil for CustomerRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerRepository, using default stderr handler")
	}
	return &CustomerRepository{
		db:     db,
		logger: logger.With("component", "CustomerRepository"),
		newID:  uuid.NewString,
	}
}

func (r *CustomerRepository) Save(ctx context.Context, cust *customer.Customer) error {
	if cust == nil {
		return fmt.Errorf("%w: customer cannot be nil", apperrors.ErrInvalidArgument)
	}

	if cust.ID == "" {
		return r.createCustomer(ctx, cust)
	}
	return r.updateCustomer(ctx, cust)
}

func (r *CustomerRepository) createCustomer(ctx context.Context, cust *customer.Customer) error {
	logCtx := r.logger.With(slog.String("documentNumber", cust.DocumentNumber))
	logCtx.DebugContext(ctx, "Attempting to insert new customer")

	id := r.newID()
	startTime := time.Now()
	_, err := r.db.Exec(ctx, insertCustomerQuery,
		id,
		cust.FullName,
		cust.DocumentNumber,
		cust.CustomerType.String(),
		cust.Email,
		cust.Phone,
		cust.CreatedAt,
		cust.ModifiedAt,
		cust.Status.String(),
		cust.IsVip,
		cust.IsPym,
	)
	monitoring.RecordDBQuery("InsertCustomer", queryStatus(err), time.Since(startTime))

	if err != nil {
		translatedErr := translateDBError(err, logCtx)
		if errors.Is(translatedErr, apperrors.ErrAlreadyExists) {
			logCtx.WarnContext(ctx, "Failed to insert customer due to unique constraint violation")
			return translatedErr
		}
		logCtx.ErrorContext(ctx, "Failed to insert customer", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert customer: %w", apperrors.ErrDatabase, err)
	}

	cust.ID = id
	logCtx.InfoContext(ctx, "Customer inserted successfully", slog.String("customerID", id))
	return nil
}

func (r *CustomerRepository) updateCustomer(ctx context.Context, cust *customer.Customer) error {
	logCtx := r.logger.With(slog.String("customerID", cust.ID))
	logCtx.DebugContext(ctx, "Attempting to update customer")

	startTime := time.Now()
	cmdTag, err := r.db.Exec(ctx, updateCustomerQuery,
		cust.FullName,
		cust.CustomerType.String(),
		cust.Email,
		cust.Phone,
		cust.ModifiedAt,
		cust.Status.String(),
		cust.IsVip,
		cust.IsPym,
		cust.ID,
	)
	monitoring.RecordDBQuery("UpdateCustomer", queryStatus(err), time.Since(startTime))

	if err != nil {
		logCtx.ErrorContext(ctx, "Failed to update customer", slog.Any("error", err))
		return translateDBError(err, logCtx)
	}

	if cmdTag.RowsAffected() == 0 {
		logCtx.WarnContext(ctx, "Update affected zero rows, customer likely not found")
		return customer.ErrNotFound
	}

	logCtx.InfoContext(ctx, "Customer updated successfully")
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, id string) (*customer.Customer, error) {
	logCtx := r.logger.With(slog.String("customerID", id))
	return r.findOne(ctx, logCtx, "FindCustomerByID", findCustomerByIDQuery, id)
}

func (r *CustomerRepository) FindByDocumentNumber(ctx context.Context, documentNumber string) (*customer.Customer, error) {
	logCtx := r.logger.With(slog.String("documentNumber", documentNumber))
	return r.findOne(ctx, logCtx, "FindCustomerByDocumentNumber", findCustomerByDocumentNumberQuery, documentNumber)
}

func (r *CustomerRepository) findOne(ctx context.Context, logCtx *slog.Logger, queryName, query string, arg string) (*customer.Customer, error) {
	startTime := time.Now()
	cust, err := scanCustomer(r.db.QueryRow(ctx, query, arg))
	monitoring.RecordDBQuery(queryName, queryStatus(err), time.Since(startTime))

	if err != nil {
		translated := translateDBError(err, logCtx)
		if errors.Is(translated, apperrors.ErrNotFound) {
			logCtx.DebugContext(ctx, "Customer not found")
			return nil, customer.ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Failed to query/scan customer", slog.String("query", queryName), slog.Any("error", err))
		return nil, translated
	}

	return cust, nil
}

func (r *CustomerRepository) FindByType(ctx context.Context, customerType customer.CustomerType) iter.Seq2[*customer.Customer, error] {
	return r.stream(ctx, "FindCustomersByType", findCustomersByTypeQuery, customerType.String())
}

func (r *CustomerRepository) FindAll(ctx context.Context) iter.Seq2[*customer.Customer, error] {
	return r.stream(ctx, "FindAllCustomers", findAllCustomersQuery)
}

// stream runs query each time the returned sequence is ranged over and yields
// rows as they are scanned. Breaking out of the range closes the rows.
func (r *CustomerRepository) stream(ctx context.Context, queryName, query string, args ...any) iter.Seq2[*customer.Customer, error] {
	return func(yield func(*customer.Customer, error) bool) {
		logCtx := r.logger.With(slog.String("query", queryName))
		startTime := time.Now()

		rows, err := r.db.Query(ctx, query, args...)
		if err != nil {
			monitoring.RecordDBQuery(queryName, "error", time.Since(startTime))
			logCtx.ErrorContext(ctx, "Failed to query customers", slog.Any("error", err))
			yield(nil, fmt.Errorf("%w: failed to query customers: %w", apperrors.ErrDatabase, err))
			return
		}
		defer rows.Close()

		count := 0
		for rows.Next() {
			cust, err := scanCustomer(rows)
			if err != nil {
				monitoring.RecordDBQuery(queryName, "error", time.Since(startTime))
				logCtx.ErrorContext(ctx, "Failed to scan customer row", slog.Any("error", err))
				yield(nil, fmt.Errorf("%w: failed to scan customer row: %w", apperrors.ErrDatabase, err))
				return
			}
			count++
			if !yield(cust, nil) {
				monitoring.RecordDBQuery(queryName, "success", time.Since(startTime))
				return
			}
		}

		if err := rows.Err(); err != nil {
			monitoring.RecordDBQuery(queryName, "error", time.Since(startTime))
			logCtx.ErrorContext(ctx, "Error iterating customer rows", slog.Any("error", err))
			yield(nil, fmt.Errorf("%w: error iterating customer rows: %w", apperrors.ErrDatabase, err))
			return
		}

		monitoring.RecordDBQuery(queryName, "success", time.Since(startTime))
		logCtx.DebugContext(ctx, "Finished streaming customers", slog.Int("count", count))
	}
}

func scanCustomer(row rowScanner) (*customer.Customer, error) {
	var (
		cust         customer.Customer
		customerType string
		status       string
		modifiedAt   *time.Time
	)
	err := row.Scan(
		&cust.ID,
		&cust.FullName,
		&cust.DocumentNumber,
		&customerType,
		&cust.Email,
		&cust.Phone,
		&cust.CreatedAt,
		&modifiedAt,
		&status,
		&cust.IsVip,
		&cust.IsPym,
	)
	if err != nil {
		return nil, err
	}
	cust.CustomerType = customer.CustomerType(customerType)
	cust.Status = customer.Status(status)
	cust.ModifiedAt = modifiedAt
	return &cust, nil
}
