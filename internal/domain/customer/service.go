package customer

import (
	"context"
	"customer-service/internal/event"
	"customer-service/internal/infrastructure/monitoring"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"
)

const (
	customerNotFound      = "Customer not found by repository"
	defaultPublishTimeout = 5 * time.Second
)

type CustomerService interface {
	CreateCustomer(ctx context.Context, input Customer) (*Customer, error)
	ListCustomers(ctx context.Context) iter.Seq2[*Customer, error]
	GetCustomer(ctx context.Context, id string) (*Customer, error)
	ListCustomersByType(ctx context.Context, customerType CustomerType) iter.Seq2[*Customer, error]
	UpdateCustomer(ctx context.Context, id string, patch Customer) (*Customer, error)
	UpdateVipPymStatus(ctx context.Context, id string, flag bool) (*Customer, error)
	DeleteCustomer(ctx context.Context, id string) (*Customer, error)
	Shutdown(ctx context.Context) error
}

var _ CustomerService = (*customerService)(nil)

type Option func(*customerService)

// WithClock replaces time.Now as the source of createdAt/modifiedAt.
func WithClock(now func() time.Time) Option {
	return func(s *customerService) {
		if now != nil {
			s.now = now
		}
	}
}

func WithPublishTimeout(d time.Duration) Option {
	return func(s *customerService) {
		if d > 0 {
			s.publishTimeout = d
		}
	}
}

type customerService struct {
	repo           CustomerRepository
	pub            event.EventPublisher
	logger         *slog.Logger
	now            func() time.Time
	publishTimeout time.Duration
	inflight       sync.WaitGroup
}

func NewCustomerService(repo CustomerRepository, eventPublisher event.EventPublisher, logger *slog.Logger, opts ...Option) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}

	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewCustomerService, using default stderr handler")
	}

	if eventPublisher == nil {
		logger.Warn("Warning: No event publisher provided to NewCustomerService, creation events will only be logged")
		eventPublisher = event.NewLogPublisher(logger)
	}

	s := &customerService{
		repo:           repo,
		pub:            eventPublisher,
		logger:         logger.With(slog.String("component", "customerService")),
		now:            time.Now,
		publishTimeout: defaultPublishTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
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

func (s *customerService) CreateCustomer(ctx context.Context, input Customer) (*Customer, error) {
	logCtx := s.logger.With(slog.String("documentNumber", input.DocumentNumber))
	logCtx.InfoContext(ctx, "Attempting to create new customer")

	if strings.TrimSpace(input.DocumentNumber) == "" {
		logCtx.WarnContext(ctx, "Validation failed: document number is empty")
		return nil, ErrDocumentNumberRequired
	}

	logCtx.DebugContext(ctx, "Calling repository FindByDocumentNumber")
	existing, err := s.repo.FindByDocumentNumber(ctx, input.DocumentNumber)
	switch {
	case err == nil && existing != nil:
		logCtx.WarnContext(ctx, "Customer with this document number already exists", slog.String("existingCustomerID", existing.ID))
		return nil, ErrDuplicateDocumentNumber
	case err == nil, errors.Is(err, ErrNotFound), errors.Is(err, apperrors.ErrNotFound):
		logCtx.DebugContext(ctx, "Document number is free")
	default:
		logCtx.ErrorContext(ctx, "Repository failed to look up document number", slog.Any("error", err))
		return nil, storageFailure("failed to look up document number", err)
	}

	cust := NewCustomer(input, s.now())

	logCtx.DebugContext(ctx, "Calling repository Save")
	if err := s.repo.Save(ctx, cust); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			logCtx.WarnContext(ctx, "Document number was taken concurrently", slog.Any("error", err))
			return nil, ErrDuplicateDocumentNumber
		}
		logCtx.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, storageFailure("failed to save new customer", err)
	}

	monitoring.RecordCustomerCreated()
	logCtx.InfoContext(ctx, "Successfully saved new customer, publishing creation event", slog.String("customerID", cust.ID))
	s.publishCreated(ctx, cust)

	return cust, nil
}

// publishCreated hands the creation event to the publisher on its own
// goroutine. The caller never waits for it and never sees its outcome.
func (s *customerService) publishCreated(ctx context.Context, cust *Customer) {
	createdEvent := event.NewCustomerCreatedEvent(NewCustomerEventPayload(cust))
	pubCtx := context.WithoutCancel(ctx)
	logCtx := s.logger.With(slog.String("customerID", cust.ID), slog.String("eventID", createdEvent.EventID))

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				logCtx.ErrorContext(pubCtx, "Recovered from panic while publishing customer creation event", slog.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(pubCtx, s.publishTimeout)
		defer cancel()

		if err := s.pub.PublishCustomerCreated(ctx, createdEvent); err != nil {
			logCtx.ErrorContext(ctx, "Customer created, but FAILED to publish creation event", slog.Any("error", err))
			return
		}
		logCtx.InfoContext(ctx, "Successfully published customer creation event")
	}()
}

func (s *customerService) ListCustomers(ctx context.Context) iter.Seq2[*Customer, error] {
	s.logger.DebugContext(ctx, "Listing all customers")
	return wrapStorageErrors(s.repo.FindAll(ctx), "failed to list customers")
}

func (s *customerService) GetCustomer(ctx context.Context, id string) (*Customer, error) {
	logCtx := s.logger.With(slog.String("customerID", id))
	logCtx.DebugContext(ctx, "Calling repository FindByID")

	cust, err := s.findExisting(ctx, logCtx, id)
	if err != nil {
		return nil, err
	}

	logCtx.DebugContext(ctx, "Successfully retrieved customer")
	return cust, nil
}

func (s *customerService) ListCustomersByType(ctx context.Context, customerType CustomerType) iter.Seq2[*Customer, error] {
	s.logger.DebugContext(ctx, "Listing customers by type", slog.String("customerType", customerType.String()))
	return wrapStorageErrors(s.repo.FindByType(ctx, customerType), fmt.Sprintf("failed to list %s customers", customerType))
}

func (s *customerService) UpdateCustomer(ctx context.Context, id string, patch Customer) (*Customer, error) {
	logCtx := s.logger.With(slog.String("customerID", id))
	logCtx.InfoContext(ctx, "Attempting to update customer")

	existing, err := s.findExisting(ctx, logCtx, id)
	if err != nil {
		return nil, err
	}

	updated := existing.ApplyUpdate(patch, s.now())
	if err := s.save(ctx, logCtx, updated, "failed to update customer"); err != nil {
		return nil, err
	}

	logCtx.InfoContext(ctx, "Successfully updated customer")
	return updated, nil
}

func (s *customerService) UpdateVipPymStatus(ctx context.Context, id string, flag bool) (*Customer, error) {
	logCtx := s.logger.With(slog.String("customerID", id), slog.Bool("flag", flag))
	logCtx.InfoContext(ctx, "Attempting to update VIP/PYM status")

	cust, err := s.findExisting(ctx, logCtx, id)
	if err != nil {
		return nil, err
	}

	cust.SetVipPymStatus(flag)
	if err := s.save(ctx, logCtx, cust, "failed to update VIP/PYM status"); err != nil {
		return nil, err
	}

	logCtx.InfoContext(ctx, "Successfully updated VIP/PYM status", slog.String("customerType", cust.CustomerType.String()))
	return cust, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, id string) (*Customer, error) {
	logCtx := s.logger.With(slog.String("customerID", id))
	logCtx.InfoContext(ctx, "Attempting to soft delete customer")

	cust, err := s.findExisting(ctx, logCtx, id)
	if err != nil {
		return nil, err
	}

	cust.SoftDelete(s.now())
	if err := s.save(ctx, logCtx, cust, "failed to delete customer"); err != nil {
		return nil, err
	}

	logCtx.InfoContext(ctx, "Successfully soft deleted customer")
	return cust, nil
}

// Shutdown blocks until every in-flight creation event has been handed off or
// ctx is done.
func (s *customerService) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.InfoContext(ctx, "All in-flight customer events drained")
		return nil
	case <-ctx.Done():
		s.logger.WarnContext(ctx, "Timed out waiting for in-flight customer events", slog.Any("error", ctx.Err()))
		return ctx.Err()
	}
}

func (s *customerService) findExisting(ctx context.Context, logCtx *slog.Logger, id string) (*Customer, error) {
	cust, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, storageFailure(fmt.Sprintf("failed to get customer %s", id), err)
	}
	return cust, nil
}

func (s *customerService) save(ctx context.Context, logCtx *slog.Logger, cust *Customer, msg string) error {
	if err := s.repo.Save(ctx, cust); err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			logCtx.WarnContext(ctx, "Customer disappeared before save")
			return ErrNotFound
		}
		logCtx.ErrorContext(ctx, "Repository failed to save customer", slog.Any("error", err))
		return storageFailure(msg, err)
	}
	return nil
}

func storageFailure(msg string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorageFailure, msg, err)
}

func wrapStorageErrors(seq iter.Seq2[*Customer, error], msg string) iter.Seq2[*Customer, error] {
	return func(yield func(*Customer, error) bool) {
		for cust, err := range seq {
			if err != nil {
				yield(nil, storageFailure(msg, err))
				return
			}
			if !yield(cust, nil) {
				return
			}
		}
	}
}
