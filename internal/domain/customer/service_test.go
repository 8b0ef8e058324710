package customer_test

import (
	"context"
	"customer-service/internal/domain/customer"
	"customer-service/internal/event"
	"customer-service/internal/pkg/apperrors"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var errDBDown = errors.New("connection refused")

func setupTest() (*customer.MockCustomerRepository, *customer.MockEventPublisher, customer.CustomerService) {
	mockRepo := new(customer.MockCustomerRepository)
	mockPub := new(customer.MockEventPublisher)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	service := customer.NewCustomerService(mockRepo, mockPub, logger,
		customer.WithClock(func() time.Time { return fixedNow }),
		customer.WithPublishTimeout(time.Second),
	)
	return mockRepo, mockPub, service
}

func drain(t *testing.T, service customer.CustomerService) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, service.Shutdown(ctx))
}

func existingCustomer(id string, customerType customer.CustomerType) *customer.Customer {
	return &customer.Customer{
		ID:             id,
		FullName:       "Existing Customer",
		DocumentNumber: "DOC-" + id,
		CustomerType:   customerType,
		Email:          "existing@example.com",
		Phone:          "555-0100",
		CreatedAt:      fixedNow.Add(-48 * time.Hour),
		Status:         customer.StatusActive,
	}
}

func TestCustomerService_CreateCustomer(t *testing.T) {
	ctx := context.Background()
	input := customer.Customer{
		FullName:       "Test User",
		DocumentNumber: "DOC123",
		CustomerType:   customer.TypePersonal,
		Email:          "test@example.com",
		Phone:          "555-0101",
	}

	t.Run("Success on empty storage", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()

		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", ctx, mock.MatchedBy(func(c *customer.Customer) bool {
			return c.ID == "" && c.DocumentNumber == "DOC123" && c.Status == customer.StatusActive
		})).Run(func(args mock.Arguments) {
			args.Get(1).(*customer.Customer).ID = "generated-id"
		}).Return(nil).Once()
		mockPub.On("PublishCustomerCreated", mock.Anything, mock.MatchedBy(func(e event.CustomerCreatedEvent) bool {
			return e.Type == event.TypeCustomerCreated && e.Key() == "generated-id" && e.Payload.DocumentNumber == "DOC123"
		})).Return(nil).Once()

		created, err := service.CreateCustomer(ctx, input)
		drain(t, service)

		require.NoError(t, err)
		require.NotNil(t, created)
		assert.Equal(t, "generated-id", created.ID)
		assert.Equal(t, customer.StatusActive, created.Status)
		assert.Equal(t, fixedNow, created.CreatedAt)
		assert.Nil(t, created.ModifiedAt)
		assert.False(t, created.IsVip)
		assert.False(t, created.IsPym)
		mockRepo.AssertExpectations(t)
		mockPub.AssertNumberOfCalls(t, "PublishCustomerCreated", 1)
	})

	t.Run("Client supplied id and status are ignored", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		withID := input
		withID.ID = "forged"
		withID.Status = customer.StatusDeleted

		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", ctx, mock.MatchedBy(func(c *customer.Customer) bool {
			return c.ID == "" && c.Status == customer.StatusActive
		})).Return(nil).Once()
		mockPub.On("PublishCustomerCreated", mock.Anything, mock.Anything).Return(nil).Once()

		_, err := service.CreateCustomer(ctx, withID)
		drain(t, service)

		require.NoError(t, err)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Fails on duplicate document number without saving", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(existingCustomer("1", customer.TypePersonal), nil).Once()

		created, err := service.CreateCustomer(ctx, input)
		drain(t, service)

		assert.Nil(t, created)
		assert.ErrorIs(t, err, customer.ErrDuplicateDocumentNumber)
		assert.ErrorIs(t, err, apperrors.ErrAlreadyExists)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		mockPub.AssertNotCalled(t, "PublishCustomerCreated", mock.Anything, mock.Anything)
	})

	t.Run("Duplicate check includes deleted records", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		deleted := existingCustomer("9", customer.TypePersonal)
		deleted.Status = customer.StatusDeleted
		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(deleted, nil).Once()

		_, err := service.CreateCustomer(ctx, input)

		assert.ErrorIs(t, err, customer.ErrDuplicateDocumentNumber)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Fails on empty document number", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		blank := input
		blank.DocumentNumber = "   "

		_, err := service.CreateCustomer(ctx, blank)

		assert.ErrorIs(t, err, customer.ErrDocumentNumberRequired)
		assert.ErrorIs(t, err, apperrors.ErrInvalidArgument)
		mockRepo.AssertNotCalled(t, "FindByDocumentNumber", mock.Anything, mock.Anything)
	})

	t.Run("Lookup failure is a storage failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, errDBDown).Once()

		_, err := service.CreateCustomer(ctx, input)

		assert.ErrorIs(t, err, customer.ErrStorageFailure)
		assert.ErrorIs(t, err, errDBDown)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Lost uniqueness race surfaces as duplicate", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(apperrors.ErrAlreadyExists).Once()

		_, err := service.CreateCustomer(ctx, input)
		drain(t, service)

		assert.ErrorIs(t, err, customer.ErrDuplicateDocumentNumber)
		mockPub.AssertNotCalled(t, "PublishCustomerCreated", mock.Anything, mock.Anything)
	})

	t.Run("Save failure is a storage failure and publishes nothing", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(errDBDown).Once()

		_, err := service.CreateCustomer(ctx, input)
		drain(t, service)

		assert.ErrorIs(t, err, customer.ErrStorageFailure)
		mockPub.AssertNotCalled(t, "PublishCustomerCreated", mock.Anything, mock.Anything)
	})

	t.Run("Publish failure does not fail creation", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(nil).Once()
		mockPub.On("PublishCustomerCreated", mock.Anything, mock.Anything).Return(errors.New("broker unavailable")).Once()

		created, err := service.CreateCustomer(ctx, input)
		drain(t, service)

		require.NoError(t, err)
		assert.NotNil(t, created)
		mockPub.AssertExpectations(t)
	})

	t.Run("Publish panic is contained", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(nil).Once()
		mockPub.On("PublishCustomerCreated", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			panic("publisher exploded")
		}).Return(nil).Once()

		created, err := service.CreateCustomer(ctx, input)
		drain(t, service)

		require.NoError(t, err)
		assert.NotNil(t, created)
	})

	t.Run("Canceled request does not cancel publish", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		reqCtx, cancel := context.WithCancel(context.Background())

		mockRepo.On("FindByDocumentNumber", reqCtx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", reqCtx, mock.Anything).Return(nil).Once()
		mockPub.On("PublishCustomerCreated", mock.MatchedBy(func(c context.Context) bool {
			return c.Err() == nil
		}), mock.Anything).Return(nil).Once()

		_, err := service.CreateCustomer(reqCtx, input)
		cancel()
		drain(t, service)

		require.NoError(t, err)
		mockPub.AssertExpectations(t)
	})
}

func TestCustomerService_GetCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("Found", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		expected := existingCustomer("1", customer.TypePersonal)
		mockRepo.On("FindByID", ctx, "1").Return(expected, nil).Twice()

		first, err := service.GetCustomer(ctx, "1")
		require.NoError(t, err)
		second, err := service.GetCustomer(ctx, "1")
		require.NoError(t, err)

		assert.Equal(t, expected, first)
		assert.Equal(t, first, second, "repeated gets without writes are identical")
		mockRepo.AssertExpectations(t)
	})

	t.Run("Deleted records are still returned", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		deleted := existingCustomer("1", customer.TypePersonal)
		deleted.Status = customer.StatusDeleted
		mockRepo.On("FindByID", ctx, "1").Return(deleted, nil).Once()

		got, err := service.GetCustomer(ctx, "1")

		require.NoError(t, err)
		assert.True(t, got.IsDeleted())
	})

	t.Run("Absent", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "missing").Return(nil, customer.ErrNotFound).Once()

		got, err := service.GetCustomer(ctx, "missing")

		assert.Nil(t, got)
		assert.ErrorIs(t, err, customer.ErrNotFound)
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("Generic not found from storage is normalised", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "missing").Return(nil, apperrors.ErrNotFound).Once()

		_, err := service.GetCustomer(ctx, "missing")

		assert.Equal(t, customer.ErrNotFound, err)
	})

	t.Run("Storage failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "1").Return(nil, errDBDown).Once()

		_, err := service.GetCustomer(ctx, "1")

		assert.ErrorIs(t, err, customer.ErrStorageFailure)
		assert.ErrorIs(t, err, errDBDown)
		assert.NotErrorIs(t, err, customer.ErrNotFound)
	})
}

func TestCustomerService_ListCustomers(t *testing.T) {
	ctx := context.Background()

	t.Run("Yields every record including deleted ones", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		a := existingCustomer("a", customer.TypePersonal)
		b := existingCustomer("b", customer.TypeBusiness)
		b.Status = customer.StatusDeleted
		mockRepo.On("FindAll", ctx).Return(customer.SeqOf(a, b)).Once()

		got, err := customer.Collect(service.ListCustomers(ctx))

		require.NoError(t, err)
		assert.Equal(t, []*customer.Customer{a, b}, got)
	})

	t.Run("Empty storage yields nothing", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindAll", ctx).Return(customer.SeqOf()).Once()

		got, err := customer.Collect(service.ListCustomers(ctx))

		require.NoError(t, err)
		assert.Empty(t, got)
	})

	t.Run("Sequence is restartable", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		a := existingCustomer("a", customer.TypePersonal)
		mockRepo.On("FindAll", ctx).Return(customer.SeqOf(a)).Once()

		seq := service.ListCustomers(ctx)
		first, err := customer.Collect(seq)
		require.NoError(t, err)
		second, err := customer.Collect(seq)
		require.NoError(t, err)

		assert.Equal(t, first, second)
	})

	t.Run("Early break stops iteration", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindAll", ctx).Return(customer.SeqOf(
			existingCustomer("a", customer.TypePersonal),
			existingCustomer("b", customer.TypePersonal),
		)).Once()

		seen := 0
		for _, err := range service.ListCustomers(ctx) {
			require.NoError(t, err)
			seen++
			break
		}
		assert.Equal(t, 1, seen)
	})

	t.Run("Storage failure mid-stream", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindAll", ctx).Return(customer.SeqFailing(errDBDown, existingCustomer("a", customer.TypePersonal))).Once()

		got, err := customer.Collect(service.ListCustomers(ctx))

		assert.Nil(t, got)
		assert.ErrorIs(t, err, customer.ErrStorageFailure)
		assert.ErrorIs(t, err, errDBDown)
	})
}

func TestCustomerService_ListCustomersByType(t *testing.T) {
	ctx := context.Background()

	t.Run("Delegates the filter to storage", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		biz := existingCustomer("b", customer.TypeBusiness)
		mockRepo.On("FindByType", ctx, customer.TypeBusiness).Return(customer.SeqOf(biz)).Once()

		got, err := customer.Collect(service.ListCustomersByType(ctx, customer.TypeBusiness))

		require.NoError(t, err)
		assert.Equal(t, []*customer.Customer{biz}, got)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Storage failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByType", ctx, customer.TypePersonal).Return(customer.SeqFailing(errDBDown)).Once()

		_, err := customer.Collect(service.ListCustomersByType(ctx, customer.TypePersonal))

		assert.ErrorIs(t, err, customer.ErrStorageFailure)
	})
}

func TestCustomerService_UpdateCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("Mutable fields change and identity fields do not", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		existing := existingCustomer("1", customer.TypePersonal)
		existing.IsVip = true
		originalCreatedAt := existing.CreatedAt

		patch := customer.Customer{
			ID:             "other",
			FullName:       "Renamed",
			DocumentNumber: "CHANGED",
			CustomerType:   customer.TypeBusiness,
			Email:          "renamed@example.com",
			Phone:          "555-9999",
			CreatedAt:      fixedNow,
			Status:         customer.StatusDeleted,
		}

		mockRepo.On("FindByID", ctx, "1").Return(existing, nil).Once()
		mockRepo.On("Save", ctx, mock.MatchedBy(func(c *customer.Customer) bool {
			return c.ID == "1" && c.FullName == "Renamed" && c.DocumentNumber == "DOC-1" && !c.IsVip && !c.IsPym
		})).Return(nil).Once()

		updated, err := service.UpdateCustomer(ctx, "1", patch)

		require.NoError(t, err)
		assert.Equal(t, "1", updated.ID)
		assert.Equal(t, "Renamed", updated.FullName)
		assert.Equal(t, "DOC-1", updated.DocumentNumber)
		assert.Equal(t, customer.TypeBusiness, updated.CustomerType)
		assert.Equal(t, "renamed@example.com", updated.Email)
		assert.Equal(t, "555-9999", updated.Phone)
		assert.Equal(t, originalCreatedAt, updated.CreatedAt)
		require.NotNil(t, updated.ModifiedAt)
		assert.Equal(t, fixedNow, *updated.ModifiedAt)
		assert.Equal(t, customer.StatusActive, updated.Status)
		assert.False(t, updated.IsVip, "flags reset on update")
		assert.False(t, updated.IsPym)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Absent", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "missing").Return(nil, customer.ErrNotFound).Once()

		_, err := service.UpdateCustomer(ctx, "missing", customer.Customer{FullName: "x"})

		assert.ErrorIs(t, err, customer.ErrNotFound)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("Record removed between read and write", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "1").Return(existingCustomer("1", customer.TypePersonal), nil).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(apperrors.ErrNotFound).Once()

		_, err := service.UpdateCustomer(ctx, "1", customer.Customer{FullName: "x"})

		assert.ErrorIs(t, err, customer.ErrNotFound)
	})

	t.Run("Save failure", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "1").Return(existingCustomer("1", customer.TypePersonal), nil).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(errDBDown).Once()

		_, err := service.UpdateCustomer(ctx, "1", customer.Customer{FullName: "x"})

		assert.ErrorIs(t, err, customer.ErrStorageFailure)
	})
}

func TestCustomerService_UpdateVipPymStatus(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name         string
		customerType customer.CustomerType
		flag         bool
		wantVip      bool
		wantPym      bool
	}{
		{name: "Business customer gets PYM", customerType: customer.TypeBusiness, flag: true, wantPym: true},
		{name: "Personal customer gets VIP", customerType: customer.TypePersonal, flag: true, wantVip: true},
		{name: "Clearing VIP", customerType: customer.TypePersonal, flag: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo, _, service := setupTest()
			existing := existingCustomer("1", tt.customerType)
			mockRepo.On("FindByID", ctx, "1").Return(existing, nil).Once()
			mockRepo.On("Save", ctx, mock.MatchedBy(func(c *customer.Customer) bool {
				return c.IsVip == tt.wantVip && c.IsPym == tt.wantPym
			})).Return(nil).Once()

			got, err := service.UpdateVipPymStatus(ctx, "1", tt.flag)

			require.NoError(t, err)
			assert.Equal(t, tt.wantVip, got.IsVip)
			assert.Equal(t, tt.wantPym, got.IsPym)
			assert.Nil(t, got.ModifiedAt, "flag changes do not stamp modifiedAt")
			mockRepo.AssertExpectations(t)
		})
	}

	t.Run("Absent", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "1").Return(nil, customer.ErrNotFound).Once()

		_, err := service.UpdateVipPymStatus(ctx, "1", true)

		assert.ErrorIs(t, err, customer.ErrNotFound)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestCustomerService_DeleteCustomer(t *testing.T) {
	ctx := context.Background()

	t.Run("Marks the record deleted", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "1").Return(existingCustomer("1", customer.TypePersonal), nil).Once()
		mockRepo.On("Save", ctx, mock.MatchedBy(func(c *customer.Customer) bool {
			return c.Status == customer.StatusDeleted && c.ModifiedAt != nil
		})).Return(nil).Once()

		deleted, err := service.DeleteCustomer(ctx, "1")

		require.NoError(t, err)
		assert.Equal(t, customer.StatusDeleted, deleted.Status)
		assert.Equal(t, fixedNow, *deleted.ModifiedAt)
		mockRepo.AssertExpectations(t)
	})

	t.Run("Deleting twice keeps the record deleted", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		already := existingCustomer("1", customer.TypePersonal)
		already.Status = customer.StatusDeleted
		mockRepo.On("FindByID", ctx, "1").Return(already, nil).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(nil).Once()

		deleted, err := service.DeleteCustomer(ctx, "1")

		require.NoError(t, err)
		assert.Equal(t, customer.StatusDeleted, deleted.Status)
	})

	t.Run("Absent without a storage write", func(t *testing.T) {
		mockRepo, _, service := setupTest()
		mockRepo.On("FindByID", ctx, "1").Return(nil, customer.ErrNotFound).Once()

		deleted, err := service.DeleteCustomer(ctx, "1")

		assert.Nil(t, deleted)
		assert.ErrorIs(t, err, customer.ErrNotFound)
		mockRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestCustomerService_Shutdown(t *testing.T) {
	ctx := context.Background()

	t.Run("Waits for in-flight publishes", func(t *testing.T) {
		mockRepo, mockPub, service := setupTest()
		release := make(chan struct{})
		var published sync.WaitGroup
		published.Add(1)

		mockRepo.On("FindByDocumentNumber", ctx, "DOC123").Return(nil, customer.ErrNotFound).Once()
		mockRepo.On("Save", ctx, mock.Anything).Return(nil).Once()
		mockPub.On("PublishCustomerCreated", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
			<-release
			published.Done()
		}).Return(nil).Once()

		_, err := service.CreateCustomer(ctx, customer.Customer{DocumentNumber: "DOC123"})
		require.NoError(t, err)

		shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, service.Shutdown(shortCtx), context.DeadlineExceeded)

		close(release)
		published.Wait()
		drain(t, service)
		mockPub.AssertExpectations(t)
	})

	t.Run("Returns immediately when idle", func(t *testing.T) {
		_, _, service := setupTest()
		drain(t, service)
	})
}

func TestNewCustomerService(t *testing.T) {
	assert.Panics(t, func() {
		customer.NewCustomerService(nil, nil, nil)
	})

	assert.NotPanics(t, func() {
		customer.NewCustomerService(new(customer.MockCustomerRepository), nil, nil)
	})
}

func TestNewCustomerEventPayload(t *testing.T) {
	cust := existingCustomer("7", customer.TypeBusiness)
	cust.IsPym = true

	payload := customer.NewCustomerEventPayload(cust)

	assert.Equal(t, "7", payload.ID)
	assert.Equal(t, "BUSINESS", payload.CustomerType)
	assert.Equal(t, "ACTIVE", payload.Status)
	assert.True(t, payload.IsPym)
	assert.Equal(t, event.CustomerEventPayload{}, customer.NewCustomerEventPayload(nil))
}
