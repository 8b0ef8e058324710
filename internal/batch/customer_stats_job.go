package batch

import (
	"context"
	"customer-service/internal/domain/customer"
	"customer-service/internal/infrastructure/monitoring"
	"fmt"
	"log/slog"
	"time"
)

var (
	knownTypes    = []customer.CustomerType{customer.TypePersonal, customer.TypeBusiness}
	knownStatuses = []customer.Status{customer.StatusActive, customer.StatusDeleted}
)

type CustomerStats struct {
	ByTypeAndStatus map[customer.CustomerType]map[customer.Status]int
	Vip             int
	Pym             int
	Total           int
}

// CustomerStatsJob scans the registry and republishes the customer gauges.
// It never writes customers.
type CustomerStatsJob struct {
	repo   customer.CustomerRepository
	logger *slog.Logger
}

func NewCustomerStatsJob(repo customer.CustomerRepository, logger *slog.Logger) *CustomerStatsJob {
	if repo == nil || logger == nil {
		panic("CustomerStatsJob dependencies cannot be nil")
	}
	return &CustomerStatsJob{
		repo:   repo,
		logger: logger.With("job", "CustomerStats"),
	}
}

func (j *CustomerStatsJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting customer stats job.")

	stats, err := j.collect(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Customer stats job aborted, gauges left untouched.", slog.Any("error", err))
		return err
	}

	for _, t := range knownTypes {
		for _, s := range knownStatuses {
			monitoring.SetCustomersCurrent(t.String(), s.String(), stats.ByTypeAndStatus[t][s])
		}
	}
	monitoring.SetCustomersFlagged("vip", stats.Vip)
	monitoring.SetCustomersFlagged("pym", stats.Pym)

	j.logger.InfoContext(ctx, "Customer stats job finished.",
		slog.Int("total", stats.Total),
		slog.Int("vip", stats.Vip),
		slog.Int("pym", stats.Pym),
		slog.Duration("duration", time.Since(startTime)),
	)
	return nil
}

func (j *CustomerStatsJob) collect(ctx context.Context) (CustomerStats, error) {
	stats := CustomerStats{ByTypeAndStatus: make(map[customer.CustomerType]map[customer.Status]int)}

	for cust, err := range j.repo.FindAll(ctx) {
		if err != nil {
			return CustomerStats{}, fmt.Errorf("scan customers: %w", err)
		}
		if err := ctx.Err(); err != nil {
			return CustomerStats{}, fmt.Errorf("scan customers: %w", err)
		}

		byStatus, ok := stats.ByTypeAndStatus[cust.CustomerType]
		if !ok {
			byStatus = make(map[customer.Status]int)
			stats.ByTypeAndStatus[cust.CustomerType] = byStatus
		}
		byStatus[cust.Status]++
		stats.Total++
		if cust.IsVip {
			stats.Vip++
		}
		if cust.IsPym {
			stats.Pym++
		}
	}
	return stats, nil
}
