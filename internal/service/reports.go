package service

import (
	"context"
	"time"

	"dolmen/pos/internal/domain"
	"dolmen/pos/internal/store"
)

// Summarize aggregates sales recorded in [from, to). An empty window yields
// zero totals.
func (s *Service) Summarize(ctx context.Context, from time.Time, to time.Time) (domain.Summary, error) {
	if _, err := s.authorize(ctx, OpViewReports); err != nil {
		return domain.Summary{}, err
	}
	if !from.Before(to) {
		return domain.Summary{}, store.Invalid("to", "must be after from")
	}
	return s.repo.SummarizeSales(ctx, from, to)
}

// DaySummary covers today, from local midnight to the next midnight.
func (s *Service) DaySummary(ctx context.Context) (domain.Summary, error) {
	from, to := DayWindow(s.now().In(s.loc))
	return s.Summarize(ctx, from, to)
}

// MonthToDate covers the first of the current month up to the end of today.
func (s *Service) MonthToDate(ctx context.Context) (domain.Summary, error) {
	from, to := MonthToDateWindow(s.now().In(s.loc))
	return s.Summarize(ctx, from, to)
}

// PurchaseWindow is the default range of the purchase history: the current
// month up to the end of today on the service clock.
func (s *Service) PurchaseWindow() (time.Time, time.Time) {
	return MonthToDateWindow(s.now().In(s.loc))
}

// Location is the zone reporting windows and bare dates are resolved in.
func (s *Service) Location() *time.Location {
	return s.loc
}

func (s *Service) Dashboard(ctx context.Context) (domain.DashboardStats, error) {
	if _, err := s.authorize(ctx, OpViewDashboard); err != nil {
		return domain.DashboardStats{}, err
	}

	total, low, err := s.repo.InventoryStats(ctx, s.lowStockThreshold)
	if err != nil {
		return domain.DashboardStats{}, err
	}
	from, to := DayWindow(s.now().In(s.loc))
	today, err := s.repo.SummarizeSales(ctx, from, to)
	if err != nil {
		return domain.DashboardStats{}, err
	}

	return domain.DashboardStats{
		TotalStock:        total,
		TodayRevenue:      today.TotalRevenue,
		LowStockItems:     low,
		LowStockThreshold: s.lowStockThreshold,
	}, nil
}

func DayWindow(now time.Time) (time.Time, time.Time) {
	y, m, d := now.Date()
	from := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 0, 1)
}

func MonthToDateWindow(now time.Time) (time.Time, time.Time) {
	_, to := DayWindow(now)
	y, m, _ := now.Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, now.Location()), to
}
