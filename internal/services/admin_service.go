package services

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/internal/models"
)

const lowStockThreshold = 5

type AdminService struct {
	db  *gorm.DB
	now func() time.Time
}

func NewAdminService(db *gorm.DB) *AdminService {
	return &AdminService{db: db, now: time.Now}
}

// DashboardStats summarises the shop for the admin dashboard.
type DashboardStats struct {
	TotalCustomers   int64            `json:"totalCustomers"`
	TotalOrders      int64            `json:"totalOrders"`
	OrdersByStatus   map[string]int64 `json:"ordersByStatus"`
	Revenue          decimal.Decimal  `json:"revenue"`
	TodayRevenue     decimal.Decimal  `json:"todayRevenue"`
	ActiveProducts   int64            `json:"activeProducts"`
	LowStockProducts int64            `json:"lowStockProducts"`
}

type statusCount struct {
	OrderStatus string
	Count       int64
}

// Stats computes dashboard totals. Revenue figures exclude cancelled orders.
func (s *AdminService) Stats(ctx context.Context, p Principal) (*DashboardStats, error) {
	if err := p.RequireAdmin(); err != nil {
		return nil, err
	}

	db := s.db.WithContext(ctx)
	stats := &DashboardStats{OrdersByStatus: map[string]int64{}}

	if err := db.Model(&models.Customer{}).Count(&stats.TotalCustomers).Error; err != nil {
		return nil, Upstream("Failed to load stats", err)
	}
	if err := db.Model(&models.Order{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, Upstream("Failed to load stats", err)
	}

	var counts []statusCount
	if err := db.Model(&models.Order{}).
		Select("order_status, COUNT(*) AS count").
		Group("order_status").
		Scan(&counts).Error; err != nil {
		return nil, Upstream("Failed to load stats", err)
	}
	for _, c := range counts {
		stats.OrdersByStatus[c.OrderStatus] = c.Count
	}

	var amounts []decimal.Decimal
	if err := db.Model(&models.Order{}).
		Where("order_status <> ?", models.OrderStatusCancelled).
		Pluck("total_amount", &amounts).Error; err != nil {
		return nil, Upstream("Failed to load stats", err)
	}
	stats.Revenue = decimal.Sum(decimal.Zero, amounts...)

	now := s.now()
	startOfDay := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var today []decimal.Decimal
	if err := db.Model(&models.Order{}).
		Where("order_status <> ? AND created_at >= ?", models.OrderStatusCancelled, startOfDay).
		Pluck("total_amount", &today).Error; err != nil {
		return nil, Upstream("Failed to load stats", err)
	}
	stats.TodayRevenue = decimal.Sum(decimal.Zero, today...)

	if err := db.Model(&models.Product{}).Where("is_active = ?", true).Count(&stats.ActiveProducts).Error; err != nil {
		return nil, Upstream("Failed to load stats", err)
	}
	if err := db.Model(&models.Product{}).
		Where("is_active = ? AND stock <= ?", true, lowStockThreshold).
		Count(&stats.LowStockProducts).Error; err != nil {
		return nil, Upstream("Failed to load stats", err)
	}

	return stats, nil
}
