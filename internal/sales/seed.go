package sales

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// Seed inserts the sample customers and sales orders used for local
// development. It is a no-op when either table already has rows.
func Seed(ctx context.Context, db *gorm.DB) error {
	var customerCount, orderCount int64
	if err := db.WithContext(ctx).Model(&Customer{}).Count(&customerCount).Error; err != nil {
		return err
	}
	if err := db.WithContext(ctx).Model(&SalesOrder{}).Count(&orderCount).Error; err != nil {
		return err
	}
	if customerCount > 0 || orderCount > 0 {
		return nil
	}

	now := time.Now().UTC()
	daysAgo := func(d int) time.Time { return now.AddDate(0, 0, -d) }

	customers := []Customer{
		{CustomerID: "CUST-001", Name: "Acme Corporation", CreatedAt: daysAgo(30), UpdatedAt: daysAgo(30)},
		{CustomerID: "CUST-002", Name: "Global Tech Solutions", CreatedAt: daysAgo(25), UpdatedAt: daysAgo(25)},
		{CustomerID: "CUST-003", Name: "Innovative Industries", CreatedAt: daysAgo(20), UpdatedAt: daysAgo(20)},
	}
	if err := db.WithContext(ctx).Create(&customers).Error; err != nil {
		return err
	}

	orders := []SalesOrder{
		{SalesOrderID: "SO-2024-001", CustomerID: "CUST-001", OrderDate: daysAgo(15), TotalAmount: 1250.00, CreatedAt: daysAgo(15), UpdatedAt: daysAgo(15)},
		{SalesOrderID: "SO-2024-002", CustomerID: "CUST-002", OrderDate: daysAgo(12), TotalAmount: 2300.50, CreatedAt: daysAgo(12), UpdatedAt: daysAgo(12)},
		{SalesOrderID: "SO-2024-003", CustomerID: "CUST-001", OrderDate: daysAgo(8), TotalAmount: 875.25, CreatedAt: daysAgo(8), UpdatedAt: daysAgo(8)},
		{SalesOrderID: "SO-2024-004", CustomerID: "CUST-003", OrderDate: daysAgo(5), TotalAmount: 3100.75, CreatedAt: daysAgo(5), UpdatedAt: daysAgo(5)},
		{SalesOrderID: "SO-2024-005", CustomerID: "CUST-002", OrderDate: daysAgo(2), TotalAmount: 1680.00, CreatedAt: daysAgo(2), UpdatedAt: daysAgo(2)},
	}
	return db.WithContext(ctx).Create(&orders).Error
}
