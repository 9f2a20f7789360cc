package sales

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

// RepoFactory hands out a repository backed by its own gorm session, so
// each tool dispatch gets a scoped handle rather than sharing one across
// a whole streaming request.
type RepoFactory func() *Repo

// NewRepoFactory builds a factory over the shared connection pool.
func NewRepoFactory(db *gorm.DB) RepoFactory {
	return func() *Repo {
		return &Repo{db: db.Session(&gorm.Session{NewDB: true})}
	}
}

// ListCustomers returns all customers ordered by name. The result is
// never nil, so an empty table serializes as an empty JSON array.
func (r *Repo) ListCustomers(ctx context.Context) ([]Customer, error) {
	customers := []Customer{}
	if err := r.db.WithContext(ctx).
		Order("name ASC").
		Find(&customers).Error; err != nil {
		return nil, err
	}
	return customers, nil
}

// GetCustomer looks up a customer by business key. A missing customer is
// not an error: the result is (nil, nil).
func (r *Repo) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	var c Customer
	err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ListSalesOrders returns all sales orders, most recent order first.
func (r *Repo) ListSalesOrders(ctx context.Context) ([]SalesOrder, error) {
	orders := []SalesOrder{}
	if err := r.db.WithContext(ctx).
		Order("order_date DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}

// SalesOrdersForCustomer returns a customer's sales orders, most recent
// order first.
func (r *Repo) SalesOrdersForCustomer(ctx context.Context, customerID string) ([]SalesOrder, error) {
	orders := []SalesOrder{}
	if err := r.db.WithContext(ctx).
		Where("customer_id = ?", customerID).
		Order("order_date DESC").
		Find(&orders).Error; err != nil {
		return nil, err
	}
	return orders, nil
}
