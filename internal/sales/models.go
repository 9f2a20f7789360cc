package sales

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Customer struct {
	ID         uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	CustomerID string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"customerId"`
	Name       string    `gorm:"type:varchar(200);not null" json:"name"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func (Customer) TableName() string { return "customers" }

func (c *Customer) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	return nil
}

type SalesOrder struct {
	ID           uuid.UUID `gorm:"type:char(36);primaryKey" json:"id"`
	SalesOrderID string    `gorm:"type:varchar(50);uniqueIndex;not null" json:"salesOrderId"`
	// Logical reference to Customer.CustomerID; not enforced by the schema.
	CustomerID  string    `gorm:"type:varchar(50);index;not null" json:"customerId"`
	OrderDate   time.Time `gorm:"index;not null" json:"orderDate"`
	TotalAmount float64   `gorm:"type:decimal(18,2);not null" json:"totalAmount"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (SalesOrder) TableName() string { return "sales_orders" }

func (s *SalesOrder) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
