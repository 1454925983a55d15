// Package domain contains the operational models the routing core
// touches: the rows the provisioner seeds and patches, the tables the
// aggregator sums, and the user-to-store assignment the resolver reads.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// User carries the branch assignment consumed by request-scope
// resolution. Authentication itself lives elsewhere.
type User struct {
	ID                 snowflake.ID  `gorm:"primaryKey" json:"id"`
	Email              string        `gorm:"type:text;not null;uniqueIndex:ux_users_email" json:"email"`
	Role               string        `gorm:"type:text;not null" json:"role"`
	StoreID            *snowflake.ID `gorm:"column:store_id;index" json:"store_id"`
	CanAccessAllStores bool          `gorm:"column:can_access_all_stores;not null" json:"can_access_all_stores"`
	CreatedAt          time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (User) TableName() string { return "users" }

type Product struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Status    string        `gorm:"type:text;not null;default:active" json:"status"`
	StoreID   *snowflake.ID `gorm:"column:store_id;index" json:"store_id"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Product) TableName() string { return "products" }

type Customer struct {
	ID        snowflake.ID  `gorm:"primaryKey" json:"id"`
	Name      string        `gorm:"type:text;not null" json:"name"`
	Status    string        `gorm:"type:text;not null;default:active" json:"status"`
	StoreID   *snowflake.ID `gorm:"column:store_id;index" json:"store_id"`
	CreatedAt time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Customer) TableName() string { return "customers" }

type SaleInvoice struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Date        time.Time     `gorm:"not null;index" json:"date"`
	TotalAmount float64       `gorm:"column:total_amount;not null" json:"total_amount"`
	PaidAmount  float64       `gorm:"column:paid_amount;not null" json:"paid_amount"`
	DueAmount   float64       `gorm:"column:due_amount;not null" json:"due_amount"`
	StoreID     *snowflake.ID `gorm:"column:store_id;index" json:"store_id"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (SaleInvoice) TableName() string { return "sale_invoices" }

type PurchaseInvoice struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Date        time.Time     `gorm:"not null;index" json:"date"`
	TotalAmount float64       `gorm:"column:total_amount;not null" json:"total_amount"`
	StoreID     *snowflake.ID `gorm:"column:store_id;index" json:"store_id"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (PurchaseInvoice) TableName() string { return "purchase_invoices" }

type Transaction struct {
	ID          snowflake.ID  `gorm:"primaryKey" json:"id"`
	Date        time.Time     `gorm:"not null;index" json:"date"`
	Amount      float64       `gorm:"not null" json:"amount"`
	Type        string        `gorm:"type:text;not null" json:"type"`
	Particulars string        `gorm:"type:text" json:"particulars"`
	StoreID     *snowflake.ID `gorm:"column:store_id;index" json:"store_id"`
	CreatedAt   time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Transaction) TableName() string { return "transactions" }

// AppSetting is the single self-description row of a database. A
// freshly seeded branch database carries a placeholder that the
// provisioner overwrites with the owning branch's identity.
type AppSetting struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	CompanyName string       `gorm:"column:company_name;not null" json:"company_name"`
	TagLine     string       `gorm:"column:tag_line" json:"tag_line"`
	Address     string       `gorm:"type:text" json:"address"`
	Phone       string       `gorm:"type:text" json:"phone"`
	Email       string       `gorm:"type:text" json:"email"`
	UpdatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AppSetting) TableName() string { return "app_settings" }
