// Package domain contains persistence models for the store registry.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Store represents one branch of the business. A branch either owns a
// dedicated database (DatabaseCreated true) or shares the main database
// and is isolated by a store_id scoping key.
type Store struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	Name      string       `gorm:"type:text;not null;uniqueIndex:ux_stores_name" json:"name"`
	Code      string       `gorm:"type:text;not null;uniqueIndex:ux_stores_code" json:"code"`
	Email     string       `gorm:"type:text" json:"email"`
	Phone     string       `gorm:"type:text" json:"phone"`
	Address   string       `gorm:"type:text" json:"address"`
	City      string       `gorm:"type:text" json:"city"`
	State     string       `gorm:"type:text" json:"state"`
	ZipCode   string       `gorm:"column:zip_code" json:"zip_code"`
	Country   string       `gorm:"type:text" json:"country"`
	TaxNumber string       `gorm:"column:tax_number" json:"tax_number"`
	Currency  string       `gorm:"type:text" json:"currency"`

	IsMainStore bool   `gorm:"column:is_main_store;not null" json:"is_main_store"`
	Status      string `gorm:"type:text;not null;default:active" json:"status"`

	// Connection coordinates, populated by the provisioner. Null until
	// provisioning completes; for the main store they mirror the
	// process's own connection configuration.
	DatabaseName     *string `gorm:"column:database_name" json:"database_name"`
	DatabaseHost     *string `gorm:"column:database_host" json:"database_host"`
	DatabasePort     *string `gorm:"column:database_port" json:"database_port"`
	DatabaseUser     *string `gorm:"column:database_user" json:"database_user"`
	DatabasePassword *string `gorm:"column:database_password" json:"-"`
	DatabaseCreated  bool    `gorm:"column:database_created;not null" json:"database_created"`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Store) TableName() string { return "stores" }

// Active reports whether the store participates in routing and
// aggregation.
func (s *Store) Active() bool { return s.Status == StatusActive }

// Provisioned reports whether the store owns a dedicated database.
func (s *Store) Provisioned() bool {
	return s.DatabaseCreated && s.DatabaseName != nil && *s.DatabaseName != ""
}
