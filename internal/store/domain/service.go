package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

var (
	ErrInvalidName        = errors.New("invalid_name")
	ErrStoreNotFound      = errors.New("store_not_found")
	ErrMainStoreProtected = errors.New("main_store_protected")
	ErrDuplicateStore     = errors.New("duplicate_store")
)

type Service interface {
	Create(ctx context.Context, req CreateStoreRequest) (*Store, error)
	Get(ctx context.Context, id snowflake.ID) (*Store, error)
	GetMain(ctx context.Context) (*Store, error)
	List(ctx context.Context, filter ListFilter) ([]Store, error)
	ListPaginated(ctx context.Context, filter ListFilter) (*StorePage, error)
	Update(ctx context.Context, id snowflake.ID, req UpdateStoreRequest) (*Store, error)
	// Delete never hard-deletes. The main store is rejected; stores
	// with assigned users are only deactivated; otherwise the branch
	// database is dropped best-effort before deactivation.
	Delete(ctx context.Context, id snowflake.ID) (*DeleteResult, error)
	Statistics(ctx context.Context, id snowflake.ID) (*StoreStatistics, error)
	// ProvisionDatabase creates the branch database for one store on
	// demand. Already provisioned stores are reported without
	// re-running migration.
	ProvisionDatabase(ctx context.Context, id snowflake.ID) (*ProvisionResult, error)
	AssignUser(ctx context.Context, userID, storeID snowflake.ID) error
}

type CreateStoreRequest struct {
	Name        string `json:"name" binding:"required"`
	Code        string `json:"code"`
	Email       string `json:"email"`
	Phone       string `json:"phone"`
	Address     string `json:"address"`
	City        string `json:"city"`
	State       string `json:"state"`
	ZipCode     string `json:"zip_code"`
	Country     string `json:"country"`
	TaxNumber   string `json:"tax_number"`
	Currency    string `json:"currency"`
	IsMainStore bool   `json:"is_main_store"`
}

type UpdateStoreRequest struct {
	Name        *string `json:"name"`
	Code        *string `json:"code"`
	Email       *string `json:"email"`
	Phone       *string `json:"phone"`
	Address     *string `json:"address"`
	City        *string `json:"city"`
	State       *string `json:"state"`
	ZipCode     *string `json:"zip_code"`
	Country     *string `json:"country"`
	TaxNumber   *string `json:"tax_number"`
	Currency    *string `json:"currency"`
	IsMainStore *bool   `json:"is_main_store"`
}

type StorePage struct {
	Stores   []Store `json:"stores"`
	Total    int64   `json:"total"`
	Page     int     `json:"page"`
	PageSize int     `json:"page_size"`
}

type DeleteResult struct {
	Deactivated     bool `json:"deactivated"`
	DatabaseDropped bool `json:"database_dropped"`
}

type ProvisionResult struct {
	Created      bool   `json:"created"`
	DatabaseName string `json:"database_name"`
	Message      string `json:"message"`
}

type StoreStatistics struct {
	TotalProducts        int64   `json:"total_products"`
	TotalCustomers       int64   `json:"total_customers"`
	TotalSaleInvoices    int64   `json:"total_sale_invoices"`
	TotalPurchases       int64   `json:"total_purchase_invoices"`
	TotalSalesAmount     float64 `json:"total_sales_amount"`
	TotalPurchaseAmount  float64 `json:"total_purchase_amount"`
	TotalAssignedUsers   int64   `json:"total_assigned_users"`
	UsesDedicatedStorage bool    `json:"uses_dedicated_storage"`
}
