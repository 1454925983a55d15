package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// ListFilter narrows List results. Zero value lists everything.
type ListFilter struct {
	ActiveOnly      bool
	ProvisionedOnly bool
	Status          string
	Query           string
	Page            int
	PageSize        int
}

// Repository is the durable store registry. All components read it
// fresh; nothing caches registry rows across requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, store *Store) error
	Get(ctx context.Context, id snowflake.ID) (*Store, error)
	GetMain(ctx context.Context) (*Store, error)
	List(ctx context.Context, filter ListFilter) ([]Store, error)
	Count(ctx context.Context, filter ListFilter) (int64, error)
	Update(ctx context.Context, store *Store) error
	UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error
	// UnsetMainExcept clears is_main_store on every row except the
	// given one, preserving the single-main invariant.
	UnsetMainExcept(ctx context.Context, id snowflake.ID) error
	HasAssignedUsers(ctx context.Context, id snowflake.ID) (bool, error)
}
