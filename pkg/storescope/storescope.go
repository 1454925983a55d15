// Package storescope applies the row-level scoping key to queries that
// run against the shared main database on behalf of a branch without
// its own database.
package storescope

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/pkg/tenantctx"
	"gorm.io/gorm"
)

// WithStore narrows tx to rows owned by the given store.
func WithStore(tx *gorm.DB, storeID snowflake.ID) *gorm.DB {
	return tx.Where("store_id = ?", storeID)
}

// Apply narrows tx with the request's scoping key when one is set.
// Requests with physical isolation or cross-branch visibility pass
// through unfiltered.
func Apply(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if storeID, ok := tenantctx.ScopeKey(ctx); ok {
		return WithStore(tx, storeID)
	}
	return tx
}
