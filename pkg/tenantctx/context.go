// Package tenantctx carries per-request branch routing state. The
// binding travels inside the request context instead of any
// process-wide "current tenant" value, so concurrent requests bound to
// different branches can never observe each other's connection.
package tenantctx

import (
	"context"

	"github.com/bwmarrin/snowflake"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"gorm.io/gorm"
)

type scopeKey struct{}

// Scope is the routing decision for one request.
type Scope struct {
	// Store is the resolved branch record, nil when the request runs
	// against main with no branch context.
	Store *storedomain.Store

	// Conn is the bound branch database handle. Nil means the main
	// connection backs this request.
	Conn *gorm.DB

	// StoreID is the row-level scoping key applied to shared-database
	// queries. Nil when isolation is physical or when cross-branch
	// visibility applies.
	StoreID *snowflake.ID

	// AllBranches marks overview mode: main connection, no filter.
	AllBranches bool
}

// WithScope stores the routing scope in the context.
func WithScope(ctx context.Context, scope *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, scope)
}

// FromContext returns the routing scope, if one was resolved.
func FromContext(ctx context.Context) (*Scope, bool) {
	if ctx == nil {
		return nil, false
	}
	scope, ok := ctx.Value(scopeKey{}).(*Scope)
	return scope, ok && scope != nil
}

// Conn returns the database handle data access must target: the bound
// branch handle when present, the main handle otherwise.
func Conn(ctx context.Context, main *gorm.DB) *gorm.DB {
	if scope, ok := FromContext(ctx); ok && scope.Conn != nil {
		return scope.Conn
	}
	return main
}

// ScopeKey returns the row-level scoping key, if one applies.
func ScopeKey(ctx context.Context) (snowflake.ID, bool) {
	scope, ok := FromContext(ctx)
	if !ok || scope.StoreID == nil {
		return 0, false
	}
	return *scope.StoreID, true
}
