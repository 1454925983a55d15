package server

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tindahan/internal/auth"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"github.com/smallbiznis/tindahan/pkg/tenantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// HeaderBranch selects a branch explicitly: a store ID, or the
	// literal "main".
	HeaderBranch = "X-Branch-Id"

	// HeaderAllBranches requests cross-branch overview mode.
	HeaderAllBranches = "X-All-Branches"

	mainBranchAlias = "main"
)

// StoreScope resolves the branch context of every request and stores it
// on the request context. Resolution reads the registry fresh each
// request, never a cached assignment, so a re-provisioned or
// deactivated branch takes effect immediately. Requests that resolve no
// branch run against main without a scoping key.
func (s *Server) StoreScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		claims := s.parseClaims(c)

		// Customers are storefront accounts. They never carry branch
		// context regardless of headers.
		if claims != nil && claims.Role == auth.RoleCustomer {
			c.Next()
			return
		}

		user := s.lookupUser(ctx, claims)

		if s.wantsAllBranches(c, claims, user) {
			s.applyScope(c, &tenantctx.Scope{AllBranches: true})
			c.Next()
			return
		}

		if header := strings.TrimSpace(c.GetHeader(HeaderBranch)); header != "" {
			s.resolveHeaderBranch(c, header, claims, user)
			return
		}

		if user != nil && user.StoreID != nil {
			store, err := s.storeSvc.Get(ctx, *user.StoreID)
			if err != nil {
				AbortWithError(c, err)
				return
			}
			if store != nil && store.Active() {
				s.bindStore(c, store)
				return
			}
		}

		c.Next()
	}
}

func (s *Server) resolveHeaderBranch(c *gin.Context, header string, claims *auth.Claims, user *posdomain.User) {
	ctx := c.Request.Context()

	if strings.EqualFold(header, mainBranchAlias) {
		main, err := s.storeSvc.GetMain(ctx)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if main == nil {
			AbortWithError(c, storedomain.ErrStoreNotFound)
			return
		}
		s.bindStore(c, main)
		return
	}

	storeID, err := snowflake.ParseString(header)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if !canSelectBranch(claims, user, storeID) {
		AbortWithError(c, ErrForbidden)
		return
	}

	store, err := s.storeSvc.Get(ctx, storeID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if store == nil {
		AbortWithError(c, storedomain.ErrStoreNotFound)
		return
	}

	s.bindStore(c, store)
}

// bindStore turns one registry row into a request scope. Provisioned
// branches get their own connection handle; shared branches get a
// row-level scoping key against the main connection. The main store
// resolves to the main connection with no scoping key at all, so an
// explicit main selection sees every shared branch's rows.
func (s *Server) bindStore(c *gin.Context, store *storedomain.Store) {
	scope := &tenantctx.Scope{Store: store}

	switch {
	case store.IsMainStore:
	case store.Provisioned():
		conn, err := s.router.Bind(c.Request.Context(), store)
		if err != nil {
			s.log.Error("binding branch database failed",
				zap.String("store_id", store.ID.String()),
				zap.Error(err),
			)
			AbortWithError(c, err)
			return
		}
		scope.Conn = conn
	default:
		id := store.ID
		scope.StoreID = &id
	}

	s.applyScope(c, scope)
	c.Next()
}

func (s *Server) applyScope(c *gin.Context, scope *tenantctx.Scope) {
	c.Request = c.Request.WithContext(tenantctx.WithScope(c.Request.Context(), scope))
}

// parseClaims extracts bearer token claims. Missing, malformed, or
// expired tokens all resolve to anonymous rather than an error; routes
// that require authentication enforce it separately.
func (s *Server) parseClaims(c *gin.Context) *auth.Claims {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil
	}
	tokenStr, found := strings.CutPrefix(header, "Bearer ")
	if !found {
		return nil
	}

	claims, err := auth.ParseToken(strings.TrimSpace(tokenStr), s.cfg.AuthJWTSecret)
	if err != nil {
		return nil
	}
	return claims
}

// lookupUser reads the token owner's current row so branch assignment
// reflects the registry, not the (possibly stale) token payload.
func (s *Server) lookupUser(ctx context.Context, claims *auth.Claims) *posdomain.User {
	if claims == nil {
		return nil
	}
	var user posdomain.User
	err := s.db.WithContext(ctx).First(&user, "id = ?", claims.UserID).Error
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			s.log.Warn("user lookup failed", zap.Error(err))
		}
		return nil
	}
	return &user
}

func (s *Server) wantsAllBranches(c *gin.Context, claims *auth.Claims, user *posdomain.User) bool {
	if !strings.EqualFold(c.GetHeader(HeaderAllBranches), "true") {
		return false
	}
	if claims != nil && claims.Admin() {
		return true
	}
	return user != nil && user.CanAccessAllStores
}

// canSelectBranch limits explicit branch selection: admins and
// all-store users pick any branch, everyone else only their own.
func canSelectBranch(claims *auth.Claims, user *posdomain.User, storeID snowflake.ID) bool {
	if claims != nil && claims.Admin() {
		return true
	}
	if user == nil {
		return false
	}
	if user.CanAccessAllStores {
		return true
	}
	return user.StoreID != nil && *user.StoreID == storeID
}
