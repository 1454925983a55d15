package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/tindahan/internal/auth"
	"github.com/smallbiznis/tindahan/internal/config"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"github.com/smallbiznis/tindahan/internal/store/repository"
	storeservice "github.com/smallbiznis/tindahan/internal/store/service"
	"github.com/smallbiznis/tindahan/internal/tenant"
	dbpkg "github.com/smallbiznis/tindahan/pkg/db"
	"github.com/smallbiznis/tindahan/pkg/tenantctx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const testSecret = "scope-test-secret"

type noopProvisioner struct{}

func (noopProvisioner) Provision(ctx context.Context, store *storedomain.Store) error { return nil }
func (noopProvisioner) Deprovision(ctx context.Context, store *storedomain.Store) bool {
	return true
}

// scopeProbe reports what the resolver put on the request context.
type scopeProbe struct {
	HasScope    bool   `json:"has_scope"`
	AllBranches bool   `json:"all_branches"`
	StoreID     string `json:"store_id"`
	ScopeKey    string `json:"scope_key"`
	BoundConn   bool   `json:"bound_conn"`
}

type middlewareHarness struct {
	db     *gorm.DB
	engine *gin.Engine
	last   *scopeProbe
}

func newMiddlewareHarness(t *testing.T) *middlewareHarness {
	t.Helper()
	gin.SetMode(gin.TestMode)

	main, err := dbpkg.NewTest()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := main.AutoMigrate(&storedomain.Store{}, &posdomain.User{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		t.Fatalf("snowflake: %v", err)
	}

	cfg := config.Config{AuthJWTSecret: testSecret, DBName: "tindahan"}
	repo := repository.NewRepository(main)
	router := tenant.NewRouter(main, cfg, gormlogger.Default.LogMode(gormlogger.Silent), zap.NewNop())
	svc := storeservice.NewService(main, repo, noopProvisioner{}, router, cfg, node, zap.NewNop())

	h := &middlewareHarness{db: main}

	engine := gin.New()
	engine.Use(ErrorHandlingMiddleware())

	srv := NewServer(ServerParams{
		Gin:      engine,
		Cfg:      cfg,
		DB:       main,
		Router:   router,
		StoreSvc: svc,
		Log:      zap.NewNop(),
	})

	engine.GET("/probe", srv.StoreScope(), func(c *gin.Context) {
		probe := scopeProbe{}
		if scope, ok := tenantctx.FromContext(c.Request.Context()); ok {
			probe.HasScope = true
			probe.AllBranches = scope.AllBranches
			probe.BoundConn = scope.Conn != nil
			if scope.Store != nil {
				probe.StoreID = scope.Store.ID.String()
			}
		}
		if key, ok := tenantctx.ScopeKey(c.Request.Context()); ok {
			probe.ScopeKey = key.String()
		}
		h.last = &probe
		c.JSON(http.StatusOK, probe)
	})

	h.engine = engine
	return h
}

func (h *middlewareHarness) addStore(t *testing.T, store storedomain.Store) storedomain.Store {
	t.Helper()
	if store.Status == "" {
		store.Status = storedomain.StatusActive
	}
	if err := h.db.Create(&store).Error; err != nil {
		t.Fatalf("create store: %v", err)
	}
	return store
}

func (h *middlewareHarness) addUser(t *testing.T, user posdomain.User) posdomain.User {
	t.Helper()
	if err := h.db.Create(&user).Error; err != nil {
		t.Fatalf("create user: %v", err)
	}
	return user
}

func (h *middlewareHarness) request(t *testing.T, headers map[string]string) (*httptest.ResponseRecorder, *scopeProbe) {
	t.Helper()
	h.last = nil
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	h.engine.ServeHTTP(rec, req)
	return rec, h.last
}

func bearer(t *testing.T, userID snowflake.ID, role string, storeID *snowflake.ID) string {
	t.Helper()
	token, err := auth.IssueToken(userID, role, storeID, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	return "Bearer " + token
}

func TestScopeAnonymousDefaultsToMainUnfiltered(t *testing.T) {
	h := newMiddlewareHarness(t)

	rec, probe := h.request(t, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if probe.HasScope {
		t.Fatalf("expected no scope, got %+v", probe)
	}
}

func TestScopeMainAlias(t *testing.T) {
	h := newMiddlewareHarness(t)
	main := h.addStore(t, storedomain.Store{ID: 1, Name: "Main", Code: "MAIN", IsMainStore: true})

	rec, probe := h.request(t, map[string]string{HeaderBranch: "main"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !probe.HasScope || probe.StoreID != main.ID.String() {
		t.Fatalf("expected main store scope, got %+v", probe)
	}
	if probe.ScopeKey != "" {
		t.Fatalf("selecting main must not filter shared branches out, got %+v", probe)
	}
	if probe.BoundConn {
		t.Fatal("the main store must never bind a separate connection")
	}
}

func TestScopeMainSelectedByID(t *testing.T) {
	h := newMiddlewareHarness(t)
	main := h.addStore(t, storedomain.Store{ID: 1, Name: "Main", Code: "MAIN", IsMainStore: true})
	admin := h.addUser(t, posdomain.User{ID: 111, Email: "hq@example.com", Role: auth.RoleAdmin})

	rec, probe := h.request(t, map[string]string{
		"Authorization": bearer(t, admin.ID, auth.RoleAdmin, nil),
		HeaderBranch:    main.ID.String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if !probe.HasScope || probe.StoreID != main.ID.String() {
		t.Fatalf("expected main store scope, got %+v", probe)
	}
	if probe.ScopeKey != "" {
		t.Fatalf("selecting main by id must not filter shared branches out, got %+v", probe)
	}
}

func TestScopeMainAliasWithoutMainStore(t *testing.T) {
	h := newMiddlewareHarness(t)

	rec, _ := h.request(t, map[string]string{HeaderBranch: "main"})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a main store, got %d", rec.Code)
	}
}

func TestScopeAdminSelectsSharedBranch(t *testing.T) {
	h := newMiddlewareHarness(t)
	branch := h.addStore(t, storedomain.Store{ID: 2, Name: "Shared", Code: "shared"})
	admin := h.addUser(t, posdomain.User{ID: 100, Email: "admin@example.com", Role: auth.RoleAdmin})

	rec, probe := h.request(t, map[string]string{
		"Authorization": bearer(t, admin.ID, auth.RoleAdmin, nil),
		HeaderBranch:    branch.ID.String(),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d: %s", rec.Code, rec.Body.String())
	}
	if probe.ScopeKey != branch.ID.String() {
		t.Fatalf("expected shared branch scoped by key, got %+v", probe)
	}
	if probe.BoundConn {
		t.Fatal("a shared branch rides the main connection")
	}
}

func TestScopeNonAdminCannotSelectForeignBranch(t *testing.T) {
	h := newMiddlewareHarness(t)
	mine := h.addStore(t, storedomain.Store{ID: 3, Name: "Mine", Code: "mine"})
	foreign := h.addStore(t, storedomain.Store{ID: 4, Name: "Foreign", Code: "foreign"})
	mineID := mine.ID
	staff := h.addUser(t, posdomain.User{ID: 101, Email: "staff@example.com", Role: "staff", StoreID: &mineID})

	rec, _ := h.request(t, map[string]string{
		"Authorization": bearer(t, staff.ID, "staff", &mineID),
		HeaderBranch:    foreign.ID.String(),
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}

	// The same user may select their own branch explicitly.
	rec, probe := h.request(t, map[string]string{
		"Authorization": bearer(t, staff.ID, "staff", &mineID),
		HeaderBranch:    mine.ID.String(),
	})
	if rec.Code != http.StatusOK || probe.ScopeKey != mine.ID.String() {
		t.Fatalf("expected own branch allowed, got %d %+v", rec.Code, probe)
	}
}

func TestScopeAnonymousCannotSelectBranch(t *testing.T) {
	h := newMiddlewareHarness(t)
	branch := h.addStore(t, storedomain.Store{ID: 5, Name: "Closed", Code: "closed"})

	rec, _ := h.request(t, map[string]string{HeaderBranch: branch.ID.String()})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for anonymous branch selection, got %d", rec.Code)
	}
}

func TestScopeAllBranchesAdmin(t *testing.T) {
	h := newMiddlewareHarness(t)
	admin := h.addUser(t, posdomain.User{ID: 102, Email: "boss@example.com", Role: auth.RoleAdmin})

	rec, probe := h.request(t, map[string]string{
		"Authorization":   bearer(t, admin.ID, auth.RoleAdmin, nil),
		HeaderAllBranches: "true",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if !probe.AllBranches {
		t.Fatalf("expected all-branches scope, got %+v", probe)
	}
	if probe.ScopeKey != "" {
		t.Fatal("overview mode must not carry a scoping key")
	}
}

func TestScopeAllBranchesDeniedForRegularStaff(t *testing.T) {
	h := newMiddlewareHarness(t)
	staff := h.addUser(t, posdomain.User{ID: 103, Email: "floor@example.com", Role: "staff"})

	_, probe := h.request(t, map[string]string{
		"Authorization":   bearer(t, staff.ID, "staff", nil),
		HeaderAllBranches: "true",
	})
	if probe.AllBranches {
		t.Fatal("staff without all-store access must not get overview mode")
	}
}

func TestScopeAllBranchesViaUserFlag(t *testing.T) {
	h := newMiddlewareHarness(t)
	manager := h.addUser(t, posdomain.User{
		ID: 104, Email: "regional@example.com", Role: "manager", CanAccessAllStores: true,
	})

	_, probe := h.request(t, map[string]string{
		"Authorization":   bearer(t, manager.ID, "manager", nil),
		HeaderAllBranches: "true",
	})
	if !probe.AllBranches {
		t.Fatalf("expected the registry flag to grant overview mode, got %+v", probe)
	}
}

func TestScopeCustomerNeverGetsBranchContext(t *testing.T) {
	h := newMiddlewareHarness(t)
	branch := h.addStore(t, storedomain.Store{ID: 6, Name: "Front", Code: "front"})
	branchID := branch.ID
	customer := h.addUser(t, posdomain.User{
		ID: 105, Email: "buyer@example.com", Role: auth.RoleCustomer, StoreID: &branchID,
	})

	rec, probe := h.request(t, map[string]string{
		"Authorization":   bearer(t, customer.ID, auth.RoleCustomer, &branchID),
		HeaderBranch:      branch.ID.String(),
		HeaderAllBranches: "true",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if probe.HasScope {
		t.Fatalf("customers must resolve no branch context, got %+v", probe)
	}
}

func TestScopeAssignedStoreWithoutHeaders(t *testing.T) {
	h := newMiddlewareHarness(t)
	branch := h.addStore(t, storedomain.Store{ID: 7, Name: "Home", Code: "home"})
	branchID := branch.ID
	staff := h.addUser(t, posdomain.User{ID: 106, Email: "home@example.com", Role: "staff", StoreID: &branchID})

	_, probe := h.request(t, map[string]string{
		"Authorization": bearer(t, staff.ID, "staff", &branchID),
	})
	if probe.ScopeKey != branch.ID.String() {
		t.Fatalf("expected the assigned branch resolved, got %+v", probe)
	}
}

func TestScopeInactiveAssignmentIgnored(t *testing.T) {
	h := newMiddlewareHarness(t)
	branch := h.addStore(t, storedomain.Store{
		ID: 8, Name: "Shut", Code: "shut", Status: storedomain.StatusInactive,
	})
	branchID := branch.ID
	staff := h.addUser(t, posdomain.User{ID: 107, Email: "shut@example.com", Role: "staff", StoreID: &branchID})

	rec, probe := h.request(t, map[string]string{
		"Authorization": bearer(t, staff.ID, "staff", &branchID),
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if probe.HasScope {
		t.Fatalf("an inactive assignment must resolve no scope, got %+v", probe)
	}
}

func TestScopeInvalidTokenTreatedAsAnonymous(t *testing.T) {
	h := newMiddlewareHarness(t)

	rec, probe := h.request(t, map[string]string{"Authorization": "Bearer not-a-token"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if probe.HasScope {
		t.Fatalf("expected anonymous resolution, got %+v", probe)
	}
}

func TestScopeExpiredTokenTreatedAsAnonymous(t *testing.T) {
	h := newMiddlewareHarness(t)
	staff := h.addUser(t, posdomain.User{ID: 108, Email: "late@example.com", Role: "staff"})

	token, err := auth.IssueToken(staff.ID, "staff", nil, testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rec, probe := h.request(t, map[string]string{"Authorization": "Bearer " + token})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if probe.HasScope {
		t.Fatalf("expected anonymous resolution for an expired token, got %+v", probe)
	}
}

func TestScopeInvalidBranchHeader(t *testing.T) {
	h := newMiddlewareHarness(t)
	admin := h.addUser(t, posdomain.User{ID: 109, Email: "root@example.com", Role: auth.RoleAdmin})

	rec, _ := h.request(t, map[string]string{
		"Authorization": bearer(t, admin.ID, auth.RoleAdmin, nil),
		HeaderBranch:    "not-a-number",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a malformed branch id, got %d", rec.Code)
	}
}

func TestScopeAdminUnknownBranch(t *testing.T) {
	h := newMiddlewareHarness(t)
	admin := h.addUser(t, posdomain.User{ID: 110, Email: "admin2@example.com", Role: auth.RoleAdmin})

	rec, _ := h.request(t, map[string]string{
		"Authorization": bearer(t, admin.ID, auth.RoleAdmin, nil),
		HeaderBranch:    "424242",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for an unknown branch, got %d", rec.Code)
	}
}
