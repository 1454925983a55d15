package tenant

import (
	"container/list"
	"context"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/internal/config"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	dbpkg "github.com/smallbiznis/tindahan/pkg/db"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	defaultPoolSize = 32

	defaultBranchTimeout = 10 * time.Second
)

// coordinates are the effective connection parameters of a branch
// database, with per-field fallback to the process configuration.
type coordinates struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

func (c coordinates) fingerprint() string {
	return strings.Join([]string{c.Host, c.Port, c.User, c.Password, c.Name}, "|")
}

func (c coordinates) dsn() string {
	return dbpkg.MySQLDSN(c.User, c.Password, c.Host, c.Port, c.Name)
}

func (c coordinates) dsnWithTimeout(timeout time.Duration) string {
	return dbpkg.MySQLDSNWithTimeout(c.User, c.Password, c.Host, c.Port, c.Name, timeout)
}

type pooledConn struct {
	storeID     snowflake.ID
	conn        *gorm.DB
	fingerprint string
	element     *list.Element
}

// Router hands out the database handle backing a request. It keeps no
// "current tenant": every Bind returns a handle the caller threads
// through request-scoped context, so concurrent requests bound to
// different branches cannot cross-contaminate.
//
// Branch handles are cached in an LRU-bounded pool keyed by store ID
// and evicted when the registry coordinates change, so a rebinding
// after a credential rotation can never reuse a stale connection.
type Router struct {
	main    *gorm.DB
	cfg     config.Config
	log     *zap.Logger
	gormLog gormlogger.Interface

	mu       sync.Mutex
	pool     map[snowflake.ID]*pooledConn
	lru      *list.List
	capacity int

	// open is swappable in tests.
	open func(dsn string) (*gorm.DB, error)
}

func NewRouter(main *gorm.DB, cfg config.Config, gormLog gormlogger.Interface, log *zap.Logger) *Router {
	capacity := cfg.TenantPoolSize
	if capacity <= 0 {
		capacity = defaultPoolSize
	}

	r := &Router{
		main:     main,
		cfg:      cfg,
		log:      log.Named("tenant.router"),
		gormLog:  gormLog,
		pool:     make(map[snowflake.ID]*pooledConn),
		lru:      list.New(),
		capacity: capacity,
	}
	r.open = func(dsn string) (*gorm.DB, error) {
		return dbpkg.Open(mysql.Open(dsn), gormLog)
	}
	return r
}

// Main returns the default connection.
func (r *Router) Main() *gorm.DB { return r.main }

// Bind resolves the database handle for a store. Stores without a
// dedicated database, and the main store itself, silently resolve to
// the main connection. A failed bind returns an error and leaves the
// pool untouched, so the caller still holds the main connection rather
// than a half-bound one.
func (r *Router) Bind(ctx context.Context, store *storedomain.Store) (*gorm.DB, error) {
	if store == nil || store.IsMainStore || !store.Provisioned() {
		return r.main, nil
	}

	coords := r.coordinatesFor(store)

	r.mu.Lock()
	defer r.mu.Unlock()

	if entry, ok := r.pool[store.ID]; ok {
		if entry.fingerprint == coords.fingerprint() {
			r.lru.MoveToFront(entry.element)
			return entry.conn, nil
		}
		// Coordinates changed; a cached handle would hit the wrong
		// database or use revoked credentials.
		r.removeLocked(entry)
	}

	conn, err := r.open(coords.dsn())
	if err != nil {
		r.log.Warn("branch bind failed",
			zap.String("store_id", store.ID.String()),
			zap.String("database", coords.Name),
			zap.Error(err),
		)
		return nil, err
	}

	entry := &pooledConn{
		storeID:     store.ID,
		conn:        conn,
		fingerprint: coords.fingerprint(),
	}
	entry.element = r.lru.PushFront(entry)
	r.pool[store.ID] = entry

	for r.lru.Len() > r.capacity {
		oldest := r.lru.Back()
		if oldest == nil {
			break
		}
		r.removeLocked(oldest.Value.(*pooledConn))
	}

	return conn, nil
}

// OpenTransient opens a dedicated, unpooled connection to a branch
// database. The aggregator uses these so at most one extra connection
// exists at a time; the caller must close it via db.Close. The DSN
// carries dial and I/O deadlines so an unreachable branch host fails
// within the per-branch budget.
func (r *Router) OpenTransient(ctx context.Context, store *storedomain.Store) (*gorm.DB, error) {
	if store == nil || !store.Provisioned() {
		return nil, ErrNotProvisioned
	}
	if store.IsMainStore {
		return nil, ErrMainStoreDatabase
	}

	timeout := r.cfg.BranchQueryTimeout
	if timeout <= 0 {
		timeout = defaultBranchTimeout
	}
	conn, err := r.open(r.coordinatesFor(store).dsnWithTimeout(timeout))
	if err != nil {
		return nil, err
	}
	if sqlDB, err := conn.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	}
	return conn, nil
}

// Evict drops a store's cached handle, closing the underlying pool.
// Called after deprovisioning and on provisioning failure.
func (r *Router) Evict(storeID snowflake.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.pool[storeID]; ok {
		r.removeLocked(entry)
	}
}

// Close releases every cached branch handle. The main connection is
// owned by the application lifecycle, not the router.
func (r *Router) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, entry := range r.pool {
		r.removeLocked(entry)
	}
}

// Size reports the number of cached branch handles.
func (r *Router) Size() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Len()
}

func (r *Router) removeLocked(entry *pooledConn) {
	r.lru.Remove(entry.element)
	delete(r.pool, entry.storeID)
	if err := dbpkg.Close(entry.conn); err != nil {
		r.log.Warn("closing branch handle failed",
			zap.String("store_id", entry.storeID.String()),
			zap.Error(err),
		)
	}
}

func (r *Router) coordinatesFor(store *storedomain.Store) coordinates {
	return coordinates{
		Host:     fallback(store.DatabaseHost, r.cfg.DBHost),
		Port:     fallback(store.DatabasePort, r.cfg.DBPort),
		User:     fallback(store.DatabaseUser, r.cfg.DBUser),
		Password: fallback(store.DatabasePassword, r.cfg.DBPassword),
		Name:     fallback(store.DatabaseName, ""),
	}
}

func fallback(value *string, def string) string {
	if value != nil && *value != "" {
		return *value
	}
	return def
}
