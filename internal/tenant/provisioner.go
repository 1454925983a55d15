package tenant

import (
	"context"
	"fmt"
	"time"

	"github.com/smallbiznis/tindahan/internal/config"
	obsmetrics "github.com/smallbiznis/tindahan/internal/observability/metrics"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SchemaApplier applies the full schema migration plus seed data to a
// freshly created branch database. It must be safe to call once per
// new database and must populate the baseline rows the provisioner
// later overwrites.
type SchemaApplier interface {
	ApplySchemaAndSeed(ctx context.Context, conn *gorm.DB) error
}

// DDL executes server-level database statements on the main
// connection. Split out so the provisioning flow is testable without a
// MySQL server.
type DDL interface {
	DatabaseExists(ctx context.Context, name string) (bool, error)
	CreateDatabase(ctx context.Context, name string) error
	DropDatabase(ctx context.Context, name string) error
}

type mysqlDDL struct {
	db *gorm.DB
}

// NewDDL returns the MySQL implementation of server-level DDL.
func NewDDL(db *gorm.DB) DDL { return &mysqlDDL{db: db} }

func (d *mysqlDDL) DatabaseExists(ctx context.Context, name string) (bool, error) {
	var names []string
	err := d.db.WithContext(ctx).Raw(
		"SELECT SCHEMA_NAME FROM INFORMATION_SCHEMA.SCHEMATA WHERE SCHEMA_NAME = ?", name,
	).Scan(&names).Error
	if err != nil {
		return false, err
	}
	return len(names) > 0, nil
}

func (d *mysqlDDL) CreateDatabase(ctx context.Context, name string) error {
	if !validDatabaseName(name) {
		return ErrInvalidDatabaseName
	}
	return d.db.WithContext(ctx).Exec(
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s` CHARACTER SET utf8mb4 COLLATE utf8mb4_unicode_ci", name),
	).Error
}

func (d *mysqlDDL) DropDatabase(ctx context.Context, name string) error {
	if !validDatabaseName(name) {
		return ErrInvalidDatabaseName
	}
	return d.db.WithContext(ctx).Exec(fmt.Sprintf("DROP DATABASE IF EXISTS `%s`", name)).Error
}

// Provisioner turns a registry row without a database into a fully
// migrated, independent branch database, and tears branch databases
// down again.
type Provisioner struct {
	ddl     DDL
	router  *Router
	stores  storedomain.Repository
	applier SchemaApplier
	cfg     config.Config
	log     *zap.Logger
	metrics *obsmetrics.Metrics
}

func NewProvisioner(
	ddl DDL,
	router *Router,
	stores storedomain.Repository,
	applier SchemaApplier,
	cfg config.Config,
	log *zap.Logger,
	metrics *obsmetrics.Metrics,
) *Provisioner {
	return &Provisioner{
		ddl:     ddl,
		router:  router,
		stores:  stores,
		applier: applier,
		cfg:     cfg,
		log:     log.Named("tenant.provisioner"),
		metrics: metrics,
	}
}

// Provision creates (idempotently), migrates, and seeds a branch
// database, then patches its self-description with the branch
// identity. Coordinates and database_created are persisted before
// migration runs, because migration needs the binding. On any failure
// the branch handle is evicted and the error propagates so the caller
// can roll back the registry row.
func (p *Provisioner) Provision(ctx context.Context, store *storedomain.Store) error {
	if store.IsMainStore {
		return ErrMainStoreDatabase
	}

	name := DatabaseName(store)
	if !validDatabaseName(name) {
		return ErrInvalidDatabaseName
	}

	exists, err := p.ddl.DatabaseExists(ctx, name)
	if err != nil {
		return p.fail(store, name, "probe", err)
	}

	if !exists {
		if err := p.ddl.CreateDatabase(ctx, name); err != nil {
			return p.fail(store, name, "create", classifyError(p.cfg.DBUser, err))
		}
	}

	fields := map[string]any{
		"database_name":     name,
		"database_host":     p.cfg.DBHost,
		"database_port":     p.cfg.DBPort,
		"database_user":     p.cfg.DBUser,
		"database_password": p.cfg.DBPassword,
		"database_created":  true,
	}
	if err := p.stores.UpdateFields(ctx, store.ID, fields); err != nil {
		return p.fail(store, name, "bookkeeping", err)
	}

	fresh, err := p.stores.Get(ctx, store.ID)
	if err != nil {
		return p.fail(store, name, "reload", err)
	}
	if fresh == nil {
		return p.fail(store, name, "reload", storedomain.ErrStoreNotFound)
	}

	conn, err := p.router.Bind(ctx, fresh)
	if err != nil {
		return p.fail(store, name, "bind", err)
	}

	if err := p.applier.ApplySchemaAndSeed(ctx, conn); err != nil {
		return p.fail(store, name, "migrate", err)
	}

	if err := p.patchBranchIdentity(ctx, conn, fresh); err != nil {
		return p.fail(store, name, "fixup", err)
	}

	p.metrics.RecordProvision("created")
	p.log.Info("branch database provisioned",
		zap.String("store_id", store.ID.String()),
		zap.String("database", name),
	)
	return nil
}

// Deprovision drops a branch database. Best-effort cleanup: failures
// are logged and reported as false, never raised. The main store's
// database is never dropped.
func (p *Provisioner) Deprovision(ctx context.Context, store *storedomain.Store) bool {
	if store.IsMainStore {
		p.log.Warn("refusing to drop main store database", zap.String("store_id", store.ID.String()))
		return false
	}

	name := ""
	if store.DatabaseName != nil {
		name = *store.DatabaseName
	}
	if name == "" {
		return true
	}

	p.router.Evict(store.ID)

	if err := p.ddl.DropDatabase(ctx, name); err != nil {
		p.log.Error("dropping branch database failed",
			zap.String("store_id", store.ID.String()),
			zap.String("database", name),
			zap.Error(err),
		)
		return false
	}
	return true
}

// CanProvision probes for CREATE DATABASE rights by creating and
// dropping a scratch database under the branch prefix. The drop always
// runs, so the probe never leaves a scratch database behind.
func (p *Provisioner) CanProvision(ctx context.Context) bool {
	name := ScratchDatabaseName()

	createErr := p.ddl.CreateDatabase(ctx, name)
	dropErr := p.ddl.DropDatabase(ctx, name)

	if createErr != nil || dropErr != nil {
		p.log.Warn("provisioning capability probe failed",
			zap.String("database", name),
			zap.NamedError("create", createErr),
			zap.NamedError("drop", dropErr),
		)
		return false
	}
	return true
}

// patchBranchIdentity overwrites the generic seeded self-description of
// a fresh branch database with the owning branch's identity.
func (p *Provisioner) patchBranchIdentity(ctx context.Context, conn *gorm.DB, store *storedomain.Store) error {
	now := time.Now().UTC()

	err := conn.WithContext(ctx).Model(&storedomain.Store{}).
		Where("is_main_store = ?", true).
		Updates(map[string]any{
			"name":       store.Name,
			"code":       store.Code,
			"email":      store.Email,
			"phone":      store.Phone,
			"address":    store.Address,
			"city":       store.City,
			"state":      store.State,
			"zip_code":   store.ZipCode,
			"country":    store.Country,
			"updated_at": now,
		}).Error
	if err != nil {
		return err
	}

	return conn.WithContext(ctx).
		Session(&gorm.Session{AllowGlobalUpdate: true}).
		Model(&posdomain.AppSetting{}).
		Updates(map[string]any{
			"company_name": store.Name,
			"tag_line":     "Branch of POS System",
			"address":      store.Address,
			"phone":        store.Phone,
			"email":        store.Email,
			"updated_at":   now,
		}).Error
}

func (p *Provisioner) fail(store *storedomain.Store, database, step string, err error) error {
	p.router.Evict(store.ID)
	p.metrics.RecordProvision("failed")
	p.log.Error("branch provisioning failed",
		zap.String("store_id", store.ID.String()),
		zap.String("database", database),
		zap.String("step", step),
		zap.Error(err),
	)
	return &ProvisioningError{
		StoreID:  store.ID.String(),
		Database: database,
		Step:     step,
		Err:      err,
	}
}
