// Command branchdb provisions a dedicated database for every branch
// that still lacks one. It is the batch counterpart of the on-demand
// provisioning endpoint, intended for initial rollout and repair.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/internal/config"
	"github.com/smallbiznis/tindahan/internal/migration"
	obslogger "github.com/smallbiznis/tindahan/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/tindahan/internal/observability/metrics"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	storerepository "github.com/smallbiznis/tindahan/internal/store/repository"
	"github.com/smallbiznis/tindahan/internal/tenant"
	dbpkg "github.com/smallbiznis/tindahan/pkg/db"
	"go.uber.org/zap"
)

func main() {
	force := flag.Bool("force", false, "recreate branch databases that already exist")
	flag.Parse()

	cfg := config.Load()

	log, err := obslogger.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log, *force); err != nil {
		log.Error("branch database provisioning failed", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *zap.Logger, force bool) error {
	ctx := context.Background()

	gormLog := obslogger.NewGormLogger(log, obslogger.DefaultGormLoggerConfig())
	conn, err := dbpkg.New(cfg, gormLog)
	if err != nil {
		return fmt.Errorf("connect main database: %w", err)
	}
	defer func() { _ = dbpkg.Close(conn) }()

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	stores := storerepository.NewRepository(conn)
	router := tenant.NewRouter(conn, cfg, gormLog, log)
	defer router.Close()

	metrics := obsmetrics.New(nil)
	provisioner := tenant.NewProvisioner(tenant.NewDDL(conn), router, stores, migration.NewApplier(node), cfg, log, metrics)

	if !provisioner.CanProvision(ctx) {
		privErr := &tenant.PrivilegeError{User: cfg.DBUser}
		fmt.Fprintln(os.Stderr, "the configured database user cannot create databases; grant it the required privileges:")
		fmt.Fprintln(os.Stderr, privErr.Remediation())
		return errors.New("insufficient database privileges")
	}

	all, err := stores.List(ctx, storedomain.ListFilter{ActiveOnly: true})
	if err != nil {
		return fmt.Errorf("list stores: %w", err)
	}

	var created, skipped, failed int
	for i := range all {
		store := &all[i]
		if store.IsMainStore {
			continue
		}

		if store.Provisioned() {
			if !force {
				skipped++
				log.Info("branch database already exists",
					zap.String("store", store.Name),
					zap.Stringp("database", store.DatabaseName),
				)
				continue
			}
			if err := reset(ctx, provisioner, stores, store); err != nil {
				failed++
				log.Error("resetting branch database failed",
					zap.String("store", store.Name),
					zap.Error(err),
				)
				continue
			}
		}

		fresh, err := stores.Get(ctx, store.ID)
		if err != nil {
			failed++
			log.Error("reloading store failed", zap.String("store", store.Name), zap.Error(err))
			continue
		}

		if err := provisioner.Provision(ctx, fresh); err != nil {
			failed++
			log.Error("provisioning branch database failed",
				zap.String("store", store.Name),
				zap.Error(err),
			)
			continue
		}

		created++
		log.Info("branch database created", zap.String("store", store.Name))
	}

	if err := backfillMainStore(ctx, cfg, stores); err != nil {
		return fmt.Errorf("backfill main store coordinates: %w", err)
	}

	fmt.Printf("created: %d, skipped: %d, failed: %d\n", created, skipped, failed)
	if failed > 0 {
		return fmt.Errorf("%d branch database(s) failed", failed)
	}
	return nil
}

// reset tears an existing branch database down and clears its registry
// coordinates so provisioning starts from a clean slate.
func reset(ctx context.Context, provisioner *tenant.Provisioner, stores storedomain.Repository, store *storedomain.Store) error {
	if !provisioner.Deprovision(ctx, store) {
		return errors.New("dropping existing branch database failed")
	}
	return stores.UpdateFields(ctx, store.ID, map[string]any{
		"database_name":     nil,
		"database_host":     nil,
		"database_port":     nil,
		"database_user":     nil,
		"database_password": nil,
		"database_created":  false,
	})
}

// backfillMainStore records the process's own connection coordinates on
// the main store row, matching rows created before coordinates existed.
func backfillMainStore(ctx context.Context, cfg config.Config, stores storedomain.Repository) error {
	main, err := stores.GetMain(ctx)
	if err != nil {
		return err
	}
	if main == nil {
		return errors.New("no main store configured")
	}
	return stores.UpdateFields(ctx, main.ID, map[string]any{
		"database_name":     cfg.DBName,
		"database_host":     cfg.DBHost,
		"database_port":     cfg.DBPort,
		"database_user":     cfg.DBUser,
		"database_password": cfg.DBPassword,
		"database_created":  true,
	})
}
