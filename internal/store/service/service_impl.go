package service

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/tindahan/internal/config"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	"github.com/smallbiznis/tindahan/internal/store/domain"
	dbpkg "github.com/smallbiznis/tindahan/pkg/db"
	"github.com/smallbiznis/tindahan/pkg/storescope"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Provisioner is the slice of branch-database lifecycle the registry
// service drives.
type Provisioner interface {
	Provision(ctx context.Context, store *domain.Store) error
	Deprovision(ctx context.Context, store *domain.Store) bool
}

// Binder resolves the database handle backing a store.
type Binder interface {
	Bind(ctx context.Context, store *domain.Store) (*gorm.DB, error)
}

type service struct {
	db          *gorm.DB
	repo        domain.Repository
	provisioner Provisioner
	binder      Binder
	cfg         config.Config
	genID       *snowflake.Node
	log         *zap.Logger
}

func NewService(
	db *gorm.DB,
	repo domain.Repository,
	provisioner Provisioner,
	binder Binder,
	cfg config.Config,
	genID *snowflake.Node,
	log *zap.Logger,
) domain.Service {
	return &service{
		db:          db,
		repo:        repo,
		provisioner: provisioner,
		binder:      binder,
		cfg:         cfg,
		genID:       genID,
		log:         log.Named("store.service"),
	}
}

func (s *service) Create(ctx context.Context, req domain.CreateStoreRequest) (*domain.Store, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = generateStoreCode()
	}

	store := &domain.Store{
		ID:          s.genID.Generate(),
		Name:        name,
		Code:        code,
		Email:       req.Email,
		Phone:       req.Phone,
		Address:     req.Address,
		City:        req.City,
		State:       req.State,
		ZipCode:     req.ZipCode,
		Country:     req.Country,
		TaxNumber:   req.TaxNumber,
		Currency:    req.Currency,
		IsMainStore: req.IsMainStore,
		Status:      domain.StatusActive,
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if store.IsMainStore {
			if err := repo.UnsetMainExcept(ctx, store.ID); err != nil {
				return err
			}
		}
		return repo.Create(ctx, store)
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateStore
		}
		return nil, err
	}

	if store.IsMainStore {
		if err := s.aliasMainCoordinates(ctx, store.ID); err != nil {
			return nil, err
		}
		return s.repo.Get(ctx, store.ID)
	}

	if err := s.provisioner.Provision(ctx, store); err != nil {
		// Roll back the registry row: the branch never became usable
		// and nothing depends on it yet.
		if delErr := s.db.WithContext(ctx).Delete(&domain.Store{}, "id = ?", store.ID).Error; delErr != nil {
			s.log.Error("rolling back store after failed provisioning failed",
				zap.String("store_id", store.ID.String()),
				zap.Error(delErr),
			)
		}
		return nil, err
	}

	return s.repo.Get(ctx, store.ID)
}

func (s *service) Get(ctx context.Context, id snowflake.ID) (*domain.Store, error) {
	store, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.ErrStoreNotFound
	}
	return store, nil
}

func (s *service) GetMain(ctx context.Context) (*domain.Store, error) {
	store, err := s.repo.GetMain(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.ErrStoreNotFound
	}
	return store, nil
}

func (s *service) List(ctx context.Context, filter domain.ListFilter) ([]domain.Store, error) {
	return s.repo.List(ctx, filter)
}

func (s *service) ListPaginated(ctx context.Context, filter domain.ListFilter) (*domain.StorePage, error) {
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	if filter.Page < 1 {
		filter.Page = 1
	}

	total, err := s.repo.Count(ctx, filter)
	if err != nil {
		return nil, err
	}
	stores, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	return &domain.StorePage{
		Stores:   stores,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

func (s *service) Update(ctx context.Context, id snowflake.ID, req domain.UpdateStoreRequest) (*domain.Store, error) {
	store, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.ErrStoreNotFound
	}

	fields := map[string]any{}
	applyString(fields, "name", req.Name)
	applyString(fields, "code", req.Code)
	applyString(fields, "email", req.Email)
	applyString(fields, "phone", req.Phone)
	applyString(fields, "address", req.Address)
	applyString(fields, "city", req.City)
	applyString(fields, "state", req.State)
	applyString(fields, "zip_code", req.ZipCode)
	applyString(fields, "country", req.Country)
	applyString(fields, "tax_number", req.TaxNumber)
	applyString(fields, "currency", req.Currency)
	if req.IsMainStore != nil {
		fields["is_main_store"] = *req.IsMainStore
	}
	if len(fields) == 0 {
		return store, nil
	}
	fields["updated_at"] = time.Now().UTC()

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if req.IsMainStore != nil && *req.IsMainStore {
			if err := repo.UnsetMainExcept(ctx, id); err != nil {
				return err
			}
		}
		return repo.UpdateFields(ctx, id, fields)
	})
	if err != nil {
		if dbpkg.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateStore
		}
		return nil, err
	}

	return s.repo.Get(ctx, id)
}

func (s *service) Delete(ctx context.Context, id snowflake.ID) (*domain.DeleteResult, error) {
	store, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.ErrStoreNotFound
	}
	if store.IsMainStore {
		return nil, domain.ErrMainStoreProtected
	}

	hasUsers, err := s.repo.HasAssignedUsers(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &domain.DeleteResult{Deactivated: true}
	if !hasUsers && store.Provisioned() {
		result.DatabaseDropped = s.provisioner.Deprovision(ctx, store)
	}

	fields := map[string]any{
		"status":     domain.StatusInactive,
		"updated_at": time.Now().UTC(),
	}
	if err := s.repo.UpdateFields(ctx, id, fields); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Statistics(ctx context.Context, id snowflake.ID) (*domain.StoreStatistics, error) {
	store, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.ErrStoreNotFound
	}

	stats := &domain.StoreStatistics{UsesDedicatedStorage: store.Provisioned() && !store.IsMainStore}

	// Assigned users always live in the main database.
	if err := s.db.WithContext(ctx).Model(&posdomain.User{}).
		Where("store_id = ?", id).Count(&stats.TotalAssignedUsers).Error; err != nil {
		return nil, err
	}

	conn := s.db
	scoped := func(tx *gorm.DB) *gorm.DB { return storescope.WithStore(tx, id) }
	if stats.UsesDedicatedStorage {
		// Physically isolated branch: its numbers live in its own
		// database, unfiltered.
		conn, err = s.binder.Bind(ctx, store)
		if err != nil {
			return nil, err
		}
		scoped = func(tx *gorm.DB) *gorm.DB { return tx }
	}

	if err := scoped(conn.WithContext(ctx).Model(&posdomain.Product{})).Count(&stats.TotalProducts).Error; err != nil {
		return nil, err
	}
	if err := scoped(conn.WithContext(ctx).Model(&posdomain.Customer{})).Count(&stats.TotalCustomers).Error; err != nil {
		return nil, err
	}
	if err := scoped(conn.WithContext(ctx).Model(&posdomain.SaleInvoice{})).Count(&stats.TotalSaleInvoices).Error; err != nil {
		return nil, err
	}
	if err := scoped(conn.WithContext(ctx).Model(&posdomain.PurchaseInvoice{})).Count(&stats.TotalPurchases).Error; err != nil {
		return nil, err
	}

	var salesTotal, purchaseTotal *float64
	if err := scoped(conn.WithContext(ctx).Model(&posdomain.SaleInvoice{})).
		Select("SUM(total_amount)").Scan(&salesTotal).Error; err != nil {
		return nil, err
	}
	if err := scoped(conn.WithContext(ctx).Model(&posdomain.PurchaseInvoice{})).
		Select("SUM(total_amount)").Scan(&purchaseTotal).Error; err != nil {
		return nil, err
	}
	if salesTotal != nil {
		stats.TotalSalesAmount = *salesTotal
	}
	if purchaseTotal != nil {
		stats.TotalPurchaseAmount = *purchaseTotal
	}

	return stats, nil
}

func (s *service) ProvisionDatabase(ctx context.Context, id snowflake.ID) (*domain.ProvisionResult, error) {
	store, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, domain.ErrStoreNotFound
	}

	if store.IsMainStore {
		if err := s.aliasMainCoordinates(ctx, id); err != nil {
			return nil, err
		}
		return &domain.ProvisionResult{
			Created:      false,
			DatabaseName: s.cfg.DBName,
			Message:      "main store configured to use main database",
		}, nil
	}

	if store.Provisioned() {
		return &domain.ProvisionResult{
			Created:      false,
			DatabaseName: *store.DatabaseName,
			Message:      "database already exists",
		}, nil
	}

	if err := s.provisioner.Provision(ctx, store); err != nil {
		return nil, err
	}

	fresh, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result := &domain.ProvisionResult{Created: true, Message: "database created successfully"}
	if fresh != nil && fresh.DatabaseName != nil {
		result.DatabaseName = *fresh.DatabaseName
	}
	return result, nil
}

func (s *service) AssignUser(ctx context.Context, userID, storeID snowflake.ID) error {
	store, err := s.repo.Get(ctx, storeID)
	if err != nil {
		return err
	}
	if store == nil {
		return domain.ErrStoreNotFound
	}

	return s.db.WithContext(ctx).Model(&posdomain.User{}).
		Where("id = ?", userID).
		Update("store_id", storeID).Error
}

// aliasMainCoordinates records the process's own connection as the main
// store's coordinates. The main store is never provisioned separately.
func (s *service) aliasMainCoordinates(ctx context.Context, id snowflake.ID) error {
	return s.repo.UpdateFields(ctx, id, map[string]any{
		"database_name":     s.cfg.DBName,
		"database_host":     s.cfg.DBHost,
		"database_port":     s.cfg.DBPort,
		"database_user":     s.cfg.DBUser,
		"database_password": s.cfg.DBPassword,
		"database_created":  true,
	})
}

// generateStoreCode derives a unique-enough branch code from a
// time-based hash, matching stores created before codes were required.
func generateStoreCode() string {
	sum := md5.Sum([]byte(fmt.Sprintf("%d", time.Now().UnixNano())))
	return "BRANCH_" + strings.ToUpper(hex.EncodeToString(sum[:])[:6])
}

func applyString(fields map[string]any, column string, value *string) {
	if value != nil {
		fields[column] = strings.TrimSpace(*value)
	}
}
