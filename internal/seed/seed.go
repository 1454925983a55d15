// Package seed creates the baseline rows a database needs before the
// rest of the system can route against it.
package seed

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	storedomain "github.com/smallbiznis/tindahan/internal/store/domain"
	"gorm.io/gorm"
)

const (
	defaultMainStoreName = "Main Branch"
	defaultMainStoreCode = "MAIN"
	defaultCompanyName   = "POS System"
	defaultTagLine       = "Point of Sale"
)

// EnsureMainStore seeds the main store row and settings row in the main
// database on startup. Safe to call repeatedly.
func EnsureMainStore(db *gorm.DB) error {
	if db == nil {
		return errors.New("seed database handle is required")
	}

	node, err := snowflake.NewNode(1)
	if err != nil {
		return err
	}

	ctx := context.Background()
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMainStoreRow(ctx, tx, node); err != nil {
			return err
		}
		return ensureAppSettingsRow(ctx, tx, node)
	})
}

// EnsureBranchBaseline seeds a freshly created branch database: one
// placeholder main store row plus a settings row. The provisioner
// overwrites both with the owning branch's identity afterwards.
func EnsureBranchBaseline(ctx context.Context, conn *gorm.DB, node *snowflake.Node) error {
	if conn == nil {
		return errors.New("seed database handle is required")
	}
	return conn.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := ensureMainStoreRow(ctx, tx, node); err != nil {
			return err
		}
		return ensureAppSettingsRow(ctx, tx, node)
	})
}

func ensureMainStoreRow(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var store storedomain.Store
	err := tx.WithContext(ctx).Where("is_main_store = ?", true).First(&store).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	now := time.Now().UTC()
	store = storedomain.Store{
		ID:          node.Generate(),
		Name:        defaultMainStoreName,
		Code:        defaultMainStoreCode,
		Currency:    "USD",
		IsMainStore: true,
		Status:      storedomain.StatusActive,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	return tx.WithContext(ctx).Create(&store).Error
}

func ensureAppSettingsRow(ctx context.Context, tx *gorm.DB, node *snowflake.Node) error {
	var setting posdomain.AppSetting
	err := tx.WithContext(ctx).First(&setting).Error
	if err == nil {
		return nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	setting = posdomain.AppSetting{
		ID:          node.Generate(),
		CompanyName: defaultCompanyName,
		TagLine:     defaultTagLine,
		UpdatedAt:   time.Now().UTC(),
	}
	return tx.WithContext(ctx).Create(&setting).Error
}
