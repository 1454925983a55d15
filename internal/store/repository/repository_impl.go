package repository

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	posdomain "github.com/smallbiznis/tindahan/internal/pos/domain"
	"github.com/smallbiznis/tindahan/internal/store/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, store *domain.Store) error {
	return r.db.WithContext(ctx).Create(store).Error
}

func (r *repository) Get(ctx context.Context, id snowflake.ID) (*domain.Store, error) {
	var store domain.Store
	err := r.db.WithContext(ctx).First(&store, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &store, nil
}

func (r *repository) GetMain(ctx context.Context) (*domain.Store, error) {
	var store domain.Store
	err := r.db.WithContext(ctx).First(&store, "is_main_store = ?", true).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &store, nil
}

func (r *repository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Store, error) {
	var stores []domain.Store
	query := r.applyFilter(r.db.WithContext(ctx).Model(&domain.Store{}), filter).
		Order("id DESC")

	if filter.PageSize > 0 {
		page := filter.Page
		if page < 1 {
			page = 1
		}
		query = query.Offset((page - 1) * filter.PageSize).Limit(filter.PageSize)
	}

	if err := query.Find(&stores).Error; err != nil {
		return nil, err
	}
	return stores, nil
}

func (r *repository) Count(ctx context.Context, filter domain.ListFilter) (int64, error) {
	var total int64
	err := r.applyFilter(r.db.WithContext(ctx).Model(&domain.Store{}), filter).
		Count(&total).Error
	return total, err
}

func (r *repository) Update(ctx context.Context, store *domain.Store) error {
	return r.db.WithContext(ctx).Save(store).Error
}

func (r *repository) UpdateFields(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	result := r.db.WithContext(ctx).Model(&domain.Store{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrStoreNotFound
	}
	return nil
}

func (r *repository) UnsetMainExcept(ctx context.Context, id snowflake.ID) error {
	return r.db.WithContext(ctx).Model(&domain.Store{}).
		Where("id <> ? AND is_main_store = ?", id, true).
		Update("is_main_store", false).Error
}

func (r *repository) HasAssignedUsers(ctx context.Context, id snowflake.ID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&posdomain.User{}).
		Where("store_id = ?", id).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) applyFilter(query *gorm.DB, filter domain.ListFilter) *gorm.DB {
	if filter.ActiveOnly {
		query = query.Where("status = ?", domain.StatusActive)
	} else if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.ProvisionedOnly {
		query = query.Where("database_created = ? AND database_name IS NOT NULL", true)
	}
	if filter.Query != "" {
		like := "%" + filter.Query + "%"
		query = query.Where(
			"name LIKE ? OR code LIKE ? OR email LIKE ? OR city LIKE ?",
			like, like, like, like,
		)
	}
	return query
}
