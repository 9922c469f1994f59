package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/yuqie6/torii/internal/schema"
	"gorm.io/gorm"
)

// CatalogRepository 内容目录仓储（外部协作方的本地投影）
type CatalogRepository struct {
	db *gorm.DB
}

// NewCatalogRepository 创建仓储
func NewCatalogRepository(db *gorm.DB) *CatalogRepository {
	return &CatalogRepository{db: db}
}

func (r *CatalogRepository) conn(ctx context.Context) *gorm.DB {
	return dbFor(ctx, r.db)
}

// ItemExists 校验条目是否存在，createCard 前的防悬挂引用检查
func (r *CatalogRepository) ItemExists(ctx context.Context, itemID int64, itemType schema.ItemType) (bool, error) {
	var count int64
	err := r.conn(ctx).Model(&schema.CatalogItem{}).
		Where("id = ? AND item_type = ?", itemID, itemType).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("校验条目失败: %w", err)
	}
	return count > 0, nil
}

// GetByID 取条目展示字段
func (r *CatalogRepository) GetByID(ctx context.Context, itemID int64) (*schema.CatalogItem, error) {
	var item schema.CatalogItem
	err := r.conn(ctx).First(&item, itemID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("条目 %d: %w", itemID, ErrNotFound)
		}
		return nil, fmt.Errorf("查询条目失败: %w", err)
	}
	return &item, nil
}

// Create 写入条目（CLI 导入用）
func (r *CatalogRepository) Create(ctx context.Context, item *schema.CatalogItem) error {
	if err := r.conn(ctx).Create(item).Error; err != nil {
		return fmt.Errorf("写入条目失败: %w", err)
	}
	return nil
}

// ListByType 按类型列出条目
func (r *CatalogRepository) ListByType(ctx context.Context, itemType schema.ItemType, limit int) ([]schema.CatalogItem, error) {
	q := r.conn(ctx).Where("item_type = ?", itemType).Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var items []schema.CatalogItem
	if err := q.Find(&items).Error; err != nil {
		return nil, fmt.Errorf("查询条目列表失败: %w", err)
	}
	return items, nil
}
