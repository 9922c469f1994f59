package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuqie6/torii/internal/schema"
	"gorm.io/gorm"
)

// CardRepository 复习卡片仓储
type CardRepository struct {
	db *gorm.DB
}

// NewCardRepository 创建仓储
func NewCardRepository(db *gorm.DB) *CardRepository {
	return &CardRepository{db: db}
}

func (r *CardRepository) conn(ctx context.Context) *gorm.DB {
	return dbFor(ctx, r.db)
}

// Create 插入新卡片；(user, item, type) 已存在时返回 ErrDuplicate
func (r *CardRepository) Create(ctx context.Context, card *schema.ReviewCard) error {
	err := r.conn(ctx).Create(card).Error
	if err != nil {
		var existing schema.ReviewCard
		probe := r.conn(ctx).
			Where("user_id = ? AND item_id = ? AND item_type = ?", card.UserID, card.ItemID, card.ItemType).
			First(&existing).Error
		if probe == nil {
			return fmt.Errorf("卡片 (user=%d item=%d type=%s): %w", card.UserID, card.ItemID, card.ItemType, ErrDuplicate)
		}
		return fmt.Errorf("创建卡片失败: %w", err)
	}
	return nil
}

// GetByID 获取指定用户的一张卡片
func (r *CardRepository) GetByID(ctx context.Context, userID, cardID int64) (*schema.ReviewCard, error) {
	var card schema.ReviewCard
	err := r.conn(ctx).
		Where("id = ? AND user_id = ?", cardID, userID).
		First(&card).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("卡片 %d: %w", cardID, ErrNotFound)
		}
		return nil, fmt.Errorf("查询卡片失败: %w", err)
	}
	return &card, nil
}

// GetDue 获取到期卡片：next_review_at <= now 且未掌握，按到期时间升序（最久欠账优先）
// itemType 为空串表示不过滤类型
func (r *CardRepository) GetDue(ctx context.Context, userID int64, itemType schema.ItemType, now time.Time, limit int) ([]schema.ReviewCard, error) {
	q := r.conn(ctx).
		Where("user_id = ? AND next_review_at <= ? AND status <> ?", userID, now, schema.StatusMastered)
	if itemType != "" {
		q = q.Where("item_type = ?", itemType)
	}

	var cards []schema.ReviewCard
	err := q.Order("next_review_at ASC").Limit(limit).Find(&cards).Error
	if err != nil {
		return nil, fmt.Errorf("查询到期卡片失败: %w", err)
	}
	return cards, nil
}

// CountDue 统计到期卡片数量（不含已掌握）
func (r *CardRepository) CountDue(ctx context.Context, userID int64, now time.Time) (int64, error) {
	var count int64
	err := r.conn(ctx).Model(&schema.ReviewCard{}).
		Where("user_id = ? AND next_review_at <= ? AND status <> ?", userID, now, schema.StatusMastered).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("统计到期卡片失败: %w", err)
	}
	return count, nil
}

// ListFilter 卡片列表过滤条件
type ListFilter struct {
	ItemType schema.ItemType   // 空串不过滤
	Status   schema.CardStatus // 空串不过滤
	Page     int               // 从 1 开始
	Limit    int
}

// List 分页列出用户全部卡片（含已掌握），按到期时间升序
func (r *CardRepository) List(ctx context.Context, userID int64, f ListFilter) ([]schema.ReviewCard, int64, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit <= 0 {
		f.Limit = 20
	}

	q := r.conn(ctx).Model(&schema.ReviewCard{}).Where("user_id = ?", userID)
	if f.ItemType != "" {
		q = q.Where("item_type = ?", f.ItemType)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("统计卡片失败: %w", err)
	}

	var cards []schema.ReviewCard
	err := q.Order("next_review_at ASC").
		Offset((f.Page - 1) * f.Limit).
		Limit(f.Limit).
		Find(&cards).Error
	if err != nil {
		return nil, 0, fmt.Errorf("查询卡片列表失败: %w", err)
	}
	return cards, total, nil
}

// UpdateScheduled 以乐观锁写回调度结果，并在同一事务里登记幂等流水
//
// log 非空时先写 review_logs：键重放返回 ErrDuplicate，调度不会二次应用。
// WHERE 带版本号，未命中返回 ErrVersionConflict，此时流水一并回滚，
// 幂等键留给上层重试复用，不会被失败的尝试烧掉。
func (r *CardRepository) UpdateScheduled(ctx context.Context, card *schema.ReviewCard, log *schema.ReviewLog) error {
	err := r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if log != nil {
			if err := insertReviewLog(tx, log); err != nil {
				return err
			}
		}

		res := tx.Model(&schema.ReviewCard{}).
			Where("id = ? AND version = ?", card.ID, card.Version).
			Updates(map[string]any{
				"status":          card.Status,
				"interval":        card.Interval,
				"ease_factor":     card.EaseFactor,
				"repetitions":     card.Repetitions,
				"correct_count":   card.CorrectCount,
				"incorrect_count": card.IncorrectCount,
				"last_review_at":  card.LastReviewAt,
				"next_review_at":  card.NextReviewAt,
				"version":         card.Version + 1,
			})
		if res.Error != nil {
			return fmt.Errorf("写回卡片失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("卡片 %d: %w", card.ID, ErrVersionConflict)
		}
		return nil
	})
	if err != nil {
		return err
	}
	card.Version++
	return nil
}

// insertReviewLog 写入复习幂等流水；键已存在返回 ErrDuplicate
func insertReviewLog(tx *gorm.DB, log *schema.ReviewLog) error {
	err := tx.Create(log).Error
	if err != nil {
		var existing schema.ReviewLog
		if probe := tx.Where("key = ?", log.Key).First(&existing).Error; probe == nil {
			return fmt.Errorf("幂等键 %s: %w", log.Key, ErrDuplicate)
		}
		return fmt.Errorf("写入复习流水失败: %w", err)
	}
	return nil
}

// Reset 将卡片重置回初始状态（显式"忘掉重学"）
func (r *CardRepository) Reset(ctx context.Context, userID, cardID int64, now time.Time) (*schema.ReviewCard, error) {
	res := r.conn(ctx).Model(&schema.ReviewCard{}).
		Where("id = ? AND user_id = ?", cardID, userID).
		Updates(map[string]any{
			"status":         schema.StatusNew,
			"interval":       0,
			"ease_factor":    2.5,
			"repetitions":    0,
			"last_review_at": nil,
			"next_review_at": now,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return nil, fmt.Errorf("重置卡片失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("卡片 %d: %w", cardID, ErrNotFound)
	}
	return r.GetByID(ctx, userID, cardID)
}

// Delete 删除用户的一张卡片
func (r *CardRepository) Delete(ctx context.Context, userID, cardID int64) error {
	res := r.conn(ctx).
		Where("id = ? AND user_id = ?", cardID, userID).
		Delete(&schema.ReviewCard{})
	if res.Error != nil {
		return fmt.Errorf("删除卡片失败: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("卡片 %d: %w", cardID, ErrNotFound)
	}
	return nil
}

// CardStats 用户卡片统计
type CardStats struct {
	TotalCards     int64                       `json:"total_cards"`
	ByStatus       map[schema.CardStatus]int64 `json:"by_status"`
	ByType         map[schema.ItemType]int64   `json:"by_type"`
	DueNow         int64                       `json:"due_now"`
	TotalCorrect   int64                       `json:"total_correct"`
	TotalIncorrect int64                       `json:"total_incorrect"`
	AccuracyRate   float64                     `json:"accuracy_rate"` // 0-100
}

// Stats 聚合用户的复习统计
func (r *CardRepository) Stats(ctx context.Context, userID int64, now time.Time) (*CardStats, error) {
	stats := &CardStats{
		ByStatus: make(map[schema.CardStatus]int64),
		ByType:   make(map[schema.ItemType]int64),
	}

	if err := r.conn(ctx).Model(&schema.ReviewCard{}).
		Where("user_id = ?", userID).
		Count(&stats.TotalCards).Error; err != nil {
		return nil, fmt.Errorf("统计卡片总数失败: %w", err)
	}

	type bucket struct {
		Key   string
		Count int64
	}

	var byStatus []bucket
	err := r.conn(ctx).Model(&schema.ReviewCard{}).
		Select("status AS key, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("status").
		Scan(&byStatus).Error
	if err != nil {
		return nil, fmt.Errorf("按状态统计失败: %w", err)
	}
	for _, b := range byStatus {
		stats.ByStatus[schema.CardStatus(b.Key)] = b.Count
	}

	var byType []bucket
	err = r.conn(ctx).Model(&schema.ReviewCard{}).
		Select("item_type AS key, COUNT(*) AS count").
		Where("user_id = ?", userID).
		Group("item_type").
		Scan(&byType).Error
	if err != nil {
		return nil, fmt.Errorf("按类型统计失败: %w", err)
	}
	for _, b := range byType {
		stats.ByType[schema.ItemType(b.Key)] = b.Count
	}

	due, err := r.CountDue(ctx, userID, now)
	if err != nil {
		return nil, err
	}
	stats.DueNow = due

	type acc struct {
		Correct   int64
		Incorrect int64
	}
	var a acc
	err = r.conn(ctx).Model(&schema.ReviewCard{}).
		Select("COALESCE(SUM(correct_count),0) AS correct, COALESCE(SUM(incorrect_count),0) AS incorrect").
		Where("user_id = ?", userID).
		Scan(&a).Error
	if err != nil {
		return nil, fmt.Errorf("统计正确率失败: %w", err)
	}
	stats.TotalCorrect = a.Correct
	stats.TotalIncorrect = a.Incorrect
	if total := a.Correct + a.Incorrect; total > 0 {
		stats.AccuracyRate = float64(a.Correct) / float64(total) * 100
	}

	return stats, nil
}
