package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/yuqie6/torii/internal/schema"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AchievementRepository 成就目录与用户进度仓储
type AchievementRepository struct {
	db *gorm.DB
}

// NewAchievementRepository 创建仓储
func NewAchievementRepository(db *gorm.DB) *AchievementRepository {
	return &AchievementRepository{db: db}
}

func (r *AchievementRepository) conn(ctx context.Context) *gorm.DB {
	return dbFor(ctx, r.db)
}

// GetActiveByType 按度量类型取启用中的成就定义，阈值升序
func (r *AchievementRepository) GetActiveByType(ctx context.Context, reqType schema.RequirementType) ([]schema.Achievement, error) {
	var achievements []schema.Achievement
	err := r.conn(ctx).
		Where("requirement_type = ? AND is_active = ?", reqType, true).
		Order("requirement_value ASC").
		Find(&achievements).Error
	if err != nil {
		return nil, fmt.Errorf("查询成就定义失败: %w", err)
	}
	return achievements, nil
}

// GetAllActive 取全部启用中的成就定义
func (r *AchievementRepository) GetAllActive(ctx context.Context) ([]schema.Achievement, error) {
	var achievements []schema.Achievement
	err := r.conn(ctx).
		Where("is_active = ?", true).
		Order("category ASC, requirement_value ASC").
		Find(&achievements).Error
	if err != nil {
		return nil, fmt.Errorf("查询成就定义失败: %w", err)
	}
	return achievements, nil
}

// GetUserAchievement 取用户某成就的进度，不存在返回 nil
func (r *AchievementRepository) GetUserAchievement(ctx context.Context, userID, achievementID int64) (*schema.UserAchievement, error) {
	var ua schema.UserAchievement
	err := r.conn(ctx).
		Where("user_id = ? AND achievement_id = ?", userID, achievementID).
		First(&ua).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("查询成就进度失败: %w", err)
	}
	return &ua, nil
}

// UpsertProgress 写入进度，只增不减（progress 单调不减约束在 SQL 里兜底）
func (r *AchievementRepository) UpsertProgress(ctx context.Context, userID, achievementID int64, progress int) error {
	ua := schema.UserAchievement{
		UserID:        userID,
		AchievementID: achievementID,
		Progress:      progress,
	}
	err := r.conn(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "user_id"}, {Name: "achievement_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"progress": gorm.Expr("MAX(progress, ?)", progress),
		}),
	}).Create(&ua).Error
	if err != nil {
		return fmt.Errorf("更新成就进度失败: %w", err)
	}
	return nil
}

// CompleteOnce 将成就标记为完成，只允许 false→true 一次
// 返回本次是否真正发生了完成转换（已完成时返回 false）
func (r *AchievementRepository) CompleteOnce(ctx context.Context, userID, achievementID int64, earnedAt time.Time) (bool, error) {
	res := r.conn(ctx).Model(&schema.UserAchievement{}).
		Where("user_id = ? AND achievement_id = ? AND is_completed = ?", userID, achievementID, false).
		Updates(map[string]any{
			"is_completed": true,
			"earned_at":    earnedAt,
		})
	if res.Error != nil {
		return false, fmt.Errorf("标记成就完成失败: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// ListForUser 返回用户全部成就进度（完成在前，按获得时间倒序）
func (r *AchievementRepository) ListForUser(ctx context.Context, userID int64) ([]schema.UserAchievement, error) {
	var uas []schema.UserAchievement
	err := r.conn(ctx).
		Where("user_id = ?", userID).
		Order("is_completed DESC, earned_at DESC").
		Find(&uas).Error
	if err != nil {
		return nil, fmt.Errorf("查询用户成就失败: %w", err)
	}
	return uas, nil
}

// GetByID 取成就定义
func (r *AchievementRepository) GetByID(ctx context.Context, id int64) (*schema.Achievement, error) {
	var a schema.Achievement
	err := r.conn(ctx).First(&a, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("成就 %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("查询成就失败: %w", err)
	}
	return &a, nil
}

// SeedDefaults 写入默认成就目录（按 name 幂等，存在即跳过）
func (r *AchievementRepository) SeedDefaults(ctx context.Context) error {
	for _, a := range defaultAchievements() {
		a := a
		err := r.conn(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "name"}},
			DoNothing: true,
		}).Create(&a).Error
		if err != nil {
			return fmt.Errorf("写入成就 %s 失败: %w", a.Name, err)
		}
	}
	return nil
}

// defaultAchievements 默认目录：连续学习与 XP 两条线
func defaultAchievements() []schema.Achievement {
	return []schema.Achievement{
		{Name: "First Step", NameVI: "Bước Đầu Tiên", Description: "Log in for 7 consecutive days", DescriptionVI: "Đăng nhập 7 ngày liên tiếp", Icon: "🔥", Category: "streak", RequirementType: schema.RequireStreak, RequirementValue: 7, XPReward: 100, Rarity: "common", IsActive: true},
		{Name: "Two Week Warrior", NameVI: "Chiến Binh Hai Tuần", Description: "Log in for 14 consecutive days", DescriptionVI: "Đăng nhập 14 ngày liên tiếp", Icon: "🔥", Category: "streak", RequirementType: schema.RequireStreak, RequirementValue: 14, XPReward: 200, Rarity: "rare", IsActive: true},
		{Name: "Monthly Master", NameVI: "Bậc Thầy Tháng", Description: "Log in for 30 consecutive days", DescriptionVI: "Đăng nhập 30 ngày liên tiếp", Icon: "🔥", Category: "streak", RequirementType: schema.RequireStreak, RequirementValue: 30, XPReward: 500, Rarity: "epic", IsActive: true},
		{Name: "Dedication Legend", NameVI: "Huyền Thoại Kiên Trì", Description: "Log in for 100 consecutive days", DescriptionVI: "Đăng nhập 100 ngày liên tiếp", Icon: "🔥", Category: "streak", RequirementType: schema.RequireStreak, RequirementValue: 100, XPReward: 2000, Rarity: "legendary", IsActive: true},
		{Name: "XP Novice", NameVI: "Tân Binh XP", Description: "Earn 100 XP", DescriptionVI: "Đạt 100 XP", Icon: "⭐", Category: "xp", RequirementType: schema.RequireXP, RequirementValue: 100, XPReward: 50, Rarity: "common", IsActive: true},
		{Name: "XP Apprentice", NameVI: "Học Việc XP", Description: "Earn 500 XP", DescriptionVI: "Đạt 500 XP", Icon: "⭐", Category: "xp", RequirementType: schema.RequireXP, RequirementValue: 500, XPReward: 100, Rarity: "common", IsActive: true},
		{Name: "XP Adept", NameVI: "Thành Thạo XP", Description: "Earn 1000 XP", DescriptionVI: "Đạt 1000 XP", Icon: "🌟", Category: "xp", RequirementType: schema.RequireXP, RequirementValue: 1000, XPReward: 200, Rarity: "rare", IsActive: true},
		{Name: "XP Master", NameVI: "Bậc Thầy XP", Description: "Earn 5000 XP", DescriptionVI: "Đạt 5000 XP", Icon: "🌟", Category: "xp", RequirementType: schema.RequireXP, RequirementValue: 5000, XPReward: 500, Rarity: "epic", IsActive: true},
		{Name: "XP Legend", NameVI: "Huyền Thoại XP", Description: "Earn 10000 XP", DescriptionVI: "Đạt 10000 XP", Icon: "👑", Category: "xp", RequirementType: schema.RequireXP, RequirementValue: 10000, XPReward: 1000, Rarity: "legendary", IsActive: true},
	}
}
