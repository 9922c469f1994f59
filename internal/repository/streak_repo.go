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

// StreakRepository 连续学习 / XP 仓储
// 计数走原子 UPDATE 表达式，历史走只追加的子表，避免整行读-改-写丢更新
type StreakRepository struct {
	db *gorm.DB
}

// NewStreakRepository 创建仓储
func NewStreakRepository(db *gorm.DB) *StreakRepository {
	return &StreakRepository{db: db}
}

func (r *StreakRepository) conn(ctx context.Context) *gorm.DB {
	return dbFor(ctx, r.db)
}

// GetOrCreate 获取用户的 streak 聚合，不存在则初始化一行
func (r *StreakRepository) GetOrCreate(ctx context.Context, userID int64) (*schema.UserStreak, error) {
	var streak schema.UserStreak
	err := r.conn(ctx).Where("user_id = ?", userID).First(&streak).Error
	if err == nil {
		return &streak, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("查询 streak 失败: %w", err)
	}

	streak = schema.UserStreak{UserID: userID}
	// 并发首次创建时容忍唯一键冲突，冲突后重读
	err = r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&streak).Error
	if err != nil {
		return nil, fmt.Errorf("初始化 streak 失败: %w", err)
	}
	if err := r.conn(ctx).Where("user_id = ?", userID).First(&streak).Error; err != nil {
		return nil, fmt.Errorf("重读 streak 失败: %w", err)
	}
	return &streak, nil
}

// SaveStreakFields 写回连续天数与最后活跃日（不触碰 XP 计数）
func (r *StreakRepository) SaveStreakFields(ctx context.Context, s *schema.UserStreak) error {
	err := r.conn(ctx).Model(&schema.UserStreak{}).
		Where("user_id = ?", s.UserID).
		Updates(map[string]any{
			"current_streak":     s.CurrentStreak,
			"longest_streak":     s.LongestStreak,
			"last_activity_date": s.LastActivityDate,
		}).Error
	if err != nil {
		return fmt.Errorf("写回 streak 失败: %w", err)
	}
	return nil
}

// AddXP 原子累加 total_xp 并在同一事务内追加流水
func (r *StreakRepository) AddXP(ctx context.Context, userID int64, amount int, reason string, now time.Time) error {
	return r.conn(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&schema.UserStreak{}).
			Where("user_id = ?", userID).
			Update("total_xp", gorm.Expr("total_xp + ?", amount))
		if res.Error != nil {
			return fmt.Errorf("累加 XP 失败: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("streak user=%d: %w", userID, ErrNotFound)
		}

		entry := schema.XPEntry{
			UserID:   userID,
			Amount:   amount,
			Reason:   reason,
			EarnedAt: now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return fmt.Errorf("追加 XP 流水失败: %w", err)
		}
		return nil
	})
}

// AppendActivityDay 追加活跃日；同一天重复写入静默忽略
func (r *StreakRepository) AppendActivityDay(ctx context.Context, userID int64, date string) error {
	day := schema.ActivityDay{UserID: userID, Date: date}
	err := r.conn(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&day).Error
	if err != nil {
		return fmt.Errorf("追加活跃日失败: %w", err)
	}
	return nil
}

// ActivityDates 按时间升序返回用户的全部活跃日（热力图数据源）
func (r *StreakRepository) ActivityDates(ctx context.Context, userID int64) ([]string, error) {
	var dates []string
	err := r.conn(ctx).Model(&schema.ActivityDay{}).
		Where("user_id = ?", userID).
		Order("date ASC").
		Pluck("date", &dates).Error
	if err != nil {
		return nil, fmt.Errorf("查询活跃日失败: %w", err)
	}
	return dates, nil
}

// XPHistory 按获得时间倒序返回 XP 流水
func (r *StreakRepository) XPHistory(ctx context.Context, userID int64, limit int) ([]schema.XPEntry, error) {
	q := r.conn(ctx).
		Where("user_id = ?", userID).
		Order("earned_at DESC, id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	var entries []schema.XPEntry
	if err := q.Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("查询 XP 流水失败: %w", err)
	}
	return entries, nil
}

// LeaderboardEntry 排行榜条目
type LeaderboardEntry struct {
	Rank          int   `json:"rank"`
	UserID        int64 `json:"user_id"`
	TotalXP       int   `json:"total_xp"`
	Level         int   `json:"level"`
	CurrentStreak int   `json:"current_streak"`
	LongestStreak int   `json:"longest_streak"`
}

// Leaderboard 按总 XP 倒序（连续天数作次序键）取前 N 名
func (r *StreakRepository) Leaderboard(ctx context.Context, limit int) ([]LeaderboardEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	var streaks []schema.UserStreak
	err := r.conn(ctx).
		Order("total_xp DESC, current_streak DESC").
		Limit(limit).
		Find(&streaks).Error
	if err != nil {
		return nil, fmt.Errorf("查询排行榜失败: %w", err)
	}

	entries := make([]LeaderboardEntry, 0, len(streaks))
	for i, s := range streaks {
		entries = append(entries, LeaderboardEntry{
			Rank:          i + 1,
			UserID:        s.UserID,
			TotalXP:       s.TotalXP,
			Level:         s.Level(),
			CurrentStreak: s.CurrentStreak,
			LongestStreak: s.LongestStreak,
		})
	}
	return entries, nil
}

// Rank 返回用户在总 XP 榜上的名次（比他高的人数 + 1）
func (r *StreakRepository) Rank(ctx context.Context, userID int64) (int, error) {
	streak, err := r.GetOrCreate(ctx, userID)
	if err != nil {
		return 0, err
	}

	var higher int64
	err = r.conn(ctx).Model(&schema.UserStreak{}).
		Where("total_xp > ?", streak.TotalXP).
		Count(&higher).Error
	if err != nil {
		return 0, fmt.Errorf("计算名次失败: %w", err)
	}
	return int(higher) + 1, nil
}
