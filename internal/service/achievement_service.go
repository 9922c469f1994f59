package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/torii/internal/schema"
)

// AchievementUnlock 成就解锁事件（对外载荷）
type AchievementUnlock struct {
	AchievementID int64     `json:"achievement_id"`
	Name          string    `json:"name"`
	XPReward      int       `json:"xp_reward"`
	EarnedAt      time.Time `json:"earned_at"`
}

// AchievementService 成就阈值评估
// 奖励 XP 直接走仓储原子累加，不回流到阈值评估，杜绝递归触发
type AchievementService struct {
	repo       AchievementRepository
	streakRepo StreakRepository
	now        func() time.Time
}

// NewAchievementService 创建服务
func NewAchievementService(repo AchievementRepository, streakRepo StreakRepository) *AchievementService {
	return &AchievementService{
		repo:       repo,
		streakRepo: streakRepo,
		now:        time.Now,
	}
}

// CheckThresholds 对指定度量类型做一轮阈值评估
//
// 对每个 requirement_value <= currentValue 的成就：进度 upsert 到
// currentValue（单调不减），未完成的恰好完成一次并发放 xp_reward。
// 以相同或更高的值重复调用不会二次发奖。
func (s *AchievementService) CheckThresholds(ctx context.Context, userID int64, metric schema.RequirementType, currentValue int) ([]AchievementUnlock, error) {
	achievements, err := s.repo.GetActiveByType(ctx, metric)
	if err != nil {
		return nil, err
	}

	var unlocks []AchievementUnlock
	for _, a := range achievements {
		if currentValue < a.RequirementValue {
			continue
		}

		if err := s.repo.UpsertProgress(ctx, userID, a.ID, currentValue); err != nil {
			return nil, err
		}

		earnedAt := s.now()
		completed, err := s.repo.CompleteOnce(ctx, userID, a.ID, earnedAt)
		if err != nil {
			return nil, err
		}
		if !completed {
			continue
		}

		if a.XPReward > 0 {
			if err := s.streakRepo.AddXP(ctx, userID, a.XPReward, fmt.Sprintf("Achievement: %s", a.Name), earnedAt); err != nil {
				return nil, err
			}
		}

		slog.Info("成就解锁", "user", userID, "achievement", a.Name, "xp_reward", a.XPReward)
		unlocks = append(unlocks, AchievementUnlock{
			AchievementID: a.ID,
			Name:          a.Name,
			XPReward:      a.XPReward,
			EarnedAt:      earnedAt,
		})
	}

	return unlocks, nil
}
