package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/yuqie6/torii/internal/schema"
)

// 日历日序列化格式
const dayLayout = "2006-01-02"

// XP 流水的 reason 取值
const (
	ReasonReview  = "SRS review"
	ReasonAddCard = "Add to SRS"
)

// ActivityResult recordActivity 的结果
type ActivityResult struct {
	Streak       int  `json:"streak"`
	IsNewDay     bool `json:"is_new_day"`
	StreakBroken bool `json:"streak_broken"`
}

// StreakDelta 一次学习活动后的聚合快照（对外事件载荷）
type StreakDelta struct {
	CurrentStreak int                 `json:"current_streak"`
	LongestStreak int                 `json:"longest_streak"`
	TotalXP       int                 `json:"total_xp"`
	Level         int                 `json:"level"`
	XPToNextLevel int                 `json:"xp_to_next_level"`
	IsNewDay      bool                `json:"is_new_day"`
	StreakBroken  bool                `json:"streak_broken"`
	Unlocks       []AchievementUnlock `json:"unlocks,omitempty"`
}

// StreakService 连续学习与 XP 累积
// 日历日边界由配置时区决定（产品决策，不硬编码偏移）
type StreakService struct {
	repo         StreakRepository
	achievements *AchievementService
	policy       XPPolicy
	loc          *time.Location
	now          func() time.Time
}

// NewStreakService 创建服务；achievements 可为 nil（不做成就评估）
func NewStreakService(repo StreakRepository, achievements *AchievementService, policy XPPolicy, loc *time.Location) *StreakService {
	if policy == nil {
		policy = NewDefaultXPPolicy()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &StreakService{
		repo:         repo,
		achievements: achievements,
		policy:       policy,
		loc:          loc,
		now:          time.Now,
	}
}

// Today 配置时区下的今天
func (s *StreakService) Today() string {
	return s.now().In(s.loc).Format(dayLayout)
}

// RecordActivity 记录一次当日学习活动，同一天内幂等
//
// days_diff == 0 不变；== 1 连续天数 +1；> 1 断签重置为 1；
// < 0（时钟回拨/补录）按同日处理，绝不递减。
func (s *StreakService) RecordActivity(ctx context.Context, userID int64) (*ActivityResult, error) {
	streak, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	today := s.Today()

	if streak.LastActivityDate == "" {
		// 首次活跃
		streak.CurrentStreak = 1
		if streak.LongestStreak < 1 {
			streak.LongestStreak = 1
		}
		streak.LastActivityDate = today
		if err := s.persistActivity(ctx, streak, today); err != nil {
			return nil, err
		}
		return &ActivityResult{Streak: 1, IsNewDay: true}, nil
	}

	daysDiff, err := daysBetween(streak.LastActivityDate, today)
	if err != nil {
		return nil, fmt.Errorf("解析活跃日失败: %w", err)
	}

	switch {
	case daysDiff == 0:
		// 今天已经活跃过
		return &ActivityResult{Streak: streak.CurrentStreak, IsNewDay: false}, nil

	case daysDiff == 1:
		// 连续的一天
		streak.CurrentStreak++
		if streak.CurrentStreak > streak.LongestStreak {
			streak.LongestStreak = streak.CurrentStreak
		}
		streak.LastActivityDate = today
		if err := s.persistActivity(ctx, streak, today); err != nil {
			return nil, err
		}
		return &ActivityResult{Streak: streak.CurrentStreak, IsNewDay: true}, nil

	case daysDiff > 1:
		// 断签
		streak.CurrentStreak = 1
		streak.LastActivityDate = today
		if err := s.persistActivity(ctx, streak, today); err != nil {
			return nil, err
		}
		return &ActivityResult{Streak: 1, IsNewDay: true, StreakBroken: true}, nil

	default:
		// daysDiff < 0：时钟偏移，视同当日，不破坏状态
		slog.Warn("活跃日早于已记录日期，按当日处理", "user", userID, "last", streak.LastActivityDate, "today", today)
		return &ActivityResult{Streak: streak.CurrentStreak, IsNewDay: false}, nil
	}
}

// persistActivity 写回 streak 字段并追加活跃日
func (s *StreakService) persistActivity(ctx context.Context, streak *schema.UserStreak, today string) error {
	if err := s.repo.SaveStreakFields(ctx, streak); err != nil {
		return err
	}
	return s.repo.AppendActivityDay(ctx, streak.UserID, today)
}

// AddXP 累加 XP；amount 必须为正
func (s *StreakService) AddXP(ctx context.Context, userID int64, amount int, reason string) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if _, err := s.repo.GetOrCreate(ctx, userID); err != nil {
		return err
	}
	return s.repo.AddXP(ctx, userID, amount, reason, s.now())
}

// RecordLearningActivity 学习活动统一入口：更新 streak、发 XP、
// 新的一天追加每日/里程碑奖励，最后做成就阈值评估
func (s *StreakService) RecordLearningActivity(ctx context.Context, userID int64, amount int, reason string) (*StreakDelta, error) {
	activity, err := s.RecordActivity(ctx, userID)
	if err != nil {
		return nil, err
	}

	if err := s.AddXP(ctx, userID, amount, reason); err != nil {
		return nil, err
	}

	if activity.IsNewDay {
		bonus := s.policy.DailyBonus(activity.Streak)
		if err := s.AddXP(ctx, userID, bonus, fmt.Sprintf("Streak %d days", activity.Streak)); err != nil {
			return nil, err
		}
		slog.Info("新的学习日", "user", userID, "streak", activity.Streak, "bonus_xp", bonus)
	}

	streak, err := s.repo.GetOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}

	delta := &StreakDelta{
		CurrentStreak: streak.CurrentStreak,
		LongestStreak: streak.LongestStreak,
		TotalXP:       streak.TotalXP,
		Level:         streak.Level(),
		XPToNextLevel: streak.XPToNextLevel(),
		IsNewDay:      activity.IsNewDay,
		StreakBroken:  activity.StreakBroken,
	}

	if s.achievements != nil {
		unlocks := make([]AchievementUnlock, 0, 2)
		streakUnlocks, err := s.achievements.CheckThresholds(ctx, userID, schema.RequireStreak, streak.CurrentStreak)
		if err != nil {
			return nil, err
		}
		unlocks = append(unlocks, streakUnlocks...)

		xpUnlocks, err := s.achievements.CheckThresholds(ctx, userID, schema.RequireXP, streak.TotalXP)
		if err != nil {
			return nil, err
		}
		unlocks = append(unlocks, xpUnlocks...)
		delta.Unlocks = unlocks

		// 成就奖励的 XP 已入账，快照同步到最终值
		if len(unlocks) > 0 {
			if streak, err = s.repo.GetOrCreate(ctx, userID); err != nil {
				return nil, err
			}
			delta.TotalXP = streak.TotalXP
			delta.Level = streak.Level()
			delta.XPToNextLevel = streak.XPToNextLevel()
		}
	}

	return delta, nil
}

// Snapshot 当前聚合快照（无副作用）
func (s *StreakService) Snapshot(ctx context.Context, userID int64) (*schema.UserStreak, error) {
	return s.repo.GetOrCreate(ctx, userID)
}

// XPHistory XP 流水
func (s *StreakService) XPHistory(ctx context.Context, userID int64, limit int) ([]schema.XPEntry, error) {
	return s.repo.XPHistory(ctx, userID, limit)
}

// ActivityDates 活跃日历日序列
func (s *StreakService) ActivityDates(ctx context.Context, userID int64) ([]string, error) {
	return s.repo.ActivityDates(ctx, userID)
}

// daysBetween 两个日历日之间的整天差（to - from）
func daysBetween(from, to string) (int, error) {
	f, err := time.Parse(dayLayout, from)
	if err != nil {
		return 0, err
	}
	t, err := time.Parse(dayLayout, to)
	if err != nil {
		return 0, err
	}
	return int(t.Sub(f).Hours() / 24), nil
}
