package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/torii/internal/repository"
	"github.com/yuqie6/torii/internal/schema"
)

// 对外事件类型
const (
	EventCardReviewed      = "card.reviewed"
	EventStreakUpdated     = "streak.updated"
	EventAchievementUnlock = "achievement.unlocked"
)

// 乐观锁重试上限；耗尽后以 ErrConflict 上抛，由调用方整体重试
const maxUpdateRetries = 3

// DueCard 到期卡片（对外载荷）
type DueCard struct {
	CardID       int64             `json:"card_id"`
	ItemID       int64             `json:"item_id"`
	ItemType     schema.ItemType   `json:"item_type"`
	Status       schema.CardStatus `json:"status"`
	NextReviewAt time.Time         `json:"next_review_at"`
}

// ReviewOutcome 一次复习提交的完整结果
type ReviewOutcome struct {
	CardID       int64             `json:"card_id"`
	NewStatus    schema.CardStatus `json:"new_status"`
	NewInterval  int               `json:"new_interval"`
	EaseFactor   float64           `json:"ease_factor"`
	Repetitions  int               `json:"repetitions"`
	NextReviewAt time.Time         `json:"next_review_at"`
	Streak       *StreakDelta      `json:"streak,omitempty"`
}

// ReviewService 复习调度编排：卡片存储 + SM-2 + streak/XP + 成就
type ReviewService struct {
	cards   CardRepository
	catalog ItemCatalog
	streaks *StreakService
	policy  XPPolicy
	events  EventPublisher
	tx      TxRunner
	limit   int // 到期查询默认条数
	now     func() time.Time
}

// ReviewServiceConfig 服务配置
type ReviewServiceConfig struct {
	DueLimit int
}

// NewReviewService 创建服务；events 可为 nil（不发事件）
func NewReviewService(cards CardRepository, catalog ItemCatalog, streaks *StreakService, policy XPPolicy, events EventPublisher, tx TxRunner, cfg *ReviewServiceConfig) *ReviewService {
	if policy == nil {
		policy = NewDefaultXPPolicy()
	}
	limit := 20
	if cfg != nil && cfg.DueLimit > 0 {
		limit = cfg.DueLimit
	}
	return &ReviewService{
		cards:   cards,
		catalog: catalog,
		streaks: streaks,
		policy:  policy,
		events:  events,
		tx:      tx,
		limit:   limit,
		now:     time.Now,
	}
}

// atomic 在单个事务里执行 fn；tx 为 nil 时直接执行（不保证原子性）
func (s *ReviewService) atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.tx == nil {
		return fn(ctx)
	}
	return s.tx.Atomic(ctx, fn)
}

// CreateCard 把条目加入复习队列
//
// 条目不存在返回 ErrItemNotFound；(user,item) 已有卡片返回 repository.ErrDuplicate，
// 调用方可把重复视同成功。卡片写入与 streak/XP 记账在同一事务里提交：
// 任一步失败整体回滚，调用方重试不会撞重复。
func (s *ReviewService) CreateCard(ctx context.Context, userID, itemID int64, itemType schema.ItemType) (*schema.ReviewCard, *StreakDelta, error) {
	if !itemType.Valid() {
		return nil, nil, fmt.Errorf("条目类型 %q 不合法: %w", itemType, ErrItemNotFound)
	}

	exists, err := s.catalog.ItemExists(ctx, itemID, itemType)
	if err != nil {
		return nil, nil, err
	}
	if !exists {
		return nil, nil, fmt.Errorf("条目 %d (%s): %w", itemID, itemType, ErrItemNotFound)
	}

	card := schema.NewReviewCard(userID, itemID, itemType, s.now())
	var delta *StreakDelta
	err = s.atomic(ctx, func(ctx context.Context) error {
		if err := s.cards.Create(ctx, card); err != nil {
			return err
		}
		d, err := s.streaks.RecordLearningActivity(ctx, userID, s.policy.CreateCardXP(), ReasonAddCard)
		if err != nil {
			return err
		}
		delta = d
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishStreak(userID, delta)
	return card, delta, nil
}

// RecordReview 提交一次复习结果
//
// idemKey 非空时作为客户端幂等键：键重放直接返回 repository.ErrDuplicate，
// 不会二次调度。每次尝试（流水 + 卡片写回 + streak/XP/成就记账）是一个
// 事务：任一步失败整体回滚，失败的尝试不会烧掉幂等键，同一键重试仍有效。
// 读-改-写以乐观锁串行化，同一张卡的并发提交不会互相覆盖。
func (s *ReviewService) RecordReview(ctx context.Context, userID, cardID int64, quality int, idemKey string) (*ReviewOutcome, error) {
	if !ValidQuality(quality) {
		return nil, fmt.Errorf("质量分 %d: %w", quality, ErrInvalidQuality)
	}

	var log *schema.ReviewLog
	if idemKey != "" {
		if _, err := uuid.Parse(idemKey); err != nil {
			return nil, fmt.Errorf("幂等键必须是 UUID: %w", err)
		}
		log = &schema.ReviewLog{Key: idemKey, CardID: cardID, Quality: quality}
	}

	var card *schema.ReviewCard
	var delta *StreakDelta
	for attempt := 0; ; attempt++ {
		err := s.atomic(ctx, func(ctx context.Context) error {
			var err error
			card, err = s.cards.GetByID(ctx, userID, cardID)
			if err != nil {
				return err
			}

			ApplySchedule(card, quality, s.now())

			if err := s.cards.UpdateScheduled(ctx, card, log); err != nil {
				return err
			}

			delta, err = s.streaks.RecordLearningActivity(ctx, userID, s.policy.ReviewXP(quality), ReasonReview)
			return err
		})
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrVersionConflict) {
			return nil, err
		}
		if attempt+1 >= maxUpdateRetries {
			return nil, fmt.Errorf("卡片 %d 更新重试耗尽: %w", cardID, ErrConflict)
		}
		slog.Debug("卡片版本冲突，重试", "card", cardID, "attempt", attempt+1)
	}

	outcome := &ReviewOutcome{
		CardID:       card.ID,
		NewStatus:    card.Status,
		NewInterval:  card.Interval,
		EaseFactor:   card.EaseFactor,
		Repetitions:  card.Repetitions,
		NextReviewAt: card.NextReviewAt,
		Streak:       delta,
	}
	s.publishStreak(userID, delta)

	if s.events != nil {
		s.events.Publish(EventCardReviewed, map[string]any{
			"user_id":        userID,
			"card_id":        card.ID,
			"quality":        quality,
			"new_status":     string(card.Status),
			"new_interval":   card.Interval,
			"next_review_at": card.NextReviewAt,
		})
	}

	return outcome, nil
}

// DueCards 到期卡片列表，最久欠账优先
func (s *ReviewService) DueCards(ctx context.Context, userID int64, itemType schema.ItemType, limit int) ([]DueCard, error) {
	if itemType != "" && !itemType.Valid() {
		return nil, fmt.Errorf("条目类型 %q 不合法: %w", itemType, ErrItemNotFound)
	}
	if limit <= 0 {
		limit = s.limit
	}

	cards, err := s.cards.GetDue(ctx, userID, itemType, s.now(), limit)
	if err != nil {
		return nil, err
	}

	due := make([]DueCard, 0, len(cards))
	for _, c := range cards {
		due = append(due, DueCard{
			CardID:       c.ID,
			ItemID:       c.ItemID,
			ItemType:     c.ItemType,
			Status:       c.Status,
			NextReviewAt: c.NextReviewAt,
		})
	}
	return due, nil
}

// DueCount 到期卡片数量
func (s *ReviewService) DueCount(ctx context.Context, userID int64) (int64, error) {
	return s.cards.CountDue(ctx, userID, s.now())
}

// ListCards 分页列出全部卡片（含已掌握）
func (s *ReviewService) ListCards(ctx context.Context, userID int64, f repository.ListFilter) ([]schema.ReviewCard, int64, error) {
	return s.cards.List(ctx, userID, f)
}

// ResetCard 显式"忘掉重学"
func (s *ReviewService) ResetCard(ctx context.Context, userID, cardID int64) (*schema.ReviewCard, error) {
	return s.cards.Reset(ctx, userID, cardID, s.now())
}

// RemoveCard 用户移除卡片
func (s *ReviewService) RemoveCard(ctx context.Context, userID, cardID int64) error {
	return s.cards.Delete(ctx, userID, cardID)
}

// Stats 复习统计
func (s *ReviewService) Stats(ctx context.Context, userID int64) (*repository.CardStats, error) {
	return s.cards.Stats(ctx, userID, s.now())
}

// publishStreak 发布 streak 快照与成就解锁事件
func (s *ReviewService) publishStreak(userID int64, delta *StreakDelta) {
	if s.events == nil || delta == nil {
		return
	}
	s.events.Publish(EventStreakUpdated, map[string]any{
		"user_id":        userID,
		"current_streak": delta.CurrentStreak,
		"longest_streak": delta.LongestStreak,
		"total_xp":       delta.TotalXP,
		"level":          delta.Level,
		"is_new_day":     delta.IsNewDay,
		"streak_broken":  delta.StreakBroken,
	})
	for _, u := range delta.Unlocks {
		s.events.Publish(EventAchievementUnlock, map[string]any{
			"user_id":        userID,
			"achievement_id": u.AchievementID,
			"name":           u.Name,
			"xp_reward":      u.XPReward,
			"earned_at":      u.EarnedAt,
		})
	}
}
