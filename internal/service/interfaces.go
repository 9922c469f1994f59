package service

import (
	"context"
	"time"

	"github.com/yuqie6/torii/internal/repository"
	"github.com/yuqie6/torii/internal/schema"
)

// 仓储/外部依赖的最小接口集合（ISP）

type CardRepository interface {
	Create(ctx context.Context, card *schema.ReviewCard) error
	GetByID(ctx context.Context, userID, cardID int64) (*schema.ReviewCard, error)
	GetDue(ctx context.Context, userID int64, itemType schema.ItemType, now time.Time, limit int) ([]schema.ReviewCard, error)
	CountDue(ctx context.Context, userID int64, now time.Time) (int64, error)
	List(ctx context.Context, userID int64, f repository.ListFilter) ([]schema.ReviewCard, int64, error)
	UpdateScheduled(ctx context.Context, card *schema.ReviewCard, log *schema.ReviewLog) error
	Reset(ctx context.Context, userID, cardID int64, now time.Time) (*schema.ReviewCard, error)
	Delete(ctx context.Context, userID, cardID int64) error
	Stats(ctx context.Context, userID int64, now time.Time) (*repository.CardStats, error)
}

type StreakRepository interface {
	GetOrCreate(ctx context.Context, userID int64) (*schema.UserStreak, error)
	SaveStreakFields(ctx context.Context, s *schema.UserStreak) error
	AddXP(ctx context.Context, userID int64, amount int, reason string, now time.Time) error
	AppendActivityDay(ctx context.Context, userID int64, date string) error
	ActivityDates(ctx context.Context, userID int64) ([]string, error)
	XPHistory(ctx context.Context, userID int64, limit int) ([]schema.XPEntry, error)
}

type AchievementRepository interface {
	GetActiveByType(ctx context.Context, reqType schema.RequirementType) ([]schema.Achievement, error)
	GetUserAchievement(ctx context.Context, userID, achievementID int64) (*schema.UserAchievement, error)
	UpsertProgress(ctx context.Context, userID, achievementID int64, progress int) error
	CompleteOnce(ctx context.Context, userID, achievementID int64, earnedAt time.Time) (bool, error)
}

// ItemCatalog 内容目录协作方：createCard 前校验条目存在
type ItemCatalog interface {
	ItemExists(ctx context.Context, itemID int64, itemType schema.ItemType) (bool, error)
}

// EventPublisher 对外事件发布（由 API/通知层消费）
type EventPublisher interface {
	Publish(eventType string, data map[string]any)
}

// TxRunner 把跨仓储的多个写操作放进同一事务；fn 返回错误时整体回滚
type TxRunner interface {
	Atomic(ctx context.Context, fn func(ctx context.Context) error) error
}
