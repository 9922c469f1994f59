package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/yuqie6/torii/internal/repository"
	"github.com/yuqie6/torii/internal/schema"
	"github.com/yuqie6/torii/internal/testutil"
	"gorm.io/gorm"
)

type reviewFixture struct {
	svc     *ReviewService
	streaks *StreakService
	catalog *repository.CatalogRepository
	db      *gorm.DB
}

func newReviewFixture(t *testing.T, at time.Time) *reviewFixture {
	t.Helper()
	db := testutil.OpenTestDB(t)

	cardRepo := repository.NewCardRepository(db)
	streakRepo := repository.NewStreakRepository(db)
	achRepo := repository.NewAchievementRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	if err := achRepo.SeedDefaults(context.Background()); err != nil {
		t.Fatalf("seed achievements: %v", err)
	}

	achievements := NewAchievementService(achRepo, streakRepo)
	streaks := NewStreakService(streakRepo, achievements, NewDefaultXPPolicy(), time.UTC)
	streaks.now = func() time.Time { return at }

	svc := NewReviewService(cardRepo, catalogRepo, streaks, NewDefaultXPPolicy(), nil, repository.NewTxRunner(db), nil)
	svc.now = func() time.Time { return at }

	return &reviewFixture{svc: svc, streaks: streaks, catalog: catalogRepo, db: db}
}

// brokenXPService 构造一个发 0 XP 的服务：XP 入账必然失败，
// 用来验证事务整体回滚
func (f *reviewFixture) brokenXPService(at time.Time) *ReviewService {
	svc := NewReviewService(
		repository.NewCardRepository(f.db),
		f.catalog,
		f.streaks,
		zeroXPPolicy{},
		nil,
		repository.NewTxRunner(f.db),
		nil,
	)
	svc.now = func() time.Time { return at }
	return svc
}

type zeroXPPolicy struct{}

func (zeroXPPolicy) ReviewXP(int) int   { return 0 }
func (zeroXPPolicy) CreateCardXP() int  { return 0 }
func (zeroXPPolicy) DailyBonus(int) int { return 10 }

func (f *reviewFixture) seedItem(t *testing.T, itemType schema.ItemType) int64 {
	t.Helper()
	item := &schema.CatalogItem{ItemType: itemType, Headword: "食べる", Reading: "たべる", Meaning: "to eat", JLPTLevel: "N5"}
	if err := f.catalog.Create(context.Background(), item); err != nil {
		t.Fatalf("seed item: %v", err)
	}
	return item.ID
}

func TestCreateCardValidatesItem(t *testing.T) {
	f := newReviewFixture(t, time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	// 目录中不存在的条目
	if _, _, err := f.svc.CreateCard(ctx, 1, 999, schema.ItemKanji); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
	// 非法类型
	if _, _, err := f.svc.CreateCard(ctx, 1, 1, schema.ItemType("radical")); !errors.Is(err, ErrItemNotFound) {
		t.Fatalf("err = %v, want ErrItemNotFound", err)
	}
}

func TestCreateCardInitialStateAndDuplicate(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()
	itemID := f.seedItem(t, schema.ItemVocabulary)

	card, delta, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemVocabulary)
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}
	if card.Status != schema.StatusNew || card.Interval != 0 || card.EaseFactor != 2.5 || card.Repetitions != 0 {
		t.Fatalf("card = %+v, want fresh SM-2 state", card)
	}
	if !card.NextReviewAt.Equal(now) {
		t.Fatalf("next_review_at = %v, want now", card.NextReviewAt)
	}
	// 加卡 3 XP + 每日 10
	if delta == nil || delta.TotalXP != 13 {
		t.Fatalf("delta = %+v, want 13 xp", delta)
	}

	// 重复创建 → ErrDuplicate，调用方可视同成功
	if _, _, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemVocabulary); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("err = %v, want ErrDuplicate", err)
	}
}

func TestRecordReviewRejectsInvalidQuality(t *testing.T) {
	f := newReviewFixture(t, time.Now())
	ctx := context.Background()

	for _, q := range []int{-1, 6} {
		if _, err := f.svc.RecordReview(ctx, 1, 1, q, ""); !errors.Is(err, ErrInvalidQuality) {
			t.Fatalf("quality %d: err = %v, want ErrInvalidQuality", q, err)
		}
	}
}

func TestRecordReviewNotFound(t *testing.T) {
	f := newReviewFixture(t, time.Now())
	if _, err := f.svc.RecordReview(context.Background(), 1, 42, 4, ""); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestRecordReviewFullFlow(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()
	itemID := f.seedItem(t, schema.ItemVocabulary)

	card, _, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemVocabulary)
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}

	outcome, err := f.svc.RecordReview(ctx, 1, card.ID, 4, "")
	if err != nil {
		t.Fatalf("RecordReview error: %v", err)
	}
	if outcome.NewStatus != schema.StatusLearning || outcome.NewInterval != 1 {
		t.Fatalf("outcome = %+v, want learning/1", outcome)
	}
	if want := now.AddDate(0, 0, 1); !outcome.NextReviewAt.Equal(want) {
		t.Fatalf("next_review_at = %v, want %v", outcome.NextReviewAt, want)
	}
	if outcome.Streak == nil || outcome.Streak.CurrentStreak != 1 {
		t.Fatalf("streak delta = %+v", outcome.Streak)
	}

	// 计数落库
	stored, err := f.svc.cards.GetByID(ctx, 1, card.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if stored.CorrectCount != 1 || stored.IncorrectCount != 0 {
		t.Fatalf("counts = %d/%d, want 1/0", stored.CorrectCount, stored.IncorrectCount)
	}
}

func TestRecordReviewIdempotencyKeyReplay(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()
	itemID := f.seedItem(t, schema.ItemVocabulary)

	card, _, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemVocabulary)
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}

	key := uuid.NewString()
	if _, err := f.svc.RecordReview(ctx, 1, card.ID, 4, key); err != nil {
		t.Fatalf("RecordReview error: %v", err)
	}
	// 同一幂等键重放：拒绝，不二次调度
	if _, err := f.svc.RecordReview(ctx, 1, card.ID, 4, key); !errors.Is(err, repository.ErrDuplicate) {
		t.Fatalf("replay err = %v, want ErrDuplicate", err)
	}

	stored, _ := f.svc.cards.GetByID(ctx, 1, card.ID)
	if stored.Repetitions != 1 {
		t.Fatalf("repetitions = %d, want 1 (no double apply)", stored.Repetitions)
	}

	// 非 UUID 键直接拒绝
	if _, err := f.svc.RecordReview(ctx, 1, card.ID, 4, "not-a-uuid"); err == nil {
		t.Fatalf("non-uuid key accepted")
	}
}

func TestRecordReviewFailedAttemptKeepsKeyUsable(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()
	itemID := f.seedItem(t, schema.ItemVocabulary)

	card, _, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemVocabulary)
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}

	// 卡片号写错的提交失败，不得烧掉幂等键
	key := uuid.NewString()
	if _, err := f.svc.RecordReview(ctx, 1, card.ID+999, 4, key); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// 换正确卡片号、同一个键重试必须成功
	outcome, err := f.svc.RecordReview(ctx, 1, card.ID, 4, key)
	if err != nil {
		t.Fatalf("retry with same key error: %v", err)
	}
	if outcome.NewStatus != schema.StatusLearning || outcome.Repetitions != 1 {
		t.Fatalf("outcome = %+v, want learning/1", outcome)
	}
}

func TestRecordReviewRollsBackOnStreakFailure(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()
	itemID := f.seedItem(t, schema.ItemVocabulary)

	card, _, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemVocabulary)
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}

	// XP 记账失败时整个提交回滚，不得出现"调度落库、XP 丢失"的半成品
	broken := f.brokenXPService(now)
	key := uuid.NewString()
	if _, err := broken.RecordReview(ctx, 1, card.ID, 4, key); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}

	stored, err := f.svc.cards.GetByID(ctx, 1, card.ID)
	if err != nil {
		t.Fatalf("GetByID error: %v", err)
	}
	if stored.Status != schema.StatusNew || stored.Repetitions != 0 || stored.CorrectCount != 0 {
		t.Fatalf("card = %+v, schedule leaked through rollback", stored)
	}

	// 幂等键随失败一并回滚，健康路径重试成功
	outcome, err := f.svc.RecordReview(ctx, 1, card.ID, 4, key)
	if err != nil {
		t.Fatalf("retry with same key error: %v", err)
	}
	if outcome.Streak == nil || outcome.Repetitions != 1 {
		t.Fatalf("outcome = %+v, want applied review with streak delta", outcome)
	}
}

func TestCreateCardRollsBackOnStreakFailure(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()
	itemID := f.seedItem(t, schema.ItemVocabulary)

	broken := f.brokenXPService(now)
	if _, _, err := broken.CreateCard(ctx, 1, itemID, schema.ItemVocabulary); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}

	// 卡片没有落库，健康重试不会撞 ErrDuplicate
	card, delta, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemVocabulary)
	if err != nil {
		t.Fatalf("retry CreateCard error: %v", err)
	}
	if card.Status != schema.StatusNew {
		t.Fatalf("card = %+v, want fresh card", card)
	}
	if delta == nil || delta.TotalXP != 13 {
		t.Fatalf("delta = %+v, want 13 xp", delta)
	}
}

func TestDueCardsOrderingAndFilter(t *testing.T) {
	now := time.Date(2025, 11, 10, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()

	mk := func(itemType schema.ItemType, due time.Time, status schema.CardStatus) int64 {
		itemID := f.seedItem(t, itemType)
		card := schema.NewReviewCard(1, itemID, itemType, due)
		card.Status = status
		if err := f.db.Create(card).Error; err != nil {
			t.Fatalf("create card: %v", err)
		}
		return card.ID
	}

	oldest := mk(schema.ItemVocabulary, now.AddDate(0, 0, -3), schema.StatusReview)
	newer := mk(schema.ItemVocabulary, now.AddDate(0, 0, -1), schema.StatusLearning)
	mk(schema.ItemKanji, now.AddDate(0, 0, -2), schema.StatusMastered) // 已掌握不进到期队列
	mk(schema.ItemKanji, now.AddDate(0, 0, 2), schema.StatusReview)    // 未到期

	due, err := f.svc.DueCards(ctx, 1, "", 0)
	if err != nil {
		t.Fatalf("DueCards error: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due = %d cards, want 2", len(due))
	}
	// 最久欠账优先
	if due[0].CardID != oldest || due[1].CardID != newer {
		t.Fatalf("order = %d,%d want %d,%d", due[0].CardID, due[1].CardID, oldest, newer)
	}

	// 类型过滤
	due, err = f.svc.DueCards(ctx, 1, schema.ItemKanji, 0)
	if err != nil {
		t.Fatalf("DueCards error: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("kanji due = %d, want 0", len(due))
	}

	count, err := f.svc.DueCount(ctx, 1)
	if err != nil {
		t.Fatalf("DueCount error: %v", err)
	}
	if count != 2 {
		t.Fatalf("due count = %d, want 2", count)
	}
}

func TestResetCardRestoresInitialState(t *testing.T) {
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)
	f := newReviewFixture(t, now)
	ctx := context.Background()
	itemID := f.seedItem(t, schema.ItemGrammar)

	card, _, err := f.svc.CreateCard(ctx, 1, itemID, schema.ItemGrammar)
	if err != nil {
		t.Fatalf("CreateCard error: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := f.svc.RecordReview(ctx, 1, card.ID, 5, ""); err != nil {
			t.Fatalf("RecordReview error: %v", err)
		}
	}

	reset, err := f.svc.ResetCard(ctx, 1, card.ID)
	if err != nil {
		t.Fatalf("ResetCard error: %v", err)
	}
	if reset.Status != schema.StatusNew || reset.Interval != 0 || reset.EaseFactor != 2.5 || reset.Repetitions != 0 {
		t.Fatalf("reset card = %+v, want initial state", reset)
	}
	if reset.LastReviewAt != nil {
		t.Fatalf("last_review_at = %v, want nil", reset.LastReviewAt)
	}
}
