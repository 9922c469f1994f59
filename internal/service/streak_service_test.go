package service

import (
	"context"
	"testing"
	"time"

	"github.com/yuqie6/torii/internal/repository"
	"github.com/yuqie6/torii/internal/testutil"
)

// newStreakServiceAt 构造固定"当前时间"的服务（无成就评估）
func newStreakServiceAt(t *testing.T, at time.Time) (*StreakService, *repository.StreakRepository) {
	t.Helper()
	db := testutil.OpenTestDB(t)
	repo := repository.NewStreakRepository(db)
	svc := NewStreakService(repo, nil, NewDefaultXPPolicy(), time.UTC)
	svc.now = func() time.Time { return at }
	return svc, repo
}

func TestRecordActivityFirstEver(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	res, err := svc.RecordActivity(ctx, 1)
	if err != nil {
		t.Fatalf("RecordActivity error: %v", err)
	}
	if !res.IsNewDay || res.Streak != 1 || res.StreakBroken {
		t.Fatalf("res = %+v, want streak 1 new day", res)
	}

	snap, _ := svc.Snapshot(ctx, 1)
	if snap.CurrentStreak != 1 || snap.LongestStreak != 1 {
		t.Fatalf("streak = %d/%d, want 1/1", snap.CurrentStreak, snap.LongestStreak)
	}
	if snap.LastActivityDate != "2025-11-03" {
		t.Fatalf("last_activity_date = %s", snap.LastActivityDate)
	}
}

func TestRecordActivitySameDayIdempotent(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.RecordActivity(ctx, 1); err != nil {
		t.Fatalf("first RecordActivity error: %v", err)
	}
	res, err := svc.RecordActivity(ctx, 1)
	if err != nil {
		t.Fatalf("second RecordActivity error: %v", err)
	}
	if res.IsNewDay {
		t.Fatalf("second call same day: is_new_day = true, want false")
	}
	if res.Streak != 1 {
		t.Fatalf("streak = %d, want 1 unchanged", res.Streak)
	}

	dates, _ := svc.ActivityDates(ctx, 1)
	if len(dates) != 1 {
		t.Fatalf("activity dates = %v, want exactly one", dates)
	}
}

func TestRecordActivityConsecutiveDay(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.RecordActivity(ctx, 1); err != nil {
		t.Fatalf("RecordActivity error: %v", err)
	}

	// 昨天活跃，今天再来 → streak+1
	svc.now = func() time.Time { return time.Date(2025, 11, 4, 8, 0, 0, 0, time.UTC) }
	res, err := svc.RecordActivity(ctx, 1)
	if err != nil {
		t.Fatalf("RecordActivity error: %v", err)
	}
	if !res.IsNewDay || res.Streak != 2 || res.StreakBroken {
		t.Fatalf("res = %+v, want streak 2 new day", res)
	}
}

func TestRecordActivityBreakAfterGap(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for day := 3; day <= 5; day++ {
		d := day
		svc.now = func() time.Time { return time.Date(2025, 11, d, 9, 0, 0, 0, time.UTC) }
		if _, err := svc.RecordActivity(ctx, 1); err != nil {
			t.Fatalf("RecordActivity error: %v", err)
		}
	}

	// D+2：断签，重置为 1
	svc.now = func() time.Time { return time.Date(2025, 11, 7, 9, 0, 0, 0, time.UTC) }
	res, err := svc.RecordActivity(ctx, 1)
	if err != nil {
		t.Fatalf("RecordActivity error: %v", err)
	}
	if !res.StreakBroken || res.Streak != 1 || !res.IsNewDay {
		t.Fatalf("res = %+v, want broken streak 1", res)
	}

	snap, _ := svc.Snapshot(ctx, 1)
	if snap.LongestStreak != 3 {
		t.Fatalf("longest = %d, want 3 preserved", snap.LongestStreak)
	}
	if snap.CurrentStreak > snap.LongestStreak {
		t.Fatalf("current %d > longest %d", snap.CurrentStreak, snap.LongestStreak)
	}
}

func TestRecordActivityClockSkewIsNoop(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Date(2025, 11, 5, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	if _, err := svc.RecordActivity(ctx, 1); err != nil {
		t.Fatalf("RecordActivity error: %v", err)
	}

	// 时钟回拨：不得递减或破坏状态
	svc.now = func() time.Time { return time.Date(2025, 11, 2, 9, 0, 0, 0, time.UTC) }
	res, err := svc.RecordActivity(ctx, 1)
	if err != nil {
		t.Fatalf("RecordActivity error: %v", err)
	}
	if res.IsNewDay || res.Streak != 1 {
		t.Fatalf("res = %+v, want same-day noop", res)
	}

	snap, _ := svc.Snapshot(ctx, 1)
	if snap.LastActivityDate != "2025-11-05" {
		t.Fatalf("last_activity_date = %s, want 2025-11-05 unchanged", snap.LastActivityDate)
	}
}

func TestAddXPValidatesAmount(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Now())
	ctx := context.Background()

	if err := svc.AddXP(ctx, 1, 0, "x"); err != ErrInvalidAmount {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
	if err := svc.AddXP(ctx, 1, -5, "x"); err != ErrInvalidAmount {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

func TestLevelDerivation(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Now())
	ctx := context.Background()

	// total_xp=95 再 +10 → 105，等级从 1 升到 2
	if err := svc.AddXP(ctx, 1, 95, "seed"); err != nil {
		t.Fatalf("AddXP error: %v", err)
	}
	snap, _ := svc.Snapshot(ctx, 1)
	if snap.Level() != 1 {
		t.Fatalf("level = %d, want 1", snap.Level())
	}

	if err := svc.AddXP(ctx, 1, 10, "bump"); err != nil {
		t.Fatalf("AddXP error: %v", err)
	}
	snap, _ = svc.Snapshot(ctx, 1)
	if snap.TotalXP != 105 {
		t.Fatalf("total_xp = %d, want 105", snap.TotalXP)
	}
	if snap.Level() != 2 {
		t.Fatalf("level = %d, want 2", snap.Level())
	}
	if snap.XPToNextLevel() != 95 {
		t.Fatalf("xp_to_next_level = %d, want 95", snap.XPToNextLevel())
	}
}

func TestRecordLearningActivityAwardsDailyBonus(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	delta, err := svc.RecordLearningActivity(ctx, 1, 5, ReasonReview)
	if err != nil {
		t.Fatalf("RecordLearningActivity error: %v", err)
	}
	// 5 活动 XP + 10 每日奖励
	if delta.TotalXP != 15 {
		t.Fatalf("total_xp = %d, want 15", delta.TotalXP)
	}
	if !delta.IsNewDay || delta.CurrentStreak != 1 {
		t.Fatalf("delta = %+v, want new day streak 1", delta)
	}

	// 同日第二次：只有活动 XP，无每日奖励
	delta, err = svc.RecordLearningActivity(ctx, 1, 5, ReasonReview)
	if err != nil {
		t.Fatalf("RecordLearningActivity error: %v", err)
	}
	if delta.TotalXP != 20 {
		t.Fatalf("total_xp = %d, want 20", delta.TotalXP)
	}
	if delta.IsNewDay {
		t.Fatalf("second same-day activity flagged as new day")
	}

	history, _ := svc.XPHistory(ctx, 1, 0)
	if len(history) != 3 {
		t.Fatalf("xp history = %d entries, want 3", len(history))
	}
}

func TestRecordLearningActivityWeekMilestone(t *testing.T) {
	svc, _ := newStreakServiceAt(t, time.Date(2025, 11, 1, 9, 0, 0, 0, time.UTC))
	ctx := context.Background()

	total := 0
	for day := 1; day <= 7; day++ {
		d := day
		svc.now = func() time.Time { return time.Date(2025, 11, d, 9, 0, 0, 0, time.UTC) }
		delta, err := svc.RecordLearningActivity(ctx, 1, 1, ReasonReview)
		if err != nil {
			t.Fatalf("day %d error: %v", d, err)
		}
		total = delta.TotalXP
		if day == 7 && delta.CurrentStreak != 7 {
			t.Fatalf("streak = %d, want 7", delta.CurrentStreak)
		}
	}

	// 6 天 ×(1+10) + 第 7 天 (1+50) = 117
	if total != 117 {
		t.Fatalf("total_xp = %d, want 117", total)
	}
}
