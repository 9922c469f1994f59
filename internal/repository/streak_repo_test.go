package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/yuqie6/torii/internal/testutil"
)

func TestStreakGetOrCreateInitializes(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewStreakRepository(db)
	ctx := context.Background()

	s, err := repo.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}
	if s.CurrentStreak != 0 || s.LongestStreak != 0 || s.TotalXP != 0 || s.LastActivityDate != "" {
		t.Fatalf("fresh streak = %+v, want zero values", s)
	}
	if s.Level() != 1 {
		t.Fatalf("level = %d, want 1", s.Level())
	}

	// 再次调用复用同一行
	again, err := repo.GetOrCreate(ctx, 1)
	if err != nil {
		t.Fatalf("second GetOrCreate error: %v", err)
	}
	if again.UserID != s.UserID {
		t.Fatalf("user = %d, want %d", again.UserID, s.UserID)
	}
}

func TestStreakAddXPAtomicWithJournal(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewStreakRepository(db)
	ctx := context.Background()
	now := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	if _, err := repo.GetOrCreate(ctx, 1); err != nil {
		t.Fatalf("GetOrCreate error: %v", err)
	}

	if err := repo.AddXP(ctx, 1, 10, "review", now); err != nil {
		t.Fatalf("AddXP error: %v", err)
	}
	if err := repo.AddXP(ctx, 1, 50, "bonus", now.Add(time.Minute)); err != nil {
		t.Fatalf("AddXP error: %v", err)
	}

	s, _ := repo.GetOrCreate(ctx, 1)
	if s.TotalXP != 60 {
		t.Fatalf("total_xp = %d, want 60", s.TotalXP)
	}

	history, err := repo.XPHistory(ctx, 1, 0)
	if err != nil {
		t.Fatalf("XPHistory error: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("history = %d entries, want 2", len(history))
	}
	// 倒序：最近的在前
	if history[0].Reason != "bonus" || history[1].Reason != "review" {
		t.Fatalf("history order = %s,%s", history[0].Reason, history[1].Reason)
	}
}

func TestStreakAddXPMissingRow(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewStreakRepository(db)

	err := repo.AddXP(context.Background(), 42, 10, "review", time.Now())
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}

	// 事务整体回滚，不得留下孤儿流水
	history, _ := repo.XPHistory(context.Background(), 42, 0)
	if len(history) != 0 {
		t.Fatalf("orphan xp entries: %v", history)
	}
}

func TestStreakActivityDayDedup(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewStreakRepository(db)
	ctx := context.Background()

	for _, date := range []string{"2025-11-03", "2025-11-03", "2025-11-04"} {
		if err := repo.AppendActivityDay(ctx, 1, date); err != nil {
			t.Fatalf("AppendActivityDay(%s) error: %v", date, err)
		}
	}

	dates, err := repo.ActivityDates(ctx, 1)
	if err != nil {
		t.Fatalf("ActivityDates error: %v", err)
	}
	if len(dates) != 2 {
		t.Fatalf("dates = %v, want 2 distinct days", dates)
	}
	if dates[0] != "2025-11-03" || dates[1] != "2025-11-04" {
		t.Fatalf("dates order = %v, want ascending", dates)
	}
}

func TestStreakLeaderboardAndRank(t *testing.T) {
	db := testutil.OpenTestDB(t)
	repo := NewStreakRepository(db)
	ctx := context.Background()
	now := time.Now()

	for userID, xp := range map[int64]int{1: 150, 2: 400, 3: 150, 4: 50} {
		if _, err := repo.GetOrCreate(ctx, userID); err != nil {
			t.Fatalf("GetOrCreate error: %v", err)
		}
		if err := repo.AddXP(ctx, userID, xp, "seed", now); err != nil {
			t.Fatalf("AddXP error: %v", err)
		}
	}
	// 用户 3 有更长的连续天数，同分时排前面
	s, _ := repo.GetOrCreate(ctx, 3)
	s.CurrentStreak = 9
	s.LongestStreak = 9
	if err := repo.SaveStreakFields(ctx, s); err != nil {
		t.Fatalf("SaveStreakFields error: %v", err)
	}

	entries, err := repo.Leaderboard(ctx, 3)
	if err != nil {
		t.Fatalf("Leaderboard error: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("leaderboard = %d entries, want 3", len(entries))
	}
	if entries[0].UserID != 2 || entries[1].UserID != 3 || entries[2].UserID != 1 {
		t.Fatalf("order = %d,%d,%d want 2,3,1", entries[0].UserID, entries[1].UserID, entries[2].UserID)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Fatalf("ranks = %d,%d", entries[0].Rank, entries[1].Rank)
	}
	if entries[0].Level != 5 {
		t.Fatalf("level = %d, want 5 for 400 xp", entries[0].Level)
	}

	rank, err := repo.Rank(ctx, 4)
	if err != nil {
		t.Fatalf("Rank error: %v", err)
	}
	if rank != 4 {
		t.Fatalf("rank = %d, want 4", rank)
	}
	rank, _ = repo.Rank(ctx, 2)
	if rank != 1 {
		t.Fatalf("rank = %d, want 1", rank)
	}
}
