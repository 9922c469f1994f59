package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/yuqie6/torii/internal/bootstrap"
	"github.com/yuqie6/torii/internal/pkg/config"
	"github.com/yuqie6/torii/internal/repository"
	"github.com/yuqie6/torii/internal/schema"
	"github.com/yuqie6/torii/internal/service"
	"go.yaml.in/yaml/v3"
)

var (
	cfgFile string
	userID  int64
	core    *bootstrap.Core
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "torii",
		Short: "Torii - 日语间隔复习调度核心",
		Long:  `Torii 是一个本地运行的日语学习调度系统，基于 SM-2 算法安排词汇、汉字和语法的复习，并跟踪连续学习天数、经验值与成就。`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// init-config 不需要数据库
			if cmd.Name() == "init-config" {
				return
			}
			var err error
			core, err = bootstrap.NewCore(cfgFile)
			if err != nil {
				slog.Error("初始化失败", "error", err)
				os.Exit(1)
			}
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if core != nil {
				_ = core.Close()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	rootCmd.PersistentFlags().Int64VarP(&userID, "user", "u", 1, "用户 ID")

	rootCmd.AddCommand(initConfigCmd())
	rootCmd.AddCommand(importCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(dueCmd())
	rootCmd.AddCommand(reviewCmd())
	rootCmd.AddCommand(cardsCmd())
	rootCmd.AddCommand(resetCmd())
	rootCmd.AddCommand(removeCmd())
	rootCmd.AddCommand(statsCmd())
	rootCmd.AddCommand(streakCmd())
	rootCmd.AddCommand(xpCmd())
	rootCmd.AddCommand(heatmapCmd())
	rootCmd.AddCommand(achievementsCmd())
	rootCmd.AddCommand(leaderboardCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// initConfigCmd 生成默认配置文件
func initConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init-config",
		Short: "生成默认配置文件",
		Run: func(cmd *cobra.Command, args []string) {
			path := cfgFile
			if path == "" {
				var err error
				path, err = config.DefaultConfigPath()
				if err != nil {
					fmt.Printf("❌ 解析默认路径失败: %v\n", err)
					os.Exit(1)
				}
			}

			cfg, err := config.Load("")
			if err != nil {
				fmt.Printf("❌ 加载默认配置失败: %v\n", err)
				os.Exit(1)
			}
			if err := config.WriteFile(path, cfg); err != nil {
				fmt.Printf("❌ 写入配置失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 配置已写入 %s\n", path)
		},
	}
}

// catalogImportEntry 导入文件里的条目
type catalogImportEntry struct {
	ItemType  string `yaml:"item_type"`
	Headword  string `yaml:"headword"`
	Reading   string `yaml:"reading"`
	Meaning   string `yaml:"meaning"`
	JLPTLevel string `yaml:"jlpt_level"`
}

// importCmd 从 YAML 文件导入内容目录
func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.yaml>",
		Short: "从 YAML 文件导入词汇/汉字/语法条目",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			data, err := os.ReadFile(args[0])
			if err != nil {
				fmt.Printf("❌ 读取文件失败: %v\n", err)
				os.Exit(1)
			}

			var entries []catalogImportEntry
			if err := yaml.Unmarshal(data, &entries); err != nil {
				fmt.Printf("❌ 解析 YAML 失败: %v\n", err)
				os.Exit(1)
			}

			imported := 0
			for _, e := range entries {
				itemType := schema.ItemType(e.ItemType)
				if !itemType.Valid() {
					fmt.Printf("⚠️  跳过未知类型 %q: %s\n", e.ItemType, e.Headword)
					continue
				}
				item := &schema.CatalogItem{
					ItemType:  itemType,
					Headword:  e.Headword,
					Reading:   e.Reading,
					Meaning:   e.Meaning,
					JLPTLevel: e.JLPTLevel,
				}
				if err := core.Repos.Catalog.Create(ctx, item); err != nil {
					fmt.Printf("❌ 导入 %s 失败: %v\n", e.Headword, err)
					os.Exit(1)
				}
				imported++
			}
			fmt.Printf("✅ 已导入 %d 个条目\n", imported)
		},
	}
}

// addCmd 把条目加入复习队列
func addCmd() *cobra.Command {
	var itemType string

	cmd := &cobra.Command{
		Use:   "add <item-id>",
		Short: "把条目加入复习队列",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			itemID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Printf("❌ 条目 ID 必须是数字: %v\n", err)
				os.Exit(1)
			}

			card, delta, err := core.Services.Review.CreateCard(ctx, userID, itemID, schema.ItemType(itemType))
			if err != nil {
				fmt.Printf("❌ 加入失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("✅ 卡片 #%d 已加入复习队列 (%s)\n", card.ID, card.ItemType)
			if delta != nil {
				fmt.Printf("⭐ XP +%d (总计 %d, Lv.%d)\n", core.Cfg.XP.CreateCard, delta.TotalXP, delta.Level)
				printUnlocks(delta)
			}
		},
	}

	cmd.Flags().StringVarP(&itemType, "type", "t", "vocabulary", "条目类型 (vocabulary/kanji/grammar)")

	return cmd
}

// dueCmd 列出到期卡片
func dueCmd() *cobra.Command {
	var itemType string
	var limit int

	cmd := &cobra.Command{
		Use:   "due",
		Short: "列出到期卡片",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			due, err := core.Services.Review.DueCards(ctx, userID, schema.ItemType(itemType), limit)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			if len(due) == 0 {
				fmt.Println("🎉 没有到期的卡片，今天的复习完成了")
				return
			}

			fmt.Printf("📚 到期卡片 (%d 张)\n", len(due))
			fmt.Println("═══════════════════════════════════════")
			for _, d := range due {
				item, err := core.Repos.Catalog.GetByID(ctx, d.ItemID)
				label := fmt.Sprintf("条目 #%d", d.ItemID)
				if err == nil {
					label = item.Headword
					if item.Reading != "" {
						label += " (" + item.Reading + ")"
					}
				}
				fmt.Printf("  #%-4d %-10s %-24s 到期 %s\n",
					d.CardID, d.Status, label, d.NextReviewAt.Format("2006-01-02"))
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}

	cmd.Flags().StringVarP(&itemType, "type", "t", "", "条目类型过滤")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "最大条数 (0=配置默认)")

	return cmd
}

// reviewCmd 提交一次复习结果
func reviewCmd() *cobra.Command {
	var idemKey string

	cmd := &cobra.Command{
		Use:   "review <card-id> <quality>",
		Short: "提交一次复习结果 (quality 0-5)",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Printf("❌ 卡片 ID 必须是数字: %v\n", err)
				os.Exit(1)
			}
			quality, err := strconv.Atoi(args[1])
			if err != nil {
				fmt.Printf("❌ 质量分必须是数字: %v\n", err)
				os.Exit(1)
			}

			outcome, err := core.Services.Review.RecordReview(ctx, userID, cardID, quality, idemKey)
			if err != nil {
				fmt.Printf("❌ 提交失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("✅ 卡片 #%d: %s, 间隔 %d 天, 易度 %.2f\n",
				outcome.CardID, outcome.NewStatus, outcome.NewInterval, outcome.EaseFactor)
			fmt.Printf("📅 下次复习: %s\n", outcome.NextReviewAt.Format("2006-01-02"))
			if outcome.Streak != nil {
				fmt.Printf("🔥 连续 %d 天 | ⭐ %d XP (Lv.%d)\n",
					outcome.Streak.CurrentStreak, outcome.Streak.TotalXP, outcome.Streak.Level)
				printUnlocks(outcome.Streak)
			}
		},
	}

	cmd.Flags().StringVarP(&idemKey, "key", "k", "", "幂等键 (UUID)")

	return cmd
}

// cardsCmd 分页列出卡片
func cardsCmd() *cobra.Command {
	var itemType, status string
	var page, limit int

	cmd := &cobra.Command{
		Use:   "cards",
		Short: "列出全部卡片",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			cards, total, err := core.Services.Review.ListCards(ctx, userID, repository.ListFilter{
				ItemType: schema.ItemType(itemType),
				Status:   schema.CardStatus(status),
				Page:     page,
				Limit:    limit,
			})
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("🗂  卡片 %d 张 (第 %d 页)\n", total, page)
			fmt.Println("═══════════════════════════════════════")
			for _, c := range cards {
				fmt.Printf("  #%-4d %-10s %-10s 间隔 %-3d 易度 %.2f 到期 %s\n",
					c.ID, c.ItemType, c.Status, c.Interval, c.EaseFactor,
					c.NextReviewAt.Format("2006-01-02"))
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}

	cmd.Flags().StringVarP(&itemType, "type", "t", "", "条目类型过滤")
	cmd.Flags().StringVarP(&status, "status", "s", "", "状态过滤 (new/learning/review/mastered)")
	cmd.Flags().IntVarP(&page, "page", "p", 1, "页码")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "每页条数")

	return cmd
}

// resetCmd 重置卡片
func resetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <card-id>",
		Short: "把卡片重置回初始状态",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Printf("❌ 卡片 ID 必须是数字: %v\n", err)
				os.Exit(1)
			}

			card, err := core.Services.Review.ResetCard(context.Background(), userID, cardID)
			if err != nil {
				fmt.Printf("❌ 重置失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 卡片 #%d 已重置，立即可复习 (%s)\n", card.ID, card.Status)
		},
	}
}

// removeCmd 移除卡片
func removeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <card-id>",
		Short: "从复习队列移除卡片",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cardID, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				fmt.Printf("❌ 卡片 ID 必须是数字: %v\n", err)
				os.Exit(1)
			}

			if err := core.Services.Review.RemoveCard(context.Background(), userID, cardID); err != nil {
				fmt.Printf("❌ 移除失败: %v\n", err)
				os.Exit(1)
			}
			fmt.Printf("✅ 卡片 #%d 已移除\n", cardID)
		},
	}
}

// statsCmd 复习统计
func statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "查看复习统计",
		Run: func(cmd *cobra.Command, args []string) {
			stats, err := core.Services.Review.Stats(context.Background(), userID)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Println("📊 复习统计")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("  • 卡片总数: %d (到期 %d)\n", stats.TotalCards, stats.DueNow)

			fmt.Printf("\n📦 按状态\n")
			for _, s := range []schema.CardStatus{schema.StatusNew, schema.StatusLearning, schema.StatusReview, schema.StatusMastered} {
				if n := stats.ByStatus[s]; n > 0 {
					fmt.Printf("  • %s: %d\n", s, n)
				}
			}

			fmt.Printf("\n🗾 按类型\n")
			for _, t := range []schema.ItemType{schema.ItemVocabulary, schema.ItemKanji, schema.ItemGrammar} {
				if n := stats.ByType[t]; n > 0 {
					fmt.Printf("  • %s: %d\n", t, n)
				}
			}

			fmt.Printf("\n🎯 正确率: %.1f%% (对 %d / 错 %d)\n",
				stats.AccuracyRate, stats.TotalCorrect, stats.TotalIncorrect)
			fmt.Println("═══════════════════════════════════════")
		},
	}
}

// streakCmd 连续学习状态
func streakCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streak",
		Short: "查看连续学习状态",
		Run: func(cmd *cobra.Command, args []string) {
			snap, err := core.Services.Streaks.Snapshot(context.Background(), userID)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Println("🔥 连续学习")
			fmt.Println("═══════════════════════════════════════")
			fmt.Printf("  • 当前连续: %d 天 (最长 %d 天)\n", snap.CurrentStreak, snap.LongestStreak)
			if snap.LastActivityDate != "" {
				fmt.Printf("  • 最后活跃: %s\n", snap.LastActivityDate)
			}
			fmt.Printf("  • 总 XP: %d | Lv.%d (距下一级 %d XP)\n",
				snap.TotalXP, snap.Level(), snap.XPToNextLevel())
			fmt.Println("═══════════════════════════════════════")
		},
	}
}

// xpCmd XP 流水
func xpCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "xp",
		Short: "查看 XP 流水",
		Run: func(cmd *cobra.Command, args []string) {
			history, err := core.Services.Streaks.XPHistory(context.Background(), userID, limit)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			if len(history) == 0 {
				fmt.Println("📚 还没有 XP 记录，先复习几张卡片吧")
				return
			}

			fmt.Printf("⭐ XP 流水 (最近 %d 条)\n", len(history))
			fmt.Println("═══════════════════════════════════════")
			for _, e := range history {
				fmt.Printf("  %s  +%-5d %s\n", e.EarnedAt.Format("01-02 15:04"), e.Amount, e.Reason)
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "最大条数")

	return cmd
}

// heatmapCmd 活跃日历
func heatmapCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "heatmap",
		Short: "查看学习活跃日历",
		Run: func(cmd *cobra.Command, args []string) {
			dates, err := core.Services.Streaks.ActivityDates(context.Background(), userID)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			if len(dates) == 0 {
				fmt.Println("📚 还没有活跃记录")
				return
			}

			fmt.Printf("📅 活跃日 (%d 天)\n", len(dates))
			for _, d := range dates {
				fmt.Printf("  🟩 %s\n", d)
			}
		},
	}
}

// achievementsCmd 成就进度
func achievementsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "查看成就进度",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			all, err := core.Repos.Achievement.GetAllActive(ctx)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}
			mine, err := core.Repos.Achievement.ListForUser(ctx, userID)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			progress := make(map[int64]schema.UserAchievement, len(mine))
			for _, ua := range mine {
				progress[ua.AchievementID] = ua
			}

			fmt.Printf("🏆 成就 (%d 个)\n", len(all))
			fmt.Println("═══════════════════════════════════════")
			for _, a := range all {
				ua, ok := progress[a.ID]
				switch {
				case ok && ua.IsCompleted:
					earned := ""
					if ua.EarnedAt != nil {
						earned = ua.EarnedAt.Format("2006-01-02")
					}
					fmt.Printf("  %s %s — 已达成 %s (+%d XP)\n", a.Icon, a.Name, earned, a.XPReward)
				case ok:
					fmt.Printf("  %s %s — %d/%d\n", a.Icon, a.Name, ua.Progress, a.RequirementValue)
				default:
					fmt.Printf("  %s %s — 0/%d\n", a.Icon, a.Name, a.RequirementValue)
				}
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}
}

// leaderboardCmd XP 排行榜
func leaderboardCmd() *cobra.Command {
	var top int

	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "查看 XP 排行榜",
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()

			entries, err := core.Repos.Streak.Leaderboard(ctx, top)
			if err != nil {
				fmt.Printf("❌ 查询失败: %v\n", err)
				os.Exit(1)
			}

			fmt.Printf("🏅 排行榜 (Top %d)\n", len(entries))
			fmt.Println("═══════════════════════════════════════")
			for _, e := range entries {
				medal := "  "
				switch e.Rank {
				case 1:
					medal = "🥇"
				case 2:
					medal = "🥈"
				case 3:
					medal = "🥉"
				}
				fmt.Printf("  %s #%-2d 用户 %-6d Lv.%-3d %d XP (🔥%d)\n",
					medal, e.Rank, e.UserID, e.Level, e.TotalXP, e.CurrentStreak)
			}

			rank, err := core.Repos.Streak.Rank(ctx, userID)
			if err == nil {
				fmt.Printf("\n  你的名次: #%d\n", rank)
			}
			fmt.Println("═══════════════════════════════════════")
		},
	}

	cmd.Flags().IntVarP(&top, "top", "n", 10, "显示名次数")

	return cmd
}

// printUnlocks 打印本次解锁的成就
func printUnlocks(delta *service.StreakDelta) {
	if delta == nil {
		return
	}
	for _, u := range delta.Unlocks {
		fmt.Printf("🏆 成就达成: %s (+%d XP)\n", u.Name, u.XPReward)
	}
}
