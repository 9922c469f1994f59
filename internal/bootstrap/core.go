package bootstrap

import (
	"context"

	"github.com/yuqie6/torii/internal/eventbus"
	"github.com/yuqie6/torii/internal/pkg/config"
	"github.com/yuqie6/torii/internal/repository"
	"github.com/yuqie6/torii/internal/service"
)

// Core 持有核心依赖
type Core struct {
	Cfg *config.Config
	DB  *repository.Database
	Hub *eventbus.Hub

	Repos struct {
		Card        *repository.CardRepository
		Streak      *repository.StreakRepository
		Achievement *repository.AchievementRepository
		Catalog     *repository.CatalogRepository
	}

	Services struct {
		Review       *service.ReviewService
		Streaks      *service.StreakService
		Achievements *service.AchievementService
	}
}

// NewCore 构建核心依赖并播种成就目录
func NewCore(cfgPath string) (*Core, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	config.SetupLogger(cfg.App.LogLevel)

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	db, err := repository.NewDatabase(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	c := &Core{Cfg: cfg, DB: db, Hub: eventbus.NewHub()}

	// Repos
	c.Repos.Card = repository.NewCardRepository(db.DB)
	c.Repos.Streak = repository.NewStreakRepository(db.DB)
	c.Repos.Achievement = repository.NewAchievementRepository(db.DB)
	c.Repos.Catalog = repository.NewCatalogRepository(db.DB)

	if err := c.Repos.Achievement.SeedDefaults(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Services
	policy := service.DefaultXPPolicy{
		Daily:      cfg.XP.DailyBonus,
		WeekBonus:  cfg.XP.WeekBonus,
		MonthBonus: cfg.XP.MonthBonus,
		Create:     cfg.XP.CreateCard,
	}
	c.Services.Achievements = service.NewAchievementService(c.Repos.Achievement, c.Repos.Streak)
	c.Services.Streaks = service.NewStreakService(c.Repos.Streak, c.Services.Achievements, policy, loc)
	c.Services.Review = service.NewReviewService(
		c.Repos.Card,
		c.Repos.Catalog,
		c.Services.Streaks,
		policy,
		c.Hub,
		repository.NewTxRunner(db.DB),
		&service.ReviewServiceConfig{DueLimit: cfg.SRS.DueLimit},
	)

	return c, nil
}

// Close 关闭核心依赖资源
func (c *Core) Close() error {
	if c == nil {
		return nil
	}
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
