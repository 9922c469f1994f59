package service

// XPPolicy 经验值策略（可替换）
type XPPolicy interface {
	// ReviewXP 一次复习的 XP：成功按质量给 quality+1，失败保底 1
	ReviewXP(quality int) int
	// CreateCardXP 把条目加入复习队列的 XP
	CreateCardXP() int
	// DailyBonus 新的一天首次活跃的奖励，按连续天数取里程碑档位
	DailyBonus(currentStreak int) int
}

// DefaultXPPolicy 默认策略：每日 10，7 天倍数 50，30 天倍数 200，加卡 3
type DefaultXPPolicy struct {
	Daily      int
	WeekBonus  int
	MonthBonus int
	Create     int
}

// NewDefaultXPPolicy 构造默认策略
func NewDefaultXPPolicy() DefaultXPPolicy {
	return DefaultXPPolicy{Daily: 10, WeekBonus: 50, MonthBonus: 200, Create: 3}
}

// ReviewXP 质量 0-5 映射到 1-6 XP，失败固定 1
func (p DefaultXPPolicy) ReviewXP(quality int) int {
	if IsPass(quality) {
		return quality + 1
	}
	return 1
}

// CreateCardXP 加入复习队列的 XP
func (p DefaultXPPolicy) CreateCardXP() int {
	return p.Create
}

// DailyBonus 30 天里程碑覆盖 7 天里程碑，其余按基础值
func (p DefaultXPPolicy) DailyBonus(currentStreak int) int {
	bonus := p.Daily
	if currentStreak > 0 && currentStreak%7 == 0 {
		bonus = p.WeekBonus
	}
	if currentStreak > 0 && currentStreak%30 == 0 {
		bonus = p.MonthBonus
	}
	return bonus
}
