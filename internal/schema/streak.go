package schema

import "time"

// 每级所需 XP
const XPPerLevel = 100

// UserStreak 用户连续学习与经验值聚合，每用户一行
type UserStreak struct {
	UserID           int64     `gorm:"primaryKey" json:"user_id"`
	CurrentStreak    int       `gorm:"default:0" json:"current_streak"`
	LongestStreak    int       `gorm:"default:0" json:"longest_streak"`
	LastActivityDate string    `gorm:"size:10" json:"last_activity_date"` // YYYY-MM-DD，按配置时区的日历日；空串表示从未活跃
	TotalXP          int       `gorm:"default:0" json:"total_xp"`
	CreatedAt        time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (UserStreak) TableName() string {
	return "user_streaks"
}

// Level 由总 XP 推导等级（floor(xp/100)+1），不单独存储，避免漂移
func (s *UserStreak) Level() int {
	return s.TotalXP/XPPerLevel + 1
}

// XPToNextLevel 距下一级还差多少 XP
func (s *UserStreak) XPToNextLevel() int {
	return s.Level()*XPPerLevel - s.TotalXP
}

// ActivityDay 活跃日历日，只追加不修改（用于热力图）
type ActivityDay struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_user_day,priority:1" json:"user_id"`
	Date      string    `gorm:"size:10;not null;uniqueIndex:idx_user_day,priority:2" json:"date"` // YYYY-MM-DD
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ActivityDay) TableName() string {
	return "activity_days"
}

// XPEntry XP 流水，只追加不修改（审计用）
type XPEntry struct {
	ID       int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   int64     `gorm:"not null;index" json:"user_id"`
	Amount   int       `gorm:"not null" json:"amount"`
	Reason   string    `gorm:"size:255" json:"reason"`
	EarnedAt time.Time `gorm:"not null;index" json:"earned_at"`
}

// TableName 指定表名
func (XPEntry) TableName() string {
	return "xp_entries"
}
