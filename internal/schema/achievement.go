package schema

import "time"

// RequirementType 成就达成条件的度量类型
type RequirementType string

const (
	RequireCount      RequirementType = "count"
	RequireStreak     RequirementType = "streak"
	RequireXP         RequirementType = "xp"
	RequireCompletion RequirementType = "completion"
)

// Achievement 成就定义（目录由运营侧维护，核心只读）
type Achievement struct {
	ID               int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Name             string          `gorm:"size:100;not null;uniqueIndex" json:"name"`
	NameVI           string          `gorm:"size:100" json:"name_vi"`
	Description      string          `gorm:"size:255" json:"description"`
	DescriptionVI    string          `gorm:"size:255" json:"description_vi"`
	Icon             string          `gorm:"size:20" json:"icon"`
	Category         string          `gorm:"size:30;index" json:"category"` // vocabulary, grammar, kanji, lesson, streak, xp, practice
	RequirementType  RequirementType `gorm:"size:20;not null;index" json:"requirement_type"`
	RequirementValue int             `gorm:"not null" json:"requirement_value"`
	XPReward         int             `gorm:"default:100" json:"xp_reward"`
	Rarity           string          `gorm:"size:20;default:common" json:"rarity"` // common, rare, epic, legendary
	IsActive         bool            `gorm:"default:true" json:"is_active"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (Achievement) TableName() string {
	return "achievements"
}

// UserAchievement 用户成就进度
// progress 单调不减；is_completed 只会 false→true 一次，earned_at 在该时刻写入
type UserAchievement struct {
	ID            int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64      `gorm:"not null;uniqueIndex:idx_user_achievement,priority:1" json:"user_id"`
	AchievementID int64      `gorm:"not null;uniqueIndex:idx_user_achievement,priority:2" json:"achievement_id"`
	Progress      int        `gorm:"default:0" json:"progress"`
	IsCompleted   bool       `gorm:"default:false" json:"is_completed"`
	EarnedAt      *time.Time `json:"earned_at"`
	CreatedAt     time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (UserAchievement) TableName() string {
	return "user_achievements"
}
