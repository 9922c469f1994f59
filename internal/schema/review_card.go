package schema

import "time"

// ItemType 学习条目类型（词汇 / 汉字 / 语法）
type ItemType string

const (
	ItemVocabulary ItemType = "vocabulary"
	ItemKanji      ItemType = "kanji"
	ItemGrammar    ItemType = "grammar"
)

// Valid 判断条目类型是否合法
func (t ItemType) Valid() bool {
	switch t {
	case ItemVocabulary, ItemKanji, ItemGrammar:
		return true
	}
	return false
}

// CardStatus 卡片调度状态
type CardStatus string

const (
	StatusNew      CardStatus = "new"      // 刚加入，尚未复习
	StatusLearning CardStatus = "learning" // 学习阶段
	StatusReview   CardStatus = "review"   // 常规复习阶段
	StatusMastered CardStatus = "mastered" // 已掌握，不再进入到期队列
)

// ReviewCard SM-2 调度记录，每个 (用户, 条目) 一行
// 数据量级：每用户千级
type ReviewCard struct {
	ID             int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         int64      `gorm:"not null;uniqueIndex:idx_user_item,priority:1" json:"user_id"`
	ItemID         int64      `gorm:"not null;uniqueIndex:idx_user_item,priority:2" json:"item_id"`
	ItemType       ItemType   `gorm:"size:20;not null;uniqueIndex:idx_user_item,priority:3" json:"item_type"`
	Status         CardStatus `gorm:"size:20;default:new;index" json:"status"`
	Interval       int        `gorm:"default:0" json:"interval"`          // 距下次复习的天数
	EaseFactor     float64    `gorm:"default:2.5" json:"ease_factor"`     // 间隔增长系数，下限 1.3
	Repetitions    int        `gorm:"default:0" json:"repetitions"`       // 自上次遗忘以来的连续成功次数
	CorrectCount   int        `gorm:"default:0" json:"correct_count"`     // 累计答对
	IncorrectCount int        `gorm:"default:0" json:"incorrect_count"`   // 累计答错
	LastReviewAt   *time.Time `json:"last_review_at"`                     // 首次复习前为空
	NextReviewAt   time.Time  `gorm:"not null;index" json:"next_review_at"`
	Version        int64      `gorm:"default:0" json:"-"` // 乐观锁版本号
	CreatedAt      time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (ReviewCard) TableName() string {
	return "review_cards"
}

// NewReviewCard 创建一张初始卡片（状态 new，next_review 为当前时间）
func NewReviewCard(userID, itemID int64, itemType ItemType, now time.Time) *ReviewCard {
	return &ReviewCard{
		UserID:       userID,
		ItemID:       itemID,
		ItemType:     itemType,
		Status:       StatusNew,
		Interval:     0,
		EaseFactor:   2.5,
		Repetitions:  0,
		NextReviewAt: now,
	}
}
