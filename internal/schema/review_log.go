package schema

import "time"

// ReviewLog 复习提交流水，主键为客户端幂等键（UUID）
// recordReview 不是天然幂等的，重试依赖该表去重
type ReviewLog struct {
	Key       string    `gorm:"primaryKey;size:36" json:"key"`
	CardID    int64     `gorm:"not null;index" json:"card_id"`
	Quality   int       `gorm:"not null" json:"quality"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName 指定表名
func (ReviewLog) TableName() string {
	return "review_logs"
}
