package schema

import "time"

// CatalogItem 内容目录条目（词汇/汉字/语法的最小投影）
// 目录本身由外部系统维护，核心只用它校验条目存在并提供展示字段
type CatalogItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	ItemType  ItemType  `gorm:"size:20;not null;index" json:"item_type"`
	Headword  string    `gorm:"size:100;not null" json:"headword"` // 词条本体：単語 / 漢字 / 文型
	Reading   string    `gorm:"size:100" json:"reading"`           // 假名读音
	Meaning   string    `gorm:"size:255" json:"meaning"`
	JLPTLevel string    `gorm:"size:5;index" json:"jlpt_level"` // N5..N1
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TableName 指定表名
func (CatalogItem) TableName() string {
	return "catalog_items"
}
