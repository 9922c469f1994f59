package service

import "errors"

var (
	// ErrInvalidQuality 质量分越界（必须在 0-5，越界拒绝而非钳位，
	// 钳位会扭曲 ease factor 曲线）
	ErrInvalidQuality = errors.New("质量分必须在 0-5 之间")
	// ErrInvalidAmount XP 数额非正
	ErrInvalidAmount = errors.New("XP 数额必须大于 0")
	// ErrItemNotFound 内容目录中不存在该条目
	ErrItemNotFound = errors.New("条目不存在")
	// ErrConflict 乐观重试耗尽后仍冲突，调用方可整体重试
	ErrConflict = errors.New("并发冲突，重试耗尽")
)
