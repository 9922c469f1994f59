package repository

import "errors"

// 存储层错误哨兵，上层用 errors.Is 判别
var (
	// ErrNotFound 目标记录不存在
	ErrNotFound = errors.New("记录不存在")
	// ErrDuplicate 违反唯一约束（重复创建 / 幂等键重放）
	ErrDuplicate = errors.New("记录已存在")
	// ErrVersionConflict 乐观锁版本不匹配，读-改-写期间记录被并发修改
	ErrVersionConflict = errors.New("并发更新冲突")
)
