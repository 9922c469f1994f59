package repository

import (
	"context"

	"gorm.io/gorm"
)

// 事务通过 context 传递，仓储方法对调用方是否在事务里无感知
type ctxTxKey struct{}

// TxRunner 把跨仓储的多个写操作放进同一事务执行
type TxRunner struct {
	db *gorm.DB
}

// NewTxRunner 创建事务执行器
func NewTxRunner(db *gorm.DB) *TxRunner {
	return &TxRunner{db: db}
}

// Atomic 在单个事务里执行 fn；fn 内用同一 ctx 调用的仓储方法共享该事务，
// fn 返回错误时整体回滚。嵌套调用复用外层事务。
func (t *TxRunner) Atomic(ctx context.Context, fn func(ctx context.Context) error) error {
	if txFromContext(ctx) != nil {
		return fn(ctx)
	}
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, ctxTxKey{}, tx))
	})
}

func txFromContext(ctx context.Context) *gorm.DB {
	tx, _ := ctx.Value(ctxTxKey{}).(*gorm.DB)
	return tx
}

// dbFor 解析当前应使用的连接：ctx 里有事务用事务，否则用默认连接
func dbFor(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx := txFromContext(ctx); tx != nil {
		return tx.WithContext(ctx)
	}
	return fallback.WithContext(ctx)
}
