package repository

import (
	"context"
	"errors"

	"walletsystem/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var (
	ErrAccountNotFound  = errors.New("账户不存在")
	ErrBalanceNotEnough = errors.New("余额不足")
)

// AccountTx 绑定在单个数据库事务上的账户操作句柄
//
// 只在 Transactionally 的 work 回调内有效，回调返回后不能再使用。
type AccountTx interface {
	// LockAccounts 按 user_id 升序加行锁（SELECT ... FOR UPDATE）并返回账户快照
	// 不存在的 user_id 不会出现在结果里
	LockAccounts(ctx context.Context, userIDs ...int64) (map[int64]*model.Account, error)
	// Deduct 条件扣减：只有 balance >= amount 时才会更新
	Deduct(ctx context.Context, userID int64, amount int64) error
	// Increase 增加余额
	Increase(ctx context.Context, userID int64, amount int64) error
}

// AccountRepository 账户存储
//
// 【并发控制】
// 同一账户的并发修改完全交给数据库的事务隔离：
//   - 事务内先 FOR UPDATE 锁住涉及的行，后来的事务在锁上等待
//   - 加锁顺序固定为 user_id 升序，A->B 与 B->A 同时转账也不会互相死锁
//   - 扣款语句自带 balance >= ? 条件，即使上层检查有遗漏也不会出现负余额
//
// 应用层不持有任何锁。
type AccountRepository struct {
	db *gorm.DB
}

func NewAccountRepository(db *gorm.DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// Create 创建账户，tx 为空时使用默认连接
func (r *AccountRepository) Create(ctx context.Context, tx *gorm.DB, account *model.Account) error {
	if tx == nil {
		tx = r.db
	}
	return tx.WithContext(ctx).Create(account).Error
}

func (r *AccountRepository) GetByUserID(ctx context.Context, userID int64) (*model.Account, error) {
	var account model.Account
	err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&account).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	return &account, nil
}

// Transactionally 在一个数据库事务中执行 work
//
// work 返回错误时整个事务回滚；正常返回时全部修改一次性提交。
// 提交失败（锁冲突、死锁、连接断开等）原样返回给调用方。
func (r *AccountRepository) Transactionally(ctx context.Context, work func(tx AccountTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return work(&accountTx{tx: tx})
	})
}

type accountTx struct {
	tx *gorm.DB
}

func (t *accountTx) LockAccounts(ctx context.Context, userIDs ...int64) (map[int64]*model.Account, error) {
	var accounts []*model.Account
	err := t.tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id IN ?", userIDs).
		Order("user_id ASC").
		Find(&accounts).Error
	if err != nil {
		return nil, err
	}

	result := make(map[int64]*model.Account, len(accounts))
	for _, account := range accounts {
		result[account.UserID] = account
	}
	return result, nil
}

func (t *accountTx) Deduct(ctx context.Context, userID int64, amount int64) error {
	result := t.tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance - ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		// 必须在同一个事务里查，单连接的库上用 r.db 会把自己卡住
		var count int64
		if err := t.tx.WithContext(ctx).Model(&model.Account{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return ErrAccountNotFound
		}
		return ErrBalanceNotEnough
	}

	return nil
}

func (t *accountTx) Increase(ctx context.Context, userID int64, amount int64) error {
	result := t.tx.WithContext(ctx).
		Model(&model.Account{}).
		Where("user_id = ?", userID).
		Updates(map[string]interface{}{
			"balance": gorm.Expr("balance + ?", amount),
			"version": gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		return result.Error
	}

	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}

	return nil
}
