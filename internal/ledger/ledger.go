// Package ledger 余额变动的唯一入口
//
// 所有修改余额的操作都在账户存储的一个事务里完成：
// 要么全部生效，要么全部回滚，外部永远看不到只扣了款没入账的中间状态。
// 本包不加锁、不打日志、不自动重试，错误一律返回给调用方。
package ledger

import (
	"context"
	"errors"
	"math"
	"time"

	"walletsystem/internal/model"
	"walletsystem/internal/repository"
)

// Store 账户存储，由 repository.AccountRepository 实现
type Store interface {
	GetByUserID(ctx context.Context, userID int64) (*model.Account, error)
	Transactionally(ctx context.Context, work func(tx repository.AccountTx) error) error
}

// TransferResult 已提交转账的结果，不落库
type TransferResult struct {
	FromUserID  int64
	ToUserID    int64
	Amount      int64
	FromBalance int64 // 转出方提交后余额
	ToBalance   int64 // 转入方提交后余额
	CommittedAt time.Time
}

type Engine struct {
	store Store
	now   func() time.Time
}

func NewEngine(store Store) *Engine {
	return &Engine{store: store, now: time.Now}
}

// GetBalance 查询余额（分）
func (e *Engine) GetBalance(ctx context.Context, userID int64) (int64, error) {
	account, err := e.store.GetByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return 0, ErrAccountNotFound
		}
		return 0, err
	}
	return account.Balance, nil
}

// Transfer 从 from 转 amount 分到 to
//
// 【执行顺序】全部在同一个事务内：
//  1. 锁住双方账户行
//  2. 转出方不存在 -> ErrAccountNotFound
//  3. 余额不足 -> ErrInsufficientFunds
//  4. 转入方不存在 -> ErrAccountNotFound（必须在任何写操作之前）
//  5. 转入后余额溢出 int64 -> ErrBalanceOverflow
//  6. 扣款、入账
//  7. 提交；失败 -> ErrTransferAborted
//
// 前 5 步任何一步失败都不会产生写操作。
func (e *Engine) Transfer(ctx context.Context, from, to int64, amount int64) (*TransferResult, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if from == to {
		return nil, ErrSelfTransfer
	}
	if err := ctx.Err(); err != nil {
		return nil, &AbortError{Cause: err}
	}

	var result *TransferResult

	// 事务一旦开始就不受调用方断开影响：要么完整提交，要么整体回滚
	txCtx := context.WithoutCancel(ctx)
	err := e.store.Transactionally(txCtx, func(tx repository.AccountTx) error {
		accounts, err := tx.LockAccounts(txCtx, from, to)
		if err != nil {
			return err
		}

		source, ok := accounts[from]
		if !ok {
			return ErrAccountNotFound
		}
		if source.Balance < amount {
			return ErrInsufficientFunds
		}

		dest, ok := accounts[to]
		if !ok {
			return ErrAccountNotFound
		}
		if !canCredit(dest.Balance, amount) {
			return ErrBalanceOverflow
		}

		if err := tx.Deduct(txCtx, from, amount); err != nil {
			return err
		}
		if err := tx.Increase(txCtx, to, amount); err != nil {
			return err
		}

		result = &TransferResult{
			FromUserID:  from,
			ToUserID:    to,
			Amount:      amount,
			FromBalance: source.Balance - amount,
			ToBalance:   dest.Balance + amount,
		}
		return nil
	})
	if err != nil {
		return nil, classify(err)
	}

	result.CommittedAt = e.now()
	return result, nil
}

// Deposit 给账户充值，返回充值后余额
func (e *Engine) Deposit(ctx context.Context, userID int64, amount int64) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidAmount
	}
	if err := ctx.Err(); err != nil {
		return 0, &AbortError{Cause: err}
	}

	var balance int64

	txCtx := context.WithoutCancel(ctx)
	err := e.store.Transactionally(txCtx, func(tx repository.AccountTx) error {
		accounts, err := tx.LockAccounts(txCtx, userID)
		if err != nil {
			return err
		}

		account, ok := accounts[userID]
		if !ok {
			return ErrAccountNotFound
		}
		if !canCredit(account.Balance, amount) {
			return ErrBalanceOverflow
		}

		if err := tx.Increase(txCtx, userID, amount); err != nil {
			return err
		}

		balance = account.Balance + amount
		return nil
	})
	if err != nil {
		return 0, classify(err)
	}

	return balance, nil
}

// canCredit 入账 amount 后余额不会超过 int64
func canCredit(balance, amount int64) bool {
	return balance <= math.MaxInt64-amount
}

// classify 把事务返回的错误归到对外的错误类型
// 业务错误原样返回，存储层错误统一包装成 AbortError
func classify(err error) error {
	switch {
	case errors.Is(err, ErrAccountNotFound),
		errors.Is(err, ErrInsufficientFunds),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrTransferAborted):
		return err
	case errors.Is(err, repository.ErrAccountNotFound):
		return ErrAccountNotFound
	case errors.Is(err, repository.ErrBalanceNotEnough):
		return ErrInsufficientFunds
	default:
		return &AbortError{Cause: err}
	}
}
