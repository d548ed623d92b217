package ledger

import (
	"errors"
	"fmt"
)

var (
	ErrAccountNotFound   = errors.New("账户不存在")
	ErrInsufficientFunds = errors.New("余额不足")
	ErrInvalidAmount     = errors.New("金额不合法")
	ErrSelfTransfer      = fmt.Errorf("%w: 不能转账给自己", ErrInvalidAmount)
	ErrBalanceOverflow   = fmt.Errorf("%w: 入账后余额超出上限", ErrInvalidAmount)
	ErrTransferAborted   = errors.New("事务已中止，请重试")
)

// AbortError 事务因存储层原因（锁冲突、死锁、连接断开、提交失败）中止
//
// errors.Is(err, ErrTransferAborted) 为 true，Unwrap 得到底层原因。
// 中止时没有任何余额变化，调用方可以用原参数整体重试。
type AbortError struct {
	Cause error
}

func (e *AbortError) Error() string {
	return fmt.Sprintf("%s: %v", ErrTransferAborted.Error(), e.Cause)
}

func (e *AbortError) Is(target error) bool {
	return target == ErrTransferAborted
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// IsRetryable 调用方是否可以原样重试
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransferAborted)
}
