package model

import (
	"time"
)

// ============================================================================
// 钱包事件类型常量
// ============================================================================

const (
	EventTypeUserRegistered    = "USER_REGISTERED"    // 注册成功
	EventTypeTransferCommitted = "TRANSFER_COMMITTED" // 转账已提交
	EventTypeDepositCommitted  = "DEPOSIT_COMMITTED"  // 充值已提交
)

// WalletEvent 钱包事件
//
// 只是通知下游的消息，不落库，也不作为对账依据。
// 事件在事务提交之后才产生，丢失不会影响任何余额。
type WalletEvent struct {
	EventNo    string         `json:"event_no"` // 事件号，同时作为 Kafka 消息 key
	Type       string         `json:"type"`
	UserID     int64          `json:"user_id"`
	Payload    map[string]any `json:"payload"`
	OccurredAt time.Time      `json:"occurred_at"`
}
