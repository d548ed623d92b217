package model

import (
	"time"
)

// Account 用户账户表
// 余额以最小货币单位（分）存储，避免浮点误差
//
// 【重要】余额只能通过 ledger.Engine 修改（转账、充值），任何提交时刻都必须满足 balance >= 0
type Account struct {
	ID     int64 `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID int64 `gorm:"uniqueIndex;not null" json:"user_id"` // 所属用户ID，一个用户一个账户
	// 可用余额（分），数据库层面再加一道 CHECK 约束
	Balance   int64     `gorm:"not null;default:0;check:balance >= 0" json:"balance"`
	Version   int       `gorm:"not null;default:0" json:"version"` // 每次余额变动 +1
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (Account) TableName() string {
	return "account"
}
