package model

import (
	"time"
)

// User 用户表
// 用户与账户一对一，注册时在同一个事务里创建
type User struct {
	// 雪花ID
	ID int64 `gorm:"primaryKey;autoIncrement:false" json:"id"`
	// 小写、去首尾空格
	Username string `gorm:"type:varchar(30);uniqueIndex;not null" json:"username"`
	// bcrypt 哈希，永不返回给客户端
	PasswordHash string    `gorm:"type:varchar(72);not null" json:"-"`
	FirstName    string    `gorm:"type:varchar(50);index;not null" json:"first_name"`
	LastName     string    `gorm:"type:varchar(50);index;not null" json:"last_name"`
	CreatedAt    time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

func (User) TableName() string {
	return "wallet_user"
}
