// Package testutil 测试用的基础设施
package testutil

import (
	"path/filepath"
	"testing"

	"walletsystem/internal/infrastructure/database"
	"walletsystem/internal/model"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewDB 在临时目录里创建一个 SQLite 库并迁移表结构
//
// 连接池只允许一个连接：SQLite 不支持行锁，单连接让事务天然串行，
// 行为上等价于 MySQL 的 FOR UPDATE 排队。
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "wallet.db") + "?_pragma=busy_timeout(5000)"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, database.Migrate(db))
	return db
}

// SeedAccount 直接插入一个账户，测试里不需要对应的用户记录
func SeedAccount(t *testing.T, db *gorm.DB, userID, balance int64) *model.Account {
	t.Helper()

	account := &model.Account{UserID: userID, Balance: balance}
	require.NoError(t, db.Create(account).Error)
	return account
}

// Balance 读取账户当前余额
func Balance(t *testing.T, db *gorm.DB, userID int64) int64 {
	t.Helper()

	var account model.Account
	require.NoError(t, db.Where("user_id = ?", userID).First(&account).Error)
	return account.Balance
}
