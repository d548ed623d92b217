package repository

import (
	"context"
	"errors"
	"fmt"

	"walletsystem/internal/model"

	"gorm.io/gorm"
)

var (
	ErrUserNotFound = errors.New("用户不存在")
	ErrUserExists   = errors.New("用户名已存在")
)

const maxSearchResults = 50

type UserRepository struct {
	db       *gorm.DB
	accounts *AccountRepository
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{db: db, accounts: NewAccountRepository(db)}
}

// CreateWithAccount 在同一个事务里创建用户和他的账户
//
// 用户名已存在返回 ErrUserExists；并发注册同名用户时由唯一索引兜底
func (r *UserRepository) CreateWithAccount(ctx context.Context, user *model.User, initialBalance int64) (*model.Account, error) {
	account := &model.Account{
		UserID:  user.ID,
		Balance: initialBalance,
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&model.User{}).Where("username = ?", user.Username).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return ErrUserExists
		}

		if err := tx.Create(user).Error; err != nil {
			return err
		}
		return r.accounts.Create(ctx, tx, account)
	})
	if err != nil {
		// 唯一索引冲突可能来自用户名，也可能来自主键，回查确认是哪一种
		if errors.Is(err, gorm.ErrDuplicatedKey) && r.usernameTaken(ctx, user.Username) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("创建用户失败: %w", err)
	}
	return account, nil
}

func (r *UserRepository) usernameTaken(ctx context.Context, username string) bool {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.User{}).Where("username = ?", username).Count(&count).Error
	return err == nil && count > 0
}

func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	var user model.User
	err := r.db.WithContext(ctx).Where("username = ?", username).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}

// UpdateProfile 只更新 updates 中给出的列，调用方负责确认用户存在
func (r *UserRepository) UpdateProfile(ctx context.Context, id int64, updates map[string]interface{}) error {
	if len(updates) == 0 {
		return nil
	}

	return r.db.WithContext(ctx).
		Model(&model.User{}).
		Where("id = ?", id).
		Updates(updates).Error
}

// SearchByName 名或姓包含 filter 的用户，filter 为空时返回前 50 个
func (r *UserRepository) SearchByName(ctx context.Context, filter string) ([]*model.User, error) {
	var users []*model.User

	query := r.db.WithContext(ctx).Model(&model.User{})
	if filter != "" {
		pattern := "%" + filter + "%"
		query = query.Where("first_name LIKE ? OR last_name LIKE ?", pattern, pattern)
	}

	err := query.
		Order("first_name ASC, last_name ASC").
		Limit(maxSearchResults).
		Find(&users).Error
	return users, err
}
