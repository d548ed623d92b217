package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"
	"unicode/utf8"

	"walletsystem/internal/auth"
	"walletsystem/internal/infrastructure/ratelimit"
	"walletsystem/internal/model"
	"walletsystem/internal/repository"
	"walletsystem/pkg/idgen"

	"go.uber.org/zap"
)

const (
	usernameMinLen = 3
	usernameMaxLen = 30
	passwordMinLen = 6
	passwordMaxLen = 72 // bcrypt 只取前 72 字节
	nameMaxLen     = 50
)

type SignupRequest struct {
	Username  string
	Password  string
	FirstName string
	LastName  string
}

// UpdateProfileRequest nil 字段表示不修改
type UpdateProfileRequest struct {
	Password  *string
	FirstName *string
	LastName  *string
}

// AuthResult 注册/登录成功的返回
type AuthResult struct {
	Token   string
	User    *model.User
	Balance int64 // 仅注册时有值：初始余额（分）
}

type UserService struct {
	users   *repository.UserRepository
	tokens  *auth.TokenManager
	limiter *ratelimit.Limiter
	events  EventPublisher
	logger  *zap.Logger

	balanceMin int64
	balanceMax int64
	randInt64N func(n int64) int64
}

// NewUserService limiter 和 events 可以为 nil
func NewUserService(
	users *repository.UserRepository,
	tokens *auth.TokenManager,
	limiter *ratelimit.Limiter,
	events EventPublisher,
	balanceMin, balanceMax int64,
	logger *zap.Logger,
) *UserService {
	if events == nil {
		events = nopPublisher{}
	}
	return &UserService{
		users:      users,
		tokens:     tokens,
		limiter:    limiter,
		events:     events,
		logger:     logger.Named("user_service"),
		balanceMin: balanceMin,
		balanceMax: balanceMax,
		randInt64N: rand.Int64N,
	}
}

// Signup 注册：创建用户和账户（同一事务），赠送 [min, max] 分的随机初始余额，返回令牌
func (s *UserService) Signup(ctx context.Context, req SignupRequest) (*AuthResult, error) {
	req.Username = normalizeUsername(req.Username)
	req.FirstName = strings.TrimSpace(req.FirstName)
	req.LastName = strings.TrimSpace(req.LastName)

	if err := validateUsername(req.Username); err != nil {
		return nil, err
	}
	if err := validatePassword(req.Password); err != nil {
		return nil, err
	}
	if err := validateName("first_name", req.FirstName); err != nil {
		return nil, err
	}
	if err := validateName("last_name", req.LastName); err != nil {
		return nil, err
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return nil, err
	}

	user := &model.User{
		ID:           idgen.NewUserID(),
		Username:     req.Username,
		PasswordHash: hash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
	}
	initialBalance := s.initialBalance()

	account, err := s.users.CreateWithAccount(ctx, user, initialBalance)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("用户注册成功",
		zap.Int64("user_id", user.ID),
		zap.String("username", user.Username),
		zap.Int64("initial_balance", account.Balance))

	s.events.Publish(&model.WalletEvent{
		EventNo: idgen.GenerateEventNo(),
		Type:    model.EventTypeUserRegistered,
		UserID:  user.ID,
		Payload: map[string]any{
			"username":        user.Username,
			"initial_balance": account.Balance,
		},
		OccurredAt: time.Now(),
	})

	return &AuthResult{Token: token, User: user, Balance: account.Balance}, nil
}

// Signin 登录，同一用户名在窗口期内失败次数受限，成功后清零
func (s *UserService) Signin(ctx context.Context, username, password string) (*AuthResult, error) {
	username = normalizeUsername(username)

	if err := s.limiter.Allow(ctx, username); err != nil {
		if errors.Is(err, ratelimit.ErrLimitExceeded) {
			return nil, err
		}
		// Redis 不可用时放行，不让限流拖垮登录
		s.logger.Warn("登录限流检查失败，放行", zap.String("username", username), zap.Error(err))
	}

	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := s.limiter.Reset(ctx, username); err != nil {
		s.logger.Warn("重置登录计数失败", zap.String("username", username), zap.Error(err))
	}

	token, err := s.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: user}, nil
}

func (s *UserService) GetUser(ctx context.Context, userID int64) (*model.User, error) {
	return s.users.GetByID(ctx, userID)
}

// UpdateProfile 修改密码或姓名，至少要给出一项
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req UpdateProfileRequest) (*model.User, error) {
	updates := map[string]interface{}{}

	if req.Password != nil {
		if err := validatePassword(*req.Password); err != nil {
			return nil, err
		}
		hash, err := auth.HashPassword(*req.Password)
		if err != nil {
			return nil, err
		}
		updates["password_hash"] = hash
	}
	if req.FirstName != nil {
		name := strings.TrimSpace(*req.FirstName)
		if err := validateName("first_name", name); err != nil {
			return nil, err
		}
		updates["first_name"] = name
	}
	if req.LastName != nil {
		name := strings.TrimSpace(*req.LastName)
		if err := validateName("last_name", name); err != nil {
			return nil, err
		}
		updates["last_name"] = name
	}
	if len(updates) == 0 {
		return nil, fmt.Errorf("%w: 没有需要修改的字段", ErrInvalidInput)
	}

	if _, err := s.users.GetByID(ctx, userID); err != nil {
		return nil, err
	}
	if err := s.users.UpdateProfile(ctx, userID, updates); err != nil {
		return nil, err
	}

	s.logger.Info("用户资料已更新", zap.Int64("user_id", userID), zap.Int("fields", len(updates)))
	return s.users.GetByID(ctx, userID)
}

// Search 按名或姓模糊查找，最多返回 50 个
func (s *UserService) Search(ctx context.Context, filter string) ([]*model.User, error) {
	return s.users.SearchByName(ctx, strings.TrimSpace(filter))
}

func (s *UserService) initialBalance() int64 {
	if s.balanceMax <= s.balanceMin {
		return s.balanceMin
	}
	return s.balanceMin + s.randInt64N(s.balanceMax-s.balanceMin+1)
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func validateUsername(username string) error {
	n := utf8.RuneCountInString(username)
	if n < usernameMinLen || n > usernameMaxLen {
		return fmt.Errorf("%w: 用户名长度需在 %d-%d 之间", ErrInvalidInput, usernameMinLen, usernameMaxLen)
	}
	return nil
}

func validatePassword(password string) error {
	if utf8.RuneCountInString(password) < passwordMinLen || len(password) > passwordMaxLen {
		return fmt.Errorf("%w: 密码长度需在 %d-%d 之间", ErrInvalidInput, passwordMinLen, passwordMaxLen)
	}
	return nil
}

func validateName(field, name string) error {
	n := utf8.RuneCountInString(name)
	if n == 0 || n > nameMaxLen {
		return fmt.Errorf("%w: %s 长度需在 1-%d 之间", ErrInvalidInput, field, nameMaxLen)
	}
	return nil
}
