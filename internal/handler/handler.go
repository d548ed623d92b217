package handler

import (
	"encoding/json"
	"errors"
	"strconv"

	"walletsystem/internal/infrastructure/ratelimit"
	"walletsystem/internal/ledger"
	"walletsystem/internal/model"
	"walletsystem/internal/repository"
	"walletsystem/internal/service"
	"walletsystem/pkg/money"
	"walletsystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler 统一处理器，包含所有服务依赖
type Handler struct {
	userService   *service.UserService
	walletService *service.WalletService
	logger        *zap.Logger
}

// NewHandler 创建处理器实例
func NewHandler(userService *service.UserService, walletService *service.WalletService, logger *zap.Logger) *Handler {
	return &Handler{
		userService:   userService,
		walletService: walletService,
		logger:        logger.Named("handler"),
	}
}

// UserView 对外展示的用户信息，ID 用字符串避免前端精度丢失
type UserView struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func newUserView(u *model.User) UserView {
	return UserView{
		ID:        strconv.FormatInt(u.ID, 10),
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
	}
}

func balanceView(minor int64) gin.H {
	return gin.H{
		"balance":       money.Format(minor),
		"balance_minor": minor,
	}
}

// ============================================================
// 用户相关接口
// ============================================================

type SignupRequest struct {
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required"`
	FirstName string `json:"first_name" binding:"required"`
	LastName  string `json:"last_name" binding:"required"`
}

// Signup 注册
// POST /api/v1/user/signup
func (h *Handler) Signup(c *gin.Context) {
	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.userService.Signup(c.Request.Context(), service.SignupRequest{
		Username:  req.Username,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := balanceView(result.Balance)
	data["token"] = result.Token
	data["user"] = newUserView(result.User)
	response.Success(c, data)
}

type SigninRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Signin 登录
// POST /api/v1/user/signin
func (h *Handler) Signin(c *gin.Context) {
	var req SigninRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	result, err := h.userService.Signin(c.Request.Context(), req.Username, req.Password)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{
		"token": result.Token,
		"user":  newUserView(result.User),
	})
}

// UpdateProfileRequest 未出现的字段不修改
type UpdateProfileRequest struct {
	Password  *string `json:"password"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

// UpdateProfile 修改当前用户资料
// PUT /api/v1/user
func (h *Handler) UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(c.Request.Context(), currentUserID(c), service.UpdateProfileRequest{
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, gin.H{"user": newUserView(user)})
}

// BulkUsers 按名或姓搜索用户
// GET /api/v1/user/bulk?filter=xxx
func (h *Handler) BulkUsers(c *gin.Context) {
	users, err := h.userService.Search(c.Request.Context(), c.Query("filter"))
	if err != nil {
		h.writeError(c, err)
		return
	}

	views := make([]UserView, 0, len(users))
	for _, u := range users {
		views = append(views, newUserView(u))
	}
	response.Success(c, gin.H{"users": views})
}

// ============================================================
// 账户相关接口
// ============================================================

// GetBalance 查询当前用户余额
// GET /api/v1/account/balance
func (h *Handler) GetBalance(c *gin.Context) {
	balance, err := h.walletService.GetBalance(c.Request.Context(), currentUserID(c))
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, balanceView(balance))
}

// TransferRequest 转账请求
// to 可以是数字或数字字符串；amount 单位为元，最多两位小数
type TransferRequest struct {
	To     json.Number     `json:"to" binding:"required"`
	Amount decimal.Decimal `json:"amount"`
}

// Transfer 转账，转出方固定为当前登录用户
// POST /api/v1/account/transfer
func (h *Handler) Transfer(c *gin.Context) {
	var req TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	to, err := req.To.Int64()
	if err != nil {
		response.ParamError(c, "to 参数错误")
		return
	}
	amount, err := money.ToMinor(req.Amount)
	if err != nil {
		response.BusinessError(c, response.CodeInvalidAmount, "金额不合法: "+err.Error())
		return
	}

	result, err := h.walletService.Transfer(c.Request.Context(), currentUserID(c), to, amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data := balanceView(result.FromBalance)
	data["to"] = strconv.FormatInt(result.ToUserID, 10)
	data["amount"] = money.Format(result.Amount)
	response.Success(c, data)
}

// DepositRequest 充值请求（简化版，实际应该走支付渠道）
type DepositRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

// Deposit 给当前用户充值
// POST /api/v1/account/deposit
func (h *Handler) Deposit(c *gin.Context) {
	var req DepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ParamError(c, "参数错误: "+err.Error())
		return
	}

	amount, err := money.ToMinor(req.Amount)
	if err != nil {
		response.BusinessError(c, response.CodeInvalidAmount, "金额不合法: "+err.Error())
		return
	}

	balance, err := h.walletService.Deposit(c.Request.Context(), currentUserID(c), amount)
	if err != nil {
		h.writeError(c, err)
		return
	}

	response.Success(c, balanceView(balance))
}

// writeError 把业务错误映射成响应码，未知错误只记日志不外泄
func (h *Handler) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		response.ParamError(c, err.Error())
	case errors.Is(err, ledger.ErrInvalidAmount):
		response.BusinessError(c, response.CodeInvalidAmount, err.Error())
	case errors.Is(err, ledger.ErrAccountNotFound):
		response.BusinessError(c, response.CodeAccountNotFound, err.Error())
	case errors.Is(err, ledger.ErrInsufficientFunds):
		response.BusinessError(c, response.CodeBalanceNotEnough, err.Error())
	case errors.Is(err, ledger.ErrTransferAborted):
		h.logger.Warn("事务中止", zap.String("request_id", c.GetString(ctxRequestID)), zap.Error(err))
		response.BusinessError(c, response.CodeTransferAborted, ledger.ErrTransferAborted.Error())
	case errors.Is(err, repository.ErrUserExists):
		response.BusinessError(c, response.CodeUserExists, err.Error())
	case errors.Is(err, repository.ErrUserNotFound):
		response.BusinessError(c, response.CodeUserNotFound, err.Error())
	case errors.Is(err, service.ErrInvalidCredentials):
		response.BusinessError(c, response.CodeInvalidCredentials, err.Error())
	case errors.Is(err, ratelimit.ErrLimitExceeded):
		response.Error(c, response.CodeTooMany, err.Error())
	default:
		h.logger.Error("请求处理失败",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(ctxRequestID)),
			zap.Error(err))
		_ = c.Error(err)
		response.ServerError(c, "服务器内部错误")
	}
}
