package service

import (
	"context"
	"time"

	"walletsystem/internal/ledger"
	"walletsystem/internal/model"
	"walletsystem/pkg/idgen"

	"go.uber.org/zap"
)

// WalletService 余额查询、转账、充值
// 资金变动全部委托给 ledger.Engine，本层只负责提交后的日志和事件
type WalletService struct {
	engine *ledger.Engine
	events EventPublisher
	logger *zap.Logger
}

func NewWalletService(engine *ledger.Engine, events EventPublisher, logger *zap.Logger) *WalletService {
	if events == nil {
		events = nopPublisher{}
	}
	return &WalletService{
		engine: engine,
		events: events,
		logger: logger.Named("wallet_service"),
	}
}

func (s *WalletService) GetBalance(ctx context.Context, userID int64) (int64, error) {
	return s.engine.GetBalance(ctx, userID)
}

// Transfer 转账，错误原样返回 ledger 的哨兵错误
func (s *WalletService) Transfer(ctx context.Context, fromUserID, toUserID, amount int64) (*ledger.TransferResult, error) {
	result, err := s.engine.Transfer(ctx, fromUserID, toUserID, amount)
	if err != nil {
		if ledger.IsRetryable(err) {
			s.logger.Warn("转账事务中止",
				zap.Int64("from", fromUserID),
				zap.Int64("to", toUserID),
				zap.Int64("amount", amount),
				zap.Error(err))
		}
		return nil, err
	}

	s.logger.Info("转账成功",
		zap.Int64("from", fromUserID),
		zap.Int64("to", toUserID),
		zap.Int64("amount", amount))

	s.events.Publish(&model.WalletEvent{
		EventNo: idgen.GenerateEventNo(),
		Type:    model.EventTypeTransferCommitted,
		UserID:  fromUserID,
		Payload: map[string]any{
			"from_user_id": result.FromUserID,
			"to_user_id":   result.ToUserID,
			"amount":       result.Amount,
		},
		OccurredAt: result.CommittedAt,
	})
	return result, nil
}

// Deposit 充值，返回充值后余额
func (s *WalletService) Deposit(ctx context.Context, userID, amount int64) (int64, error) {
	balance, err := s.engine.Deposit(ctx, userID, amount)
	if err != nil {
		return 0, err
	}

	s.logger.Info("充值成功", zap.Int64("user_id", userID), zap.Int64("amount", amount))

	s.events.Publish(&model.WalletEvent{
		EventNo: idgen.GenerateEventNo(),
		Type:    model.EventTypeDepositCommitted,
		UserID:  userID,
		Payload: map[string]any{
			"amount":  amount,
			"balance": balance,
		},
		OccurredAt: time.Now(),
	})
	return balance, nil
}
