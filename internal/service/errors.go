package service

import (
	"errors"

	"walletsystem/internal/model"
)

var (
	ErrInvalidInput       = errors.New("参数不合法")
	ErrInvalidCredentials = errors.New("用户名或密码错误")
)

// EventPublisher 事务提交后的事件出口，由 job.EventDispatcher 实现
type EventPublisher interface {
	Publish(event *model.WalletEvent)
}

type nopPublisher struct{}

func (nopPublisher) Publish(*model.WalletEvent) {}
