package mq

import (
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProducer_SendMessage(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	sp.ExpectSendMessageWithCheckerFunctionAndSucceed(func(val []byte) error {
		if string(val) != `{"type":"TRANSFER_COMMITTED"}` {
			return errors.New("unexpected payload: " + string(val))
		}
		return nil
	})

	producer := NewProducer(sp)
	require.NoError(t, producer.SendMessage("wallet_events", "EVT1", `{"type":"TRANSFER_COMMITTED"}`))
	require.NoError(t, producer.Close())
}

func TestProducer_BreakerOpensAfterFailures(t *testing.T) {
	sp := mocks.NewSyncProducer(t, nil)
	for i := 0; i < 5; i++ {
		sp.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)
	}

	producer := NewProducer(sp)
	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, producer.SendMessage("wallet_events", "k", "v"), sarama.ErrOutOfBrokers)
	}

	// 熔断打开后不再调用底层生产者
	assert.ErrorIs(t, producer.SendMessage("wallet_events", "k", "v"), gobreaker.ErrOpenState)
	require.NoError(t, producer.Close())
}

func TestProducer_CloseNil(t *testing.T) {
	var producer *Producer
	assert.NoError(t, producer.Close())
}
