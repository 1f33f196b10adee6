package event

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/erp/ledger/tests/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKafkaForwarder_SendsEventPayload(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)

	evt := testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID())
	producer.ExpectSendMessageWithCheckerFunctionAndSucceed(func(value []byte) error {
		var decoded map[string]any
		if err := json.Unmarshal(value, &decoded); err != nil {
			return err
		}
		if decoded["id"] != evt.EventID().String() {
			return errors.New("payload carries the wrong event id")
		}
		return nil
	})

	forwarder := NewKafkaForwarder(producer, "ledger.events", ledgerSerializer(), nil)
	require.NoError(t, forwarder.Handle(context.Background(), evt))
	assert.Nil(t, forwarder.EventTypes())
	require.NoError(t, forwarder.Close())
}

func TestKafkaForwarder_MessageKeyAndHeaders(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	evt := testutil.NewTestEvent("ReceivablePaid", testutil.TestTenantID())

	producer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		key, err := msg.Key.Encode()
		if err != nil {
			return err
		}
		if string(key) != evt.AggregateID().String() {
			return errors.New("message must be keyed by aggregate id")
		}
		headers := map[string]string{}
		for _, h := range msg.Headers {
			headers[string(h.Key)] = string(h.Value)
		}
		if headers[HeaderEventType] != "ReceivablePaid" || headers[HeaderTenantID] != evt.TenantID().String() {
			return errors.New("missing event headers")
		}
		if msg.Topic != "ledger.events" {
			return errors.New("wrong topic")
		}
		return nil
	})

	forwarder := NewKafkaForwarder(producer, "ledger.events", ledgerSerializer(), nil)
	require.NoError(t, forwarder.Handle(context.Background(), evt))
	require.NoError(t, forwarder.Close())
}

func TestKafkaForwarder_BrokerFailure(t *testing.T) {
	cfg := mocks.NewTestConfig()
	cfg.Producer.Return.Successes = true
	producer := mocks.NewSyncProducer(t, cfg)
	producer.ExpectSendMessageAndFail(sarama.ErrOutOfBrokers)

	forwarder := NewKafkaForwarder(producer, "ledger.events", ledgerSerializer(), nil)
	err := forwarder.Handle(context.Background(), testutil.NewTestEvent("BoletoPaid", testutil.TestTenantID()))
	require.Error(t, err)
	assert.ErrorIs(t, err, sarama.ErrOutOfBrokers)
	require.NoError(t, forwarder.Close())
}
