package broker

import (
	"context"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/unclebandit/wa-dispatch/internal/errors"
	"github.com/unclebandit/wa-dispatch/internal/model"
)

type fakeAck struct {
	acked   int
	nacked  int
	requeue bool
}

func (f *fakeAck) Ack(uint64, bool) error { f.acked++; return nil }

func (f *fakeAck) Nack(_ uint64, _ bool, requeue bool) error {
	f.nacked++
	f.requeue = requeue
	return nil
}

func (f *fakeAck) Reject(_ uint64, requeue bool) error { return f.Nack(0, false, requeue) }

type sliceSink struct {
	items []model.OutboundItem
	err   error
}

func (s *sliceSink) Enqueue(_ context.Context, item model.OutboundItem) error {
	if s.err != nil {
		return s.err
	}
	s.items = append(s.items, item)
	return nil
}

const validItem = `{"campaign_id":7,"business_id":3,"provider":"META_CLOUD","phone_number_id":"1000",
"template_name":"invoice_due","language_code":"en","body_params":["Alice","INV-42"],
"to":"254700000001","recipient_id":42}`

func delivery(ack amqp.Acknowledger, body string) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(body)}
}

func TestHandleAcksAfterEnqueue(t *testing.T) {
	sink := &sliceSink{}
	ack := &fakeAck{}
	c := NewConsumer("campaign_sends", sink)

	c.Handle(context.Background(), delivery(ack, validItem))

	assert.Equal(t, 1, ack.acked)
	require.Len(t, sink.items, 1)
	assert.Equal(t, "7:42", sink.items[0].IdempotencyKey)
	assert.Equal(t, model.HeaderNone, sink.items[0].HeaderKind)
}

func TestHandleRejectsMalformed(t *testing.T) {
	for name, body := range map[string]string{
		"not json":      `{"campaign_id":`,
		"missing phone": `{"campaign_id":7,"business_id":3,"provider":"META_CLOUD","phone_number_id":"1000","template_name":"t","language_code":"en","recipient_id":1}`,
		"bad provider":  `{"campaign_id":7,"business_id":3,"provider":"SMS","phone_number_id":"1000","template_name":"t","language_code":"en","to":"254700000001","recipient_id":1}`,
	} {
		t.Run(name, func(t *testing.T) {
			sink := &sliceSink{}
			ack := &fakeAck{}
			NewConsumer("q", sink).Handle(context.Background(), delivery(ack, body))

			assert.Equal(t, 1, ack.nacked)
			assert.False(t, ack.requeue)
			assert.Empty(t, sink.items)
		})
	}
}

func TestHandleRequeuesWhenQueueClosed(t *testing.T) {
	ack := &fakeAck{}
	c := NewConsumer("q", &sliceSink{err: appErrors.ErrQueueClosed})

	c.Handle(context.Background(), delivery(ack, validItem))

	assert.Equal(t, 0, ack.acked)
	assert.Equal(t, 1, ack.nacked)
	assert.True(t, ack.requeue)
}

func TestRunWithoutDial(t *testing.T) {
	assert.Error(t, NewConsumer("q", &sliceSink{}).Run(context.Background()))
}
