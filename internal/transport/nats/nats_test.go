package nats

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailmart/internal/model"
	"mailmart/internal/service"
	"mailmart/internal/worker"
)

type mockBus struct {
	topic string
	data  []byte
	err   error
}

func (m *mockBus) Publish(topic string, data []byte) error {
	m.topic = topic
	m.data = data
	return m.err
}

func TestNotifier_PublishesJSON(t *testing.T) {
	bus := &mockBus{}
	n := NewNotifier(bus)

	note := model.Notification{ID: "n1", UserID: "u1", Type: model.NotifySaleVerified, Title: "Sale Verified"}
	require.NoError(t, n.Notify(context.Background(), note))
	assert.Equal(t, model.NotificationsSubject, bus.topic)

	var got model.Notification
	require.NoError(t, json.Unmarshal(bus.data, &got))
	assert.Equal(t, note, got)

	bus.err = errors.New("connection closed")
	assert.Error(t, n.Notify(context.Background(), note))
}

type mockTrigger struct {
	res service.SweepResult
	err error
}

func (m *mockTrigger) RunNow(context.Context) (service.SweepResult, error) {
	return m.res, m.err
}

func TestHandler_SweepReply(t *testing.T) {
	trigger := &mockTrigger{res: service.SweepResult{DisputesAccepted: 3}}
	h := NewHandler(trigger, nil)

	reply := h.sweep(context.Background())
	require.NotNil(t, reply.Result)
	assert.Equal(t, 3, reply.Result.DisputesAccepted)
	assert.Empty(t, reply.Error)

	trigger.err = worker.ErrSweepInProgress
	reply = h.sweep(context.Background())
	assert.True(t, reply.Busy)
	assert.Nil(t, reply.Result)
}
