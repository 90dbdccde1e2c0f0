package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

type fakeChannel struct {
	name  string
	reach func(entity.ClientContact) bool
	err   error
	calls int
}

func (f *fakeChannel) CanReach(c entity.ClientContact) bool { return f.reach(c) }

func (f *fakeChannel) Send(ctx context.Context, msg port.ReminderMessage) (*port.DeliveryReceipt, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &port.DeliveryReceipt{Channel: f.name}, nil
}

func byChat(c entity.ClientContact) bool  { return c.LarkChatID != "" }
func byPhone(c entity.ClientContact) bool { return c.Phone != "" }

func TestRouter_Send(t *testing.T) {
	msg := func(c entity.ClientContact) port.ReminderMessage {
		return port.ReminderMessage{TaskID: 1, DocumentName: "PAN Card", Contact: c}
	}

	t.Run("first reachable channel wins", func(t *testing.T) {
		lark := &fakeChannel{name: "lark", reach: byChat}
		gw := &fakeChannel{name: "gateway", reach: byPhone}
		r := NewRouter(zap.NewNop(), lark, gw)

		receipt, err := r.Send(context.Background(), msg(entity.ClientContact{Phone: "+91"}))
		require.NoError(t, err)
		assert.Equal(t, "gateway", receipt.Channel)
		assert.Equal(t, 0, lark.calls)
	})

	t.Run("falls through on failure", func(t *testing.T) {
		lark := &fakeChannel{name: "lark", reach: byChat, err: errors.New("bot not in chat")}
		gw := &fakeChannel{name: "gateway", reach: byPhone}
		r := NewRouter(zap.NewNop(), lark, gw)

		receipt, err := r.Send(context.Background(), msg(entity.ClientContact{Phone: "+91", LarkChatID: "oc_1"}))
		require.NoError(t, err)
		assert.Equal(t, "gateway", receipt.Channel)
		assert.Equal(t, 1, lark.calls)
	})

	t.Run("all fail", func(t *testing.T) {
		boom := errors.New("boom")
		r := NewRouter(zap.NewNop(), &fakeChannel{reach: byPhone, err: boom})
		_, err := r.Send(context.Background(), msg(entity.ClientContact{Phone: "+91"}))
		assert.ErrorIs(t, err, boom)
	})

	t.Run("nothing reaches", func(t *testing.T) {
		r := NewRouter(zap.NewNop(), &fakeChannel{reach: byChat})
		_, err := r.Send(context.Background(), msg(entity.ClientContact{Email: "a@b.c"}))
		assert.ErrorIs(t, err, ErrNoChannel)
	})
}

type mockChannel struct {
	mock.Mock
}

func (m *mockChannel) CanReach(c entity.ClientContact) bool {
	return m.Called(c).Bool(0)
}

func (m *mockChannel) Send(ctx context.Context, msg port.ReminderMessage) (*port.DeliveryReceipt, error) {
	args := m.Called(ctx, msg)
	receipt, _ := args.Get(0).(*port.DeliveryReceipt)
	return receipt, args.Error(1)
}

func TestRouter_StopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	contact := entity.ClientContact{Phone: "+919800000000", LarkChatID: "oc_1"}
	m := port.ReminderMessage{TaskID: 4, DocumentName: "Form 16", Contact: contact}

	first := &mockChannel{}
	first.On("CanReach", contact).Return(true)
	first.On("Send", ctx, m).Run(func(mock.Arguments) { cancel() }).Return(nil, context.Canceled)

	second := &mockChannel{}

	_, err := NewRouter(zap.NewNop(), first, second).Send(ctx, m)
	assert.ErrorIs(t, err, context.Canceled)
	first.AssertExpectations(t)
	second.AssertNotCalled(t, "CanReach", mock.Anything)
	second.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}
