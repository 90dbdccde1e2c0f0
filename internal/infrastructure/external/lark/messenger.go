package lark

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	larkim "github.com/larksuite/oapi-sdk-go/v3/service/im/v1"
	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// ErrNoLarkTarget is returned when the contact has neither a chat nor an email
var ErrNoLarkTarget = errors.New("contact has no lark chat or email")

// Messenger delivers reminders as Lark IM text messages
type Messenger struct {
	api    messageCreator
	logger *zap.Logger
}

// NewMessenger creates a new Lark reminder sender
func NewMessenger(client *SDKClient, logger *zap.Logger) *Messenger {
	return &Messenger{
		api:    client.messages(),
		logger: logger,
	}
}

// CanReach reports whether the contact has a Lark destination
func (m *Messenger) CanReach(c entity.ClientContact) bool {
	_, _, ok := receiveTarget(c)
	return ok
}

// Send implements port.ReminderSender
func (m *Messenger) Send(ctx context.Context, msg port.ReminderMessage) (*port.DeliveryReceipt, error) {
	idType, id, ok := receiveTarget(msg.Contact)
	if !ok {
		return nil, ErrNoLarkTarget
	}

	content, err := json.Marshal(map[string]string{"text": msg.Text()})
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}

	req := larkim.NewCreateMessageReqBuilder().
		ReceiveIdType(idType).
		Body(larkim.NewCreateMessageReqBodyBuilder().
			ReceiveId(id).
			MsgType(larkim.MsgTypeText).
			Content(string(content)).
			Build()).
		Build()

	resp, err := m.api.Create(ctx, req)
	if err != nil {
		m.logger.Error("Failed to send reminder",
			zap.Int64("task_id", msg.TaskID),
			zap.String("receive_id", id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to send message: %w", err)
	}
	if !resp.Success() {
		m.logger.Error("Lark API returned failure",
			zap.Int64("task_id", msg.TaskID),
			zap.Int("code", resp.Code),
			zap.String("msg", resp.Msg))
		return nil, fmt.Errorf("lark API error: code=%d, msg=%s", resp.Code, resp.Msg)
	}

	receipt := &port.DeliveryReceipt{
		Channel:   entity.ChannelLark,
		Recipient: id,
	}
	if resp.Data != nil && resp.Data.MessageId != nil {
		receipt.MessageID = *resp.Data.MessageId
	}

	m.logger.Info("Reminder sent via Lark",
		zap.Int64("task_id", msg.TaskID),
		zap.String("message_id", receipt.MessageID))
	return receipt, nil
}

// receiveTarget prefers the group chat over the client's email
func receiveTarget(c entity.ClientContact) (idType, id string, ok bool) {
	if chat := strings.TrimSpace(c.LarkChatID); chat != "" {
		return larkim.ReceiveIdTypeChatId, chat, true
	}
	if email := strings.TrimSpace(c.Email); email != "" {
		return larkim.ReceiveIdTypeEmail, email, true
	}
	return "", "", false
}

// Verify interface compliance
var _ port.ReminderSender = (*Messenger)(nil)
