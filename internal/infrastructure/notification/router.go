// Package notification routes client reminders to a delivery channel.
package notification

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/garyjia/taskdoc/internal/application/port"
	"github.com/garyjia/taskdoc/internal/domain/entity"
)

// ErrNoChannel is returned when no configured channel can reach the contact
var ErrNoChannel = errors.New("no configured channel can reach the client")

// Channel is a reminder sender that can tell whether it reaches a contact
type Channel interface {
	port.ReminderSender
	CanReach(contact entity.ClientContact) bool
}

// Router tries channels in order until one delivers
type Router struct {
	channels []Channel
	logger   *zap.Logger
}

// NewRouter creates a router over channels, in priority order
func NewRouter(logger *zap.Logger, channels ...Channel) *Router {
	return &Router{
		channels: channels,
		logger:   logger,
	}
}

// Len returns the number of configured channels
func (r *Router) Len() int {
	return len(r.channels)
}

// Send implements port.ReminderSender
func (r *Router) Send(ctx context.Context, msg port.ReminderMessage) (*port.DeliveryReceipt, error) {
	var errs []error
	for _, ch := range r.channels {
		if !ch.CanReach(msg.Contact) {
			continue
		}
		receipt, err := ch.Send(ctx, msg)
		if err == nil {
			return receipt, nil
		}
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
		r.logger.Warn("Reminder channel failed, trying next",
			zap.Int64("task_id", msg.TaskID),
			zap.Error(err))
	}

	if len(errs) == 0 {
		return nil, ErrNoChannel
	}
	return nil, fmt.Errorf("all reminder channels failed: %w", errors.Join(errs...))
}

// Verify interface compliance
var _ port.ReminderSender = (*Router)(nil)
