package bus

import (
	"context"
	"runtime/debug"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/webitel/webhooks-service/internal/domain/model"
)

// DomainHandler defines the functional signature for delivery logic.
type DomainHandler func(ctx context.Context, ev *model.Event) error

// [INFRASTRUCTURE_BRIDGE]
// Bind connects Watermill to Domain logic, handling Panic Recovery and Decoding.
func Bind(h *EventHandler, fn DomainHandler) message.NoPublishHandlerFunc {
	return func(msg *message.Message) (err error) {
		// [PANIC_RECOVERY]
		// Safely handle runtime panics to keep the consumer alive.
		defer func() {
			if r := recover(); r != nil {
				h.logger.Error("PANIC_RECOVERED",
					"err", r,
					"stack", string(debug.Stack()),
					"msg_id", msg.UUID)
				err = nil // ACK: a panicking record would panic again on redelivery.
			}
		}()

		// [DECODING]
		ev, derr := model.DecodeRecord(msg.Payload)
		if derr != nil {
			h.logger.Error("DECODE_FAILED", "err", derr, "msg_id", msg.UUID)
			return nil // ACK: Poison Pill protection.
		}

		// [EXECUTION]
		return fn(msg.Context(), ev)
	}
}
