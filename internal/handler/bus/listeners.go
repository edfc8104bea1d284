package bus

import (
	"context"

	"github.com/webitel/webhooks-service/internal/domain/model"
)

// [ON_EVENT_RECORDED]
// Local delivery: every node hands every event to its own hub.
func (h *EventHandler) OnEventRecorded(ctx context.Context, ev *model.Event) error {
	cells := h.hub.Broadcast(ev)
	h.logger.Debug("EVENT_BROADCAST",
		"event_id", ev.ID,
		"wallet_id", ev.WalletID,
		"topic", ev.Topic,
		"cells", cells,
		"trace_id", TraceIDFromContext(ctx))
	return nil
}
