package marshaller

import (
	"encoding/json"

	"github.com/webitel/webhooks-service/internal/domain/model"
)

// MarshallEvent encodes ev into the wire JSON shared by SSE, WebSocket and long-poll
// delivery. The encoding is computed once per event, no matter how many subscribers
// receive it.
func MarshallEvent(ev *model.Event) ([]byte, error) {
	//  Return cached encoding if already computed.
	if cached, ok := ev.GetCached().([]byte); ok {
		return cached, nil
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}

	// STORE: Save for subsequent deliveries.
	ev.SetCached(data)
	return data, nil
}
