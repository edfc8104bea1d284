package bus

import (
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/message/router/middleware"
	"github.com/webitel/webhooks-service/internal/domain/registry"
)

// HandlerEventRecorded consumes canonical events published by the ingestion side.
const HandlerEventRecorded = "ON_EVENT_RECORDED"

type EventHandler struct {
	hub    registry.Hubber
	logger *slog.Logger
}

func NewEventHandler(hub registry.Hubber, logger *slog.Logger) *EventHandler {
	return &EventHandler{hub: hub, logger: logger}
}

// NewWatermillRouter builds the consumer router with router-wide panic recovery.
func NewWatermillRouter(logger watermill.LoggerAdapter) (*message.Router, error) {
	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: 10 * time.Second}, logger)
	if err != nil {
		return nil, err
	}
	router.AddMiddleware(middleware.Recoverer)
	return router, nil
}

// [REGISTRATION_PIPELINE]
func (h *EventHandler) RegisterHandlers(router *message.Router, sub message.Subscriber, topic string) {
	router.AddConsumerHandler(HandlerEventRecorded, topic, sub, Bind(h, h.OnEventRecorded)).AddMiddleware(
		TraceIDMiddleware,
		LoggingMiddleware(h.logger),
	)
	h.logger.Info("BUS_PIPELINE_READY", "topic", topic)
}
