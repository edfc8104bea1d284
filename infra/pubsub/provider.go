package pubsub

import (
	"errors"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill-amqp/v3/pkg/amqp"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/webitel/webhooks-service/config"
)

// Provider owns the bus connection shared by the ingestion and the delivery side.
type Provider interface {
	Publisher() message.Publisher
	Subscriber() message.Subscriber
	Driver() string
	Close() error
}

// NewProvider opens the bus selected by cfg.Driver. nodeID keeps AMQP queues unique per
// process so that every node receives every event.
func NewProvider(cfg config.BusConfig, nodeID string, logger watermill.LoggerAdapter) (Provider, error) {
	switch cfg.Driver {
	case config.BusGoChannel:
		return NewGoChannelProvider(cfg.BufferSize, logger), nil
	case config.BusAMQP:
		return NewAMQPProvider(cfg.AMQPURL, nodeID, logger)
	default:
		return nil, fmt.Errorf("unsupported bus driver %q", cfg.Driver)
	}
}

// [GOCHANNEL] Single process: one GoChannel is both publisher and subscriber.
// Publish blocks until the consumer acks, otherwise each message travels on its own
// goroutine and consecutive events reach the hub out of order.
type goChannelProvider struct {
	ch *gochannel.GoChannel
}

func NewGoChannelProvider(bufferSize int64, logger watermill.LoggerAdapter) Provider {
	return &goChannelProvider{
		ch: gochannel.NewGoChannel(gochannel.Config{
			OutputChannelBuffer:            bufferSize,
			BlockPublishUntilSubscriberAck: true,
		}, logger),
	}
}

func (p *goChannelProvider) Publisher() message.Publisher   { return p.ch }
func (p *goChannelProvider) Subscriber() message.Subscriber { return p.ch }
func (p *goChannelProvider) Driver() string                 { return config.BusGoChannel }
func (p *goChannelProvider) Close() error                   { return p.ch.Close() }

// [AMQP] Multi process: fanout exchange per topic, one non-durable queue per node.
type amqpProvider struct {
	publisher  *amqp.Publisher
	subscriber *amqp.Subscriber
}

func NewAMQPProvider(url, nodeID string, logger watermill.LoggerAdapter) (Provider, error) {
	amqpCfg := amqp.NewNonDurablePubSubConfig(url, amqp.GenerateQueueNameTopicNameWithSuffix(nodeID))

	pub, err := amqp.NewPublisher(amqpCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("amqp publisher: %w", err)
	}
	sub, err := amqp.NewSubscriber(amqpCfg, logger)
	if err != nil {
		_ = pub.Close()
		return nil, fmt.Errorf("amqp subscriber: %w", err)
	}
	return &amqpProvider{publisher: pub, subscriber: sub}, nil
}

func (p *amqpProvider) Publisher() message.Publisher   { return p.publisher }
func (p *amqpProvider) Subscriber() message.Subscriber { return p.subscriber }
func (p *amqpProvider) Driver() string                 { return config.BusAMQP }

func (p *amqpProvider) Close() error {
	return errors.Join(p.subscriber.Close(), p.publisher.Close())
}
