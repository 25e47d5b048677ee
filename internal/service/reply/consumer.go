package reply

import (
	"context"
	"encoding/json"

	"github.com/dentalert/dentalert-api/pkg/logger"
	"github.com/dentalert/dentalert-api/pkg/messaging"
)

// Consumer feeds the handler from the broker's inbound channel. The
// gateway webhook publishes one InboundMessage per received chat message.
type Consumer struct {
	broker  messaging.Broker
	handler *Handler
	logger  *logger.Logger
}

func NewConsumer(broker messaging.Broker, handler *Handler, logger *logger.Logger) *Consumer {
	return &Consumer{
		broker:  broker,
		handler: handler,
		logger:  logger,
	}
}

// Start consumes inbound messages until ctx is cancelled.
func (c *Consumer) Start(ctx context.Context) error {
	msgs, err := c.broker.Subscribe(ctx, messaging.ChannelInbound)
	if err != nil {
		return err
	}

	c.logger.Info("inbound reply consumer started")

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("inbound reply consumer shutting down")
			return nil
		case payload, ok := <-msgs:
			if !ok {
				return nil
			}

			var msg messaging.InboundMessage
			if err := json.Unmarshal(payload, &msg); err != nil {
				c.logger.Warn("dropping malformed inbound message", "error", err.Error())
				continue
			}

			if err := c.handler.Handle(ctx, msg.From, msg.Text); err != nil {
				c.logger.Error(err, "failed to process inbound reply", "from", msg.From)
			}
		}
	}
}
