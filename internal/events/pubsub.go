package events

import (
	"context"
	"encoding/json"
	"fmt"

	"cloud.google.com/go/pubsub"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/jafarshop/opsapi/internal/config"
)

// PubSubPublisher publishes to a Google Pub/Sub topic, ordered per shop
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
	logger *zap.Logger
}

// NewPubSubPublisher connects with explicit credentials when given, otherwise Application Default Credentials.
func NewPubSubPublisher(ctx context.Context, cfg config.PubSubConfig, logger *zap.Logger) (*PubSubPublisher, error) {
	var opts []option.ClientOption
	if cfg.CredentialsJSON != "" {
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.CredentialsJSON)))
	}
	client, err := pubsub.NewClient(ctx, cfg.ProjectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}
	topic := client.Topic(cfg.OrdersTopic)
	topic.EnableMessageOrdering = true

	logger.Info("Pub/Sub publisher ready", zap.String("project_id", cfg.ProjectID), zap.String("topic", cfg.OrdersTopic))
	return &PubSubPublisher{client: client, topic: topic, logger: logger}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event OrderEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	result := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: event.Shop,
		Attributes: map[string]string{
			"type": event.Type,
			"shop": event.Shop,
		},
	})
	id, err := result.Get(ctx)
	if err != nil {
		// a failed publish pauses the ordering key until resumed
		p.topic.ResumePublish(event.Shop)
		return fmt.Errorf("failed to publish %s: %w", event.Type, err)
	}
	p.logger.Debug("Published order event", zap.String("type", event.Type), zap.String("message_id", id))
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return p.client.Close()
}
