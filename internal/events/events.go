// Package events publishes order lifecycle events for downstream consumers.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jafarshop/opsapi/internal/domain"
)

// Event types
const (
	OrderCreated       = "order.created"
	OrderUpdated       = "order.updated"
	OrderDeleted       = "order.deleted"
	OrderStatusChanged = "order.status_changed"
)

// OrderEvent is the JSON message body
type OrderEvent struct {
	Type           string              `json:"type"`
	Shop           string              `json:"shop"`
	OrderID        string              `json:"order_id,omitempty"`
	ShopifyOrderID int64               `json:"shopify_order_id"`
	Name           string              `json:"name,omitempty"`
	CustomStatus   domain.CustomStatus `json:"custom_status,omitempty"`
	PreviousStatus domain.CustomStatus `json:"previous_status,omitempty"`
	AWB            string              `json:"awb,omitempty"`
	OccurredAt     time.Time           `json:"occurred_at"`
}

// NewOrderEvent snapshots an order into an event
func NewOrderEvent(eventType string, o *domain.Order) OrderEvent {
	ev := OrderEvent{
		Type:           eventType,
		Shop:           o.Shop,
		ShopifyOrderID: o.ShopifyOrderID,
		Name:           o.Name,
		CustomStatus:   o.CustomStatus,
		AWB:            o.AWB,
		OccurredAt:     time.Now().UTC(),
	}
	if o.ID != uuid.Nil {
		ev.OrderID = o.ID.String()
	}
	return ev
}

// Publisher delivers order events
type Publisher interface {
	Publish(ctx context.Context, event OrderEvent) error
	Close() error
}

// Noop drops events
type Noop struct{}

func (Noop) Publish(context.Context, OrderEvent) error { return nil }
func (Noop) Close() error                               { return nil }
