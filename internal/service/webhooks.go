package service

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/events"
	"github.com/jafarshop/opsapi/internal/lock"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/pkg/errors"
)

// Webhook outcomes reported back to Shopify
const (
	WebhookCreated       = "created"
	WebhookUpdated       = "updated"
	WebhookDeleted       = "deleted"
	WebhookSkipped       = "skipped"
	WebhookDuplicate     = "duplicate"
	WebhookIgnored       = "ignored"
	WebhookStoreNotFound = "store_not_found"
)

const createdByShopify = "shopify"

// WebhookDelivery is one raw webhook request
type WebhookDelivery struct {
	Topic     string
	Shop      string
	WebhookID string
	HMAC      string
	Body      []byte
}

type webhookService struct {
	repos     *repository.Repositories
	secret    string
	payments  shopify.Payments
	messaging *messagingService
	events    events.Publisher
	locker    lock.Locker
	logger    *zap.Logger
	now       func() time.Time
}

// NewWebhookService creates the Shopify order webhook processor
func NewWebhookService(d Deps, messaging *messagingService) *webhookService {
	secret := ""
	if d.Config != nil {
		secret = d.Config.Shopify.APISecret
	}
	return &webhookService{
		repos:     d.Repos,
		secret:    secret,
		payments:  d.Payments,
		messaging: messaging,
		events:    d.Events,
		locker:    d.Locker,
		logger:    d.Logger,
		now:       d.Now,
	}
}

type webhookOutcome struct {
	status   string
	order    *domain.Order
	previous domain.CustomStatus
	changed  bool
}

// HandleOrderWebhook verifies and applies an orders/* delivery
func (s *webhookService) HandleOrderWebhook(ctx context.Context, d WebhookDelivery) (string, error) {
	if !shopify.VerifyWebhook(s.secret, d.Body, d.HMAC) {
		return "", &errors.ErrUnauthorized{Message: "invalid webhook signature"}
	}
	switch d.Topic {
	case shopify.TopicOrdersCreate, shopify.TopicOrdersUpdated, shopify.TopicOrdersDelete:
	default:
		s.logger.Debug("Ignoring webhook topic", zap.String("topic", d.Topic))
		return WebhookIgnored, nil
	}

	shop := shopify.NormalizeShopDomain(d.Shop)
	store, err := s.repos.Store.GetByShop(ctx, shop)
	if isNotFound(err) {
		s.logger.Warn("Webhook for unknown store", zap.String("shop", shop), zap.String("topic", d.Topic))
		return WebhookStoreNotFound, nil
	}
	if err != nil {
		return "", err
	}

	if d.WebhookID != "" {
		seen, err := s.repos.ProcessedWebhook.Exists(ctx, d.WebhookID)
		if err != nil {
			return "", err
		}
		if seen {
			return WebhookDuplicate, nil
		}
	}

	var payload shopify.OrderPayload
	var shopifyOrderID int64
	if d.Topic == shopify.TopicOrdersDelete {
		var del shopify.DeletePayload
		if err := json.Unmarshal(d.Body, &del); err != nil {
			return "", errors.Validation("invalid webhook payload: %v", err)
		}
		shopifyOrderID = del.ID
	} else {
		if err := json.Unmarshal(d.Body, &payload); err != nil {
			return "", errors.Validation("invalid webhook payload: %v", err)
		}
		shopifyOrderID = payload.ID
	}
	if shopifyOrderID == 0 {
		return "", errors.Validation("webhook payload has no order id")
	}

	release, err := s.locker.Obtain(ctx, fmt.Sprintf("lock:order:%s:%d", shop, shopifyOrderID), lock.DefaultTTL)
	switch {
	case stderrors.Is(err, lock.ErrNotObtained):
		return "", &errors.ErrConflict{Message: "order is being processed by another delivery"}
	case err != nil:
		s.logger.Warn("Lock backend unavailable, processing without lock", zap.String("shop", shop), zap.Error(err))
		release = func() {}
	}
	defer release()

	var out webhookOutcome
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		out = webhookOutcome{}
		if d.WebhookID != "" {
			seen, err := repos.ProcessedWebhook.Exists(ctx, d.WebhookID)
			if err != nil {
				return err
			}
			if seen {
				out.status = WebhookDuplicate
				return nil
			}
		}

		var err error
		if d.Topic == shopify.TopicOrdersDelete {
			err = s.delete(ctx, repos, shop, shopifyOrderID, &out)
		} else {
			err = s.upsert(ctx, repos, shop, d.Topic, &payload, d.Body, &out)
		}
		if err != nil {
			return err
		}
		if d.WebhookID != "" {
			return repos.ProcessedWebhook.Create(ctx, d.WebhookID, shop, d.Topic)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Failed to process order webhook",
			zap.String("shop", shop),
			zap.String("topic", d.Topic),
			zap.Int64("shopify_order_id", shopifyOrderID),
			zap.Error(err),
		)
		return "", err
	}

	s.logger.Info("Order webhook processed",
		zap.String("shop", shop),
		zap.String("topic", d.Topic),
		zap.Int64("shopify_order_id", shopifyOrderID),
		zap.String("result", out.status),
	)
	s.afterCommit(ctx, store, &out)
	return out.status, nil
}

func (s *webhookService) upsert(ctx context.Context, repos *repository.Repositories, shop, topic string, p *shopify.OrderPayload, raw []byte, out *webhookOutcome) error {
	existing, err := repos.Order.GetByShopifyID(ctx, shop, p.ID)
	if err != nil && !isNotFound(err) {
		return err
	}
	now := s.now()

	if existing == nil {
		order := &domain.Order{CustomStatus: domain.StatusNew}
		p.ApplyTo(order, shop, raw)
		remarks := "Order received from Shopify"
		if order.CancelledAt != nil {
			order.CustomStatus = domain.StatusCancelled
			remarks = "Order received from Shopify already cancelled"
		}
		if err := repos.Order.Create(ctx, order); err != nil {
			return err
		}
		if err := repos.OrderStatusLog.Create(ctx, &domain.OrderStatusLog{
			OrderID:   order.ID,
			Status:    order.CustomStatus,
			Remarks:   remarks,
			CreatedBy: createdByShopify,
			CreatedAt: now,
		}); err != nil {
			return err
		}
		out.status = WebhookCreated
		out.order = order
		return nil
	}

	if topic == shopify.TopicOrdersUpdated && !existing.ShopifyUpdatedAt.IsZero() && p.UpdatedAt.Before(existing.ShopifyUpdatedAt) {
		out.status = WebhookSkipped
		out.order = existing
		return nil
	}

	wasCancelled := existing.CancelledAt != nil
	prev := existing.CustomStatus
	p.ApplyTo(existing, shop, raw)
	newlyCancelled := existing.CancelledAt != nil && !wasCancelled
	if newlyCancelled && !prev.CanTransitionTo(domain.StatusCancelled) {
		// the parcel has moved on; record the Shopify cancel without touching the status
		if err := repos.OrderStatusLog.Create(ctx, &domain.OrderStatusLog{
			OrderID:        existing.ID,
			Status:         prev,
			PreviousStatus: prev,
			Remarks:        "Cancelled in Shopify; status kept",
			CreatedBy:      createdByShopify,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		s.logger.Warn("Shopify cancelled an order past cancellation",
			zap.String("shop", shop),
			zap.Int64("shopify_order_id", existing.ShopifyOrderID),
			zap.String("status", string(prev)),
		)
	}
	if newlyCancelled && prev.CanTransitionTo(domain.StatusCancelled) {
		existing.CustomStatus = domain.StatusCancelled
		if existing.PickupReady {
			store, err := repos.Store.GetByShop(ctx, shop)
			if err != nil {
				return err
			}
			if err := moveOrderUnits(ctx, repos, store, existing, domain.PutAwayOutbound, domain.PutAwayInbound); err != nil {
				return err
			}
			existing.PickupReady = false
		}
		if err := repos.OrderStatusLog.Create(ctx, &domain.OrderStatusLog{
			OrderID:        existing.ID,
			Status:         domain.StatusCancelled,
			PreviousStatus: prev,
			Remarks:        "Cancelled in Shopify",
			CreatedBy:      createdByShopify,
			CreatedAt:      now,
		}); err != nil {
			return err
		}
		out.previous = prev
		out.changed = true
	}
	if err := repos.Order.Update(ctx, existing); err != nil {
		return err
	}
	out.status = WebhookUpdated
	out.order = existing
	return nil
}

func (s *webhookService) delete(ctx context.Context, repos *repository.Repositories, shop string, shopifyOrderID int64, out *webhookOutcome) error {
	existing, err := repos.Order.GetByShopifyID(ctx, shop, shopifyOrderID)
	if isNotFound(err) {
		out.status = WebhookSkipped
		return nil
	}
	if err != nil {
		return err
	}
	if err := repos.OrderStatusLog.DeleteByOrderID(ctx, existing.ID); err != nil {
		return err
	}
	if err := repos.Order.Delete(ctx, shop, existing.ID); err != nil {
		return err
	}
	out.status = WebhookDeleted
	out.order = existing
	return nil
}

// afterCommit publishes the event and runs the create-time automations. Failures are logged only.
func (s *webhookService) afterCommit(ctx context.Context, store *domain.Store, out *webhookOutcome) {
	if out.order == nil {
		return
	}
	order := out.order

	var eventType string
	switch out.status {
	case WebhookCreated:
		eventType = events.OrderCreated
	case WebhookUpdated:
		eventType = events.OrderUpdated
	case WebhookDeleted:
		eventType = events.OrderDeleted
	default:
		return
	}
	if err := s.events.Publish(ctx, events.NewOrderEvent(eventType, order)); err != nil {
		s.logger.Warn("Failed to publish order event", zap.String("type", eventType), zap.String("order", order.Name), zap.Error(err))
	}
	if out.changed {
		ev := events.NewOrderEvent(events.OrderStatusChanged, order)
		ev.PreviousStatus = out.previous
		if err := s.events.Publish(ctx, ev); err != nil {
			s.logger.Warn("Failed to publish status change", zap.String("order", order.Name), zap.Error(err))
		}
	}

	if out.status != WebhookCreated {
		return
	}
	s.messaging.SendForEvent(ctx, store, order, domain.EventOrderCreated)

	if store.AutoCapture && !order.IsCOD && order.FinancialStatus == "authorized" && s.payments != nil {
		if err := s.payments.Capture(ctx, store, order.ShopifyOrderID, order.TotalPrice); err != nil {
			s.logger.Error("Auto-capture failed",
				zap.String("shop", store.Shop),
				zap.String("order", order.Name),
				zap.Error(err),
			)
		}
	}
}
