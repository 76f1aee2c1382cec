package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/documents"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/events"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/pkg/errors"
)

const maxOrderPage = 100

type orderService struct {
	repos     *repository.Repositories
	shopify   shopify.Factory
	messaging *messagingService
	events    events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewOrderService creates a new order service
func NewOrderService(d Deps, messaging *messagingService) *orderService {
	return &orderService{
		repos:     d.Repos,
		shopify:   d.Shopify,
		messaging: messaging,
		events:    d.Events,
		logger:    d.Logger,
		now:       d.Now,
	}
}

// OrderDetail is an order with its status history
type OrderDetail struct {
	Order *domain.Order
	Logs  []*domain.OrderStatusLog
}

// statusChange is a committed custom status move whose side effects are still pending
type statusChange struct {
	order    *domain.Order
	previous domain.CustomStatus
}

func (s *orderService) List(ctx context.Context, shop string, filter repository.OrderFilter) ([]*domain.Order, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, errors.Validation("unknown status %q", filter.Status)
	}
	if filter.Limit <= 0 || filter.Limit > maxOrderPage {
		filter.Limit = maxOrderPage
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	return s.repos.Order.List(ctx, shop, filter)
}

func (s *orderService) Get(ctx context.Context, shop string, id uuid.UUID) (*OrderDetail, error) {
	order, err := s.repos.Order.GetByID(ctx, shop, id)
	if err != nil {
		return nil, err
	}
	logs, err := s.repos.OrderStatusLog.GetByOrderID(ctx, order.ID)
	if err != nil {
		return nil, err
	}
	return &OrderDetail{Order: order, Logs: logs}, nil
}

// checkTransition validates a custom status move without writing anything
func checkTransition(order *domain.Order, next domain.CustomStatus) error {
	if !next.IsValid() {
		return errors.Validation("unknown status %q", next)
	}
	if !order.CustomStatus.CanTransitionTo(next) {
		return &errors.ErrInvalidStateTransition{Entity: "order", From: string(order.CustomStatus), To: string(next)}
	}
	return nil
}

// applyStatus writes a validated status move, its log entry and the inventory
// consequences. Must run inside a transaction.
func (s *orderService) applyStatus(ctx context.Context, repos *repository.Repositories, store *domain.Store, order *domain.Order, next domain.CustomStatus, remarks, by string) (*statusChange, error) {
	if err := checkTransition(order, next); err != nil {
		return nil, err
	}
	prev := order.CustomStatus
	now := s.now()
	order.CustomStatus = next
	if next == domain.StatusDelivered && order.DeliveredAt == nil {
		order.DeliveredAt = &now
	}

	switch {
	case !prev.IsShipped() && next.IsShipped():
		if err := moveOrderUnits(ctx, repos, store, order, domain.PutAwayOutbound, domain.PutAwayDispatched); err != nil {
			return nil, err
		}
	case next == domain.StatusCancelled && order.PickupReady:
		if err := moveOrderUnits(ctx, repos, store, order, domain.PutAwayOutbound, domain.PutAwayInbound); err != nil {
			return nil, err
		}
		order.PickupReady = false
	}

	if err := repos.Order.Update(ctx, order); err != nil {
		return nil, err
	}
	if err := repos.OrderStatusLog.Create(ctx, &domain.OrderStatusLog{
		OrderID:        order.ID,
		Status:         next,
		PreviousStatus: prev,
		Remarks:        remarks,
		CreatedBy:      by,
		CreatedAt:      now,
	}); err != nil {
		return nil, err
	}
	return &statusChange{order: order, previous: prev}, nil
}

// moveOrderUnits moves the units bound to the order from one put-away state to another.
// Units released back to inbound are unbound from the order.
func moveOrderUnits(ctx context.Context, repos *repository.Repositories, store *domain.Store, order *domain.Order, from, to domain.PutAwayState) error {
	if store.BusinessID == nil {
		return nil
	}
	orderID := order.ID
	units, err := repos.UPC.List(ctx, *store.BusinessID, repository.UPCFilter{OrderID: &orderID, PutAway: from})
	if err != nil {
		return err
	}
	if len(units) == 0 {
		return nil
	}
	for _, u := range units {
		u.PutAway = to
		if to == domain.PutAwayInbound {
			u.OrderID = nil
			u.Shop = ""
		}
	}
	for _, chunk := range repository.Chunk(units, repository.BatchSize) {
		if err := repos.UPC.UpdateBatch(ctx, chunk); err != nil {
			return err
		}
	}
	return nil
}

// afterStatusChange runs the post-commit side effects of a status move. Failures are logged only.
func (s *orderService) afterStatusChange(ctx context.Context, store *domain.Store, change *statusChange) {
	order := change.order
	ev := events.NewOrderEvent(events.OrderStatusChanged, order)
	ev.PreviousStatus = change.previous
	if err := s.events.Publish(ctx, ev); err != nil {
		s.logger.Warn("Failed to publish status change", zap.String("order_id", order.ID.String()), zap.Error(err))
	}

	if !change.previous.IsShipped() && order.CustomStatus.IsShipped() {
		s.messaging.SendForEvent(ctx, store, order, domain.EventOrderDispatched)
		if order.AWB != "" {
			tracking := shopify.FulfillmentTrackingInput{
				Company: order.Courier,
				Number:  order.AWB,
				URL:     courier.TrackingURL(order.Courier, order.AWB),
			}
			if err := s.shopify.ForStore(store).FulfillOrder(ctx, order.ShopifyOrderID, tracking); err != nil {
				s.logger.Error("Failed to fulfill order in Shopify",
					zap.String("shop", store.Shop),
					zap.String("order", order.Name),
					zap.Error(err),
				)
			}
		}
	}
	if order.CustomStatus == domain.StatusDelivered && change.previous != domain.StatusDelivered {
		s.messaging.SendForEvent(ctx, store, order, domain.EventOrderDelivered)
	}
}

// UpdateStatus moves a single order and runs its side effects
func (s *orderService) UpdateStatus(ctx context.Context, store *domain.Store, uid string, id uuid.UUID, next domain.CustomStatus, remarks string) (*domain.Order, error) {
	var change *statusChange
	var order *domain.Order
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		order, err = repos.Order.GetByID(ctx, store.Shop, id)
		if err != nil {
			return err
		}
		if order.CustomStatus == next {
			return nil
		}
		change, err = s.applyStatus(ctx, repos, store, order, next, remarks, uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	if change != nil {
		s.afterStatusChange(ctx, store, change)
	}
	return order, nil
}

// BulkUpdateStatus validates every order individually and commits in chunks
// of at most repository.BatchSize orders, one chunk after the other.
func (s *orderService) BulkUpdateStatus(ctx context.Context, store *domain.Store, uid string, req BulkStatusRequest) ([]OrderResult, error) {
	if !req.Status.IsValid() {
		return nil, errors.Validation("unknown status %q", req.Status)
	}
	ids := dedupeIDs(req.OrderIDs)
	results := make([]OrderResult, 0, len(ids))

	for _, chunk := range repository.Chunk(ids, repository.BatchSize) {
		var chunkResults []OrderResult
		var changes []*statusChange
		err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
			chunkResults = make([]OrderResult, 0, len(chunk))
			changes = nil
			for _, id := range chunk {
				res := OrderResult{OrderID: id}
				order, err := repos.Order.GetByID(ctx, store.Shop, id)
				if err != nil {
					if !isNotFound(err) {
						return err
					}
					res.Error = err.Error()
					chunkResults = append(chunkResults, res)
					continue
				}
				res.Status = order.CustomStatus
				if order.CustomStatus == req.Status {
					res.OK = true
					chunkResults = append(chunkResults, res)
					continue
				}
				if err := checkTransition(order, req.Status); err != nil {
					res.Error = err.Error()
					chunkResults = append(chunkResults, res)
					continue
				}
				change, err := s.applyStatus(ctx, repos, store, order, req.Status, req.Remarks, uid)
				if err != nil {
					return err
				}
				changes = append(changes, change)
				res.OK = true
				res.Status = order.CustomStatus
				chunkResults = append(chunkResults, res)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("bulk status update failed after %d orders: %w", len(results), err)
		}
		results = append(results, chunkResults...)
		for _, c := range changes {
			s.afterStatusChange(ctx, store, c)
		}
	}

	s.logger.Info("Bulk status update",
		zap.String("shop", store.Shop),
		zap.String("status", string(req.Status)),
		zap.Int("orders", len(ids)),
	)
	return results, nil
}

// Confirm moves a new order to Confirmed; confirming twice is a no-op
func (s *orderService) Confirm(ctx context.Context, store *domain.Store, uid string, id uuid.UUID) (*domain.Order, error) {
	return s.UpdateStatus(ctx, store, uid, id, domain.StatusConfirmed, "Order confirmed")
}

// Cancel cancels the order in Shopify first, then locally
func (s *orderService) Cancel(ctx context.Context, store *domain.Store, uid string, id uuid.UUID, req CancelOrderRequest) (*domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, store.Shop, id)
	if err != nil {
		return nil, err
	}
	if order.CustomStatus == domain.StatusCancelled {
		return order, nil
	}
	if err := checkTransition(order, domain.StatusCancelled); err != nil {
		return nil, err
	}
	if order.AWB != "" {
		return nil, &errors.ErrConflict{Message: "cancel the shipment before cancelling the order"}
	}

	if order.CancelledAt == nil {
		if err := s.shopify.ForStore(store).CancelOrder(ctx, order.ShopifyOrderID, req.Reason); err != nil {
			return nil, &errors.ErrUpstream{Service: "shopify", Err: err}
		}
	}

	remarks := req.Remarks
	if remarks == "" {
		remarks = "Cancelled from dashboard"
	}
	return s.UpdateStatus(ctx, store, uid, id, domain.StatusCancelled, remarks)
}

// SetPickupReady reserves inbound units for every line item (ready) or releases them.
// Reservation is all-or-nothing.
func (s *orderService) SetPickupReady(ctx context.Context, store *domain.Store, uid string, id uuid.UUID, ready bool) (*domain.Order, error) {
	if store.BusinessID == nil {
		return nil, errors.Validation("store %s is not linked to a business", store.Shop)
	}
	businessID := *store.BusinessID

	var order *domain.Order
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		order, err = repos.Order.GetByID(ctx, store.Shop, id)
		if err != nil {
			return err
		}
		if order.PickupReady == ready {
			return nil
		}
		if order.CustomStatus.IsShipped() || order.CustomStatus.IsTerminal() {
			return &errors.ErrConflict{Message: fmt.Sprintf("order is %s", order.CustomStatus)}
		}

		if !ready {
			if err := moveOrderUnits(ctx, repos, store, order, domain.PutAwayOutbound, domain.PutAwayInbound); err != nil {
				return err
			}
			order.PickupReady = false
			return repos.Order.Update(ctx, order)
		}

		needed, err := skuDemand(ctx, repos, businessID, store.Shop, order)
		if err != nil {
			return err
		}
		shortfalls := map[string]string{}
		var reserved []*domain.UPC
		for _, d := range needed {
			units, err := repos.UPC.List(ctx, businessID, repository.UPCFilter{SKU: d.sku, PutAway: domain.PutAwayInbound, Limit: d.qty})
			if err != nil {
				return err
			}
			if len(units) < d.qty {
				shortfalls[d.sku] = fmt.Sprintf("need %d, %d in stock", d.qty, len(units))
				continue
			}
			reserved = append(reserved, units...)
		}
		if len(shortfalls) > 0 {
			return &errors.ErrValidation{Message: "insufficient inbound stock", Fields: shortfalls}
		}

		orderID := order.ID
		for _, u := range reserved {
			u.PutAway = domain.PutAwayOutbound
			u.Shop = store.Shop
			u.OrderID = &orderID
		}
		for _, chunk := range repository.Chunk(reserved, repository.BatchSize) {
			if err := repos.UPC.UpdateBatch(ctx, chunk); err != nil {
				return err
			}
		}
		order.PickupReady = true
		return repos.Order.Update(ctx, order)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Pickup readiness changed", zap.String("shop", store.Shop), zap.String("order", order.Name), zap.Bool("ready", ready))
	return order, nil
}

type skuQty struct {
	sku string
	qty int
}

// skuDemand maps each line item's variant to its business SKU, preserving line order
func skuDemand(ctx context.Context, repos *repository.Repositories, businessID uuid.UUID, shop string, order *domain.Order) ([]skuQty, error) {
	var out []skuQty
	index := map[string]int{}
	unmapped := map[string]string{}
	for _, li := range order.LineItems {
		if li.Quantity <= 0 {
			continue
		}
		product, err := repos.Product.GetByMappedVariant(ctx, businessID, domain.VariantKey(shop, li.VariantID))
		if err != nil {
			if isNotFound(err) {
				unmapped[fmt.Sprintf("variant %d", li.VariantID)] = fmt.Sprintf("%s is not mapped to a SKU", li.Title)
				continue
			}
			return nil, err
		}
		if i, ok := index[product.SKU]; ok {
			out[i].qty += li.Quantity
			continue
		}
		index[product.SKU] = len(out)
		out = append(out, skuQty{sku: product.SKU, qty: li.Quantity})
	}
	if len(unmapped) > 0 {
		return nil, &errors.ErrValidation{Message: "order has unmapped variants", Fields: unmapped}
	}
	return out, nil
}

// ShippingSlips renders one PDF page per order
func (s *orderService) ShippingSlips(ctx context.Context, store *domain.Store, ids []uuid.UUID) ([]byte, error) {
	orders := make([]*domain.Order, 0, len(ids))
	for _, id := range dedupeIDs(ids) {
		order, err := s.repos.Order.GetByID(ctx, store.Shop, id)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	return documents.ShippingSlips(documents.SlipStore{Name: store.Name, Shop: store.Shop}, orders)
}

func dedupeIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
