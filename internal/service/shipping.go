package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

const (
	defaultTrackingInterval = 30 * time.Minute
	trackingBatchPerStore   = 200
)

// trackedStatuses are the statuses whose parcels are still moving
var trackedStatuses = []domain.CustomStatus{
	domain.StatusReadyToDispatch,
	domain.StatusDispatched,
	domain.StatusInTransit,
	domain.StatusOutForDelivery,
	domain.StatusRTOInTransit,
	domain.StatusDTOBooked,
	domain.StatusDTOInTransit,
}

var trackingSyncMu sync.Mutex

type shippingService struct {
	repos    *repository.Repositories
	couriers courier.Factory
	orders   *orderService
	interval time.Duration
	logger   *zap.Logger
}

// NewShippingService creates the courier booking and tracking service
func NewShippingService(d Deps, orders *orderService) *shippingService {
	interval := defaultTrackingInterval
	if d.Config != nil && d.Config.Tracking.SyncInterval > 0 {
		interval = d.Config.Tracking.SyncInterval
	}
	return &shippingService{
		repos:    d.Repos,
		couriers: d.Couriers,
		orders:   orders,
		interval: interval,
		logger:   d.Logger,
	}
}

// TrackingSyncSummary reports one sync pass
type TrackingSyncSummary struct {
	Stores  int `json:"stores"`
	Checked int `json:"checked"`
	Updated int `json:"updated"`
	Failed  int `json:"failed"`
}

func (s *shippingService) shipmentFor(ctx context.Context, store *domain.Store, order *domain.Order, pickupLocation string) (courier.Shipment, error) {
	addr := order.ShippingAddress
	if addr == nil {
		return courier.Shipment{}, errors.Validation("order %s has no shipping address", order.Name)
	}
	shipment := courier.Shipment{
		OrderID:   order.ID.String(),
		OrderName: order.Name,
		OrderDate: order.ShopifyCreatedAt,
		Consignee: courier.Consignee{
			Name:     firstNonEmpty(addr.Name, order.CustomerName),
			Phone:    firstNonEmpty(addr.Phone, order.Phone),
			Email:    order.Email,
			Address1: addr.Address1,
			Address2: addr.Address2,
			City:     addr.City,
			State:    addr.Province,
			Pincode:  addr.Zip,
			Country:  firstNonEmpty(addr.Country, "India"),
		},
		Total:          order.TotalPrice,
		COD:            order.IsCOD,
		PickupLocation: pickupLocation,
	}
	for _, li := range order.LineItems {
		shipment.Items = append(shipment.Items, courier.Item{SKU: li.SKU, Name: li.Title, Quantity: li.Quantity, Price: li.Price})
		if store.BusinessID == nil {
			continue
		}
		product, err := s.repos.Product.GetByMappedVariant(ctx, *store.BusinessID, domain.VariantKey(store.Shop, li.VariantID))
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return courier.Shipment{}, err
		}
		shipment.WeightGrams += product.WeightGrams * li.Quantity
	}
	return shipment, nil
}

// AssignAWBs books a shipment for each confirmed order. Orders fail individually.
func (s *shippingService) AssignAWBs(ctx context.Context, store *domain.Store, uid string, req AssignAWBRequest) ([]OrderResult, error) {
	client, err := s.couriers.ForStore(store, req.Courier)
	if err != nil {
		return nil, err
	}
	pickup := store.Integrations.Couriers[client.Name()].PickupLocation

	results := make([]OrderResult, 0, len(req.OrderIDs))
	for _, id := range dedupeIDs(req.OrderIDs) {
		res := OrderResult{OrderID: id}
		order, err := s.assignOne(ctx, store, client, pickup, uid, id)
		if err != nil {
			res.Error = err.Error()
			s.logger.Warn("AWB assignment failed", zap.String("shop", store.Shop), zap.String("order_id", id.String()), zap.Error(err))
		} else {
			res.OK = true
			res.AWB = order.AWB
		}
		if order != nil {
			res.Status = order.CustomStatus
		}
		results = append(results, res)
	}
	return results, nil
}

func (s *shippingService) assignOne(ctx context.Context, store *domain.Store, client courier.Client, pickup, uid string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, store.Shop, id)
	if err != nil {
		return nil, err
	}
	if order.AWB != "" {
		return order, &errors.ErrConflict{Message: fmt.Sprintf("order %s already has AWB %s", order.Name, order.AWB)}
	}
	if order.CustomStatus != domain.StatusConfirmed {
		return order, errors.Validation("order %s is %s; only Confirmed orders can be shipped", order.Name, order.CustomStatus)
	}
	shipment, err := s.shipmentFor(ctx, store, order, pickup)
	if err != nil {
		return order, err
	}
	booking, err := client.CreateShipment(ctx, shipment)
	if err != nil {
		return order, &errors.ErrUpstream{Service: client.Name(), Err: err}
	}

	var change *statusChange
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		current, err := repos.Order.GetByID(ctx, store.Shop, id)
		if err != nil {
			return err
		}
		current.AWB = booking.AWB
		current.Courier = client.Name()
		change, err = s.orders.applyStatus(ctx, repos, store, current, domain.StatusReadyToDispatch,
			fmt.Sprintf("AWB %s assigned via %s", booking.AWB, client.Name()), uid)
		if err != nil {
			return err
		}
		order = current
		return nil
	})
	if err != nil {
		// The courier already holds a booking; release it so the order can be retried.
		if cancelErr := client.Cancel(ctx, booking.AWB); cancelErr != nil {
			s.logger.Error("Failed to release AWB after save error", zap.String("awb", booking.AWB), zap.Error(cancelErr))
		}
		return order, err
	}
	s.orders.afterStatusChange(ctx, store, change)
	return order, nil
}

// Track fetches the latest scan and applies the status it implies
func (s *shippingService) Track(ctx context.Context, store *domain.Store, id uuid.UUID) (*courier.Tracking, *domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, store.Shop, id)
	if err != nil {
		return nil, nil, err
	}
	if order.AWB == "" {
		return nil, nil, errors.Validation("order %s has no AWB", order.Name)
	}
	client, err := s.couriers.ForStore(store, order.Courier)
	if err != nil {
		return nil, nil, err
	}
	tracking, err := client.Track(ctx, order.AWB)
	if err != nil {
		return nil, nil, &errors.ErrUpstream{Service: client.Name(), Err: err}
	}
	updated, _, err := s.applyTracking(ctx, store, order, tracking)
	if err != nil {
		return nil, nil, err
	}
	return tracking, updated, nil
}

// applyTracking moves the order when the scan implies a reachable status; other scans are ignored
func (s *shippingService) applyTracking(ctx context.Context, store *domain.Store, order *domain.Order, t *courier.Tracking) (*domain.Order, bool, error) {
	if t.Status == "" || t.Status == order.CustomStatus || !order.CustomStatus.CanTransitionTo(t.Status) {
		return order, false, nil
	}
	var change *statusChange
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		current, err := repos.Order.GetByID(ctx, store.Shop, order.ID)
		if err != nil {
			return err
		}
		if current.AWB != t.AWB && t.AWB != "" {
			return nil
		}
		if t.Status == current.CustomStatus || !current.CustomStatus.CanTransitionTo(t.Status) {
			return nil
		}
		if t.Status == domain.StatusDelivered && t.DeliveredAt != nil {
			at := *t.DeliveredAt
			current.DeliveredAt = &at
		}
		remarks := t.RawStatus
		if t.Location != "" {
			remarks += " (" + t.Location + ")"
		}
		change, err = s.orders.applyStatus(ctx, repos, store, current, t.Status, remarks, "courier:"+current.Courier)
		return err
	})
	if err != nil {
		return nil, false, err
	}
	if change == nil {
		return order, false, nil
	}
	s.orders.afterStatusChange(ctx, store, change)
	return change.order, true, nil
}

// CancelShipment cancels the AWB with the courier and returns the order to Confirmed
func (s *shippingService) CancelShipment(ctx context.Context, store *domain.Store, uid string, id uuid.UUID) (*domain.Order, error) {
	order, err := s.repos.Order.GetByID(ctx, store.Shop, id)
	if err != nil {
		return nil, err
	}
	if order.AWB == "" {
		return nil, errors.Validation("order %s has no AWB", order.Name)
	}
	if order.CustomStatus != domain.StatusReadyToDispatch {
		return nil, &errors.ErrConflict{Message: fmt.Sprintf("order %s is %s; the parcel has already been handed over", order.Name, order.CustomStatus)}
	}
	client, err := s.couriers.ForStore(store, order.Courier)
	if err != nil {
		return nil, err
	}
	if err := client.Cancel(ctx, order.AWB); err != nil {
		return nil, &errors.ErrUpstream{Service: client.Name(), Err: err}
	}

	var change *statusChange
	err = s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		current, err := repos.Order.GetByID(ctx, store.Shop, id)
		if err != nil {
			return err
		}
		awb := current.AWB
		current.AWB = ""
		current.Courier = ""
		change, err = s.orders.applyStatus(ctx, repos, store, current, domain.StatusConfirmed, "Shipment "+awb+" cancelled", uid)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.orders.afterStatusChange(ctx, store, change)
	return change.order, nil
}

// RunTrackingSyncOnce polls every in-flight AWB of every store. Errors are counted, not returned.
func (s *shippingService) RunTrackingSyncOnce(ctx context.Context) TrackingSyncSummary {
	var summary TrackingSyncSummary
	stores, err := s.repos.Store.List(ctx)
	if err != nil {
		s.logger.Error("Tracking sync: failed to list stores", zap.Error(err))
		return summary
	}
	for _, store := range stores {
		if len(store.Integrations.Couriers) == 0 {
			continue
		}
		summary.Stores++
		orders, err := s.repos.Order.ListWithAWBByStatuses(ctx, store.Shop, trackedStatuses, trackingBatchPerStore)
		if err != nil {
			s.logger.Warn("Tracking sync: failed to list orders", zap.String("shop", store.Shop), zap.Error(err))
			continue
		}
		clients := map[string]courier.Client{}
		for _, order := range orders {
			if ctx.Err() != nil {
				return summary
			}
			summary.Checked++
			client, ok := clients[order.Courier]
			if !ok {
				client, err = s.couriers.ForStore(store, order.Courier)
				if err != nil {
					s.logger.Warn("Tracking sync: courier unavailable", zap.String("shop", store.Shop), zap.String("courier", order.Courier), zap.Error(err))
					summary.Failed++
					continue
				}
				clients[order.Courier] = client
			}
			tracking, err := client.Track(ctx, order.AWB)
			if err != nil {
				s.logger.Warn("Tracking sync: track failed", zap.String("shop", store.Shop), zap.String("awb", order.AWB), zap.Error(err))
				summary.Failed++
				continue
			}
			_, moved, err := s.applyTracking(ctx, store, order, tracking)
			if err != nil {
				s.logger.Warn("Tracking sync: update failed", zap.String("shop", store.Shop), zap.String("awb", order.AWB), zap.Error(err))
				summary.Failed++
				continue
			}
			if moved {
				summary.Updated++
			}
		}
	}
	s.logger.Info("Tracking sync finished",
		zap.Int("stores", summary.Stores),
		zap.Int("checked", summary.Checked),
		zap.Int("updated", summary.Updated),
		zap.Int("failed", summary.Failed),
	)
	return summary
}

// SyncTracking runs one pass unless another is in progress
func (s *shippingService) SyncTracking(ctx context.Context) (TrackingSyncSummary, error) {
	if !trackingSyncMu.TryLock() {
		return TrackingSyncSummary{}, &errors.ErrConflict{Message: "tracking sync already running"}
	}
	defer trackingSyncMu.Unlock()
	return s.RunTrackingSyncOnce(ctx), nil
}

// RunTrackingSyncLoop runs sync once, then every interval until ctx is done. Call from a goroutine.
func (s *shippingService) RunTrackingSyncLoop(ctx context.Context) {
	trackingSyncMu.Lock()
	s.RunTrackingSyncOnce(ctx)
	trackingSyncMu.Unlock()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			trackingSyncMu.Lock()
			s.RunTrackingSyncOnce(ctx)
			trackingSyncMu.Unlock()
		}
	}
}
