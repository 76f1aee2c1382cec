package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/courier"
	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type storeService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewStoreService creates the store integration settings service
func NewStoreService(d Deps) *storeService {
	return &storeService{repos: d.Repos, logger: d.Logger}
}

// View masks every credential before it leaves the service
func View(store *domain.Store) StoreView {
	v := StoreView{
		Shop:           store.Shop,
		Name:           store.Name,
		BusinessID:     store.BusinessID,
		APIVersion:     store.APIVersion,
		AutoCapture:    store.AutoCapture,
		InteraktSet:    store.Integrations.Interakt != nil && store.Integrations.Interakt.APIKey != "",
		Couriers:       map[string]domain.CourierCredentials{},
		DefaultCourier: store.Integrations.DefaultCourier,
	}
	for name, creds := range store.Integrations.Couriers {
		v.Couriers[name] = courier.Mask(creds)
	}
	return v
}

// SetCourierCredentials saves one courier's credentials on the store
func (s *storeService) SetCourierCredentials(ctx context.Context, store *domain.Store, req CourierCredentialsRequest) (StoreView, error) {
	name := strings.ToLower(strings.TrimSpace(req.Courier))
	if !domain.IsSupportedCourier(name) {
		return StoreView{}, errors.Validation("unsupported courier %q", req.Courier)
	}
	creds := req.Credentials
	creds.Enabled = true
	if err := courier.ValidateCredentials(name, creds); err != nil {
		return StoreView{}, err
	}

	if store.Integrations.Couriers == nil {
		store.Integrations.Couriers = map[string]domain.CourierCredentials{}
	}
	store.Integrations.Couriers[name] = creds
	if req.MakeDefault || store.Integrations.DefaultCourier == "" {
		store.Integrations.DefaultCourier = name
	}
	if err := s.repos.Store.Update(ctx, store); err != nil {
		return StoreView{}, err
	}
	s.logger.Info("Courier credentials updated", zap.String("shop", store.Shop), zap.String("courier", name))
	return View(store), nil
}

// SetInteraktKey stores the WhatsApp API key
func (s *storeService) SetInteraktKey(ctx context.Context, store *domain.Store, req InteraktRequest) (StoreView, error) {
	store.Integrations.Interakt = &domain.InteraktCredentials{APIKey: strings.TrimSpace(req.APIKey)}
	if err := s.repos.Store.Update(ctx, store); err != nil {
		return StoreView{}, err
	}
	s.logger.Info("Interakt key updated", zap.String("shop", store.Shop))
	return View(store), nil
}

func (s *storeService) UpdateSettings(ctx context.Context, store *domain.Store, req StoreSettingsRequest) (StoreView, error) {
	if req.Name != nil {
		store.Name = strings.TrimSpace(*req.Name)
	}
	if req.AutoCapture != nil {
		store.AutoCapture = *req.AutoCapture
	}
	if err := s.repos.Store.Update(ctx, store); err != nil {
		return StoreView{}, err
	}
	return View(store), nil
}
