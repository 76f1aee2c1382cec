package service

import (
	"context"
	stderrors "errors"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/internal/shopify"
	"github.com/jafarshop/opsapi/pkg/errors"
)

type tenancyService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewTenancyService creates the business/store authorization service
func NewTenancyService(d Deps) *tenancyService {
	return &tenancyService{repos: d.Repos, logger: d.Logger}
}

// AuthUserForBusiness returns the business and the caller's active membership
func (s *tenancyService) AuthUserForBusiness(ctx context.Context, uid string, businessID uuid.UUID) (*domain.Business, *domain.BusinessMember, error) {
	business, err := s.repos.Business.GetByID(ctx, businessID)
	if err != nil {
		return nil, nil, err
	}
	member, err := s.repos.Business.GetMember(ctx, businessID, uid)
	if isNotFound(err) {
		return nil, nil, &errors.ErrForbidden{Message: "not a member of this business"}
	}
	if err != nil {
		return nil, nil, err
	}
	if !member.IsActive {
		return nil, nil, &errors.ErrForbidden{Message: "business membership is inactive"}
	}
	return business, member, nil
}

// AuthUserForStore allows direct store members and active members of the owning business
func (s *tenancyService) AuthUserForStore(ctx context.Context, uid, shop string) (*domain.Store, error) {
	store, err := s.repos.Store.GetByShop(ctx, shopify.NormalizeShopDomain(shop))
	if err != nil {
		return nil, err
	}
	if _, err := s.repos.Store.GetMember(ctx, store.Shop, uid); err == nil {
		return store, nil
	} else if !isNotFound(err) {
		return nil, err
	}
	if store.BusinessID != nil {
		member, err := s.repos.Business.GetMember(ctx, *store.BusinessID, uid)
		if err == nil && member.IsActive {
			return store, nil
		}
		if err != nil && !isNotFound(err) {
			return nil, err
		}
	}
	return nil, &errors.ErrForbidden{Message: "no access to this store"}
}

// AuthUserForBusinessAndStore additionally requires the store to belong to the business
func (s *tenancyService) AuthUserForBusinessAndStore(ctx context.Context, uid string, businessID uuid.UUID, shop string) (*domain.Business, *domain.Store, error) {
	business, _, err := s.AuthUserForBusiness(ctx, uid, businessID)
	if err != nil {
		return nil, nil, err
	}
	store, err := s.repos.Store.GetByShop(ctx, shopify.NormalizeShopDomain(shop))
	if err != nil {
		return nil, nil, err
	}
	if store.BusinessID == nil || *store.BusinessID != businessID {
		return nil, nil, &errors.ErrForbidden{Message: "store is not linked to this business"}
	}
	return business, store, nil
}

// CreateBusiness creates a business with the caller as owner
func (s *tenancyService) CreateBusiness(ctx context.Context, uid, email string, req CreateBusinessRequest) (*domain.Business, error) {
	business := &domain.Business{Name: strings.TrimSpace(req.Name), OwnerUID: uid}
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		if err := repos.Business.Create(ctx, business); err != nil {
			return err
		}
		return repos.Business.UpsertMember(ctx, &domain.BusinessMember{
			BusinessID: business.ID,
			UID:        uid,
			Email:      email,
			Role:       domain.RoleOwner,
			IsActive:   true,
		})
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Business created", zap.String("business_id", business.ID.String()), zap.String("owner_uid", uid))
	return business, nil
}

func (s *tenancyService) GetBusiness(ctx context.Context, uid string, businessID uuid.UUID) (*domain.Business, error) {
	business, _, err := s.AuthUserForBusiness(ctx, uid, businessID)
	return business, err
}

func (s *tenancyService) ListMembers(ctx context.Context, uid string, businessID uuid.UUID) ([]*domain.BusinessMember, error) {
	if _, _, err := s.AuthUserForBusiness(ctx, uid, businessID); err != nil {
		return nil, err
	}
	return s.repos.Business.ListMembers(ctx, businessID)
}

// AddMember adds or re-activates a member. Only owners and admins may do this.
func (s *tenancyService) AddMember(ctx context.Context, uid string, businessID uuid.UUID, req AddMemberRequest) (*domain.BusinessMember, error) {
	_, caller, err := s.AuthUserForBusiness(ctx, uid, businessID)
	if err != nil {
		return nil, err
	}
	if !caller.Role.CanManageMembers() {
		return nil, &errors.ErrForbidden{Message: "only owners and admins can manage members"}
	}
	if req.Role == domain.RoleOwner || !req.Role.IsValid() {
		return nil, errors.Validation("role must be admin or member")
	}
	if existing, err := s.repos.Business.GetMember(ctx, businessID, req.UID); err == nil && existing.Role == domain.RoleOwner {
		return nil, &errors.ErrConflict{Message: "the owner's role cannot be changed"}
	}
	member := &domain.BusinessMember{
		BusinessID: businessID,
		UID:        req.UID,
		Email:      req.Email,
		Role:       req.Role,
		IsActive:   true,
	}
	if err := s.repos.Business.UpsertMember(ctx, member); err != nil {
		return nil, err
	}
	return member, nil
}

// RemoveMember removes a member; the owner can never be removed
func (s *tenancyService) RemoveMember(ctx context.Context, uid string, businessID uuid.UUID, memberUID string) error {
	business, caller, err := s.AuthUserForBusiness(ctx, uid, businessID)
	if err != nil {
		return err
	}
	if !caller.Role.CanManageMembers() {
		return &errors.ErrForbidden{Message: "only owners and admins can manage members"}
	}
	if memberUID == business.OwnerUID {
		return &errors.ErrConflict{Message: "the business owner cannot be removed"}
	}
	return s.repos.Business.RemoveMember(ctx, businessID, memberUID)
}

// LinkStore attaches a store the caller can access to one of the caller's businesses
func (s *tenancyService) LinkStore(ctx context.Context, uid string, businessID uuid.UUID, shop string) (*domain.Store, error) {
	_, caller, err := s.AuthUserForBusiness(ctx, uid, businessID)
	if err != nil {
		return nil, err
	}
	if !caller.Role.CanManageMembers() {
		return nil, &errors.ErrForbidden{Message: "only owners and admins can link stores"}
	}
	store, err := s.AuthUserForStore(ctx, uid, shop)
	if err != nil {
		return nil, err
	}
	if store.BusinessID != nil {
		if *store.BusinessID == businessID {
			return store, nil
		}
		return nil, &errors.ErrConflict{Message: "store is already linked to another business"}
	}
	store.BusinessID = &businessID
	if err := s.repos.Store.Update(ctx, store); err != nil {
		return nil, err
	}
	s.logger.Info("Store linked to business", zap.String("shop", store.Shop), zap.String("business_id", businessID.String()))
	return store, nil
}

func (s *tenancyService) ListStores(ctx context.Context, uid string, businessID uuid.UUID) ([]*domain.Store, error) {
	if _, _, err := s.AuthUserForBusiness(ctx, uid, businessID); err != nil {
		return nil, err
	}
	return s.repos.Store.ListByBusiness(ctx, businessID)
}

// AuthenticateServiceKey resolves the key presented on internal routes
func (s *tenancyService) AuthenticateServiceKey(ctx context.Context, apiKey string) (*domain.ServiceKey, error) {
	key, err := s.repos.ServiceKey.GetByAPIKey(ctx, apiKey)
	if err != nil {
		return nil, err
	}
	if !key.IsActive {
		return nil, &errors.ErrUnauthorized{Message: "service key is inactive"}
	}
	return key, nil
}

func isNotFound(err error) bool {
	var nf *errors.ErrNotFound
	return stderrors.As(err, &nf)
}
