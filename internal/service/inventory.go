package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/opsapi/internal/domain"
	"github.com/jafarshop/opsapi/internal/repository"
	"github.com/jafarshop/opsapi/pkg/errors"
)

const maxUPCPage = 1000

type inventoryService struct {
	repos  *repository.Repositories
	logger *zap.Logger
}

// NewInventoryService creates the UPC inventory service
func NewInventoryService(d Deps) *inventoryService {
	return &inventoryService{repos: d.Repos, logger: d.Logger}
}

func (s *inventoryService) ListUPCs(ctx context.Context, businessID uuid.UUID, filter repository.UPCFilter) ([]*domain.UPC, error) {
	if filter.PutAway != "" && !filter.PutAway.IsValid() {
		return nil, errors.Validation("unknown putAway state %q", filter.PutAway)
	}
	if filter.Limit <= 0 || filter.Limit > maxUPCPage {
		filter.Limit = maxUPCPage
	}
	return s.repos.UPC.List(ctx, businessID, filter)
}

// PutAway shelves received units: none -> inbound at location. Every unit must
// exist and still be unshelved or nothing is changed.
func (s *inventoryService) PutAway(ctx context.Context, businessID uuid.UUID, req PutAwayRequest) ([]*domain.UPC, error) {
	location := strings.TrimSpace(req.Location)
	if location == "" {
		return nil, errors.Validation("location is required")
	}
	ids := dedupeIDs(req.UPCIDs)

	var units []*domain.UPC
	err := s.repos.Tx.WithinTx(ctx, func(ctx context.Context, repos *repository.Repositories) error {
		var err error
		units, err = repos.UPC.GetByIDs(ctx, businessID, ids)
		if err != nil {
			return err
		}
		found := make(map[uuid.UUID]bool, len(units))
		fields := map[string]string{}
		for _, u := range units {
			found[u.ID] = true
			if u.PutAway != domain.PutAwayNone {
				fields[u.ID.String()] = fmt.Sprintf("already %s", u.PutAway)
			}
		}
		for _, id := range ids {
			if !found[id] {
				fields[id.String()] = "not found"
			}
		}
		if len(fields) > 0 {
			return &errors.ErrValidation{Message: "units cannot be put away", Fields: fields}
		}

		for _, u := range units {
			u.PutAway = domain.PutAwayInbound
			u.Location = location
		}
		for _, chunk := range repository.Chunk(units, repository.BatchSize) {
			if err := repos.UPC.UpdateBatch(ctx, chunk); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info("Units put away", zap.String("business_id", businessID.String()), zap.String("location", location), zap.Int("units", len(units)))
	return units, nil
}

// Summary counts units per SKU by put-away state
func (s *inventoryService) Summary(ctx context.Context, businessID uuid.UUID) ([]domain.InventorySummary, error) {
	return s.repos.UPC.Summary(ctx, businessID)
}
