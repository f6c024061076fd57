package masterdata

import (
	"context"
	"errors"
	"fmt"

	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// Service answers the reference checks the procurement core relies on.
// Unknown or inactive references surface as shared.ErrReferentialIntegrity
// with the offending ids in the error details.
type Service struct {
	repo Repository
}

// NewService creates a new master data service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// CheckSupplier verifies the supplier exists and is active.
func (s *Service) CheckSupplier(ctx context.Context, id int64) error {
	supplier, err := s.repo.GetSupplier(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return shared.WithDetails(fmt.Errorf("%w: supplier %d unknown", shared.ErrReferentialIntegrity, id), map[string]any{"supplier_id": id})
	}
	if err != nil {
		return err
	}
	if !supplier.IsActive {
		return shared.WithDetails(fmt.Errorf("%w: supplier %d inactive", shared.ErrReferentialIntegrity, id), map[string]any{"supplier_id": id})
	}
	return nil
}

// CheckProducts verifies every product exists and is active.
func (s *Service) CheckProducts(ctx context.Context, ids []int64) error {
	products, err := s.repo.ProductsByID(ctx, ids)
	if err != nil {
		return err
	}
	active := make(map[int64]bool, len(products))
	for _, p := range products {
		active[p.ID] = p.IsActive
	}
	var offending []int64
	for _, id := range ids {
		if !active[id] {
			offending = append(offending, id)
		}
	}
	if len(offending) > 0 {
		return shared.WithDetails(fmt.Errorf("%w: products unknown or inactive", shared.ErrReferentialIntegrity), map[string]any{"product_ids": offending})
	}
	return nil
}

// CheckLocation verifies the location exists and is active.
func (s *Service) CheckLocation(ctx context.Context, id int64) error {
	location, err := s.repo.GetLocation(ctx, id)
	if errors.Is(err, ErrNotFound) || (err == nil && !location.IsActive) {
		return shared.WithDetails(fmt.Errorf("%w: location %d", shared.ErrReferentialIntegrity, id), map[string]any{"location_id": id})
	}
	return err
}

// DefaultLocation returns the id of the default receiving location.
func (s *Service) DefaultLocation(ctx context.Context) (int64, error) {
	location, err := s.repo.DefaultLocation(ctx)
	if errors.Is(err, ErrNotFound) {
		return 0, fmt.Errorf("%w: no default location configured", shared.ErrReferentialIntegrity)
	}
	if err != nil {
		return 0, err
	}
	return location.ID, nil
}

// GetQuotation loads a quotation with its lines.
func (s *Service) GetQuotation(ctx context.Context, id int64) (Quotation, error) {
	if id <= 0 {
		return Quotation{}, ErrNotFound
	}
	return s.repo.GetQuotation(ctx, id)
}

// ListProducts lists catalog products.
func (s *Service) ListProducts(ctx context.Context, filters ListFilters) ([]Product, error) {
	return s.repo.ListProducts(ctx, filters)
}

// ListSuppliers lists suppliers.
func (s *Service) ListSuppliers(ctx context.Context, filters ListFilters) ([]Supplier, error) {
	return s.repo.ListSuppliers(ctx, filters)
}

// ListLocations lists stock locations.
func (s *Service) ListLocations(ctx context.Context) ([]Location, error) {
	return s.repo.ListLocations(ctx)
}
