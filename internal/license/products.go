package license

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

// ProductParams describes a product to create or the new values of one.
type ProductParams struct {
	Name                 string
	HWIDProtection       bool
	BuiltByBitResourceID string
}

// ProductService manages the product catalogue.
type ProductService struct {
	products store.ProductRepository
	licenses store.LicenseRepository
	logger   *slog.Logger
	now      func() time.Time
}

// NewProductService returns a product service.
func NewProductService(products store.ProductRepository, licenses store.LicenseRepository, logger *slog.Logger) *ProductService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProductService{
		products: products,
		licenses: licenses,
		logger:   logger.With(slog.String("component", "products")),
		now:      time.Now,
	}
}

func (p ProductParams) normalized() (ProductParams, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.BuiltByBitResourceID = strings.TrimSpace(p.BuiltByBitResourceID)
	if p.Name == "" {
		return p, ErrProductNameMissing
	}
	return p, nil
}

// Create stores a new product.
func (s *ProductService) Create(ctx context.Context, p ProductParams) (domain.Product, error) {
	p, err := p.normalized()
	if err != nil {
		return domain.Product{}, err
	}
	product := domain.Product{
		ID:                   uuid.NewString(),
		Name:                 p.Name,
		HWIDProtection:       p.HWIDProtection,
		BuiltByBitResourceID: p.BuiltByBitResourceID,
		CreatedAt:            s.now().UTC(),
	}
	if err := s.products.Insert(ctx, product); err != nil {
		return domain.Product{}, err
	}
	s.logger.InfoContext(ctx, "product created",
		slog.String("product_id", product.ID),
		slog.String("name", product.Name),
		slog.Bool("hwid_protection", product.HWIDProtection),
	)
	return product, nil
}

// Update replaces the editable fields of product id.
func (s *ProductService) Update(ctx context.Context, id string, p ProductParams) (domain.Product, error) {
	p, err := p.normalized()
	if err != nil {
		return domain.Product{}, err
	}
	product, err := s.products.Update(ctx, id, func(cur *domain.Product) error {
		cur.Name = p.Name
		cur.HWIDProtection = p.HWIDProtection
		cur.BuiltByBitResourceID = p.BuiltByBitResourceID
		return nil
	})
	if err != nil {
		return domain.Product{}, productErr(id, err)
	}
	s.logger.InfoContext(ctx, "product updated", slog.String("product_id", id))
	return product, nil
}

// Delete removes product id. Products with licenses cannot be removed.
func (s *ProductService) Delete(ctx context.Context, id string) error {
	licenses, err := s.licenses.List(ctx)
	if err != nil {
		return err
	}
	if slices.ContainsFunc(licenses, func(l domain.License) bool { return l.ProductID == id }) {
		return fmt.Errorf("%w: %s", ErrProductInUse, id)
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return productErr(id, err)
	}
	s.logger.InfoContext(ctx, "product deleted", slog.String("product_id", id))
	return nil
}

// Get returns product id.
func (s *ProductService) Get(ctx context.Context, id string) (domain.Product, error) {
	product, err := s.products.Get(ctx, id)
	if err != nil {
		return domain.Product{}, productErr(id, err)
	}
	return product, nil
}

// List returns every product sorted by name.
func (s *ProductService) List(ctx context.Context) ([]domain.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name))
	})
	return products, nil
}

// Names maps product ids to names.
func (s *ProductService) Names(ctx context.Context) (map[string]string, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(products))
	for _, p := range products {
		names[p.ID] = p.Name
	}
	return names, nil
}

func productErr(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	return err
}
