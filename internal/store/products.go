package store

import (
	"context"
	"fmt"
	"slices"

	"licensepanel/pkg/contracts/domain"
)

// ProductStore is the products.json repository.
type ProductStore struct {
	doc *Document[[]domain.Product]
}

// NewProductStore returns a store backed by path.
func NewProductStore(path string) *ProductStore {
	return &ProductStore{doc: NewDocument(path, func() []domain.Product { return []domain.Product{} })}
}

func indexProduct(products []domain.Product, id string) int {
	return slices.IndexFunc(products, func(p domain.Product) bool { return p.ID == id })
}

func (s *ProductStore) Get(ctx context.Context, id string) (domain.Product, error) {
	products, err := s.doc.Read(ctx)
	if err != nil {
		return domain.Product{}, err
	}
	i := indexProduct(products, id)
	if i < 0 {
		return domain.Product{}, fmt.Errorf("product %q: %w", id, ErrNotFound)
	}
	return products[i], nil
}

func (s *ProductStore) List(ctx context.Context) ([]domain.Product, error) {
	return s.doc.Read(ctx)
}

func (s *ProductStore) Insert(ctx context.Context, p domain.Product) error {
	return s.doc.Update(ctx, func(products *[]domain.Product) error {
		if indexProduct(*products, p.ID) >= 0 {
			return fmt.Errorf("product %q: %w", p.ID, ErrDuplicate)
		}
		*products = append(*products, p)
		return nil
	})
}

func (s *ProductStore) Update(ctx context.Context, id string, fn func(*domain.Product) error) (domain.Product, error) {
	var updated domain.Product
	err := s.doc.Update(ctx, func(products *[]domain.Product) error {
		i := indexProduct(*products, id)
		if i < 0 {
			return fmt.Errorf("product %q: %w", id, ErrNotFound)
		}
		p := (*products)[i]
		if err := fn(&p); err != nil {
			return err
		}
		(*products)[i] = p
		updated = p
		return nil
	})
	return updated, err
}

func (s *ProductStore) Delete(ctx context.Context, id string) error {
	return s.doc.Update(ctx, func(products *[]domain.Product) error {
		i := indexProduct(*products, id)
		if i < 0 {
			return fmt.Errorf("product %q: %w", id, ErrNotFound)
		}
		*products = slices.Delete(*products, i, i+1)
		return nil
	})
}

func (s *ProductStore) FindOrCreate(ctx context.Context, match func(domain.Product) bool, create func() domain.Product) (domain.Product, bool, error) {
	var (
		found   domain.Product
		created bool
	)
	err := s.doc.Update(ctx, func(products *[]domain.Product) error {
		if i := slices.IndexFunc(*products, match); i >= 0 {
			found = (*products)[i]
			return errUnchanged
		}
		found = create()
		created = true
		*products = append(*products, found)
		return nil
	})
	return found, created, err
}
