package store

import (
	"context"
	"fmt"
	"slices"

	"licensepanel/pkg/contracts/domain"
)

// LicenseStore is the licenses.json repository.
type LicenseStore struct {
	doc *Document[[]domain.License]
}

// NewLicenseStore returns a store backed by path.
func NewLicenseStore(path string) *LicenseStore {
	return &LicenseStore{doc: NewDocument(path, func() []domain.License { return []domain.License{} })}
}

func indexLicense(licenses []domain.License, key string) int {
	return slices.IndexFunc(licenses, func(l domain.License) bool { return l.Key == key })
}

func (s *LicenseStore) Get(ctx context.Context, key string) (domain.License, error) {
	licenses, err := s.doc.Read(ctx)
	if err != nil {
		return domain.License{}, err
	}
	i := indexLicense(licenses, key)
	if i < 0 {
		return domain.License{}, fmt.Errorf("license %q: %w", key, ErrNotFound)
	}
	return licenses[i], nil
}

func (s *LicenseStore) List(ctx context.Context) ([]domain.License, error) {
	return s.doc.Read(ctx)
}

func (s *LicenseStore) Insert(ctx context.Context, lic domain.License) error {
	return s.doc.Update(ctx, func(licenses *[]domain.License) error {
		if indexLicense(*licenses, lic.Key) >= 0 {
			return fmt.Errorf("license %q: %w", lic.Key, ErrDuplicate)
		}
		*licenses = append(*licenses, lic)
		return nil
	})
}

func (s *LicenseStore) Update(ctx context.Context, key string, fn func(*domain.License) error) (domain.License, error) {
	var updated domain.License
	err := s.doc.Update(ctx, func(licenses *[]domain.License) error {
		i := indexLicense(*licenses, key)
		if i < 0 {
			return fmt.Errorf("license %q: %w", key, ErrNotFound)
		}
		lic := (*licenses)[i].Clone()
		if err := fn(&lic); err != nil {
			return err
		}
		(*licenses)[i] = lic
		updated = lic
		return nil
	})
	if err != nil {
		return domain.License{}, err
	}
	return updated, nil
}

func (s *LicenseStore) Delete(ctx context.Context, key string) error {
	return s.doc.Update(ctx, func(licenses *[]domain.License) error {
		i := indexLicense(*licenses, key)
		if i < 0 {
			return fmt.Errorf("license %q: %w", key, ErrNotFound)
		}
		*licenses = slices.Delete(*licenses, i, i+1)
		return nil
	})
}

func (s *LicenseStore) Mutate(ctx context.Context, fn func([]domain.License) ([]domain.License, error)) error {
	return s.doc.Update(ctx, func(licenses *[]domain.License) error {
		next, err := fn(slices.Clone(*licenses))
		if err != nil {
			return err
		}
		*licenses = next
		return nil
	})
}
