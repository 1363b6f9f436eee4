package store

import (
	"context"
	"fmt"
	"slices"

	"licensepanel/pkg/contracts/domain"
)

// VoucherStore is the vouchers.json repository.
type VoucherStore struct {
	doc *Document[[]domain.Voucher]
}

// NewVoucherStore returns a store backed by path.
func NewVoucherStore(path string) *VoucherStore {
	return &VoucherStore{doc: NewDocument(path, func() []domain.Voucher { return []domain.Voucher{} })}
}

func indexVoucher(vouchers []domain.Voucher, code string) int {
	return slices.IndexFunc(vouchers, func(v domain.Voucher) bool { return v.Code == code })
}

func (s *VoucherStore) Get(ctx context.Context, code string) (domain.Voucher, error) {
	vouchers, err := s.doc.Read(ctx)
	if err != nil {
		return domain.Voucher{}, err
	}
	i := indexVoucher(vouchers, code)
	if i < 0 {
		return domain.Voucher{}, fmt.Errorf("voucher %q: %w", code, ErrNotFound)
	}
	return vouchers[i], nil
}

func (s *VoucherStore) List(ctx context.Context) ([]domain.Voucher, error) {
	return s.doc.Read(ctx)
}

func (s *VoucherStore) InsertMany(ctx context.Context, batch []domain.Voucher) error {
	return s.doc.Update(ctx, func(vouchers *[]domain.Voucher) error {
		for _, v := range batch {
			if indexVoucher(*vouchers, v.Code) >= 0 {
				return fmt.Errorf("voucher %q: %w", v.Code, ErrDuplicate)
			}
		}
		*vouchers = append(*vouchers, batch...)
		return nil
	})
}

func (s *VoucherStore) Update(ctx context.Context, code string, fn func(*domain.Voucher) error) (domain.Voucher, error) {
	var updated domain.Voucher
	err := s.doc.Update(ctx, func(vouchers *[]domain.Voucher) error {
		i := indexVoucher(*vouchers, code)
		if i < 0 {
			return fmt.Errorf("voucher %q: %w", code, ErrNotFound)
		}
		v := (*vouchers)[i]
		if err := fn(&v); err != nil {
			return err
		}
		(*vouchers)[i] = v
		updated = v
		return nil
	})
	return updated, err
}

func (s *VoucherStore) Delete(ctx context.Context, code string) error {
	return s.doc.Update(ctx, func(vouchers *[]domain.Voucher) error {
		i := indexVoucher(*vouchers, code)
		if i < 0 {
			return fmt.Errorf("voucher %q: %w", code, ErrNotFound)
		}
		*vouchers = slices.Delete(*vouchers, i, i+1)
		return nil
	})
}
