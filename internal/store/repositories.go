package store

import (
	"context"
	"errors"

	"licensepanel/pkg/contracts/domain"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when inserting a record whose key is taken.
	ErrDuplicate = errors.New("record already exists")
	// ErrCorrupt is returned when a document cannot be decoded.
	ErrCorrupt = errors.New("corrupt document")
)

// LicenseRepository persists licenses keyed by license key.
type LicenseRepository interface {
	Get(ctx context.Context, key string) (domain.License, error)
	List(ctx context.Context) ([]domain.License, error)
	Insert(ctx context.Context, lic domain.License) error
	// Update applies fn to the license with key under the collection lock.
	// The change is discarded when fn returns an error.
	Update(ctx context.Context, key string, fn func(*domain.License) error) (domain.License, error)
	Delete(ctx context.Context, key string) error
	// Mutate replaces the whole collection with the result of fn atomically.
	Mutate(ctx context.Context, fn func([]domain.License) ([]domain.License, error)) error
}

// ProductRepository persists products keyed by id.
type ProductRepository interface {
	Get(ctx context.Context, id string) (domain.Product, error)
	List(ctx context.Context) ([]domain.Product, error)
	Insert(ctx context.Context, p domain.Product) error
	Update(ctx context.Context, id string, fn func(*domain.Product) error) (domain.Product, error)
	Delete(ctx context.Context, id string) error
	// FindOrCreate returns the first product matching match, inserting the
	// result of create when there is none. The bool reports a new insert.
	FindOrCreate(ctx context.Context, match func(domain.Product) bool, create func() domain.Product) (domain.Product, bool, error)
}

// BlacklistRepository persists the blacklist document.
type BlacklistRepository interface {
	Get(ctx context.Context) (domain.Blacklist, error)
	Update(ctx context.Context, fn func(*domain.Blacklist) error) (domain.Blacklist, error)
}

// SettingsRepository persists the settings document.
type SettingsRepository interface {
	Get(ctx context.Context) (domain.Settings, error)
	Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error)
}

// VoucherRepository persists vouchers keyed by code.
type VoucherRepository interface {
	Get(ctx context.Context, code string) (domain.Voucher, error)
	List(ctx context.Context) ([]domain.Voucher, error)
	InsertMany(ctx context.Context, vouchers []domain.Voucher) error
	Update(ctx context.Context, code string, fn func(*domain.Voucher) error) (domain.Voucher, error)
	Delete(ctx context.Context, code string) error
}

// ValidationLogRepository keeps the newest validation attempts.
type ValidationLogRepository interface {
	Append(ctx context.Context, entry domain.ValidationLog) error
	List(ctx context.Context, limit int) ([]domain.ValidationLog, error)
	Clear(ctx context.Context) error
}

// BotLogRepository keeps the newest bot command invocations.
type BotLogRepository interface {
	Append(ctx context.Context, entry domain.BotLog) error
	List(ctx context.Context, limit int) ([]domain.BotLog, error)
	Clear(ctx context.Context) error
}
