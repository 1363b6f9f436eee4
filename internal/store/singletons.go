package store

import (
	"context"

	"licensepanel/pkg/contracts/domain"
)

// BlacklistStore is the blacklist.json repository.
type BlacklistStore struct {
	doc *Document[domain.Blacklist]
}

// NewBlacklistStore returns a store backed by path.
func NewBlacklistStore(path string) *BlacklistStore {
	return &BlacklistStore{doc: NewDocument(path, func() domain.Blacklist {
		return domain.Blacklist{IPs: []string{}, HWIDs: []string{}, DiscordIDs: []string{}}
	})}
}

func (s *BlacklistStore) Get(ctx context.Context) (domain.Blacklist, error) {
	return s.doc.Read(ctx)
}

func (s *BlacklistStore) Update(ctx context.Context, fn func(*domain.Blacklist) error) (domain.Blacklist, error) {
	var out domain.Blacklist
	err := s.doc.Update(ctx, func(bl *domain.Blacklist) error {
		if err := fn(bl); err != nil {
			return err
		}
		out = *bl
		return nil
	})
	return out, err
}

// SettingsStore is the settings.json repository.
type SettingsStore struct {
	doc *Document[domain.Settings]
}

// NewSettingsStore returns a store backed by path.
func NewSettingsStore(path string) *SettingsStore {
	return &SettingsStore{doc: NewDocument(path, domain.DefaultSettings)}
}

func (s *SettingsStore) Get(ctx context.Context) (domain.Settings, error) {
	return s.doc.Read(ctx)
}

func (s *SettingsStore) Update(ctx context.Context, fn func(*domain.Settings) error) (domain.Settings, error) {
	var out domain.Settings
	err := s.doc.Update(ctx, func(st *domain.Settings) error {
		if err := fn(st); err != nil {
			return err
		}
		out = *st
		return nil
	})
	return out, err
}
