package store

import (
	"context"

	"licensepanel/pkg/contracts/domain"
)

// CappedLog keeps entries newest first and drops the oldest beyond max.
type CappedLog[T any] struct {
	doc *Document[[]T]
	max int
}

// NewCappedLog returns a log backed by path holding at most max entries.
func NewCappedLog[T any](path string, max int) *CappedLog[T] {
	return &CappedLog[T]{doc: NewDocument(path, func() []T { return []T{} }), max: max}
}

// Append stores entry at the head of the log.
func (l *CappedLog[T]) Append(ctx context.Context, entry T) error {
	return l.doc.Update(ctx, func(entries *[]T) error {
		next := make([]T, 0, min(len(*entries)+1, l.max))
		next = append(next, entry)
		for _, e := range *entries {
			if len(next) == l.max {
				break
			}
			next = append(next, e)
		}
		*entries = next
		return nil
	})
}

// List returns up to limit entries, newest first. limit <= 0 returns all.
func (l *CappedLog[T]) List(ctx context.Context, limit int) ([]T, error) {
	entries, err := l.doc.Read(ctx)
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Clear removes every entry.
func (l *CappedLog[T]) Clear(ctx context.Context) error {
	return l.doc.Update(ctx, func(entries *[]T) error {
		*entries = []T{}
		return nil
	})
}

var (
	_ ValidationLogRepository = (*CappedLog[domain.ValidationLog])(nil)
	_ BotLogRepository        = (*CappedLog[domain.BotLog])(nil)
)
