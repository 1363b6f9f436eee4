// Package settings reads and updates the admin-editable panel settings.
package settings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"licensepanel/internal/notify"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

// ErrInvalid wraps settings that fail validation.
var ErrInvalid = errors.New("invalid settings")

// Service wraps the settings repository.
type Service struct {
	repo     store.SettingsRepository
	validate *validator.Validate
	logger   *slog.Logger
}

// NewService returns a settings service.
func NewService(repo store.SettingsRepository, logger *slog.Logger) *Service {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, validate: v, logger: logger.With(slog.String("component", "settings"))}
}

// Get returns the stored settings, or the defaults when none are stored.
func (s *Service) Get(ctx context.Context) (domain.Settings, error) {
	return s.repo.Get(ctx)
}

// Replace validates next and stores it whole.
func (s *Service) Replace(ctx context.Context, next domain.Settings) (domain.Settings, error) {
	return s.Update(ctx, func(cur *domain.Settings) { *cur = next })
}

// Update applies fn to the current settings and stores the result when it
// passes validation.
func (s *Service) Update(ctx context.Context, fn func(*domain.Settings)) (domain.Settings, error) {
	updated, err := s.repo.Update(ctx, func(cur *domain.Settings) error {
		fn(cur)
		cur.ValidationResponse.CustomMessage.Text = strings.TrimSpace(cur.ValidationResponse.CustomMessage.Text)
		return s.check(*cur)
	})
	if err != nil {
		return domain.Settings{}, err
	}
	s.logger.InfoContext(ctx, "settings updated",
		slog.Bool("require_discord_id", updated.ValidationResponse.RequireDiscordID),
		slog.Bool("custom_message", updated.ValidationResponse.CustomMessage.Enabled),
	)
	return updated, nil
}

func (s *Service) check(v domain.Settings) error {
	err := s.validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s must be a valid %s", fe.Namespace(), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(fields, "; "))
}

// WebhookURL returns the Discord webhook configured for kind.
func (s *Service) WebhookURL(ctx context.Context, kind notify.Kind) (string, error) {
	cur, err := s.repo.Get(ctx)
	if err != nil {
		return "", err
	}
	switch kind {
	case notify.KindLicense:
		return cur.Webhooks.LicenseEvents, nil
	case notify.KindValidation:
		return cur.Webhooks.ValidationEvents, nil
	case notify.KindBlacklist:
		return cur.Webhooks.BlacklistEvents, nil
	}
	return "", nil
}

var _ notify.URLResolver = (*Service)(nil)
