package license

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"licensepanel/internal/notify"
	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

// unknownIP stands in for an empty source address in logs. It is never bound
// to an IP slot.
const unknownIP = "unknown"

// Request is one validation call.
type Request struct {
	Key       string
	HWID      string
	DiscordID string
	SourceIP  string
}

func (r Request) normalized() Request {
	r.Key = strings.TrimSpace(r.Key)
	r.HWID = strings.TrimSpace(r.HWID)
	r.DiscordID = strings.TrimSpace(r.DiscordID)
	r.SourceIP = strings.TrimSpace(r.SourceIP)
	if r.SourceIP == "" {
		r.SourceIP = unknownIP
	}
	return r
}

// Outcome classifies a validation result.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
	OutcomeError   Outcome = "error"
)

// Result is what the transport sends back.
type Result struct {
	Outcome    Outcome
	HTTPStatus int
	Body       any
	// Reason is the logged failure reason; empty on success.
	Reason string
	// License is the state after the attempt when the key resolved.
	License *domain.License
}

// Locator resolves the origin of a source IP. It returns nil when unknown.
type Locator interface {
	Lookup(ctx context.Context, ip string) *domain.Location
}

// LogPublisher receives every appended validation log entry.
type LogPublisher interface {
	PublishLog(entry domain.ValidationLog)
}

// EngineDeps wires an Engine.
type EngineDeps struct {
	Licenses  store.LicenseRepository
	Products  store.ProductRepository
	Blacklist store.BlacklistRepository
	Settings  store.SettingsRepository
	Logs      store.ValidationLogRepository
	Locator   Locator
	Publisher LogPublisher
	Notifier  notify.Sink
	Metrics   *Metrics
	Logger    *slog.Logger
	Now       func() time.Time
}

// Engine runs the validation pipeline behind /api/validate.
type Engine struct {
	deps   EngineDeps
	tracer trace.Tracer
	logger *slog.Logger
	now    func() time.Time
}

// NewEngine returns an engine using deps. Optional collaborators may be nil.
func NewEngine(deps EngineDeps) *Engine {
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		deps:   deps,
		tracer: otel.Tracer(TracerName),
		logger: logger.With(slog.String("component", "validation_engine")),
		now:    now,
	}
}

// errHalt stops a license update without writing it.
var errHalt = errors.New("validation halted")

// Validate applies the pipeline to req. Every rule failure and every success
// appends exactly one log entry; unexpected errors are only logged.
func (e *Engine) Validate(ctx context.Context, req Request) Result {
	ctx, span := e.tracer.Start(ctx, "license.validate")
	defer span.End()

	started := e.now()
	req = req.normalized()

	entry := domain.ValidationLog{
		ID:         uuid.NewString(),
		Timestamp:  started.UTC(),
		LicenseKey: req.Key,
		IP:         req.SourceIP,
		HWID:       req.HWID,
		DiscordID:  req.DiscordID,
	}
	if entry.LicenseKey == "" {
		entry.LicenseKey = domain.NoLicenseKey
	}

	res, err := e.run(ctx, req, &entry)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.ErrorContext(ctx, "validation failed unexpectedly",
			slog.String("license_key", entry.LicenseKey),
			slog.String("ip", req.SourceIP),
			slog.String("error", err.Error()),
		)
		e.deps.Metrics.recordValidation(ctx, OutcomeError, "", time.Since(started))
		return Result{
			Outcome:    OutcomeError,
			HTTPStatus: http.StatusInternalServerError,
			Body:       failureBody(internalErrorMessage),
		}
	}

	if res.Outcome == OutcomeSuccess {
		entry.Status = domain.LogSuccess
	} else {
		entry.Status = domain.LogFailure
		entry.Reason = res.Reason
	}
	if e.deps.Locator != nil {
		entry.Location = e.deps.Locator.Lookup(ctx, req.SourceIP)
	}
	e.record(ctx, entry)

	span.SetAttributes(
		attribute.String("validation.outcome", string(res.Outcome)),
		attribute.String("validation.reason", res.Reason),
		attribute.Int("http.status_code", res.HTTPStatus),
	)
	e.deps.Metrics.recordValidation(ctx, res.Outcome, res.Reason, time.Since(started))
	return res
}

func (e *Engine) record(ctx context.Context, entry domain.ValidationLog) {
	if err := e.deps.Logs.Append(ctx, entry); err != nil {
		e.logger.ErrorContext(ctx, "failed to append validation log",
			slog.String("license_key", entry.LicenseKey),
			slog.String("error", err.Error()),
		)
	}
	if e.deps.Publisher != nil {
		e.deps.Publisher.PublishLog(entry)
	}
	e.deps.Notifier.Notify(ctx, notify.ValidationEvent(entry))
}

func fail(f Failure, lic *domain.License) Result {
	return Result{
		Outcome:    OutcomeFailure,
		HTTPStatus: f.Status,
		Body:       failureBody(f.Message),
		Reason:     f.Reason,
		License:    lic,
	}
}

func (e *Engine) run(ctx context.Context, req Request, entry *domain.ValidationLog) (Result, error) {
	bl, err := e.deps.Blacklist.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	switch {
	case bl.Contains(domain.BlacklistIP, req.SourceIP):
		return fail(FailBlacklistedIP, nil), nil
	case bl.Contains(domain.BlacklistHWID, req.HWID):
		return fail(FailBlacklistedHWID, nil), nil
	case bl.Contains(domain.BlacklistDiscord, req.DiscordID):
		return fail(FailUserBlacklisted, nil), nil
	case req.Key == "":
		return fail(FailMissingKey, nil), nil
	}

	settings, err := e.deps.Settings.Get(ctx)
	if err != nil {
		return Result{}, err
	}
	if settings.ValidationResponse.RequireDiscordID && req.DiscordID == "" {
		return fail(FailMissingDiscordID, nil), nil
	}

	now := e.now()
	var (
		failure   *Failure
		product   domain.Product
		seen      bool
		boundIP   bool
		boundHWID bool
	)
	halt := func(f Failure) error {
		failure = &f
		return errHalt
	}

	lic, err := e.deps.Licenses.Update(ctx, req.Key, func(l *domain.License) error {
		seen = true
		entry.DiscordID = l.DiscordID

		p, err := e.deps.Products.Get(ctx, l.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return halt(FailProductNotFound)
		}
		if err != nil {
			return err
		}
		product = p
		entry.ProductName = p.Name

		if p.HWIDProtection && req.HWID == "" {
			return halt(FailHWIDRequired)
		}
		if bl.Contains(domain.BlacklistDiscord, l.DiscordID) {
			return halt(FailOwnerBlacklisted)
		}
		if req.DiscordID != "" && !l.Authorizes(req.DiscordID) {
			return halt(FailUnauthorized)
		}
		if l.IsExpired(now) {
			if l.Status == domain.LicenseStatusExpired {
				return halt(FailExpired)
			}
			l.Status = domain.LicenseStatusExpired
			l.UpdatedAt = now.UTC()
			f := FailExpired
			failure = &f
			e.deps.Metrics.recordExpiry(ctx)
			return nil
		}
		if l.Status != domain.LicenseStatusActive {
			return halt(FailInactive(string(l.Status)))
		}

		if !l.MaxIPs.IsDisabled() && req.SourceIP != unknownIP && !slices.Contains(l.AllowedIPs, req.SourceIP) {
			if !l.MaxIPs.Admits(len(l.AllowedIPs)) {
				return halt(FailMaxIPs)
			}
			l.AllowedIPs = append(l.AllowedIPs, req.SourceIP)
			boundIP = true
		}

		if p.HWIDProtection && req.HWID != "" && !slices.Contains(l.AllowedHWIDs, req.HWID) {
			if !l.MaxHWIDs.Admits(len(l.AllowedHWIDs)) {
				return halt(FailMaxHWIDs)
			}
			l.AllowedHWIDs = append(l.AllowedHWIDs, req.HWID)
			boundHWID = true
		}

		l.Validations++
		return nil
	})

	switch {
	case errors.Is(err, errHalt):
		return fail(*failure, nil), nil
	case errors.Is(err, store.ErrNotFound) && !seen:
		return fail(FailInvalidKey, nil), nil
	case err != nil:
		return Result{}, err
	case failure != nil:
		return fail(*failure, &lic), nil
	}

	if boundIP {
		e.deps.Metrics.recordBinding(ctx, string(domain.IdentityIP))
	}
	if boundHWID {
		e.deps.Metrics.recordBinding(ctx, string(domain.IdentityHWID))
	}
	return Result{
		Outcome:    OutcomeSuccess,
		HTTPStatus: http.StatusOK,
		Body:       ShapeSuccess(settings.ValidationResponse, lic, product),
		License:    &lic,
	}, nil
}
