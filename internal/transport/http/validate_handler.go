package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/render"

	"licensepanel/internal/license"
	"licensepanel/internal/middleware"
	"licensepanel/internal/security"
)

// Validator runs the validation pipeline.
type Validator interface {
	Validate(ctx context.Context, req license.Request) license.Result
}

// ValidateHandler serves POST /api/validate.
type ValidateHandler struct {
	engine Validator
	inputs *security.InputValidator
	logger *slog.Logger
}

// NewValidateHandler creates a new validate handler
func NewValidateHandler(engine Validator, inputs *security.InputValidator, logger *slog.Logger) *ValidateHandler {
	return &ValidateHandler{
		engine: engine,
		inputs: inputs,
		logger: logger.With(slog.String("handler", "validate")),
	}
}

// ValidateRequest is the body of a validation call.
type ValidateRequest struct {
	Key       string `json:"key"`
	DiscordID string `json:"discordId,omitempty"`
	HWID      string `json:"hwid,omitempty"`
}

// Validate handles POST /api/validate. The response body and status come
// from the pipeline; a body that cannot be decoded is an internal error.
func (h *ValidateHandler) Validate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			h.logger.ErrorContext(ctx, "validation panicked",
				slog.String("client_ip", middleware.ClientIP(r)),
				slog.Any("panic", rec),
				slog.String("stack", string(debug.Stack())),
			)
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, license.InternalErrorBody())
		}
	}()

	var req ValidateRequest
	if err := render.DecodeJSON(r.Body, &req); err != nil && !errors.Is(err, io.EOF) {
		h.logger.ErrorContext(ctx, "failed to decode validation request",
			slog.String("client_ip", middleware.ClientIP(r)),
			slog.String("error", err.Error()),
		)
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, license.InternalErrorBody())
		return
	}

	res := h.engine.Validate(ctx, license.Request{
		Key:       h.inputs.Clean(ctx, "key", req.Key, security.MaxLicenseKeyLength),
		HWID:      h.inputs.Clean(ctx, "hwid", req.HWID, security.MaxHWIDLength),
		DiscordID: h.inputs.Clean(ctx, "discordId", req.DiscordID, security.MaxDiscordIDLength),
		SourceIP:  middleware.ClientIP(r),
	})

	render.Status(r, res.HTTPStatus)
	render.JSON(w, r, res.Body)
}
