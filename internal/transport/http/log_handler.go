package http

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"licensepanel/internal/store"
	"licensepanel/pkg/contracts/domain"
)

const defaultLogPage = 100

// LogHandler serves the validation and bot command logs.
type LogHandler struct {
	validations store.ValidationLogRepository
	bot         store.BotLogRepository
	rs          *Responder
	logger      *slog.Logger
}

// NewLogHandler creates a new log handler
func NewLogHandler(validations store.ValidationLogRepository, bot store.BotLogRepository, rs *Responder, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		validations: validations,
		bot:         bot,
		rs:          rs,
		logger:      logger.With(slog.String("handler", "logs")),
	}
}

// Routes mounts under /api/admin/logs.
func (h *LogHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.Validations)
	r.Delete("/", h.ClearValidations)
	r.Get("/bot", h.BotLogs)
	r.Delete("/bot", h.ClearBotLogs)
	return r
}

// Validations handles GET /api/admin/logs. Entries are newest first;
// ?status= and ?key= narrow the page.
func (h *LogHandler) Validations(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	status := domain.LogStatus(q.Get("status"))
	key := strings.TrimSpace(q.Get("key"))
	limit := queryLimit(r, defaultLogPage, domain.MaxValidationLogs)

	fetch := limit
	if status != "" || key != "" {
		fetch = 0
	}
	entries, err := h.validations.List(r.Context(), fetch)
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}

	out := make([]domain.ValidationLog, 0, min(limit, len(entries)))
	for _, e := range entries {
		if status != "" && e.Status != status {
			continue
		}
		if key != "" && !strings.EqualFold(e.LicenseKey, key) {
			continue
		}
		out = append(out, e)
		if len(out) == limit {
			break
		}
	}
	h.rs.JSON(w, r, http.StatusOK, out)
}

// ClearValidations handles DELETE /api/admin/logs
func (h *LogHandler) ClearValidations(w http.ResponseWriter, r *http.Request) {
	if err := h.validations.Clear(r.Context()); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "validation logs cleared")
	h.rs.NoContent(w, r)
}

// BotLogs handles GET /api/admin/logs/bot
func (h *LogHandler) BotLogs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.bot.List(r.Context(), queryLimit(r, defaultLogPage, domain.MaxBotLogs))
	if err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.rs.JSON(w, r, http.StatusOK, entries)
}

// ClearBotLogs handles DELETE /api/admin/logs/bot
func (h *LogHandler) ClearBotLogs(w http.ResponseWriter, r *http.Request) {
	if err := h.bot.Clear(r.Context()); err != nil {
		h.rs.Error(w, r, err)
		return
	}
	h.logger.InfoContext(r.Context(), "bot logs cleared")
	h.rs.NoContent(w, r)
}
