package httpapi

import (
	"net/http"

	"github.com/udenfc/super11/internal/platform/logging"
	"github.com/udenfc/super11/internal/usecase"
)

// Handler exposes the cached competition over HTTP. It never triggers
// a fetch itself, the scheduler owns all upstream traffic.
type Handler struct {
	standings *usecase.StandingsService
	logger    *logging.Logger
}

func NewHandler(standings *usecase.StandingsService, logger *logging.Logger) *Handler {
	if logger == nil {
		logger = logging.Default()
	}
	return &Handler{standings: standings, logger: logger}
}

// GetStandings handles GET /api/standings.
func (h *Handler) GetStandings(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetStandings")
	defer span.End()

	comp, err := h.standings.CachedCompetition()
	if err != nil {
		h.logger.DebugContext(ctx, "standings cache empty", "error", err)
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, comp.StandingsRows())
}

// GetCompetition handles GET /api/competition, the raw upstream
// payload for clients that want more than the row projection.
func (h *Handler) GetCompetition(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.GetCompetition")
	defer span.End()

	comp, err := h.standings.CachedCompetition()
	if err != nil {
		writeError(ctx, w, err)
		return
	}
	writeSuccess(ctx, w, http.StatusOK, comp)
}

// Healthz handles GET /healthz.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r.Context(), "httpapi.Handler.Healthz")
	defer span.End()

	writeJSON(ctx, w, http.StatusOK, map[string]string{"status": "ok"})
}
