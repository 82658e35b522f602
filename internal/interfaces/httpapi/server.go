package httpapi

import (
	"net/http"

	"github.com/udenfc/super11/internal/platform/logging"
)

// StreamHandler serves the live standings WebSocket endpoint.
type StreamHandler interface {
	ServeWS(w http.ResponseWriter, r *http.Request)
}

func NewRouter(
	handler *Handler,
	stream StreamHandler,
	logger *logging.Logger,
	corsAllowedOrigins []string,
) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handler.Healthz)
	mux.HandleFunc("GET /api/standings", handler.GetStandings)
	mux.HandleFunc("GET /api/competition", handler.GetCompetition)
	if stream != nil {
		mux.HandleFunc("GET /ws/standings", stream.ServeWS)
	}

	return RequestTracing(RequestLogging(logger, CORS(corsAllowedOrigins, recoverPanic(logger, mux))))
}

func recoverPanic(logger *logging.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		defer func() {
			if rec := recover(); rec != nil {
				logger.ErrorContext(ctx, "panic recovered", "panic", rec)
				writeInternalError(ctx, w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
