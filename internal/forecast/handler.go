package forecast

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Palpita209/Palpita209-sub001/internal/platform/httpx"
)

// Handler serves /api/forecast.
type Handler struct {
	predictor Predictor
	logger    *slog.Logger
}

// NewHandler builds Handler instance. A nil predictor means Noop.
func NewHandler(predictor Predictor, logger *slog.Logger) *Handler {
	if predictor == nil {
		predictor = Noop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{predictor: predictor, logger: logger}
}

// MountRoutes registers forecast routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/{kind}", h.predict)
}

func (h *Handler) predict(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "kind")
	result, err := h.predictor.Predict(r.Context(), target)
	switch {
	case err == nil:
		httpx.OK(w, result)
	case errors.Is(err, ErrUnknownTarget):
		httpx.Fail(w, http.StatusNotFound, "unknown forecast target: "+target)
	case errors.Is(err, ErrNotImplemented):
		httpx.Fail(w, http.StatusNotImplemented, "forecasting is not available")
	default:
		h.logger.Error("forecast", slog.String("target", target), slog.Any("error", err))
		httpx.Fail(w, http.StatusInternalServerError, http.StatusText(http.StatusInternalServerError))
	}
}
