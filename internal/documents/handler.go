package documents

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Palpita209/Palpita209-sub001/internal/platform/httpx"
)

const maxBodyBytes = 1 << 20

var errBadID = fmt.Errorf("id must be a positive integer: %w", httpx.ErrBadRequest)

// Handler exposes the document endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	verbose bool
}

// NewHandler builds Handler instance. verbose passes storage error text through to clients.
func NewHandler(logger *slog.Logger, service *Service, verbose bool) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, verbose: verbose}
}

// MountRoutes registers document routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Route("/po", func(r chi.Router) {
		r.Post("/save", h.save(KindPO, ModeSave))
		r.Post("/update", h.save(KindPO, ModeUpdate))
		r.Get("/details", h.poDetails)
		r.Get("/list", h.listPOs)
	})
	r.Route("/par", func(r chi.Router) {
		r.Post("/save", h.save(KindPAR, ModeSave))
		r.Post("/update", h.save(KindPAR, ModeUpdate))
		r.Get("/list", h.listPARs)
	})
	r.Get("/users", h.listUsers)
}

func (h *Handler) save(kind Kind, mode Mode) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
		if err != nil {
			status, resp := FormatError(kind, malformed("request body unreadable or too large"), false)
			httpx.JSON(w, status, resp)
			return
		}
		res, err := h.service.Save(r.Context(), kind, mode, body)
		if err != nil {
			status, resp := FormatError(kind, err, h.verbose)
			if status >= http.StatusInternalServerError {
				h.logger.Error("save document",
					slog.String("kind", string(kind)),
					slog.String("request_id", middleware.GetReqID(r.Context())),
					slog.Any("error", err))
			}
			httpx.JSON(w, status, resp)
			return
		}
		httpx.JSON(w, http.StatusOK, FormatSuccess(res))
	}
}

// poDetails returns the bare record without the envelope.
func (h *Handler) poDetails(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	details, err := h.service.GetPO(r.Context(), id)
	if err != nil {
		h.lookupError(w, r, err)
		return
	}
	httpx.JSON(w, http.StatusOK, details)
}

func (h *Handler) listPOs(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListPOs(r.Context(), filter)
	if err != nil {
		h.lookupError(w, r, err)
		return
	}
	httpx.OK(w, items)
}

// listPARs serves a single receipt when id is present and summaries otherwise.
func (h *Handler) listPARs(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Has("id") {
		id, err := parseID(query.Get("id"))
		if err != nil {
			httpx.RespondError(w, err)
			return
		}
		details, err := h.service.GetPAR(r.Context(), id)
		if err != nil {
			h.lookupError(w, r, err)
			return
		}
		httpx.OK(w, details)
		return
	}
	filter, err := parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	items, err := h.service.ListPARs(r.Context(), filter)
	if err != nil {
		h.lookupError(w, r, err)
		return
	}
	httpx.OK(w, items)
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListRecipients(r.Context())
	if err != nil {
		h.lookupError(w, r, err)
		return
	}
	httpx.OK(w, users)
}

func (h *Handler) lookupError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("load documents",
		slog.String("path", r.URL.Path),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.Any("error", err))
	httpx.RespondError(w, err)
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errBadID
	}
	return id, nil
}

func parseFilter(r *http.Request) (ListFilter, error) {
	query := r.URL.Query()
	filter := ListFilter{Search: strings.TrimSpace(query.Get("search"))}
	for name, dest := range map[string]*int{"limit": &filter.Limit, "offset": &filter.Offset} {
		raw := strings.TrimSpace(query.Get(name))
		if raw == "" {
			continue
		}
		v, err := strconv.Atoi(raw)
		if err != nil || v < 0 {
			return ListFilter{}, fmt.Errorf("%s must be a non-negative integer: %w", name, httpx.ErrBadRequest)
		}
		*dest = v
	}
	if raw := strings.TrimSpace(query.Get("user_id")); raw != "" {
		id, err := parseID(raw)
		if err != nil {
			return ListFilter{}, fmt.Errorf("user_id must be a positive integer: %w", httpx.ErrBadRequest)
		}
		filter.UserID = id
	}
	return filter, nil
}
