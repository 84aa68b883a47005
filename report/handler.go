package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/Palpita209/Palpita209-sub001/internal/documents"
	"github.com/Palpita209/Palpita209-sub001/internal/platform/httpx"
)

// DocumentReader loads stored documents for printing.
type DocumentReader interface {
	GetPO(ctx context.Context, id int64) (documents.PODetails, error)
	GetPAR(ctx context.Context, id int64) (documents.PARDetails, error)
}

// Handler serves printable forms.
type Handler struct {
	reader DocumentReader
	forms  *Forms
	client *Client
	logger *slog.Logger
}

// NewHandler creates a report handler.
func NewHandler(reader DocumentReader, forms *Forms, client *Client, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{reader: reader, forms: forms, client: client, logger: logger}
}

// MountRoutes registers report routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/ping", h.ping)
	r.Get("/po/{id}", h.po)
	r.Get("/par/{id}", h.par)
}

func (h *Handler) ping(w http.ResponseWriter, r *http.Request) {
	if err := h.client.Ping(r.Context()); err != nil {
		h.logger.Warn("gotenberg ping failed", slog.Any("error", err))
		httpx.Fail(w, http.StatusServiceUnavailable, "pdf renderer unavailable")
		return
	}
	httpx.OK(w, map[string]string{"status": "ok"})
}

func (h *Handler) po(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	po, err := h.reader.GetPO(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, documents.KindPO, id, err)
		return
	}
	html, err := h.forms.PO(po)
	if err != nil {
		h.logger.Error("render po form", slog.Int64("po_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.write(w, r, "po-"+po.PONo, html)
}

func (h *Handler) par(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	par, err := h.reader.GetPAR(r.Context(), id)
	if err != nil {
		h.lookupFailed(w, documents.KindPAR, id, err)
		return
	}
	html, err := h.forms.PAR(par)
	if err != nil {
		h.logger.Error("render par form", slog.Int64("par_id", id), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	h.write(w, r, "par-"+par.PARNo, html)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, fmt.Errorf("%w: id must be a positive integer", httpx.ErrBadRequest))
		return 0, false
	}
	return id, true
}

func (h *Handler) lookupFailed(w http.ResponseWriter, kind documents.Kind, id int64, err error) {
	if errors.Is(err, documents.ErrNotFound) {
		httpx.Fail(w, http.StatusNotFound, err.Error())
		return
	}
	h.logger.Error("load document for print", slog.String("kind", string(kind)), slog.Int64("id", id), slog.Any("error", err))
	httpx.RespondError(w, err)
}

// write returns HTML when ?format=html is requested, otherwise a PDF.
func (h *Handler) write(w http.ResponseWriter, r *http.Request, name string, html []byte) {
	if r.URL.Query().Get("format") == "html" {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(html)
		return
	}
	pdf, err := h.client.RenderHTML(r.Context(), html)
	if errors.Is(err, ErrRendererDisabled) {
		httpx.Fail(w, http.StatusServiceUnavailable, "pdf renderer not configured; use format=html")
		return
	}
	if err != nil {
		h.logger.Error("render pdf", slog.String("document", name), slog.Any("error", err))
		httpx.Fail(w, http.StatusBadGateway, http.StatusText(http.StatusBadGateway))
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", name+".pdf"))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}
