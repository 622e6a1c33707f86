package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/myasnails/salonbook/internal/booking"
	"github.com/myasnails/salonbook/internal/gallery"
)

const maxImageBytes = 10 << 20

type GalleryService interface {
	List(ctx context.Context) ([]gallery.Item, error)
	Upload(ctx context.Context, title, filename string, data []byte) (gallery.Item, error)
	Remove(ctx context.Context, id string) error
}

type GalleryHandler struct {
	svc    GalleryService
	logger *slog.Logger
}

func NewGalleryHandler(svc GalleryService, logger *slog.Logger) *GalleryHandler {
	return &GalleryHandler{svc: svc, logger: logger}
}

func (h *GalleryHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	items, err := h.svc.List(r.Context())
	if err != nil {
		h.logger.Error("gallery list failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"photos": items})
}

// Upload accepts multipart form data: an "image" file part and an optional
// "title" field.
func (h *GalleryHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	if err := r.ParseMultipartForm(maxImageBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "missing image file")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxImageBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "unreadable image")
		return
	}

	item, err := h.svc.Upload(r.Context(), strings.TrimSpace(r.FormValue("title")), header.Filename, data)
	if err != nil {
		h.logger.Error("gallery upload failed", "err", err)
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

type deletePhotoRequest struct {
	ID string `json:"id"`
}

func (h *GalleryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req deletePhotoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ID) == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	if err := h.svc.Remove(r.Context(), req.ID); err != nil {
		if errors.Is(err, booking.ErrNotFound) {
			writeError(w, http.StatusNotFound, "photo not found")
			return
		}
		h.logger.Error("gallery delete failed", "err", err, "id", req.ID)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
