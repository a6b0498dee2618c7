package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
	"github.com/asarvarbek/tgshop-backend/internal/image"
	"github.com/asarvarbek/tgshop-backend/internal/store"
)

// MediaHost relays image bytes to external hosting and resolves a durable
// fetch URL plus the host's attachment id.
type MediaHost interface {
	UploadImage(ctx context.Context, data []byte, filename string) (url, fileID string, err error)
}

var errProductNotFound = errors.New("product not found")

type Handler struct {
	store     *store.Store
	media     MediaHost
	urls      *image.URLChecker
	maxUpload int64
	logger    *slog.Logger
}

func NewHandler(st *store.Store, media MediaHost, urls *image.URLChecker, maxUpload int64, logger *slog.Logger) *Handler {
	return &Handler{
		store:     st,
		media:     media,
		urls:      urls,
		maxUpload: maxUpload,
		logger:    logger,
	}
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Menu.Load())
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	fields, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}

	imageURL := image.DefaultImageURL
	var fileID string

	if data, filename, ok := h.readImageFile(r); ok {
		if url, id, err := h.relayImage(r.Context(), data, filename); err != nil {
			h.logger.Warn("image upload failed, using default image", "error", err)
		} else {
			imageURL, fileID = url, id
		}
	}

	var created domain.Product
	err := h.store.Menu.Update(func(items []domain.Product) ([]domain.Product, error) {
		created = domain.Product{
			ID:          store.NextID(items),
			Name:        fields.name,
			Description: fields.description,
			Price:       fields.price,
			Image:       imageURL,
		}
		return append(items, created), nil
	})
	if errors.Is(err, store.ErrWriteFailed) {
		// Write faults outside order intake are logged but not surfaced.
		h.logger.Error("failed to persist menu", "product", fields.name)
	}

	if fileID != "" {
		h.recordUpload(created.ID, fileID, imageURL)
	}

	h.logger.Info("product added", "id", created.ID, "name", created.Name)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Product added successfully",
		"product": created,
	})
}

func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	fields, ok := h.parseProductForm(w, r)
	if !ok {
		return
	}

	var previous *domain.Product
	for _, item := range h.store.Menu.Load() {
		if item.ID == id {
			previous = &item
			break
		}
	}
	if previous == nil {
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	}

	finalImage := r.FormValue("imageUrl")
	var fileID string

	if data, filename, ok := h.readImageFile(r); ok {
		if url, fid, err := h.relayImage(r.Context(), data, filename); err != nil {
			// A failed replacement keeps the picture the product already had.
			h.logger.Warn("image upload failed, keeping existing image", "error", err)
			finalImage = previous.Image
		} else {
			finalImage, fileID = url, fid
		}
	} else if finalImage == "" || !h.urls.IsValidImageURL(r.Context(), finalImage) {
		finalImage = image.DefaultImageURL
	}

	updated := domain.Product{
		ID:          id,
		Name:        fields.name,
		Description: fields.description,
		Price:       fields.price,
		Image:       finalImage,
	}

	err = h.store.Menu.Update(func(items []domain.Product) ([]domain.Product, error) {
		for i := range items {
			if items[i].ID == id {
				items[i] = updated
				return items, nil
			}
		}
		return nil, errProductNotFound
	})
	switch {
	case errors.Is(err, errProductNotFound):
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	case errors.Is(err, store.ErrWriteFailed):
		h.logger.Error("failed to persist menu", "id", id)
	}

	if fileID != "" {
		h.recordUpload(id, fileID, finalImage)
	}

	h.logger.Info("product updated", "id", id, "name", updated.Name)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Product updated successfully",
		"product": updated,
	})
}

func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid product id")
		return
	}

	err = h.store.Menu.Update(func(items []domain.Product) ([]domain.Product, error) {
		kept := items[:0]
		for _, item := range items {
			if item.ID != id {
				kept = append(kept, item)
			}
		}
		if len(kept) == len(items) {
			return nil, errProductNotFound
		}
		return kept, nil
	})
	switch {
	case errors.Is(err, errProductNotFound):
		h.writeError(w, http.StatusNotFound, "Product not found")
		return
	case errors.Is(err, store.ErrWriteFailed):
		h.logger.Error("failed to persist menu", "id", id)
	}

	h.logger.Info("product deleted", "id", id)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Product deleted successfully",
	})
}

type productFields struct {
	name        string
	description string
	price       float64
}

// parseProductForm validates the multipart fields shared by create and
// update. Price must parse as a number before any persistence or relay call.
func (h *Handler) parseProductForm(w http.ResponseWriter, r *http.Request) (productFields, bool) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.writeError(w, http.StatusBadRequest, "Invalid form data")
		return productFields{}, false
	}

	name := r.FormValue("name")
	description := r.FormValue("description")
	priceStr := r.FormValue("price")

	if name == "" || description == "" || priceStr == "" {
		h.writeError(w, http.StatusBadRequest, "Name, description and price are required")
		return productFields{}, false
	}

	price, err := strconv.ParseFloat(priceStr, 64)
	if err != nil || price < 0 {
		h.writeError(w, http.StatusBadRequest, "Price must be a valid number")
		return productFields{}, false
	}

	return productFields{name: name, description: description, price: price}, true
}

func (h *Handler) readImageFile(r *http.Request) (data []byte, filename string, ok bool) {
	file, header, err := r.FormFile("image")
	if err != nil {
		return nil, "", false
	}
	defer func() { _ = file.Close() }()

	if err := image.Validate(header.Size, header.Header.Get("Content-Type")); err != nil {
		h.logger.Warn("rejected image upload", "filename", header.Filename, "error", err)
		return nil, "", false
	}

	data, err = io.ReadAll(file)
	if err != nil {
		h.logger.Error("failed to read image upload", "error", err)
		return nil, "", false
	}
	return data, header.Filename, true
}

func (h *Handler) relayImage(ctx context.Context, data []byte, filename string) (string, string, error) {
	if h.media == nil {
		return "", "", errors.New("no media host configured")
	}
	return h.media.UploadImage(ctx, data, filename)
}

// recordUpload appends provenance for a relayed image to the uploads slot.
// Failures here never affect the catalog operation that triggered it.
func (h *Handler) recordUpload(productID int, fileID, url string) {
	err := h.store.Uploads.Update(func(items []domain.Upload) ([]domain.Upload, error) {
		return append(items, domain.Upload{
			ID:         store.NextID(items),
			ProductID:  productID,
			FileID:     fileID,
			URL:        url,
			UploadDate: time.Now().UTC(),
		}), nil
	})
	if err != nil {
		h.logger.Error("failed to record upload", "product_id", productID, "error", err)
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]any{"success": false, "message": message})
}
