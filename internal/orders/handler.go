package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/asarvarbek/tgshop-backend/internal/domain"
	"github.com/asarvarbek/tgshop-backend/internal/messaging"
	"github.com/asarvarbek/tgshop-backend/internal/store"
)

// Notifier alerts the admin channel about a new order. Delivery is
// best-effort: the order is already durable when the notifier runs.
type Notifier interface {
	SendOrderNotification(ctx context.Context, order domain.Order) error
}

var errOrderNotFound = errors.New("order not found")

const notifyTimeout = 15 * time.Second

type Handler struct {
	store    *store.Store
	notifier Notifier
	producer *messaging.Producer
	logger   *slog.Logger
}

func NewHandler(st *store.Store, notifier Notifier, producer *messaging.Producer, logger *slog.Logger) *Handler {
	return &Handler{
		store:    st,
		notifier: notifier,
		producer: producer,
		logger:   logger,
	}
}

type createOrderRequest struct {
	Items []domain.CartItem `json:"items"`
	Total float64           `json:"total"`
	User  *domain.User      `json:"user"`
}

func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Mahsulotlar ro'yxati noto'g'ri")
		return
	}

	if len(req.Items) == 0 {
		h.writeError(w, http.StatusBadRequest, "Mahsulotlar ro'yxati noto'g'ri")
		return
	}
	if req.Total <= 0 {
		h.writeError(w, http.StatusBadRequest, "Narx noto'g'ri")
		return
	}

	now := time.Now().UTC()
	order := domain.Order{
		ID:        fmt.Sprintf("ORD-%d", now.UnixMilli()),
		Items:     req.Items,
		Total:     req.Total,
		User:      req.User,
		Status:    domain.OrderStatusNew,
		CreatedAt: now,
	}

	err := h.store.Orders.Update(func(items []domain.Order) ([]domain.Order, error) {
		return append(items, order), nil
	})
	if err != nil {
		// The one path where a store write fault reaches the caller: an
		// unpersisted order must not be acknowledged.
		h.logger.Error("failed to persist order", "order_id", order.ID, "error", err)
		h.writeError(w, http.StatusInternalServerError,
			"Buyurtmani qayta ishlashda xatolik yuz berdi. Iltimos qayta urinib ko'ring.")
		return
	}

	h.notifyAsync(order)

	if h.producer != nil {
		event := domain.OrderCreatedEvent{
			OrderID:   order.ID,
			Items:     order.Items,
			Total:     order.Total,
			Timestamp: order.CreatedAt,
		}
		if order.User != nil {
			event.UserID = order.User.ID
		}
		if err := h.producer.PublishOrderCreated(r.Context(), event); err != nil {
			h.logger.Error("failed to publish order created event", "error", err, "order_id", order.ID)
		}
	}

	h.logger.Info("order created", "order_id", order.ID, "total", order.Total)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"orderId": order.ID,
		"message": "Buyurtmangiz muvaffaqiyatli qabul qilindi",
	})
}

func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.store.Orders.Load())
}

func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	for _, order := range h.store.Orders.Load() {
		if order.ID == id {
			h.writeJSON(w, http.StatusOK, order)
			return
		}
	}
	h.writeError(w, http.StatusNotFound, "Order not found")
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "Status is required")
		return
	}
	if req.Status == "" {
		h.writeError(w, http.StatusBadRequest, "Status is required")
		return
	}

	status := domain.OrderStatus(req.Status)
	if !status.Valid() {
		h.writeError(w, http.StatusBadRequest, "Invalid order status")
		return
	}

	err := h.store.Orders.Update(func(items []domain.Order) ([]domain.Order, error) {
		for i := range items {
			if items[i].ID == id {
				now := time.Now().UTC()
				items[i].Status = status
				items[i].UpdatedAt = &now
				return items, nil
			}
		}
		return nil, errOrderNotFound
	})
	switch {
	case errors.Is(err, errOrderNotFound):
		h.writeError(w, http.StatusNotFound, "Order not found")
		return
	case errors.Is(err, store.ErrWriteFailed):
		h.logger.Error("failed to persist order status", "order_id", id)
	}

	h.logger.Info("order status updated", "order_id", id, "status", status)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": "Order status updated successfully",
	})
}

// notifyAsync sends the admin alert off the request path. A failed or slow
// Telegram call must not delay or fail the order response.
func (h *Handler) notifyAsync(order domain.Order) {
	if h.notifier == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()

		if err := h.notifier.SendOrderNotification(ctx, order); err != nil {
			h.logger.Error("failed to send order notification", "order_id", order.ID, "error", err)
		}
	}()
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
