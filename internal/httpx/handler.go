// Package httpx is the HTTP boundary of the marketplace: request parsing,
// DTO mapping and the translation of the apperr taxonomy into status codes.
// All business decisions live below it.
package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dawidbera/secure-serverless-marketplace/internal/apperr"
	"github.com/dawidbera/secure-serverless-marketplace/internal/assets"
	"github.com/dawidbera/secure-serverless-marketplace/internal/catalog"
	"github.com/dawidbera/secure-serverless-marketplace/internal/httpx/middlewares"
	"github.com/dawidbera/secure-serverless-marketplace/internal/orders"
)

// Handler handles incoming HTTP requests for the catalog and order domains.
type Handler struct {
	catalog     *catalog.Service
	coordinator *orders.Coordinator
	ledger      *orders.Ledger
	presigner   *assets.Presigner
}

// NewHandler initializes the handler with its required domain services.
func NewHandler(
	cs *catalog.Service,
	oc *orders.Coordinator,
	ol *orders.Ledger,
	ps *assets.Presigner,
) *Handler {
	return &Handler{
		catalog:     cs,
		coordinator: oc,
		ledger:      ol,
		presigner:   ps,
	}
}

// CreateProduct inserts a new product with an initial version of 1.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req CreateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	product, err := h.catalog.Create(r.Context(), catalog.Product{
		ID:            req.ID,
		Name:          req.Name,
		Category:      req.Category,
		Price:         req.Price,
		StockQuantity: req.StockQuantity,
		SupplierEmail: req.SupplierEmail,
	})
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapProduct(*product))
}

// ListProducts lists all products, optionally filtered by ?category=.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context(), r.URL.Query().Get("category"))
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]ProductResponse, len(products))
	for i, p := range products {
		out[i] = mapProduct(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// GetProduct returns a single product by id.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "product_id_required", "")
		return
	}
	product, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, mapProduct(*product))
}

// DownloadURL issues an expiring signed URL for the product's digital asset.
// The product must exist; the URL itself is stateless.
func (h *Handler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "product_id_required", "")
		return
	}
	if _, err := h.catalog.Get(r.Context(), id); err != nil {
		writeDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DownloadURLResponse{
		DownloadURL: h.presigner.SignedURL(id),
	})
}

// PlaceOrder submits a purchase for the authenticated user. A 409 means the
// purchase lost a race or its outcome is unknown; the client should list its
// orders before retrying.
func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return
	}

	userID := middlewares.UserID(r.Context())

	slog.InfoContext(r.Context(), "placing order",
		"product_id", req.ProductID,
		"user_id", userID,
		"quantity", req.Quantity,
	)

	order, err := h.coordinator.PlaceOrder(r.Context(), req.ProductID, req.Quantity, userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, mapOrder(*order))
}

// ListMyOrders returns the authenticated user's orders, newest first.
func (h *Handler) ListMyOrders(w http.ResponseWriter, r *http.Request) {
	userID := middlewares.UserID(r.Context())
	list, err := h.ledger.ListForUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, r, err)
		return
	}
	out := make([]OrderResponse, len(list))
	for i, o := range list {
		out[i] = mapOrder(o)
	}
	writeJSON(w, http.StatusOK, out)
}

// Health answers liveness probes and the pre-traffic deployment hook.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func mapProduct(p catalog.Product) ProductResponse {
	return ProductResponse{
		ID:            p.ID,
		Name:          p.Name,
		Category:      p.Category,
		Price:         p.Price,
		StockQuantity: p.StockQuantity,
		Version:       p.Version,
		SupplierEmail: p.SupplierEmail,
	}
}

func mapOrder(o orders.Order) OrderResponse {
	return OrderResponse{
		OrderID:   o.OrderID,
		ProductID: o.ProductID,
		UserID:    o.UserID,
		Quantity:  o.Quantity,
		Timestamp: o.Timestamp,
	}
}

// writeDomainError translates the apperr taxonomy into the externally
// observed status contract: 400 validation, 404 not found, 409 conflict,
// 500 anything else.
func writeDomainError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.IsValidation(err):
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
	case errors.Is(err, apperr.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, apperr.ErrConflict):
		writeError(w, http.StatusConflict, "conflict",
			"concurrent update or insufficient stock; list your orders before retrying")
	default:
		slog.ErrorContext(r.Context(), "request failed", "path", r.URL.Path, "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "could not process request")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorResponse{
		Error:   code,
		Message: msg,
	})
}
