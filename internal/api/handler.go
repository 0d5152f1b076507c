// Package api exposes the admin order board over HTTP and maps domain
// errors onto status codes.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"

	"github.com/ronycse16b/soulcraft-orders/internal/auth"
	"github.com/ronycse16b/soulcraft-orders/internal/database"
	"github.com/ronycse16b/soulcraft-orders/internal/models"
	"github.com/ronycse16b/soulcraft-orders/internal/policy"
	"github.com/ronycse16b/soulcraft-orders/internal/store"
)

var (
	readRoles   = []models.Role{models.RoleAdmin, models.RoleModerator}
	writeRoles  = []models.Role{models.RoleAdmin, models.RoleModerator}
	createRoles = []models.Role{models.RoleAdmin, models.RoleModerator, models.RoleUser}
	adminOnly   = []models.Role{models.RoleAdmin}
)

// Storage is everything the handlers read and write outside the lifecycle
// engine.
type Storage interface {
	CreateOrder(ctx context.Context, req store.CreateOrderRequest) (*models.Order, error)
	GetOrder(ctx context.Context, id int64) (*models.Order, error)
	ListOrders(ctx context.Context, opts store.ListOptions) (*store.OffsetPage, error)
	Summarize(ctx context.Context) (*models.Summary, error)
	MarkRead(ctx context.Context, id int64, read bool) error
	UpdateShipping(ctx context.Context, id int64, info models.ShippingInfo) error
	CreateAdminUser(ctx context.Context, req store.CreateAdminRequest) (*models.AdminUser, error)
}

// Lifecycle is the single mutation path for order statuses.
type Lifecycle interface {
	Transition(ctx context.Context, orderID int64, requested models.OrderStatus, note string, actor auth.Actor) (*models.Order, error)
}

type Handler struct {
	log       *slog.Logger
	storage   Storage
	lifecycle Lifecycle
	directory AdminDirectory
}

func NewHandler(log *slog.Logger, storage Storage, lifecycle Lifecycle, directory AdminDirectory) *Handler {
	return &Handler{log: log, storage: storage, lifecycle: lifecycle, directory: directory}
}

func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(Identity(h.directory))

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.createOrder)
		r.Get("/", h.listOrders)
		r.Get("/summary", h.summary)
		r.Get("/{id}", h.getOrder)
		r.Post("/{id}/status", h.changeStatus)
		r.Patch("/{id}/read", h.markRead)
		r.Put("/{id}/shipping", h.updateShipping)
	})
	r.Post("/admins", h.createAdmin)

	return r
}

type createOrderReq struct {
	CustomerName string  `json:"customer_name"`
	Phone        string  `json:"phone"`
	Address      string  `json:"address"`
	ShippingCost float64 `json:"shipping_cost"`
	Items        []struct {
		ProductRef string  `json:"product_ref"`
		SKU        string  `json:"sku"`
		UnitPrice  float64 `json:"unit_price"`
		Quantity   int     `json:"quantity"`
	} `json:"items"`
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
		return
	}
	if err := auth.Authorize(actor, createRoles, models.PermCreate); err != nil {
		respondDomainError(w, err)
		return
	}

	var req createOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]store.OrderItemRequest, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, store.OrderItemRequest{
			ProductRef: item.ProductRef,
			SKU:        item.SKU,
			UnitPrice:  decimal.NewFromFloat(item.UnitPrice),
			Quantity:   item.Quantity,
		})
	}

	order, err := h.storage.CreateOrder(r.Context(), store.CreateOrderRequest{
		CustomerName: req.CustomerName,
		Phone:        req.Phone,
		Address:      req.Address,
		ShippingCost: decimal.NewFromFloat(req.ShippingCost),
		Items:        items,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, order)
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeRead(w, r) {
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	order, err := h.storage.GetOrder(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeRead(w, r) {
		return
	}

	q := r.URL.Query()
	opts := store.ListOptions{
		Search: q.Get("search"),
	}
	opts.Page, _ = strconv.Atoi(q.Get("page"))
	opts.Limit, _ = strconv.Atoi(q.Get("limit"))

	if raw := q.Get("status"); raw != "" {
		status := models.OrderStatus(raw)
		if !status.IsValid() {
			respondError(w, http.StatusBadRequest, "unknown status filter")
			return
		}
		opts.Status = status
	}

	page, err := h.storage.ListOrders(r.Context(), opts)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, page)
}

func (h *Handler) summary(w http.ResponseWriter, r *http.Request) {
	if !h.authorizeRead(w, r) {
		return
	}

	summary, err := h.storage.Summarize(r.Context())
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, summary)
}

type changeStatusReq struct {
	Status string `json:"status"`
	Note   string `json:"note"`
}

func (h *Handler) changeStatus(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var req changeStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	order, err := h.lifecycle.Transition(r.Context(), id, models.OrderStatus(req.Status), req.Note, actor)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

type markReadReq struct {
	Read bool `json:"read"`
}

func (h *Handler) markRead(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
		return
	}
	if err := auth.Authorize(actor, writeRoles, models.PermUpdate); err != nil {
		respondDomainError(w, err)
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	req := markReadReq{Read: true}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if err := h.storage.MarkRead(r.Context(), id, req.Read); err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"read": req.Read})
}

func (h *Handler) updateShipping(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
		return
	}
	if err := auth.Authorize(actor, writeRoles, models.PermUpdate); err != nil {
		respondDomainError(w, err)
		return
	}
	id, ok := orderID(w, r)
	if !ok {
		return
	}

	var info models.ShippingInfo
	if err := json.NewDecoder(r.Body).Decode(&info); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.storage.UpdateShipping(r.Context(), id, info); err != nil {
		respondDomainError(w, err)
		return
	}

	order, err := h.storage.GetOrder(r.Context(), id)
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, order)
}

type createAdminReq struct {
	Email       string               `json:"email"`
	Name        string               `json:"name"`
	Role        string               `json:"role"`
	Permissions models.PermissionSet `json:"permissions"`
}

func (h *Handler) createAdmin(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
		return
	}
	if err := auth.Authorize(actor, adminOnly, ""); err != nil {
		respondDomainError(w, err)
		return
	}

	var req createAdminReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user, err := h.storage.CreateAdminUser(r.Context(), store.CreateAdminRequest{
		Email:       req.Email,
		Name:        req.Name,
		Role:        models.Role(req.Role),
		Permissions: req.Permissions,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, user)
}

func (h *Handler) authorizeRead(w http.ResponseWriter, r *http.Request) bool {
	actor, ok := actorFrom(r.Context())
	if !ok {
		respondError(w, http.StatusForbidden, auth.ErrUnauthorized.Error())
		return false
	}
	if err := auth.Authorize(actor, readRoles, models.PermRead); err != nil {
		respondDomainError(w, err)
		return false
	}
	return true
}

func orderID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid order ID")
		return 0, false
	}
	return id, true
}

// respondDomainError maps domain sentinels to HTTP statuses. Policy errors
// keep their detail so the admin UI can tie the message to the status
// selector.
func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, database.ErrOrderNotFound), errors.Is(err, database.ErrAdminNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, auth.ErrUnauthorized),
		errors.Is(err, auth.ErrAccessDenied),
		errors.Is(err, auth.ErrPermissionDenied):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, policy.ErrIllegalTransition),
		errors.Is(err, policy.ErrMissingReason),
		errors.Is(err, database.ErrInvalidOrder),
		errors.Is(err, database.ErrDuplicateEmail):
		respondError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, database.ErrStatusConflict):
		respondError(w, http.StatusConflict, err.Error())
	case database.IsRetryable(err):
		respondError(w, http.StatusServiceUnavailable, "storage temporarily unavailable")
	default:
		respondError(w, http.StatusInternalServerError, err.Error())
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Default().Error("encode response", "err", err)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
