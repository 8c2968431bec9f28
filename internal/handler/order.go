package handler

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bazarko/marketplace-api/internal/domain/actor"
	"github.com/bazarko/marketplace-api/internal/domain/order"
)

type addressDTO struct {
	FullName string `json:"full_name"`
	Phone    string `json:"phone,omitempty"`
	Street   string `json:"street"`
	City     string `json:"city"`
	State    string `json:"state,omitempty"`
	ZipCode  string `json:"zip_code,omitempty"`
	Country  string `json:"country"`
}

type orderItemRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	Items           []orderItemRequest `json:"items"`
	ShippingAddress addressDTO         `json:"shipping_address"`
	PaymentMethod   string             `json:"payment_method"`
	VoucherCode     string             `json:"voucher_code,omitempty"`
	ReferralCode    string             `json:"referral_code,omitempty"`
	Notes           string             `json:"notes,omitempty"`
}

type orderItemResponse struct {
	ID          string  `json:"id"`
	ProductID   string  `json:"product_id"`
	ProductName string  `json:"product_name"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
	Subtotal    float64 `json:"subtotal"`
}

type orderResponse struct {
	ID              string              `json:"id"`
	OrderNumber     string              `json:"order_number"`
	CustomerID      string              `json:"customer_id"`
	Status          string              `json:"status"`
	Items           []orderItemResponse `json:"items"`
	Subtotal        float64             `json:"subtotal"`
	Discount        float64             `json:"discount"`
	Shipping        float64             `json:"shipping"`
	Tax             float64             `json:"tax"`
	Total           float64             `json:"total"`
	ShippingAddress addressDTO          `json:"shipping_address"`
	PaymentMethod   string              `json:"payment_method"`
	PaymentStatus   string              `json:"payment_status"`
	VoucherCode     string              `json:"voucher_code,omitempty"`
	ReferralCode    string              `json:"referral_code,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	CancelReason    string              `json:"cancel_reason,omitempty"`
	CancelledAt     *time.Time          `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time           `json:"created_at"`
	UpdatedAt       time.Time           `json:"updated_at"`
}

type orderPageResponse struct {
	Orders []orderResponse `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

func toOrderResponse(o *order.Order) orderResponse {
	items := make([]orderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = orderItemResponse{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price.InexactFloat64(),
			Subtotal:    item.Subtotal.InexactFloat64(),
		}
	}
	return orderResponse{
		ID:          o.ID,
		OrderNumber: o.OrderNumber,
		CustomerID:  o.CustomerID,
		Status:      string(o.Status),
		Items:       items,
		Subtotal:    o.Subtotal.InexactFloat64(),
		Discount:    o.Discount.InexactFloat64(),
		Shipping:    o.Shipping.InexactFloat64(),
		Tax:         o.Tax.InexactFloat64(),
		Total:       o.Total.InexactFloat64(),
		ShippingAddress: addressDTO{
			FullName: o.ShippingAddress.FullName,
			Phone:    o.ShippingAddress.Phone,
			Street:   o.ShippingAddress.Street,
			City:     o.ShippingAddress.City,
			State:    o.ShippingAddress.State,
			ZipCode:  o.ShippingAddress.ZipCode,
			Country:  o.ShippingAddress.Country,
		},
		PaymentMethod: string(o.PaymentMethod),
		PaymentStatus: string(o.PaymentStatus),
		VoucherCode:   o.VoucherCode,
		ReferralCode:  o.ReferralCode,
		Notes:         o.Notes,
		CancelReason:  o.CancelReason,
		CancelledAt:   o.CancelledAt,
		CreatedAt:     o.CreatedAt,
		UpdatedAt:     o.UpdatedAt,
	}
}

func mustActor(w http.ResponseWriter, r *http.Request) (actor.Actor, bool) {
	act, ok := ActorFrom(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized")
	}
	return act, ok
}

func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	items := make([]order.ItemRequest, len(req.Items))
	for i, item := range req.Items {
		items[i] = order.ItemRequest{ProductID: item.ProductID, Quantity: item.Quantity}
	}

	o, err := h.orders.CreateOrder(r.Context(), act, order.CreateOrderRequest{
		Items: items,
		ShippingAddress: order.Address{
			FullName: req.ShippingAddress.FullName,
			Phone:    req.ShippingAddress.Phone,
			Street:   req.ShippingAddress.Street,
			City:     req.ShippingAddress.City,
			State:    req.ShippingAddress.State,
			ZipCode:  req.ShippingAddress.ZipCode,
			Country:  req.ShippingAddress.Country,
		},
		PaymentMethod: order.PaymentMethod(req.PaymentMethod),
		VoucherCode:   req.VoucherCode,
		ReferralCode:  req.ReferralCode,
		Notes:         req.Notes,
	})
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	o, err := h.orders.GetOrder(r.Context(), act, chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	page, err := h.orders.ListOrders(r.Context(), act, order.PageRequest{
		Limit:  queryInt(r, "limit"),
		Offset: queryInt(r, "offset"),
	})
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := orderPageResponse{
		Orders: make([]orderResponse, len(page.Orders)),
		Total:  page.Total,
		Limit:  page.Limit,
		Offset: page.Offset,
	}
	for i := range page.Orders {
		resp.Orders[i] = toOrderResponse(&page.Orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

type updateStatusRequest struct {
	Status       string `json:"status"`
	CancelReason string `json:"cancel_reason,omitempty"`
}

func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), act, chi.URLParam(r, "orderID"), order.Status(req.Status), req.CancelReason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	act, ok := mustActor(w, r)
	if !ok {
		return
	}

	var req cancelOrderRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	if req.Reason == "" {
		req.Reason = "Cancelled by customer"
	}

	o, err := h.orders.Cancel(r.Context(), act, chi.URLParam(r, "orderID"), req.Reason)
	if err != nil {
		respondError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func queryInt(r *http.Request, name string) int {
	n, _ := strconv.Atoi(r.URL.Query().Get(name))
	return n
}
