package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/middleware"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/records"
	"pharmacart-backend/pkg/utils"
)

type OrderHandler struct {
	svc      *records.Service
	checkout *CheckoutFlow
}

func NewOrderHandler(svc *records.Service, checkout *CheckoutFlow) *OrderHandler {
	return &OrderHandler{svc: svc, checkout: checkout}
}

func (h *OrderHandler) Create(c *gin.Context) {
	var input records.CreateOrderInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	order, err := h.svc.CreateOrder(c.Request.Context(), middleware.UserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	// ONLINE orders get their checkout session opened right away so the
	// client can redirect without a second round trip. If the gateway is
	// briefly down the order still stands; payment can be retried later.
	if order.PaymentMethod == models.PaymentOnline {
		session, err := h.checkout.begin(c, models.KindOrder, order.ID)
		if err != nil {
			log.Warn().Err(err).Str("record_no", order.RecordNo).
				Msg("handlers: order created but checkout session failed")
			utils.APIResponse(c, http.StatusCreated, true,
				"Order placed, but payment could not be started. Retry from your orders page.", gin.H{"order": order})
			return
		}
		utils.APIResponse(c, http.StatusCreated, true, "Order placed", gin.H{"order": order, "payment": session})
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Order placed", gin.H{"order": order})
}

func (h *OrderHandler) List(c *gin.Context) {
	res, err := h.svc.ListOrders(c.Request.Context(), middleware.UserID(c), listQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Orders fetched"
	if res.Stale {
		msg = "Orders fetched from cache, data may be out of date"
	}
	utils.APIResponse(c, http.StatusOK, true, msg, res)
}

func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.svc.GetOrder(c.Request.Context(), middleware.UserID(c), utils.StringToUint64(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Order fetched", order)
}

func (h *OrderHandler) Cancel(c *gin.Context) {
	order, err := h.svc.CancelOrder(c.Request.Context(), middleware.UserID(c), utils.StringToUint64(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Order cancelled", order)
}
