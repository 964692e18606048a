package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/records"
	"pharmacart-backend/pkg/utils"
)

type AdminHandler struct {
	svc *records.Service
}

func NewAdminHandler(svc *records.Service) *AdminHandler {
	return &AdminHandler{svc: svc}
}

type updateStatusInput struct {
	Status       string `json:"status" binding:"required"`
	TrackingInfo string `json:"tracking_info"`
}

func (h *AdminHandler) UpdateOrderStatus(c *gin.Context) {
	h.updateStatus(c, models.KindOrder)
}

func (h *AdminHandler) UpdateAppointmentStatus(c *gin.Context) {
	h.updateStatus(c, models.KindAppointment)
}

func (h *AdminHandler) updateStatus(c *gin.Context, kind models.RecordKind) {
	var input updateStatusInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	rec, err := h.svc.AdminUpdateStatus(c.Request.Context(), kind,
		utils.StringToUint64(c.Param("id")), parseStatus(input.Status), input.TrackingInfo)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Status updated", rec)
}

// ListOrders is the cross-customer view for the back office.
func (h *AdminHandler) ListOrders(c *gin.Context) {
	res, err := h.svc.ListOrders(c.Request.Context(), 0, listQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Orders fetched", res)
}

func (h *AdminHandler) ListAppointments(c *gin.Context) {
	res, err := h.svc.ListAppointments(c.Request.Context(), 0, listQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Appointments fetched", res)
}
