package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/middleware"
	"pharmacart-backend/internal/models"
	"pharmacart-backend/internal/records"
	"pharmacart-backend/pkg/utils"
)

type AppointmentHandler struct {
	svc      *records.Service
	checkout *CheckoutFlow
}

func NewAppointmentHandler(svc *records.Service, checkout *CheckoutFlow) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, checkout: checkout}
}

func (h *AppointmentHandler) Create(c *gin.Context) {
	var input records.CreateAppointmentInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	appt, err := h.svc.CreateAppointment(c.Request.Context(), middleware.UserID(c), input)
	if err != nil {
		respondError(c, err)
		return
	}

	if appt.PaymentMethod == models.PaymentOnline {
		session, err := h.checkout.begin(c, models.KindAppointment, appt.ID)
		if err != nil {
			log.Warn().Err(err).Str("record_no", appt.RecordNo).
				Msg("handlers: appointment booked but checkout session failed")
			utils.APIResponse(c, http.StatusCreated, true,
				"Appointment booked, but payment could not be started. Retry from your appointments page.", gin.H{"appointment": appt})
			return
		}
		utils.APIResponse(c, http.StatusCreated, true, "Appointment booked", gin.H{"appointment": appt, "payment": session})
		return
	}

	utils.APIResponse(c, http.StatusCreated, true, "Appointment booked", gin.H{"appointment": appt})
}

func (h *AppointmentHandler) List(c *gin.Context) {
	res, err := h.svc.ListAppointments(c.Request.Context(), middleware.UserID(c), listQuery(c))
	if err != nil {
		respondError(c, err)
		return
	}
	msg := "Appointments fetched"
	if res.Stale {
		msg = "Appointments fetched from cache, data may be out of date"
	}
	utils.APIResponse(c, http.StatusOK, true, msg, res)
}

func (h *AppointmentHandler) Get(c *gin.Context) {
	appt, err := h.svc.GetAppointment(c.Request.Context(), middleware.UserID(c), utils.StringToUint64(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Appointment fetched", appt)
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	appt, err := h.svc.CancelAppointment(c.Request.Context(), middleware.UserID(c), utils.StringToUint64(c.Param("id")))
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Appointment cancelled", appt)
}

type rescheduleInput struct {
	ScheduledAt time.Time `json:"scheduled_at" binding:"required"`
}

func (h *AppointmentHandler) Reschedule(c *gin.Context) {
	var input rescheduleInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	appt, err := h.svc.RescheduleAppointment(c.Request.Context(), middleware.UserID(c),
		utils.StringToUint64(c.Param("id")), input.ScheduledAt)
	if err != nil {
		respondError(c, err)
		return
	}
	utils.APIResponse(c, http.StatusOK, true, "Appointment rescheduled", appt)
}
