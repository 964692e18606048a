package routes

import (
	"github.com/gin-gonic/gin"

	"pharmacart-backend/internal/handlers"
	"pharmacart-backend/internal/middleware"
)

// Handlers bundles everything SetupRoutes mounts.
type Handlers struct {
	Auth        *handlers.AuthHandler
	User        *handlers.UserHandler
	Order       *handlers.OrderHandler
	Appointment *handlers.AppointmentHandler
	Payment     *handlers.PaymentHandler
	Admin       *handlers.AdminHandler
}

func SetupRoutes(r *gin.Engine, h Handlers) {

	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RateLimitMiddleware())

	api := r.Group("/api/v1")
	{
		auth := api.Group("/auth")
		{
			auth.POST("/register", h.Auth.Register)
			auth.POST("/login", h.Auth.Login)
		}

		// Provider callbacks and the browser return leg carry no JWT.
		api.POST("/payments/notification", h.Payment.Webhook)
		api.GET("/payments/return", h.Payment.Return)

		protected := api.Group("/")
		protected.Use(middleware.AuthMiddleware())
		{
			protected.GET("/profile", h.User.Profile)

			protected.POST("/orders", h.Order.Create)
			protected.GET("/orders", h.Order.List)
			protected.GET("/orders/:id", h.Order.Get)
			protected.POST("/orders/:id/cancel", h.Order.Cancel)
			protected.POST("/orders/:id/pay", h.Payment.PayOrder)

			protected.POST("/appointments", h.Appointment.Create)
			protected.GET("/appointments", h.Appointment.List)
			protected.GET("/appointments/:id", h.Appointment.Get)
			protected.POST("/appointments/:id/cancel", h.Appointment.Cancel)
			protected.POST("/appointments/:id/reschedule", h.Appointment.Reschedule)
			protected.POST("/appointments/:id/pay", h.Payment.PayAppointment)

			admin := protected.Group("/admin")
			admin.Use(middleware.AdminOnly())
			{
				admin.GET("/orders", h.Admin.ListOrders)
				admin.PATCH("/orders/:id/status", h.Admin.UpdateOrderStatus)
				admin.GET("/appointments", h.Admin.ListAppointments)
				admin.PATCH("/appointments/:id/status", h.Admin.UpdateAppointmentStatus)
			}
		}
	}
}
