package main

import (
	"os"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"pharmacart-backend/internal/config"
	"pharmacart-backend/internal/gateway"
	"pharmacart-backend/internal/handlers"
	"pharmacart-backend/internal/notify"
	"pharmacart-backend/internal/payment"
	"pharmacart-backend/internal/records"
	"pharmacart-backend/internal/routes"
	"pharmacart-backend/internal/store"
	"pharmacart-backend/pkg/utils"
)

func main() {
	log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

	cfg := config.Load()

	db, err := config.ConnectDB(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("connecting to database")
	}
	if err := store.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("running migrations")
	}

	// The mirror is optional: without Redis the API still serves, it
	// just cannot answer listings while MySQL is down.
	var mirror *store.Mirror
	var mirrorReader records.MirrorReader
	if redisClient, err := config.ConnectRedis(cfg); err != nil {
		log.Warn().Err(err).Msg("redis unavailable, fallback cache disabled")
	} else {
		mirror = store.NewMirror(redisClient)
		mirrorReader = mirror
	}

	utils.InitFCM(cfg.FirebaseCredentials)

	recordStore := store.New(db, mirror)
	userStore := store.NewUserStore(db)

	recordsSvc := records.NewService(recordStore, mirrorReader)
	midtransGW := gateway.NewMidtrans(cfg.MidtransServerKey, cfg.MidtransProduction)
	orchestrator := payment.NewOrchestrator(recordStore, midtransGW, cfg.BaseURL)
	reconciler := payment.NewReconciler(recordStore, notify.NewPush(userStore))

	checkout := handlers.NewCheckoutFlow(orchestrator, userStore)
	h := routes.Handlers{
		Auth:        handlers.NewAuthHandler(userStore),
		User:        handlers.NewUserHandler(userStore),
		Order:       handlers.NewOrderHandler(recordsSvc, checkout),
		Appointment: handlers.NewAppointmentHandler(recordsSvc, checkout),
		Payment:     handlers.NewPaymentHandler(checkout, reconciler, orchestrator, recordsSvc, cfg.MidtransServerKey),
		Admin:       handlers.NewAdminHandler(recordsSvc),
	}

	r := gin.Default()
	routes.SetupRoutes(r, h)

	r.GET("/ping", func(c *gin.Context) {
		utils.APIResponse(c, 200, true, "Server OK", nil)
	})

	log.Info().Str("port", cfg.Port).Msg("server listening")
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}
