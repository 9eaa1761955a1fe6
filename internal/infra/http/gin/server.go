package ginserver

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	gin "github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"staysettle/internal/infra/config"
	"staysettle/internal/infra/obs"
)

type Handlers struct {
	Booking        *BookingHandler
	Payment        *PaymentHandler
	Settlement     *SettlementHandler
	AuthMiddleware gin.HandlerFunc
	Metrics        gin.HandlerFunc
}

func NewServer(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(cfg, obsMW, health, h),
		ReadHeaderTimeout: 10 * time.Second,
	}
}

func NewRouter(cfg config.Config, obsMW obs.Middleware, health obs.HealthHandlers, h Handlers) *gin.Engine {
	mode := configureGinMode(cfg.Env)
	if obsMW.Logger != nil {
		obsMW.Logger.Info("gin initialized", "mode", mode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("staysettle"))
	router.Use(obsMW.RequestID())
	router.Use(obsMW.LoggerMiddleware())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{
			"Content-Length",
			"Content-Type",
			"X-Request-ID",
		},
		MaxAge: 12 * time.Hour,
	}))
	if h.AuthMiddleware != nil {
		router.Use(h.AuthMiddleware)
	}

	router.GET("/livez", health.Livez)
	router.GET("/readyz", health.Readyz)
	if h.Metrics != nil {
		router.GET("/metrics", h.Metrics)
	}

	api := router.Group("/api/v1")
	if b := h.Booking; b != nil {
		api.POST("/bookings", b.Create)
		api.GET("/bookings", b.List)
		api.GET("/bookings/:id", b.Get)
		api.DELETE("/bookings/:id", b.Delete)
		api.POST("/bookings/:id/accept", b.Accept)
		api.POST("/bookings/:id/reject", b.Reject)
		api.POST("/bookings/:id/cancel", b.Cancel)
		api.POST("/bookings/:id/check-in", b.CheckIn)
		api.POST("/bookings/:id/complete", b.Complete)
	}
	if p := h.Payment; p != nil {
		api.POST("/payments/initialize", p.Initialize)
		api.GET("/payments/verify/:reference", p.Verify)
		if p.Webhooks != nil {
			api.POST("/payments/webhook", p.Webhook)
		}
	}
	if s := h.Settlement; s != nil {
		host := api.Group("/host")
		host.GET("/earnings", s.Earnings)
		host.GET("/earnings/summary", s.EarningsSummary)
		host.POST("/payouts", s.RequestPayout)
		host.GET("/payouts", s.ListPayouts)
		host.GET("/bank-accounts", s.BankAccounts)
	}

	return router
}

func configureGinMode(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "debug", "dev", "local":
		gin.SetMode(gin.DebugMode)
		return gin.DebugMode
	case "test", "testing":
		gin.SetMode(gin.TestMode)
		return gin.TestMode
	default:
		gin.SetMode(gin.ReleaseMode)
		return gin.ReleaseMode
	}
}
