package router

import (
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"github.com/dentalert/dentalert-api/internal/handler"
	"github.com/dentalert/dentalert-api/internal/middleware"
	"github.com/dentalert/dentalert-api/pkg/phone"
)

type Handler interface {
	RegisterRoutes(*gin.RouterGroup)
}

type Config struct {
	RateLimitEnabled bool
	RateLimit        rate.Limit
	RateBurst        int
}

type Router struct {
	engine       *gin.Engine
	auth         *middleware.AuthMiddleware
	healthH      *handler.HealthHandler
	authH        Handler
	patientH     Handler
	appointmentH Handler
	messengerH   Handler
	webhookH     interface{ RegisterWebhook(*gin.RouterGroup) }
}

func NewRouter(
	auth *middleware.AuthMiddleware,
	healthH *handler.HealthHandler,
	authH Handler,
	patientH Handler,
	appointmentH Handler,
	messengerH Handler,
	webhookH interface{ RegisterWebhook(*gin.RouterGroup) },
	config Config,
) *Router {
	gin.SetMode(gin.ReleaseMode)
	registerValidators()

	engine := gin.New()
	engine.Use(
		middleware.Recovery(),
		middleware.RequestID(),
		middleware.Logger(),
	)

	if config.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
			Rate:  config.RateLimit,
			Burst: config.RateBurst,
		})
		engine.Use(rateLimiter.RateLimit())
	}

	return &Router{
		engine:       engine,
		auth:         auth,
		healthH:      healthH,
		authH:        authH,
		patientH:     patientH,
		appointmentH: appointmentH,
		messengerH:   messengerH,
		webhookH:     webhookH,
	}
}

func (r *Router) Setup() {
	r.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.engine.Group("/api/v1")

	health := api.Group("/health")
	{
		health.GET("/live", r.healthH.HealthCheck)
		health.GET("/ready", r.healthH.ReadyCheck)
	}

	// Public routes
	r.authH.RegisterRoutes(api)
	r.webhookH.RegisterWebhook(api)

	// Protected routes
	protected := api.Group("")
	protected.Use(r.auth.Authenticate())
	r.patientH.RegisterRoutes(protected)
	r.appointmentH.RegisterRoutes(protected)
	r.messengerH.RegisterRoutes(protected)
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// registerValidators installs the custom "phone" binding rule used by the
// patient request structs.
func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			_, err := phone.Normalize(fl.Field().String())
			return err == nil
		})
	}
}
