package handlers

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"

	"github.com/AgiriTaofeek/natours-app/apperror"
	"github.com/AgiriTaofeek/natours-app/config"
	"github.com/AgiriTaofeek/natours-app/database"
	"github.com/AgiriTaofeek/natours-app/metrics"
	"github.com/AgiriTaofeek/natours-app/middleware"
	"github.com/AgiriTaofeek/natours-app/models"
	"github.com/AgiriTaofeek/natours-app/payment"
	"github.com/AgiriTaofeek/natours-app/services"
	"github.com/AgiriTaofeek/natours-app/uploads"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Dependencies is everything the router wires into handlers.
type Dependencies struct {
	Config   *config.Config
	Log      *logrus.Logger
	Stores   *database.Stores
	Auth     *services.AuthService
	Users    *services.UserService
	Tours    *services.TourService
	Reviews  *services.ReviewService
	Bookings *services.BookingService
	Gateway  payment.Gateway
	Images   *uploads.Processor
	Limiter  middleware.Limiter
	// Ping reports store health for /healthz.
	Ping func(ctx context.Context) error
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}

func NewRouter(d Dependencies) *gin.Engine {
	cfg := d.Config
	production := cfg.IsProduction()

	router := gin.New()
	router.SetFuncMap(TemplateFuncs())
	router.LoadHTMLGlob(filepath.Join(cfg.App.TemplatesDir, "*.html"))

	router.Use(
		middleware.RequestLogger(d.Log),
		metrics.Middleware(),
		middleware.ErrorHandler(d.Log, production),
		middleware.Recovery(),
		middleware.RequestTime(),
		middleware.SecurityHeaders(production),
		cors.New(corsConfig(cfg.App.CORSOrigins)),
	)

	router.Static("/css", filepath.Join(cfg.App.PublicDir, "css"))
	router.Static("/js", filepath.Join(cfg.App.PublicDir, "js"))
	router.Static("/img", filepath.Join(cfg.App.PublicDir, "img"))

	router.GET("/healthz", func(c *gin.Context) {
		if d.Ping != nil {
			if err := d.Ping(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "message": err.Error()})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	authHandler := NewAuthHandler(d.Auth, cfg.CookieTTL(), production)
	userHandler := NewUserHandler(d.Stores.Users, d.Users, d.Images)
	tourHandler := NewTourHandler(d.Stores.Tours, d.Tours, d.Images)
	reviewHandler := NewReviewHandler(d.Stores.Reviews, d.Reviews)
	bookingHandler := NewBookingHandler(d.Stores.Bookings, d.Bookings, d.Gateway, d.Log)
	viewHandler := NewViewHandler(d.Tours, d.Bookings, d.Users)

	protect := middleware.Protect(d.Auth)

	// Payment events carry their own signature and need the raw body.
	router.POST("/webhook-checkout", middleware.JSONErrors, bookingHandler.WebhookCheckout)

	api := router.Group("/api")
	api.Use(middleware.RateLimit(d.Limiter, d.Log), middleware.BodyLimit(cfg.Limits.BodyLimitBytes))
	v1 := api.Group("/v1")

	tours := v1.Group("/tours")
	{
		tours.GET("/top-5-cheap", tourHandler.AliasTopTours, tourHandler.GetAll())
		tours.GET("/tour-stats", tourHandler.GetTourStats)
		tours.GET("/monthly-plan/:year", protect,
			middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide, models.RoleGuide), tourHandler.GetMonthlyPlan)
		tours.GET("/tours-within/:distance/center/:latlng/unit/:unit", tourHandler.GetToursWithin)
		tours.GET("/distances/:latlng/unit/:unit", tourHandler.GetDistances)

		tours.GET("", tourHandler.GetAll())
		tours.POST("", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), tourHandler.CreateOne())
		tours.GET("/:id", tourHandler.GetOne())
		tours.PATCH("/:id", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide),
			tourHandler.UploadTourImages, tourHandler.UpdateOne())
		tours.DELETE("/:id", protect, middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide), tourHandler.DeleteOne())

		tours.GET("/:id/reviews", NestedTour, reviewHandler.GetAll())
		tours.POST("/:id/reviews", protect, middleware.RestrictTo(models.RoleUser), NestedTour, reviewHandler.CreateOne())
	}

	users := v1.Group("/users")
	{
		users.POST("/signup", authHandler.Signup)
		users.POST("/login", authHandler.Login)
		users.GET("/logout", authHandler.Logout)
		users.POST("/forgotPassword", authHandler.ForgotPassword)
		users.PATCH("/resetPassword/:token", authHandler.ResetPassword)

		users.PATCH("/updateMyPassword", protect, authHandler.UpdatePassword)
		users.GET("/me", protect, userHandler.GetMe, userHandler.GetOne())
		users.PATCH("/updateMe", protect, userHandler.UpdateMe)
		users.DELETE("/deleteMe", protect, userHandler.DeleteMe)

		admin := middleware.RestrictTo(models.RoleAdmin)
		users.GET("", protect, admin, userHandler.GetAll())
		users.POST("", protect, admin, userHandler.CreateUser)
		users.GET("/:id", protect, admin, userHandler.GetOne())
		users.PATCH("/:id", protect, admin, userHandler.UpdateOne())
		users.DELETE("/:id", protect, admin, userHandler.DeleteOne())
	}

	reviews := v1.Group("/reviews", protect)
	{
		writers := middleware.RestrictTo(models.RoleUser, models.RoleAdmin)
		reviews.GET("", reviewHandler.GetAll())
		reviews.POST("", middleware.RestrictTo(models.RoleUser), reviewHandler.CreateOne())
		reviews.GET("/:id", reviewHandler.GetOne())
		reviews.PATCH("/:id", writers, reviewHandler.UpdateOne())
		reviews.DELETE("/:id", writers, reviewHandler.DeleteOne())
	}

	bookings := v1.Group("/bookings", protect)
	{
		bookings.GET("/checkout-session/:tourID", bookingHandler.GetCheckoutSession)

		staff := middleware.RestrictTo(models.RoleAdmin, models.RoleLeadGuide)
		bookings.GET("", staff, bookingHandler.GetAll())
		bookings.POST("", staff, bookingHandler.CreateOne())
		bookings.GET("/:id", staff, bookingHandler.GetOne())
		bookings.PATCH("/:id", staff, bookingHandler.UpdateOne())
		bookings.DELETE("/:id", staff, bookingHandler.DeleteOne())
	}

	views := router.Group("/", Alerts)
	{
		loggedIn := middleware.IsLoggedIn(d.Auth)
		views.GET("/", loggedIn, viewHandler.Overview)
		views.GET("/tour/:slug", loggedIn, viewHandler.Tour)
		views.GET("/login", loggedIn, viewHandler.Login)
		views.GET("/signup", loggedIn, viewHandler.Signup)
		views.GET("/me", protect, viewHandler.Account)
		views.GET("/my-tours", protect, viewHandler.MyTours)
		views.POST("/submit-user-data", protect, viewHandler.SubmitUserData)
	}

	router.NoRoute(func(c *gin.Context) {
		middleware.Fail(c, apperror.NotFound(fmt.Sprintf("Can't find %s on this server!", c.Request.URL.String())))
	})
	return router
}
