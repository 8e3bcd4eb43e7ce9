package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/luxride/booking-portal/internal/cache"
	"github.com/luxride/booking-portal/internal/config"
	"github.com/luxride/booking-portal/internal/database"
	"github.com/luxride/booking-portal/internal/handlers"
	"github.com/luxride/booking-portal/internal/middleware"
	"github.com/luxride/booking-portal/internal/models"
	"github.com/luxride/booking-portal/internal/realtime"
	"github.com/luxride/booking-portal/internal/services"
	"github.com/luxride/booking-portal/pkg/email"
	"github.com/luxride/booking-portal/pkg/events"
	"github.com/luxride/booking-portal/pkg/jwt"
	"github.com/luxride/booking-portal/pkg/maps"
	"github.com/luxride/booking-portal/pkg/payments"
	"github.com/sirupsen/logrus"
)

var (
	version   = "1.0.0"
	buildTime = "unknown"
)

func main() {
	// Initialize logger
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	logger.Info("Starting LuxRide booking portal backend")
	logger.Infof("Version: %s, Build Time: %s", version, buildTime)

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	// Set log level
	logLevel, err := logrus.ParseLevel(cfg.Server.LogLevel)
	if err != nil {
		logger.Warn("Invalid log level, using INFO")
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	// Set Gin mode
	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	if cfg.Database.RunMigrations {
		logger.Info("Applying database migrations...")
		if err := database.RunMigrations(cfg.Database.URL, logger); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
	}

	// Initialize database connection
	logger.Info("Connecting to database...")
	db, err := database.NewConnection(cfg.Database)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		logger.Fatalf("Failed to ping database: %v", err)
	}
	logger.Info("Database connection established")

	// Repositories
	profileRepository := database.NewProfileRepository(db)
	bookingRepository := database.NewBookingRepository(db)
	refreshTokenRepository := database.NewRefreshTokenRepository(db)
	rateLimitRepository := database.NewRateLimitRepository(db)
	applicationRepository := database.NewDriverApplicationRepository(db)
	notificationRepository := database.NewNotificationRepository(db)

	// Booking cache and rate limit counters live in Redis when configured.
	// Without Redis, lists are read straight from Postgres and counters use
	// the rate_limit_counters table.
	var bookingCache cache.BookingCache = cache.NoopCache{}
	var counter services.WindowCounter = services.NewPostgresCounter(rateLimitRepository)
	if cfg.Redis.Addr != "" {
		redisClient := cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		defer redisClient.Close()

		redisCache := cache.NewRedisCache(redisClient, cfg.Redis.CacheTTL)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := redisCache.Ping(pingCtx)
		cancel()
		if err != nil {
			logger.WithError(err).Warn("Redis unavailable, falling back to Postgres counters and no booking cache")
		} else {
			bookingCache = redisCache
			counter = services.NewRedisCounter(redisCache)
			logger.WithField("addr", cfg.Redis.Addr).Info("Redis connected")
		}
	}

	// Notification events go through Kafka when brokers are configured
	var bus events.Bus
	if len(cfg.Kafka.Brokers) > 0 {
		bus = events.NewKafkaBus(events.KafkaConfig{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.Topic,
			GroupID: cfg.Kafka.GroupID,
		}, logger)
		logger.WithField("topic", cfg.Kafka.Topic).Info("Kafka notification bus enabled")
	} else {
		bus = events.NewMemoryBus(256)
		logger.Info("Using in-process notification bus")
	}
	defer bus.Close()

	var sender email.Sender
	if cfg.Email.ResendAPIKey != "" {
		sender = email.NewResendSender(cfg.Email.ResendAPIKey, cfg.Email.From)
	} else {
		logger.Info("RESEND_API_KEY not set, emails will be logged only")
		sender = email.NewLogSender(logger)
	}

	// Initialize services
	logger.Info("Initializing services...")
	jwtService := jwt.NewService(
		cfg.JWT.Secret,
		cfg.JWT.RefreshSecret,
		cfg.JWT.AccessTokenExpiry,
		cfg.JWT.RefreshTokenExpiry,
	)

	// The audit trail endpoints always work; service-side audit writes can be switched off
	auditStore := services.NewAuditService(db)
	var auditService *services.AuditService
	if cfg.Security.EnableAuditLog {
		auditService = auditStore
	}
	rateLimitService := services.NewRateLimitService(rateLimitRepository, counter, logger)
	mfaService := services.NewMFAService(profileRepository, cfg.MFA.Issuer)
	authService := services.NewAuthService(
		profileRepository,
		refreshTokenRepository,
		jwtService,
		mfaService,
		rateLimitService,
		auditService,
		services.AuthConfig{
			BcryptCost: cfg.Security.BcryptCost,
			AccessTTL:  cfg.JWT.AccessTokenExpiry,
			RefreshTTL: cfg.JWT.RefreshTokenExpiry,
		},
		logger,
	)

	addressService := services.NewAddressService(
		cfg.Maps,
		nil,
		maps.NewNominatimClient(cfg.Maps.NominatimURL, cfg.Maps.NominatimUserAgent),
		logger,
	)
	estimatorService := services.NewEstimatorService(addressService, cfg.Pricing, logger)

	gateway := payments.NewStripeGateway(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret, nil)
	bookingService := services.NewBookingService(bookingRepository, profileRepository, bookingCache, auditService, logger)
	checkoutService := services.NewCheckoutService(
		bookingRepository,
		estimatorService,
		gateway,
		rateLimitService,
		bus,
		bookingCache,
		auditService,
		cfg,
		logger,
	)
	webhookService := services.NewPaymentWebhookService(db, gateway, bus, bookingCache, auditService, logger)

	emailService := services.NewNotificationEmailService(sender, cfg.Email.AdminRecipients, logger)
	applicationService := services.NewDriverApplicationService(
		applicationRepository,
		profileRepository,
		authService,
		emailService,
		rateLimitService,
		auditService,
		logger,
	)
	dashboardService := services.NewDashboardService(bookingService, applicationRepository)

	hub := realtime.NewHub(cfg.CORS.AllowedOrigins, logger)
	defer hub.Close()
	relay := services.NewNotificationRelay(bus, hub, bookingCache, logger)

	reconciler := services.NewReconciliationService(bookingRepository, bookingCache, cfg.Reconciliation.PendingTTL, logger)
	cronService := services.NewCronService(
		services.CronConfig{
			ReconciliationEnabled:  cfg.Reconciliation.Enabled,
			ReconciliationSchedule: cfg.Reconciliation.Schedule,
		},
		reconciler,
		refreshTokenRepository,
		rateLimitRepository,
		auditService,
		logger,
	)
	if err := cronService.Start(); err != nil {
		logger.Fatalf("Failed to start cron service: %v", err)
	}
	defer cronService.Stop()
	logger.Info("Cron service started")

	relayCtx, stopRelay := context.WithCancel(context.Background())
	defer stopRelay()
	go func() {
		if err := relay.Run(relayCtx); err != nil && relayCtx.Err() == nil {
			logger.WithError(err).Error("Notification relay stopped")
		}
	}()

	logger.Info("Services initialized")

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(authService, logger)
	profileHandler := handlers.NewProfileHandler(profileRepository, auditService, logger)
	mfaHandler := handlers.NewMFAHandler(mfaService, profileRepository, auditService, logger)
	bookingHandler := handlers.NewBookingHandler(bookingService, estimatorService, logger)
	checkoutHandler := handlers.NewCheckoutHandler(checkoutService, webhookService, logger)
	placesHandler := handlers.NewPlacesHandler(addressService, logger)
	notificationHandler := handlers.NewNotificationHandler(emailService, notificationRepository, relay, hub, rateLimitService, logger)
	auditHandler := handlers.NewAuditHandler(auditStore, logger)
	dashboardHandler := handlers.NewDashboardHandler(dashboardService, logger)
	applicationHandler := handlers.NewDriverApplicationHandler(applicationService, logger)
	jobsHandler := handlers.NewJobsHandler(cronService)

	// Initialize Gin router
	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	if cfg.Security.EnableRequestLog {
		router.Use(requestLogger(logger))
	}

	// CORS configuration
	corsConfig := cors.Config{
		AllowOrigins:     cfg.CORS.AllowedOrigins,
		AllowMethods:     cfg.CORS.AllowedMethods,
		AllowHeaders:     cfg.CORS.AllowedHeaders,
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	router.Use(cors.New(corsConfig))

	// Health check endpoint
	router.GET("/health", healthCheckHandler(db))

	requireAuth := middleware.AuthMiddleware(jwtService)
	optionalAuth := middleware.OptionalAuth(jwtService)

	// Function-style endpoints called directly by the web front end
	functions := router.Group("/functions")
	{
		functions.POST("/create-checkout", optionalAuth, checkoutHandler.CreateCheckout)
		functions.POST("/stripe-webhook", checkoutHandler.StripeWebhook)
		functions.POST("/google-places", placesHandler.Suggest)
		functions.GET("/google-places", placesHandler.Lookup)
		functions.GET("/maps-config", placesHandler.ScriptConfig)
		functions.POST("/audit-log", optionalAuth, auditHandler.Record)
		functions.POST("/send-notification", requireAuth, notificationHandler.SendNotification)
		functions.POST("/generate-mfa-secret", requireAuth, mfaHandler.GenerateSecret)
		functions.POST("/verify-mfa-token", requireAuth, mfaHandler.VerifyToken)
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Authentication routes (public)
		auth := v1.Group("/auth")
		{
			auth.POST("/signup", authHandler.SignUp)
			auth.POST("/signin", authHandler.SignIn)
			auth.POST("/refresh", authHandler.Refresh)

			protected := auth.Group("")
			protected.Use(requireAuth)
			{
				protected.POST("/signout", authHandler.SignOut)
				protected.GET("/session", authHandler.Session)
			}
		}

		// Booking form helpers (public, guests may book)
		v1.POST("/bookings/estimate", bookingHandler.Estimate)
		v1.POST("/bookings/validate", bookingHandler.Validate)
		v1.GET("/bookings/time-slots", bookingHandler.TimeSlots)

		// Driver applications accept both guests and signed-in clients
		v1.POST("/driver-applications", optionalAuth, applicationHandler.Apply)

		user := v1.Group("")
		user.Use(requireAuth)
		{
			user.GET("/profile", profileHandler.GetProfile)
			user.PUT("/profile", profileHandler.UpdateProfile)

			user.GET("/dashboard", dashboardHandler.Summary)

			user.GET("/bookings", middleware.RequireCapability(models.CapViewOwnBookings), bookingHandler.ListMine)
			user.GET("/bookings/assigned", middleware.RequireCapability(models.CapViewAssignedBookings), bookingHandler.ListAssigned)
			user.GET("/bookings/:id", bookingHandler.GetBooking)
			user.PUT("/bookings/:id", bookingHandler.UpdateBooking)
			user.POST("/bookings/:id/cancel", bookingHandler.CancelBooking)

			user.GET("/driver-applications/me", applicationHandler.Mine)

			user.GET("/notifications", notificationHandler.ListMine)
			user.POST("/notifications/:id/read", notificationHandler.MarkRead)
		}

		admin := v1.Group("/admin")
		admin.Use(middleware.TokenFromQuery(), requireAuth, middleware.RequireRole(models.RoleAdmin))
		{
			admin.GET("/bookings", middleware.RequireCapability(models.CapViewAllBookings), bookingHandler.ListAll)
			admin.PUT("/bookings/:id/status", middleware.RequireCapability(models.CapManageBookings), bookingHandler.UpdateStatus)
			admin.PUT("/bookings/:id/driver", middleware.RequireCapability(models.CapManageBookings), bookingHandler.AssignDriver)

			admin.GET("/profiles", middleware.RequireCapability(models.CapManageProfiles), profileHandler.ListProfiles)
			admin.PUT("/profiles/:id/role", middleware.RequireCapability(models.CapManageProfiles), profileHandler.UpdateRole)

			admin.GET("/driver-applications", middleware.RequireCapability(models.CapReviewApplications), applicationHandler.List)
			admin.POST("/driver-applications/:id/approve", middleware.RequireCapability(models.CapReviewApplications), applicationHandler.Approve)
			admin.POST("/driver-applications/:id/reject", middleware.RequireCapability(models.CapReviewApplications), applicationHandler.Reject)

			admin.GET("/alerts", middleware.RequireCapability(models.CapViewNotifications), notificationHandler.ListAlerts)
			admin.GET("/alerts/ws", middleware.RequireCapability(models.CapViewNotifications), notificationHandler.AlertsSocket)

			admin.GET("/audit-logs", middleware.RequireCapability(models.CapViewAuditLog), auditHandler.List)

			admin.GET("/jobs", jobsHandler.Status)
			admin.POST("/jobs/reconcile", jobsHandler.Reconcile)
			admin.POST("/jobs/cleanup", jobsHandler.Cleanup)
		}
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Infof("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	stopRelay()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// requestLogger logs one line per request. Tokens are never logged.
func requestLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		c.Next()

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"method":     c.Request.Method,
			"path":       path,
			"ip":         c.ClientIP(),
			"latency_ms": time.Since(start).Milliseconds(),
			"user_agent": c.Request.UserAgent(),
			"has_auth":   c.GetHeader("Authorization") != "",
		}

		// Add user context if available
		if userID, exists := c.Get("user_id"); exists {
			fields["user_id"] = userID
		}
		if role, exists := c.Get("role"); exists {
			fields["role"] = role
		}

		entry := logger.WithFields(fields)

		if len(c.Errors) > 0 {
			for i, err := range c.Errors {
				entry = entry.WithField(fmt.Sprintf("error_%d", i), err.Error())
			}
			entry.Error("Request failed with errors")
			return
		}

		status := c.Writer.Status()
		switch {
		case status >= 500:
			entry.Error("Request completed with server error")
		case status >= 400:
			entry.Warn("Request completed with client error")
		default:
			entry.Info("Request completed successfully")
		}
	}
}

// healthCheckHandler returns a health check endpoint
func healthCheckHandler(db database.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":   "unhealthy",
				"database": "unhealthy",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"database":  "healthy",
			"version":   version,
			"timestamp": time.Now().Unix(),
		})
	}
}
