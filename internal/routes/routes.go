package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"healthreach-server/internal/activity"
	"healthreach-server/internal/appointments"
	"healthreach-server/internal/blob"
	"healthreach-server/internal/handlers"
	"healthreach-server/internal/identity"
	"healthreach-server/internal/logger"
	"healthreach-server/internal/middleware"
	"healthreach-server/internal/models"
	"healthreach-server/internal/notifications"
	"healthreach-server/internal/store"
)

// Dependencies are the collaborators the handlers are built from.
type Dependencies struct {
	Store         store.DocumentStore
	Verifier      identity.Verifier
	Firebase      identity.Verifier
	Accounts      identity.AccountManager
	Sessions      *identity.SessionManager
	Uploader      blob.Uploader
	Recorder      activity.Recorder
	Notifications *notifications.Service
	Workflow      *appointments.Workflow
	Log           *logger.Logger
	Gatherer      prometheus.Gatherer
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, deps Dependencies) {
	authHandler := handlers.NewAuthHandler(deps.Store, deps.Accounts, deps.Firebase, deps.Sessions, deps.Uploader, deps.Recorder, deps.Log)
	userHandler := handlers.NewUserHandler(deps.Store, deps.Accounts, deps.Recorder)
	healthCenterHandler := handlers.NewHealthCenterHandler(deps.Store, deps.Recorder)
	serviceHandler := handlers.NewServiceHandler(deps.Store, deps.Recorder)
	appointmentHandler := handlers.NewAppointmentHandler(deps.Workflow)
	notificationHandler := handlers.NewNotificationHandler(deps.Notifications, deps.Store, deps.Recorder)
	dashboardHandler := handlers.NewDashboardHandler(deps.Store)

	staff := middleware.RoleAuthMiddleware(models.RoleAdmin, models.RoleHealthWorker)
	adminOnly := middleware.RoleAuthMiddleware(models.RoleAdmin)

	// Public routes (no authentication required)
	public := router.Group("/api/v1")
	{
		authRoutes := public.Group("/auth")
		{
			authRoutes.POST("/register", authHandler.Register)
			authRoutes.POST("/login", authHandler.Login)
			authRoutes.POST("/session", authHandler.CreateSession)
		}
	}

	// Authenticated routes
	private := router.Group("/api/v1")
	private.Use(middleware.AuthMiddleware(&identity.ActiveVerifier{Next: deps.Verifier, Users: deps.Store}))
	{
		authRoutesPrivate := private.Group("/auth")
		{
			authRoutesPrivate.POST("/logout", authHandler.Logout)
			authRoutesPrivate.GET("/profile", authHandler.GetProfile)
			authRoutesPrivate.PUT("/profile", authHandler.UpdateProfile)
			authRoutesPrivate.POST("/profile/photo", authHandler.UploadPhoto)
		}

		userRoutes := private.Group("/users", adminOnly)
		{
			userRoutes.GET("", userHandler.GetUsers)
			userRoutes.GET("/:id", userHandler.GetUserByID)
			userRoutes.PUT("/:id", userHandler.UpdateUser)
			userRoutes.DELETE("/:id", userHandler.DeleteUser)
		}

		healthCenterRoutes := private.Group("/health-centers")
		{
			healthCenterRoutes.GET("", healthCenterHandler.GetHealthCenters)
			healthCenterRoutes.GET("/:id", healthCenterHandler.GetHealthCenter)
			healthCenterRoutes.POST("", adminOnly, healthCenterHandler.CreateHealthCenter)
			healthCenterRoutes.PUT("/:id", adminOnly, healthCenterHandler.UpdateHealthCenter)
			healthCenterRoutes.DELETE("/:id", adminOnly, healthCenterHandler.DeleteHealthCenter)
		}

		serviceRoutes := private.Group("/services")
		{
			serviceRoutes.GET("", serviceHandler.GetServices)
			serviceRoutes.GET("/:id", serviceHandler.GetService)
			serviceRoutes.POST("", staff, serviceHandler.CreateService)
			serviceRoutes.PUT("/:id", staff, serviceHandler.UpdateService)
			serviceRoutes.DELETE("/:id", staff, serviceHandler.DeleteService)
		}

		// Ownership and status rules are enforced by the workflow.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PUT("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.DELETE("/:id", adminOnly, appointmentHandler.DeleteAppointment)
		}

		notificationRoutes := private.Group("/notifications")
		{
			notificationRoutes.GET("", notificationHandler.GetNotifications)
			notificationRoutes.GET("/unread-count", notificationHandler.GetUnreadCount)
			notificationRoutes.PATCH("/read-all", notificationHandler.MarkAllAsRead)
			notificationRoutes.PATCH("/:id/read", notificationHandler.MarkAsRead)
			notificationRoutes.DELETE("/:id", notificationHandler.DeleteNotification)
			notificationRoutes.POST("", adminOnly, notificationHandler.Broadcast)
		}

		deviceTokenRoutes := private.Group("/device-tokens")
		{
			deviceTokenRoutes.POST("", notificationHandler.RegisterDeviceToken)
			deviceTokenRoutes.DELETE("", notificationHandler.UnregisterDeviceToken)
		}

		private.GET("/dashboard/stats", staff, dashboardHandler.GetStats)
		private.GET("/logs", adminOnly, dashboardHandler.GetLogs)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "UP"})
	})
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
}
