package routes

import (
	"net/http"
	"time"

	"github.com/campusride/api-go/controllers"
	"github.com/campusride/api-go/middleware"
	"github.com/campusride/api-go/realtime"
	"github.com/campusride/api-go/services"
	"github.com/campusride/api-go/utils"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Dependencies carries everything main builds and the router needs.
type Dependencies struct {
	DB             *gorm.DB
	AllowedOrigins []string
	RateLimiter    *middleware.RateLimiter

	Auth          *services.AuthService
	Users         *services.UserService
	Points        *services.PointsService
	Activities    *services.ActivityService
	Rides         *services.RideshareService
	Market        *services.MarketplaceService
	Notifications *services.NotificationService
	Uploads       *services.UploadService
	Hub           *realtime.Hub
}

func SetupRoutes(r *gin.Engine, deps Dependencies) {
	r.Use(middleware.RequestID())
	r.Use(cors.New(corsConfig(deps.AllowedOrigins)))

	// Initialize controllers
	authController := controllers.NewAuthController(deps.Auth)
	validationController := controllers.NewValidationController(deps.Auth)
	userController := controllers.NewUserController(deps.Users)
	pointsController := controllers.NewPointsController(deps.Points)
	leaderboardController := controllers.NewLeaderboardController(deps.Points)
	activityController := controllers.NewActivityController(deps.Activities)
	rideshareController := controllers.NewRideshareController(deps.Rides)
	marketplaceController := controllers.NewMarketplaceController(deps.Market)
	notificationController := controllers.NewNotificationController(deps.Notifications)
	uploadController := controllers.NewUploadController(deps.Uploads)
	healthController := controllers.NewHealthController(deps.DB, deps.Hub)
	socketController := controllers.NewSocketController(deps.Auth, deps.Hub, deps.AllowedOrigins)

	r.GET("/", healthController.Root)
	r.GET("/ws", socketController.Connect)

	api := r.Group("/api")
	if deps.RateLimiter != nil {
		api.Use(deps.RateLimiter.Middleware())
	}
	v1 := api.Group("/v1")
	v1.GET("/health", healthController.Health)

	requireAuth := middleware.AuthMiddleware(deps.Auth)

	// Public routes, with the caller attached when a token is sent
	public := v1.Group("")
	public.Use(middleware.OptionalAuth(deps.Auth))

	// Protected routes
	protected := v1.Group("")
	protected.Use(requireAuth)

	SetupAuthRoutes(v1, requireAuth, authController)
	SetupValidationRoutes(public, validationController)
	SetupUserRoutes(protected, userController)
	// Features backed by the caller's own records; the demo account is turned away
	member := protected.Group("")
	member.Use(middleware.RejectDemo())

	SetupPointsRoutes(member, pointsController, leaderboardController)
	SetupActivityRoutes(public, member, activityController)
	SetupRideshareRoutes(public, member, rideshareController)
	SetupMarketplaceRoutes(public, member, marketplaceController)
	SetupNotificationRoutes(member, notificationController)
	SetupUploadRoutes(protected, uploadController)

	r.NoRoute(func(c *gin.Context) {
		utils.AbortWithError(c, utils.NewAppError(http.StatusNotFound, utils.CodeNotFound,
			"Route "+c.Request.Method+" "+c.Request.URL.Path+" not found"))
	})
}

func corsConfig(origins []string) cors.Config {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader}
	cfg.ExposeHeaders = []string{middleware.RequestIDHeader, "X-RateLimit-Limit", "Retry-After"}
	cfg.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	cfg.MaxAge = 12 * time.Hour

	wildcard := len(origins) == 0
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
	}
	if wildcard {
		// Credentials cannot be combined with a wildcard origin.
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	cfg.AllowCredentials = true
	return cfg
}
