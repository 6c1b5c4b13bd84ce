package main

import (
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/nutriplan/practice-api/api/swagger"
	"github.com/nutriplan/practice-api/internal/handler"
	"github.com/nutriplan/practice-api/internal/middleware"
	"github.com/nutriplan/practice-api/internal/models"
	"github.com/nutriplan/practice-api/internal/ratelimit"
	"github.com/nutriplan/practice-api/internal/repository"
	"github.com/nutriplan/practice-api/internal/service"
	"github.com/nutriplan/practice-api/pkg/cache"
	"github.com/nutriplan/practice-api/pkg/config"
	"github.com/nutriplan/practice-api/pkg/database"
	"github.com/nutriplan/practice-api/pkg/export"
	"github.com/nutriplan/practice-api/pkg/logger"
	corsmiddleware "github.com/nutriplan/practice-api/pkg/middleware/cors"
	reqidmiddleware "github.com/nutriplan/practice-api/pkg/middleware/requestid"
	"github.com/nutriplan/practice-api/pkg/storage"
)

// @title NutriPlan Practice API
// @version 1.0.0
// @description Dietitian practice API: staff document management and public share links
// @BasePath /
// @schemes http https

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
	}
	defer db.Close() //nolint:errcheck

	files, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		logr.Sugar().Fatalw("failed to init document storage", "error", err)
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	var limiter ratelimit.AttemptLimiter
	if cfg.Shares.RateLimitStore == "redis" {
		redisClient, err := cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to redis", "error", err)
		}
		defer redisClient.Close() //nolint:errcheck
		limiter = ratelimit.NewRedisLimiter(redisClient, cfg.Shares.PasswordMaxAttempts, cfg.Shares.PasswordAttemptWindow)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.Shares.PasswordMaxAttempts, cfg.Shares.PasswordAttemptWindow)
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	userRepo := repository.NewUserRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	shareRepo := repository.NewShareRepository(db)
	accessLogRepo := repository.NewAccessLogRepository(db)

	authSvc := service.NewAuthService(userRepo, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.Secret,
		AccessTokenExpiry:  cfg.JWT.Expiration,
		RefreshTokenExpiry: cfg.JWT.RefreshExpiration,
		Issuer:             "nutriplan-practice-api",
	})
	documentSvc := service.NewDocumentService(documentRepo, files, signer, userRepo, validate, logr, service.DocumentConfig{
		MaxFileSizeBytes: cfg.Documents.MaxFileSizeBytes,
		AllowedMIMEs:     cfg.Documents.AllowedMIMEs,
	})
	shareSvc := service.NewShareService(shareRepo, documentRepo, accessLogRepo, export.NewCSVExporter(), userRepo, validate, logr, service.ShareConfig{
		PublicBaseURL: cfg.Shares.PublicBaseURL,
	})
	shareAccessSvc := service.NewShareAccessService(shareRepo, documentRepo, accessLogRepo, files, limiter, metricsSvc, logr, service.ShareAccessConfig{
		PreviewMIMEs: cfg.Shares.PreviewMIMEs,
	})

	authHandler := handler.NewAuthHandler(authSvc)
	documentHandler := handler.NewDocumentHandler(documentSvc)
	shareHandler := handler.NewShareHandler(shareSvc)
	publicShareHandler := handler.NewPublicShareHandler(shareAccessSvc)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/ready", func(c *gin.Context) {
		if err := db.Ping(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	})

	r.GET("/metrics", gin.WrapH(metricsSvc.Handler()))

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	// Anonymous share-link routes. No JWT: the token in the URL is the
	// credential.
	public := r.Group("/public/documents")
	{
		public.GET("/:token", publicShareHandler.Info)
		public.POST("/:token/verify", publicShareHandler.VerifyPassword)
		public.GET("/:token/download", publicShareHandler.Download)
		public.GET("/:token/preview", publicShareHandler.Preview)
	}

	api := r.Group(cfg.APIPrefix)

	auth := api.Group("/auth")
	{
		auth.POST("/login", authHandler.Login)
		auth.POST("/refresh", authHandler.Refresh)
		auth.POST("/logout", middleware.JWT(authSvc), authHandler.Logout)
		auth.POST("/change-password", middleware.JWT(authSvc), authHandler.ChangePassword)
		auth.GET("/me", middleware.JWT(authSvc), authHandler.Me)
	}

	staffRoles := middleware.RequireRoles(models.RoleSuperAdmin, models.RoleAdmin, models.RoleDietitian)

	// The file route sits outside the JWT group: the signed token in the
	// query string is its credential, so the link works in a plain browser
	// download.
	api.GET("/documents/:id/file", documentHandler.Download)

	documents := api.Group("/documents", middleware.JWT(authSvc), staffRoles)
	{
		documents.POST("", documentHandler.Upload)
		documents.GET("", documentHandler.List)
		documents.GET("/:id", documentHandler.Get)
		documents.GET("/:id/download-url", documentHandler.DownloadURL)
		documents.DELETE("/:id", documentHandler.Delete)
		documents.POST("/:id/shares", shareHandler.Create)
	}

	shares := api.Group("/shares", middleware.JWT(authSvc), staffRoles)
	{
		shares.GET("", shareHandler.List)
		shares.GET("/:id", shareHandler.Get)
		shares.PATCH("/:id", shareHandler.Update)
		shares.DELETE("/:id", shareHandler.Revoke)
		shares.GET("/:id/access-logs", shareHandler.AccessLogs)
		shares.GET("/:id/access-logs/export", shareHandler.ExportAccessLogs)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env)
	if err := r.Run(addr); err != nil {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
