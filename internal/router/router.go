package router

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	apiHandler "github.com/campaignhub/backend/api/handler"
)

type Handlers struct {
	Auth    *apiHandler.AuthHandler
	Content *apiHandler.ContentHandler
	Backup  *apiHandler.BackupHandler
	Media   *apiHandler.MediaHandler
	Health  *apiHandler.HealthHandler
}

func New(handlers Handlers, authMiddleware func(fasthttp.RequestHandler) fasthttp.RequestHandler) *router.Router {
	r := router.New()

	r.GET("/health", handlers.Health.Check)

	// Auth routes
	r.POST("/api/v1/auth/login", handlers.Auth.Login)

	// Public content routes
	r.GET("/api/v1/content/{domain}", handlers.Content.List)
	r.GET("/api/v1/content/{domain}/settings", handlers.Content.GetSettings)
	r.GET("/api/v1/content/{domain}/{id}", handlers.Content.Get)
	r.POST("/api/v1/content/{domain}/{id}/views", handlers.Content.IncrementView)
	r.GET("/media/{token}", handlers.Media.Serve)

	// Admin routes
	r.POST("/api/v1/content/{domain}", authMiddleware(handlers.Content.Upsert))
	r.PUT("/api/v1/content/{domain}/settings", authMiddleware(handlers.Content.UpdateSettings))
	r.PUT("/api/v1/content/{domain}/{id}", authMiddleware(handlers.Content.Upsert))
	r.DELETE("/api/v1/content/{domain}/{id}", authMiddleware(handlers.Content.Delete))
	r.GET("/api/v1/content/{domain}/sync", authMiddleware(handlers.Content.SyncStatus))
	r.POST("/api/v1/content/{domain}/sync", authMiddleware(handlers.Content.Resync))
	r.GET("/api/v1/backup/{domain}", authMiddleware(handlers.Backup.Export))
	r.POST("/api/v1/backup/{domain}", authMiddleware(handlers.Backup.Import))
	r.POST("/api/v1/media/{domain}", authMiddleware(handlers.Media.Upload))

	return r
}
