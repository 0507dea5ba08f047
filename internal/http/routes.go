package http

import (
	"time"

	"companion_gateway/internal/cache"
	"companion_gateway/internal/config"
	"companion_gateway/internal/http/handlers"
	"companion_gateway/internal/http/middleware"
	"companion_gateway/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterRoutes wires the API surface. The probe and metrics endpoints stay
// outside the version gate and rate limiter.
func RegisterRoutes(
	r *gin.Engine,
	cfg *config.Config,
	db *pgxpool.Pool,
	c *cache.Client,
	identity *service.IdentityService,
	auth *service.AuthService,
	rooms *service.RoomService,
	results *service.ResultService,
) {
	h := handlers.NewHandler(identity, auth, rooms, results)
	healthHandler := handlers.NewHealthHandler(db, c, cfg.AppVersion)

	r.Use(middleware.Recovery())
	r.Use(middleware.Metrics())

	r.GET("/health", healthHandler.Health)
	r.GET("/healthz", healthHandler.Liveness)
	r.GET("/readyz", healthHandler.Readiness)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	v1.Use(middleware.RateLimit(c, cfg.APIRateLimit, time.Duration(cfg.APIRateWindowSeconds)*time.Second))
	v1.Use(middleware.AppVersion(cfg.AppVersion, cfg.SkipAppVersionCheck))

	// Identity: the only versioned routes reachable without a token.
	v1.POST("/sms", h.SendSMSCode)
	v1.POST("/sms/verify", h.Login)

	authed := v1.Group("")
	authed.Use(middleware.Auth(auth))
	{
		authed.POST("/logout", h.Logout)
		authed.GET("/me", h.Me)
		authed.POST("/profile", h.SetProfile)
		authed.GET("/profile", h.Profile)
		authed.GET("/platform/total-users", h.TotalUsers)

		authed.GET("/room/list", h.ListRooms)
		authed.GET("/room/detail", h.RoomDetail)
		authed.GET("/room/entered", h.EnteredRoom)
		authed.POST("/room/enter", h.EnterRoom)
		authed.POST("/room/leave", h.LeaveRoom)
		authed.POST("/room/queue/sit", h.Sit)
		authed.POST("/room/queue/stand", h.Stand)
		authed.POST("/room/queue/ready", h.Ready)
		authed.POST("/room/queue/unready", h.Unready)
		authed.POST("/room/battle/start", h.StartBattle)
		authed.POST("/room/battle/end", h.EndBattle)

		authed.GET("/game/stats", h.GameStats)
	}

	// Callback from the external game server. The server holds no client
	// credentials and does not send an app version, so the route sits outside
	// both gates; only the rate limiter applies.
	callback := r.Group("/api/v1")
	callback.Use(middleware.RateLimit(c, cfg.APIRateLimit, time.Duration(cfg.APIRateWindowSeconds)*time.Second))
	callback.POST("/game/result", h.IngestGameResult)
}
