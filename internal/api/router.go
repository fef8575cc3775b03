package api

import (
	"time"

	"github.com/SherClockHolmes/webpush-go"
	"github.com/gin-gonic/gin"
	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"dispen-agua-admin/config"
	"dispen-agua-admin/internal/archive"
	"dispen-agua-admin/internal/mw"
	"dispen-agua-admin/internal/session"
)

// NewRouter creates and configures the dashboard's Gin router.
func NewRouter(sessions *session.Manager, store archive.Store, webpushOptions *webpush.Options, cfg *config.ServerConfig) *gin.Engine {
	r := gin.Default()
	r.Use(mw.RequestID())

	handler := NewHandler(sessions, store, webpushOptions)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)

	cacheTTL := time.Duration(cfg.CacheTTLSeconds) * time.Second
	cacheStore := cache.New(cacheTTL, 2*cacheTTL)
	caching := mw.Cache(cacheStore, cacheTTL)

	r.GET("/healthz", func(c *gin.Context) { c.JSON(200, gin.H{"ok": true}) })

	admin := r.Group("/admin")
	admin.Use(rateLimiter)
	{
		admin.POST("/login", handler.PostLogin)
		admin.POST("/logout", handler.PostLogout)

		// Archived history and push subscriptions are not tied to a
		// panel session.
		admin.GET("/archive/payments", caching, handler.GetArchivedPayments)
		admin.GET("/subscriptions", handler.GetSubscription)
		admin.PUT("/subscriptions", handler.PutSubscription)
		admin.DELETE("/subscriptions", handler.DeleteSubscription)
		admin.GET("/vapid_public_key", handler.GetVAPIDPublicKey)

		authed := admin.Group("")
		authed.Use(authRequired(sessions))
		{
			authed.GET("/state", handler.GetState)
			authed.POST("/dispensers", handler.PostDispenser)
			authed.PUT("/dispensers/:dispenser_id/slots/:slot", handler.PutSlot)
			authed.POST("/dispensers/:dispenser_id/slots/:slot/save", handler.PostSlotSave)
			authed.POST("/dispensers/:dispenser_id/slots/:slot/enabled", handler.PostSlotEnabled)
			authed.POST("/dispensers/:dispenser_id/slots/:slot/qr", handler.PostSlotQR)
			authed.POST("/payments/:payment_id/retry", handler.PostPaymentRetry)
			authed.POST("/mode/toggle", handler.PostModeToggle)
			authed.GET("/oauth/authorize-url", handler.GetOAuthAuthorizeURL)
			authed.POST("/oauth/unlink", handler.PostOAuthUnlink)
		}
	}

	return r
}
