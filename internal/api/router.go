package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/craftfolio/craftfolio/internal/app"
	iauth "github.com/craftfolio/craftfolio/internal/auth"
	"github.com/craftfolio/craftfolio/internal/handlers"
	"github.com/craftfolio/craftfolio/internal/middleware"
	"github.com/craftfolio/craftfolio/internal/services"
)

// NewRouter builds the Gin engine, wires middleware and registers the
// credential routes.
func NewRouter(db *gorm.DB, jwt *iauth.JWTService, accounts *services.AccountService, cfg *app.Config) (*gin.Engine, error) {
	if db == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if jwt == nil {
		return nil, fmt.Errorf("jwt service must be provided")
	}
	if accounts == nil {
		return nil, fmt.Errorf("account service must be provided")
	}
	if cfg == nil {
		return nil, fmt.Errorf("config must be provided")
	}

	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	if cfg.RateLimit.Enabled {
		requests := cfg.RateLimit.Requests
		window := cfg.RateLimit.Window
		if requests <= 0 {
			requests = 20
		}
		if window <= 0 {
			window = time.Minute
		}
		r.Use(middleware.RateLimit(requests, window))
	}

	r.NoRoute(middleware.NotFoundHandler)

	if cfg.Server.Health.Enabled {
		r.GET("/health", healthHandler(db))
	}

	if cfg.Server.Metrics.Enabled {
		endpoint := cfg.Server.Metrics.Endpoint
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(promhttp.Handler()))
	}

	authHandler := handlers.NewAuthHandler(accounts, handlers.CookieOptions{
		Name:   cfg.Server.Cookie.Name,
		Domain: cfg.Server.Cookie.Domain,
		Secure: cfg.Server.Cookie.Secure,
	})
	requireAuth := middleware.Auth(jwt, cfg.Server.Cookie.Name)

	auth := r.Group("/api/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/verify-otp", authHandler.VerifyOTP)
		auth.POST("/login", authHandler.Login)
		auth.POST("/forgot-password", authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/logout", requireAuth, authHandler.Logout)
		auth.GET("/me", requireAuth, authHandler.Me)
	}

	return r, nil
}

func healthHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"success": false,
				"status":  "degraded",
			})
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"success":    true,
			"status":     "ok",
			"checked_at": time.Now().UTC(),
		})
	}
}
