// Package devapi is an in-memory implementation of the book-recommendation API,
// for local development and client tests.
package devapi

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"bookworm/internal/common/middleware"
)

type Options struct {
	Debug  bool
	Origin string
	Log    zerolog.Logger
	Store  *MemoryStore
	// BcryptCost overrides bcrypt.DefaultCost; tests lower it.
	BcryptCost int
}

// New builds the gin engine with every route of the API wired.
func New(opts Options) *gin.Engine {
	if !opts.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	if opts.Store == nil {
		opts.Store = NewMemoryStore()
	}

	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.Recovery(opts.Log))
	router.Use(middleware.Logger(opts.Log))

	corsConfig := cors.DefaultConfig()
	if opts.Origin == "" || opts.Origin == "*" {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = strings.Split(opts.Origin, ",")
	}
	corsConfig.AllowMethods = []string{"GET", "POST", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Content-Type", "Authorization", "Accept"}
	router.Use(cors.New(corsConfig))

	router.Use(middleware.Errors(opts.Log))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC(),
			"service":   "bookworm-devapi",
		})
	})

	authHandler := NewAuthHandler(opts.Store, opts.Log)
	if opts.BcryptCost != 0 {
		authHandler.bcryptCost = opts.BcryptCost
	}
	bookHandler := NewBookHandler(opts.Store.Books(), opts.Log)

	api := router.Group("/api")
	authHandler.RegisterRoutes(api)
	bookHandler.RegisterRoutes(api, middleware.RequireBearer(opts.Store))

	return router
}
