package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/faceworker/internal/api/handlers"
	"github.com/your-org/faceworker/internal/api/ws"
)

// RouterConfig collects everything the HTTP surface is wired from.
type RouterConfig struct {
	Digest  *handlers.DigestHandler
	Cluster *handlers.ClusterHandler
	Search  *handlers.SearchHandler
	System  *handlers.SystemHandler
	Hub     *ws.Hub
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Accept"},
	}))

	r.GET("/healthz", cfg.System.Healthz)
	r.GET("/readyz", cfg.System.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")
	{
		v1.POST("/digest", cfg.Digest.Submit)
		v1.GET("/digest", cfg.Digest.List)
		v1.GET("/digest/:id", cfg.Digest.Get)

		v1.POST("/cluster", cfg.Cluster.Submit)
		v1.GET("/cluster", cfg.Cluster.List)
		v1.GET("/cluster/:id", cfg.Cluster.Get)

		v1.POST("/search", cfg.Search.Search)
	}

	r.GET("/ws", cfg.Hub.HandleWS)

	return r
}
