package coordinator

import (
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/darrayctl/internal/auth"
	"github.com/danmuck/darrayctl/internal/observability"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const version = "0.1.0"

func (s *Service) newRouter() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.AdminRequests(s.cfg.ID, s.logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(s.cfg.CORSOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"coordinator": s.cfg.ID,
			"uptime":      time.Since(s.started).String(),
			"arrays":      s.store.Len(),
			"active":      s.active.Load(),
			"served":      s.served.Load(),
			"version":     version,
		})
	})

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	arrays := r.Group("/arrays")
	if token := strings.TrimSpace(s.cfg.AdminToken); token != "" {
		arrays.Use(auth.Require(auth.StaticToken{Token: token}))
	}
	arrays.GET("", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"arrays": s.store.Snapshot()})
	})

	arrays.GET("/:id", func(c *gin.Context) {
		id := c.Param("id")
		info, ok := s.store.Get(id)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
			return
		}
		body := gin.H{"array": info}
		if result, err := s.store.Result(id); err == nil {
			body["result"] = result
		}
		c.JSON(http.StatusOK, body)
	})
	return r
}

// Router exposes the admin routes for embedding and tests.
func (s *Service) Router() http.Handler {
	return s.router
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
