package gateway

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/larksync/larksync-console/internal/console"
	"github.com/ulule/limiter/v3"
)

// DefaultRate is generous enough for a dashboard polling every few seconds
// from several tabs.
var DefaultRate = limiter.Rate{
	Period: 1 * time.Second,
	Limit:  20,
}

type RouteConfig struct {
	Token string
	Rate  limiter.Rate
}

func SetupRoutes(c *console.Console, hub *LiveHub, cfg RouteConfig) http.Handler {
	r := gin.New()

	rate := cfg.Rate
	if rate.Limit == 0 {
		rate = DefaultRate
	}

	h := NewHandler(c)

	r.Use(Logger())
	r.Use(gin.Recovery())
	r.Use(CORS())
	r.Use(Secure())
	r.Use(Gzip())
	r.Use(RateLimit(rate))

	r.GET("/", IndexHandler)
	r.GET("/healthz", HealthHandler)

	v1 := r.Group("/v1")
	v1.Use(TokenAuth(cfg.Token))
	{
		v1.GET("/dashboard", h.Dashboard)

		v1.GET("/logs", h.Logs)
		if hub != nil {
			v1.GET("/logs/live", hub.Handler)
		}

		v1.GET("/tasks", h.Tasks)
		v1.PATCH("/tasks/:id", h.UpdateTask)
		v1.POST("/tasks/:id/run", h.RunTask)

		v1.GET("/conflicts", h.Conflicts)
		v1.POST("/conflicts/:id/resolve", h.ResolveConflict)
	}

	r.NoRoute(func(c *gin.Context) {
		c.PureJSON(http.StatusNotFound, ErrorResponse{Code: ErrCodeNotFound, Error: "not found"})
	})

	r.NoMethod(func(c *gin.Context) {
		c.PureJSON(http.StatusMethodNotAllowed, ErrorResponse{Code: ErrCodeBadRequest, Error: "method not allowed"})
	})

	return r.Handler()
}

func init() {
	gin.SetMode(gin.ReleaseMode)
}
