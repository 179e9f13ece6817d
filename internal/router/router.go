package router

import (
	"FlatComments/internal/router/handlers"
	"FlatComments/internal/router/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/wb-go/wbf/ginext"
	"go.uber.org/zap"
)

type Router struct {
	rout    *ginext.Engine
	handler *handlers.CommentHandler
	log     *zap.Logger
}

func NewRouter(mode string, handler *handlers.CommentHandler, log *zap.Logger) *Router {
	router := Router{
		rout:    ginext.New(mode),
		handler: handler,
		log:     log.Named("router"),
	}
	router.setupRouter()
	return &router
}

func (r *Router) setupRouter() {
	r.rout.Use(middleware.LoggingMiddleware(r.log))

	r.rout.POST("/comments", r.handler.CreateComment)
	r.rout.GET("/comments", r.handler.GetComments)
	r.rout.GET("/comments/count", r.handler.GetCommentCount)
	r.rout.GET("/comments/last", r.handler.GetLastComment)
	r.rout.GET("/comments/at/:index", r.handler.GetCommentAt)
	r.rout.POST("/comments/:id/approve", r.handler.ApproveComment)
	r.rout.POST("/comments/:id/moderate", r.handler.ModerateComment)
	r.rout.DELETE("/comments/:id", r.handler.DeleteComment)

	r.rout.GET("/locks", r.handler.GetLockStatus)
	r.rout.PUT("/locks", r.handler.Lock)
	r.rout.DELETE("/locks", r.handler.Unlock)
	r.rout.POST("/reindex", r.handler.Reindex)

	metrics := promhttp.Handler()
	r.rout.GET("/metrics", func(c *ginext.Context) {
		metrics.ServeHTTP(c.Writer, c.Request)
	})
}

func (r *Router) GetEngine() *ginext.Engine {
	return r.rout
}

func (r *Router) Start(addr string) error {
	return r.rout.Run(addr)
}
