package http

import (
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/vovakirdan/linechat-server/internal/auth"
	"github.com/vovakirdan/linechat-server/internal/config"
	"github.com/vovakirdan/linechat-server/internal/core"
)

// NewServer builds the operator HTTP server: health, online users, and the websocket transport.
func NewServer(hub *core.Hub, cfg *config.Config, jwtConfig *auth.JWTConfig, logger *zerolog.Logger) *stdhttp.Server {
	return &stdhttp.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           NewRouter(hub, cfg, jwtConfig, logger),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}
}

// NewRouter registers all routes on a gin engine.
func NewRouter(hub *core.Hub, cfg *config.Config, jwtConfig *auth.JWTConfig, logger *zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(logger))

	r.GET("/health", healthHandler)

	if cfg.WSEnabled {
		r.GET("/ws", gin.WrapH(NewWSHandler(hub, cfg, logger)))
	}

	online := NewOnlineHandlers(hub, logger)
	api := r.Group("/api")
	api.Use(AdminAuthMiddleware(jwtConfig, logger))
	api.GET("/online", online.ListOnline)

	return r
}

func healthHandler(c *gin.Context) {
	c.String(stdhttp.StatusOK, "ok")
}
