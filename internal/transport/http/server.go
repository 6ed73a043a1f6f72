package http

import (
	"fmt"
	stdhttp "net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/callwire/callwire-server/internal/auth"
	"github.com/callwire/callwire-server/internal/config"
	"github.com/callwire/callwire-server/internal/core"
	"github.com/callwire/callwire-server/internal/service/calls"
	"github.com/callwire/callwire-server/internal/service/chats"
)

// Services groups the application services the HTTP layer exposes.
type Services struct {
	Auth  *auth.Service
	Chats *chats.Service
	Calls *calls.Service
}

// NewServer builds the HTTP server: REST API, health check, and the
// WebSocket endpoint.
func NewServer(hub *core.Hub, svcs Services, cfg config.Config, logger *zerolog.Logger) *stdhttp.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), LoggerMiddleware(logger))

	router.GET("/health", healthHandler)
	router.GET("/ws", gin.WrapH(NewWSHandler(hub, svcs.Auth, logger)))

	apiHandlers := NewAPIHandlers(svcs.Auth, logger)
	chatsHandlers := NewChatsHandlers(svcs.Chats, logger)
	callsHandlers := NewCallsHandlers(svcs.Calls, logger)

	loginLimiter := newRateLimiter(cfg.LoginRateLimit)

	api := router.Group("/api")
	{
		api.POST("/auth/register", apiHandlers.Register)
		api.POST("/auth/login", func(c *gin.Context) {
			if !loginLimiter.allow() {
				c.JSON(stdhttp.StatusTooManyRequests, ErrorResponse{Error: "too many login attempts"})
				return
			}
			apiHandlers.Login(c)
		})
		api.POST("/auth/guest", apiHandlers.GuestLogin)

		authorized := api.Group("", AuthMiddleware(svcs.Auth, logger))
		{
			authorized.GET("/chats", chatsHandlers.ListChats)
			authorized.POST("/chats", chatsHandlers.CreateChat)
			authorized.POST("/chats/direct", chatsHandlers.OpenDirectChat)
			authorized.GET("/chats/:id/members", chatsHandlers.ListMembers)
			authorized.POST("/chats/:id/members", chatsHandlers.AddMember)

			authorized.GET("/calls/active", callsHandlers.ListActiveCalls)
			authorized.GET("/calls/:id", callsHandlers.GetCall)
		}
	}

	server := &stdhttp.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
	}

	limiterStop := make(chan struct{})
	loginLimiter.startReset(limiterStop)
	server.RegisterOnShutdown(func() { close(limiterStop) })

	return server
}

func healthHandler(c *gin.Context) {
	_, _ = fmt.Fprint(c.Writer, "ok")
}
