package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/scopegate/scopegate/internal/server/api"
	"github.com/scopegate/scopegate/internal/server/biz"
	"github.com/scopegate/scopegate/internal/server/middleware"
	"github.com/scopegate/scopegate/internal/server/rest"
)

type Handlers struct {
	fx.In

	Auth   *api.AuthHandlers
	Users  *api.UserHandlers
	System *api.SystemHandlers
}

type Services struct {
	fx.In

	AuthService *biz.AuthService
	Registry    *rest.Registry
}

func SetupRoutes(server *Server, handlers Handlers, services Services) {
	server.Use(middleware.AccessLog())
	server.Use(middleware.WithRequestTracking())

	// Setup CORS middleware at server level if enabled
	if server.Config.CORS.Enabled {
		corsConfig := cors.DefaultConfig()
		corsConfig.AllowOrigins = server.Config.CORS.AllowedOrigins
		corsConfig.AllowMethods = server.Config.CORS.AllowedMethods
		corsConfig.AllowHeaders = server.Config.CORS.AllowedHeaders
		corsConfig.ExposeHeaders = server.Config.CORS.ExposedHeaders
		corsConfig.AllowCredentials = server.Config.CORS.AllowCredentials
		corsConfig.MaxAge = server.Config.CORS.MaxAge

		corsHandler := cors.New(corsConfig)
		server.Use(corsHandler)
		server.OPTIONS("*any", corsHandler)
	}

	publicGroup := server.Group(server.Config.BasePath)
	{
		// Health check endpoint - no authentication required
		publicGroup.GET("/health", handlers.System.Health)
	}

	unSecureAdminGroup := server.Group(server.Config.BasePath + "/admin")
	{
		// User Login - DO NOT AUTH
		unSecureAdminGroup.POST("/auth/signin", handlers.Auth.SignIn)
	}

	// Administration routes authenticated with the session JWT.
	adminGroup := server.Group(server.Config.BasePath+"/admin", middleware.WithJWTAuth(services.AuthService))
	{
		adminGroup.GET("/me", handlers.Auth.Me)
		adminGroup.GET("/scopes", handlers.System.Scopes)
		adminGroup.POST("/tokens", handlers.Auth.IssueToken)
		adminGroup.DELETE("/tokens/:id", handlers.Auth.RevokeToken)
		adminGroup.PUT("/users/:id/permissions", handlers.Users.SetPermissions)
	}

	// Model routes authenticated with stored tokens; every handler must
	// record a scope check or the guard fails the request.
	apiGroup := server.Group(server.Config.BasePath+"/api",
		middleware.WithTokenAuth(services.AuthService),
		middleware.WithScopingGuard(),
	)
	{
		apiGroup.GET("/me", middleware.NoScopingRequired(), handlers.Auth.Me)
		services.Registry.Mount(apiGroup)
	}
}
