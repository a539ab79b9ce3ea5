package server

import (
	"github.com/gin-contrib/cors"
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/profile"
	"github.com/fernhill/clienthub/internal/server/api"
	"github.com/fernhill/clienthub/internal/server/middleware"
)

type Handlers struct {
	fx.In

	Auth   *api.AuthHandlers
	Admin  *api.AdminHandlers
	System *api.SystemHandlers
}

type Services struct {
	fx.In

	Tokens   *credential.TokenIssuer
	Resolver *profile.Resolver
}

func SetupRoutes(server *Server, handlers Handlers, services Services) {
	server.Use(middleware.AccessLog())
	server.Use(middleware.WithRequestID())

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
		publicGroup.GET("/health", handlers.System.Health)
		publicGroup.GET("/build-info", handlers.System.BuildInfo)
	}

	// Device-scoped session operations. The device cookie picks the manager;
	// no bearer token is involved.
	authGroup := server.Group(server.Config.BasePath+"/auth", middleware.WithDevice())
	{
		authGroup.POST("/signin", handlers.Auth.SignIn)
		authGroup.POST("/signup", handlers.Auth.SignUp)
		authGroup.POST("/signout", handlers.Auth.SignOut)
		authGroup.POST("/refresh", handlers.Auth.Refresh)
		authGroup.POST("/reset-password", handlers.Auth.ResetPassword)
		authGroup.POST("/reset-password/complete", handlers.Auth.CompleteReset)
		authGroup.GET("/session", handlers.Auth.GetSession)
		authGroup.GET("/route-decision", handlers.Auth.RouteDecision)
		authGroup.PATCH("/profile", handlers.Auth.UpdateProfile)
	}

	// Staff administration, bearer-authenticated and admin-gated.
	adminGroup := server.Group(server.Config.BasePath+"/admin",
		middleware.WithBearerAuth(services.Tokens, services.Resolver),
		middleware.RequireTeamAdmin(),
	)
	{
		adminGroup.POST("/invitations", handlers.Admin.InviteClient)
		adminGroup.GET("/invitations", handlers.Admin.ListInvitations)
		adminGroup.GET("/companies", handlers.Admin.ListCompanies)
		adminGroup.PUT("/team/:id/role", handlers.Admin.ChangeTeamRole)
	}
}
