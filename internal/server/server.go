package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"

	"github.com/fernhill/clienthub/internal/access"
	"github.com/fernhill/clienthub/internal/contexts"
	"github.com/fernhill/clienthub/internal/credential"
	"github.com/fernhill/clienthub/internal/guard"
	"github.com/fernhill/clienthub/internal/log"
	"github.com/fernhill/clienthub/internal/profile"
	"github.com/fernhill/clienthub/internal/server/api"
	"github.com/fernhill/clienthub/internal/server/biz"
	"github.com/fernhill/clienthub/internal/server/db"
	"github.com/fernhill/clienthub/internal/server/middleware"
	"github.com/fernhill/clienthub/internal/server/store"
	"github.com/fernhill/clienthub/internal/session"
)

func New(config Config) *Server {
	if !config.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.Recovery())

	return &Server{
		Config: config,
		Engine: engine,
	}
}

type Server struct {
	*gin.Engine

	Config Config
	server *http.Server
	addr   string
}

func (srv *Server) Run() error {
	log.Info(context.Background(), "run server",
		log.String("name", srv.Config.Name),
		log.String("host", srv.Config.Host),
		log.Int("port", srv.Config.Port),
	)
	addr := fmt.Sprintf("%s:%d", srv.Config.Host, srv.Config.Port)
	srv.server = &http.Server{
		Addr:         addr,
		Handler:      srv.Engine,
		ReadTimeout:  srv.Config.ReadTimeout,
		WriteTimeout: srv.Config.RequestTimeout,
	}
	srv.addr = addr

	err := srv.server.ListenAndServe()
	if err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}

		return err
	}

	return nil
}

func (srv *Server) Shutdown(ctx context.Context) error {
	return srv.server.Shutdown(ctx)
}

func Run(opts ...fx.Option) {
	constructors := []any{
		New,
		db.New,
		access.DefaultTable,
		guard.New,
		credential.NewTokenIssuer,
		profile.NewResolver,
		session.NewRegistry,
	}

	app := fx.New(
		append([]fx.Option{
			fx.NopLogger,
			fx.Provide(constructors...),
			store.Module,
			biz.Module,
			api.Module,
			fx.Invoke(func(cfg log.Config) {
				log.SetGlobalConfig(cfg)
				log.GetGlobalLogger().AddHook(log.HookFunc(contexts.LogFields))
			}),
			fx.Invoke(func(lc fx.Lifecycle, registry *session.Registry) {
				lc.Append(fx.Hook{
					OnStop: func(ctx context.Context) error {
						registry.Close()
						return nil
					},
				})
			}),
			fx.Invoke(SetupRoutes),
		}, opts...)...,
	)
	app.Run()
}
