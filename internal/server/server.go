// Пакет server — HTTP-сервер Open VTB с graceful shutdown.
// Без TLS — TLS termination на reverse proxy.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/maykinmedia/open-vtb-sub000/internal/api/handlers"
	"github.com/maykinmedia/open-vtb-sub000/internal/api/middleware"
	"github.com/maykinmedia/open-vtb-sub000/internal/api/openapi"
	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
)

// Deps — обработчики и стратегии аутентификации сервера.
type Deps struct {
	API    *handlers.APIHandler
	Health *handlers.HealthHandler
	Engine *payload.Engine
	// Authenticators — стратегии по схемам Authorization; пустой список
	// означает, что любой запрос к API получает 401.
	Authenticators []middleware.Authenticator
}

// Server — HTTP-сервер Open VTB.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными маршрутами и middleware.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, deps Deps) (*Server, error) {
	router, err := NewRouter(ctx, logger, deps)
	if err != nil {
		return nil, err
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}, nil
}

// component — компонент API, смонтированный под своим префиксом.
type component struct {
	prefix string
	routes func(chi.Router)
	api    openapi.Component
}

// NewRouter собирает маршрутизатор: health и metrics без аутентификации,
// компоненты API — за middleware.Auth, документ /schema каждого компонента
// публичен.
func NewRouter(ctx context.Context, logger *slog.Logger, deps Deps) (http.Handler, error) {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(chimw.StripSlashes)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.NotFound(deps.API.NotFound)
	router.MethodNotAllowed(deps.API.MethodNotAllowed)

	router.Get("/health/live", deps.Health.HealthLive)
	router.Get("/health/ready", deps.Health.HealthReady)
	router.Get("/metrics", deps.Health.GetMetrics)

	collections := make([]string, 0, len(handlers.TaakKinds))
	for _, k := range handlers.TaakKinds {
		collections = append(collections, k.Collection)
	}
	taken, err := openapi.Taken(handlers.TakenPrefix, deps.Engine, collections)
	if err != nil {
		return nil, err
	}

	components := []component{
		{prefix: handlers.BerichtenPrefix, routes: deps.API.BerichtenRoutes, api: openapi.Berichten(handlers.BerichtenPrefix)},
		{prefix: handlers.TakenPrefix, routes: deps.API.TakenRoutes, api: taken},
		{prefix: handlers.VerzoekenPrefix, routes: deps.API.VerzoekenRoutes, api: openapi.Verzoeken(handlers.VerzoekenPrefix)},
	}
	auth := middleware.Auth(logger, deps.Authenticators...)

	for _, c := range components {
		sub := chi.NewRouter()
		sub.Use(auth)
		c.routes(sub)

		doc, err := openapi.Build(ctx, c.api, sub)
		if err != nil {
			return nil, err
		}
		schema, err := openapi.Handler(doc)
		if err != nil {
			return nil, err
		}

		router.Route(c.prefix, func(r chi.Router) {
			r.Get("/schema", schema)
			r.Mount("/", sub)
		})
	}
	return router, nil
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.Server.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
