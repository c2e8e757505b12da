// serve.go — команда serve: подключение к PostgreSQL, миграции,
// сервисный слой, аутентификация, topologymetrics и HTTP-сервер.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/stdlib"
	"github.com/spf13/cobra"

	"github.com/maykinmedia/open-vtb-sub000/internal/api/handlers"
	"github.com/maykinmedia/open-vtb-sub000/internal/api/middleware"
	"github.com/maykinmedia/open-vtb-sub000/internal/config"
	"github.com/maykinmedia/open-vtb-sub000/internal/database"
	"github.com/maykinmedia/open-vtb-sub000/internal/jsonschema"
	"github.com/maykinmedia/open-vtb-sub000/internal/oidc"
	"github.com/maykinmedia/open-vtb-sub000/internal/payload"
	"github.com/maykinmedia/open-vtb-sub000/internal/repository"
	"github.com/maykinmedia/open-vtb-sub000/internal/server"
	"github.com/maykinmedia/open-vtb-sub000/internal/service"
)

var skipMigrate bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Запуск HTTP-сервера",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&skipMigrate, "skip-migrate", false, "не применять миграции при старте")
}

func runServe(cmd *cobra.Command, _ []string) error {
	if err := cfg.RequireDatabase(); err != nil {
		return err
	}
	logger.Info("Open VTB запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Server.Port),
	)
	if os.Getenv("OVTB_DEPHEALTH_GROUP") == "" {
		logger.Warn("OVTB_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.Dephealth.Group),
		)
	}

	// 1. Миграции
	if !skipMigrate {
		logger.Info("Применение миграций БД...")
		if err := database.Migrate(cfg, logger); err != nil {
			return err
		}
	}

	// 2. PostgreSQL (pgxpool)
	ctx := cmd.Context()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer pool.Close()

	// Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode).
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 3. Сервисный слой
	store := repository.NewStore(pool)
	validator, err := jsonschema.New(cfg.JSONSchema.CacheSize)
	if err != nil {
		return err
	}
	engine := payload.NewEngine(validator)
	codec := service.NewCodec(cfg.API.URNNamespace, store)
	tokens := service.NewTokenService(store, logger)

	api := handlers.NewAPIHandler(handlers.Services{
		Berichten:  service.NewBerichtService(store, codec, logger),
		Ontvangers: service.NewOntvangerService(store, logger),
		Taken:      service.NewTaakService(store, engine, cfg.Taken, logger),
		Types:      service.NewVerzoekTypeService(store, validator, logger),
		Verzoeken:  service.NewVerzoekService(store, validator, logger),
	}, codec, cfg.API, logger)

	// 4. Аутентификация и readiness checkers
	authenticators := []middleware.Authenticator{middleware.NewStaticTokenAuth(tokens, cfg.Auth)}
	checkers := []handlers.ReadinessChecker{database.NewReadinessChecker(pool)}
	jwksURL := ""
	if cfg.OIDC.Enabled() {
		oidcAuth, client, err := setupOIDC(ctx, cfg)
		if err != nil {
			logger.Error("OIDC-аутентификация недоступна", slog.String("error", err.Error()))
			authenticators = append(authenticators, middleware.NewUnconfiguredBearer(err))
		} else {
			authenticators = append(authenticators, oidcAuth)
			checkers = append(checkers, oidc.NewReadinessChecker(client))
			jwksURL = client.JWKSURL()
		}
	} else {
		logger.Warn("OIDC-провайдер не настроен, доступ только по статическим ключам")
		authenticators = append(authenticators, middleware.NewUnconfiguredBearer(nil))
	}

	// 5. topologymetrics
	dephealthSvc, err := service.NewDephealthService(service.DephealthConfig{
		ServiceID:     "open-vtb",
		Group:         cfg.Dephealth.Group,
		DB:            pgDB,
		PGConnURL:     cfg.DatabaseDSN(),
		JWKSURL:       jwksURL,
		CheckInterval: cfg.Dephealth.CheckInterval,
	}, logger)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else if err := dephealthSvc.Start(ctx); err != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", err.Error()))
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.Dephealth.Group),
			slog.String("check_interval", cfg.Dephealth.CheckInterval.String()),
		)
	}

	// 6. HTTP-сервер
	srv, err := server.New(ctx, cfg, logger, server.Deps{
		API:            api,
		Health:         handlers.NewHealthHandler(checkers...),
		Engine:         engine,
		Authenticators: authenticators,
	})
	if err != nil {
		return err
	}
	runErr := srv.Run()

	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}
	logger.Info("Open VTB остановлен")
	return runErr
}

// setupOIDC создаёт клиент провайдера и стратегию Bearer.
// Discovery выполняется стратегией; если провайдер недоступен,
// попытка повторяется при первом запросе с Bearer-токеном.
func setupOIDC(ctx context.Context, cfg *config.Config) (*middleware.OIDCAuth, *oidc.Client, error) {
	httpClient, err := oidc.NewHTTPClient(cfg.OIDC.ConnectTimeout, cfg.OIDC.ReadTimeout, cfg.OIDC.CACertPath)
	if err != nil {
		return nil, nil, fmt.Errorf("HTTP-клиент OIDC: %w", err)
	}
	client := oidc.New(cfg.OIDC, httpClient, logger)
	return middleware.NewOIDCAuth(ctx, cfg.OIDC, cfg.Auth, client, logger), client, nil
}
