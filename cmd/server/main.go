package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	_ "showroom/docs" // swagger docs

	"github.com/labstack/echo/v4"

	"showroom/internal/activity"
	"showroom/internal/auth"
	"showroom/internal/cache"
	"showroom/internal/config"
	"showroom/internal/db"
	"showroom/internal/events"
	"showroom/internal/guard"
	"showroom/internal/handler"
	"showroom/internal/logger"
	"showroom/internal/mailer"
	"showroom/internal/middleware"
	"showroom/internal/mq"
	"showroom/internal/obs"
	"showroom/internal/repository"
	"showroom/internal/router"
	"showroom/internal/service"
)

// @title Showroom Console API
// @version 1.0
// @description Back office API for the furniture showroom: sign-in, approvals, roles and the project/item/brand/tag catalog.
// @host localhost:8080
// @BasePath /api
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel, os.Stdout)
	slog.SetDefault(log)

	if err := run(cfg, log); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracer, err := obs.InitTracer(ctx, cfg.ServiceName, cfg.OTELEndpoint, cfg.Environment)
	if err != nil {
		return fmt.Errorf("tracer init: %w", err)
	}
	defer shutdownTracer(context.Background())

	gormDB, err := db.Open(cfg.DBDriver, cfg.DatabaseDSN)
	if err != nil {
		return fmt.Errorf("database init: %w", err)
	}

	// Drop tables if RESET_DB is set
	if cfg.ResetDB {
		log.Warn("RESET_DB=true detected, dropping all tables")
		if err := db.Reset(gormDB); err != nil {
			return err
		}
	}
	if err := db.Migrate(gormDB); err != nil {
		return err
	}

	cacheClient := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB)
	defer cacheClient.Close()
	if err := cacheClient.Ping(ctx); err != nil {
		log.Warn("redis unavailable, tokens and session events will not persist", "error", err)
	}

	// Initialize repositories
	identityRepo := repository.NewIdentityRepository(gormDB)
	profileRepo := repository.NewProfileRepository(gormDB)
	brandRepo := repository.NewBrandRepository(gormDB)
	tagRepo := repository.NewTagRepository(gormDB)
	itemRepo := repository.NewItemRepository(gormDB)
	projectRepo := repository.NewProjectRepository(gormDB)
	activityRepo := repository.NewActivityLogRepository(gormDB)

	// Activity audit: database batches, log lines and optionally RabbitMQ
	activityWriter := activity.NewBatchWriter(activityRepo, log)
	defer activityWriter.Close()
	sinks := []activity.Sink{activityWriter, activity.LogSink(log)}
	if cfg.AMQPURL != "" {
		publisher, err := mq.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log)
		if err != nil {
			log.Warn("activity bus unavailable", "error", err)
		} else {
			defer publisher.Close()
			sinks = append(sinks, publisher)
		}
	}
	audit := activity.Multi(sinks...)

	var mail mailer.Mailer = mailer.NewLogMailer(log)
	if cfg.ResendAPIKey != "" {
		mail = mailer.NewResendMailer(cfg.ResendAPIKey, cfg.MailFrom)
	}

	// Initialize auth components
	jwtService := auth.NewJWTService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
	tokenStore := auth.NewTokenStore(cacheClient)
	broker := events.NewBroker(cacheClient, log)

	// Initialize services
	authService := service.NewAuthService(identityRepo, jwtService, tokenStore, mail, broker, audit, log, service.AuthConfig{
		PublicURL:       cfg.PublicURL,
		ConfirmationTTL: cfg.ConfirmationTTL,
	})
	profileService := service.NewProfileService(profileRepo, cacheClient, broker, audit, log)
	brandService := service.NewBrandService(brandRepo, audit)
	tagService := service.NewTagService(tagRepo, audit)
	itemService := service.NewItemService(itemRepo, brandRepo, tagRepo, audit)
	projectService := service.NewProjectService(projectRepo, itemRepo, audit)

	// Initialize handlers
	handlers := router.Handlers{
		Auth:     handler.NewAuthHandler(authService, broker, log, cfg.SecureCookies),
		Profiles: handler.NewProfileHandler(profileService),
		Brands:   handler.NewBrandHandler(brandService),
		Tags:     handler.NewTagHandler(tagService),
		Items:    handler.NewItemHandler(itemService),
		Projects: handler.NewProjectHandler(projectService),
		Pages:    handler.NewPageHandler(cfg.ConsoleDir),
	}
	edgeGuard := middleware.NewGuard(guard.ConsoleRoutes(), guard.DefaultPaths(), audit)

	sqlDB, err := gormDB.DB()
	if err != nil {
		return fmt.Errorf("database handle: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	router.Register(e, cfg, log, jwtService.Secret(), tokenStore, profileService, edgeGuard, handlers, func() error {
		return sqlDB.PingContext(context.Background())
	})

	log.Info("swagger documentation available", "url", swaggerURL(cfg))

	errCh := make(chan error, 1)
	go func() {
		addr := ":" + cfg.ServerPort
		log.Info("server listening", "addr", addr)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server start: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

// swaggerURL returns the docs location. SwaggerHost may already include a scheme.
func swaggerURL(cfg *config.Config) string {
	host := cfg.SwaggerHost
	if host == "" {
		host = "localhost:" + cfg.ServerPort
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/") + "/swagger/index.html"
}
