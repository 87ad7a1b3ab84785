package app

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/IggyCloud/eShop/platform/identity"
	platformlogging "github.com/IggyCloud/eShop/platform/logging"
	"github.com/IggyCloud/eShop/platform/servicedefaults"
	platformshutdown "github.com/IggyCloud/eShop/platform/shutdown"
	httpapi "github.com/IggyCloud/eShop/services/webapp/internal/api/http"
	"github.com/IggyCloud/eShop/services/webapp/internal/config"
)

// ServiceName имя приложения, из него выводится имя сервиса в телеметрии
const ServiceName = "WebApp"

// App содержит все зависимости для запуска и корректного shutdown WebApp
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости WebApp
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	const op = "app.Build"

	catalogURL, err := cfg.CatalogBaseURL()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	builder, err := servicedefaults.CreateBuilder(ServiceName, cfg.ContentRoot)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err := builder.AddServiceDefaults(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	host, err := builder.Build(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	logger := host.Logger
	logger.Info("Building WebApp",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("environment", host.Environment.EnvironmentName),
	)
	cfg.Log(logger)

	// Регистрируем shutdown функции в обратном порядке выполнения
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	shutdownMgr.Add("logger", platformshutdown.SyncLogger(logger))
	shutdownMgr.Add("telemetry", host.Shutdown)

	handler := httpapi.NewHandler(identity.NewResolver(host.Config))
	images := httpapi.NewProductImagesProxy(catalogURL, host.Transport(nil), logger)

	router := httpapi.NewRouter(handler, images, httpapi.RouterOptions{
		Development: host.Environment.IsDevelopment(),
		Middleware:  []func(http.Handler) http.Handler{host.Middleware()},
	})
	host.MapDefaultEndpoints(router)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	return &App{
		logger:      logger,
		httpServer:  httpServer,
		shutdownMgr: shutdownMgr,
	}, nil
}

// Run запускает сервис и блокируется до получения сигнала shutdown или отмены ctx
func (a *App) Run(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting WebApp", zap.String("addr", a.httpServer.Addr))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	err := a.shutdownMgr.Wait(ctx)

	a.wg.Wait()
	a.logger.Info("WebApp stopped")
	return err
}
