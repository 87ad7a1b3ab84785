package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/IggyCloud/eShop/platform/health"
	healthgrpc "github.com/IggyCloud/eShop/platform/health/grpc"
	"github.com/IggyCloud/eShop/platform/identity"
	platformlogging "github.com/IggyCloud/eShop/platform/logging"
	"github.com/IggyCloud/eShop/platform/servicedefaults"
	platformshutdown "github.com/IggyCloud/eShop/platform/shutdown"
	httpapi "github.com/IggyCloud/eShop/services/catalog/internal/api/http"
	"github.com/IggyCloud/eShop/services/catalog/internal/config"
	"github.com/IggyCloud/eShop/services/catalog/internal/migrate"
	"github.com/IggyCloud/eShop/services/catalog/internal/repository"
	"github.com/IggyCloud/eShop/services/catalog/internal/repository/memory"
	"github.com/IggyCloud/eShop/services/catalog/internal/repository/postgres"
)

// ServiceName имя приложения, из него выводится имя сервиса в телеметрии
const ServiceName = "Catalog.API"

// PostgresCheckName имя health проверки БД
const PostgresCheckName = "postgres"

// App содержит все зависимости для запуска и корректного shutdown Catalog service
type App struct {
	logger      *zap.Logger
	httpServer  *http.Server
	grpcServer  *grpc.Server
	grpcAddr    string
	grpcHealth  *healthgrpc.Health
	shutdownMgr *platformshutdown.Manager
	wg          sync.WaitGroup
}

// Build создаёт и настраивает все зависимости Catalog service.
// Блокируется, пока не применены миграции (или не исчерпаны попытки).
func Build(ctx context.Context, cfg config.Config) (*App, error) {
	const op = "app.Build"

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
	logger.Info("Building Catalog service",
		zap.String("http_addr", cfg.HTTPAddr),
		zap.String("environment", host.Environment.EnvironmentName),
	)
	cfg.Log(logger)

	// Регистрируем shutdown функции в обратном порядке выполнения:
	// телеметрия останавливается после всего остального
	shutdownMgr := platformshutdown.New(cfg.ShutdownTimeout, logger)
	shutdownMgr.Add("logger", platformshutdown.SyncLogger(logger))
	shutdownMgr.Add("telemetry", host.Shutdown)

	repo, err := buildRepository(ctx, cfg, host, shutdownMgr)
	if err != nil {
		_ = shutdownMgr.Run()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	picturePath := cfg.PicturePath
	if !filepath.IsAbs(picturePath) {
		picturePath = filepath.Join(cfg.ContentRoot, picturePath)
	}

	handler := httpapi.NewHandler(repo, picturePath, logger)
	router := httpapi.NewRouter(handler, host.Middleware())
	host.MapDefaultEndpoints(router)

	httpServer := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	shutdownMgr.Add("http_server", platformshutdown.ShutdownHTTPServer(httpServer))

	a := &App{
		logger:      logger,
		httpServer:  httpServer,
		shutdownMgr: shutdownMgr,
	}

	// gRPC сервер отдаёт только стандартный health service
	if cfg.GRPCAddr != "" {
		a.grpcAddr = cfg.GRPCAddr
		a.grpcServer = grpc.NewServer(grpc.ChainUnaryInterceptor(
			host.GRPCServerInterceptor(),
			identity.UnaryServerInterceptor(),
		))
		a.grpcHealth = healthgrpc.New(host.Health, health.All)
		a.grpcHealth.Register(a.grpcServer)

		shutdownMgr.Add("grpc_server", platformshutdown.ShutdownGRPCServer(a.grpcServer))
		shutdownMgr.Add("grpc_health", platformshutdown.SetHealthNotServing(a.grpcHealth))
	}

	return a, nil
}

// buildRepository без DSN возвращает in-memory каталог,
// иначе поднимает pgxpool с трассировкой, применяет миграции и регистрирует health проверку
func buildRepository(ctx context.Context, cfg config.Config, host *servicedefaults.Host, shutdownMgr *platformshutdown.Manager) (repository.CatalogRepository, error) {
	logger := host.Logger

	if cfg.PostgresDSN == "" {
		logger.Warn("CATALOG_POSTGRES_DSN is not set, using in-memory catalog")
		if err := migrate.ApplyMigrationsWithRetry(ctx, cfg.PostgresDSN, nil, logger); err != nil {
			return nil, err
		}
		return memory.NewMemoryRepository(memory.DemoItems()...), nil
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	poolCfg.ConnConfig.Tracer = host.DBTracer()

	// pool ленивый: БД может быть ещё недоступна, это покрывают повторы миграций
	logger.Info("Connecting to PostgreSQL")
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	shutdownMgr.Add("postgres_pool", platformshutdown.ClosePool(pool))

	migrator, err := migrate.NewGooseMigrator(pool, logger)
	if err != nil {
		return nil, err
	}
	defer migrator.Close()

	if err := migrate.ApplyMigrationsWithRetry(ctx, cfg.PostgresDSN, migrator, logger); err != nil {
		return nil, err
	}

	if err := host.Health.Add(PostgresCheckName, pingCheck(pool)); err != nil {
		return nil, err
	}

	return postgres.NewRepository(pool), nil
}

func pingCheck(pool interface {
	Ping(context.Context) error
}) health.CheckFunc {
	return func(ctx context.Context) health.Result {
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			return health.Unhealthy("postgres is unreachable", err)
		}
		return health.Healthy("")
	}
}

// Run запускает сервис и блокируется до получения сигнала shutdown или отмены ctx
func (a *App) Run(ctx context.Context) error {
	defer platformlogging.Sync(a.logger)

	a.logger.Info("Starting Catalog service", zap.String("addr", a.httpServer.Addr))

	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	watchCtx, stopWatch := context.WithCancel(ctx)
	defer stopWatch()
	if a.grpcServer != nil {
		if err := a.serveGRPC(watchCtx); err != nil {
			_ = a.shutdownMgr.Run()
			a.wg.Wait()
			return err
		}
	}

	// Ожидаем сигнал и выполняем shutdown
	err := a.shutdownMgr.Wait(ctx)
	stopWatch()

	a.wg.Wait()
	a.logger.Info("Catalog service stopped")
	return err
}

func (a *App) serveGRPC(ctx context.Context) error {
	lis, err := net.Listen("tcp", a.grpcAddr)
	if err != nil {
		return fmt.Errorf("listen grpc %s: %w", a.grpcAddr, err)
	}
	a.logger.Info("Starting gRPC health endpoint", zap.String("addr", a.grpcAddr))

	a.wg.Add(2)
	go func() {
		defer a.wg.Done()
		if err := a.grpcServer.Serve(lis); err != nil {
			a.logger.Error("gRPC server error", zap.Error(err))
		}
	}()
	go func() {
		defer a.wg.Done()
		a.grpcHealth.Watch(ctx, healthgrpc.DefaultRefreshInterval)
	}()
	return nil
}
