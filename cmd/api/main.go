package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	httptransport "github.com/tracklane/ticket-tracker/internal/api/http"
	"github.com/tracklane/ticket-tracker/internal/api/http/handlers"
	"github.com/tracklane/ticket-tracker/internal/auth"
	"github.com/tracklane/ticket-tracker/internal/config"
	"github.com/tracklane/ticket-tracker/internal/events"
	"github.com/tracklane/ticket-tracker/internal/lifecycle"
	"github.com/tracklane/ticket-tracker/internal/observability"
	"github.com/tracklane/ticket-tracker/internal/persistence"
	"github.com/tracklane/ticket-tracker/internal/repository"
	"github.com/tracklane/ticket-tracker/internal/service"
	"github.com/tracklane/ticket-tracker/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	if pg.Enabled() && cfg.Postgres.RunMigrations {
		if err := persistence.RunMigrations(ctx, pg.PoolHandle(), cfg.Postgres.MigrationsDir, logger); err != nil {
			logger.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	redis, err := persistence.NewRedis(ctx, cfg.Redis, logger)
	if err != nil {
		logger.Fatal("failed to connect redis", zap.Error(err))
	}
	defer redis.Close()

	var (
		userRepo    repository.UserRepository
		ticketRepo  repository.TicketRepository
		commentRepo repository.CommentRepository
		sessionRepo repository.SessionRepository
	)
	if pg.Enabled() {
		pool := pg.PoolHandle()
		userRepo = repository.NewUserRepository(pool)
		ticketRepo = repository.NewTicketRepository(pool)
		commentRepo = repository.NewCommentRepository(pool)
	} else {
		store := repository.NewMemoryStore()
		userRepo, ticketRepo, commentRepo = store.Users(), store.Tickets(), store.Comments()
	}
	if redis.Enabled() {
		sessionRepo = repository.NewRedisSessionRepository(redis.Client)
	} else {
		sessionRepo = repository.NewMemorySessionRepository()
	}

	metrics := observability.NewMetrics()
	dispatcher := events.NewBus()
	if cfg.Audit.Enabled {
		worker.StartAuditWorker(service.NewAuditService(dispatcher, logger, metrics))
	}

	storageTimeout := cfg.Storage.Timeout()
	locks := service.NewKeyedLocker(cfg.Storage.LockTimeout())
	sessions := auth.NewSessionStore(sessionRepo, userRepo, auth.NewTokenManager(cfg.Auth.SessionSecret), auth.SessionStoreOptions{
		TTL:            cfg.Session.TTL(),
		StorageTimeout: storageTimeout,
	})
	sessionMiddleware := auth.NewSessionMiddleware(sessions, cfg.Session.CookieName)

	authService := service.NewAuthService(service.AuthDependencies{
		UserRepo:       userRepo,
		Sessions:       sessions,
		BcryptCost:     cfg.Auth.BcryptCost,
		StorageTimeout: storageTimeout,
	})
	userService := service.NewUserService(userRepo, storageTimeout)
	ticketService := service.NewTicketService(service.TicketDependencies{
		TicketRepo:     ticketRepo,
		UserRepo:       userRepo,
		Lifecycle:      lifecycle.NewEngine(),
		Locks:          locks,
		Dispatcher:     dispatcher,
		StorageTimeout: storageTimeout,
	})
	assignmentService := service.NewAssignmentService(service.AssignmentDependencies{
		TicketRepo:     ticketRepo,
		UserRepo:       userRepo,
		Locks:          locks,
		Dispatcher:     dispatcher,
		StorageTimeout: storageTimeout,
	})
	commentService := service.NewCommentService(service.CommentDependencies{
		CommentRepo:    commentRepo,
		TicketRepo:     ticketRepo,
		UserRepo:       userRepo,
		Locks:          locks,
		Dispatcher:     dispatcher,
		StorageTimeout: storageTimeout,
	})

	if cfg.Bootstrap.AdminUsername != "" && cfg.Bootstrap.AdminPassword != "" {
		created, err := authService.EnsureAdmin(ctx, cfg.Bootstrap.AdminUsername, cfg.Bootstrap.AdminPassword)
		if err != nil {
			logger.Fatal("failed to bootstrap admin", zap.Error(err))
		}
		if created {
			logger.Info("bootstrap admin created", zap.String("username", cfg.Bootstrap.AdminUsername))
		}
	}

	app := httptransport.NewServer(httptransport.ServerOptions{
		AppName:        cfg.App.Name,
		Logger:         logger,
		Metrics:        metrics,
		RequestTimeout: cfg.App.RequestTimeout(),
		Routes: httptransport.RouteConfig{
			Health: handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, map[string]handlers.Pinger{
				"postgres": pg,
				"redis":    redis,
			}),
			Auth: handlers.NewAuthHandler(authService, sessionMiddleware, handlers.CookieOptions{
				Name:   cfg.Session.CookieName,
				Secure: cfg.Session.CookieSecure,
			}),
			Users:       handlers.NewUsersHandler(userService),
			Tickets:     handlers.NewTicketsHandler(ticketService),
			Assignments: handlers.NewAssignmentsHandler(assignmentService),
			Comments:    handlers.NewCommentsHandler(commentService),
			Sessions:    sessionMiddleware,
			Metrics:     metrics,
		},
	})

	go func() {
		logger.Info("listening", zap.String("addr", cfg.App.Addr()))
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
