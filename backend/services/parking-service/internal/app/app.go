package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"parkledger/backend/libs/db"
	"parkledger/backend/libs/rabbit"
	libredis "parkledger/backend/libs/redis"
	"parkledger/backend/services/parking-service/internal/auth"
	"parkledger/backend/services/parking-service/internal/clients"
	"parkledger/backend/services/parking-service/internal/config"
	"parkledger/backend/services/parking-service/internal/events"
	httpserver "parkledger/backend/services/parking-service/internal/http"
	"parkledger/backend/services/parking-service/internal/http/handlers"
	"parkledger/backend/services/parking-service/internal/http/middleware"
	"parkledger/backend/services/parking-service/internal/receipt"
	redisstore "parkledger/backend/services/parking-service/internal/redis"
	"parkledger/backend/services/parking-service/internal/repository"
	"parkledger/backend/services/parking-service/internal/service"
	"parkledger/backend/services/parking-service/internal/ws"
)

// App wires parking-service dependencies.
type App struct {
	cfg         *config.Config
	db          *sql.DB
	redisClient *redis.Client
	rabbit      *rabbit.Client
	sessions    *service.SessionsService
	hub         *ws.Hub
	board       *ws.Board
	routes      httpserver.Routes
	validator   middleware.TokenValidator
	logger      *zap.Logger
}

// New constructs the application graph. Optional backends (redis, rabbitmq, OCR)
// are enabled only when configured.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, logger: logger}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	tariff := service.Tariff{
		BaseAmount:    cfg.Tariff.BaseAmount,
		IncludedHours: cfg.Tariff.IncludedHours,
		HourlyRate:    cfg.Tariff.HourlyRate,
	}
	if err := tariff.Validate(); err != nil {
		return nil, err
	}

	a.db, err = db.Open(cfg.Database.Driver, cfg.Database.DSN)
	if err != nil {
		return nil, err
	}

	sessionRepo := repository.NewSessionRepository(a.db, cfg.Database.Driver, loc)
	if err := sessionRepo.Migrate(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("migrate record store: %w", err)
	}

	var presence service.PresenceCache = service.NewMemoryPresence()
	if cfg.Redis.Addr != "" {
		a.redisClient, err = libredis.NewRedisClient(libredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		presence = redisstore.NewPresenceStore(a.redisClient, cfg.Redis.Key)
	}

	a.sessions = service.NewSessionsService(sessionRepo, presence, tariff, logger)
	if err := a.sessions.Warm(ctx); err != nil {
		a.Close()
		return nil, err
	}

	a.hub = ws.NewHub()
	a.board = ws.NewBoard(a.hub, a.sessions, cfg.Board.Interval, logger)

	issuer := receipt.NewIssuer(cfg.Currency, loc)
	notifier := service.MultiNotifier{service.NewLogNotifier(logger), a.board}
	gateOpts := []service.GateOption{}

	if cfg.Rabbit.DSN != "" {
		exchange := cfg.Rabbit.Exchange
		if exchange == "" {
			exchange = events.DefaultExchange
		}
		a.rabbit, err = rabbit.New(cfg.Rabbit.DSN, exchange, logger)
		if err != nil {
			a.Close()
			return nil, err
		}
		gateOpts = append(gateOpts, service.WithPublisher(events.NewReceiptPublisher(a.rabbit)))
	}
	if cfg.OCR.URL != "" {
		gateOpts = append(gateOpts, service.WithRecognizer(
			clients.NewOCRClient(cfg.OCR.URL, cfg.OCR.MinConfidence, cfg.OCR.Timeout, logger)))
	}

	gate := service.NewGateService(a.sessions, notifier, issuer, logger, gateOpts...)

	a.routes = httpserver.Routes{
		Entry:    handlers.NewEntryHandler(gate),
		Exit:     handlers.NewExitHandler(gate),
		Payment:  handlers.NewPaymentHandler(gate),
		Receipt:  handlers.NewReceiptHandler(gate),
		Present:  handlers.NewPresentHandler(a.sessions),
		Sessions: handlers.NewSessionsHandler(a.sessions),
		Health:   handlers.NewHealthHandler(a.db),
	}

	if cfg.AuthEnabled() {
		authenticator := auth.NewAuthenticator(
			auth.Operator{Username: cfg.Auth.OperatorUsername, PasswordHash: cfg.Auth.OperatorPasswordHash},
			auth.NewBcryptHasher(0),
			auth.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.ExpiresIn),
			logger,
		)
		a.routes.Login = handlers.NewLoginHandler(authenticator)
		a.validator = authenticator
	} else {
		logger.Warn("jwt secret not set, parking endpoints are unauthenticated")
	}

	logger.Info("parking service initialised",
		zap.String("db_driver", cfg.Database.Driver),
		zap.Bool("redis", a.redisClient != nil),
		zap.Bool("rabbit", a.rabbit != nil),
		zap.Bool("ocr", cfg.OCR.URL != ""),
		zap.Bool("auth", cfg.AuthEnabled()),
	)
	return a, nil
}

// Run serves HTTP and refreshes display boards until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	routes := a.routes
	routes.Board = ws.NewServer(ctx, a.hub, a.board, a.cfg.Board.WriteTimeout, a.logger).HandleWS
	server := httpserver.NewServer(a.cfg.HTTPAddress(), httpserver.NewRouter(routes, a.validator, a.logger), a.logger)

	g.Go(func() error {
		return server.Run(ctx)
	})
	g.Go(func() error {
		return a.board.Run(ctx)
	})
	return g.Wait()
}

// Close releases resources.
func (a *App) Close() {
	if a.rabbit != nil {
		if err := a.rabbit.Close(); err != nil {
			a.logger.Warn("failed to close rabbit", zap.Error(err))
		}
	}
	if a.redisClient != nil {
		if err := a.redisClient.Close(); err != nil {
			a.logger.Warn("failed to close redis", zap.Error(err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.logger.Warn("failed to close db", zap.Error(err))
		}
	}
}
