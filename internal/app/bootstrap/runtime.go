package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/mayanksahu17/binary-system-sub003/internal/adapters/cache"
	eventadapter "github.com/mayanksahu17/binary-system-sub003/internal/adapters/events"
	grpcadapter "github.com/mayanksahu17/binary-system-sub003/internal/adapters/grpc"
	httpadapter "github.com/mayanksahu17/binary-system-sub003/internal/adapters/http"
	"github.com/mayanksahu17/binary-system-sub003/internal/adapters/memory"
	"github.com/mayanksahu17/binary-system-sub003/internal/adapters/postgres"
	"github.com/mayanksahu17/binary-system-sub003/internal/adapters/security"
	"github.com/mayanksahu17/binary-system-sub003/internal/application"
	"github.com/mayanksahu17/binary-system-sub003/internal/ports"
)

type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	httpServer *http.Server
	grpcServer *grpc.Server
	grpcLis    net.Listener
	worker     *eventadapter.Worker
}

// NewRuntime wires the full dependency graph. Storage and locking degrade to
// in-process implementations when DATABASE_URL or REDIS_URL are absent, so a
// bare `go run ./cmd/api` works for local development.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo})).With("service", cfg.ServiceID)
	slog.SetDefault(logger)

	var (
		nodes        ports.NodeRepository
		propagations ports.PropagationApplier
		investments  ports.InvestmentRepository
		ledger       ports.LedgerRepository
		withdrawals  ports.WithdrawalRepository
		settlements  ports.SettlementRepository
		settler      ports.SettlementApplier
		batchRuns    ports.BatchRunRepository
		accruals     ports.AccrualRepository
		audit        ports.AuditLogRepository
		idempotency  ports.IdempotencyRepository
		eventDedup   ports.EventDedupRepository
		outbox       ports.OutboxRepository
	)
	if cfg.DatabaseURL != "" {
		db, err := postgres.Connect(ctx, cfg.DatabaseURL, int32(cfg.DatabaseMaxConns))
		if err != nil {
			return nil, err
		}
		if err := postgres.RunMigrations(ctx, db); err != nil {
			return nil, err
		}
		repos := postgres.NewRepositories(db)
		nodes, propagations, investments = repos.Nodes, repos.Propagations, repos.Investments
		ledger, withdrawals, settlements = repos.Ledger, repos.Withdrawals, repos.Settlements
		settler = repos.Settler
		batchRuns, accruals, audit = repos.BatchRuns, repos.Accruals, repos.Audit
		idempotency, eventDedup, outbox = repos.Idempotency, repos.EventDedup, repos.Outbox
	} else {
		logger.WarnContext(ctx, "DATABASE_URL not set, using in-memory repositories")
		repos := memory.NewRepositories()
		nodes, propagations, investments = repos.Nodes, repos.Propagations, repos.Investments
		ledger, withdrawals, settlements = repos.Ledger, repos.Withdrawals, repos.Settlements
		settler = repos.Settler
		batchRuns, accruals, audit = repos.BatchRuns, repos.Accruals, repos.Audit
		idempotency, eventDedup, outbox = repos.Idempotency, repos.EventDedup, repos.Outbox
	}

	var locker ports.BatchLocker
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			return nil, err
		}
		locker = cache.NewRedisBatchLocker(client, cfg.ServiceID)
	} else {
		logger.WarnContext(ctx, "REDIS_URL not set, using in-process batch lock")
		locker = memory.NewBatchLocker()
	}

	domainPublisher := eventadapter.NewMemoryDomainPublisher()
	analyticsPublisher := eventadapter.NewMemoryAnalyticsPublisher()
	dlqPublisher := eventadapter.NewLoggingDLQPublisher()

	service := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceName:                  cfg.ServiceID,
			IdempotencyTTL:               cfg.IdempotencyTTL,
			EventDedupTTL:                cfg.EventDedupTTL,
			BinaryRate:                   cfg.BinaryRate,
			DefaultCappingLimit:          cfg.DefaultCappingLimit,
			ReferralLevelRates:           cfg.ReferralLevelRates,
			DailyROIRate:                 cfg.DailyROIRate,
			MaxTreeDepth:                 cfg.MaxTreeDepth,
			BatchLockTTL:                 cfg.BatchLockTTL,
			EnableDomainEventConsumption: cfg.EnableDomainEventConsumption,
			EnableSettledEmission:        cfg.EnableSettledEmission,
		},
		Nodes:        nodes,
		Propagations: propagations,
		Investments:  investments,
		Ledger:       ledger,
		Withdrawals:  withdrawals,
		Settlements:  settlements,
		Settler:      settler,
		BatchRuns:    batchRuns,
		Accruals:     accruals,
		Audit:        audit,
		Idempotency:  idempotency,
		EventDedup:   eventDedup,
		Outbox:       outbox,
		Packages:     grpcadapter.NewPackageConfigClient(cfg.PackageGRPCURL),
		Users:        grpcadapter.NewUserDirectoryClient(cfg.UserGRPCURL),
		Locker:       locker,
		DomainEvents: domainPublisher,
		Analytics:    analyticsPublisher,
		DLQ:          dlqPublisher,
	})

	var verifier httpadapter.TokenVerifier
	if cfg.JWTSecret != "" {
		v, err := security.NewJWTVerifier(cfg.JWTSecret)
		if err != nil {
			return nil, err
		}
		verifier = v
	} else {
		logger.WarnContext(ctx, "JWT_SECRET not set, trusting gateway identity headers")
	}

	handler := httpadapter.NewHandler(service)
	router := httpadapter.NewRouter(handler, verifier)
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer()
	grpcadapter.Register(grpcServer, grpcadapter.NewBonusInternalServer(service))
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.GRPCPort))
	if err != nil {
		return nil, err
	}

	consumer := eventadapter.NewMemoryConsumer()
	worker := eventadapter.NewWorker(logger, consumer, dlqPublisher, service, cfg.ConsumerPollInterval)

	return &Runtime{
		cfg:        cfg,
		logger:     logger,
		httpServer: httpServer,
		grpcServer: grpcServer,
		grpcLis:    lis,
		worker:     worker,
	}, nil
}

func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 2)

	go func() {
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	go func() {
		if err := r.grpcServer.Serve(r.grpcLis); err != nil {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		r.logger.ErrorContext(ctx, "runtime failure", "error", err)
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.grpcServer.GracefulStop()
	return nil
}

func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	errCh := make(chan error, 1)
	go func() {
		if err := r.worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			errCh <- err
		}
	}()
	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}
