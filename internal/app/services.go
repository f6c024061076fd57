package app

import (
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/odyssey-erp/odyssey-procure/internal/inventory"
	"github.com/odyssey-erp/odyssey-procure/internal/masterdata"
	"github.com/odyssey-erp/odyssey-procure/internal/platform/db"
	"github.com/odyssey-erp/odyssey-procure/internal/procurement"
	"github.com/odyssey-erp/odyssey-procure/internal/requisition"
	"github.com/odyssey-erp/odyssey-procure/internal/shared"
)

// ServiceDeps lists what the domain services need from the process.
type ServiceDeps struct {
	Pool       *pgxpool.Pool
	Config     *Config
	Logger     *slog.Logger
	Redis      *redis.Client
	Reconciler procurement.Reconciler
	Registerer prometheus.Registerer
}

// Services bundles the domain services shared by the API server and the worker.
type Services struct {
	Tx          *db.TxManager
	Audit       *shared.AuditLogger
	Idempotency *shared.IdempotencyStore
	Inventory   *inventory.Service
	Requisition *requisition.Propagator
	MasterData  *masterdata.Service
	Procurement *procurement.Service
}

// NewServices wires repositories and services over one transaction manager.
func NewServices(deps ServiceDeps) *Services {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg == nil {
		cfg = &Config{TxMaxRetries: 5, DefaultCurrency: "IDR"}
	}

	tx := db.NewTxManager(deps.Pool, cfg.TxMaxRetries)
	auditLogger := shared.NewAuditLogger(tx)
	approvals := shared.NewApprovalRecorder(tx, logger)
	idempotency := shared.NewIdempotencyStore(tx)

	inventoryService := inventory.NewService(inventory.NewRepository(tx), auditLogger, logger)
	propagator := requisition.NewPropagator(requisition.NewRepository(tx), logger)
	directory := masterdata.NewService(masterdata.NewRepository(tx))

	procurementService := procurement.NewService(
		procurement.NewRepository(tx),
		inventoryService,
		directory,
		directory,
		propagator,
		logger,
	).
		WithRecorders(auditLogger, approvals, idempotency).
		WithCurrency(cfg.DefaultCurrency)
	if deps.Reconciler != nil {
		procurementService.WithReconciler(deps.Reconciler)
	}
	if deps.Redis != nil {
		procurementService.WithCache(procurement.NewSummaryCache(deps.Redis, cfg.OrderCacheTTL, logger))
	}
	if deps.Registerer != nil {
		procurementService.WithMetrics(procurement.NewMetrics(deps.Registerer))
	}

	return &Services{
		Tx:          tx,
		Audit:       auditLogger,
		Idempotency: idempotency,
		Inventory:   inventoryService,
		Requisition: propagator,
		MasterData:  directory,
		Procurement: procurementService,
	}
}
