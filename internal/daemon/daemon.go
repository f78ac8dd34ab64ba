package daemon

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/emberline/ember/internal/api"
	"github.com/emberline/ember/internal/app/decision"
	"github.com/emberline/ember/internal/app/policy"
	"github.com/emberline/ember/internal/app/requeue"
	"github.com/emberline/ember/internal/domain"
	"github.com/emberline/ember/internal/health"
	"github.com/emberline/ember/internal/infra/checkpoint"
	_ "github.com/emberline/ember/internal/infra/metrics" // Register Prometheus metrics
	"github.com/emberline/ember/internal/infra/sensors"
	"github.com/emberline/ember/internal/infra/sqlite"
	"github.com/emberline/ember/internal/infra/supervisor"
	"github.com/emberline/ember/internal/infra/thermal"
)

// Daemon is the core ember runtime. It wires together all services.
type Daemon struct {
	Config      Config
	DB          *sqlite.DB
	Temps       domain.TemperatureSource
	Power       domain.PowerStatus
	Sleeper     domain.DeviceSleeper
	Predictor   *thermal.Predictor
	Checkpoints *checkpoint.Store
	Supervisor  *supervisor.Supervisor
	Coordinator *decision.Coordinator
	Requeue     *requeue.Queue
	Server      *api.Server
	Health      *health.Checker
	cancel      context.CancelFunc
}

// New creates and initializes a Daemon with all services wired.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig creates a Daemon with the given configuration.
func NewWithConfig(cfg Config) (*Daemon, error) {
	db, err := sqlite.Open(cfg.Node.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Shared, briefly-cached temperature source — closely spaced
	// polls from predictor, supervisor, and health share one read.
	temps := sensors.NewCachedTemperature(
		sensors.NewCPUTemperature(),
		time.Duration(cfg.Sensors.CacheMillis)*time.Millisecond,
	)
	power := sensors.NewBatteryPower()
	sleeper := sensors.NewLoggingSleeper()

	predictorCfg := thermal.DefaultConfig()
	if cfg.Predictor.CacheTTLMinutes > 0 {
		predictorCfg.CacheTTL = time.Duration(cfg.Predictor.CacheTTLMinutes) * time.Minute
	}
	if cfg.Predictor.PhysicalCeiling > 0 {
		predictorCfg.PhysicalCeiling = cfg.Predictor.PhysicalCeiling
	}
	if cfg.Predictor.NominalTemp > 0 {
		predictorCfg.NominalTemp = cfg.Predictor.NominalTemp
	}
	if cfg.Predictor.AsymptoticPeakFrac > 0 {
		predictorCfg.AsymptoticPeakFrac = cfg.Predictor.AsymptoticPeakFrac
	}
	if cfg.Predictor.ExponentialPeakFrac > 0 {
		predictorCfg.ExponentialPeakFrac = cfg.Predictor.ExponentialPeakFrac
	}
	if cfg.Predictor.SegmentCooldownMin > 0 {
		predictorCfg.SegmentCooldown = time.Duration(cfg.Predictor.SegmentCooldownMin) * time.Minute
	}
	predictor := thermal.NewPredictor(predictorCfg, temps)

	checkpoints := checkpoint.NewStore(db)

	supCfg := supervisor.DefaultConfig()
	supCfg.Interval = cfg.Supervisor.Interval()
	if cfg.Supervisor.AlertTemp > 0 {
		supCfg.AlertTemp = cfg.Supervisor.AlertTemp
	}
	if cfg.Supervisor.AbortTemp > 0 {
		supCfg.AbortTemp = cfg.Supervisor.AbortTemp
	}
	supCfg.PowerEnabled = cfg.Supervisor.PowerEnabled
	if cfg.Supervisor.BatteryFloor > 0 {
		supCfg.BatteryFloor = cfg.Supervisor.BatteryFloor
	}
	supCfg.DrawCeiling = cfg.Supervisor.DrawCeiling
	sup := supervisor.New(supCfg, temps, power, checkpoints, db, sleeper)

	coord := decision.New(
		cfg.Node.DeviceID,
		predictor,
		sqlite.Profiles{DB: db},
		policy.NewHours(cfg.Policy.StartHour, cfg.Policy.EndHour),
		policy.NewCleanHours(cfg.Energy.CleanStartHour, cfg.Energy.CleanEndHour),
		policy.NewDBQueue(db),
		sleeper,
		db,
	)

	rq := requeue.New(requeue.DefaultConfig())
	coord.SetDeferrals(rq)

	srv := api.NewServer(db, coord, sup, predictor, cfg.Node.DeviceID)
	if cfg.Telemetry.Prometheus {
		srv.EnableMetrics()
	}
	srv.SetRequeue(rq)

	checker := health.NewChecker(db, cfg.Node.DataDir, temps)
	srv.SetHealth(checker)

	return &Daemon{
		Config:      cfg,
		DB:          db,
		Temps:       temps,
		Power:       power,
		Sleeper:     sleeper,
		Predictor:   predictor,
		Checkpoints: checkpoints,
		Supervisor:  sup,
		Coordinator: coord,
		Requeue:     rq,
		Server:      srv,
		Health:      checker,
	}, nil
}

// Serve starts the HTTP server and blocks until shutdown.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	go d.Health.Run(ctx)
	go d.Requeue.Run(ctx, d.DB)

	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      d.Server.Handler(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  2 * time.Minute,
	}

	// Graceful shutdown on signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()

		for _, id := range d.Supervisor.Monitored() {
			d.Supervisor.Stop(id)
		}
		_ = httpServer.Shutdown(shutdownCtx)
		_ = d.DB.Close()
	}()

	fmt.Printf("ember serving on http://%s\n", addr)
	if d.Config.Telemetry.Prometheus {
		fmt.Printf("  Metrics: http://%s/metrics\n", addr)
	}

	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown requests a graceful stop.
func (d *Daemon) Shutdown() {
	if d.cancel != nil {
		d.cancel()
	}
}

// Close releases daemon resources. Used by short-lived CLI commands
// that never call Serve.
func (d *Daemon) Close() error {
	for _, id := range d.Supervisor.Monitored() {
		d.Supervisor.Stop(id)
	}
	return d.DB.Close()
}
