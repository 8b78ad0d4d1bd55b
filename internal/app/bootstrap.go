package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"eso_go/internal/infra"
	"eso_go/internal/infra/storage"
	eshttp "eso_go/internal/interfaces/http"
	"eso_go/internal/service"
)

// shutdownTimeout bounds how long in-flight requests may run after a signal.
const shutdownTimeout = 5 * time.Second

// Bootstrap orchestrates the application startup sequence
type Bootstrap struct {
	Config  *infra.Config
	Logger  *slog.Logger
	Metrics *infra.Metrics
	Storage *storage.Storage
	Service *service.ValuationService
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires the service.
// The grant register is opened only when withRegister is set.
func (b *Bootstrap) Initialize(configPath string, withRegister bool) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err // Let main handle the error
	}
	b.Config = cfg

	// 2. Setup Logger
	b.Logger = infra.NewLogger(cfg)
	slog.SetDefault(b.Logger)
	slog.Debug("🚀 Bootstrapping ESO valuation", slog.String("version", cfg.App.Version))

	// 3. Metrics
	b.Metrics = infra.GlobalMetrics

	// 4. Initialize Storage (DB)
	if withRegister {
		store, err := storage.NewStorage(cfg.Storage.Path)
		if err != nil {
			return err
		}
		b.Storage = store
		slog.Debug("✅ Grant register opened")
	}

	// 5. Valuation service
	if b.Storage != nil {
		b.Service = service.NewValuationService(cfg, b.Storage, b.Metrics, b.Logger)
	} else {
		b.Service = service.NewValuationService(cfg, nil, b.Metrics, b.Logger)
	}

	return nil
}

// Serve runs the HTTP API until ctx is cancelled, then shuts down gracefully
func (b *Bootstrap) Serve(ctx context.Context) error {
	handler := eshttp.NewValuationHandler(b.Service, b.Config, b.Metrics, b.Logger)

	srv := &http.Server{
		Addr:        b.Config.Server.Addr,
		Handler:     eshttp.NewRouter(handler),
		ReadTimeout: time.Duration(b.Config.Server.ReadTimeoutSec) * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("✅ HTTP server listening", slog.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("👋 Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// Close releases the grant register if open
func (b *Bootstrap) Close() error {
	if b.Storage == nil {
		return nil
	}
	return b.Storage.Close()
}
