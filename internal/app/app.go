// Package app assembles the lounge backend from configuration and runs it.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"loungebackend/internal/api"
	"loungebackend/internal/billing"
	"loungebackend/internal/cleanup"
	"loungebackend/internal/clock"
	"loungebackend/internal/config"
	"loungebackend/internal/data"
	"loungebackend/internal/inventory"
	"loungebackend/internal/ledger"
	"loungebackend/internal/logger"
	"loungebackend/internal/security"
)

const (
	requestTimeout  = 15 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Options is everything New needs. FromEnv fills it from the environment.
type Options struct {
	Addr          string
	Billing       billing.Config
	Store         data.Config
	SeedFile      string
	Currency      string
	SessionTTL    time.Duration
	SweepInterval time.Duration
	Clock         clock.Clock // nil means the real clock
}

// FromEnv reads Options through the config package.
func FromEnv() Options {
	return Options{
		Addr:          config.ServerAddress(),
		Billing:       config.BillingConfig(),
		Store:         config.StoreConfig(),
		SeedFile:      config.InventorySeedFile(),
		Currency:      config.CurrencyLabel(),
		SessionTTL:    config.SessionTTL(),
		SweepInterval: config.SessionSweepInterval(),
	}
}

type App struct {
	addr          string
	mux           *http.ServeMux
	connections   sync.WaitGroup
	totalRequests int64

	store    data.Store
	stock    *inventory.Service
	ledger   *ledger.Ledger
	engine   *billing.Engine
	sessions *security.Sessions
	sweep    time.Duration
}

// New opens the snapshot store, restores every collection from it and
// wires the services so later changes are saved back.
func New(ctx context.Context, opts Options) (*App, error) {
	store, err := data.OpenStore(ctx, opts.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot store: %w", err)
	}
	snap := data.NewSnapshotter(store)

	stock := inventory.NewService(inventory.WithChangeHook(snap.SaveInventory))
	if items := snap.LoadInventory(ctx); len(items) > 0 {
		stock.Restore(items)
		logger.LogInfo("Restored %d inventory items", len(items))
	} else if opts.SeedFile != "" {
		if err := stock.LoadSeedFile(opts.SeedFile); err != nil {
			logger.LogWarn("Inventory seed not loaded: %v", err)
		}
	}

	l := ledger.New(ledger.WithHistoryHook(snap.SaveHistory), ledger.WithIncomeHook(snap.SaveIncome))
	l.Restore(snap.LoadHistory(ctx), snap.LoadIncome(ctx))

	engineOpts := []billing.Option{billing.WithGuestsHook(snap.SaveGuests)}
	if opts.Clock != nil {
		engineOpts = append(engineOpts, billing.WithClock(opts.Clock))
	}
	engine := billing.New(opts.Billing, stock, l, engineOpts...)
	engine.Restore(snap.LoadGuests(ctx))

	ttl := opts.SessionTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	sweep := opts.SweepInterval
	if sweep <= 0 {
		sweep = 5 * time.Minute
	}
	sessions := security.NewSessions(ttl)

	a := &App{
		addr:     opts.Addr,
		store:    store,
		stock:    stock,
		ledger:   l,
		engine:   engine,
		sessions: sessions,
		sweep:    sweep,
	}
	a.mux = api.NewServer(engine, stock, l, sessions, opts.Currency).Routes()
	a.mux.HandleFunc("/", notFound)
	return a, nil
}

func (a *App) Engine() *billing.Engine       { return a.engine }
func (a *App) Inventory() *inventory.Service { return a.stock }
func (a *App) Ledger() *ledger.Ledger        { return a.ledger }

// Run serves HTTP and sweeps expired sessions until ctx is cancelled, then
// shuts the server down gracefully.
func (a *App) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:         a.addr,
		Handler:      a.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.LogInfo("Starting server on %s", a.addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.LogInfo("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.LogError("Server shutdown error: %v", err)
			return err
		}

		logger.LogInfo("Waiting for active connections to finish...")
		a.connections.Wait()
		logger.LogInfo("All connections closed. Total requests handled: %d", atomic.LoadInt64(&a.totalRequests))
		return nil
	})

	g.Go(func() error {
		return cleanup.Run(gctx, a.sweep, cleanup.Task{
			Name: "sessions",
			Run:  a.sessions.CleanExpiredSessions,
		})
	})

	return g.Wait()
}

// Close stops every timer and closes the snapshot store.
func (a *App) Close() error {
	a.engine.Close()
	if err := a.store.Close(); err != nil {
		return fmt.Errorf("failed to close snapshot store: %w", err)
	}
	logger.LogInfo("Server shut down gracefully")
	return nil
}

// Handler assembles all middleware around the main mux
func (a *App) Handler() http.Handler {
	var handler http.Handler = a.mux

	handler = security.AddCORSHeaders(handler)
	handler = a.trackConnections(handler)
	handler = withTimeout(handler, requestTimeout)

	return handler
}

// Middleware: timeout handler
func withTimeout(h http.Handler, timeout time.Duration) http.Handler {
	return http.TimeoutHandler(h, timeout, "Request timed out")
}

// Middleware: track active connections and total requests
func (a *App) trackConnections(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		a.connections.Add(1)
		atomic.AddInt64(&a.totalRequests, 1)
		defer a.connections.Done()

		h.ServeHTTP(w, r)
	})
}

// notFound serves every path no route claims.
func notFound(w http.ResponseWriter, r *http.Request) {
	logger.LogInfo("404 not found: %s", r.URL.Path)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusNotFound)
	w.Write([]byte(`
		<html><body>
			<h1>404 - Page Not Found</h1>
			<p>Sorry, the page you requested was not found.</p>
			<a href="/api/guests">Return to Guest List</a>
		</body></html>
	`))
}
