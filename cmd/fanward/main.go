// Command fanward runs the subscription and billing-reconciliation service:
// the billing HTTP surface (webhook + subscriber actions) on top of the
// PostgreSQL-backed ledger, catalog and order stores.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	modbilling "github.com/fanward/fanward/modules/billing"
	"github.com/fanward/fanward/pkg/billing"
	"github.com/fanward/fanward/pkg/catalog"
	"github.com/fanward/fanward/pkg/config"
	"github.com/fanward/fanward/pkg/ledger"
	"github.com/fanward/fanward/pkg/logger"
	"github.com/fanward/fanward/pkg/orders"
	"github.com/fanward/fanward/pkg/pg"
	pkgredis "github.com/fanward/fanward/pkg/redis"
	"github.com/fanward/fanward/svc/reconciler"
	"github.com/fanward/fanward/svc/subscription"
)

type appConfig struct {
	Env             string        `env:"APP_ENV" envDefault:"production"`             // Env selects the logger preset: "production" or "development".
	Addr            string        `env:"HTTP_ADDR" envDefault:":8080"`                // Addr is the HTTP listen address.
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT" envDefault:"10s"`          // ReadTimeout bounds request reads.
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"30s"`         // WriteTimeout bounds response writes.
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT" envDefault:"10s"`      // ShutdownTimeout bounds graceful drain.
	SuccessURL      string        `env:"CHECKOUT_SUCCESS_URL,required"`               // SuccessURL is where hosted checkout returns on success.
	CancelURL       string        `env:"CHECKOUT_CANCEL_URL,required"`                // CancelURL is where hosted checkout returns on abandon.
	AccountIDHeader string        `env:"ACCOUNT_ID_HEADER" envDefault:"X-Account-ID"` // AccountIDHeader carries the authenticated account set by the gateway.
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var appCfg appConfig
	config.MustLoad(&appCfg)
	var pgCfg pg.Config
	config.MustLoad(&pgCfg)
	var redisCfg pkgredis.Config
	config.MustLoad(&redisCfg)
	var stripeCfg billing.StripeConfig
	config.MustLoad(&stripeCfg)

	preset := logger.WithProduction("fanward")
	if appCfg.Env == "development" {
		preset = logger.WithDevelopment("fanward")
	}
	log := logger.New(preset)
	logger.SetAsDefault(log)

	pool, err := pg.Connect(ctx, pgCfg)
	if err != nil {
		log.ErrorContext(ctx, "database connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer pool.Close()

	if err := pg.Migrate(ctx, pool, pgCfg, log); err != nil {
		log.ErrorContext(ctx, "migrations failed", logger.Error(err))
		os.Exit(1)
	}

	rdb, err := pkgredis.Connect(ctx, redisCfg)
	if err != nil {
		log.ErrorContext(ctx, "redis connection failed", logger.Error(err))
		os.Exit(1)
	}
	defer rdb.Close()

	provider, err := billing.NewStripeProvider(stripeCfg)
	if err != nil {
		log.ErrorContext(ctx, "billing provider init failed", logger.Error(err))
		os.Exit(1)
	}

	ledgerStore := ledger.NewPgStore(pool)
	catalogStore := catalog.NewPgStore(pool)
	orderStore := orders.NewPgStore(pool)

	catalogSvc := catalog.NewService(catalogStore, ledgerStore, provider, log)
	subscriptionSvc := subscription.NewService(catalogSvc, ledgerStore, provider,
		subscription.WithReturnURLs(appCfg.SuccessURL, appCfg.CancelURL),
		subscription.WithLogger(log),
	)
	recorder := orders.NewRecorder(orderStore, catalogStore, ledgerStore, log)
	reconcilerSvc := reconciler.NewService(provider, ledgerStore, recorder,
		reconciler.WithDeduper(reconciler.NewDeduper(rdb, reconciler.DefaultDedupeTTL, log)),
		reconciler.WithLogger(log),
	)

	accountFromHeader := func(r *http.Request) (uuid.UUID, error) {
		return uuid.Parse(r.Header.Get(appCfg.AccountIDHeader))
	}

	r := chi.NewRouter()
	r.Get("/healthz", healthHandler(log))
	r.Get("/readyz", healthHandler(log, pg.Healthcheck(pool), pkgredis.Healthcheck(rdb)))
	r.Mount("/billing", modbilling.Router(modbilling.RouterOptions{
		Webhook:      modbilling.NewWebhookService(reconcilerSvc, log),
		Subscription: modbilling.NewSubscriptionService(subscriptionSvc, accountFromHeader, log),
	}))

	srv := &http.Server{
		Addr:         appCfg.Addr,
		Handler:      r,
		ReadTimeout:  appCfg.ReadTimeout,
		WriteTimeout: appCfg.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), appCfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("graceful shutdown failed", logger.Error(err))
		}
	}()

	log.InfoContext(ctx, "listening", "addr", appCfg.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("server stopped", logger.Error(err))
		os.Exit(1)
	}
}

// healthHandler serves liveness when called without probes and readiness when
// given dependency probes.
func healthHandler(log *slog.Logger, probes ...func(context.Context) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		for _, probe := range probes {
			if err := probe(r.Context()); err != nil {
				log.ErrorContext(r.Context(), "readiness check failed", logger.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("NOT_READY"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}
}
