package main

import (
	"context"
	"errors"
	stdlog "log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/config"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/game"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/handlers"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/janitor"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/logging"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/metrics"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/payout"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/roster"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/rules"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/sse"
	"github.com/1MGAMINGcompany/one-million-spark-sub007/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		stdlog.Fatalf("config: %v", err)
	}
	log, err := logging.New(cfg.Debug)
	if err != nil {
		stdlog.Fatalf("logger: %v", err)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.New()
	m := metrics.New()
	deps := game.Deps{Clock: clk, Logger: log, Metrics: m}

	mem := store.NewMemoryStore()
	deps.Sessions, deps.Tokens, deps.Receipts = mem, mem, mem
	if cfg.RedisURL != "" {
		rs, err := store.OpenRedis(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rs.Close()
		deps.Sessions, deps.Tokens = rs, rs
		log.Info("sessions in redis")
	}
	if cfg.LedgerDSN != "" {
		ledger, err := store.OpenLedger(cfg.LedgerDSN)
		if err != nil {
			return err
		}
		defer ledger.Close()
		deps.Receipts = ledger
		log.Info("receipts in ledger", zap.String("dsn", cfg.LedgerDSN))
	}

	classifier, closeRules, err := loadRules(cfg, log)
	if err != nil {
		return err
	}
	defer closeRules()
	deps.Rules = classifier

	httpClient := &http.Client{Timeout: 10 * time.Second}
	if cfg.RosterURL != "" {
		deps.Roster = roster.NewHTTP(cfg.RosterURL, httpClient)
	}
	if cfg.PayoutURL != "" {
		deps.Payer = payout.NewHTTPPayer(cfg.PayoutURL, httpClient)
	} else {
		log.Warn("PAYOUT_URL not set, payouts go to the in-process ledger")
		deps.Payer = payout.NewLedgerPayer()
	}

	push := sse.New(clk, log.Named("push"))
	deps.Notifier = push

	coord := game.New(deps, game.Options{
		FeeBps:    cfg.FeeBps,
		MaxMisses: cfg.MaxMisses,
		TokenTTL:  cfg.SessionTokenTTL,
	})

	app := &handlers.Context{
		Engine:       coord,
		Push:         push,
		Metrics:      m,
		Log:          log.Named("http"),
		Clock:        clk,
		RequireToken: cfg.RequireSessionToken,
		PublicURL:    cfg.PublicURL,
		AllowOrigins: cfg.OriginAllowlist,
	}
	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           app.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		// push streams end with the process context
		BaseContext: func(net.Listener) context.Context { return ctx },
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		push.Run(ctx)
		return nil
	})
	g.Go(func() error {
		return janitor.New(coord, clk, cfg.WaitingRoomTTL, log.Named("janitor")).Run(ctx, cfg.JanitorSchedule)
	})
	g.Go(func() error {
		log.Info("listening", zap.String("addr", srv.Addr), zap.Bool("requireToken", cfg.RequireSessionToken))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// loadRules picks the move classifier. Without a script the mover's own
// flags decide outcomes, which staked rooms should not rely on.
func loadRules(cfg config.Config, log *zap.Logger) (rules.Engine, func(), error) {
	if cfg.RulesScript == "" {
		log.Warn("RULES_SCRIPT not set, staked rooms settle on outcomes declared by the mover")
		return rules.Declared{}, func() {}, nil
	}
	script, err := rules.LoadScriptFile(cfg.RulesScript)
	if err != nil {
		return nil, nil, err
	}
	log.Info("rules script loaded", zap.String("path", cfg.RulesScript))
	return script, func() { script.Close() }, nil
}
