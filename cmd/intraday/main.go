// Command intraday runs the intraday trading engine for one delivery
// date: it connects to the venue, reconciles the contracted position
// against the production forecast every tick and submits corrective
// orders.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/auth"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/brm"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/domain"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/engine"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/execution"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/forecast"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/infra"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/ledger"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/market"
	"github.com/Andrei-Ionita/BRM-Trading-sub000/internal/storage"

	"github.com/shopspring/decimal"
)

var (
	flagConfig          string
	flagDate            string
	flagDryRun          bool
	flagSingleRun       bool
	flagIntervalMinutes int
	flagVerbose         bool
)

func main() {
	root := &cobra.Command{
		Use:   "intraday",
		Short: "Intraday energy trading engine",
		Long: "Maintains a live session to the intraday market, tracks the contracted\n" +
			"position per 15-minute interval and submits corrective orders whenever\n" +
			"the position diverges from the production forecast.",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	root.Flags().StringVarP(&flagConfig, "config", "c", "config.yaml", "path to the configuration file")
	root.Flags().StringVar(&flagDate, "date", "", "delivery date (YYYY-MM-DD, default today in venue time)")
	root.Flags().BoolVar(&flagDryRun, "dry-run", false, "log decisions without opening a network session")
	root.Flags().BoolVar(&flagSingleRun, "single-run", false, "run one reconciliation tick and exit")
	root.Flags().IntVar(&flagIntervalMinutes, "interval-minutes", 0, "override the tick granularity in minutes")
	root.Flags().BoolVarP(&flagVerbose, "verbose", "v", false, "debug logging")

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func run() error {
	cfg, err := infra.LoadConfig(flagConfig)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	level := cfg.Logging.Level
	if flagVerbose {
		level = "debug"
	}
	log := infra.NewLogger(level)
	slog.SetDefault(log)

	date := flagDate
	if date == "" {
		date = time.Now().In(domain.VenueLocation()).Format(domain.DateLayout)
	}
	if _, err := time.Parse(domain.DateLayout, date); err != nil {
		return fmt.Errorf("invalid --date %q: %w", flagDate, err)
	}

	tickMinutes := cfg.Trading.TickMinutes
	if flagIntervalMinutes > 0 {
		tickMinutes = flagIntervalMinutes
	}
	threshold, err := decimal.NewFromString(cfg.Trading.ThresholdMW)
	if err != nil {
		return fmt.Errorf("invalid threshold_mw %q: %w", cfg.Trading.ThresholdMW, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()
	files := storage.NewFileStore(cfg.Storage.FileDir)

	posLedger := ledger.New(store, files, log)
	if err := posLedger.Initialize(ctx, date, nil, nil); err != nil {
		return fmt.Errorf("initialize position: %w", err)
	}

	var provider forecast.Provider
	switch {
	case cfg.Forecast.Path != "" && strings.EqualFold(cfg.Forecast.Timezone, "eet"):
		provider = forecast.NewEETFileProvider(cfg.Forecast.Path)
	case cfg.Forecast.Path != "":
		provider = forecast.NewFileProvider(cfg.Forecast.Path)
	default:
		log.Warn("no forecast source configured, forecast is all zero")
		provider = forecast.Static{}
	}

	cache := market.NewCache(log)

	var (
		session     *brm.Session
		sessionLost atomic.Bool
	)
	var sender execution.OrderSender = offlineSender{}
	if !flagDryRun {
		session, err = connectSession(ctx, cfg, log)
		if err != nil {
			return fmt.Errorf("connect session: %w", err)
		}
		defer session.Stop()
		sender = session
	}

	limiter := infra.NewRateLimiter(1, cfg.Trading.OrdersPerSecond)
	executor := execution.New(execution.Config{
		PortfolioID:    cfg.Trading.PortfolioID,
		DeliveryAreaID: cfg.Trading.DeliveryAreaID,
		Destination:    topics(cfg).OrderEntry(),
		DeliveryDate:   date,
		TestEnv:        cfg.IsTestEnv(),
		DryRun:         flagDryRun,
	}, sender, posLedger, store, limiter, log)

	loop := engine.New(engine.Config{
		DeliveryDate:    date,
		WindowIntervals: cfg.Trading.WindowIntervals,
		ThresholdMW:     threshold,
		GateClosure:     time.Duration(cfg.Trading.GateClosureMinutes) * time.Minute,
		TickInterval:    time.Duration(tickMinutes) * time.Minute,
		SingleRun:       flagSingleRun,
	}, posLedger, cache, executor, provider, store, log)

	if session != nil {
		session.OnSessionLost = func(err error) {
			log.Error("session lost", "err", err)
			sessionLost.Store(true)
			stop()
		}
		if err := subscribe(session, cfg, loop); err != nil {
			return fmt.Errorf("subscribe: %w", err)
		}
	}

	if err := loop.Run(ctx); err != nil {
		return err
	}
	if sessionLost.Load() {
		return errors.New("reconnect attempts exhausted")
	}
	log.Info("shutdown complete")
	return nil
}

func topics(cfg *infra.Config) brm.Topics {
	return brm.Topics{Username: cfg.Venue.Username, Version: cfg.Venue.APIVersion}
}

func connectSession(ctx context.Context, cfg *infra.Config, log *slog.Logger) (*brm.Session, error) {
	tokens := auth.NewPasswordGrant(auth.Config{
		TokenURL:     cfg.Auth.TokenURL,
		ClientID:     cfg.Auth.ClientID,
		ClientSecret: cfg.Auth.ClientSecret,
		Username:     cfg.Auth.Username,
		Password:     cfg.Auth.Password,
		Scopes:       strings.Fields(cfg.Auth.Scope),
	})

	session := brm.NewSession(brm.SessionConfig{
		BaseURL:              cfg.Venue.WSURL,
		Host:                 cfg.Venue.Username,
		Topics:               topics(cfg),
		HeartbeatMillis:      cfg.Session.HeartbeatMillis,
		HandshakeTimeout:     time.Duration(cfg.Session.HandshakeTimeoutSec) * time.Second,
		MaxReconnectAttempts: cfg.Session.MaxReconnectAttempts,
	}, tokens, log)

	if err := session.Start(ctx); err != nil {
		return nil, err
	}
	return session, nil
}

// subscribe wires every stream the loop consumes. Handlers run on the
// session's read goroutine and only enqueue into the loop's inbox.
func subscribe(session *brm.Session, cfg *infra.Config, loop *engine.Engine) error {
	t := topics(cfg)
	streams := []string{
		t.Configuration(),
		t.DeliveryAreas(),
		t.Contracts(),
		t.Ticker(),
		t.LocalView(cfg.Trading.DeliveryAreaID),
		t.ExecutionReports(),
		t.PrivateTrades(),
	}
	for _, topic := range streams {
		if _, err := session.Subscribe(topic, loop.Post); err != nil {
			return fmt.Errorf("subscribe %s: %w", topic, err)
		}
	}
	return nil
}

// offlineSender backs the executor in dry-run mode, where no order may
// ever reach the network.
type offlineSender struct{}

func (offlineSender) Connected() bool { return false }

func (offlineSender) Send(string, []byte, string) error {
	return errors.New("offline: no session")
}
