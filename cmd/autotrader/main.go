package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/shopspring/decimal"
	"github.com/yanun0323/logs"

	"main/internal/api"
	"main/internal/condition"
	"main/internal/core"
	"main/internal/exchange"
	"main/internal/execution"
	"main/internal/feed"
	"main/internal/model"
	"main/internal/model/enum"
	"main/internal/notify"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/position"
	"main/internal/risk"
	"main/internal/stop"
	"main/internal/storage"
	"main/pkg/conn"
)

// Leveraged positions whose margin ratio falls below this trip an
// automatic symbol-level stop.
var defaultMarginBreachRatio = decimal.RequireFromString("0.05")

func main() {
	configPath := flag.String("config", "", "Path to JSON config")
	flag.Parse()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}

	if loaded.Pyroscope.ServerAddress != "" {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: applicationName(loaded),
			ServerAddress:   loaded.Pyroscope.ServerAddress,
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			log.Fatalf("pyroscope start failed: %v", err)
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	store, closeStore, err := buildStore(loaded)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer closeStore()

	metrics := obs.NewMetrics()
	positions := position.NewManager()

	checker := risk.NewChecker(loaded.RiskDefaults)
	for strategyID, cfg := range loaded.RiskStrategies {
		checker.SetStrategyConfig(strategyID, cfg)
	}

	venue := exchange.NewPaper("paper-account", decimal.NewFromInt(1_000_000))
	cache := feed.NewCache()

	hub := notify.NewHub()
	alerts := notify.NewManager(notify.Config{
		Workers:       loaded.NotifyWorkers,
		QueueCap:      loaded.NotifyQueue,
		SendTimeout:   loaded.NotifySendTimeout,
		SendRetries:   loaded.NotifySendRetries,
		EscalateEvery: loaded.EscalateAfter,
	}, buildChannels(loaded, hub), store, metrics)
	alerts.Run(ctx)

	stops := stop.NewService(loaded.StopMaxDuration, nil,
		func(severity enum.Severity, title, message string, scope model.StopScope) {
			alerts.Raise(ctx, severity, title, message, scope)
		}, store)

	exec := execution.NewEngine(execution.Config{
		Workers:       loaded.ExecutionWorkers,
		QueueCap:      loaded.ExecutionQueue,
		MaxRetries:    loaded.MaxRetries,
		BackoffBase:   loaded.BackoffBase,
		BackoffMax:    loaded.BackoffMax,
		SubmitTimeout: loaded.SubmitTimeout,
	}, execution.Deps{
		Risk:      checker,
		Stops:     stops,
		Positions: positions,
		Adapter:   venue,
		Alerts:    alerts,
		Store:     store,
		Market:    cache,
		Metrics:   metrics,
	})
	stops.SetCancelFunc(exec.MassCancel)
	exec.Run(ctx)
	go stops.Run(ctx, loaded.StopSweepEvery)

	var coreSvc *core.Service
	conditions := condition.NewEngine(0, func(event model.TriggerEvent) {
		coreSvc.OnTrigger(event)
	})
	coreSvc = core.NewService(conditions, exec, positions, cache, store, metrics)
	conditions.Run(ctx)

	positions.OnMarginBreach(defaultMarginBreachRatio, func(accountID, symbol string, ratio decimal.Decimal) {
		reason := fmt.Sprintf("margin ratio %s on %s below threshold", ratio, symbol)
		if _, err := stops.ActivateAuto(ctx, enum.StopLevelSymbol, symbol, reason); err != nil {
			logs.Warnf("auto stop for %s on account %s: %v", symbol, accountID, err)
		}
	})

	if err := startFeed(ctx, loaded, coreSvc); err != nil {
		log.Fatalf("feed start failed: %v", err)
	}

	server := api.NewServer(coreSvc, exec, stops, alerts, positions, metrics, hub)
	go func() {
		if err := server.Start(loaded.APIAddr); err != nil {
			logs.Errorf("admin api stopped: %v", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logs.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logs.Warnf("admin api shutdown: %v", err)
	}
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Loaded{APIAddr: ":8080", Feed: ops.FeedFileConfig{Source: "sim"}}, nil
	}
	return ops.Load(path)
}

func applicationName(loaded ops.Loaded) string {
	if loaded.Pyroscope.ApplicationName != "" {
		return loaded.Pyroscope.ApplicationName
	}
	return "autotrader"
}

func buildStore(loaded ops.Loaded) (storage.Store, func(), error) {
	if loaded.Postgres.Host == "" {
		return storage.NewMemory(), func() {}, nil
	}
	client, err := conn.New(conn.Option{
		Host:         loaded.Postgres.Host,
		Port:         loaded.Postgres.Port,
		User:         loaded.Postgres.User,
		Password:     loaded.Postgres.Password,
		Database:     loaded.Postgres.Database,
		SSLMode:      loaded.Postgres.SSLMode,
		MaxOpenConns: loaded.Postgres.MaxOpenConns,
		MaxIdleConns: loaded.Postgres.MaxIdleConns,
	})
	if err != nil {
		return nil, nil, err
	}
	pg, err := storage.NewPostgres(client, loaded.Postgres.AutoMigrate)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return pg, func() { client.Close() }, nil
}

func buildChannels(loaded ops.Loaded, hub *notify.Hub) []notify.Channel {
	channels := []notify.Channel{notify.NewLogChannel(), hub}

	n := loaded.Notify
	if n.Telegram.BotToken != "" && n.Telegram.ChatID != "" {
		channels = append(channels, notify.NewTelegramChannel(n.Telegram.BotToken, n.Telegram.ChatID))
	}
	if n.Email.Host != "" && len(n.Email.To) > 0 {
		channels = append(channels, notify.NewEmailChannel(
			n.Email.Host, n.Email.Port, n.Email.Username, n.Email.Password, n.Email.From, n.Email.To))
	}
	if n.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(n.WebhookURL))
	}
	if n.SlackURL != "" {
		channels = append(channels, notify.NewSlackChannel(n.SlackURL))
	}
	if n.DiscordURL != "" {
		channels = append(channels, notify.NewDiscordChannel(n.DiscordURL))
	}
	return channels
}

func startFeed(ctx context.Context, loaded ops.Loaded, coreSvc *core.Service) error {
	var source feed.Feed
	switch loaded.Feed.Source {
	case "binance":
		source = feed.NewBinance(ctx, loaded.Feed.BaseURL)
	default:
		sim := feed.NewSim(time.Duration(loaded.Feed.SimIntervalMs) * time.Millisecond)
		source = sim
	}

	if err := source.Start(ctx); err != nil {
		return err
	}
	for _, symbol := range loaded.Feed.Symbols {
		if err := source.Subscribe(ctx, symbol); err != nil {
			return err
		}
	}
	source.Observe(ctx, coreSvc.OnTick)
	return nil
}
