package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"SRTrack/api"
	"SRTrack/config"
	"SRTrack/db"
	"SRTrack/internal/attendance"
	"SRTrack/internal/compliance"
	"SRTrack/internal/notify"
	"SRTrack/internal/queue"
	"SRTrack/internal/registration"
	"SRTrack/internal/telegram"
	"SRTrack/scheduler"
	"SRTrack/utils"

	"github.com/hibiken/asynq"
	"github.com/inconshreveable/log15/v3"
	"golang.ngrok.com/ngrok"
	ngrokconfig "golang.ngrok.com/ngrok/config"
)

func main() {
	sweepOnce := flag.Bool("sweep", false, "run the overdue sweep once and exit")
	rosterPath := flag.String("roster", "", "import commanders from a YAML roster and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "config:", err)
		os.Exit(1)
	}
	log := utils.NewLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, log, *sweepOnce, *rosterPath); err != nil {
		log.Crit("SRTrack stopped", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log log15.Logger, sweepOnce bool, rosterPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := db.Open(cfg.DatabaseURL, log.New("module", "db"))
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return err
	}

	if rosterPath != "" {
		return importRoster(ctx, store, rosterPath, log.New("module", "roster"))
	}

	clock, err := utils.NewClock(cfg.Timezone, cfg.CutoffHour)
	if err != nil {
		return err
	}
	adminKinds, err := cfg.AdminKinds()
	if err != nil {
		return err
	}

	tg := telegram.NewClient(cfg.BotToken, log.New("module", "telegram"))

	var sender notify.Sender = tg
	var worker *asynq.Server
	if cfg.QueueNotifications {
		opt, err := queue.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return err
		}
		client := asynq.NewClient(opt)
		defer client.Close()
		sender = queue.NewSender(client, log.New("module", "queue"))
		worker = queue.NewServer(opt, log.New("module", "worker"))
	}

	dispatcher := notify.NewDispatcher(store, sender, clock, log.New("module", "notify"), notify.Config{
		ZoneLabel:    cfg.ZoneLabel,
		AdminKinds:   adminKinds,
		StoreTimeout: cfg.StoreTimeout,
	})
	sweeper := compliance.NewSweeper(store, clock, dispatcher, log.New("module", "compliance"), cfg.StoreTimeout)

	if sweepOnce {
		report := sweeper.CheckAndMarkOverdue(ctx)
		_ = json.NewEncoder(os.Stdout).Encode(report)
		return report.Err
	}

	if worker != nil {
		if err := worker.Start(queue.NewServeMux(queue.NewHandler(tg, log.New("module", "worker")))); err != nil {
			return fmt.Errorf("run: failed to start worker: %w", err)
		}
		defer worker.Shutdown()
	}

	rdb, err := utils.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return err
	}
	defer rdb.Close()

	engine := attendance.NewEngine(store, clock, log.New("module", "attendance"),
		attendance.WithStoreTimeout(cfg.StoreTimeout),
		attendance.WithNotifier(dispatcher),
	)
	wizard := registration.NewWizard(utils.NewRegistrationStore(rdb, cfg.RegistrationTTL), store, cfg.RegistrationTTL, log.New("module", "registration"))
	bot := telegram.NewBot(tg, engine, wizard, clock.Location(), cfg.ZoneLabel, log.New("module", "bot"))

	listener, webhookURL, err := listen(ctx, cfg, log)
	if err != nil {
		return err
	}

	handlers := api.NewHandlers(bot, sweeper, store, tg, clock, api.Config{
		WebhookSecret: cfg.WebhookSecret,
		WebhookURL:    webhookURL,
		CronSecret:    cfg.CronSecret,
		APIToken:      cfg.APIToken,
	}, log.New("module", "api"))

	sched := scheduler.New(sweeper, clock.Location(), log.New("module", "scheduler"))
	if err := sched.Schedule(cfg.SweepSchedule); err != nil {
		return err
	}
	sched.Start()

	server := &http.Server{
		Handler:           SetupRouter(handlers, log.New("module", "http")),
		ReadHeaderTimeout: 10 * time.Second,
	}
	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server running", "addr", listener.Addr().String(), "webhook", webhookURL)
		serveErr <- server.Serve(listener)
	}()

	if cfg.NgrokTunnel {
		if err := tg.SetWebhook(ctx, webhookURL+api.WebhookPath, cfg.WebhookSecret); err != nil {
			log.Error("Failed to register webhook on tunnel", "err", err)
		}
	}

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("run: server failed: %w", err)
		}
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	sched.Stop(shutdownCtx)
	return server.Shutdown(shutdownCtx)
}

// listen opens the public listener: an ngrok tunnel in development, a plain
// TCP port otherwise.
func listen(ctx context.Context, cfg *config.Config, log log15.Logger) (net.Listener, string, error) {
	if cfg.NgrokTunnel {
		tun, err := ngrok.Listen(ctx, ngrokconfig.HTTPEndpoint(), ngrok.WithAuthtokenFromEnv())
		if err != nil {
			return nil, "", fmt.Errorf("listen: failed to open ngrok tunnel: %w", err)
		}
		log.Info("Tunnel created", "url", tun.URL())
		return tun, tun.URL(), nil
	}

	l, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return nil, "", fmt.Errorf("listen: %w", err)
	}
	return l, cfg.WebhookURL, nil
}
