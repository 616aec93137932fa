package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/session-seat-reservation/internal/config"
	"github.com/iliyamo/session-seat-reservation/internal/database"
	"github.com/iliyamo/session-seat-reservation/internal/handler"
	"github.com/iliyamo/session-seat-reservation/internal/logging"
	"github.com/iliyamo/session-seat-reservation/internal/middleware"
	"github.com/iliyamo/session-seat-reservation/internal/profilesync"
	"github.com/iliyamo/session-seat-reservation/internal/queue"
	"github.com/iliyamo/session-seat-reservation/internal/repository"
	"github.com/iliyamo/session-seat-reservation/internal/reservation"
	"github.com/iliyamo/session-seat-reservation/internal/router"
	"github.com/iliyamo/session-seat-reservation/internal/store"
	"github.com/iliyamo/session-seat-reservation/internal/trigger"
)

func main() {
	config.LoadEnvFile()
	cfg := config.Load()
	if err := logging.SetLevel(cfg.LogLevel); err != nil {
		logging.New("server").Fatal(err)
	}
	lg := logging.New("server")

	procCfg, err := config.LoadProcessorConfig()
	if err != nil {
		lg.Fatal(err)
	}
	syncCfg, err := config.LoadProfileSyncConfig()
	if err != nil {
		lg.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DB.User, cfg.DB.Pass, cfg.DB.Host, cfg.DB.Port, cfg.DB.Name)
	if err != nil {
		lg.Fatalf("mysql: %v", err)
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		lg.Fatal(err)
	}

	rdb, err := config.NewRedisClient(ctx, config.LoadRedisConfig())
	if err != nil {
		lg.Fatal(err)
	}
	defer rdb.Close()

	var pub *queue.Publisher
	if cfg.RabbitURL != "" {
		pub = queue.NewPublisher(cfg.RabbitURL)
		defer pub.Close()
	}

	// Triggers: through RabbitMQ when a broker is configured, in-process
	// otherwise.
	triggers := trigger.NewRouter()
	var feed store.ChangeFeed
	if pub != nil {
		feed = queue.NewTriggerPublisher(pub, triggers.Accepts)
	} else {
		lg.Warn("RABBITMQ_URL not set; delivering triggers in-process")
		feed = trigger.NewLocalFeed(triggers)
	}
	st := store.NewRedis(rdb,
		store.WithPrefix(procCfg.KeyPrefix),
		store.WithRetries(procCfg.TxRetries),
		store.WithChangeFeed(feed),
	)

	identities := repository.NewIdentityRepo(db)
	notifier, dispatcher := notifications(syncCfg, pub, identities)
	if dispatcher != nil && pub != nil && syncCfg.Mode == config.ProfileSyncQueue {
		go func() {
			if err := queue.StartProfileSyncConsumer(ctx, cfg.RabbitURL, dispatcher); err != nil && !errors.Is(err, context.Canceled) {
				lg.Errorf("profile-sync consumer: %v", err)
			}
		}()
	}

	dedup := reservation.NewDedupGuard(st, procCfg.DedupTTL)
	processor := reservation.NewProcessor(st, dedup, notifier, procCfg.Cutoff)
	promoter := reservation.NewPromoter(st, dedup, notifier)
	triggers.Handle(reservation.QueuePattern, processor.HandleRequest)
	triggers.Handle(reservation.PromotionPattern, promoter.HandlePromotion)
	if pub != nil {
		go func() {
			if err := queue.StartTriggerConsumer(ctx, cfg.RabbitURL, triggers); err != nil && !errors.Is(err, context.Canceled) {
				lg.Errorf("trigger consumer: %v", err)
			}
		}()
	}

	e := echo.New()
	e.HideBanner = true
	e.Logger = logging.New("echo")
	sessions := repository.NewSessionRepo(db)
	deps := router.Deps{
		JWTSecret: cfg.JWTSecret,
		Health: handler.Health(map[string]handler.Pinger{
			"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
			"mysql": db.PingContext,
		}),
		Sessions:  &handler.SessionHandler{Sessions: sessions, Store: st},
		Queue:     &handler.QueueHandler{Store: st},
		RateLimit: middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:     middleware.NewRedisCache(config.LoadCacheConfig(), rdb),
	}
	router.RegisterRoutes(e, deps)
	router.RegisterAttendee(e, deps)
	router.RegisterAdmin(e, deps)

	addr := ":" + cfg.Port
	go func() {
		lg.Infof("listening on %s (env=%s)", addr, cfg.Env)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdown); err != nil {
		lg.Errorf("shutdown: %v", err)
	}
	if lf, ok := feed.(*trigger.LocalFeed); ok {
		lf.Wait()
	}
}

// notifications picks the notifier handed to the reservation core and, when
// the profile service is enabled, the dispatcher that calls it.
func notifications(cfg config.ProfileSyncConfig, pub *queue.Publisher, identities *repository.IdentityRepo) (reservation.Notifier, *profilesync.Dispatcher) {
	if cfg.Mode == config.ProfileSyncOff {
		return reservation.Discard, nil
	}
	cred := profilesync.NewCredential(cfg.ClientEmail, cfg.PrivateKey, cfg.Scope, cfg.Audience)
	dispatcher := profilesync.NewDispatcher(identities, profilesync.NewClient(cfg.URL, cred, cfg.Timeout))
	if cfg.Mode == config.ProfileSyncQueue && pub != nil {
		return queue.NewNotificationPublisher(pub), dispatcher
	}
	return dispatcher, dispatcher
}
