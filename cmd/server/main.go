package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudzz-dev/speakly/internal/server/config"
	"github.com/cloudzz-dev/speakly/internal/server/handlers"
	"github.com/cloudzz-dev/speakly/internal/server/logger"
	"github.com/cloudzz-dev/speakly/internal/server/media"
	"github.com/cloudzz-dev/speakly/internal/server/metrics"
	"github.com/cloudzz-dev/speakly/internal/server/payments"
	"github.com/cloudzz-dev/speakly/internal/server/presence"
	"github.com/cloudzz-dev/speakly/internal/server/ratelimit"
	"github.com/cloudzz-dev/speakly/internal/server/storage"
	"github.com/cloudzz-dev/speakly/internal/server/verify"
	"github.com/cloudzz-dev/speakly/internal/server/ws"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	zl, err := logger.New(cfg.Development())
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer zl.Sync()

	if err := run(cfg, zl); err != nil {
		zl.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg *config.Config, zl *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := storage.Migrate(cfg.DatabaseURL, zl); err != nil {
		return err
	}
	store, err := storage.New(ctx, cfg.DatabaseURL, zl)
	if err != nil {
		return err
	}
	defer store.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return err
	}
	rdb := redis.NewClient(redisOpts)
	defer rdb.Close()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}

	var sender verify.Sender = verify.NewLogSender(zl)
	if cfg.SMSAPIKey != "" {
		sender = verify.NewSMSRuSender(cfg.SMSAPIKey, cfg.SMSURL, zl)
	} else {
		zl.Warn("SMS_API_KEY not set, verification codes are only logged")
	}
	verifier := verify.NewService(rdb, sender, zl)

	uploader, err := media.NewS3Store(ctx, media.Config{
		Bucket:    cfg.S3Bucket,
		Region:    cfg.S3Region,
		Endpoint:  cfg.S3Endpoint,
		PublicURL: cfg.S3PublicURL,
		MaxBytes:  cfg.MaxUploadBytes,
	}, zl)
	if err != nil {
		return err
	}

	if !cfg.PaymentsEnabled() {
		zl.Warn("YooKassa credentials not set, payments are disabled")
	}
	gateway := payments.NewClient(cfg.YooKassaShopID, cfg.YooKassaSecretKey, cfg.YooKassaURL, zl)

	hub := ws.NewHub(zl)
	go hub.Run(ctx)

	connLimiter := ratelimit.New(cfg.MaxConnectionsPerIP, cfg.AuthAttemptsPerMin)
	defer connLimiter.Stop()
	ipLimiter := ratelimit.NewIPLimiter(cfg.RequestsPerMin, cfg.RequestsPerMin/10+1)
	go sweep(ctx, ipLimiter)

	router := handlers.NewRouter(handlers.Deps{
		Store:            store,
		Verifier:         verifier,
		Presence:         presence.NewStore(rdb, "speakly", presence.DefaultTTL),
		Uploader:         uploader,
		Notifier:         hub,
		Gateway:          gateway,
		Metrics:          metrics.New(),
		Log:              zl,
		Hub:              hub,
		ConnLimiter:      connLimiter,
		IPLimiter:        ipLimiter,
		AllowedOrigin:    cfg.AllowedOrigin,
		ExposeDevCode:    cfg.ExposeDevCode,
		MaxUploadBytes:   cfg.MaxUploadBytes,
		PaymentReturnURL: cfg.PaymentReturnURL,
	})

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		zl.Info("server starting",
			zap.String("addr", srv.Addr),
			zap.Int("max_conns_per_ip", connLimiter.MaxConns()),
			zap.Int("auth_per_min", connLimiter.MaxAuth()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	zl.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func sweep(ctx context.Context, l *ratelimit.IPLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Sweep(10 * time.Minute)
		}
	}
}
