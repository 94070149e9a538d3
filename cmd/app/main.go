// File: cmd/app/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"jobmatch-payments/internal/config"
	"jobmatch-payments/internal/domain/model"
	"jobmatch-payments/internal/infra/api"
	pg "jobmatch-payments/internal/infra/db/postgres"
	"jobmatch-payments/internal/infra/logging"
	"jobmatch-payments/internal/infra/mail"
	"jobmatch-payments/internal/infra/metrics"
	pay "jobmatch-payments/internal/infra/payment"
	red "jobmatch-payments/internal/infra/redis"
	"jobmatch-payments/internal/infra/sched"
	"jobmatch-payments/internal/infra/web"
	"jobmatch-payments/internal/infra/worker"
	"jobmatch-payments/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (console logs, relaxed cookies)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Info().Msg("[DEV MODE] Enabled")
	}

	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()
	txManager := pg.NewTxManager(pool)

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatalf("redis: %v", err)
	}
	defer redisClient.Close()
	locker := red.NewLocker(redisClient)
	qrCache := red.NewQRCache(redisClient)

	// ---- Repositories ----
	payRepo := pg.NewPaymentRepo(pool)
	companyRepo := pg.NewCompanyRepo(pool)

	// ---- Notification workers ----
	mailer := mail.NewSMTPMailer(cfg.SMTP)
	notifyPool := worker.NewPool(cfg.Workers.Notification)
	notifyPool.Start(ctx)
	defer notifyPool.Stop()

	// ---- Provider clients ----
	notifyURL := strings.TrimRight(cfg.Server.PublicURL, "/") + cfg.Server.WebhookPath
	gateway := pay.NewGateway()
	var wechatVerifier api.WeChatNotificationVerifier

	if wc, err := pay.NewWeChatGateway(cfg.Payment.WeChat, notifyURL); err == nil {
		gateway.Register(model.PaymentMethodWeChat, wc)
		wechatVerifier = wc
		logger.Info().Msg("wechat pay enabled")
	} else {
		logger.Warn().Err(err).Msg("wechat pay disabled")
	}
	if ap, err := pay.NewAlipayGateway(cfg.Payment.Alipay, notifyURL); err == nil {
		gateway.Register(model.PaymentMethodAlipay, ap)
		logger.Info().Msg("alipay enabled")
	} else {
		logger.Warn().Err(err).Msg("alipay disabled")
	}
	if pp, err := pay.NewPayPayGateway(cfg.Payment.PayPay); err == nil {
		gateway.Register(model.PaymentMethodPayPay, pp)
		logger.Info().Str("env", cfg.Payment.PayPay.Environment).Msg("paypay enabled")
	} else {
		logger.Warn().Err(err).Msg("paypay disabled")
	}

	// ---- Use cases ----
	entitlementUC := usecase.NewEntitlementUseCase(companyRepo, logger)
	notifUC := usecase.NewNotificationUseCase(companyRepo, mailer, notifyPool, logger)
	paymentUC := usecase.NewPaymentUseCase(payRepo, entitlementUC, gateway, txManager, locker, qrCache, notifUC, logger)

	// ---- Reconciler ----
	reconciler := sched.NewPaymentReconciler(paymentUC, payRepo, cfg.Scheduler.ReconcileInterval, cfg.Scheduler.StaleAfter)
	go reconciler.Start(ctx)

	// ---- Public payment API ----
	apiSrv := api.NewServer(paymentUC, wechatVerifier, cfg.Server.WebhookPath, logger)
	publicServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiSrv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", publicServer.Addr).Msg("payment api listening")
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("payment api server error")
		}
	}()

	// ---- Admin API ----
	auth := web.NewAuthManager(cfg.Admin.JWTSecret, !cfg.Runtime.Dev, "", cfg.Admin.SessionTTL)
	adminSrv := web.NewServer(paymentUC, auth, cfg.Admin.APIKey, logger)
	adminMux := http.NewServeMux()
	adminSrv.RegisterRoutes(adminMux)
	adminMux.Handle("/metrics", promhttp.Handler())
	adminServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Admin.Port),
		Handler:           adminMux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", adminServer.Addr).Msg("admin api listening")
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error().Err(err).Msg("admin server error")
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	<-sigc
	logger.Info().Msg("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("payment api shutdown error")
	}
	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("admin server shutdown error")
	}
	cancel()
}
