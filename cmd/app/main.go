package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"companion_gateway/internal/cache"
	"companion_gateway/internal/config"
	"companion_gateway/internal/db"
	"companion_gateway/internal/events"
	gatewayhttp "companion_gateway/internal/http"
	"companion_gateway/internal/logger"
	"companion_gateway/internal/service"
	"companion_gateway/internal/sms"

	"github.com/gin-gonic/gin"
	redis "github.com/redis/go-redis/v9"
)

func main() {
	logger.Init(os.Getenv("LOG_SERVICE_NAME"), os.Getenv("LOG_LEVEL"), os.Getenv("LOG_JSON") == "true")
	cfg := config.Load()
	logger.Init(cfg.LogServiceName, cfg.LogLevel, cfg.LogJSON)

	dbPool := db.Connect(cfg.DatabaseURL)
	defer dbPool.Close()

	keys := cache.NewKeys(cfg.DeployEnv)
	cacheClient, err := cache.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, keys)
	if err != nil {
		logger.Fatal("failed to connect cache", "error", err)
	}
	defer cacheClient.Close()

	lockNodes := make([]*redis.Client, 0, len(cfg.RedisLockAddrs))
	for _, addr := range cfg.RedisLockAddrs {
		if addr == cfg.RedisAddr {
			lockNodes = append(lockNodes, cacheClient.Redis())
			continue
		}
		lockNodes = append(lockNodes, redis.NewClient(&redis.Options{
			Addr: addr, Password: cfg.RedisPassword, DB: cfg.RedisDB,
		}))
	}
	redlock := cache.NewRedlock(lockNodes)

	producer := events.NewProducer(cfg.KafkaBrokers, cfg.KafkaProducerClientID,
		cfg.KafkaProducerTopic, cfg.KafkaProducerRoomsTopic)
	defer producer.Close()

	auth, err := service.NewAuthService(dbPool, cacheClient,
		cfg.JWTPrivateKeyPEM, cfg.JWTPublicKeyPEM, cfg.TokenValidDurationDays,
		cfg.SysAccount, cfg.SysDeviceID)
	if err != nil {
		logger.Fatal("failed to init auth service", "error", err)
	}

	vendor := sms.NewClient(cfg.SMSBaseURL, cfg.SMSAppKey, cfg.SMSMasterSecret, cfg.SMSSignID, cfg.SMSTempID)
	identity := service.NewIdentityService(dbPool, cacheClient, vendor, auth,
		cfg.SMPeriodOfValidity, cfg.SMSDailyTokenTotal)

	scheduler := service.NewTimeoutScheduler(cacheClient)
	defer scheduler.Stop()

	rooms := service.NewRoomService(dbPool, cacheClient, redlock, producer, scheduler, service.RoomServiceConfig{
		QueueKickAfter:       time.Duration(cfg.SecsOfBeingKickedOutFromQueue) * time.Second,
		BattleShutoffAfter:   time.Duration(cfg.SecsOfBeingTurnedOffInBattle) * time.Second,
		HostedPrefillRoomIDs: cfg.HostedPrefillRoomIDs,
	})
	results := service.NewResultService(dbPool, producer)

	bootCtx, bootCancel := context.WithTimeout(context.Background(), 30*time.Second)
	if err := service.NewBootstrapService(dbPool).Apply(bootCtx, service.DefaultCatalog()); err != nil {
		bootCancel()
		logger.Fatal("failed to apply catalog", "error", err)
	}
	bootCancel()

	if cfg.DeployEnv == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	gatewayhttp.RegisterRoutes(r, cfg, dbPool, cacheClient, identity, auth, rooms, results)

	srv := &http.Server{
		Addr:    ":" + cfg.AppPort,
		Handler: r,
	}

	go func() {
		logger.Info("server started", "port", cfg.AppPort, "env", cfg.DeployEnv)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("listen failed", "error", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("server forced to shutdown", "error", err)
	}
	logger.Info("server exited")
}
