package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"flashsale/internal/config"
	"flashsale/internal/consumer"
	"flashsale/internal/database"
	"flashsale/internal/handler"
	"flashsale/internal/middleware"
	"flashsale/internal/monitor"
	"flashsale/internal/redis"
	"flashsale/internal/repository"
	"flashsale/internal/service/campaign"
	"flashsale/internal/service/lifecycle"
	"flashsale/internal/service/reservation"
	"flashsale/pkg/breaker"
	"flashsale/pkg/limiter"
	"flashsale/pkg/lock"
	"flashsale/pkg/log"
	"flashsale/pkg/queue"
	"flashsale/pkg/snowflake"
)

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(log.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		Filename:   cfg.Log.Filename,
		MaxSize:    cfg.Log.MaxSize,
		MaxAge:     cfg.Log.MaxAge,
		MaxBackups: cfg.Log.MaxBackups,
		Compress:   cfg.Log.Compress,
	})

	db, err := database.Open(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to open database")
	}
	defer database.Close(db)

	if err := database.AutoMigrate(db); err != nil {
		log.WithError(err).Fatal("Failed to run migrations")
	}

	client, err := redis.New(cfg)
	if err != nil {
		log.WithError(err).Fatal("Failed to connect redis")
	}
	defer client.Close()

	metrics := monitor.NewMetricsCollector()

	tracer, err := monitor.NewTracer(cfg.Tracing)
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize tracer")
	}

	bus := queue.NewMemoryBus(&queue.MemoryBusConfig{
		BufferSize:     cfg.Events.BufferSize,
		PublishTimeout: cfg.Events.PublishTimeout,
	})
	defer bus.Close()

	breakers := breaker.NewManager(breaker.Config{
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		OnStateChange: func(name string, from, to breaker.State) {
			log.WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Circuit breaker state changed")
			metrics.SetBreakerState(name, int(to))
		},
	})

	idGen, err := snowflake.NewIDGenerator(cfg.FlashSale.NodeID)
	if err != nil {
		log.WithError(err).Fatal("Failed to create ID generator")
	}

	campaignRepo := repository.NewCampaignRepository(db)
	reservationRepo := repository.NewReservationRepository(db)

	idFilter := campaign.NewIDFilter(100000, 0.001)
	if err := idFilter.Warm(context.Background(), campaignRepo); err != nil {
		log.WithError(err).Warn("Failed to warm campaign id filter")
	}

	campaignService := campaign.NewService(
		campaignRepo,
		reservationRepo,
		campaign.NewTracker(client),
		idFilter,
		cfg.FlashSale.EndingSoonWindow,
	)

	engine, err := reservation.NewEngine(
		campaignRepo,
		reservationRepo,
		client,
		bus,
		breakers,
		idGen,
		cfg.FlashSale,
		reservation.WithKnownCampaigns(idFilter),
	)
	if err != nil {
		log.WithError(err).Fatal("Failed to create reservation engine")
	}

	sweepLock := lock.NewRedisLock(
		client,
		"flashsale:sweep:leader",
		fmt.Sprintf("node-%d", cfg.FlashSale.NodeID),
		cfg.FlashSale.SweepLockTTL,
	)
	sweeper := lifecycle.NewSweeper(
		campaignRepo,
		bus,
		cfg.FlashSale.SweepInterval,
		cfg.FlashSale.EndingSoonWindow,
		lifecycle.WithLeaderLock(sweepLock),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sweeper.Start(ctx)
	defer sweeper.Stop()

	if err := consumer.NewNotificationConsumer(bus).Start(); err != nil {
		log.WithError(err).Fatal("Failed to start notification consumer")
	}
	if err := consumer.NewAnalyticsConsumer(bus, metrics).Start(); err != nil {
		log.WithError(err).Fatal("Failed to start analytics consumer")
	}

	go metrics.StartSystemMetricsCollection(ctx)

	router := setupRouter(cfg, db, client, bus, engine, campaignService, metrics, tracer)

	server := &http.Server{
		Addr:           fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.WithFields(map[string]interface{}{
			"addr": server.Addr,
			"mode": cfg.Server.Mode,
		}).Info("Starting HTTP server")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("Failed to start server")
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("Server forced to shutdown")
	}
	if err := tracer.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("Failed to flush tracer")
	}

	log.Info("Server exited")
}

func setupRouter(
	cfg *config.Config,
	db *gorm.DB,
	client *goredis.Client,
	bus queue.EventBus,
	engine *reservation.Engine,
	campaignService *campaign.Service,
	metrics *monitor.MetricsCollector,
	tracer *monitor.Tracer,
) *gin.Engine {
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	router := gin.New()
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.Metrics(metrics))
	router.Use(middleware.Timeout(cfg.Server.WriteTimeout))

	healthHandler := handler.NewHealthHandler(db, client, bus)
	router.GET("/health", healthHandler.Ready)
	router.GET("/ping", healthHandler.Live)

	if cfg.Metrics.Enabled {
		router.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	multiLimiter := limiter.NewMultiDimensionLimiter(client)

	reservationHandler := handler.NewReservationHandler(engine, metrics, tracer)
	campaignHandler := handler.NewCampaignHandler(campaignService)

	v1 := router.Group("/api/v1")
	v1.Use(middleware.Auth(cfg.Auth))
	v1.Use(middleware.RateLimit(cfg.RateLimit, multiLimiter))
	{
		v1.POST("/reservations", middleware.CampaignRateLimit(multiLimiter), reservationHandler.Reserve)
		v1.DELETE("/reservations/:id", reservationHandler.Release)

		campaigns := v1.Group("/campaigns")
		{
			campaigns.POST("", campaignHandler.Create)
			campaigns.GET("", campaignHandler.ListActive)
			campaigns.GET("/upcoming", campaignHandler.ListUpcoming)
			campaigns.GET("/ending-soon", campaignHandler.ListEndingSoon)
			campaigns.GET("/:id", campaignHandler.Get)
			campaigns.PUT("/:id", campaignHandler.Update)
			campaigns.DELETE("/:id", campaignHandler.Delete)
			campaigns.POST("/:id/enable", campaignHandler.Enable)
			campaigns.POST("/:id/disable", campaignHandler.Disable)
			campaigns.GET("/:id/stats", campaignHandler.Stats)
			campaigns.POST("/:id/view", campaignHandler.RecordView)
			campaigns.POST("/:id/click", campaignHandler.RecordClick)
		}
	}

	return router
}
