package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/api"
	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/delivery"
	"github.com/ignite/campaign-dispatch/internal/dispatch"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/pkg/distlock"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
	"github.com/ignite/campaign-dispatch/internal/service/campaign"
	"github.com/ignite/campaign-dispatch/internal/stats"
	"github.com/ignite/campaign-dispatch/internal/tracking"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	cfg, err := config.LoadFromEnv(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Database.URL == "" {
		log.Fatal("database.url (or DATABASE_URL) is required")
	}

	store, err := postgres.Open(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer store.Close()
	log.Println("Connected to database")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Queues.Region))
	if err != nil {
		log.Fatalf("Failed to load AWS config: %v", err)
	}
	sqsClient := sqs.NewFromConfig(awsCfg)

	signer := dispatch.NewBatchSigner(cfg.Dispatch.BatchSecret)
	codec := tracking.NewCodec(cfg.Tracking.BaseURL, cfg.Tracking.SigningKey)
	builder := dispatch.NewContentBuilder(codec)
	aggr := stats.NewAggregator(store)

	var rdb *redis.Client
	var limiter *dispatch.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = dispatch.NewRateLimiter(rdb, sendLimits(cfg.SendLimits))
	}

	primary := delivery.NewSparkPostTransport(cfg.SparkPost.BaseURL, cfg.SparkPost.APIKey, cfg.SparkPost.Timeout())
	var fallback delivery.Transport
	if cfg.SES.Enabled {
		sesCfg, err := awsconfig.LoadDefaultConfig(ctx,
			awsconfig.WithRegion(cfg.SES.Region),
			awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
				cfg.SES.AccessKey, cfg.SES.SecretKey, "")),
		)
		if err != nil {
			log.Fatalf("Failed to load SES config: %v", err)
		}
		fallback = delivery.NewSESTransport(sesv2.NewFromConfig(sesCfg))
		log.Println("SES fallback transport enabled")
	}
	provider := delivery.NewProvider(primary, fallback)

	dispatcher := dispatch.NewDispatcher(store, provider, builder, aggr, signer, limiter, domain.TransportSparkPost)
	retrier := dispatch.NewRetryCoordinator(store, provider, builder, aggr, limiter, domain.TransportSparkPost, cfg.Dispatch.RetryDelay())
	planner := dispatch.NewPlanner(sqsClient, cfg.Queues.BatchQueueURL, signer, cfg.Dispatch.BatchSize)
	recorder := tracking.NewRecorder(store, aggr)

	audience := postgres.NewAudienceRepo(store.DB())
	locks := func(key string) distlock.DistLock {
		return distlock.NewLock(rdb, store.DB(), key, 10*time.Minute)
	}
	campaigns := campaign.NewService(store, audience, planner, locks)

	handlers := api.NewHandlers(campaigns, dispatcher, retrier, recorder, aggr)
	server := api.NewServer(cfg.Server.Port, handlers)

	go func() {
		if err := server.Start(); err != nil {
			log.Fatalf("API server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down API server...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func sendLimits(cfg config.SendLimitsConfig) map[domain.TransportType]dispatch.SendLimits {
	return map[domain.TransportType]dispatch.SendLimits{
		domain.TransportSparkPost: {
			PerSecond: cfg.SparkPost.PerSecond,
			PerMinute: cfg.SparkPost.PerMinute,
			PerDay:    cfg.SparkPost.PerDay,
		},
		domain.TransportSES: {
			PerSecond: cfg.SES.PerSecond,
			PerMinute: cfg.SES.PerMinute,
			PerDay:    cfg.SES.PerDay,
		},
	}
}
