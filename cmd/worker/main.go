package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/redis/go-redis/v9"

	"github.com/ignite/campaign-dispatch/internal/config"
	"github.com/ignite/campaign-dispatch/internal/delivery"
	"github.com/ignite/campaign-dispatch/internal/dispatch"
	"github.com/ignite/campaign-dispatch/internal/domain"
	"github.com/ignite/campaign-dispatch/internal/repository/postgres"
	"github.com/ignite/campaign-dispatch/internal/stats"
	"github.com/ignite/campaign-dispatch/internal/tracking"
)

// The worker consumes both queues: batch jobs from the dispatch queue and
// engagement events from the events queue.
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
	if cfg.Queues.BatchQueueURL == "" || cfg.Queues.EventsQueueURL == "" {
		log.Fatal("queues.batch_queue_url and queues.events_queue_url are required")
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

	var limiter *dispatch.RateLimiter
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		limiter = dispatch.NewRateLimiter(rdb, map[domain.TransportType]dispatch.SendLimits{
			domain.TransportSparkPost: {
				PerSecond: cfg.SendLimits.SparkPost.PerSecond,
				PerMinute: cfg.SendLimits.SparkPost.PerMinute,
				PerDay:    cfg.SendLimits.SparkPost.PerDay,
			},
			domain.TransportSES: {
				PerSecond: cfg.SendLimits.SES.PerSecond,
				PerMinute: cfg.SendLimits.SES.PerMinute,
				PerDay:    cfg.SendLimits.SES.PerDay,
			},
		})
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
	}
	provider := delivery.NewProvider(primary, fallback)

	dispatcher := dispatch.NewDispatcher(store, provider, builder, aggr, signer, limiter, domain.TransportSparkPost)
	batchConsumer := dispatch.NewConsumer(sqsClient, cfg.Queues.BatchQueueURL, dispatcher)

	recorder := tracking.NewRecorder(store, aggr)
	eventConsumer := tracking.NewConsumer(sqsClient, cfg.Queues.EventsQueueURL, recorder)

	batchConsumer.Start(ctx)
	eventConsumer.Start(ctx)
	log.Println("worker consuming batch and event queues")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down worker...")

	batchConsumer.Stop()
	eventConsumer.Stop()
	cancel()
}
