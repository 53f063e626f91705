package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"modelrepo/src/adapters/kafka/consumers"
	"modelrepo/src/helper/env"
	"modelrepo/src/infra/kafka"
	"modelrepo/src/infra/postgres"
	"modelrepo/src/infra/redis"
	"modelrepo/src/repositories"
	"modelrepo/src/services/events"
	"modelrepo/src/services/resolver"
	"modelrepo/src/services/validation"

	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting Entities Consumer with Uber Fx...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newReadWriteClient,
			newRedisClient,
			newKafkaClient,
			newValidator,
			newMutationEventPublisher,
			newEntityRepositories,
			newRegistry,
			newObjectResolver,
			newEntityMutationsConsumer,
		),

		// Invocations
		fx.Invoke(attachResolver, manageClients, startConsumer),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start consumer application: %v", err)
	}

	// Wait for interrupt signal to gracefully shutdown
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down entities consumer...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
	}

	log.Println("Entities consumer shutdown complete")
}

func newLogger() *slog.Logger {
	logLevel := env.GetString("LOG_LEVEL", "info")
	level := slog.LevelInfo

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func newReadWriteClient() (*postgres.ReadWriteClient, error) {
	base := postgres.Config{
		Database:        env.MustGetString("DB_NAME"),
		User:            env.MustGetString("DB_USER"),
		Password:        env.MustGetString("DB_PASSWORD"),
		MaxConnections:  env.GetInt("DB_MAX_POOL_CONNECTIONS", 25),
		ApplicationName: "entities-consumer",
	}

	read := base
	read.Host = env.MustGetString("DB_READ_HOST")
	read.Port = env.GetString("DB_READ_PORT", "5432")

	write := base
	write.Host = env.MustGetString("DB_WRITE_HOST")
	write.Port = env.GetString("DB_WRITE_PORT", "5432")

	return postgres.NewReadWriteClient(read, write)
}

func newRedisClient() *redis.RedisClient {
	redisHosts := env.MustGetString("REDIS_HOSTS")
	redisPoolSize := env.GetInt("REDIS_POOL_SIZE", 50)
	redisDefaultTTL := env.GetSeconds("REDIS_DEFAULT_TTL_SECONDS", 120)

	return redis.NewRedisClient(redisHosts, redisPoolSize, redisDefaultTTL).
		WithPrefix(env.GetString("REDIS_KEY_PREFIX", ""))
}

func newKafkaClient() (*kafka.KafkaClient, error) {
	brokers := env.MustGetString("KAFKA_BROKERS")
	groupID := env.MustGetString("KAFKA_ENTITY_MUTATIONS_CONSUMER_GROUP_ID")
	batchSize := env.MustGetInt("KAFKA_BATCH_SIZE")

	return kafka.NewKafkaClient(brokers, groupID, batchSize)
}

// newValidator loads per-type rules from ENTITY_VALIDATION_RULES, a JSON
// object such as {"product": {"name": "required,min=3"}}.
func newValidator() (*validation.Validator, error) {
	validator := validation.NewValidator()

	raw := env.GetString("ENTITY_VALIDATION_RULES")
	if raw == "" {
		return validator, nil
	}

	var rules map[string]validation.Rules
	if err := json.Unmarshal([]byte(raw), &rules); err != nil {
		return nil, fmt.Errorf("failed to parse ENTITY_VALIDATION_RULES: %w", err)
	}
	for entityType, typeRules := range rules {
		validator.Register(entityType, typeRules)
	}
	return validator, nil
}

func newMutationEventPublisher(
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
) *events.MutationEventPublisher {
	topic := env.MustGetString("KAFKA_ENTITY_EVENTS_TOPIC")
	return events.NewMutationEventPublisher(logger, kafkaClient, topic)
}

type entityRepositoriesResult struct {
	fx.Out

	Repositories []repositories.Repository              `group:"repositories,flatten"`
	Finders      []*repositories.CachedEntityRepository `group:"finders,flatten"`
}

// newEntityRepositories builds one repository per type listed in ENTITY_TYPES,
// each with a cache in front of its reads unless ENTITY_CACHE_ENABLED=false.
func newEntityRepositories(
	logger *slog.Logger,
	readWriteClient *postgres.ReadWriteClient,
	redisClient *redis.RedisClient,
	validator *validation.Validator,
	publisher *events.MutationEventPublisher,
) entityRepositoriesResult {
	var result entityRepositoriesResult
	cacheEnabled := env.GetBool("ENTITY_CACHE_ENABLED", true)

	for _, entityType := range env.GetStringSlice("ENTITY_TYPES") {
		repository := repositories.NewEntityRepository(
			readWriteClient.GetWritePool(),
			readWriteClient.GetReadPool(),
			entityType,
			repositories.WithLogger(logger),
			repositories.WithInterceptors(
				repositories.NewLoggingInterceptor(logger),
				validation.NewValidationInterceptor(validator, entityType),
				events.NewMutationEventInterceptor(publisher, entityType),
			),
		)
		logger.Info("Entity repository registered",
			"entity_type", entityType,
			"domain_methods", repository.DomainMethods(),
			"cache_enabled", cacheEnabled)

		result.Repositories = append(result.Repositories, repository)
		if !cacheEnabled {
			continue
		}

		cached := repositories.NewCachedEntityRepository(repository, redisClient, entityType, logger)
		repository.Use(repositories.NewCacheInvalidationInterceptor(cached, logger))
		result.Finders = append(result.Finders, cached)
	}

	return result
}

type registryParams struct {
	fx.In

	Repositories []repositories.Repository              `group:"repositories"`
	Finders      []*repositories.CachedEntityRepository `group:"finders"`
}

func newRegistry(params registryParams) *repositories.Registry {
	registry := repositories.NewRegistry(params.Repositories...)
	for _, finder := range params.Finders {
		registry.RegisterFinder(finder.EntityType(), finder)
	}
	return registry
}

func newObjectResolver(registry *repositories.Registry, logger *slog.Logger) *resolver.ObjectResolver {
	return resolver.NewObjectResolver(registry, logger)
}

func attachResolver(registry *repositories.Registry, objectResolver *resolver.ObjectResolver) {
	registry.AttachResolver(objectResolver)
}

func newEntityMutationsConsumer(
	logger *slog.Logger,
	registry *repositories.Registry,
) *consumers.EntityMutationsConsumer {
	return consumers.NewEntityMutationsConsumer(logger, registry)
}

func manageClients(
	lc fx.Lifecycle,
	logger *slog.Logger,
	readWriteClient *postgres.ReadWriteClient,
	redisClient *redis.RedisClient,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := redisClient.HealthCheck(ctx); err != nil {
				return fmt.Errorf("redis health check failed: %w", err)
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			readWriteClient.Close()
			if err := redisClient.Close(); err != nil {
				logger.Error("Failed to close redis client", "error", err)
			}
			return nil
		},
	})
}

func startConsumer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	mutationsConsumer *consumers.EntityMutationsConsumer,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			topic := env.MustGetString("KAFKA_ENTITY_MUTATIONS_CONSUMER_TOPIC")
			logger.Info("Starting entity mutations consumer", "topic", topic)

			// O ctx do OnStart expira ao fim do start; o consumer precisa de um próprio.
			go func() {
				if err := mutationsConsumer.Start(context.Background(), kafkaClient, topic); err != nil {
					logger.Error("Consumer failed", "error", err)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Kafka client...")
			if err := kafkaClient.Close(); err != nil {
				logger.Error("Failed to close Kafka client", "error", err)
				return err
			}
			logger.Info("Kafka client shut down gracefully")
			return nil
		},
	})
}
