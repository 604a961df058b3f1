package app

import (
	"context"
	"fmt"
	"sync"

	"github.com/acme/broadcast-dispatch/internal/config"
	"github.com/acme/broadcast-dispatch/internal/infra/db"
	"github.com/acme/broadcast-dispatch/internal/infra/redis"
	"github.com/acme/broadcast-dispatch/internal/instancelimit"
	"github.com/acme/broadcast-dispatch/internal/messaging"
	messagingMock "github.com/acme/broadcast-dispatch/internal/messaging/mock"
	"github.com/acme/broadcast-dispatch/internal/queue"
	"github.com/acme/broadcast-dispatch/internal/repository"
	pgrepo "github.com/acme/broadcast-dispatch/internal/repository/postgres"
	scyllarepo "github.com/acme/broadcast-dispatch/internal/repository/scylla"
	"github.com/acme/broadcast-dispatch/internal/schedule"
	campaignsvc "github.com/acme/broadcast-dispatch/internal/service/campaign"
	"github.com/acme/broadcast-dispatch/pkg/logger"
)

// Container wires together shared infrastructure dependencies.
type Container struct {
	Config *config.Config
	Logger *logger.Logger
	Clock  schedule.Clock

	Postgres *db.Postgres
	Scylla   *db.Scylla
	Redis    *redis.Client
	Kafka    *queue.Kafka

	// lazily initialised components
	components struct {
		once         sync.Once
		repositories *repositories
		services     *services
		publishers   *publishers
		providers    *providers
		limiters     *limiters
	}
}

type repositories struct {
	Campaigns   repository.CampaignRepository
	Windows     repository.TimeWindowRepository
	Instances   repository.InstanceRepository
	Items       repository.QueueItemRepository
	Stats       repository.StatisticsRepository
	DeliveryLog repository.DeliveryLogStore
}

type services struct {
	Campaign *campaignsvc.Service
}

type publishers struct {
	Dispatch *queue.MessageDispatcher
	Status   *queue.StatusPublisher
	Retry    *queue.RetryScheduler
}

type providers struct {
	Messaging messaging.Provider
}

type limiters struct {
	Instance *instancelimit.Limiter
}

// Build constructs a container for the given configuration path.
func Build(ctx context.Context, configPath string) (*Container, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	lg, err := logger.New(cfg.App.Env)
	if err != nil {
		return nil, err
	}

	pg, err := db.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("bootstrap postgres: %w", err)
	}

	scylla, err := db.NewScylla(cfg.Scylla)
	if err != nil {
		return nil, fmt.Errorf("bootstrap scylla: %w", err)
	}

	redisClient, err := redis.NewClient(cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("bootstrap redis: %w", err)
	}

	kafka, err := queue.NewKafka(cfg.Kafka)
	if err != nil {
		return nil, fmt.Errorf("bootstrap kafka: %w", err)
	}

	container := &Container{
		Config:   cfg,
		Logger:   lg,
		Clock:    schedule.SystemClock(),
		Postgres: pg,
		Scylla:   scylla,
		Redis:    redisClient,
		Kafka:    kafka,
	}

	return container, nil
}

func (c *Container) initComponents() {
	c.components.once.Do(func() {
		repos := &repositories{
			Campaigns:   pgrepo.NewCampaignRepository(c.Postgres.DB()),
			Windows:     pgrepo.NewTimeWindowRepository(c.Postgres.DB()),
			Instances:   pgrepo.NewInstanceRepository(c.Postgres.DB()),
			Items:       pgrepo.NewQueueItemRepository(c.Postgres.DB()),
			Stats:       pgrepo.NewStatisticsRepository(c.Postgres.DB()),
			DeliveryLog: scyllarepo.NewDeliveryLogStore(c.Scylla.Session()),
		}

		pubs := &publishers{
			Dispatch: queue.NewMessageDispatcher(c.Kafka, c.Config.Kafka.DispatchTopic),
			Status:   queue.NewStatusPublisher(c.Kafka, c.Config.Kafka.StatusTopic),
			Retry:    queue.NewRetryScheduler(c.Kafka, c.Config.Kafka.RetryTopics),
		}

		svcs := &services{
			Campaign: campaignsvc.NewService(
				repos.Campaigns,
				repos.Windows,
				repos.Instances,
				repos.Items,
				repos.Stats,
				repos.DeliveryLog,
				c.Clock,
				c.Config.Schedule.BatchSize,
				c.Config.Schedule.BatchPause,
			),
		}

		providers := &providers{
			Messaging: messagingMock.NewProvider(c.Config.Messaging),
		}

		limiters := &limiters{
			Instance: instancelimit.NewLimiter(c.Redis.Inner(), c.Config.Throttle.DefaultPerInstance, c.Config.Dispatcher.LockTTL),
		}

		c.components.repositories = repos
		c.components.publishers = pubs
		c.components.services = svcs
		c.components.providers = providers
		c.components.limiters = limiters
	})
}

// Repositories exposes initialized repositories.
func (c *Container) Repositories() *repositories {
	c.initComponents()
	return c.components.repositories
}

// Services exposes initialized services.
func (c *Container) Services() *services {
	c.initComponents()
	return c.components.services
}

// Publishers exposes Kafka publishers.
func (c *Container) Publishers() *publishers {
	c.initComponents()
	return c.components.publishers
}

// Providers exposes external providers.
func (c *Container) Providers() *providers {
	c.initComponents()
	return c.components.providers
}

// Limiters exposes limiter utilities.
func (c *Container) Limiters() *limiters {
	c.initComponents()
	return c.components.limiters
}

// Close releases all held resources.
func (c *Container) Close(ctx context.Context) error {
	var errs []error
	if p := c.components.publishers; p != nil {
		if p.Dispatch != nil {
			if err := p.Dispatch.Close(); err != nil {
				errs = append(errs, fmt.Errorf("dispatch publisher close: %w", err))
			}
		}
		if p.Status != nil {
			if err := p.Status.Close(); err != nil {
				errs = append(errs, fmt.Errorf("status publisher close: %w", err))
			}
		}
		if p.Retry != nil {
			if err := p.Retry.Close(); err != nil {
				errs = append(errs, fmt.Errorf("retry scheduler close: %w", err))
			}
		}
	}
	if c.Kafka != nil {
		if err := c.Kafka.Close(); err != nil {
			errs = append(errs, fmt.Errorf("kafka close: %w", err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("redis close: %w", err))
		}
	}
	if c.Scylla != nil {
		if err := c.Scylla.Close(); err != nil {
			errs = append(errs, fmt.Errorf("scylla close: %w", err))
		}
	}
	if c.Postgres != nil {
		if err := c.Postgres.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("postgres close: %w", err))
		}
	}
	if c.Logger != nil {
		c.Logger.Sync()
	}
	if len(errs) > 0 {
		return fmt.Errorf("close errors: %v", errs)
	}
	return nil
}

// EnsureTopics ensures required Kafka topics exist.
func (c *Container) EnsureTopics(ctx context.Context) error {
	c.initComponents()

	topics := []string{c.Config.Kafka.DispatchTopic, c.Config.Kafka.StatusTopic}
	if err := c.Kafka.EnsureTopics(ctx, topics, 48, 1); err != nil {
		return err
	}

	if len(c.Config.Kafka.RetryTopics) > 0 {
		if err := c.Kafka.EnsureTopics(ctx, c.Config.Kafka.RetryTopics, 48, 1); err != nil {
			return err
		}
	}

	if c.Config.Kafka.DeadLetterTopic != "" {
		if err := c.Kafka.EnsureTopics(ctx, []string{c.Config.Kafka.DeadLetterTopic}, 12, 1); err != nil {
			return err
		}
	}

	return nil
}
