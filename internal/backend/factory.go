package backend

import (
	"context"
	"errors"
	"fmt"

	"shakkin/internal/amqp"
	"shakkin/internal/loans/memory"
	applog "shakkin/internal/log"
	"shakkin/internal/storage"
)

// DefaultFactory implements the Factory interface
type DefaultFactory struct {
	logger *applog.Logger
}

// NewFactory creates a new backend factory
func NewFactory(logger *applog.Logger) Factory {
	if logger == nil {
		logger = applog.FromContext(context.Background())
	}
	return &DefaultFactory{
		logger: logger.WithComponent(applog.ComponentBackend),
	}
}

// CreateBackend implements Factory.CreateBackend
func (f *DefaultFactory) CreateBackend(ctx context.Context, config Config) (*BackendResult, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var (
		result *BackendResult
		err    error
	)
	switch config.Type {
	case SQLiteBackend:
		result, err = f.createSQLiteBackend(config)
	case MemoryBackend:
		result, err = f.createMemoryBackend(config)
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}
	if err != nil {
		return nil, err
	}

	result.Publisher = f.connectAMQP(config)
	if result.Publisher != nil {
		storeCleanup := result.Cleanup
		publisher := result.Publisher
		result.Cleanup = func() error {
			var errs []error
			if storeCleanup != nil {
				errs = append(errs, storeCleanup())
			}
			errs = append(errs, publisher.Close())
			return errors.Join(errs...)
		}
	}
	return result, nil
}

func (f *DefaultFactory) createSQLiteBackend(config Config) (*BackendResult, error) {
	repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
	}

	f.logger.Info("Initialized SQLite backend", "db_path", config.SQLiteDBPath)

	return &BackendResult{
		Backend: repo,
		Cleanup: repo.Close,
	}, nil
}

func (f *DefaultFactory) createMemoryBackend(config Config) (*BackendResult, error) {
	dir := config.SeedDirectory
	if dir == "" {
		dir = "data"
	}

	store := memory.NewFromFiles(dir, f.logger)
	n := 0
	if list, err := store.ListLoans(context.Background()); err == nil {
		n = len(list)
	}

	f.logger.Info("Initialized memory backend", "seed_directory", dir, "seeded_loans", n)

	return &BackendResult{
		Backend: store,
		Cleanup: func() error { return nil },
	}, nil
}

// connectAMQP dials the broker when configured. A broker that cannot be
// reached is logged and the backend runs without events.
func (f *DefaultFactory) connectAMQP(config Config) *amqp.Client {
	if config.AMQPURL == "" {
		return nil
	}
	client, err := amqp.NewClient(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
	if err != nil {
		f.logger.Warn("Failed to initialize AMQP client, continuing without events", "error", err)
		return nil
	}
	f.logger.Info("Initialized AMQP client",
		"exchange", config.AMQPExchange,
		"queue", config.AMQPQueue)
	return client
}
