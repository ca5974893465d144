package backend

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gigtracker/internal/amqp"
	"gigtracker/internal/ports"
	"gigtracker/internal/storage"
	"gigtracker/internal/storage/memory"
)

// Publisher is an event publisher holding a broker connection.
type Publisher interface {
	ports.EventPublisher
	Close() error
}

// Factory creates backends based on configuration
type Factory struct {
	logger   *slog.Logger
	dialAMQP func(url, exchange, queue string) (Publisher, error)
}

// NewFactory creates a new backend factory
func NewFactory(logger *slog.Logger) *Factory {
	if logger == nil {
		logger = slog.Default()
	}
	return &Factory{
		logger: logger,
		dialAMQP: func(url, exchange, queue string) (Publisher, error) {
			return amqp.NewClient(url, exchange, queue)
		},
	}
}

// Create builds the store for config.Type and, when configured, an AMQP
// publisher. A broker that cannot be reached is logged and skipped.
func (f *Factory) Create(ctx context.Context, config Config) (*Result, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	var closers []func() error
	result := &Result{}

	switch config.Type {
	case SQLiteBackend:
		repo, err := storage.NewSQLiteRepository(config.SQLiteDBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize SQLite repository: %w", err)
		}
		result.Store = repo
		closers = append(closers, repo.Close)
		f.logger.InfoContext(ctx, "Initialized SQLite backend", "db_path", config.SQLiteDBPath)
	case MemoryBackend:
		result.Store = memory.New()
		f.logger.InfoContext(ctx, "Initialized memory backend")
	default:
		return nil, fmt.Errorf("unsupported backend type: %s", config.Type)
	}

	if config.AMQPURL != "" {
		pub, err := f.dialAMQP(config.AMQPURL, config.AMQPExchange, config.AMQPQueue)
		if err != nil {
			f.logger.WarnContext(ctx, "Failed to initialize AMQP client, continuing without events", "error", err)
		} else {
			result.Publisher = pub
			// close the publisher before the store
			closers = append([]func() error{pub.Close}, closers...)
			f.logger.InfoContext(ctx, "Initialized AMQP client",
				"exchange", config.AMQPExchange,
				"queue", config.AMQPQueue)
		}
	}

	result.Cleanup = func() error {
		var errs []error
		for _, c := range closers {
			if err := c(); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
	return result, nil
}
