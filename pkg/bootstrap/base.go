package bootstrap

import (
	"context"
	"fmt"

	"trustcore/internal/broker"
	"trustcore/internal/config"
	"trustcore/internal/logger"
)

// Base holds what every entry point of the service needs: config, logger and the optional broker.
type Base struct {
	Config   *config.Config
	Logger   logger.Logger
	Producer broker.Producer
	Consumer broker.Consumer
}

func NewBase(cfg *config.Config, log logger.Logger) *Base {
	return &Base{
		Config: cfg,
		Logger: log,
	}
}

// BrokerEnabled reports whether a broker type is configured.
func (b *Base) BrokerEnabled() bool {
	return b.Config.Broker.Type != ""
}

// InitBroker creates the producer and, when withConsumer is set, the consumer.
// It is a no-op when no broker is configured.
func (b *Base) InitBroker(serviceName string, withConsumer bool) error {
	if !b.BrokerEnabled() {
		b.Logger.Info("No broker configured, event publishing and consumption disabled")
		return nil
	}

	producer, err := broker.NewProducer(b.Config.Broker, b.Logger)
	if err != nil {
		return fmt.Errorf("failed to create producer: %w", err)
	}
	b.Producer = producer

	if !withConsumer {
		return nil
	}

	consumer, err := broker.NewConsumer(b.Config.Broker, b.Logger)
	if err != nil {
		producer.Close()
		b.Producer = nil
		return fmt.Errorf("failed to create consumer: %w", err)
	}
	consumer.SetServiceName(serviceName)
	b.Consumer = consumer

	return nil
}

func (b *Base) ShutdownBroker() []error {
	var errs []error

	if b.Consumer != nil {
		if err := b.Consumer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("consumer close error: %w", err))
		}
	}

	if b.Producer != nil {
		if err := b.Producer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("producer close error: %w", err))
		}
	}

	return errs
}

func (b *Base) Shutdown(ctx context.Context, additionalShutdown func(ctx context.Context) []error) error {
	b.Logger.Info("Shutting down trust service...")

	var errs []error
	if additionalShutdown != nil {
		errs = append(errs, additionalShutdown(ctx)...)
	}
	errs = append(errs, b.ShutdownBroker()...)

	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}

	b.Logger.Info("Trust service exited successfully")
	return nil
}
