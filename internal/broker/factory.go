package broker

import (
	"fmt"

	"trustcore/internal/config"
	"trustcore/internal/constants"
	"trustcore/internal/logger"
)

func NewProducer(cfg config.BrokerConfig, log logger.Logger) (Producer, error) {
	if cfg.Type != constants.BrokerTypeKafka {
		return nil, unsupported(cfg.Type)
	}
	return NewKafkaProducer(cfg.Kafka, log), nil
}

func NewConsumer(cfg config.BrokerConfig, log logger.Logger) (Consumer, error) {
	if cfg.Type != constants.BrokerTypeKafka {
		return nil, unsupported(cfg.Type)
	}
	return NewKafkaConsumer(cfg.Kafka, log), nil
}

func unsupported(brokerType string) error {
	return fmt.Errorf("unknown broker type: %q (supported: %s)", brokerType, constants.BrokerTypeKafka)
}
