package bus

import (
	"strings"

	"github.com/sightlinehq/sightline/internal/config"
	apperrors "github.com/sightlinehq/sightline/internal/pkg/errors"
	"github.com/sightlinehq/sightline/internal/pkg/logger"
)

// New creates an event bus based on the configured type.
func New(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	switch cfg.Type {
	case "memory", "":
		return NewMemoryBus(log), nil
	case "kafka":
		return NewKafkaBus(KafkaConfig{
			Brokers:       splitBrokers(cfg.KafkaBrokers),
			ConsumerGroup: cfg.ConsumerGroup,
		}, log)
	default:
		return nil, apperrors.ValidationError("unknown bus type: " + cfg.Type)
	}
}

func splitBrokers(s string) []string {
	var brokers []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}
