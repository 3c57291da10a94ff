// Package kafka connects the provisioning event stream to Kafka.
package kafka

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/ortelius/pdvd-idp/events/modules/users"
	"github.com/ortelius/pdvd-idp/internal/config"
	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
	"go.uber.org/zap"
)

const probeAttempts = 3

// NewPublisher returns a Kafka-backed publisher, or a no-op publisher when no
// brokers are configured. The first broker is probed before the writer is
// created so a misconfigured stream fails at startup instead of on the first
// provisioning request.
func NewPublisher(ctx context.Context, cfg config.KafkaSection, logger *zap.Logger) (users.Publisher, error) {
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, provisioning events are disabled")
		return users.NoopPublisher{}, nil
	}

	dialer := &kafka.Dialer{
		Timeout:   10 * time.Second,
		DualStack: true,
	}
	transport := &kafka.Transport{
		DialTimeout: 10 * time.Second,
	}

	// Only configure SASL/TLS if credentials are provided
	if cfg.APIKey != "" && cfg.APISecret != "" {
		mechanism := plain.Mechanism{
			Username: cfg.APIKey,
			Password: cfg.APISecret,
		}
		dialer.SASLMechanism = mechanism
		dialer.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
		transport.SASL = mechanism
		transport.TLS = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	if err := probe(ctx, dialer, cfg.Brokers[0], logger); err != nil {
		return nil, fmt.Errorf("kafka broker %s unreachable: %w", cfg.Brokers[0], err)
	}

	writer := &kafka.Writer{
		Addr:      kafka.TCP(cfg.Brokers...),
		Topic:     cfg.Topic,
		Balancer:  &kafka.Hash{},
		Transport: transport,
		Async:     true,
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Error("failed to publish provisioning events", zap.Int("count", len(messages)), zap.Error(err))
			}
		},
	}

	logger.Info("Kafka provisioning event publisher started", zap.Strings("brokers", cfg.Brokers), zap.String("topic", cfg.Topic))
	return users.NewProducer(writer), nil
}

// probe dials the broker with exponential backoff
func probe(ctx context.Context, dialer *kafka.Dialer, broker string, logger *zap.Logger) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = time.Second
	bo.MaxInterval = 5 * time.Second

	attempt := 0
	return backoff.RetryNotify(func() error {
		attempt++
		logger.Info("Kafka connection attempt", zap.Int("attempt", attempt), zap.String("broker", broker))
		conn, err := dialer.DialContext(ctx, "tcp", broker)
		if err != nil {
			return err
		}
		return conn.Close()
	}, backoff.WithContext(backoff.WithMaxRetries(bo, probeAttempts-1), ctx), func(err error, wait time.Duration) {
		logger.Warn("Retrying connection to Kafka", zap.Error(err), zap.Duration("wait", wait))
	})
}
