// Package producer publishes encoded message batches to Kafka, bridging the
// broker client's asynchronous per-message delivery callbacks into a blocking
// "all messages confirmed" wait.
package producer

import (
	"fmt"
	"strings"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

// DefaultDeliveryTimeout bounds the wait for a batch's delivery outcomes.
const DefaultDeliveryTimeout = 30 * time.Second

// TransportError is a broker send or delivery failure for a single message.
type TransportError struct {
	Message int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf(`message %d failed due to %+v`, e.Message+1, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClientError is a broker client failure not tied to any single message, eg
// all brokers down. It carries no message index.
type ClientError struct {
	Err error
}

func (e *ClientError) Error() string {
	return fmt.Sprintf(`kafka client failed due to %+v`, e.Err)
}

func (e *ClientError) Unwrap() error { return e.Err }

// TimedOutError is returned when delivery outcomes stop arriving before every
// enqueued message was confirmed.
type TimedOutError struct {
	Waited      time.Duration
	Outstanding int
}

func (e *TimedOutError) Error() string {
	return fmt.Sprintf(`%d delivery outcome/s still outstanding after %s`, e.Outstanding, e.Waited)
}

// SSLConfig carries the broker-side SSL options. Locations are file paths
// handed straight to librdkafka.
type SSLConfig struct {
	Enabled            bool
	SkipCertValidation bool
	SkipHostValidation bool
	CALocation         string
	KeystoreLocation   string
	KeystorePassword   string
}

// Config holds the producer connection and batch settings.
type Config struct {
	BootstrapServers []string
	Topic            string
	DeliveryTimeout  time.Duration
	SSL              SSLConfig
}

type options struct {
	logger log.Logger
}

// Option is a type to host New configurations
type Option func(*options)

// WithLogger returns a configuration to create a producer with the given logger
func WithLogger(logger log.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// Producer publishes pre-encoded message batches to a single topic. A batch
// is sent with Send and confirmed with Await; one batch is in flight at a
// time, matching the one-batch-per-run contract of the CLI.
type Producer struct {
	client  *kafka.Producer
	topic   string
	timeout time.Duration
	logger  log.Logger

	deliveries chan kafka.Event
	inFlight   int
}

// New returns a connected Producer for the given brokers and topic.
func New(cfg Config, opts ...Option) (*Producer, error) {
	options := new(options)
	for _, opt := range opts {
		opt(options)
	}

	if options.logger == nil {
		options.logger = log.NewNoopLogger()
	}

	timeout := cfg.DeliveryTimeout
	if timeout == 0 {
		timeout = DefaultDeliveryTimeout
	}

	client, err := kafka.NewProducer(buildConfigMap(cfg))
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot init kafka producer`)
	}

	return &Producer{
		client:  client,
		topic:   cfg.Topic,
		timeout: timeout,
		logger:  options.logger,
	}, nil
}

// Send enqueues every payload with the broker client. A send-time rejection
// (eg queue full) fails the batch immediately; nothing further is enqueued and
// the error carries the offending message index.
func (p *Producer) Send(payloads [][]byte) error {
	p.deliveries = make(chan kafka.Event, len(payloads))
	p.inFlight = 0
	topic := p.topic

	for i, payload := range payloads {
		msg := &kafka.Message{
			TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
			Value:          payload,
		}

		if err := p.client.Produce(msg, p.deliveries); err != nil {
			return &TransportError{Message: i, Err: err}
		}
		p.inFlight++
	}

	return nil
}

// Await blocks until exactly one delivery outcome per enqueued message has
// arrived or the delivery timeout expires. After the first negative outcome
// the remaining outcomes are still drained, so the channel never leaks and
// the batch result is reported only once all acknowledgments are in.
func (p *Producer) Await() error {
	reports, err := awaitDeliveries(p.deliveries, p.inFlight, p.timeout)
	p.inFlight = 0
	p.logReport(reports)

	return err
}

// Close releases the underlying kafka client.
func (p *Producer) Close() {
	p.client.Close()
}

// awaitDeliveries reads delivery outcomes until expected messages are
// confirmed or the timeout expires. Outcomes are correlated by count, not
// identity; the batch only needs "all succeeded".
func awaitDeliveries(deliveries <-chan kafka.Event, expected int, timeout time.Duration) ([]Report, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	reports := make([]Report, 0, expected)

	var firstErr error
	for received := 0; received < expected; {
		select {
		case ev := <-deliveries:
			msg, ok := ev.(*kafka.Message)
			if !ok {
				// client-level events (eg broker down) are not per-message
				// outcomes and must not consume the expected count
				if err, isErr := ev.(kafka.Error); isErr && firstErr == nil {
					firstErr = &ClientError{Err: err}
				}
				continue
			}

			received++
			reports = append(reports, newReport(msg))

			if msg.TopicPartition.Error != nil && firstErr == nil {
				firstErr = &TransportError{Message: received - 1, Err: msg.TopicPartition.Error}
			}
		case <-timer.C:
			return reports, &TimedOutError{Waited: timeout, Outstanding: expected - len(reports)}
		}
	}

	return reports, firstErr
}

// buildConfigMap mirrors the librdkafka settings the CLI has always used:
// retries pinned to zero so failure handling stays with the caller, and the
// ssl.* family driven by the SSL toggles.
func buildConfigMap(cfg Config) *kafka.ConfigMap {
	conf := kafka.ConfigMap{
		`bootstrap.servers`: strings.Join(cfg.BootstrapServers, `,`),
		`retries`:           0,
	}

	if cfg.SSL.Enabled {
		conf[`security.protocol`] = `ssl`
		conf[`enable.ssl.certificate.verification`] = !cfg.SSL.SkipCertValidation

		if cfg.SSL.SkipHostValidation {
			conf[`ssl.endpoint.identification.algorithm`] = `none`
		} else {
			conf[`ssl.endpoint.identification.algorithm`] = `https`
		}

		if cfg.SSL.CALocation != `` {
			conf[`ssl.ca.location`] = cfg.SSL.CALocation
		}

		if cfg.SSL.KeystoreLocation != `` {
			conf[`ssl.keystore.location`] = cfg.SSL.KeystoreLocation
		}

		if cfg.SSL.KeystorePassword != `` {
			conf[`ssl.keystore.password`] = cfg.SSL.KeystorePassword
		}
	}

	return &conf
}
