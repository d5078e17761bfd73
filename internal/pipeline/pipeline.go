package pipeline

import (
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/tryfix/errors"
	"github.com/tryfix/log"

	"kavro/internal/avromap"
	"kavro/internal/registry"
	"kavro/internal/wire"
)

// ConfigError is a missing or contradictory run input, detected before any
// mapping or network work starts.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf(`invalid configuration: %s`, e.Reason)
}

// SchemaRegistry resolves or registers subject schemas.
type SchemaRegistry interface {
	Latest(subject string) (*registry.RegisteredSchema, error)
	Register(subject, schema string) (*registry.RegisteredSchema, error)
}

// Publisher sends an encoded batch and confirms its delivery. Send enqueues
// every message or rejects the batch; Await blocks until every enqueued
// message has a delivery outcome.
type Publisher interface {
	Send(payloads [][]byte) error
	Await() error
}

// Config holds the per-run pipeline inputs.
type Config struct {
	Topic string

	// Text publishes raw payload lines, skipping Avro entirely
	Text bool

	// Schema is a local Avro schema. With a registry it is registered as a new
	// subject version; without one it drives the unframed codec path.
	Schema string
}

type options struct {
	logger   log.Logger
	registry SchemaRegistry
}

// Option is a type to host New configurations
type Option func(*options)

// WithLogger returns a configuration to create a Pipeline with the given logger
func WithLogger(logger log.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// WithRegistry wires a schema registry into the run. When present the schema
// id is resolved up front and every message is framed with it.
func WithRegistry(reg SchemaRegistry) Option {
	return func(options *options) {
		options.registry = reg
	}
}

// Pipeline drives a single produce run:
//
//	Idle → Encoding → Sending → AwaitingAcks → Done | Failed
//
// All state is run-scoped; a Pipeline is built, run once and discarded.
type Pipeline struct {
	cfg       Config
	publisher Publisher
	registry  SchemaRegistry
	logger    log.Logger
	state     State
}

// New returns a Pipeline publishing through the given Publisher.
func New(cfg Config, publisher Publisher, opts ...Option) *Pipeline {
	options := new(options)
	for _, opt := range opts {
		opt(options)
	}

	if options.logger == nil {
		options.logger = log.NewNoopLogger()
	}

	return &Pipeline{
		cfg:       cfg,
		publisher: publisher,
		registry:  options.registry,
		logger:    options.logger,
		state:     StateIdle,
	}
}

// State reports the run's current state.
func (p *Pipeline) State() State {
	return p.state
}

// Run maps and encodes every payload line, then publishes the batch and
// blocks until every message's delivery is acknowledged. The batch is
// all-or-nothing: any mapping or encoding failure aborts the run before a
// single message is sent, and a single negative delivery outcome fails it.
func (p *Pipeline) Run(lines []string) error {
	p.transition(StateEncoding)
	payloads, err := p.encode(lines)
	if err != nil {
		return p.fail(err)
	}

	p.transition(StateSending)
	if err := p.publisher.Send(payloads); err != nil {
		return p.fail(err)
	}

	p.transition(StateAwaitingAcks)
	if err := p.publisher.Await(); err != nil {
		return p.fail(err)
	}

	p.transition(StateDone)
	p.logger.Info(`kavro.pipeline`, fmt.Sprintf(`%d message/s delivered to topic [%s]`, len(lines), p.cfg.Topic))

	return nil
}

// encode turns payload lines into wire-ready byte buffers, in input order.
// The first failing line aborts the whole batch.
func (p *Pipeline) encode(lines []string) ([][]byte, error) {
	if p.cfg.Text {
		payloads := make([][]byte, len(lines))
		for i, line := range lines {
			payloads[i] = []byte(line)
		}
		return payloads, nil
	}

	values := make([]interface{}, len(lines))
	for i, line := range lines {
		v, err := avromap.DecodeJSON(line)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`payload line %d is not valid JSON`, i+1))
		}
		values[i] = v
	}

	encoder, schema, err := p.resolveEncoder()
	if err != nil {
		return nil, err
	}

	payloads := make([][]byte, len(values))
	for i, v := range values {
		native, err := avromap.Map(v, schema)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot map payload line %d`, i+1))
		}

		byt, err := encoder.Encode(native)
		if err != nil {
			return nil, errors.WithPrevious(err, fmt.Sprintf(`cannot encode payload line %d`, i+1))
		}

		payloads[i] = byt
	}

	return payloads, nil
}

// resolveEncoder decides the codec path once per run: with a registry the
// schema is registered (when supplied) or resolved (latest version) and
// messages are framed with its id; without one the local schema drives the
// unframed path.
func (p *Pipeline) resolveEncoder() (*wire.Encoder, avro.Schema, error) {
	if p.registry != nil {
		subject := registry.Subject(p.cfg.Topic)

		var registered *registry.RegisteredSchema
		var err error
		if p.cfg.Schema != `` {
			registered, err = p.registry.Register(subject, p.cfg.Schema)
		} else {
			registered, err = p.registry.Latest(subject)
		}
		if err != nil {
			return nil, nil, err
		}

		schema, err := avro.Parse(registered.Schema)
		if err != nil {
			return nil, nil, errors.WithPrevious(err, fmt.Sprintf(`registry returned an unparsable schema for subject [%s]`, subject))
		}

		encoder, err := wire.NewFramedEncoder(registered.Schema, registered.ID)
		if err != nil {
			return nil, nil, err
		}

		return encoder, schema, nil
	}

	if p.cfg.Schema == `` {
		return nil, nil, &ConfigError{Reason: `avro payloads need a schema or a registry url`}
	}

	schema, err := avro.Parse(p.cfg.Schema)
	if err != nil {
		return nil, nil, errors.WithPrevious(err, `cannot parse schema`)
	}

	encoder, err := wire.NewEncoder(p.cfg.Schema)
	if err != nil {
		return nil, nil, err
	}

	return encoder, schema, nil
}

func (p *Pipeline) transition(next State) {
	p.logger.Debug(`kavro.pipeline`, fmt.Sprintf(`%s -> %s`, p.state, next))
	p.state = next
}

func (p *Pipeline) fail(err error) error {
	p.transition(StateFailed)
	return err
}
