// Package registry implements the Confluent schema registry protocol client:
// resolving a subject's latest schema version and registering new versions,
// with transport and HTTP failures translated into a typed error taxonomy.
//
// Schema registry API: https://docs.confluent.io/platform/current/schema-registry/develop/api.html
package registry

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tryfix/errors"
	"github.com/tryfix/log"
)

const (
	acceptHeader  = `application/vnd.schemaregistry.v1+json, application/vnd.schemaregistry+json, application/json`
	contentHeader = `application/vnd.schemaregistry.v1+json`

	// DefaultTimeout bounds each registry request
	DefaultTimeout = 30 * time.Second
)

// Subject returns the subject name for a topic using the topic name strategy.
// Only the value subject is supported.
func Subject(topic string) string {
	return fmt.Sprintf(`%s-value`, topic)
}

// RegisteredSchema is a schema together with the id the registry assigned to
// it. The id is opaque beyond being echoed into the wire frame.
type RegisteredSchema struct {
	ID     int
	Schema string
}

// Config holds the connection details for a schema registry.
type Config struct {
	URL     string
	TLS     TLSConfig
	Timeout time.Duration
}

type options struct {
	logger log.Logger
}

// Option is a type to host NewClient configurations
type Option func(*options)

// WithLogger returns a configuration to create a NewClient with the given logger
func WithLogger(logger log.Logger) Option {
	return func(options *options) {
		options.logger = logger
	}
}

// Client resolves and registers schemas against a Confluent-style schema
// registry over HTTP(S). It holds no schema cache; every run re-resolves.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     log.Logger
}

// NewClient returns a Client for the registry at cfg.URL, building a TLS
// transport when cfg.TLS is enabled.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	options := new(options)
	for _, opt := range opts {
		opt(options)
	}

	if options.logger == nil {
		options.logger = log.NewNoopLogger()
	}

	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, errors.WithPrevious(err, fmt.Sprintf(`invalid registry url [%s]`, cfg.URL))
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	var transport http.RoundTripper
	if cfg.TLS.Enabled {
		tlsCfg, err := cfg.TLS.build(u.Hostname())
		if err != nil {
			return nil, errors.WithPrevious(err, `cannot build registry TLS connector`)
		}
		transport = &http.Transport{TLSClientConfig: tlsCfg}
	}

	return &Client{
		baseURL:    strings.TrimSuffix(cfg.URL, `/`),
		httpClient: &http.Client{Timeout: timeout, Transport: transport},
		logger:     options.logger,
	}, nil
}

type schemaResponse struct {
	ID      int    `json:"id"`
	Schema  string `json:"schema"`
	Version int    `json:"version"`
	Subject string `json:"subject"`
}

type registerRequest struct {
	Schema string `json:"schema"`
}

type registerResponse struct {
	ID int `json:"id"`
}

// Latest resolves the latest schema version registered under the subject.
func (c *Client) Latest(subject string) (*RegisteredSchema, error) {
	endpoint := fmt.Sprintf(`%s/subjects/%s/versions/latest`, c.baseURL, subject)

	req, err := http.NewRequest(http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Subject: subject, Err: err}
	}
	req.Header.Set(`Accept`, acceptHeader)

	status, body, err := c.do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Subject: subject, Err: err}
	}

	if kind, ok := classify(status); ok {
		return nil, &Error{Kind: kind, Subject: subject, Status: status, Body: string(body)}
	}

	res := schemaResponse{}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &Error{Kind: KindDecode, Subject: subject, Status: status, Err: err}
	}

	c.logger.Debug(`kavro.registry`,
		fmt.Sprintf(`resolved subject [%s] version %d with schema id %d`, subject, res.Version, res.ID))

	return &RegisteredSchema{ID: res.ID, Schema: res.Schema}, nil
}

// Register submits a candidate schema as a new version of the subject and
// returns it together with the id the registry assigned.
func (c *Client) Register(subject, schema string) (*RegisteredSchema, error) {
	endpoint := fmt.Sprintf(`%s/subjects/%s/versions`, c.baseURL, subject)

	payload, err := json.Marshal(registerRequest{Schema: schema})
	if err != nil {
		return nil, &Error{Kind: KindInvalid, Subject: subject, Err: err}
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &Error{Kind: KindTransport, Subject: subject, Err: err}
	}
	req.Header.Set(`Accept`, acceptHeader)
	req.Header.Set(`Content-Type`, contentHeader)

	status, body, err := c.do(req)
	if err != nil {
		return nil, &Error{Kind: KindTransport, Subject: subject, Err: err}
	}

	if kind, ok := classify(status); ok {
		return nil, &Error{Kind: kind, Subject: subject, Status: status, Body: string(body)}
	}

	res := registerResponse{}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, &Error{Kind: KindDecode, Subject: subject, Status: status, Err: err}
	}

	c.logger.Info(`kavro.registry`,
		fmt.Sprintf(`registered subject [%s] with schema id %d`, subject, res.ID))

	return &RegisteredSchema{ID: res.ID, Schema: schema}, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}

	return resp.StatusCode, body, nil
}

// classify maps a non-2xx status onto an error kind. Status handling is
// exhaustive: anything unexpected lands on KindInternal with the body kept.
func classify(status int) (ErrorKind, bool) {
	switch {
	case status >= 200 && status < 300:
		return 0, false
	case status == http.StatusNotFound:
		return KindNotFound, true
	case status == http.StatusConflict:
		return KindConflict, true
	case status == http.StatusUnprocessableEntity:
		return KindInvalid, true
	case status >= 500:
		return KindRegistryInternal, true
	}

	return KindInternal, true
}
