package app

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tryfix/errors"

	"kavro/internal/payload"
	"kavro/internal/pipeline"
	"kavro/internal/producer"
	"kavro/internal/registry"
)

type produceFlags struct {
	hosts       []string
	topic       string
	payload     string
	payloadFile string
	text        bool
	schema      string
	schemaFile  string
	registryURL string

	deliveryTimeout time.Duration
	verbose         bool

	ssl                   bool
	sslSkipCertValidation bool
	sslSkipHostValidation bool
	sslCA                 string
	sslKeystore           string
	sslKeystorePassword   string
}

func newProduceCmd() *cobra.Command {
	flags := &produceFlags{}

	cmd := &cobra.Command{
		Use:   `produce`,
		Short: `Produces a batch of Kafka messages`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProduce(flags)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&flags.hosts, `hosts`, `H`, nil, `kafka hosts (host:port[,host:port[...]])`)
	f.StringVarP(&flags.topic, `topic`, `t`, ``, `topic name`)
	f.StringVarP(&flags.payload, `payload`, `p`, ``, `message payload, JSON expected unless --text is present`)
	f.StringVar(&flags.payloadFile, `payload-file`, ``, `newline-delimited file, each row is a message payload`)
	f.BoolVarP(&flags.text, `text`, `T`, false, `message input is plain text, skip avro entirely`)
	f.StringVarP(&flags.schema, `schema`, `s`, ``, `avro schema used to serialize the payload`)
	f.StringVar(&flags.schemaFile, `schema-file`, ``, `file containing the avro schema used to serialize the payload`)
	f.StringVar(&flags.registryURL, `registry-url`, ``, `schema registry url (http[s]://host:port)`)
	f.DurationVar(&flags.deliveryTimeout, `delivery-timeout`, producer.DefaultDeliveryTimeout, `how long to wait for delivery confirmations`)
	f.BoolVarP(&flags.verbose, `verbose`, `v`, false, `verbose logging`)

	f.BoolVar(&flags.ssl, `ssl`, false, `connect to kafka and the registry over ssl`)
	f.BoolVar(&flags.sslSkipCertValidation, `ssl-skip-cert-validation`, false, `accept invalid certificates`)
	f.BoolVar(&flags.sslSkipHostValidation, `ssl-skip-host-validation`, false, `accept certificate hostname mismatches`)
	f.StringVar(&flags.sslCA, `ssl-ca`, ``, `path to a PEM CA bundle`)
	f.StringVar(&flags.sslKeystore, `ssl-keystore`, ``, `path to a PKCS#12 client keystore`)
	f.StringVar(&flags.sslKeystorePassword, `ssl-keystore-password`, ``, `keystore password`)

	_ = cmd.MarkFlagRequired(`hosts`)
	_ = cmd.MarkFlagRequired(`topic`)
	cmd.MarkFlagsMutuallyExclusive(`payload`, `payload-file`)
	cmd.MarkFlagsMutuallyExclusive(`schema`, `schema-file`)

	return cmd
}

func runProduce(flags *produceFlags) error {
	logger := newLogger(flags.verbose)

	lines, err := resolvePayload(flags)
	if err != nil {
		return err
	}

	schema, err := resolveSchema(flags)
	if err != nil {
		return err
	}

	pub, err := producer.New(kafkaConfig(flags), producer.WithLogger(logger))
	if err != nil {
		return err
	}
	defer pub.Close()

	opts := []pipeline.Option{pipeline.WithLogger(logger)}
	if flags.registryURL != `` {
		tlsCfg, err := registryTLS(flags)
		if err != nil {
			return err
		}

		client, err := registry.NewClient(registry.Config{URL: flags.registryURL, TLS: tlsCfg},
			registry.WithLogger(logger))
		if err != nil {
			return err
		}

		opts = append(opts, pipeline.WithRegistry(client))
	}

	run := pipeline.New(pipeline.Config{
		Topic:  flags.topic,
		Text:   flags.text,
		Schema: schema,
	}, pub, opts...)

	return run.Run(lines)
}

// resolvePayload returns the batch's message lines, from the inline payload or
// the payload file.
func resolvePayload(flags *produceFlags) ([]string, error) {
	switch {
	case flags.payload != ``:
		return []string{flags.payload}, nil
	case flags.payloadFile != ``:
		return payload.Read(flags.payloadFile)
	}

	return nil, &pipeline.ConfigError{Reason: `either --payload or --payload-file is required`}
}

func resolveSchema(flags *produceFlags) (string, error) {
	if flags.schemaFile == `` {
		return flags.schema, nil
	}

	byt, err := os.ReadFile(flags.schemaFile)
	if err != nil {
		return ``, errors.WithPrevious(err, fmt.Sprintf(`cannot read schema file [%s]`, flags.schemaFile))
	}

	return string(byt), nil
}

func kafkaConfig(flags *produceFlags) producer.Config {
	return producer.Config{
		BootstrapServers: flags.hosts,
		Topic:            flags.topic,
		DeliveryTimeout:  flags.deliveryTimeout,
		SSL: producer.SSLConfig{
			Enabled:            flags.ssl,
			SkipCertValidation: flags.sslSkipCertValidation,
			SkipHostValidation: flags.sslSkipHostValidation,
			CALocation:         flags.sslCA,
			KeystoreLocation:   flags.sslKeystore,
			KeystorePassword:   flags.sslKeystorePassword,
		},
	}
}

// registryTLS loads the credential files into the blob form the registry
// client takes.
func registryTLS(flags *produceFlags) (registry.TLSConfig, error) {
	cfg := registry.TLSConfig{
		Enabled:            flags.ssl,
		SkipCertValidation: flags.sslSkipCertValidation,
		SkipHostValidation: flags.sslSkipHostValidation,
	}

	if !flags.ssl {
		return cfg, nil
	}

	if flags.sslCA != `` {
		byt, err := os.ReadFile(flags.sslCA)
		if err != nil {
			return cfg, errors.WithPrevious(err, fmt.Sprintf(`cannot read CA bundle [%s]`, flags.sslCA))
		}
		cfg.CA = byt
	}

	if flags.sslKeystore != `` {
		byt, err := os.ReadFile(flags.sslKeystore)
		if err != nil {
			return cfg, errors.WithPrevious(err, fmt.Sprintf(`cannot read keystore [%s]`, flags.sslKeystore))
		}
		cfg.Keystore = byt
		cfg.KeystorePassword = flags.sslKeystorePassword
	}

	return cfg, nil
}
