package app

import (
	"os"
	"path/filepath"
	"testing"

	"kavro/internal/pipeline"
)

func TestResolvePayload_Inline(t *testing.T) {
	lines, err := resolvePayload(&produceFlags{payload: `{"a": 1}`})
	if err != nil {
		t.Fatal(err)
	}

	if len(lines) != 1 || lines[0] != `{"a": 1}` {
		t.Errorf(`unexpected lines %v`, lines)
	}
}

func TestResolvePayload_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), `payload.ndjson`)
	if err := os.WriteFile(path, []byte("{\"a\": 1}\n{\"a\": 2}"), 0o600); err != nil {
		t.Fatal(err)
	}

	lines, err := resolvePayload(&produceFlags{payloadFile: path})
	if err != nil {
		t.Fatal(err)
	}

	if len(lines) != 2 {
		t.Fatalf(`need 2 lines, have %d`, len(lines))
	}
}

func TestResolvePayload_Missing(t *testing.T) {
	_, err := resolvePayload(&produceFlags{})

	if _, ok := err.(*pipeline.ConfigError); !ok {
		t.Fatalf(`need *pipeline.ConfigError, have %T`, err)
	}
}

func TestResolveSchema_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), `schema.avsc`)
	if err := os.WriteFile(path, []byte(`"string"`), 0o600); err != nil {
		t.Fatal(err)
	}

	schema, err := resolveSchema(&produceFlags{schemaFile: path})
	if err != nil {
		t.Fatal(err)
	}

	if schema != `"string"` {
		t.Errorf(`unexpected schema %s`, schema)
	}
}

func TestKafkaConfig(t *testing.T) {
	cfg := kafkaConfig(&produceFlags{
		hosts: []string{`k1:9093`},
		topic: `events`,
		ssl:   true,
		sslCA: `/etc/ssl/ca.pem`,
	})

	if cfg.Topic != `events` {
		t.Errorf(`unexpected topic %s`, cfg.Topic)
	}

	if !cfg.SSL.Enabled || cfg.SSL.CALocation != `/etc/ssl/ca.pem` {
		t.Errorf(`unexpected ssl config %+v`, cfg.SSL)
	}
}

func TestRegistryTLS_LoadsBlobs(t *testing.T) {
	dir := t.TempDir()
	caPath := filepath.Join(dir, `ca.pem`)
	if err := os.WriteFile(caPath, []byte(`pem bytes`), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := registryTLS(&produceFlags{ssl: true, sslCA: caPath})
	if err != nil {
		t.Fatal(err)
	}

	if string(cfg.CA) != `pem bytes` {
		t.Errorf(`unexpected CA blob %q`, cfg.CA)
	}
}

func TestConsumeIsNoopSuccess(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{`consume`})

	if err := cmd.Execute(); err != nil {
		t.Fatalf(`consume must succeed as a no-op, have %+v`, err)
	}
}

func TestProduceRequiresHostsAndTopic(t *testing.T) {
	cmd := NewRootCmd()
	cmd.SetArgs([]string{`produce`, `--payload`, `{}`})

	if err := cmd.Execute(); err == nil {
		t.Fatal(`expected missing required flag error`)
	}
}
