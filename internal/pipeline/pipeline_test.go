package pipeline

import (
	"encoding/binary"
	"fmt"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/require"

	"kavro/internal/registry"
)

const userSchema = `{
	"type": "record", "name": "User",
	"fields": [
		{"name": "name", "type": "string"},
		{"name": "age", "type": ["null", "long"], "default": null}
	]
}`

type fakePublisher struct {
	sent     [][]byte
	sendErr  error
	awaitErr error
	awaited  bool
}

func (f *fakePublisher) Send(payloads [][]byte) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = payloads
	return nil
}

func (f *fakePublisher) Await() error {
	f.awaited = true
	return f.awaitErr
}

type fakeRegistry struct {
	registered *registry.RegisteredSchema
	err        error

	latestCalled   bool
	registerCalled bool
	gotSubject     string
	gotSchema      string
}

func (f *fakeRegistry) Latest(subject string) (*registry.RegisteredSchema, error) {
	f.latestCalled = true
	f.gotSubject = subject
	return f.registered, f.err
}

func (f *fakeRegistry) Register(subject, schema string) (*registry.RegisteredSchema, error) {
	f.registerCalled = true
	f.gotSubject = subject
	f.gotSchema = schema
	return f.registered, f.err
}

func TestRun_TextModePassesLinesThrough(t *testing.T) {
	pub := &fakePublisher{}
	p := New(Config{Topic: `events`, Text: true}, pub)

	err := p.Run([]string{`hello`, `world`})
	require.NoError(t, err)

	require.Equal(t, [][]byte{[]byte(`hello`), []byte(`world`)}, pub.sent)
	require.True(t, pub.awaited)
	require.Equal(t, StateDone, p.State())
}

func TestRun_LocalSchemaUnframed(t *testing.T) {
	pub := &fakePublisher{}
	p := New(Config{Topic: `events`, Schema: userSchema}, pub)

	err := p.Run([]string{`{"name": "ann", "age": 30}`, `{"name": "bob"}`})
	require.NoError(t, err)
	require.Len(t, pub.sent, 2)

	codec, err := goavro.NewCodec(userSchema)
	require.NoError(t, err)

	native, remaining, err := codec.NativeFromBinary(pub.sent[0])
	require.NoError(t, err)
	require.Empty(t, remaining)

	rec := native.(map[string]interface{})
	require.Equal(t, `ann`, rec[`name`])
	require.Equal(t, map[string]interface{}{`long`: int64(30)}, rec[`age`])

	native, _, err = codec.NativeFromBinary(pub.sent[1])
	require.NoError(t, err)
	require.Nil(t, native.(map[string]interface{})[`age`])
}

func TestRun_RegistryResolvesLatestAndFrames(t *testing.T) {
	pub := &fakePublisher{}
	reg := &fakeRegistry{registered: &registry.RegisteredSchema{ID: 1042, Schema: userSchema}}
	p := New(Config{Topic: `events`}, pub, WithRegistry(reg))

	err := p.Run([]string{`{"name": "ann"}`})
	require.NoError(t, err)

	require.True(t, reg.latestCalled)
	require.False(t, reg.registerCalled)
	require.Equal(t, `events-value`, reg.gotSubject)

	require.Len(t, pub.sent, 1)
	framed := pub.sent[0]
	require.Equal(t, byte(0x00), framed[0])
	require.Equal(t, uint32(1042), binary.BigEndian.Uint32(framed[1:5]))

	codec, err := goavro.NewCodec(userSchema)
	require.NoError(t, err)
	_, _, err = codec.NativeFromBinary(framed[5:])
	require.NoError(t, err)
}

func TestRun_RegistryRegistersSuppliedSchema(t *testing.T) {
	pub := &fakePublisher{}
	reg := &fakeRegistry{registered: &registry.RegisteredSchema{ID: 7, Schema: userSchema}}
	p := New(Config{Topic: `events`, Schema: userSchema}, pub, WithRegistry(reg))

	err := p.Run([]string{`{"name": "ann"}`})
	require.NoError(t, err)

	require.True(t, reg.registerCalled)
	require.False(t, reg.latestCalled)
	require.Equal(t, `events-value`, reg.gotSubject)
	require.Equal(t, userSchema, reg.gotSchema)
}

func TestRun_RegistryFailureAbortsBeforeSend(t *testing.T) {
	pub := &fakePublisher{}
	reg := &fakeRegistry{err: &registry.Error{Kind: registry.KindNotFound, Subject: `events-value`}}
	p := New(Config{Topic: `events`}, pub, WithRegistry(reg))

	err := p.Run([]string{`{"name": "ann"}`})
	require.Error(t, err)
	require.Nil(t, pub.sent)
	require.Equal(t, StateFailed, p.State())
}

func TestRun_MappingFailureIsFailFast(t *testing.T) {
	pub := &fakePublisher{}
	p := New(Config{Topic: `events`, Schema: userSchema}, pub)

	err := p.Run([]string{`{"name": "ann"}`, `{"name": 42}`, `{"name": "bob"}`})
	require.Error(t, err)
	require.Contains(t, err.Error(), `line 2`)

	// nothing reaches the broker when any line fails
	require.Nil(t, pub.sent)
	require.False(t, pub.awaited)
	require.Equal(t, StateFailed, p.State())
}

func TestRun_BadJSONNamesLine(t *testing.T) {
	pub := &fakePublisher{}
	p := New(Config{Topic: `events`, Schema: userSchema}, pub)

	err := p.Run([]string{`{"name": "ann"}`, `{oops`})
	require.Error(t, err)
	require.Contains(t, err.Error(), `line 2`)
	require.Nil(t, pub.sent)
}

func TestRun_MissingSchemaIsConfigError(t *testing.T) {
	p := New(Config{Topic: `events`}, &fakePublisher{})

	err := p.Run([]string{`{"name": "ann"}`})

	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestRun_SendRejectionSkipsAwait(t *testing.T) {
	pub := &fakePublisher{sendErr: fmt.Errorf(`queue full`)}
	p := New(Config{Topic: `events`, Text: true}, pub)

	err := p.Run([]string{`hello`})
	require.Error(t, err)
	require.False(t, pub.awaited)
	require.Equal(t, StateFailed, p.State())
}

func TestRun_NegativeOutcomeFailsRun(t *testing.T) {
	pub := &fakePublisher{awaitErr: fmt.Errorf(`delivery failed`)}
	p := New(Config{Topic: `events`, Text: true}, pub)

	err := p.Run([]string{`hello`})
	require.Error(t, err)
	require.Equal(t, StateFailed, p.State())
}
