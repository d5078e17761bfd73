package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/linkedin/goavro/v2"
	"github.com/tryfix/errors"
)

const magicByte byte = 0x00

// CodecError is returned when a mapped value cannot be binary encoded against
// its schema.
type CodecError struct {
	Err error
}

func (e *CodecError) Error() string {
	return fmt.Sprintf(`avro binary encoding failed due to %+v`, e.Err)
}

func (e *CodecError) Unwrap() error { return e.Err }

// Encoder encodes mapped native values into Avro binary. A framed Encoder
// prepends the registry wire convention to every message:
//
//	╔════════════════════╤════════════════════╤══════════════════════╗
//	║ magic byte(1 byte) │ schema id(4 bytes) │ AVRO encoded message ║
//	╚════════════════════╧════════════════════╧══════════════════════╝
//
// An unframed Encoder emits the raw Avro binary body only; the consumer is
// assumed to know the schema out of band.
type Encoder struct {
	codec    *goavro.Codec
	framed   bool
	schemaID int
}

// NewEncoder returns an unframed Encoder for the given schema.
func NewEncoder(schema string) (*Encoder, error) {
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return nil, errors.WithPrevious(err, `cannot init encoder due to codec failed`)
	}

	return &Encoder{codec: codec}, nil
}

// NewFramedEncoder returns an Encoder which prefixes every message with the
// magic byte and the given registry schema id.
func NewFramedEncoder(schema string, schemaID int) (*Encoder, error) {
	e, err := NewEncoder(schema)
	if err != nil {
		return nil, err
	}

	e.framed = true
	e.schemaID = schemaID

	return e, nil
}

// Encode returns the binary encoding of a native value, framed or unframed
// depending on how the Encoder was built.
func (e *Encoder) Encode(native interface{}) ([]byte, error) {
	var prefix []byte
	if e.framed {
		prefix = encodePrefix(e.schemaID)
	}

	byt, err := e.codec.BinaryFromNative(prefix, native)
	if err != nil {
		return nil, &CodecError{Err: err}
	}

	return byt, nil
}

// Schema returns the canonical schema the Encoder encodes against.
func (e *Encoder) Schema() string {
	return e.codec.Schema()
}

func encodePrefix(id int) []byte {
	byt := make([]byte, 5)
	byt[0] = magicByte
	binary.BigEndian.PutUint32(byt[1:], uint32(id))
	return byt
}
