package wire

import (
	"bytes"
	"encoding/binary"
	"reflect"
	"testing"

	"github.com/linkedin/goavro/v2"
)

const testSchema = `{
	"type": "record", "name": "Sample",
	"fields": [
		{"name": "field1", "type": "int"},
		{"name": "field2", "type": "string"}
	]
}`

var testNative = map[string]interface{}{
	`field1`: int32(100),
	`field2`: `text`,
}

func TestEncoder_Unframed(t *testing.T) {
	e, err := NewEncoder(testSchema)
	if err != nil {
		t.Fatal(err)
	}

	byt, err := e.Encode(testNative)
	if err != nil {
		t.Fatal(err)
	}

	codec, err := goavro.NewCodec(testSchema)
	if err != nil {
		t.Fatal(err)
	}

	native, remaining, err := codec.NativeFromBinary(byt)
	if err != nil {
		t.Fatal(err)
	}

	if len(remaining) != 0 {
		t.Errorf(`unframed encoding has %d trailing bytes`, len(remaining))
	}

	out, ok := native.(map[string]interface{})
	if !ok {
		t.Fatalf(`unexpected native type %T`, native)
	}

	if out[`field2`] != `text` {
		t.Errorf(`need text, have %v`, out[`field2`])
	}
}

func TestEncoder_FramedPrefix(t *testing.T) {
	const schemaID = 1042

	framed, err := NewFramedEncoder(testSchema, schemaID)
	if err != nil {
		t.Fatal(err)
	}

	unframed, err := NewEncoder(testSchema)
	if err != nil {
		t.Fatal(err)
	}

	framedByt, err := framed.Encode(testNative)
	if err != nil {
		t.Fatal(err)
	}

	unframedByt, err := unframed.Encode(testNative)
	if err != nil {
		t.Fatal(err)
	}

	if len(framedByt) != len(unframedByt)+5 {
		t.Fatalf(`framed message must be exactly 5 bytes longer, have %d vs %d`,
			len(framedByt), len(unframedByt))
	}

	if framedByt[0] != magicByte {
		t.Errorf(`need magic byte 0x00, have %#x`, framedByt[0])
	}

	if id := binary.BigEndian.Uint32(framedByt[1:5]); id != schemaID {
		t.Errorf(`need schema id %d, have %d`, schemaID, id)
	}

	if !bytes.Equal(framedByt[5:], unframedByt) {
		t.Error(`framed body must be byte-identical to unframed encoding`)
	}
}

func TestEncoder_UnionBranchEncoding(t *testing.T) {
	schema := `["null", "string"]`

	e, err := NewEncoder(schema)
	if err != nil {
		t.Fatal(err)
	}

	byt, err := e.Encode(map[string]interface{}{`string`: `x`})
	if err != nil {
		t.Fatal(err)
	}

	codec, err := goavro.NewCodec(schema)
	if err != nil {
		t.Fatal(err)
	}

	native, _, err := codec.NativeFromBinary(byt)
	if err != nil {
		t.Fatal(err)
	}

	if !reflect.DeepEqual(native, map[string]interface{}{`string`: `x`}) {
		t.Errorf(`need union wrapped string, have %v`, native)
	}
}

func TestEncoder_EncodeFailure(t *testing.T) {
	e, err := NewEncoder(testSchema)
	if err != nil {
		t.Fatal(err)
	}

	_, err = e.Encode(map[string]interface{}{`field1`: `not an int`})
	if err == nil {
		t.Fatal(`expected encoding failure`)
	}

	if _, ok := err.(*CodecError); !ok {
		t.Errorf(`need *CodecError, have %T`, err)
	}
}

func TestEncoder_InvalidSchema(t *testing.T) {
	if _, err := NewEncoder(`{"type": "nope"}`); err == nil {
		t.Fatal(`expected schema parse failure`)
	}
}
