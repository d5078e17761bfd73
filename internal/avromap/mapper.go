/*
Package avromap maps untyped JSON values onto typed Avro schemas.

Avro unions are not self-describing from JSON alone: a JSON number matches
every numeric branch of a union. Branch selection therefore follows a fixed,
JSON-kind-driven priority order which is part of the tool's wire contract and
must not change without a compatibility flag:

 1. JSON null    -> the null branch
 2. JSON boolean -> the boolean branch
 3. JSON number  -> long, then int, then float, then double
 4. JSON string  -> the string branch
 5. JSON array   -> the array branch
 6. JSON object  -> the record branch, then the map branch

The first branch present wins, regardless of union declaration order: a union
of {int, long} always binds integral JSON numbers to long.
*/
package avromap

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/hamba/avro/v2"
)

// MappingError is returned when a JSON value cannot be mapped onto the schema
// node it was given. Expected carries the schema's canonical name (or the full
// symbol/branch set for enums and unions) and Actual the JSON value's textual form.
type MappingError struct {
	Expected string
	Actual   string
}

func (e *MappingError) Error() string {
	return fmt.Sprintf(`cannot map value %s onto schema %s`, e.Actual, e.Expected)
}

// DecodeJSON decodes a single JSON document into the value form Map expects.
// Numbers are kept as json.Number so integral and fractional values stay exact.
func DecodeJSON(line string) (interface{}, error) {
	dec := json.NewDecoder(strings.NewReader(line))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}

	if dec.More() {
		return nil, fmt.Errorf(`unexpected trailing content after JSON value`)
	}

	return v, nil
}

// Map recursively maps a decoded JSON value onto the given schema node and
// returns the goavro native form ready for binary encoding. The mapping never
// produces a value that is not structurally conformant with the schema: union
// branches are resolved up front and the result is wrapped accordingly.
func Map(v interface{}, schema avro.Schema) (interface{}, error) {
	switch s := deref(schema).(type) {
	case *avro.NullSchema:
		if v == nil {
			return nil, nil
		}
		return nil, newMappingError(s, v)
	case *avro.PrimitiveSchema:
		return mapPrimitive(v, s)
	case *avro.ArraySchema:
		return mapArray(v, s)
	case *avro.MapSchema:
		return mapMap(v, s)
	case *avro.RecordSchema:
		return mapRecord(v, s)
	case *avro.EnumSchema:
		return mapEnum(v, s)
	case *avro.UnionSchema:
		return mapUnion(v, s)
	}

	return nil, newMappingError(schema, v)
}

func mapPrimitive(v interface{}, s *avro.PrimitiveSchema) (interface{}, error) {
	switch s.Type() {
	case avro.Boolean:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case avro.String:
		if str, ok := v.(string); ok {
			return str, nil
		}
	case avro.Int:
		if n, ok := v.(json.Number); ok {
			i, err := n.Int64()
			if err != nil || i > math.MaxInt32 || i < math.MinInt32 {
				return nil, newMappingError(s, v)
			}
			return int32(i), nil
		}
	case avro.Long:
		if n, ok := v.(json.Number); ok {
			i, err := n.Int64()
			if err != nil {
				return nil, newMappingError(s, v)
			}
			return i, nil
		}
	case avro.Float:
		if n, ok := v.(json.Number); ok {
			f, err := n.Float64()
			if err != nil {
				return nil, newMappingError(s, v)
			}
			return float32(f), nil
		}
	case avro.Double:
		if n, ok := v.(json.Number); ok {
			f, err := n.Float64()
			if err != nil {
				return nil, newMappingError(s, v)
			}
			return f, nil
		}
	}

	return nil, newMappingError(s, v)
}

func mapArray(v interface{}, s *avro.ArraySchema) (interface{}, error) {
	arr, ok := v.([]interface{})
	if !ok {
		return nil, newMappingError(s, v)
	}

	items := make([]interface{}, len(arr))
	for i, el := range arr {
		mapped, err := Map(el, s.Items())
		if err != nil {
			return nil, err
		}
		items[i] = mapped
	}

	return items, nil
}

func mapMap(v interface{}, s *avro.MapSchema) (interface{}, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, newMappingError(s, v)
	}

	values := make(map[string]interface{}, len(obj))
	for k, el := range obj {
		mapped, err := Map(el, s.Values())
		if err != nil {
			return nil, err
		}
		values[k] = mapped
	}

	return values, nil
}

// mapRecord maps every field the schema declares, in schema order. A field
// missing from the JSON object is mapped as a JSON null, so it only succeeds
// when the field's schema tolerates null (eg a union with a null branch).
func mapRecord(v interface{}, s *avro.RecordSchema) (interface{}, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, newMappingError(s, v)
	}

	fields := make(map[string]interface{}, len(s.Fields()))
	for _, f := range s.Fields() {
		mapped, err := Map(obj[f.Name()], f.Type())
		if err != nil {
			return nil, err
		}
		fields[f.Name()] = mapped
	}

	return fields, nil
}

func mapEnum(v interface{}, s *avro.EnumSchema) (interface{}, error) {
	sym, ok := v.(string)
	if !ok {
		return nil, newMappingError(s, v)
	}

	for _, candidate := range s.Symbols() {
		if candidate == sym {
			return sym, nil
		}
	}

	return nil, &MappingError{Expected: strings.Join(s.Symbols(), `,`), Actual: sym}
}

func mapUnion(v interface{}, s *avro.UnionSchema) (interface{}, error) {
	branch := resolveUnion(s, v)
	if branch == nil {
		return nil, &MappingError{Expected: unionName(s), Actual: textual(v)}
	}

	inner, err := Map(v, branch)
	if err != nil {
		return nil, err
	}

	if deref(branch).Type() == avro.Null {
		return nil, nil
	}

	return map[string]interface{}{branchKey(branch): inner}, nil
}

// resolveUnion picks the single union branch a JSON value binds to. The order
// is a pinned wire-compatibility contract and is driven by the JSON kind, not
// by branch declaration order: numbers prefer long over int over float over
// double, objects prefer record over map.
func resolveUnion(s *avro.UnionSchema, v interface{}) avro.Schema {
	switch v.(type) {
	case nil:
		return findBranch(s, avro.Null)
	case bool:
		return findBranch(s, avro.Boolean)
	case json.Number:
		return findBranch(s, avro.Long, avro.Int, avro.Float, avro.Double)
	case string:
		return findBranch(s, avro.String)
	case []interface{}:
		return findBranch(s, avro.Array)
	case map[string]interface{}:
		return findBranch(s, avro.Record, avro.Map)
	}

	return nil
}

// findBranch returns the union branch matching the first of the given types
// that is present, in the given priority order.
func findBranch(s *avro.UnionSchema, types ...avro.Type) avro.Schema {
	for _, typ := range types {
		for _, branch := range s.Types() {
			if deref(branch).Type() == typ {
				return branch
			}
		}
	}

	return nil
}

// branchKey returns the key goavro expects for a union-wrapped native value.
func branchKey(schema avro.Schema) string {
	schema = deref(schema)
	if named, ok := schema.(avro.NamedSchema); ok {
		return named.FullName()
	}

	return string(schema.Type())
}

func canonicalName(schema avro.Schema) string {
	schema = deref(schema)
	if named, ok := schema.(avro.NamedSchema); ok {
		return named.FullName()
	}

	return string(schema.Type())
}

func unionName(s *avro.UnionSchema) string {
	names := make([]string, 0, len(s.Types()))
	for _, branch := range s.Types() {
		names = append(names, canonicalName(branch))
	}

	return fmt.Sprintf(`[%s]`, strings.Join(names, `, `))
}

func textual(v interface{}) string {
	byt, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}

	return string(byt)
}

func newMappingError(schema avro.Schema, v interface{}) *MappingError {
	return &MappingError{Expected: canonicalName(schema), Actual: textual(v)}
}

func deref(schema avro.Schema) avro.Schema {
	if ref, ok := schema.(*avro.RefSchema); ok {
		return ref.Schema()
	}

	return schema
}
