package registry

import "fmt"

// ErrorKind classifies registry failures so callers can react to the protocol
// outcome without parsing response bodies.
type ErrorKind int

const (
	// KindNotFound - the subject has no registered versions (HTTP 404)
	KindNotFound ErrorKind = iota + 1
	// KindInvalid - the candidate schema or subject is malformed (HTTP 422)
	KindInvalid
	// KindConflict - the candidate schema is incompatible with the subject (HTTP 409)
	KindConflict
	// KindRegistryInternal - the registry itself failed (HTTP 5xx)
	KindRegistryInternal
	// KindInternal - any other non-2xx response, body preserved for diagnostics
	KindInternal
	// KindTransport - the request never produced an HTTP response
	KindTransport
	// KindDecode - a 2xx response carried a body the client could not decode
	KindDecode
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return `not found`
	case KindInvalid:
		return `invalid schema`
	case KindConflict:
		return `incompatible schema`
	case KindRegistryInternal:
		return `registry internal`
	case KindInternal:
		return `internal`
	case KindTransport:
		return `transport`
	case KindDecode:
		return `response decode`
	}

	return `unknown`
}

// Error is the typed failure returned by every Client operation.
type Error struct {
	Kind    ErrorKind
	Subject string
	Status  int
	Body    string
	Err     error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf(`schema registry: %s failed for subject [%s]`, e.Kind, e.Subject)
	if e.Status != 0 {
		msg = fmt.Sprintf(`%s with status %d`, msg, e.Status)
	}
	if e.Body != `` {
		msg = fmt.Sprintf(`%s: %s`, msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf(`%s due to %+v`, msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }
