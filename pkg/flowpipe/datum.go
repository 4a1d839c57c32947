package flowpipe

import "fmt"

// DatumType is the kind of a Datum.
type DatumType int

const (
	// DatumInvalid is the zero value. It marks a malformed datum and must
	// never travel on an edge.
	DatumInvalid DatumType = iota

	// DatumData carries a payload.
	DatumData

	// DatumEmpty means "no value this cycle".
	DatumEmpty

	// DatumComplete means no further datums will follow on the edge.
	DatumComplete

	// DatumError carries a recoverable failure in place of data.
	DatumError
)

// String returns the datum type name.
func (t DatumType) String() string {
	switch t {
	case DatumData:
		return "data"
	case DatumEmpty:
		return "empty"
	case DatumComplete:
		return "complete"
	case DatumError:
		return "error"
	default:
		return "invalid"
	}
}

// priority orders datum types for MaxStatus.
func (t DatumType) priority() int {
	switch t {
	case DatumData:
		return 0
	case DatumEmpty:
		return 1
	case DatumComplete:
		return 2
	case DatumError:
		return 3
	default:
		return 4
	}
}

// Datum is an immutable value travelling on an edge.
// The zero Datum is invalid.
type Datum struct {
	typ     DatumType
	payload any
	message string
}

// NewDatum wraps a payload in a data datum.
func NewDatum(payload any) Datum {
	return Datum{typ: DatumData, payload: payload}
}

// EmptyDatum returns an empty datum.
func EmptyDatum() Datum {
	return Datum{typ: DatumEmpty}
}

// CompleteDatum returns a complete datum.
func CompleteDatum() Datum {
	return Datum{typ: DatumComplete}
}

// ErrorDatum returns an error datum carrying msg.
func ErrorDatum(msg string) Datum {
	return Datum{typ: DatumError, message: msg}
}

// Type returns the datum type.
func (d Datum) Type() DatumType { return d.typ }

// Payload returns the payload of a data datum, nil otherwise.
func (d Datum) Payload() any { return d.payload }

// Message returns the message of an error datum.
func (d Datum) Message() string { return d.message }

// IsData reports whether d carries a payload.
func (d Datum) IsData() bool { return d.typ == DatumData }

// String renders the datum for logs and test failures.
func (d Datum) String() string {
	switch d.typ {
	case DatumData:
		return fmt.Sprintf("data(%v)", d.payload)
	case DatumError:
		return fmt.Sprintf("error(%q)", d.message)
	default:
		return d.typ.String()
	}
}

// Value returns the payload of d as T. It reports false when d is not
// data or the payload has another type.
func Value[T any](d Datum) (T, bool) {
	var zero T
	if d.typ != DatumData {
		return zero, false
	}
	v, ok := d.payload.(T)
	if !ok {
		return zero, false
	}
	return v, true
}

// MaxStatus returns the dominant type of datums:
// invalid > error > complete > empty > data.
// No datums resolve to data.
func MaxStatus(datums ...Datum) DatumType {
	status := DatumData
	for _, d := range datums {
		if d.typ.priority() > status.priority() {
			status = d.typ
		}
	}
	return status
}
