package csv

import (
	"bytes"
	"encoding"
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Unmarshaler is implemented by types that decode themselves from a raw
// CSV field. The field bytes are only valid for the duration of the
// call; implementations that retain them must copy.
type Unmarshaler interface {
	UnmarshalCSV([]byte) error
}

// Marshaler is implemented by types that render themselves as a raw CSV
// field. Quoting is applied by the writer afterwards, so the returned
// bytes may contain delimiters or quotes.
type Marshaler interface {
	MarshalCSV() ([]byte, error)
}

// MultiValueSeparator is the default separator for []string fields,
// overridable per field with the split tag option.
const MultiValueSeparator = "|"

var (
	unmarshalerType     = reflect.TypeOf((*Unmarshaler)(nil)).Elem()
	marshalerType       = reflect.TypeOf((*Marshaler)(nil)).Elem()
	textUnmarshalerType = reflect.TypeOf((*encoding.TextUnmarshaler)(nil)).Elem()
	textMarshalerType   = reflect.TypeOf((*encoding.TextMarshaler)(nil)).Elem()
	timeType            = reflect.TypeOf(time.Time{})
	durationType        = reflect.TypeOf(time.Duration(0))
	uuidType            = reflect.TypeOf(uuid.UUID{})
	byteSliceType       = reflect.TypeOf([]byte(nil))
	stringSliceType     = reflect.TypeOf([]string(nil))
)

// resolveConvert picks the decode function for a non-pointer field
// type. Pointer fields are unwrapped by the caller-facing entry below,
// so interface checks only ever look at T and *T. Interface
// implementations win over the built-in paths so user types can take
// over their own parsing. time.Time and uuid.UUID are matched before
// the TextUnmarshaler fallback: time needs the per-field layout and
// uuid.ParseBytes avoids the reflection round trip.
func resolveConvert(typ reflect.Type, spec *fieldSpec) (convFunc, error) {
	if typ.Kind() == reflect.Pointer {
		inner, err := resolveConvert(typ.Elem(), spec)
		if err != nil {
			return nil, err
		}
		elem := typ.Elem()
		return func(dst reflect.Value, raw []byte) error {
			if dst.IsNil() {
				dst.Set(reflect.New(elem))
			}
			return inner(dst.Elem(), raw)
		}, nil
	}

	// Methods live on T or *T; dst is always addressable here, so the
	// *T method set covers both receiver forms.
	if reflect.PointerTo(typ).Implements(unmarshalerType) {
		return func(dst reflect.Value, raw []byte) error {
			return dst.Addr().Interface().(Unmarshaler).UnmarshalCSV(raw)
		}, nil
	}

	switch typ {
	case timeType:
		layout := spec.format
		if layout == "" {
			layout = time.RFC3339
		}
		return func(dst reflect.Value, raw []byte) error {
			t, err := time.Parse(layout, unsafeString(raw))
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(t))
			return nil
		}, nil
	case durationType:
		return func(dst reflect.Value, raw []byte) error {
			d, err := time.ParseDuration(unsafeString(raw))
			if err != nil {
				return err
			}
			dst.SetInt(int64(d))
			return nil
		}, nil
	case uuidType:
		return func(dst reflect.Value, raw []byte) error {
			u, err := uuid.ParseBytes(raw)
			if err != nil {
				return err
			}
			dst.Set(reflect.ValueOf(u))
			return nil
		}, nil
	case byteSliceType:
		return func(dst reflect.Value, raw []byte) error {
			dst.SetBytes(append([]byte(nil), raw...))
			return nil
		}, nil
	case stringSliceType:
		sep := spec.split
		if sep == "" {
			sep = MultiValueSeparator
		}
		return func(dst reflect.Value, raw []byte) error {
			dst.Set(reflect.ValueOf(strings.Split(string(raw), sep)))
			return nil
		}, nil
	}

	if reflect.PointerTo(typ).Implements(textUnmarshalerType) {
		return func(dst reflect.Value, raw []byte) error {
			return dst.Addr().Interface().(encoding.TextUnmarshaler).UnmarshalText(raw)
		}, nil
	}

	switch typ.Kind() {
	case reflect.String:
		return func(dst reflect.Value, raw []byte) error {
			dst.SetString(string(raw))
			return nil
		}, nil
	case reflect.Bool:
		return func(dst reflect.Value, raw []byte) error {
			b, err := parseBool(raw)
			if err != nil {
				return err
			}
			dst.SetBool(b)
			return nil
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		bits := typ.Bits()
		return func(dst reflect.Value, raw []byte) error {
			n, err := strconv.ParseInt(unsafeString(raw), 10, bits)
			if err != nil {
				return err
			}
			dst.SetInt(n)
			return nil
		}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		bits := typ.Bits()
		return func(dst reflect.Value, raw []byte) error {
			n, err := strconv.ParseUint(unsafeString(raw), 10, bits)
			if err != nil {
				return err
			}
			dst.SetUint(n)
			return nil
		}, nil
	case reflect.Float32, reflect.Float64:
		bits := typ.Bits()
		return func(dst reflect.Value, raw []byte) error {
			f, err := strconv.ParseFloat(unsafeString(raw), bits)
			if err != nil {
				return err
			}
			dst.SetFloat(f)
			return nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported field type %s", typ)
}

// resolveRender picks the encode function for a field type, mirroring
// resolveConvert's precedence. A nil pointer renders as an empty field.
func resolveRender(typ reflect.Type, spec *fieldSpec) (renderFunc, error) {
	if typ.Kind() == reflect.Pointer {
		inner, err := resolveRender(typ.Elem(), spec)
		if err != nil {
			return nil, err
		}
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			if src.IsNil() {
				return dst, nil
			}
			return inner(dst, src.Elem())
		}, nil
	}

	if reflect.PointerTo(typ).Implements(marshalerType) {
		byValue := typ.Implements(marshalerType)
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			if !byValue {
				src = src.Addr()
			}
			b, err := src.Interface().(Marshaler).MarshalCSV()
			if err != nil {
				return dst, err
			}
			return append(dst, b...), nil
		}, nil
	}

	switch typ {
	case timeType:
		layout := spec.format
		if layout == "" {
			layout = time.RFC3339
		}
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			t := src.Interface().(time.Time)
			return t.AppendFormat(dst, layout), nil
		}, nil
	case durationType:
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return append(dst, time.Duration(src.Int()).String()...), nil
		}, nil
	case uuidType:
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			u := src.Interface().(uuid.UUID)
			return append(dst, u.String()...), nil
		}, nil
	case byteSliceType:
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return append(dst, src.Bytes()...), nil
		}, nil
	case stringSliceType:
		sep := spec.split
		if sep == "" {
			sep = MultiValueSeparator
		}
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return append(dst, strings.Join(src.Interface().([]string), sep)...), nil
		}, nil
	}

	if reflect.PointerTo(typ).Implements(textMarshalerType) {
		byValue := typ.Implements(textMarshalerType)
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			if !byValue {
				src = src.Addr()
			}
			b, err := src.Interface().(encoding.TextMarshaler).MarshalText()
			if err != nil {
				return dst, err
			}
			return append(dst, b...), nil
		}, nil
	}

	switch typ.Kind() {
	case reflect.String:
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return append(dst, src.String()...), nil
		}, nil
	case reflect.Bool:
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return strconv.AppendBool(dst, src.Bool()), nil
		}, nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return strconv.AppendInt(dst, src.Int(), 10), nil
		}, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return strconv.AppendUint(dst, src.Uint(), 10), nil
		}, nil
	case reflect.Float32, reflect.Float64:
		bits := typ.Bits()
		return func(dst []byte, src reflect.Value) ([]byte, error) {
			return strconv.AppendFloat(dst, src.Float(), 'g', -1, bits), nil
		}, nil
	}
	return nil, fmt.Errorf("unsupported field type %s", typ)
}

// parseBool accepts the strconv forms plus yes/no and on/off, case
// insensitively.
func parseBool(raw []byte) (bool, error) {
	if b, err := strconv.ParseBool(unsafeString(raw)); err == nil {
		return b, nil
	}
	switch {
	case bytes.EqualFold(raw, []byte("yes")), bytes.EqualFold(raw, []byte("y")), bytes.EqualFold(raw, []byte("on")):
		return true, nil
	case bytes.EqualFold(raw, []byte("no")), bytes.EqualFold(raw, []byte("n")), bytes.EqualFold(raw, []byte("off")):
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}
