package csv

import (
	"errors"
	"fmt"
	"reflect"
)

// Marshal returns the CSV encoding of v.
//
// v must be a slice: [][]string renders records verbatim with no header
// row, while a slice of structs (or of pointers to structs) renders a
// header row built from the csv tags followed by one record per
// element. Nil struct pointers are skipped.
//
// Columns appear in field declaration order unless an index tag pins a
// field to a specific column:
//
//	type Point struct {
//	    Name string  `csv:"name"`
//	    X    float64 `csv:"x"`
//	    Y    float64 `csv:"y"`
//	    Tag  string  `csv:"-"`              // never encoded
//	    Note string  `csv:"note,omitempty"` // zero value renders empty
//	}
//
// Pointer fields encode as the value pointed to; nil encodes as an
// empty field. time.Time fields honor a format tag option, defaulting
// to RFC 3339. Types implementing Marshaler or encoding.TextMarshaler
// render through those interfaces.
func Marshal(v any) ([]byte, error) {
	return MarshalWithOptions(v, DefaultWriterOptions())
}

// MarshalWithOptions is Marshal with explicit writer options.
func MarshalWithOptions(v any, opts WriterOptions) ([]byte, error) {
	if records, ok := v.([][]string); ok {
		return marshalRecords(records, opts)
	}

	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return nil, errors.New("csv: Marshal(nil)")
	}
	if rv.Kind() != reflect.Slice {
		return nil, fmt.Errorf("csv: Marshal expects slice, got %s", rv.Type())
	}
	elemType := rv.Type().Elem()
	deref := elemType.Kind() == reflect.Pointer
	if deref {
		elemType = elemType.Elem()
	}
	if elemType.Kind() != reflect.Struct {
		return nil, fmt.Errorf("csv: Marshal expects slice of structs, got slice of %s", rv.Type().Elem())
	}

	buf := getBuffer()
	defer putBuffer(buf)
	w, err := NewWriter(buf, opts)
	if err != nil {
		return nil, err
	}
	enc, err := newPlanEncoder(w, elemType, true)
	if err != nil {
		return nil, err
	}
	for i := 0; i < rv.Len(); i++ {
		row := rv.Index(i)
		if deref {
			if row.IsNil() {
				continue
			}
			row = row.Elem()
		}
		if err := enc.encodeValue(row); err != nil {
			return nil, err
		}
	}
	if err := enc.finish(); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

func marshalRecords(records [][]string, opts WriterOptions) ([]byte, error) {
	buf := getBuffer()
	defer putBuffer(buf)
	w, err := NewWriter(buf, opts)
	if err != nil {
		return nil, err
	}
	if err := w.WriteAll(records); err != nil {
		return nil, err
	}
	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())
	return out, nil
}

// planEncoder renders struct values through a plan into a Writer. It is
// the shared core of Marshal and Encoder.
type planEncoder struct {
	w           *Writer
	plan        *structPlan
	writeHeader bool
	headerDone  bool
	n           int64

	scratch []byte
	ends    []int
	fields  [][]byte
}

func newPlanEncoder(w *Writer, typ reflect.Type, writeHeader bool) (*planEncoder, error) {
	plan, err := planFor(typ, nil)
	if err != nil {
		return nil, err
	}
	if err := plan.requireEncode(); err != nil {
		return nil, err
	}
	return &planEncoder{w: w, plan: plan, writeHeader: writeHeader}, nil
}

// encodeValue writes one record, emitting the header row first when it
// is still pending. rv must be an addressable struct value so pointer
// receiver marshalers work.
func (e *planEncoder) encodeValue(rv reflect.Value) error {
	if !e.headerDone {
		e.headerDone = true
		if e.writeHeader {
			if err := e.w.Write(e.plan.headerRow()); err != nil {
				return err
			}
		}
	}
	e.n++
	var err error
	e.scratch, e.ends, err = e.plan.encode(e.scratch[:0], e.ends[:0], rv, e.n)
	if err != nil {
		return err
	}
	e.fields = e.fields[:0]
	prev := 0
	for _, end := range e.ends {
		e.fields = append(e.fields, e.scratch[prev:end])
		prev = end
	}
	return e.w.WriteBytes(e.fields)
}

// finish writes the header row when no record forced it out, so an
// empty input still produces a valid document, then flushes.
func (e *planEncoder) finish() error {
	if !e.headerDone && e.writeHeader {
		e.headerDone = true
		if err := e.w.Write(e.plan.headerRow()); err != nil {
			return err
		}
	}
	return e.w.Flush()
}

// Encoder writes values of T, a struct type with csv tags, as CSV
// records. It is the writing counterpart to Decoder.
type Encoder[T any] struct {
	enc *planEncoder
}

// NewEncoder returns an encoder that writes a header row built from T's
// csv tags before the first record.
func NewEncoder[T any](w *Writer) (*Encoder[T], error) {
	return newEncoder[T](w, true)
}

// NewEncoderNoHeader returns an encoder that writes records only.
func NewEncoderNoHeader[T any](w *Writer) (*Encoder[T], error) {
	return newEncoder[T](w, false)
}

func newEncoder[T any](w *Writer, writeHeader bool) (*Encoder[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("csv: Encoder needs a struct type, got %s", typ)
	}
	enc, err := newPlanEncoder(w, typ, writeHeader)
	if err != nil {
		return nil, err
	}
	return &Encoder[T]{enc: enc}, nil
}

// Encode writes one record. The header row, when enabled, goes out
// before the first record.
func (e *Encoder[T]) Encode(v T) error {
	return e.enc.encodeValue(reflect.ValueOf(&v).Elem())
}

// EncodeAll writes every element of vs and flushes.
func (e *Encoder[T]) EncodeAll(vs []T) error {
	for i := range vs {
		if err := e.enc.encodeValue(reflect.ValueOf(&vs[i]).Elem()); err != nil {
			return err
		}
	}
	return e.Flush()
}

// Flush forces buffered records down to the underlying writer.
func (e *Encoder[T]) Flush() error {
	return e.enc.w.Flush()
}
