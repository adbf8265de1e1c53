package csv

import (
	"errors"
	"fmt"
	"io"
	"reflect"
)

// Unmarshal parses the CSV-encoded data and stores the result in the
// value pointed to by v.
//
// Two target types are supported:
//
// 1. *[][]string receives the raw records, header row included:
//
//	var records [][]string
//	err := csv.Unmarshal(data, &records)
//
// 2. A pointer to a slice of structs maps columns to fields using the
// first record as the header row:
//
//	type Person struct {
//	    Name string `csv:"name"`
//	    Age  int    `csv:"age"`
//	}
//	var people []Person
//	err := csv.Unmarshal(data, &people)
//
// Struct fields bind to columns by tag name, then by field name,
// case-insensitively. See the csv tag reference on Decoder for the
// full option list (required, default, format, index, alias,
// omitempty). Columns without a matching field are ignored; fields
// without a matching column keep their zero value.
func Unmarshal(data []byte, v any) error {
	return UnmarshalWithOptions(data, v, DefaultReaderOptions())
}

// UnmarshalWithOptions is Unmarshal with explicit reader options.
//
// The mode applies to conversion as well as parsing: ModeCollect drops
// records whose fields fail to convert, and ModeLenient zeroes the
// failing fields instead. Use a Decoder when the per-record errors
// matter.
func UnmarshalWithOptions(data []byte, v any, opts ReaderOptions) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return errors.New("csv: Unmarshal(nil)")
	}
	if rv.Kind() != reflect.Pointer {
		return errors.New("csv: Unmarshal(non-pointer " + rv.Type().String() + ")")
	}
	if rv.IsNil() {
		return errors.New("csv: Unmarshal(nil " + rv.Type().String() + ")")
	}
	elem := rv.Elem()
	if elem.Kind() != reflect.Slice {
		return errors.New("csv: Unmarshal expects pointer to slice, got " + elem.Type().String())
	}
	elemType := elem.Type().Elem()

	// Raw records take the fast path with no reflection per row.
	if elemType.Kind() == reflect.Slice && elemType.Elem().Kind() == reflect.String {
		records, err := ParseWithOptions(data, opts)
		if err != nil {
			return err
		}
		if records == nil {
			records = [][]string{}
		}
		elem.Set(reflect.ValueOf(records))
		return nil
	}

	if elemType.Kind() != reflect.Struct {
		return errors.New("csv: Unmarshal expects [][]string or a slice of structs, got slice of " + elemType.String())
	}

	r, err := newBufReader(data, opts)
	if err != nil {
		return err
	}
	headers, err := r.Headers()
	if errors.Is(err, io.EOF) {
		elem.Set(reflect.MakeSlice(elem.Type(), 0, 0))
		return nil
	}
	if err != nil {
		return err
	}
	plan, err := planFor(elemType, headers)
	if err != nil {
		return err
	}
	if err := plan.requireDecode(); err != nil {
		return err
	}

	lenient := opts.Mode == ModeLenient
	result := reflect.MakeSlice(elem.Type(), 0, 16)
	sv := reflect.New(elemType).Elem()
	for {
		rec, err := r.ReadBytes()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		sv.SetZero()
		if err := plan.decode(sv, rec, r.recNum, lenient); err != nil {
			if opts.Mode == ModeCollect {
				continue
			}
			return err
		}
		result = reflect.Append(result, sv)
	}
	elem.Set(result)
	return nil
}

// Decoder reads records from a Reader and converts each one into a
// value of T, a struct type whose fields carry csv tags.
//
// The reader's mode shapes conversion error handling:
//
//   - ModeStrict: Decode returns the first conversion error.
//   - ModeCollect: Decode skips the failing record, saves the error for
//     Errs, and moves on to the next record.
//   - ModeLenient: failing fields are zeroed and the record is kept.
type Decoder[T any] struct {
	r    *Reader
	plan *structPlan
	errs []error
}

// NewDecoder reads the header row from r and binds T's fields to its
// columns.
func NewDecoder[T any](r *Reader) (*Decoder[T], error) {
	headers, err := r.Headers()
	if err != nil {
		return nil, err
	}
	return newDecoder[T](r, headers)
}

// NewDecoderNoHeader binds T's fields positionally for input without a
// header row: fields tagged index=n claim their columns, the rest fill
// left to right in declaration order.
func NewDecoderNoHeader[T any](r *Reader) (*Decoder[T], error) {
	return newDecoder[T](r, nil)
}

func newDecoder[T any](r *Reader, headers []string) (*Decoder[T], error) {
	typ := reflect.TypeOf((*T)(nil)).Elem()
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("csv: Decoder needs a struct type, got %s", typ)
	}
	plan, err := planFor(typ, headers)
	if err != nil {
		return nil, err
	}
	if err := plan.requireDecode(); err != nil {
		return nil, err
	}
	return &Decoder[T]{r: r, plan: plan}, nil
}

// Decode returns the next record as a value of T. It returns io.EOF
// when the input is exhausted.
func (d *Decoder[T]) Decode() (T, error) {
	var v T
	rv := reflect.ValueOf(&v).Elem()
	for {
		rec, err := d.r.ReadBytes()
		if err != nil {
			return v, err
		}
		err = d.plan.decode(rv, rec, d.r.recNum, d.r.opts.Mode == ModeLenient)
		if err == nil {
			return v, nil
		}
		if d.r.opts.Mode == ModeCollect {
			d.errs = append(d.errs, err)
			rv.SetZero()
			continue
		}
		return v, err
	}
}

// DecodeAll returns every remaining record. Unlike a one-shot helper it
// can be called after Decode; it picks up wherever the decoder stopped.
func (d *Decoder[T]) DecodeAll() ([]T, error) {
	var out []T
	for {
		v, err := d.Decode()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// Errs returns the conversion errors collected so far in ModeCollect,
// one per skipped record. Parse-level errors live on the Reader's Errs.
func (d *Decoder[T]) Errs() []error {
	return d.errs
}
