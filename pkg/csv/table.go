package csv

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Table is an in-memory CSV document with access to fields by header
// name. It is the dynamic counterpart to the Decoder: nothing is known
// about the columns until runtime, and values are converted on access
// rather than during parsing.
//
// Setter methods return the Table so construction can be chained:
//
//	t := csv.NewTable().
//		SetHeaders([]string{"name", "age"}).
//		AddRecord([]string{"Alice", "30"})
type Table struct {
	headers []string
	index   map[string]int // lowercase header -> first column
	records [][]string
	conv    *Converters
}

// NewTable creates an empty Table.
func NewTable() *Table {
	return &Table{}
}

// ParseTable parses data into a Table, treating the first record as the
// header row.
func ParseTable(data []byte) (*Table, error) {
	return ParseTableWith(data, DefaultReaderOptions())
}

// ParseTableWith is ParseTable with explicit reader options.
func ParseTableWith(data []byte, opts ReaderOptions) (*Table, error) {
	r, err := newBufReader(data, opts)
	if err != nil {
		return nil, err
	}
	headers, err := r.Headers()
	if err != nil {
		return nil, err
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	t := NewTable().SetHeaders(headers)
	t.records = records
	return t, nil
}

// SetHeaders sets the column names and rebuilds the name index. When
// two columns share a name the first one wins.
func (t *Table) SetHeaders(headers []string) *Table {
	t.headers = headers
	t.index = make(map[string]int, len(headers))
	for i, h := range headers {
		k := strings.ToLower(h)
		if _, ok := t.index[k]; !ok {
			t.index[k] = i
		}
	}
	return t
}

// AddRecord appends one data record.
func (t *Table) AddRecord(fields []string) *Table {
	t.records = append(t.records, fields)
	return t
}

// WithConverters attaches a converter registry consulted by Row.Value.
func (t *Table) WithConverters(c *Converters) *Table {
	t.conv = c
	return t
}

// Headers returns the column names.
func (t *Table) Headers() []string {
	return t.headers
}

// Len returns the number of data records, not counting the header.
func (t *Table) Len() int {
	return len(t.records)
}

// Column returns the index of the named column, or -1 when the table
// has no such column. Matching is case-insensitive.
func (t *Table) Column(name string) int {
	if i, ok := t.index[strings.ToLower(name)]; ok {
		return i
	}
	return -1
}

// Row returns the record at index i. The boolean is false when i is out
// of bounds.
func (t *Table) Row(i int) (Row, bool) {
	if i < 0 || i >= len(t.records) {
		return Row{}, false
	}
	return Row{fields: t.records[i], table: t, num: i}, true
}

// Rows returns every data record as a Row.
func (t *Table) Rows() []Row {
	rows := make([]Row, len(t.records))
	for i, fields := range t.records {
		rows[i] = Row{fields: fields, table: t, num: i}
	}
	return rows
}

// CSV renders the table back to CSV text, headers first when set.
func (t *Table) CSV() (string, error) {
	b, err := t.Render(DefaultWriterOptions())
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Render renders the table with explicit writer options.
func (t *Table) Render(opts WriterOptions) ([]byte, error) {
	var buf bytes.Buffer
	w, err := NewWriter(&buf, opts)
	if err != nil {
		return nil, err
	}
	if len(t.headers) > 0 {
		if err := w.Write(t.headers); err != nil {
			return nil, err
		}
	}
	if err := w.WriteAll(t.records); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Row is one record of a Table with typed access to its fields by
// column name.
type Row struct {
	fields []string
	table  *Table
	num    int // 0-based data record index
}

// Len returns the number of fields in the row.
func (r Row) Len() int {
	return len(r.fields)
}

// Get returns the field at index i. The boolean is false when i is out
// of bounds.
func (r Row) Get(i int) (string, bool) {
	if i < 0 || i >= len(r.fields) {
		return "", false
	}
	return r.fields[i], true
}

// Fields returns a copy of the row's fields.
func (r Row) Fields() []string {
	fields := make([]string, len(r.fields))
	copy(fields, r.fields)
	return fields
}

// String returns the named field, or "" when the column is absent.
func (r Row) String(name string) string {
	v, _ := r.field(name)
	return v
}

// Int parses the named field as a signed integer.
func (r Row) Int(name string) (int64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, r.convErr(name, v, "int64", err)
	}
	return n, nil
}

// Float parses the named field as a float64.
func (r Row) Float(name string) (float64, error) {
	v, err := r.lookup(name)
	if err != nil {
		return 0, err
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, r.convErr(name, v, "float64", err)
	}
	return f, nil
}

// Bool parses the named field as a boolean, accepting the strconv forms
// plus yes/no and on/off.
func (r Row) Bool(name string) (bool, error) {
	v, err := r.lookup(name)
	if err != nil {
		return false, err
	}
	b, err := parseBool(unsafeBytes(v))
	if err != nil {
		return false, r.convErr(name, v, "bool", err)
	}
	return b, nil
}

// Time parses the named field in the given layout. An empty layout
// means time.RFC3339.
func (r Row) Time(name, layout string) (time.Time, error) {
	v, err := r.lookup(name)
	if err != nil {
		return time.Time{}, err
	}
	if layout == "" {
		layout = time.RFC3339
	}
	t, err := time.Parse(layout, v)
	if err != nil {
		return time.Time{}, r.convErr(name, v, "time.Time", err)
	}
	return t, nil
}

// UUID parses the named field as an RFC 4122 UUID.
func (r Row) UUID(name string) (uuid.UUID, error) {
	v, err := r.lookup(name)
	if err != nil {
		return uuid.UUID{}, err
	}
	u, err := uuid.Parse(v)
	if err != nil {
		return uuid.UUID{}, r.convErr(name, v, "uuid.UUID", err)
	}
	return u, nil
}

// Value converts the named field with the converter registered for that
// column, falling back to the raw string when none is registered.
func (r Row) Value(name string) (any, error) {
	v, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	fn, ok := r.table.conv.lookup(name)
	if !ok {
		return v, nil
	}
	out, err := fn(unsafeBytes(v))
	if err != nil {
		return nil, r.convErr(name, v, "converter", err)
	}
	return out, nil
}

func (r Row) field(name string) (string, bool) {
	if r.table == nil {
		return "", false
	}
	i := r.table.Column(name)
	if i < 0 || i >= len(r.fields) {
		return "", false
	}
	return r.fields[i], true
}

func (r Row) lookup(name string) (string, error) {
	v, ok := r.field(name)
	if !ok {
		return "", fmt.Errorf("csv: no column %q", name)
	}
	return v, nil
}

func (r Row) convErr(name, value, target string, err error) error {
	return &ConversionError{
		Record: int64(r.num + 1),
		Column: name,
		Value:  value,
		Target: target,
		Err:    err,
	}
}
