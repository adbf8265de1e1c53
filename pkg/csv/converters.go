package csv

import (
	"bytes"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Common layouts for the date and time converters.
const (
	LayoutDate     = "2006-01-02"
	LayoutTime     = "15:04:05"
	LayoutDateTime = "2006-01-02 15:04:05"
)

// ConverterFunc converts one raw field into a typed Go value. The raw
// bytes are views into the parsed buffer; implementations that retain
// them must copy.
type ConverterFunc func(raw []byte) (any, error)

// Converters maps column names to converter functions for the dynamic
// Table path. Column names are matched case-insensitively, the same way
// headers bind to struct fields. The zero value is empty and usable.
type Converters struct {
	byColumn map[string]ConverterFunc
}

// NewConverters returns an empty registry.
func NewConverters() *Converters {
	return &Converters{}
}

// Register binds a converter to a column name. It returns the registry
// so registrations can be chained.
func (c *Converters) Register(column string, fn ConverterFunc) *Converters {
	if c.byColumn == nil {
		c.byColumn = make(map[string]ConverterFunc)
	}
	c.byColumn[strings.ToLower(column)] = fn
	return c
}

func (c *Converters) lookup(column string) (ConverterFunc, bool) {
	if c == nil || c.byColumn == nil {
		return nil, false
	}
	fn, ok := c.byColumn[strings.ToLower(column)]
	return fn, ok
}

// IntConverter parses signed integers in the given base. Base 0 means
// base 10, not the auto-detecting strconv behavior.
func IntConverter(base int) ConverterFunc {
	if base == 0 {
		base = 10
	}
	return func(raw []byte) (any, error) {
		return strconv.ParseInt(unsafeString(bytes.TrimSpace(raw)), base, 64)
	}
}

// FloatConverter parses float64 values.
func FloatConverter() ConverterFunc {
	return func(raw []byte) (any, error) {
		return strconv.ParseFloat(unsafeString(bytes.TrimSpace(raw)), 64)
	}
}

// BoolConverter parses booleans. It recognizes the strconv forms plus
// yes/no and on/off, case-insensitively.
func BoolConverter() ConverterFunc {
	return func(raw []byte) (any, error) {
		return parseBool(bytes.TrimSpace(raw))
	}
}

// TimeConverter parses timestamps in the given layout and location.
// An empty layout means LayoutDateTime; a nil location means UTC.
func TimeConverter(layout string, loc *time.Location) ConverterFunc {
	if layout == "" {
		layout = LayoutDateTime
	}
	if loc == nil {
		loc = time.UTC
	}
	return func(raw []byte) (any, error) {
		return time.ParseInLocation(layout, unsafeString(bytes.TrimSpace(raw)), loc)
	}
}

// UUIDConverter parses RFC 4122 UUIDs.
func UUIDConverter() ConverterFunc {
	return func(raw []byte) (any, error) {
		return uuid.ParseBytes(bytes.TrimSpace(raw))
	}
}

// DefaultNullValues are the markers NullableConverter treats as nil
// when no explicit set is given.
var DefaultNullValues = []string{"", "NULL", "null", "nil", "N/A", "n/a", "NA", "na", "-"}

// NullableConverter wraps another converter, mapping null markers to a
// nil value instead of a conversion error.
func NullableConverter(inner ConverterFunc, nullValues ...string) ConverterFunc {
	markers := nullValues
	if len(markers) == 0 {
		markers = DefaultNullValues
	}
	return func(raw []byte) (any, error) {
		for _, m := range markers {
			if string(raw) == m {
				return nil, nil
			}
		}
		return inner(raw)
	}
}

var inferLayouts = []string{time.RFC3339, LayoutDateTime, LayoutDate}

// InferValue guesses the type of a raw field: bool, int64, float64 or
// time.Time in a common layout, falling back to string.
func InferValue(raw []byte) any {
	v := bytes.TrimSpace(raw)
	if len(v) == 0 {
		return string(raw)
	}
	if bytes.EqualFold(v, []byte("true")) {
		return true
	}
	if bytes.EqualFold(v, []byte("false")) {
		return false
	}
	if i, err := strconv.ParseInt(unsafeString(v), 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(unsafeString(v), 64); err == nil {
		return f
	}
	for _, layout := range inferLayouts {
		if t, err := time.Parse(layout, unsafeString(v)); err == nil {
			return t
		}
	}
	return string(raw)
}
