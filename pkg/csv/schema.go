package csv

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"sync"
)

// fieldSpec binds one struct field to one CSV column, with the
// conversion functions resolved ahead of time so that per-record work
// is a closure call, not a kind switch.
//
// The tag surface is a single `csv` key with comma options:
//
//	Name  string    `csv:"name"`                      // column name
//	Score float64   `csv:"score,required"`            // must be non-empty
//	Tier  string    `csv:"tier,default=standard"`     // value for empty fields
//	Born  time.Time `csv:"born,format=2006-01-02"`    // time layout
//	Ref   string    `csv:"ref,alias=reference|ref_id"` // extra header names
//	Pos   int       `csv:",index=3"`                  // bind by position
//	Tags  []string  `csv:"tags,split=|"`              // multi-value field
//	Note  string    `csv:"note,omitempty"`            // encode zero as empty
//	Skip  string    `csv:"-"`                         // never bound
type fieldSpec struct {
	name     string
	aliases  []string
	index    int // explicit column index, -1 when unset
	fieldIdx int // struct field index
	col      int // resolved column index, -1 when unbound

	required   bool
	omitEmpty  bool
	format     string
	split      string // separator for multi-value fields
	hasDefault bool
	defaultRaw string
	defaultVal reflect.Value // pre-decoded default

	target string // Go type name for error messages

	convert convFunc
	convErr error
	render  renderFunc
	rendErr error
}

// convFunc decodes one raw field into a settable value. raw is never
// empty; empties are resolved by the required/default policy first.
type convFunc func(dst reflect.Value, raw []byte) error

// renderFunc appends one value's CSV representation to dst.
type renderFunc func(dst []byte, src reflect.Value) ([]byte, error)

// structPlan is the conversion program for one struct type bound to one
// header layout. Plans are immutable once built and shared through the
// plan cache.
type structPlan struct {
	typ   reflect.Type
	specs []*fieldSpec // declaration order
	byCol []*fieldSpec // encode column order, nil entries for gaps;
	// only built for positional plans, which are the ones encoders use
}

// cacheKey identifies a struct type bound to a header layout.
type cacheKey struct {
	typ        reflect.Type
	headerHash string
}

// planEntry caches the outcome of a plan build, including failure, so
// repeated binds of a bad type stay cheap.
type planEntry struct {
	plan *structPlan
	err  error
}

var planCache sync.Map // cacheKey -> *planEntry

// planFor returns the cached conversion plan for typ bound to headers.
// A nil headers slice selects positional binding: explicit index tags
// first, the remaining fields in declaration order.
func planFor(typ reflect.Type, headers []string) (*structPlan, error) {
	key := cacheKey{typ: typ, headerHash: hashHeaders(headers)}
	if cached, ok := planCache.Load(key); ok {
		e := cached.(*planEntry)
		return e.plan, e.err
	}
	plan, err := buildPlan(typ, headers)
	planCache.Store(key, &planEntry{plan: plan, err: err})
	return plan, err
}

// hashHeaders produces a stable cache key component from a header
// layout. Different orderings must produce different keys.
func hashHeaders(headers []string) string {
	if headers == nil {
		return "\x00positional"
	}
	return strings.Join(headers, "\x00")
}

func buildPlan(typ reflect.Type, headers []string) (*structPlan, error) {
	if typ.Kind() != reflect.Struct {
		return nil, fmt.Errorf("csv: cannot bind %s: not a struct type", typ)
	}
	var specs []*fieldSpec
	for i := 0; i < typ.NumField(); i++ {
		f := typ.Field(i)
		if f.PkgPath != "" {
			continue // unexported
		}
		spec, err := parseTag(f)
		if err != nil {
			return nil, err
		}
		if spec == nil {
			continue // csv:"-"
		}
		spec.fieldIdx = i
		spec.target = f.Type.String()
		spec.convert, spec.convErr = resolveConvert(f.Type, spec)
		spec.render, spec.rendErr = resolveRender(f.Type, spec)
		if spec.convErr != nil && spec.rendErr != nil {
			return nil, fmt.Errorf("csv: field %s: %w", f.Name, spec.convErr)
		}
		if spec.hasDefault {
			if spec.convErr != nil {
				return nil, fmt.Errorf("csv: field %s: default set but type cannot be decoded: %w", f.Name, spec.convErr)
			}
			dv := reflect.New(f.Type).Elem()
			if err := spec.convert(dv, []byte(spec.defaultRaw)); err != nil {
				return nil, fmt.Errorf("csv: field %s: bad default %q: %w", f.Name, spec.defaultRaw, err)
			}
			spec.defaultVal = dv
		}
		specs = append(specs, spec)
	}
	plan := &structPlan{typ: typ, specs: specs}
	if headers == nil {
		byCol, err := bindPositional(specs)
		if err != nil {
			return nil, err
		}
		plan.byCol = byCol
	} else if err := bindHeaders(specs, headers); err != nil {
		return nil, err
	}
	return plan, nil
}

// parseTag reads the csv struct tag. It returns nil for fields tagged
// with "-".
func parseTag(field reflect.StructField) (*fieldSpec, error) {
	tag := field.Tag.Get("csv")
	if tag == "-" {
		return nil, nil
	}
	spec := &fieldSpec{name: field.Name, index: -1, col: -1}
	if tag == "" {
		return spec, nil
	}
	parts := strings.Split(tag, ",")
	if parts[0] != "" {
		spec.name = parts[0]
	}
	for _, opt := range parts[1:] {
		switch {
		case opt == "required":
			spec.required = true
		case opt == "omitempty":
			spec.omitEmpty = true
		case strings.HasPrefix(opt, "default="):
			spec.hasDefault = true
			spec.defaultRaw = opt[len("default="):]
		case strings.HasPrefix(opt, "format="):
			spec.format = opt[len("format="):]
		case strings.HasPrefix(opt, "split="):
			spec.split = opt[len("split="):]
		case strings.HasPrefix(opt, "index="):
			n, err := strconv.Atoi(opt[len("index="):])
			if err != nil || n < 0 {
				return nil, fmt.Errorf("csv: field %s: bad index option %q", field.Name, opt)
			}
			spec.index = n
		case strings.HasPrefix(opt, "alias="):
			spec.aliases = strings.Split(opt[len("alias="):], "|")
		default:
			return nil, fmt.Errorf("csv: field %s: unknown tag option %q", field.Name, opt)
		}
	}
	return spec, nil
}

// bindPositional assigns columns without a header row: explicit index
// tags claim their columns first, everything else fills left to right
// in declaration order. The returned slice maps columns back to specs,
// with nil entries where an index tag left a gap; encoders render gaps
// as empty fields.
func bindPositional(specs []*fieldSpec) ([]*fieldSpec, error) {
	used := make(map[int]*fieldSpec, len(specs))
	for _, s := range specs {
		if s.index >= 0 {
			if prev, ok := used[s.index]; ok {
				return nil, fmt.Errorf("csv: fields %s and %s bind the same column %d", prev.name, s.name, s.index)
			}
			s.col = s.index
			used[s.index] = s
		}
	}
	next := 0
	maxCol := -1
	for _, s := range specs {
		if s.index < 0 {
			for used[next] != nil {
				next++
			}
			s.col = next
			used[next] = s
		}
		if s.col > maxCol {
			maxCol = s.col
		}
	}
	byCol := make([]*fieldSpec, maxCol+1)
	for _, s := range specs {
		byCol[s.col] = s
	}
	return byCol, nil
}

// bindHeaders matches specs against a header row. Names and aliases
// are compared case-insensitively; the first matching header column
// wins. An index tag overrides name matching entirely.
func bindHeaders(specs []*fieldSpec, headers []string) error {
	byName := make(map[string]int, len(headers))
	for i, h := range headers {
		k := strings.ToLower(h)
		if _, ok := byName[k]; !ok {
			byName[k] = i
		}
	}
	for _, s := range specs {
		if s.index >= 0 {
			s.col = s.index
			continue
		}
		if i, ok := byName[strings.ToLower(s.name)]; ok {
			s.col = i
			continue
		}
		for _, alias := range s.aliases {
			if i, ok := byName[strings.ToLower(alias)]; ok {
				s.col = i
				break
			}
		}
		if s.col < 0 && s.required {
			return fmt.Errorf("csv: required column %q not found in header: %w", s.name, ErrMissingRequired)
		}
	}
	return nil
}

// decode fills dst, a settable struct value, from one record of raw
// fields. recNum is used only for error reporting. With lenient set,
// fields that fail to convert are zeroed and required fields may stay
// empty; the record is never rejected.
func (p *structPlan) decode(dst reflect.Value, record [][]byte, recNum int64, lenient bool) error {
	for _, s := range p.specs {
		if s.col < 0 || s.col >= len(record) {
			if s.hasDefault {
				dst.Field(s.fieldIdx).Set(s.defaultVal)
				continue
			}
			if s.required && !lenient {
				return &ConversionError{Record: recNum, Column: s.name, Target: s.target, Err: ErrMissingRequired}
			}
			continue
		}
		raw := record[s.col]
		if len(raw) == 0 {
			switch {
			case s.hasDefault:
				dst.Field(s.fieldIdx).Set(s.defaultVal)
			case s.required && !lenient:
				return &ConversionError{Record: recNum, Column: s.name, Target: s.target, Err: ErrMissingRequired}
			}
			continue
		}
		if err := s.convert(dst.Field(s.fieldIdx), raw); err != nil {
			if lenient {
				dst.Field(s.fieldIdx).SetZero()
				continue
			}
			return &ConversionError{Record: recNum, Column: s.name, Value: string(raw), Target: s.target, Err: err}
		}
	}
	return nil
}

// encodeOrder returns the specs in output column order. Plans built
// against a header row never encode, so the declaration order fallback
// is just a safety net.
func (p *structPlan) encodeOrder() []*fieldSpec {
	if p.byCol != nil {
		return p.byCol
	}
	return p.specs
}

// headerRow returns the column names in encode order. Gap columns get
// empty names.
func (p *structPlan) headerRow() []string {
	order := p.encodeOrder()
	out := make([]string, len(order))
	for i, s := range order {
		if s != nil {
			out[i] = s.name
		}
	}
	return out
}

// encode appends the rendered fields of src to dst, recording where
// each field ends. The caller slices dst by ends to recover the record.
func (p *structPlan) encode(dst []byte, ends []int, src reflect.Value, recNum int64) ([]byte, []int, error) {
	for _, s := range p.encodeOrder() {
		if s == nil {
			ends = append(ends, len(dst))
			continue
		}
		v := src.Field(s.fieldIdx)
		if !(s.omitEmpty && v.IsZero()) {
			var err error
			dst, err = s.render(dst, v)
			if err != nil {
				return dst, ends, &ConversionError{Record: recNum, Column: s.name, Target: s.target, Err: err}
			}
		}
		ends = append(ends, len(dst))
	}
	return dst, ends, nil
}

// requireDecode verifies that every bound field can be decoded.
func (p *structPlan) requireDecode() error {
	for _, s := range p.specs {
		if s.convErr != nil {
			return fmt.Errorf("csv: field %s: %w", s.name, s.convErr)
		}
	}
	return nil
}

// requireEncode verifies that every bound field can be rendered.
func (p *structPlan) requireEncode() error {
	for _, s := range p.specs {
		if s.rendErr != nil {
			return fmt.Errorf("csv: field %s: %w", s.name, s.rendErr)
		}
	}
	return nil
}
