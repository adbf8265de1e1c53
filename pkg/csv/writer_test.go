package csv

import (
	"errors"
	"reflect"
	"strings"
	"testing"
)

// TestWriterQuoting tests the per-field quoting decision and quote
// doubling.
func TestWriterQuoting(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{
			name:  "plain",
			field: "abc",
			want:  "abc",
		},
		{
			name:  "embedded delimiter",
			field: "a,b",
			want:  "\"a,b\"",
		},
		{
			name:  "embedded quote",
			field: `a"b`,
			want:  `"a""b"`,
		},
		{
			name:  "quote and delimiter",
			field: `a"b,c`,
			want:  `"a""b,c"`,
		},
		{
			name:  "embedded newline",
			field: "a\nb",
			want:  "\"a\nb\"",
		},
		{
			name:  "embedded carriage return",
			field: "a\rb",
			want:  "\"a\rb\"",
		},
		{
			name:  "leading space",
			field: " a",
			want:  "\" a\"",
		},
		{
			name:  "leading tab",
			field: "\ta",
			want:  "\"\ta\"",
		},
		{
			name:  "trailing space stays bare",
			field: "a ",
			want:  "a ",
		},
		{
			name:  "only quotes",
			field: `""`,
			want:  `""""""`,
		},
		{
			name:  "non-ascii stays bare",
			field: "héllo wörld",
			want:  "héllo wörld",
		},
		{
			name:  "non-ascii with delimiter",
			field: "héllo, wörld",
			want:  "\"héllo, wörld\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			w, err := NewWriter(&sb, DefaultWriterOptions())
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			if err := w.Write([]string{tt.field, "x"}); err != nil {
				t.Fatalf("Write: %v", err)
			}
			if err := w.Flush(); err != nil {
				t.Fatalf("Flush: %v", err)
			}
			if got, want := sb.String(), tt.want+",x\n"; got != want {
				t.Errorf("output = %q, want %q", got, want)
			}
		})
	}
}

// TestWriterRecords tests record assembly across several Write shapes.
func TestWriterRecords(t *testing.T) {
	tests := []struct {
		name    string
		records [][]string
		opts    WriterOptions
		want    string
	}{
		{
			name:    "two records",
			records: [][]string{{"a", "b"}, {"c", "d"}},
			want:    "a,b\nc,d\n",
		},
		{
			name:    "empty fields stay bare between delimiters",
			records: [][]string{{"a", "", "c"}, {"", "", ""}},
			want:    "a,,c\n,,\n",
		},
		{
			name:    "lone empty field is quoted",
			records: [][]string{{""}},
			want:    "\"\"\n",
		},
		{
			name:    "crlf terminator",
			records: [][]string{{"a", "b"}, {"c", "d"}},
			opts:    WriterOptions{UseCRLF: true},
			want:    "a,b\r\nc,d\r\n",
		},
		{
			name:    "always quote",
			records: [][]string{{"a", "", "c"}},
			opts:    WriterOptions{AlwaysQuote: true},
			want:    "\"a\",\"\",\"c\"\n",
		},
		{
			name:    "semicolon delimiter",
			records: [][]string{{"a,b", "c;d"}},
			opts:    WriterOptions{Comma: ';'},
			want:    "a,b;\"c;d\"\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var sb strings.Builder
			w, err := NewWriter(&sb, tt.opts)
			if err != nil {
				t.Fatalf("NewWriter: %v", err)
			}
			if err := w.WriteAll(tt.records); err != nil {
				t.Fatalf("WriteAll: %v", err)
			}
			if got := sb.String(); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestWriterWriteBytes tests the raw byte-field path used by the
// encoder.
func TestWriterWriteBytes(t *testing.T) {
	var sb strings.Builder
	w, err := NewWriter(&sb, DefaultWriterOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	rec := [][]byte{[]byte("a"), []byte("b,c"), nil}
	if err := w.WriteBytes(rec); err != nil {
		t.Fatalf("WriteBytes: %v", err)
	}
	if err := w.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	if got, want := sb.String(), "a,\"b,c\",\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
}

// TestWriterRoundTrip tests that written documents parse back to the
// original records.
func TestWriterRoundTrip(t *testing.T) {
	records := [][]string{
		{"name", "note"},
		{"Ada", "said \"hi\""},
		{"Bob", "line one\nline two"},
		{" padded", "trailing "},
		{"", ""},
		{"commas,everywhere", "plain"},
	}

	var sb strings.Builder
	w, err := NewWriter(&sb, DefaultWriterOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}

	got, err := Parse([]byte(sb.String()))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", got, records)
	}
}

// TestWriterCommaSeq tests writing with a multi-byte delimiter and that
// the output survives a round trip under the matching reader option.
func TestWriterCommaSeq(t *testing.T) {
	opts := DefaultWriterOptions()
	opts.CommaSeq = "||"

	var sb strings.Builder
	w, err := NewWriter(&sb, opts)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	records := [][]string{
		{"a", "b|c", "d||e"},
		{"x", "", "z"},
	}
	if err := w.WriteAll(records); err != nil {
		t.Fatalf("WriteAll: %v", err)
	}
	if got, want := sb.String(), "a||b|c||\"d||e\"\nx||||z\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}

	ropts := DefaultReaderOptions()
	ropts.CommaSeq = "||"
	got, err := ParseWithOptions([]byte(sb.String()), ropts)
	if err != nil {
		t.Fatalf("ParseWithOptions: %v", err)
	}
	if !reflect.DeepEqual(got, records) {
		t.Errorf("round trip mismatch:\n got %q\nwant %q", got, records)
	}
}

// failWriter fails every write after the first n bytes.
type failWriter struct {
	n int
}

func (w *failWriter) Write(p []byte) (int, error) {
	if w.n <= 0 {
		return 0, errors.New("sink closed")
	}
	if len(p) > w.n {
		p = p[:w.n]
	}
	w.n -= len(p)
	return len(p), nil
}

// TestWriterError tests that sink errors surface through Flush and
// stick on Error.
func TestWriterError(t *testing.T) {
	w, err := NewWriter(&failWriter{n: 4}, DefaultWriterOptions())
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	if err := w.Write([]string{"abcdefgh", "ijk"}); err != nil {
		// Buffered writes may not hit the sink yet.
		t.Logf("Write returned early error: %v", err)
	}
	if err := w.Flush(); err == nil {
		t.Fatal("Flush error = nil, want sink error")
	}
	if err := w.Error(); err == nil {
		t.Fatal("Error() = nil, want sink error")
	}
}

// TestWriterOptionsValidate tests that bad writer options are rejected
// at construction.
func TestWriterOptionsValidate(t *testing.T) {
	var sb strings.Builder
	if _, err := NewWriter(&sb, WriterOptions{Comma: '\n'}); err == nil {
		t.Error("NewWriter with newline delimiter: error = nil, want OptionsError")
	}
	if _, err := NewWriter(&sb, WriterOptions{Comma: '"', Quote: '"'}); err == nil {
		t.Error("NewWriter with delimiter equal to quote: error = nil, want OptionsError")
	}
}
