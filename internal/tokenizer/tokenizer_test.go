package tokenizer

import (
	"errors"
	"reflect"
	"testing"

	"github.com/shapestone/streamcsv/internal/simd"
)

// collect scans every record from input presented as one complete
// window, decoding each field into a string.
func collect(t *testing.T, m *Machine, input string) [][]string {
	t.Helper()
	var records [][]string
	window := []byte(input)
	for {
		n, res, err := m.Next(window, true)
		if err != nil {
			t.Fatalf("Next(%q): unexpected error: %v", window, err)
		}
		if res == EOF {
			return records
		}
		rec := make([]string, m.Len())
		for i := range rec {
			rec[i] = string(m.FieldBytes(window, i))
		}
		records = append(records, rec)
		window = window[n:]
	}
}

// collectChunked feeds input to the machine chunk bytes at a time,
// stitching unconsumed tails onto fresh data the way the streaming
// reader does.
func collectChunked(t *testing.T, m *Machine, input string, chunk int) [][]string {
	t.Helper()
	var records [][]string
	var window []byte
	rest := []byte(input)
	for {
		atEOF := len(rest) == 0
		n, res, err := m.Next(window, atEOF)
		if err != nil {
			t.Fatalf("chunk size %d: Next(%q): unexpected error: %v", chunk, window, err)
		}
		switch res {
		case Record:
			rec := make([]string, m.Len())
			for i := range rec {
				rec[i] = string(m.FieldBytes(window, i))
			}
			records = append(records, rec)
			window = window[n:]
		case NeedMore:
			if atEOF {
				t.Fatalf("chunk size %d: NeedMore with no input left", chunk)
			}
			take := chunk
			if take > len(rest) {
				take = len(rest)
			}
			stitched := make([]byte, 0, len(window)-n+take)
			stitched = append(stitched, window[n:]...)
			stitched = append(stitched, rest[:take]...)
			window = stitched
			rest = rest[take:]
		case EOF:
			return records
		}
	}
}

// TestMachine_Records tests plain field and record splitting.
func TestMachine_Records(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "single field",
			input: "a\n",
			want:  [][]string{{"a"}},
		},
		{
			name:  "three fields",
			input: "a,b,c\n",
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name:  "two records",
			input: "a,b\nc,d\n",
			want:  [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:  "no trailing newline",
			input: "a,b",
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "empty middle field",
			input: "a,,c\n",
			want:  [][]string{{"a", "", "c"}},
		},
		{
			name:  "empty leading field",
			input: ",b,c\n",
			want:  [][]string{{"", "b", "c"}},
		},
		{
			name:  "empty trailing field",
			input: "a,b,\n",
			want:  [][]string{{"a", "b", ""}},
		},
		{
			name:  "trailing delimiter at end of input",
			input: "a,",
			want:  [][]string{{"a", ""}},
		},
		{
			name:  "only delimiters",
			input: ",,\n",
			want:  [][]string{{"", "", ""}},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "blank lines only",
			input: "\n\n\n",
			want:  nil,
		},
		{
			name:  "multibyte content",
			input: "héllo,wörld\n",
			want:  [][]string{{"héllo", "wörld"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			got := collect(t, m, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records mismatch:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

// TestMachine_QuotedFields tests quote stripping and escape decoding.
func TestMachine_QuotedFields(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "quoted pair",
			input: "\"a\",\"b\"\n",
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "delimiter inside quotes",
			input: "\"a,b\",c\n",
			want:  [][]string{{"a,b", "c"}},
		},
		{
			name:  "newline inside quotes",
			input: "\"a\nb\",c\n",
			want:  [][]string{{"a\nb", "c"}},
		},
		{
			name:  "carriage return pair inside quotes",
			input: "\"a\r\nb\"\n",
			want:  [][]string{{"a\r\nb"}},
		},
		{
			name:  "doubled quote",
			input: "\"say \"\"hi\"\"\",x\n",
			want:  [][]string{{"say \"hi\"", "x"}},
		},
		{
			name:  "field of one literal quote",
			input: "\"\"\"\"\n",
			want:  [][]string{{"\""}},
		},
		{
			name:  "adjacent doubled quotes",
			input: "\"a\"\"\"\"b\"\n",
			want:  [][]string{{"a\"\"b"}},
		},
		{
			name:  "empty quoted field",
			input: "\"\",x\n",
			want:  [][]string{{"", "x"}},
		},
		{
			name:  "quoted at end of input",
			input: "x,\"tail\"",
			want:  [][]string{{"x", "tail"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			got := collect(t, m, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records mismatch:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

// TestMachine_LineEndings tests LF, CRLF, and bare CR terminators plus
// the reported line ending.
func TestMachine_LineEndings(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    [][]string
		wantEOL string
	}{
		{
			name:    "LF",
			input:   "a\nb\n",
			want:    [][]string{{"a"}, {"b"}},
			wantEOL: "\n",
		},
		{
			name:    "CRLF",
			input:   "a\r\nb\r\n",
			want:    [][]string{{"a"}, {"b"}},
			wantEOL: "\r\n",
		},
		{
			name:    "bare CR",
			input:   "a\rb\r",
			want:    [][]string{{"a"}, {"b"}},
			wantEOL: "\r",
		},
		{
			name:    "mixed endings report the first",
			input:   "a\r\nb\nc\r",
			want:    [][]string{{"a"}, {"b"}, {"c"}},
			wantEOL: "\r\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			got := collect(t, m, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records mismatch:\n got %q\nwant %q", got, tt.want)
			}
			if m.EOL() != tt.wantEOL {
				t.Errorf("EOL() = %q, want %q", m.EOL(), tt.wantEOL)
			}
		})
	}
}

// TestMachine_CommentsAndBlankLines tests line skipping between records.
func TestMachine_CommentsAndBlankLines(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		comment byte
		want    [][]string
	}{
		{
			name:    "leading comment",
			input:   "# heading\na,b\n",
			comment: '#',
			want:    [][]string{{"a", "b"}},
		},
		{
			name:    "comment between records",
			input:   "a,b\n# note\nc,d\n",
			comment: '#',
			want:    [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:    "comment without trailing newline",
			input:   "a,b\n# eof",
			comment: '#',
			want:    [][]string{{"a", "b"}},
		},
		{
			name:    "comment byte inside a field is data",
			input:   "a,#b\n",
			comment: '#',
			want:    [][]string{{"a", "#b"}},
		},
		{
			name:    "no comment byte configured",
			input:   "#a,b\n",
			comment: 0,
			want:    [][]string{{"#a", "b"}},
		},
		{
			name:    "blank lines around records",
			input:   "\n\na,b\n\nc,d\n\n",
			comment: 0,
			want:    [][]string{{"a", "b"}, {"c", "d"}},
		},
		{
			name:    "blank CRLF lines",
			input:   "\r\na,b\r\n\r\nc,d\r\n",
			comment: 0,
			want:    [][]string{{"a", "b"}, {"c", "d"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			m.Comment = tt.comment
			got := collect(t, m, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records mismatch:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

// TestMachine_TrimLeadingSpace tests space and tab trimming at field
// starts.
func TestMachine_TrimLeadingSpace(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "spaces and tabs before fields",
			input: "  a, \tb,c\n",
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name:  "trailing spaces are kept",
			input: "a , b \n",
			want:  [][]string{{"a ", "b "}},
		},
		{
			name:  "spaces before a quoted field",
			input: "  \"a b\",c\n",
			want:  [][]string{{"a b", "c"}},
		},
		{
			name:  "field of only spaces becomes empty",
			input: "a,   \n",
			want:  [][]string{{"a", ""}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			m.TrimLeadingSpace = true
			got := collect(t, m, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records mismatch:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

// TestMachine_CustomDelimiters tests non-comma delimiter bytes.
func TestMachine_CustomDelimiters(t *testing.T) {
	tests := []struct {
		name  string
		delim byte
		input string
		want  [][]string
	}{
		{
			name:  "semicolon",
			delim: ';',
			input: "a;b;c\n",
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name:  "tab",
			delim: '\t',
			input: "a\tb\n",
			want:  [][]string{{"a", "b"}},
		},
		{
			name:  "comma is plain data under semicolon",
			input: "a,b;c\n",
			delim: ';',
			want:  [][]string{{"a,b", "c"}},
		},
		{
			name:  "pipe with quoting",
			delim: '|',
			input: "\"a|b\"|c\n",
			want:  [][]string{{"a|b", "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(tt.delim, '"')
			got := collect(t, m, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records mismatch:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

// TestMachine_DelimSeq tests the multi-byte delimiter fallback.
func TestMachine_DelimSeq(t *testing.T) {
	tests := []struct {
		name    string
		seq     string
		lenient bool
		trim    bool
		input   string
		want    [][]string
	}{
		{
			name:  "double pipe",
			seq:   "||",
			input: "a||b||c\n",
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name:  "lone sequence byte is data",
			seq:   "||",
			input: "a|b||c\n",
			want:  [][]string{{"a|b", "c"}},
		},
		{
			name:  "empty fields",
			seq:   "||",
			input: "a||||b\n||\n",
			want:  [][]string{{"a", "", "b"}, {"", ""}},
		},
		{
			name:  "trailing sequence at end of input",
			seq:   "||",
			input: "a||",
			want:  [][]string{{"a", ""}},
		},
		{
			name:  "quoted field containing the sequence",
			seq:   "||",
			input: "\"a||b\"||c\n",
			want:  [][]string{{"a||b", "c"}},
		},
		{
			name:  "doubled quotes",
			seq:   "::",
			input: "\"he said \"\"hi\"\"\"::x\n",
			want:  [][]string{{`he said "hi"`, "x"}},
		},
		{
			name:  "three byte sequence",
			seq:   " | ",
			input: "a | b | c\n",
			want:  [][]string{{"a", "b", "c"}},
		},
		{
			name:    "lenient concatenation after closing quote",
			seq:     "::",
			lenient: true,
			input:   "\"ab\"cd::e\n",
			want:    [][]string{{"abcd", "e"}},
		},
		{
			name:  "trim leading space",
			seq:   "::",
			trim:  true,
			input: "  a::  b\n",
			want:  [][]string{{"a", "b"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			whole := NewMachine(',', '"')
			whole.DelimSeq = []byte(tt.seq)
			whole.Lenient = tt.lenient
			whole.TrimLeadingSpace = tt.trim
			want := collect(t, whole, tt.input)
			if !reflect.DeepEqual(want, tt.want) {
				t.Fatalf("records mismatch:\n got %q\nwant %q", want, tt.want)
			}

			// A delimiter split across a window boundary must not change
			// the verdict.
			for chunk := 1; chunk <= len(tt.input); chunk++ {
				m := NewMachine(',', '"')
				m.DelimSeq = []byte(tt.seq)
				m.Lenient = tt.lenient
				m.TrimLeadingSpace = tt.trim
				got := collectChunked(t, m, tt.input, chunk)
				if !reflect.DeepEqual(got, want) {
					t.Fatalf("chunk size %d: records mismatch:\n got %q\nwant %q", chunk, got, want)
				}
			}
		})
	}
}

// TestMachine_DelimSeqStrictErrors tests that quoting violations carry
// the same offsets under a multi-byte delimiter.
func TestMachine_DelimSeqStrictErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantErr    error
		wantOffset int
	}{
		{
			name:       "bare quote in field",
			input:      "ab\"cd::e\n",
			wantErr:    ErrBareQuote,
			wantOffset: 2,
		},
		{
			name:       "content after closing quote",
			input:      "\"ab\"cd::e\n",
			wantErr:    ErrQuote,
			wantOffset: 4,
		},
		{
			name:       "unterminated quote",
			input:      "\"ab",
			wantErr:    ErrUnterminatedQuote,
			wantOffset: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			m.DelimSeq = []byte("::")
			_, _, err := m.Next([]byte(tt.input), true)
			var syn *SyntaxError
			if !errors.As(err, &syn) {
				t.Fatalf("Next error = %v, want *SyntaxError", err)
			}
			if !errors.Is(syn, tt.wantErr) {
				t.Errorf("error = %v, want %v", syn.Err, tt.wantErr)
			}
			if syn.Offset != tt.wantOffset {
				t.Errorf("offset = %d, want %d", syn.Offset, tt.wantOffset)
			}
		})
	}
}

// TestMachine_FieldQuoted tests per-field quote reporting.
func TestMachine_FieldQuoted(t *testing.T) {
	m := NewMachine(',', '"')
	window := []byte("a,\"b\",c\n")
	_, res, err := m.Next(window, true)
	if err != nil {
		t.Fatalf("Next: unexpected error: %v", err)
	}
	if res != Record {
		t.Fatalf("Next result = %v, want Record", res)
	}
	want := []bool{false, true, false}
	for i, q := range want {
		if m.FieldQuoted(i) != q {
			t.Errorf("FieldQuoted(%d) = %v, want %v", i, m.FieldQuoted(i), q)
		}
	}
}

// TestMachine_StrictErrors tests quoting violations in strict mode.
func TestMachine_StrictErrors(t *testing.T) {
	tests := []struct {
		name       string
		input      string
		wantErr    error
		wantOffset int
		wantField  int
	}{
		{
			name:       "quote inside unquoted field",
			input:      "a\"b\n",
			wantErr:    ErrBareQuote,
			wantOffset: 1,
			wantField:  0,
		},
		{
			name:       "quote in second field",
			input:      "a,b\"c\n",
			wantErr:    ErrBareQuote,
			wantOffset: 3,
			wantField:  1,
		},
		{
			name:       "data after closing quote",
			input:      "\"ab\"x\n",
			wantErr:    ErrQuote,
			wantOffset: 4,
			wantField:  0,
		},
		{
			name:       "unterminated quote at end of input",
			input:      "\"abc",
			wantErr:    ErrUnterminatedQuote,
			wantOffset: 4,
			wantField:  0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			n, _, err := m.Next([]byte(tt.input), true)
			if err == nil {
				t.Fatalf("Next(%q): expected error, got none", tt.input)
			}
			if n != 0 {
				t.Errorf("Next consumed %d bytes on error, want 0", n)
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("error = %v, want %v", err, tt.wantErr)
			}
			var syn *SyntaxError
			if !errors.As(err, &syn) {
				t.Fatalf("error type = %T, want *SyntaxError", err)
			}
			if syn.Offset != tt.wantOffset {
				t.Errorf("Offset = %d, want %d", syn.Offset, tt.wantOffset)
			}
			if syn.Field != tt.wantField {
				t.Errorf("Field = %d, want %d", syn.Field, tt.wantField)
			}
		})
	}
}

// TestMachine_LenientRecovery tests the recovery rules that replace
// strict-mode errors.
func TestMachine_LenientRecovery(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  [][]string
	}{
		{
			name:  "quote inside unquoted field is literal",
			input: "a\"b,c\n",
			want:  [][]string{{"a\"b", "c"}},
		},
		{
			name:  "doubled bare quotes are literal",
			input: "a\"\"b\n",
			want:  [][]string{{"a\"\"b"}},
		},
		{
			name:  "data after closing quote is concatenated",
			input: "\"ab\"cd,e\n",
			want:  [][]string{{"abcd", "e"}},
		},
		{
			name:  "concatenated tail may hold more quotes",
			input: "\"ab\"cd\"ef\"\n",
			want:  [][]string{{"abcd\"ef\""}},
		},
		{
			name:  "unterminated quote keeps what it has",
			input: "\"abc",
			want:  [][]string{{"abc"}},
		},
		{
			name:  "well formed input is unchanged",
			input: "\"a\"\"b\",c\n",
			want:  [][]string{{"a\"b", "c"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewMachine(',', '"')
			m.Lenient = true
			got := collect(t, m, tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("records mismatch:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

// TestMachine_NeedMore tests the restart protocol on partial windows.
func TestMachine_NeedMore(t *testing.T) {
	t.Run("unterminated record requests more input", func(t *testing.T) {
		m := NewMachine(',', '"')
		n, res, err := m.Next([]byte("a,b"), false)
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if res != NeedMore || n != 0 {
			t.Errorf("Next = (%d, %v), want (0, NeedMore)", n, res)
		}
	})

	t.Run("skipped prefix is consumed before requesting more", func(t *testing.T) {
		m := NewMachine(',', '"')
		m.Comment = '#'
		n, res, err := m.Next([]byte("\n#c\npartial"), false)
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if res != NeedMore || n != 4 {
			t.Errorf("Next = (%d, %v), want (4, NeedMore)", n, res)
		}
	})

	t.Run("trailing CR waits for a possible LF", func(t *testing.T) {
		m := NewMachine(',', '"')
		n, res, err := m.Next([]byte("a\r"), false)
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if res != NeedMore || n != 0 {
			t.Errorf("Next = (%d, %v), want (0, NeedMore)", n, res)
		}

		n, res, err = m.Next([]byte("a\r\nb"), false)
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if res != Record || n != 3 {
			t.Fatalf("Next = (%d, %v), want (3, Record)", n, res)
		}
		if m.EOL() != "\r\n" {
			t.Errorf("EOL() = %q, want %q", m.EOL(), "\r\n")
		}
	})

	t.Run("open quote spans windows", func(t *testing.T) {
		m := NewMachine(',', '"')
		n, res, err := m.Next([]byte("\"ab"), false)
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if res != NeedMore || n != 0 {
			t.Errorf("Next = (%d, %v), want (0, NeedMore)", n, res)
		}

		window := []byte("\"ab,cd\",e\n")
		n, res, err = m.Next(window, false)
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if res != Record || n != len(window) {
			t.Fatalf("Next = (%d, %v), want (%d, Record)", n, res, len(window))
		}
		if got := string(m.FieldBytes(window, 0)); got != "ab,cd" {
			t.Errorf("field 0 = %q, want %q", got, "ab,cd")
		}
	})

	t.Run("empty window without EOF requests more", func(t *testing.T) {
		m := NewMachine(',', '"')
		n, res, err := m.Next(nil, false)
		if err != nil {
			t.Fatalf("Next: unexpected error: %v", err)
		}
		if res != NeedMore || n != 0 {
			t.Errorf("Next = (%d, %v), want (0, NeedMore)", n, res)
		}
	})
}

// TestMachine_ChunkBoundaries tests that records come out identical no
// matter where window boundaries fall.
func TestMachine_ChunkBoundaries(t *testing.T) {
	inputs := []struct {
		name  string
		input string
	}{
		{
			name:  "quoting and CRLF",
			input: "first,\"qu,oted\"\r\nsecond,\"do\"\"ubled\"\nthird,plain\n",
		},
		{
			name:  "comments and blank lines",
			input: "# head\n\n\"multi\nline\",x\nlast,row",
		},
		{
			name:  "bare CR terminators",
			input: "a,b\rc,d\re,f\r",
		},
	}

	for _, tt := range inputs {
		t.Run(tt.name, func(t *testing.T) {
			whole := NewMachine(',', '"')
			whole.Comment = '#'
			want := collect(t, whole, tt.input)

			for chunk := 1; chunk <= len(tt.input); chunk++ {
				m := NewMachine(',', '"')
				m.Comment = '#'
				got := collectChunked(t, m, tt.input, chunk)
				if !reflect.DeepEqual(got, want) {
					t.Fatalf("chunk size %d: records mismatch:\n got %q\nwant %q", chunk, got, want)
				}
			}
		})
	}
}

// TestMachine_ScanInjection tests that the machine produces identical
// records with the scalar reference kernel installed.
func TestMachine_ScanInjection(t *testing.T) {
	input := "alpha,\"beta, with comma\",gamma\n\"do\"\"ubled\",plain\r\n"

	def := NewMachine(',', '"')
	want := collect(t, def, input)

	scalar := NewMachine(',', '"')
	scalar.Scan = simd.IndexAnyScalar
	got := collect(t, scalar, input)

	if !reflect.DeepEqual(got, want) {
		t.Errorf("scalar kernel records mismatch:\n got %q\nwant %q", got, want)
	}
}
