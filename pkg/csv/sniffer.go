package csv

import (
	"math/bits"
	"regexp"
	"strings"
	"unicode"

	"github.com/shapestone/streamcsv/internal/simd"
	"github.com/shapestone/streamcsv/internal/tokenizer"
)

// maxSniffRecords bounds how many records of the sample each candidate
// delimiter is scored on.
const maxSniffRecords = 16

// candidateDelims are tried in order; ties go to the earlier one.
var candidateDelims = []byte{',', '\t', ';', '|'}

// Dialect is the result of sniffing a sample.
type Dialect struct {
	Comma     byte
	HasHeader bool
}

// DetectDialect sniffs sample and returns the detected delimiter and
// whether the first record looks like a header row. A few complete
// lines of data are enough; truncated trailing lines are ignored.
func DetectDialect(sample []byte) Dialect {
	s := NewSniffer(sample)
	return Dialect{Comma: s.DetectDelimiter(), HasHeader: s.HasHeader()}
}

// Sniffer detects the dialect of a CSV sample. Detection runs once,
// on first use, over at most maxSniffRecords records.
type Sniffer struct {
	sample   []byte
	delim    byte
	header   bool
	analyzed bool
}

// NewSniffer creates a Sniffer over a sample of CSV data. For best
// results provide at least two complete lines.
func NewSniffer(sample []byte) *Sniffer {
	return &Sniffer{sample: sample}
}

// DetectDelimiter returns the detected field delimiter. Candidates are
// comma, tab, semicolon and pipe; quoted sections never count.
func (s *Sniffer) DetectDelimiter() byte {
	s.analyze()
	return s.delim
}

// HasHeader reports whether the first record looks like a header row.
// It needs at least two records to compare and otherwise returns false.
func (s *Sniffer) HasHeader() bool {
	s.analyze()
	return s.header
}

func (s *Sniffer) analyze() {
	if s.analyzed {
		return
	}
	s.analyzed = true
	s.delim = s.detectDelimiter()
	s.header = s.detectHeader()
}

func (s *Sniffer) detectDelimiter() byte {
	if len(s.sample) == 0 {
		return ','
	}
	best, bestScore := byte(','), 0
	for _, delim := range candidateDelims {
		if score := s.scoreDelimiter(delim); score > bestScore {
			best, bestScore = delim, score
		}
	}
	return best
}

// scoreDelimiter counts fields per record under the candidate
// delimiter and scores by delimiters per record, with a large bonus
// when every record agrees on the count.
func (s *Sniffer) scoreDelimiter(delim byte) int {
	counts := s.fieldCounts(delim)
	if len(counts) == 0 || counts[0] < 2 {
		return 0
	}
	for _, c := range counts[1:] {
		if c != counts[0] {
			return counts[0] - 1
		}
	}
	return (counts[0] - 1) * 10
}

// fieldCounts walks the sample in classified blocks and returns the
// field count of each record, ignoring delimiters and terminators
// inside quoted sections. Blank lines do not count as records.
func (s *Sniffer) fieldCounts(delim byte) []int {
	var counts []int
	inQuote := false
	fields := 1
	recStart := 0

	for base := 0; base < len(s.sample) && len(counts) < maxSniffRecords; base += simd.BlockSize {
		chunk := s.sample[base:]
		if len(chunk) > simd.BlockSize {
			chunk = chunk[:simd.BlockSize]
		}
		blk := simd.ClassifyPadded(chunk, delim, '"')
		region, next := simd.QuotedRegions(blk.Quotes, inQuote)
		inQuote = next

		structural := (blk.Delims | blk.LFs | blk.CRs) &^ region
		for structural != 0 && len(counts) < maxSniffRecords {
			bit := bits.TrailingZeros64(structural)
			structural &= structural - 1
			off := base + bit
			if blk.Delims&(1<<bit) != 0 {
				fields++
				continue
			}
			// Record terminator. One sitting directly at the record
			// start is a blank line or the LF half of a CRLF pair;
			// neither holds a record to count.
			if off > recStart {
				counts = append(counts, fields)
			}
			fields = 1
			recStart = off + 1
		}
	}

	if recStart < len(s.sample) && len(counts) < maxSniffRecords {
		// A final record not closed by a newline counts, but is
		// assumed truncated when complete records precede it.
		counts = append(counts, fields)
		if len(counts) > 1 {
			counts = counts[:len(counts)-1]
		}
	}
	return counts
}

func (s *Sniffer) detectHeader() bool {
	first, second := s.firstRecords(s.delim)
	if first == nil || second == nil {
		return false
	}

	// Header rows read like identifiers, data rows like values.
	headerScore, dataScore := 0, 0
	for _, field := range first {
		f := strings.TrimSpace(field)
		if isLikelyHeader(f) {
			headerScore++
		}
		if isLikelyData(f) {
			dataScore++
		}
	}
	return headerScore > dataScore
}

func (s *Sniffer) firstRecords(delim byte) (first, second []string) {
	opts := DefaultReaderOptions()
	opts.Comma = delim
	opts.Mode = ModeLenient
	m := getMachine(opts)
	defer putMachine(m)

	window := s.sample
	for i := 0; i < 2 && len(window) > 0; i++ {
		n, res, err := m.Next(window, true)
		if err != nil || res != tokenizer.Record {
			break
		}
		fields := make([]string, m.Len())
		for j := range fields {
			fields[j] = string(m.FieldBytes(window, j))
		}
		if i == 0 {
			first = fields
		} else {
			second = fields
		}
		window = window[n:]
	}
	return first, second
}

var (
	identPattern     = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
	camelPattern     = regexp.MustCompile(`^[a-z]+(?:[A-Z][a-zA-Z0-9]*)+$`)
	titlePattern     = regexp.MustCompile(`^[A-Z][a-z]+(?: [A-Z][a-z]+)*$`)
	isoDatePattern   = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}`)
	slashDatePattern = regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`)
)

// isLikelyHeader reports whether a field reads like a column name.
func isLikelyHeader(s string) bool {
	if s == "" || isNumeric(s) {
		return false
	}
	return identPattern.MatchString(s) || camelPattern.MatchString(s) || titlePattern.MatchString(s)
}

// isLikelyData reports whether a field reads like a data value.
func isLikelyData(s string) bool {
	if s == "" {
		return false
	}
	if isNumeric(s) {
		return true
	}
	if strings.Contains(s, "@") {
		return true
	}
	return isoDatePattern.MatchString(s) || slashDatePattern.MatchString(s)
}

// isNumeric reports whether s is a plain decimal number, optionally
// signed, with at most one decimal point.
func isNumeric(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if s[0] == '-' || s[0] == '+' {
		s = s[1:]
	}
	if s == "" {
		return false
	}
	hasDot := false
	for _, ch := range s {
		switch {
		case ch == '.':
			if hasDot {
				return false
			}
			hasDot = true
		case !unicode.IsDigit(ch):
			return false
		}
	}
	return true
}

// HeaderConverter transforms header names as they are read, typically
// to normalize them before name-based access.
type HeaderConverter func(string) string

// LowercaseHeader converts headers to lowercase.
func LowercaseHeader(s string) string {
	return strings.ToLower(s)
}

// UppercaseHeader converts headers to uppercase.
func UppercaseHeader(s string) string {
	return strings.ToUpper(s)
}

// SnakeCaseHeader converts headers to snake_case, splitting on spaces
// and camelCase boundaries.
func SnakeCaseHeader(s string) string {
	var result strings.Builder
	prevWasSpace := false
	for i, ch := range s {
		if ch == ' ' {
			if result.Len() > 0 && !prevWasSpace {
				result.WriteRune('_')
			}
			prevWasSpace = true
			continue
		}
		if unicode.IsUpper(ch) && i > 0 && !prevWasSpace {
			result.WriteRune('_')
		}
		result.WriteRune(unicode.ToLower(ch))
		prevWasSpace = false
	}
	return result.String()
}
