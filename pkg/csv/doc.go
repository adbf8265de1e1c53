// Package csv reads and writes RFC 4180 CSV with a streaming,
// chunk-boundary-safe core.
//
// Records are tokenized by a restartable state machine over a sliding
// window, so the package parses gigabyte streams in constant memory and
// produces the same records no matter how the input is chunked. Field
// boundary scanning is dispatched to SIMD-accelerated kernels on
// platforms that have them.
//
// # Reading
//
// Reader pulls records from any io.Reader:
//
//	r, err := csv.NewReader(file, csv.DefaultReaderOptions())
//	for {
//	    record, err := r.Read()
//	    if err == io.EOF {
//	        break
//	    }
//	    // process record
//	}
//
// One-shot helpers cover in-memory buffers and files: Parse and
// ParseBytes (zero-copy fields), Validate, ParseFile (memory mapped),
// and ParseTable for access by column name. Scanner wraps Reader in the
// bufio.Scanner idiom, and Reader.Stream delivers records on a channel.
// DetectDialect sniffs the delimiter and header row of an unknown
// sample before any of them run.
//
// # Error handling
//
// Three modes control what happens on malformed input. ModeStrict stops
// at the first error. ModeCollect reports the error, skips the bad
// record, and keeps parsing. ModeLenient repairs common quote damage
// (bare quotes, stray text after a closing quote, unterminated fields)
// and keeps every record. Structural errors surface as *ParseError with
// the record, line, field and byte offset; conversion failures in the
// typed layer surface as *ConversionError.
//
// # Typed records
//
// Decoder and Encoder map records to struct fields through csv tags:
//
//	type Reading struct {
//	    Probe string    `csv:"probe,required"`
//	    Value float64   `csv:"value"`
//	    Taken time.Time `csv:"taken,format=2006-01-02"`
//	}
//	dec, err := csv.NewDecoder[Reading](r)
//	readings, err := dec.DecodeAll()
//
// Unmarshal and Marshal are the one-shot equivalents. Conversion plans
// are cached per struct type and header layout, so the reflection cost
// is paid once per shape, not per record.
//
// # Writing
//
// Writer quotes only where RFC 4180 demands it:
//
//	w, err := csv.NewWriter(out, csv.DefaultWriterOptions())
//	w.Write([]string{"a", "b,c"})
//	w.Flush()
//
// # Thread safety
//
// The one-shot functions (Parse, Validate, Unmarshal, Marshal, ...) are
// safe for concurrent use; each call owns its state. A Reader, Writer,
// Scanner, Decoder or Encoder serves one goroutine at a time.
package csv
