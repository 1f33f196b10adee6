// Package csvimport reads bank statement exports. Banks differ in delimiter,
// encoding and number format, so the parser detects the first two and the
// statement reader accepts both decimal conventions.
package csvimport

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

const sniffSize = 4096

// CSVParser reads a delimited file with a header row
type CSVParser struct {
	delimiter rune
	headerMap map[string]int
	headers   []string
	line      int
	reader    *csv.Reader
	latin1    bool
}

// ParserOption configures a CSVParser
type ParserOption func(*CSVParser)

// WithDelimiter fixes the delimiter instead of detecting it
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// NewCSVParser strips a UTF-8 BOM, decodes Windows-1252 input and picks
// ';' or ',' from the first line unless a delimiter was given
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	p := &CSVParser{headerMap: make(map[string]int)}
	for _, opt := range opts {
		opt(p)
	}

	br := bufio.NewReaderSize(r, sniffSize)
	head, err := br.Peek(sniffSize)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return nil, fmt.Errorf("read statement: %w", err)
	}
	if len(bytes.TrimSpace(head)) == 0 {
		return nil, ErrEmptyFile
	}
	if bytes.HasPrefix(head, []byte{0xEF, 0xBB, 0xBF}) {
		_, _ = br.Discard(3)
		head = head[3:]
	}

	var src io.Reader = br
	if !validPrefix(head, len(head) >= sniffSize-3) {
		p.latin1 = true
		src = transform.NewReader(br, charmap.Windows1252.NewDecoder())
	}
	if p.delimiter == 0 {
		p.delimiter = detectDelimiter(head)
	}

	p.reader = csv.NewReader(src)
	p.reader.Comma = p.delimiter
	p.reader.LazyQuotes = true
	p.reader.TrimLeadingSpace = true
	p.reader.FieldsPerRecord = -1
	return p, nil
}

// validPrefix allows a rune cut off at the end of a truncated window
func validPrefix(b []byte, truncated bool) bool {
	if !truncated {
		return utf8.Valid(b)
	}
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		if utf8.Valid(b) {
			return true
		}
		b = b[:len(b)-1]
	}
	return false
}

func detectDelimiter(head []byte) rune {
	first, _, _ := bytes.Cut(head, []byte("\n"))
	if bytes.Count(first, []byte(";")) > bytes.Count(first, []byte(",")) {
		return ';'
	}
	return ','
}

// Delimiter is the delimiter in use
func (p *CSVParser) Delimiter() rune {
	return p.delimiter
}

// Latin1 reports whether the input was decoded from Windows-1252
func (p *CSVParser) Latin1() bool {
	return p.latin1
}

// ParseHeader reads the header row. Names are lower-cased and trimmed.
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if err == io.EOF {
		return ErrMissingHeader
	}
	if err != nil {
		return fmt.Errorf("read header: %w", err)
	}
	p.line = 1
	p.headers = make([]string, len(record))
	for i, h := range record {
		name := strings.ToLower(strings.TrimSpace(h))
		p.headers[i] = name
		if _, dup := p.headerMap[name]; !dup {
			p.headerMap[name] = i
		}
	}
	return nil
}

// Headers returns the normalized header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// Column returns the first header of names present in the file
func (p *CSVParser) Column(names ...string) (string, bool) {
	for _, n := range names {
		if _, ok := p.headerMap[n]; ok {
			return n, true
		}
	}
	return "", false
}

// Row is one data row keyed by header
type Row struct {
	Line int
	Data map[string]string
}

// Get returns the trimmed value of a column
func (r *Row) Get(header string) string {
	return r.Data[header]
}

// IsEmpty reports a row without any value
func (r *Row) IsEmpty() bool {
	for _, v := range r.Data {
		if v != "" {
			return false
		}
	}
	return true
}

// ReadRow returns the next row or io.EOF
func (p *CSVParser) ReadRow() (*Row, error) {
	record, err := p.reader.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	p.line++
	if err != nil {
		return nil, NewRowError(p.line, "", ErrCodeMalformedRow, err.Error())
	}
	row := &Row{Line: p.line, Data: make(map[string]string, len(p.headers))}
	for i, h := range p.headers {
		if i < len(record) {
			row.Data[h] = strings.TrimSpace(record[i])
		}
	}
	return row, nil
}
