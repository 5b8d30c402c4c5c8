// Package feed retrieves catalog feeds (CSV over HTTP, Google Sheets exports
// or S3 objects) and parses them into catalog rows.
package feed

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/erp/catalogsync/internal/domain/catalog"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// CSVParser reads a feed whose first line is the header row
type CSVParser struct {
	delimiter  rune
	lazyQuotes bool
	charset    string
	headers    []string
	currentRow int
	reader     *csv.Reader
}

// ParserOption is a functional option for CSVParser configuration
type ParserOption func(*CSVParser)

// WithDelimiter sets the field delimiter (default is comma)
func WithDelimiter(d rune) ParserOption {
	return func(p *CSVParser) {
		p.delimiter = d
	}
}

// WithLazyQuotes enables lazy quote handling
func WithLazyQuotes(lazy bool) ParserOption {
	return func(p *CSVParser) {
		p.lazyQuotes = lazy
	}
}

// WithCharset sets the feed charset by its WHATWG label (utf-8, latin1, windows-1252, ...)
func WithCharset(charset string) ParserOption {
	return func(p *CSVParser) {
		p.charset = charset
	}
}

// NewCSVParser creates a parser that decodes r from the configured charset.
// A byte order mark, when present, overrides the charset.
func NewCSVParser(r io.Reader, opts ...ParserOption) (*CSVParser, error) {
	parser := &CSVParser{
		delimiter:  ',',
		lazyQuotes: true,
		charset:    "utf-8",
	}
	for _, opt := range opts {
		opt(parser)
	}

	enc, err := htmlindex.Get(strings.TrimSpace(parser.charset))
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedCharset, parser.charset)
	}
	decoded := transform.NewReader(r, unicode.BOMOverride(enc.NewDecoder()))

	parser.reader = csv.NewReader(decoded)
	parser.reader.Comma = parser.delimiter
	parser.reader.LazyQuotes = parser.lazyQuotes
	parser.reader.TrimLeadingSpace = true
	parser.reader.FieldsPerRecord = -1

	return parser, nil
}

// ParseHeader reads the header row. The sku column is required.
func (p *CSVParser) ParseHeader() error {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return ErrEmptyFeed
	}
	if err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}
	p.currentRow = 1

	hasSKU := false
	for _, h := range record {
		if catalog.NormalizeHeader(h) == catalog.ColumnSKU {
			hasSKU = true
		}
	}
	if len(record) == 0 || (len(record) == 1 && strings.TrimSpace(record[0]) == "") {
		return ErrMissingHeader
	}
	if !hasSKU {
		return ErrMissingSKUColumn
	}
	p.headers = record
	return nil
}

// Headers returns the raw header names
func (p *CSVParser) Headers() []string {
	return p.headers
}

// ReadRow reads the next row. It returns io.EOF at the end of the feed.
func (p *CSVParser) ReadRow() (*catalog.Row, error) {
	record, err := p.reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, io.EOF
	}
	p.currentRow++
	if err != nil {
		return nil, fmt.Errorf("error reading row %d: %w", p.currentRow, err)
	}
	return catalog.BuildRow(p.headers, record), nil
}

// ReadAllRows reads the remaining rows, skipping lines with no cells
func (p *CSVParser) ReadAllRows() ([]*catalog.Row, error) {
	var rows []*catalog.Row
	for {
		row, err := p.ReadRow()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return rows, err
		}
		if row.Len() == 0 {
			continue
		}
		rows = append(rows, row)
	}
}

// CurrentRow returns the current line number (1-indexed, header included)
func (p *CSVParser) CurrentRow() int {
	return p.currentRow
}

// ParseRows parses a complete feed
func ParseRows(r io.Reader, opts ...ParserOption) ([]*catalog.Row, error) {
	parser, err := NewCSVParser(r, opts...)
	if err != nil {
		return nil, err
	}
	if err := parser.ParseHeader(); err != nil {
		return nil, err
	}
	return parser.ReadAllRows()
}
