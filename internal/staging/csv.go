package staging

import (
	"encoding/csv"
	"fmt"
	"io"

	"salesdw/internal/model"
)

// CSVOptions configures NewCSVReader.
type CSVOptions struct {
	// Encoding of the source bytes; empty means UTF-8.
	Encoding string
	// Comma is the field delimiter; zero means ','.
	Comma rune
	// HeaderMap overrides HeaderMap when non-nil.
	HeaderMap map[string]string
	// OnError receives malformed records, which are then skipped. When nil
	// a malformed record stops the read.
	OnError func(line int, err error)
}

// CSVReader streams staging rows from a CSV file with a header line.
type CSVReader struct {
	cr      *csv.Reader
	colIx   []int
	line    int
	onError func(line int, err error)
}

// NewCSVReader reads the header line and prepares column alignment.
//
// Errors:
//   - unknown Encoding
//   - unreadable header
//   - ErrNoKnownColumns when no header field names a staging column
func NewCSVReader(r io.Reader, opts CSVOptions) (*CSVReader, error) {
	dec, err := Decode(r, opts.Encoding)
	if err != nil {
		return nil, err
	}

	cr := csv.NewReader(dec)
	if opts.Comma != 0 {
		cr.Comma = opts.Comma
	}
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	c := &CSVReader{cr: cr, onError: opts.OnError}

	hdr, err := c.read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	c.colIx, err = columnIndex(hdr, opts.HeaderMap)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *CSVReader) read() ([]string, error) {
	c.line++
	return c.cr.Read()
}

// Next implements Reader.
func (c *CSVReader) Next() (model.StagingRow, error) {
	for {
		rec, err := c.read()
		if err == io.EOF {
			return model.StagingRow{}, io.EOF
		}
		if err != nil {
			err = fmt.Errorf("csv read line %d: %w", c.line, err)
			if c.onError == nil {
				return model.StagingRow{}, err
			}
			c.onError(c.line, err)
			continue
		}
		return rowFromRecord(c.colIx, rec), nil
	}
}

var _ Reader = (*CSVReader)(nil)
