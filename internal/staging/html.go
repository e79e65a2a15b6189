package staging

import (
	"fmt"
	"io"
	"strings"

	"salesdw/internal/model"

	"github.com/PuerkitoBio/goquery"
)

// DefaultHTMLSelector picks the first table of the document.
const DefaultHTMLSelector = "table"

// HTMLReader yields staging rows from an HTML table export. The header is
// the first row carrying <th> cells, or the first row when none does.
type HTMLReader struct {
	colIx []int
	recs  [][]string
	pos   int
}

// NewHTMLReader parses the whole document and extracts the first element
// matched by selector. A missing table is an error; a header-only table
// yields no rows.
func NewHTMLReader(r io.Reader, selector string) (*HTMLReader, error) {
	if strings.TrimSpace(selector) == "" {
		selector = DefaultHTMLSelector
	}
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	table := doc.Find(selector).First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("staging: no element matches %q", selector)
	}

	var header []string
	var recs [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if header == nil {
			if th := tr.Find("th"); th.Length() > 0 {
				header = cellTexts(th)
				return
			}
		}
		td := tr.Find("td")
		if td.Length() == 0 {
			return
		}
		if header == nil {
			header = cellTexts(td)
			return
		}
		recs = append(recs, cellTexts(td))
	})
	if header == nil {
		return nil, fmt.Errorf("staging: table %q has no rows", selector)
	}

	colIx, err := columnIndex(header, nil)
	if err != nil {
		return nil, err
	}
	return &HTMLReader{colIx: colIx, recs: recs}, nil
}

func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, c *goquery.Selection) {
		out = append(out, strings.TrimSpace(c.Text()))
	})
	return out
}

// Next implements Reader.
func (h *HTMLReader) Next() (model.StagingRow, error) {
	if h.pos >= len(h.recs) {
		return model.StagingRow{}, io.EOF
	}
	rec := h.recs[h.pos]
	h.pos++
	return rowFromRecord(h.colIx, rec), nil
}

var _ Reader = (*HTMLReader)(nil)
