package staging

import (
	"bufio"
	"bytes"
	"io"
)

// Input formats understood by the staging readers.
const (
	FormatCSV  = "csv"
	FormatHTML = "html"
	FormatAuto = "auto"
)

const sniffBytes = 512

// SniffFormat infers the input format from the start of a file. Markup is
// HTML; anything else, including an empty sample, is treated as CSV.
func SniffFormat(sample []byte) string {
	trim := bytes.TrimSpace(bytes.TrimPrefix(sample, []byte("\xef\xbb\xbf")))
	if len(trim) > 0 && trim[0] == '<' {
		return FormatHTML
	}
	return FormatCSV
}

// Peek sniffs r without consuming it. The returned reader yields the whole
// input, sampled bytes included.
func Peek(r io.Reader) (string, io.Reader, error) {
	br := bufio.NewReaderSize(r, sniffBytes)
	sample, err := br.Peek(sniffBytes)
	if err != nil && err != io.EOF && err != bufio.ErrBufferFull {
		return "", nil, err
	}
	return SniffFormat(sample), br, nil
}
