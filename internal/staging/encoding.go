package staging

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
)

// The public Superstore export ships as Windows-1252; UTF-8 is the default.
var encodings = map[string]encoding.Encoding{
	"utf-8":        unicode.UTF8,
	"utf8":         unicode.UTF8,
	"windows-1252": charmap.Windows1252,
	"cp1252":       charmap.Windows1252,
	"latin1":       charmap.ISO8859_1,
	"iso-8859-1":   charmap.ISO8859_1,
}

// Encodings lists the accepted encoding names.
func Encodings() []string {
	out := make([]string, 0, len(encodings))
	for k := range encodings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	n := strings.ToLower(strings.TrimSpace(name))
	if n == "" {
		return unicode.UTF8, nil
	}
	enc, ok := encodings[n]
	if !ok {
		return nil, fmt.Errorf("staging: unknown encoding %q (known: %s)", name, strings.Join(Encodings(), ", "))
	}
	return enc, nil
}

// ValidateEncoding reports whether name is an accepted encoding. Empty means UTF-8.
func ValidateEncoding(name string) error {
	_, err := lookupEncoding(name)
	return err
}

// Decode wraps r so it yields UTF-8 text. Invalid UTF-8 input is replaced
// with U+FFFD rather than failing the load.
func Decode(r io.Reader, name string) (io.Reader, error) {
	enc, err := lookupEncoding(name)
	if err != nil {
		return nil, err
	}
	return enc.NewDecoder().Reader(r), nil
}
