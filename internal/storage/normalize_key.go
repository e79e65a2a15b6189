package storage

import (
	"fmt"
	"strings"
	"unicode"
)

// NormalizeKey converts a key value to a canonical string form, suitable for
// in-memory cache keys (e.g. "CG-12520" or "20240310").
//
// Backends must not assume a particular underlying type for keys; this helper
// keeps lookup caches consistent across backends.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case int64:
		return fmt.Sprintf("%d", t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int:
		return fmt.Sprintf("%d", t)
	case int32:
		return fmt.Sprintf("%d", t)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// NormalizeBusinessKey canonicalizes a customer or product id: surrounding
// whitespace is trimmed and every remaining whitespace run is removed, so
// " C 1 " and "C1" name the same entity.
func NormalizeBusinessKey(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsSpace(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeText trims s and maps blank to nil.
func NormalizeText(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

// NormalizeOrderID trims an order id. Interior whitespace is kept; blank
// becomes "".
func NormalizeOrderID(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
