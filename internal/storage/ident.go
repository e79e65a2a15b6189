package storage

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// ErrInvalidIdentifier is returned when a table or column name does not match
// the identifier allow-list. No SQL is issued for such a name.
var ErrInvalidIdentifier = errors.New("storage: invalid identifier")

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]{0,62}$`)

// ValidateIdentifier reports whether name is a single safe SQL identifier.
func ValidateIdentifier(name string) error {
	if !identPattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// SplitTable splits a logical "schema.table" name and validates both parts.
// An unqualified name yields an empty schema.
//
// Examples:
//   - "oltp.customer" => ("oltp", "customer")
//   - "sales_raw"     => ("", "sales_raw")
func SplitTable(name string) (schema string, table string, err error) {
	parts := strings.Split(name, ".")
	switch len(parts) {
	case 1:
		table = parts[0]
	case 2:
		schema, table = parts[0], parts[1]
		if err := ValidateIdentifier(schema); err != nil {
			return "", "", err
		}
	default:
		return "", "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	if err := ValidateIdentifier(table); err != nil {
		return "", "", err
	}
	return schema, table, nil
}

// ValidateColumns validates every column name in cols.
func ValidateColumns(cols ...[]string) error {
	for _, set := range cols {
		for _, c := range set {
			if err := ValidateIdentifier(c); err != nil {
				return err
			}
		}
	}
	return nil
}
