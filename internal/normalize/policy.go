// Package normalize moves staging rows into the transactional schema.
//
// Each normalizer reads the staging rows handed to it, resolves foreign keys
// against tables the previous normalizers filled, and writes through the
// transaction it is given. Join misses are counted, never logged per row.
package normalize

import (
	"fmt"
	"strings"
)

// MergePolicy decides which attribute value survives when one business key
// appears on several staging rows with differing attributes.
type MergePolicy int

const (
	// MaxWins keeps, per attribute, the greatest non-null value under
	// byte-wise ordering. Attributes are merged independently.
	MaxWins MergePolicy = iota
	// LastWins keeps, per attribute, the value of the latest staging row
	// (highest row id) that carries one.
	LastWins
)

func (p MergePolicy) String() string {
	switch p {
	case MaxWins:
		return "max-wins"
	case LastWins:
		return "last-wins"
	default:
		return fmt.Sprintf("MergePolicy(%d)", int(p))
	}
}

// ParseMergePolicy accepts "max-wins" (also the empty string) and "last-wins".
func ParseMergePolicy(s string) (MergePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "max-wins", "max":
		return MaxWins, nil
	case "last-wins", "last":
		return LastWins, nil
	default:
		return 0, fmt.Errorf("unknown merge policy %q (want max-wins or last-wins)", s)
	}
}

// merge folds v into cur under p. Absent values never replace present ones.
func (p MergePolicy) merge(cur, v *string) *string {
	if v == nil {
		return cur
	}
	if cur == nil {
		return v
	}
	switch p {
	case LastWins:
		return v
	default:
		if *v > *cur {
			return v
		}
		return cur
	}
}

// Stats summarizes one normalizer run.
type Stats struct {
	Table string
	// Candidates is the number of distinct rows offered to the table.
	Candidates int64
	// Affected is the row count the store reported for the write.
	Affected int64
	// Dropped counts staging rows excluded by a blank key or a join miss.
	Dropped int64
	// Total is the table's row count after the write.
	Total int64
}
