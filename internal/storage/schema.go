// The TableSpec types live in storage so backends and the catalog can share
// them without circular imports.
package storage

// Logical column types. Each backend maps them onto its own DDL.
const (
	TypeIdentity = "identity" // auto-assigned surrogate key
	TypeText     = "text"
	TypeBigInt   = "bigint"
	TypeInt      = "int"
	TypeDate     = "date"
	TypeMoney    = "numeric(14,2)"
	TypeAmount   = "numeric(14,4)"
	TypeBool     = "boolean"
)

type TableSpec struct {
	Name        string
	PrimaryKey  *PrimaryKeySpec
	Columns     []ColumnSpec
	Constraints []ConstraintSpec
}

type PrimaryKeySpec struct {
	Name string
	Type string // TypeIdentity or a plain logical type
}

type ColumnSpec struct {
	Name       string
	Type       string
	Nullable   bool
	References *RefSpec
}

// RefSpec is an inline foreign key to Table(Column).
type RefSpec struct {
	Table  string
	Column string
}

type ConstraintSpec struct {
	Kind    string // "unique"
	Columns []string
}

// ColumnNames returns the names of t's non-key columns in declaration order.
func (t TableSpec) ColumnNames() []string {
	out := make([]string, 0, len(t.Columns))
	for _, c := range t.Columns {
		out = append(out, c.Name)
	}
	return out
}

// HasIdentity reports whether t's primary key is assigned by the store.
func (t TableSpec) HasIdentity() bool {
	return t.PrimaryKey != nil && t.PrimaryKey.Type == TypeIdentity
}
