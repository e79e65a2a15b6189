package postgres

import (
	"fmt"
	"strings"

	"salesdw/internal/storage"
)

// pgIdent returns a double-quoted identifier.
func pgIdent(id string) string {
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// pgTable validates and quotes a logical table name.
//
//	"oltp.customer" -> "oltp"."customer"
func pgTable(name string) (string, error) {
	schema, table, err := storage.SplitTable(name)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return pgIdent(table), nil
	}
	return pgIdent(schema) + "." + pgIdent(table), nil
}

func joinIdents(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = pgIdent(c)
	}
	return strings.Join(parts, ", ")
}

func buildSelectSQL(table string, columns []string, orderBy []string) (string, error) {
	tbl, err := pgTable(table)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("select %s: no columns", table)
	}
	if err := storage.ValidateColumns(columns, orderBy); err != nil {
		return "", err
	}
	q := "SELECT " + joinIdents(columns) + " FROM " + tbl
	if len(orderBy) > 0 {
		q += " ORDER BY " + joinIdents(orderBy)
	}
	return q, nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// It is pure and deterministic so placeholder numbering and the conflict
// clause can be unit tested without a database.
//
// Constraints:
//   - every row must have len(columns) values.
//   - updateColumns requires conflictColumns.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumns, updateColumns []string) (string, []any, error) {
	tbl, err := pgTable(table)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}
	if err := storage.ValidateColumns(columns, conflictColumns, updateColumns); err != nil {
		return "", nil, err
	}
	if len(updateColumns) > 0 && len(conflictColumns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: update columns without conflict target", table)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tbl)
	b.WriteString(" (")
	b.WriteString(joinIdents(columns))
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert into %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	if len(conflictColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(joinIdents(conflictColumns))
		b.WriteString(")")
		if len(updateColumns) == 0 {
			b.WriteString(" DO NOTHING")
		} else {
			b.WriteString(" DO UPDATE SET ")
			for i, c := range updateColumns {
				if i > 0 {
					b.WriteString(", ")
				}
				b.WriteString(pgIdent(c))
				b.WriteString(" = EXCLUDED.")
				b.WriteString(pgIdent(c))
			}
		}
	}

	return b.String(), args, nil
}

func buildTruncateSQL(tables []string) (string, error) {
	names := make([]string, len(tables))
	for i, t := range tables {
		tbl, err := pgTable(t)
		if err != nil {
			return "", err
		}
		names[i] = tbl
	}
	return "TRUNCATE TABLE " + strings.Join(names, ", ") + " RESTART IDENTITY CASCADE", nil
}

// columnType maps a logical column type onto Postgres DDL.
func columnType(typ string) (string, error) {
	switch typ {
	case storage.TypeIdentity:
		return "BIGINT GENERATED BY DEFAULT AS IDENTITY", nil
	case storage.TypeText:
		return "TEXT", nil
	case storage.TypeBigInt:
		return "BIGINT", nil
	case storage.TypeInt:
		return "INTEGER", nil
	case storage.TypeDate:
		return "DATE", nil
	case storage.TypeMoney:
		return "NUMERIC(14,2)", nil
	case storage.TypeAmount:
		return "NUMERIC(14,4)", nil
	case storage.TypeBool:
		return "BOOLEAN", nil
	default:
		return "", fmt.Errorf("postgres: unsupported column type %q", typ)
	}
}

// buildCreateSQL generates DDL for one table.
//
// Outputs:
//   - schemaSQL: CREATE SCHEMA IF NOT EXISTS when t.Name is schema-qualified.
//   - tableSQL:  CREATE TABLE IF NOT EXISTS with inline PK, NOT NULL and
//     REFERENCES clauses followed by table-level UNIQUE constraints.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	schema, _, err := storage.SplitTable(t.Name)
	if err != nil {
		return "", "", err
	}
	if schema != "" {
		schemaSQL = fmt.Sprintf(`CREATE SCHEMA IF NOT EXISTS %s;`, pgIdent(schema))
	}
	tbl, _ := pgTable(t.Name)

	defs := make([]string, 0, len(t.Columns)+len(t.Constraints)+1)
	if t.PrimaryKey != nil {
		if err := storage.ValidateIdentifier(t.PrimaryKey.Name); err != nil {
			return "", "", err
		}
		typ, err := columnType(t.PrimaryKey.Type)
		if err != nil {
			return "", "", err
		}
		defs = append(defs, fmt.Sprintf(`%s %s PRIMARY KEY`, pgIdent(t.PrimaryKey.Name), typ))
	}

	for _, c := range t.Columns {
		def, err := buildColumnDef(c)
		if err != nil {
			return "", "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return "", "", fmt.Errorf("table %s: no columns", t.Name)
	}

	for _, c := range t.Constraints {
		if !strings.EqualFold(c.Kind, "unique") {
			return "", "", fmt.Errorf("table %s: unsupported constraint kind %q", t.Name, c.Kind)
		}
		if len(c.Columns) == 0 {
			return "", "", fmt.Errorf("table %s: unique constraint requires columns", t.Name)
		}
		if err := storage.ValidateColumns(c.Columns); err != nil {
			return "", "", err
		}
		defs = append(defs, "UNIQUE ("+joinIdents(c.Columns)+")")
	}

	tableSQL = fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (%s);`, tbl, strings.Join(defs, ", "))
	return schemaSQL, tableSQL, nil
}

// buildColumnDef renders a single column definition with an optional inline
// foreign key.
func buildColumnDef(c storage.ColumnSpec) (string, error) {
	if err := storage.ValidateIdentifier(c.Name); err != nil {
		return "", err
	}
	typ, err := columnType(c.Type)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(pgIdent(c.Name))
	b.WriteString(" ")
	b.WriteString(typ)
	if !c.Nullable {
		b.WriteString(" NOT NULL")
	}
	if c.References != nil {
		ref, err := pgTable(c.References.Table)
		if err != nil {
			return "", err
		}
		if err := storage.ValidateIdentifier(c.References.Column); err != nil {
			return "", err
		}
		b.WriteString(" REFERENCES ")
		b.WriteString(ref)
		b.WriteString(" (")
		b.WriteString(pgIdent(c.References.Column))
		b.WriteString(")")
	}
	return b.String(), nil
}
