package sqlite

import (
	"fmt"
	"strings"

	"salesdw/internal/storage"
)

func sqlIdent(id string) string {
	// SQLite supports "quoted identifiers"
	return `"` + strings.ReplaceAll(id, `"`, `""`) + `"`
}

// flatName validates a logical table name and flattens its schema prefix.
//
//	"oltp.customer" -> oltp_customer
func flatName(name string) (string, error) {
	schema, table, err := storage.SplitTable(name)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return table, nil
	}
	return schema + "_" + table, nil
}

func sqlTable(name string) (string, error) {
	flat, err := flatName(name)
	if err != nil {
		return "", err
	}
	return sqlIdent(flat), nil
}

func joinIdents(cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = sqlIdent(c)
	}
	return strings.Join(parts, ", ")
}

func buildSelectSQL(table string, columns []string, orderBy []string) (string, error) {
	tbl, err := sqlTable(table)
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

// buildInsertSQL builds one multi-row INSERT with ? placeholders.
func buildInsertSQL(table string, columns []string, rows [][]any, conflictColumns, updateColumns []string) (string, []any, error) {
	tbl, err := sqlTable(table)
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
	if len(conflictColumns) > 0 && len(updateColumns) == 0 {
		b.WriteString("INSERT OR IGNORE INTO ")
	} else {
		b.WriteString("INSERT INTO ")
	}
	b.WriteString(tbl)
	b.WriteString(" (")
	b.WriteString(joinIdents(columns))
	b.WriteString(") VALUES ")

	rowPH := "(" + strings.TrimRight(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("insert into %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(rowPH)
		args = append(args, row...)
	}

	if len(updateColumns) > 0 {
		b.WriteString(" ON CONFLICT (")
		b.WriteString(joinIdents(conflictColumns))
		b.WriteString(") DO UPDATE SET ")
		for i, c := range updateColumns {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(sqlIdent(c))
			b.WriteString(" = excluded.")
			b.WriteString(sqlIdent(c))
		}
	}
	return b.String(), args, nil
}

func columnType(typ string) (string, error) {
	switch typ {
	case storage.TypeText:
		return "TEXT", nil
	case storage.TypeBigInt, storage.TypeInt, storage.TypeBool:
		return "INTEGER", nil
	case storage.TypeDate:
		return "DATE", nil
	case storage.TypeMoney, storage.TypeAmount:
		return "NUMERIC", nil
	default:
		return "", fmt.Errorf("sqlite: unsupported column type %q", typ)
	}
}

// buildCreateSQL generates CREATE TABLE IF NOT EXISTS for one table.
//
// An identity primary key maps to INTEGER PRIMARY KEY AUTOINCREMENT, which
// aliases the rowid and keeps ids monotonic until sqlite_sequence is reset.
func buildCreateSQL(t storage.TableSpec) (string, error) {
	tbl, err := sqlTable(t.Name)
	if err != nil {
		return "", err
	}

	var defs []string
	if pk := t.PrimaryKey; pk != nil {
		if err := storage.ValidateIdentifier(pk.Name); err != nil {
			return "", err
		}
		if pk.Type == storage.TypeIdentity {
			defs = append(defs, sqlIdent(pk.Name)+" INTEGER PRIMARY KEY AUTOINCREMENT")
		} else {
			typ, err := columnType(pk.Type)
			if err != nil {
				return "", err
			}
			defs = append(defs, sqlIdent(pk.Name)+" "+typ+" PRIMARY KEY")
		}
	}

	for _, c := range t.Columns {
		if err := storage.ValidateIdentifier(c.Name); err != nil {
			return "", err
		}
		typ, err := columnType(c.Type)
		if err != nil {
			return "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		def := sqlIdent(c.Name) + " " + typ
		if !c.Nullable {
			def += " NOT NULL"
		}
		if c.References != nil {
			ref, err := sqlTable(c.References.Table)
			if err != nil {
				return "", err
			}
			if err := storage.ValidateIdentifier(c.References.Column); err != nil {
				return "", err
			}
			def += " REFERENCES " + ref + " (" + sqlIdent(c.References.Column) + ")"
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return "", fmt.Errorf("table %s: no columns", t.Name)
	}

	for _, c := range t.Constraints {
		if !strings.EqualFold(c.Kind, "unique") || len(c.Columns) == 0 {
			return "", fmt.Errorf("table %s: unsupported constraint %q %v", t.Name, c.Kind, c.Columns)
		}
		if err := storage.ValidateColumns(c.Columns); err != nil {
			return "", err
		}
		defs = append(defs, "UNIQUE ("+joinIdents(c.Columns)+")")
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", tbl, strings.Join(defs, ", ")), nil
}
