package mssql

import (
	"fmt"
	"strings"

	"salesdw/internal/storage"
)

// mssqlIdent returns a bracket-quoted identifier, escaping ']' as ']]'.
func mssqlIdent(name string) string {
	return "[" + strings.ReplaceAll(name, "]", "]]") + "]"
}

// mssqlTable validates and quotes a logical table name.
//
// Example:
//
//	"oltp.customer" -> [oltp].[customer]
func mssqlTable(name string) (string, error) {
	schema, table, err := storage.SplitTable(name)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return mssqlIdent(table), nil
	}
	return mssqlIdent(schema) + "." + mssqlIdent(table), nil
}

func joinIdents(prefix string, cols []string) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = prefix + mssqlIdent(c)
	}
	return strings.Join(parts, ", ")
}

// writeValues renders "(@p1, @p2), (@p3, @p4)" and collects args.
func writeValues(b *strings.Builder, table string, columns []string, rows [][]any) ([]any, error) {
	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if len(row) != len(columns) {
			return nil, fmt.Errorf("insert into %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(b, "@p%d", p)
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}
	return args, nil
}

func buildSelectSQL(table string, columns []string, orderBy []string) (string, error) {
	tbl, err := mssqlTable(table)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("select %s: no columns", table)
	}
	if err := storage.ValidateColumns(columns, orderBy); err != nil {
		return "", err
	}
	q := "SELECT " + joinIdents("", columns) + " FROM " + tbl
	if len(orderBy) > 0 {
		q += " ORDER BY " + joinIdents("", orderBy)
	}
	return q, nil
}

// buildInsertSQL builds a plain multi-row INSERT ... VALUES statement.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	tbl, err := mssqlTable(table)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: no columns", table)
	}
	if err := storage.ValidateColumns(columns); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tbl)
	b.WriteString(" (")
	b.WriteString(joinIdents("", columns))
	b.WriteString(") VALUES ")
	args, err := writeValues(&b, table, columns, rows)
	if err != nil {
		return "", nil, err
	}
	return b.String(), args, nil
}

// buildInsertNotExistsSQL constructs INSERT ... SELECT ... WHERE NOT EXISTS for
// a chunk of rows, the SQL Server spelling of ON CONFLICT DO NOTHING.
//
// Incoming rows are materialized as derived table v via VALUES. The caller
// must have removed duplicate keys from rows; SQL Server does not collapse
// them and the UNIQUE constraint would fire.
func buildInsertNotExistsSQL(table string, columns []string, rows [][]any, keyColumns []string) (string, []any, error) {
	tbl, err := mssqlTable(table)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 || len(keyColumns) == 0 {
		return "", nil, fmt.Errorf("insert into %s: columns and key columns are required", table)
	}
	if err := storage.ValidateColumns(columns, keyColumns); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(tbl)
	b.WriteString(" (")
	b.WriteString(joinIdents("", columns))
	b.WriteString(") SELECT ")
	b.WriteString(joinIdents("v.", columns))
	b.WriteString(" FROM (VALUES ")
	args, err := writeValues(&b, table, columns, rows)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(") AS v(")
	b.WriteString(joinIdents("", columns))
	b.WriteString(") WHERE NOT EXISTS (SELECT 1 FROM ")
	b.WriteString(tbl)
	b.WriteString(" t WHERE ")
	writeKeyMatch(&b, keyColumns)
	b.WriteString(")")

	return b.String(), args, nil
}

// buildMergeSQL constructs a MERGE that inserts new keys and overwrites
// updateColumns of existing ones.
func buildMergeSQL(table string, columns []string, rows [][]any, keyColumns, updateColumns []string) (string, []any, error) {
	tbl, err := mssqlTable(table)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 || len(keyColumns) == 0 {
		return "", nil, fmt.Errorf("merge into %s: columns and key columns are required", table)
	}
	if err := storage.ValidateColumns(columns, keyColumns, updateColumns); err != nil {
		return "", nil, err
	}

	var b strings.Builder
	b.WriteString("MERGE INTO ")
	b.WriteString(tbl)
	b.WriteString(" AS t USING (VALUES ")
	args, err := writeValues(&b, table, columns, rows)
	if err != nil {
		return "", nil, err
	}
	b.WriteString(") AS v(")
	b.WriteString(joinIdents("", columns))
	b.WriteString(") ON ")
	writeKeyMatch(&b, keyColumns)
	b.WriteString(" WHEN MATCHED THEN UPDATE SET ")
	for i, c := range updateColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(c))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(c))
	}
	b.WriteString(" WHEN NOT MATCHED THEN INSERT (")
	b.WriteString(joinIdents("", columns))
	b.WriteString(") VALUES (")
	b.WriteString(joinIdents("v.", columns))
	b.WriteString(");")

	return b.String(), args, nil
}

func writeKeyMatch(b *strings.Builder, keyColumns []string) {
	for i, k := range keyColumns {
		if i > 0 {
			b.WriteString(" AND ")
		}
		b.WriteString("t.")
		b.WriteString(mssqlIdent(k))
		b.WriteString(" = v.")
		b.WriteString(mssqlIdent(k))
	}
}

// buildResetSQL deletes every row of table and reseeds its identity when it
// has one. TRUNCATE is refused on tables referenced by a foreign key, so the
// rebuild deletes in dependency order instead. The reseed only runs when rows
// were deleted: on a table that never held rows RESEED 0 would hand out 0.
func buildResetSQL(table string) (string, error) {
	tbl, err := mssqlTable(table)
	if err != nil {
		return "", err
	}
	// tbl is built from allow-listed identifiers, so embedding it in the
	// N'...' literal cannot break out of the string.
	return fmt.Sprintf(
		"DELETE FROM %s; IF @@ROWCOUNT > 0 AND OBJECTPROPERTY(OBJECT_ID(N'%s'), 'TableHasIdentity') = 1 DBCC CHECKIDENT (N'%s', RESEED, 0);",
		tbl, tbl, tbl,
	), nil
}

// dedupeRowsByColumns keeps the first row for every distinct key.
//
// Errors:
//   - Returns an error if a key column is not present in columns.
func dedupeRowsByColumns(rows [][]any, columns []string, keyColumns []string) ([][]any, error) {
	idx := make([]int, 0, len(keyColumns))
	for _, k := range keyColumns {
		pos := -1
		for i, c := range columns {
			if c == k {
				pos = i
				break
			}
		}
		if pos < 0 {
			return nil, fmt.Errorf("mssql: key column %q not present in columns", k)
		}
		idx = append(idx, pos)
	}

	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var sb strings.Builder
	for _, r := range rows {
		sb.Reset()
		for _, i := range idx {
			sb.WriteString(storage.NormalizeKey(r[i]))
			sb.WriteByte(0)
		}
		k := sb.String()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, r)
	}
	return out, nil
}

// columnType maps a logical column type onto SQL Server DDL. Text is bounded
// so it can carry a UNIQUE constraint.
func columnType(typ string) (string, error) {
	switch typ {
	case storage.TypeIdentity:
		return "BIGINT IDENTITY(1,1)", nil
	case storage.TypeText:
		return "NVARCHAR(255)", nil
	case storage.TypeBigInt:
		return "BIGINT", nil
	case storage.TypeInt:
		return "INT", nil
	case storage.TypeDate:
		return "DATE", nil
	case storage.TypeMoney:
		return "DECIMAL(14,2)", nil
	case storage.TypeAmount:
		return "DECIMAL(14,4)", nil
	case storage.TypeBool:
		return "BIT", nil
	default:
		return "", fmt.Errorf("mssql: unsupported column type %q", typ)
	}
}

// buildCreateSQL generates guarded DDL for one table.
//
// Outputs:
//   - schemaSQL: creates the schema through EXEC when it is missing.
//   - tableSQL:  CREATE TABLE wrapped in an OBJECT_ID guard, so the pair is
//     idempotent without IF NOT EXISTS syntax.
func buildCreateSQL(t storage.TableSpec) (schemaSQL, tableSQL string, err error) {
	schema, _, err := storage.SplitTable(t.Name)
	if err != nil {
		return "", "", err
	}
	tbl, _ := mssqlTable(t.Name)
	if schema != "" {
		schemaSQL = fmt.Sprintf("IF SCHEMA_ID(N'%s') IS NULL EXEC(N'CREATE SCHEMA %s');", schema, mssqlIdent(schema))
	}

	var defs []string
	if pk := t.PrimaryKey; pk != nil {
		if err := storage.ValidateIdentifier(pk.Name); err != nil {
			return "", "", err
		}
		typ, err := columnType(pk.Type)
		if err != nil {
			return "", "", err
		}
		defs = append(defs, mssqlIdent(pk.Name)+" "+typ+" PRIMARY KEY")
	}

	for _, c := range t.Columns {
		if err := storage.ValidateIdentifier(c.Name); err != nil {
			return "", "", err
		}
		typ, err := columnType(c.Type)
		if err != nil {
			return "", "", fmt.Errorf("table %s: %w", t.Name, err)
		}
		def := mssqlIdent(c.Name) + " " + typ
		if c.Nullable {
			def += " NULL"
		} else {
			def += " NOT NULL"
		}
		if c.References != nil {
			ref, err := mssqlTable(c.References.Table)
			if err != nil {
				return "", "", err
			}
			if err := storage.ValidateIdentifier(c.References.Column); err != nil {
				return "", "", err
			}
			def += " REFERENCES " + ref + " (" + mssqlIdent(c.References.Column) + ")"
		}
		defs = append(defs, def)
	}
	if len(defs) == 0 {
		return "", "", fmt.Errorf("table %s: no columns", t.Name)
	}

	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") || len(con.Columns) == 0 {
			return "", "", fmt.Errorf("table %s: unsupported constraint %q %v", t.Name, con.Kind, con.Columns)
		}
		if err := storage.ValidateColumns(con.Columns); err != nil {
			return "", "", err
		}
		defs = append(defs, "UNIQUE ("+joinIdents("", con.Columns)+")")
	}

	tableSQL = fmt.Sprintf(
		"IF OBJECT_ID(N'%s', N'U') IS NULL BEGIN CREATE TABLE %s (%s); END;",
		tbl, tbl, strings.Join(defs, ", "),
	)
	return schemaSQL, tableSQL, nil
}
